package google

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"QueryMind/internal/llm"
	"QueryMind/internal/memory"
)

const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultGeminiModel   = "gemini-1.5-flash"
	defaultGeminiTimeout = 60 * time.Second
)

// GeminiConfig 描述调用 Gemini generateContent API 所需的信息。
type GeminiConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	Params  map[string]any
}

// Gemini 通过 HTTP 调用 Google Gemini 模型，复用 Base 的参数管理
// 与提示词记录逻辑。
type Gemini struct {
	*Base
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewGemini 根据配置创建 Gemini 客户端。
func NewGemini(cfg GeminiConfig) (*Gemini, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, llm.ErrAPIKeyNotFound
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultGeminiModel
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultGeminiTimeout
	}

	client := &Gemini{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
	client.Base = NewBase(client)
	if len(cfg.Params) > 0 {
		client.SetParams(cfg.Params)
	}
	return client, nil
}

// Type 返回提供方标识。
func (g *Gemini) Type() string {
	return "gemini"
}

// GenerateText 实现 TextGenerator：校验采样参数、把会话记忆拼接到
// 提示词前，然后发起 generateContent 调用。
func (g *Gemini) GenerateText(ctx context.Context, prompt string, mem *memory.Memory) (string, error) {
	if err := g.Validate(); err != nil {
		return "", err
	}

	// Gemini 的单轮接口没有消息列表，历史会话并入提示词文本。
	text := llm.PrependSystemPrompt(prompt, mem)

	payload, err := g.buildPayload(text)
	if err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, g.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("构建 Gemini 请求失败: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("请求 Gemini 失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("Gemini 返回错误状态 %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("解析 Gemini 响应失败: %w", err)
	}
	if len(decoded.Candidates) == 0 {
		return "", errors.New("Gemini 响应中没有有效的 candidates")
	}

	var builder strings.Builder
	for _, part := range decoded.Candidates[0].Content.Parts {
		builder.WriteString(part.Text)
	}
	content := strings.TrimSpace(builder.String())
	if content == "" {
		return "", errors.New("Gemini 响应内容为空")
	}
	return content, nil
}

func (g *Gemini) buildPayload(text string) ([]byte, error) {
	params := g.Params()
	body := map[string]any{
		"contents": []map[string]any{
			{
				"role": "user",
				"parts": []map[string]string{
					{"text": text},
				},
			},
		},
		"generationConfig": map[string]any{
			"temperature":     params.Temperature,
			"topP":            params.TopP,
			"topK":            params.TopK,
			"maxOutputTokens": params.MaxOutputTokens,
		},
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("序列化 Gemini 请求失败: %w", err)
	}
	return encoded, nil
}
