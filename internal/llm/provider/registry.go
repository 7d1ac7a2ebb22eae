package provider

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"QueryMind/internal/config"
	"QueryMind/internal/llm"
	"QueryMind/internal/llm/google"
	"QueryMind/internal/llm/openai"
	"QueryMind/internal/llm/pythonbridge"
)

// Registry manages a set of model clients keyed by human readable names.
type Registry struct {
	defaultModel string
	clients      map[string]llm.LLM
}

// NewRegistry loads model profiles and instantiates concrete clients.
func NewRegistry(cfg config.LLMConfig) (*Registry, error) {
	defs, err := LoadModelDefinitions(cfg.ModelConfig)
	if err != nil {
		return nil, err
	}

	clients := make(map[string]llm.LLM)
	for name, def := range defs.Models {
		client, err := buildClient(def, cfg)
		if err != nil {
			return nil, fmt.Errorf("初始化模型 %s 失败: %w", name, err)
		}
		clients[name] = client
	}

	if len(clients) == 0 && strings.TrimSpace(cfg.Provider) != "" {
		client, err := buildClient(ModelDefinition{Provider: cfg.Provider}, cfg)
		if err != nil {
			return nil, err
		}
		clients["default"] = client
		if cfg.DefaultModel == "" {
			cfg.DefaultModel = "default"
		}
	}

	if len(clients) == 0 {
		return nil, errors.New("未配置任何大模型提供方")
	}

	defaultModel := cfg.DefaultModel
	if defaultModel == "" {
		names := make([]string, 0, len(clients))
		for name := range clients {
			names = append(names, name)
		}
		sort.Strings(names)
		defaultModel = names[0]
	}
	if _, ok := clients[defaultModel]; !ok {
		return nil, fmt.Errorf("默认模型 %s 未在配置中找到", defaultModel)
	}

	return &Registry{defaultModel: defaultModel, clients: clients}, nil
}

func buildClient(def ModelDefinition, cfg config.LLMConfig) (llm.LLM, error) {
	providerType := strings.ToLower(strings.TrimSpace(def.Provider))
	if providerType == "" {
		providerType = strings.ToLower(strings.TrimSpace(cfg.Provider))
	}

	switch providerType {
	case "gemini":
		model := def.Model
		if model == "" {
			model = cfg.Gemini.Model
		}
		return google.NewGemini(google.GeminiConfig{
			APIKey:  cfg.Gemini.ResolveAPIKey(),
			BaseURL: cfg.Gemini.BaseURL,
			Model:   model,
			Timeout: time.Duration(cfg.Gemini.TimeoutSeconds) * time.Second,
			Params:  def.Params,
		})
	case "openai":
		model := def.Model
		if model == "" {
			model = cfg.OpenAI.Model
		}
		return openai.NewClient(openai.Config{
			APIKey:      cfg.OpenAI.ResolveAPIKey(),
			BaseURL:     cfg.OpenAI.BaseURL,
			Model:       model,
			Timeout:     time.Duration(cfg.OpenAI.TimeoutSeconds) * time.Second,
			Temperature: cfg.OpenAI.Temperature,
		})
	case "python_bridge":
		return pythonbridge.NewClient(
			cfg.PythonBridge.PythonExec,
			pythonbridge.ResolveScriptPath(cfg.PythonBridge.WorkingDir, cfg.PythonBridge.ScriptPath),
			cfg.PythonBridge.WorkingDir,
		)
	default:
		return nil, fmt.Errorf("不支持的提供方 %q: %w", providerType, llm.ErrNotConfigured)
	}
}

// DefaultClient returns the client configured as default model.
func (r *Registry) DefaultClient() (llm.LLM, error) {
	if r == nil {
		return nil, errors.New("未初始化的模型注册表")
	}
	client, ok := r.clients[r.defaultModel]
	if !ok {
		return nil, fmt.Errorf("默认模型 %s 未在注册表中", r.defaultModel)
	}
	return client, nil
}

// Client returns the model client identified by name.
func (r *Registry) Client(name string) (llm.LLM, bool) {
	if r == nil {
		return nil, false
	}
	client, ok := r.clients[name]
	return client, ok
}

// Models returns the list of registered model names.
func (r *Registry) Models() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
