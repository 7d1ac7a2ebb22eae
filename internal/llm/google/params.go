package google

import (
	"fmt"

	xerrors "QueryMind/internal/errors"
	"QueryMind/internal/llm"
)

// Params 汇总 Google 系列模型的采样参数。
type Params struct {
	Temperature     float64
	TopP            float64
	TopK            int
	MaxOutputTokens int
}

// DefaultParams 返回与官方 SDK 一致的默认采样参数。
func DefaultParams() Params {
	return Params{
		Temperature:     0,
		TopP:            0.8,
		TopK:            40,
		MaxOutputTokens: 1000,
	}
}

// Set 按允许列表更新采样参数。列表外的键一律静默忽略，
// 这是沿用已有行为的宽松策略，参见仓库文档中的说明。
func (p *Params) Set(updates map[string]any) {
	for key, value := range updates {
		switch key {
		case "temperature":
			if v, ok := toFloat(value); ok {
				p.Temperature = v
			}
		case "top_p":
			if v, ok := toFloat(value); ok {
				p.TopP = v
			}
		case "top_k":
			if v, ok := toInt(value); ok {
				p.TopK = v
			}
		case "max_output_tokens":
			if v, ok := toInt(value); ok {
				p.MaxOutputTokens = v
			}
		}
	}
}

// Validate 校验采样参数的取值范围。按 temperature、top_p、top_k、
// max_output_tokens 的顺序检查，遇到第一个越界值即返回错误。
func (p Params) Validate() error {
	if p.Temperature < 0 || p.Temperature > 1 {
		return rangeError("temperature", "must be in the range [0.0, 1.0]")
	}
	if p.TopP < 0 || p.TopP > 1 {
		return rangeError("top_p", "must be in the range [0.0, 1.0]")
	}
	if p.TopK < 0 || p.TopK > 100 {
		return rangeError("top_k", "must be in the range [0, 100]")
	}
	if p.MaxOutputTokens <= 0 {
		return rangeError("max_output_tokens", "must be greater than zero")
	}
	return nil
}

func rangeError(name, requirement string) error {
	return xerrors.New(llm.CodeInvalidParameter,
		fmt.Sprintf("%s %s", name, requirement),
		xerrors.WithMetadata("parameter", name),
	)
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

func toInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}
