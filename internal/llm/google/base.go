package google

import (
	"context"
	"sync"

	"QueryMind/internal/llm"
	"QueryMind/internal/memory"
	"QueryMind/internal/pipeline"
	"QueryMind/internal/prompts"
)

// TextGenerator 是 Google 系列模型的底层文本生成调用，
// 由具体的网络客户端实现。
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string, mem *memory.Memory) (string, error)
}

// Base 为 Google 系列模型提供共享的调用骨架：参数管理、
// 提示词记录以及向具体 TextGenerator 的委托。
type Base struct {
	params    Params
	generator TextGenerator

	mu         sync.Mutex
	lastPrompt string
}

// NewBase 构造 Base。generator 为空时 Call 会返回未实现错误。
func NewBase(generator TextGenerator) *Base {
	return &Base{
		params:    DefaultParams(),
		generator: generator,
	}
}

// SetParams 按允许列表更新采样参数，未知键被静默忽略。
func (b *Base) SetParams(updates map[string]any) {
	b.params.Set(updates)
}

// Params 返回当前采样参数的副本。
func (b *Base) Params() Params {
	return b.params
}

// Validate 校验当前采样参数。
func (b *Base) Validate() error {
	return b.params.Validate()
}

// LastPrompt 返回最近一次 Call 发送的提示词，用于诊断。
func (b *Base) LastPrompt() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastPrompt
}

// Call 记录提示词、从流程上下文中取出会话记忆，并委托给底层的
// 文本生成调用。
func (b *Base) Call(ctx context.Context, instruction prompts.Prompt, pctx *pipeline.Context) (string, error) {
	if b == nil || b.generator == nil {
		return "", llm.ErrMethodNotImplemented
	}

	prompt := instruction.ToString()
	b.mu.Lock()
	b.lastPrompt = prompt
	b.mu.Unlock()

	return b.generator.GenerateText(ctx, prompt, pctx.Mem())
}
