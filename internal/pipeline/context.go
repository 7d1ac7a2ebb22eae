package pipeline

import "QueryMind/internal/memory"

// Context 贯穿一次分析请求的处理流程，携带会话记忆与请求级元数据。
// 适配器只读使用其中的内容。
type Context struct {
	Memory   *memory.Memory
	Dataset  string
	Metadata map[string]any
}

// New 创建携带指定会话记忆的流程上下文。
func New(mem *memory.Memory) *Context {
	return &Context{Memory: mem}
}

// WithDataset 记录本次请求针对的数据集名称。
func (c *Context) WithDataset(name string) *Context {
	if c == nil {
		return nil
	}
	c.Dataset = name
	return c
}

// Mem 返回上下文中的会话记忆，上下文为空时返回 nil。
func (c *Context) Mem() *memory.Memory {
	if c == nil {
		return nil
	}
	return c.Memory
}
