package prompts

import (
	"fmt"
	"strings"

	"QueryMind/internal/memory"
)

// Prompt 是发送给大模型的指令对象的统一抽象。
type Prompt interface {
	ToString() string
}

// Text 将一段固定文本包装为 Prompt，主要用于测试与简单调用。
type Text string

// ToString 实现 Prompt 接口。
func (t Text) ToString() string {
	return string(t)
}

// defaultAgentDescription 在会话未指定角色描述时使用。
const defaultAgentDescription = "You are QueryMind, a data analysis assistant. " +
	"You answer questions about tabular datasets by writing Python code."

// SystemMessagePrompt 基于会话记忆渲染系统提示，
// 包含助手角色描述与此前的对话内容。
type SystemMessagePrompt struct {
	Memory *memory.Memory
}

// ToString 实现 Prompt 接口。
func (p SystemMessagePrompt) ToString() string {
	var builder strings.Builder

	description := defaultAgentDescription
	if p.Memory != nil && p.Memory.AgentDescription() != "" {
		description = p.Memory.AgentDescription()
	}
	builder.WriteString(description)
	builder.WriteString("\n")

	if p.Memory != nil && !p.Memory.IsEmpty() {
		builder.WriteString("\n## Previous conversation\n")
		builder.WriteString(p.Memory.GetPreviousConversation())
		builder.WriteString("\n")
	}
	return builder.String()
}

// GenerateCodePrompt 要求大模型针对给定数据集与问题生成 Python 分析代码。
type GenerateCodePrompt struct {
	Query       string
	DatasetName string
	Schema      string
	Hints       []string
}

// ToString 实现 Prompt 接口。
func (p GenerateCodePrompt) ToString() string {
	var builder strings.Builder

	builder.WriteString("## Dataset\n")
	if strings.TrimSpace(p.DatasetName) != "" {
		builder.WriteString(fmt.Sprintf("Name: %s\n", strings.TrimSpace(p.DatasetName)))
	}
	if strings.TrimSpace(p.Schema) != "" {
		builder.WriteString(fmt.Sprintf("Schema:\n%s\n", strings.TrimSpace(p.Schema)))
	}

	if len(p.Hints) > 0 {
		builder.WriteString("\n## Notes\n")
		for idx, hint := range p.Hints {
			hint = strings.TrimSpace(hint)
			if hint == "" {
				continue
			}
			builder.WriteString(fmt.Sprintf("[%d] %s\n", idx+1, hint))
			if idx >= 4 {
				break
			}
		}
	}

	builder.WriteString("\n## Question\n")
	builder.WriteString(strings.TrimSpace(p.Query))
	builder.WriteString("\n\nWrite Python code that loads the dataset as `df` and answers the question. " +
		"Assign the final answer to a variable named `result` and print it. " +
		"Respond with a single fenced code block.")
	return builder.String()
}
