package llm

import (
	"context"

	xerrors "QueryMind/internal/errors"
	"QueryMind/internal/memory"
	"QueryMind/internal/pipeline"
	"QueryMind/internal/prompts"
)

// LLM 定义了调用大模型的统一接口。所有提供方适配器都必须实现它。
type LLM interface {
	// Type 返回提供方标识，例如 "gemini"、"openai"。
	Type() string
	// Call 将指令发送给模型并返回原始文本。上下文中的会话记忆
	// 由各适配器按自身的提示词格式拼接。
	Call(ctx context.Context, instruction prompts.Prompt, pctx *pipeline.Context) (string, error)
}

const (
	CodeAPIKeyNotFound       xerrors.Code = "LLM_API_KEY_NOT_FOUND"
	CodeMethodNotImplemented xerrors.Code = "LLM_METHOD_NOT_IMPLEMENTED"
	CodeNoCodeFound          xerrors.Code = "LLM_NO_CODE_FOUND"
	CodeInvalidParameter     xerrors.Code = "LLM_INVALID_PARAMETER"
	CodeNotConfigured        xerrors.Code = "LLM_NOT_CONFIGURED"
)

var (
	// ErrAPIKeyNotFound 表示提供方密钥缺失或为空。
	ErrAPIKeyNotFound = xerrors.New(CodeAPIKeyNotFound, "API key has not been configured")
	// ErrMethodNotImplemented 表示调用了尚未由具体适配器实现的操作。
	ErrMethodNotImplemented = xerrors.New(CodeMethodNotImplemented, "method has not been implemented")
	// ErrNoCodeFound 表示未能从模型响应中提取出可执行代码。
	ErrNoCodeFound = xerrors.New(CodeNoCodeFound, "no code found in the response")
	// ErrNotConfigured 表示请求了未注册的提供方。
	ErrNotConfigured = xerrors.New(CodeNotConfigured, "llm provider has not been configured")
)

func init() {
	xerrors.Register(CodeAPIKeyNotFound, xerrors.Attributes{
		Message:  "llm api key not configured",
		Severity: xerrors.SeverityWarning,
		Alert:    true,
	})
	xerrors.Register(CodeMethodNotImplemented, xerrors.Attributes{
		Message:  "llm method not implemented",
		Severity: xerrors.SeverityWarning,
	})
	xerrors.Register(CodeNoCodeFound, xerrors.Attributes{
		Message:  "no code found in llm response",
		Severity: xerrors.SeverityInfo,
	})
	xerrors.Register(CodeInvalidParameter, xerrors.Attributes{
		Message:  "llm parameter out of range",
		Severity: xerrors.SeverityInfo,
	})
	xerrors.Register(CodeNotConfigured, xerrors.Attributes{
		Message:  "llm provider not configured",
		Severity: xerrors.SeverityWarning,
		Alert:    true,
	})
}

// GenerateCode 调用模型并从响应中提取可执行的 Python 代码。
// 模型调用失败时原样向上传递错误；提取失败时返回 ErrNoCodeFound。
func GenerateCode(ctx context.Context, model LLM, instruction prompts.Prompt, pctx *pipeline.Context) (string, error) {
	if model == nil {
		return "", ErrMethodNotImplemented
	}
	response, err := model.Call(ctx, instruction, pctx)
	if err != nil {
		return "", err
	}
	return ExtractCode(response, DefaultSeparator)
}

// PrependSystemPrompt 在提示词前拼接由会话记忆生成的系统提示。
// 记忆为空时原样返回提示词，适用于不支持消息列表的模型。
func PrependSystemPrompt(promptText string, mem *memory.Memory) string {
	if mem == nil || mem.IsEmpty() {
		return promptText
	}
	system := prompts.SystemMessagePrompt{Memory: mem}
	return system.ToString() + promptText
}

// Messages 返回会话记忆中的历史消息视图，供支持消息列表的模型直接使用。
func Messages(mem *memory.Memory) []memory.Turn {
	if mem == nil {
		return nil
	}
	return mem.GetMessages()
}
