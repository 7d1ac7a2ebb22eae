// Package google 提供 Google 系列模型的共享基座与 Gemini 适配器。
//
// Base 负责采样参数（temperature、top_p、top_k、max_output_tokens）的
// 管理与校验，并记录最近一次提交的提示词；具体的提供方实现
// TextGenerator 接口完成文本生成。
package google
