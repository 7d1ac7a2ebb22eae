// Package prompts 定义发送给大模型的指令对象。每个提示词自行渲染为纯文本，
// 提供方适配器无需关心模板细节。
package prompts
