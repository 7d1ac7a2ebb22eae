// Package pipeline 定义分析请求在各组件之间传递的上下文对象。
package pipeline
