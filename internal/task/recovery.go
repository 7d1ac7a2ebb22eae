package task

import "context"

// RecoveryHandler 在分析任务重试耗尽后提供补偿策略。
type RecoveryHandler interface {
	// Recover 根据失败原因尝试生成降级结果。返回非 nil 的
	// ExecutionResult 时任务以该结果收尾；返回 nil 则按失败处理。
	Recover(ctx context.Context, task *Task, cause error) (*ExecutionResult, error)
}
