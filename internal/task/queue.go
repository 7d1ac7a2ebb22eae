package task

import (
	"context"
)

// Handler 消费一条待处理的分析任务 ID。
type Handler func(ctx context.Context, taskID string) error

// Producer 把新提交的分析任务投递到队列。
type Producer interface {
	Publish(ctx context.Context, taskID string) error
	Close() error
}

// Consumer 从队列拉取任务交给处理器执行。
type Consumer interface {
	Consume(ctx context.Context, workerCount int, handler Handler) error
	Close() error
}

// Queue 同时承担投递与消费两侧的能力，内存实现与
// Redis、RabbitMQ 实现都满足该接口。
type Queue interface {
	Producer
	Consumer
}
