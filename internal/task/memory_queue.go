package task

import (
	"context"
	"errors"
	"sync"
)

// MemoryQueue 是基于 channel 的进程内队列，单机部署与
// 单元测试都用它，不依赖任何外部中间件。
type MemoryQueue struct {
	pending chan string
	mu      sync.Mutex
	closed  bool
}

// NewMemoryQueue 创建容量为 size 的内存队列。
func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 64
	}
	return &MemoryQueue{pending: make(chan string, size)}
}

// Publish 投递任务 ID，队列满时阻塞直到 ctx 取消。
func (q *MemoryQueue) Publish(ctx context.Context, taskID string) error {
	q.mu.Lock()
	closed := q.closed
	q.mu.Unlock()
	if closed {
		return errors.New("队列已关闭")
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case q.pending <- taskID:
		return nil
	}
}

// Consume 起 workerCount 个协程循环消费，直到 ctx 取消。
func (q *MemoryQueue) Consume(ctx context.Context, workerCount int, handler Handler) error {
	if workerCount <= 0 {
		workerCount = 1
	}
	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case taskID, ok := <-q.pending:
					if !ok {
						return
					}
					_ = handler(ctx, taskID)
				}
			}
		}()
	}
	<-ctx.Done()
	wg.Wait()
	return ctx.Err()
}

// Close 关闭队列，重复调用安全。
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	if !q.closed {
		close(q.pending)
		q.closed = true
	}
	q.mu.Unlock()
	return nil
}
