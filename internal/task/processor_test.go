package task

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"QueryMind/internal/agent"
)

type fakeExecutor struct {
	processed atomic.Int32
	latency   time.Duration
}

func (f *fakeExecutor) Execute(ctx context.Context, req agent.QueryRequest) (*agent.QueryResult, error) {
	if f.latency > 0 {
		select {
		case <-time.After(f.latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.processed.Add(1)
	return &agent.QueryResult{Query: req.Query, Code: "result = 1", Output: "1"}, nil
}

func TestProcessorHandlesConcurrentTasks(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store := NewMemoryStore()
	queue := NewMemoryQueue(1024)
	executor := &fakeExecutor{latency: 10 * time.Millisecond}

	service := NewService(store, queue, 3)
	processor := NewProcessor(executor, store, queue, queue, WithWorkerCount(8))

	go func() {
		if err := processor.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("processor exited: %v", err)
		}
	}()

	total := 200
	for i := 0; i < total; i++ {
		query := fmt.Sprintf("query-%d", i)
		if _, err := service.Submit(ctx, agent.QueryRequest{Query: query}); err != nil {
			t.Fatalf("提交任务失败: %v", err)
		}
	}

	deadline := time.After(5 * time.Second)
	for {
		if int(executor.processed.Load()) >= total {
			cancel()
			break
		}
		select {
		case <-deadline:
			t.Fatalf("任务未能及时处理，已完成 %d", executor.processed.Load())
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func TestProcessorMarksTaskSucceeded(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store := NewMemoryStore()
	queue := NewMemoryQueue(16)
	executor := &fakeExecutor{}

	service := NewService(store, queue, 3)
	processor := NewProcessor(executor, store, queue, queue)

	go func() {
		_ = processor.Start(ctx)
	}()

	submitted, err := service.Submit(ctx, agent.QueryRequest{Query: "How many rows?", Dataset: "sales"})
	if err != nil {
		t.Fatalf("提交任务失败: %v", err)
	}

	done, err := service.WaitUntilCompleted(ctx, submitted.ID, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("等待任务完成失败: %v", err)
	}
	if done.Status != StatusSucceeded {
		t.Fatalf("unexpected status: %s", done.Status)
	}
	if done.Result == nil || done.Result.Output != "1" {
		t.Fatalf("unexpected result: %+v", done.Result)
	}
}

type recordingExecutor struct {
	request atomic.Pointer[agent.QueryRequest]
}

func (f *recordingExecutor) Execute(_ context.Context, req agent.QueryRequest) (*agent.QueryResult, error) {
	f.request.Store(&req)
	return &agent.QueryResult{Query: req.Query, Code: "result = 1", Output: "1"}, nil
}

func TestProcessorForwardsSchemaToExecutor(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store := NewMemoryStore()
	queue := NewMemoryQueue(16)
	executor := &recordingExecutor{}

	service := NewService(store, queue, 3)
	processor := NewProcessor(executor, store, queue, queue)

	go func() {
		_ = processor.Start(ctx)
	}()

	submitted, err := service.Submit(ctx, agent.QueryRequest{
		Query:   "How many customers?",
		Dataset: "sales",
		Schema:  "id INT, name TEXT",
	})
	if err != nil {
		t.Fatalf("提交任务失败: %v", err)
	}
	if submitted.Schema != "id INT, name TEXT" {
		t.Fatalf("任务未保留 schema: %+v", submitted)
	}

	if _, err := service.WaitUntilCompleted(ctx, submitted.ID, 10*time.Millisecond); err != nil {
		t.Fatalf("等待任务完成失败: %v", err)
	}

	seen := executor.request.Load()
	if seen == nil {
		t.Fatalf("执行器未收到请求")
	}
	if seen.Schema != "id INT, name TEXT" {
		t.Fatalf("执行器收到的 schema 不完整: %q", seen.Schema)
	}
}
