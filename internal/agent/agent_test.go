package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	xerrors "QueryMind/internal/errors"
	"QueryMind/internal/pipeline"
	"QueryMind/internal/prompts"
	"QueryMind/internal/sandbox"
)

type stubModel struct {
	resp string
	err  error
	wait time.Duration
}

func (s *stubModel) Type() string { return "stub" }

func (s *stubModel) Call(ctx context.Context, instruction prompts.Prompt, pctx *pipeline.Context) (string, error) {
	if s.wait > 0 {
		select {
		case <-time.After(s.wait):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if s.err != nil {
		return "", s.err
	}
	return s.resp, nil
}

type stubRunner struct {
	result *sandbox.Result
	errs   []error
	calls  int
}

func (s *stubRunner) Run(ctx context.Context, code string) (*sandbox.Result, error) {
	idx := s.calls
	s.calls++
	if idx < len(s.errs) && s.errs[idx] != nil {
		return nil, s.errs[idx]
	}
	return s.result, nil
}

func TestAgentExecuteSuccess(t *testing.T) {
	model := &stubModel{resp: "```python\nresult = df.shape[0]\nprint(result)\n```"}
	runner := &stubRunner{result: &sandbox.Result{Stdout: "42"}}
	ag := New(model, runner, nil)

	result, err := ag.Execute(context.Background(), QueryRequest{Query: "How many rows?", Dataset: "sales"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Code != "result = df.shape[0]\nprint(result)" {
		t.Fatalf("unexpected code: %q", result.Code)
	}
	if result.Output != "42" {
		t.Fatalf("unexpected output: %q", result.Output)
	}
	if ag.Memory().Count() != 2 {
		t.Fatalf("expected question and code in memory, got %d turns", ag.Memory().Count())
	}
}

func TestAgentExecuteEmptyQuery(t *testing.T) {
	ag := New(&stubModel{resp: "```python\npass\n```"}, nil, nil)
	if _, err := ag.Execute(context.Background(), QueryRequest{}); err == nil {
		t.Fatalf("expected error for empty query")
	}
}

func TestAgentExecuteTimeout(t *testing.T) {
	model := &stubModel{wait: 50 * time.Millisecond}
	ag := New(model, nil, nil, WithLLMTimeout(10*time.Millisecond))

	_, err := ag.Execute(context.Background(), QueryRequest{Query: "测试"})
	if err == nil {
		t.Fatalf("expected timeout error")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context deadline exceeded, got %v", err)
	}
}

func TestAgentExecuteRetriesAfterRunFailure(t *testing.T) {
	model := &stubModel{resp: "```python\nresult = 1\nprint(result)\n```"}
	runner := &stubRunner{
		result: &sandbox.Result{Stdout: "1"},
		errs:   []error{errors.New("NameError: name 'df' is not defined")},
	}
	ag := New(model, runner, nil, WithMaxRetries(1))

	result, err := ag.Execute(context.Background(), QueryRequest{Query: "计数"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if runner.calls != 2 {
		t.Fatalf("expected 2 run attempts, got %d", runner.calls)
	}
	if result.Output != "1" {
		t.Fatalf("unexpected output: %q", result.Output)
	}
}

func TestAgentExecuteRetriesExhausted(t *testing.T) {
	model := &stubModel{resp: "```python\nresult = 1\n```"}
	runner := &stubRunner{errs: []error{errors.New("boom"), errors.New("boom")}}
	ag := New(model, runner, nil, WithMaxRetries(1))

	_, err := ag.Execute(context.Background(), QueryRequest{Query: "计数"})
	if err == nil {
		t.Fatalf("expected error when retries are exhausted")
	}
	typed, ok := xerrors.From(err)
	if !ok {
		t.Fatalf("期望返回带错误码的错误，实际为 %v", err)
	}
	if got := typed.Metadata()["attempts"]; got != "2" {
		t.Fatalf("错误应记录尝试次数 2，实际为 %q", got)
	}
}
