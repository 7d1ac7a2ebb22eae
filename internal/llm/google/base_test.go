package google

import (
	"context"
	"errors"
	"testing"

	"QueryMind/internal/llm"
	"QueryMind/internal/memory"
	"QueryMind/internal/pipeline"
	"QueryMind/internal/prompts"
)

type stubGenerator struct {
	response string
	err      error
	prompt   string
	mem      *memory.Memory
}

func (s *stubGenerator) GenerateText(_ context.Context, prompt string, mem *memory.Memory) (string, error) {
	s.prompt = prompt
	s.mem = mem
	return s.response, s.err
}

func TestBaseCallRecordsLastPrompt(t *testing.T) {
	generator := &stubGenerator{response: "```python\nprint(1)\n```"}
	base := NewBase(generator)

	mem := memory.New()
	pctx := pipeline.New(mem)
	response, err := base.Call(context.Background(), prompts.Text("count the rows"), pctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if response != generator.response {
		t.Fatalf("unexpected response: %q", response)
	}
	if base.LastPrompt() != "count the rows" {
		t.Fatalf("unexpected last prompt: %q", base.LastPrompt())
	}
	if generator.mem != mem {
		t.Fatal("memory was not forwarded to the generator")
	}
}

func TestBaseCallNilGenerator(t *testing.T) {
	base := NewBase(nil)
	_, err := base.Call(context.Background(), prompts.Text("q"), pipeline.New(nil))
	if !errors.Is(err, llm.ErrMethodNotImplemented) {
		t.Fatalf("expected ErrMethodNotImplemented, got %v", err)
	}
}

func TestBaseCallPropagatesGeneratorError(t *testing.T) {
	wantErr := errors.New("quota exceeded")
	base := NewBase(&stubGenerator{err: wantErr})

	_, err := base.Call(context.Background(), prompts.Text("q"), pipeline.New(nil))
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected generator error, got %v", err)
	}
}

func TestBaseSetParams(t *testing.T) {
	base := NewBase(&stubGenerator{})
	base.SetParams(map[string]any{"temperature": 1.5})
	if err := base.Validate(); err == nil {
		t.Fatal("expected validation to fail after out-of-range update")
	}
	base.SetParams(map[string]any{"temperature": 0.3})
	if err := base.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
	if base.Params().Temperature != 0.3 {
		t.Fatalf("unexpected temperature: %v", base.Params().Temperature)
	}
}
