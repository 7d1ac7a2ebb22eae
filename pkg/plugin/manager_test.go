package plugin

import (
	"context"
	"errors"
	"testing"
)

type stubPlugin struct {
	info       Info
	configured map[string]any
	started    bool
	stopped    bool
	records    []map[string]any
}

func (s *stubPlugin) Info() Info { return s.info }

func (s *stubPlugin) Configure(cfg map[string]any) error {
	s.configured = cfg
	return nil
}

func (s *stubPlugin) Init(*ExecutionContext) error { return nil }

func (s *stubPlugin) Start(ctx *ExecutionContext) error {
	register, ok := ctx.Resources["dataset:register"].(func(context.Context, map[string]any) error)
	if !ok {
		return errors.New("dataset register resource not provided")
	}
	s.started = true
	return register(ctx.C, map[string]any{"title": "orders", "content": "订单明细表"})
}

func (s *stubPlugin) Stop(*ExecutionContext) error {
	s.stopped = true
	return nil
}

func TestManagerLifecycle(t *testing.T) {
	var registered []map[string]any
	manager, err := NewManager(ManagerConfig{},
		WithResource("dataset:register", func(_ context.Context, record map[string]any) error {
			registered = append(registered, record)
			return nil
		}),
	)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	stub := &stubPlugin{info: Info{ID: "stub", Category: TypeDataSource}}
	if err := manager.Register("stub", stub, map[string]any{"entries": []any{}}, IsolationPolicy{}); err != nil {
		t.Fatalf("register: %v", err)
	}

	ctx := context.Background()
	if err := manager.StartAll(ctx); err != nil {
		t.Fatalf("start all: %v", err)
	}
	if !stub.started {
		t.Fatal("plugin was not started")
	}
	if len(registered) != 1 || registered[0]["title"] != "orders" {
		t.Fatalf("unexpected registrations: %v", registered)
	}
	state, err := manager.State("stub")
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if state != StateStarted {
		t.Fatalf("expected started state, got %s", state)
	}

	if err := manager.StopAll(ctx); err != nil {
		t.Fatalf("stop all: %v", err)
	}
	if !stub.stopped {
		t.Fatal("plugin was not stopped")
	}
}

func TestManagerRejectsCapabilitiesWithoutPolicy(t *testing.T) {
	manager, err := NewManager(ManagerConfig{})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	stub := &stubPlugin{info: Info{
		ID:           "net",
		Category:     TypeDataSource,
		Capabilities: []Capability{CapabilityNetwork},
	}}
	if err := manager.Register("net", stub, nil, IsolationPolicy{}); err == nil {
		t.Fatal("expected capability policy error")
	}
}
