package plugin

import "context"

// Plugin is the contract dataset connectors and other extensions
// implement. The manager drives the hooks strictly in the order
// Configure, Init, Start, Stop.
type Plugin interface {
	// Info reports static metadata such as id, version and required
	// capabilities.
	Info() Info
	// Configure receives the plugin's config block before Init and may
	// rewrite it to fill in defaults.
	Configure(cfg map[string]any) error
	// Init acquires whatever the plugin needs before going live.
	Init(ctx *ExecutionContext) error
	// Start brings the plugin online; long running work belongs in
	// goroutines started here.
	Start(ctx *ExecutionContext) error
	// Stop winds the plugin down and releases its resources.
	Stop(ctx *ExecutionContext) error
}

// ExecutionContext carries everything a lifecycle hook may touch.
type ExecutionContext struct {
	// C carries cancellation and deadlines.
	C context.Context
	// Config is this plugin's block from the manager configuration.
	Config map[string]any
	// Resources holds host services, e.g. the dataset:register sink the
	// daemon exposes to connector plugins.
	Resources map[string]any
}

// Clone copies the context maps so one plugin cannot poison another's
// view.
func (c *ExecutionContext) Clone() *ExecutionContext {
	if c == nil {
		return nil
	}
	dup := *c
	if c.Config != nil {
		dup.Config = make(map[string]any, len(c.Config))
		for k, v := range c.Config {
			dup.Config[k] = v
		}
	}
	if c.Resources != nil {
		dup.Resources = make(map[string]any, len(c.Resources))
		for k, v := range c.Resources {
			dup.Resources[k] = v
		}
	}
	return &dup
}

// Option customises a Manager at construction time.
type Option func(*Manager)

// WithLoader swaps the .so loader, mainly for tests.
func WithLoader(loader Loader) Option {
	return func(m *Manager) {
		if loader != nil {
			m.loader = loader
		}
	}
}

// WithIsolationStrategy replaces how capability policies are enforced.
func WithIsolationStrategy(strategy IsolationStrategy) Option {
	return func(m *Manager) {
		if strategy != nil {
			m.isolation = strategy
		}
	}
}

// WithResource publishes a host service to every plugin under key.
func WithResource(key string, value any) Option {
	return func(m *Manager) {
		if key == "" || value == nil {
			return
		}
		if m.resources == nil {
			m.resources = make(map[string]any)
		}
		m.resources[key] = value
	}
}
