package usecases

import (
	"context"
	"fmt"
	"sync"

	"github.com/0xcro3dile/courserag/internal/domain/entities"
	"github.com/0xcro3dile/courserag/internal/domain/ports"
)

// ToolRegistry maps tool names to tools. Tools are registered while the
// service is wired; queries only read it.
type ToolRegistry struct {
	mu      sync.RWMutex
	tools   map[string]ports.Tool
	order   []string
	metrics ports.Metrics
}

// NewToolRegistry creates an empty registry.
func NewToolRegistry(metrics ports.Metrics) *ToolRegistry {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &ToolRegistry{
		tools:   make(map[string]ports.Tool),
		metrics: metrics,
	}
}

// Register adds a tool. Registering a name twice replaces the first tool.
func (r *ToolRegistry) Register(tool ports.Tool) error {
	name := tool.Definition().Name
	if name == "" {
		return fmt.Errorf("tool definition has no name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = tool
	return nil
}

// Definitions lists every tool in registration order.
func (r *ToolRegistry) Definitions() []entities.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]entities.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].Definition())
	}
	return defs
}

// Begin opens a per-query scope that collects the sources of the tool runs
// made through it. Concurrent queries never see each other's sources.
func (r *ToolRegistry) Begin() *ToolCalls {
	return &ToolCalls{registry: r}
}

// ToolCalls executes tools for a single query.
type ToolCalls struct {
	registry *ToolRegistry
	sources  []entities.Source
}

// Execute runs the named tool and returns its text for the model. An unknown
// name is reported as text, not as an error.
func (c *ToolCalls) Execute(ctx context.Context, name string, args map[string]any) (string, error) {
	c.registry.mu.RLock()
	tool, ok := c.registry.tools[name]
	c.registry.mu.RUnlock()
	if !ok {
		return fmt.Sprintf("Tool '%s' not found", name), nil
	}

	c.registry.metrics.ObserveToolCall(name)
	result, err := tool.Invoke(ctx, args)
	if err != nil {
		return "", err
	}
	c.sources = append(c.sources, result.Sources...)
	return result.Text, nil
}

// DrainSources returns the sources accumulated so far and forgets them.
func (c *ToolCalls) DrainSources() []entities.Source {
	sources := c.sources
	c.sources = nil
	return sources
}
