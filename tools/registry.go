// Package tools provides the tool executors offered to the agent loop:
// in-process tools, tools served by a remote MCP server, and a router that
// composes them.
package tools

import (
	"context"
	"fmt"
	"sync"

	"github.com/xiaoyuanzhu-com/hound/llm"
	"github.com/xiaoyuanzhu-com/hound/log"
)

var logger = log.GetLogger("Tools")

// Handler runs an in-process tool
type Handler func(ctx context.Context, args map[string]any) (map[string]any, error)

// Tool is an in-process tool definition
type Tool struct {
	Schema  llm.ToolSchema
	Handler Handler
}

// Executor is a tool executor that can describe the tools it serves
type Executor interface {
	Execute(ctx context.Context, name string, args map[string]any) (map[string]any, error)
	Schemas() []llm.ToolSchema
	Has(name string) bool
}

// Registry holds in-process tools by name
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool, replacing any tool of the same name
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[t.Schema.Name]; !exists {
		r.order = append(r.order, t.Schema.Name)
	}
	r.tools[t.Schema.Name] = t
}

// Has reports whether a tool is registered
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// Schemas returns tool schemas in registration order
func (r *Registry) Schemas() []llm.ToolSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schemas := make([]llm.ToolSchema, 0, len(r.order))
	for _, name := range r.order {
		schemas = append(schemas, r.tools[name].Schema)
	}
	return schemas
}

// Execute runs a registered tool
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
	if args == nil {
		args = map[string]any{}
	}
	return t.Handler(ctx, args)
}
