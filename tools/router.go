package tools

import (
	"context"
	"fmt"

	"github.com/xiaoyuanzhu-com/hound/agent"
	"github.com/xiaoyuanzhu-com/hound/llm"
)

var _ agent.ToolExecutor = (*Router)(nil)

// Router dispatches a tool call to the first executor that serves the name
type Router struct {
	executors []Executor
}

// NewRouter composes executors; earlier executors win on name clashes
func NewRouter(executors ...Executor) *Router {
	r := &Router{}
	for _, e := range executors {
		if e != nil {
			r.executors = append(r.executors, e)
		}
	}
	return r
}

// Empty reports whether the router serves no tools
func (r *Router) Empty() bool {
	return len(r.Schemas()) == 0
}

// Has reports whether any executor serves the name
func (r *Router) Has(name string) bool {
	for _, e := range r.executors {
		if e.Has(name) {
			return true
		}
	}
	return false
}

// Schemas returns every distinct tool schema
func (r *Router) Schemas() []llm.ToolSchema {
	seen := make(map[string]bool)
	var schemas []llm.ToolSchema
	for _, e := range r.executors {
		for _, s := range e.Schemas() {
			if seen[s.Name] {
				continue
			}
			seen[s.Name] = true
			schemas = append(schemas, s)
		}
	}
	return schemas
}

// Execute runs the named tool
func (r *Router) Execute(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
	for _, e := range r.executors {
		if e.Has(name) {
			return e.Execute(ctx, name, args)
		}
	}
	return nil, fmt.Errorf("unknown tool: %s", name)
}
