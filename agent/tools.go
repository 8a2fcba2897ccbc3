package agent

import "context"

// ToolExecutor runs a named tool. Unknown names and execution failures are
// returned as errors; the loop turns them into {"error": ...} results.
type ToolExecutor interface {
	Execute(ctx context.Context, name string, args map[string]any) (map[string]any, error)
}

// ToolExecutorFunc adapts a function to ToolExecutor
type ToolExecutorFunc func(ctx context.Context, name string, args map[string]any) (map[string]any, error)

// Execute calls f
func (f ToolExecutorFunc) Execute(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
	return f(ctx, name, args)
}
