package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/xiaoyuanzhu-com/hound/llm"
)

// MCPExecutor executes tools served by a remote MCP server
type MCPExecutor struct {
	session *gomcp.ClientSession
	schemas []llm.ToolSchema
	names   map[string]bool
}

// NewMCPTransport builds a client transport from configuration: a streamable
// HTTP endpoint when url is set, otherwise a stdio subprocess running command.
func NewMCPTransport(url, command string) (gomcp.Transport, error) {
	if url != "" {
		return &gomcp.StreamableClientTransport{Endpoint: url}, nil
	}

	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, errors.New("no MCP server configured")
	}
	return &gomcp.CommandTransport{Command: exec.Command(fields[0], fields[1:]...)}, nil
}

// ConnectMCP connects to an MCP server and caches its tool list
func ConnectMCP(ctx context.Context, transport gomcp.Transport, version string) (*MCPExecutor, error) {
	if version == "" {
		version = "dev"
	}

	client := gomcp.NewClient(&gomcp.Implementation{Name: "hound", Version: version}, nil)
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("mcp connect: %w", err)
	}

	e := &MCPExecutor{session: session, names: make(map[string]bool)}
	if err := e.loadTools(ctx); err != nil {
		session.Close()
		return nil, err
	}

	logger.Info().Int("tools", len(e.schemas)).Msg("connected to MCP server")
	return e, nil
}

func (e *MCPExecutor) loadTools(ctx context.Context) error {
	params := &gomcp.ListToolsParams{}
	for {
		res, err := e.session.ListTools(ctx, params)
		if err != nil {
			return fmt.Errorf("mcp list tools: %w", err)
		}

		for _, t := range res.Tools {
			parameters, err := schemaToMap(t.InputSchema)
			if err != nil {
				logger.Warn().Err(err).Str("tool", t.Name).Msg("skipping tool with unreadable input schema")
				continue
			}
			e.schemas = append(e.schemas, llm.ToolSchema{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  parameters,
			})
			e.names[t.Name] = true
		}

		if res.NextCursor == "" {
			return nil
		}
		params = &gomcp.ListToolsParams{Cursor: res.NextCursor}
	}
}

// Schemas returns the server's tools
func (e *MCPExecutor) Schemas() []llm.ToolSchema {
	return e.schemas
}

// Has reports whether the server offers a tool
func (e *MCPExecutor) Has(name string) bool {
	return e.names[name]
}

// Execute calls a tool on the server. Tool-level failures (IsError) become Go
// errors carrying the tool's text.
func (e *MCPExecutor) Execute(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
	if !e.names[name] {
		return nil, fmt.Errorf("unknown tool: %s", name)
	}

	res, err := e.session.CallTool(ctx, &gomcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		return nil, fmt.Errorf("mcp call %s: %w", name, err)
	}

	text := contentText(res.Content)
	if res.IsError {
		if text == "" {
			text = "tool reported an error"
		}
		return nil, errors.New(text)
	}

	if res.StructuredContent != nil {
		if structured, err := schemaToMap(res.StructuredContent); err == nil {
			return structured, nil
		}
	}
	return map[string]any{"result": text}, nil
}

// Close ends the MCP session
func (e *MCPExecutor) Close() error {
	return e.session.Close()
}

func contentText(content []gomcp.Content) string {
	var parts []string
	for _, c := range content {
		if tc, ok := c.(*gomcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// schemaToMap normalizes a JSON-encodable value into a JSON object
func schemaToMap(v any) (map[string]any, error) {
	if v == nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
