// Package llm defines the provider-neutral model client used by the inference
// pipeline and the agent loop.
package llm

import (
	"context"

	"github.com/sashabaranov/go-openai/jsonschema"
)

// Role of a conversation turn
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	// RoleTool marks a turn that carries a tool result back to the model
	RoleTool Role = "tool"
)

// Turn is one entry of a conversation
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`

	// Assistant turns that requested tools
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// Tool turns
	ToolCallID string `json:"tool_call_id,omitempty"`
	Name       string `json:"name,omitempty"`
}

// ToolCall is a model-issued request to invoke a named tool
type ToolCall struct {
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// ToolSchema describes a tool offered to the model
type ToolSchema struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ChatRequest is one streaming submission of a conversation
type ChatRequest struct {
	System string
	Turns  []Turn
	Tools  []ToolSchema
}

// ChunkKind tags a streamed chunk
type ChunkKind int

const (
	ChunkText ChunkKind = iota
	ChunkToolCall
)

// Chunk is one element of a streamed model response
type Chunk struct {
	Kind     ChunkKind
	Text     string
	ToolCall ToolCall
}

// ChatStream yields chunks until io.EOF
type ChatStream interface {
	Recv() (Chunk, error)
	Close() error
}

// StructuredRequest asks the model for output conforming to Schema
type StructuredRequest struct {
	Name   string
	System string
	Prompt string
	Schema jsonschema.Definition
}

// TextGenerator generates free text
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string, maxOutputTokens int) (string, error)
}

// StructuredGenerator generates schema-constrained output decoded into out
type StructuredGenerator interface {
	GenerateStructured(ctx context.Context, req StructuredRequest, out any) error
}

// ChatStreamer streams a multi-turn conversation
type ChatStreamer interface {
	StreamChat(ctx context.Context, req ChatRequest) (ChatStream, error)
}

// Client is the full model client capability set
type Client interface {
	TextGenerator
	StructuredGenerator
	ChatStreamer
}
