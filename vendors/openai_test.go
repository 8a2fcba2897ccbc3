package vendors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai/jsonschema"
	"github.com/xiaoyuanzhu-com/hound/llm"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *OpenAIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewOpenAIClient(OpenAIConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL + "/v1",
		Model:   "test-model",
	})
	if err != nil {
		t.Fatalf("NewOpenAIClient: %v", err)
	}
	return client
}

func writeCompletion(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"id":"c1","object":"chat.completion","model":"test-model","choices":[{"index":0,"message":{"role":"assistant","content":%q},"finish_reason":"stop"}],"usage":{"prompt_tokens":1,"completion_tokens":1,"total_tokens":2}}`, content)
}

func writeStream(w http.ResponseWriter, chunks ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	for _, c := range chunks {
		fmt.Fprintf(w, "data: %s\n\n", c)
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
}

func TestNewOpenAIClient_RequiresKey(t *testing.T) {
	if _, err := NewOpenAIClient(OpenAIConfig{}); !errors.Is(err, llm.ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

func TestGenerateText(t *testing.T) {
	var body map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&body)
		writeCompletion(w, "task")
	})

	got, err := client.GenerateText(context.Background(), "classify this", 50)
	if err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	if got != "task" {
		t.Errorf("got %q, want task", got)
	}
	if body["max_tokens"] != float64(50) {
		t.Errorf("max_tokens = %v", body["max_tokens"])
	}
}

func TestGenerateText_ProviderError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"quota exceeded","type":"rate_limit"}}`)
	})

	_, err := client.GenerateText(context.Background(), "x", 10)
	var perr *llm.ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
}

func TestGenerateStructured(t *testing.T) {
	var body map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&body)
		writeCompletion(w, "```json\n{\"is_task\": true, \"confidence\": 0.8}\n```")
	})

	var out struct {
		IsTask     bool    `json:"is_task"`
		Confidence float64 `json:"confidence"`
	}
	err := client.GenerateStructured(context.Background(), llm.StructuredRequest{
		Name:   "task_extraction",
		System: "sys",
		Prompt: "user",
		Schema: jsonschema.Definition{Type: jsonschema.Object},
	}, &out)
	if err != nil {
		t.Fatalf("GenerateStructured: %v", err)
	}
	if !out.IsTask || out.Confidence != 0.8 {
		t.Errorf("unexpected decode: %+v", out)
	}

	format, _ := body["response_format"].(map[string]any)
	if format["type"] != "json_schema" {
		t.Errorf("response_format = %v", body["response_format"])
	}
	messages, _ := body["messages"].([]any)
	if len(messages) != 2 {
		t.Errorf("expected system and user messages, got %d", len(messages))
	}
}

func TestGenerateStructured_ValidationError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeCompletion(w, "I cannot answer that")
	})

	var out map[string]any
	err := client.GenerateStructured(context.Background(), llm.StructuredRequest{Name: "x"}, &out)
	if !llm.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestStreamChat_TextAndToolCalls(t *testing.T) {
	var body map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&body)
		writeStream(w,
			`{"id":"s","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"role":"assistant","content":"Let me "}}]}`,
			`{"id":"s","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":"check."}}]}`,
			`{"id":"s","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_a","type":"function","function":{"name":"list_proposals","arguments":"{\"lim"}}]}}]}`,
			`{"id":"s","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"it\": 2}"}}]}}]}`,
			`{"id":"s","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"tool_calls":[{"index":1,"id":"call_b","type":"function","function":{"name":"get_current_time","arguments":""}}]}}]}`,
			`{"id":"s","object":"chat.completion.chunk","choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}`,
		)
	})

	stream, err := client.StreamChat(context.Background(), llm.ChatRequest{
		System: "You are Hound",
		Turns: []llm.Turn{
			{Role: llm.RoleUser, Content: "what's pending?"},
			{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{{ID: "call_0", Name: "get_current_time", Args: map[string]any{}}}},
			{Role: llm.RoleTool, Content: `{"now":"x"}`, ToolCallID: "call_0", Name: "get_current_time"},
		},
		Tools: []llm.ToolSchema{{Name: "list_proposals", Description: "List proposals"}},
	})
	if err != nil {
		t.Fatalf("StreamChat: %v", err)
	}
	defer stream.Close()

	var chunks []llm.Chunk
	for {
		c, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Recv: %v", err)
		}
		chunks = append(chunks, c)
	}

	if len(chunks) != 4 {
		t.Fatalf("expected 2 text and 2 tool chunks, got %d: %+v", len(chunks), chunks)
	}
	var text strings.Builder
	for _, c := range chunks[:2] {
		if c.Kind != llm.ChunkText {
			t.Fatalf("expected text chunk, got %+v", c)
		}
		text.WriteString(c.Text)
	}
	if text.String() != "Let me check." {
		t.Errorf("text = %q", text.String())
	}

	first, second := chunks[2].ToolCall, chunks[3].ToolCall
	if first.ID != "call_a" || first.Name != "list_proposals" || first.Args["limit"] != float64(2) {
		t.Errorf("first call = %+v", first)
	}
	if second.ID != "call_b" || second.Name != "get_current_time" || len(second.Args) != 0 {
		t.Errorf("second call = %+v", second)
	}

	messages, _ := body["messages"].([]any)
	if len(messages) != 4 {
		t.Fatalf("expected system + 3 turns, got %d", len(messages))
	}
	toolMsg := messages[3].(map[string]any)
	if toolMsg["role"] != "tool" || toolMsg["tool_call_id"] != "call_0" {
		t.Errorf("tool message = %v", toolMsg)
	}
	tools, _ := body["tools"].([]any)
	if len(tools) != 1 {
		t.Errorf("expected 1 tool, got %d", len(tools))
	}
}

func TestStreamChat_ToolCallsFlushedAtEOF(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeStream(w,
			`{"id":"s","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_a","type":"function","function":{"name":"ping","arguments":"{}"}}]}}]}`,
		)
	})

	stream, err := client.StreamChat(context.Background(), llm.ChatRequest{Turns: []llm.Turn{{Role: llm.RoleUser, Content: "hi"}}})
	if err != nil {
		t.Fatalf("StreamChat: %v", err)
	}
	defer stream.Close()

	c, err := stream.Recv()
	if err != nil || c.Kind != llm.ChunkToolCall || c.ToolCall.Name != "ping" {
		t.Fatalf("got %+v, %v", c, err)
	}
	if _, err := stream.Recv(); !errors.Is(err, io.EOF) {
		t.Errorf("expected EOF, got %v", err)
	}
}
