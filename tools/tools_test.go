package tools

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/xiaoyuanzhu-com/hound/models"
)

// --- Fake implementations ---

type fakeStore struct {
	proposals []models.TaskProposal
	listErr   error
	lastLimit int
}

func (f *fakeStore) ListProposals(entityID string, limit int) ([]models.TaskProposal, error) {
	f.lastLimit = limit
	return f.proposals, f.listErr
}

func (f *fakeStore) RemoveProposal(entityID, proposalID string) (bool, error) {
	for i, p := range f.proposals {
		if p.ProposalID == proposalID {
			f.proposals = append(f.proposals[:i], f.proposals[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func newStore() *fakeStore {
	return &fakeStore{proposals: []models.TaskProposal{
		{ProposalID: "p1", Title: "Send report", Priority: models.PriorityHigh, Source: models.SourceSlack, DueDate: "2024-01-05"},
		{ProposalID: "p2", Title: "Review PR", Priority: models.PriorityLow, Source: models.SourceGmail},
	}}
}

// --- Builtin Tests ---

func TestBuiltins_ListProposals(t *testing.T) {
	store := newStore()
	r := NewBuiltinRegistry(BuiltinOptions{EntityID: "alice", Store: store})

	out, err := r.Execute(context.Background(), "list_proposals", map[string]any{"limit": float64(5)})
	if err != nil {
		t.Fatal(err)
	}
	if out["count"] != 2 {
		t.Errorf("count = %v", out["count"])
	}
	if store.lastLimit != 5 {
		t.Errorf("limit = %d, want 5", store.lastLimit)
	}
	items := out["proposals"].([]map[string]any)
	if items[0]["due_date"] != "2024-01-05" {
		t.Errorf("unexpected item: %v", items[0])
	}
	if _, ok := items[1]["due_date"]; ok {
		t.Errorf("empty due date should be omitted: %v", items[1])
	}
}

func TestBuiltins_ListProposalsClampsLimit(t *testing.T) {
	store := newStore()
	r := NewBuiltinRegistry(BuiltinOptions{EntityID: "alice", Store: store})

	r.Execute(context.Background(), "list_proposals", map[string]any{"limit": float64(500)})
	if store.lastLimit != maxListLimit {
		t.Errorf("limit = %d, want %d", store.lastLimit, maxListLimit)
	}
}

func TestBuiltins_DismissProposal(t *testing.T) {
	store := newStore()
	var dismissed string
	r := NewBuiltinRegistry(BuiltinOptions{
		EntityID:  "alice",
		Store:     store,
		OnDismiss: func(entityID, id string) { dismissed = entityID + "/" + id },
	})

	out, err := r.Execute(context.Background(), "dismiss_proposal", map[string]any{"proposal_id": "p1"})
	if err != nil {
		t.Fatal(err)
	}
	if out["dismissed"] != true || dismissed != "alice/p1" {
		t.Errorf("unexpected result %v, hook %q", out, dismissed)
	}

	if _, err := r.Execute(context.Background(), "dismiss_proposal", map[string]any{"proposal_id": "p1"}); err == nil {
		t.Error("expected not-found error on second dismissal")
	}
	if _, err := r.Execute(context.Background(), "dismiss_proposal", nil); err == nil {
		t.Error("expected error for missing proposal_id")
	}
}

func TestBuiltins_StoreErrorPropagates(t *testing.T) {
	r := NewBuiltinRegistry(BuiltinOptions{EntityID: "alice", Store: &fakeStore{listErr: errors.New("disk full")}})
	if _, err := r.Execute(context.Background(), "list_proposals", nil); err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Errorf("expected wrapped store error, got %v", err)
	}
}

func TestBuiltins_CurrentTime(t *testing.T) {
	now := time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC)
	r := NewBuiltinRegistry(BuiltinOptions{Now: func() time.Time { return now }})

	out, err := r.Execute(context.Background(), "get_current_time", nil)
	if err != nil {
		t.Fatal(err)
	}
	if out["datetime"] != "2024-01-03T10:00:00Z" || out["weekday"] != "Wednesday" {
		t.Errorf("unexpected time: %v", out)
	}
}

func TestBuiltins_NoStoreOnlyClock(t *testing.T) {
	r := NewBuiltinRegistry(BuiltinOptions{})
	schemas := r.Schemas()
	if len(schemas) != 1 || schemas[0].Name != "get_current_time" {
		t.Errorf("unexpected schemas: %+v", schemas)
	}
	if _, err := r.Execute(context.Background(), "list_proposals", nil); err == nil {
		t.Error("expected unknown tool error")
	}
}

// --- Router Tests ---

func TestRouter(t *testing.T) {
	first := NewRegistry()
	first.Register(Tool{
		Schema:  schema("echo", "first", map[string]any{}, nil),
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) { return map[string]any{"from": "first"}, nil },
	})
	second := NewRegistry()
	second.Register(Tool{
		Schema:  schema("echo", "second", map[string]any{}, nil),
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) { return map[string]any{"from": "second"}, nil },
	})
	second.Register(Tool{
		Schema:  schema("only_second", "", map[string]any{}, nil),
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) { return map[string]any{"from": "second"}, nil },
	})

	r := NewRouter(first, second)

	if got := r.Schemas(); len(got) != 2 || got[0].Description != "first" {
		t.Errorf("unexpected schemas: %+v", got)
	}
	out, _ := r.Execute(context.Background(), "echo", nil)
	if out["from"] != "first" {
		t.Errorf("earlier executor should win, got %v", out)
	}
	out, _ = r.Execute(context.Background(), "only_second", nil)
	if out["from"] != "second" {
		t.Errorf("got %v", out)
	}
	if _, err := r.Execute(context.Background(), "missing", nil); err == nil || err.Error() != "unknown tool: missing" {
		t.Errorf("expected unknown tool error, got %v", err)
	}
	if NewRouter().Empty() != true {
		t.Error("router without executors should be empty")
	}
}

// --- MCP Tests ---

type addInput struct {
	A int `json:"a" jsonschema:"first addend"`
	B int `json:"b" jsonschema:"second addend"`
}

type addOutput struct {
	Sum int `json:"sum"`
}

type failInput struct{}

func connectTestServer(t *testing.T) *MCPExecutor {
	t.Helper()
	ctx := context.Background()

	server := gomcp.NewServer(&gomcp.Implementation{Name: "test-server", Version: "v0.0.1"}, nil)
	gomcp.AddTool(server, &gomcp.Tool{Name: "add", Description: "Add two numbers"},
		func(_ context.Context, _ *gomcp.CallToolRequest, in addInput) (*gomcp.CallToolResult, addOutput, error) {
			return nil, addOutput{Sum: in.A + in.B}, nil
		})
	gomcp.AddTool(server, &gomcp.Tool{Name: "fail", Description: "Always fails"},
		func(_ context.Context, _ *gomcp.CallToolRequest, _ failInput) (*gomcp.CallToolResult, any, error) {
			return &gomcp.CallToolResult{
				Content: []gomcp.Content{&gomcp.TextContent{Text: "upstream unavailable"}},
				IsError: true,
			}, nil, nil
		})

	t1, t2 := gomcp.NewInMemoryTransports()

	// Connect server (non-blocking).
	go func() {
		_ = server.Run(ctx, t1)
	}()

	e, err := ConnectMCP(ctx, t2, "test")
	if err != nil {
		t.Fatalf("ConnectMCP: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

func TestMCPExecutor_ListsTools(t *testing.T) {
	e := connectTestServer(t)

	if !e.Has("add") || !e.Has("fail") || e.Has("nope") {
		t.Fatalf("unexpected tool set: %+v", e.Schemas())
	}
	for _, s := range e.Schemas() {
		if s.Name == "add" {
			props, _ := s.Parameters["properties"].(map[string]any)
			if _, ok := props["a"]; !ok {
				t.Errorf("input schema not carried: %v", s.Parameters)
			}
		}
	}
}

func TestMCPExecutor_Execute(t *testing.T) {
	e := connectTestServer(t)

	out, err := e.Execute(context.Background(), "add", map[string]any{"a": 2, "b": 3})
	if err != nil {
		t.Fatal(err)
	}
	if out["sum"] != float64(5) {
		t.Errorf("sum = %v", out)
	}
}

func TestMCPExecutor_ToolErrorBecomesError(t *testing.T) {
	e := connectTestServer(t)

	_, err := e.Execute(context.Background(), "fail", map[string]any{})
	if err == nil || err.Error() != "upstream unavailable" {
		t.Errorf("expected tool error text, got %v", err)
	}
}

func TestNewMCPTransport(t *testing.T) {
	if _, err := NewMCPTransport("", ""); err == nil {
		t.Error("expected error without configuration")
	}
	tr, err := NewMCPTransport("http://localhost:9000/mcp", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := tr.(*gomcp.StreamableClientTransport); !ok {
		t.Errorf("expected streamable transport, got %T", tr)
	}
	tr, err = NewMCPTransport("", "my-server --stdio")
	if err != nil {
		t.Fatal(err)
	}
	if ct, ok := tr.(*gomcp.CommandTransport); !ok || ct.Command.Args[1] != "--stdio" {
		t.Errorf("unexpected command transport: %#v", tr)
	}
}
