package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/xiaoyuanzhu-com/hound/agent"
	"github.com/xiaoyuanzhu-com/hound/db"
	"github.com/xiaoyuanzhu-com/hound/llm"
	"github.com/xiaoyuanzhu-com/hound/models"
	"github.com/xiaoyuanzhu-com/hound/workers/meili"
	"gopkg.in/yaml.v3"
)

// --- Fakes ---

type stepStream struct {
	chunks []llm.Chunk
	pos    int
}

func (s *stepStream) Recv() (llm.Chunk, error) {
	if s.pos >= len(s.chunks) {
		return llm.Chunk{}, io.EOF
	}
	c := s.chunks[s.pos]
	s.pos++
	return c, nil
}

func (s *stepStream) Close() error { return nil }

type fakeModel struct {
	class string
	steps [][]llm.Chunk
	calls int
}

func (f *fakeModel) GenerateText(ctx context.Context, prompt string, maxOutputTokens int) (string, error) {
	return f.class, nil
}

func (f *fakeModel) GenerateStructured(ctx context.Context, req llm.StructuredRequest, out any) error {
	raw, _ := json.Marshal(models.TaskExtraction{
		IsTask:     true,
		Confidence: 0.85,
		Task: &models.TaskDetails{
			Title:     "Review the contract",
			Priority:  models.PriorityMedium,
			Reasoning: "Explicit request",
		},
	})
	return json.Unmarshal(raw, out)
}

func (f *fakeModel) StreamChat(ctx context.Context, req llm.ChatRequest) (llm.ChatStream, error) {
	step := []llm.Chunk{{Kind: llm.ChunkText, Text: "ok"}}
	if f.calls < len(f.steps) {
		step = f.steps[f.calls]
	}
	f.calls++
	return &stepStream{chunks: step}, nil
}

func useModel(t *testing.T, m llm.Client) {
	t.Helper()
	orig := newModel
	newModel = func() (llm.Client, error) { return m, nil }
	t.Cleanup(func() { newModel = orig })
}

func useTempDB(t *testing.T) *db.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hound.sqlite")
	orig := openDB
	openDB = func() (*db.DB, error) { return db.Open(db.Config{Path: path}) }
	t.Cleanup(func() { openDB = orig })

	seed, err := db.Open(db.Config{Path: path})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { seed.Close() })
	return seed
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := Execute()
	return stdout.String(), err
}

// --- Root ---

func TestExecute_VersionSubcommand(t *testing.T) {
	orig := appVersion
	defer func() { appVersion = orig }()
	SetVersionInfo("1.2.3", "abc1234", "2024-01-03")

	out, err := run(t, "", "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "hound 1.2.3") || !strings.Contains(out, "abc1234") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestExecute_UnknownCommand(t *testing.T) {
	if _, err := run(t, "", "nonexistent-command"); err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Errorf("expected unknown command error, got %v", err)
	}
}

// --- Infer ---

func TestInfer_JSON(t *testing.T) {
	useModel(t, &fakeModel{class: "task"})

	out, err := run(t, "", "infer", "--source", "gmail", "--sender", "legal@example.com", "--subject", "Contract", "--output", "json", "Please review the contract")
	if err != nil {
		t.Fatal(err)
	}

	var resp struct {
		Proposal *models.TaskProposal `json:"proposal"`
	}
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if resp.Proposal == nil || resp.Proposal.Title != "Review the contract" || resp.Proposal.Source != models.SourceGmail {
		t.Errorf("unexpected proposal: %+v", resp.Proposal)
	}
	if resp.Proposal.SourceContext.Subject != "Contract" {
		t.Errorf("subject not carried: %+v", resp.Proposal.SourceContext)
	}
}

func TestInfer_YAMLFromStdin(t *testing.T) {
	useModel(t, &fakeModel{class: "task"})

	out, err := run(t, "Please review the contract\n", "infer", "--source", "slack", "--output", "yaml")
	if err != nil {
		t.Fatal(err)
	}

	var resp map[string]map[string]any
	if err := yaml.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("invalid YAML %q: %v", out, err)
	}
	if resp["proposal"]["title"] != "Review the contract" || resp["proposal"]["proposal_id"] == "" {
		t.Errorf("unexpected YAML: %v", resp)
	}
}

func TestInfer_ChatPrintsNull(t *testing.T) {
	useModel(t, &fakeModel{class: "chat"})

	out, err := run(t, "", "infer", "--source", "slack", "--output", "json", "thanks!")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"proposal": null`) {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestInfer_Errors(t *testing.T) {
	useModel(t, &fakeModel{class: "task"})

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"bad format", []string{"infer", "--source", "slack", "--output", "xml", "hi"}, "unsupported output format"},
		{"bad source", []string{"infer", "--source", "fax", "--output", "json", "hi"}, "unknown message source"},
		{"empty", []string{"infer", "--source", "slack", "--output", "json"}, "message is empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, "", tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected %q error, got %v", tt.want, err)
			}
		})
	}
}

// --- Chat ---

func TestChat_UsesProposalTools(t *testing.T) {
	store := useTempDB(t)
	if err := store.AddProposal("alice", models.TaskProposal{ProposalID: "p1", Title: "Send report", Priority: models.PriorityHigh, Source: models.SourceSlack}); err != nil {
		t.Fatal(err)
	}

	useModel(t, &fakeModel{steps: [][]llm.Chunk{
		{{Kind: llm.ChunkToolCall, ToolCall: llm.ToolCall{ID: "c1", Name: "list_proposals", Args: map[string]any{}}}},
		{{Kind: llm.ChunkText, Text: "You need to send the report."}},
	}})

	out, err := run(t, "", "chat", "--entity", "alice", "--max-steps", "3", "what's pending?")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"→ list_proposals", `"Send report"`, "You need to send the report.", "done"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderEvent(t *testing.T) {
	var buf bytes.Buffer
	renderEvent(&buf, agent.TextEvent{Content: "hello"})
	renderEvent(&buf, agent.ToolCallEvent{Name: "get_current_time"})
	renderEvent(&buf, agent.ErrorEvent{Message: "boom"})

	out := buf.String()
	for _, want := range []string{"hello", "→ get_current_time {}", "error: boom"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %q", want, out)
		}
	}
}

// --- Reindex ---

type countingIndex struct {
	mu  sync.Mutex
	ids []string
}

func (c *countingIndex) IndexProposal(entityID string, p models.TaskProposal) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids = append(c.ids, entityID+"/"+p.ProposalID)
	return nil
}

func TestReindex(t *testing.T) {
	store := useTempDB(t)
	for _, id := range []string{"p1", "p2"} {
		if err := store.AddProposal("alice", models.TaskProposal{ProposalID: id, Title: "T", Source: models.SourceSlack}); err != nil {
			t.Fatal(err)
		}
	}

	index := &countingIndex{}
	orig := newSearchIndex
	newSearchIndex = func() (meili.Index, error) { return index, nil }
	t.Cleanup(func() { newSearchIndex = orig })

	out, err := run(t, "", "reindex")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "indexed 2 proposals, 0 failed") {
		t.Errorf("unexpected output: %q", out)
	}

	// Already indexed: nothing to push
	out, err = run(t, "", "reindex")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "indexed 0 proposals") {
		t.Errorf("unexpected output: %q", out)
	}

	out, err = run(t, "", "reindex", "--all")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "indexed 2 proposals") {
		t.Errorf("--all should re-push everything: %q", out)
	}
	reindexAll = false

	if len(index.ids) != 4 {
		t.Errorf("index calls = %d, want 4", len(index.ids))
	}
}
