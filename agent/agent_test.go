package agent

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/xiaoyuanzhu-com/hound/llm"
	"pgregory.net/rapid"
)

// =============================================================================
// Fakes
// =============================================================================

// scriptedStep is one model response: chunks followed by err (io.EOF when nil)
type scriptedStep struct {
	chunks  []llm.Chunk
	err     error
	openErr error
	block   bool // block until ctx is done
}

type fakeStream struct {
	ctx   context.Context
	step  scriptedStep
	pos   int
	close int
}

func (s *fakeStream) Recv() (llm.Chunk, error) {
	if s.step.block {
		<-s.ctx.Done()
		return llm.Chunk{}, s.ctx.Err()
	}
	if err := s.ctx.Err(); err != nil {
		return llm.Chunk{}, err
	}
	if s.pos < len(s.step.chunks) {
		c := s.step.chunks[s.pos]
		s.pos++
		return c, nil
	}
	if s.step.err != nil {
		return llm.Chunk{}, s.step.err
	}
	return llm.Chunk{}, io.EOF
}

func (s *fakeStream) Close() error {
	s.close++
	return nil
}

// fakeModel replays steps in order; the last step repeats once the script runs out
type fakeModel struct {
	mu       sync.Mutex
	steps    []scriptedStep
	requests []llm.ChatRequest
}

func (m *fakeModel) StreamChat(ctx context.Context, req llm.ChatRequest) (llm.ChatStream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	turns := make([]llm.Turn, len(req.Turns))
	copy(turns, req.Turns)
	req.Turns = turns
	m.requests = append(m.requests, req)

	i := len(m.requests) - 1
	if i >= len(m.steps) {
		i = len(m.steps) - 1
	}
	step := m.steps[i]
	if step.openErr != nil {
		return nil, step.openErr
	}
	return &fakeStream{ctx: ctx, step: step}, nil
}

func (m *fakeModel) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func text(s string) llm.Chunk { return llm.Chunk{Kind: llm.ChunkText, Text: s} }

func toolCall(name string, args map[string]any) llm.Chunk {
	return llm.Chunk{Kind: llm.ChunkToolCall, ToolCall: llm.ToolCall{Name: name, Args: args}}
}

func userTurn(content string) []llm.Turn {
	return []llm.Turn{{Role: llm.RoleUser, Content: content}}
}

func collect(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var out []Event
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("timeout waiting for agent events")
			return out
		}
	}
}

func types(events []Event) []EventType {
	out := make([]EventType, len(events))
	for i, ev := range events {
		out[i] = ev.Type()
	}
	return out
}

func assertDoneLast(t *testing.T, events []Event) {
	t.Helper()
	done := 0
	for _, ev := range events {
		if ev.Type() == EventDone {
			done++
		}
	}
	if done != 1 {
		t.Fatalf("expected exactly one done event, got %d (%v)", done, types(events))
	}
	if events[len(events)-1].Type() != EventDone {
		t.Fatalf("done is not the last event: %v", types(events))
	}
}

func echoExecutor() ToolExecutor {
	return ToolExecutorFunc(func(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
		return map[string]any{"tool": name}, nil
	})
}

// =============================================================================
// Loop Tests
// =============================================================================

func TestRun_TextOnlyConverges(t *testing.T) {
	model := &fakeModel{steps: []scriptedStep{
		{chunks: []llm.Chunk{text("Hello"), text(", "), text("world")}},
	}}
	loop := NewLoop(model, Config{})

	events := collect(t, loop.Run(context.Background(), Request{Messages: userTurn("hi")}))

	want := []EventType{EventText, EventText, EventText, EventDone}
	if got := types(events); !equalTypes(got, want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	var sb strings.Builder
	for _, ev := range events[:3] {
		sb.WriteString(ev.(TextEvent).Content)
	}
	if sb.String() != "Hello, world" {
		t.Errorf("text out of order: %q", sb.String())
	}
	if model.calls() != 1 {
		t.Errorf("expected 1 model call, got %d", model.calls())
	}
}

func TestRun_ToolRoundTrip(t *testing.T) {
	model := &fakeModel{steps: []scriptedStep{
		{chunks: []llm.Chunk{text("Checking"), toolCall("list_proposals", map[string]any{"limit": 3})}},
		{chunks: []llm.Chunk{text("You have none.")}},
	}}
	loop := NewLoop(model, Config{})

	events := collect(t, loop.Run(context.Background(), Request{
		System:   "sys",
		Messages: userTurn("what's pending?"),
		Executor: echoExecutor(),
	}))

	want := []EventType{EventText, EventToolCall, EventToolResult, EventText, EventDone}
	if got := types(events); !equalTypes(got, want) {
		t.Fatalf("events = %v, want %v", got, want)
	}

	result := events[2].(ToolResultEvent)
	if result.Name != "list_proposals" || result.Result["tool"] != "list_proposals" {
		t.Errorf("unexpected tool result: %+v", result)
	}

	if model.calls() != 2 {
		t.Fatalf("expected 2 model calls, got %d", model.calls())
	}
	second := model.requests[1]
	if second.System != "sys" {
		t.Errorf("system instruction not carried: %q", second.System)
	}
	if len(second.Turns) != 3 {
		t.Fatalf("expected user, assistant and tool turns, got %d", len(second.Turns))
	}
	assistant, tool := second.Turns[1], second.Turns[2]
	if assistant.Role != llm.RoleAssistant || len(assistant.ToolCalls) != 1 || assistant.Content != "Checking" {
		t.Errorf("unexpected assistant turn: %+v", assistant)
	}
	if tool.Role != llm.RoleTool || tool.Name != "list_proposals" {
		t.Errorf("unexpected tool turn: %+v", tool)
	}
	if tool.ToolCallID == "" || tool.ToolCallID != assistant.ToolCalls[0].ID {
		t.Errorf("tool turn id %q does not match call id %q", tool.ToolCallID, assistant.ToolCalls[0].ID)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(tool.Content), &payload); err != nil || payload["tool"] != "list_proposals" {
		t.Errorf("tool turn content = %q", tool.Content)
	}
}

func TestRun_MaxStepsBound(t *testing.T) {
	model := &fakeModel{steps: []scriptedStep{
		{chunks: []llm.Chunk{toolCall("loop", nil)}},
	}}
	loop := NewLoop(model, Config{MaxSteps: 3})

	events := collect(t, loop.Run(context.Background(), Request{
		Messages: userTurn("go"),
		Executor: echoExecutor(),
	}))

	assertDoneLast(t, events)
	calls, results := 0, 0
	for _, ev := range events {
		switch ev.Type() {
		case EventToolCall:
			calls++
		case EventToolResult:
			results++
		}
	}
	if calls != 3 || results != 3 {
		t.Errorf("expected 3 tool calls and results, got %d and %d", calls, results)
	}
	if model.calls() != 3 {
		t.Errorf("expected 3 model calls, got %d", model.calls())
	}
}

func TestRun_DefaultMaxSteps(t *testing.T) {
	model := &fakeModel{steps: []scriptedStep{
		{chunks: []llm.Chunk{toolCall("loop", nil)}},
	}}
	loop := NewLoop(model, Config{})

	collect(t, loop.Run(context.Background(), Request{Messages: userTurn("go"), Executor: echoExecutor()}))

	if model.calls() != DefaultMaxSteps {
		t.Errorf("expected %d model calls, got %d", DefaultMaxSteps, model.calls())
	}
}

func TestRun_ToolFailureIsConversational(t *testing.T) {
	model := &fakeModel{steps: []scriptedStep{
		{chunks: []llm.Chunk{toolCall("broken", map[string]any{"x": 1})}},
		{chunks: []llm.Chunk{text("Sorry, that failed.")}},
	}}
	failing := ToolExecutorFunc(func(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
		return nil, errors.New("backend unavailable")
	})
	loop := NewLoop(model, Config{})

	events := collect(t, loop.Run(context.Background(), Request{Messages: userTurn("do it"), Executor: failing}))

	want := []EventType{EventToolCall, EventToolResult, EventText, EventDone}
	if got := types(events); !equalTypes(got, want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	result := events[1].(ToolResultEvent)
	if result.Result["error"] != "backend unavailable" {
		t.Errorf("expected error payload, got %+v", result.Result)
	}
	toolTurn := model.requests[1].Turns[2]
	if !strings.Contains(toolTurn.Content, "backend unavailable") {
		t.Errorf("tool failure not fed back to the model: %q", toolTurn.Content)
	}
}

func TestRun_NoExecutorTerminates(t *testing.T) {
	model := &fakeModel{steps: []scriptedStep{
		{chunks: []llm.Chunk{toolCall("a", nil), toolCall("b", nil)}},
	}}
	loop := NewLoop(model, Config{})

	events := collect(t, loop.Run(context.Background(), Request{Messages: userTurn("go")}))

	want := []EventType{EventToolCall, EventToolCall, EventDone}
	if got := types(events); !equalTypes(got, want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	if model.calls() != 1 {
		t.Errorf("expected 1 model call, got %d", model.calls())
	}
}

func TestRun_ModelErrorEmitsErrorThenDone(t *testing.T) {
	model := &fakeModel{steps: []scriptedStep{
		{chunks: []llm.Chunk{text("partial")}, err: errors.New("quota exceeded")},
	}}
	loop := NewLoop(model, Config{})

	events := collect(t, loop.Run(context.Background(), Request{Messages: userTurn("hi"), Executor: echoExecutor()}))

	want := []EventType{EventText, EventError, EventDone}
	if got := types(events); !equalTypes(got, want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	if msg := events[1].(ErrorEvent).Message; msg != "quota exceeded" {
		t.Errorf("error message = %q", msg)
	}
}

func TestRun_OpenErrorEmitsErrorThenDone(t *testing.T) {
	model := &fakeModel{steps: []scriptedStep{{openErr: errors.New("connection refused")}}}
	loop := NewLoop(model, Config{})

	events := collect(t, loop.Run(context.Background(), Request{Messages: userTurn("hi")}))

	want := []EventType{EventError, EventDone}
	if got := types(events); !equalTypes(got, want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
}

func TestRun_StepTimeoutIsModelError(t *testing.T) {
	model := &fakeModel{steps: []scriptedStep{{block: true}}}
	loop := NewLoop(model, Config{StepTimeout: 20 * time.Millisecond})

	events := collect(t, loop.Run(context.Background(), Request{Messages: userTurn("hi")}))

	want := []EventType{EventError, EventDone}
	if got := types(events); !equalTypes(got, want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	if msg := events[0].(ErrorEvent).Message; !strings.Contains(msg, "timed out") {
		t.Errorf("expected timeout message, got %q", msg)
	}
}

func TestRun_SlowConsumerDoesNotTimeOut(t *testing.T) {
	model := &fakeModel{steps: []scriptedStep{
		{chunks: []llm.Chunk{text("a"), text("b"), text("c")}},
	}}
	loop := NewLoop(model, Config{StepTimeout: 50 * time.Millisecond})

	var events []Event
	for ev := range loop.Run(context.Background(), Request{Messages: userTurn("hi")}) {
		events = append(events, ev)
		time.Sleep(40 * time.Millisecond)
	}

	want := []EventType{EventText, EventText, EventText, EventDone}
	if got := types(events); !equalTypes(got, want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
}

func TestRun_EmptyConversation(t *testing.T) {
	model := &fakeModel{steps: []scriptedStep{{}}}
	loop := NewLoop(model, Config{})

	events := collect(t, loop.Run(context.Background(), Request{
		Messages: []llm.Turn{{Role: llm.RoleSystem, Content: "only a system turn"}},
	}))

	want := []EventType{EventError, EventDone}
	if got := types(events); !equalTypes(got, want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	if model.calls() != 0 {
		t.Errorf("model should not be called, got %d calls", model.calls())
	}
}

func TestRun_SystemTurnsAreFiltered(t *testing.T) {
	model := &fakeModel{steps: []scriptedStep{{chunks: []llm.Chunk{text("ok")}}}}
	loop := NewLoop(model, Config{})

	collect(t, loop.Run(context.Background(), Request{
		System: "instruction",
		Messages: []llm.Turn{
			{Role: llm.RoleSystem, Content: "stale"},
			{Role: llm.RoleUser, Content: "hi"},
		},
	}))

	req := model.requests[0]
	if len(req.Turns) != 1 || req.Turns[0].Role != llm.RoleUser {
		t.Errorf("system turn leaked into history: %+v", req.Turns)
	}
}

func TestRun_CancelledConsumerStopsRun(t *testing.T) {
	model := &fakeModel{steps: []scriptedStep{
		{chunks: []llm.Chunk{text("a"), text("b"), text("c")}},
	}}
	loop := NewLoop(model, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	events := loop.Run(ctx, Request{Messages: userTurn("hi")})

	<-events
	cancel()

	// The channel must close without the consumer draining every event
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("run did not stop after cancellation")
		}
	}
}

func TestRun_TerminationProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		maxSteps := rapid.IntRange(1, 8).Draw(rt, "maxSteps")
		perStep := rapid.IntRange(1, 3).Draw(rt, "callsPerStep")
		fail := rapid.Bool().Draw(rt, "executorFails")

		chunks := make([]llm.Chunk, perStep)
		for i := range chunks {
			chunks[i] = toolCall("t", map[string]any{"i": i})
		}
		model := &fakeModel{steps: []scriptedStep{{chunks: chunks}}}
		exec := ToolExecutorFunc(func(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
			if fail {
				return nil, errors.New("nope")
			}
			return map[string]any{"ok": true}, nil
		})

		var events []Event
		for ev := range NewLoop(model, Config{MaxSteps: maxSteps}).Run(context.Background(), Request{
			Messages: userTurn("go"),
			Executor: exec,
		}) {
			events = append(events, ev)
		}

		if len(events) == 0 || events[len(events)-1].Type() != EventDone {
			rt.Fatalf("stream does not end with done: %v", types(events))
		}
		results := 0
		for _, ev := range events[:len(events)-1] {
			switch ev.Type() {
			case EventDone, EventError:
				rt.Fatalf("unexpected %s before the end: %v", ev.Type(), types(events))
			case EventToolResult:
				results++
			}
		}
		if results != maxSteps*perStep {
			rt.Fatalf("expected %d tool results, got %d", maxSteps*perStep, results)
		}
	})
}

func equalTypes(a, b []EventType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
