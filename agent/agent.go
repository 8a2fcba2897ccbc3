package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xiaoyuanzhu-com/hound/llm"
	"github.com/xiaoyuanzhu-com/hound/log"
)

var logger = log.GetLogger("Agent")

const (
	DefaultMaxSteps    = 5
	DefaultStepTimeout = 60 * time.Second
)

// Config bounds a single agent run
type Config struct {
	MaxSteps    int
	StepTimeout time.Duration // zero disables the per-step timeout
}

// Loop drives a multi-step tool-using conversation against a streaming model.
// A Loop holds no per-conversation state and is safe for concurrent use.
type Loop struct {
	model llm.ChatStreamer
	cfg   Config
}

// NewLoop creates a new agent loop
func NewLoop(model llm.ChatStreamer, cfg Config) *Loop {
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}
	return &Loop{model: model, cfg: cfg}
}

// Request is one conversation turn request
type Request struct {
	// System is delivered as the system instruction, never as a turn
	System string
	// Messages is the conversation history; the last entry is the newest user turn
	Messages []llm.Turn
	Tools    []llm.ToolSchema
	// Executor runs requested tools. When nil, a step that requests tools ends the run.
	Executor ToolExecutor
}

// Run starts the loop and returns its event stream. The channel is unbuffered
// so a slow consumer throttles generation; cancelling ctx abandons the run at
// the next model or tool boundary. DoneEvent is the last event delivered and
// the channel is closed after it.
func (l *Loop) Run(ctx context.Context, req Request) <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)
		r := &run{loop: l, req: req, out: out}
		r.execute(ctx)
	}()
	return out
}

// run is the state of one invocation
type run struct {
	loop  *Loop
	req   Request
	out   chan<- Event
	turns []llm.Turn
}

// emit delivers an event, returning false once the consumer has gone away
func (r *run) emit(ctx context.Context, ev Event) bool {
	select {
	case r.out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (r *run) execute(ctx context.Context) {
	r.turns = conversationTurns(r.req.Messages)
	maxSteps := r.loop.cfg.MaxSteps

	logger.Info().
		Int("messages", len(r.turns)).
		Int("tools", len(r.req.Tools)).
		Int("maxSteps", maxSteps).
		Bool("executor", r.req.Executor != nil).
		Msg("agent run started")

	if len(r.turns) == 0 {
		if !r.emit(ctx, ErrorEvent{Message: "conversation has no messages"}) {
			return
		}
		r.emit(ctx, DoneEvent{})
		return
	}

	reason := "max_steps"
	for step := 0; step < maxSteps; step++ {
		logger.Debug().Int("step", step+1).Int("maxSteps", maxSteps).Msg("agent step")

		text, calls, err := r.streamStep(ctx, step)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info().Int("step", step+1).Msg("consumer gone, abandoning run")
				return
			}
			logger.Error().Err(err).Int("step", step+1).Msg("model error")
			if !r.emit(ctx, ErrorEvent{Message: err.Error()}) {
				return
			}
			reason = "model_error"
			break
		}

		logger.Info().
			Int("step", step+1).
			Bool("hasText", text != "").
			Int("toolCalls", len(calls)).
			Msg("agent step finished")

		if len(calls) == 0 {
			reason = "converged"
			break
		}

		if r.req.Executor == nil {
			logger.Warn().Int("toolCalls", len(calls)).Msg("tool calls requested but no executor supplied")
			reason = "no_executor"
			break
		}

		r.turns = append(r.turns, llm.Turn{
			Role:      llm.RoleAssistant,
			Content:   text,
			ToolCalls: calls,
		})

		// Same-step calls run strictly in order
		for _, call := range calls {
			result := r.executeTool(ctx, call)
			if ctx.Err() != nil {
				return
			}
			if !r.emit(ctx, ToolResultEvent{Name: call.Name, Result: result}) {
				return
			}
			r.turns = append(r.turns, toolTurn(call, result))
		}
	}

	logger.Info().Str("reason", reason).Msg("agent run finished")
	r.emit(ctx, DoneEvent{})
}

// streamStep submits the conversation and relays the streamed response.
// Text fragments and tool calls are emitted as they arrive. The step timeout
// only runs while waiting on the model; time spent handing events to the
// consumer is not charged to it.
func (r *run) streamStep(ctx context.Context, step int) (string, []llm.ToolCall, error) {
	stepCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	deadline := newStepDeadline(r.loop.cfg.StepTimeout, cancel)
	defer deadline.stop()

	stream, err := r.loop.model.StreamChat(stepCtx, llm.ChatRequest{
		System: r.req.System,
		Turns:  r.turns,
		Tools:  r.req.Tools,
	})
	if err != nil {
		return "", nil, deadline.wrap(ctx, err)
	}
	defer stream.Close()

	var text string
	var calls []llm.ToolCall
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return text, calls, nil
		}
		if err != nil {
			return text, calls, deadline.wrap(ctx, err)
		}
		if deadline.expired() {
			return text, calls, deadline.wrap(ctx, context.DeadlineExceeded)
		}

		switch chunk.Kind {
		case llm.ChunkText:
			if chunk.Text == "" {
				continue
			}
			text += chunk.Text
			deadline.pause()
			ok := r.emit(ctx, TextEvent{Content: chunk.Text})
			deadline.resume()
			if !ok {
				return text, calls, ctx.Err()
			}
		case llm.ChunkToolCall:
			call := chunk.ToolCall
			if call.ID == "" {
				call.ID = "call_" + uuid.New().String()
			}
			if call.Args == nil {
				call.Args = map[string]any{}
			}
			calls = append(calls, call)
			logger.Info().Int("step", step+1).Str("tool", call.Name).Msg("tool call detected")
			deadline.pause()
			ok := r.emit(ctx, ToolCallEvent{Name: call.Name, Args: call.Args})
			deadline.resume()
			if !ok {
				return text, calls, ctx.Err()
			}
		}
	}
}

// stepDeadline cancels a step once the model has been waited on for longer
// than the timeout in total. A zero timeout never fires.
type stepDeadline struct {
	mu        sync.Mutex
	remaining time.Duration
	started   time.Time
	timer     *time.Timer
	fired     bool
	cancel    context.CancelFunc
}

func newStepDeadline(timeout time.Duration, cancel context.CancelFunc) *stepDeadline {
	d := &stepDeadline{remaining: timeout, cancel: cancel}
	if timeout > 0 {
		d.resume()
	}
	return d
}

func (d *stepDeadline) resume() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.remaining <= 0 || d.fired || d.timer != nil {
		return
	}
	d.started = time.Now()
	d.timer = time.AfterFunc(d.remaining, func() {
		d.mu.Lock()
		d.fired = true
		d.mu.Unlock()
		d.cancel()
	})
}

func (d *stepDeadline) pause() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer == nil {
		return
	}
	if d.timer.Stop() {
		d.remaining -= time.Since(d.started)
		if d.remaining <= 0 {
			d.fired = true
			d.cancel()
		}
	}
	d.timer = nil
}

func (d *stepDeadline) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *stepDeadline) expired() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fired
}

// wrap turns an expired deadline into a readable model error
func (d *stepDeadline) wrap(ctx context.Context, err error) error {
	if ctx.Err() == nil && d.expired() {
		return fmt.Errorf("model step timed out: %w", context.DeadlineExceeded)
	}
	return err
}

// executeTool runs one tool call; failures become an error payload
func (r *run) executeTool(ctx context.Context, call llm.ToolCall) map[string]any {
	logger.Info().Str("tool", call.Name).Interface("args", call.Args).Msg("executing tool")

	result, err := r.req.Executor.Execute(ctx, call.Name, call.Args)
	if err != nil {
		logger.Warn().Err(err).Str("tool", call.Name).Msg("tool failed")
		return map[string]any{"error": err.Error()}
	}
	if result == nil {
		result = map[string]any{}
	}
	return result
}

// conversationTurns drops system turns, which travel as the system instruction
func conversationTurns(messages []llm.Turn) []llm.Turn {
	turns := make([]llm.Turn, 0, len(messages))
	for _, m := range messages {
		if m.Role == llm.RoleSystem {
			continue
		}
		turns = append(turns, m)
	}
	return turns
}

// toolTurn builds the tool-response turn fed back to the model
func toolTurn(call llm.ToolCall, result map[string]any) llm.Turn {
	content, err := json.Marshal(result)
	if err != nil {
		content = []byte(fmt.Sprintf(`{"error": %q}`, fmt.Sprintf("unencodable tool result: %v", err)))
	}
	return llm.Turn{
		Role:       llm.RoleTool,
		Content:    string(content),
		ToolCallID: call.ID,
		Name:       call.Name,
	}
}
