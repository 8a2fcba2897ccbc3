package agent

import (
	"encoding/json"
	"errors"
)

// ErrUnknownEvent is returned when encoding a value that is not a stream event
var ErrUnknownEvent = errors.New("agent: unknown event type")

// EventType is the wire tag of a stream event
type EventType string

const (
	EventText       EventType = "text"
	EventToolCall   EventType = "tool_call"
	EventToolResult EventType = "tool_result"
	EventError      EventType = "error"
	EventDone       EventType = "done"
)

// Event is one element of the agent loop's output stream. The set of
// implementations is closed: TextEvent, ToolCallEvent, ToolResultEvent,
// ErrorEvent and DoneEvent.
type Event interface {
	Type() EventType
	isEvent()
}

// TextEvent carries a fragment of model text
type TextEvent struct {
	Content string
}

// ToolCallEvent reports a tool invocation requested by the model
type ToolCallEvent struct {
	Name string
	Args map[string]any
}

// ToolResultEvent reports the outcome of a tool invocation. Failed calls
// carry {"error": "..."} as the result.
type ToolResultEvent struct {
	Name   string
	Result map[string]any
}

// ErrorEvent reports a model failure that ended the loop
type ErrorEvent struct {
	Message string
}

// DoneEvent is always the last event of a run
type DoneEvent struct{}

func (TextEvent) Type() EventType       { return EventText }
func (ToolCallEvent) Type() EventType   { return EventToolCall }
func (ToolResultEvent) Type() EventType { return EventToolResult }
func (ErrorEvent) Type() EventType      { return EventError }
func (DoneEvent) Type() EventType       { return EventDone }

func (TextEvent) isEvent()       {}
func (ToolCallEvent) isEvent()   {}
func (ToolResultEvent) isEvent() {}
func (ErrorEvent) isEvent()      {}
func (DoneEvent) isEvent()       {}

// Record is the wire form of an event
type Record struct {
	Type    EventType      `json:"type"`
	Content *string        `json:"content,omitempty"`
	Name    string         `json:"name,omitempty"`
	Args    map[string]any `json:"args,omitempty"`
	Result  map[string]any `json:"result,omitempty"`
}

// ToRecord converts an event to its wire form
func ToRecord(ev Event) (Record, error) {
	switch e := ev.(type) {
	case TextEvent:
		return Record{Type: EventText, Content: &e.Content}, nil
	case ToolCallEvent:
		args := e.Args
		if args == nil {
			args = map[string]any{}
		}
		return Record{Type: EventToolCall, Name: e.Name, Args: args}, nil
	case ToolResultEvent:
		result := e.Result
		if result == nil {
			result = map[string]any{}
		}
		return Record{Type: EventToolResult, Name: e.Name, Result: result}, nil
	case ErrorEvent:
		return Record{Type: EventError, Content: &e.Message}, nil
	case DoneEvent:
		return Record{Type: EventDone}, nil
	default:
		return Record{}, ErrUnknownEvent
	}
}

// MarshalJSON writes the fields each record type carries. Args and result are
// always present on tool records, even when empty.
func (r Record) MarshalJSON() ([]byte, error) {
	switch r.Type {
	case EventText, EventError:
		content := ""
		if r.Content != nil {
			content = *r.Content
		}
		return json.Marshal(struct {
			Type    EventType `json:"type"`
			Content string    `json:"content"`
		}{r.Type, content})
	case EventToolCall:
		return json.Marshal(struct {
			Type EventType      `json:"type"`
			Name string         `json:"name"`
			Args map[string]any `json:"args"`
		}{r.Type, r.Name, nonNil(r.Args)})
	case EventToolResult:
		return json.Marshal(struct {
			Type   EventType      `json:"type"`
			Name   string         `json:"name"`
			Result map[string]any `json:"result"`
		}{r.Type, r.Name, nonNil(r.Result)})
	default:
		return json.Marshal(struct {
			Type EventType `json:"type"`
		}{r.Type})
	}
}

func nonNil(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

// MarshalEvent encodes an event as a JSON wire record
func MarshalEvent(ev Event) ([]byte, error) {
	record, err := ToRecord(ev)
	if err != nil {
		return nil, err
	}
	return json.Marshal(record)
}
