package agent

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestMarshalEvent(t *testing.T) {
	tests := []struct {
		name  string
		event Event
		want  string
	}{
		{"text", TextEvent{Content: "hi"}, `{"type":"text","content":"hi"}`},
		{"empty text keeps content", TextEvent{}, `{"type":"text","content":""}`},
		{"tool call", ToolCallEvent{Name: "get_current_time", Args: map[string]any{"tz": "UTC"}}, `{"type":"tool_call","name":"get_current_time","args":{"tz":"UTC"}}`},
		{"tool call without args", ToolCallEvent{Name: "ping"}, `{"type":"tool_call","name":"ping","args":{}}`},
		{"tool result", ToolResultEvent{Name: "ping", Result: map[string]any{"error": "boom"}}, `{"type":"tool_result","name":"ping","result":{"error":"boom"}}`},
		{"tool result without payload", ToolResultEvent{Name: "ping"}, `{"type":"tool_result","name":"ping","result":{}}`},
		{"error", ErrorEvent{Message: "quota"}, `{"type":"error","content":"quota"}`},
		{"done", DoneEvent{}, `{"type":"done"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalEvent(tt.event)
			if err != nil {
				t.Fatalf("MarshalEvent: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestMarshalEvent_UnknownEvent(t *testing.T) {
	if _, err := MarshalEvent(nil); !errors.Is(err, ErrUnknownEvent) {
		t.Errorf("expected ErrUnknownEvent, got %v", err)
	}
}

func TestRecordDecodes(t *testing.T) {
	var r Record
	if err := json.Unmarshal([]byte(`{"type":"tool_call","name":"x","args":{"a":1}}`), &r); err != nil {
		t.Fatal(err)
	}
	if r.Type != EventToolCall || r.Name != "x" || r.Args["a"] != float64(1) {
		t.Errorf("unexpected record: %+v", r)
	}
}
