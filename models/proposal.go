package models

import (
	"fmt"
	"strings"
)

// Priority of an extracted task
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is one of the known priorities
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Normalize lower-cases the priority so "HIGH" and "high" compare equal
func (p Priority) Normalize() Priority {
	return Priority(strings.ToLower(strings.TrimSpace(string(p))))
}

// MaxTitleLength is the longest task title a proposal carries
const MaxTitleLength = 80

// TaskDetails is the structured task produced by extraction
type TaskDetails struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	DueDate     string   `json:"due_date,omitempty"` // ISO 8601
	Priority    Priority `json:"priority"`
	Reasoning   string   `json:"reasoning"`
}

// TaskExtraction is the sole output of the extraction stage.
// Task is present only when IsTask is true and extraction succeeded.
type TaskExtraction struct {
	IsTask     bool         `json:"is_task"`
	Confidence float64      `json:"confidence"`
	Task       *TaskDetails `json:"task,omitempty"`
}

// NoTask is the fail-closed extraction result
func NoTask() TaskExtraction {
	return TaskExtraction{IsTask: false, Confidence: 0, Task: nil}
}

// Validate checks the extraction against its schema constraints
func (e TaskExtraction) Validate() error {
	if e.Confidence < 0 || e.Confidence > 1 {
		return fmt.Errorf("confidence %v outside [0,1]", e.Confidence)
	}
	if e.Task == nil {
		return nil
	}
	if !e.IsTask {
		return fmt.Errorf("task details present while is_task is false")
	}
	if strings.TrimSpace(e.Task.Title) == "" {
		return fmt.Errorf("task title is empty")
	}
	if !e.Task.Priority.Normalize().Valid() {
		return fmt.Errorf("unknown priority %q", e.Task.Priority)
	}
	return nil
}

// SourceContext is a snapshot of the originating message, captured once when
// the proposal is built.
type SourceContext struct {
	Sender          string `json:"sender"`
	Timestamp       string `json:"timestamp"`
	Channel         string `json:"channel,omitempty"`
	Subject         string `json:"subject,omitempty"`
	MessageID       string `json:"message_id,omitempty"`
	ThreadID        string `json:"thread_id,omitempty"`
	OriginalContent string `json:"original_content"`
}

// TaskProposal is the durable, human-approvable artifact
type TaskProposal struct {
	ProposalID    string        `json:"proposal_id"`
	Type          string        `json:"type"`
	Title         string        `json:"title"`
	Description   string        `json:"description,omitempty"`
	DueDate       string        `json:"due_date,omitempty"`
	Priority      Priority      `json:"priority"`
	Source        Source        `json:"source"`
	SourceContext SourceContext `json:"source_context"`
	Confidence    float64       `json:"confidence"`
	Reasoning     string        `json:"reasoning"`
	CreatedAt     string        `json:"created_at"` // ISO 8601
}

// ProposalType is the Type of every TaskProposal
const ProposalType = "task_proposal"
