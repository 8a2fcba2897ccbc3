package models

import (
	"fmt"
	"strings"
)

// Source identifies where an inbound message came from
type Source string

const (
	SourceSlack Source = "slack"
	SourceGmail Source = "gmail"
)

// ParseSource converts a user-supplied source name to a Source
func ParseSource(s string) (Source, error) {
	switch Source(strings.ToLower(strings.TrimSpace(s))) {
	case SourceSlack:
		return SourceSlack, nil
	case SourceGmail:
		return SourceGmail, nil
	default:
		return "", fmt.Errorf("unknown message source: %q", s)
	}
}

// IsChat reports whether the source is a chat platform (as opposed to email)
func (s Source) IsChat() bool {
	return s == SourceSlack
}

// MessageContext is the immutable input to task inference.
// Chat sources populate Channel, ChannelType and ThreadID; email sources
// populate Subject, MessageID and IsReply.
type MessageContext struct {
	Source    Source `json:"source"`
	Content   string `json:"content"`
	Sender    string `json:"sender"`
	Timestamp string `json:"timestamp"`

	// Chat
	Channel     string `json:"channel,omitempty"`
	ChannelType string `json:"channel_type,omitempty"`
	ThreadID    string `json:"thread_id,omitempty"`

	// Email
	Subject   string `json:"subject,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	IsReply   bool   `json:"is_reply,omitempty"`
}
