// Package ingest turns inbound trigger events from connected chat and email
// accounts into task proposals. Events are normalized into a
// models.MessageContext, deduplicated, and run through the inference pipeline
// by a pool of background workers.
package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/xiaoyuanzhu-com/hound/log"
	"github.com/xiaoyuanzhu-com/hound/models"
)

var logger = log.GetLogger("Ingest")

// Trigger slugs emitted by the integration platform
const (
	TriggerSlackMessage = "SLACK_NEW_MESSAGE"
	TriggerSlackReceive = "SLACK_RECEIVE_MESSAGE"
	TriggerGmailMessage = "GMAIL_NEW_GMAIL_MESSAGE"
)

// ErrUnknownTrigger is returned for trigger slugs that are not handled
var ErrUnknownTrigger = errors.New("unknown trigger")

// TriggerEvent is a webhook delivery from the integration platform
type TriggerEvent struct {
	Slug    string         `json:"triggerSlug"`
	Payload map[string]any `json:"payload"`
}

// ParseTrigger decodes a webhook body. The slug is read from triggerSlug,
// trigger_slug or type, and the payload from payload or data.
func ParseTrigger(body []byte) (TriggerEvent, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return TriggerEvent{}, fmt.Errorf("invalid trigger body: %w", err)
	}

	event := TriggerEvent{
		Slug: strings.ToUpper(firstString(raw, "triggerSlug", "trigger_slug", "type")),
	}
	for _, key := range []string{"payload", "data"} {
		if p, ok := raw[key].(map[string]any); ok {
			event.Payload = p
			break
		}
	}

	if event.Slug == "" {
		return TriggerEvent{}, errors.New("trigger slug is missing")
	}
	if event.Payload == nil {
		event.Payload = map[string]any{}
	}
	return event, nil
}

// FilterOptions controls which messages are worth analyzing
type FilterOptions struct {
	// SlackUserID is the connected user's Slack id, matched against <@id> mentions
	SlackUserID string
}

// Normalize converts a trigger event into a message context. ok is false when
// the event should be skipped; reason then says why.
func Normalize(event TriggerEvent, opts FilterOptions) (msg models.MessageContext, ok bool, reason string, err error) {
	switch event.Slug {
	case TriggerSlackMessage, TriggerSlackReceive:
		msg, ok, reason = NormalizeSlack(event.Payload, opts.SlackUserID)
		return msg, ok, reason, nil
	case TriggerGmailMessage:
		msg, ok, reason = NormalizeGmail(event.Payload)
		return msg, ok, reason, nil
	default:
		return models.MessageContext{}, false, "", fmt.Errorf("%w: %s", ErrUnknownTrigger, event.Slug)
	}
}

// str reads a payload field as a string. Numbers are formatted without an
// exponent since some providers send timestamps as JSON numbers.
func str(payload map[string]any, key string) string {
	switch v := payload[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

func firstString(payload map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := str(payload, k); s != "" {
			return s
		}
	}
	return ""
}
