package ingest

import (
	"strings"

	"github.com/xiaoyuanzhu-com/hound/models"
)

var broadcastMentions = []string{"<!here>", "<!channel>", "<!everyone>"}

var plainMentions = []string{"@here", "@channel", "@everyone"}

// IsUserMentioned reports whether a Slack message addresses the user, either
// directly (<@USERID>) or through a broadcast mention.
func IsUserMentioned(text, slackUserID string) bool {
	for _, p := range broadcastMentions {
		if strings.Contains(text, p) {
			return true
		}
	}

	if slackUserID != "" && strings.Contains(text, "<@"+slackUserID+">") {
		return true
	}

	// Some integrations flatten mentions to plain text
	lower := strings.ToLower(text)
	for _, p := range plainMentions {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// NormalizeSlack builds a message context from a Slack message payload.
// Empty messages, bot messages and messages that do not mention the user are
// skipped.
func NormalizeSlack(payload map[string]any, slackUserID string) (models.MessageContext, bool, string) {
	text := str(payload, "text")
	if text == "" {
		return models.MessageContext{}, false, "no text"
	}

	if str(payload, "bot_id") != "" || str(payload, "subtype") == "bot_message" {
		return models.MessageContext{}, false, "bot message"
	}

	if !IsUserMentioned(text, slackUserID) {
		return models.MessageContext{}, false, "user not mentioned"
	}

	sender := str(payload, "user")
	if sender == "" {
		sender = "unknown"
	}

	return models.MessageContext{
		Source:      models.SourceSlack,
		Content:     text,
		Sender:      sender,
		Timestamp:   str(payload, "ts"),
		Channel:     str(payload, "channel"),
		ChannelType: str(payload, "channel_type"),
		ThreadID:    str(payload, "thread_ts"),
	}, true, ""
}
