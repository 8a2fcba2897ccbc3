package ingest

import (
	"strings"

	"github.com/xiaoyuanzhu-com/hound/models"
)

// NormalizeGmail builds a message context from a new-email payload. The body
// falls back to the snippet, and the subject is prepended to the analyzed
// content.
func NormalizeGmail(payload map[string]any) (models.MessageContext, bool, string) {
	body := firstString(payload, "body", "snippet")
	subject := str(payload, "subject")

	if body == "" && subject == "" {
		return models.MessageContext{}, false, "no content"
	}

	content := body
	if subject != "" {
		content = "Subject: " + subject + "\n\n" + body
	}

	sender := str(payload, "from")
	if sender == "" {
		sender = "unknown"
	}

	return models.MessageContext{
		Source:    models.SourceGmail,
		Content:   content,
		Sender:    sender,
		Timestamp: firstString(payload, "date", "internalDate"),
		Subject:   subject,
		MessageID: firstString(payload, "id", "messageId"),
		IsReply:   isReplySubject(subject),
	}, true, ""
}

func isReplySubject(subject string) bool {
	s := strings.ToLower(strings.TrimSpace(subject))
	return strings.HasPrefix(s, "re:")
}
