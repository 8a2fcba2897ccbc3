package inference

import (
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai/jsonschema"
	"github.com/xiaoyuanzhu-com/hound/models"
)

const classifierPromptTemplate = `You are classifying messages. Respond with exactly one word: either "task" or "chat".

TASK - message contains:
- Deadlines (by today, by Friday, EOD, ASAP, due)
- Action requests (complete, finish, do, submit, send, review)
- Assignments or todos
- Something that needs to be done

CHAT - message contains:
- Greetings, social chat
- Already completed items
- Pure information with no action needed

Message to classify:
"%s"

Classification (task or chat):`

const extractorSystemPromptTemplate = `You are a task detection AI. Analyze messages to identify actionable tasks, to-dos, and deadlines.

CURRENT DATE: %s

TASK INDICATORS (high confidence 0.8-1.0):
- Direct requests: "please do", "can you", "need you to", "make sure to"
- Action items: "TODO", "action item", "follow up", "don't forget"
- Deadlines: "by Friday", "due tomorrow", "ASAP", "urgent", "EOD", "end of week"
- Assignments: mentions of the user, "assigned to you", "your responsibility"
- Commitments: "I'll handle", "I will", "let me take care of"

TASK INDICATORS (medium confidence 0.5-0.8):
- Questions implying action: "Can we schedule?", "Would you be able to?"
- Suggestions: "We should", "It would be good to"
- Meeting follow-ups: "As discussed", "Per our conversation"

LOW CONFIDENCE (0.3-0.5):
- Vague requests without clear action
- Information that might need follow-up

NOT TASKS (confidence < 0.3):
- Pure informational messages
- Social chat, greetings
- Already completed items ("I finished", "Done")
- Questions seeking information only
- Automated notifications without action needed

PRIORITY RULES:
- HIGH: Contains "urgent", "ASAP", "critical", "blocking", deadline within 24h
- MEDIUM: Has a deadline within 1 week, or explicit request
- LOW: No deadline, nice-to-have, suggestions

When extracting deadlines, convert relative dates to ISO 8601 format (YYYY-MM-DD) based on the current date.
Keep task titles concise (under 80 characters) and actionable.
Respond with JSON only.`

// currentDateLayout renders e.g. "Wednesday, January 03, 2024"
const currentDateLayout = "Monday, January 02, 2006"

func classifierPrompt(content string) string {
	return fmt.Sprintf(classifierPromptTemplate, content)
}

func extractorSystemPrompt(currentDate time.Time) string {
	return fmt.Sprintf(extractorSystemPromptTemplate, currentDate.Format(currentDateLayout))
}

// extractorUserPrompt embeds the message and its source metadata. Content is
// passed in full.
func extractorUserPrompt(msg models.MessageContext) string {
	var sourceInfo, sourceType string
	if msg.Source.IsChat() {
		channel := msg.Channel
		if channel == "" {
			channel = "DM"
		}
		sourceInfo = "CHANNEL: " + channel
		sourceType = "Slack message"
	} else {
		subject := msg.Subject
		if subject == "" {
			subject = "(no subject)"
		}
		sourceInfo = "SUBJECT: " + subject
		sourceType = "email"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Analyze this %s for potential tasks:\n\n", sourceType)
	fmt.Fprintf(&sb, "SOURCE: %s\n", strings.ToUpper(string(msg.Source)))
	sb.WriteString(sourceInfo + "\n")
	fmt.Fprintf(&sb, "FROM: %s\n", msg.Sender)
	fmt.Fprintf(&sb, "TIME: %s\n\n", msg.Timestamp)
	sb.WriteString("CONTENT:\n")
	sb.WriteString(msg.Content)
	sb.WriteString("\n\nDetermine if this contains an actionable task for the recipient. If yes, extract the task details.")
	return sb.String()
}

// taskExtractionSchema mirrors models.TaskExtraction
var taskExtractionSchema = jsonschema.Definition{
	Type: jsonschema.Object,
	Properties: map[string]jsonschema.Definition{
		"is_task": {
			Type:        jsonschema.Boolean,
			Description: "Whether the message contains an actionable task for the recipient",
		},
		"confidence": {
			Type:        jsonschema.Number,
			Description: "Confidence between 0.0 and 1.0",
		},
		"task": {
			Type:        jsonschema.Object,
			Description: "Task details, present only when is_task is true",
			Properties: map[string]jsonschema.Definition{
				"title": {
					Type:        jsonschema.String,
					Description: "Concise, actionable title under 80 characters",
				},
				"description": {
					Type:        jsonschema.String,
					Description: "Additional details",
				},
				"due_date": {
					Type:        jsonschema.String,
					Description: "Deadline in ISO 8601 format, if any",
				},
				"priority": {
					Type: jsonschema.String,
					Enum: []string{string(models.PriorityLow), string(models.PriorityMedium), string(models.PriorityHigh)},
				},
				"reasoning": {
					Type:        jsonschema.String,
					Description: "Why this was classified as a task",
				},
			},
			Required: []string{"title", "priority", "reasoning"},
		},
	},
	Required: []string{"is_task", "confidence"},
}
