package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xiaoyuanzhu-com/hound/agent"
	"github.com/xiaoyuanzhu-com/hound/llm"
	"github.com/xiaoyuanzhu-com/hound/log"
)

var chatLogger = log.GetLogger("ApiChat")

const chatSystemPrompt = `You are Hound, a helpful AI assistant that keeps track of the tasks hiding in the user's messages and helps them act on them.

Current date and time: %s

Guidelines:
- Be concise and helpful
- When listing proposals or messages, summarize the key points
- If you need to use a tool, explain briefly what you're doing
- If a tool fails, explain the error and suggest alternatives
- Format responses with markdown when appropriate for readability`

// ChatMessage is one conversation entry posted by the client
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of POST /api/chat
type ChatRequest struct {
	Messages []ChatMessage `json:"messages"`
}

func chatSystem(now time.Time) string {
	return fmt.Sprintf(chatSystemPrompt, now.Format("2006-01-02 15:04:05 MST"))
}

// Chat handles POST /api/chat (SSE)
// Streams one data record per agent event followed by data: [DONE].
func (h *Handlers) Chat(c *gin.Context) {
	entity, ok := entityID(c)
	if !ok {
		return
	}

	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body")
		return
	}

	turns := make([]llm.Turn, 0, len(req.Messages))
	for i, m := range req.Messages {
		role := llm.Role(strings.ToLower(strings.TrimSpace(m.Role)))
		switch role {
		case llm.RoleUser, llm.RoleAssistant, llm.RoleSystem:
		default:
			RespondValidationError(c, "Invalid message role", []ErrorDetail{
				{Field: fmt.Sprintf("messages[%d].role", i), Message: "must be user, assistant or system"},
			})
			return
		}
		turns = append(turns, llm.Turn{Role: role, Content: m.Content})
	}

	loop := h.server.Agent()
	if loop == nil {
		RespondServiceUnavailable(c, "Model provider is not configured")
		return
	}

	router := h.server.ToolsFor(entity)
	agentReq := agent.Request{
		System:   chatSystem(time.Now()),
		Messages: turns,
	}
	if !router.Empty() {
		agentReq.Tools = router.Schemas()
		agentReq.Executor = router
	}

	chatLogger.Info().
		Str("entityId", entity).
		Int("messages", len(turns)).
		Int("tools", len(agentReq.Tools)).
		Msg("chat request")

	// Stop generating when the client goes away or the server shuts down
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	stop := context.AfterFunc(h.server.ShutdownContext(), cancel)
	defer stop()

	setSSEHeaders(c)

	for ev := range loop.Run(ctx, agentReq) {
		data, err := agent.MarshalEvent(ev)
		if err != nil {
			chatLogger.Error().Err(err).Msg("failed to marshal event")
			continue
		}
		fmt.Fprintf(c.Writer, "data: %s\n\n", data)
		c.Writer.Flush()
	}

	fmt.Fprint(c.Writer, "data: [DONE]\n\n")
	c.Writer.Flush()
}

func setSSEHeaders(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // Disable nginx buffering
	c.Status(http.StatusOK)
}
