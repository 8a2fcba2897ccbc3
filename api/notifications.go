package api

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xiaoyuanzhu-com/hound/log"
	"github.com/xiaoyuanzhu-com/hound/notifications"
)

var notifLogger = log.GetLogger("ApiNotifications")

// heartbeatInterval is how often an idle notification stream sends a comment
var heartbeatInterval = 30 * time.Second

// NotificationStream handles GET /api/notifications/stream (SSE)
// When an entity is given, only that entity's events are forwarded.
func (h *Handlers) NotificationStream(c *gin.Context) {
	entity := c.GetHeader("X-Entity-Id")
	if entity == "" {
		entity = c.Query("entityId")
	}

	setSSEHeaders(c)

	// Subscribe to notifications
	events, unsubscribe := h.server.Notifications().Subscribe()
	defer unsubscribe()

	// Send initial connected event
	sendSSEEvent(c, notifications.Event{
		Type:      notifications.EventConnected,
		Timestamp: time.Now().UnixMilli(),
		EntityID:  entity,
	})
	c.Writer.Flush()

	notifLogger.Debug().Str("entityId", entity).Msg("client connected to notification stream")

	// Heartbeat ticker
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	// Stream events
	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			if entity != "" && event.EntityID != "" && event.EntityID != entity {
				continue
			}
			sendSSEEvent(c, event)
			c.Writer.Flush()

		case <-ticker.C:
			// Send heartbeat comment
			fmt.Fprintf(c.Writer, ": heartbeat\n\n")
			c.Writer.Flush()

		case <-h.server.ShutdownContext().Done():
			return

		case <-c.Request.Context().Done():
			notifLogger.Debug().Msg("client disconnected from notification stream")
			return
		}
	}
}

func sendSSEEvent(c *gin.Context, event notifications.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		notifLogger.Error().Err(err).Msg("failed to marshal event")
		return
	}
	fmt.Fprintf(c.Writer, "data: %s\n\n", data)
}
