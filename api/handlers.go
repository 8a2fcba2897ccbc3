package api

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/xiaoyuanzhu-com/hound/server"
)

// Handlers holds references to server components
type Handlers struct {
	server *server.Server
}

// NewHandlers creates a new Handlers instance with server reference
func NewHandlers(srv *server.Server) *Handlers {
	return &Handlers{server: srv}
}

// entityID reads the caller's entity from the X-Entity-Id header or the
// entityId query parameter. It responds 400 and returns false when neither is set.
func entityID(c *gin.Context) (string, bool) {
	id := strings.TrimSpace(c.GetHeader("X-Entity-Id"))
	if id == "" {
		id = strings.TrimSpace(c.Query("entityId"))
	}
	if id == "" {
		RespondValidationError(c, "Entity id is required", []ErrorDetail{
			{Field: "entityId", Message: "set the X-Entity-Id header or the entityId query parameter"},
		})
		return "", false
	}
	return id, true
}
