package api

import (
	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all API routes
func SetupRoutes(r *gin.Engine, h *Handlers) {
	// API group
	api := r.Group("/api")

	// Health
	api.GET("/health", h.Health)

	// Agent chat (SSE)
	api.POST("/chat", h.Chat)

	// Proposals - static routes first
	api.GET("/proposals", h.ListProposals)
	api.GET("/proposals/search", h.SearchProposals)
	api.DELETE("/proposals/:id", h.DeleteProposal)

	// Inference dry run
	api.POST("/inference", h.Infer)

	// Webhooks
	api.POST("/webhooks/composio", h.ComposioWebhook)

	// Settings
	api.GET("/settings", h.ListSettings)
	api.GET("/settings/:key", h.GetSetting)
	api.PUT("/settings/:key", h.PutSetting)
	api.DELETE("/settings/:key", h.DeleteSetting)

	// Notifications (SSE)
	api.GET("/notifications/stream", h.NotificationStream)
}
