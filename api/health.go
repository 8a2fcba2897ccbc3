package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Health handles GET /api/health
func (h *Handlers) Health(c *gin.Context) {
	status := gin.H{
		"status":    "ok",
		"inference": h.server.Pipeline() != nil,
		"search":    h.server.Search() != nil,
	}

	if version, err := h.server.DB().CurrentVersion(); err == nil {
		status["schemaVersion"] = version
	} else {
		status["status"] = "degraded"
	}
	if h.server.SearchSync() != nil {
		if pending, err := h.server.DB().CountUnindexedProposals(); err == nil {
			status["searchPending"] = pending
		}
	}
	if worker := h.server.Ingest(); worker != nil {
		status["ingest"] = worker.Stats()
	}

	c.JSON(http.StatusOK, status)
}
