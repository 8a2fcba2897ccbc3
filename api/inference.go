package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xiaoyuanzhu-com/hound/models"
)

// Infer handles POST /api/inference
// Runs the two-stage pipeline on a posted message without storing the result.
func (h *Handlers) Infer(c *gin.Context) {
	var msg models.MessageContext
	if err := c.ShouldBindJSON(&msg); err != nil {
		RespondBadRequest(c, "Invalid request body")
		return
	}

	source, err := models.ParseSource(string(msg.Source))
	if err != nil {
		RespondValidationError(c, "Invalid message source", []ErrorDetail{
			{Field: "source", Message: err.Error()},
		})
		return
	}
	msg.Source = source

	pipeline := h.server.Pipeline()
	if pipeline == nil {
		RespondServiceUnavailable(c, "Model provider is not configured")
		return
	}

	proposal := pipeline.Build(c.Request.Context(), msg)
	c.JSON(http.StatusOK, gin.H{"proposal": proposal})
}
