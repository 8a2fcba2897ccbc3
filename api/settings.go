package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xiaoyuanzhu-com/hound/log"
)

var settingsLogger = log.GetLogger("ApiSettings")

// ListSettings handles GET /api/settings
func (h *Handlers) ListSettings(c *gin.Context) {
	entity, ok := entityID(c)
	if !ok {
		return
	}

	settings, err := h.server.DB().ListUserSettings(entity)
	if err != nil {
		settingsLogger.Error().Err(err).Msg("failed to list settings")
		RespondInternalError(c, "Failed to get settings")
		return
	}

	values := make(map[string]string, len(settings))
	for _, s := range settings {
		values[s.Key] = s.Value
	}
	c.JSON(http.StatusOK, gin.H{"settings": values})
}

// GetSetting handles GET /api/settings/:key
func (h *Handlers) GetSetting(c *gin.Context) {
	entity, ok := entityID(c)
	if !ok {
		return
	}
	key := c.Param("key")

	value, found, err := h.server.DB().GetUserSetting(entity, key)
	if err != nil {
		settingsLogger.Error().Err(err).Str("key", key).Msg("failed to get setting")
		RespondInternalError(c, "Failed to get setting")
		return
	}
	if !found {
		RespondNotFound(c, "Setting not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{"key": key, "value": value})
}

// PutSetting handles PUT /api/settings/:key
func (h *Handlers) PutSetting(c *gin.Context) {
	entity, ok := entityID(c)
	if !ok {
		return
	}
	key := c.Param("key")

	var body struct {
		Value *string `json:"value"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Value == nil {
		RespondValidationError(c, "Invalid request body", []ErrorDetail{
			{Field: "value", Message: "a string value is required"},
		})
		return
	}

	if err := h.server.DB().SetUserSetting(entity, key, *body.Value); err != nil {
		settingsLogger.Error().Err(err).Str("key", key).Msg("failed to update setting")
		RespondInternalError(c, "Failed to update setting")
		return
	}

	c.JSON(http.StatusOK, gin.H{"key": key, "value": *body.Value})
}

// DeleteSetting handles DELETE /api/settings/:key
func (h *Handlers) DeleteSetting(c *gin.Context) {
	entity, ok := entityID(c)
	if !ok {
		return
	}

	if err := h.server.DB().DeleteUserSetting(entity, c.Param("key")); err != nil {
		settingsLogger.Error().Err(err).Msg("failed to delete setting")
		RespondInternalError(c, "Failed to delete setting")
		return
	}

	RespondNoContent(c)
}
