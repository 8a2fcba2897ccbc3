package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/xiaoyuanzhu-com/hound/ingest"
	"github.com/xiaoyuanzhu-com/hound/log"
)

var webhookLogger = log.GetLogger("ApiWebhooks")

const maxWebhookBody = 1 << 20

// ComposioWebhook handles POST /api/webhooks/composio
// Verifies the signature, applies the rate limit, filters the message and
// queues it for inference.
func (h *Handlers) ComposioWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		RespondBadRequest(c, "Failed to read request body")
		return
	}

	cfg := h.server.Config()
	if !VerifySignature(body, c.GetHeader("X-Composio-Signature"), cfg.WebhookSecret) {
		webhookLogger.Warn().Str("ip", c.ClientIP()).Msg("webhook signature mismatch")
		RespondUnauthorized(c, "Invalid signature")
		return
	}

	worker := h.server.Ingest()
	if worker == nil {
		RespondServiceUnavailable(c, "Model provider is not configured")
		return
	}

	entity := worker.EntityID()

	if cfg.RateLimitRequests > 0 {
		limit, err := h.server.DB().CheckRateLimit(entity, cfg.RateLimitRequests, cfg.RateLimitWindow)
		if err != nil {
			webhookLogger.Error().Err(err).Msg("rate limit check failed")
			RespondInternalError(c, "Rate limit check failed")
			return
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(limit.Remaining))
		if !limit.Allowed {
			webhookLogger.Warn().Str("entityId", entity).Msg("webhook rate limited")
			RespondTooManyRequests(c, "Rate limit exceeded")
			return
		}
	}

	event, err := ingest.ParseTrigger(body)
	if err != nil {
		RespondBadRequest(c, err.Error())
		return
	}

	msg, ok, reason, err := ingest.Normalize(event, worker.Filter())
	if errors.Is(err, ingest.ErrUnknownTrigger) {
		webhookLogger.Info().Str("trigger", event.Slug).Msg("ignoring unsupported trigger")
		c.JSON(http.StatusOK, gin.H{"status": "ignored", "reason": "unsupported trigger"})
		return
	}
	if !ok {
		webhookLogger.Info().Str("trigger", event.Slug).Str("reason", reason).Msg("skipping webhook message")
		c.JSON(http.StatusOK, gin.H{"status": "skipped", "reason": reason})
		return
	}

	if !worker.Enqueue(ingest.Job{EntityID: entity, Message: msg}) {
		RespondServiceUnavailable(c, "Ingest queue is full")
		return
	}

	RespondAccepted(c, gin.H{"status": "queued"})
}

// VerifySignature checks a hex HMAC-SHA256 of body, optionally prefixed with
// "sha256=". An empty secret disables verification.
func VerifySignature(body []byte, signature, secret string) bool {
	if secret == "" {
		return true
	}

	signature = strings.TrimPrefix(strings.TrimSpace(signature), "sha256=")
	got, err := hex.DecodeString(signature)
	if err != nil || len(got) == 0 {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}
