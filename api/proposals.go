package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/xiaoyuanzhu-com/hound/db"
	"github.com/xiaoyuanzhu-com/hound/log"
	"github.com/xiaoyuanzhu-com/hound/vendors"
)

var proposalsLogger = log.GetLogger("ApiProposals")

// ListProposals handles GET /api/proposals
// Returns the entity's pending proposals, newest first.
func (h *Handlers) ListProposals(c *gin.Context) {
	entity, ok := entityID(c)
	if !ok {
		return
	}

	limit := db.DefaultProposalLimit
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 && l <= 200 {
		limit = l
	}

	proposals, err := h.server.DB().ListProposals(entity, limit)
	if err != nil {
		proposalsLogger.Error().Err(err).Str("entityId", entity).Msg("failed to list proposals")
		RespondInternalError(c, "Failed to list proposals")
		return
	}

	c.JSON(http.StatusOK, gin.H{"proposals": proposals})
}

// DeleteProposal handles DELETE /api/proposals/:id
func (h *Handlers) DeleteProposal(c *gin.Context) {
	entity, ok := entityID(c)
	if !ok {
		return
	}
	proposalID := c.Param("id")

	removed, err := h.server.DB().RemoveProposal(entity, proposalID)
	if err != nil {
		proposalsLogger.Error().Err(err).Str("proposalId", proposalID).Msg("failed to remove proposal")
		RespondInternalError(c, "Failed to remove proposal")
		return
	}
	if !removed {
		RespondNotFound(c, "Proposal not found")
		return
	}

	if search := h.server.Search(); search != nil {
		if err := search.DeleteProposal(entity, proposalID); err != nil {
			proposalsLogger.Warn().Err(err).Str("proposalId", proposalID).Msg("failed to remove proposal from search index")
		}
	}
	h.server.Notifications().NotifyProposalRemoved(entity, proposalID)

	c.JSON(http.StatusOK, gin.H{"success": true, "proposal_id": proposalID})
}

// SearchProposals handles GET /api/proposals/search
func (h *Handlers) SearchProposals(c *gin.Context) {
	entity, ok := entityID(c)
	if !ok {
		return
	}

	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		RespondValidationError(c, "Query parameter 'q' is required", []ErrorDetail{
			{Field: "q", Message: "required"},
		})
		return
	}

	search := h.server.Search()
	if search == nil {
		RespondServiceUnavailable(c, "Proposal search is not configured")
		return
	}

	limit := 20
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 && l <= 100 {
		limit = l
	}
	offset := 0
	if o, err := strconv.Atoi(c.Query("offset")); err == nil && o >= 0 {
		offset = o
	}

	result, err := search.Search(query, vendors.MeiliSearchOptions{
		EntityID: entity,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		proposalsLogger.Error().Err(err).Str("query", query).Msg("proposal search failed")
		RespondServiceUnavailable(c, "Proposal search failed")
		return
	}

	// Drop hits for proposals that expired or were dismissed since indexing
	hits := make([]vendors.ProposalDocument, 0, len(result.Hits))
	for _, hit := range result.Hits {
		p, err := h.server.DB().GetProposal(entity, hit.ProposalID)
		if err != nil {
			proposalsLogger.Warn().Err(err).Str("proposalId", hit.ProposalID).Msg("failed to load proposal for search hit")
			continue
		}
		if p == nil {
			continue
		}
		hits = append(hits, hit)
	}
	result.Hits = hits

	c.JSON(http.StatusOK, result)
}
