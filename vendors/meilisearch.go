package vendors

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/meilisearch/meilisearch-go"
	"github.com/xiaoyuanzhu-com/hound/config"
	"github.com/xiaoyuanzhu-com/hound/log"
	"github.com/xiaoyuanzhu-com/hound/models"
)

var (
	meiliClient     *MeiliClient
	meiliClientOnce sync.Once
	meiliLogger     = log.GetLogger("Meilisearch")
)

// MeiliClient indexes task proposals for full-text search
type MeiliClient struct {
	client   meilisearch.ServiceManager
	index    meilisearch.IndexManager
	indexUID string
}

// MeiliSearchOptions holds search options
type MeiliSearchOptions struct {
	EntityID string
	Limit    int
	Offset   int
}

// MeiliSearchResult represents a search result
type MeiliSearchResult struct {
	Hits               []ProposalDocument `json:"hits"`
	EstimatedTotalHits int                `json:"estimatedTotalHits"`
	Limit              int                `json:"limit"`
	Offset             int                `json:"offset"`
	Query              string             `json:"query"`
}

// ProposalDocument is the indexed form of a proposal
type ProposalDocument struct {
	DocumentID string  `json:"documentId"`
	EntityID   string  `json:"entityId"`
	ProposalID string  `json:"proposalId"`
	Title      string  `json:"title"`
	Desc       string  `json:"description,omitempty"`
	Priority   string  `json:"priority"`
	Source     string  `json:"source"`
	Sender     string  `json:"sender"`
	Content    string  `json:"content"`
	Confidence float64 `json:"confidence"`
	CreatedAt  string  `json:"createdAt"`
}

// GetMeiliClient returns the singleton Meilisearch client, or nil when
// MEILI_HOST is unset or unreachable
func GetMeiliClient() *MeiliClient {
	meiliClientOnce.Do(func() {
		cfg := config.Get()
		if cfg.MeiliHost == "" {
			meiliLogger.Info().Msg("MEILI_HOST not configured, proposal search disabled")
			return
		}

		client := meilisearch.New(cfg.MeiliHost, meilisearch.WithAPIKey(cfg.MeiliAPIKey))

		// Verify connection
		if _, err := client.Health(); err != nil {
			meiliLogger.Error().Err(err).Msg("failed to connect to Meilisearch")
			return
		}

		index := client.Index(cfg.MeiliIndex)
		if _, err := index.UpdateFilterableAttributes(&[]string{"entityId", "priority", "source"}); err != nil {
			meiliLogger.Warn().Err(err).Msg("failed to set filterable attributes")
		}

		meiliClient = &MeiliClient{
			client:   client,
			index:    index,
			indexUID: cfg.MeiliIndex,
		}

		meiliLogger.Info().Str("host", cfg.MeiliHost).Str("index", cfg.MeiliIndex).Msg("Meilisearch initialized")
	})

	return meiliClient
}

// NewProposalDocument builds the indexed form of a proposal. Document ids are
// scoped by entity so two entities never collide.
func NewProposalDocument(entityID string, p models.TaskProposal) ProposalDocument {
	return ProposalDocument{
		DocumentID: documentID(entityID, p.ProposalID),
		EntityID:   entityID,
		ProposalID: p.ProposalID,
		Title:      p.Title,
		Desc:       p.Description,
		Priority:   string(p.Priority),
		Source:     string(p.Source),
		Sender:     p.SourceContext.Sender,
		Content:    p.SourceContext.OriginalContent,
		Confidence: p.Confidence,
		CreatedAt:  p.CreatedAt,
	}
}

// Search performs a search query restricted to one entity
func (m *MeiliClient) Search(query string, opts MeiliSearchOptions) (*MeiliSearchResult, error) {
	if m == nil {
		return nil, nil
	}

	searchReq := &meilisearch.SearchRequest{
		Limit:            int64(opts.Limit),
		Offset:           int64(opts.Offset),
		MatchingStrategy: "all",
	}
	if opts.EntityID != "" {
		searchReq.Filter = buildEntityFilter(opts.EntityID)
	}

	resp, err := m.index.Search(query, searchReq)
	if err != nil {
		return nil, err
	}

	result := &MeiliSearchResult{
		Hits:               []ProposalDocument{},
		EstimatedTotalHits: int(resp.EstimatedTotalHits),
		Limit:              opts.Limit,
		Offset:             opts.Offset,
		Query:              query,
	}

	for _, hit := range resp.Hits {
		doc, err := decodeHit(hit)
		if err != nil {
			meiliLogger.Warn().Err(err).Msg("skipping undecodable hit")
			continue
		}
		result.Hits = append(result.Hits, doc)
	}

	return result, nil
}

// IndexProposal indexes a proposal for an entity
func (m *MeiliClient) IndexProposal(entityID string, p models.TaskProposal) error {
	if m == nil {
		return nil
	}

	_, err := m.index.AddDocuments([]ProposalDocument{NewProposalDocument(entityID, p)}, "documentId")
	return err
}

// DeleteProposal removes a proposal from the index
func (m *MeiliClient) DeleteProposal(entityID, proposalID string) error {
	if m == nil {
		return nil
	}

	_, err := m.index.DeleteDocument(documentID(entityID, proposalID))
	return err
}

// Helper functions

// documentID maps to Meilisearch's allowed id alphabet (alphanumeric, - and _)
func documentID(entityID, proposalID string) string {
	return sanitizeID(entityID) + "_" + sanitizeID(proposalID)
}

func sanitizeID(s string) string {
	var sb strings.Builder
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-':
			sb.WriteRune(c)
		default:
			sb.WriteRune('-')
		}
	}
	return sb.String()
}

func buildEntityFilter(entityID string) string {
	return fmt.Sprintf("entityId = \"%s\"", escapeFilter(entityID))
}

func escapeFilter(value string) string {
	// Escape backslashes and quotes
	result := ""
	for _, c := range value {
		switch c {
		case '\\':
			result += "\\\\"
		case '"':
			result += "\\\""
		default:
			result += string(c)
		}
	}
	return result
}

func decodeHit(hit any) (ProposalDocument, error) {
	var doc ProposalDocument
	raw, err := json.Marshal(hit)
	if err != nil {
		return doc, err
	}
	err = json.Unmarshal(raw, &doc)
	return doc, err
}
