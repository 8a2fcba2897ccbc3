package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/xiaoyuanzhu-com/hound/llm"
	"github.com/xiaoyuanzhu-com/hound/models"
)

// ProposalStore is the proposal storage the built-in tools operate on
type ProposalStore interface {
	ListProposals(entityID string, limit int) ([]models.TaskProposal, error)
	RemoveProposal(entityID, proposalID string) (bool, error)
}

// BuiltinOptions scopes the built-in tools to one entity
type BuiltinOptions struct {
	EntityID string
	Store    ProposalStore
	Now      func() time.Time

	// OnDismiss is called after a proposal is dismissed
	OnDismiss func(entityID, proposalID string)
}

const maxListLimit = 50

// NewBuiltinRegistry returns a registry with the proposal and clock tools.
// The proposal tools are omitted when no store is supplied.
func NewBuiltinRegistry(opts BuiltinOptions) *Registry {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	r := NewRegistry()

	r.Register(Tool{
		Schema: schema("get_current_time", "Get the current date and time.", map[string]any{}, nil),
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			now := opts.Now()
			return map[string]any{
				"datetime": now.Format(time.RFC3339),
				"weekday":  now.Weekday().String(),
			}, nil
		},
	})

	if opts.Store == nil {
		return r
	}

	r.Register(Tool{
		Schema: schema(
			"list_proposals",
			"List the user's pending task proposals, newest first.",
			map[string]any{
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum number of proposals to return (default 10, max 50)",
				},
			},
			nil,
		),
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			limit := intArg(args, "limit", 10)
			if limit <= 0 || limit > maxListLimit {
				limit = maxListLimit
			}

			proposals, err := opts.Store.ListProposals(opts.EntityID, limit)
			if err != nil {
				return nil, fmt.Errorf("failed to list proposals: %w", err)
			}

			items := make([]map[string]any, 0, len(proposals))
			for _, p := range proposals {
				item := map[string]any{
					"proposal_id": p.ProposalID,
					"title":       p.Title,
					"priority":    string(p.Priority),
					"source":      string(p.Source),
					"confidence":  p.Confidence,
				}
				if p.DueDate != "" {
					item["due_date"] = p.DueDate
				}
				items = append(items, item)
			}
			return map[string]any{"proposals": items, "count": len(items)}, nil
		},
	})

	r.Register(Tool{
		Schema: schema(
			"dismiss_proposal",
			"Dismiss a pending task proposal by id.",
			map[string]any{
				"proposal_id": map[string]any{
					"type":        "string",
					"description": "The proposal id to dismiss",
				},
			},
			[]string{"proposal_id"},
		),
		Handler: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			id, _ := args["proposal_id"].(string)
			if id == "" {
				return nil, fmt.Errorf("proposal_id is required")
			}

			removed, err := opts.Store.RemoveProposal(opts.EntityID, id)
			if err != nil {
				return nil, fmt.Errorf("failed to dismiss proposal: %w", err)
			}
			if !removed {
				return nil, fmt.Errorf("proposal not found: %s", id)
			}
			if opts.OnDismiss != nil {
				opts.OnDismiss(opts.EntityID, id)
			}
			return map[string]any{"dismissed": true, "proposal_id": id}, nil
		},
	})

	return r
}

func schema(name, description string, properties map[string]any, required []string) llm.ToolSchema {
	params := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		params["required"] = required
	}
	return llm.ToolSchema{Name: name, Description: description, Parameters: params}
}

// intArg reads a numeric argument decoded from JSON
func intArg(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	default:
		return def
	}
}
