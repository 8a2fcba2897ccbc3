package inference

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/xiaoyuanzhu-com/hound/models"
	"github.com/xiaoyuanzhu-com/hound/utils"
)

const (
	// DefaultConfidenceThreshold is the minimum extraction confidence for a proposal
	DefaultConfidenceThreshold = 0.6
	// OriginalContentLimit is how many characters of content a proposal keeps
	OriginalContentLimit = 1000
)

// TaskClassifier is stage 1 of the pipeline
type TaskClassifier interface {
	Classify(ctx context.Context, content string) Classification
}

// TaskExtractor is stage 2 of the pipeline
type TaskExtractor interface {
	Extract(ctx context.Context, msg models.MessageContext, currentDate time.Time) models.TaskExtraction
}

// Options tunes a pipeline
type Options struct {
	Threshold float64

	// NewID and Now are overridable for tests
	NewID func() string
	Now   func() time.Time
}

// Pipeline runs classification, extraction and the confidence gate.
// It is stateless per call and safe for concurrent use.
type Pipeline struct {
	classifier TaskClassifier
	extractor  TaskExtractor
	threshold  float64
	newID      func() string
	now        func() time.Time
}

// NewPipeline creates a pipeline
func NewPipeline(classifier TaskClassifier, extractor TaskExtractor, opts Options) *Pipeline {
	p := &Pipeline{
		classifier: classifier,
		extractor:  extractor,
		threshold:  opts.Threshold,
		newID:      opts.NewID,
		now:        opts.Now,
	}
	if p.threshold <= 0 {
		p.threshold = DefaultConfidenceThreshold
	}
	if p.newID == nil {
		p.newID = func() string { return uuid.New().String() }
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// Threshold returns the confidence gate in effect
func (p *Pipeline) Threshold() float64 {
	return p.threshold
}

// Build runs the pipeline and returns a proposal, or nil when the message is
// chat, not a task, below the confidence gate, or missing task details. The
// classifier always runs first and is the only gate in front of extraction.
func (p *Pipeline) Build(ctx context.Context, msg models.MessageContext) *models.TaskProposal {
	if p.classifier.Classify(ctx, msg.Content) == ClassChat {
		logger.Info().Msg("message classified as chat, skipping extraction")
		return nil
	}

	now := p.now()
	extraction := p.extractor.Extract(ctx, msg, now)

	if !extraction.IsTask {
		logger.Info().Float64("confidence", extraction.Confidence).Msg("no task detected")
		return nil
	}
	if extraction.Confidence < p.threshold {
		logger.Info().
			Float64("confidence", extraction.Confidence).
			Float64("threshold", p.threshold).
			Msg("task below confidence threshold")
		return nil
	}
	if extraction.Task == nil {
		logger.Info().Msg("extraction claimed a task without details")
		return nil
	}

	proposal := BuildProposal(msg, *extraction.Task, extraction.Confidence, p.newID(), now)
	logger.Info().
		Str("proposalId", proposal.ProposalID).
		Str("title", proposal.Title).
		Str("priority", string(proposal.Priority)).
		Msg("created proposal")
	return &proposal
}

// BuildProposal assembles a proposal from a message and its extracted task.
// The title is capped at models.MaxTitleLength and the original content at
// OriginalContentLimit characters.
func BuildProposal(msg models.MessageContext, task models.TaskDetails, confidence float64, id string, createdAt time.Time) models.TaskProposal {
	return models.TaskProposal{
		ProposalID:  id,
		Type:        models.ProposalType,
		Title:       utils.Truncate(task.Title, models.MaxTitleLength),
		Description: task.Description,
		DueDate:     task.DueDate,
		Priority:    task.Priority.Normalize(),
		Source:      msg.Source,
		SourceContext: models.SourceContext{
			Sender:          msg.Sender,
			Timestamp:       msg.Timestamp,
			Channel:         msg.Channel,
			Subject:         msg.Subject,
			MessageID:       msg.MessageID,
			ThreadID:        msg.ThreadID,
			OriginalContent: utils.Truncate(msg.Content, OriginalContentLimit),
		},
		Confidence: confidence,
		Reasoning:  task.Reasoning,
		CreatedAt:  createdAt.Format(time.RFC3339),
	}
}
