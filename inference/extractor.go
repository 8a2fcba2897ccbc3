package inference

import (
	"context"
	"strings"
	"time"

	"github.com/xiaoyuanzhu-com/hound/llm"
	"github.com/xiaoyuanzhu-com/hound/models"
)

// Extractor is the structured task extraction stage
type Extractor struct {
	gen llm.StructuredGenerator
}

// NewExtractor creates an extractor
func NewExtractor(gen llm.StructuredGenerator) *Extractor {
	return &Extractor{gen: gen}
}

// Extract asks the model for task details relative to currentDate. It fails
// closed: any provider or schema failure yields models.NoTask().
func (e *Extractor) Extract(ctx context.Context, msg models.MessageContext, currentDate time.Time) models.TaskExtraction {
	if strings.TrimSpace(msg.Content) == "" {
		logger.Warn().Str("source", string(msg.Source)).Msg("empty content reached extraction")
		return models.NoTask()
	}

	logger.Info().Str("source", string(msg.Source)).Msg("extracting task details")

	var out models.TaskExtraction
	err := e.gen.GenerateStructured(ctx, llm.StructuredRequest{
		Name:   "task_extraction",
		System: extractorSystemPrompt(currentDate),
		Prompt: extractorUserPrompt(msg),
		Schema: taskExtractionSchema,
	}, &out)
	if err != nil {
		logger.Error().Err(err).Bool("validation", llm.IsValidation(err)).Msg("extraction failed")
		return models.NoTask()
	}

	// Details only accompany a task
	if !out.IsTask {
		out.Task = nil
	}

	if err := out.Validate(); err != nil {
		logger.Error().Err(err).Msg("extraction does not match schema")
		return models.NoTask()
	}
	if out.Task != nil {
		out.Task.Priority = out.Task.Priority.Normalize()
	}

	logger.Info().
		Bool("isTask", out.IsTask).
		Float64("confidence", out.Confidence).
		Bool("hasTask", out.Task != nil).
		Msg("extraction result")
	return out
}
