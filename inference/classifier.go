// Package inference turns inbound messages into task proposals in two stages:
// a cheap classifier that triages task versus chat, and a structured extractor
// whose confidence gates proposal creation.
package inference

import (
	"context"
	"strings"

	"github.com/xiaoyuanzhu-com/hound/llm"
	"github.com/xiaoyuanzhu-com/hound/log"
	"github.com/xiaoyuanzhu-com/hound/utils"
)

var logger = log.GetLogger("Inference")

// Classification is the stage 1 verdict
type Classification string

const (
	ClassTask Classification = "task"
	ClassChat Classification = "chat"
)

const (
	// ClassifierInputLimit is how many characters of content are classified
	ClassifierInputLimit = 500
	// DefaultClassifierMaxTokens is the output budget of a classification
	DefaultClassifierMaxTokens = 50
)

// Classifier is the fast task/chat triage stage
type Classifier struct {
	gen       llm.TextGenerator
	maxTokens int
}

// NewClassifier creates a classifier; maxTokens <= 0 uses the default budget
func NewClassifier(gen llm.TextGenerator, maxTokens int) *Classifier {
	if maxTokens <= 0 {
		maxTokens = DefaultClassifierMaxTokens
	}
	return &Classifier{gen: gen, maxTokens: maxTokens}
}

// Classify returns ClassTask or ClassChat. It fails open: a model error or an
// empty answer yields ClassTask so extraction makes the final call.
func (c *Classifier) Classify(ctx context.Context, content string) Classification {
	input := utils.Truncate(content, ClassifierInputLimit)
	logger.Debug().Str("content", utils.Truncate(content, 100)).Msg("classifying message")

	answer, err := c.gen.GenerateText(ctx, classifierPrompt(input), c.maxTokens)
	if err != nil {
		logger.Error().Err(err).Msg("classification failed, defaulting to task")
		return ClassTask
	}

	normalized := strings.ToLower(strings.TrimSpace(answer))
	if normalized == "" {
		logger.Info().Msg("empty classification, defaulting to task")
		return ClassTask
	}

	result := ClassChat
	if strings.Contains(normalized, "task") {
		result = ClassTask
	}
	logger.Info().Str("raw", answer).Str("classification", string(result)).Msg("classified message")
	return result
}
