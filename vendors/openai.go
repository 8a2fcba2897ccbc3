package vendors

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"

	"github.com/sashabaranov/go-openai"
	"github.com/xiaoyuanzhu-com/hound/config"
	"github.com/xiaoyuanzhu-com/hound/llm"
	"github.com/xiaoyuanzhu-com/hound/log"
	"github.com/xiaoyuanzhu-com/hound/utils"
)

var (
	openaiClient     *OpenAIClient
	openaiClientOnce sync.Once
	openaiLogger     = log.GetLogger("OpenAI")
)

// OpenAIConfig configures an OpenAI-compatible provider
type OpenAIConfig struct {
	APIKey          string
	BaseURL         string
	Model           string
	ClassifierModel string
}

// OpenAIClient implements llm.Client on top of an OpenAI-compatible API
type OpenAIClient struct {
	client          *openai.Client
	model           string
	classifierModel string
}

var _ llm.Client = (*OpenAIClient)(nil)

// NewOpenAIClient creates a client; an empty API key yields llm.ErrNotConfigured
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, llm.ErrNotConfigured
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" && cfg.BaseURL != "https://api.openai.com/v1" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	classifierModel := cfg.ClassifierModel
	if classifierModel == "" {
		classifierModel = cfg.Model
	}

	return &OpenAIClient{
		client:          openai.NewClientWithConfig(clientConfig),
		model:           cfg.Model,
		classifierModel: classifierModel,
	}, nil
}

// GetOpenAIClient returns the singleton client built from the global config,
// or nil when no API key is configured
func GetOpenAIClient() *OpenAIClient {
	openaiClientOnce.Do(func() {
		cfg := config.Get()
		client, err := NewOpenAIClient(OpenAIConfig{
			APIKey:          cfg.OpenAIAPIKey,
			BaseURL:         cfg.OpenAIBaseURL,
			Model:           cfg.OpenAIModel,
			ClassifierModel: cfg.OpenAIClassifierModel,
		})
		if err != nil {
			openaiLogger.Warn().Msg("OPENAI_API_KEY not configured, model provider disabled")
			return
		}
		openaiClient = client
		openaiLogger.Info().
			Str("model", cfg.OpenAIModel).
			Str("classifierModel", cfg.OpenAIClassifierModel).
			Str("baseURL", cfg.OpenAIBaseURL).
			Msg("OpenAI initialized")
	})
	return openaiClient
}

// Model returns the chat model name
func (o *OpenAIClient) Model() string {
	return o.model
}

// GenerateText performs a single-prompt completion against the classifier model
func (o *OpenAIClient) GenerateText(ctx context.Context, prompt string, maxOutputTokens int) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: o.classifierModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens: maxOutputTokens,
	}

	openaiLogger.Debug().Str("model", req.Model).Int("maxTokens", maxOutputTokens).Msg("text request")

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", &llm.ProviderError{Op: "generate text", Err: err}
	}
	if len(resp.Choices) == 0 {
		openaiLogger.Warn().Str("model", req.Model).Msg("response has no choices")
		return "", nil
	}

	openaiLogger.Debug().
		Str("finishReason", string(resp.Choices[0].FinishReason)).
		Int("totalTokens", resp.Usage.TotalTokens).
		Msg("text response")
	return resp.Choices[0].Message.Content, nil
}

// GenerateStructured requests JSON conforming to req.Schema and decodes it into out
func (o *OpenAIClient) GenerateStructured(ctx context.Context, req llm.StructuredRequest, out any) error {
	var messages []openai.ChatCompletionMessage
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	schema := req.Schema
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    messages,
		Temperature: 0.1,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   req.Name,
				Schema: &schema,
				Strict: false,
			},
		},
	})
	if err != nil {
		return &llm.ProviderError{Op: "generate structured", Err: err}
	}
	if len(resp.Choices) == 0 {
		return &llm.ValidationError{Schema: req.Name, Err: errors.New("response has no choices")}
	}

	content := resp.Choices[0].Message.Content
	if resp.Choices[0].FinishReason == openai.FinishReasonLength {
		openaiLogger.Warn().Int("completionTokens", resp.Usage.CompletionTokens).Msg("structured response was truncated")
	}

	// Parse JSON from LLM response using robust parser
	raw, err := utils.ExtractJSONObject(content)
	if err != nil {
		openaiLogger.Error().Err(err).Str("content", content).Msg("failed to parse structured response")
		return &llm.ValidationError{Schema: req.Name, Err: err}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &llm.ValidationError{Schema: req.Name, Err: err}
	}
	return nil
}

// StreamChat streams a conversation. Text deltas are yielded as they arrive;
// tool calls are yielded once their arguments are complete.
func (o *OpenAIClient) StreamChat(ctx context.Context, req llm.ChatRequest) (llm.ChatStream, error) {
	chatReq := openai.ChatCompletionRequest{
		Model:    o.model,
		Messages: toOpenAIMessages(req.System, req.Turns),
		Stream:   true,
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = toOpenAITools(req.Tools)
	}

	openaiLogger.Debug().
		Str("model", o.model).
		Int("turns", len(req.Turns)).
		Int("tools", len(req.Tools)).
		Msg("stream request")

	stream, err := o.client.CreateChatCompletionStream(ctx, chatReq)
	if err != nil {
		return nil, &llm.ProviderError{Op: "stream chat", Err: err}
	}
	return &openaiStream{stream: stream, calls: map[int]*pendingToolCall{}}, nil
}

func toOpenAIMessages(system string, turns []llm.Turn) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(turns)+1)
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}

	for _, t := range turns {
		switch t.Role {
		case llm.RoleAssistant:
			msg := openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: t.Content,
			}
			for _, call := range t.ToolCalls {
				args, err := json.Marshal(call.Args)
				if err != nil {
					args = []byte("{}")
				}
				msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
					ID:   call.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      call.Name,
						Arguments: string(args),
					},
				})
			}
			messages = append(messages, msg)
		case llm.RoleTool:
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    t.Content,
				ToolCallID: t.ToolCallID,
				Name:       t.Name,
			})
		case llm.RoleSystem:
			messages = append(messages, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleSystem,
				Content: t.Content,
			})
		default:
			messages = append(messages, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: t.Content,
			})
		}
	}
	return messages
}

func toOpenAITools(schemas []llm.ToolSchema) []openai.Tool {
	tools := make([]openai.Tool, 0, len(schemas))
	for _, s := range schemas {
		params := s.Parameters
		if params == nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        s.Name,
				Description: s.Description,
				Parameters:  params,
			},
		})
	}
	return tools
}

// pendingToolCall accumulates a tool call streamed across deltas
type pendingToolCall struct {
	id   string
	name string
	args string
}

type openaiStream struct {
	stream  *openai.ChatCompletionStream
	pending []llm.Chunk
	calls   map[int]*pendingToolCall
	order   []int
	lastKey int
	done    bool
}

func (s *openaiStream) Recv() (llm.Chunk, error) {
	for {
		if len(s.pending) > 0 {
			chunk := s.pending[0]
			s.pending = s.pending[1:]
			return chunk, nil
		}
		if s.done {
			return llm.Chunk{}, io.EOF
		}

		resp, err := s.stream.Recv()
		if errors.Is(err, io.EOF) {
			s.flushToolCalls()
			s.done = true
			continue
		}
		if err != nil {
			return llm.Chunk{}, &llm.ProviderError{Op: "stream chat", Err: err}
		}
		if len(resp.Choices) == 0 {
			continue
		}

		choice := resp.Choices[0]
		if choice.Delta.Content != "" {
			s.pending = append(s.pending, llm.Chunk{Kind: llm.ChunkText, Text: choice.Delta.Content})
		}
		for _, tc := range choice.Delta.ToolCalls {
			s.accumulate(tc)
		}
		if choice.FinishReason != "" {
			s.flushToolCalls()
		}
	}
}

func (s *openaiStream) accumulate(tc openai.ToolCall) {
	key := s.lastKey
	switch {
	case tc.Index != nil:
		key = *tc.Index
	case tc.ID != "":
		// Providers that omit the index send one complete call per delta
		key = len(s.order) + 1<<16
	}

	call, ok := s.calls[key]
	if !ok {
		call = &pendingToolCall{}
		s.calls[key] = call
		s.order = append(s.order, key)
	}
	s.lastKey = key

	if tc.ID != "" {
		call.id = tc.ID
	}
	if call.name == "" {
		call.name = tc.Function.Name
	}
	call.args += tc.Function.Arguments
}

func (s *openaiStream) flushToolCalls() {
	for _, key := range s.order {
		call := s.calls[key]
		args := map[string]any{}
		if call.args != "" {
			if err := json.Unmarshal([]byte(call.args), &args); err != nil {
				openaiLogger.Warn().Err(err).Str("tool", call.name).Str("arguments", call.args).Msg("tool call arguments are not a JSON object")
				args = map[string]any{}
			}
		}
		s.pending = append(s.pending, llm.Chunk{
			Kind:     llm.ChunkToolCall,
			ToolCall: llm.ToolCall{ID: call.id, Name: call.name, Args: args},
		})
	}
	s.calls = map[int]*pendingToolCall{}
	s.order = nil
}

func (s *openaiStream) Close() error {
	s.stream.Close()
	return nil
}
