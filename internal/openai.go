package internal

import (
	"context"
	"errors"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"
)

// GeminiBaseURL is Gemini's OpenAI compatible endpoint
const GeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"

// GenerateRequest is a single chat completion request
type GenerateRequest struct {
	Model   string
	System  string
	Prompt  string
	History []ChatMessage
	// JSON asks the model for a JSON object reply
	JSON bool
}

// TextGenerator produces a model reply for a request
type TextGenerator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// GeneratorFactory creates a TextGenerator for one provider key
type GeneratorFactory func(provider ProviderName, apiKey string) TextGenerator

// NewGenerator is the default GeneratorFactory
func NewGenerator(provider ProviderName, apiKey string) TextGenerator {
	if provider == ProviderGemini {
		return NewOpenAIGenerator(apiKey, GeminiBaseURL)
	}
	return NewOpenAIGenerator(apiKey, "")
}

// OpenAIGenerator wraps the official OpenAI Go SDK
type OpenAIGenerator struct {
	client openai.Client
}

// NewOpenAIGenerator creates a generator. An empty baseURL uses api.openai.com.
func NewOpenAIGenerator(apiKey, baseURL string) *OpenAIGenerator {
	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIGenerator{client: openai.NewClient(opts...)}
}

// Generate implements TextGenerator
func (g *OpenAIGenerator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Model),
		Messages: buildMessages(req),
	}
	if req.JSON {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no response choices from provider")
	}
	return resp.Choices[0].Message.Content, nil
}

func buildMessages(req GenerateRequest) []openai.ChatCompletionMessageParamUnion {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.History)+2)
	if req.System != "" {
		msgs = append(msgs, openai.SystemMessage(req.System))
	}
	for _, m := range req.History {
		if m.Role == RoleAssistant {
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		} else {
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}
	return append(msgs, openai.UserMessage(req.Prompt))
}

// stripFences removes a markdown code fence around a JSON reply
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
