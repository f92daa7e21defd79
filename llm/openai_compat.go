// OpenAI-compatible backend used for Groq and OpenRouter.
//
// Both providers expose the Chat Completions API behind their own base URL
// and bearer-token auth, so one backend covers them; only the base URL and
// optional extra headers differ.

package llm

import (
	"context"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAICompatBackend calls any Chat Completions compatible endpoint.
type OpenAICompatBackend struct {
	baseURL    string
	httpClient *http.Client
}

// NewOpenAICompatBackend creates a backend for the given base URL.
// A nil httpClient uses http.DefaultClient; per-attempt timeouts come from
// the caller's context.
func NewOpenAICompatBackend(baseURL string, httpClient *http.Client) *OpenAICompatBackend {
	return &OpenAICompatBackend{baseURL: baseURL, httpClient: httpClient}
}

// Complete sends a non-streaming chat completion request.
func (b *OpenAICompatBackend) Complete(ctx context.Context, apiKey, model string, messages []ChatMessage, temperature float32, maxTokens int) (string, error) {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = b.baseURL
	if b.httpClient != nil {
		cfg.HTTPClient = b.httpClient
	}
	client := openai.NewClientWithConfig(cfg)

	req := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    toOpenAIMessages(messages),
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Stream:      false,
	}

	resp, err := client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("no choices in response: %w", ErrEmptyCompletion)
	}
	return resp.Choices[0].Message.Content, nil
}

func toOpenAIMessages(messages []ChatMessage) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		result[i] = openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}
	return result
}

var _ Backend = (*OpenAICompatBackend)(nil)
