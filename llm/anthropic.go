// Anthropic backend using the official anthropic-sdk-go.
//
// Information Hiding:
// - Client construction per credential
// - System prompt extraction for the Messages API

package llm

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicBackend calls the Anthropic Messages API.
type AnthropicBackend struct{}

// NewAnthropicBackend creates an Anthropic backend.
func NewAnthropicBackend() *AnthropicBackend {
	return &AnthropicBackend{}
}

// Complete sends a messages request.
func (b *AnthropicBackend) Complete(ctx context.Context, apiKey, model string, messages []ChatMessage, temperature float32, maxTokens int) (string, error) {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))

	anthropicMessages, systemPrompt := toAnthropicMessages(messages)

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   int64(maxTokens),
		Messages:    anthropicMessages,
		Temperature: anthropic.Float(float64(temperature)),
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}

	message, err := client.Messages.New(ctx, params)
	if err != nil {
		return "", err
	}

	content := ""
	for _, block := range message.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			content += variant.Text
		}
	}
	if content == "" {
		return "", fmt.Errorf("anthropic returned no text: %w", ErrEmptyCompletion)
	}
	return content, nil
}

// toAnthropicMessages converts chat messages to Anthropic format, returning
// the system prompt separately as the Messages API requires.
func toAnthropicMessages(messages []ChatMessage) ([]anthropic.MessageParam, string) {
	var anthropicMessages []anthropic.MessageParam
	var systemPrompt string

	for _, msg := range messages {
		switch msg.Role {
		case "system":
			systemPrompt = msg.Content
		case "user":
			anthropicMessages = append(anthropicMessages, anthropic.NewUserMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		case "assistant":
			anthropicMessages = append(anthropicMessages, anthropic.NewAssistantMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		}
	}

	return anthropicMessages, systemPrompt
}

var _ Backend = (*AnthropicBackend)(nil)
