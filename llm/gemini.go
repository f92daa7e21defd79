// Gemini backend using the official google.golang.org/genai SDK.
//
// Information Hiding:
// - Client construction per credential
// - Role and system-instruction mapping to the Gemini content format

package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiBackend calls the Gemini API. A fresh client is created per attempt
// because the cascade rotates credentials between calls.
type GeminiBackend struct{}

// NewGeminiBackend creates a Gemini backend.
func NewGeminiBackend() *GeminiBackend {
	return &GeminiBackend{}
}

// Complete sends a generate-content request.
func (b *GeminiBackend) Complete(ctx context.Context, apiKey, model string, messages []ChatMessage, temperature float32, maxTokens int) (string, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return "", fmt.Errorf("initialize gemini client: %w", err)
	}

	contents, systemInstruction := toGeminiContents(messages)

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(temperature),
		MaxOutputTokens: int32(maxTokens),
	}
	if systemInstruction != "" {
		config.SystemInstruction = genai.NewContentFromText(systemInstruction, genai.RoleUser)
	}

	response, err := client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return "", err
	}

	content := response.Text()
	if content == "" {
		return "", fmt.Errorf("gemini returned no text: %w", ErrEmptyCompletion)
	}
	return content, nil
}

// toGeminiContents converts chat messages to the Gemini content format,
// extracting the system message as a system instruction.
func toGeminiContents(messages []ChatMessage) ([]*genai.Content, string) {
	var contents []*genai.Content
	var systemInstruction string

	for _, msg := range messages {
		switch msg.Role {
		case "system":
			systemInstruction = msg.Content
		case "user":
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		case "assistant":
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		}
	}

	return contents, systemInstruction
}

var _ Backend = (*GeminiBackend)(nil)
