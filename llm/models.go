// Package llm provides the inference gateway: a multi-provider chat client
// with key rotation and cascading fallback across models and providers.
package llm

// ChatMessage is a chat message in the common role/content form.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SystemMessage creates a system message.
func SystemMessage(content string) ChatMessage {
	return ChatMessage{Role: "system", Content: content}
}

// UserMessage creates a user message.
func UserMessage(content string) ChatMessage {
	return ChatMessage{Role: "user", Content: content}
}

// AssistantMessage creates an assistant message.
func AssistantMessage(content string) ChatMessage {
	return ChatMessage{Role: "assistant", Content: content}
}

// Result is a successful gateway response, annotated with where it came from.
type Result struct {
	Content  string `json:"content"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
	KeyIndex int    `json:"key_index"` // 1-based, for log correlation with key env vars
}

// Default provider endpoints and models.
const (
	GroqBaseURL       = "https://api.groq.com/openai/v1"
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"

	DefaultGroqModel               = "llama-3.3-70b-versatile"
	DefaultGroqFallbackModel       = "llama-3.1-8b-instant"
	DefaultOpenRouterModel         = "meta-llama/llama-3.2-3b-instruct:free"
	DefaultOpenRouterFallbackModel = "qwen/qwen-2.5-72b-instruct:free"
	DefaultGeminiModel             = "gemini-2.0-flash"
	DefaultAnthropicModel          = "claude-haiku-4-20250514"
)
