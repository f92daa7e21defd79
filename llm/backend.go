package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Backend performs one chat completion against a provider API with an
// explicit credential. Implementations hide:
// - API client construction and authentication
// - Request/response format conversion
// - Provider-specific error shapes (classified by Classify)
type Backend interface {
	// Complete sends messages with the given key and model and returns the
	// response text. An empty response text is an error.
	Complete(ctx context.Context, apiKey, model string, messages []ChatMessage, temperature float32, maxTokens int) (string, error)
}

// Classify maps a backend error to the cascade's failure taxonomy.
// 429s and quota rejections are rate limits, deadline and network timeouts
// are timeouts, other provider responses are HTTP errors with a truncated
// detail string.
func Classify(err error) (FailureKind, string) {
	if errors.Is(err, ErrEmptyCompletion) {
		return FailBadResponse, truncateDetail(err.Error())
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == 429 {
			return FailRateLimit, ""
		}
		return FailHTTP, fmt.Sprintf("status %d: %s", apiErr.HTTPStatusCode, truncateDetail(apiErr.Message))
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == 429 {
			return FailRateLimit, ""
		}
		return FailHTTP, fmt.Sprintf("status %d: %s", reqErr.HTTPStatusCode, truncateDetail(reqErr.Error()))
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return FailTimeout, ""
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailTimeout, ""
	}

	// Gemini and Anthropic surface rate limits in the message text when the
	// typed error does not make it through wrapping.
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "resource_exhausted") || strings.Contains(msg, "quota") {
		return FailRateLimit, ""
	}

	return FailHTTP, truncateDetail(err.Error())
}

func truncateDetail(s string) string {
	const max = 200
	if len(s) <= max {
		return s
	}
	return s[:max]
}
