// Inference gateway: ordered cascade across providers, models, and keys.
//
// Each cascade stage tries every key for a provider/model pair before moving
// on: primary model with all keys, then the provider's distinct fallback
// model with all keys, then the next provider. The round-robin cursor for a
// provider advances only past a key that succeeded, so consecutive requests
// spread load across credentials; a failing attempt iterates keys explicitly
// without moving the cursor.

package llm

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ProviderConfig describes one provider in the cascade.
type ProviderConfig struct {
	// Name identifies the provider in results, status, and logs.
	Name string
	// Backend performs the actual API calls.
	Backend Backend
	// Keys is the ordered credential list. Providers with no keys are
	// skipped by the cascade.
	Keys []string
	// Model is the primary model.
	Model string
	// FallbackModel, when distinct from Model, is retried with all keys
	// after the primary model exhausts them.
	FallbackModel string
	// SearchPreferred providers are only consulted for requests flagged
	// as freshness-sensitive, and are consulted before the general
	// providers for those.
	SearchPreferred bool
}

// ChatOptions tune a single Chat call.
type ChatOptions struct {
	// UseFallbackModel makes every provider use its fallback model as the
	// only model for this call.
	UseFallbackModel bool
	// PreferSearch includes search-preferred providers at the front of
	// the cascade.
	PreferSearch bool
}

// Gateway is the inference gateway. Safe for concurrent use: a single
// mutex guards the per-provider cursors and last-used introspection state;
// HTTP attempts run outside the lock.
type Gateway struct {
	providers   []*providerState
	temperature float32
	maxTokens   int
	timeout     time.Duration
	log         zerolog.Logger

	mu           sync.Mutex
	lastProvider string
	lastModel    string
	lastKeyIndex int // 1-based; 0 means no call succeeded yet
}

type providerState struct {
	ProviderConfig
	cursor int // guarded by Gateway.mu
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithTemperature sets the generation temperature (default 0.7).
func WithTemperature(t float32) GatewayOption {
	return func(g *Gateway) { g.temperature = t }
}

// WithMaxTokens sets the completion token cap (default 512).
func WithMaxTokens(n int) GatewayOption {
	return func(g *Gateway) { g.maxTokens = n }
}

// WithTimeout sets the per-attempt timeout (default 30s).
func WithTimeout(d time.Duration) GatewayOption {
	return func(g *Gateway) { g.timeout = d }
}

// NewGateway creates a gateway over the given providers, in cascade order.
// A gateway with zero usable keys is still constructible; every Chat call
// returns an ExhaustedError and the caller degrades to rule-based planning.
func NewGateway(configs []ProviderConfig, log zerolog.Logger, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		temperature: 0.7,
		maxTokens:   512,
		timeout:     30 * time.Second,
		log:         log,
	}
	for _, cfg := range configs {
		g.providers = append(g.providers, &providerState{ProviderConfig: cfg})
	}
	for _, opt := range opts {
		opt(g)
	}
	for _, p := range g.providers {
		if len(p.Keys) == 0 {
			g.log.Warn().Str("provider", p.Name).Msg("no valid API keys, provider will be skipped")
		}
	}
	return g
}

// HasKeys reports whether any provider has at least one credential.
func (g *Gateway) HasKeys() bool {
	for _, p := range g.providers {
		if len(p.Keys) > 0 {
			return true
		}
	}
	return false
}

// Chat runs the cascade with default options apart from the fallback-model
// switch. It never panics; failures come back as an error value.
func (g *Gateway) Chat(ctx context.Context, messages []ChatMessage, useFallbackModel bool) (Result, error) {
	return g.ChatWithOptions(ctx, messages, ChatOptions{UseFallbackModel: useFallbackModel})
}

// ChatWithOptions runs the full cascade. On success the winning provider's
// cursor advances past the key that worked. On exhaustion the returned
// error is an *ExhaustedError carrying every per-attempt failure.
func (g *Gateway) ChatWithOptions(ctx context.Context, messages []ChatMessage, opts ChatOptions) (Result, error) {
	if len(messages) == 0 {
		return Result{}, ErrNoMessages
	}

	var attempts []*AttemptError

	// Search-preferred providers go first when asked for, and are skipped
	// entirely otherwise.
	for _, preferred := range []bool{true, false} {
		if preferred && !opts.PreferSearch {
			continue
		}
		for _, p := range g.providers {
			if p.SearchPreferred != preferred || len(p.Keys) == 0 {
				continue
			}
			result, errs := g.tryProvider(ctx, p, messages, opts)
			attempts = append(attempts, errs...)
			if result != nil {
				return *result, nil
			}
		}
	}

	g.log.Warn().Int("attempts", len(attempts)).Msg("all providers exhausted")
	return Result{}, &ExhaustedError{Attempts: attempts}
}

// tryProvider runs the per-provider stage of the cascade: all keys with the
// primary model, then all keys with the distinct fallback model.
func (g *Gateway) tryProvider(ctx context.Context, p *providerState, messages []ChatMessage, opts ChatOptions) (*Result, []*AttemptError) {
	model := p.Model
	if opts.UseFallbackModel && p.FallbackModel != "" {
		model = p.FallbackModel
	}

	models := []string{model}
	if !opts.UseFallbackModel && p.FallbackModel != "" && p.FallbackModel != model {
		models = append(models, p.FallbackModel)
	}

	var errs []*AttemptError
	for _, m := range models {
		g.mu.Lock()
		cursor := p.cursor
		g.mu.Unlock()

		for i := 0; i < len(p.Keys); i++ {
			keyIdx := (cursor + i) % len(p.Keys)

			content, attemptErr := g.attempt(ctx, p, m, keyIdx, messages)
			if attemptErr != nil {
				errs = append(errs, attemptErr)
				continue
			}

			g.mu.Lock()
			p.cursor = (keyIdx + 1) % len(p.Keys)
			g.lastProvider = p.Name
			g.lastModel = m
			g.lastKeyIndex = keyIdx + 1
			g.mu.Unlock()

			return &Result{
				Content:  content,
				Provider: p.Name,
				Model:    m,
				KeyIndex: keyIdx + 1,
			}, errs
		}
	}

	return nil, errs
}

// attempt makes one bounded API call and classifies any failure.
func (g *Gateway) attempt(ctx context.Context, p *providerState, model string, keyIdx int, messages []ChatMessage) (string, *AttemptError) {
	attemptCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	g.log.Debug().Str("provider", p.Name).Str("model", model).Int("key", keyIdx+1).Msg("provider attempt")

	content, err := p.Backend.Complete(attemptCtx, p.Keys[keyIdx], model, messages, g.temperature, g.maxTokens)
	if err != nil {
		kind, detail := Classify(err)
		g.log.Warn().
			Str("provider", p.Name).
			Str("model", model).
			Int("key", keyIdx+1).
			Str("kind", string(kind)).
			Dur("elapsed", time.Since(start)).
			Msg("provider attempt failed")
		return "", &AttemptError{
			Provider: p.Name,
			Model:    model,
			KeyIndex: keyIdx + 1,
			Kind:     kind,
			Detail:   detail,
		}
	}

	g.log.Info().
		Str("provider", p.Name).
		Str("model", model).
		Dur("elapsed", time.Since(start)).
		Msg("provider response")
	return content, nil
}

// ProviderStatus describes one provider's configuration for introspection.
type ProviderStatus struct {
	Name            string `json:"name"`
	KeysAvailable   int    `json:"keys_available"`
	Model           string `json:"model"`
	FallbackModel   string `json:"fallback_model,omitempty"`
	SearchPreferred bool   `json:"search_preferred,omitempty"`
}

// Status is a snapshot of the gateway for introspection.
type Status struct {
	Providers    []ProviderStatus `json:"providers"`
	LastProvider string           `json:"last_provider,omitempty"`
	LastModel    string           `json:"last_model,omitempty"`
	LastKeyIndex int              `json:"last_key_index,omitempty"`
}

// Status reports configured providers and the last successful call.
func (g *Gateway) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := Status{
		LastProvider: g.lastProvider,
		LastModel:    g.lastModel,
		LastKeyIndex: g.lastKeyIndex,
	}
	for _, p := range g.providers {
		s.Providers = append(s.Providers, ProviderStatus{
			Name:            p.Name,
			KeysAvailable:   len(p.Keys),
			Model:           p.Model,
			FallbackModel:   p.FallbackModel,
			SearchPreferred: p.SearchPreferred,
		})
	}
	return s
}
