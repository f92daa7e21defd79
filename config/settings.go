// Package config provides application settings loaded from environment variables.
//
// Settings are created via New() which handles:
// - Environment variable parsing with validation
// - Default value application
// - Numbered API key loading with per-provider format validation

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"deskhand/llm"
)

// Settings holds all application configuration.
type Settings struct {
	Gateway GatewayConfig
	Cache   CacheConfig
	Context ContextConfig
	Server  ServerConfig
}

// GatewayConfig holds inference cascade configuration.
type GatewayConfig struct {
	Providers   []ProviderSettings
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// ProviderSettings is one configured provider, keys already validated.
type ProviderSettings struct {
	Name            string
	Keys            []string
	Model           string
	FallbackModel   string
	SearchPreferred bool
}

// CacheConfig holds response cache bounds.
type CacheConfig struct {
	MaxSize int
	TTL     time.Duration
}

// ContextConfig holds conversation bounds.
type ContextConfig struct {
	MaxMessages int
	MaxTokens   int
	Persona     string
}

// ServerConfig holds daemon settings.
type ServerConfig struct {
	SocketPath     string
	TranscriptPath string
	LogLevel       string
	LogPretty      bool
}

// providerInfo holds the static description of a provider: where its keys
// live, what they must look like, and which models it defaults to.
type providerInfo struct {
	keyEnvPrefix         string
	keyFormatPrefix      string
	maxKeys              int
	defaultModel         string
	defaultFallbackModel string
	searchPreferred      bool
}

// Supported providers, in cascade order.
var providerOrder = []string{"gemini", "groq", "openrouter", "anthropic"}

var providers = map[string]providerInfo{
	"groq": {
		keyEnvPrefix:         "GROQ_KEY",
		keyFormatPrefix:      "gsk_",
		maxKeys:              3,
		defaultModel:         llm.DefaultGroqModel,
		defaultFallbackModel: llm.DefaultGroqFallbackModel,
	},
	"openrouter": {
		keyEnvPrefix:         "OPENROUTER_KEY",
		keyFormatPrefix:      "sk-or-v1-",
		maxKeys:              3,
		defaultModel:         llm.DefaultOpenRouterModel,
		defaultFallbackModel: llm.DefaultOpenRouterFallbackModel,
	},
	"gemini": {
		keyEnvPrefix:    "GOOGLE_KEY",
		keyFormatPrefix: "AIza",
		maxKeys:         3,
		defaultModel:    llm.DefaultGeminiModel,
		searchPreferred: true,
	},
	"anthropic": {
		keyEnvPrefix:    "ANTHROPIC_KEY",
		keyFormatPrefix: "sk-ant-",
		maxKeys:         3,
		defaultModel:    llm.DefaultAnthropicModel,
	},
}

// New loads settings from the environment. Providers with no valid keys
// are still listed with empty key slices; the gateway skips them. New
// never fails on missing keys, only on malformed numeric values.
func New() (Settings, error) {
	temperature, err := getEnvFloat64("LLM_TEMPERATURE", 0.7)
	if err != nil {
		return Settings{}, err
	}
	maxTokens, err := getEnvInt("LLM_MAX_TOKENS", 512)
	if err != nil {
		return Settings{}, err
	}
	timeoutSec, err := getEnvInt("LLM_TIMEOUT_SECONDS", 30)
	if err != nil {
		return Settings{}, err
	}

	cacheSize, err := getEnvInt("CACHE_MAX_SIZE", 200)
	if err != nil {
		return Settings{}, err
	}
	cacheTTLMin, err := getEnvInt("CACHE_TTL_MINUTES", 120)
	if err != nil {
		return Settings{}, err
	}

	ctxMaxMessages, err := getEnvInt("CONTEXT_MAX_MESSAGES", 50)
	if err != nil {
		return Settings{}, err
	}
	ctxMaxTokens, err := getEnvInt("CONTEXT_MAX_TOKENS", 8000)
	if err != nil {
		return Settings{}, err
	}

	var providerSettings []ProviderSettings
	for _, name := range providerOrder {
		info := providers[name]
		keys := loadKeys(info.keyEnvPrefix, info.maxKeys, info.keyFormatPrefix)

		model := os.Getenv(strings.ToUpper(name) + "_MODEL")
		if model == "" {
			model = info.defaultModel
		}
		fallbackModel := os.Getenv(strings.ToUpper(name) + "_FALLBACK_MODEL")
		if fallbackModel == "" {
			fallbackModel = info.defaultFallbackModel
		}

		providerSettings = append(providerSettings, ProviderSettings{
			Name:            name,
			Keys:            keys,
			Model:           model,
			FallbackModel:   fallbackModel,
			SearchPreferred: info.searchPreferred,
		})
	}

	return Settings{
		Gateway: GatewayConfig{
			Providers:   providerSettings,
			Temperature: temperature,
			MaxTokens:   maxTokens,
			Timeout:     time.Duration(timeoutSec) * time.Second,
		},
		Cache: CacheConfig{
			MaxSize: cacheSize,
			TTL:     time.Duration(cacheTTLMin) * time.Minute,
		},
		Context: ContextConfig{
			MaxMessages: ctxMaxMessages,
			MaxTokens:   ctxMaxTokens,
			Persona:     getEnvString("PERSONA", "default"),
		},
		Server: ServerConfig{
			SocketPath:     getEnvString("DESKHAND_SOCKET", "/tmp/deskhand.sock"),
			TranscriptPath: getEnvString("DESKHAND_DB", defaultTranscriptPath()),
			LogLevel:       getEnvString("LOG_LEVEL", "info"),
			LogPretty:      getEnvString("LOG_PRETTY", "true") == "true",
		},
	}, nil
}

// MustNew loads settings and panics on malformed values. Use only when
// configuration errors should be fatal.
func MustNew() Settings {
	settings, err := New()
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return settings
}

// HasAnyKeys reports whether any provider has at least one valid key.
func (s Settings) HasAnyKeys() bool {
	for _, p := range s.Gateway.Providers {
		if len(p.Keys) > 0 {
			return true
		}
	}
	return false
}

// loadKeys reads numbered environment variables (PREFIX_1..PREFIX_n) and
// keeps only keys matching the provider's format prefix. Malformed keys
// are dropped, not fatal.
func loadKeys(envPrefix string, count int, formatPrefix string) []string {
	var keys []string
	for i := 1; i <= count; i++ {
		key := strings.TrimSpace(os.Getenv(fmt.Sprintf("%s_%d", envPrefix, i)))
		if key == "" {
			continue
		}
		if !strings.HasPrefix(key, formatPrefix) {
			continue
		}
		keys = append(keys, key)
	}
	return keys
}

func defaultTranscriptPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "deskhand.db"
	}
	return home + "/.local/share/deskhand/transcripts.db"
}

// Environment variable helpers with proper error handling

func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return i, nil
}

func getEnvFloat64(key string, defaultVal float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return f, nil
}
