package config

import (
	"fmt"
	"testing"
	"time"
)

func clearKeyEnv(t *testing.T) {
	t.Helper()
	for _, prefix := range []string{"GROQ_KEY", "OPENROUTER_KEY", "GOOGLE_KEY", "ANTHROPIC_KEY"} {
		for i := 1; i <= 3; i++ {
			t.Setenv(fmt.Sprintf("%s_%d", prefix, i), "")
		}
	}
}

func providerByName(t *testing.T, s Settings, name string) ProviderSettings {
	t.Helper()
	for _, p := range s.Gateway.Providers {
		if p.Name == name {
			return p
		}
	}
	t.Fatalf("provider %q missing", name)
	return ProviderSettings{}
}

func TestDefaults(t *testing.T) {
	clearKeyEnv(t)

	s, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.Gateway.Temperature != 0.7 || s.Gateway.MaxTokens != 512 {
		t.Errorf("gateway defaults = %+v", s.Gateway)
	}
	if s.Gateway.Timeout != 30*time.Second {
		t.Errorf("timeout = %v", s.Gateway.Timeout)
	}
	if s.Cache.MaxSize != 200 || s.Cache.TTL != 2*time.Hour {
		t.Errorf("cache defaults = %+v", s.Cache)
	}
	if s.Context.MaxMessages != 50 || s.Context.Persona != "default" {
		t.Errorf("context defaults = %+v", s.Context)
	}
	if s.HasAnyKeys() {
		t.Error("no keys set, HasAnyKeys should be false")
	}
}

func TestNumberedKeyLoading(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv("GROQ_KEY_1", "gsk_first")
	t.Setenv("GROQ_KEY_3", "gsk_third")

	s, err := New()
	if err != nil {
		t.Fatal(err)
	}
	groq := providerByName(t, s, "groq")
	if len(groq.Keys) != 2 || groq.Keys[0] != "gsk_first" || groq.Keys[1] != "gsk_third" {
		t.Errorf("groq keys = %v", groq.Keys)
	}
	if !s.HasAnyKeys() {
		t.Error("HasAnyKeys should be true")
	}
}

func TestMalformedKeysDropped(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv("GROQ_KEY_1", "not-a-groq-key")
	t.Setenv("OPENROUTER_KEY_1", "sk-or-v1-good")
	t.Setenv("GOOGLE_KEY_1", "gsk_wrong_provider")
	t.Setenv("ANTHROPIC_KEY_1", "sk-ant-good")

	s, err := New()
	if err != nil {
		t.Fatal(err)
	}
	if got := providerByName(t, s, "groq").Keys; len(got) != 0 {
		t.Errorf("groq keys = %v, want none (bad prefix)", got)
	}
	if got := providerByName(t, s, "gemini").Keys; len(got) != 0 {
		t.Errorf("gemini keys = %v, want none (bad prefix)", got)
	}
	if got := providerByName(t, s, "openrouter").Keys; len(got) != 1 {
		t.Errorf("openrouter keys = %v", got)
	}
	if got := providerByName(t, s, "anthropic").Keys; len(got) != 1 {
		t.Errorf("anthropic keys = %v", got)
	}
}

func TestModelOverrides(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv("GROQ_MODEL", "llama-custom")
	t.Setenv("GROQ_FALLBACK_MODEL", "llama-small")

	s, err := New()
	if err != nil {
		t.Fatal(err)
	}
	groq := providerByName(t, s, "groq")
	if groq.Model != "llama-custom" || groq.FallbackModel != "llama-small" {
		t.Errorf("groq models = %+v", groq)
	}
}

func TestSearchPreferredProvider(t *testing.T) {
	clearKeyEnv(t)

	s, err := New()
	if err != nil {
		t.Fatal(err)
	}
	if !providerByName(t, s, "gemini").SearchPreferred {
		t.Error("gemini should be search preferred")
	}
	if providerByName(t, s, "groq").SearchPreferred {
		t.Error("groq should not be search preferred")
	}
}

func TestInvalidNumericValueErrors(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv("LLM_MAX_TOKENS", "many")

	if _, err := New(); err == nil {
		t.Error("malformed numeric value should error")
	}
}
