// Application assembly and the command implementations behind the CLI.
//
// Information Hiding:
// - Component wiring (gateway, cache, context, pipeline) hidden
// - Daemon lifecycle and signal handling hidden
// - Output formatting hidden

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"deskhand/automation"
	"deskhand/cache"
	"deskhand/command"
	"deskhand/config"
	"deskhand/conversation"
	"deskhand/internal/logging"
	"deskhand/ipc"
	"deskhand/llm"
	"deskhand/pipeline"
	"deskhand/storage"
	"deskhand/sysquery"
)

// Options holds CLI execution options.
type Options struct {
	Persona string
	Execute bool
	Verbose bool
}

// App is the assembled application.
type App struct {
	Settings  config.Settings
	Gateway   *llm.Gateway
	Cache     *cache.ResponseCache
	Convo     *conversation.Context
	Pipeline  *pipeline.Pipeline
	Validator *command.Validator
	Executor  *command.Executor
	Log       zerolog.Logger
}

// NewApp wires all components from settings. A configuration with zero
// valid API keys still assembles; the pipeline degrades to rule-based
// planning instead of refusing to start.
func NewApp(opts Options) (*App, error) {
	settings, err := config.New()
	if err != nil {
		return nil, err
	}

	level := settings.Server.LogLevel
	if opts.Verbose {
		level = "debug"
	}
	if err := logging.Setup(level, settings.Server.LogPretty); err != nil {
		return nil, err
	}

	gateway := llm.NewGateway(buildProviders(settings.Gateway), logging.Component("gateway"),
		llm.WithTemperature(float32(settings.Gateway.Temperature)),
		llm.WithMaxTokens(settings.Gateway.MaxTokens),
		llm.WithTimeout(settings.Gateway.Timeout),
	)

	convo := conversation.New(logging.Component("conversation"),
		conversation.WithMaxMessages(settings.Context.MaxMessages),
		conversation.WithMaxTokensEstimate(settings.Context.MaxTokens),
	)
	persona := settings.Context.Persona
	if opts.Persona != "" {
		persona = opts.Persona
	}
	if persona != "" && !convo.SetPersonality(persona) {
		return nil, fmt.Errorf("unknown persona %q (valid: %v)", persona, conversation.PersonaNames())
	}

	responseCache := cache.New(settings.Cache.MaxSize, settings.Cache.TTL, logging.Component("cache"))
	resolver := sysquery.NewLocal(logging.Component("sysquery"))

	pipe := pipeline.New(responseCache, resolver, convo, gateway, logging.Component("pipeline"))

	injector := automation.NewXdoInjector(logging.Component("automation"))

	app := &App{
		Settings:  settings,
		Gateway:   gateway,
		Cache:     responseCache,
		Convo:     convo,
		Pipeline:  pipe,
		Validator: command.NewValidator(logging.Component("validator")),
		Executor:  command.NewExecutor(injector, logging.Component("executor")),
		Log:       logging.Component("app"),
	}

	if !gateway.HasKeys() {
		app.Log.Warn().Msg("no valid API keys configured, running with rule-based planning only")
	}
	return app, nil
}

// buildProviders maps provider settings to gateway configs with the right
// backend per provider name.
func buildProviders(cfg config.GatewayConfig) []llm.ProviderConfig {
	var providers []llm.ProviderConfig
	for _, p := range cfg.Providers {
		var backend llm.Backend
		switch p.Name {
		case "groq":
			backend = llm.NewOpenAICompatBackend(llm.GroqBaseURL, nil)
		case "openrouter":
			backend = llm.NewOpenAICompatBackend(llm.OpenRouterBaseURL, nil)
		case "gemini":
			backend = llm.NewGeminiBackend()
		case "anthropic":
			backend = llm.NewAnthropicBackend()
		default:
			continue
		}
		providers = append(providers, llm.ProviderConfig{
			Name:            p.Name,
			Backend:         backend,
			Keys:            p.Keys,
			Model:           p.Model,
			FallbackModel:   p.FallbackModel,
			SearchPreferred: p.SearchPreferred,
		})
	}
	return providers
}

// Serve runs the IPC daemon until interrupted.
func Serve(ctx context.Context, opts Options) error {
	app, err := NewApp(opts)
	if err != nil {
		return err
	}

	store, err := storage.OpenTranscript(app.Settings.Server.TranscriptPath)
	if err != nil {
		app.Log.Warn().Err(err).Msg("transcript store unavailable, continuing without audit trail")
		store = nil
	} else {
		defer store.Close()
	}

	server := ipc.NewServer(app.Settings.Server.SocketPath,
		app.Pipeline, app.Validator, app.Executor, store, logging.Component("ipc"))
	if err := server.Start(); err != nil {
		return err
	}
	defer server.Close()

	app.Log.Info().
		Str("socket", app.Settings.Server.SocketPath).
		Bool("inference", app.Gateway.HasKeys()).
		Msg("deskhand ready")

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	app.Log.Info().Msg("shutting down")
	return nil
}

// Ask processes a single request locally and prints the result. With
// opts.Execute the plan is validated and run; otherwise it is printed for
// inspection.
func Ask(ctx context.Context, query string, opts Options) error {
	app, err := NewApp(opts)
	if err != nil {
		return err
	}

	plan := app.Pipeline.Handle(ctx, query)
	if plan.IsError() {
		return fmt.Errorf("request failed: %s", plan.Err)
	}

	if plan.Description != "" {
		fmt.Println(plan.Description)
	}

	if len(plan.Steps) == 0 {
		return nil
	}

	if !opts.Execute {
		raw, err := json.MarshalIndent(plan, "", "  ")
		if err != nil {
			return err
		}
		fmt.Printf("\n%s\n\nRe-run with --execute to perform these steps.\n", raw)
		return nil
	}

	if err := app.Validator.Approve(ctx, plan); err != nil {
		return fmt.Errorf("plan rejected: %w", err)
	}
	report, err := app.Executor.Run(ctx, plan)
	if err != nil {
		return err
	}
	fmt.Printf("Done: %d steps in %s.\n", report.Executed, report.Elapsed.Round(10*time.Millisecond))
	return nil
}

// Status prints provider and cache state.
func Status(ctx context.Context, opts Options) error {
	app, err := NewApp(opts)
	if err != nil {
		return err
	}

	status := app.Gateway.Status()
	fmt.Println("Providers:")
	for _, p := range status.Providers {
		state := "ready"
		if p.KeysAvailable == 0 {
			state = "no keys"
		}
		fmt.Printf("  %-12s %-8s model=%s", p.Name, state, p.Model)
		if p.FallbackModel != "" {
			fmt.Printf(" fallback=%s", p.FallbackModel)
		}
		if p.SearchPreferred {
			fmt.Print(" (search)")
		}
		fmt.Println()
	}

	stats := app.Cache.Stats()
	fmt.Printf("\nCache: %d/%d entries, ttl %v\n", stats.Size, stats.MaxSize, stats.TTL)

	if store, err := storage.OpenTranscript(app.Settings.Server.TranscriptPath); err == nil {
		defer store.Close()
		if sessions, err := store.ListSessions(ctx); err == nil {
			fmt.Printf("Sessions recorded: %d\n", len(sessions))
		}
	}
	return nil
}
