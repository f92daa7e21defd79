// Package main provides the deskhand CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"deskhand/cli"
)

var (
	// Global flags
	persona string
	verbose bool
)

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	rootCmd := &cobra.Command{
		Use:   "deskhand",
		Short: "Natural-language desktop assistant",
		Long: `deskhand turns natural-language requests into desktop action plans.

Requests flow through a cache, a local system-query resolver, and an
inference cascade over Groq, OpenRouter, Gemini, and Anthropic with
per-provider key rotation. Without API keys it still works in a
rule-based mode for common commands like "open firefox".`,
	}

	rootCmd.PersistentFlags().StringVar(&persona, "persona", "", "Assistant persona (default, concise, friendly, professional)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show verbose output")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(statusCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the assistant daemon on a unix socket",
		Long: `Run the assistant as a daemon answering requests over a unix socket.

Clients send a raw query per connection and receive a JSON plan. Two
framing prefixes are supported: CACHE_CHECK:<query> probes the response
cache, EXECUTE:<plan json> validates and runs an approved plan.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Serve(context.Background(), cli.Options{Persona: persona, Verbose: verbose})
		},
	}
}

func askCmd() *cobra.Command {
	var execute bool

	cmd := &cobra.Command{
		Use:   "ask [request]",
		Short: "Process a single request",
		Long: `Process one request and print the answer or the generated plan.

Plans are printed for inspection by default; pass --execute to validate
and run the steps against the desktop.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Ask(context.Background(), args[0], cli.Options{
				Persona: persona,
				Execute: execute,
				Verbose: verbose,
			})
		},
	}

	cmd.Flags().BoolVar(&execute, "execute", false, "Validate and execute the generated plan")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show provider, cache, and session state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Status(context.Background(), cli.Options{Persona: persona, Verbose: verbose})
		},
	}
}
