// Command wordsim runs the word similarity engine, either as an HTTP service or over
// newline-delimited JSON on stdin/stdout.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// flagEnv maps command-line flags to the environment variables they override.
var flagEnv = map[string]string{
	"provider":  "EMBEDDING_PROVIDER",
	"model":     "EMBEDDING_MODEL",
	"log-level": "LOG_LEVEL",
	"port":      "PORT",
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "wordsim",
		Short:         "Semantic similarity between submitted words",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return applyFlagOverrides(cmd)
		},
	}

	rootCmd.PersistentFlags().String("provider", "", "Embedding provider: hash, ollama, openai or google (overrides EMBEDDING_PROVIDER)")
	rootCmd.PersistentFlags().String("model", "", "Embedding model (overrides EMBEDDING_MODEL)")
	rootCmd.PersistentFlags().String("log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
	serveCmd.Flags().String("port", "", "HTTP port (overrides PORT)")

	stdioCmd := &cobra.Command{
		Use:   "stdio",
		Short: "Exchange protocol messages as JSON lines on stdin and stdout",
		Long: `Reads one JSON message per line from stdin ({"type":"addWord","word":"apple"} or
{"type":"clearHistory"}) and writes ready, updated and error messages to stdout, one per line.
Logs go to stderr. At end of input the command waits for every queued message to be answered.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStdioCommand(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	rootCmd.AddCommand(serveCmd, stdioCmd)

	return rootCmd
}

// applyFlagOverrides exports explicitly set flags as environment variables so config.Load
// stays the single source of configuration.
func applyFlagOverrides(cmd *cobra.Command) error {
	for flag, env := range flagEnv {
		f := cmd.Flags().Lookup(flag)
		if f == nil || !f.Changed {
			continue
		}

		if err := os.Setenv(env, f.Value.String()); err != nil {
			return fmt.Errorf("set %s: %w", env, err)
		}
	}

	return nil
}
