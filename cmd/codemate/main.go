// codemate - coding assistant CLI
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ashureev/codemate/internal/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	verbose     bool
	sandboxMode string
	runTimeout  time.Duration

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "codemate",
	Short: "codemate - agentic coding assistant",
	Long: `codemate answers programming questions with a local model and runs
small tools on request: code execution, file search, file reading,
arithmetic and a system capabilities report.

Run without arguments to start the interactive chat.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)

		if err := godotenv.Load(); err != nil {
			slog.Debug("No .env file found, using environment variables")
		}

		loaded, err := config.Load()
		if err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}
		if sandboxMode != "" {
			loaded.Sandbox.Mode = sandboxMode
		}
		if runTimeout > 0 {
			loaded.Sandbox.Timeout = runTimeout
		}
		if err := loaded.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		cfg = loaded
		return nil
	},
	RunE: runChat,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&sandboxMode, "sandbox", "", "code runner: disabled, subprocess, container, inprocess (overrides SANDBOX_MODE)")
	rootCmd.PersistentFlags().DurationVar(&runTimeout, "timeout", 0, "code execution timeout (overrides SANDBOX_TIMEOUT)")

	rootCmd.AddCommand(chatCmd, runCmd, sysinfoCmd, planCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
