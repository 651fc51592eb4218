package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ashureev/codemate/internal/sandbox"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [file]",
	Short: "Run a source file in the sandbox",
	Long: `Runs a Python (.py), C# (.cs) or Go (.go) file with the configured code
runner and prints the result exactly as the assistant would report it.`,
	Args: cobra.ExactArgs(1),
	RunE: runFile,
}

func languageForPath(path string) (sandbox.Language, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".py":
		return sandbox.Python, nil
	case ".cs":
		return sandbox.CSharp, nil
	case ".go":
		return sandbox.Go, nil
	default:
		return "", fmt.Errorf("unsupported file type %q: use .py, .cs or .go", filepath.Ext(path))
	}
}

func runFile(cmd *cobra.Command, args []string) error {
	lang, err := languageForPath(args[0])
	if err != nil {
		return err
	}
	code, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}

	runner, err := sandbox.New(cfg.Sandbox, logger)
	if err != nil {
		return fmt.Errorf("initialize sandbox: %w", err)
	}
	if closer, ok := runner.(io.Closer); ok {
		defer closer.Close()
	}

	res := runner.Run(cmd.Context(), sandbox.Snippet{Language: lang, Code: string(code)})
	fmt.Fprintln(cmd.OutOrStdout(), res.Text())
	if res.Outcome != sandbox.OutcomeOK {
		return fmt.Errorf("run %s: %s", args[0], res.Outcome)
	}
	return nil
}
