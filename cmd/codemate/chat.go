package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ashureev/codemate/internal/agent"
	"github.com/ashureev/codemate/internal/llm"
	"github.com/ashureev/codemate/internal/sandbox"
	"github.com/ashureev/codemate/internal/session"
	"github.com/ashureev/codemate/internal/task"
	"github.com/spf13/cobra"
)

const cliSessionKey = "cli:local"

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long: `Reads one message per line and prints the reply.

Commands:
  /clear    forget the conversation
  /context  show the derived conversation context
  /quit     leave the chat`,
	RunE: runChat,
}

func runChat(cmd *cobra.Command, _ []string) error {
	runner, err := sandbox.New(cfg.Sandbox, logger)
	if err != nil {
		return fmt.Errorf("initialize sandbox: %w", err)
	}
	if closer, ok := runner.(io.Closer); ok {
		defer closer.Close()
	}

	d := agent.NewDispatcher(agent.DispatcherOptions{
		Sessions: session.NewRegistry(1, session.DefaultHistoryLimit, 0),
		Model:    llm.NewClient(cfg.Model, logger),
		Executor: task.NewExecutor(task.ExecutorOptions{
			Runner:     runner,
			SearchRoot: cfg.Tools.SearchRoot,
			FilePath:   cfg.Tools.FilePath,
			Logger:     logger,
		}),
		Logger: logger,
	})

	fmt.Fprintf(cmd.OutOrStdout(), "codemate (%s). Type /quit to exit.\n", cfg.Model.Name)
	return chatLoop(cmd.Context(), d, cmd.InOrStdin(), cmd.OutOrStdout())
}

func chatLoop(ctx context.Context, r agent.Responder, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/clear":
			r.ClearHistory(ctx, cliSessionKey)
			fmt.Fprintln(out, "Chat cleared")
			continue
		case "/context":
			c := r.ContextSnapshot(cliSessionKey)
			fmt.Fprintf(out, "languages: %s\ntopics: %s\nskill: %s\nmessages: %d\n",
				strings.Join(c.Languages, ", "), strings.Join(c.Topics, ", "), c.Skill, c.ConversationLength)
			continue
		}

		reply := r.Respond(ctx, cliSessionKey, line)
		fmt.Fprintf(out, "%s\n(%s, %.2fs)\n", reply.Text, reply.Route, reply.Duration.Seconds())
	}
}
