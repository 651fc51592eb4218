package main

import (
	"fmt"
	"strings"

	"github.com/ashureev/codemate/internal/agent"
	"github.com/ashureev/codemate/internal/sandbox"
	"github.com/ashureev/codemate/internal/task"
	"github.com/spf13/cobra"
)

var planExecute bool

var planCmd = &cobra.Command{
	Use:   "plan [request]",
	Short: "Show how a request would be routed and planned",
	Long: `Prints the route a request takes and, for agentic requests, the planned
task. With --execute the task is run and its result printed; no model call
is made.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPlan,
}

func init() {
	planCmd.Flags().BoolVar(&planExecute, "execute", false, "run the planned task")
}

func runPlan(cmd *cobra.Command, args []string) error {
	request := strings.Join(args, " ")
	out := cmd.OutOrStdout()

	if !agent.IsAgentic(request) {
		fmt.Fprintln(out, "route: conversational")
		return nil
	}
	fmt.Fprintln(out, "route: agentic")

	var executor *task.Executor
	if planExecute {
		runner, err := sandbox.New(cfg.Sandbox, logger)
		if err != nil {
			return fmt.Errorf("initialize sandbox: %w", err)
		}
		executor = task.NewExecutor(task.ExecutorOptions{
			Runner:     runner,
			SearchRoot: cfg.Tools.SearchRoot,
			FilePath:   cfg.Tools.FilePath,
			Logger:     logger,
		})
	}

	tasks := task.Plan(request)
	for i := range tasks {
		t := &tasks[i]
		fmt.Fprintf(out, "task %s [%s]: %s\n", t.ID, t.Kind, t.Description)
		if executor == nil {
			continue
		}
		executor.Execute(cmd.Context(), t)
		fmt.Fprintf(out, "status: %s\nresult:\n%s\n", t.Status, t.Result)
	}
	return nil
}
