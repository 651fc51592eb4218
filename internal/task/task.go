// Package task plans a single unit of tool work from a request and drives it
// through its lifecycle. The planner decides the Kind once; the executor
// dispatches on Kind alone and never re-reads the request to pick a branch.
package task

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Status is a task lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Kind selects the tool a task runs.
type Kind string

const (
	KindExecute      Kind = "execute"
	KindCapabilities Kind = "capabilities"
	KindSearch       Kind = "search"
	KindFile         Kind = "file"
	KindCalculate    Kind = "calculate"
	KindGeneral      Kind = "general"
)

// Task is one planned unit of tool work.
type Task struct {
	ID          string `json:"id"`
	Kind        Kind   `json:"kind"`
	Description string `json:"description"`
	Request     string `json:"request"`
	Status      Status `json:"status"`
	Result      string `json:"result,omitempty"`
}

// planRules are evaluated in order against the lowercased request.
var planRules = []struct {
	kind    Kind
	prefix  string
	phrases []string
}{
	{KindExecute, "Execute code", []string{"execute", "run this", "```"}},
	{KindCapabilities, "Discover system capabilities", []string{"what can you do", "capabilities", "discover system"}},
	{KindSearch, "Search based on", []string{"search"}},
	{KindFile, "File operation", []string{"file"}},
	{KindCalculate, "Calculate", []string{"calculate"}},
}

// Plan returns the tasks for request. It always yields exactly one task;
// requests matching no rule get a general task.
func Plan(request string) []Task {
	lower := strings.ToLower(request)
	kind, prefix := KindGeneral, "General task"
	for _, rule := range planRules {
		if containsAny(lower, rule.phrases) {
			kind, prefix = rule.kind, rule.prefix
			break
		}
	}
	return []Task{{
		ID:          uuid.NewString(),
		Kind:        kind,
		Description: fmt.Sprintf("%s: %s", prefix, request),
		Request:     request,
		Status:      StatusPending,
	}}
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
