package agent

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ashureev/codemate/internal/domain"
	"github.com/ashureev/codemate/internal/llm"
	"github.com/ashureev/codemate/internal/sandbox"
	"github.com/ashureev/codemate/internal/session"
	"github.com/ashureev/codemate/internal/store"
	"github.com/ashureev/codemate/internal/task"
	"github.com/google/go-cmp/cmp"
)

type fakeModel struct {
	mu    sync.Mutex
	calls []llm.ChatRequest
	reply string
	err   error
}

func (f *fakeModel) Chat(_ context.Context, req llm.ChatRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	return f.reply, f.err
}

func (f *fakeModel) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeModel) lastCall() llm.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

type fakeRunner struct {
	mu    sync.Mutex
	calls []sandbox.Snippet
	res   sandbox.Result
}

func (f *fakeRunner) Run(_ context.Context, s sandbox.Snippet) sandbox.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, s)
	res := f.res
	res.Language = s.Language
	return res
}

func newTestDispatcher(model llm.Provider, runner sandbox.Runner, repo store.Repository) *Dispatcher {
	return NewDispatcher(DispatcherOptions{
		Sessions: session.NewRegistry(16, session.DefaultHistoryLimit, 0),
		Model:    model,
		Executor: task.NewExecutor(task.ExecutorOptions{
			Runner:       runner,
			SystemReport: func(context.Context) string { return "System Information:" },
		}),
		Turns: repo,
	})
}

func TestIsAgentic(t *testing.T) {
	t.Parallel()

	cases := map[string]bool{
		"Search for main.go":          true,
		"CAN YOU help":                true,
		"what can you do?":            true,
		"run this: print(1)":          true,
		"show me system info":         true,
		"how do I sort a list":        false,
		"explain goroutines":          false,
		"what are your capabilities?": true,
	}
	for msg, want := range cases {
		if got := IsAgentic(msg); got != want {
			t.Errorf("IsAgentic(%q) = %v, want %v", msg, got, want)
		}
	}
}

func TestRespondExecuteReturnsToolResultWithoutModel(t *testing.T) {
	t.Parallel()

	model := &fakeModel{reply: "should not be used"}
	runner := &fakeRunner{res: sandbox.Result{Outcome: sandbox.OutcomeOK, Stdout: "1\n"}}
	d := newTestDispatcher(model, runner, nil)

	reply := d.Respond(context.Background(), "u:s", "execute this: print(1)")

	if reply.Text != "1\n" {
		t.Errorf("Expected raw tool output, got %q", reply.Text)
	}
	if reply.Route != domain.RouteAgentic || reply.TaskKind != task.KindExecute {
		t.Errorf("Unexpected route %s / kind %s", reply.Route, reply.TaskKind)
	}
	if n := model.callCount(); n != 0 {
		t.Fatalf("Expected no model calls, got %d", n)
	}
	want := []sandbox.Snippet{{Language: sandbox.Python, Code: "print(1)"}}
	if diff := cmp.Diff(want, runner.calls); diff != "" {
		t.Errorf("Runner snippets mismatch (-want +got):\n%s", diff)
	}
	if n := d.ContextSnapshot("u:s").ConversationLength; n != 0 {
		t.Errorf("Expected execute path to leave history untouched, got %d entries", n)
	}
}

func TestRespondConversationalUsesHistory(t *testing.T) {
	t.Parallel()

	model := &fakeModel{reply: "<think>hmm</think>## Use sorted()\n\n\n\nDone   \n"}
	d := newTestDispatcher(model, nil, nil)
	ctx := context.Background()

	first := d.Respond(ctx, "u:s", "how do I sort a list")
	if first.Text != "Use sorted()\n\nDone" {
		t.Errorf("Expected cleaned reply, got %q", first.Text)
	}
	if first.Route != domain.RouteConversational {
		t.Errorf("Expected conversational route, got %s", first.Route)
	}
	if n := model.callCount(); n != 1 {
		t.Fatalf("Expected exactly one model call, got %d", n)
	}

	d.Respond(ctx, "u:s", "and in reverse?")
	if n := model.callCount(); n != 2 {
		t.Fatalf("Expected exactly one model call per message, got %d", n)
	}

	msgs := model.lastCall().Messages
	if len(msgs) != 4 {
		t.Fatalf("Expected system prompt plus three history entries, got %d", len(msgs))
	}
	if msgs[0].Role != domain.RoleSystem {
		t.Errorf("Expected system prompt first, got %s", msgs[0].Role)
	}
	gotTail := []domain.Message{msgs[1], msgs[2], msgs[3]}
	wantTail := []domain.Message{
		{Role: domain.RoleUser, Content: "how do I sort a list"},
		{Role: domain.RoleAssistant, Content: "Use sorted()\n\nDone"},
		{Role: domain.RoleUser, Content: "and in reverse?"},
	}
	if diff := cmp.Diff(wantTail, gotTail); diff != "" {
		t.Errorf("History mismatch (-want +got):\n%s", diff)
	}
}

func TestRespondAgenticFollowUpGoesThroughModel(t *testing.T) {
	t.Parallel()

	model := &fakeModel{reply: "The answer is 4."}
	d := newTestDispatcher(model, nil, nil)

	reply := d.Respond(context.Background(), "u:s", "calculate 2+2")

	if reply.Text != "The answer is 4." {
		t.Errorf("Expected model reply, got %q", reply.Text)
	}
	if reply.TaskKind != task.KindCalculate {
		t.Errorf("Expected calculate task, got %s", reply.TaskKind)
	}
	if n := model.callCount(); n != 1 {
		t.Fatalf("Expected one model call, got %d", n)
	}
	msgs := model.lastCall().Messages
	want := "The user asked: calculate 2+2\n\nResults: 4\n\nProvide a helpful response."
	if got := msgs[len(msgs)-1].Content; got != want {
		t.Errorf("Follow-up prompt = %q, want %q", got, want)
	}
	if n := d.ContextSnapshot("u:s").ConversationLength; n != 2 {
		t.Errorf("Expected follow-up and reply in history, got %d entries", n)
	}
}

func TestRespondMapsModelFailures(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("%w: deadline", llm.ErrTimeout), replyTimeout},
		{fmt.Errorf("%w: connection refused", llm.ErrUnavailable), replyUnavailable},
		{fmt.Errorf("%w: HTTP 500", llm.ErrStatus), replyModelError},
		{errors.New("decode failure"), replyModelError},
	}
	for _, c := range cases {
		model := &fakeModel{err: c.err}
		d := newTestDispatcher(model, nil, nil)

		reply := d.Respond(context.Background(), "u:s", "hello")
		if reply.Text != c.want {
			t.Errorf("error %v: got %q, want %q", c.err, reply.Text, c.want)
		}
		if n := d.ContextSnapshot("u:s").ConversationLength; n != 1 {
			t.Errorf("error %v: expected only the user message in history, got %d", c.err, n)
		}
	}
}

func TestRespondWithoutModel(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher(nil, nil, nil)
	if got := d.Respond(context.Background(), "u:s", "hello").Text; got != replyUnavailable {
		t.Errorf("Expected unavailable reply, got %q", got)
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	t.Parallel()

	model := &fakeModel{reply: "ok"}
	d := newTestDispatcher(model, nil, nil)
	ctx := context.Background()

	d.Respond(ctx, "u1:a", "I am learning rust")
	d.Respond(ctx, "u2:a", "hello")

	msgs := model.lastCall().Messages
	if len(msgs) != 2 {
		t.Fatalf("Expected other session's history to be invisible, got %d messages", len(msgs))
	}
	if langs := d.ContextSnapshot("u2:a").Languages; len(langs) != 0 {
		t.Errorf("Expected no languages for u2, got %v", langs)
	}
	if diff := cmp.Diff([]string{"rust"}, d.ContextSnapshot("u1:a").Languages); diff != "" {
		t.Errorf("Languages mismatch (-want +got):\n%s", diff)
	}
}

func TestConcurrentRespondKeepsHistoryBounded(t *testing.T) {
	t.Parallel()

	model := &fakeModel{reply: "ok"}
	d := newTestDispatcher(model, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				d.Respond(context.Background(), "u:s", fmt.Sprintf("message %d-%d", i, j))
				_ = d.ContextSnapshot("u:s")
			}
		}(i)
	}
	wg.Wait()

	if n := d.ContextSnapshot("u:s").ConversationLength; n != session.DefaultHistoryLimit {
		t.Errorf("Expected history bounded at %d, got %d", session.DefaultHistoryLimit, n)
	}
	if n := model.callCount(); n != 80 {
		t.Errorf("Expected 80 model calls, got %d", n)
	}
}

func TestTurnsAreRecordedAndCleared(t *testing.T) {
	t.Parallel()

	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "turns.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	ctx := context.Background()
	d := newTestDispatcher(&fakeModel{reply: "sure"}, nil, repo)
	d.Respond(ctx, "u:s", "hello there")
	d.Respond(ctx, "u:s", "calculate 3*3")

	turns, err := d.Turns(ctx, "u:s", 0)
	if err != nil {
		t.Fatalf("Turns failed: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("Expected 2 turns, got %d", len(turns))
	}
	if turns[0].Request != "calculate 3*3" || turns[0].Route != domain.RouteAgentic || turns[0].TaskKind != string(task.KindCalculate) {
		t.Errorf("Unexpected newest turn: %+v", turns[0])
	}
	if turns[1].Route != domain.RouteConversational || turns[1].Response != "sure" {
		t.Errorf("Unexpected oldest turn: %+v", turns[1])
	}

	d.ClearHistory(ctx, "u:s")
	if n := d.ContextSnapshot("u:s").ConversationLength; n != 0 {
		t.Errorf("Expected empty history after clear, got %d", n)
	}
	turns, err = d.Turns(ctx, "u:s", 0)
	if err != nil {
		t.Fatalf("Turns failed: %v", err)
	}
	if len(turns) != 0 {
		t.Errorf("Expected no turns after clear, got %d", len(turns))
	}
}

func TestCapabilities(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher(nil, nil, nil)
	got := d.Capabilities()
	want := Capabilities{
		Tools:            []string{"search_files", "read_file", "calculate"},
		AgenticMode:      true,
		AvailableActions: []string{"file_operations", "calculations", "searches"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Capabilities mismatch (-want +got):\n%s", diff)
	}

	got.Tools[0] = "mutated"
	if d.Capabilities().Tools[0] != "search_files" {
		t.Error("Capabilities descriptor must not be shared")
	}
}
