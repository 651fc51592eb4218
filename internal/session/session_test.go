package session

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/ashureev/codemate/internal/classify"
	"github.com/ashureev/codemate/internal/domain"
	"github.com/google/go-cmp/cmp"
)

func user(content string) domain.Message {
	return domain.Message{Role: domain.RoleUser, Content: content}
}

func TestHistoryKeepsMostRecentInOrder(t *testing.T) {
	t.Parallel()

	h := NewHistory(6)
	for i := 1; i <= 7; i++ {
		h.Append(user(fmt.Sprintf("m%d", i)))
	}

	got := h.Snapshot()
	if len(got) != 6 {
		t.Fatalf("Expected 6 entries, got %d", len(got))
	}
	for i, msg := range got {
		want := fmt.Sprintf("m%d", i+2)
		if msg.Content != want {
			t.Errorf("entry %d = %q, want %q", i, msg.Content, want)
		}
	}
}

func TestHistorySnapshotIsIsolated(t *testing.T) {
	t.Parallel()

	h := NewHistory(2)
	h.Append(user("a"))
	h.Append(user("b"))
	snap := h.Snapshot()
	h.Append(user("c"))

	if snap[0].Content != "a" || snap[1].Content != "b" {
		t.Fatalf("Snapshot changed after append: %+v", snap)
	}
}

func TestHistoryAppendAndSnapshot(t *testing.T) {
	t.Parallel()

	h := NewHistory(2)
	h.Append(user("a"))
	h.Append(user("b"))
	got := h.AppendAndSnapshot(user("c"))

	if len(got) != 2 || got[0].Content != "b" || got[1].Content != "c" {
		t.Fatalf("Unexpected snapshot after append: %+v", got)
	}
}

func TestHistoryClear(t *testing.T) {
	t.Parallel()

	h := NewHistory(0)
	if h.Limit() != DefaultHistoryLimit {
		t.Fatalf("Expected default limit %d, got %d", DefaultHistoryLimit, h.Limit())
	}
	h.Append(user("a"))
	h.Clear()
	if h.Len() != 0 {
		t.Fatalf("Expected empty history, got %d", h.Len())
	}
}

func TestHistoryConcurrentAppendAndSnapshot(t *testing.T) {
	t.Parallel()

	h := NewHistory(6)
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				h.Append(user(fmt.Sprintf("w%d-%d", w, i)))
			}
		}(w)
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				snap := h.Snapshot()
				if len(snap) > 6 {
					t.Errorf("Snapshot exceeded bound: %d", len(snap))
					return
				}
				for _, m := range snap {
					if m.Content == "" {
						t.Errorf("Observed partially appended entry")
						return
					}
				}
				_ = BuildContext(snap)
			}
		}()
	}
	wg.Wait()
}

func TestBuildContextIgnoresEntriesOutsideWindow(t *testing.T) {
	t.Parallel()

	recent := []domain.Message{
		user("hello"), user("hi"), user("ok"),
		user("sure"), user("fine"), user("thanks"),
	}
	base := BuildContext(recent)

	older := append([]domain.Message{
		user("I am a beginner with python and docker, got an error"),
		user("how to compare rust vs go"),
	}, recent...)
	withOlder := BuildContext(older)

	if diff := cmp.Diff(base, withOlder); diff != "" {
		t.Fatalf("Older entries influenced context (-want +got):\n%s", diff)
	}
}

func TestBuildContext(t *testing.T) {
	t.Parallel()

	long := "Traceback: " + strings.Repeat("x", 150)
	history := []domain.Message{
		user("How do I set up Docker for my Python app?"),
		{Role: domain.RoleAssistant, Content: "Use a Dockerfile."},
		user("I get an error with redis"),
		user(long),
		user("Compare C# and Java"),
		user("what is the best refactor"),
	}

	got := BuildContext(history)
	want := Context{
		Languages: []string{"csharp", "java", "python"},
		Topics:    []string{"docker", "redis"},
		Skill:     classify.Advanced,
		QuestionTypes: []classify.QuestionType{
			classify.Debugging, classify.Comparison, classify.Advice,
		},
		ErrorSnippets: []string{"I get an error with redis", long[:100]},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("BuildContext mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildContextEmpty(t *testing.T) {
	t.Parallel()

	got := BuildContext(nil)
	if got.Skill != classify.Intermediate {
		t.Errorf("Expected intermediate skill, got %s", got.Skill)
	}
	if len(got.Languages) != 0 || len(got.Topics) != 0 || len(got.QuestionTypes) != 0 {
		t.Errorf("Expected empty context, got %+v", got)
	}
}

func TestRegistrySeparatesSessions(t *testing.T) {
	t.Parallel()

	r := NewRegistry(10, 6, 0)
	r.Get(Key("u1", "a")).Append(user("one"))
	r.Get(Key("u1", "b")).Append(user("two"))

	if got := r.Get(Key("u1", "a")).Snapshot(); len(got) != 1 || got[0].Content != "one" {
		t.Fatalf("Unexpected history for u1:a: %+v", got)
	}
	if r.Len() != 2 {
		t.Fatalf("Expected 2 sessions, got %d", r.Len())
	}

	r.Remove(Key("u1", "a"))
	if _, ok := r.Peek(Key("u1", "a")); ok {
		t.Fatal("Expected session to be removed")
	}
}

func TestRegistryEvictsLeastRecentlyUsed(t *testing.T) {
	t.Parallel()

	r := NewRegistry(2, 6, 0)
	r.Get("a")
	r.Get("b")
	r.Get("a")
	r.Get("c")

	if _, ok := r.Peek("b"); ok {
		t.Fatal("Expected least recently used session to be evicted")
	}
	if _, ok := r.Peek("a"); !ok {
		t.Fatal("Expected recently used session to survive")
	}
}
