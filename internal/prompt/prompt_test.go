package prompt

import (
	"strings"
	"testing"

	"github.com/ashureev/codemate/internal/classify"
	"github.com/ashureev/codemate/internal/session"
)

func TestBuildIntermediateAddsNothing(t *testing.T) {
	t.Parallel()

	got := Build(session.Context{Skill: classify.Intermediate})
	if got != Base() {
		t.Fatalf("Expected bare template for empty intermediate context")
	}
}

func TestBuildSectionOrder(t *testing.T) {
	t.Parallel()

	ctx := session.Context{
		Languages:     []string{"python", "go"},
		Topics:        []string{"redis", "docker", "aws", "git"},
		Skill:         classify.Beginner,
		QuestionTypes: []classify.QuestionType{classify.Tutorial, classify.Debugging},
	}
	got := Build(ctx)

	markers := []string{
		"\nCONTEXT: User is working with go, python.",
		"\nBEGINNER MODE:",
		"\nDEBUGGING FOCUS:",
		"\nTUTORIAL MODE:",
		"\nRELEVANT TOPICS: Consider aws, docker, git in your responses.",
	}
	last := len(Base()) - 1
	for _, m := range markers {
		idx := strings.Index(got, m)
		if idx < 0 {
			t.Fatalf("Missing section %q", m)
		}
		if idx <= last {
			t.Fatalf("Section %q out of order", m)
		}
		last = idx
	}
	if strings.Contains(got, "ADVANCED MODE") {
		t.Error("Beginner and advanced sections must be exclusive")
	}
	if strings.Contains(got, "redis") {
		t.Error("Expected topics capped at three")
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	t.Parallel()

	a := Build(session.Context{Topics: []string{"vue", "react", "git"}, Skill: classify.Advanced})
	b := Build(session.Context{Topics: []string{"git", "vue", "react"}, Skill: classify.Advanced})
	if a != b {
		t.Fatal("Expected identical prompts for reordered topics")
	}
	if !strings.HasSuffix(a, "\nRELEVANT TOPICS: Consider git, react, vue in your responses.") {
		t.Fatalf("Unexpected topics section: %q", a[len(a)-80:])
	}
}

func TestClean(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"think block and blank lines", "<think>ignored</think>Hello\n\n\n\nWorld   \n", "Hello\n\nWorld"},
		{"multiline thinking", "<THINKING>\nplan\nmore\n</THINKING>\nAnswer", "Answer"},
		{"headings", "## Title\ntext\n### Sub", "Title\ntext\nSub"},
		{"deep heading keeps extra hashes", "#### Deep", "# Deep"},
		{"empty after cleaning", "<think>only</think>   ", EmptyResponse},
		{"blank", "", EmptyResponse},
	}
	for _, c := range cases {
		if got := Clean(c.in); got != c.want {
			t.Errorf("%s: Clean(%q) = %q, want %q", c.name, c.in, got, c.want)
		}
	}
}
