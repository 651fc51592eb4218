package classify

import (
	"testing"

	"github.com/ashureev/codemate/internal/domain"
	"github.com/google/go-cmp/cmp"
)

func TestQuestion(t *testing.T) {
	t.Parallel()

	cases := []struct {
		msg  string
		want QuestionType
	}{
		{"My script throws an Exception on startup", Debugging},
		{"How do I read a file line by line?", Tutorial},
		{"What's the best way to cache this?", Advice},
		{"Explain closures please", Explanation},
		{"python vs go for CLIs", Comparison},
		{"install the toolchain on my laptop", Setup},
		{"hello there", General},
		// Priority: debugging beats tutorial when both are present.
		{"how to fix this error", Debugging},
		// Substring match, not tokenized.
		{"a story of terror", Debugging},
	}
	for _, c := range cases {
		if got := Question(c.msg); got != c.want {
			t.Errorf("Question(%q) = %s, want %s", c.msg, got, c.want)
		}
	}
}

func TestLanguagesNormalizesAliases(t *testing.T) {
	t.Parallel()

	got := Languages("I use C# and csharp")
	if diff := cmp.Diff([]string{"csharp"}, got); diff != "" {
		t.Fatalf("Languages mismatch (-want +got):\n%s", diff)
	}
}

func TestLanguages(t *testing.T) {
	t.Parallel()

	cases := []struct {
		msg  string
		want []string
	}{
		{"Porting C++ and cpp code to Rust", []string{"cpp", "rust"}},
		{"golang or Go? also Python.", []string{"go", "python"}},
		{"nothing relevant here", []string{}},
		{"TypeScript, JavaScript and SQL", []string{"javascript", "sql", "typescript"}},
	}
	for _, c := range cases {
		if diff := cmp.Diff(c.want, Languages(c.msg)); diff != "" {
			t.Errorf("Languages(%q) mismatch (-want +got):\n%s", c.msg, diff)
		}
	}
}

func TestSkill(t *testing.T) {
	t.Parallel()

	history := []domain.Message{
		{Role: domain.RoleUser, Content: "we care about scalability"},
		{Role: domain.RoleAssistant, Content: "ok"},
	}

	cases := []struct {
		name    string
		msg     string
		history []domain.Message
		want    SkillLevel
	}{
		{"beginner in message", "I'm new to Go", nil, Beginner},
		{"advanced in message", "refactor for performance", nil, Advanced},
		{"beginner outranks advanced", "simple performance tips", nil, Beginner},
		{"falls back to history", "what next?", history, Advanced},
		{"default", "what next?", nil, Intermediate},
	}
	for _, c := range cases {
		if got := Skill(c.msg, c.history); got != c.want {
			t.Errorf("%s: Skill(%q) = %s, want %s", c.name, c.msg, got, c.want)
		}
	}
}

func TestSkillOnlyInspectsLastFourHistoryEntries(t *testing.T) {
	t.Parallel()

	history := []domain.Message{
		{Role: domain.RoleUser, Content: "I am a beginner"},
		{Role: domain.RoleAssistant, Content: "a"},
		{Role: domain.RoleUser, Content: "b"},
		{Role: domain.RoleAssistant, Content: "c"},
		{Role: domain.RoleUser, Content: "d"},
	}
	if got := Skill("next", history); got != Intermediate {
		t.Fatalf("Expected entries older than the last four to be ignored, got %s", got)
	}
}
