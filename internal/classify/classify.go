// Package classify maps free-form user messages onto coarse tags: the kind
// of question being asked, the programming languages it mentions, and the
// apparent skill level of the person asking. All functions are pure.
package classify

import (
	"regexp"
	"sort"
	"strings"

	"github.com/ashureev/codemate/internal/domain"
)

// QuestionType is a coarse question category.
type QuestionType string

const (
	Debugging   QuestionType = "debugging"
	Tutorial    QuestionType = "tutorial"
	Advice      QuestionType = "advice"
	Explanation QuestionType = "explanation"
	Comparison  QuestionType = "comparison"
	Setup       QuestionType = "setup"
	General     QuestionType = "general"
)

// SkillLevel is the inferred proficiency of the user.
type SkillLevel string

const (
	Beginner     SkillLevel = "beginner"
	Intermediate SkillLevel = "intermediate"
	Advanced     SkillLevel = "advanced"
)

// questionRules are checked in order; the first rule with a matching phrase wins.
var questionRules = []struct {
	kind    QuestionType
	phrases []string
}{
	{Debugging, []string{"error", "exception", "bug", "not working", "broken", "crash"}},
	{Tutorial, []string{"how to", "how do i", "how can i", "tutorial", "guide"}},
	{Advice, []string{"best", "better", "optimize", "improve", "recommend"}},
	{Explanation, []string{"explain", "what does", "analyze", "review"}},
	{Comparison, []string{"vs", "versus", "compare", "difference"}},
	{Setup, []string{"install", "setup", "configure", "environment"}},
}

var (
	beginnerKeywords = []string{
		"beginner", "new to", "learning", "just started", "first time",
		"basics", "simple", "easy way", "tutorial", "guide",
	}
	advancedKeywords = []string{
		"optimization", "performance", "architecture", "design pattern",
		"algorithm complexity", "scalability", "refactor", "enterprise",
	}
)

// languageAliases maps every recognised spelling to its canonical token.
var languageAliases = map[string]string{
	"python":     "python",
	"javascript": "javascript",
	"java":       "java",
	"c#":         "csharp",
	"csharp":     "csharp",
	"c++":        "cpp",
	"cpp":        "cpp",
	"c":          "c",
	"php":        "php",
	"ruby":       "ruby",
	"go":         "go",
	"golang":     "go",
	"rust":       "rust",
	"swift":      "swift",
	"kotlin":     "kotlin",
	"scala":      "scala",
	"r":          "r",
	"html":       "html",
	"css":        "css",
	"sql":        "sql",
	"typescript": "typescript",
	"dart":       "dart",
	"perl":       "perl",
	"bash":       "bash",
	"shell":      "shell",
}

// languageToken splits text into candidate language names. '#' and '+' are
// word characters so that "c#" and "c++" survive intact.
var languageToken = regexp.MustCompile(`[a-z0-9#+]+`)

// Question classifies a message by case-insensitive substring search. A
// phrase embedded inside a longer word still counts as a match.
func Question(message string) QuestionType {
	lower := strings.ToLower(message)
	for _, rule := range questionRules {
		if ContainsAny(lower, rule.phrases) {
			return rule.kind
		}
	}
	return General
}

// Languages returns the canonical names of the programming languages a
// message mentions, sorted and without duplicates.
func Languages(message string) []string {
	seen := make(map[string]struct{})
	for _, tok := range languageToken.FindAllString(strings.ToLower(message), -1) {
		if canonical, ok := languageAliases[tok]; ok {
			seen[canonical] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for lang := range seen {
		out = append(out, lang)
	}
	sort.Strings(out)
	return out
}

// Skill infers a skill level from the message, falling back to the last
// four history entries. Beginner cues outrank advanced ones within the same
// text.
func Skill(message string, history []domain.Message) SkillLevel {
	if level, ok := skillFrom(strings.ToLower(message)); ok {
		return level
	}

	recent := history
	if len(recent) > 4 {
		recent = recent[len(recent)-4:]
	}
	parts := make([]string, 0, len(recent))
	for _, msg := range recent {
		parts = append(parts, msg.Content)
	}
	if level, ok := skillFrom(strings.ToLower(strings.Join(parts, " "))); ok {
		return level
	}
	return Intermediate
}

func skillFrom(lower string) (SkillLevel, bool) {
	if ContainsAny(lower, beginnerKeywords) {
		return Beginner, true
	}
	if ContainsAny(lower, advancedKeywords) {
		return Advanced, true
	}
	return "", false
}

// ContainsAny reports whether s contains any of the given substrings.
func ContainsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
