package session

import (
	"sort"
	"strings"

	"github.com/ashureev/codemate/internal/classify"
	"github.com/ashureev/codemate/internal/domain"
)

const (
	contextWindow      = 6
	maxQuestionTypes   = 3
	maxErrorSnippets   = 2
	errorSnippetLength = 100
)

var topicVocabulary = []string{
	"react", "angular", "vue", "nodejs", "express", "django", "flask",
	"spring", "hibernate", "mongodb", "mysql", "postgresql", "redis",
	"docker", "kubernetes", "aws", "azure", "git", "machine learning",
	"ai", "web development", "mobile development", "game development",
}

var errorWords = []string{"error", "exception", "traceback"}

// Context summarises recent history. It is derived on demand and never stored.
type Context struct {
	Languages     []string                `json:"languages_mentioned"`
	Topics        []string                `json:"topics_discussed"`
	Skill         classify.SkillLevel     `json:"user_skill_level"`
	QuestionTypes []classify.QuestionType `json:"recent_question_types"`
	ErrorSnippets []string                `json:"recent_error_snippets"`
}

// HasQuestionType reports whether q is among the recent question types.
func (c Context) HasQuestionType(q classify.QuestionType) bool {
	for _, t := range c.QuestionTypes {
		if t == q {
			return true
		}
	}
	return false
}

// BuildContext folds the last six history entries into a Context. Entries
// older than that have no influence on the result.
func BuildContext(history []domain.Message) Context {
	window := history
	if len(window) > contextWindow {
		window = window[len(window)-contextWindow:]
	}

	languages := make(map[string]struct{})
	topics := make(map[string]struct{})
	var questionTypes []classify.QuestionType
	var snippets []string

	for _, msg := range window {
		for _, lang := range classify.Languages(msg.Content) {
			languages[lang] = struct{}{}
		}

		if q := classify.Question(msg.Content); q != classify.General {
			questionTypes = append(questionTypes, q)
		}

		lower := strings.ToLower(msg.Content)
		for _, topic := range topicVocabulary {
			if strings.Contains(lower, topic) {
				topics[topic] = struct{}{}
			}
		}

		if classify.ContainsAny(lower, errorWords) {
			snippets = append(snippets, truncateRunes(msg.Content, errorSnippetLength))
		}
	}

	latest := ""
	if len(window) > 0 {
		latest = window[len(window)-1].Content
	}

	return Context{
		Languages:     sortedKeys(languages),
		Topics:        sortedKeys(topics),
		Skill:         classify.Skill(latest, window),
		QuestionTypes: lastN(questionTypes, maxQuestionTypes),
		ErrorSnippets: lastN(snippets, maxErrorSnippets),
	}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func lastN[T any](items []T, n int) []T {
	if len(items) > n {
		items = items[len(items)-n:]
	}
	out := make([]T, len(items))
	copy(out, items)
	return out
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
