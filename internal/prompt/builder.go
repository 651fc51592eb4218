// Package prompt composes the system prompt sent with every model call and
// normalises the text the model sends back.
package prompt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ashureev/codemate/internal/classify"
	"github.com/ashureev/codemate/internal/session"
)

const maxTopics = 3

const baseTemplate = `You are a helpful programming assistant focused on clear communication and practical solutions.

QUESTION UNDERSTANDING:
- Read the entire question carefully before responding
- If a question is vague or ambiguous, ask for clarification
- Identify the programming language, framework, or technology mentioned
- Determine the user's skill level from context (beginner/intermediate/advanced)
- Look for specific requirements, constraints, or desired outcomes
- Pay attention to error messages, code snippets, or examples provided

RESPONSE STRATEGY:
- Start with a direct answer to the main question
- If multiple interpretations exist, address the most likely one first
- Break down complex problems into smaller, manageable parts
- Explain the "why" behind solutions, not just the "how"
- Anticipate follow-up questions and provide relevant context

CODE FORMATTING RULES:
- ALWAYS use proper line breaks and indentation
- NEVER put multiple statements on one line
- Use markdown code blocks with language tags
- Format with 4-space indentation for most languages
- Each statement on its own line
- Include helpful comments explaining key concepts

MATH FORMATTING:
- Wrap inline math in \( ... \)
- Wrap block math in $$ ... $$
- Use proper LaTeX syntax

COMMUNICATION STYLE:
- Be concise but thorough
- Use simple language when possible
- Provide examples that match the user's context
- If you need more information, ask specific questions
- Acknowledge when you're making assumptions

Remember: Better to ask for clarification than to guess incorrectly.`

const beginnerSection = `
BEGINNER MODE:
- Provide extra explanations and context
- Define technical terms when first used
- Include step-by-step instructions
- Suggest learning resources when appropriate
- Be encouraging and patient`

const advancedSection = `
ADVANCED MODE:
- Focus on efficiency and best practices
- Discuss trade-offs and alternatives
- Include performance considerations
- Reference design patterns when relevant
- Assume familiarity with basic concepts`

const debuggingSection = `
DEBUGGING FOCUS:
- Ask for complete error messages and stack traces
- Suggest systematic debugging approaches
- Recommend debugging tools and techniques`

const tutorialSection = `
TUTORIAL MODE:
- Provide step-by-step instructions
- Include multiple examples
- Explain concepts progressively`

// Base returns the fixed instruction template with no context sections.
func Base() string {
	return baseTemplate
}

// Build returns the system prompt for ctx. Sections are appended in a fixed
// order and list-valued fields are sorted, so equal contexts always produce
// byte-identical prompts.
func Build(ctx session.Context) string {
	var b strings.Builder
	b.WriteString(baseTemplate)

	if len(ctx.Languages) > 0 {
		fmt.Fprintf(&b, "\nCONTEXT: User is working with %s. Focus on best practices for these languages.",
			strings.Join(sorted(ctx.Languages), ", "))
	}

	switch ctx.Skill {
	case classify.Beginner:
		b.WriteString(beginnerSection)
	case classify.Advanced:
		b.WriteString(advancedSection)
	}

	if ctx.HasQuestionType(classify.Debugging) {
		b.WriteString(debuggingSection)
	}
	if ctx.HasQuestionType(classify.Tutorial) {
		b.WriteString(tutorialSection)
	}

	if len(ctx.Topics) > 0 {
		topics := sorted(ctx.Topics)
		if len(topics) > maxTopics {
			topics = topics[:maxTopics]
		}
		fmt.Fprintf(&b, "\nRELEVANT TOPICS: Consider %s in your responses.", strings.Join(topics, ", "))
	}

	return b.String()
}

func sorted(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	sort.Strings(out)
	return out
}
