package prompt

import (
	"regexp"
	"strings"
)

// EmptyResponse replaces a model reply that is blank after cleaning.
const EmptyResponse = "I couldn't generate a response. Please try again."

var (
	thinkBlock     = regexp.MustCompile(`(?is)<think>.*?</think>`)
	thinkingBlock  = regexp.MustCompile(`(?is)<thinking>.*?</thinking>`)
	blankLineRun   = regexp.MustCompile(`\n\s*\n\s*\n+`)
	trailingSpaces = regexp.MustCompile(`[ \t]+\n`)
	headingMarker  = regexp.MustCompile(`(?m)^#{1,3}\s*`)
)

// Clean strips reasoning blocks and markdown noise from a model reply.
func Clean(response string) string {
	out := thinkBlock.ReplaceAllString(response, "")
	out = thinkingBlock.ReplaceAllString(out, "")
	out = blankLineRun.ReplaceAllString(out, "\n\n")
	out = trailingSpaces.ReplaceAllString(out, "\n")
	out = headingMarker.ReplaceAllString(out, "")
	out = strings.TrimSpace(out)
	if out == "" {
		return EmptyResponse
	}
	return out
}
