package sandbox

import "strings"

// NoCodeMessage is returned when a request carries no runnable snippet.
const NoCodeMessage = "No supported code found. Use ```python or ```csharp format"

const fence = "```"

// fenceTags are checked in order; the first tag present wins.
var fenceTags = []struct {
	tag  string
	lang Language
}{
	{"```python", Python},
	{"```csharp", CSharp},
	{"```c#", CSharp},
	{"```golang", Go},
	{"```go", Go},
}

// Extract finds a snippet in free-form request text. Fenced blocks are
// preferred; otherwise text that looks like Python (a print call or a for
// loop) is taken from after the first colon.
func Extract(text string) (Snippet, bool) {
	for _, f := range fenceTags {
		start := strings.Index(text, f.tag)
		if start < 0 {
			continue
		}
		code := strings.TrimSpace(text[start+len(f.tag):])
		if end := strings.Index(code, fence); end >= 0 {
			code = code[:end]
		}
		return Snippet{Language: f.lang, Code: strings.TrimSpace(code)}, true
	}

	if strings.Contains(text, "print(") || strings.Contains(text, "for ") {
		code := text
		if _, after, ok := strings.Cut(text, ":"); ok {
			code = after
		}
		return Snippet{Language: Python, Code: strings.TrimSpace(code)}, true
	}

	return Snippet{}, false
}
