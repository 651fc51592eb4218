// Package tools holds the local actions the task executor can run on behalf
// of a user: file search, single-file read, arithmetic and a system report.
// Every tool reports failure through its result string and never returns an
// error, so a task always completes.
package tools

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const maxPathMatches = 20

// pathToken finds a drive-letter path or a POSIX absolute path.
var pathToken = regexp.MustCompile(`[C-Z]:[\\/][^\s]*|(?:^|\s)(/[^\s]*)`)

// ExtractPath returns the first absolute directory path mentioned in text,
// or "" when there is none.
func ExtractPath(text string) string {
	m := pathToken.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	if m[1] != "" {
		return m[1]
	}
	return strings.TrimSpace(m[0])
}

// SearchFiles lists base names of entries in dir matching pattern.
func SearchFiles(dir, pattern string) string {
	matches, err := glob(dir, pattern)
	if err != nil {
		return fmt.Sprintf("Error searching files: %v", err)
	}
	if len(matches) == 0 {
		return "No files found matching the pattern"
	}
	lines := make([]string, len(matches))
	for i, m := range matches {
		lines[i] = "• " + filepath.Base(m)
	}
	return fmt.Sprintf("Found %d files:\n%s", len(matches), strings.Join(lines, "\n"))
}

// SearchInPath lists full paths in dir matching pattern. The count reports
// every match; at most twenty are listed.
func SearchInPath(dir, pattern string) string {
	if _, err := os.Stat(dir); err != nil {
		return fmt.Sprintf("Directory '%s' does not exist", dir)
	}
	matches, err := glob(dir, pattern)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	if len(matches) == 0 {
		return fmt.Sprintf("No files found in '%s'", dir)
	}
	shown := matches
	if len(shown) > maxPathMatches {
		shown = shown[:maxPathMatches]
	}
	lines := make([]string, len(shown))
	for i, m := range shown {
		lines[i] = "• " + m
	}
	return fmt.Sprintf("Found %d files:\n%s", len(matches), strings.Join(lines, "\n"))
}

// glob matches like a shell: hidden entries are skipped.
func glob(dir, pattern string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, err
	}
	out := matches[:0]
	for _, m := range matches {
		if !strings.HasPrefix(filepath.Base(m), ".") {
			out = append(out, m)
		}
	}
	return out, nil
}

// ReadFile returns the contents of path, or a fixed error string.
func ReadFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return "Error reading file"
	}
	return string(data)
}
