package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/ashureev/codemate/internal/config"
)

// Toolchain knows how to lay out a snippet on disk and how to run it.
type Toolchain struct {
	Language Language
	// Binary is the host executable. Container runs use its base name.
	Binary string
	// Image is the container image used in container mode.
	Image string
	Env   []string
	// Prepare writes the program files for code into dir.
	Prepare func(dir, code string) error
	// Args returns the arguments passed to Binary for a program in dir.
	Args func(dir string) []string
}

// DefaultToolchains returns the Python, C# and Go toolchains.
func DefaultToolchains(cfg config.SandboxConfig) map[Language]Toolchain {
	return map[Language]Toolchain{
		Python: {
			Language: Python,
			Binary:   cfg.Python,
			Image:    "python:3.12-alpine",
			Env:      []string{"PYTHONDONTWRITEBYTECODE=1", "PYTHONUNBUFFERED=1"},
			Prepare: func(dir, code string) error {
				return writeFile(dir, "main.py", code)
			},
			Args: func(dir string) []string {
				return []string{"-I", filepath.Join(dir, "main.py")}
			},
		},
		CSharp: {
			Language: CSharp,
			Binary:   cfg.Dotnet,
			Image:    "mcr.microsoft.com/dotnet/sdk:8.0",
			Env:      []string{"DOTNET_CLI_TELEMETRY_OPTOUT=1", "DOTNET_NOLOGO=1", "DOTNET_SKIP_FIRST_TIME_EXPERIENCE=1"},
			Prepare: func(dir, code string) error {
				if err := writeFile(dir, "Snippet.csproj", csharpProject); err != nil {
					return err
				}
				return writeFile(dir, "Program.cs", csharpProgram(code))
			},
			Args: func(dir string) []string {
				return []string{"run", "--project", dir}
			},
		},
		Go: {
			Language: Go,
			Binary:   cfg.Go,
			Image:    "golang:1.24-alpine",
			Env:      []string{"GOTOOLCHAIN=local"},
			Prepare: func(dir, code string) error {
				return writeFile(dir, "main.go", goProgram(code, "main"))
			},
			Args: func(dir string) []string {
				return []string{"run", filepath.Join(dir, "main.go")}
			},
		},
	}
}

func writeFile(dir, name, content string) error {
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

const csharpProject = `<Project Sdk="Microsoft.NET.Sdk">
  <PropertyGroup>
    <OutputType>Exe</OutputType>
    <TargetFramework>net8.0</TargetFramework>
    <ImplicitUsings>enable</ImplicitUsings>
    <Nullable>disable</Nullable>
  </PropertyGroup>
</Project>
`

// csharpProgram wraps a statement list in a Program.Main scaffold unless the
// snippet already declares its own entry point.
func csharpProgram(code string) string {
	if strings.Contains(code, "class Program") || strings.Contains(code, "static void Main") {
		return code
	}
	return fmt.Sprintf(`using System;

class Program
{
    static void Main()
    {
        %s
    }
}
`, code)
}

var (
	goMainFunc  = regexp.MustCompile(`func\s+main\s*\(\s*\)`)
	goPkgSelect = regexp.MustCompile(`\b(fmt|strings|strconv|math|sort|time|errors|bytes|unicode|rand|json|os)\.`)
)

var goImportPaths = map[string]string{
	"fmt":     "fmt",
	"strings": "strings",
	"strconv": "strconv",
	"math":    "math",
	"sort":    "sort",
	"time":    "time",
	"errors":  "errors",
	"bytes":   "bytes",
	"unicode": "unicode",
	"rand":    "math/rand",
	"json":    "encoding/json",
	"os":      "os",
}

// goProgram turns a Go snippet into a complete main package whose entry
// function is named entry. Statement lists are wrapped; a snippet with its
// own main function has it renamed when entry differs. Standard packages
// referenced by selector are imported unless the snippet has imports.
func goProgram(code, entry string) string {
	if strings.Contains(code, "package main") {
		if entry != "main" {
			code = goMainFunc.ReplaceAllString(code, "func "+entry+"()")
		}
		return code
	}

	var b strings.Builder
	b.WriteString("package main\n\n")
	if !strings.Contains(code, "import") {
		if imports := goImports(code); len(imports) > 0 {
			b.WriteString("import (\n")
			for _, path := range imports {
				fmt.Fprintf(&b, "\t%q\n", path)
			}
			b.WriteString(")\n\n")
		}
	}

	if goMainFunc.MatchString(code) {
		b.WriteString(goMainFunc.ReplaceAllString(code, "func "+entry+"()"))
		b.WriteString("\n")
		return b.String()
	}

	fmt.Fprintf(&b, "func %s() {\n%s\n}\n", entry, code)
	return b.String()
}

func goImports(code string) []string {
	seen := make(map[string]struct{})
	for _, m := range goPkgSelect.FindAllStringSubmatch(code, -1) {
		seen[goImportPaths[m[1]]] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for path := range seen {
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}
