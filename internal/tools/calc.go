package tools

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
)

const calcCharset = "0123456789+-*/.() "

var (
	calcRun    = regexp.MustCompile(`[0-9+\-*/.() ]+`)
	calcNumber = regexp.MustCompile(`[0-9.]+`)
)

// calcBadOperators are allowed-character sequences that expr reads as
// something other than arithmetic: comment openers and exponentiation.
var calcBadOperators = []string{"//", "/*", "**"}

// ExtractExpression returns the longest run of arithmetic characters in
// text, trimmed. Ties go to the earliest run.
func ExtractExpression(text string) string {
	best := ""
	for _, run := range calcRun.FindAllString(text, -1) {
		run = strings.TrimSpace(run)
		if len(run) > len(best) {
			best = run
		}
	}
	return best
}

// Calculate evaluates an arithmetic expression. Input containing anything
// outside digits, the four operators, dots, parentheses and spaces is
// rejected before evaluation.
func Calculate(expression string) string {
	for _, r := range expression {
		if !strings.ContainsRune(calcCharset, r) {
			return "Invalid expression"
		}
	}
	for _, op := range calcBadOperators {
		if strings.Contains(expression, op) {
			return "Invalid expression"
		}
	}

	out, err := expr.Eval(expression, nil)
	if err != nil {
		return "Calculation error"
	}

	switch v := out.(type) {
	case int:
		if !intResultExact(expression, float64(v)) {
			return "Calculation error"
		}
		return strconv.Itoa(v)
	case int64:
		if !intResultExact(expression, float64(v)) {
			return "Calculation error"
		}
		return strconv.FormatInt(v, 10)
	case float64:
		return formatFloat(v)
	default:
		return "Calculation error"
	}
}

// formatFloat keeps a trailing ".0" on integral values so that true division
// reads as a float result.
func formatFloat(f float64) string {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return "Calculation error"
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e16 {
		return strconv.FormatFloat(f, 'f', 1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// intResultExact re-evaluates expression with every literal as a float and
// reports whether got agrees with it. Integer arithmetic in expr wraps on
// overflow, which shows up as a large disagreement.
func intResultExact(expression string, got float64) bool {
	floatExpr := calcNumber.ReplaceAllStringFunc(expression, func(n string) string {
		if strings.Contains(n, ".") {
			return n
		}
		return n + ".0"
	})
	out, err := expr.Eval(floatExpr, nil)
	if err != nil {
		return false
	}
	want, ok := out.(float64)
	if !ok || math.IsInf(want, 0) || math.IsNaN(want) {
		return false
	}
	return math.Abs(got-want) <= math.Abs(want)*1e-9
}
