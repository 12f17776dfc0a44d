// Package assertion implements the behavioral predicates evaluated
// against raw agent output. Every predicate is total: it never returns
// an error, only a pass/fail verdict plus a human-readable detail
// string for the runner to record.
package assertion

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/yalp/jsonpath"
)

// ============================================================================
// PII PATTERNS
// ============================================================================

// Compiled once at startup; immutable afterwards, safe for concurrent use.
var (
	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`)
	phonePattern = regexp.MustCompile(`(?:\+?1[\s\-.])?\(?\d{3}\)?[\s\-.]?\d{3}[\s\-.]?\d{4}`)
	// RE2 has no lookahead, so the SSN exclusion ranges (000/666/9xx area,
	// 00 group, 0000 serial) are checked on the captured segments instead.
	ssnPattern        = regexp.MustCompile(`\b(\d{3})[-\s]?(\d{2})[-\s]?(\d{4})\b`)
	creditCardPattern = regexp.MustCompile(`\b(?:4\d{3}|5[1-5]\d{2}|6(?:011|5\d{2})|3[47]\d{2})[\s\-]?\d{4}[\s\-]?\d{4}[\s\-]?\d{4}\b`)
)

// ============================================================================
// PREDICATES
// ============================================================================

// ContainsText reports whether expected appears in output, ignoring case.
// An empty expected string always passes.
func ContainsText(output, expected string) (bool, string) {
	if expected == "" {
		return true, "empty expected text always matches"
	}
	if strings.Contains(strings.ToLower(output), strings.ToLower(expected)) {
		return true, fmt.Sprintf("'%s' found in output", expected)
	}
	return false, fmt.Sprintf("'%s' not found in output", expected)
}

// CallsTool reports whether output contains evidence of a call to
// toolName. Structured JSON shapes are probed first (a top-level "tool"
// key, a "function.name" key, or an OpenAI-style "tool_calls" array);
// when the output is not JSON or none of those match, case-insensitive
// textual heuristics are applied. Any single match is sufficient.
func CallsTool(output, toolName string) (bool, string) {
	if detected, how := toolCallInJSON(output, toolName); detected {
		return true, fmt.Sprintf("tool call '%s' detected (%s)", toolName, how)
	}

	quoted := regexp.QuoteMeta(toolName)
	patterns := []string{
		`["']tool["']\s*:\s*["']?` + quoted + `["']?`,
		`["']name["']\s*:\s*["']?` + quoted + `["']?`,
		quoted + `\s*\(`,
		`<` + quoted + `>`,
		`\b` + quoted + `\b`,
	}
	for _, pattern := range patterns {
		re, err := regexp.Compile(`(?i)` + pattern)
		if err != nil {
			continue
		}
		if re.MatchString(output) {
			return true, fmt.Sprintf("tool call '%s' detected (textual match)", toolName)
		}
	}
	return false, fmt.Sprintf("tool call '%s' not found in output", toolName)
}

func toolCallInJSON(output, toolName string) (bool, string) {
	var parsed interface{}
	if err := sonic.Unmarshal([]byte(strings.TrimSpace(output)), &parsed); err != nil {
		return false, ""
	}
	obj, ok := parsed.(map[string]interface{})
	if !ok {
		return false, ""
	}

	if tool, ok := obj["tool"].(string); ok && tool == toolName {
		return true, "tool field"
	}
	if fn, ok := obj["function"].(map[string]interface{}); ok {
		if name, ok := fn["name"].(string); ok && name == toolName {
			return true, "function.name field"
		}
	}
	if names, err := jsonpath.Read(parsed, "$.tool_calls[*].function.name"); err == nil {
		if list, ok := names.([]interface{}); ok {
			for _, n := range list {
				if name, ok := n.(string); ok && name == toolName {
					return true, "tool_calls array"
				}
			}
		}
	}
	return false, ""
}

// NoPII reports whether output is free of detectable PII: email
// addresses, phone numbers, US SSNs and payment-card numbers.
func NoPII(output string) (bool, string) {
	if emailPattern.MatchString(output) {
		return false, "email address detected"
	}
	if phonePattern.MatchString(output) {
		return false, "phone number detected"
	}
	if containsSSN(output) {
		return false, "SSN detected"
	}
	if creditCardPattern.MatchString(output) {
		return false, "credit card number detected"
	}
	return true, "no PII detected"
}

func containsSSN(output string) bool {
	for _, m := range ssnPattern.FindAllStringSubmatch(output, -1) {
		area, group, serial := m[1], m[2], m[3]
		if area == "000" || area == "666" || area[0] == '9' {
			continue
		}
		if group == "00" || serial == "0000" {
			continue
		}
		return true
	}
	return false
}

// MaxTokens passes iff tokens <= maxTokens. Equality at the boundary passes.
func MaxTokens(tokens, maxTokens int) (bool, string) {
	if tokens <= maxTokens {
		return true, fmt.Sprintf("%d <= %d", tokens, maxTokens)
	}
	return false, fmt.Sprintf("%d exceeds limit %d", tokens, maxTokens)
}

// MaxLatency passes iff latencyMs <= maxMs.
func MaxLatency(latencyMs, maxMs float64) (bool, string) {
	if latencyMs <= maxMs {
		return true, fmt.Sprintf("%.1f <= %.1f", latencyMs, maxMs)
	}
	return false, fmt.Sprintf("%.1f exceeds limit %.1f", latencyMs, maxMs)
}

// ValidJSON reports whether the whitespace-trimmed output parses as
// syntactically valid JSON of any type.
func ValidJSON(output string) (bool, string) {
	var v interface{}
	if err := sonic.Unmarshal([]byte(strings.TrimSpace(output)), &v); err != nil {
		return false, "output is not valid JSON"
	}
	return true, "output is valid JSON"
}

// MatchesSchema reports whether output, parsed as JSON, conforms to the
// schema descriptor. Validation goes through the package-default
// SchemaValidator (see schema.go).
func MatchesSchema(output string, schema map[string]interface{}) (bool, string) {
	return MatchesSchemaWith(DefaultSchemaValidator, output, schema)
}

// MatchesSchemaWith validates with an explicit strategy so the
// structural fallback can be exercised directly.
func MatchesSchemaWith(v SchemaValidator, output string, schema map[string]interface{}) (bool, string) {
	var data interface{}
	if err := sonic.Unmarshal([]byte(strings.TrimSpace(output)), &data); err != nil {
		return false, "output is not valid JSON"
	}
	if v.Validate(data, schema) {
		return true, "output conforms to schema"
	}
	return false, "output does not conform to schema"
}
