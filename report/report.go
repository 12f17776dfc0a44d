// Package report renders a suite result as console text, JSON, or JUnit
// XML. Reporters are pure consumers of model.SuiteResult.
package report

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/aumai/agentci/model"
	"github.com/bytedance/sonic"
)

const (
	FormatText  = "text"
	FormatJSON  = "json"
	FormatJUnit = "junit"
)

// Reporter serializes a suite result to w and returns the rendered string.
type Reporter interface {
	Report(suite *model.SuiteResult, w io.Writer) (string, error)
}

// ValidateFormat rejects unknown report format names.
func ValidateFormat(format string) error {
	switch format {
	case FormatText, FormatJSON, FormatJUnit:
		return nil
	default:
		return fmt.Errorf("unknown report format %q, supported formats are: text, json, junit", format)
	}
}

// ForFormat returns the reporter for a validated format name.
func ForFormat(format string) (Reporter, error) {
	switch format {
	case FormatText:
		return NewConsoleReporter(), nil
	case FormatJSON:
		return &JSONReporter{Indent: "  "}, nil
	case FormatJUnit:
		return &JUnitReporter{}, nil
	default:
		return nil, fmt.Errorf("unknown report format %q", format)
	}
}

// ============================================================================
// CONSOLE REPORTER
// ============================================================================

const (
	ansiReset = "\033[0m"
	ansiBold  = "\033[1m"
	ansiGreen = "\033[32m"
	ansiRed   = "\033[31m"
	ansiCyan  = "\033[36m"
	ansiDim   = "\033[2m"
)

// ConsoleReporter renders a human-readable report with ANSI colors.
type ConsoleReporter struct {
	Color bool
}

func NewConsoleReporter() *ConsoleReporter {
	return &ConsoleReporter{Color: true}
}

func (r *ConsoleReporter) paint(text, code string) string {
	if !r.Color {
		return text
	}
	return code + text + ansiReset
}

func (r *ConsoleReporter) Report(suite *model.SuiteResult, w io.Writer) (string, error) {
	var lines []string

	lines = append(lines, "\n"+r.paint("Test Suite: "+suite.SuiteName, ansiBold))
	lines = append(lines, r.paint(strings.Repeat("=", 60), ansiDim))

	for _, result := range suite.Results {
		lines = append(lines, r.formatResult(result))
	}

	lines = append(lines, r.paint(strings.Repeat("-", 60), ansiDim))
	lines = append(lines, r.formatSummary(suite))

	output := strings.Join(lines, "\n") + "\n"
	if _, err := io.WriteString(w, output); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return output, nil
}

func (r *ConsoleReporter) formatResult(result model.TestResult) string {
	status := r.paint("PASS", ansiGreen)
	if !result.Passed {
		status = r.paint("FAIL", ansiRed)
	}
	line := fmt.Sprintf("  [%s] %s (%.1f ms)", status, result.TestCaseName, result.DurationMs)

	if !result.Passed {
		for _, failure := range result.AssertionsFailed {
			line += "\n        " + r.paint("  x "+failure, ansiRed)
		}
	} else {
		for _, passed := range result.AssertionsPassed {
			line += "\n        " + r.paint("  v "+passed, ansiDim)
		}
	}
	return line
}

func (r *ConsoleReporter) formatSummary(suite *model.SuiteResult) string {
	failedColor := ansiGreen
	if suite.Failed > 0 {
		failedColor = ansiRed
	}
	return fmt.Sprintf("Results: %s passed, %s failed, %s total  (%s)",
		r.paint(fmt.Sprintf("%d", suite.Passed), ansiGreen),
		r.paint(fmt.Sprintf("%d", suite.Failed), failedColor),
		r.paint(fmt.Sprintf("%d", suite.Total), ansiCyan),
		r.paint(fmt.Sprintf("%.1f ms", suite.DurationMs), ansiDim))
}

// ============================================================================
// JSON REPORTER
// ============================================================================

// JSONReporter emits a field-for-field serialization of the suite
// result. The output round-trips losslessly back into model.SuiteResult.
type JSONReporter struct {
	Indent string
}

func (r *JSONReporter) Report(suite *model.SuiteResult, w io.Writer) (string, error) {
	indent := r.Indent
	if indent == "" {
		indent = "  "
	}

	payload, err := sonic.MarshalIndent(suite, "", indent)
	if err != nil {
		return "", fmt.Errorf("failed to marshal suite result: %w", err)
	}

	output := string(payload) + "\n"
	if _, err := io.WriteString(w, output); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return output, nil
}

// ============================================================================
// JUNIT XML REPORTER
// ============================================================================

type junitTestSuites struct {
	XMLName xml.Name         `xml:"testsuites"`
	Suites  []junitTestSuite `xml:"testsuite"`
}

type junitTestSuite struct {
	Name     string          `xml:"name,attr"`
	Tests    int             `xml:"tests,attr"`
	Failures int             `xml:"failures,attr"`
	Errors   int             `xml:"errors,attr"`
	Time     string          `xml:"time,attr"`
	Cases    []junitTestCase `xml:"testcase"`
}

type junitTestCase struct {
	Name      string        `xml:"name,attr"`
	Time      string        `xml:"time,attr"`
	Failure   *junitFailure `xml:"failure,omitempty"`
	SystemOut *junitText    `xml:"system-out,omitempty"`
}

type junitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:",chardata"`
}

type junitText struct {
	Body string `xml:",chardata"`
}

// JUnitReporter emits JUnit-compatible XML for CI result ingestion.
type JUnitReporter struct{}

func (r *JUnitReporter) Report(suite *model.SuiteResult, w io.Writer) (string, error) {
	doc := junitTestSuites{
		Suites: []junitTestSuite{
			{
				Name:     suite.SuiteName,
				Tests:    suite.Total,
				Failures: suite.Failed,
				Errors:   0,
				Time:     fmt.Sprintf("%.3f", suite.DurationMs/1000.0),
			},
		},
	}

	for _, result := range suite.Results {
		testCase := junitTestCase{
			Name: result.TestCaseName,
			Time: fmt.Sprintf("%.3f", result.DurationMs/1000.0),
		}

		if !result.Passed {
			var body strings.Builder
			body.WriteString("Actual output:\n")
			body.WriteString(result.ActualOutput)
			body.WriteString("\n\nFailed assertions:\n")
			for _, failure := range result.AssertionsFailed {
				body.WriteString("  - " + failure + "\n")
			}
			testCase.Failure = &junitFailure{
				Message: strings.Join(result.AssertionsFailed, "; "),
				Type:    "AssertionError",
				Body:    body.String(),
			}
		} else {
			testCase.SystemOut = &junitText{
				Body: strings.Join(result.AssertionsPassed, "\n"),
			}
		}

		doc.Suites[0].Cases = append(doc.Suites[0].Cases, testCase)
	}

	encoded, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JUnit XML: %w", err)
	}

	output := xml.Header + string(encoded) + "\n"
	if _, err := io.WriteString(w, output); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return output, nil
}
