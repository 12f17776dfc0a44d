package model

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ============================================================================
// SIMULATED PROVIDER CONFIGURATION
// ============================================================================

// Response is a single simulated LLM output. Immutable once constructed.
type Response struct {
	Content      string  `yaml:"content" json:"content"`
	Model        string  `yaml:"model" json:"model"`
	TokensUsed   int     `yaml:"tokens_used" json:"tokensUsed"`
	LatencyMs    float64 `yaml:"latency_ms" json:"latencyMs"`
	FinishReason string  `yaml:"finish_reason" json:"finishReason"`
}

// ProviderConfig configures a simulated provider. It is read-only and may
// be shared across provider instances (one per worker in parallel runs).
type ProviderConfig struct {
	ModelName        string     `yaml:"model_name" json:"modelName"`
	Responses        []Response `yaml:"responses" json:"responses"`
	DefaultLatencyMs float64    `yaml:"default_latency_ms" json:"defaultLatencyMs"`
	FailureRate      float64    `yaml:"failure_rate" json:"failureRate"`
}

func (c *ProviderConfig) Validate() error {
	if c.ModelName == "" {
		return fmt.Errorf("model_name is required")
	}
	if c.DefaultLatencyMs < 0 {
		return fmt.Errorf("default_latency_ms must be >= 0, got %v", c.DefaultLatencyMs)
	}
	if c.FailureRate < 0 || c.FailureRate > 1 {
		return fmt.Errorf("failure_rate must be in [0,1], got %v", c.FailureRate)
	}
	for i, r := range c.Responses {
		if r.TokensUsed < 0 {
			return fmt.Errorf("responses[%d]: tokens_used must be >= 0, got %d", i, r.TokensUsed)
		}
		if r.LatencyMs < 0 {
			return fmt.Errorf("responses[%d]: latency_ms must be >= 0, got %v", i, r.LatencyMs)
		}
	}
	return nil
}

// ============================================================================
// TEST CASE
// ============================================================================

// Message is one role/content pair from a test's input_messages. The
// content is opaque to the harness; it exists to mirror a realistic call.
type Message struct {
	Role    string `yaml:"role" json:"role"`
	Content string `yaml:"content" json:"content"`
}

// AllowedExpectationKeys is the closed set of expected_behavior keys.
var AllowedExpectationKeys = map[string]bool{
	"contains_text":  true,
	"calls_tools":    true,
	"max_tokens":     true,
	"max_latency_ms": true,
	"no_pii":         true,
	"valid_json":     true,
	"matches_schema": true,
}

// TestCase is a single declarative test loaded from a YAML file.
type TestCase struct {
	Name             string                 `yaml:"name" json:"name"`
	Description      string                 `yaml:"description,omitempty" json:"description,omitempty"`
	InputMessages    []Message              `yaml:"input_messages,omitempty" json:"inputMessages,omitempty"`
	ExpectedBehavior map[string]interface{} `yaml:"expected_behavior,omitempty" json:"expectedBehavior,omitempty"`
	Tags             []string               `yaml:"tags,omitempty" json:"tags,omitempty"`
	Variables        map[string]string      `yaml:"variables,omitempty" json:"variables,omitempty"`
}

// Validate enforces the test case schema: name is required and every
// expected_behavior key must belong to the closed set.
func (tc *TestCase) Validate() error {
	if tc.Name == "" {
		return fmt.Errorf("test case name is required")
	}

	var unknown []string
	for key := range tc.ExpectedBehavior {
		if !AllowedExpectationKeys[key] {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		allowed := make([]string, 0, len(AllowedExpectationKeys))
		for key := range AllowedExpectationKeys {
			allowed = append(allowed, key)
		}
		sort.Strings(allowed)
		return fmt.Errorf("unknown expected_behavior keys: [%s], allowed: [%s]",
			strings.Join(unknown, ", "), strings.Join(allowed, ", "))
	}
	return nil
}

// ============================================================================
// TEST RESULT
// ============================================================================

// TestResult captures one case's outcome. Overall pass holds exactly when
// AssertionsFailed is empty.
type TestResult struct {
	TestCaseName     string   `yaml:"test_case_name" json:"testCaseName"`
	Passed           bool     `yaml:"passed" json:"passed"`
	ActualOutput     string   `yaml:"actual_output" json:"actualOutput"`
	AssertionsPassed []string `yaml:"assertions_passed" json:"assertionsPassed"`
	AssertionsFailed []string `yaml:"assertions_failed" json:"assertionsFailed"`
	DurationMs       float64  `yaml:"duration_ms" json:"durationMs"`
	TokensUsed       int      `yaml:"tokens_used" json:"tokensUsed"`
}

// SuiteResult aggregates one full run. Invariant:
// Passed + Failed == Total == len(Results).
type SuiteResult struct {
	SuiteName  string       `yaml:"suite_name" json:"suiteName"`
	RunID      string       `yaml:"run_id,omitempty" json:"runId,omitempty"`
	Results    []TestResult `yaml:"results" json:"results"`
	Total      int          `yaml:"total" json:"total"`
	Passed     int          `yaml:"passed" json:"passed"`
	Failed     int          `yaml:"failed" json:"failed"`
	DurationMs float64      `yaml:"duration_ms" json:"durationMs"`
}

// ============================================================================
// RUN CONFIGURATION
// ============================================================================

const (
	DefaultTimeoutSeconds = 30.0
	DefaultMaxWorkers     = 4
)

// RunConfig is the top-level configuration for a suite run.
type RunConfig struct {
	TestDir        string          `yaml:"test_dir" json:"testDir"`
	ProviderConfig *ProviderConfig `yaml:"provider_config,omitempty" json:"providerConfig,omitempty"`
	TimeoutSeconds float64         `yaml:"timeout_seconds" json:"timeoutSeconds"`
	Parallel       bool            `yaml:"parallel" json:"parallel"`
	MaxWorkers     int             `yaml:"max_workers,omitempty" json:"maxWorkers,omitempty"`
}

func (c *RunConfig) Validate() error {
	if c.TimeoutSeconds <= 0 {
		return fmt.Errorf("timeout_seconds must be > 0, got %v", c.TimeoutSeconds)
	}
	if c.MaxWorkers < 0 {
		return fmt.Errorf("max_workers must be >= 0, got %d", c.MaxWorkers)
	}
	if c.ProviderConfig != nil {
		if err := c.ProviderConfig.Validate(); err != nil {
			return fmt.Errorf("provider_config: %w", err)
		}
	}
	return nil
}

// ============================================================================
// YAML PARSER
// ============================================================================

func ParseProviderConfig(filename string) (*ProviderConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return ParseProviderConfigFromString(string(data))
}

func ParseProviderConfigFromString(definition string) (*ProviderConfig, error) {
	var config ProviderConfig
	if err := yaml.Unmarshal([]byte(definition), &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid provider config: %w", err)
	}
	for i := range config.Responses {
		if config.Responses[i].FinishReason == "" {
			config.Responses[i].FinishReason = "stop"
		}
	}
	return &config, nil
}
