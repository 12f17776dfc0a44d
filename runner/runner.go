// Package runner loads declarative test cases and executes them against
// a simulated provider, evaluating the expectation map of each case
// through the assertion engine.
package runner

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/aumai/agentci/assertion"
	"github.com/aumai/agentci/logger"
	"github.com/aumai/agentci/model"
	"github.com/aumai/agentci/provider"
	"github.com/aumai/agentci/templates"
	"github.com/google/uuid"
	"github.com/life4/genesis/slices"
	"golang.org/x/sync/errgroup"
)

// ErrRunTimeout marks a run that exceeded its configured budget. The
// whole run fails; no partial suite is returned.
var ErrRunTimeout = errors.New("test run timed out")

// Runner executes test cases. A zero-value Runner is usable; Seed, when
// set, makes the provider failure draws deterministic.
type Runner struct {
	Seed *int64
}

func New() *Runner {
	return &Runner{}
}

// ============================================================================
// SINGLE CASE EXECUTION
// ============================================================================

// RunTest calls the provider once with the case's input messages and
// evaluates every expectation key present on the case. A simulated
// provider failure is contained to this case: it becomes a single
// failure entry, never an error.
func (r *Runner) RunTest(testCase model.TestCase, sim *provider.Simulated) model.TestResult {
	start := time.Now()

	messages := renderMessages(testCase)
	behavior := renderBehavior(testCase)

	actualOutput := ""
	tokensUsed := 0
	latencyMs := 0.0

	var assertionsPassed, assertionsFailed []string

	response, err := sim.Respond(messages, r.Seed)
	callElapsedMs := float64(time.Since(start).Microseconds()) / 1000.0

	if err != nil {
		actualOutput = "ERROR: " + err.Error()
		assertionsFailed = append(assertionsFailed, "provider_error: "+err.Error())
	} else {
		actualOutput = response.Content
		tokensUsed = response.TokensUsed
		latencyMs = response.LatencyMs

		assertionsPassed, assertionsFailed = evaluateBehavior(
			behavior, actualOutput, tokensUsed, latencyMs, callElapsedMs)
	}

	result := model.TestResult{
		TestCaseName:     testCase.Name,
		Passed:           len(assertionsFailed) == 0,
		ActualOutput:     actualOutput,
		AssertionsPassed: assertionsPassed,
		AssertionsFailed: assertionsFailed,
		DurationMs:       float64(time.Since(start).Microseconds()) / 1000.0,
		TokensUsed:       tokensUsed,
	}

	logger.Logger.Debug("Test executed",
		"test", testCase.Name,
		"passed", result.Passed,
		"duration_ms", result.DurationMs)

	return result
}

// renderMessages expands template variables in the case's input messages.
func renderMessages(testCase model.TestCase) []model.Message {
	if len(testCase.InputMessages) == 0 {
		return nil
	}
	rendered := make([]model.Message, len(testCase.InputMessages))
	for i, message := range testCase.InputMessages {
		rendered[i] = model.Message{
			Role:    message.Role,
			Content: templates.Render(message.Content, testCase.Variables),
		}
	}
	return rendered
}

// renderBehavior expands template variables in string-valued expectation
// entries (contains_text and calls_tools names).
func renderBehavior(testCase model.TestCase) map[string]interface{} {
	if len(testCase.ExpectedBehavior) == 0 {
		return nil
	}
	rendered := make(map[string]interface{}, len(testCase.ExpectedBehavior))
	for key, value := range testCase.ExpectedBehavior {
		switch key {
		case "contains_text", "calls_tools":
			rendered[key] = renderValue(value, testCase.Variables)
		default:
			rendered[key] = value
		}
	}
	return rendered
}

func renderValue(value interface{}, variables map[string]string) interface{} {
	switch v := value.(type) {
	case string:
		return templates.Render(v, variables)
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = renderValue(item, variables)
		}
		return out
	default:
		return value
	}
}

// evaluateBehavior checks expectation keys in a fixed order and collects
// named pass/fail entries. Keys absent from the map are skipped; an
// empty map always yields a pass.
func evaluateBehavior(
	behavior map[string]interface{},
	actualOutput string,
	tokensUsed int,
	latencyMs float64,
	callElapsedMs float64,
) (passed []string, failed []string) {
	record := func(ok bool, entry string) {
		if ok {
			passed = append(passed, entry)
		} else {
			failed = append(failed, entry)
		}
	}

	if value, present := behavior["contains_text"]; present {
		expected := fmt.Sprintf("%v", value)
		if ok, _ := assertion.ContainsText(actualOutput, expected); ok {
			record(true, fmt.Sprintf("contains_text: '%s'", expected))
		} else {
			record(false, fmt.Sprintf("contains_text: '%s' not found in output", expected))
		}
	}

	if value, present := behavior["calls_tools"]; present {
		for _, toolName := range toolNames(value) {
			if ok, _ := assertion.CallsTool(actualOutput, toolName); ok {
				record(true, fmt.Sprintf("calls_tool: '%s'", toolName))
			} else {
				record(false, fmt.Sprintf("calls_tool: '%s' not found in output", toolName))
			}
		}
	}

	if value, present := behavior["max_tokens"]; present {
		maxTokens, err := toInt(value)
		if err != nil {
			record(false, fmt.Sprintf("max_tokens: invalid limit %v", value))
		} else if ok, _ := assertion.MaxTokens(tokensUsed, maxTokens); ok {
			record(true, fmt.Sprintf("max_tokens: %d <= %d", tokensUsed, maxTokens))
		} else {
			record(false, fmt.Sprintf("max_tokens: %d exceeds limit %d", tokensUsed, maxTokens))
		}
	}

	if value, present := behavior["max_latency_ms"]; present {
		maxLatency, err := toFloat(value)
		measured := latencyMs
		if measured <= 0 {
			measured = callElapsedMs
		}
		if err != nil {
			record(false, fmt.Sprintf("max_latency_ms: invalid limit %v", value))
		} else if ok, _ := assertion.MaxLatency(measured, maxLatency); ok {
			record(true, fmt.Sprintf("max_latency_ms: %.1f <= %v", measured, maxLatency))
		} else {
			record(false, fmt.Sprintf("max_latency_ms: %.1f exceeds limit %v", measured, maxLatency))
		}
	}

	// no_pii and valid_json are only evaluated when exactly true; a false
	// value is not a negated check.
	if behavior["no_pii"] == true {
		if ok, detail := assertion.NoPII(actualOutput); ok {
			record(true, "no_pii: no PII detected")
		} else {
			record(false, fmt.Sprintf("no_pii: PII detected in output (%s)", detail))
		}
	}

	if behavior["valid_json"] == true {
		if ok, _ := assertion.ValidJSON(actualOutput); ok {
			record(true, "valid_json: output is valid JSON")
		} else {
			record(false, "valid_json: output is not valid JSON")
		}
	}

	if value, present := behavior["matches_schema"]; present {
		if schema, ok := value.(map[string]interface{}); ok {
			if ok, _ := assertion.MatchesSchema(actualOutput, schema); ok {
				record(true, "matches_schema: output conforms to schema")
			} else {
				record(false, "matches_schema: output does not conform to schema")
			}
		}
	}

	return passed, failed
}

// toolNames coerces the calls_tools value into a list of names. A scalar
// becomes a single-element list; an empty list yields no checks and the
// expectation passes vacuously.
func toolNames(value interface{}) []string {
	switch v := value.(type) {
	case string:
		return []string{v}
	case []interface{}:
		names := make([]string, 0, len(v))
		for _, item := range v {
			names = append(names, fmt.Sprintf("%v", item))
		}
		return names
	default:
		return []string{fmt.Sprintf("%v", v)}
	}
}

func toInt(value interface{}) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case string:
		return strconv.Atoi(v)
	default:
		return 0, fmt.Errorf("not an integer: %v", value)
	}
}

func toFloat(value interface{}) (float64, error) {
	switch v := value.(type) {
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case float64:
		return v, nil
	case string:
		return strconv.ParseFloat(v, 64)
	default:
		return 0, fmt.Errorf("not a number: %v", value)
	}
}

// ============================================================================
// SUITE EXECUTION
// ============================================================================

// RunSuite loads every case under the configured source and executes the
// suite. Load failures and timeouts are fatal; a single case's provider
// failure is contained to that case's result.
func (r *Runner) RunSuite(ctx context.Context, testDir string, config model.RunConfig) (*model.SuiteResult, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid run config: %w", err)
	}

	suiteStart := time.Now()

	testCases, err := LoadTests(testDir)
	if err != nil {
		return nil, err
	}

	providerConfig := provider.DefaultConfig()
	if config.ProviderConfig != nil {
		providerConfig = *config.ProviderConfig
	}

	logger.Logger.Info("Starting test execution",
		"source", testDir,
		"cases", len(testCases),
		"model", providerConfig.ModelName,
		"parallel", config.Parallel)

	var results []model.TestResult
	if config.Parallel {
		results, err = r.runParallel(ctx, testCases, providerConfig, config)
		if err != nil {
			return nil, err
		}
	} else {
		sim := provider.New(providerConfig)
		results = make([]model.TestResult, 0, len(testCases))
		for _, testCase := range testCases {
			results = append(results, r.RunTest(testCase, sim))
		}
	}

	passed := slices.CountBy(results, func(result model.TestResult) bool {
		return result.Passed
	})

	suite := &model.SuiteResult{
		SuiteName:  filepath.Base(testDir),
		RunID:      uuid.NewString(),
		Results:    results,
		Total:      len(results),
		Passed:     passed,
		Failed:     len(results) - passed,
		DurationMs: float64(time.Since(suiteStart).Microseconds()) / 1000.0,
	}

	logger.Logger.Info("Test execution completed",
		"suite", suite.SuiteName,
		"total", suite.Total,
		"passed", suite.Passed,
		"failed", suite.Failed,
		"duration_ms", suite.DurationMs)

	return suite, nil
}

// runParallel executes cases on a bounded worker pool. Every worker
// builds its own provider from the shared read-only configuration, so no
// round-robin cursor or call counter is shared across goroutines.
// Result order follows completion, not discovery.
func (r *Runner) runParallel(
	ctx context.Context,
	testCases []model.TestCase,
	providerConfig model.ProviderConfig,
	config model.RunConfig,
) ([]model.TestResult, error) {
	timeout := time.Duration(config.TimeoutSeconds * float64(time.Second))
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	workers := config.MaxWorkers
	if workers <= 0 {
		workers = model.DefaultMaxWorkers
	}

	group, groupCtx := errgroup.WithContext(runCtx)
	group.SetLimit(workers)

	var mu sync.Mutex
	results := make([]model.TestResult, 0, len(testCases))

	for _, testCase := range testCases {
		tc := testCase
		group.Go(func() error {
			select {
			case <-groupCtx.Done():
				return groupCtx.Err()
			default:
			}

			sim := provider.New(providerConfig)
			result := r.RunTest(tc, sim)

			mu.Lock()
			results = append(results, result)
			mu.Unlock()
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %.1fs", ErrRunTimeout, config.TimeoutSeconds)
		}
		return nil, err
	}
	if err := runCtx.Err(); err != nil {
		return nil, fmt.Errorf("%w after %.1fs", ErrRunTimeout, config.TimeoutSeconds)
	}

	return results, nil
}
