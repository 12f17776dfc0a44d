package runner

import (
	"context"
	"testing"

	"github.com/aumai/agentci/model"
	"github.com/aumai/agentci/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textProvider(content string, tokens int, latencyMs float64) *provider.Simulated {
	return provider.New(model.ProviderConfig{
		ModelName:        "mock-model",
		DefaultLatencyMs: 10.0,
		Responses: []model.Response{
			{Content: content, Model: "mock-model", TokensUsed: tokens, LatencyMs: latencyMs, FinishReason: "stop"},
		},
	})
}

func TestRunTest(t *testing.T) {
	runner := New()

	t.Run("Contains text passes", func(t *testing.T) {
		testCase := model.TestCase{
			Name:             "greeting",
			ExpectedBehavior: map[string]interface{}{"contains_text": "hello"},
		}
		result := runner.RunTest(testCase, textProvider("Hello, world!", 5, 12.0))

		assert.True(t, result.Passed)
		assert.Equal(t, "greeting", result.TestCaseName)
		assert.Equal(t, "Hello, world!", result.ActualOutput)
		assert.Equal(t, 5, result.TokensUsed)
		require.Len(t, result.AssertionsPassed, 1)
		assert.Contains(t, result.AssertionsPassed[0], "contains_text")
		assert.Empty(t, result.AssertionsFailed)
	})

	t.Run("PII in output fails no_pii", func(t *testing.T) {
		testCase := model.TestCase{
			Name:             "pii_leak",
			ExpectedBehavior: map[string]interface{}{"no_pii": true},
		}
		result := runner.RunTest(testCase, textProvider("Reach me at admin@example.com", 8, 10.0))

		assert.False(t, result.Passed)
		require.Len(t, result.AssertionsFailed, 1)
		assert.Contains(t, result.AssertionsFailed[0], "no_pii")
		assert.Contains(t, result.AssertionsFailed[0], "email address")
	})

	t.Run("Empty expectation map passes", func(t *testing.T) {
		testCase := model.TestCase{Name: "no_expectations"}
		result := runner.RunTest(testCase, textProvider("anything", 1, 1.0))

		assert.True(t, result.Passed)
		assert.Empty(t, result.AssertionsPassed)
		assert.Empty(t, result.AssertionsFailed)
	})

	t.Run("Empty calls_tools list passes vacuously", func(t *testing.T) {
		testCase := model.TestCase{
			Name:             "no_tools_required",
			ExpectedBehavior: map[string]interface{}{"calls_tools": []interface{}{}},
		}
		result := runner.RunTest(testCase, textProvider("no tools here", 3, 5.0))

		assert.True(t, result.Passed)
		assert.Empty(t, result.AssertionsFailed)
	})

	t.Run("Multiple tools must all be present", func(t *testing.T) {
		testCase := model.TestCase{
			Name: "two_tools",
			ExpectedBehavior: map[string]interface{}{
				"calls_tools": []interface{}{"search_web", "send_email"},
			},
		}
		output := `{"tool_calls": [{"function": {"name": "search_web"}}]}`
		result := runner.RunTest(testCase, textProvider(output, 20, 10.0))

		assert.False(t, result.Passed)
		require.Len(t, result.AssertionsPassed, 1)
		require.Len(t, result.AssertionsFailed, 1)
		assert.Contains(t, result.AssertionsFailed[0], "send_email")
	})

	t.Run("Token budget boundary", func(t *testing.T) {
		testCase := model.TestCase{
			Name:             "budget",
			ExpectedBehavior: map[string]interface{}{"max_tokens": 10},
		}
		result := runner.RunTest(testCase, textProvider("ok", 10, 5.0))
		assert.True(t, result.Passed)

		result = runner.RunTest(testCase, textProvider("ok", 11, 5.0))
		assert.False(t, result.Passed)
		assert.Contains(t, result.AssertionsFailed[0], "exceeds limit")
	})

	t.Run("Latency uses reported value when present", func(t *testing.T) {
		testCase := model.TestCase{
			Name:             "latency",
			ExpectedBehavior: map[string]interface{}{"max_latency_ms": 100.0},
		}
		result := runner.RunTest(testCase, textProvider("ok", 1, 250.0))
		assert.False(t, result.Passed)

		result = runner.RunTest(testCase, textProvider("ok", 1, 50.0))
		assert.True(t, result.Passed)
	})

	t.Run("Latency falls back to wall clock when unreported", func(t *testing.T) {
		testCase := model.TestCase{
			Name:             "latency_fallback",
			ExpectedBehavior: map[string]interface{}{"max_latency_ms": 5000.0},
		}
		// A local mock call completes far under five seconds.
		result := runner.RunTest(testCase, textProvider("ok", 1, 0.0))
		assert.True(t, result.Passed)
	})

	t.Run("Schema with required key", func(t *testing.T) {
		schema := map[string]interface{}{
			"type":     "object",
			"required": []interface{}{"status"},
		}
		testCase := model.TestCase{
			Name: "schema",
			ExpectedBehavior: map[string]interface{}{
				"valid_json":     true,
				"matches_schema": schema,
			},
		}
		result := runner.RunTest(testCase, textProvider(`{"status": "ok"}`, 6, 10.0))
		assert.True(t, result.Passed)
		assert.Len(t, result.AssertionsPassed, 2)

		result = runner.RunTest(testCase, textProvider(`{"other": 1}`, 6, 10.0))
		assert.False(t, result.Passed)
		require.Len(t, result.AssertionsFailed, 1)
		assert.Contains(t, result.AssertionsFailed[0], "matches_schema")
	})

	t.Run("False-valued no_pii and valid_json are not evaluated", func(t *testing.T) {
		testCase := model.TestCase{
			Name: "disabled_checks",
			ExpectedBehavior: map[string]interface{}{
				"no_pii":     false,
				"valid_json": false,
			},
		}
		result := runner.RunTest(testCase, textProvider("admin@example.com not json", 1, 1.0))
		assert.True(t, result.Passed)
		assert.Empty(t, result.AssertionsPassed)
	})

	t.Run("Provider failure is contained to the case", func(t *testing.T) {
		sim := provider.New(model.ProviderConfig{
			ModelName:   "flaky",
			FailureRate: 1.0,
			Responses:   []model.Response{{Content: "never served", Model: "flaky"}},
		})
		testCase := model.TestCase{
			Name:             "flaky_call",
			ExpectedBehavior: map[string]interface{}{"contains_text": "never"},
		}
		result := runner.RunTest(testCase, sim)

		assert.False(t, result.Passed)
		assert.Contains(t, result.ActualOutput, "ERROR: ")
		require.Len(t, result.AssertionsFailed, 1)
		assert.Contains(t, result.AssertionsFailed[0], "provider_error")
		assert.Equal(t, 0, result.TokensUsed)
	})

	t.Run("Variables render into messages and expectations", func(t *testing.T) {
		testCase := model.TestCase{
			Name: "templated",
			InputMessages: []model.Message{
				{Role: "user", Content: "Please greet {{name}}"},
			},
			ExpectedBehavior: map[string]interface{}{"contains_text": "{{name}}"},
			Variables:        map[string]string{"name": "Ada"},
		}
		result := runner.RunTest(testCase, textProvider("Hello Ada, welcome!", 4, 8.0))

		assert.True(t, result.Passed)
		assert.Contains(t, result.AssertionsPassed[0], "Ada")
	})
}

func TestRunSuite(t *testing.T) {
	providerConfig := model.ProviderConfig{
		ModelName:        "mock-model",
		DefaultLatencyMs: 10.0,
		Responses: []model.Response{
			{Content: "Hello there!", Model: "mock-model", TokensUsed: 5, LatencyMs: 10.0, FinishReason: "stop"},
			{Content: `{"status": "ok"}`, Model: "mock-model", TokensUsed: 8, LatencyMs: 12.0, FinishReason: "stop"},
		},
	}

	suiteYAML := `
tests:
  - name: wants_greeting
    expected_behavior:
      contains_text: hello
  - name: wants_json
    expected_behavior:
      valid_json: true
  - name: wants_goodbye
    expected_behavior:
      contains_text: goodbye
`

	t.Run("Sequential run honors counts and round-robin", func(t *testing.T) {
		dir := t.TempDir()
		writeTestFile(t, dir, "suite.yaml", suiteYAML)

		runner := New()
		config := model.RunConfig{
			TestDir:        dir,
			ProviderConfig: &providerConfig,
			TimeoutSeconds: 30,
		}
		suite, err := runner.RunSuite(context.Background(), dir, config)
		require.NoError(t, err)

		assert.Equal(t, 3, suite.Total)
		assert.Equal(t, 2, suite.Passed)
		assert.Equal(t, 1, suite.Failed)
		assert.Equal(t, suite.Total, suite.Passed+suite.Failed)
		assert.Len(t, suite.Results, suite.Total)
		assert.NotEmpty(t, suite.RunID)

		// Third case wraps back to the first configured response.
		assert.Equal(t, "Hello there!", suite.Results[2].ActualOutput)
		assert.False(t, suite.Results[2].Passed)
	})

	t.Run("Parallel run yields the same counts", func(t *testing.T) {
		dir := t.TempDir()
		writeTestFile(t, dir, "suite.yaml", suiteYAML)

		runner := New()
		config := model.RunConfig{
			TestDir:        dir,
			ProviderConfig: &providerConfig,
			TimeoutSeconds: 30,
			Parallel:       true,
			MaxWorkers:     2,
		}
		suite, err := runner.RunSuite(context.Background(), dir, config)
		require.NoError(t, err)

		assert.Equal(t, 3, suite.Total)
		assert.Equal(t, suite.Total, suite.Passed+suite.Failed)

		// Each worker gets a fresh provider, so every case sees the first
		// configured response.
		for _, result := range suite.Results {
			assert.Equal(t, "Hello there!", result.ActualOutput)
		}
	})

	t.Run("Parallel timeout fails the whole run", func(t *testing.T) {
		dir := t.TempDir()
		writeTestFile(t, dir, "suite.yaml", suiteYAML)

		runner := New()
		config := model.RunConfig{
			TestDir:        dir,
			ProviderConfig: &providerConfig,
			TimeoutSeconds: 0.000001,
			Parallel:       true,
		}
		_, err := runner.RunSuite(context.Background(), dir, config)
		assert.ErrorIs(t, err, ErrRunTimeout)
	})

	t.Run("Missing source directory is fatal", func(t *testing.T) {
		runner := New()
		config := model.RunConfig{TimeoutSeconds: 30}
		_, err := runner.RunSuite(context.Background(), "/no/such/dir", config)
		assert.ErrorIs(t, err, ErrSourceNotFound)
	})

	t.Run("Invalid run config is rejected", func(t *testing.T) {
		runner := New()
		config := model.RunConfig{TimeoutSeconds: 0}
		_, err := runner.RunSuite(context.Background(), t.TempDir(), config)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid run config")
	})

	t.Run("Default provider is used when none is configured", func(t *testing.T) {
		dir := t.TempDir()
		writeTestFile(t, dir, "case.yaml", `
name: default_provider
expected_behavior:
  contains_text: mock response
`)
		runner := New()
		config := model.RunConfig{TestDir: dir, TimeoutSeconds: 30}
		suite, err := runner.RunSuite(context.Background(), dir, config)
		require.NoError(t, err)
		assert.Equal(t, 1, suite.Passed)
	})

	t.Run("Empty directory yields an empty suite", func(t *testing.T) {
		dir := t.TempDir()
		runner := New()
		config := model.RunConfig{TestDir: dir, TimeoutSeconds: 30}
		suite, err := runner.RunSuite(context.Background(), dir, config)
		require.NoError(t, err)
		assert.Equal(t, 0, suite.Total)
		assert.Equal(t, 0, suite.Failed)
	})
}
