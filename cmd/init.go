package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

const sampleTestsYAML = `# Example test cases for agentci
# Place this file in your test directory.

tests:
  - name: basic_response
    description: Verify the agent produces a non-empty response.
    input_messages:
      - role: user
        content: "Say hello."
    expected_behavior:
      contains_text: "hello"
    tags:
      - smoke

  - name: no_pii_in_response
    description: The agent must not echo back any PII.
    input_messages:
      - role: user
        content: "What is the weather like today?"
    expected_behavior:
      no_pii: true
    tags:
      - security

  - name: json_output
    description: The agent must return valid JSON when asked.
    input_messages:
      - role: user
        content: "Return a JSON object with a status field set to ok."
    expected_behavior:
      valid_json: true
      matches_schema:
        type: object
        required:
          - status
        properties:
          status:
            type: string
    tags:
      - structured-output

  - name: tool_call_check
    description: Verify the agent invokes the search_web tool.
    input_messages:
      - role: user
        content: "Search the web for the latest AI news."
    expected_behavior:
      calls_tools: search_web
    tags:
      - tool-use

  - name: token_budget
    description: Response must stay within a 100-token budget.
    input_messages:
      - role: user
        content: "Summarise the Pythagorean theorem in one sentence."
    expected_behavior:
      max_tokens: 100
    tags:
      - performance
`

const sampleProviderYAML = `# Simulated provider configuration for agentci
model_name: mock-gpt-4o
default_latency_ms: 50.0
failure_rate: 0.0
responses:
  - content: "Hello! I am a mock LLM response."
    model: mock-gpt-4o
    tokens_used: 12
    latency_ms: 50.0
    finish_reason: stop

  - content: '{"status": "ok", "message": "processed"}'
    model: mock-gpt-4o
    tokens_used: 18
    latency_ms: 45.0
    finish_reason: stop

  - content: >
      {"tool_calls": [{"id": "call_001", "type": "function",
      "function": {"name": "search_web",
      "arguments": "{\"query\": \"latest AI news\"}"}}]}
    model: mock-gpt-4o
    tokens_used: 30
    latency_ms: 60.0
    finish_reason: tool_calls

  - content: "The Pythagorean theorem states that a^2 + b^2 = c^2."
    model: mock-gpt-4o
    tokens_used: 20
    latency_ms: 40.0
    finish_reason: stop
`

var initOpts struct {
	force bool
}

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Scaffold an example test directory with sample cases and a provider config",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runInitCommand,
}

func init() {
	initCmd.Flags().BoolVar(&initOpts.force, "force", false, "Overwrite existing files")
	rootCmd.AddCommand(initCmd)
}

func runInitCommand(cmd *cobra.Command, args []string) error {
	directory := "agent-tests"
	if len(args) > 0 {
		directory = args[0]
	}

	if err := os.MkdirAll(directory, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", directory, err)
	}

	testsFile := filepath.Join(directory, "sample_tests.yaml")
	providerFile := filepath.Join(directory, "provider_config.yaml")

	files := []struct {
		path    string
		content string
	}{
		{testsFile, sampleTestsYAML},
		{providerFile, sampleProviderYAML},
	}

	for _, file := range files {
		if _, err := os.Stat(file.path); err == nil && !initOpts.force {
			cmd.Printf("  skip  %s (already exists - use --force to overwrite)\n", file.path)
			continue
		}
		if err := os.WriteFile(file.path, []byte(file.content), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", file.path, err)
		}
		cmd.Printf("  create  %s\n", file.path)
	}

	cmd.Printf("\nInitialised test directory at '%s'.\nRun tests with:\n  agentci test %s --provider-config %s\n",
		directory, directory, providerFile)
	return nil
}
