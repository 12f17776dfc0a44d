package cmd

import (
	"fmt"

	"github.com/aumai/agentci/runner"
	"github.com/spf13/cobra"
)

var validateOpts struct {
	strict bool
}

var validateCmd = &cobra.Command{
	Use:   "validate <test-dir>",
	Short: "Validate test YAML files without running them",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidateCommand,
}

func init() {
	validateCmd.Flags().BoolVar(&validateOpts.strict, "strict", false, "Fail when validation warnings are found")
	rootCmd.AddCommand(validateCmd)
}

func runValidateCommand(cmd *cobra.Command, args []string) error {
	testDir := args[0]

	testCases, err := runner.LoadTests(testDir)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	if len(testCases) == 0 {
		cmd.Printf("WARNING: no test cases found in '%s'\n", testDir)
		if validateOpts.strict {
			return fmt.Errorf("no test cases found")
		}
		return nil
	}

	var warnings []string
	seenNames := make(map[string]bool)
	for _, tc := range testCases {
		if seenNames[tc.Name] {
			warnings = append(warnings, fmt.Sprintf("Duplicate test case name: '%s'", tc.Name))
		}
		seenNames[tc.Name] = true

		if len(tc.ExpectedBehavior) == 0 {
			warnings = append(warnings, fmt.Sprintf("Test '%s' has no expected_behavior - it will always pass", tc.Name))
		}
		if len(tc.InputMessages) == 0 {
			warnings = append(warnings, fmt.Sprintf("Test '%s' has no input_messages", tc.Name))
		}
	}

	for _, warning := range warnings {
		cmd.Printf("  WARNING %s\n", warning)
	}

	if len(warnings) == 0 {
		cmd.Printf("  OK  %d test case(s) validated successfully\n", len(testCases))
		return nil
	}

	cmd.Printf("\n%d test case(s) found: %d warning(s)\n", len(testCases), len(warnings))
	if validateOpts.strict {
		return fmt.Errorf("%d validation warning(s) in strict mode", len(warnings))
	}
	return nil
}
