// Package cmd defines the agentci command-line interface.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Exit codes: 0 all tests passed, 1 assertion failures, 2 harness
// misconfiguration (load/config errors), so CI can tell them apart.
const (
	ExitOK          = 0
	ExitTestsFailed = 1
	ExitConfigError = 2
)

var rootCmd = &cobra.Command{
	Use:           "agentci",
	Short:         "CI testing harness for conversational AI agents",
	Long:          "agentci runs declarative YAML test cases against a simulated LLM provider and reports behavioral assertion results.",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(ExitConfigError)
	}
}
