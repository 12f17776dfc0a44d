package cmd

import (
	"fmt"
	"os"

	"github.com/aumai/agentci/logger"
	"github.com/aumai/agentci/model"
	"github.com/aumai/agentci/report"
	"github.com/aumai/agentci/runner"
	"github.com/spf13/cobra"
)

var testOpts struct {
	providerConfigPath string
	timeoutSeconds     float64
	parallel           bool
	workers            int
	outputFormat       string
	outFile            string
	seed               int64
	verbose            bool
	logFile            string
}

var testCmd = &cobra.Command{
	Use:   "test [test-dir]",
	Short: "Run agent test cases from a directory",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTestCommand,
}

func init() {
	testCmd.Flags().StringVar(&testOpts.providerConfigPath, "provider-config", "", "Path to a YAML simulated provider configuration file")
	testCmd.Flags().Float64Var(&testOpts.timeoutSeconds, "timeout", model.DefaultTimeoutSeconds, "Per-suite timeout in seconds")
	testCmd.Flags().BoolVar(&testOpts.parallel, "parallel", false, "Run test cases on a bounded worker pool")
	testCmd.Flags().IntVar(&testOpts.workers, "workers", model.DefaultMaxWorkers, "Worker count for parallel runs")
	testCmd.Flags().StringVarP(&testOpts.outputFormat, "output", "o", report.FormatText, "Report format: text, json or junit")
	testCmd.Flags().StringVar(&testOpts.outFile, "out-file", "", "Write the report to a file instead of stdout")
	testCmd.Flags().Int64Var(&testOpts.seed, "seed", 0, "RNG seed for deterministic failure injection")
	testCmd.Flags().BoolVarP(&testOpts.verbose, "verbose", "v", false, "Enable verbose logging")
	testCmd.Flags().StringVar(&testOpts.logFile, "log-file", "", "Tee logs to a file")
	rootCmd.AddCommand(testCmd)
}

func runTestCommand(cmd *cobra.Command, args []string) error {
	testDir := "tests"
	if len(args) > 0 {
		testDir = args[0]
	}

	logWriter, logFile, err := logger.SetupLogWriter(testOpts.logFile)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}
	logger.SetupLogger(logWriter, testOpts.verbose)

	if err := report.ValidateFormat(testOpts.outputFormat); err != nil {
		return err
	}

	var providerConfig *model.ProviderConfig
	if testOpts.providerConfigPath != "" {
		providerConfig, err = model.ParseProviderConfig(testOpts.providerConfigPath)
		if err != nil {
			return fmt.Errorf("failed to load provider config: %w", err)
		}
	}

	runConfig := model.RunConfig{
		TestDir:        testDir,
		ProviderConfig: providerConfig,
		TimeoutSeconds: testOpts.timeoutSeconds,
		Parallel:       testOpts.parallel,
		MaxWorkers:     testOpts.workers,
	}

	testRunner := runner.New()
	if cmd.Flags().Changed("seed") {
		seed := testOpts.seed
		testRunner.Seed = &seed
	}

	suite, err := testRunner.RunSuite(cmd.Context(), testDir, runConfig)
	if err != nil {
		return fmt.Errorf("test run failed: %w", err)
	}

	out := os.Stdout
	if testOpts.outFile != "" {
		out, err = os.Create(testOpts.outFile)
		if err != nil {
			return fmt.Errorf("failed to open report output: %w", err)
		}
		defer out.Close()
	}

	reporter, err := report.ForFormat(testOpts.outputFormat)
	if err != nil {
		return err
	}
	if _, err := reporter.Report(suite, out); err != nil {
		return err
	}

	if suite.Failed > 0 {
		logger.Logger.Warn("Tests completed with failures", "failed", suite.Failed)
		os.Exit(ExitTestsFailed)
	}
	return nil
}
