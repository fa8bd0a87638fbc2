package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var flags globalFlags
	ctx := newCommandContext(&flags)

	rootCmd := &cobra.Command{
		Use:           "ctcdecode",
		Short:         "Decode CTC acoustic model output",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.loadEnvFile(cmd); err != nil {
				return err
			}
			if shouldSkipConfig(cmd) {
				return nil
			}
			if _, err := ctx.ensureConfig(); err != nil {
				return err
			}
			return ctx.startTelemetry(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return ctx.finish(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.config, "config", "c", "", "Configuration file path (.yaml or .toml)")
	pf.StringVar(&flags.envFile, "env-file", ".env", "File of CTCDECODE_* variables loaded when present")
	pf.StringVar(&flags.logLevel, "log-level", "", "Override the configured log level")
	pf.StringVar(&flags.format, "format", formatAuto, "Output format: auto, table or json")
	pf.BoolVar(&flags.strict, "strict", false, "Reject frames that are not probability distributions")
	pf.BoolVar(&flags.metrics, "metrics", false, "Print decode metrics to stderr on exit")

	rootCmd.AddCommand(newGreedyCommand(ctx))
	rootCmd.AddCommand(newBeamCommand(ctx))
	rootCmd.AddCommand(newEvalCommand(ctx))
	rootCmd.AddCommand(newTuneCommand(ctx))
	rootCmd.AddCommand(newRunsCommand(ctx))
	rootCmd.AddCommand(newLMCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
