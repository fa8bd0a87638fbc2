package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ieee0824/ctcdecode/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigValidateCommand(ctx))
	configCmd.AddCommand(newConfigInitCommand())

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				fmt.Fprint(cmd.OutOrStdout(), config.SampleConfig())
				return nil
			}

			dir := filepath.Dir(target)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create config directory %q: %w", dir, err)
			}
			if !overwrite && fileExists(target) {
				return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
			}
			if err := os.WriteFile(target, []byte(config.SampleConfig()), 0o644); err != nil {
				return fmt.Errorf("write sample config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample configuration to %s\n", target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file (default: stdout)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration and print the effective settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if path := ctx.flags.config; path != "" {
				fmt.Fprintf(out, "Config path: %s\n", path)
			} else {
				fmt.Fprintln(out, "No config file given; defaults and environment were used")
			}
			vocabulary := cfg.Vocabulary.Path
			if vocabulary == "" {
				vocabulary = cfg.Vocabulary.Alphabet
			}
			lm := "none"
			switch {
			case cfg.LanguageModel.Path != "":
				lm = cfg.LanguageModel.Path
			case cfg.LanguageModel.URL != "":
				lm = cfg.LanguageModel.URL
			}
			fmt.Fprintf(out, "Vocabulary: %s (blank %q)\n", vocabulary, cfg.Vocabulary.Blank)
			fmt.Fprintf(out, "Decoder: beam_size=%d alpha=%g beta=%g input=%s\n",
				cfg.Decoder.BeamSize, cfg.Decoder.Alpha, cfg.Decoder.Beta, cfg.Decoder.Input)
			fmt.Fprintf(out, "Language model: %s\n", lm)
			fmt.Fprintf(out, "Workers: %d\n", cfg.Batch.Workers)
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}
