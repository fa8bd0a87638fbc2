package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ieee0824/ctcdecode/evaluate"
	"github.com/ieee0824/ctcdecode/internal/config"
	"github.com/ieee0824/ctcdecode/internal/lmcache"
	"github.com/ieee0824/ctcdecode/internal/mathutil"
	"github.com/ieee0824/ctcdecode/language"
)

func newLMCommand(ctx *commandContext) *cobra.Command {
	lmCmd := &cobra.Command{
		Use:   "lm",
		Short: "Language model utilities",
	}
	lmCmd.AddCommand(newLMBuildCommand(ctx))
	lmCmd.AddCommand(newLMFetchCommand(ctx))
	lmCmd.AddCommand(newLMInfoCommand(ctx))
	return lmCmd
}

func newLMBuildCommand(ctx *commandContext) *cobra.Command {
	var (
		order     int
		output    string
		normalize bool
		alphabet  string
	)
	cmd := &cobra.Command{
		Use:         "build [CORPUS...]",
		Short:       "Build an ARPA model from text, one sentence per line",
		Long:        "Build a Witten-Bell smoothed ARPA model. Reads standard input when no corpus file is given.",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			b := language.NewBuilder(order)
			clean := corpusNormalizer(normalize, alphabet)

			sentences := 0
			if len(args) == 0 {
				n, err := b.ReadCorpus(cmd.InOrStdin(), clean)
				if err != nil {
					return fmt.Errorf("read corpus: %w", err)
				}
				sentences = n
			}
			for _, path := range args {
				n, err := readCorpusFile(b, path, clean)
				if err != nil {
					return err
				}
				sentences += n
			}
			if sentences == 0 {
				return errors.New("corpus has no sentences")
			}

			w := cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create %s: %w", output, err)
				}
				if err := b.WriteARPA(f); err != nil {
					f.Close()
					return fmt.Errorf("write ARPA: %w", err)
				}
				if err := f.Close(); err != nil {
					return fmt.Errorf("close %s: %w", output, err)
				}
			} else if err := b.WriteARPA(w); err != nil {
				return fmt.Errorf("write ARPA: %w", err)
			}

			ctx.log(cmd).Info("language model built",
				"order", b.Order(),
				"sentences", sentences,
				"output", output,
			)
			return nil
		},
	}
	cmd.Flags().IntVar(&order, "order", 3, "N-gram order (2 or 3)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().BoolVar(&normalize, "normalize", true, "Case-fold and collapse whitespace in each line")
	cmd.Flags().StringVar(&alphabet, "alphabet", "", "Drop characters outside this set (space keeps word boundaries)")
	return cmd
}

func corpusNormalizer(normalize bool, alphabet string) func(string) string {
	if !normalize && alphabet == "" {
		return nil
	}
	return func(line string) string {
		if normalize {
			line = evaluate.Normalize(line)
		}
		if alphabet != "" {
			line = evaluate.KeepOnly(line, alphabet)
		}
		return line
	}
}

func readCorpusFile(b *language.Builder, path string, clean func(string) string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	n, err := b.ReadCorpus(f, clean)
	if err != nil {
		return n, fmt.Errorf("read %s: %w", path, err)
	}
	return n, nil
}

func newLMFetchCommand(ctx *commandContext) *cobra.Command {
	var (
		rawURL   string
		cacheDir string
	)
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download a language model into the cache and print its path",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			target := rawURL
			if target == "" {
				target = cfg.LanguageModel.URL
			}
			if target == "" {
				target = config.DefaultLMURL
			}
			dir := cacheDir
			if dir == "" {
				dir = cfg.LanguageModel.CacheDir
			}
			f := &lmcache.Fetcher{Dir: dir, Logger: ctx.log(cmd)}
			path, err := f.Ensure(cmd.Context(), target)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().StringVar(&rawURL, "url", "", "Model URL (default: language_model.url, then the LibriSpeech 4-gram)")
	cmd.Flags().StringVar(&cacheDir, "cache-dir", "", "Cache directory (default: language_model.cache_dir)")
	return cmd
}

type lmInfoOutput struct {
	Path       string   `json:"path"`
	Order      int      `json:"order"`
	Counts     []int    `json:"counts"`
	OOVLogProb *float64 `json:"oov_logp,omitempty"`
}

func newLMInfoCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "info MODEL",
		Short:       "Print the order and n-gram counts of an ARPA model",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			model, err := language.LoadARPAFile(args[0])
			if err != nil {
				return err
			}
			out := lmInfoOutput{Path: args[0], Order: model.Order, Counts: model.Counts()}
			oov := "none"
			if model.OOVLogProb > mathutil.LogZero {
				out.OOVLogProb = &model.OOVLogProb
				oov = formatFloat(model.OOVLogProb)
			}
			rows := make([][]string, 0, len(out.Counts)+1)
			for i, n := range out.Counts {
				rows = append(rows, []string{strconv.Itoa(i+1) + "-grams", strconv.Itoa(n)})
			}
			rows = append(rows, []string{"<unk> log prob", oov})
			return ctx.emit(cmd, out, []string{"Entry", "Value"}, rows, []columnAlignment{alignLeft, alignRight})
		},
	}
}
