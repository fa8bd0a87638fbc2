package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ieee0824/ctcdecode"
	"github.com/ieee0824/ctcdecode/decoder"
	"github.com/ieee0824/ctcdecode/emission"
	"github.com/ieee0824/ctcdecode/internal/config"
)

// decoderFlags override the configured beam parameters.
type decoderFlags struct {
	beamSize int
	alpha    float64
	beta     float64
}

func (f *decoderFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.beamSize, "beam-size", 0, "Override the configured beam size")
	cmd.Flags().Float64Var(&f.alpha, "alpha", 0, "Override the configured language model weight")
	cmd.Flags().Float64Var(&f.beta, "beta", 0, "Override the configured word bonus")
}

func (f *decoderFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	if cmd.Flags().Changed("beam-size") {
		cfg.Decoder.BeamSize = f.beamSize
	}
	if cmd.Flags().Changed("alpha") {
		cfg.Decoder.Alpha = f.alpha
	}
	if cmd.Flags().Changed("beta") {
		cfg.Decoder.Beta = f.beta
	}
	return config.Validate(cfg)
}

type greedyOutput struct {
	File  string `json:"file"`
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

type hypothesisOutput struct {
	Text     string  `json:"text"`
	Score    float64 `json:"score"`
	Acoustic float64 `json:"acoustic"`
	LM       float64 `json:"lm"`
	Words    int     `json:"words"`
}

type beamOutput struct {
	File       string             `json:"file"`
	Hypotheses []hypothesisOutput `json:"hypotheses"`
	Error      string             `json:"error,omitempty"`
}

func newGreedyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "greedy FRAMES...",
		Short: "Decode frame files along the most likely path",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			utts, err := loadUtterances(args)
			if err != nil {
				return err
			}
			d, err := ctx.decoder(cmd)
			if err != nil {
				return err
			}
			results := d.GreedyBatch(cmd.Context(), utts, ctx.config.Batch.FailFast)

			out := make([]greedyOutput, len(results))
			rows := make([][]string, len(results))
			for i, r := range results {
				out[i] = greedyOutput{File: r.ID, Text: r.Text, Error: errString(r.Err)}
				rows[i] = []string{r.ID, r.Text, out[i].Error}
			}
			if err := ctx.emit(cmd, out, []string{"File", "Text", "Error"}, rows, nil); err != nil {
				return err
			}
			return batchError(results)
		},
	}
}

func newBeamCommand(ctx *commandContext) *cobra.Command {
	var (
		top   int
		flags decoderFlags
	)
	cmd := &cobra.Command{
		Use:   "beam FRAMES...",
		Short: "Decode frame files with prefix beam search",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if top < 1 {
				return fmt.Errorf("--top must be at least 1, got %d", top)
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := flags.apply(cmd, cfg); err != nil {
				return err
			}
			utts, err := loadUtterances(args)
			if err != nil {
				return err
			}
			d, err := ctx.decoder(cmd)
			if err != nil {
				return err
			}
			results := d.DecodeBatch(cmd.Context(), utts, cfg.Batch.FailFast)

			out := make([]beamOutput, len(results))
			var rows [][]string
			for i, r := range results {
				out[i] = beamOutput{File: r.ID, Error: errString(r.Err), Hypotheses: []hypothesisOutput{}}
				if r.Err != nil {
					rows = append(rows, []string{r.ID, "", "", "", "", "", out[i].Error})
					continue
				}
				for rank, h := range topHypotheses(r.Hypotheses, top) {
					out[i].Hypotheses = append(out[i].Hypotheses, hypothesisOutput{
						Text:     h.Text,
						Score:    h.Score,
						Acoustic: h.AcousticScore,
						LM:       h.LMScore,
						Words:    h.Words,
					})
					rows = append(rows, []string{
						r.ID, strconv.Itoa(rank + 1), h.Text,
						formatFloat(h.Score), formatFloat(h.AcousticScore), formatFloat(h.LMScore), "",
					})
				}
			}
			headers := []string{"File", "Rank", "Text", "Score", "Acoustic", "LM", "Error"}
			aligns := []columnAlignment{alignLeft, alignRight, alignLeft, alignRight, alignRight, alignRight}
			if err := ctx.emit(cmd, out, headers, rows, aligns); err != nil {
				return err
			}
			return batchError(results)
		},
	}
	cmd.Flags().IntVar(&top, "top", 1, "Hypotheses to print per file")
	flags.register(cmd)
	return cmd
}

func loadUtterances(paths []string) ([]ctcdecode.Utterance, error) {
	utts := make([]ctcdecode.Utterance, 0, len(paths))
	for _, p := range paths {
		frames, err := emission.LoadFile(p)
		if err != nil {
			return nil, err
		}
		utts = append(utts, ctcdecode.Utterance{ID: p, Frames: frames})
	}
	return utts, nil
}

func topHypotheses(hyps []decoder.Hypothesis, n int) []decoder.Hypothesis {
	if len(hyps) > n {
		return hyps[:n]
	}
	return hyps
}

func batchError(results []ctcdecode.BatchResult) error {
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d utterances failed", failed, len(results))
	}
	return nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
