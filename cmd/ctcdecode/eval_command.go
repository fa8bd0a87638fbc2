package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/ieee0824/ctcdecode"
	"github.com/ieee0824/ctcdecode/internal/observe"
	"github.com/ieee0824/ctcdecode/internal/runstore"
)

type evalOutput struct {
	RunID      string  `json:"run_id,omitempty"`
	Manifest   string  `json:"manifest"`
	Mode       string  `json:"mode"`
	BeamSize   int     `json:"beam_size,omitempty"`
	Alpha      float64 `json:"alpha"`
	Beta       float64 `json:"beta"`
	Utterances int     `json:"utterances"`
	Failed     int     `json:"failed"`
	CER        float64 `json:"cer"`
	WER        float64 `json:"wer"`
	Exact      float64 `json:"exact"`
}

func newEvalCommand(ctx *commandContext) *cobra.Command {
	var (
		manifest  string
		greedy    bool
		normalize bool
		flags     decoderFlags
	)
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Score decoding against a manifest of reference transcripts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := flags.apply(cmd, cfg); err != nil {
				return err
			}
			entries, err := loadManifest(manifest)
			if err != nil {
				return err
			}
			utts, err := loadManifestUtterances(entries)
			if err != nil {
				return err
			}
			d, err := ctx.decoder(cmd)
			if err != nil {
				return err
			}
			store, err := ctx.openStore(cmd)
			if err != nil {
				return err
			}
			if store != nil {
				defer store.Close()
			}

			logger := ctx.log(cmd)
			mode := observe.ModeBeam
			start := time.Now()
			var results []ctcdecode.BatchResult
			if greedy {
				mode = observe.ModeGreedy
				results = d.GreedyBatch(cmd.Context(), utts, cfg.Batch.FailFast)
			} else {
				results = d.DecodeBatch(cmd.Context(), utts, cfg.Batch.FailFast)
			}
			if err := cmd.Context().Err(); err != nil {
				return err
			}
			for _, r := range results {
				if r.Err != nil {
					logger.Warn("utterance failed", "file", r.ID, "error", r.Err)
				}
			}
			acc, failed := score(entries, results, normalize)
			logger.Info("evaluation finished",
				"manifest", manifest,
				"mode", mode,
				"utterances", acc.Utterances,
				"failed", failed,
				"duration", time.Since(start),
			)

			run := &runstore.Run{
				Mode:       mode,
				Manifest:   manifest,
				Utterances: acc.Utterances,
				CER:        acc.CER(),
				WER:        acc.WER(),
				Exact:      acc.ExactRate(),
			}
			if !greedy {
				dc := d.Config()
				run.BeamSize, run.Alpha, run.Beta = dc.BeamSize, dc.Alpha, dc.Beta
			}
			if store != nil {
				if err := store.Record(cmd.Context(), run); err != nil {
					return fmt.Errorf("record run: %w", err)
				}
			}

			out := evalOutput{
				RunID:      run.ID,
				Manifest:   manifest,
				Mode:       mode,
				BeamSize:   run.BeamSize,
				Alpha:      run.Alpha,
				Beta:       run.Beta,
				Utterances: acc.Utterances,
				Failed:     failed,
				CER:        run.CER,
				WER:        run.WER,
				Exact:      run.Exact,
			}
			rows := [][]string{{
				mode, strconv.Itoa(out.Utterances), strconv.Itoa(failed),
				formatPercent(out.CER), formatPercent(out.WER), formatPercent(out.Exact),
			}}
			headers := []string{"Mode", "Utterances", "Failed", "CER", "WER", "Exact"}
			aligns := []columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight}
			return ctx.emit(cmd, out, headers, rows, aligns)
		},
	}
	cmd.Flags().StringVarP(&manifest, "manifest", "m", "", "Manifest of frame files and references (TSV)")
	cmd.Flags().BoolVar(&greedy, "greedy", false, "Score greedy decoding instead of beam search")
	cmd.Flags().BoolVar(&normalize, "normalize", true, "Case-fold and collapse whitespace before scoring")
	flags.register(cmd)
	_ = cmd.MarkFlagRequired("manifest")
	return cmd
}
