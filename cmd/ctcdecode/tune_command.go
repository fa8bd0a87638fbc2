package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ieee0824/ctcdecode"
	"github.com/ieee0824/ctcdecode/evaluate"
	"github.com/ieee0824/ctcdecode/internal/observe"
	"github.com/ieee0824/ctcdecode/internal/runstore"
)

type gridPoint struct {
	Alpha float64
	Beta  float64
}

type tuneResult struct {
	RunID  string  `json:"run_id,omitempty"`
	Alpha  float64 `json:"alpha"`
	Beta   float64 `json:"beta"`
	Failed int     `json:"failed"`
	CER    float64 `json:"cer"`
	WER    float64 `json:"wer"`
	Exact  float64 `json:"exact"`

	acc evaluate.Accumulator
}

func newTuneCommand(ctx *commandContext) *cobra.Command {
	var (
		manifest  string
		alphas    string
		betas     string
		normalize bool
		flags     decoderFlags
	)
	cmd := &cobra.Command{
		Use:   "tune",
		Short: "Grid search alpha and beta against a manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := flags.apply(cmd, cfg); err != nil {
				return err
			}
			grid, err := buildGrid(alphas, betas)
			if err != nil {
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
			base, err := ctx.decoder(cmd)
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
			logger.Info("tuning",
				"grid", len(grid),
				"utterances", len(utts),
				"workers", cfg.Batch.Workers,
			)
			start := time.Now()

			results := make([]tuneResult, len(grid))
			g, gctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(max(cfg.Batch.Workers, 1))
			for i, p := range grid {
				g.Go(func() error {
					if err := gctx.Err(); err != nil {
						return err
					}
					dc := base.Config()
					dc.Alpha, dc.Beta = p.Alpha, p.Beta
					opts := []ctcdecode.Option{
						ctcdecode.WithScorer(base.Scorer()),
						ctcdecode.WithConfig(dc),
						ctcdecode.WithWorkers(1),
						ctcdecode.WithLogger(logger),
					}
					if ctx.metrics != nil {
						opts = append(opts, ctcdecode.WithMetrics(ctx.metrics))
					}
					if ctx.flags.strict {
						opts = append(opts, ctcdecode.WithStrictFrames())
					}
					d := ctcdecode.New(base.Vocabulary(), opts...)
					batch := d.DecodeBatch(gctx, utts, false)
					if err := gctx.Err(); err != nil {
						return err
					}
					acc, failed := score(entries, batch, normalize)
					results[i] = tuneResult{
						Alpha:  p.Alpha,
						Beta:   p.Beta,
						Failed: failed,
						CER:    acc.CER(),
						WER:    acc.WER(),
						Exact:  acc.ExactRate(),
						acc:    acc,
					}
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}
			rankResults(results)
			logger.Info("tuning finished",
				"best_alpha", results[0].Alpha,
				"best_beta", results[0].Beta,
				"best_wer", results[0].WER,
				"duration", time.Since(start),
			)

			if store != nil {
				for i := range results {
					run := &runstore.Run{
						Mode:       observe.ModeBeam,
						Manifest:   manifest,
						BeamSize:   base.Config().BeamSize,
						Alpha:      results[i].Alpha,
						Beta:       results[i].Beta,
						Utterances: results[i].acc.Utterances,
						CER:        results[i].CER,
						WER:        results[i].WER,
						Exact:      results[i].Exact,
					}
					if err := store.Record(cmd.Context(), run); err != nil {
						return fmt.Errorf("record run: %w", err)
					}
					results[i].RunID = run.ID
				}
			}

			rows := make([][]string, len(results))
			for i, r := range results {
				rows[i] = []string{
					strconv.Itoa(i + 1),
					strconv.FormatFloat(r.Alpha, 'g', -1, 64),
					strconv.FormatFloat(r.Beta, 'g', -1, 64),
					formatPercent(r.CER), formatPercent(r.WER), formatPercent(r.Exact),
					strconv.Itoa(r.Failed),
				}
			}
			headers := []string{"Rank", "Alpha", "Beta", "CER", "WER", "Exact", "Failed"}
			aligns := []columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight}
			return ctx.emit(cmd, results, headers, rows, aligns)
		},
	}
	cmd.Flags().StringVarP(&manifest, "manifest", "m", "", "Manifest of frame files and references (TSV)")
	cmd.Flags().StringVar(&alphas, "alphas", "0,0.25,0.5,0.75,1", "Comma-separated language model weights")
	cmd.Flags().StringVar(&betas, "betas", "0,0.5,1,1.5,2", "Comma-separated word bonuses")
	cmd.Flags().BoolVar(&normalize, "normalize", true, "Case-fold and collapse whitespace before scoring")
	flags.register(cmd)
	_ = cmd.MarkFlagRequired("manifest")
	return cmd
}

func buildGrid(alphas, betas string) ([]gridPoint, error) {
	as, err := parseFloats(alphas)
	if err != nil {
		return nil, fmt.Errorf("--alphas: %w", err)
	}
	bs, err := parseFloats(betas)
	if err != nil {
		return nil, fmt.Errorf("--betas: %w", err)
	}
	if len(as) == 0 || len(bs) == 0 {
		return nil, fmt.Errorf("empty parameter grid")
	}
	grid := make([]gridPoint, 0, len(as)*len(bs))
	for _, a := range as {
		if a < 0 {
			return nil, fmt.Errorf("--alphas: %g is negative", a)
		}
		for _, b := range bs {
			grid = append(grid, gridPoint{Alpha: a, Beta: b})
		}
	}
	return grid, nil
}

// rankResults orders by WER, then CER, then the smaller language model
// weight.
func rankResults(results []tuneResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.WER != b.WER {
			return a.WER < b.WER
		}
		if a.CER != b.CER {
			return a.CER < b.CER
		}
		return a.Alpha < b.Alpha
	})
}

func parseFloats(s string) ([]float64, error) {
	var vals []float64
	for part := range strings.SplitSeq(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("parse %q: %w", part, err)
		}
		vals = append(vals, v)
	}
	return vals, nil
}
