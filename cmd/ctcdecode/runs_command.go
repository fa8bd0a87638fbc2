package main

import (
	"errors"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/ieee0824/ctcdecode/internal/runstore"
)

type runOutput struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	Mode       string    `json:"mode"`
	Manifest   string    `json:"manifest"`
	BeamSize   int       `json:"beam_size"`
	Alpha      float64   `json:"alpha"`
	Beta       float64   `json:"beta"`
	Utterances int       `json:"utterances"`
	CER        float64   `json:"cer"`
	WER        float64   `json:"wer"`
	Exact      float64   `json:"exact"`
}

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var (
		best  bool
		mode  string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "runs [ID]",
		Short: "List recorded evaluation runs, or show one by id",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openStore(cmd)
			if err != nil {
				return err
			}
			if store == nil {
				return errors.New("no run store configured (set store.path or CTCDECODE_STORE_PATH)")
			}
			defer store.Close()

			var runs []*runstore.Run
			switch {
			case len(args) == 1:
				var run *runstore.Run
				if run, err = store.Get(cmd.Context(), args[0]); err == nil {
					runs = []*runstore.Run{run}
				}
			case best:
				runs, err = store.Best(cmd.Context(), mode, limit)
			default:
				runs, err = store.Recent(cmd.Context(), mode, limit)
			}
			if err != nil {
				return err
			}

			out := make([]runOutput, len(runs))
			rows := make([][]string, len(runs))
			for i, r := range runs {
				out[i] = runOutput(*r)
				rows[i] = []string{
					shortID(r.ID),
					r.CreatedAt.Local().Format(time.DateTime),
					r.Mode,
					strconv.Itoa(r.BeamSize),
					strconv.FormatFloat(r.Alpha, 'g', -1, 64),
					strconv.FormatFloat(r.Beta, 'g', -1, 64),
					strconv.Itoa(r.Utterances),
					formatPercent(r.CER),
					formatPercent(r.WER),
					r.Manifest,
				}
			}
			headers := []string{"ID", "Created", "Mode", "Beam", "Alpha", "Beta", "Utterances", "CER", "WER", "Manifest"}
			aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight}
			return ctx.emit(cmd, out, headers, rows, aligns)
		},
	}
	cmd.Flags().BoolVar(&best, "best", false, "Order by word error rate instead of recency")
	cmd.Flags().StringVar(&mode, "mode", "", "Only runs of this mode (greedy or beam)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to list; 0 lists all")
	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
