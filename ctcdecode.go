// Package ctcdecode turns per-frame symbol distributions from a CTC
// acoustic model into text, greedily or with a language-model-aware prefix
// beam search.
//
// A Decoder holds only an immutable vocabulary, a read-only scorer and its
// parameters, so one Decoder can serve any number of goroutines.
package ctcdecode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ieee0824/ctcdecode/decoder"
	"github.com/ieee0824/ctcdecode/emission"
	"github.com/ieee0824/ctcdecode/internal/observe"
	"github.com/ieee0824/ctcdecode/vocab"
)

// Decoder decodes utterances over one vocabulary.
type Decoder struct {
	vocab   *vocab.Vocabulary
	scorer  decoder.Scorer
	cfg     decoder.Config
	logger  *slog.Logger
	metrics *observe.Metrics
	workers int
	strict  bool
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithScorer sets the language model scorer. Without one, beam search ranks
// by acoustic evidence alone.
func WithScorer(s decoder.Scorer) Option {
	return func(d *Decoder) {
		d.scorer = s
	}
}

// WithConfig sets the beam search parameters.
func WithConfig(cfg decoder.Config) Option {
	return func(d *Decoder) {
		d.cfg = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Decoder) {
		d.logger = l
	}
}

// WithMetrics enables metric recording.
func WithMetrics(m *observe.Metrics) Option {
	return func(d *Decoder) {
		d.metrics = m
	}
}

// WithWorkers bounds the utterances decoded concurrently by batch calls.
func WithWorkers(n int) Option {
	return func(d *Decoder) {
		d.workers = n
	}
}

// WithStrictFrames makes every decode first check that each frame is a
// probability distribution in the configured input convention.
func WithStrictFrames() Option {
	return func(d *Decoder) {
		d.strict = true
	}
}

// New creates a Decoder over v.
func New(v *vocab.Vocabulary, opts ...Option) *Decoder {
	d := &Decoder{
		vocab:   v,
		scorer:  decoder.NoLM{},
		cfg:     decoder.DefaultConfig(),
		workers: runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	d.logger = d.logger.With("component", "decoder")
	if d.scorer == nil {
		d.scorer = decoder.NoLM{}
	}
	if d.workers < 1 {
		d.workers = 1
	}
	return d
}

// Vocabulary returns the decoder's vocabulary.
func (d *Decoder) Vocabulary() *vocab.Vocabulary {
	return d.vocab
}

// Scorer returns the language model scorer, NoLM when none was set.
func (d *Decoder) Scorer() decoder.Scorer {
	return d.scorer
}

// Config returns the beam search parameters.
func (d *Decoder) Config() decoder.Config {
	return d.cfg
}

// Greedy returns the best-path decoding of frames.
func (d *Decoder) Greedy(frames [][]float64) (string, error) {
	start := time.Now()
	var text string
	err := d.check(frames)
	if err == nil {
		text, err = decoder.GreedyFrames(frames, d.vocab)
	}
	d.record(context.Background(), observe.ModeGreedy, len(frames), start, err)
	return text, err
}

// Decode runs beam search over frames and returns hypotheses best first.
func (d *Decoder) Decode(ctx context.Context, frames [][]float64) ([]decoder.Hypothesis, error) {
	ctx, span := observe.StartSpan(ctx, "ctcdecode.Decode", trace.WithAttributes(
		attribute.Int("frames", len(frames)),
		attribute.Int("beam_size", d.cfg.BeamSize),
	))
	defer span.End()

	cfg := d.cfg
	if d.metrics != nil && cfg.Observer == nil {
		cfg.Observer = d.metrics.StepObserver(ctx)
	}

	start := time.Now()
	var hyps []decoder.Hypothesis
	err := d.check(frames)
	if err == nil {
		hyps, err = decoder.BeamSearch(ctx, frames, d.vocab, d.scorer, cfg)
	}
	d.record(ctx, observe.ModeBeam, len(frames), start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("hypotheses", len(hyps)))

	observe.Logger(ctx, d.logger).Debug("beam search finished",
		"frames", len(frames),
		"beam_size", d.cfg.BeamSize,
		"hypotheses", len(hyps),
		"best", hyps[0].Text,
		"duration", time.Since(start),
	)
	return hyps, nil
}

// check validates frames when strict checking is on.
func (d *Decoder) check(frames [][]float64) error {
	if !d.strict {
		return nil
	}
	err := emission.Validate(frames, d.vocab.Size(), d.cfg.Input)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, emission.ErrWidth), errors.Is(err, emission.ErrRagged):
		return fmt.Errorf("%w: %w", decoder.ErrShapeMismatch, err)
	default:
		return fmt.Errorf("%w: %w", decoder.ErrInvalidFrame, err)
	}
}

func (d *Decoder) record(ctx context.Context, mode string, frames int, start time.Time, err error) {
	if d.metrics != nil {
		d.metrics.RecordDecode(ctx, mode, frames, time.Since(start), err)
	}
}

// Utterance is one input of a batch.
type Utterance struct {
	ID     string
	Frames [][]float64
}

// BatchResult is the outcome of one utterance. Text is the best decoding;
// Hypotheses is set by beam decoding only.
type BatchResult struct {
	ID         string
	Text       string
	Hypotheses []decoder.Hypothesis
	Err        error
}

// DecodeBatch beam-decodes utterances concurrently, at most the configured
// number of workers at a time. Results are in input order and carry their
// own errors. With failFast the first failure cancels the utterances not yet
// finished, which then report the cancellation.
func (d *Decoder) DecodeBatch(ctx context.Context, utts []Utterance, failFast bool) []BatchResult {
	return d.batch(ctx, "ctcdecode.DecodeBatch", utts, failFast, func(ctx context.Context, u Utterance) (BatchResult, error) {
		hyps, err := d.Decode(ctx, u.Frames)
		if err != nil {
			return BatchResult{}, err
		}
		return BatchResult{Text: hyps[0].Text, Hypotheses: hyps}, nil
	})
}

// GreedyBatch is DecodeBatch with greedy decoding.
func (d *Decoder) GreedyBatch(ctx context.Context, utts []Utterance, failFast bool) []BatchResult {
	return d.batch(ctx, "ctcdecode.GreedyBatch", utts, failFast, func(ctx context.Context, u Utterance) (BatchResult, error) {
		text, err := d.Greedy(u.Frames)
		return BatchResult{Text: text}, err
	})
}

func (d *Decoder) batch(ctx context.Context, name string, utts []Utterance, failFast bool,
	decode func(context.Context, Utterance) (BatchResult, error)) []BatchResult {
	ctx, span := observe.StartSpan(ctx, name, trace.WithAttributes(
		attribute.Int("utterances", len(utts)),
		attribute.Int("workers", d.workers),
	))
	defer span.End()

	results := make([]BatchResult, len(utts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)

	for i, u := range utts {
		g.Go(func() error {
			results[i].ID = u.ID
			if err := gctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			res, err := decode(gctx, u)
			if err != nil {
				results[i].Err = fmt.Errorf("utterance %q: %w", u.ID, err)
				if failFast {
					return results[i].Err
				}
				return nil
			}
			res.ID = u.ID
			results[i] = res
			return nil
		})
	}

	failed := 0
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	span.SetAttributes(attribute.Int("failed", failed))
	observe.Logger(ctx, d.logger).Info("batch finished", "utterances", len(utts), "failed", failed)
	return results
}
