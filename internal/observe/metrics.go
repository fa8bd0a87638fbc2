// Package observe provides OpenTelemetry metrics and tracing for ctcdecode,
// plus slog helpers that attach the active trace to log records.
//
// Tests should build [Metrics] with [NewMetrics] over their own
// [metric.MeterProvider]; [DefaultMetrics] uses the global provider.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope of every ctcdecode instrument.
const meterName = "github.com/ieee0824/ctcdecode"

// Decode modes and outcomes used as attribute values.
const (
	ModeGreedy = "greedy"
	ModeBeam   = "beam"

	StatusOK    = "ok"
	StatusError = "error"
)

// Metrics holds the metric instruments. All fields are safe for concurrent use.
type Metrics struct {
	// DecodeDuration tracks per-utterance decode latency. Attribute: mode.
	DecodeDuration metric.Float64Histogram

	// Utterances counts decoded utterances. Attributes: mode, status.
	Utterances metric.Int64Counter

	// Frames counts processed frames. Attribute: mode.
	Frames metric.Int64Counter

	// BeamCandidates tracks the candidates generated per beam search frame
	// before pruning.
	BeamCandidates metric.Int64Histogram
}

// latencyBuckets are histogram boundaries in seconds for one utterance.
var latencyBuckets = []float64{
	0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5,
}

// candidateBuckets cover beams from a handful of entries to a few thousand
// extensions per frame.
var candidateBuckets = []float64{
	1, 4, 16, 64, 256, 1024, 4096,
}

// NewMetrics creates the instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.DecodeDuration, err = m.Float64Histogram("ctcdecode.decode.duration",
		metric.WithDescription("Latency of decoding one utterance."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Utterances, err = m.Int64Counter("ctcdecode.decode.utterances",
		metric.WithDescription("Decoded utterances by mode and status."),
	); err != nil {
		return nil, err
	}
	if met.Frames, err = m.Int64Counter("ctcdecode.decode.frames",
		metric.WithDescription("Processed frames by mode."),
	); err != nil {
		return nil, err
	}
	if met.BeamCandidates, err = m.Int64Histogram("ctcdecode.beam.candidates",
		metric.WithDescription("Beam search candidates per frame before pruning."),
		metric.WithExplicitBucketBoundaries(candidateBuckets...),
	); err != nil {
		return nil, err
	}
	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns a package-level Metrics on the global
// MeterProvider, created on first call.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordDecode records one finished utterance.
func (m *Metrics) RecordDecode(ctx context.Context, mode string, frames int, elapsed time.Duration, err error) {
	status := StatusOK
	if err != nil {
		status = StatusError
	}
	modeAttr := attribute.String("mode", mode)
	m.DecodeDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(modeAttr))
	m.Utterances.Add(ctx, 1, metric.WithAttributes(modeAttr, attribute.String("status", status)))
	m.Frames.Add(ctx, int64(frames), metric.WithAttributes(modeAttr))
}

// StepObserver returns a beam search observer feeding BeamCandidates.
func (m *Metrics) StepObserver(ctx context.Context) *StepObserver {
	return &StepObserver{ctx: ctx, hist: m.BeamCandidates}
}

// StepObserver records per-frame beam statistics. It satisfies
// decoder.Observer.
type StepObserver struct {
	ctx  context.Context
	hist metric.Int64Histogram
}

// ObserveStep records the candidates generated for one frame.
func (o *StepObserver) ObserveStep(_, candidates, _ int) {
	o.hist.Record(o.ctx, int64(candidates))
}
