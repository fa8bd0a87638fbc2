package observe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ProviderConfig configures the OpenTelemetry SDK providers.
type ProviderConfig struct {
	// ServiceName is reported in telemetry. Default: "ctcdecode".
	ServiceName string

	// ServiceVersion is reported in telemetry.
	ServiceVersion string

	// TraceExporter receives finished spans. When nil, spans are recorded
	// but not exported.
	TraceExporter sdktrace.SpanExporter
}

// Provider owns the SDK providers installed by InitProvider. Metrics are
// kept in memory and read with Collect or Report; ctcdecode runs as a
// batch tool, so there is no scrape endpoint.
type Provider struct {
	reader    *sdkmetric.ManualReader
	meters    *sdkmetric.MeterProvider
	tracers   *sdktrace.TracerProvider
	shutdowns []func(context.Context) error
}

// InitProvider installs a MeterProvider backed by a manual reader and a
// TracerProvider as the global OTel providers.
func InitProvider(ctx context.Context, cfg ProviderConfig) (*Provider, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "ctcdecode"
	}

	// Service attributes are schemaless; the SDK detector sets the schema URL.
	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build resource: %w", err)
	}

	p := &Provider{reader: sdkmetric.NewManualReader()}
	p.meters = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(p.reader),
	)
	otel.SetMeterProvider(p.meters)
	p.shutdowns = append(p.shutdowns, p.meters.Shutdown)

	tpOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if cfg.TraceExporter != nil {
		tpOpts = append(tpOpts, sdktrace.WithBatcher(cfg.TraceExporter))
	}
	p.tracers = sdktrace.NewTracerProvider(tpOpts...)
	otel.SetTracerProvider(p.tracers)
	p.shutdowns = append(p.shutdowns, p.tracers.Shutdown)

	return p, nil
}

// Metrics creates the ctcdecode instruments on this provider.
func (p *Provider) Metrics() (*Metrics, error) {
	return NewMetrics(p.meters)
}

// Collect returns the metrics recorded so far.
func (p *Provider) Collect(ctx context.Context) (metricdata.ResourceMetrics, error) {
	var rm metricdata.ResourceMetrics
	err := p.reader.Collect(ctx, &rm)
	return rm, err
}

// Report writes one line per recorded data point to w.
func (p *Provider) Report(ctx context.Context, w io.Writer) error {
	rm, err := p.Collect(ctx)
	if err != nil {
		return err
	}
	var lines []string
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			lines = append(lines, describe(m)...)
		}
	}
	sort.Strings(lines)
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func describe(m metricdata.Metrics) []string {
	var out []string
	switch data := m.Data.(type) {
	case metricdata.Sum[int64]:
		for _, dp := range data.DataPoints {
			out = append(out, fmt.Sprintf("%s%s %d", m.Name, labels(dp.Attributes), dp.Value))
		}
	case metricdata.Histogram[float64]:
		for _, dp := range data.DataPoints {
			out = append(out, fmt.Sprintf("%s%s count=%d sum=%.6f", m.Name, labels(dp.Attributes), dp.Count, dp.Sum))
		}
	case metricdata.Histogram[int64]:
		for _, dp := range data.DataPoints {
			out = append(out, fmt.Sprintf("%s%s count=%d sum=%d", m.Name, labels(dp.Attributes), dp.Count, dp.Sum))
		}
	}
	return out
}

func labels(set attribute.Set) string {
	if set.Len() == 0 {
		return ""
	}
	return "{" + set.Encoded(attribute.DefaultEncoder()) + "}"
}

// Shutdown flushes and closes the providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range p.shutdowns {
		errs = append(errs, fn(ctx))
	}
	return errors.Join(errs...)
}
