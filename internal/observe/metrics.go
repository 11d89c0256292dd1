// Package observe provides tasmi's OpenTelemetry metrics and the optional
// Prometheus scrape endpoint.
//
// Instruments are created through [NewMetrics] from any
// [metric.MeterProvider]. Without an exporter the global no-op provider is
// used, so recording is always safe. Tests should pass a provider backed by a
// manual reader.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/rbright/tasmi"

// Metrics holds the recitation instruments.
type Metrics struct {
	// Transcripts counts transcript events fed to the matcher, by result
	// ("advanced" or "none").
	Transcripts metric.Int64Counter

	// Words counts word outcomes, by status ("matched" or "skipped") and
	// source ("matcher" or "manual").
	Words metric.Int64Counter

	// RecognizerRestarts counts automatic recognizer restarts, by status.
	RecognizerRestarts metric.Int64Counter

	// Recitations counts finished passes, by outcome ("completed",
	// "stopped", "cancelled").
	Recitations metric.Int64Counter

	// Scores records completion scores, by sensitivity.
	Scores metric.Int64Histogram

	// SynthesisDuration tracks reading preparation latency.
	SynthesisDuration metric.Float64Histogram
}

var scoreBuckets = []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}

var latencyBuckets = []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20}

// NewMetrics creates every instrument on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Transcripts, err = m.Int64Counter("tasmi.transcripts",
		metric.WithDescription("Transcript events fed to the matcher, by result."),
	); err != nil {
		return nil, err
	}
	if met.Words, err = m.Int64Counter("tasmi.words",
		metric.WithDescription("Word outcomes by status and source."),
	); err != nil {
		return nil, err
	}
	if met.RecognizerRestarts, err = m.Int64Counter("tasmi.recognizer.restarts",
		metric.WithDescription("Automatic recognizer restarts by status."),
	); err != nil {
		return nil, err
	}
	if met.Recitations, err = m.Int64Counter("tasmi.recitations",
		metric.WithDescription("Recitation passes by outcome."),
	); err != nil {
		return nil, err
	}
	if met.Scores, err = m.Int64Histogram("tasmi.recitation.score",
		metric.WithDescription("Completion score of finished recitations."),
		metric.WithUnit("%"),
		metric.WithExplicitBucketBoundaries(scoreBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SynthesisDuration, err = m.Float64Histogram("tasmi.synthesis.duration",
		metric.WithDescription("Latency of preparing the spoken reading."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns metrics bound to the global meter provider at first use.
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

// RecordTranscript counts one matcher invocation.
func (m *Metrics) RecordTranscript(ctx context.Context, advanced bool) {
	result := "none"
	if advanced {
		result = "advanced"
	}
	m.Transcripts.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordWords counts matched and skipped words from one step.
func (m *Metrics) RecordWords(ctx context.Context, source string, matched, skipped int) {
	if matched > 0 {
		m.Words.Add(ctx, int64(matched), metric.WithAttributes(
			attribute.String("status", "matched"),
			attribute.String("source", source),
		))
	}
	if skipped > 0 {
		m.Words.Add(ctx, int64(skipped), metric.WithAttributes(
			attribute.String("status", "skipped"),
			attribute.String("source", source),
		))
	}
}

// RecordRestart counts one automatic recognizer restart attempt.
func (m *Metrics) RecordRestart(ctx context.Context, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.RecognizerRestarts.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordRecitation counts a finished pass and, when completed, its score.
func (m *Metrics) RecordRecitation(ctx context.Context, outcome string, sensitivity string, score int) {
	m.Recitations.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	if outcome == "completed" {
		m.Scores.Record(ctx, int64(score), metric.WithAttributes(attribute.String("sensitivity", sensitivity)))
	}
}

// RecordSynthesis records reading preparation latency.
func (m *Metrics) RecordSynthesis(ctx context.Context, elapsed time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.SynthesisDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attribute.String("status", status)))
}
