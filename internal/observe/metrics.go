// Package observe provides application-wide observability primitives for
// bluethai: OpenTelemetry metrics, tracing, trace-aware logging and HTTP
// middleware for the admin listener.
//
// Metrics are recorded through the OpenTelemetry Metrics API. [InitProvider]
// bridges them to a Prometheus exporter so they can be scraped from /metrics.
// [DefaultMetrics] returns a package-level instance; tests should use
// [NewMetrics] with their own [metric.MeterProvider] to avoid cross-test
// pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all bluethai metrics.
const meterName = "github.com/Pavlo4242/bluethai"

// Translation outcome values for the "status" attribute of
// [Metrics.Translations].
const (
	StatusOK         = "ok"
	StatusError      = "error"
	StatusSuperseded = "superseded"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// TranslationDuration tracks time from stream start to the final chunk.
	TranslationDuration metric.Float64Histogram

	// TranslationFirstChunk tracks time from stream start to the first chunk.
	TranslationFirstChunk metric.Float64Histogram

	// TTSDuration tracks text-to-speech synthesis latency.
	TTSDuration metric.Float64Histogram

	// Translations counts finished streams. Use with attribute:
	//   attribute.String("status", StatusOK|StatusError|StatusSuperseded)
	Translations metric.Int64Counter

	// RecognitionEvents counts speech recognition events. Use with attribute:
	//   attribute.String("kind", ...)
	RecognitionEvents metric.Int64Counter

	// EntriesPersisted counts translation entries written to the store.
	EntriesPersisted metric.Int64Counter

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// ActiveStreams tracks the number of live translation streams.
	ActiveStreams metric.Int64UpDownCounter

	// HTTPRequestDuration tracks admin HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for
// streaming translation and speech synthesis.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 0.75, 1, 1.5, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider].
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.TranslationDuration, err = m.Float64Histogram("bluethai.translation.duration",
		metric.WithDescription("Latency of a complete streamed translation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranslationFirstChunk, err = m.Float64Histogram("bluethai.translation.first_chunk",
		metric.WithDescription("Latency until the first translated chunk arrives."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = m.Float64Histogram("bluethai.tts.duration",
		metric.WithDescription("Latency of text-to-speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.Translations, err = m.Int64Counter("bluethai.translations",
		metric.WithDescription("Finished translation streams by status."),
	); err != nil {
		return nil, err
	}
	if met.RecognitionEvents, err = m.Int64Counter("bluethai.recognition.events",
		metric.WithDescription("Speech recognition events by kind."),
	); err != nil {
		return nil, err
	}
	if met.EntriesPersisted, err = m.Int64Counter("bluethai.entries.persisted",
		metric.WithDescription("Translation entries saved to the conversation store."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("bluethai.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("bluethai.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	if met.ActiveStreams, err = m.Int64UpDownCounter("bluethai.active_streams",
		metric.WithDescription("Number of live translation streams."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("bluethai.http.request.duration",
		metric.WithDescription("Admin HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Panics if instrument creation
// fails.
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

// Attr is a convenience alias for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordProviderRequest records a provider request with the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError records a provider error.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordTranslation records a finished stream with its total duration.
// Superseded streams are counted but their duration is not observed.
func (m *Metrics) RecordTranslation(ctx context.Context, status string, elapsed time.Duration) {
	m.Translations.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	if status != StatusSuperseded {
		m.TranslationDuration.Record(ctx, elapsed.Seconds())
	}
}

// RecordRecognitionEvent counts one speech recognition event of the given kind.
func (m *Metrics) RecordRecognitionEvent(ctx context.Context, kind string) {
	m.RecognitionEvents.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordSynthesis records one spoken utterance from synthesis start to the
// end of playback.
func (m *Metrics) RecordSynthesis(ctx context.Context, provider string, elapsed time.Duration) {
	m.TTSDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attribute.String("provider", provider)))
}
