package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics. A nil *Metrics records nothing.
type Metrics struct {
	RequestCounter      metric.Int64Counter
	RequestDuration     metric.Float64Histogram
	PostsPublished      metric.Int64Counter
	PostsFailed         metric.Int64Counter
	GenerationRuns      metric.Int64Counter
	ScrapeDuration      metric.Float64Histogram
	CircuitBreakerState metric.Int64Counter
	StoreOperations     metric.Int64Counter
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("clicksprout")

	requestCounter, err := meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	postsPublished, err := meter.Int64Counter(
		"posts.published.total",
		metric.WithDescription("Posts published to a platform"),
	)
	if err != nil {
		return nil, err
	}

	postsFailed, err := meter.Int64Counter(
		"posts.failed.total",
		metric.WithDescription("Failed platform publish attempts"),
	)
	if err != nil {
		return nil, err
	}

	generationRuns, err := meter.Int64Counter(
		"generation.runs.total",
		metric.WithDescription("Content generation runs by source"),
	)
	if err != nil {
		return nil, err
	}

	scrapeDuration, err := meter.Float64Histogram(
		"scrape.duration",
		metric.WithDescription("Product page scrape duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	circuitBreakerState, err := meter.Int64Counter(
		"circuit_breaker.state_changes",
		metric.WithDescription("Circuit breaker state changes"),
	)
	if err != nil {
		return nil, err
	}

	storeOperations, err := meter.Int64Counter(
		"store.operations.total",
		metric.WithDescription("Total store operations"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCounter:      requestCounter,
		RequestDuration:     requestDuration,
		PostsPublished:      postsPublished,
		PostsFailed:         postsFailed,
		GenerationRuns:      generationRuns,
		ScrapeDuration:      scrapeDuration,
		CircuitBreakerState: circuitBreakerState,
		StoreOperations:     storeOperations,
	}, nil
}

// RecordRequest records HTTP request metrics
func (m *Metrics) RecordRequest(method, path, status string, duration float64) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("http.status", status),
	}

	m.RequestCounter.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.RequestDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordPublish records one platform publish attempt
func (m *Metrics) RecordPublish(platform string, success bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("platform", platform))
	if success {
		m.PostsPublished.Add(context.Background(), 1, attrs)
		return
	}
	m.PostsFailed.Add(context.Background(), 1, attrs)
}

// RecordGeneration records which strategy produced generated content
func (m *Metrics) RecordGeneration(source, kind string) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("generation.source", source),
		attribute.String("generation.type", kind),
	}

	m.GenerationRuns.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

// RecordScrape records scrape duration and whether the placeholder was used
func (m *Metrics) RecordScrape(duration float64, fallback bool) {
	if m == nil {
		return
	}
	m.ScrapeDuration.Record(context.Background(), duration, metric.WithAttributes(attribute.Bool("scrape.fallback", fallback)))
}

// RecordCircuitBreakerState records circuit breaker state changes
func (m *Metrics) RecordCircuitBreakerState(service, state string) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("service", service),
		attribute.String("state", state),
	}

	m.CircuitBreakerState.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

// RecordStoreOperation records store operation metrics
func (m *Metrics) RecordStoreOperation(operation, table string, success bool) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("store.operation", operation),
		attribute.String("store.table", table),
		attribute.Bool("store.success", success),
	}

	m.StoreOperations.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}
