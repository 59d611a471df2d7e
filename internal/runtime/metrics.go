package runtime

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/components/metrics"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultMetricsNamespace prefixes every step event collector.
const DefaultMetricsNamespace = "stepflow"

const metricsSubsystem = "step_events"

// PublishMetrics tracks step event delivery statistics.
type PublishMetrics struct {
	mu sync.RWMutex

	destinations map[string]*DestinationMetrics

	publishedTotal  *prometheus.CounterVec
	failedTotal     *prometheus.CounterVec
	durationSeconds *prometheus.HistogramVec

	registered bool
}

// DestinationMetrics holds delivery counts for one destination.
type DestinationMetrics struct {
	Published       uint64    `json:"published"`
	Failed          uint64    `json:"failed"`
	LastPublishedAt time.Time `json:"last_published_at,omitempty"`
	LastFailedAt    time.Time `json:"last_failed_at,omitempty"`
}

// PublishMetricsSnapshot provides a point-in-time view of delivery metrics.
type PublishMetricsSnapshot struct {
	TotalPublished uint64                         `json:"total_published"`
	TotalFailed    uint64                         `json:"total_failed"`
	Destinations   map[string]*DestinationMetrics `json:"destinations"`
	CollectedAt    time.Time                      `json:"collected_at"`
}

// NewPublishMetrics creates the collectors under namespace, or
// DefaultMetricsNamespace when it is blank.
func NewPublishMetrics(namespace string) *PublishMetrics {
	if strings.TrimSpace(namespace) == "" {
		namespace = DefaultMetricsNamespace
	}
	labels := []string{"destination", "event_type"}

	return &PublishMetrics{
		destinations: make(map[string]*DestinationMetrics),
		publishedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: metricsSubsystem,
			Name:      "published_total",
			Help:      "Total number of step events accepted by the transport",
		}, labels),
		failedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: metricsSubsystem,
			Name:      "failed_total",
			Help:      "Total number of step events the transport rejected",
		}, labels),
		durationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: metricsSubsystem,
			Name:      "publish_duration_seconds",
			Help:      "Time spent handing a step event to the transport",
			Buckets:   prometheus.DefBuckets,
		}, []string{"destination"}),
	}
}

// Register registers the Prometheus collectors. Safe to call multiple times.
func (m *PublishMetrics) Register(registerer prometheus.Registerer) error {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	published, err := registerCollector(registerer, m.publishedTotal)
	if err != nil {
		return err
	}
	failed, err := registerCollector(registerer, m.failedTotal)
	if err != nil {
		return err
	}
	duration, err := registerCollector(registerer, m.durationSeconds)
	if err != nil {
		return err
	}
	m.publishedTotal = published
	m.failedTotal = failed
	m.durationSeconds = duration

	m.registered = true
	return nil
}

// registerCollector registers c, or returns the collector of the same type
// another PublishMetrics already registered under the same name.
func registerCollector[C prometheus.Collector](registerer prometheus.Registerer, c C) (C, error) {
	err := registerer.Register(c)
	if err == nil {
		return c, nil
	}
	var already prometheus.AlreadyRegisteredError
	if !errors.As(err, &already) {
		return c, err
	}
	existing, ok := already.ExistingCollector.(C)
	if !ok {
		return c, fmt.Errorf("metric collector already registered with a different type: %w", err)
	}
	return existing, nil
}

// RecordPublished records a delivered step event.
func (m *PublishMetrics) RecordPublished(destination, eventType string, took time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d := m.destination(destination)
	d.Published++
	d.LastPublishedAt = time.Now()

	m.publishedTotal.WithLabelValues(destination, eventType).Inc()
	m.durationSeconds.WithLabelValues(destination).Observe(took.Seconds())
}

// RecordFailed records a step event the transport rejected.
func (m *PublishMetrics) RecordFailed(destination, eventType string, took time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d := m.destination(destination)
	d.Failed++
	d.LastFailedAt = time.Now()

	m.failedTotal.WithLabelValues(destination, eventType).Inc()
	m.durationSeconds.WithLabelValues(destination).Observe(took.Seconds())
}

// Snapshot returns a point-in-time copy of all delivery counts.
func (m *PublishMetrics) Snapshot() PublishMetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := PublishMetricsSnapshot{
		Destinations: make(map[string]*DestinationMetrics, len(m.destinations)),
		CollectedAt:  time.Now(),
	}
	for name, d := range m.destinations {
		c := *d
		snapshot.Destinations[name] = &c
		snapshot.TotalPublished += d.Published
		snapshot.TotalFailed += d.Failed
	}
	return snapshot
}

func (m *PublishMetrics) destination(name string) *DestinationMetrics {
	if d, ok := m.destinations[name]; ok {
		return d
	}
	d := &DestinationMetrics{}
	m.destinations[name] = d
	return d
}

// Reset clears all metrics (useful for testing).
func (m *PublishMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.destinations = make(map[string]*DestinationMetrics)
	m.publishedTotal.Reset()
	m.failedTotal.Reset()
	m.durationSeconds.Reset()
}

// DecoratePublisher wraps a transport publisher with watermill's Prometheus
// publish-time metrics.
func DecoratePublisher(pub message.Publisher, registerer prometheus.Registerer, namespace string) (message.Publisher, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	if strings.TrimSpace(namespace) == "" {
		namespace = DefaultMetricsNamespace
	}
	builder := metrics.NewPrometheusMetricsBuilder(registerer, namespace, "transport")
	return builder.DecoratePublisher(pub)
}
