package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	configpkg "github.com/drblury/stepflow/internal/runtime/config"
	errspkg "github.com/drblury/stepflow/internal/runtime/errors"
	loggingpkg "github.com/drblury/stepflow/internal/runtime/logging"
	"github.com/drblury/stepflow/transport"
)

// DefaultPubSubSystem is used when the configuration names no transport.
const DefaultPubSubSystem = "channel"

// PublisherProvider hands out the EventPublisher the bridge should use.
type PublisherProvider interface {
	Default(ctx context.Context) (EventPublisher, error)
}

// FactoryOption configures a PublisherFactory.
type FactoryOption func(*PublisherFactory)

// WithRegistry builds transports from registry instead of transport.DefaultRegistry.
func WithRegistry(registry *transport.Registry) FactoryOption {
	return func(f *PublisherFactory) {
		if registry != nil {
			f.registry = registry
		}
	}
}

// WithRegisterer registers metrics with registerer instead of the Prometheus default.
func WithRegisterer(registerer prometheus.Registerer) FactoryOption {
	return func(f *PublisherFactory) {
		if registerer != nil {
			f.registerer = registerer
		}
	}
}

// WithPublishHooks installs hooks on every gateway the factory builds.
func WithPublishHooks(hooks PublishHooks) FactoryOption {
	return func(f *PublisherFactory) {
		f.hooks = f.hooks.Merge(hooks)
	}
}

// PublisherFactory builds one Gateway per transport name on first use and
// caches it. Publishers registered by the application take precedence.
type PublisherFactory struct {
	conf       *configpkg.Config
	logger     loggingpkg.ServiceLogger
	registry   *transport.Registry
	registerer prometheus.Registerer
	hooks      PublishHooks
	metrics    *PublishMetrics

	mu         sync.Mutex
	publishers map[string]EventPublisher
	closed     bool
}

// NewPublisherFactory returns a factory for conf. Transports report their own
// configuration errors when they are first built.
func NewPublisherFactory(conf *configpkg.Config, logger loggingpkg.ServiceLogger, opts ...FactoryOption) (*PublisherFactory, error) {
	if conf == nil {
		return nil, errspkg.ErrConfigRequired
	}
	if logger == nil {
		return nil, errspkg.ErrLoggerRequired
	}

	f := &PublisherFactory{
		conf:       conf,
		logger:     logger,
		registry:   transport.DefaultRegistry,
		registerer: prometheus.DefaultRegisterer,
		publishers: make(map[string]EventPublisher),
	}
	for _, opt := range opts {
		opt(f)
	}

	if conf.MetricsEnabled {
		f.metrics = NewPublishMetrics(conf.MetricsNamespace)
		if err := f.metrics.Register(f.registerer); err != nil {
			return nil, fmt.Errorf("register step event metrics: %w", err)
		}
		f.hooks = f.hooks.Merge(MetricsHooks(f.metrics))
	}
	return f, nil
}

// Metrics returns the delivery metrics, or nil when metrics are disabled.
func (f *PublisherFactory) Metrics() *PublishMetrics {
	return f.metrics
}

// DefaultName is the configured transport name, falling back to DefaultPubSubSystem.
func (f *PublisherFactory) DefaultName() string {
	if name := f.conf.GetPubSubSystem(); name != "" {
		return name
	}
	return DefaultPubSubSystem
}

// Default returns the publisher for the configured transport.
func (f *PublisherFactory) Default(ctx context.Context) (EventPublisher, error) {
	return f.Get(ctx, f.DefaultName())
}

// Get returns the publisher registered or built under name.
func (f *PublisherFactory) Get(ctx context.Context, name string) (EventPublisher, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name = configpkg.NormalizePubSubSystem(name)
	if f.closed {
		return nil, errspkg.ErrFactoryClosed
	}
	if pub, ok := f.publishers[name]; ok {
		return pub, nil
	}
	if !f.registry.Has(name) {
		return nil, fmt.Errorf("%w: %q (registered: %v)", errspkg.ErrUnknownPublisher, name, f.registry.Names())
	}

	pub, err := f.build(ctx, name)
	if err != nil {
		return nil, err
	}
	f.publishers[name] = pub
	return pub, nil
}

func (f *PublisherFactory) build(ctx context.Context, name string) (EventPublisher, error) {
	logger := f.logger.With(loggingpkg.LogFields{"transport": name})

	handle, err := f.registry.BuildNamed(ctx, name, f.conf, loggingpkg.NewWatermillAdapter(logger))
	if err != nil {
		return nil, err
	}

	pub := handle.Publisher
	if f.conf.MetricsEnabled {
		decorated, err := DecoratePublisher(pub, f.registerer, f.conf.MetricsNamespace)
		if err != nil {
			_ = handle.Close()
			return nil, fmt.Errorf("decorate %s publisher: %w", name, err)
		}
		pub = decorated
	}

	opts := []GatewayOption{WithHooks(f.hooks)}
	if source := f.conf.StepEvents.CloudEventsSource; source != "" {
		opts = append(opts, WithCloudEvents(source))
	}

	gateway, err := NewGateway(pub, logger, opts...)
	if err != nil {
		_ = handle.Close()
		return nil, err
	}

	logger.Info("Step event publisher ready", loggingpkg.LogFields{
		"partitioned": handle.Capabilities.HonorsRoutingKey(),
		"durable":     handle.Capabilities.Durable,
	})
	return gateway, nil
}

// Register makes publisher available under name. A cached publisher it
// replaces is closed.
func (f *PublisherFactory) Register(name string, publisher EventPublisher) error {
	if publisher == nil {
		return errspkg.ErrPublisherRequired
	}
	name = configpkg.NormalizePubSubSystem(name)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return errspkg.ErrFactoryClosed
	}
	if closer, ok := f.publishers[name].(io.Closer); ok {
		if same, _ := publisher.(io.Closer); same != closer {
			if err := closer.Close(); err != nil {
				return fmt.Errorf("close replaced %s publisher: %w", name, err)
			}
		}
	}
	f.publishers[name] = publisher
	return nil
}

// Names returns the names of the publishers built or registered so far.
func (f *PublisherFactory) Names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	names := make([]string, 0, len(f.publishers))
	for name := range f.publishers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close closes every cached publisher that can be closed.
func (f *PublisherFactory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}
	f.closed = true

	var errs []error
	for name, pub := range f.publishers {
		closer, ok := pub.(io.Closer)
		if !ok {
			continue
		}
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s publisher: %w", name, err))
		}
	}
	f.publishers = make(map[string]EventPublisher)
	return errors.Join(errs...)
}
