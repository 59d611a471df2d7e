package runtime

import (
	"context"
	"os"

	configpkg "github.com/drblury/stepflow/internal/runtime/config"
	errspkg "github.com/drblury/stepflow/internal/runtime/errors"
	loggingpkg "github.com/drblury/stepflow/internal/runtime/logging"
)

// NewStepEventPublisher wires the bridge the way an application expects it
// from configuration. Disabled step events yield a NopStepEventPublisher.
func NewStepEventPublisher(ctx context.Context, conf *configpkg.Config, provider PublisherProvider, logger loggingpkg.ServiceLogger) (StepEventPublisher, error) {
	if conf == nil {
		return nil, errspkg.ErrConfigRequired
	}
	if logger == nil {
		return nil, errspkg.ErrLoggerRequired
	}

	if !conf.StepEventsEnabled() {
		logger.Info("Step events disabled; step events will be dropped", nil)
		return NopStepEventPublisher{}, nil
	}
	if provider == nil {
		return nil, errspkg.ErrPublisherFactoryRequired
	}

	topic := conf.StepEventsTopic()
	logger.Info("Configuring step event bridge", loggingpkg.LogFields{"topic": topic})

	publisher, err := provider.Default(ctx)
	if err != nil {
		return nil, err
	}
	return NewBridge(topic, publisher)
}

// Bootstrap validates conf, builds a PublisherFactory and the bridge on top of
// it. The returned close function releases every transport the factory opened.
// A nil logger is built from the configured log format and level.
func Bootstrap(ctx context.Context, conf *configpkg.Config, logger loggingpkg.ServiceLogger, opts ...FactoryOption) (StepEventPublisher, func() error, error) {
	if conf == nil {
		return nil, nil, errspkg.ErrConfigRequired
	}
	if err := conf.Validate(); err != nil {
		return nil, nil, err
	}
	if logger == nil {
		logger = loggingpkg.NewServiceLogger(conf.LogFormat, conf.LogLevel, os.Stdout)
	}

	factory, err := NewPublisherFactory(conf, logger, opts...)
	if err != nil {
		return nil, nil, err
	}

	publisher, err := NewStepEventPublisher(ctx, conf, factory, logger)
	if err != nil {
		_ = factory.Close()
		return nil, nil, err
	}
	return publisher, factory.Close, nil
}
