// Package jetstream provides a NATS JetStream transport for step events.
// Events are stored in one stream; each destination is a subject below it.
package jetstream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/nats-io/nats.go"

	"github.com/drblury/stepflow/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "nats-jetstream"

const (
	// DefaultStreamName is used when no stream is configured.
	DefaultStreamName = "STEP_EVENTS"

	// DefaultMaxAge bounds how long events are retained.
	DefaultMaxAge = 7 * 24 * time.Hour

	// DefaultDuplicateWindow is how long JetStream remembers message IDs.
	DefaultDuplicateWindow = 2 * time.Minute
)

// ErrClosed is returned when publishing on a closed publisher.
var ErrClosed = errors.New("jetstream: publisher is closed")

// JetStream is the subset of nats.JetStreamContext the publisher needs.
type JetStream interface {
	PublishMsg(m *nats.Msg, opts ...nats.PubOpt) (*nats.PubAck, error)
	AddStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	UpdateStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error)
}

// Connect allows overriding the NATS connection for testing. The returned
// close function releases the connection.
var Connect = func(url string) (JetStream, func(), error) {
	nc, err := nats.Connect(url, nats.Name("stepflow-step-events"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}
	return js, nc.Close, nil
}

func init() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.NATSJetStreamCapabilities)
}

// Build creates a new JetStream publisher and makes sure its stream exists.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return New(Config{
		URL:        cfg.GetNATSURL(),
		StreamName: cfg.GetJetStreamStream(),
	}, logger)
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.NATSJetStreamCapabilities
}

// Config holds JetStream-specific configuration.
type Config struct {
	// URL is the NATS server URL.
	URL string

	// StreamName is the JetStream stream holding all step events.
	StreamName string

	// MaxAge bounds retention. Zero means DefaultMaxAge.
	MaxAge time.Duration

	// DuplicateWindow is the deduplication horizon. Zero means DefaultDuplicateWindow.
	DuplicateWindow time.Duration

	// Replicas is the number of stream replicas (for clustering).
	Replicas int
}

func (c Config) withDefaults() Config {
	if c.StreamName == "" {
		c.StreamName = DefaultStreamName
	}
	if c.MaxAge <= 0 {
		c.MaxAge = DefaultMaxAge
	}
	if c.DuplicateWindow <= 0 {
		c.DuplicateWindow = DefaultDuplicateWindow
	}
	if c.Replicas <= 0 {
		c.Replicas = 1
	}
	return c
}

// Publisher implements message.Publisher on top of JetStream.
type Publisher struct {
	js      JetStream
	release func()
	config  Config
	logger  watermill.LoggerAdapter

	mu     sync.RWMutex
	closed bool
}

// New connects to NATS and returns a publisher for the configured stream.
func New(cfg Config, logger watermill.LoggerAdapter) (*Publisher, error) {
	js, release, err := Connect(cfg.URL)
	if err != nil {
		return nil, err
	}
	p, err := NewWithJetStream(js, cfg, logger)
	if err != nil {
		release()
		return nil, err
	}
	p.release = release
	return p, nil
}

// NewWithJetStream returns a publisher over an existing JetStream context.
func NewWithJetStream(js JetStream, cfg Config, logger watermill.LoggerAdapter) (*Publisher, error) {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	p := &Publisher{
		js:     js,
		config: cfg.withDefaults(),
		logger: logger,
	}
	if err := p.ensureStream(); err != nil {
		return nil, fmt.Errorf("failed to ensure stream: %w", err)
	}
	return p, nil
}

func (p *Publisher) streamConfig() *nats.StreamConfig {
	return &nats.StreamConfig{
		Name:       p.config.StreamName,
		Subjects:   []string{p.config.StreamName + ".>"},
		Retention:  nats.LimitsPolicy,
		MaxAge:     p.config.MaxAge,
		Duplicates: p.config.DuplicateWindow,
		Replicas:   p.config.Replicas,
	}
}

func (p *Publisher) ensureStream() error {
	streamCfg := p.streamConfig()
	if _, err := p.js.AddStream(streamCfg); err == nil {
		return nil
	}
	if _, err := p.js.UpdateStream(streamCfg); err != nil {
		return err
	}
	p.logger.Debug("JetStream stream updated", watermill.LogFields{"stream": p.config.StreamName})
	return nil
}

// Subject returns the JetStream subject for a destination.
func (p *Publisher) Subject(topic string) string {
	return p.config.StreamName + "." + topic
}

// Publish stores messages in the stream. The message UUID doubles as the
// JetStream message ID, so retries inside the duplicate window are dropped.
func (p *Publisher) Publish(topic string, messages ...*message.Message) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	subject := p.Subject(topic)
	for _, msg := range messages {
		headers := nats.Header{}
		for k, v := range msg.Metadata {
			headers.Set(k, v)
		}
		headers.Set(nats.MsgIdHdr, msg.UUID)

		ack, err := p.js.PublishMsg(&nats.Msg{
			Subject: subject,
			Data:    msg.Payload,
			Header:  headers,
		})
		if err != nil {
			return fmt.Errorf("failed to publish to JetStream: %w", err)
		}
		if ack != nil && ack.Duplicate {
			p.logger.Debug("JetStream dropped duplicate step event", watermill.LogFields{
				"subject":    subject,
				"message_id": msg.UUID,
			})
		}
	}
	return nil
}

// Close marks the publisher closed and releases the connection it owns.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if p.release != nil {
		p.release()
	}
	return nil
}

// Capabilities returns the JetStream transport capabilities.
func (p *Publisher) Capabilities() transport.Capabilities {
	return transport.NATSJetStreamCapabilities
}
