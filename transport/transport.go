// Package transport defines how step event publishers are built for each
// message broker. Every broker lives in its own sub-package and registers a
// Builder with the registry from init().
package transport

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// MetadataRoutingKey is the message metadata key transports read the routing
// key from (Kafka partition key, for example).
const MetadataRoutingKey = "routing_key"

// Builder is the function signature for creating a publisher from config.
type Builder func(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (message.Publisher, error)

// Config provides the configuration values needed by transports.
// Transports read only the keys they need without depending on the full
// config package.
type Config interface {
	// GetPubSubSystem returns the transport name.
	GetPubSubSystem() string

	// Kafka
	GetKafkaBrokers() []string
	GetKafkaClientID() string

	// RabbitMQ
	GetRabbitMQURL() string

	// NATS and JetStream
	GetNATSURL() string
	GetJetStreamStream() string

	// HTTP
	GetHTTPPublisherURL() string

	// AWS
	GetAWSRegion() string
	GetAWSAccountID() string
	GetAWSAccessKeyID() string
	GetAWSSecretAccessKey() string
	GetAWSEndpoint() string
}

// CapabilitiesProvider is implemented by publishers that can report their capabilities.
type CapabilitiesProvider interface {
	Capabilities() Capabilities
}

// PublisherHandle is a built publisher together with the transport it came from.
type PublisherHandle struct {
	Name         string
	Publisher    message.Publisher
	Capabilities Capabilities
}

// Close releases the underlying publisher. A zero handle closes cleanly.
func (h PublisherHandle) Close() error {
	if h.Publisher == nil {
		return nil
	}
	return h.Publisher.Close()
}
