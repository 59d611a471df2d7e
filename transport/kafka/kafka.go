// Package kafka provides a Kafka transport for step events. The routing key
// becomes the Kafka message key, so all events of one saga share a partition.
package kafka

import (
	"context"
	"errors"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/stepflow/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "kafka"

// ErrNoBrokers is returned when no broker address is configured.
var ErrNoBrokers = errors.New("kafka: at least one broker is required")

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(cfg kafka.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return kafka.NewPublisher(cfg, logger)
}

func init() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.KafkaCapabilities)
}

// PartitionKey returns the routing key carried in the message metadata,
// falling back to the message UUID.
func PartitionKey(topic string, msg *message.Message) (string, error) {
	if key := msg.Metadata.Get(transport.MetadataRoutingKey); key != "" {
		return key, nil
	}
	return msg.UUID, nil
}

// Build creates a new Kafka publisher.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (message.Publisher, error) {
	brokers := cfg.GetKafkaBrokers()
	if len(brokers) == 0 {
		return nil, ErrNoBrokers
	}

	saramaConfig := kafka.DefaultSaramaSyncPublisherConfig()
	if clientID := cfg.GetKafkaClientID(); clientID != "" {
		saramaConfig.ClientID = clientID
	}

	return PublisherFactory(
		kafka.PublisherConfig{
			Brokers:               brokers,
			Marshaler:             kafka.NewWithPartitioningMarshaler(PartitionKey),
			OverwriteSaramaConfig: saramaConfig,
		},
		logger,
	)
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.KafkaCapabilities
}
