package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/stepflow/transport"
	"github.com/drblury/stepflow/transport/transporttest"
)

func TestRegisteredOnInit(t *testing.T) {
	assert.True(t, transport.DefaultRegistry.Has(TransportName))
	caps := transport.GetCapabilities(TransportName)
	assert.True(t, caps.HonorsRoutingKey())
}

func TestCapabilities(t *testing.T) {
	assert.Equal(t, transport.KafkaCapabilities, Capabilities())
}

func TestPartitionKey(t *testing.T) {
	msg := message.NewMessage("msg-1", nil)
	key, err := PartitionKey("domain-layer", msg)
	require.NoError(t, err)
	assert.Equal(t, "msg-1", key)

	msg.Metadata.Set(transport.MetadataRoutingKey, "AccountOpeningSaga:SAGA-12345")
	key, err = PartitionKey("domain-layer", msg)
	require.NoError(t, err)
	assert.Equal(t, "AccountOpeningSaga:SAGA-12345", key)
}

func TestBuild(t *testing.T) {
	t.Run("passes brokers and client id", func(t *testing.T) {
		original := PublisherFactory
		defer func() { PublisherFactory = original }()

		fake := &transporttest.Publisher{}
		PublisherFactory = func(cfg kafka.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
			assert.Equal(t, []string{"localhost:9092"}, cfg.Brokers)
			require.NotNil(t, cfg.OverwriteSaramaConfig)
			assert.Equal(t, "step-events", cfg.OverwriteSaramaConfig.ClientID)
			assert.NotNil(t, cfg.Marshaler)
			return fake, nil
		}

		pub, err := Build(context.Background(), &transporttest.Config{
			KafkaBrokers:  []string{"localhost:9092"},
			KafkaClientID: "step-events",
		}, watermill.NopLogger{})
		require.NoError(t, err)
		assert.Same(t, fake, pub)
	})

	t.Run("marshaler keys by routing key", func(t *testing.T) {
		original := PublisherFactory
		defer func() { PublisherFactory = original }()

		var marshaler kafka.Marshaler
		PublisherFactory = func(cfg kafka.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
			marshaler = cfg.Marshaler
			return &transporttest.Publisher{}, nil
		}

		_, err := Build(context.Background(), &transporttest.Config{KafkaBrokers: []string{"b:9092"}}, watermill.NopLogger{})
		require.NoError(t, err)

		msg := message.NewMessage("msg-1", []byte("{}"))
		msg.Metadata.Set(transport.MetadataRoutingKey, "TXN-12345")
		produced, err := marshaler.Marshal("domain-layer", msg)
		require.NoError(t, err)
		require.NotNil(t, produced.Key)
		key, err := produced.Key.Encode()
		require.NoError(t, err)
		assert.Equal(t, "TXN-12345", string(key))
	})

	t.Run("requires brokers", func(t *testing.T) {
		_, err := Build(context.Background(), &transporttest.Config{}, watermill.NopLogger{})
		assert.ErrorIs(t, err, ErrNoBrokers)
	})

	t.Run("returns factory error", func(t *testing.T) {
		original := PublisherFactory
		defer func() { PublisherFactory = original }()

		PublisherFactory = func(cfg kafka.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
			return nil, errors.New("publisher error")
		}

		_, err := Build(context.Background(), &transporttest.Config{KafkaBrokers: []string{"b:9092"}}, watermill.NopLogger{})
		assert.EqualError(t, err, "publisher error")
	})
}
