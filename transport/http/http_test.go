package http

import (
	"context"
	"errors"
	nethttp "net/http"
	"net/http/httptest"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	watermillhttp "github.com/ThreeDotsLabs/watermill-http/v2/pkg/http"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/stepflow/transport"
	"github.com/drblury/stepflow/transport/transporttest"
)

func TestRegisteredOnInit(t *testing.T) {
	assert.True(t, transport.DefaultRegistry.Has(TransportName))
	assert.Equal(t, transport.HTTPCapabilities, transport.GetCapabilities(TransportName))
}

func TestCapabilities(t *testing.T) {
	assert.Equal(t, "http", Capabilities().Name)
}

func TestEndpointURL(t *testing.T) {
	assert.Equal(t, "http://localhost:8080/domain-layer", EndpointURL("http://localhost:8080", "domain-layer"))
	assert.Equal(t, "http://localhost:8080/events/domain-layer", EndpointURL("http://localhost:8080/events/", "/domain-layer"))
}

func TestBuild(t *testing.T) {
	t.Run("marshals to base url plus topic", func(t *testing.T) {
		original := PublisherFactory
		defer func() { PublisherFactory = original }()

		var marshal watermillhttp.MarshalMessageFunc
		fake := &transporttest.Publisher{}
		PublisherFactory = func(config watermillhttp.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
			marshal = config.MarshalMessageFunc
			return fake, nil
		}

		pub, err := Build(context.Background(), &transporttest.Config{HTTPPublisherURL: "http://localhost:8080/"}, watermill.NopLogger{})
		require.NoError(t, err)
		assert.Same(t, fake, pub)

		req, err := marshal("domain-layer", message.NewMessage("msg-1", []byte("{}")))
		require.NoError(t, err)
		assert.Equal(t, nethttp.MethodPost, req.Method)
		assert.Equal(t, "http://localhost:8080/domain-layer", req.URL.String())
	})

	t.Run("requires url", func(t *testing.T) {
		_, err := Build(context.Background(), &transporttest.Config{}, watermill.NopLogger{})
		assert.ErrorIs(t, err, ErrNoURL)
	})

	t.Run("returns factory error", func(t *testing.T) {
		original := PublisherFactory
		defer func() { PublisherFactory = original }()

		PublisherFactory = func(config watermillhttp.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
			return nil, errors.New("bad config")
		}

		_, err := Build(context.Background(), &transporttest.Config{HTTPPublisherURL: "http://x"}, watermill.NopLogger{})
		assert.EqualError(t, err, "bad config")
	})
}

func TestPublishesToServer(t *testing.T) {
	received := make(chan string, 1)
	srv := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		received <- r.URL.Path
		w.WriteHeader(nethttp.StatusOK)
	}))
	defer srv.Close()

	pub, err := Build(context.Background(), &transporttest.Config{HTTPPublisherURL: srv.URL}, watermill.NopLogger{})
	require.NoError(t, err)
	defer pub.Close()

	require.NoError(t, pub.Publish("domain-layer", message.NewMessage(watermill.NewUUID(), []byte(`{"saga_id":"1"}`))))
	assert.Equal(t, "/domain-layer", <-received)
}
