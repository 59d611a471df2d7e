package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errspkg "github.com/drblury/stepflow/internal/runtime/errors"
)

const testDefaultTopic = "domain-layer"

type publishCall struct {
	ctx         context.Context
	payload     any
	destination string
	headers     Headers
}

type recordingEventPublisher struct {
	mu    sync.Mutex
	calls []publishCall
	err   error
}

func (p *recordingEventPublisher) Publish(ctx context.Context, payload any, destination string, headers Headers) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, publishCall{ctx: ctx, payload: payload, destination: destination, headers: headers})
	return p.err
}

func (p *recordingEventPublisher) only(t *testing.T) publishCall {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	require.Len(t, p.calls, 1)
	return p.calls[0]
}

type moneyTransferStepPayload struct {
	TransactionID string
	FromAccount   string
	ToAccount     string
	Amount        string
	Currency      string
	Status        string
}

type fraudCheckStepPayload struct {
	TransactionID string
	CheckType     string
	Result        string
	Reason        string
	RiskScore     float64
}

var fixedNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func newTestBridge(t *testing.T, pub EventPublisher) *Bridge {
	t.Helper()
	b, err := NewBridge(testDefaultTopic, pub, WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	return b
}

func newStepEvent(sagaName, sagaID, eventType, key string, payload any) *StepEventEnvelope {
	completed := fixedNow.Add(-time.Second)
	return &StepEventEnvelope{
		SagaName:    sagaName,
		SagaID:      sagaID,
		StepID:      "step-1",
		Type:        eventType,
		Key:         key,
		Payload:     payload,
		Headers:     Headers{},
		Attempts:    1,
		LatencyMs:   250,
		StartedAt:   completed.Add(-250 * time.Millisecond),
		CompletedAt: completed,
		ResultType:  ResultSuccess,
	}
}

func TestNewBridge(t *testing.T) {
	t.Run("requires a publisher", func(t *testing.T) {
		_, err := NewBridge("topic", nil)
		assert.ErrorIs(t, err, errspkg.ErrPublisherRequired)
	})

	t.Run("blank topic falls back to default", func(t *testing.T) {
		b, err := NewBridge("  ", &recordingEventPublisher{})
		require.NoError(t, err)
		assert.Equal(t, "domain-layer", b.DefaultTopic())
	})

	t.Run("keeps configured topic", func(t *testing.T) {
		b, err := NewBridge("step-events", &recordingEventPublisher{})
		require.NoError(t, err)
		assert.Equal(t, "step-events", b.DefaultTopic())
	})
}

func TestPublishMoneyTransferStepEvent(t *testing.T) {
	pub := &recordingEventPublisher{}
	bridge := newTestBridge(t, pub)

	payload := moneyTransferStepPayload{
		TransactionID: "TXN-12345",
		FromAccount:   "ACC-001",
		ToAccount:     "ACC-002",
		Amount:        "1000.00",
		Currency:      "USD",
		Status:        "COMPLETED",
	}
	env := newStepEvent("MoneyTransferSaga", "SAGA-67890", "transfer.step.completed", "TXN-12345", payload)

	require.NoError(t, bridge.Publish(context.Background(), env))

	call := pub.only(t)
	assert.Equal(t, testDefaultTopic, call.destination)
	assert.Same(t, env, call.payload)

	h := call.headers
	assert.Equal(t, "MoneyTransferSaga", h[HeaderSagaName])
	assert.Equal(t, "SAGA-67890", h[HeaderSagaID])
	assert.Equal(t, "transfer.step.completed", h[HeaderStepType])
	assert.Equal(t, 1, h[HeaderAttempts])
	assert.Equal(t, int64(250), h[HeaderLatencyMs])
	assert.Equal(t, env.StartedAt, h[HeaderStartedAt])
	assert.Equal(t, env.CompletedAt, h[HeaderCompletedAt])
	assert.Equal(t, "SUCCESS", h[HeaderResultType])
	assert.Equal(t, fixedNow, h[HeaderTimestamp])
	assert.Equal(t, "TXN-12345", h[HeaderRoutingKey])
	assert.Equal(t, "transfer.step.completed", h[HeaderEventType])

	assert.Equal(t, "TXN-12345", env.Key, "a supplied key must not change")
}

func TestPublishDerivesRoutingKeyWhenMissing(t *testing.T) {
	pub := &recordingEventPublisher{}
	bridge := newTestBridge(t, pub)

	env := newStepEvent("AccountOpeningSaga", "SAGA-12345", "account.validation.completed", "", "Account validation successful")

	require.NoError(t, bridge.Publish(context.Background(), env))

	call := pub.only(t)
	assert.Equal(t, "AccountOpeningSaga:SAGA-12345", call.headers[HeaderRoutingKey])
	assert.Equal(t, "AccountOpeningSaga:SAGA-12345", env.Key)
}

func TestPublishUsesDefaultTopicWhenTopicMissing(t *testing.T) {
	pub := &recordingEventPublisher{}
	bridge := newTestBridge(t, pub)

	env := newStepEvent("LoanApprovalSaga", "SAGA-54321", "loan.credit.check.completed", "LOAN-98765", "Credit check passed")

	require.NoError(t, bridge.Publish(context.Background(), env))
	assert.Equal(t, testDefaultTopic, pub.only(t).destination)
}

func TestPublishRetriedFailureWithExplicitTopic(t *testing.T) {
	pub := &recordingEventPublisher{}
	bridge := newTestBridge(t, pub)

	env := &StepEventEnvelope{
		SagaName: "FraudDetectionSaga",
		SagaID:   "SAGA-FRAUD-001",
		StepID:   "step-fraud-check",
		Topic:    "banking-fraud-events",
		Type:     "fraud.check.failed",
		Key:      "TXN-99999",
		Payload: fraudCheckStepPayload{
			TransactionID: "TXN-99999",
			CheckType:     "FRAUD_CHECK",
			Result:        "FAILED",
			Reason:        "Suspicious transaction pattern detected",
			RiskScore:     85.5,
		},
		Headers: Headers{
			"source":      "fraud-detection-service",
			"priority":    "high",
			"alert-level": "critical",
		},
		Attempts:    3,
		LatencyMs:   1200,
		StartedAt:   fixedNow.Add(-1200 * time.Millisecond),
		CompletedAt: fixedNow,
		ResultType:  ResultFailure,
	}

	require.NoError(t, bridge.Publish(context.Background(), env))

	call := pub.only(t)
	assert.Equal(t, "banking-fraud-events", call.destination)

	h := call.headers
	assert.Equal(t, "fraud.check.failed", h[HeaderStepType])
	assert.Equal(t, "TXN-99999", h[HeaderRoutingKey])
	assert.Equal(t, 3, h[HeaderAttempts])
	assert.Equal(t, int64(1200), h[HeaderLatencyMs])
	assert.Equal(t, "FAILURE", h[HeaderResultType])
	assert.Equal(t, "fraud-detection-service", h["source"])
	assert.Equal(t, "high", h["priority"])
	assert.Equal(t, "critical", h["alert-level"])
}

func TestPublishWithNilHeaders(t *testing.T) {
	pub := &recordingEventPublisher{}
	bridge := newTestBridge(t, pub)

	env := newStepEvent("SimpleTransferSaga", "SAGA-SIMPLE-001", "transfer.initiated", "TXN-SIMPLE-001", "Transfer initiated")
	env.Headers = nil

	require.NoError(t, bridge.Publish(context.Background(), env))

	h := pub.only(t).headers
	require.NotNil(t, h)
	assert.Equal(t, 1, h[HeaderAttempts])
	assert.Equal(t, "SimpleTransferSaga", h[HeaderSagaName])
	for _, key := range []string{
		HeaderSagaName, HeaderSagaID, HeaderStepType, HeaderAttempts, HeaderLatencyMs,
		HeaderStartedAt, HeaderCompletedAt, HeaderResultType, HeaderTimestamp,
		HeaderRoutingKey, HeaderEventType,
	} {
		assert.Contains(t, h, key)
	}
	assert.Len(t, h, 11)
}

func TestDerivedHeadersOverrideCallerHeaders(t *testing.T) {
	pub := &recordingEventPublisher{}
	bridge := newTestBridge(t, pub)

	env := newStepEvent("OrderSaga", "SAGA-1", "order.reserved", "", nil)
	env.Headers = Headers{
		HeaderSagaName:   "spoofed",
		HeaderAttempts:   99,
		HeaderTimestamp:  "yesterday",
		HeaderRoutingKey: "spoofed-key",
		HeaderEventType:  "spoofed.type",
		"tenant":         "acme",
	}

	require.NoError(t, bridge.Publish(context.Background(), env))

	h := pub.only(t).headers
	assert.Equal(t, "OrderSaga", h[HeaderSagaName])
	assert.Equal(t, 1, h[HeaderAttempts])
	assert.Equal(t, fixedNow, h[HeaderTimestamp])
	assert.Equal(t, "OrderSaga:SAGA-1", h[HeaderRoutingKey])
	assert.Equal(t, "order.reserved", h[HeaderEventType])
	assert.Equal(t, "acme", h["tenant"])

	assert.Equal(t, "spoofed", env.Headers[HeaderSagaName], "caller headers must not be modified")
}

func TestPublishDoesNotAliasCallerHeaders(t *testing.T) {
	pub := &recordingEventPublisher{}
	bridge := newTestBridge(t, pub)

	env := newStepEvent("OrderSaga", "SAGA-2", "order.shipped", "ORD-2", nil)
	env.Headers = Headers{"tenant": "acme"}

	require.NoError(t, bridge.Publish(context.Background(), env))

	h := pub.only(t).headers
	h["tenant"] = "changed"
	assert.Equal(t, "acme", env.Headers["tenant"])
	assert.NotContains(t, env.Headers, HeaderRoutingKey)
}

func TestPublishPropagatesPublisherErrors(t *testing.T) {
	publisherErr := errors.New("message broker unavailable")
	pub := &recordingEventPublisher{err: publisherErr}
	bridge := newTestBridge(t, pub)

	env := newStepEvent("TestSaga", "SAGA-ERROR-001", "test.step", "TEST-001", "test payload")

	err := bridge.Publish(context.Background(), env)

	assert.Same(t, publisherErr, err)
	pub.only(t)
}

func TestPublishRejectsNilEnvelope(t *testing.T) {
	pub := &recordingEventPublisher{}
	bridge := newTestBridge(t, pub)

	err := bridge.Publish(context.Background(), nil)

	var vErr *errspkg.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.ErrorIs(t, err, errspkg.ErrEnvelopeRequired)
	assert.Empty(t, pub.calls)
}

func TestPublishPassesContextThrough(t *testing.T) {
	type ctxKey struct{}
	pub := &recordingEventPublisher{}
	bridge := newTestBridge(t, pub)

	ctx := context.WithValue(context.Background(), ctxKey{}, "saga-run")
	require.NoError(t, bridge.Publish(ctx, newStepEvent("S", "1", "t", "k", nil)))

	assert.Equal(t, "saga-run", pub.only(t).ctx.Value(ctxKey{}))
}

func TestResolveIsPure(t *testing.T) {
	bridge := newTestBridge(t, &recordingEventPublisher{})
	env := newStepEvent("InventorySaga", "SAGA-9", "inventory.reserved", "", nil)
	env.Topic = "inventory-events"

	d, err := bridge.Resolve(env)
	require.NoError(t, err)

	assert.Equal(t, "inventory-events", d.Destination)
	assert.Equal(t, "InventorySaga:SAGA-9", d.RoutingKey)
	assert.Equal(t, "InventorySaga:SAGA-9", d.Headers[HeaderRoutingKey])
	assert.Empty(t, env.Key, "Resolve must not mutate the envelope")
}

func TestResolveRejectsNilEnvelope(t *testing.T) {
	bridge := newTestBridge(t, &recordingEventPublisher{})

	d, err := bridge.Resolve(nil)
	assert.ErrorIs(t, err, errspkg.ErrEnvelopeRequired)
	assert.Equal(t, Delivery{}, d)
}

func TestRoutingKeyAndDestinationProperties(t *testing.T) {
	pub := &recordingEventPublisher{}
	bridge := newTestBridge(t, pub)

	for i := 0; i < 50; i++ {
		sagaName := fmt.Sprintf("Saga%d", i%7)
		sagaID := fmt.Sprintf("SAGA-%04d", i)
		key := ""
		if i%2 == 0 {
			key = fmt.Sprintf("KEY-%d", i)
		}
		topic := ""
		if i%3 == 0 {
			topic = fmt.Sprintf("topic-%d", i)
		}

		env := newStepEvent(sagaName, sagaID, "prop.step", key, nil)
		env.Topic = topic
		require.NoError(t, bridge.Publish(context.Background(), env))

		call := pub.calls[len(pub.calls)-1]

		wantKey := key
		if wantKey == "" {
			wantKey = sagaName + ":" + sagaID
		}
		assert.Equal(t, wantKey, call.headers[HeaderRoutingKey])
		assert.Equal(t, wantKey, env.Key)

		wantDest := topic
		if wantDest == "" {
			wantDest = testDefaultTopic
		}
		assert.Equal(t, wantDest, call.destination)
	}
}

func TestPublishAsync(t *testing.T) {
	t.Run("delivers success", func(t *testing.T) {
		pub := &recordingEventPublisher{}
		bridge := newTestBridge(t, pub)

		err := <-bridge.PublishAsync(context.Background(), newStepEvent("S", "1", "t", "", nil))
		assert.NoError(t, err)
		pub.only(t)
	})

	t.Run("delivers publisher error", func(t *testing.T) {
		boom := errors.New("boom")
		bridge := newTestBridge(t, &recordingEventPublisher{err: boom})

		result := bridge.PublishAsync(context.Background(), newStepEvent("S", "1", "t", "", nil))
		assert.Same(t, boom, <-result)
		_, open := <-result
		assert.False(t, open, "channel should be closed after the result")
	})

	t.Run("delivers validation error", func(t *testing.T) {
		bridge := newTestBridge(t, &recordingEventPublisher{})
		err := <-bridge.PublishAsync(context.Background(), nil)
		assert.ErrorIs(t, err, errspkg.ErrEnvelopeRequired)
	})
}

func TestConcurrentPublishOnDistinctEnvelopes(t *testing.T) {
	pub := &recordingEventPublisher{}
	bridge := newTestBridge(t, pub)

	const workers = 20
	var wg sync.WaitGroup
	envs := make([]*StepEventEnvelope, workers)
	for i := range envs {
		envs[i] = newStepEvent("ParallelSaga", fmt.Sprintf("SAGA-%d", i), "parallel.step", "", nil)
	}

	for _, env := range envs {
		wg.Add(1)
		go func(env *StepEventEnvelope) {
			defer wg.Done()
			assert.NoError(t, bridge.Publish(context.Background(), env))
		}(env)
	}
	wg.Wait()

	assert.Len(t, pub.calls, workers)
	for i, env := range envs {
		assert.Equal(t, fmt.Sprintf("ParallelSaga:SAGA-%d", i), env.Key)
	}
}

func TestEventPublisherFunc(t *testing.T) {
	var gotDest string
	fn := EventPublisherFunc(func(ctx context.Context, payload any, destination string, headers Headers) error {
		gotDest = destination
		return nil
	})
	bridge := newTestBridge(t, fn)

	require.NoError(t, bridge.Publish(context.Background(), newStepEvent("S", "1", "t", "", nil)))
	assert.Equal(t, testDefaultTopic, gotDest)
}

func TestNopStepEventPublisher(t *testing.T) {
	var pub StepEventPublisher = NopStepEventPublisher{}
	env := newStepEvent("S", "1", "t", "", nil)
	assert.NoError(t, pub.Publish(context.Background(), env))
	assert.Empty(t, env.Key)
}
