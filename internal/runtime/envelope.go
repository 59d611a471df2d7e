package runtime

import (
	"errors"
	"time"

	errspkg "github.com/drblury/stepflow/internal/runtime/errors"
)

// Header keys written by the bridge on every step event.
const (
	HeaderSagaName    = "step.saga_name"
	HeaderSagaID      = "step.saga_id"
	HeaderStepType    = "step.type"
	HeaderAttempts    = "step.attempts"
	HeaderLatencyMs   = "step.latency_ms"
	HeaderStartedAt   = "step.started_at"
	HeaderCompletedAt = "step.completed_at"
	HeaderResultType  = "step.result_type"
	HeaderTimestamp   = "step.timestamp"

	// HeaderRoutingKey carries the partition/routing key used by the transport.
	HeaderRoutingKey = "routing_key"
	// HeaderEventType repeats the step type under the name most consumers filter on.
	HeaderEventType = "event_type"
)

// Step outcomes reported by the orchestration engine.
const (
	ResultSuccess = "SUCCESS"
	ResultFailure = "FAILURE"
)

// StepEventEnvelope is one lifecycle notification for a single step of a
// running saga instance. The engine creates it right after the step finishes
// and hands it to a StepEventPublisher exactly once.
type StepEventEnvelope struct {
	SagaName string `json:"saga_name"`
	SagaID   string `json:"saga_id"`
	StepID   string `json:"step_id"`
	// Topic overrides the bridge's default destination when non-empty.
	Topic string `json:"topic,omitempty"`
	Type  string `json:"type"`
	// Key is the routing key. The bridge fills it in when empty.
	Key         string    `json:"key,omitempty"`
	Payload     any       `json:"payload,omitempty"`
	Headers     Headers   `json:"headers,omitempty"`
	Attempts    int       `json:"attempts"`
	LatencyMs   int64     `json:"latency_ms"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	ResultType  string    `json:"result_type"`
}

// RoutingKey returns Key, or "<saga name>:<saga id>" when Key is empty.
func (e *StepEventEnvelope) RoutingKey() string {
	if e.Key != "" {
		return e.Key
	}
	return e.SagaName + ":" + e.SagaID
}

// CheckInvariants reports every violated envelope invariant. The bridge does
// not call it: the producing engine owns these guarantees.
func (e *StepEventEnvelope) CheckInvariants() error {
	if e == nil {
		return errspkg.NewValidationError("", errspkg.ErrEnvelopeRequired)
	}

	var errs []error
	if e.SagaName == "" {
		errs = append(errs, errspkg.NewValidationError("saga_name", errors.New("is required")))
	}
	if e.SagaID == "" {
		errs = append(errs, errspkg.NewValidationError("saga_id", errors.New("is required")))
	}
	if e.Attempts < 1 {
		errs = append(errs, errspkg.NewValidationError("attempts", errors.New("must be at least 1")))
	}
	if e.LatencyMs < 0 {
		errs = append(errs, errspkg.NewValidationError("latency_ms", errors.New("cannot be negative")))
	}
	if !e.StartedAt.IsZero() && !e.CompletedAt.IsZero() && e.CompletedAt.Before(e.StartedAt) {
		errs = append(errs, errspkg.NewValidationError("completed_at", errors.New("cannot precede started_at")))
	}
	return errors.Join(errs...)
}

// Headers is the per-call header set handed to an EventPublisher.
type Headers map[string]any

// Clone returns a shallow copy. It never returns nil.
func (h Headers) Clone() Headers {
	cloned := make(Headers, len(h))
	for k, v := range h {
		cloned[k] = v
	}
	return cloned
}

// Get returns the value stored under key and whether it was present.
func (h Headers) Get(key string) (any, bool) {
	v, ok := h[key]
	return v, ok
}

// String returns the value under key when it is a string.
func (h Headers) String(key string) string {
	s, _ := h[key].(string)
	return s
}
