package session

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported session activity categories.
type ActivityEventType string

const (
	ActivityEventLoginSuccess      ActivityEventType = "session.login.success"
	ActivityEventLoginFailure      ActivityEventType = "session.login.failure"
	ActivityEventLogout            ActivityEventType = "session.logout"
	ActivityEventResolutionFailure ActivityEventType = "session.resolution.failure"
	ActivityEventTokenRefresh      ActivityEventType = "session.token.refresh"
	ActivityEventProfileRefresh    ActivityEventType = "session.profile.refresh"
	ActivityEventRegistration      ActivityEventType = "session.registration"

	// Emitted by the Manager on state-machine transitions, distinct from
	// the Service-level events above.
	ActivityEventSessionEstablished ActivityEventType = "session.established"
	ActivityEventSessionCleared     ActivityEventType = "session.cleared"
)

// ActorRef identifies who triggered a session transition.
type ActorRef struct {
	ID   string
	Type string
}

// ActivityEvent captures audit-friendly information about a transition.
type ActivityEvent struct {
	EventType  ActivityEventType
	Actor      ActorRef
	Username   string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
// Sinks run best-effort; errors are logged by the emitter, never surfaced.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}
