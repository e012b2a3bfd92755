package session

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SessionEvents is the local audit log repository.
type SessionEvents = repository.Repository[*SessionEvent]

func NewSessionEventsRepository(db *bun.DB) SessionEvents {
	handlers := repository.ModelHandlers[*SessionEvent]{
		NewRecord: func() *SessionEvent {
			return &SessionEvent{}
		},
		GetID: func(record *SessionEvent) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *SessionEvent, id uuid.UUID) {
			record.ID = id
		},
		GetIdentifier: func() string {
			return "event_type"
		},
	}
	return repository.NewRepository(db, handlers)
}

var _ ActivitySink = (*BunActivitySink)(nil)

// BunActivitySink forwards session activity into the local sqlite event log.
type BunActivitySink struct {
	events SessionEvents
	logger Logger
}

func NewBunActivitySink(db *bun.DB, logger Logger) *BunActivitySink {
	if logger == nil {
		logger = defLogger{}
	}
	return &BunActivitySink{
		events: NewSessionEventsRepository(db),
		logger: logger,
	}
}

// Record implements ActivitySink. Actor ids are derived deterministically
// from the username when the caller left them empty, so repeated events for
// the same account correlate without storing anything reversible.
func (s *BunActivitySink) Record(ctx context.Context, event ActivityEvent) error {
	actorID := event.Actor.ID
	if actorID == "" && event.Username != "" {
		if id, err := hashid.NewUUID(event.Username); err == nil {
			actorID = id.String()
		}
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}

	record := &SessionEvent{
		ID:         uuid.New(),
		EventType:  string(event.EventType),
		ActorID:    actorID,
		Username:   event.Username,
		Metadata:   event.Metadata,
		OccurredAt: occurredAt,
	}

	if _, err := s.events.Create(ctx, record); err != nil {
		s.logger.Error("session event record failed", "type", event.EventType, "error", err)
		return err
	}

	return nil
}
