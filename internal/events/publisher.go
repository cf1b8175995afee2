package events

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/user-service/internal/domain"
	"github.com/spec-kit/user-service/internal/observability"
	"github.com/spec-kit/user-service/pkg/util/besteffort"
)

// Publisher enqueues an event on a broker. A nil error means enqueued, not delivered.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Emitter publishes domain events fire-and-forget. Failures are logged and
// dropped; there is no retry and no ordering guarantee between event types.
type Emitter struct {
	publisher Publisher
	logger    *zap.Logger
	timeout   time.Duration
	now       func() time.Time
}

// NewEmitter constructs an emitter over publisher.
func NewEmitter(publisher Publisher, logger *zap.Logger, timeout time.Duration) *Emitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Emitter{publisher: publisher, logger: logger, timeout: timeout, now: time.Now}
}

// Emit publishes one event for user. It never returns an error, and request
// cancellation does not abort the enqueue.
func (e *Emitter) Emit(ctx context.Context, eventType EventType, user *domain.User) {
	if e == nil || user == nil {
		return
	}
	e.publish(ctx, NewUserEvent(eventType, user, e.now()))
}

// EmitRegistered publishes user.registered carrying the verification token.
// An empty token is omitted from the payload.
func (e *Emitter) EmitRegistered(ctx context.Context, user *domain.User, verificationToken string) {
	if e == nil || user == nil {
		return
	}
	event := NewUserEvent(EventUserRegistered, user, e.now())
	event.Payload.VerificationToken = verificationToken
	e.publish(ctx, event)
}

func (e *Emitter) publish(ctx context.Context, event Event) {
	if e.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
	defer cancel()

	ok := besteffort.Discard(e.logger, "events.publish", e.publisher.Publish(pubCtx, event),
		zap.String("event_type", string(event.Type)),
		zap.String("event_id", event.ID),
		zap.String("user_id", event.Payload.UserID),
	)
	observability.RecordEventPublish(string(event.Type), ok)
	if ok {
		e.logger.Debug("event enqueued", zap.String("event_type", string(event.Type)), zap.String("event_id", event.ID))
	}
}
