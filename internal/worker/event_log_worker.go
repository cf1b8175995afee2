package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/user-service/internal/events"
)

// StartEventLogWorker subscribes a logging consumer to the in-process broker.
// It stands in for downstream consumers when the memory driver is used.
func StartEventLogWorker(broker *events.MemoryBroker, logger *zap.Logger) {
	if broker == nil {
		return
	}
	broker.SubscribeAll(func(_ context.Context, event events.Event) error {
		logger.Info("domain event",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.String("user_id", event.Payload.UserID),
			zap.String("role", string(event.Payload.Role)),
			zap.Time("timestamp", event.Payload.Timestamp),
		)
		return nil
	})
}
