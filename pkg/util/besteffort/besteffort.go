// Package besteffort names the fire-and-forget contract used for side effects
// (cache writes, cache invalidation, event publication) whose failure must not
// fail or roll back the operation that triggered them.
//
// Call sites pass the error of the side effect to Discard instead of returning
// it. The failure is logged and counted, then deliberately dropped.
package besteffort

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var discardedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "user_service",
		Name:      "best_effort_failures_total",
		Help:      "Side effects that failed and were discarded after logging.",
	},
	[]string{"op"},
)

// Discard logs a failed best-effort side effect and drops the error.
// It reports whether the side effect succeeded.
func Discard(logger *zap.Logger, op string, err error, fields ...zap.Field) bool {
	if err == nil {
		return true
	}
	discardedTotal.WithLabelValues(op).Inc()
	if logger != nil {
		logger.Warn("best-effort side effect failed",
			append([]zap.Field{zap.String("op", op), zap.Error(err)}, fields...)...)
	}
	return false
}
