// File: internal/usecase/listener.go
package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"wisestudent-purchase/internal/domain/model"
	"wisestudent-purchase/internal/domain/ports/adapter"
	"wisestudent-purchase/internal/infra/metrics"
	"wisestudent-purchase/internal/infra/worker"
)

// ActivationListener consumes the shared broadcast channel and feeds every
// inbound event to the reconciliation guard. This is the only activation path
// for instances other than the one that verified the payment, so it is a
// first-class confirmation source, not a notification hint. The guard keeps
// re-delivery harmless.
type ActivationListener struct {
	broadcaster adapter.Broadcaster
	guard       ActivationUseCase
	pool        *worker.Pool
	log         *zerolog.Logger
}

func NewActivationListener(b adapter.Broadcaster, guard ActivationUseCase, pool *worker.Pool, logger *zerolog.Logger) *ActivationListener {
	return &ActivationListener{broadcaster: b, guard: guard, pool: pool, log: logger}
}

// Run blocks until ctx is cancelled, dispatching each event to the worker
// pool so a slow confirm never stalls the subscription read loop.
func (l *ActivationListener) Run(ctx context.Context) error {
	return l.broadcaster.Subscribe(ctx, func(ev model.ActivationEvent) {
		metrics.IncBroadcast("received")
		intentID := ev.IntentID
		if err := l.pool.Submit(func(ctx context.Context) error {
			return l.guard.Confirm(ctx, intentID, model.ConfirmedByBroadcast)
		}); err != nil {
			l.log.Warn().Err(err).Str("intent_id", intentID).Msg("broadcast confirm not scheduled")
		}
	})
}
