package sched

import (
	"context"
	"time"

	"wisestudent-purchase/internal/domain/model"
	"wisestudent-purchase/internal/domain/ports/adapter"
	"wisestudent-purchase/internal/domain/ports/repository"
	"wisestudent-purchase/internal/infra/logging"
	"wisestudent-purchase/internal/usecase"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

const sweepBatch = 200

// Reconciler periodically sweeps intents the normal flow left behind.
// Two populations:
//   - VERIFYING intents whose confirm never landed (client died after the
//     checkout reported success, or the gateway was unreachable during
//     verification): ask the gateway directly and confirm if paid.
//   - GATEWAY_OPEN intents nobody touched for a long time (tab closed
//     without the dismiss callback firing): cancel them so the target
//     unlocks for a fresh attempt.
type Reconciler struct {
	intents repository.IntentRepository
	orders  repository.OrderRepository
	gateway adapter.PaymentGateway
	guard   usecase.ActivationUseCase
	cancel  usecase.CancellationUseCase

	interval     time.Duration
	verifyStale  time.Duration
	abandonAfter time.Duration
	log          *zerolog.Logger
}

func NewReconciler(
	intents repository.IntentRepository,
	orders repository.OrderRepository,
	gateway adapter.PaymentGateway,
	guard usecase.ActivationUseCase,
	cancel usecase.CancellationUseCase,
	interval, verifyStale, abandonAfter time.Duration,
	logger *zerolog.Logger,
) *Reconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if verifyStale <= 0 {
		verifyStale = 2 * time.Minute
	}
	if abandonAfter <= 0 {
		abandonAfter = 30 * time.Minute
	}
	return &Reconciler{
		intents:      intents,
		orders:       orders,
		gateway:      gateway,
		guard:        guard,
		cancel:       cancel,
		interval:     interval,
		verifyStale:  verifyStale,
		abandonAfter: abandonAfter,
		log:          logger,
	}
}

// Start blocks until ctx is cancelled, ticking at the configured interval.
func (w *Reconciler) Start(ctx context.Context) {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.Tick(ctx)
		}
	}
}

// Tick runs one sweep. Exported so tests and ops tooling can trigger it
// without the ticker.
func (w *Reconciler) Tick(ctx context.Context) {
	w.sweepVerifying(ctx)
	w.sweepAbandoned(ctx)
}

func (w *Reconciler) sweepVerifying(ctx context.Context) {
	cutoff := time.Now().Add(-w.verifyStale)
	stuck, err := w.intents.ListStuck(ctx, nil, model.IntentStateVerifying, cutoff, sweepBatch)
	if err != nil {
		w.log.Error().Err(err).Msg("reconciler: list verifying failed")
		return
	}
	for _, in := range stuck {
		ictx := logging.WithIntentID(ctx, in.ID)
		log := logging.With(ictx, w.log)

		order, err := w.orders.FindByIntentID(ictx, nil, in.ID)
		if err != nil {
			log.Error().Err(err).Msg("reconciler: order lookup failed")
			continue
		}
		state, err := w.gateway.FetchOrderStatus(ictx, order.OrderID)
		if err != nil {
			log.Warn().Err(err).Msg("reconciler: gateway status fetch failed, will retry next sweep")
			continue
		}
		if state.Status != "paid" {
			// Not captured yet; the user may still complete it or the next
			// sweep will look again.
			continue
		}
		if err := w.guard.Confirm(ictx, in.ID, model.ConfirmedByBroadcast); err != nil {
			log.Error().Err(err).Msg("reconciler: confirm failed")
			continue
		}
		if order.Status != model.OrderStatusCaptured {
			if err := w.orders.UpdateStatus(ictx, nil, order.OrderID, model.OrderStatusCaptured); err != nil {
				log.Warn().Err(err).Msg("reconciler: mark order captured failed")
			}
		}
		log.Info().Str("order_id", order.OrderID).Msg("reconciler: stale verification completed")
	}
}

func (w *Reconciler) sweepAbandoned(ctx context.Context) {
	cutoff := time.Now().Add(-w.abandonAfter)
	// ORDER_CREATED appears here when a crash cut the launch short between
	// creating the order and opening the checkout, and the client never came
	// back to resume. Promote it onto the cancellable edge first; a late
	// capture can still lift the CANCELLED intent to ACTIVATED.
	for _, state := range []model.IntentState{model.IntentStateGatewayOpen, model.IntentStateOrderCreated} {
		open, err := w.intents.ListStuck(ctx, nil, state, cutoff, sweepBatch)
		if err != nil {
			w.log.Error().Err(err).Str("state", string(state)).Msg("reconciler: list abandoned failed")
			continue
		}
		for _, in := range open {
			ictx := logging.WithIntentID(ctx, in.ID)
			log := logging.With(ictx, w.log)
			if in.State == model.IntentStateOrderCreated {
				seq, err := w.intents.CompareAndTransition(ictx, nil, in.ID, model.IntentStateOrderCreated, model.IntentStateGatewayOpen)
				if err != nil {
					log.Warn().Err(err).Msg("reconciler: promote stranded order lost a race")
					continue
				}
				_ = w.intents.AppendTransition(ictx, nil, &model.Transition{
					ID:        ulid.Make().String(),
					IntentID:  in.ID,
					Seq:       seq,
					FromState: model.IntentStateOrderCreated,
					ToState:   model.IntentStateGatewayOpen,
					Event:     model.EventGatewayOpened,
					At:        time.Now(),
				})
			}
			if err := w.cancel.Cancel(ictx, in.ID); err != nil {
				log.Error().Err(err).Msg("reconciler: cancel abandoned intent failed")
				continue
			}
			log.Info().Msg("reconciler: abandoned checkout cancelled")
		}
	}
}
