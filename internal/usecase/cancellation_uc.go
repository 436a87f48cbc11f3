// File: internal/usecase/cancellation_uc.go
package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"wisestudent-purchase/internal/domain"
	"wisestudent-purchase/internal/domain/model"
	"wisestudent-purchase/internal/domain/ports/repository"
	"wisestudent-purchase/internal/infra/logging"
	"wisestudent-purchase/internal/infra/metrics"
)

// Compile-time check
var _ CancellationUseCase = (*cancellationUC)(nil)

type CancellationUseCase interface {
	// Cancel records that the user dismissed the checkout without paying.
	// Best-effort: failures are logged, never surfaced, and a cancelled
	// intent can still be promoted later by a broadcast confirmation.
	Cancel(ctx context.Context, intentID string) error
}

type cancellationUC struct {
	intents repository.IntentRepository
	orders  repository.OrderRepository
	resume  repository.ResumeStateRepository
	log     *zerolog.Logger
}

func NewCancellationUseCase(
	intents repository.IntentRepository,
	orders repository.OrderRepository,
	resume repository.ResumeStateRepository,
	logger *zerolog.Logger,
) *cancellationUC {
	return &cancellationUC{intents: intents, orders: orders, resume: resume, log: logger}
}

func (u *cancellationUC) Cancel(ctx context.Context, intentID string) error {
	unlock := intentLocks.lock(intentID)
	defer unlock()

	log := logging.With(ctx, u.log)

	intent, err := u.intents.FindByID(ctx, nil, intentID)
	if err != nil {
		return err
	}
	// Dismiss only matters while the checkout is open. A success event that
	// already moved the intent on (or a finished flow) makes this a no-op.
	if intent.State != model.IntentStateGatewayOpen {
		log.Debug().Str("state", string(intent.State)).Msg("dismiss ignored, intent no longer at the gateway")
		return nil
	}

	seq, err := u.intents.CompareAndTransition(ctx, nil, intentID, model.IntentStateGatewayOpen, model.IntentStateCancelled)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			// Lost the race to a success report; the flow continues without us.
			return nil
		}
		return err
	}
	_ = u.intents.AppendTransition(ctx, nil, &model.Transition{
		ID:        ulid.Make().String(),
		IntentID:  intentID,
		Seq:       seq,
		FromState: model.IntentStateGatewayOpen,
		ToState:   model.IntentStateCancelled,
		Event:     model.EventDismissed,
		At:        time.Now(),
	})
	metrics.IncTransition(string(model.IntentStateCancelled))

	// Server-side order bookkeeping must not stay open indefinitely. The user
	// already closed the flow, so none of this is allowed to fail loudly.
	if order, err := u.orders.FindByIntentID(ctx, nil, intentID); err == nil {
		if err := u.orders.UpdateStatus(ctx, nil, order.OrderID, model.OrderStatusFailed); err != nil {
			log.Warn().Err(err).Str("order_id", order.OrderID).Msg("mark abandoned order failed")
		}
	}
	if err := u.resume.Clear(ctx, intent.TargetType, intent.TargetRef); err != nil {
		log.Warn().Err(err).Msg("clear resume state failed")
	}
	log.Info().Str("target_ref", intent.TargetRef).Msg("intent cancelled by user dismissal")
	return nil
}
