// File: internal/usecase/verification_uc.go
package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"wisestudent-purchase/internal/domain"
	"wisestudent-purchase/internal/domain/model"
	"wisestudent-purchase/internal/domain/ports/adapter"
	"wisestudent-purchase/internal/domain/ports/repository"
	"wisestudent-purchase/internal/infra/logging"
	"wisestudent-purchase/internal/infra/metrics"
)

// Compile-time check
var _ VerificationUseCase = (*verificationUC)(nil)

type VerificationUseCase interface {
	// Verify checks the checkout's success payload against the stored order
	// and, when trusted, hands the confirmation to the reconciliation guard.
	// ErrActivationDenied is fatal; ErrVerificationPending means the payment
	// went through but confirmation is still outstanding and will complete
	// via the reconciler or the broadcast channel.
	Verify(ctx context.Context, intentID string, payload adapter.SuccessPayload) error
}

type verificationUC struct {
	intents repository.IntentRepository
	orders  repository.OrderRepository
	gateway adapter.PaymentGateway
	guard   ActivationUseCase
	log     *zerolog.Logger
}

func NewVerificationUseCase(
	intents repository.IntentRepository,
	orders repository.OrderRepository,
	gateway adapter.PaymentGateway,
	guard ActivationUseCase,
	logger *zerolog.Logger,
) *verificationUC {
	return &verificationUC{
		intents: intents,
		orders:  orders,
		gateway: gateway,
		guard:   guard,
		log:     logger,
	}
}

func (u *verificationUC) Verify(ctx context.Context, intentID string, payload adapter.SuccessPayload) error {
	start := time.Now()
	log := logging.With(ctx, u.log)

	intent, err := u.intents.FindByID(ctx, nil, intentID)
	if err != nil {
		metrics.VerifyRequests.WithLabelValues("fail", "unknown").Inc()
		return err
	}
	order, err := u.orders.FindByIntentID(ctx, nil, intentID)
	if err != nil {
		metrics.VerifyRequests.WithLabelValues("fail", "unknown").Inc()
		return err
	}

	switch intent.State {
	case model.IntentStateGatewayOpen:
		if err := u.markVerifying(ctx, intent); err != nil {
			return err
		}
	case model.IntentStateVerifying, model.IntentStateCancelled:
		// VERIFYING: a retry of the same success payload.
		// CANCELLED: the user gave up on the UI moments before the payment
		// landed; the success signal is still honored as a late activation.
	case model.IntentStateActivated:
		// Broadcast beat us to it. The guard makes the confirm a no-op.
	default:
		metrics.VerifyRequests.WithLabelValues("fail", "bad_state").Inc()
		return domain.ErrInvalidTransition
	}

	// The payload is untrusted until the signature binds it to our order.
	if payload.OrderID != order.OrderID || !u.gateway.VerifySignature(payload) {
		u.fail(ctx, intent, order)
		metrics.VerifyRequests.WithLabelValues("fail", "bad_signature").Inc()
		metrics.VerifyDuration.WithLabelValues("fail").Observe(time.Since(start).Seconds())
		log.Error().Str("order_id", order.OrderID).Msg("signature verification rejected, flagged for review")
		return domain.ErrActivationDenied
	}

	// Confirm capture with the gateway. A network failure here must not fail
	// the intent: the gateway already reported success to the user, so the
	// flow stays VERIFYING and is resumable.
	state, err := u.fetchStatusOnce(ctx, order.OrderID)
	if err != nil {
		metrics.VerifyRequests.WithLabelValues("pending", "").Inc()
		metrics.VerifyDuration.WithLabelValues("pending").Observe(time.Since(start).Seconds())
		log.Warn().Err(err).Msg("gateway unreachable after success report, activation pending")
		return domain.ErrVerificationPending
	}
	if state.Status != "paid" {
		// Signature checked out but the gateway does not consider the order
		// paid; do not trust the client signal.
		u.fail(ctx, intent, order)
		metrics.VerifyRequests.WithLabelValues("fail", "amount_mismatch").Inc()
		metrics.VerifyDuration.WithLabelValues("fail").Observe(time.Since(start).Seconds())
		return domain.ErrActivationDenied
	}

	if err := u.orders.UpdateStatus(ctx, nil, order.OrderID, model.OrderStatusCaptured); err != nil {
		log.Warn().Err(err).Msg("mark order captured failed")
	}
	if err := u.guard.Confirm(ctx, intentID, model.ConfirmedByVerification); err != nil {
		return err
	}
	metrics.VerifyRequests.WithLabelValues("ok", "").Inc()
	metrics.VerifyDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())
	return nil
}

func (u *verificationUC) fetchStatusOnce(ctx context.Context, orderID string) (adapter.OrderState, error) {
	state, err := u.gateway.FetchOrderStatus(ctx, orderID)
	if err == nil {
		return state, nil
	}
	// one bounded retry on transient failure
	return u.gateway.FetchOrderStatus(ctx, orderID)
}

func (u *verificationUC) markVerifying(ctx context.Context, intent *model.PurchaseIntent) error {
	unlock := intentLocks.lock(intent.ID)
	defer unlock()

	seq, err := u.intents.CompareAndTransition(ctx, nil, intent.ID, model.IntentStateGatewayOpen, model.IntentStateVerifying)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			// Someone else moved the intent; re-read and let Verify's state
			// switch deal with where it landed.
			fresh, ferr := u.intents.FindByID(ctx, nil, intent.ID)
			if ferr != nil {
				return ferr
			}
			*intent = *fresh
			return nil
		}
		return err
	}
	_ = u.intents.AppendTransition(ctx, nil, &model.Transition{
		ID:        ulid.Make().String(),
		IntentID:  intent.ID,
		Seq:       seq,
		FromState: model.IntentStateGatewayOpen,
		ToState:   model.IntentStateVerifying,
		Event:     model.EventSuccessReported,
		At:        time.Now(),
	})
	metrics.IncTransition(string(model.IntentStateVerifying))
	intent.State = model.IntentStateVerifying
	intent.Seq = seq
	return nil
}

// fail moves the intent to FAILED where legal and marks the order failed.
// Only called for rejections, never for network trouble.
func (u *verificationUC) fail(ctx context.Context, intent *model.PurchaseIntent, order *model.PaymentOrder) {
	log := logging.With(ctx, u.log)
	unlock := intentLocks.lock(intent.ID)
	defer unlock()

	if _, ok := model.Next(intent.State, model.EventFailed); !ok {
		return
	}
	seq, err := u.intents.CompareAndTransition(ctx, nil, intent.ID, intent.State, model.IntentStateFailed)
	if err != nil {
		log.Warn().Err(err).Msg("transition to FAILED lost a race")
		return
	}
	_ = u.intents.AppendTransition(ctx, nil, &model.Transition{
		ID:        ulid.Make().String(),
		IntentID:  intent.ID,
		Seq:       seq,
		FromState: intent.State,
		ToState:   model.IntentStateFailed,
		Event:     model.EventFailed,
		At:        time.Now(),
	})
	metrics.IncTransition(string(model.IntentStateFailed))
	intent.State = model.IntentStateFailed
	if err := u.orders.UpdateStatus(ctx, nil, order.OrderID, model.OrderStatusFailed); err != nil {
		log.Warn().Err(err).Msg("mark order failed errored")
	}
}
