// File: internal/usecase/activation_uc.go
package usecase

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
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
var _ ActivationUseCase = (*activationUC)(nil)

// ActivatedHook is the entitlement refresh contract exposed to collaborators
// (dashboards, wallets, access gates). The core never mutates their state; it
// tells them to re-fetch their own.
type ActivatedHook func(targetType model.TargetType, targetRef string)

// ActivationUseCase is the reconciliation guard: the only component allowed
// to write the ACTIVATED state. Confirmations from the verification callback
// and from the broadcast channel both funnel through Confirm, and whichever
// lands first wins; the other is a no-op.
type ActivationUseCase interface {
	Confirm(ctx context.Context, intentID string, src model.ConfirmationSource) error
	RegisterHook(h ActivatedHook)
}

type activationUC struct {
	intents     repository.IntentRepository
	activations repository.ActivationRepository
	resume      repository.ResumeStateRepository
	broadcaster adapter.Broadcaster
	tm          repository.TransactionManager
	hooks       []ActivatedHook
	log         *zerolog.Logger
}

func NewActivationUseCase(
	intents repository.IntentRepository,
	activations repository.ActivationRepository,
	resume repository.ResumeStateRepository,
	broadcaster adapter.Broadcaster,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *activationUC {
	return &activationUC{
		intents:     intents,
		activations: activations,
		resume:      resume,
		broadcaster: broadcaster,
		tm:          tm,
		log:         logger,
	}
}

// RegisterHook adds an onActivated collaborator. Hooks run after the
// activation committed, exactly once per intent, on the winning instance.
func (u *activationUC) RegisterHook(h ActivatedHook) {
	u.hooks = append(u.hooks, h)
}

// Confirm commits the activation for an intent if no channel has done so yet.
// Safe to call any number of times from either channel; only the first
// writer transitions the intent and triggers downstream effects.
func (u *activationUC) Confirm(ctx context.Context, intentID string, src model.ConfirmationSource) error {
	unlock := intentLocks.lock(intentID)
	defer unlock()

	log := logging.With(ctx, u.log)

	var intent *model.PurchaseIntent
	var won bool
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		var err error
		intent, err = u.intents.FindByID(ctx, tx, intentID)
		if err != nil {
			return err
		}

		now := time.Now()
		won, err = u.activations.Commit(ctx, tx, &model.ActivationRecord{
			IntentID:    intentID,
			ConfirmedBy: src,
			ConfirmedAt: now,
		})
		if err != nil {
			return err
		}
		if !won {
			return nil
		}

		// First writer: drive the state machine. Every non-ACTIVATED state
		// that legally accepts "activated" is promoted, including CANCELLED
		// (late broadcast after UI abandonment).
		from := intent.State
		if _, ok := model.Next(from, model.EventActivated); !ok {
			return domain.ErrInvalidTransition
		}
		seq, err := u.intents.CompareAndTransition(ctx, tx, intentID, from, model.IntentStateActivated)
		if err != nil {
			return err
		}
		return u.intents.AppendTransition(ctx, tx, &model.Transition{
			ID:        ulid.Make().String(),
			IntentID:  intentID,
			Seq:       seq,
			FromState: from,
			ToState:   model.IntentStateActivated,
			Event:     model.EventActivated,
			At:        now,
		})
	})
	if err != nil {
		return err
	}

	if !won {
		metrics.IncDuplicateConfirm(string(src))
		log.Debug().Str("source", string(src)).Msg("activation already committed, confirm is a no-op")
		return nil
	}

	metrics.IncActivation(string(src))
	metrics.IncTransition(string(model.IntentStateActivated))
	metrics.AddRevenue(string(intent.TargetType), intent.Amount)
	log.Info().
		Str("source", string(src)).
		Str("target_type", string(intent.TargetType)).
		Str("target_ref", intent.TargetRef).
		Msg("intent activated")

	// Downstream effects run after the commit so a crash cannot leave an
	// activated intent without its record. Each is best-effort.
	if err := u.resume.Clear(ctx, intent.TargetType, intent.TargetRef); err != nil {
		log.Warn().Err(err).Msg("clear resume state failed")
	}
	ev := model.ActivationEvent{
		TargetType: intent.TargetType,
		TargetRef:  intent.TargetRef,
		IntentID:   intent.ID,
	}
	if err := u.broadcaster.Publish(ctx, ev); err != nil {
		log.Warn().Err(err).Msg("publish activation event failed")
	} else {
		metrics.IncBroadcast("published")
	}
	for _, h := range u.hooks {
		h(intent.TargetType, intent.TargetRef)
	}
	return nil
}
