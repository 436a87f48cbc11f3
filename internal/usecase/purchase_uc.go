// File: internal/usecase/purchase_uc.go
package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
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
var _ PurchaseUseCase = (*purchaseUC)(nil)

// BeginResult is what the client needs to hand the checkout to the user:
// the intent it should correlate on, and (unless the amount was zero and the
// intent is already ACTIVATED) the payable order plus gateway credential.
type BeginResult struct {
	Intent *model.PurchaseIntent
	Order  *model.PaymentOrder
}

type PurchaseUseCase interface {
	// Begin creates (or resumes) the purchase intent for a target, creates the
	// gateway order and hands it out ready to launch. Zero-amount targets skip
	// the gateway and come back already ACTIVATED.
	Begin(ctx context.Context, intentID string, tt model.TargetType, targetRef string, mode model.PurchaseMode) (*BeginResult, error)
	// Get returns the intent by id, for state polling after a network drop.
	Get(ctx context.Context, intentID string) (*model.PurchaseIntent, error)
	// Resume performs the one-shot post-redirect lookup by target.
	Resume(ctx context.Context, tt model.TargetType, targetRef string) (*BeginResult, error)
}

type purchaseUC struct {
	intents repository.IntentRepository
	orders  repository.OrderRepository
	plans   repository.PlanRepository
	resume  repository.ResumeStateRepository
	gateway adapter.PaymentGateway
	guard   ActivationUseCase
	log     *zerolog.Logger
}

func NewPurchaseUseCase(
	intents repository.IntentRepository,
	orders repository.OrderRepository,
	plans repository.PlanRepository,
	resume repository.ResumeStateRepository,
	gateway adapter.PaymentGateway,
	guard ActivationUseCase,
	logger *zerolog.Logger,
) *purchaseUC {
	return &purchaseUC{
		intents: intents,
		orders:  orders,
		plans:   plans,
		resume:  resume,
		gateway: gateway,
		guard:   guard,
		log:     logger,
	}
}

// amountFor resolves the price of a target from the fixed price list.
// Subscription plans are keyed by their plan code; the paid account-link and
// account-create actions carry flat fees stored under the target type itself.
func (u *purchaseUC) amountFor(ctx context.Context, tt model.TargetType, targetRef string) (int64, error) {
	code := targetRef
	if tt != model.TargetSubscriptionPlan {
		code = string(tt)
	}
	plan, err := u.plans.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return 0, domain.ErrPlanNotFound
		}
		return 0, err
	}
	return plan.PricePaise, nil
}

func (u *purchaseUC) Begin(ctx context.Context, intentID string, tt model.TargetType, targetRef string, mode model.PurchaseMode) (*BeginResult, error) {
	if targetRef == "" {
		return nil, domain.ErrInvalidArgument
	}
	ctx = logging.WithTarget(ctx, string(tt)+":"+targetRef)
	log := logging.With(ctx, u.log)
	defer logging.TraceDuration(log, "PurchaseUC.Begin")()

	// Exactly one non-terminal intent per target: a second attempt resumes
	// the first instead of racing it.
	if existing, err := u.intents.FindOpenByTarget(ctx, nil, tt, targetRef); err == nil {
		log.Debug().Str("intent_id", existing.ID).Msg("resuming open intent for target")
		return u.resumeResult(ctx, existing)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	amount, err := u.amountFor(ctx, tt, targetRef)
	if err != nil {
		return nil, err
	}

	if intentID == "" {
		intentID = uuid.NewString()
	}
	now := time.Now()
	intent := &model.PurchaseIntent{
		ID:               intentID,
		TargetType:       tt,
		TargetRef:        targetRef,
		Amount:           amount,
		Mode:             mode,
		State:            model.IntentStateInit,
		CreatedAt:        now,
		LastTransitionAt: now,
	}
	if err := u.intents.Save(ctx, nil, intent); err != nil {
		if errors.Is(err, domain.ErrIntentConflict) {
			// Lost the insert race; the winner's intent is the one to resume.
			if existing, ferr := u.intents.FindOpenByTarget(ctx, nil, tt, targetRef); ferr == nil {
				return u.resumeResult(ctx, existing)
			}
			return nil, domain.ErrIntentConflict
		}
		return nil, err
	}
	metrics.IncIntent(string(tt), string(mode))

	if err := u.resume.Set(ctx, tt, targetRef, intent.ID); err != nil {
		log.Warn().Err(err).Msg("persist resume state failed")
	}

	// Free path: no order, no gateway, same state machine and event contract.
	if amount == 0 {
		if err := u.guard.Confirm(ctx, intent.ID, model.ConfirmedByVerification); err != nil {
			return nil, err
		}
		intent, err = u.intents.FindByID(ctx, nil, intent.ID)
		if err != nil {
			return nil, err
		}
		return &BeginResult{Intent: intent}, nil
	}

	order, err := u.createOrder(ctx, intent)
	if err != nil {
		return nil, err
	}
	if err := u.transition(ctx, intent, model.EventOrderCreated); err != nil {
		return nil, err
	}
	// Handing the order out is the launch: the checkout opens with it on the
	// client, and from here the user paces the flow.
	if err := u.transition(ctx, intent, model.EventGatewayOpened); err != nil {
		return nil, err
	}
	return &BeginResult{Intent: intent, Order: order}, nil
}

// createOrder asks the gateway for a payable order using the intent id as the
// idempotency key, with one retry on transient failure. An order the gateway
// already holds for this intent is reused, never duplicated.
func (u *purchaseUC) createOrder(ctx context.Context, intent *model.PurchaseIntent) (*model.PaymentOrder, error) {
	log := logging.With(ctx, u.log)

	if existing, err := u.orders.FindByIntentID(ctx, nil, intent.ID); err == nil {
		return existing, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	handle, err := u.gateway.CreateOrder(ctx, intent.ID, intent.Amount, "INR")
	if err != nil {
		log.Warn().Err(err).Msg("gateway order creation failed, retrying once")
		handle, err = u.gateway.CreateOrder(ctx, intent.ID, intent.Amount, "INR")
		if err != nil {
			return nil, domain.ErrGatewayUnavailable
		}
	}

	now := time.Now()
	order := &model.PaymentOrder{
		OrderID:           handle.OrderID,
		IntentID:          intent.ID,
		Amount:            intent.Amount,
		Currency:          "INR",
		Status:            model.OrderStatusCreated,
		GatewayCredential: handle.Credential,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := u.orders.Save(ctx, nil, order); err != nil {
		return nil, err
	}
	return order, nil
}

// transition drives one legal edge of the state machine under the per-intent
// lock and appends the side-effect log entry. The intent passed in is
// mutated to the new state on success.
func (u *purchaseUC) transition(ctx context.Context, intent *model.PurchaseIntent, ev model.IntentEvent) error {
	unlock := intentLocks.lock(intent.ID)
	defer unlock()

	to, ok := model.Next(intent.State, ev)
	if !ok {
		return domain.ErrInvalidTransition
	}
	seq, err := u.intents.CompareAndTransition(ctx, nil, intent.ID, intent.State, to)
	if err != nil {
		return err
	}
	err = u.intents.AppendTransition(ctx, nil, &model.Transition{
		ID:        ulid.Make().String(),
		IntentID:  intent.ID,
		Seq:       seq,
		FromState: intent.State,
		ToState:   to,
		Event:     ev,
		At:        time.Now(),
	})
	if err != nil {
		return err
	}
	metrics.IncTransition(string(to))
	intent.State = to
	intent.Seq = seq
	return nil
}

func (u *purchaseUC) Get(ctx context.Context, intentID string) (*model.PurchaseIntent, error) {
	return u.intents.FindByID(ctx, nil, intentID)
}

func (u *purchaseUC) Resume(ctx context.Context, tt model.TargetType, targetRef string) (*BeginResult, error) {
	ctx = logging.WithTarget(ctx, string(tt)+":"+targetRef)
	intentID, err := u.resume.Get(ctx, tt, targetRef)
	if err != nil {
		// Fall back to the open-intent index; resume state is a cache, the
		// durable record is the intent itself.
		intent, ferr := u.intents.FindOpenByTarget(ctx, nil, tt, targetRef)
		if ferr != nil {
			return nil, domain.ErrNotFound
		}
		return u.resumeResult(ctx, intent)
	}
	intent, err := u.intents.FindByID(ctx, nil, intentID)
	if err != nil {
		return nil, err
	}
	return u.resumeResult(ctx, intent)
}

func (u *purchaseUC) resumeResult(ctx context.Context, intent *model.PurchaseIntent) (*BeginResult, error) {
	// A free intent stuck at INIT means the process died between saving it
	// and confirming; finish the confirm now.
	if intent.Amount == 0 {
		if intent.State == model.IntentStateInit {
			if err := u.guard.Confirm(ctx, intent.ID, model.ConfirmedByVerification); err != nil {
				return nil, err
			}
			fresh, err := u.intents.FindByID(ctx, nil, intent.ID)
			if err != nil {
				return nil, err
			}
			return &BeginResult{Intent: fresh}, nil
		}
		return &BeginResult{Intent: intent}, nil
	}

	switch intent.State {
	case model.IntentStateInit, model.IntentStateOrderCreated:
		// The launch was cut short between creating the order and opening the
		// checkout. Every handed-out order must be payable and verifiable, so
		// drive the intent the rest of the way before returning it.
		order, err := u.createOrder(ctx, intent)
		if err != nil {
			return nil, err
		}
		if intent.State == model.IntentStateInit {
			if err := u.transition(ctx, intent, model.EventOrderCreated); err != nil {
				return nil, err
			}
		}
		if err := u.transition(ctx, intent, model.EventGatewayOpened); err != nil {
			return nil, err
		}
		return &BeginResult{Intent: intent, Order: order}, nil
	}

	res := &BeginResult{Intent: intent}
	order, err := u.orders.FindByIntentID(ctx, nil, intent.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return res, nil
		}
		return nil, err
	}
	res.Order = order
	return res, nil
}
