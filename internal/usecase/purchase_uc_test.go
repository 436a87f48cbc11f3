//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"wisestudent-purchase/internal/domain"
	"wisestudent-purchase/internal/domain/model"
	"wisestudent-purchase/internal/domain/ports/adapter"
)

func TestPurchaseUC_Begin(t *testing.T) {
	ctx := context.Background()

	t.Run("should create intent and hand out a launched order", func(t *testing.T) {
		deps := newUCDeps()
		deps.plans.Put(&model.Plan{Code: "P1", PricePaise: 499900})

		res, err := deps.purchase.Begin(ctx, "", model.TargetSubscriptionPlan, "P1", model.ModeNew)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if res.Intent.State != model.IntentStateGatewayOpen {
			t.Errorf("expected state GATEWAY_OPEN, got %s", res.Intent.State)
		}
		if res.Intent.Amount != 499900 {
			t.Errorf("expected amount 499900, got %d", res.Intent.Amount)
		}
		if res.Order == nil || res.Order.OrderID == "" {
			t.Fatal("expected an order handle")
		}
		if res.Order.GatewayCredential == "" {
			t.Error("expected a gateway credential for the checkout")
		}
		if _, err := deps.resume.Get(ctx, model.TargetSubscriptionPlan, "P1"); err != nil {
			t.Error("expected resume state to be persisted")
		}
	})

	t.Run("second begin for the same target resumes, no duplicate order", func(t *testing.T) {
		deps := newUCDeps()
		deps.plans.Put(&model.Plan{Code: "P1", PricePaise: 499900})

		first, err := deps.purchase.Begin(ctx, "", model.TargetSubscriptionPlan, "P1", model.ModeNew)
		if err != nil {
			t.Fatalf("first begin: %v", err)
		}
		second, err := deps.purchase.Begin(ctx, "", model.TargetSubscriptionPlan, "P1", model.ModeNew)
		if err != nil {
			t.Fatalf("second begin: %v", err)
		}
		if first.Intent.ID != second.Intent.ID {
			t.Errorf("expected the same intent to be resumed, got %s and %s", first.Intent.ID, second.Intent.ID)
		}
		if deps.gateway.CreateCalls() != 1 {
			t.Errorf("expected exactly one gateway order creation, got %d", deps.gateway.CreateCalls())
		}
	})

	t.Run("zero amount activates immediately without the gateway", func(t *testing.T) {
		deps := newUCDeps()
		deps.plans.Put(&model.Plan{Code: "TRIAL", PricePaise: 0})

		res, err := deps.purchase.Begin(ctx, "", model.TargetSubscriptionPlan, "TRIAL", model.ModeNew)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if res.Intent.State != model.IntentStateActivated {
			t.Errorf("expected ACTIVATED, got %s", res.Intent.State)
		}
		if res.Order != nil {
			t.Error("expected no order for a free target")
		}
		if deps.gateway.CreateCalls() != 0 {
			t.Errorf("expected no gateway calls, got %d", deps.gateway.CreateCalls())
		}
		if calls := deps.hookCalls(); len(calls) != 1 || calls[0] != "subscription-plan/TRIAL" {
			t.Errorf("expected one onActivated call for the trial, got %v", calls)
		}
	})

	t.Run("client-supplied intent id is kept for correlation", func(t *testing.T) {
		deps := newUCDeps()
		deps.plans.Put(&model.Plan{Code: "P1", PricePaise: 499900})

		res, err := deps.purchase.Begin(ctx, "intent-from-client", model.TargetSubscriptionPlan, "P1", model.ModeNew)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if res.Intent.ID != "intent-from-client" {
			t.Errorf("expected client intent id to be kept, got %s", res.Intent.ID)
		}
	})

	t.Run("unknown plan code fails", func(t *testing.T) {
		deps := newUCDeps()
		_, err := deps.purchase.Begin(ctx, "", model.TargetSubscriptionPlan, "NOPE", model.ModeNew)
		if !errors.Is(err, domain.ErrPlanNotFound) {
			t.Errorf("expected ErrPlanNotFound, got %v", err)
		}
	})

	t.Run("gateway down after retry surfaces as retryable unavailability", func(t *testing.T) {
		deps := newUCDeps()
		deps.plans.Put(&model.Plan{Code: "P1", PricePaise: 499900})
		deps.gateway.CreateOrderFunc = func(ctx context.Context, intentID string, amount int64, currency string) (adapter.OrderHandle, error) {
			return adapter.OrderHandle{}, errors.New("connection refused")
		}

		_, err := deps.purchase.Begin(ctx, "", model.TargetSubscriptionPlan, "P1", model.ModeNew)
		if !errors.Is(err, domain.ErrGatewayUnavailable) {
			t.Errorf("expected ErrGatewayUnavailable, got %v", err)
		}
		if deps.gateway.CreateCalls() != 2 {
			t.Errorf("expected one retry (2 calls), got %d", deps.gateway.CreateCalls())
		}
	})

	t.Run("account-link fee is priced by target type", func(t *testing.T) {
		deps := newUCDeps()
		deps.plans.Put(&model.Plan{Code: "account-link", PricePaise: 9900})

		res, err := deps.purchase.Begin(ctx, "", model.TargetAccountLink, "child-42", model.ModeNew)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if res.Intent.Amount != 9900 {
			t.Errorf("expected flat link fee 9900, got %d", res.Intent.Amount)
		}
	})
}

func TestPurchaseUC_Resume(t *testing.T) {
	ctx := context.Background()

	t.Run("post-redirect lookup returns the pending intent and order", func(t *testing.T) {
		deps := newUCDeps()
		deps.plans.Put(&model.Plan{Code: "P1", PricePaise: 499900})
		begun, err := deps.purchase.Begin(ctx, "", model.TargetSubscriptionPlan, "P1", model.ModeNew)
		if err != nil {
			t.Fatalf("begin: %v", err)
		}

		res, err := deps.purchase.Resume(ctx, model.TargetSubscriptionPlan, "P1")
		if err != nil {
			t.Fatalf("resume: %v", err)
		}
		if res.Intent.ID != begun.Intent.ID {
			t.Errorf("expected resumed intent %s, got %s", begun.Intent.ID, res.Intent.ID)
		}
		if res.Order == nil || res.Order.OrderID != begun.Order.OrderID {
			t.Error("expected the original order to be handed back on resume")
		}
	})

	t.Run("falls back to the open-intent index when the cache entry is gone", func(t *testing.T) {
		deps := newUCDeps()
		deps.plans.Put(&model.Plan{Code: "P1", PricePaise: 499900})
		begun, err := deps.purchase.Begin(ctx, "", model.TargetSubscriptionPlan, "P1", model.ModeNew)
		if err != nil {
			t.Fatalf("begin: %v", err)
		}
		_ = deps.resume.Clear(ctx, model.TargetSubscriptionPlan, "P1")

		res, err := deps.purchase.Resume(ctx, model.TargetSubscriptionPlan, "P1")
		if err != nil {
			t.Fatalf("resume: %v", err)
		}
		if res.Intent.ID != begun.Intent.ID {
			t.Errorf("expected fallback to find intent %s, got %s", begun.Intent.ID, res.Intent.ID)
		}
	})

	t.Run("nothing to resume yields not found", func(t *testing.T) {
		deps := newUCDeps()
		_, err := deps.purchase.Resume(ctx, model.TargetSubscriptionPlan, "P1")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("completes a launch cut short after order creation", func(t *testing.T) {
		// The process died between ORDER_CREATED and GATEWAY_OPEN: the order
		// exists but the intent never reached a verifiable state.
		deps := newUCDeps()
		deps.plans.Put(&model.Plan{Code: "P1", PricePaise: 499900})
		intent := &model.PurchaseIntent{
			ID:         "01STRANDED",
			TargetType: model.TargetSubscriptionPlan,
			TargetRef:  "P1",
			Amount:     499900,
			Mode:       model.ModeNew,
			State:      model.IntentStateOrderCreated,
			CreatedAt:  time.Now(),
		}
		if err := deps.intents.Save(ctx, nil, intent); err != nil {
			t.Fatalf("seed intent: %v", err)
		}
		if err := deps.orders.Save(ctx, nil, &model.PaymentOrder{
			OrderID:  "order_01STRANDED",
			IntentID: intent.ID,
			Amount:   499900,
			Currency: "INR",
			Status:   model.OrderStatusCreated,
		}); err != nil {
			t.Fatalf("seed order: %v", err)
		}
		if err := deps.resume.Set(ctx, model.TargetSubscriptionPlan, "P1", intent.ID); err != nil {
			t.Fatalf("seed resume: %v", err)
		}

		res, err := deps.purchase.Resume(ctx, model.TargetSubscriptionPlan, "P1")
		if err != nil {
			t.Fatalf("resume: %v", err)
		}
		if res.Intent.State != model.IntentStateGatewayOpen {
			t.Errorf("expected resume to advance to GATEWAY_OPEN, got %s", res.Intent.State)
		}
		if res.Order == nil || res.Order.OrderID != "order_01STRANDED" {
			t.Fatal("expected the already-created order to be handed back")
		}
		if deps.gateway.CreateCalls() != 0 {
			t.Errorf("expected no new gateway order, got %d create calls", deps.gateway.CreateCalls())
		}

		// The handed-out order must now be payable to completion.
		if err := deps.verify.Verify(ctx, res.Intent.ID, successPayload(deps, res.Intent.ID)); err != nil {
			t.Fatalf("verify after resume: %v", err)
		}
		got, _ := deps.intents.FindByID(ctx, nil, res.Intent.ID)
		if got.State != model.IntentStateActivated {
			t.Errorf("expected ACTIVATED, got %s", got.State)
		}
		if calls := deps.hookCalls(); len(calls) != 1 {
			t.Errorf("expected exactly one activation, got %v", calls)
		}
	})

	t.Run("finishes the confirm for a free intent stranded at init", func(t *testing.T) {
		deps := newUCDeps()
		deps.plans.Put(&model.Plan{Code: "TRIAL", PricePaise: 0})
		intent := &model.PurchaseIntent{
			ID:         "01FREEINIT",
			TargetType: model.TargetSubscriptionPlan,
			TargetRef:  "TRIAL",
			Amount:     0,
			Mode:       model.ModeNew,
			State:      model.IntentStateInit,
			CreatedAt:  time.Now(),
		}
		if err := deps.intents.Save(ctx, nil, intent); err != nil {
			t.Fatalf("seed intent: %v", err)
		}
		if err := deps.resume.Set(ctx, model.TargetSubscriptionPlan, "TRIAL", intent.ID); err != nil {
			t.Fatalf("seed resume: %v", err)
		}

		res, err := deps.purchase.Resume(ctx, model.TargetSubscriptionPlan, "TRIAL")
		if err != nil {
			t.Fatalf("resume: %v", err)
		}
		if res.Intent.State != model.IntentStateActivated {
			t.Errorf("expected ACTIVATED, got %s", res.Intent.State)
		}
		if calls := deps.hookCalls(); len(calls) != 1 || calls[0] != "subscription-plan/TRIAL" {
			t.Errorf("expected onActivated(subscription-plan, TRIAL) exactly once, got %v", calls)
		}
	})
}
