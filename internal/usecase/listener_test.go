//go:build !integration

package usecase_test

import (
	"context"
	"testing"
	"time"

	"wisestudent-purchase/internal/domain/model"
	"wisestudent-purchase/internal/infra/worker"
	"wisestudent-purchase/internal/usecase"
)

func TestActivationListener(t *testing.T) {
	t.Run("inbound broadcast event reaches the guard", func(t *testing.T) {
		deps := newUCDeps()
		intent := beginPaid(t, deps)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		pool := worker.NewPool(2, newTestLogger())
		pool.Start(ctx)
		defer pool.Stop()

		listener := usecase.NewActivationListener(deps.broadcaster, deps.guard, pool, newTestLogger())
		go func() { _ = listener.Run(ctx) }()

		// Give Subscribe a moment to register before publishing.
		time.Sleep(10 * time.Millisecond)
		err := deps.broadcaster.Publish(ctx, model.ActivationEvent{
			TargetType: intent.TargetType,
			TargetRef:  intent.TargetRef,
			IntentID:   intent.ID,
		})
		if err != nil {
			t.Fatalf("publish: %v", err)
		}

		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			if got, _ := deps.intents.FindByID(ctx, nil, intent.ID); got.State == model.IntentStateActivated {
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
		t.Fatal("expected the broadcast event to activate the intent")
	})
}
