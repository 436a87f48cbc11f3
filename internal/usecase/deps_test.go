//go:build !integration

package usecase_test

import (
	"sync"

	"wisestudent-purchase/internal/domain/model"
	"wisestudent-purchase/internal/usecase"
)

// ucDeps holds all the mock dependencies shared by the use case tests.
type ucDeps struct {
	intents     *MockIntentRepo
	orders      *MockOrderRepo
	activations *MockActivationRepo
	plans       *MockPlanRepo
	resume      *MockResumeRepo
	gateway     *MockPaymentGateway
	broadcaster *MockBroadcaster
	tm          *MockTxManager

	guard    usecase.ActivationUseCase
	purchase usecase.PurchaseUseCase
	verify   usecase.VerificationUseCase
	cancel   usecase.CancellationUseCase

	mu        sync.Mutex
	activated []string // "targetType/targetRef" per hook invocation
}

// newUCDeps wires a fresh set of mocks plus the real use cases around them.
func newUCDeps() *ucDeps {
	d := &ucDeps{
		intents:     NewMockIntentRepo(),
		orders:      NewMockOrderRepo(),
		activations: NewMockActivationRepo(),
		plans:       NewMockPlanRepo(),
		resume:      NewMockResumeRepo(),
		gateway:     &MockPaymentGateway{},
		broadcaster: NewMockBroadcaster(),
		tm:          NewMockTxManager(),
	}
	logger := newTestLogger()
	guard := usecase.NewActivationUseCase(d.intents, d.activations, d.resume, d.broadcaster, d.tm, logger)
	guard.RegisterHook(func(tt model.TargetType, ref string) {
		d.mu.Lock()
		d.activated = append(d.activated, string(tt)+"/"+ref)
		d.mu.Unlock()
	})
	d.guard = guard
	d.purchase = usecase.NewPurchaseUseCase(d.intents, d.orders, d.plans, d.resume, d.gateway, guard, logger)
	d.verify = usecase.NewVerificationUseCase(d.intents, d.orders, d.gateway, guard, logger)
	d.cancel = usecase.NewCancellationUseCase(d.intents, d.orders, d.resume, logger)
	return d
}

func (d *ucDeps) hookCalls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string{}, d.activated...)
}
