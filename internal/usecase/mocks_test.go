//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"wisestudent-purchase/internal/domain"
	"wisestudent-purchase/internal/domain/model"
	"wisestudent-purchase/internal/domain/ports/adapter"
	"wisestudent-purchase/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

// ---- Intent repository ----

type MockIntentRepo struct {
	mu          sync.Mutex
	store       map[string]*model.PurchaseIntent
	transitions []*model.Transition
	SaveFunc    func(ctx context.Context, tx repository.Tx, in *model.PurchaseIntent) error
}

func NewMockIntentRepo() *MockIntentRepo {
	return &MockIntentRepo{store: make(map[string]*model.PurchaseIntent)}
}

func (m *MockIntentRepo) Save(ctx context.Context, tx repository.Tx, in *model.PurchaseIntent) error {
	if m.SaveFunc != nil {
		if err := m.SaveFunc(ctx, tx, in); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.store {
		if other.TargetType == in.TargetType && other.TargetRef == in.TargetRef && !other.State.Terminal() {
			return domain.ErrIntentConflict
		}
	}
	cp := *in
	m.store[in.ID] = &cp
	return nil
}

func (m *MockIntentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PurchaseIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	in, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *in
	return &cp, nil
}

func (m *MockIntentRepo) FindOpenByTarget(ctx context.Context, tx repository.Tx, tt model.TargetType, ref string) (*model.PurchaseIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, in := range m.store {
		if in.TargetType == tt && in.TargetRef == ref && !in.State.Terminal() {
			cp := *in
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockIntentRepo) CompareAndTransition(ctx context.Context, tx repository.Tx, id string, from, to model.IntentState) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	in, ok := m.store[id]
	if !ok {
		return 0, domain.ErrNotFound
	}
	if in.State != from {
		return 0, domain.ErrInvalidTransition
	}
	in.State = to
	in.Seq++
	in.LastTransitionAt = time.Now()
	return in.Seq, nil
}

func (m *MockIntentRepo) ListStuck(ctx context.Context, tx repository.Tx, state model.IntentState, cutoff time.Time, limit int) ([]*model.PurchaseIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.PurchaseIntent
	for _, in := range m.store {
		if in.State == state && in.LastTransitionAt.Before(cutoff) {
			cp := *in
			out = append(out, &cp)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (m *MockIntentRepo) AppendTransition(ctx context.Context, tx repository.Tx, tr *model.Transition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *tr
	m.transitions = append(m.transitions, &cp)
	return nil
}

// ---- Order repository ----

type MockOrderRepo struct {
	mu       sync.Mutex
	store    map[string]*model.PaymentOrder // by intent id
	SaveFunc func(ctx context.Context, tx repository.Tx, o *model.PaymentOrder) error
}

func NewMockOrderRepo() *MockOrderRepo {
	return &MockOrderRepo{store: make(map[string]*model.PaymentOrder)}
}

func (m *MockOrderRepo) Save(ctx context.Context, tx repository.Tx, o *model.PaymentOrder) error {
	if m.SaveFunc != nil {
		if err := m.SaveFunc(ctx, tx, o); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *o
	m.store[o.IntentID] = &cp
	return nil
}

func (m *MockOrderRepo) FindByIntentID(ctx context.Context, tx repository.Tx, intentID string) (*model.PaymentOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.store[intentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *MockOrderRepo) FindByOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.PaymentOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.store {
		if o.OrderID == orderID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockOrderRepo) UpdateStatus(ctx context.Context, tx repository.Tx, orderID string, status model.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.store {
		if o.OrderID == orderID {
			o.Status = status
			o.UpdatedAt = time.Now()
			return nil
		}
	}
	return domain.ErrNotFound
}

// ---- Activation repository ----

type MockActivationRepo struct {
	mu         sync.Mutex
	store      map[string]*model.ActivationRecord
	CommitFunc func(ctx context.Context, tx repository.Tx, rec *model.ActivationRecord) (bool, error)
}

func NewMockActivationRepo() *MockActivationRepo {
	return &MockActivationRepo{store: make(map[string]*model.ActivationRecord)}
}

func (m *MockActivationRepo) Commit(ctx context.Context, tx repository.Tx, rec *model.ActivationRecord) (bool, error) {
	if m.CommitFunc != nil {
		return m.CommitFunc(ctx, tx, rec)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.store[rec.IntentID]; exists {
		return false, nil
	}
	cp := *rec
	m.store[rec.IntentID] = &cp
	return true, nil
}

func (m *MockActivationRepo) Find(ctx context.Context, tx repository.Tx, intentID string) (*model.ActivationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.store[intentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *MockActivationRepo) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.store)
}

// ---- Plan repository ----

type MockPlanRepo struct {
	mu    sync.Mutex
	store map[string]*model.Plan
}

func NewMockPlanRepo() *MockPlanRepo {
	return &MockPlanRepo{store: make(map[string]*model.Plan)}
}

func (m *MockPlanRepo) Put(p *model.Plan) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.store[p.Code] = &cp
}

func (m *MockPlanRepo) FindByCode(ctx context.Context, code string) (*model.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[code]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockPlanRepo) ListAll(ctx context.Context) ([]*model.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Plan, 0, len(m.store))
	for _, p := range m.store {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

// ---- Resume state repository ----

type MockResumeRepo struct {
	mu    sync.Mutex
	store map[string]string
}

func NewMockResumeRepo() *MockResumeRepo {
	return &MockResumeRepo{store: make(map[string]string)}
}

func resumeKey(tt model.TargetType, ref string) string { return string(tt) + ":" + ref }

func (m *MockResumeRepo) Set(ctx context.Context, tt model.TargetType, ref, intentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[resumeKey(tt, ref)] = intentID
	return nil
}

func (m *MockResumeRepo) Get(ctx context.Context, tt model.TargetType, ref string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.store[resumeKey(tt, ref)]
	if !ok {
		return "", domain.ErrNotFound
	}
	return id, nil
}

func (m *MockResumeRepo) Clear(ctx context.Context, tt model.TargetType, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.store, resumeKey(tt, ref))
	return nil
}

// ---- Payment gateway ----

type MockPaymentGateway struct {
	mu                   sync.Mutex
	createCalls          int
	CreateOrderFunc      func(ctx context.Context, intentID string, amount int64, currency string) (adapter.OrderHandle, error)
	VerifySignatureFunc  func(p adapter.SuccessPayload) bool
	FetchOrderStatusFunc func(ctx context.Context, orderID string) (adapter.OrderState, error)
}

func (m *MockPaymentGateway) Name() string { return "mockpay" }

func (m *MockPaymentGateway) CreateOrder(ctx context.Context, intentID string, amount int64, currency string) (adapter.OrderHandle, error) {
	m.mu.Lock()
	m.createCalls++
	m.mu.Unlock()
	if m.CreateOrderFunc != nil {
		return m.CreateOrderFunc(ctx, intentID, amount, currency)
	}
	return adapter.OrderHandle{OrderID: "order_" + intentID, Credential: "key_test"}, nil
}

func (m *MockPaymentGateway) VerifySignature(p adapter.SuccessPayload) bool {
	if m.VerifySignatureFunc != nil {
		return m.VerifySignatureFunc(p)
	}
	return true
}

func (m *MockPaymentGateway) FetchOrderStatus(ctx context.Context, orderID string) (adapter.OrderState, error) {
	if m.FetchOrderStatusFunc != nil {
		return m.FetchOrderStatusFunc(ctx, orderID)
	}
	return adapter.OrderState{OrderID: orderID, Status: "paid", PaymentID: "pay_ok"}, nil
}

func (m *MockPaymentGateway) CreateCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createCalls
}

// ---- Broadcaster ----

type MockBroadcaster struct {
	mu        sync.Mutex
	published []model.ActivationEvent
	subs      []func(ev model.ActivationEvent)
}

func NewMockBroadcaster() *MockBroadcaster { return &MockBroadcaster{} }

func (m *MockBroadcaster) Publish(ctx context.Context, ev model.ActivationEvent) error {
	m.mu.Lock()
	m.published = append(m.published, ev)
	subs := append([]func(ev model.ActivationEvent){}, m.subs...)
	m.mu.Unlock()
	for _, fn := range subs {
		fn(ev)
	}
	return nil
}

func (m *MockBroadcaster) Subscribe(ctx context.Context, fn func(ev model.ActivationEvent)) error {
	m.mu.Lock()
	m.subs = append(m.subs, fn)
	m.mu.Unlock()
	<-ctx.Done()
	return ctx.Err()
}

func (m *MockBroadcaster) Published() []model.ActivationEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.ActivationEvent{}, m.published...)
}

// ---- Transaction manager ----

type MockTxManager struct{}

func NewMockTxManager() *MockTxManager { return &MockTxManager{} }

func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, nil)
}
