package repository

import (
	"context"

	"wisestudent-purchase/internal/domain/model"
)

// -----------------------------
// Payment orders
// -----------------------------

type OrderRepository interface {
	// Save upserts by intent_id. The unique constraint on intent_id keeps
	// order creation idempotent per intent.
	Save(ctx context.Context, tx Tx, o *model.PaymentOrder) error
	FindByIntentID(ctx context.Context, tx Tx, intentID string) (*model.PaymentOrder, error)
	FindByOrderID(ctx context.Context, tx Tx, orderID string) (*model.PaymentOrder, error)
	UpdateStatus(ctx context.Context, tx Tx, orderID string, status model.OrderStatus) error
}
