package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"wisestudent-purchase/internal/domain"
	"wisestudent-purchase/internal/domain/model"
	"wisestudent-purchase/internal/domain/ports/repository"
)

var _ repository.OrderRepository = (*orderRepo)(nil)

type orderRepo struct{ pool *pgxpool.Pool }

func NewOrderRepo(pool *pgxpool.Pool) *orderRepo {
	return &orderRepo{pool: pool}
}

const orderCols = `order_id, intent_id, amount, currency, status, gateway_credential, created_at, updated_at`

// Save upserts by intent_id, keeping order creation idempotent per intent:
// a retried create for the same intent lands on the existing row.
func (r *orderRepo) Save(ctx context.Context, tx repository.Tx, o *model.PaymentOrder) error {
	const q = `
INSERT INTO payment_orders (` + orderCols + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (intent_id) DO UPDATE SET
  status=EXCLUDED.status, updated_at=EXCLUDED.updated_at;`

	_, err := execSQL(ctx, r.pool, tx, q,
		o.OrderID, o.IntentID, o.Amount, o.Currency, o.Status, o.GatewayCredential, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *orderRepo) FindByIntentID(ctx context.Context, tx repository.Tx, intentID string) (*model.PaymentOrder, error) {
	q := `SELECT ` + orderCols + ` FROM payment_orders WHERE intent_id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q, intentID)
	if err != nil {
		return nil, err
	}
	return scanOrder(row)
}

func (r *orderRepo) FindByOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.PaymentOrder, error) {
	q := `SELECT ` + orderCols + ` FROM payment_orders WHERE order_id=$1`
	row, err := pickRow(ctx, r.pool, tx, q, orderID)
	if err != nil {
		return nil, err
	}
	return scanOrder(row)
}

func (r *orderRepo) UpdateStatus(ctx context.Context, tx repository.Tx, orderID string, status model.OrderStatus) error {
	const q = `UPDATE payment_orders SET status=$2, updated_at=NOW() WHERE order_id=$1;`
	_, err := execSQL(ctx, r.pool, tx, q, orderID, status)
	if err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

func scanOrder(row pgx.Row) (*model.PaymentOrder, error) {
	o := &model.PaymentOrder{}
	if err := row.Scan(&o.OrderID, &o.IntentID, &o.Amount, &o.Currency, &o.Status, &o.GatewayCredential, &o.CreatedAt, &o.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return o, nil
}
