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

var _ repository.ActivationRepository = (*activationRepo)(nil)

type activationRepo struct{ pool *pgxpool.Pool }

func NewActivationRepo(pool *pgxpool.Pool) *activationRepo {
	return &activationRepo{pool: pool}
}

// Commit is the first-writer-wins primitive the reconciliation guard is
// built on: intent_id is the primary key, so whichever channel inserts
// first wins and every later insert affects zero rows.
func (r *activationRepo) Commit(ctx context.Context, tx repository.Tx, rec *model.ActivationRecord) (bool, error) {
	const q = `
INSERT INTO activation_records (intent_id, confirmed_by, confirmed_at)
VALUES ($1,$2,$3)
ON CONFLICT (intent_id) DO NOTHING;`

	tag, err := execSQL(ctx, r.pool, tx, q, rec.IntentID, rec.ConfirmedBy, rec.ConfirmedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return tag.RowsAffected() == 1, nil
}

func (r *activationRepo) Find(ctx context.Context, tx repository.Tx, intentID string) (*model.ActivationRecord, error) {
	const q = `SELECT intent_id, confirmed_by, confirmed_at FROM activation_records WHERE intent_id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, intentID)
	if err != nil {
		return nil, err
	}
	rec := &model.ActivationRecord{}
	if err := row.Scan(&rec.IntentID, &rec.ConfirmedBy, &rec.ConfirmedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return rec, nil
}
