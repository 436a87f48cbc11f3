package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"wisestudent-purchase/internal/domain"
	"wisestudent-purchase/internal/domain/model"
	"wisestudent-purchase/internal/domain/ports/repository"
)

var _ repository.IntentRepository = (*intentRepo)(nil)

type intentRepo struct{ pool *pgxpool.Pool }

func NewIntentRepo(pool *pgxpool.Pool) *intentRepo {
	return &intentRepo{pool: pool}
}

const intentCols = `id, target_type, target_ref, amount, mode, state, seq, created_at, last_transition_at`

// Save inserts the intent. The partial unique index
// ux_intents_open_target (target_type, target_ref) WHERE state NOT IN
// ('ACTIVATED','FAILED','CANCELLED') turns a concurrent duplicate into
// a unique violation, surfaced as ErrIntentConflict.
func (r *intentRepo) Save(ctx context.Context, tx repository.Tx, in *model.PurchaseIntent) error {
	const q = `
INSERT INTO purchase_intents (` + intentCols + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9);`

	_, err := execSQL(ctx, r.pool, tx, q,
		in.ID, in.TargetType, in.TargetRef, in.Amount, in.Mode, in.State, in.Seq, in.CreatedAt, in.LastTransitionAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrIntentConflict
		}
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *intentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PurchaseIntent, error) {
	q := `SELECT ` + intentCols + ` FROM purchase_intents WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanIntent(row)
}

func (r *intentRepo) FindOpenByTarget(ctx context.Context, tx repository.Tx, tt model.TargetType, ref string) (*model.PurchaseIntent, error) {
	q := `SELECT ` + intentCols + ` FROM purchase_intents
WHERE target_type=$1 AND target_ref=$2 AND state NOT IN ('ACTIVATED','FAILED','CANCELLED')
LIMIT 1`
	row, err := pickRow(ctx, r.pool, tx, q, tt, ref)
	if err != nil {
		return nil, err
	}
	return scanIntent(row)
}

// CompareAndTransition performs the atomic state swap the state machine
// relies on under concurrent invocation: the UPDATE only lands while the
// row is still in `from`.
func (r *intentRepo) CompareAndTransition(ctx context.Context, tx repository.Tx, id string, from, to model.IntentState) (int64, error) {
	const q = `
UPDATE purchase_intents
   SET state=$3, seq=seq+1, last_transition_at=NOW()
 WHERE id=$1 AND state=$2
RETURNING seq;`

	row, err := pickRow(ctx, r.pool, tx, q, id, from, to)
	if err != nil {
		return 0, err
	}
	var seq int64
	if err := row.Scan(&seq); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrInvalidTransition
		}
		return 0, domain.ErrReadDatabaseRow
	}
	return seq, nil
}

func (r *intentRepo) ListStuck(ctx context.Context, tx repository.Tx, state model.IntentState, cutoff time.Time, limit int) ([]*model.PurchaseIntent, error) {
	const q = `SELECT ` + intentCols + ` FROM purchase_intents
WHERE state=$1 AND last_transition_at < $2
ORDER BY last_transition_at ASC
LIMIT $3;`

	rows, err := pickRows(ctx, r.pool, tx, q, state, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.PurchaseIntent
	for rows.Next() {
		in, err := scanIntent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

func (r *intentRepo) AppendTransition(ctx context.Context, tx repository.Tx, tr *model.Transition) error {
	const q = `
INSERT INTO intent_transitions (id, intent_id, seq, from_state, to_state, event, at)
VALUES ($1,$2,$3,$4,$5,$6,$7);`

	_, err := execSQL(ctx, r.pool, tx, q, tr.ID, tr.IntentID, tr.Seq, tr.FromState, tr.ToState, tr.Event, tr.At)
	if err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

func scanIntent(row pgx.Row) (*model.PurchaseIntent, error) {
	in := &model.PurchaseIntent{}
	if err := row.Scan(&in.ID, &in.TargetType, &in.TargetRef, &in.Amount, &in.Mode, &in.State, &in.Seq, &in.CreatedAt, &in.LastTransitionAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return in, nil
}
