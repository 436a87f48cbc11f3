package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"wisestudent-purchase/internal/domain"
	"wisestudent-purchase/internal/domain/model"
	"wisestudent-purchase/internal/domain/ports/repository"
)

// Ensure interface compliance
var _ repository.PlanRepository = (*planRepo)(nil)

type planRepo struct {
	pool *pgxpool.Pool
}

func NewPlanRepo(pool *pgxpool.Pool) *planRepo {
	return &planRepo{pool: pool}
}

// Upsert writes one price-list entry. Only the setup tooling calls this;
// the service itself treats the list as read-only.
func (r *planRepo) Upsert(ctx context.Context, plan *model.Plan) error {
	const sql = `
INSERT INTO plans (code, name, price_paise, duration_days, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (code) DO UPDATE
  SET name          = EXCLUDED.name,
      price_paise   = EXCLUDED.price_paise,
      duration_days = EXCLUDED.duration_days;
`
	_, err := r.pool.Exec(ctx, sql, plan.Code, plan.Name, plan.PricePaise, plan.DurationDays, plan.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert plan: %w", err)
	}
	return nil
}

func (r *planRepo) FindByCode(ctx context.Context, code string) (*model.Plan, error) {
	const sql = `
SELECT code, name, price_paise, duration_days, created_at
  FROM plans
 WHERE code = $1;
`
	row := r.pool.QueryRow(ctx, sql, code)
	p := &model.Plan{}
	if err := row.Scan(&p.Code, &p.Name, &p.PricePaise, &p.DurationDays, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}

func (r *planRepo) ListAll(ctx context.Context) ([]*model.Plan, error) {
	const sql = `
SELECT code, name, price_paise, duration_days, created_at
  FROM plans
 ORDER BY code;
`
	rows, err := r.pool.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Plan
	for rows.Next() {
		p := &model.Plan{}
		if err := rows.Scan(&p.Code, &p.Name, &p.PricePaise, &p.DurationDays, &p.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
