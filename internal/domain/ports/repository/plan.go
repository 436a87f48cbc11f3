package repository

import (
	"context"

	"wisestudent-purchase/internal/domain/model"
)

// -----------------------------
// Plans (read-only price list)
// -----------------------------

type PlanRepository interface {
	FindByCode(ctx context.Context, code string) (*model.Plan, error)
	ListAll(ctx context.Context) ([]*model.Plan, error)
}
