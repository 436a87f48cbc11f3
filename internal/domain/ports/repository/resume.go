package repository

import (
	"context"

	"wisestudent-purchase/internal/domain/model"
)

// ResumeStateRepository keeps the "pending purchase survives an auth redirect"
// bookkeeping. Keyed by target, not by session: the redirect through the
// external auth collaborator loses the session but not the target.
type ResumeStateRepository interface {
	Set(ctx context.Context, tt model.TargetType, ref, intentID string) error
	Get(ctx context.Context, tt model.TargetType, ref string) (intentID string, err error)
	Clear(ctx context.Context, tt model.TargetType, ref string) error
}
