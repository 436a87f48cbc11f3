package repository

import (
	"context"
	"time"

	"wisestudent-purchase/internal/domain/model"
)

// -----------------------------
// Purchase intents
// -----------------------------

type IntentRepository interface {
	// Save inserts the intent. A unique index over (target_type, target_ref)
	// restricted to non-terminal states makes a concurrent duplicate surface
	// as domain.ErrIntentConflict.
	Save(ctx context.Context, tx Tx, in *model.PurchaseIntent) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.PurchaseIntent, error)
	// FindOpenByTarget returns the single non-terminal intent for a target,
	// or domain.ErrNotFound.
	FindOpenByTarget(ctx context.Context, tx Tx, tt model.TargetType, ref string) (*model.PurchaseIntent, error)
	// CompareAndTransition moves the intent from -> to, bumping Seq, only if
	// it is still in `from`; returns the new Seq or domain.ErrInvalidTransition
	// when the state moved underneath us.
	CompareAndTransition(ctx context.Context, tx Tx, id string, from, to model.IntentState) (int64, error)
	// ListStuck returns non-terminal intents in the given state whose last
	// transition is older than cutoff, for the reconciler sweep.
	ListStuck(ctx context.Context, tx Tx, state model.IntentState, cutoff time.Time, limit int) ([]*model.PurchaseIntent, error)
	// AppendTransition records one edge of the side-effect log.
	AppendTransition(ctx context.Context, tx Tx, tr *model.Transition) error
}
