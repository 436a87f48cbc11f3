package repository

import (
	"context"

	"wisestudent-purchase/internal/domain/model"
)

// -----------------------------
// Activation records
// -----------------------------

type ActivationRepository interface {
	// Commit inserts the record if none exists for the intent yet and reports
	// whether this call was the first writer. The second channel to arrive
	// gets won=false and must not re-run side effects.
	Commit(ctx context.Context, tx Tx, rec *model.ActivationRecord) (won bool, err error)
	Find(ctx context.Context, tx Tx, intentID string) (*model.ActivationRecord, error)
}
