package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound            = errors.New("entity not found")
	ErrPlanNotFound        = errors.New("plan not found")
	ErrIntentConflict      = errors.New("a purchase attempt is already in progress for this target")
	ErrInvalidTransition   = errors.New("event is not legal from the current intent state")
	ErrGatewayUnavailable  = errors.New("payment gateway unavailable")
	ErrActivationDenied    = errors.New("payment verification rejected")
	ErrVerificationPending = errors.New("payment reported but activation still pending")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrInvalidExecContext  = errors.New("invalid database execution context")
	ErrOperationFailed     = errors.New("database operation failed")
	ErrReadDatabaseRow     = errors.New("failed to read database row")
)
