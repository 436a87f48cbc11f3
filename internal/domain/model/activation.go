package model

import "time"

// ConfirmationSource identifies which of the two racing channels committed
// an activation first.
type ConfirmationSource string

const (
	ConfirmedByVerification ConfirmationSource = "verification-callback"
	ConfirmedByBroadcast    ConfirmationSource = "broadcast"
)

// ActivationRecord marks a trusted confirmation of payment for an intent.
// At most one record is ever committed per intent; the reconciliation guard
// enforces first-writer-wins, every later confirmation is a no-op.
type ActivationRecord struct {
	IntentID    string
	ConfirmedBy ConfirmationSource
	ConfirmedAt time.Time
}

// ActivationEvent is the payload carried on the broadcast channel. Consumed by
// every subscribed client, including ones that never initiated the purchase.
type ActivationEvent struct {
	TargetType TargetType `json:"targetType"`
	TargetRef  string     `json:"targetRef"`
	IntentID   string     `json:"intentId"`
}
