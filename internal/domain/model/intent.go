package model

import "time"

type IntentState string

const (
	IntentStateInit         IntentState = "INIT"          // intent created, no order yet
	IntentStateOrderCreated IntentState = "ORDER_CREATED" // gateway order exists
	IntentStateGatewayOpen  IntentState = "GATEWAY_OPEN"  // checkout handed to the user
	IntentStateVerifying    IntentState = "VERIFYING"     // success reported, backend confirmation in flight
	IntentStateActivated    IntentState = "ACTIVATED"     // terminal: entitlement effective
	IntentStateFailed       IntentState = "FAILED"        // terminal: verification rejected or order failed
	IntentStateCancelled    IntentState = "CANCELLED"     // terminal: user abandoned the checkout
)

// Terminal reports whether the state is final. A terminal intent is immutable,
// with one exception handled by the reconciliation guard: a CANCELLED intent
// may still be promoted to ACTIVATED by a late broadcast confirmation,
// because cancellation records UI abandonment, not payment failure.
func (s IntentState) Terminal() bool {
	switch s {
	case IntentStateActivated, IntentStateFailed, IntentStateCancelled:
		return true
	}
	return false
}

type IntentEvent string

const (
	EventOrderCreated    IntentEvent = "order_created"
	EventGatewayOpened   IntentEvent = "gateway_opened"
	EventSuccessReported IntentEvent = "success_reported"
	EventActivated       IntentEvent = "activated"
	EventFailed          IntentEvent = "failed"
	EventDismissed       IntentEvent = "dismissed"
)

// transitions is the legal edge set of the purchase state machine.
// The amount==0 fast path INIT -> ACTIVATED and the late-broadcast
// CANCELLED -> ACTIVATED promotion both ride the "activated" event.
var transitions = map[IntentState]map[IntentEvent]IntentState{
	IntentStateInit: {
		EventOrderCreated: IntentStateOrderCreated,
		EventActivated:    IntentStateActivated,
	},
	IntentStateOrderCreated: {
		EventGatewayOpened: IntentStateGatewayOpen,
		EventFailed:        IntentStateFailed,
	},
	IntentStateGatewayOpen: {
		EventSuccessReported: IntentStateVerifying,
		EventDismissed:       IntentStateCancelled,
		EventActivated:       IntentStateActivated,
	},
	IntentStateVerifying: {
		EventActivated: IntentStateActivated,
		EventFailed:    IntentStateFailed,
	},
	IntentStateCancelled: {
		EventActivated: IntentStateActivated,
	},
}

// Next resolves the state an event leads to from the given state.
// ok is false when the edge does not exist.
func Next(from IntentState, ev IntentEvent) (IntentState, bool) {
	to, ok := transitions[from][ev]
	return to, ok
}

type TargetType string

const (
	TargetSubscriptionPlan TargetType = "subscription-plan"
	TargetAccountLink      TargetType = "account-link"
	TargetAccountCreate    TargetType = "account-create"
)

type PurchaseMode string

const (
	ModeNew     PurchaseMode = "new"
	ModeRenewal PurchaseMode = "renewal"
)

// PurchaseIntent is the record of a user's attempt to acquire an entitlement,
// independent of payment outcome. ID is the correlation key: supplied by the
// client and stable across retries, or minted server-side when absent.
type PurchaseIntent struct {
	ID               string
	TargetType       TargetType
	TargetRef        string // plan code / child identifier / creation request id
	Amount           int64  // paise; zero skips the gateway entirely
	Mode             PurchaseMode
	State            IntentState
	Seq              int64 // monotonic transition counter, for race debugging
	CreatedAt        time.Time
	LastTransitionAt time.Time
}

// Transition is one appended entry of the side-effect log kept per intent.
type Transition struct {
	ID        string // ULID, sortable
	IntentID  string
	Seq       int64
	FromState IntentState
	ToState   IntentState
	Event     IntentEvent
	At        time.Time
}
