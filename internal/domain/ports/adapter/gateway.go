package adapter

import "context"

// OrderHandle is the provider-agnostic result of creating a payable order.
type OrderHandle struct {
	OrderID    string // gateway order id
	Credential string // public key id the checkout opens with
}

// SuccessPayload is the opaque proof of payment the checkout reports back.
// It is untrusted until the signature is verified against the stored order.
type SuccessPayload struct {
	PaymentID string `json:"gatewayPaymentId"`
	OrderID   string `json:"gatewayOrderId"`
	Signature string `json:"gatewaySignature"`
}

// OrderState is what the gateway reports when asked about an order
// out-of-band (reconciler path).
type OrderState struct {
	OrderID   string
	Status    string // created | attempted | paid
	PaymentID string // set once paid
}

// PaymentGateway is the hex port for the external payment provider.
type PaymentGateway interface {
	Name() string

	// CreateOrder creates a payable order, idempotent on intentID: when the
	// gateway already holds an order for that receipt, the existing handle is
	// returned instead of an error.
	CreateOrder(ctx context.Context, intentID string, amount int64, currency string) (OrderHandle, error)

	// VerifySignature checks the checkout success payload against the order.
	// A false return means the success signal cannot be trusted.
	VerifySignature(p SuccessPayload) bool

	// FetchOrderStatus asks the gateway for the current order state. Used to
	// resume intents stuck in VERIFYING after a network drop.
	FetchOrderStatus(ctx context.Context, orderID string) (OrderState, error)
}
