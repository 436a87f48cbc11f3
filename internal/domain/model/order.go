package model

import "time"

type OrderStatus string

const (
	OrderStatusCreated  OrderStatus = "created"
	OrderStatusCaptured OrderStatus = "captured"
	OrderStatusFailed   OrderStatus = "failed"
)

// PaymentOrder is the gateway-side payable order backing an intent.
// At most one order ever exists per intent; retried creation calls are
// idempotent on IntentID.
type PaymentOrder struct {
	OrderID           string // issued by the gateway
	IntentID          string
	Amount            int64 // paise
	Currency          string
	Status            OrderStatus
	GatewayCredential string // public key id the checkout widget opens with
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
