package models

import (
	"time"

	"github.com/uptrace/bun"
)

type PaymentStatus string

const (
	PaymentSuccess PaymentStatus = "success"
	PaymentFailed  PaymentStatus = "failed"
)

type PaymentMethod string

const (
	MethodCard   PaymentMethod = "card"
	MethodBank   PaymentMethod = "bank"
	MethodStripe PaymentMethod = "stripe"
	MethodPaypal PaymentMethod = "paypal"
)

// Payment is an append-only record of a completed payment attempt for a
// booking group. Rows are never updated after insert; at most one successful
// row exists per group.
type Payment struct {
	bun.BaseModel `bun:"table:payments"`

	ID             string        `bun:"id,pk" json:"id"`
	BookingGroupID string        `bun:"booking_group_id,notnull" json:"booking_group_id"`
	Amount         float64       `bun:"amount,notnull" json:"amount"`
	Status         PaymentStatus `bun:"status,notnull" json:"status"`
	Reference      string        `bun:"reference,notnull" json:"reference"`
	Method         PaymentMethod `bun:"method,notnull" json:"method"`
	PaymentDate    time.Time     `bun:"payment_date,notnull" json:"payment_date"`
}

// PaymentEvent is the confirmation payload delivered by the payment
// processor. Signature verification happens at the webhook boundary; by the
// time a PaymentEvent reaches the settlement coordinator it is trusted.
type PaymentEvent struct {
	Type           string  `json:"type"`
	TransactionID  string  `json:"transaction_id"`
	GroupReference string  `json:"group_reference"`
	Amount         float64 `json:"amount"`
}

type CheckoutResponse struct {
	RedirectURL string `json:"redirect_url"`
}
