package model

import "time"

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"   // order created at gateway; awaiting verification
	PaymentStatusCompleted PaymentStatus = "completed" // signature verified OK
	PaymentStatusFailed    PaymentStatus = "failed"    // verification or gateway failure
	PaymentStatusRefunded  PaymentStatus = "refunded"  // refunded after completion
)

type PaymentType string

const (
	PaymentTypeInvestment    PaymentType = "investment"
	PaymentTypeMembershipFee PaymentType = "membership_fee"
	PaymentTypeEventFee      PaymentType = "event_fee"
	PaymentTypeRefund        PaymentType = "refund"
)

type GatewayKind string

const (
	GatewayRazorpay GatewayKind = "razorpay"
	GatewayStripe   GatewayKind = "stripe"
	GatewayNoop     GatewayKind = "noop"
)

// PaymentIntent is the transient request to create an order with a gateway.
// It is built per request, never persisted and never mutated.
type PaymentIntent struct {
	AmountMinor int64 // minor units (paise)
	Currency    string
	Description string
	UserID      string
	Type        PaymentType
	Meta        map[string]interface{}
}

// Payment records a money movement through an external gateway.
// Amount is immutable after creation; a refund is recorded in the
// Refund* fields, never by mutating Amount.
type Payment struct {
	ID               string // UUID
	UserID           string // UUID
	AmountMinor      int64
	Currency         string
	Gateway          GatewayKind
	Status           PaymentStatus
	Type             PaymentType
	GatewayOrderID   string  // assigned by the gateway at order creation
	GatewayPaymentID string  // assigned by the gateway; set on completion
	Signature        string  // set after successful verification
	Description      string
	FailureReason    *string
	RefundAmount     *int64
	RefundReason     *string
	RefundedAt       *time.Time
	InvoiceID        *string // set once the invoice job has issued the invoice
	CreatedAt        time.Time
	UpdatedAt        time.Time
	CompletedAt      *time.Time
	Meta             map[string]interface{}
}

// CanTransition reports whether moving to the given status is legal.
// Transitions are one-directional; refunded is reachable only from completed.
func (p *Payment) CanTransition(to PaymentStatus) bool {
	switch p.Status {
	case PaymentStatusPending:
		return to == PaymentStatusCompleted || to == PaymentStatusFailed
	case PaymentStatusCompleted:
		return to == PaymentStatusRefunded
	default:
		return false
	}
}

// IsTerminal reports whether no further transition can occur.
func (p *Payment) IsTerminal() bool {
	return p.Status == PaymentStatusFailed || p.Status == PaymentStatusRefunded
}
