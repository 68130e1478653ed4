package model

import "time"

type InvoiceJobStatus string

const (
	InvoiceJobStatusPending    InvoiceJobStatus = "pending"
	InvoiceJobStatusProcessing InvoiceJobStatus = "processing"
	InvoiceJobStatusCompleted  InvoiceJobStatus = "completed"
	InvoiceJobStatusFailed     InvoiceJobStatus = "failed"
)

// InvoiceJobID derives the deterministic queue id for a payment.
// One payment maps to at most one live job, which is the primary
// idempotency guard against duplicate invoice issuance.
func InvoiceJobID(paymentID string) string {
	return "invoice-" + paymentID
}

// InvoiceJobPayload snapshots everything the generator needs, so a job
// stays processable even if the source records change afterwards.
type InvoiceJobPayload struct {
	Buyer         PartySnapshot `json:"buyer"`
	Items         []LineItem    `json:"items"`
	SubtotalMinor int64         `json:"subtotal_minor"`
	Tax           TaxBreakdown  `json:"tax"`
	TotalMinor    int64         `json:"total_minor"`
	InterState    bool          `json:"inter_state"`
}

type InvoiceJob struct {
	ID          string // invoice-<paymentID>
	PaymentID   string
	Payload     InvoiceJobPayload
	Status      InvoiceJobStatus
	Attempts    int
	MaxAttempts int
	LastError   string
	NextRunAt   time.Time // due time; pushed out by the backoff schedule
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DefaultBackoff is the delay before attempt n+1 (0-indexed by attempts
// already made): 1, 5 and 15 minutes.
var DefaultBackoff = []time.Duration{time.Minute, 5 * time.Minute, 15 * time.Minute}

// BackoffDelay returns the requeue delay after the given number of
// completed attempts, clamping to the last step.
func BackoffDelay(attempts int) time.Duration {
	if attempts <= 0 {
		return DefaultBackoff[0]
	}
	if attempts >= len(DefaultBackoff) {
		return DefaultBackoff[len(DefaultBackoff)-1]
	}
	return DefaultBackoff[attempts]
}
