package adapter

import "context"

// Notification is a structured payload for the notification sink.
// Either Template or HTML is set, never both.
type Notification struct {
	Recipient string                 `json:"recipient"`
	Subject   string                 `json:"subject"`
	Template  string                 `json:"template,omitempty"`
	HTML      string                 `json:"html,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// NotificationSink delivers payment-status mail, refund mail, admin
// digests and operational alerts. Callers treat delivery failure as
// non-fatal: log and continue.
type NotificationSink interface {
	Send(ctx context.Context, n *Notification) error
}
