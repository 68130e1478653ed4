package model

import (
	"fmt"
	"time"
)

type InvoiceStatus string

const (
	InvoiceStatusDraft  InvoiceStatus = "draft"
	InvoiceStatusIssued InvoiceStatus = "issued"
)

// PartySnapshot captures buyer/seller identity at issuance time.
// Later profile edits must not change an issued invoice.
type PartySnapshot struct {
	Name    string
	Email   string
	Address string
	GSTIN   string
	State   string
}

type LineItem struct {
	Description string
	Quantity    int
	UnitMinor   int64 // unit price in minor units
}

func (li LineItem) TotalMinor() int64 {
	return int64(li.Quantity) * li.UnitMinor
}

// TaxBreakdown carries the GST components of an invoice in minor units.
// TDS is a withholding deduction tracked alongside, not added to the total.
type TaxBreakdown struct {
	CGSTMinor int64
	SGSTMinor int64
	IGSTMinor int64
	TDSMinor  int64
}

type Invoice struct {
	ID            string // UUID
	Number        string // INV-<year>-<month>-<5-digit-sequence>
	PaymentID     string // one-to-one with the originating payment
	Buyer         PartySnapshot
	Seller        PartySnapshot
	Items         []LineItem
	SubtotalMinor int64
	Tax           TaxBreakdown
	TotalMinor    int64
	DocumentPath  string
	Status        InvoiceStatus
	GeneratedAt   time.Time
	ArchivedAt    *time.Time
}

// FormatInvoiceNumber renders the human-readable sequential number.
// Sequence numbers are scoped to a (year, month) bucket and never reused.
func FormatInvoiceNumber(year int, month time.Month, seq int64) string {
	return fmt.Sprintf("INV-%04d-%02d-%05d", year, int(month), seq)
}
