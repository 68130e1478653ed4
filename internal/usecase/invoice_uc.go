package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"dealflow-billing/internal/config"
	"dealflow-billing/internal/domain"
	"dealflow-billing/internal/domain/model"
	"dealflow-billing/internal/domain/ports/adapter"
	"dealflow-billing/internal/domain/ports/repository"
)

// Compile-time check
var _ InvoiceUseCase = (*invoiceUC)(nil)

type InvoiceUseCase interface {
	// Generate issues the invoice for a completed payment: allocates the
	// sequential number, renders the document and persists the record as
	// ISSUED only after the renderer confirms a durable write. Calling it
	// again for the same payment returns the existing invoice.
	Generate(ctx context.Context, payment *model.Payment, payload *model.InvoiceJobPayload) (*model.Invoice, error)
	Get(ctx context.Context, id string) (*model.Invoice, error)
}

type invoiceUC struct {
	invoices repository.InvoiceRepository
	payments repository.PaymentRepository
	renderer adapter.DocumentRenderer
	cfg      *config.InvoiceConfig
	log      *zerolog.Logger
}

func NewInvoiceUseCase(
	invoices repository.InvoiceRepository,
	payments repository.PaymentRepository,
	renderer adapter.DocumentRenderer,
	cfg *config.InvoiceConfig,
	logger *zerolog.Logger,
) *invoiceUC {
	l := logger.With().Str("component", "InvoiceUC").Logger()
	return &invoiceUC{invoices: invoices, payments: payments, renderer: renderer, cfg: cfg, log: &l}
}

func (u *invoiceUC) Generate(ctx context.Context, payment *model.Payment, payload *model.InvoiceJobPayload) (*model.Invoice, error) {
	if payment.Status != model.PaymentStatusCompleted && payment.Status != model.PaymentStatusRefunded {
		return nil, fmt.Errorf("%w: payment %s is %s", domain.ErrInvalidArgument, payment.ID, payment.Status)
	}

	// One invoice per payment; a retried job for an already-invoiced
	// payment is a no-op.
	if existing, err := u.invoices.FindByPaymentID(ctx, nil, payment.ID); err == nil {
		return existing, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	seq, err := u.invoices.NextSequence(ctx, nil, now.Year(), now.Month())
	if err != nil {
		return nil, fmt.Errorf("allocate invoice sequence: %w", err)
	}
	number := model.FormatInvoiceNumber(now.Year(), now.Month(), seq)

	tax, total := ComputeTax(payload.SubtotalMinor, u.cfg.GSTPercent, u.cfg.TDSPercent, payload.InterState)

	inv := &model.Invoice{
		ID:        uuid.NewString(),
		Number:    number,
		PaymentID: payment.ID,
		Buyer:     payload.Buyer,
		Seller: model.PartySnapshot{
			Name:    u.cfg.SellerName,
			Email:   u.cfg.SellerEmail,
			Address: u.cfg.SellerAddr,
			GSTIN:   u.cfg.SellerGSTIN,
			State:   u.cfg.SellerState,
		},
		Items:         payload.Items,
		SubtotalMinor: payload.SubtotalMinor,
		Tax:           tax,
		TotalMinor:    total,
		Status:        model.InvoiceStatusDraft,
		GeneratedAt:   now,
	}

	path, err := u.renderer.Render(ctx, number, u.buildLayout(inv, payment))
	if err != nil {
		return nil, fmt.Errorf("render invoice %s: %w", number, err)
	}
	inv.DocumentPath = path
	inv.Status = model.InvoiceStatusIssued

	if err := u.invoices.Save(ctx, nil, inv); err != nil {
		return nil, fmt.Errorf("persist invoice %s: %w", number, err)
	}
	if err := u.payments.SetInvoiceID(ctx, nil, payment.ID, inv.ID); err != nil {
		// The invoice exists and is issued; losing the back-reference is
		// recoverable and must not fail the job.
		u.log.Error().Err(err).Str("payment_id", payment.ID).Str("invoice", number).
			Msg("failed to link invoice to payment")
	}

	u.log.Info().Str("invoice", number).Str("payment_id", payment.ID).
		Int64("total_minor", total).Msg("invoice issued")
	return inv, nil
}

func (u *invoiceUC) Get(ctx context.Context, id string) (*model.Invoice, error) {
	return u.invoices.FindByID(ctx, nil, id)
}

func formatMinor(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}

func (u *invoiceUC) buildLayout(inv *model.Invoice, payment *model.Payment) *adapter.DocumentLayout {
	layout := &adapter.DocumentLayout{
		Title: "TAX INVOICE " + inv.Number,
		Blocks: []adapter.TextBlock{
			{Text: inv.Seller.Name, Size: 14, Bold: true},
			{Text: inv.Seller.Address},
			{Text: "GSTIN: " + inv.Seller.GSTIN},
			{Text: "Invoice No: " + inv.Number, Bold: true},
			{Text: "Date: " + inv.GeneratedAt.Format("02 Jan 2006")},
			{Text: "Payment Ref: " + payment.GatewayPaymentID},
			{Text: "Billed To: " + inv.Buyer.Name, Bold: true},
			{Text: inv.Buyer.Address},
		},
		Footer: "This is a computer generated invoice.",
	}
	if inv.Buyer.GSTIN != "" {
		layout.Blocks = append(layout.Blocks, adapter.TextBlock{Text: "Buyer GSTIN: " + inv.Buyer.GSTIN})
	}

	items := adapter.Table{Header: []string{"#", "Description", "Qty", "Rate", "Amount"}}
	for i, li := range inv.Items {
		items.Rows = append(items.Rows, []string{
			strconv.Itoa(i + 1),
			li.Description,
			strconv.Itoa(li.Quantity),
			formatMinor(li.UnitMinor),
			formatMinor(li.TotalMinor()),
		})
	}
	layout.Tables = append(layout.Tables, items)

	summary := adapter.Table{Header: []string{"", "Amount"}}
	summary.Rows = append(summary.Rows, []string{"Subtotal", formatMinor(inv.SubtotalMinor)})
	if inv.Tax.IGSTMinor > 0 {
		summary.Rows = append(summary.Rows, []string{"IGST", formatMinor(inv.Tax.IGSTMinor)})
	} else {
		summary.Rows = append(summary.Rows,
			[]string{"CGST", formatMinor(inv.Tax.CGSTMinor)},
			[]string{"SGST", formatMinor(inv.Tax.SGSTMinor)})
	}
	if inv.Tax.TDSMinor > 0 {
		summary.Rows = append(summary.Rows, []string{"TDS (deducted at source)", formatMinor(inv.Tax.TDSMinor)})
	}
	summary.Rows = append(summary.Rows, []string{"Total", formatMinor(inv.TotalMinor)})
	layout.Tables = append(layout.Tables, summary)

	layout.Blocks = append(layout.Blocks, adapter.TextBlock{
		Text: "Amount in words: " + AmountInWords(inv.TotalMinor), Bold: true,
	})
	return layout
}
