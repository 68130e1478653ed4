package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"dealflow-billing/internal/domain"
	"dealflow-billing/internal/domain/model"
	"dealflow-billing/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `id, user_id, amount_minor, currency, gateway, status, type, gateway_order_id, gateway_payment_id, signature, description, failure_reason, refund_amount, refund_reason, refunded_at, invoice_id, created_at, updated_at, completed_at, meta`

func (r *paymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	meta, err := json.Marshal(p.Meta)
	if err != nil {
		return domain.ErrInvalidArgument
	}

	const q = `
INSERT INTO payments (` + paymentColumns + `
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20
) ON CONFLICT (id) DO UPDATE SET
  status=EXCLUDED.status, gateway_payment_id=EXCLUDED.gateway_payment_id, signature=EXCLUDED.signature,
  failure_reason=EXCLUDED.failure_reason, refund_amount=EXCLUDED.refund_amount, refund_reason=EXCLUDED.refund_reason,
  refunded_at=EXCLUDED.refunded_at, invoice_id=EXCLUDED.invoice_id, updated_at=EXCLUDED.updated_at,
  completed_at=EXCLUDED.completed_at, meta=EXCLUDED.meta;`

	_, err = execSQL(ctx, r.pool, tx, q,
		p.ID, p.UserID, p.AmountMinor, p.Currency, p.Gateway, p.Status, p.Type,
		p.GatewayOrderID, p.GatewayPaymentID, p.Signature, p.Description, p.FailureReason,
		p.RefundAmount, p.RefundReason, p.RefundedAt, p.InvoiceID,
		p.CreatedAt, p.UpdatedAt, p.CompletedAt, meta)
	return translateErr(err)
}

func scanPayment(row pgx.Row) (*model.Payment, error) {
	p := &model.Payment{}
	var meta []byte
	err := row.Scan(&p.ID, &p.UserID, &p.AmountMinor, &p.Currency, &p.Gateway, &p.Status, &p.Type,
		&p.GatewayOrderID, &p.GatewayPaymentID, &p.Signature, &p.Description, &p.FailureReason,
		&p.RefundAmount, &p.RefundReason, &p.RefundedAt, &p.InvoiceID,
		&p.CreatedAt, &p.UpdatedAt, &p.CompletedAt, &meta)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &p.Meta); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
	}
	return p, nil
}

func (r *paymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q+";", id)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) FindByGatewayOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE gateway_order_id=$1 LIMIT 1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q+";", orderID)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

// MarkCompleted flips pending to completed; the status guard in the
// WHERE clause makes concurrent verifications race-safe.
func (r *paymentRepo) MarkCompleted(ctx context.Context, tx repository.Tx, id, gatewayPaymentID, signature string, completedAt time.Time) error {
	const q = `
UPDATE payments
   SET status='completed', gateway_payment_id=$2, signature=$3, completed_at=$4, updated_at=NOW()
 WHERE id=$1 AND status='pending';`
	return r.guardedUpdate(ctx, tx, q, id, gatewayPaymentID, signature, completedAt)
}

func (r *paymentRepo) MarkFailed(ctx context.Context, tx repository.Tx, id, reason string) error {
	const q = `
UPDATE payments
   SET status='failed', failure_reason=$2, updated_at=NOW()
 WHERE id=$1 AND status='pending';`
	return r.guardedUpdate(ctx, tx, q, id, reason)
}

func (r *paymentRepo) MarkRefunded(ctx context.Context, tx repository.Tx, id string, amountMinor int64, reason string, refundedAt time.Time) error {
	const q = `
UPDATE payments
   SET status='refunded', refund_amount=$2, refund_reason=$3, refunded_at=$4, updated_at=NOW()
 WHERE id=$1 AND status='completed';`
	return r.guardedUpdate(ctx, tx, q, id, amountMinor, reason, refundedAt)
}

// guardedUpdate distinguishes a missing row from a row that a
// concurrent writer already moved past the expected status.
func (r *paymentRepo) guardedUpdate(ctx context.Context, tx repository.Tx, q string, id string, args ...interface{}) error {
	cmd, err := execSQL(ctx, r.pool, tx, q, append([]interface{}{id}, args...)...)
	if err != nil {
		return translateErr(err)
	}
	if cmd.RowsAffected() >= 1 {
		return nil
	}
	if _, err := r.FindByID(ctx, tx, id); err != nil {
		return err
	}
	return domain.ErrConflict
}

func (r *paymentRepo) SetInvoiceID(ctx context.Context, tx repository.Tx, paymentID, invoiceID string) error {
	const q = `UPDATE payments SET invoice_id=$2, updated_at=NOW() WHERE id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, paymentID, invoiceID)
	if err != nil {
		return translateErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *paymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, cutoff time.Time, limit int) ([]*model.Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE status='pending' AND created_at < $1 ORDER BY created_at ASC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, cutoff, limit)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	var out []*model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *paymentRepo) SumCompletedByPeriod(ctx context.Context, tx repository.Tx, period string) (int64, error) {
	const q = `SELECT COALESCE(SUM(amount_minor),0) FROM payments WHERE status='completed' AND completed_at >= DATE_TRUNC($1, NOW());`
	row, err := pickRow(ctx, r.pool, tx, q, period)
	if err != nil {
		return 0, err
	}
	var sum int64
	if err := row.Scan(&sum); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return sum, nil
}
