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

var _ repository.InvoiceRepository = (*invoiceRepo)(nil)

type invoiceRepo struct{ pool *pgxpool.Pool }

func NewInvoiceRepo(pool *pgxpool.Pool) *invoiceRepo {
	return &invoiceRepo{pool: pool}
}

const invoiceColumns = `id, number, payment_id, buyer, seller, items, subtotal_minor, cgst_minor, sgst_minor, igst_minor, tds_minor, total_minor, document_path, status, generated_at, archived_at`

func (r *invoiceRepo) Save(ctx context.Context, tx repository.Tx, inv *model.Invoice) error {
	buyer, err := json.Marshal(inv.Buyer)
	if err != nil {
		return domain.ErrInvalidArgument
	}
	seller, err := json.Marshal(inv.Seller)
	if err != nil {
		return domain.ErrInvalidArgument
	}
	items, err := json.Marshal(inv.Items)
	if err != nil {
		return domain.ErrInvalidArgument
	}

	const q = `
INSERT INTO invoices (` + invoiceColumns + `
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16
) ON CONFLICT (id) DO UPDATE SET
  document_path=EXCLUDED.document_path, status=EXCLUDED.status, archived_at=EXCLUDED.archived_at;`

	_, err = execSQL(ctx, r.pool, tx, q,
		inv.ID, inv.Number, inv.PaymentID, buyer, seller, items,
		inv.SubtotalMinor, inv.Tax.CGSTMinor, inv.Tax.SGSTMinor, inv.Tax.IGSTMinor, inv.Tax.TDSMinor,
		inv.TotalMinor, inv.DocumentPath, inv.Status, inv.GeneratedAt, inv.ArchivedAt)
	return translateErr(err)
}

func scanInvoice(row pgx.Row) (*model.Invoice, error) {
	inv := &model.Invoice{}
	var buyer, seller, items []byte
	err := row.Scan(&inv.ID, &inv.Number, &inv.PaymentID, &buyer, &seller, &items,
		&inv.SubtotalMinor, &inv.Tax.CGSTMinor, &inv.Tax.SGSTMinor, &inv.Tax.IGSTMinor, &inv.Tax.TDSMinor,
		&inv.TotalMinor, &inv.DocumentPath, &inv.Status, &inv.GeneratedAt, &inv.ArchivedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	if err := json.Unmarshal(buyer, &inv.Buyer); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	if err := json.Unmarshal(seller, &inv.Seller); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	if err := json.Unmarshal(items, &inv.Items); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return inv, nil
}

func (r *invoiceRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Invoice, error) {
	const q = `SELECT ` + invoiceColumns + ` FROM invoices WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanInvoice(row)
}

func (r *invoiceRepo) FindByPaymentID(ctx context.Context, tx repository.Tx, paymentID string) (*model.Invoice, error) {
	const q = `SELECT ` + invoiceColumns + ` FROM invoices WHERE payment_id=$1 LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, paymentID)
	if err != nil {
		return nil, err
	}
	return scanInvoice(row)
}

// NextSequence allocates the next number in the (year, month) bucket.
// The upsert keeps the allocation a single atomic statement, so
// concurrent generators can never be handed the same value and a bucket
// never rewinds.
func (r *invoiceRepo) NextSequence(ctx context.Context, tx repository.Tx, year int, month time.Month) (int64, error) {
	const q = `
INSERT INTO invoice_sequences (year, month, last_value)
VALUES ($1, $2, 1)
ON CONFLICT (year, month) DO UPDATE SET last_value = invoice_sequences.last_value + 1
RETURNING last_value;`
	row, err := pickRow(ctx, r.pool, tx, q, year, int(month))
	if err != nil {
		return 0, err
	}
	var seq int64
	if err := row.Scan(&seq); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return seq, nil
}

func (r *invoiceRepo) ListIssuedBefore(ctx context.Context, tx repository.Tx, cutoff time.Time, limit int) ([]*model.Invoice, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + invoiceColumns + ` FROM invoices WHERE status='issued' AND archived_at IS NULL AND generated_at < $1 ORDER BY generated_at ASC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, cutoff, limit)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	var out []*model.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, nil
}

func (r *invoiceRepo) MarkArchived(ctx context.Context, tx repository.Tx, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	const q = `UPDATE invoices SET archived_at=$2 WHERE id = ANY($1);`
	_, err := execSQL(ctx, r.pool, tx, q, ids, at)
	return translateErr(err)
}
