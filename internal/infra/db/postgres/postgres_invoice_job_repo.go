package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"dealflow-billing/internal/domain"
	"dealflow-billing/internal/domain/model"
	"dealflow-billing/internal/domain/ports/repository"
)

var _ repository.InvoiceJobRepository = (*invoiceJobRepo)(nil)

type invoiceJobRepo struct {
	pool *pgxpool.Pool
	tm   repository.TransactionManager
}

func NewInvoiceJobRepo(pool *pgxpool.Pool, tm repository.TransactionManager) *invoiceJobRepo {
	return &invoiceJobRepo{pool: pool, tm: tm}
}

const invoiceJobColumns = `id, payment_id, payload, status, attempts, max_attempts, last_error, next_run_at, created_at, updated_at`

// Insert creates the job only when the id is unused. A duplicate key is
// reported as domain.ErrAlreadyExists so enqueue stays idempotent.
func (r *invoiceJobRepo) Insert(ctx context.Context, tx repository.Tx, job *model.InvoiceJob) error {
	payload, err := json.Marshal(job.Payload)
	if err != nil {
		return domain.ErrInvalidArgument
	}

	const q = `
INSERT INTO invoice_jobs (` + invoiceJobColumns + `
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10);`

	_, err = execSQL(ctx, r.pool, tx, q,
		job.ID, job.PaymentID, payload, job.Status, job.Attempts, job.MaxAttempts,
		job.LastError, job.NextRunAt, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrAlreadyExists
		}
		return translateErr(err)
	}
	return nil
}

func (r *invoiceJobRepo) Save(ctx context.Context, tx repository.Tx, job *model.InvoiceJob) error {
	payload, err := json.Marshal(job.Payload)
	if err != nil {
		return domain.ErrInvalidArgument
	}
	job.UpdatedAt = time.Now()

	const q = `
INSERT INTO invoice_jobs (` + invoiceJobColumns + `
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (id) DO UPDATE SET
  status=EXCLUDED.status, attempts=EXCLUDED.attempts, last_error=EXCLUDED.last_error,
  next_run_at=EXCLUDED.next_run_at, updated_at=EXCLUDED.updated_at;`

	_, err = execSQL(ctx, r.pool, tx, q,
		job.ID, job.PaymentID, payload, job.Status, job.Attempts, job.MaxAttempts,
		job.LastError, job.NextRunAt, job.CreatedAt, job.UpdatedAt)
	return translateErr(err)
}

func scanInvoiceJob(row pgx.Row) (*model.InvoiceJob, error) {
	job := &model.InvoiceJob{}
	var payload []byte
	err := row.Scan(&job.ID, &job.PaymentID, &payload, &job.Status, &job.Attempts, &job.MaxAttempts,
		&job.LastError, &job.NextRunAt, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	if err := json.Unmarshal(payload, &job.Payload); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return job, nil
}

func (r *invoiceJobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.InvoiceJob, error) {
	const q = `SELECT ` + invoiceJobColumns + ` FROM invoice_jobs WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanInvoiceJob(row)
}

// FetchDueAndMarkProcessing claims the oldest due pending job. The
// SKIP LOCKED fetch lets several workers poll the same table without
// ever claiming the same row.
func (r *invoiceJobRepo) FetchDueAndMarkProcessing(ctx context.Context, now time.Time) (*model.InvoiceJob, error) {
	var job *model.InvoiceJob

	err := r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		const fetchQuery = `
SELECT ` + invoiceJobColumns + `
FROM invoice_jobs
WHERE status = 'pending' AND next_run_at <= $1
ORDER BY next_run_at
LIMIT 1
FOR UPDATE SKIP LOCKED;`

		row, err := pickRow(ctx, r.pool, tx, fetchQuery, now)
		if err != nil {
			return err
		}
		fetched, err := scanInvoiceJob(row)
		if err != nil {
			return err
		}

		fetched.Status = model.InvoiceJobStatusProcessing
		if err := r.Save(ctx, tx, fetched); err != nil {
			return err
		}

		job = fetched
		return nil
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// ReclaimStale re-arms processing jobs whose updated_at predates the
// cutoff. Save stamps updated_at on every claim, so a row that old can
// only belong to a worker that died mid-run.
func (r *invoiceJobRepo) ReclaimStale(ctx context.Context, tx repository.Tx, cutoff time.Time) (int, error) {
	const q = `
UPDATE invoice_jobs
SET status='pending', next_run_at=now(), updated_at=now()
WHERE status='processing' AND updated_at < $1;`

	tag, err := execSQL(ctx, r.pool, tx, q, cutoff)
	if err != nil {
		return 0, translateErr(err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *invoiceJobRepo) ListFailed(ctx context.Context, tx repository.Tx, limit int) ([]*model.InvoiceJob, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `SELECT ` + invoiceJobColumns + ` FROM invoice_jobs WHERE status='failed' ORDER BY updated_at ASC LIMIT $1;`
	rows, err := queryRows(ctx, r.pool, tx, q, limit)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	var out []*model.InvoiceJob
	for rows.Next() {
		job, err := scanInvoiceJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, nil
}

func (r *invoiceJobRepo) Stats(ctx context.Context, tx repository.Tx, now time.Time) (*repository.QueueStats, error) {
	const q = `
SELECT
  COUNT(*) FILTER (WHERE status='pending' AND next_run_at <= $1),
  COUNT(*) FILTER (WHERE status='processing'),
  COUNT(*) FILTER (WHERE status='completed'),
  COUNT(*) FILTER (WHERE status='failed'),
  COUNT(*) FILTER (WHERE status='pending' AND next_run_at > $1)
FROM invoice_jobs;`
	row, err := pickRow(ctx, r.pool, tx, q, now)
	if err != nil {
		return nil, err
	}
	st := &repository.QueueStats{}
	if err := row.Scan(&st.Waiting, &st.Active, &st.Completed, &st.Failed, &st.Delayed); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return st, nil
}

func (r *invoiceJobRepo) RecordAudit(ctx context.Context, tx repository.Tx, job *model.InvoiceJob, at time.Time) error {
	const q = `
INSERT INTO invoice_job_audit (job_id, payment_id, attempts, last_error, recorded_at)
VALUES ($1,$2,$3,$4,$5);`
	_, err := execSQL(ctx, r.pool, tx, q, job.ID, job.PaymentID, job.Attempts, job.LastError, at)
	return translateErr(err)
}
