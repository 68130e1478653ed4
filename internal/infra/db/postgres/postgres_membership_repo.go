package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"dealflow-billing/internal/domain"
	"dealflow-billing/internal/domain/model"
	"dealflow-billing/internal/domain/ports/repository"
)

var _ repository.MembershipRepository = (*membershipRepo)(nil)

type membershipRepo struct{ pool *pgxpool.Pool }

func NewMembershipRepo(pool *pgxpool.Pool) *membershipRepo {
	return &membershipRepo{pool: pool}
}

const membershipColumns = `id, user_id, plan_id, status, start_at, end_at, discount_code_id, prorated_minor, created_at, updated_at`

func (r *membershipRepo) Save(ctx context.Context, tx repository.Tx, m *model.UserMembership) error {
	const q = `
INSERT INTO user_memberships (` + membershipColumns + `
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (id) DO UPDATE SET
  status=EXCLUDED.status, end_at=EXCLUDED.end_at, updated_at=EXCLUDED.updated_at;`

	_, err := execSQL(ctx, r.pool, tx, q,
		m.ID, m.UserID, m.PlanID, m.Status, m.StartAt, m.EndAt,
		m.DiscountCodeID, m.ProratedMinor, m.CreatedAt, m.UpdatedAt)
	return translateErr(err)
}

func scanMembership(row pgx.Row) (*model.UserMembership, error) {
	m := &model.UserMembership{}
	err := row.Scan(&m.ID, &m.UserID, &m.PlanID, &m.Status, &m.StartAt, &m.EndAt,
		&m.DiscountCodeID, &m.ProratedMinor, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return m, nil
}

func (r *membershipRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.UserMembership, error) {
	const q = `SELECT ` + membershipColumns + ` FROM user_memberships WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanMembership(row)
}

func (r *membershipRepo) FindActiveByUser(ctx context.Context, tx repository.Tx, userID string) (*model.UserMembership, error) {
	q := `SELECT ` + membershipColumns + ` FROM user_memberships WHERE user_id=$1 AND status='active' LIMIT 1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q+";", userID)
	if err != nil {
		return nil, err
	}
	return scanMembership(row)
}

// Cancel is conditional on the row still being active so a plan change
// racing a cancellation cannot double-cancel.
func (r *membershipRepo) Cancel(ctx context.Context, tx repository.Tx, id string, at time.Time) error {
	const q = `UPDATE user_memberships SET status='cancelled', updated_at=$2 WHERE id=$1 AND status='active';`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, at)
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
