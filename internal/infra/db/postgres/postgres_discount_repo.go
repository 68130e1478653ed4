package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"dealflow-billing/internal/domain"
	"dealflow-billing/internal/domain/model"
	"dealflow-billing/internal/domain/ports/repository"
)

var _ repository.DiscountCodeRepository = (*discountRepo)(nil)

type discountRepo struct{ pool *pgxpool.Pool }

func NewDiscountRepo(pool *pgxpool.Pool) *discountRepo {
	return &discountRepo{pool: pool}
}

const discountColumns = `id, code, type, value, active, valid_from, valid_until, max_uses, current_uses, plan_ids, min_amount_minor, created_at`

func (r *discountRepo) Save(ctx context.Context, tx repository.Tx, d *model.DiscountCode) error {
	const q = `
INSERT INTO discount_codes (` + discountColumns + `
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
ON CONFLICT (id) DO UPDATE SET
  code=EXCLUDED.code, type=EXCLUDED.type, value=EXCLUDED.value, active=EXCLUDED.active,
  valid_from=EXCLUDED.valid_from, valid_until=EXCLUDED.valid_until, max_uses=EXCLUDED.max_uses,
  plan_ids=EXCLUDED.plan_ids, min_amount_minor=EXCLUDED.min_amount_minor;`

	_, err := execSQL(ctx, r.pool, tx, q,
		d.ID, d.Code, d.Type, d.Value, d.Active, d.ValidFrom, d.ValidUntil,
		d.MaxUses, d.CurrentUses, d.PlanIDs, d.MinAmountMinor, d.CreatedAt)
	return translateErr(err)
}

func (r *discountRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.DiscountCode, error) {
	const q = `SELECT ` + discountColumns + ` FROM discount_codes WHERE code=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, code)
	if err != nil {
		return nil, err
	}

	d := &model.DiscountCode{}
	err = row.Scan(&d.ID, &d.Code, &d.Type, &d.Value, &d.Active, &d.ValidFrom, &d.ValidUntil,
		&d.MaxUses, &d.CurrentUses, &d.PlanIDs, &d.MinAmountMinor, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return d, nil
}

// IncrementUses bumps the counter only while it is below max_uses, so
// two concurrent activations of the last remaining use cannot both win.
func (r *discountRepo) IncrementUses(ctx context.Context, tx repository.Tx, id string) error {
	const q = `
UPDATE discount_codes
   SET current_uses = current_uses + 1
 WHERE id=$1 AND (max_uses IS NULL OR current_uses < max_uses);`
	cmd, err := execSQL(ctx, r.pool, tx, q, id)
	if err != nil {
		return translateErr(err)
	}
	if cmd.RowsAffected() >= 1 {
		return nil
	}
	const exists = `SELECT 1 FROM discount_codes WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, exists, id)
	if err != nil {
		return err
	}
	var one int
	if err := row.Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		return domain.ErrReadDatabaseRow
	}
	return domain.ErrDiscountExhausted
}
