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

var _ repository.MembershipPlanRepository = (*planRepo)(nil)

type planRepo struct{ pool *pgxpool.Pool }

func NewPlanRepo(pool *pgxpool.Pool) *planRepo {
	return &planRepo{pool: pool}
}

const planColumns = `id, name, slug, price_minor, currency, cycle, features, active, display_order, created_at`

func (r *planRepo) Save(ctx context.Context, tx repository.Tx, plan *model.MembershipPlan) error {
	const q = `
INSERT INTO membership_plans (` + planColumns + `
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (id) DO UPDATE SET
  name=EXCLUDED.name, slug=EXCLUDED.slug, price_minor=EXCLUDED.price_minor, currency=EXCLUDED.currency,
  cycle=EXCLUDED.cycle, features=EXCLUDED.features, active=EXCLUDED.active, display_order=EXCLUDED.display_order;`

	_, err := execSQL(ctx, r.pool, tx, q,
		plan.ID, plan.Name, plan.Slug, plan.PriceMinor, plan.Currency, plan.Cycle,
		plan.Features, plan.Active, plan.DisplayOrder, plan.CreatedAt)
	return translateErr(err)
}

func scanPlan(row pgx.Row) (*model.MembershipPlan, error) {
	p := &model.MembershipPlan{}
	err := row.Scan(&p.ID, &p.Name, &p.Slug, &p.PriceMinor, &p.Currency, &p.Cycle,
		&p.Features, &p.Active, &p.DisplayOrder, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}

func (r *planRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.MembershipPlan, error) {
	const q = `SELECT ` + planColumns + ` FROM membership_plans WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanPlan(row)
}

func (r *planRepo) FindBySlug(ctx context.Context, tx repository.Tx, slug string) (*model.MembershipPlan, error) {
	const q = `SELECT ` + planColumns + ` FROM membership_plans WHERE slug=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, slug)
	if err != nil {
		return nil, err
	}
	return scanPlan(row)
}

func (r *planRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.MembershipPlan, error) {
	const q = `SELECT ` + planColumns + ` FROM membership_plans WHERE active ORDER BY display_order ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	var out []*model.MembershipPlan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
