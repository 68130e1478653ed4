package repository

import (
	"context"

	"dealflow-billing/internal/domain/model"
)

type DiscountCodeRepository interface {
	Save(ctx context.Context, tx Tx, d *model.DiscountCode) error
	FindByCode(ctx context.Context, tx Tx, code string) (*model.DiscountCode, error)
	// IncrementUses bumps the usage counter, guarded so it can never
	// exceed max_uses; returns domain.ErrDiscountExhausted on a lost race.
	IncrementUses(ctx context.Context, tx Tx, id string) error
}
