package usecase

import (
	"context"
	"math"
	"time"

	"dealflow-billing/internal/domain"
	"dealflow-billing/internal/domain/model"
	"dealflow-billing/internal/domain/ports/repository"
)

// DiscountResult is the outcome of evaluating a code against a price.
type DiscountResult struct {
	Code            *model.DiscountCode
	DiscountMinor   int64
	FinalPriceMinor int64
}

// Compile-time check
var _ DiscountUseCase = (*discountUC)(nil)

type DiscountUseCase interface {
	// Evaluate validates a code against temporal, usage and plan
	// constraints and computes the discounted price. It is a pure
	// preview: the usage counter is never touched here.
	Evaluate(ctx context.Context, code, planID string, priceMinor int64, now time.Time) (*DiscountResult, error)
	// Consume increments the usage counter. Called only from a
	// successful subscription activation, inside that activation's
	// transaction.
	Consume(ctx context.Context, tx repository.Tx, codeID string) error
}

type discountUC struct {
	codes repository.DiscountCodeRepository
}

func NewDiscountUseCase(codes repository.DiscountCodeRepository) *discountUC {
	return &discountUC{codes: codes}
}

func (u *discountUC) Evaluate(ctx context.Context, code, planID string, priceMinor int64, now time.Time) (*DiscountResult, error) {
	d, err := u.codes.FindByCode(ctx, nil, model.NormalizeCode(code))
	if err != nil {
		return nil, err
	}
	if !d.Active {
		return nil, domain.ErrDiscountInactive
	}
	if now.Before(d.ValidFrom) {
		return nil, domain.ErrDiscountNotStarted
	}
	if d.ValidUntil != nil && now.After(*d.ValidUntil) {
		return nil, domain.ErrDiscountExpired
	}
	if d.MaxUses != nil && d.CurrentUses >= *d.MaxUses {
		return nil, domain.ErrDiscountExhausted
	}
	if !d.AppliesToPlan(planID) {
		return nil, domain.ErrDiscountWrongPlan
	}
	if d.MinAmountMinor != nil && priceMinor < *d.MinAmountMinor {
		return nil, domain.ErrDiscountBelowMinimum
	}

	var discount int64
	switch d.Type {
	case model.DiscountTypePercentage:
		discount = int64(math.Round(float64(priceMinor) * float64(d.Value) / 100))
	case model.DiscountTypeFixedAmount:
		discount = d.Value
	default:
		return nil, domain.ErrInvalidArgument
	}

	final := priceMinor - discount
	if final < 0 {
		// clamp so the final price never goes negative
		discount = priceMinor
		final = 0
	}

	return &DiscountResult{Code: d, DiscountMinor: discount, FinalPriceMinor: final}, nil
}

func (u *discountUC) Consume(ctx context.Context, tx repository.Tx, codeID string) error {
	return u.codes.IncrementUses(ctx, tx, codeID)
}
