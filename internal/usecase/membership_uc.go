package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"dealflow-billing/internal/domain"
	"dealflow-billing/internal/domain/model"
	"dealflow-billing/internal/domain/ports/repository"
)

// Compile-time check
var _ MembershipUseCase = (*membershipUC)(nil)

type MembershipUseCase interface {
	// Subscribe activates a membership for the user, applying and
	// consuming an optional discount code in the same transaction.
	Subscribe(ctx context.Context, userID, planID, discountCode string) (*model.UserMembership, error)
	// ChangePlan prorates the switch and atomically cancels the old
	// membership while creating the new one. The new membership keeps
	// the old end date.
	ChangePlan(ctx context.Context, userID, newPlanID string, now time.Time) (*model.UserMembership, *Proration, error)
	GetActive(ctx context.Context, userID string) (*model.UserMembership, error)
}

type membershipUC struct {
	plans       repository.MembershipPlanRepository
	memberships repository.MembershipRepository
	discounts   DiscountUseCase
	tm          repository.TransactionManager
	log         *zerolog.Logger
}

func NewMembershipUseCase(
	plans repository.MembershipPlanRepository,
	memberships repository.MembershipRepository,
	discounts DiscountUseCase,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *membershipUC {
	l := logger.With().Str("component", "MembershipUC").Logger()
	return &membershipUC{plans: plans, memberships: memberships, discounts: discounts, tm: tm, log: &l}
}

func (u *membershipUC) Subscribe(ctx context.Context, userID, planID, discountCode string) (*model.UserMembership, error) {
	plan, err := u.plans.FindByID(ctx, nil, planID)
	if err != nil {
		return nil, err
	}
	if !plan.Active {
		return nil, fmt.Errorf("%w: plan %s is not active", domain.ErrInvalidArgument, plan.Slug)
	}

	if existing, err := u.memberships.FindActiveByUser(ctx, nil, userID); err == nil && existing != nil {
		return nil, domain.ErrMembershipExists
	} else if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	now := time.Now()
	m := &model.UserMembership{
		ID:        uuid.NewString(),
		UserID:    userID,
		PlanID:    plan.ID,
		Status:    model.MembershipStatusActive,
		StartAt:   now,
		EndAt:     now.Add(plan.Duration()),
		CreatedAt: now,
		UpdatedAt: now,
	}

	var discount *DiscountResult
	if discountCode != "" {
		discount, err = u.discounts.Evaluate(ctx, discountCode, plan.ID, plan.PriceMinor, now)
		if err != nil {
			return nil, err
		}
		m.DiscountCodeID = &discount.Code.ID
	}

	// Activation and discount consumption are all-or-nothing: the usage
	// counter only ever moves together with a created membership.
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := u.memberships.Save(ctx, tx, m); err != nil {
			return err
		}
		if discount != nil {
			return u.discounts.Consume(ctx, tx, discount.Code.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	u.log.Info().Str("user_id", userID).Str("plan", plan.Slug).Msg("membership activated")
	return m, nil
}

func (u *membershipUC) ChangePlan(ctx context.Context, userID, newPlanID string, now time.Time) (*model.UserMembership, *Proration, error) {
	current, err := u.memberships.FindActiveByUser(ctx, nil, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil, domain.ErrNoActiveMembership
		}
		return nil, nil, err
	}
	if current.PlanID == newPlanID {
		return nil, nil, fmt.Errorf("%w: already on this plan", domain.ErrConflict)
	}

	oldPlan, err := u.plans.FindByID(ctx, nil, current.PlanID)
	if err != nil {
		return nil, nil, err
	}
	newPlan, err := u.plans.FindByID(ctx, nil, newPlanID)
	if err != nil {
		return nil, nil, err
	}
	if !newPlan.Active {
		return nil, nil, fmt.Errorf("%w: plan %s is not active", domain.ErrInvalidArgument, newPlan.Slug)
	}

	pro, err := Prorate(current, oldPlan.PriceMinor, newPlan.PriceMinor, now)
	if err != nil {
		return nil, nil, err
	}

	next := &model.UserMembership{
		ID:            uuid.NewString(),
		UserID:        userID,
		PlanID:        newPlan.ID,
		Status:        model.MembershipStatusActive,
		StartAt:       now,
		EndAt:         pro.EndAt, // no extension on a plan change
		ProratedMinor: &pro.ChargeMinor,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	// Cancel-old and create-new must be all-or-nothing to preserve the
	// single-active-membership invariant.
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := u.memberships.Cancel(ctx, tx, current.ID, now); err != nil {
			return err
		}
		return u.memberships.Save(ctx, tx, next)
	})
	if err != nil {
		return nil, nil, err
	}

	u.log.Info().Str("user_id", userID).Str("from", oldPlan.Slug).Str("to", newPlan.Slug).
		Str("kind", string(pro.Kind)).Int64("charge_minor", pro.ChargeMinor).Msg("plan changed")
	return next, pro, nil
}

func (u *membershipUC) GetActive(ctx context.Context, userID string) (*model.UserMembership, error) {
	return u.memberships.FindActiveByUser(ctx, nil, userID)
}
