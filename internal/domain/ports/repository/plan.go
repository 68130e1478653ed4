package repository

import (
	"context"

	"dealflow-billing/internal/domain/model"
)

type MembershipPlanRepository interface {
	Save(ctx context.Context, tx Tx, plan *model.MembershipPlan) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.MembershipPlan, error)
	FindBySlug(ctx context.Context, tx Tx, slug string) (*model.MembershipPlan, error)
	ListActive(ctx context.Context, tx Tx) ([]*model.MembershipPlan, error)
}
