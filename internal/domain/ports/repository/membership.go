package repository

import (
	"context"
	"time"

	"dealflow-billing/internal/domain/model"
)

type MembershipRepository interface {
	Save(ctx context.Context, tx Tx, m *model.UserMembership) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.UserMembership, error)
	FindActiveByUser(ctx context.Context, tx Tx, userID string) (*model.UserMembership, error)
	// Cancel flips an active membership to cancelled; ErrConflict if it
	// is no longer active.
	Cancel(ctx context.Context, tx Tx, id string, at time.Time) error
}
