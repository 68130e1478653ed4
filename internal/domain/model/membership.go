package model

import "time"

type MembershipStatus string

const (
	MembershipStatusActive    MembershipStatus = "active"
	MembershipStatusCancelled MembershipStatus = "cancelled"
)

// UserMembership ties a user to a plan for a period.
// Invariant: at most one active membership per user at any time.
type UserMembership struct {
	ID             string // UUID
	UserID         string
	PlanID         string
	Status         MembershipStatus
	StartAt        time.Time
	EndAt          time.Time
	DiscountCodeID *string
	ProratedMinor  *int64 // prorated charge captured at creation, if any
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (m *UserMembership) IsActive(now time.Time) bool {
	return m.Status == MembershipStatusActive && now.Before(m.EndAt)
}
