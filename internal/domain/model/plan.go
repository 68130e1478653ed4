package model

import "time"

type BillingCycle string

const (
	BillingCycleMonthly BillingCycle = "monthly"
	BillingCycleAnnual  BillingCycle = "annual"
)

// MembershipPlan is a purchasable tier of the platform.
type MembershipPlan struct {
	ID           string // UUID
	Name         string
	Slug         string // unique, lowercase-kebab
	PriceMinor   int64
	Currency     string
	Cycle        BillingCycle
	Features     []string
	Active       bool
	DisplayOrder int
	CreatedAt    time.Time
}

// Duration returns the nominal length of one billing cycle.
func (p *MembershipPlan) Duration() time.Duration {
	if p.Cycle == BillingCycleAnnual {
		return 365 * 24 * time.Hour
	}
	return 30 * 24 * time.Hour
}
