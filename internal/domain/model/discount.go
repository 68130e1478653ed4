package model

import (
	"strings"
	"time"
)

type DiscountType string

const (
	DiscountTypePercentage  DiscountType = "percentage"
	DiscountTypeFixedAmount DiscountType = "fixed_amount"
)

// DiscountCode is a promotional code with temporal, usage and
// plan-eligibility constraints. Codes are stored uppercased.
type DiscountCode struct {
	ID             string // UUID
	Code           string // uppercased, unique
	Type           DiscountType
	Value          int64 // percent (0-100) or a minor-unit amount
	Active         bool
	ValidFrom      time.Time
	ValidUntil     *time.Time // nil means open-ended
	MaxUses        *int       // nil means unlimited
	CurrentUses    int
	PlanIDs        []string // empty means all plans
	MinAmountMinor *int64   // nil means no minimum
	CreatedAt      time.Time
}

// NormalizeCode canonicalizes user input before lookup.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// AppliesToPlan reports plan eligibility; an empty list means all plans.
func (d *DiscountCode) AppliesToPlan(planID string) bool {
	if len(d.PlanIDs) == 0 {
		return true
	}
	for _, id := range d.PlanIDs {
		if id == planID {
			return true
		}
	}
	return false
}
