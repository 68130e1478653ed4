package usecase

import (
	"math"
	"time"

	"dealflow-billing/internal/domain"
	"dealflow-billing/internal/domain/model"
)

type PlanChangeKind string

const (
	PlanChangeUpgrade   PlanChangeKind = "upgrade"
	PlanChangeDowngrade PlanChangeKind = "downgrade"
)

// Proration is the audited result of a plan change calculation.
// Credit and Charge keep the exact 2-decimal values so an auditor can
// reproduce them; ChargeMinor is the integer amount actually billed.
type Proration struct {
	Kind          PlanChangeKind
	TotalDays     int
	RemainingDays int
	Credit        float64
	Charge        float64
	ChargeMinor   int64
	// EndAt is carried over unchanged from the old membership: a plan
	// change never extends the billing period.
	EndAt time.Time
}

// round2 rounds to 2 decimal places, half away from zero.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ceilDays converts a duration to whole days, rounding any partial day up.
func ceilDays(d time.Duration) int {
	return int(math.Ceil(d.Hours() / 24))
}

// Prorate computes the credit for the unused remainder of the current
// membership and the charge for moving to the new price. Pure: no I/O,
// deterministic, reproducible from the inputs alone.
//
// Violated preconditions (no active membership, end before start) are
// defects in the calling state, not user errors, and surface as domain
// errors rather than retryable failures.
func Prorate(current *model.UserMembership, oldPriceMinor, newPriceMinor int64, now time.Time) (*Proration, error) {
	if current == nil || current.Status != model.MembershipStatusActive {
		return nil, domain.ErrNoActiveMembership
	}
	if !current.EndAt.After(current.StartAt) || oldPriceMinor < 0 || newPriceMinor < 0 {
		return nil, domain.ErrInvalidArgument
	}

	totalDays := ceilDays(current.EndAt.Sub(current.StartAt))
	remainingDays := ceilDays(current.EndAt.Sub(now))
	if remainingDays < 0 {
		remainingDays = 0
	}

	dailyRate := float64(oldPriceMinor) / float64(totalDays)
	credit := round2(float64(remainingDays) * dailyRate)
	charge := round2(float64(newPriceMinor) - credit)
	if charge < 0 {
		charge = 0
	}

	kind := PlanChangeDowngrade
	if newPriceMinor > oldPriceMinor {
		kind = PlanChangeUpgrade
	}

	return &Proration{
		Kind:          kind,
		TotalDays:     totalDays,
		RemainingDays: remainingDays,
		Credit:        credit,
		Charge:        charge,
		ChargeMinor:   int64(math.Round(charge)),
		EndAt:         current.EndAt,
	}, nil
}
