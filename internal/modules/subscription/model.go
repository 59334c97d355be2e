// README: Subscription plans and monthly usage limits.
package subscription

import "errors"

// ErrLimitReached is returned when the monthly quota for an action is
// exhausted. The message carries the upgrade hint surfaced to callers.
var ErrLimitReached = errors.New("monthly plan limit reached; upgrade your plan to raise the quota")

type BillingStatus string

const (
	BillingActive   BillingStatus = "active"
	BillingPastDue  BillingStatus = "past_due"
	BillingCanceled BillingStatus = "canceled"
)

// Limits holds per-month quotas. A nil limit means unlimited.
type Limits struct {
	MaxMissionsPerMonth     *int
	MaxApplicationsPerMonth *int
}

const (
	PlanFree    = "free"
	PlanStarter = "starter"
	PlanPro     = "pro"
)

// planLimits is the plan registry. Plan CRUD lives outside the core; the
// gate only needs the quota table.
var planLimits = map[string]Limits{
	PlanFree:    {MaxMissionsPerMonth: intPtr(1), MaxApplicationsPerMonth: intPtr(5)},
	PlanStarter: {MaxMissionsPerMonth: intPtr(10), MaxApplicationsPerMonth: intPtr(50)},
	PlanPro:     {}, // unlimited
}

// PlanLimits resolves a plan name; unknown or inactive plans fall back to
// the implicit free tier.
func PlanLimits(plan string) Limits {
	if l, ok := planLimits[plan]; ok {
		return l
	}
	return planLimits[PlanFree]
}

// Remaining computes what is left of a limit. The second return is false for
// unlimited plans.
func Remaining(limit *int, used int) (int, bool) {
	if limit == nil {
		return 0, false
	}
	r := *limit - used
	if r < 0 {
		r = 0
	}
	return r, true
}

func intPtr(v int) *int { return &v }
