// README: Usage gate; quota is checked and spent in one conditional UPDATE.
package subscription

import (
	"context"

	"freightly/internal/types"
)

const (
	ActionPublishJob = "publish_job"
	ActionApply      = "submit_application"
)

type Service struct {
	store *Store
}

func NewService(store *Store) *Service {
	return &Service{store: store}
}

// Usage is the remaining-quota view exposed to callers.
type Usage struct {
	Plan                  string `json:"plan"`
	MissionsRemaining     *int   `json:"missions_remaining"`
	ApplicationsRemaining *int   `json:"applications_remaining"`
}

// Check reports whether the user may perform the action this month. Users
// without a row (or without an active paid plan) are on the free tier.
func (s *Service) Check(ctx context.Context, userID types.ID, action string) error {
	limits, used, err := s.effective(ctx, userID, action)
	if err != nil {
		return err
	}
	var limit *int
	switch action {
	case ActionPublishJob:
		limit = limits.MaxMissionsPerMonth
	case ActionApply:
		limit = limits.MaxApplicationsPerMonth
	}
	if remaining, limited := Remaining(limit, used); limited && remaining == 0 {
		return ErrLimitReached
	}
	return nil
}

// Consume spends one unit of the monthly quota for the action, or returns
// ErrLimitReached. The check and the spend are one conditional UPDATE, so
// concurrent callers racing for the last unit admit exactly one winner.
// Unlimited plans record usage without a guard.
func (s *Service) Consume(ctx context.Context, userID types.ID, action string) error {
	r, err := s.store.Get(ctx, userID)
	if err != nil {
		return err
	}
	_, limits, _, _ := resolve(r)

	var limit *int
	switch action {
	case ActionPublishJob:
		limit = limits.MaxMissionsPerMonth
	case ActionApply:
		limit = limits.MaxApplicationsPerMonth
	default:
		return nil
	}
	if limit == nil {
		return s.Increment(ctx, userID, action)
	}

	var ok bool
	if action == ActionApply {
		ok, err = s.store.ConsumeApplication(ctx, userID, *limit)
	} else {
		ok, err = s.store.ConsumeMission(ctx, userID, *limit)
	}
	if err != nil {
		return err
	}
	if !ok {
		return ErrLimitReached
	}
	return nil
}

// Increment records one granted action without a quota guard.
func (s *Service) Increment(ctx context.Context, userID types.ID, action string) error {
	switch action {
	case ActionPublishJob:
		return s.store.IncrementMissions(ctx, userID)
	case ActionApply:
		return s.store.IncrementApplications(ctx, userID)
	}
	return nil
}

func (s *Service) Usage(ctx context.Context, userID types.ID) (Usage, error) {
	r, err := s.store.Get(ctx, userID)
	if err != nil {
		return Usage{}, err
	}
	plan, limits, missionsUsed, applicationsUsed := resolve(r)

	out := Usage{Plan: plan}
	if v, limited := Remaining(limits.MaxMissionsPerMonth, missionsUsed); limited {
		out.MissionsRemaining = &v
	}
	if v, limited := Remaining(limits.MaxApplicationsPerMonth, applicationsUsed); limited {
		out.ApplicationsRemaining = &v
	}
	return out, nil
}

func (s *Service) effective(ctx context.Context, userID types.ID, action string) (Limits, int, error) {
	r, err := s.store.Get(ctx, userID)
	if err != nil {
		return Limits{}, 0, err
	}
	_, limits, missionsUsed, applicationsUsed := resolve(r)
	if action == ActionApply {
		return limits, applicationsUsed, nil
	}
	return limits, missionsUsed, nil
}

// resolve collapses a possibly-missing row to the effective plan and the
// counters for the current month (stale months count as zero).
func resolve(r *Row) (plan string, limits Limits, missionsUsed, applicationsUsed int) {
	plan = PlanFree
	if r != nil && r.Status == BillingActive {
		plan = r.Plan
	}
	limits = PlanLimits(plan)
	if r != nil && r.PeriodMonth == currentMonth() {
		missionsUsed = r.MissionsUsed
		applicationsUsed = r.ApplicationsUsed
	}
	return plan, limits, missionsUsed, applicationsUsed
}
