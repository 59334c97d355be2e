// README: Driver service; sanction application and eligibility checks.
package driver

import (
	"context"
	"time"

	"freightly/internal/types"
)

type Notifier interface {
	Publish(ctx context.Context, key string, payload any) error
}

type Service struct {
	store    *Store
	notifier Notifier
}

func NewService(store *Store, notifier Notifier) *Service {
	return &Service{store: store, notifier: notifier}
}

// RecordStrike applies the next sanction for a confirmed no-show. Idempotency
// is the caller's responsibility: the booking's resolved marker guarantees
// one call per incident.
func (s *Service) RecordStrike(ctx context.Context, driverID types.ID) error {
	sanction, err := s.store.ApplyStrike(ctx, driverID)
	if err != nil {
		return err
	}
	if s.notifier != nil {
		_ = s.notifier.Publish(ctx, "driver.sanctioned", map[string]any{
			"driver_id":       driverID,
			"sanction":        sanction.Kind,
			"strike_count":    sanction.StrikeCount,
			"suspended_until": sanction.SuspendedUntil,
		})
	}
	return nil
}

// Eligible reports whether a driver may apply to jobs right now.
func (s *Service) Eligible(ctx context.Context, driverID types.ID) error {
	p, err := s.store.Get(ctx, driverID)
	if err != nil {
		return err
	}
	if p.Banned {
		return ErrBanned
	}
	if p.SuspendedUntil != nil && p.SuspendedUntil.After(time.Now()) {
		return ErrSuspended
	}
	return nil
}

func (s *Service) Get(ctx context.Context, driverID types.ID) (*Profile, error) {
	return s.store.Get(ctx, driverID)
}

func (s *Service) MarkPayoutEligible(ctx context.Context, driverID types.ID) error {
	return s.store.MarkPayoutEligible(ctx, driverID)
}

func (s *Service) IncrementDeliveries(ctx context.Context, driverID types.ID) error {
	return s.store.IncrementDeliveries(ctx, driverID)
}
