// README: Payout orchestration; records outcomes on the settlement axis, retries via the queue.
package payments

import (
	"context"
	"time"

	"go.uber.org/zap"

	"freightly/internal/modules/booking"
	"freightly/internal/modules/driver"
	"freightly/internal/types"
)

// Payouts moves funds to drivers after a completed booking. The booking's
// settlement is already transfer_pending when Payout is called; a failure or
// timeout leaves it there and schedules a reconciliation attempt, so the
// committed completion is never rolled back and no transfer happens twice.
type Payouts struct {
	bookings   *booking.Store
	drivers    *driver.Service
	client     *TransferClient
	queue      *RetryQueue
	retryDelay time.Duration
	log        *zap.Logger
}

func NewPayouts(bookings *booking.Store, drivers *driver.Service, client *TransferClient, queue *RetryQueue, retryDelay time.Duration, log *zap.Logger) *Payouts {
	if log == nil {
		log = zap.NewNop()
	}
	return &Payouts{
		bookings:   bookings,
		drivers:    drivers,
		client:     client,
		queue:      queue,
		retryDelay: retryDelay,
		log:        log,
	}
}

// Payout implements booking.Transfers.
func (p *Payouts) Payout(ctx context.Context, b *booking.Booking) error {
	if b.Settlement != booking.SettlementTransferPending {
		return nil
	}

	profile, err := p.drivers.Get(ctx, b.DriverID)
	if err != nil {
		return err
	}
	if !profile.PayoutEligible {
		p.log.Info("payout held: driver not payout-eligible",
			zap.String("booking_id", string(b.ID)), zap.String("driver_id", string(b.DriverID)))
		return p.scheduleRetry(ctx, b.ID)
	}

	transferID, err := p.client.CreateTransfer(ctx, b.ID, b.DriverID, b.AgreedPrice)
	if err != nil {
		// Timeout or provider failure: outcome unknown, keep transfer_pending
		// and let the reconciler settle it. The idempotency key makes the
		// retry safe.
		p.log.Warn("transfer attempt failed", zap.String("booking_id", string(b.ID)), zap.Error(err))
		return p.scheduleRetry(ctx, b.ID)
	}

	ok, err := p.bookings.UpdateSettlement(ctx, b.ID,
		[]booking.SettlementStatus{booking.SettlementTransferPending},
		booking.SettlementTransferred, nil, nil, &transferID)
	if err != nil {
		return err
	}
	if ok {
		_ = p.drivers.IncrementDeliveries(ctx, b.DriverID)
	}
	return nil
}

// Retry re-attempts a payout from the reconciliation queue.
func (p *Payouts) Retry(ctx context.Context, bookingID types.ID) error {
	b, err := p.bookings.Get(ctx, bookingID)
	if err != nil {
		return err
	}
	return p.Payout(ctx, b)
}

func (p *Payouts) scheduleRetry(ctx context.Context, bookingID types.ID) error {
	if p.queue == nil {
		return nil
	}
	return p.queue.Enqueue(ctx, bookingID, time.Now().Add(p.retryDelay))
}
