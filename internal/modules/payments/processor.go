// README: Webhook processor; verify signature, dedupe by event id, dispatch, record outcome.
package payments

import (
	"context"
	"time"

	"go.uber.org/zap"

	"freightly/internal/modules/booking"
	"freightly/internal/modules/driver"
	"freightly/internal/types"
)

type Processor struct {
	store         *Store
	bookings      *booking.Store
	drivers       *driver.Service
	webhookSecret string
	log           *zap.Logger
}

func NewProcessor(store *Store, bookings *booking.Store, drivers *driver.Service, webhookSecret string, log *zap.Logger) *Processor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Processor{
		store:         store,
		bookings:      bookings,
		drivers:       drivers,
		webhookSecret: webhookSecret,
		log:           log,
	}
}

// Process handles one provider delivery. Only a bad signature is an error to
// the caller (mapped to 4xx); everything else is acknowledged so the provider
// stops redelivering, with handler failures recorded on the event row for
// operational visibility.
func (p *Processor) Process(ctx context.Context, payload []byte, sigHeader string) error {
	if err := VerifySignature(payload, sigHeader, p.webhookSecret, time.Now()); err != nil {
		return err
	}
	ev, err := ParseEvent(payload)
	if err != nil {
		// Authentic but unparseable. Without an event id the delivery cannot
		// be deduplicated or recorded; redelivering the same bytes will never
		// parse either, so acknowledge and log.
		p.log.Warn("unparseable webhook payload acknowledged", zap.Error(err))
		return nil
	}

	fresh, err := p.store.Insert(ctx, ev.ID, ev.RawType, payload)
	if err != nil {
		return err
	}
	if !fresh {
		p.log.Info("duplicate webhook event acknowledged", zap.String("event_id", ev.ID))
		return nil
	}

	if err := p.dispatch(ctx, ev); err != nil {
		p.log.Error("webhook handler failed",
			zap.String("event_id", ev.ID), zap.String("type", ev.RawType), zap.Error(err))
		_ = p.store.MarkFailed(ctx, ev.ID, err.Error())
		return nil
	}
	return p.store.MarkProcessed(ctx, ev.ID)
}

func (p *Processor) dispatch(ctx context.Context, ev Event) error {
	switch ev.Kind {
	case KindPaymentSucceeded:
		return p.handlePaymentSucceeded(ctx, ev)
	case KindPaymentFailed:
		return p.handlePaymentFailed(ctx, ev)
	case KindRefundPending:
		return p.handleRefundPending(ctx, ev)
	case KindRefundSucceeded:
		return p.handleRefundSucceeded(ctx, ev)
	case KindPayoutVerified:
		return p.handlePayoutVerified(ctx, ev)
	default:
		p.log.Info("unhandled webhook event",
			zap.String("event_id", ev.ID), zap.String("type", ev.RawType))
		return nil
	}
}

// requireBooking guards against payloads missing the booking_id metadata:
// logged and ignored rather than failed, per the provider contract.
func (p *Processor) requireBooking(ev Event) (types.ID, bool) {
	if ev.BookingID == "" {
		p.log.Warn("webhook event without booking_id metadata",
			zap.String("event_id", ev.ID), zap.String("type", ev.RawType))
		return "", false
	}
	return ev.BookingID, true
}

// handlePaymentSucceeded marks the booking paid. Booking status stays as-is
// (pay-at-selection: the transfer waits for completion validation). The
// conditional update makes the handler a no-op on redelivery.
func (p *Processor) handlePaymentSucceeded(ctx context.Context, ev Event) error {
	id, ok := p.requireBooking(ev)
	if !ok {
		return nil
	}
	_, err := p.bookings.UpdateSettlement(ctx, id,
		[]booking.SettlementStatus{booking.SettlementUnpaid, booking.SettlementProcessing, booking.SettlementFailed},
		booking.SettlementPaid, &ev.PaymentID, &ev.ProviderStatus, nil)
	return err
}

// handlePaymentFailed records the failure on the settlement axis only; the
// booking status is left for a human or a follow-up event to decide.
func (p *Processor) handlePaymentFailed(ctx context.Context, ev Event) error {
	id, ok := p.requireBooking(ev)
	if !ok {
		return nil
	}
	_, err := p.bookings.UpdateSettlement(ctx, id,
		[]booking.SettlementStatus{booking.SettlementUnpaid, booking.SettlementProcessing},
		booking.SettlementFailed, &ev.PaymentID, &ev.ProviderStatus, nil)
	return err
}

func (p *Processor) handleRefundPending(ctx context.Context, ev Event) error {
	id, ok := p.requireBooking(ev)
	if !ok {
		return nil
	}
	_, err := p.bookings.UpdateSettlement(ctx, id,
		[]booking.SettlementStatus{booking.SettlementPaid, booking.SettlementDisputed, booking.SettlementRefundPending},
		booking.SettlementRefundPending, &ev.PaymentID, &ev.ProviderStatus, nil)
	return err
}

// handleRefundSucceeded is the terminal refund: the booking becomes
// cancelled/refunded in one conditional update, so a crash cannot strand a
// live booking with a refunded settlement. Already-cancelled bookings only
// move the settlement axis.
func (p *Processor) handleRefundSucceeded(ctx context.Context, ev Event) error {
	id, ok := p.requireBooking(ev)
	if !ok {
		return nil
	}
	refundable := map[booking.SettlementStatus]bool{
		booking.SettlementPaid:          true,
		booking.SettlementDisputed:      true,
		booking.SettlementRefundPending: true,
	}

	for attempt := 0; attempt < 2; attempt++ {
		b, err := p.bookings.Get(ctx, id)
		if err != nil {
			return err
		}
		if !refundable[b.Settlement] {
			// Redelivery, or a state a refund cannot land on.
			return nil
		}

		if b.Status == booking.StatusCancelled {
			_, err := p.bookings.UpdateSettlement(ctx, id,
				[]booking.SettlementStatus{booking.SettlementPaid, booking.SettlementDisputed, booking.SettlementRefundPending},
				booking.SettlementRefunded, &ev.PaymentID, &ev.ProviderStatus, nil)
			return err
		}
		if !booking.CanTransition(b.Status, booking.StatusCancelled) {
			p.log.Warn("refund succeeded on a booking that cannot be cancelled",
				zap.String("booking_id", string(id)), zap.String("status", string(b.Status)))
			return nil
		}

		refunded := booking.SettlementRefunded
		reason := "refund_succeeded"
		ok, err := p.bookings.UpdateStatus(ctx, b, booking.StatusCancelled,
			booking.Patch{Settlement: &refunded, CancelReason: &reason})
		if err != nil {
			return err
		}
		if ok {
			_ = p.bookings.AppendEvent(ctx, &booking.Event{
				BookingID:  b.ID,
				FromStatus: b.Status,
				ToStatus:   booking.StatusCancelled,
				ActorType:  types.RoleSystem,
				CreatedAt:  time.Now(),
			})
			return nil
		}
		// Lost the version race; re-read and try once more.
	}
	return ErrConflictingUpdate
}

func (p *Processor) handlePayoutVerified(ctx context.Context, ev Event) error {
	if ev.DriverID == "" {
		p.log.Warn("payout verification without driver_id metadata", zap.String("event_id", ev.ID))
		return nil
	}
	return p.drivers.MarkPayoutEligible(ctx, ev.DriverID)
}
