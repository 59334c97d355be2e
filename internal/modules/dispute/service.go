// README: Dispute resolver; admin picks the terminal outcome of a contested delivery.
package dispute

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"freightly/internal/modules/booking"
	"freightly/internal/modules/payments"
	"freightly/internal/types"
)

var (
	ErrForbidden   = errors.New("only an administrator may resolve disputes")
	ErrNotDisputed = errors.New("booking is not in a disputed state")
	ErrResolved    = errors.New("dispute already resolved")
	ErrBadAction   = errors.New("unknown resolution action")
)

type Action string

const (
	// ActionValidate pays the driver: the delivery stands.
	ActionValidate Action = "validate"
	// ActionCancel refunds the company: the delivery is voided.
	ActionCancel Action = "cancel"
	// ActionPartialRefund closes the booking but refunds part of the price.
	ActionPartialRefund Action = "partial_refund"
)

type Notifier interface {
	Publish(ctx context.Context, key string, payload any) error
}

type Service struct {
	bookings *booking.Store
	payouts  *payments.Payouts
	provider *payments.TransferClient
	notifier Notifier
	log      *zap.Logger
}

func NewService(bookings *booking.Store, payouts *payments.Payouts, provider *payments.TransferClient, notifier Notifier, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{bookings: bookings, payouts: payouts, provider: provider, notifier: notifier, log: log}
}

type ResolveCommand struct {
	BookingID    types.ID
	Actor        types.Actor
	Action       Action
	Notes        string
	RefundAmount int64 // minor units; partial_refund only
}

// Resolve moves a disputed booking to its terminal outcome. The status CAS
// makes a second resolution attempt fail with a conflict while the first
// outcome stays intact.
func (s *Service) Resolve(ctx context.Context, cmd ResolveCommand) (*booking.Booking, error) {
	if cmd.Actor.Role != types.RoleAdmin {
		return nil, ErrForbidden
	}

	b, err := s.bookings.Get(ctx, cmd.BookingID)
	if err != nil {
		return nil, err
	}
	if b.Status != booking.StatusDelivered || b.Settlement != booking.SettlementDisputed {
		if b.Status.Terminal() {
			return nil, ErrResolved
		}
		return nil, ErrNotDisputed
	}

	var to booking.Status
	var settlement booking.SettlementStatus
	switch cmd.Action {
	case ActionValidate:
		to, settlement = booking.StatusCompleted, booking.SettlementTransferPending
	case ActionCancel:
		to, settlement = booking.StatusCancelled, booking.SettlementRefundPending
	case ActionPartialRefund:
		if cmd.RefundAmount <= 0 || cmd.RefundAmount >= b.AgreedPrice.Amount {
			return nil, booking.ErrBadRequest
		}
		to, settlement = booking.StatusCompleted, booking.SettlementPartiallyRefunded
	default:
		return nil, ErrBadAction
	}

	note := string(cmd.Action)
	if cmd.Notes != "" {
		note = note + ": " + cmd.Notes
	}
	ok, err := s.bookings.UpdateStatus(ctx, b, to, booking.Patch{
		Settlement:     &settlement,
		ResolutionNote: &note,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrResolved
	}
	_ = s.bookings.AppendEvent(ctx, &booking.Event{
		BookingID:  b.ID,
		FromStatus: b.Status,
		ToStatus:   to,
		ActorType:  types.RoleAdmin,
		ActorID:    &cmd.Actor.ID,
		CreatedAt:  time.Now(),
	})

	updated, err := s.bookings.Get(ctx, cmd.BookingID)
	if err != nil {
		return nil, err
	}

	switch cmd.Action {
	case ActionValidate:
		if s.payouts != nil {
			_ = s.payouts.Payout(ctx, updated)
		}
	case ActionCancel:
		s.requestRefund(ctx, updated, updated.AgreedPrice.Amount)
	case ActionPartialRefund:
		s.requestRefund(ctx, updated, cmd.RefundAmount)
	}

	if s.notifier != nil {
		_ = s.notifier.Publish(ctx, "booking.dispute_resolved", map[string]any{
			"booking_id": updated.ID,
			"action":     cmd.Action,
		})
	}
	return s.bookings.Get(ctx, cmd.BookingID)
}

// requestRefund asks the provider for the refund; the terminal refunded
// settlement arrives via webhook. A provider failure here is logged, not
// surfaced: the refund_pending marker keeps the booking reconcilable.
func (s *Service) requestRefund(ctx context.Context, b *booking.Booking, amount int64) {
	if s.provider == nil || b.ProviderPaymentID == nil {
		return
	}
	if _, err := s.provider.CreateRefund(ctx, b.ID, *b.ProviderPaymentID, amount); err != nil {
		s.log.Warn("refund request failed",
			zap.String("booking_id", string(b.ID)), zap.Error(err))
	}
}
