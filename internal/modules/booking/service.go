// README: Booking lifecycle service; every mutation goes through the guarded transitions here.
package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"freightly/internal/types"
)

var (
	ErrBadRequest       = errors.New("bad request")
	ErrNotFound         = errors.New("booking not found")
	ErrForbidden        = errors.New("actor may not perform this transition")
	ErrInvalidState     = errors.New("invalid state transition")
	ErrConflict         = errors.New("booking state conflict")
	ErrDuplicateBooking = errors.New("driver already has a live booking for this job")
)

// UsageGate spends one unit of the caller's monthly quota for the action.
// Consume is atomic: concurrent callers racing for the last unit see exactly
// one success.
type UsageGate interface {
	Consume(ctx context.Context, userID types.ID, action string) error
}

// Sanctions records one confirmed no-show strike. The caller guarantees
// single invocation per incident.
type Sanctions interface {
	RecordStrike(ctx context.Context, driverID types.ID) error
}

// Drivers exposes the eligibility check used at application time.
type Drivers interface {
	Eligible(ctx context.Context, driverID types.ID) error
}

// Transfers initiates the payout to the driver once a completion commits.
// The implementation records the outcome on the booking; it never throws a
// committed status change away.
type Transfers interface {
	Payout(ctx context.Context, b *Booking) error
}

// Notifier publishes domain events for out-of-scope collaborators (UI,
// notifications). A nil Notifier is a no-op.
type Notifier interface {
	Publish(ctx context.Context, key string, payload any) error
}

const (
	ActionPublishJob = "publish_job"
	ActionApply      = "submit_application"
)

type Service struct {
	store     *Store
	gate      UsageGate
	drivers   Drivers
	sanctions Sanctions
	transfers Transfers
	notifier  Notifier
}

func NewService(store *Store, gate UsageGate, drivers Drivers, sanctions Sanctions, transfers Transfers, notifier Notifier) *Service {
	return &Service{
		store:     store,
		gate:      gate,
		drivers:   drivers,
		sanctions: sanctions,
		transfers: transfers,
		notifier:  notifier,
	}
}

type CreateJobCommand struct {
	CompanyID    types.ID
	DayRate      types.Money
	Urgent       bool
	UrgencyBonus int64
}

type ApplyCommand struct {
	JobID      types.ID
	DriverID   types.ID
	DriverNote *string
}

type AcceptCommand struct {
	BookingID types.ID
	CompanyID types.ID
}

type StartCommand struct {
	BookingID types.ID
	DriverID  types.ID
}

type MarkDeliveredCommand struct {
	BookingID types.ID
	DriverID  types.ID
	ProofRef  string
}

type ValidateCompletionCommand struct {
	BookingID types.ID
	CompanyID types.ID
}

type CancelCommand struct {
	BookingID types.ID
	Actor     types.Actor
	Reason    string
}

type ReportNoShowCommand struct {
	BookingID types.ID
	CompanyID types.ID
	Reason    string
}

type ConfirmNoShowCommand struct {
	BookingID types.ID
	Actor     types.Actor
	Confirmed bool
	Comment   string
}

type OpenDisputeCommand struct {
	BookingID types.ID
	Actor     types.Actor
	Reason    string
}

func (s *Service) CreateJob(ctx context.Context, cmd CreateJobCommand) (*Job, error) {
	if cmd.CompanyID == "" || cmd.DayRate.Amount <= 0 {
		return nil, ErrBadRequest
	}
	if s.gate != nil {
		if err := s.gate.Consume(ctx, cmd.CompanyID, ActionPublishJob); err != nil {
			return nil, err
		}
	}

	j := &Job{
		ID:           newID(),
		CompanyID:    cmd.CompanyID,
		Status:       JobOpen,
		DayRate:      cmd.DayRate,
		Urgent:       cmd.Urgent,
		UrgencyBonus: cmd.UrgencyBonus,
		CreatedAt:    time.Now(),
	}
	if err := s.store.CreateJob(ctx, j); err != nil {
		return nil, err
	}
	return j, nil
}

func (s *Service) Apply(ctx context.Context, cmd ApplyCommand) (*Booking, error) {
	if cmd.JobID == "" || cmd.DriverID == "" {
		return nil, ErrBadRequest
	}
	if s.drivers != nil {
		if err := s.drivers.Eligible(ctx, cmd.DriverID); err != nil {
			return nil, err
		}
	}
	j, err := s.store.GetJob(ctx, cmd.JobID)
	if err != nil {
		return nil, err
	}
	if j.Status != JobOpen {
		return nil, ErrInvalidState
	}
	live, err := s.store.HasLiveBooking(ctx, cmd.JobID, cmd.DriverID)
	if err != nil {
		return nil, err
	}
	if live {
		return nil, ErrDuplicateBooking
	}
	if s.gate != nil {
		if err := s.gate.Consume(ctx, cmd.DriverID, ActionApply); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	b := &Booking{
		ID:            newID(),
		JobID:         j.ID,
		CompanyID:     j.CompanyID,
		DriverID:      cmd.DriverID,
		Status:        StatusPending,
		StatusVersion: 0,
		Settlement:    SettlementUnpaid,
		AgreedPrice:   types.Money{Amount: j.DayRate.Amount + j.UrgencyBonus, Currency: j.DayRate.Currency},
		DriverNote:    cmd.DriverNote,
		CreatedAt:     now,
	}
	if err := s.store.CreateBooking(ctx, b); err != nil {
		return nil, err
	}
	s.appendEvent(ctx, b.ID, StatusNone, StatusPending, types.RoleDriver, &cmd.DriverID)
	s.publish(ctx, "booking.applied", b)
	return b, nil
}

// Accept assigns one pending candidate. Sibling pending bookings are left
// untouched; they become unreachable once the job leaves open.
func (s *Service) Accept(ctx context.Context, cmd AcceptCommand) (*Booking, error) {
	b, err := s.store.Get(ctx, cmd.BookingID)
	if err != nil {
		return nil, err
	}
	if b.CompanyID != cmd.CompanyID {
		return nil, ErrForbidden
	}
	if !CanTransition(b.Status, StatusAssigned) {
		return nil, ErrInvalidState
	}
	ok, err := s.store.UpdateStatus(ctx, b, StatusAssigned, Patch{})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	s.appendEvent(ctx, b.ID, b.Status, StatusAssigned, types.RoleCompany, &cmd.CompanyID)
	s.publish(ctx, "booking.assigned", b.ID)
	return s.store.Get(ctx, cmd.BookingID)
}

func (s *Service) Start(ctx context.Context, cmd StartCommand) (*Booking, error) {
	b, err := s.store.Get(ctx, cmd.BookingID)
	if err != nil {
		return nil, err
	}
	if b.DriverID != cmd.DriverID {
		return nil, ErrForbidden
	}
	if !CanTransition(b.Status, StatusInProgress) {
		return nil, ErrInvalidState
	}
	ok, err := s.store.UpdateStatus(ctx, b, StatusInProgress, Patch{})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	s.appendEvent(ctx, b.ID, b.Status, StatusInProgress, types.RoleDriver, &cmd.DriverID)
	return s.store.Get(ctx, cmd.BookingID)
}

func (s *Service) MarkDelivered(ctx context.Context, cmd MarkDeliveredCommand) (*Booking, error) {
	if cmd.ProofRef == "" {
		return nil, ErrBadRequest
	}
	b, err := s.store.Get(ctx, cmd.BookingID)
	if err != nil {
		return nil, err
	}
	if b.DriverID != cmd.DriverID {
		return nil, ErrForbidden
	}
	if !CanTransition(b.Status, StatusDelivered) {
		return nil, ErrInvalidState
	}
	ok, err := s.store.UpdateStatus(ctx, b, StatusDelivered, Patch{ProofRef: &cmd.ProofRef})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	s.appendEvent(ctx, b.ID, b.Status, StatusDelivered, types.RoleDriver, &cmd.DriverID)
	s.publish(ctx, "booking.delivered", b.ID)
	return s.store.Get(ctx, cmd.BookingID)
}

// ValidateCompletion closes a delivered booking and initiates the payout.
// The status change commits first; the transfer outcome is recorded on the
// settlement axis so a failed payout never undoes the completion.
func (s *Service) ValidateCompletion(ctx context.Context, cmd ValidateCompletionCommand) (*Booking, error) {
	b, err := s.store.Get(ctx, cmd.BookingID)
	if err != nil {
		return nil, err
	}
	if b.CompanyID != cmd.CompanyID {
		return nil, ErrForbidden
	}
	if !CanTransition(b.Status, StatusCompleted) {
		return nil, ErrInvalidState
	}
	if b.Settlement != SettlementPaid {
		return nil, ErrInvalidState
	}

	pending := SettlementTransferPending
	ok, err := s.store.UpdateStatus(ctx, b, StatusCompleted, Patch{Settlement: &pending})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	s.appendEvent(ctx, b.ID, b.Status, StatusCompleted, types.RoleCompany, &cmd.CompanyID)

	if s.transfers != nil {
		if updated, err := s.store.Get(ctx, cmd.BookingID); err == nil {
			_ = s.transfers.Payout(ctx, updated)
		}
	}
	s.publish(ctx, "booking.completed", b.ID)
	return s.store.Get(ctx, cmd.BookingID)
}

func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) (*Booking, error) {
	b, err := s.store.Get(ctx, cmd.BookingID)
	if err != nil {
		return nil, err
	}
	switch cmd.Actor.Role {
	case types.RoleAdmin:
	case types.RoleCompany:
		if b.CompanyID != cmd.Actor.ID {
			return nil, ErrForbidden
		}
	default:
		return nil, ErrForbidden
	}
	if !CanTransition(b.Status, StatusCancelled) {
		return nil, ErrInvalidState
	}
	ok, err := s.store.UpdateStatus(ctx, b, StatusCancelled, Patch{CancelReason: &cmd.Reason})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	s.appendEvent(ctx, b.ID, b.Status, StatusCancelled, cmd.Actor.Role, &cmd.Actor.ID)
	s.publish(ctx, "booking.cancelled", b.ID)
	return s.store.Get(ctx, cmd.BookingID)
}

func (s *Service) ReportNoShow(ctx context.Context, cmd ReportNoShowCommand) error {
	if cmd.Reason == "" {
		return ErrBadRequest
	}
	b, err := s.store.Get(ctx, cmd.BookingID)
	if err != nil {
		return err
	}
	if b.CompanyID != cmd.CompanyID {
		return ErrForbidden
	}
	ok, err := s.store.MarkNoShowReported(ctx, cmd.BookingID, cmd.Reason)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	s.publish(ctx, "booking.no_show_reported", cmd.BookingID)
	return nil
}

// ConfirmNoShow is admin-only: the reporting company must not settle its own
// dispute. Claiming the pending report is the idempotency guard that keeps
// the strike from being applied twice.
func (s *Service) ConfirmNoShow(ctx context.Context, cmd ConfirmNoShowCommand) error {
	if cmd.Actor.Role != types.RoleAdmin {
		return ErrForbidden
	}
	b, err := s.store.Get(ctx, cmd.BookingID)
	if err != nil {
		return err
	}
	if b.NoShowReportedAt == nil {
		return ErrInvalidState
	}
	ok, err := s.store.MarkNoShowResolved(ctx, cmd.BookingID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	if !cmd.Confirmed {
		s.publish(ctx, "booking.no_show_dismissed", cmd.BookingID)
		return nil
	}

	if s.sanctions != nil {
		if err := s.sanctions.RecordStrike(ctx, b.DriverID); err != nil {
			// Release the claim so a retry can land the strike.
			_ = s.store.UnmarkNoShowResolved(ctx, cmd.BookingID)
			return err
		}
	}
	if CanTransition(b.Status, StatusCancelled) {
		reason := "no_show_confirmed"
		if cmd.Comment != "" {
			reason = cmd.Comment
		}
		if ok, err := s.store.UpdateStatus(ctx, b, StatusCancelled, Patch{CancelReason: &reason}); err != nil {
			return err
		} else if ok {
			s.appendEvent(ctx, b.ID, b.Status, StatusCancelled, types.RoleAdmin, &cmd.Actor.ID)
		}
	}
	s.publish(ctx, "booking.no_show_confirmed", cmd.BookingID)
	return nil
}

func (s *Service) OpenDispute(ctx context.Context, cmd OpenDisputeCommand) (*Booking, error) {
	if cmd.Reason == "" {
		return nil, ErrBadRequest
	}
	b, err := s.store.Get(ctx, cmd.BookingID)
	if err != nil {
		return nil, err
	}
	switch cmd.Actor.Role {
	case types.RoleAdmin:
	case types.RoleCompany:
		if b.CompanyID != cmd.Actor.ID {
			return nil, ErrForbidden
		}
	case types.RoleDriver:
		if b.DriverID != cmd.Actor.ID {
			return nil, ErrForbidden
		}
	default:
		return nil, ErrForbidden
	}
	ok, err := s.store.MarkDisputed(ctx, cmd.BookingID, cmd.Reason)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidState
	}
	s.publish(ctx, "booking.disputed", cmd.BookingID)
	return s.store.Get(ctx, cmd.BookingID)
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Booking, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) GetJob(ctx context.Context, id types.ID) (*Job, error) {
	return s.store.GetJob(ctx, id)
}

func (s *Service) ListByJob(ctx context.Context, jobID types.ID) ([]*Booking, error) {
	return s.store.ListByJob(ctx, jobID)
}

func (s *Service) appendEvent(ctx context.Context, id types.ID, from, to Status, actor types.Role, actorID *types.ID) {
	_ = s.store.AppendEvent(ctx, &Event{
		BookingID:  id,
		FromStatus: from,
		ToStatus:   to,
		ActorType:  actor,
		ActorID:    actorID,
		CreatedAt:  time.Now(),
	})
}

func (s *Service) publish(ctx context.Context, key string, payload any) {
	if s.notifier == nil {
		return
	}
	_ = s.notifier.Publish(ctx, key, payload)
}

func newID() types.ID {
	return types.ID(uuid.NewString())
}
