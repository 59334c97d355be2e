// README: Booking/Job aggregates, status definitions, and transition tables.
package booking

import (
	"time"

	"freightly/internal/types"
)

// Status is the delivery-progress axis of a booking.
type Status string

const (
	StatusNone       Status = "none"
	StatusPending    Status = "pending"
	StatusAssigned   Status = "assigned"
	StatusInProgress Status = "in_progress"
	StatusDelivered  Status = "delivered"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// SettlementStatus is the payment-settlement axis, tracked separately from
// delivery progress so a disputed delivery does not overload the status enum.
type SettlementStatus string

const (
	SettlementUnpaid            SettlementStatus = "unpaid"
	SettlementProcessing        SettlementStatus = "processing"
	SettlementPaid              SettlementStatus = "paid"
	SettlementFailed            SettlementStatus = "failed"
	SettlementDisputed          SettlementStatus = "disputed"
	SettlementRefundPending     SettlementStatus = "refund_pending"
	SettlementRefunded          SettlementStatus = "refunded"
	SettlementPartiallyRefunded SettlementStatus = "partially_refunded"
	SettlementTransferPending   SettlementStatus = "transfer_pending"
	SettlementTransferred       SettlementStatus = "transferred"
)

// JobStatus mirrors the accepted booking's progress; open means no booking
// has been accepted yet.
type JobStatus string

const (
	JobOpen       JobStatus = "open"
	JobAssigned   JobStatus = "assigned"
	JobInProgress JobStatus = "in_progress"
	JobDelivered  JobStatus = "delivered"
	JobCompleted  JobStatus = "completed"
	JobCancelled  JobStatus = "cancelled"
)

type Job struct {
	ID           types.ID
	CompanyID    types.ID
	Status       JobStatus
	DayRate      types.Money
	Urgent       bool
	UrgencyBonus int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Booking struct {
	ID            types.ID
	JobID         types.ID
	CompanyID     types.ID
	DriverID      types.ID
	Status        Status
	StatusVersion int
	Settlement    SettlementStatus
	AgreedPrice   types.Money

	ProviderPaymentID     *string
	ProviderPaymentStatus *string
	TransferID            *string

	CompanyNote *string
	DriverNote  *string
	ProofRef    *string

	NoShowReportedAt *time.Time
	NoShowReason     *string
	NoShowResolvedAt *time.Time

	DisputeReason  *string
	ResolutionNote *string

	CreatedAt   time.Time
	PaidAt      *time.Time
	DeliveredAt *time.Time
	CompletedAt *time.Time
	CancelledAt *time.Time
	CancelReason *string
}

// Event is one row of the append-only state audit trail.
type Event struct {
	ID         int64
	BookingID  types.ID
	FromStatus Status
	ToStatus   Status
	ActorType  types.Role
	ActorID    *types.ID
	CreatedAt  time.Time
}

// AllowedTransitions represents the booking state flow (diagram) as code.
var AllowedTransitions = map[Status][]Status{
	StatusPending:    {StatusAssigned, StatusCancelled},
	StatusAssigned:   {StatusInProgress, StatusDelivered, StatusCancelled},
	StatusInProgress: {StatusDelivered, StatusCancelled},
	StatusDelivered:  {StatusCompleted, StatusCancelled},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// settlementCompat lists the settlement states a booking may carry in each
// progress state. The store enforces the table on every write: an UPDATE that
// would land outside it affects zero rows. Payment webhooks can trail delivery
// progress, so unpaid and processing stay legal through delivered; refunded is
// cancelled-only.
var settlementCompat = map[Status][]SettlementStatus{
	StatusPending:    {SettlementUnpaid},
	StatusAssigned:   {SettlementUnpaid, SettlementProcessing, SettlementPaid, SettlementFailed},
	StatusInProgress: {SettlementUnpaid, SettlementProcessing, SettlementPaid, SettlementFailed},
	StatusDelivered:  {SettlementUnpaid, SettlementProcessing, SettlementPaid, SettlementFailed, SettlementDisputed, SettlementRefundPending},
	StatusCompleted:  {SettlementPaid, SettlementTransferPending, SettlementTransferred, SettlementPartiallyRefunded},
	StatusCancelled:  {SettlementUnpaid, SettlementProcessing, SettlementPaid, SettlementFailed, SettlementRefundPending, SettlementRefunded},
}

func SettlementAllowed(s Status, settlement SettlementStatus) bool {
	for _, v := range settlementCompat[s] {
		if v == settlement {
			return true
		}
	}
	return false
}

// statusOrder fixes the iteration order for StatusesAllowing; map iteration
// would make the SQL parameter order nondeterministic.
var statusOrder = []Status{
	StatusPending, StatusAssigned, StatusInProgress,
	StatusDelivered, StatusCompleted, StatusCancelled,
}

// StatusesAllowing returns the progress states that may carry the settlement
// state, per settlementCompat.
func StatusesAllowing(settlement SettlementStatus) []Status {
	out := make([]Status, 0, len(statusOrder))
	for _, s := range statusOrder {
		if SettlementAllowed(s, settlement) {
			out = append(out, s)
		}
	}
	return out
}

// JobStatusFor maps an accepted booking's status to the owning job's status.
func JobStatusFor(s Status) JobStatus {
	switch s {
	case StatusAssigned:
		return JobAssigned
	case StatusInProgress:
		return JobInProgress
	case StatusDelivered:
		return JobDelivered
	case StatusCompleted:
		return JobCompleted
	case StatusCancelled:
		return JobCancelled
	default:
		return JobOpen
	}
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}
