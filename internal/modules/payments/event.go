// README: Typed payment-provider events; unknown kinds are acknowledged, never dropped silently.
package payments

import (
	"encoding/json"
	"errors"

	"freightly/internal/types"
)

var (
	ErrInvalidSignature  = errors.New("invalid webhook signature")
	ErrBadPayload        = errors.New("malformed webhook payload")
	ErrConflictingUpdate = errors.New("booking changed concurrently; handler gave up")
)

type EventKind string

const (
	KindPaymentSucceeded EventKind = "payment.succeeded"
	KindPaymentFailed    EventKind = "payment.failed"
	KindRefundPending    EventKind = "refund.pending"
	KindRefundSucceeded  EventKind = "refund.succeeded"
	KindPayoutVerified   EventKind = "payout.verified"
	KindUnhandled        EventKind = "unhandled"
)

// Event is the internal view of one provider notification.
type Event struct {
	ID             string
	Kind           EventKind
	RawType        string
	PaymentID      string
	ProviderStatus string
	BookingID      types.ID
	DriverID       types.ID
}

// kindFor maps the provider's event-type strings onto the internal union.
// Intermediate refund states deliberately collapse into one pending kind;
// only a terminal succeeded refund forces cancellation.
func kindFor(rawType string) EventKind {
	switch rawType {
	case "payment_intent.succeeded", "checkout.session.completed":
		return KindPaymentSucceeded
	case "payment_intent.payment_failed":
		return KindPaymentFailed
	case "refund.created", "refund.updated":
		return KindRefundPending
	case "charge.refunded", "refund.succeeded":
		return KindRefundSucceeded
	case "payout_account.verified":
		return KindPayoutVerified
	default:
		return KindUnhandled
	}
}

type envelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID       string            `json:"id"`
			Status   string            `json:"status"`
			Metadata map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

// ParseEvent decodes a provider payload. A missing event id is a hard error
// (idempotency depends on it); missing metadata is left to the handlers,
// which log and ignore.
func ParseEvent(payload []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Event{}, ErrBadPayload
	}
	if env.ID == "" || env.Type == "" {
		return Event{}, ErrBadPayload
	}
	return Event{
		ID:             env.ID,
		Kind:           kindFor(env.Type),
		RawType:        env.Type,
		PaymentID:      env.Data.Object.ID,
		ProviderStatus: env.Data.Object.Status,
		BookingID:      types.ID(env.Data.Object.Metadata["booking_id"]),
		DriverID:       types.ID(env.Data.Object.Metadata["driver_id"]),
	}, nil
}
