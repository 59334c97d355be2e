// README: Driver profile aggregate and the no-show sanction ladder.
package driver

import (
	"errors"
	"time"

	"freightly/internal/types"
)

var (
	ErrNotFound  = errors.New("driver not found")
	ErrSuspended = errors.New("driver is suspended")
	ErrBanned    = errors.New("driver is banned")
)

// SuspensionDays is the length of the second-strike suspension.
const SuspensionDays = 7

type Profile struct {
	ID             types.ID
	IsAvailable    bool
	Rating         float64
	DeliveryCount  int
	StrikeCount    int
	SuspendedUntil *time.Time
	Banned         bool
	PayoutEligible bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type SanctionKind string

const (
	SanctionWarning    SanctionKind = "warning"
	SanctionSuspension SanctionKind = "suspension"
	SanctionBan        SanctionKind = "ban"
)

type Sanction struct {
	Kind           SanctionKind
	StrikeCount    int
	SuspendedUntil *time.Time
}

// SanctionFor is the escalation ladder: a deterministic, total function of
// the strike count after increment.
func SanctionFor(strikes int, now time.Time) Sanction {
	switch {
	case strikes <= 1:
		return Sanction{Kind: SanctionWarning, StrikeCount: strikes}
	case strikes == 2:
		until := now.AddDate(0, 0, SuspensionDays)
		return Sanction{Kind: SanctionSuspension, StrikeCount: strikes, SuspendedUntil: &until}
	default:
		return Sanction{Kind: SanctionBan, StrikeCount: strikes}
	}
}
