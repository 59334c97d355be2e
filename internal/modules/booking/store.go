// README: Booking store backed by PostgreSQL; all guard checks are conditional updates.
package booking

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"freightly/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Patch carries transition-specific column writes applied together with a
// status change.
type Patch struct {
	Settlement     *SettlementStatus
	ProofRef       *string
	CancelReason   *string
	ResolutionNote *string
}

func (s *Store) CreateJob(ctx context.Context, j *Job) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO jobs (id, company_id, status, day_rate, currency, urgent, urgency_bonus, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`,
		string(j.ID),
		string(j.CompanyID),
		string(j.Status),
		j.DayRate.Amount,
		j.DayRate.Currency,
		j.Urgent,
		j.UrgencyBonus,
		j.CreatedAt,
	)
	return err
}

func (s *Store) GetJob(ctx context.Context, id types.ID) (*Job, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, company_id, status, day_rate, currency, urgent, urgency_bonus, created_at, updated_at
		FROM jobs WHERE id = $1`, string(id),
	)
	var j Job
	err := row.Scan(&j.ID, &j.CompanyID, &j.Status, &j.DayRate.Amount, &j.DayRate.Currency,
		&j.Urgent, &j.UrgencyBonus, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (s *Store) CreateBooking(ctx context.Context, b *Booking) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO bookings (
			id, job_id, company_id, driver_id, status, status_version, settlement,
			agreed_price, currency, driver_note, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		string(b.ID),
		string(b.JobID),
		string(b.CompanyID),
		string(b.DriverID),
		string(b.Status),
		b.StatusVersion,
		string(b.Settlement),
		b.AgreedPrice.Amount,
		b.AgreedPrice.Currency,
		b.DriverNote,
		b.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateBooking
	}
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Booking, error) {
	row := s.db.QueryRow(ctx, selectBooking+` WHERE id = $1`, string(id))
	return scanBooking(row)
}

func (s *Store) ListByJob(ctx context.Context, jobID types.ID) ([]*Booking, error) {
	rows, err := s.db.Query(ctx, selectBooking+` WHERE job_id = $1 ORDER BY created_at`, string(jobID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// HasLiveBooking reports whether the (job, driver) pair already has a
// booking in a non-cancelled state.
func (s *Store) HasLiveBooking(ctx context.Context, jobID, driverID types.ID) (bool, error) {
	row := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE job_id = $1 AND driver_id = $2 AND status != 'cancelled'
		)`, string(jobID), string(driverID),
	)
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// UpdateStatus moves a booking along one transition edge and mirrors the job
// row inside the same transaction. The booking update is conditional on the
// current status and version, and on the resulting (status, settlement) pair
// being in settlementCompat; acceptance additionally requires the job to
// still be open, which is what makes acceptance exclusive under races.
// Returns false when the conditional update lost.
func (s *Store) UpdateStatus(ctx context.Context, b *Booking, to Status, p Patch) (bool, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var settlement *string
	if p.Settlement != nil {
		v := string(*p.Settlement)
		settlement = &v
	}
	compat := make([]string, 0, len(settlementCompat[to]))
	for _, v := range settlementCompat[to] {
		compat = append(compat, string(v))
	}

	tag, err := tx.Exec(ctx, `
		UPDATE bookings
		SET status = $1,
			status_version = status_version + 1,
			settlement = COALESCE($2, settlement),
			proof_ref = COALESCE($3, proof_ref),
			cancel_reason = COALESCE($4, cancel_reason),
			resolution_note = COALESCE($5, resolution_note),
			delivered_at = CASE WHEN $1 = 'delivered' THEN NOW() ELSE delivered_at END,
			completed_at = CASE WHEN $1 = 'completed' THEN NOW() ELSE completed_at END,
			cancelled_at = CASE WHEN $1 = 'cancelled' THEN NOW() ELSE cancelled_at END
		WHERE id = $6 AND status = $7 AND status_version = $8
			AND COALESCE($2, settlement) = ANY($9)`,
		string(to),
		settlement,
		p.ProofRef,
		p.CancelReason,
		p.ResolutionNote,
		string(b.ID),
		string(b.Status),
		b.StatusVersion,
		compat,
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}

	switch {
	case to == StatusAssigned:
		// Only one booking may claim an open job.
		tag, err = tx.Exec(ctx, `
			UPDATE jobs SET status = 'assigned', updated_at = NOW()
			WHERE id = $1 AND status = 'open'`, string(b.JobID))
		if err != nil {
			return false, err
		}
		if tag.RowsAffected() != 1 {
			return false, nil
		}
	case b.Status != StatusPending:
		// The accepted booking drives the job projection.
		if _, err = tx.Exec(ctx, `
			UPDATE jobs SET status = $1, updated_at = NOW()
			WHERE id = $2`, string(JobStatusFor(to)), string(b.JobID)); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// UpdateSettlement moves the settlement axis only, conditional on the current
// settlement being in the allowed source set and on the booking's progress
// state admitting the target settlement per settlementCompat. Used by webhook
// handlers, which must stay idempotent under redelivery.
func (s *Store) UpdateSettlement(ctx context.Context, id types.ID, from []SettlementStatus, to SettlementStatus, providerPaymentID, providerStatus, transferID *string) (bool, error) {
	src := make([]string, len(from))
	for i, v := range from {
		src[i] = string(v)
	}
	allowed := StatusesAllowing(to)
	statuses := make([]string, len(allowed))
	for i, v := range allowed {
		statuses[i] = string(v)
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE bookings
		SET settlement = $1,
			provider_payment_id = COALESCE($2, provider_payment_id),
			provider_payment_status = COALESCE($3, provider_payment_status),
			transfer_id = COALESCE($4, transfer_id),
			paid_at = CASE WHEN $1 = 'paid' AND paid_at IS NULL THEN NOW() ELSE paid_at END
		WHERE id = $5 AND settlement = ANY($6) AND status = ANY($7)`,
		string(to),
		providerPaymentID,
		providerStatus,
		transferID,
		string(id),
		src,
		statuses,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkDisputed flips a delivered, paid booking into the disputed settlement
// state and records the reason.
func (s *Store) MarkDisputed(ctx context.Context, id types.ID, reason string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE bookings
		SET settlement = 'disputed', dispute_reason = $1
		WHERE id = $2 AND status = 'delivered' AND settlement = 'paid'`,
		reason, string(id),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkNoShowReported records a no-show report once per incident.
func (s *Store) MarkNoShowReported(ctx context.Context, id types.ID, reason string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE bookings
		SET no_show_reported_at = NOW(), no_show_reason = $1
		WHERE id = $2 AND status IN ('assigned', 'in_progress') AND no_show_reported_at IS NULL`,
		reason, string(id),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkNoShowResolved claims the pending report. The single affected row is
// the caller's guarantee that sanctions run once per incident.
func (s *Store) MarkNoShowResolved(ctx context.Context, id types.ID) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE bookings
		SET no_show_resolved_at = NOW()
		WHERE id = $1 AND no_show_reported_at IS NOT NULL AND no_show_resolved_at IS NULL`,
		string(id),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// UnmarkNoShowResolved releases a claimed report when sanctioning failed
// after the claim, so the confirmation can be retried.
func (s *Store) UnmarkNoShowResolved(ctx context.Context, id types.ID) error {
	_, err := s.db.Exec(ctx, `
		UPDATE bookings SET no_show_resolved_at = NULL WHERE id = $1`,
		string(id),
	)
	return err
}

func (s *Store) AppendEvent(ctx context.Context, e *Event) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO booking_state_events (booking_id, from_status, to_status, actor_type, actor_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		string(e.BookingID),
		string(e.FromStatus),
		string(e.ToStatus),
		string(e.ActorType),
		toStringPtr(e.ActorID),
		e.CreatedAt,
	)
	return err
}

const selectBooking = `
	SELECT id, job_id, company_id, driver_id, status, status_version, settlement,
	       agreed_price, currency,
	       provider_payment_id, provider_payment_status, transfer_id,
	       company_note, driver_note, proof_ref,
	       no_show_reported_at, no_show_reason, no_show_resolved_at,
	       dispute_reason, resolution_note, cancel_reason,
	       created_at, paid_at, delivered_at, completed_at, cancelled_at
	FROM bookings`

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	var paymentID, paymentStatus, transferID sql.NullString
	var companyNote, driverNote, proofRef sql.NullString
	var noShowReason, disputeReason, resolutionNote, cancelReason sql.NullString
	var reportedAt, resolvedAt, paidAt, deliveredAt, completedAt, cancelledAt sql.NullTime

	err := row.Scan(
		&b.ID, &b.JobID, &b.CompanyID, &b.DriverID, &b.Status, &b.StatusVersion, &b.Settlement,
		&b.AgreedPrice.Amount, &b.AgreedPrice.Currency,
		&paymentID, &paymentStatus, &transferID,
		&companyNote, &driverNote, &proofRef,
		&reportedAt, &noShowReason, &resolvedAt,
		&disputeReason, &resolutionNote, &cancelReason,
		&b.CreatedAt, &paidAt, &deliveredAt, &completedAt, &cancelledAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	b.ProviderPaymentID = fromNullString(paymentID)
	b.ProviderPaymentStatus = fromNullString(paymentStatus)
	b.TransferID = fromNullString(transferID)
	b.CompanyNote = fromNullString(companyNote)
	b.DriverNote = fromNullString(driverNote)
	b.ProofRef = fromNullString(proofRef)
	b.NoShowReason = fromNullString(noShowReason)
	b.DisputeReason = fromNullString(disputeReason)
	b.ResolutionNote = fromNullString(resolutionNote)
	b.CancelReason = fromNullString(cancelReason)
	b.NoShowReportedAt = fromNullTime(reportedAt)
	b.NoShowResolvedAt = fromNullTime(resolvedAt)
	b.PaidAt = fromNullTime(paidAt)
	b.DeliveredAt = fromNullTime(deliveredAt)
	b.CompletedAt = fromNullTime(completedAt)
	b.CancelledAt = fromNullTime(cancelledAt)
	return &b, nil
}

func toStringPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func fromNullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func fromNullTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
