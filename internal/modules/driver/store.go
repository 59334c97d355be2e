// README: Driver store backed by PostgreSQL; sanction state lives in typed columns.
package driver

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"freightly/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Profile, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, is_available, rating, delivery_count, strike_count,
		       suspended_until, banned, payout_eligible, created_at, updated_at
		FROM drivers WHERE id = $1`, string(id),
	)
	var p Profile
	var suspendedUntil sql.NullTime
	err := row.Scan(&p.ID, &p.IsAvailable, &p.Rating, &p.DeliveryCount, &p.StrikeCount,
		&suspendedUntil, &p.Banned, &p.PayoutEligible, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if suspendedUntil.Valid {
		t := suspendedUntil.Time
		p.SuspendedUntil = &t
	}
	return &p, nil
}

// ApplyStrike increments the strike count and applies the matching sanction
// columns in one atomic update, then reports the resulting sanction.
func (s *Store) ApplyStrike(ctx context.Context, id types.ID) (Sanction, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE drivers SET
			strike_count = strike_count + 1,
			suspended_until = CASE WHEN strike_count + 1 = 2
				THEN NOW() + make_interval(days => $2)
				ELSE suspended_until END,
			banned = banned OR strike_count + 1 >= 3,
			is_available = CASE WHEN strike_count + 1 >= 2 THEN FALSE ELSE is_available END,
			updated_at = NOW()
		WHERE id = $1
		RETURNING strike_count, suspended_until, banned`,
		string(id), SuspensionDays,
	)

	var strikes int
	var suspendedUntil sql.NullTime
	var banned bool
	err := row.Scan(&strikes, &suspendedUntil, &banned)
	if errors.Is(err, pgx.ErrNoRows) {
		return Sanction{}, ErrNotFound
	}
	if err != nil {
		return Sanction{}, err
	}

	out := Sanction{Kind: SanctionWarning, StrikeCount: strikes}
	switch {
	case banned:
		out.Kind = SanctionBan
	case suspendedUntil.Valid:
		t := suspendedUntil.Time
		out.Kind = SanctionSuspension
		out.SuspendedUntil = &t
	}
	return out, nil
}

func (s *Store) MarkPayoutEligible(ctx context.Context, id types.ID) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE drivers SET payout_eligible = TRUE, updated_at = NOW() WHERE id = $1`,
		string(id),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) IncrementDeliveries(ctx context.Context, id types.ID) error {
	_, err := s.db.Exec(ctx, `
		UPDATE drivers SET delivery_count = delivery_count + 1, updated_at = NOW() WHERE id = $1`,
		string(id),
	)
	return err
}
