// README: Subscription persistence; counters roll over lazily on month change.
package subscription

import (
	"context"
	"errors"
	"time"

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

type Row struct {
	UserID           types.ID
	Plan             string
	Status           BillingStatus
	PeriodMonth      string
	MissionsUsed     int
	ApplicationsUsed int
}

// Get returns the user's subscription row, or nil when the user is on the
// implicit free tier with no recorded usage yet.
func (s *Store) Get(ctx context.Context, userID types.ID) (*Row, error) {
	row := s.db.QueryRow(ctx, `
		SELECT user_id, plan, status, period_month, missions_used, applications_used
		FROM subscriptions WHERE user_id = $1`, string(userID),
	)
	var r Row
	err := row.Scan(&r.UserID, &r.Plan, &r.Status, &r.PeriodMonth, &r.MissionsUsed, &r.ApplicationsUsed)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// EnsureUser inserts a free-tier row for the user if none exists.
func (s *Store) EnsureUser(ctx context.Context, userID types.ID) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO subscriptions (user_id, plan, status, period_month, missions_used, applications_used)
		VALUES ($1, $2, 'active', $3, 0, 0)
		ON CONFLICT (user_id) DO NOTHING`,
		string(userID), PlanFree, currentMonth(),
	)
	return err
}

// ConsumeMission atomically checks the monthly mission quota and spends one
// unit; the check and the increment are a single conditional UPDATE with lazy
// month rollover, so two concurrent grants cannot both pass on the last unit.
// Returns false when the quota for the current month is exhausted.
func (s *Store) ConsumeMission(ctx context.Context, userID types.ID, limit int) (bool, error) {
	return s.consume(ctx, userID, limit, `
		UPDATE subscriptions SET
			missions_used = CASE WHEN period_month != $1 THEN 1 ELSE missions_used + 1 END,
			applications_used = CASE WHEN period_month != $1 THEN 0 ELSE applications_used END,
			period_month = $1
		WHERE user_id = $2 AND (period_month != $1 OR missions_used < $3)`)
}

func (s *Store) ConsumeApplication(ctx context.Context, userID types.ID, limit int) (bool, error) {
	return s.consume(ctx, userID, limit, `
		UPDATE subscriptions SET
			applications_used = CASE WHEN period_month != $1 THEN 1 ELSE applications_used + 1 END,
			missions_used = CASE WHEN period_month != $1 THEN 0 ELSE missions_used END,
			period_month = $1
		WHERE user_id = $2 AND (period_month != $1 OR applications_used < $3)`)
}

func (s *Store) consume(ctx context.Context, userID types.ID, limit int, query string) (bool, error) {
	tag, err := s.db.Exec(ctx, query, currentMonth(), string(userID), limit)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	// Zero rows means exhausted quota or a missing row: create the free-tier
	// row and retry once to tell the two apart.
	if err := s.EnsureUser(ctx, userID); err != nil {
		return false, err
	}
	tag, err = s.db.Exec(ctx, query, currentMonth(), string(userID), limit)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// IncrementMissions bumps the published-missions counter without a quota
// guard; used for unlimited plans, which still record usage.
func (s *Store) IncrementMissions(ctx context.Context, userID types.ID) error {
	return s.increment(ctx, userID, `
		UPDATE subscriptions SET
			missions_used = CASE WHEN period_month != $1 THEN 1 ELSE missions_used + 1 END,
			applications_used = CASE WHEN period_month != $1 THEN 0 ELSE applications_used END,
			period_month = $1
		WHERE user_id = $2`)
}

func (s *Store) IncrementApplications(ctx context.Context, userID types.ID) error {
	return s.increment(ctx, userID, `
		UPDATE subscriptions SET
			applications_used = CASE WHEN period_month != $1 THEN 1 ELSE applications_used + 1 END,
			missions_used = CASE WHEN period_month != $1 THEN 0 ELSE missions_used END,
			period_month = $1
		WHERE user_id = $2`)
}

func (s *Store) increment(ctx context.Context, userID types.ID, query string) error {
	tag, err := s.db.Exec(ctx, query, currentMonth(), string(userID))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	// Row may be missing: create it and retry once.
	if err := s.EnsureUser(ctx, userID); err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, query, currentMonth(), string(userID))
	return err
}

func currentMonth() string {
	return time.Now().Format("2006-01")
}
