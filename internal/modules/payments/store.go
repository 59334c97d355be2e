// README: Webhook event audit store; the unique provider event id is the idempotency guard.
package payments

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Insert records the event before processing. Returns false when the
// provider event id was already seen, in which case the caller acknowledges
// without re-applying side effects.
func (s *Store) Insert(ctx context.Context, providerEventID, eventType string, payload []byte) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO webhook_events (provider_event_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (provider_event_id) DO NOTHING`,
		providerEventID, eventType, payload,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) MarkProcessed(ctx context.Context, providerEventID string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE webhook_events SET processed_at = NOW(), processing_error = NULL
		WHERE provider_event_id = $1`, providerEventID,
	)
	return err
}

func (s *Store) MarkFailed(ctx context.Context, providerEventID, msg string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE webhook_events SET processed_at = NOW(), processing_error = $1
		WHERE provider_event_id = $2`, msg, providerEventID,
	)
	return err
}
