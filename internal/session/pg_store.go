package session

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"forge/api/internal/store"
)

// PgStore keeps refresh tokens in Postgres. Used when Redis is not
// configured; expired rows are filtered on lookup rather than reaped.
type PgStore struct {
	db *store.PostgresStore
}

func NewPgStore(db *store.PostgresStore) *PgStore {
	return &PgStore{db: db}
}

func (s *PgStore) Save(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	return s.db.SaveRefreshSession(ctx, tokenHash, userID, expiresAt)
}

func (s *PgStore) Lookup(ctx context.Context, tokenHash string) (string, error) {
	user, err := s.db.LookupRefreshSession(ctx, tokenHash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

func (s *PgStore) Revoke(ctx context.Context, tokenHash string) error {
	return s.db.RevokeRefreshSession(ctx, tokenHash)
}
