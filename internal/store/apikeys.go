package store

import (
	"context"
	"fmt"
)

func (s *PostgresStore) InsertAPIKey(ctx context.Context, key APIKey) error {
	scopes, err := encodeList(key.Scopes)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO api_keys (id, user_id, name, prefix, key_hash, scopes)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, key.ID, key.UserID, key.Name, key.Prefix, key.KeyHash, scopes)
	if err != nil {
		return fmt.Errorf("insert api key: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAPIKeys(ctx context.Context, userID string) ([]APIKey, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, prefix, key_hash, scopes, last_used_at, revoked_at, created_at
		FROM api_keys WHERE user_id=$1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	items := make([]APIKey, 0)
	for rows.Next() {
		var key APIKey
		var scopes []byte
		if err := rows.Scan(&key.ID, &key.UserID, &key.Name, &key.Prefix, &key.KeyHash, &scopes, &key.LastUsedAt, &key.RevokedAt, &key.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		if key.Scopes, err = decodeList(scopes); err != nil {
			return nil, err
		}
		items = append(items, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate api keys: %w", err)
	}
	return items, nil
}

// GetAPIKeyByHash only returns keys that have not been revoked.
func (s *PostgresStore) GetAPIKeyByHash(ctx context.Context, keyHash string) (APIKey, error) {
	var key APIKey
	var scopes []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, prefix, key_hash, scopes, last_used_at, revoked_at, created_at
		FROM api_keys WHERE key_hash=$1 AND revoked_at IS NULL
	`, keyHash).Scan(&key.ID, &key.UserID, &key.Name, &key.Prefix, &key.KeyHash, &scopes, &key.LastUsedAt, &key.RevokedAt, &key.CreatedAt)
	if err != nil {
		return APIKey{}, err
	}
	if key.Scopes, err = decodeList(scopes); err != nil {
		return APIKey{}, err
	}
	return key, nil
}

func (s *PostgresStore) TouchAPIKey(ctx context.Context, keyID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE api_keys SET last_used_at=NOW() WHERE id=$1`, keyID)
	if err != nil {
		return fmt.Errorf("touch api key: %w", err)
	}
	return nil
}

func (s *PostgresStore) RevokeAPIKey(ctx context.Context, userID, keyID string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE api_keys SET revoked_at=NOW() WHERE id=$1 AND user_id=$2 AND revoked_at IS NULL
	`, keyID, userID)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	return requireRow(result)
}
