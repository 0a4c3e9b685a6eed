// Package apikey manages programmatic access keys for the public API.
//
// Keys are minted as "fk_" + 64 hex chars and shown to the caller exactly
// once; only a SHA-256 digest is stored. Authentication hashes the presented
// key and looks the digest up, so a database leak exposes no usable secrets.
package apikey

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"forge/api/internal/auth"
	"forge/api/internal/rbac"
	"forge/api/internal/store"
	"forge/api/internal/util"
)

const keyPrefix = "fk_"

var (
	ErrInvalidKey   = errors.New("invalid api key")
	ErrInvalidScope = errors.New("invalid scope")
)

// Store is the subset of the persistence layer the service needs.
type Store interface {
	InsertAPIKey(ctx context.Context, k store.APIKey) error
	ListAPIKeys(ctx context.Context, userID string) ([]store.APIKey, error)
	GetAPIKeyByHash(ctx context.Context, keyHash string) (store.APIKey, error)
	TouchAPIKey(ctx context.Context, keyID string) error
	RevokeAPIKey(ctx context.Context, userID, keyID string) error
}

type Service struct {
	store Store
}

func NewService(s Store) *Service {
	return &Service{store: s}
}

// Generate mints a new key for the user and returns the raw secret. The raw
// value is not recoverable afterwards.
func (s *Service) Generate(ctx context.Context, userID, name string, scopes []string) (store.APIKey, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return store.APIKey{}, "", errors.New("key name is required")
	}
	if len(scopes) == 0 {
		scopes = []string{string(rbac.ScopeRead)}
	}
	for _, sc := range scopes {
		if !rbac.ValidScope(sc) {
			return store.APIKey{}, "", fmt.Errorf("%w: %q", ErrInvalidScope, sc)
		}
	}

	raw := keyPrefix + util.NewSecret()
	now := time.Now().UTC()
	key := store.APIKey{
		ID:        util.NewID("key"),
		UserID:    userID,
		Name:      name,
		Prefix:    raw[:len(keyPrefix)+8],
		KeyHash:   auth.HashToken(raw),
		Scopes:    scopes,
		CreatedAt: now,
	}
	if err := s.store.InsertAPIKey(ctx, key); err != nil {
		return store.APIKey{}, "", fmt.Errorf("insert api key: %w", err)
	}
	return key, raw, nil
}

// Authenticate resolves a presented raw key to its record, updating the
// last-used timestamp. A best-effort touch failure does not fail auth.
func (s *Service) Authenticate(ctx context.Context, raw string) (store.APIKey, error) {
	if !strings.HasPrefix(raw, keyPrefix) {
		return store.APIKey{}, ErrInvalidKey
	}

	// The lookup is by digest, so revoked keys never match; the compare keeps
	// the final equality check constant-time regardless of driver behavior.
	hash := auth.HashToken(raw)
	key, err := s.store.GetAPIKeyByHash(ctx, hash)
	if err != nil {
		return store.APIKey{}, ErrInvalidKey
	}
	if subtle.ConstantTimeCompare([]byte(key.KeyHash), []byte(hash)) != 1 {
		return store.APIKey{}, ErrInvalidKey
	}

	_ = s.store.TouchAPIKey(ctx, key.ID)
	return key, nil
}

func (s *Service) List(ctx context.Context, userID string) ([]store.APIKey, error) {
	keys, err := s.store.ListAPIKeys(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	return keys, nil
}

// Revoke disables a key. Revocation is permanent; a new key must be minted
// to restore access.
func (s *Service) Revoke(ctx context.Context, userID, keyID string) error {
	if err := s.store.RevokeAPIKey(ctx, userID, keyID); err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	return nil
}
