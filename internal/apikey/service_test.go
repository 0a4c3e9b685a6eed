package apikey

import (
	"context"
	"errors"
	"strings"
	"testing"

	"forge/api/internal/auth"
	"forge/api/internal/store"
)

type fakeStore struct {
	insertFn func(ctx context.Context, k store.APIKey) error
	listFn   func(ctx context.Context, userID string) ([]store.APIKey, error)
	getFn    func(ctx context.Context, keyHash string) (store.APIKey, error)
	touchFn  func(ctx context.Context, keyID string) error
	revokeFn func(ctx context.Context, userID, keyID string) error
}

func (f *fakeStore) InsertAPIKey(ctx context.Context, k store.APIKey) error {
	return f.insertFn(ctx, k)
}
func (f *fakeStore) ListAPIKeys(ctx context.Context, userID string) ([]store.APIKey, error) {
	return f.listFn(ctx, userID)
}
func (f *fakeStore) GetAPIKeyByHash(ctx context.Context, keyHash string) (store.APIKey, error) {
	return f.getFn(ctx, keyHash)
}
func (f *fakeStore) TouchAPIKey(ctx context.Context, keyID string) error {
	if f.touchFn != nil {
		return f.touchFn(ctx, keyID)
	}
	return nil
}
func (f *fakeStore) RevokeAPIKey(ctx context.Context, userID, keyID string) error {
	return f.revokeFn(ctx, userID, keyID)
}

func TestGenerateMintsPrefixedKey(t *testing.T) {
	var inserted store.APIKey
	svc := NewService(&fakeStore{
		insertFn: func(_ context.Context, k store.APIKey) error {
			inserted = k
			return nil
		},
	})

	key, raw, err := svc.Generate(context.Background(), "usr_1", "ci pipeline", []string{"read", "write"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.HasPrefix(raw, "fk_") {
		t.Errorf("raw key = %q, want fk_ prefix", raw)
	}
	if key.KeyHash != auth.HashToken(raw) {
		t.Error("stored hash does not match raw key digest")
	}
	if inserted.KeyHash != key.KeyHash {
		t.Error("inserted record differs from returned record")
	}
	if !strings.HasPrefix(key.Prefix, "fk_") || len(key.Prefix) != 11 {
		t.Errorf("display prefix = %q, want fk_ plus 8 chars", key.Prefix)
	}
}

func TestGenerateRejectsUnknownScope(t *testing.T) {
	svc := NewService(&fakeStore{})

	_, _, err := svc.Generate(context.Background(), "usr_1", "bad", []string{"admin"})
	if !errors.Is(err, ErrInvalidScope) {
		t.Errorf("err = %v, want ErrInvalidScope", err)
	}
}

func TestGenerateAcceptsEveryScope(t *testing.T) {
	svc := NewService(&fakeStore{
		insertFn: func(_ context.Context, _ store.APIKey) error { return nil },
	})

	for _, sc := range []string{"read", "write", "generate"} {
		if _, _, err := svc.Generate(context.Background(), "usr_1", "scoped", []string{sc}); err != nil {
			t.Errorf("Generate with scope %q: %v", sc, err)
		}
	}
}

func TestGenerateDefaultsToReadScope(t *testing.T) {
	var inserted store.APIKey
	svc := NewService(&fakeStore{
		insertFn: func(_ context.Context, k store.APIKey) error {
			inserted = k
			return nil
		},
	})

	if _, _, err := svc.Generate(context.Background(), "usr_1", "reader", nil); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(inserted.Scopes) != 1 || inserted.Scopes[0] != "read" {
		t.Errorf("scopes = %v, want [read]", inserted.Scopes)
	}
}

func TestAuthenticateRoundTrip(t *testing.T) {
	keys := map[string]store.APIKey{}
	touched := ""
	svc := NewService(&fakeStore{
		insertFn: func(_ context.Context, k store.APIKey) error {
			keys[k.KeyHash] = k
			return nil
		},
		getFn: func(_ context.Context, hash string) (store.APIKey, error) {
			k, ok := keys[hash]
			if !ok {
				return store.APIKey{}, errors.New("no rows")
			}
			return k, nil
		},
		touchFn: func(_ context.Context, keyID string) error {
			touched = keyID
			return nil
		},
	})

	created, raw, err := svc.Generate(context.Background(), "usr_1", "game client", []string{"generate"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	got, err := svc.Authenticate(context.Background(), raw)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if got.ID != created.ID {
		t.Errorf("key ID = %q, want %q", got.ID, created.ID)
	}
	if touched != created.ID {
		t.Errorf("touched key = %q, want %q", touched, created.ID)
	}
}

func TestAuthenticateRejectsMalformedKey(t *testing.T) {
	svc := NewService(&fakeStore{})

	if _, err := svc.Authenticate(context.Background(), "not-a-key"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("err = %v, want ErrInvalidKey", err)
	}
}

func TestAuthenticateRejectsUnknownKey(t *testing.T) {
	svc := NewService(&fakeStore{
		getFn: func(_ context.Context, _ string) (store.APIKey, error) {
			return store.APIKey{}, errors.New("no rows")
		},
	})

	if _, err := svc.Authenticate(context.Background(), "fk_deadbeef"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("err = %v, want ErrInvalidKey", err)
	}
}
