package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStoreWithClient(client)
}

func TestSaveAndLookup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	hash := "abc123"
	if err := s.Save(ctx, hash, "usr_1", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Save: %v", err)
	}

	userID, err := s.Lookup(ctx, hash)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if userID != "usr_1" {
		t.Errorf("user ID = %q, want usr_1", userID)
	}
}

func TestLookupUnknownToken(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Lookup(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestRevoke(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	hash := "def456"
	if err := s.Save(ctx, hash, "usr_2", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Revoke(ctx, hash); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	if _, err := s.Lookup(ctx, hash); !errors.Is(err, ErrNotFound) {
		t.Errorf("err after revoke = %v, want ErrNotFound", err)
	}
}

func TestSaveExpiredTokenFallsBackToDefaultTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	s := NewRedisStoreWithClient(client)
	ctx := context.Background()

	if err := s.Save(ctx, "old", "usr_3", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("Save: %v", err)
	}

	ttl := mr.TTL("refresh:old")
	if ttl <= 0 {
		t.Errorf("TTL = %v, want positive", ttl)
	}
}
