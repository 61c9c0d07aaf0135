package session

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	store, err := NewRedisStore("redis://"+s.Addr(), time.Hour)
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	return store, s
}

func TestNewRedisStore(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()

	store, err := NewRedisStore("redis://"+s.Addr(), time.Hour)
	if err != nil {
		t.Fatalf("NewRedisStore failed: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.Ping(ctx); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestNewRedisStoreRejectsBadURL(t *testing.T) {
	if _, err := NewRedisStore("not a url", time.Hour); err == nil {
		t.Fatal("expected error for malformed redis url")
	}
}

func TestCreateAndLookupSession(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	created, err := store.Create(ctx, true)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected session id")
	}

	found, err := store.Lookup(ctx, created.ID)
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if !found.Authenticated {
		t.Error("expected authenticated session")
	}
	if found.ID != created.ID {
		t.Errorf("expected id %s, got %s", created.ID, found.ID)
	}
}

func TestRawSessionIDIsNotStored(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	created, err := store.Create(context.Background(), true)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	for _, key := range s.Keys() {
		if strings.Contains(key, created.ID) {
			t.Fatalf("raw session id leaked into key %q", key)
		}
		if !strings.HasPrefix(key, "session:") {
			t.Fatalf("unexpected key %q", key)
		}
	}
}

func TestLookupExpiredSession(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	created, err := store.Create(ctx, true)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Fast-forward time in miniredis
	s.FastForward(2 * time.Hour)

	_, err = store.Lookup(ctx, created.ID)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for expired session, got %v", err)
	}
}

func TestLookupNonExistentSession(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	_, err := store.Lookup(context.Background(), "non-existent")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDestroySession(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	created, err := store.Create(ctx, true)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := store.Destroy(ctx, created.ID); err != nil {
		t.Fatalf("Destroy failed: %v", err)
	}

	if _, err := store.Lookup(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Error("expected destroyed session to be gone")
	}

	// Destroying an unknown session should not error
	if err := store.Destroy(ctx, "non-existent"); err != nil {
		t.Errorf("Destroy for unknown session failed: %v", err)
	}
}

func TestSessionIsolation(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	first, err := store.Create(ctx, true)
	if err != nil {
		t.Fatalf("Create 1 failed: %v", err)
	}
	second, err := store.Create(ctx, true)
	if err != nil {
		t.Fatalf("Create 2 failed: %v", err)
	}
	if first.ID == second.ID {
		t.Fatal("expected distinct session ids")
	}

	if err := store.Destroy(ctx, first.ID); err != nil {
		t.Fatalf("Destroy first failed: %v", err)
	}

	if _, err := store.Lookup(ctx, first.ID); err == nil {
		t.Error("expected error for destroyed first session")
	}
	if _, err := store.Lookup(ctx, second.ID); err != nil {
		t.Fatalf("Lookup second after destroy failed: %v", err)
	}
}
