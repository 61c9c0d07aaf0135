// Package session provides server-held login sessions keyed by an opaque token.
package session

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("session not found or expired")

// Session is the server-side state behind a session token.
type Session struct {
	ID            string    `json:"-"`
	Authenticated bool      `json:"authenticated"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// Store defines the session backend used by the HTTP layer
type Store interface {
	Create(ctx context.Context, authenticated bool) (Session, error)
	Lookup(ctx context.Context, id string) (Session, error)
	Destroy(ctx context.Context, id string) error
	Ping(ctx context.Context) error
	Close() error
}
