// Package session keeps the table state for every running game and
// serializes access to it. A Manager owns the registry: each action
// loads the state from the Store, applies exactly one operation under
// the per-session lock and saves the result back. Stores are
// interchangeable; memory is the default, file adds snapshots that
// survive restarts and Redis shares sessions between processes.
package session

import (
	"context"
	"time"

	"github.com/lox/twentyone/internal/game"
)

// DefaultTTL is how long an idle session survives before expiry.
const DefaultTTL = 24 * time.Hour

// Store persists table state between actions. Load reports whether the
// session exists. A zero ttl on Save keeps the session until deleted.
type Store interface {
	Load(ctx context.Context, id string) (game.State, bool, error)
	Save(ctx context.Context, id string, st game.State, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
	Close() error
}
