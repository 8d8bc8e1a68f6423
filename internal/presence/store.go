// Package presence keeps per-user soft state in a TTL store and
// broadcasts transitions to every connected client.
package presence

import (
	"context"
	"time"

	"github.com/eduline/chat-gateway/internal/domain"
)

// Store persists presence records with a TTL. Records vanish on their
// own when the TTL lapses; absence reads as offline.
type Store interface {
	// Set writes a record with the given lifetime, replacing any
	// previous record for the user.
	Set(ctx context.Context, rec domain.PresenceRecord, ttl time.Duration) error

	// Get returns the stored record, or nil when absent or expired.
	Get(ctx context.Context, userID int64) (*domain.PresenceRecord, error)

	// GetMulti returns the stored records for the given users, keyed by
	// user id. Users with no record are simply missing from the map.
	GetMulti(ctx context.Context, userIDs []int64) (map[int64]domain.PresenceRecord, error)

	// Refresh extends the lifetime of an existing record. Returns false
	// when the record has already expired.
	Refresh(ctx context.Context, userID int64, ttl time.Duration) (bool, error)
}
