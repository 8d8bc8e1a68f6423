package domain

import "time"

// PresenceStatus is a user's advisory online state.
type PresenceStatus string

const (
	PresenceOnline  PresenceStatus = "online"
	PresenceOffline PresenceStatus = "offline"
	PresenceAway    PresenceStatus = "away"
)

// ValidPresenceStatus reports whether s is a known presence status.
func ValidPresenceStatus(s PresenceStatus) bool {
	switch s {
	case PresenceOnline, PresenceOffline, PresenceAway:
		return true
	}
	return false
}

// Default record lifetimes. Online/away records expire quickly so a
// silently dropped connection reads as offline once the TTL lapses;
// offline records keep the last-seen timestamp around for a day.
const (
	DefaultOnlineTTL  = 300 * time.Second
	DefaultOfflineTTL = 24 * time.Hour
)

// PresenceRecord is the soft-state value stored per user under
// presence:<userId>.
type PresenceRecord struct {
	UserID   int64          `json:"user_id"`
	Status   PresenceStatus `json:"status"`
	LastSeen string         `json:"last_seen,omitempty"`
}

// OfflineRecord is the canonical fallback for a user with no stored
// record (never seen, or TTL lapsed). It carries no last-seen
// timestamp: the two cases are observationally identical.
func OfflineRecord(userID int64) PresenceRecord {
	return PresenceRecord{UserID: userID, Status: PresenceOffline}
}
