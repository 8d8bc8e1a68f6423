package presence

import (
	"context"
	"time"

	"github.com/eduline/chat-gateway/internal/config"
	"github.com/eduline/chat-gateway/internal/domain"
	"github.com/eduline/chat-gateway/pkg/log"
)

// Emitter broadcasts presence transitions to every connected client.
type Emitter interface {
	BroadcastAll(ctx context.Context, event string, payload any) error
}

// ConnectionLister enumerates users with live local connections. The
// heartbeat walks this snapshot to keep their records from expiring.
type ConnectionLister interface {
	ActiveUsers() []int64
}

// Tracker owns presence semantics: record lifetimes, transition
// broadcasts, and the keep-alive heartbeat. The store is soft state;
// every write failure is logged and swallowed so presence never blocks
// message flow.
type Tracker struct {
	store Store
	emit  Emitter
	conns ConnectionLister
	cfg   config.PresenceConfig
}

func NewTracker(store Store, emit Emitter, conns ConnectionLister, cfg config.PresenceConfig) *Tracker {
	if cfg.OnlineTTL <= 0 {
		cfg.OnlineTTL = domain.DefaultOnlineTTL
	}
	if cfg.OfflineTTL <= 0 {
		cfg.OfflineTTL = domain.DefaultOfflineTTL
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 2 * time.Minute
	}
	return &Tracker{store: store, emit: emit, conns: conns, cfg: cfg}
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// SetOnline records a user as online and announces the transition.
func (t *Tracker) SetOnline(ctx context.Context, userID int64) {
	now := timestamp()
	rec := domain.PresenceRecord{UserID: userID, Status: domain.PresenceOnline, LastSeen: now}
	if err := t.store.Set(ctx, rec, t.cfg.OnlineTTL); err != nil {
		l := log.L()
		l.Error().Err(err).Int64(log.FieldUserID, userID).Msg("presence store write failed")
	}

	t.broadcast(ctx, domain.EventUserOnline, domain.PresenceBroadcast{
		UserID:   userID,
		Status:   domain.PresenceOnline,
		LastSeen: now,
	})
}

// SetOffline records a user as offline with a long-lived last-seen
// record and announces the transition.
func (t *Tracker) SetOffline(ctx context.Context, userID int64) {
	now := timestamp()
	rec := domain.PresenceRecord{UserID: userID, Status: domain.PresenceOffline, LastSeen: now}
	if err := t.store.Set(ctx, rec, t.cfg.OfflineTTL); err != nil {
		l := log.L()
		l.Error().Err(err).Int64(log.FieldUserID, userID).Msg("presence store write failed")
	}

	t.broadcast(ctx, domain.EventUserOffline, domain.PresenceBroadcast{
		UserID:   userID,
		Status:   domain.PresenceOffline,
		LastSeen: now,
	})
}

// UpdateStatus applies a client-declared status (online/offline/away).
// The last-seen timestamp is always stamped server-side.
func (t *Tracker) UpdateStatus(ctx context.Context, userID int64, status domain.PresenceStatus) {
	now := timestamp()
	ttl := t.cfg.OnlineTTL
	if status == domain.PresenceOffline {
		ttl = t.cfg.OfflineTTL
	}

	rec := domain.PresenceRecord{UserID: userID, Status: status, LastSeen: now}
	if err := t.store.Set(ctx, rec, ttl); err != nil {
		l := log.L()
		l.Error().Err(err).Int64(log.FieldUserID, userID).Msg("presence store write failed")
	}

	t.broadcast(ctx, domain.EventUserPresence, domain.PresenceBroadcast{
		UserID:   userID,
		Status:   status,
		LastSeen: now,
	})
}

// Refresh extends a user's online record. When the record has lapsed
// (missed heartbeats, store flush) it is re-created rather than left
// expired, since the connection is demonstrably alive.
func (t *Tracker) Refresh(ctx context.Context, userID int64) {
	ok, err := t.store.Refresh(ctx, userID, t.cfg.OnlineTTL)
	if err != nil {
		l := log.L()
		l.Error().Err(err).Int64(log.FieldUserID, userID).Msg("presence refresh failed")
		return
	}
	if !ok {
		rec := domain.PresenceRecord{UserID: userID, Status: domain.PresenceOnline, LastSeen: timestamp()}
		if err := t.store.Set(ctx, rec, t.cfg.OnlineTTL); err != nil {
			l := log.L()
			l.Error().Err(err).Int64(log.FieldUserID, userID).Msg("presence store write failed")
		}
	}
}

// GetMultiple returns a presence record for every requested user, in
// request order. Users with no stored record come back offline with no
// last-seen timestamp.
func (t *Tracker) GetMultiple(ctx context.Context, userIDs []int64) ([]domain.PresenceRecord, error) {
	stored, err := t.store.GetMulti(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	records := make([]domain.PresenceRecord, 0, len(userIDs))
	for _, id := range userIDs {
		if rec, ok := stored[id]; ok {
			records = append(records, rec)
		} else {
			records = append(records, domain.OfflineRecord(id))
		}
	}
	return records, nil
}

// Online filters userIDs down to those with a stored online record.
func (t *Tracker) Online(ctx context.Context, userIDs []int64) ([]int64, error) {
	stored, err := t.store.GetMulti(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	online := make([]int64, 0, len(stored))
	for _, id := range userIDs {
		if rec, ok := stored[id]; ok && rec.Status == domain.PresenceOnline {
			online = append(online, id)
		}
	}
	return online, nil
}

// RunHeartbeat refreshes the record of every locally connected user on
// a fixed interval until ctx is done.
func (t *Tracker) RunHeartbeat(ctx context.Context) {
	ticker := time.NewTicker(t.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, userID := range t.conns.ActiveUsers() {
				t.Refresh(ctx, userID)
			}
		}
	}
}

func (t *Tracker) broadcast(ctx context.Context, event string, payload domain.PresenceBroadcast) {
	if t.emit == nil {
		return
	}
	if err := t.emit.BroadcastAll(ctx, event, payload); err != nil {
		l := log.L()
		l.Error().Err(err).Int64(log.FieldUserID, payload.UserID).Str(log.FieldEvent, event).Msg("presence broadcast failed")
	}
}
