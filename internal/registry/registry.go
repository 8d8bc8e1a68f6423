package registry

import (
	"errors"
	"sync"
)

// ErrDuplicateConnection is returned when a connection id is registered
// a second time for a different user. This indicates a duplicate
// handshake bug in the transport layer and the registration is rejected.
var ErrDuplicateConnection = errors.New("connection id already registered")

// Registry owns the bidirectional connection<->user mapping for one
// gateway process. It is purely in-memory: nothing here survives a
// restart, and no other component mutates these maps.
type Registry struct {
	mu    sync.RWMutex
	users map[string]int64              // connID -> userID
	conns map[int64]map[string]struct{} // userID -> set of connIDs
}

func New() *Registry {
	return &Registry{
		users: make(map[string]int64),
		conns: make(map[int64]map[string]struct{}),
	}
}

// Register binds a connection id to its authenticated owner. Registering
// the same connection for the same user again is a no-op; for a
// different user it fails with ErrDuplicateConnection.
func (r *Registry) Register(connID string, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.users[connID]; ok {
		if existing != userID {
			return ErrDuplicateConnection
		}
		return nil
	}

	r.users[connID] = userID
	if r.conns[userID] == nil {
		r.conns[userID] = make(map[string]struct{})
	}
	r.conns[userID][connID] = struct{}{}
	return nil
}

// Unregister removes a connection and returns its owner plus the number
// of connections the owner still holds. Unknown connection ids are a
// no-op (the transport may fire duplicate disconnect callbacks).
func (r *Registry) Unregister(connID string) (userID int64, remaining int, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok = r.users[connID]
	if !ok {
		return 0, 0, false
	}

	delete(r.users, connID)
	if set, exists := r.conns[userID]; exists {
		delete(set, connID)
		remaining = len(set)
		if remaining == 0 {
			delete(r.conns, userID)
		}
	}
	return userID, remaining, true
}

// ConnectionsOf returns the connection ids currently held by a user.
func (r *Registry) ConnectionsOf(userID int64) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.conns[userID]
	if len(set) == 0 {
		return nil
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}

// IsLastConnection reports whether the user holds at most one live
// connection, i.e. whether closing one now would leave them with none.
func (r *Registry) IsLastConnection(userID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[userID]) <= 1
}

// UserOf resolves the owner of a connection id.
func (r *Registry) UserOf(connID string) (int64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	userID, ok := r.users[connID]
	return userID, ok
}

// ActiveUsers returns every user with at least one live connection.
// The presence heartbeat walks this snapshot on a fixed interval.
func (r *Registry) ActiveUsers() []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]int64, 0, len(r.conns))
	for userID := range r.conns {
		users = append(users, userID)
	}
	return users
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}
