// Package realtime tracks connected users and admins and fans notifications out to their
// websocket connections.
package realtime

import (
	"slices"
	"sync"
)

// Tracker records which users and admins currently hold a live connection. A principal stays
// online until its last connection is removed.
type Tracker struct {
	mu     sync.RWMutex
	users  map[string]map[string]struct{}
	admins map[string]map[string]struct{}
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		users:  make(map[string]map[string]struct{}),
		admins: make(map[string]map[string]struct{}),
	}
}

// Register marks id online on connID, in the admin set when admin is true.
func (t *Tracker) Register(id, connID string, admin bool) {
	if id == "" || connID == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	set := t.users
	if admin {
		set = t.admins
	}
	conns, ok := set[id]
	if !ok {
		conns = make(map[string]struct{})
		set[id] = conns
	}
	conns[connID] = struct{}{}
}

// Remove unbinds connID and returns the principals left without any connection.
func (t *Tracker) Remove(connID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	removed := dropConn(t.users, connID)
	return append(removed, dropConn(t.admins, connID)...)
}

func dropConn(set map[string]map[string]struct{}, connID string) []string {
	var offline []string
	for id, conns := range set {
		if _, ok := conns[connID]; !ok {
			continue
		}
		delete(conns, connID)
		if len(conns) == 0 {
			delete(set, id)
			offline = append(offline, id)
		}
	}
	slices.Sort(offline)
	return offline
}

func (t *Tracker) IsUserOnline(id string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.users[id]
	return ok
}

func (t *Tracker) IsAdminOnline(id string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.admins[id]
	return ok
}

// OnlineUsers lists connected non-admin users, sorted.
func (t *Tracker) OnlineUsers() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return sortedKeys(t.users)
}

// OnlineAdmins lists connected admins, sorted.
func (t *Tracker) OnlineAdmins() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return sortedKeys(t.admins)
}

// Counts returns how many users and admins are connected. A nil tracker reports zero.
func (t *Tracker) Counts() (users, admins int) {
	if t == nil {
		return 0, 0
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.users), len(t.admins)
}

// userConns returns the connections registered for a non-admin user.
func (t *Tracker) userConns(id string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return sortedKeys(t.users[id])
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
