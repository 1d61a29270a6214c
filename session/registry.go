package session

import "sync"

// Registry is the node-wide lookup table for live sessions (spec component
// C4): session_id -> *Session for connection-scoped lookups, and
// user_id -> *Session for identity-scoped lookups after login. Grounded on
// cluster/node.go's storeSession/removeSession/findSession and original
// source's CServer::_sessions plus UserMgr's uid->session map.
type Registry struct {
	mu       sync.RWMutex
	byID     map[string]*Session
	byUserID map[int64]*Session
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:     make(map[string]*Session),
		byUserID: make(map[int64]*Session),
	}
}

// Insert registers a newly accepted session under its session_id. It does
// not touch the user_id index; call BindUser once login succeeds.
func (r *Registry) Insert(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[s.ID()] = s
}

// BindUser publishes the user_id -> session mapping, overwriting any prior
// occupant. It returns the session that previously held uid, if any and if
// it differs from s, so the caller can actively close it (spec.md §9 Open
// Question: a second login for the same user_id evicts the first session
// rather than letting both remain live).
func (r *Registry) BindUser(uid int64, s *Session) (prev *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.byUserID[uid]; ok && old != s {
		prev = old
	}
	r.byUserID[uid] = s
	return prev
}

// LookupByID returns the session registered under id, if any.
func (r *Registry) LookupByID(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[id]
	return s, ok
}

// LookupByUser returns the session currently bound to uid, if any.
func (r *Registry) LookupByUser(uid int64) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byUserID[uid]
	return s, ok
}

// Evict removes a session from both indexes. The user_id mapping is only
// removed if it still points at this exact session, so evicting a stale
// session (one already superseded by BindUser) never clobbers the session
// that replaced it.
func (r *Registry) Evict(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, s.ID())
	if uid := s.UserID(); uid != 0 {
		if cur, ok := r.byUserID[uid]; ok && cur == s {
			delete(r.byUserID, uid)
		}
	}
}

// Len returns the number of sessions currently tracked by session_id.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// All returns every currently tracked session, for shutdown sweeps that
// need to close each one (spec.md §5 step ii, "stop the I/O pool").
func (r *Registry) All() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.byID))
	for _, s := range r.byID {
		out = append(out, s)
	}
	return out
}
