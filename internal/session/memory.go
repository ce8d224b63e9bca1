package session

import (
	"container/list"
	"context"
	"sort"
	"sync"
	"time"
)

type entry struct {
	placeholder string
	secret      string
}

// record holds one session's state. entries preserve insertion order so
// the oldest mapping can be dropped first at the per-session cap.
type record struct {
	id           string
	entries      []entry
	lastAccessed time.Time
	createdAt    time.Time
	elem         *list.Element
}

func (r *record) find(ph string) int {
	for i := range r.entries {
		if r.entries[i].placeholder == ph {
			return i
		}
	}
	return -1
}

// MemoryStore is the in-memory Store. A single mutex guards the whole
// table; every operation is a map update plus a bounded sweep, so the
// critical section stays cheap.
type MemoryStore struct {
	mu         sync.Mutex
	sessions   map[string]*record
	lru        *list.List // front = least recently used
	maxSess    int
	maxSecrets int
	ttl        time.Duration

	now func() time.Time
}

// NewMemoryStore creates an in-memory store. Expired sessions are swept
// lazily on every operation that touches the table; no background timer.
func NewMemoryStore(maxSessions, maxSecretsPerSession int, ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions:   make(map[string]*record),
		lru:        list.New(),
		maxSess:    maxSessions,
		maxSecrets: maxSecretsPerSession,
		ttl:        ttl,
		now:        time.Now,
	}
}

// sweepLocked removes sessions idle past the TTL. Callers hold s.mu.
func (s *MemoryStore) sweepLocked() {
	now := s.now()
	for id, rec := range s.sessions {
		if now.Sub(rec.lastAccessed) > s.ttl {
			s.lru.Remove(rec.elem)
			delete(s.sessions, id)
		}
	}
}

// StoreMapping merges new entries into the session, trimming oldest
// entries past the per-session cap and evicting least-recently-used
// sessions past the session cap.
func (s *MemoryStore) StoreMapping(_ context.Context, sessionID string, mapping map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked()

	now := s.now()
	rec, ok := s.sessions[sessionID]
	if !ok {
		rec = &record{id: sessionID, createdAt: now}
		rec.elem = s.lru.PushBack(rec)
		s.sessions[sessionID] = rec
	}
	rec.lastAccessed = now
	s.lru.MoveToBack(rec.elem)

	// New entries within one call share a timestamp; sorted placeholder
	// order makes their relative insertion order deterministic.
	keys := make([]string, 0, len(mapping))
	for ph := range mapping {
		keys = append(keys, ph)
	}
	sort.Strings(keys)
	for _, ph := range keys {
		if i := rec.find(ph); i >= 0 {
			rec.entries[i].secret = mapping[ph]
			continue
		}
		rec.entries = append(rec.entries, entry{placeholder: ph, secret: mapping[ph]})
	}
	if over := len(rec.entries) - s.maxSecrets; over > 0 {
		kept := make([]entry, s.maxSecrets)
		copy(kept, rec.entries[over:])
		rec.entries = kept
	}

	for s.lru.Len() > s.maxSess {
		front := s.lru.Front()
		victim := front.Value.(*record)
		s.lru.Remove(front)
		delete(s.sessions, victim.id)
	}
	return nil
}

// GetMapping returns a defensive copy of the session's mapping and marks
// the session most recently used.
func (s *MemoryStore) GetMapping(_ context.Context, sessionID string) (map[string]string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked()

	rec, ok := s.sessions[sessionID]
	if !ok {
		return nil, false, nil
	}
	rec.lastAccessed = s.now()
	s.lru.MoveToBack(rec.elem)

	out := make(map[string]string, len(rec.entries))
	for _, e := range rec.entries {
		out[e.placeholder] = e.secret
	}
	return out, true, nil
}

// ClearSession removes the session unconditionally.
func (s *MemoryStore) ClearSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.sessions[sessionID]; ok {
		s.lru.Remove(rec.elem)
		delete(s.sessions, sessionID)
	}
	return nil
}

// Stats reports store contents after a sweep.
func (s *MemoryStore) Stats(_ context.Context) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked()

	total := 0
	for _, rec := range s.sessions {
		total += len(rec.entries)
	}
	st := Stats{
		SessionCount: len(s.sessions),
		TotalSecrets: total,
	}
	if st.SessionCount > 0 {
		st.AvgSecretsPerSession = float64(total) / float64(st.SessionCount)
	}
	return st, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
