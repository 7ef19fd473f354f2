// Package session implements the externalized working store of a control
// loop: key/value state written by executed actions plus a cache of
// previously produced evidence.  Both parts can be captured as deep-copied
// snapshots and later restored, which is what makes a suspended loop
// resumable in another process.
package session

import (
	"sync"
	"time"

	"github.com/warden-ai/warden/internal/clock"
	"github.com/warden-ai/warden/internal/deepcopy"
)

// Entry is a single stored value with its provenance.
type Entry struct {
	Value      interface{} `json:"value"`
	UpdatedAt  time.Time   `json:"updatedAt"`
	EvidenceID string      `json:"evidenceId,omitempty"`
}

// StateListener is invoked every time Set overwrites an existing key or
// inserts a new one.  Listeners are called outside the session mutex and must
// not call back into the session.
type StateListener func(s *Session, key string, oldVal, newVal interface{})

// Session represents the working store for one control loop instance.
// Distinct loops must not share a Session.
type Session struct {
	ID        string
	mu        sync.RWMutex
	store     map[string]*Entry
	evidence  map[string]interface{}
	listeners []StateListener
}

// New creates an empty session.
func New(id string) *Session {
	return &Session{
		ID:       id,
		store:    make(map[string]*Entry),
		evidence: make(map[string]interface{}),
	}
}

// RegisterListeners attaches callbacks invoked on every Set.
func (s *Session) RegisterListeners(fn ...StateListener) {
	if len(fn) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn...)
}

// Set stores a value under key, optionally tagged with the evidence that
// produced it.
func (s *Session) Set(key string, value interface{}, evidenceID string) {
	s.mu.Lock()
	var old interface{}
	if prev, ok := s.store[key]; ok {
		old = prev.Value
	}
	s.store[key] = &Entry{Value: value, UpdatedAt: clock.Now(), EvidenceID: evidenceID}
	listeners := append([]StateListener(nil), s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(s, key, old, value)
	}
}

// Get retrieves a stored value.
func (s *Session) Get(key string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.store[key]
	if !ok {
		return nil, false
	}
	return entry.Value, true
}

// GetString retrieves a stored value as string.
func (s *Session) GetString(key string) (string, bool) {
	value, ok := s.Get(key)
	if !ok {
		return "", false
	}
	str, ok := value.(string)
	return str, ok
}

// StoreEvidence caches the result of an executed action under its evidence
// key so that redundant calls can be detected and bounced.
func (s *Session) StoreEvidence(evidenceID string, data interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evidence[evidenceID] = data
}

// HasEvidence reports whether evidence for the given key already exists.
func (s *Session) HasEvidence(evidenceID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.evidence[evidenceID]
	return ok
}

// Evidence returns cached evidence by key.
func (s *Session) Evidence(evidenceID string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.evidence[evidenceID]
	return data, ok
}

// EvidenceIDs lists the keys present in the evidence cache.
func (s *Session) EvidenceIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.evidence))
	for id := range s.evidence {
		ids = append(ids, id)
	}
	return ids
}

// Summary returns the condensed view handed to the reasoning oracle: stored
// values by key plus available evidence identifiers.
func (s *Session) Summary() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	values := make(map[string]interface{}, len(s.store))
	for k, entry := range s.store {
		values[k] = entry.Value
	}
	evidence := make([]string, 0, len(s.evidence))
	for id := range s.evidence {
		evidence = append(evidence, id)
	}
	return map[string]interface{}{
		"stored_values":      values,
		"available_evidence": evidence,
	}
}

// Snapshot returns a deep copy of the key/value store.  Mutating the live
// session after the call never affects the returned snapshot.
func (s *Session) Snapshot() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]interface{}, len(s.store))
	for k, entry := range s.store {
		out[k] = map[string]interface{}{
			"value":      deepcopy.Value(entry.Value),
			"updatedAt":  entry.UpdatedAt,
			"evidenceId": entry.EvidenceID,
		}
	}
	return out
}

// Restore replaces the key/value store with the snapshot contents.  The
// snapshot itself is deep-copied, so the restored session does not alias it.
func (s *Session) Restore(snapshot map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store = make(map[string]*Entry, len(snapshot))
	for k, v := range snapshot {
		entry := &Entry{}
		if fields, ok := v.(map[string]interface{}); ok {
			entry.Value = deepcopy.Value(fields["value"])
			switch at := fields["updatedAt"].(type) {
			case time.Time:
				entry.UpdatedAt = at
			case string:
				// Snapshots loaded from a durable store carry RFC3339 text.
				if parsed, err := time.Parse(time.RFC3339Nano, at); err == nil {
					entry.UpdatedAt = parsed
				}
			}
			if id, ok := fields["evidenceId"].(string); ok {
				entry.EvidenceID = id
			}
		} else {
			entry.Value = deepcopy.Value(v)
			entry.UpdatedAt = clock.Now()
		}
		s.store[k] = entry
	}
}

// EvidenceSnapshot returns a deep copy of the evidence cache.
func (s *Session) EvidenceSnapshot() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return deepcopy.Map(s.evidence)
}

// RestoreEvidence replaces the evidence cache with the snapshot contents.
func (s *Session) RestoreEvidence(snapshot map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evidence = deepcopy.Map(snapshot)
	if s.evidence == nil {
		s.evidence = make(map[string]interface{})
	}
}
