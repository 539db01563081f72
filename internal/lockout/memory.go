package lockout

import "sync"

// MemoryStore keeps lockout state in process memory. Restarting the process
// clears every lockout.
type MemoryStore struct {
	mu     sync.Mutex
	states map[string]State
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: map[string]State{}}
}

// Get returns a copy of the record, or nil when username has none.
func (m *MemoryStore) Get(username string) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.states[username]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

// Put stores a copy of s under s.Username.
func (m *MemoryStore) Put(s *State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[s.Username] = *s
	return nil
}

// Delete drops the record for username.
func (m *MemoryStore) Delete(username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, username)
	return nil
}
