package session

import "sync"

var _ TokenStore = (*MemoryTokenStore)(nil)

// MemoryTokenStore keeps the credential in process memory. Useful for tests
// and for hosts that deliberately forget the session on restart.
type MemoryTokenStore struct {
	mu      sync.RWMutex
	token   string
	present bool
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

func (s *MemoryTokenStore) Save(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.present = true
	return nil
}

func (s *MemoryTokenStore) Load() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.present
}

func (s *MemoryTokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.present = false
	return nil
}
