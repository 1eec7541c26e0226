// internal/policy/store.go
// Policy storage contract and the in-memory reference implementation.
package policy

import (
	"errors"
	"sync"
)

var ErrPolicyNotFound = errors.New("policy not found")

// Store holds registered policies. Many readers, exclusive writer.
type Store interface {
	// Register inserts or replaces a policy. Idempotent.
	Register(p *Policy) error
	// Remove deletes by id. Removing an absent policy is not an error.
	Remove(id string) error
	Get(id string) (*Policy, error)
	// List returns a snapshot slice; callers may not mutate the policies.
	List() []*Policy
}

// MemoryStore is the reference Store.
type MemoryStore struct {
	mu       sync.RWMutex
	policies map[string]*Policy
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{policies: make(map[string]*Policy)}
}

func (s *MemoryStore) Register(p *Policy) error {
	if p == nil || p.ID == "" {
		return errors.New("policy id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.policies[p.ID] = &cp
	return nil
}

func (s *MemoryStore) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.policies, id)
	return nil
}

func (s *MemoryStore) Get(id string) (*Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.policies[id]
	if !ok {
		return nil, ErrPolicyNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) List() []*Policy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Policy, 0, len(s.policies))
	for _, p := range s.policies {
		out = append(out, p)
	}
	return out
}
