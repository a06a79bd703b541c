package auth

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process KeyStore. A single mutex serializes all
// transitions.
type MemoryStore struct {
	mu     sync.Mutex
	keys   map[string]*AccessKey
	order  []string // creation order, used to pick the next available key
	owners map[string]string
	now    func() time.Time
	newKey func() string
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		keys:   make(map[string]*AccessKey),
		owners: make(map[string]string),
		now:    time.Now,
		newKey: NewKeyValue,
	}
}

func (s *MemoryStore) Seed(ctx context.Context, size int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	created := 0
	for len(s.keys) < size {
		v := s.newKey()
		if _, exists := s.keys[v]; exists {
			continue
		}
		s.keys[v] = &AccessKey{Value: v, Status: StatusAvailable, CreatedAt: s.now()}
		s.order = append(s.order, v)
		created++
	}
	return created, nil
}

func (s *MemoryStore) Assign(ctx context.Context, owner string) (*AccessKey, error) {
	if owner == "" {
		return nil, ErrEmptyOwner
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.owners[owner]; ok && s.keys[v].Status == StatusAssigned {
		return nil, ErrAlreadyAssigned
	}

	for _, v := range s.order {
		k := s.keys[v]
		if k.Status != StatusAvailable {
			continue
		}
		now := s.now()
		k.Status = StatusAssigned
		k.Owner = owner
		k.AssignedAt = &now
		s.owners[owner] = v
		out := *k
		return &out, nil
	}
	return nil, ErrNoKeysAvailable
}

func (s *MemoryStore) Get(ctx context.Context, value string) (*AccessKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k, ok := s.keys[value]
	if !ok {
		return nil, ErrKeyNotFound
	}
	out := *k
	return &out, nil
}

func (s *MemoryStore) Revoke(ctx context.Context, value string) (*AccessKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k, ok := s.keys[value]
	if !ok {
		return nil, ErrKeyNotFound
	}
	if k.Status == StatusRevoked {
		return nil, ErrKeyRevoked
	}
	now := s.now()
	k.Status = StatusRevoked
	k.RevokedAt = &now
	out := *k
	return &out, nil
}

func (s *MemoryStore) List(ctx context.Context) ([]AccessKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]AccessKey, 0, len(s.keys))
	for _, v := range s.order {
		out = append(out, *s.keys[v])
	}
	return out, nil
}
