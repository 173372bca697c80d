// Package counterclient implements the client side of the counter
// protocol: anonymous identity, optimistic vote state, and jittered
// polling against the counter endpoints.
package counterclient

import (
	"sync"
)

// Storage is the small key-value persistence interface the identity
// manager depends on. Embedding hosts back it with whatever durable
// storage they have (browser local storage behind a bridge, a state
// file); tests use MemoryStorage.
type Storage interface {
	Get(key string) (string, bool)
	Set(key, value string)
}

// MemoryStorage is an in-memory Storage for tests and ephemeral hosts.
type MemoryStorage struct {
	mu sync.Mutex
	m  map[string]string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{m: make(map[string]string)}
}

func (s *MemoryStorage) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	return v, ok
}

func (s *MemoryStorage) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
}
