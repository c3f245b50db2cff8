package internal

import (
	"context"
	"sync"
)

// MemoryStore is an in-process store with Redis semantics for hashes, lists
// and counters. It is safe for concurrent use.
type MemoryStore struct {
	mu       sync.RWMutex
	hashes   map[string]map[string]string
	lists    map[string][]string
	counters map[string]int64
	closed   bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		hashes:   make(map[string]map[string]string),
		lists:    make(map[string][]string),
		counters: make(map[string]int64),
	}
}

func (s *MemoryStore) HGet(ctx context.Context, key, field string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", false, ErrStoreClosed
	}
	v, ok := s.hashes[key][field]
	return v, ok, nil
}

func (s *MemoryStore) HSet(ctx context.Context, key string, values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	if len(values) == 0 {
		return nil
	}
	h, ok := s.hashes[key]
	if !ok {
		h = make(map[string]string, len(values))
		s.hashes[key] = h
	}
	for f, v := range values {
		h[f] = v
	}
	return nil
}

func (s *MemoryStore) HDel(ctx context.Context, key string, fields ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	h, ok := s.hashes[key]
	if !ok {
		return nil
	}
	for _, f := range fields {
		delete(h, f)
	}
	// Redis drops empty hashes.
	if len(h) == 0 {
		delete(s.hashes, key)
	}
	return nil
}

func (s *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false, ErrStoreClosed
	}
	if _, ok := s.hashes[key]; ok {
		return true, nil
	}
	if _, ok := s.lists[key]; ok {
		return true, nil
	}
	_, ok := s.counters[key]
	return ok, nil
}

func (s *MemoryStore) ListMembers(ctx context.Context, key string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	members := s.lists[key]
	out := make([]string, len(members))
	copy(out, members)
	return out, nil
}

func (s *MemoryStore) ListReplace(ctx context.Context, key string, members []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	if len(members) == 0 {
		delete(s.lists, key)
		return nil
	}
	cp := make([]string, len(members))
	copy(cp, members)
	s.lists[key] = cp
	return nil
}

func (s *MemoryStore) Incr(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrStoreClosed
	}
	s.counters[key]++
	return s.counters[key], nil
}

func (s *MemoryStore) Del(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	for _, k := range keys {
		delete(s.hashes, k)
		delete(s.lists, k)
		delete(s.counters, k)
	}
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
