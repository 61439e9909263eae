package store

import (
	"sync"

	"github.com/zeebo/xxh3"
)

const shardCount = 32

// Map is a concurrent string-keyed map split into shards selected by the
// xxh3 hash of the key.
type Map[V any] struct {
	shards [shardCount]shard[V]
}

type shard[V any] struct {
	mu sync.RWMutex
	m  map[string]V
}

// NewMap creates an empty sharded map.
func NewMap[V any]() *Map[V] {
	m := &Map[V]{}
	for i := range m.shards {
		m.shards[i].m = make(map[string]V)
	}
	return m
}

func (m *Map[V]) shard(key string) *shard[V] {
	return &m.shards[xxh3.HashString(key)%shardCount]
}

// Load returns the value stored under key.
func (m *Map[V]) Load(key string) (V, bool) {
	s := m.shard(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	return v, ok
}

// Store sets the value for key, replacing any previous value.
func (m *Map[V]) Store(key string, v V) {
	s := m.shard(key)
	s.mu.Lock()
	s.m[key] = v
	s.mu.Unlock()
}

// LoadOrStore returns the existing value for key if present. Otherwise it
// stores v and returns it. loaded reports whether the value already existed.
func (m *Map[V]) LoadOrStore(key string, v V) (actual V, loaded bool) {
	s := m.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.m[key]; ok {
		return existing, true
	}
	s.m[key] = v
	return v, false
}

// Delete removes key.
func (m *Map[V]) Delete(key string) {
	s := m.shard(key)
	s.mu.Lock()
	delete(s.m, key)
	s.mu.Unlock()
}

// Len returns the number of keys across all shards.
func (m *Map[V]) Len() int {
	n := 0
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.RLock()
		n += len(s.m)
		s.mu.RUnlock()
	}
	return n
}

// Range calls fn for every key and value until fn returns false. Each shard
// is read-locked while it is visited, so fn must not write to the map.
func (m *Map[V]) Range(fn func(key string, v V) bool) {
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.RLock()
		for k, v := range s.m {
			if !fn(k, v) {
				s.mu.RUnlock()
				return
			}
		}
		s.mu.RUnlock()
	}
}
