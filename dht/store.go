package dht

import (
	"crypto/sha1"
	"sync"

	"github.com/opd-ai/kadnode/identifier"
)

// ValueStore is the local key/value mapping a Node serves via the
// store/find_value handlers. Keys are application-level byte strings;
// SHA-1(key) yields the identifier.ID used for routing. At most one
// value exists per key (last write wins).
type ValueStore struct {
	mu     sync.RWMutex
	values map[identifier.ID][]byte
}

// NewValueStore creates an empty store.
func NewValueStore() *ValueStore {
	return &ValueStore{values: make(map[identifier.ID][]byte)}
}

// KeyID computes the routing identifier for an application-level key.
func KeyID(key []byte) identifier.ID {
	sum := sha1.Sum(key)
	return identifier.New(sum[:])
}

// Put stores value under keyID, overwriting any existing value.
func (s *ValueStore) Put(keyID identifier.ID, value []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[keyID] = append([]byte(nil), value...)
}

// Get returns the value stored under keyID, if any.
func (s *ValueStore) Get(keyID identifier.ID) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[keyID]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), v...), true
}
