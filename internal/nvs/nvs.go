// Package nvs is an in-memory stand-in for the non-volatile storage
// partition used by the radio driver to keep its configuration.
package nvs

import (
	"errors"
	"fmt"
	"sync"
)

// MaxKeyLength is the longest key NVS accepts (15 characters plus NUL on device).
const MaxKeyLength = 15

var ErrNotFound = errors.New("nvs key not found")

// Store holds namespaced key/value pairs.
type Store struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte
}

// Open creates an empty store.
func Open() (*Store, error) {
	return &Store{data: make(map[string]map[string][]byte)}, nil
}

// Set stores a copy of value under namespace/key.
func (s *Store) Set(namespace, key string, value []byte) error {
	if err := validate(namespace, key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ns, ok := s.data[namespace]
	if !ok {
		ns = make(map[string][]byte)
		s.data[namespace] = ns
	}
	ns[key] = append([]byte(nil), value...)
	return nil
}

// Get returns a copy of the value stored under namespace/key.
func (s *Store) Get(namespace, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.data[namespace][key]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", namespace, key, ErrNotFound)
	}
	return append([]byte(nil), value...), nil
}

// Keys returns the number of keys in namespace.
func (s *Store) Keys(namespace string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data[namespace])
}

func validate(namespace, key string) error {
	if namespace == "" || len(namespace) > MaxKeyLength {
		return fmt.Errorf("invalid namespace %q", namespace)
	}
	if key == "" || len(key) > MaxKeyLength {
		return fmt.Errorf("invalid key %q", key)
	}
	return nil
}
