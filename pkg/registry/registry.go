// Package registry shares one chip "base" between every frontend that sits on
// the same physical device, keyed by bus and address.
package registry

import (
	"fmt"
	"io"
	"sync"
)

// Key identifies a physical chip
type Key struct {
	Bus  string
	Addr uint16
}

func (k Key) String() string {
	return fmt.Sprintf("%s@0x%02X", k.Bus, k.Addr)
}

type entry[V any] struct {
	value V
	refs  int
}

// Registry maps keys to reference-counted shared values
type Registry[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]*entry[V]
}

// New returns an empty registry
func New[K comparable, V any]() *Registry[K, V] {
	return &Registry[K, V]{entries: make(map[K]*entry[V])}
}

// Attach returns the value stored under key, creating it with create on first
// use. The returned release function drops the reference; when the last
// reference goes the value is removed and closed if it is an io.Closer.
func (r *Registry[K, V]) Attach(key K, create func() (V, error)) (V, func() error, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[key]
	if !ok {
		v, err := create()
		if err != nil {
			var zero V
			return zero, nil, err
		}
		e = &entry[V]{value: v}
		r.entries[key] = e
	}
	e.refs++

	var once sync.Once
	release := func() error {
		var err error
		once.Do(func() { err = r.release(key, e) })
		return err
	}
	return e.value, release, nil
}

func (r *Registry[K, V]) release(key K, e *entry[V]) error {
	r.mu.Lock()
	e.refs--
	last := e.refs == 0
	if last {
		delete(r.entries, key)
	}
	r.mu.Unlock()

	if last {
		if c, ok := any(e.value).(io.Closer); ok {
			return c.Close()
		}
	}
	return nil
}

// Refs returns the reference count of key (0 when absent)
func (r *Registry[K, V]) Refs(key K) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[key]; ok {
		return e.refs
	}
	return 0
}

// Len returns the number of live entries
func (r *Registry[K, V]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
