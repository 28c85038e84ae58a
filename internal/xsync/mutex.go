// Package xsync adds closure helpers over the standard mutexes.
package xsync

import (
	"sync"
)

type Mutex struct {
	sync.Mutex
}

// WithLock runs f while holding the mutex.
func (m *Mutex) WithLock(f func()) {
	m.Lock()
	defer m.Unlock()

	f()
}

type RWMutex struct {
	sync.RWMutex
}

// WithLock runs f while holding the write lock.
func (m *RWMutex) WithLock(f func()) {
	m.Lock()
	defer m.Unlock()

	f()
}

// WithLock runs f under l and returns its result.
func WithLock[T any](l sync.Locker, f func() T) T {
	l.Lock()
	defer l.Unlock()

	return f()
}

type rlocker interface {
	RLock()
	RUnlock()
}

// WithRLock runs f under the read side of l and returns its result.
func WithRLock[T any](l rlocker, f func() T) T {
	l.RLock()
	defer l.RUnlock()

	return f()
}
