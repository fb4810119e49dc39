package state

import (
	"sync"
	"time"
)

// Snapshot is the latest view of one polled resource.
type Snapshot[T any] struct {
	Data                T
	Loaded              bool
	Err                 error
	LastUpdated         time.Time
	ConsecutiveFailures int
}

// IsOffline returns true when the backend has failed two polls in a row.
func (s Snapshot[T]) IsOffline() bool {
	return s.ConsecutiveFailures >= 2
}

// Store guards a Snapshot shared between a poller goroutine and readers.
// The zero value is ready to use and copies Data by value.
type Store[T any] struct {
	mu       sync.RWMutex
	snapshot Snapshot[T]
	clone    func(T) T
}

// NewStore returns a Store that deep-copies Data with clone on every read
// and write. Pass nil when T holds no shared references.
func NewStore[T any](clone func(T) T) *Store[T] {
	return &Store[T]{clone: clone}
}

// Reset drops the current data and marks the store as loading.
func (s *Store[T]) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot = Snapshot[T]{}
}

// Commit replaces the data wholesale and clears any error.
func (s *Store[T]) Commit(data T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot.Data = s.copy(data)
	s.snapshot.Loaded = true
	s.snapshot.Err = nil
	s.snapshot.LastUpdated = time.Now()
	s.snapshot.ConsecutiveFailures = 0
}

// Fail records err while keeping the previous data.
func (s *Store[T]) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot.Loaded = true
	s.snapshot.Err = err
	s.snapshot.LastUpdated = time.Now()
	s.snapshot.ConsecutiveFailures++
}

// Snapshot returns a copy of the current snapshot. Err is the value passed
// to Fail, so callers can compare it against sentinels directly.
func (s *Store[T]) Snapshot() Snapshot[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot
	snap.Data = s.copy(s.snapshot.Data)
	return snap
}

func (s *Store[T]) copy(v T) T {
	if s.clone == nil {
		return v
	}
	return s.clone(v)
}
