package poll

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/five82/evalwatch/internal/state"
)

// ErrUnknown replaces panics and other failures that carry no error value.
var ErrUnknown = errors.New("Unknown error")

// FetchFunc loads the current value for key.
type FetchFunc[K comparable, T any] func(ctx context.Context, key K) (T, error)

// Option customizes a Subscription.
type Option func(*settings)

type settings struct {
	interval time.Duration
	logger   *zap.Logger
	name     string
}

// WithInterval overrides the refresh cadence.
func WithInterval(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithLogger sets the logger used for poll failures.
func WithLogger(logger *zap.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithName labels log entries from this subscription.
func WithName(name string) Option {
	return func(s *settings) { s.name = name }
}

// Subscription keeps one remote resource fresh for the key it was started
// with. Each Start or Stop bumps a generation counter; fetches that finish
// under an older generation are dropped. Within a generation every fetch takes
// a sequence number and results older than the last commit are dropped.
type Subscription[K comparable, T any] struct {
	fetch FetchFunc[K, T]
	empty func(K) bool
	store *state.Store[T]
	cfg   settings

	mu       sync.Mutex
	gen      uint64
	key      K
	active   bool
	seq      uint64
	applied  uint64
	ctx      context.Context
	cancel   context.CancelFunc
	onUpdate func(state.Snapshot[T])
}

// New builds an idle subscription. empty reports keys that should resolve to
// a loaded zero value without any fetch; clone may be nil.
func New[K comparable, T any](fetch FetchFunc[K, T], empty func(K) bool, clone func(T) T, opts ...Option) *Subscription[K, T] {
	cfg := settings{interval: 5 * time.Second, logger: zap.NewNop(), name: "poll"}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Subscription[K, T]{
		fetch: fetch,
		empty: empty,
		store: state.NewStore(clone),
		cfg:   cfg,
	}
}

// OnUpdate registers fn to receive every committed snapshot. fn runs on the
// polling goroutine and must not block.
func (s *Subscription[K, T]) OnUpdate(fn func(state.Snapshot[T])) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onUpdate = fn
}

// Snapshot returns the current state.
func (s *Subscription[K, T]) Snapshot() state.Snapshot[T] {
	return s.store.Snapshot()
}

// Key returns the key of the running subscription.
func (s *Subscription[K, T]) Key() (K, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.key, s.active
}

// Interval returns the refresh cadence.
func (s *Subscription[K, T]) Interval() time.Duration {
	return s.cfg.interval
}

// Start begins polling key, replacing any previous key. Starting the key that
// is already active is a no-op.
func (s *Subscription[K, T]) Start(key K) {
	s.mu.Lock()
	if s.active && s.key == key {
		s.mu.Unlock()
		return
	}
	s.stopLocked()
	s.gen++
	gen := s.gen
	s.key = key
	s.active = true
	s.applied = s.seq
	s.store.Reset()

	if s.empty != nil && s.empty(key) {
		var zero T
		s.store.Commit(zero)
		fn := s.onUpdate
		snap := s.store.Snapshot()
		s.mu.Unlock()
		if fn != nil {
			fn(snap)
		}
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.ctx, s.cancel = ctx, cancel
	s.mu.Unlock()

	go s.run(ctx, gen, key)
}

// Refresh triggers an immediate out-of-band fetch for the active key.
func (s *Subscription[K, T]) Refresh() {
	s.mu.Lock()
	if !s.active || s.cancel == nil {
		s.mu.Unlock()
		return
	}
	gen, key := s.gen, s.key
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.interval*2)
	s.mu.Unlock()

	go func() {
		defer cancel()
		s.refresh(ctx, gen, key)
	}()
}

// Stop halts polling. Results still in flight are discarded.
func (s *Subscription[K, T]) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.gen++
	s.active = false
}

func (s *Subscription[K, T]) stopLocked() {
	if s.cancel != nil {
		s.cancel()
		s.ctx, s.cancel = nil, nil
	}
}

func (s *Subscription[K, T]) run(ctx context.Context, gen uint64, key K) {
	ticker := time.NewTicker(s.cfg.interval)
	defer ticker.Stop()

	for {
		s.refresh(ctx, gen, key)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Subscription[K, T]) refresh(ctx context.Context, gen uint64, key K) {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	data, err := s.safeFetch(ctx, key)

	s.mu.Lock()
	if gen != s.gen || seq < s.applied {
		s.mu.Unlock()
		return
	}
	s.applied = seq
	if err != nil {
		s.store.Fail(err)
		s.cfg.logger.Warn("poll failed",
			zap.String("subscription", s.cfg.name),
			zap.String("key", fmt.Sprint(key)),
			zap.Error(err))
	} else {
		s.store.Commit(data)
	}
	fn := s.onUpdate
	snap := s.store.Snapshot()
	s.mu.Unlock()

	if fn != nil {
		fn(snap)
	}
}

func (s *Subscription[K, T]) safeFetch(ctx context.Context, key K) (data T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			data = zero
			if e, ok := r.(error); ok {
				err = e
				return
			}
			err = ErrUnknown
		}
	}()
	return s.fetch(ctx, key)
}
