package poll

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/five82/evalwatch/internal/lmeval"
	"github.com/five82/evalwatch/internal/state"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func blank(k string) bool { return k == "" }

func TestSubscription_LoadsAndRefreshes(t *testing.T) {
	var calls atomic.Int32
	fetch := func(ctx context.Context, key string) (int, error) {
		return int(calls.Add(1)), nil
	}
	sub := New(fetch, blank, nil, WithInterval(10*time.Millisecond))
	t.Cleanup(sub.Stop)

	var sawUnloaded atomic.Bool
	sub.OnUpdate(func(s state.Snapshot[int]) {
		if !s.Loaded {
			sawUnloaded.Store(true)
		}
	})
	sub.Start("ns")

	waitFor(t, "three fetches", func() bool { return sub.Snapshot().Data >= 3 })
	if sawUnloaded.Load() {
		t.Fatalf("refresh reported Loaded=false")
	}
	if key, ok := sub.Key(); !ok || key != "ns" {
		t.Fatalf("Key = %q, %v", key, ok)
	}
}

func TestSubscription_SameKeyIndependentState(t *testing.T) {
	release := make(chan struct{})
	slow := func(ctx context.Context, key string) (string, error) {
		select {
		case <-release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
		return "slow", nil
	}
	fast := func(ctx context.Context, key string) (string, error) { return "fast", nil }

	a := New(slow, blank, nil, WithInterval(time.Hour))
	b := New(fast, blank, nil, WithInterval(time.Hour))
	t.Cleanup(a.Stop)
	t.Cleanup(b.Stop)

	a.Start("ns")
	b.Start("ns")

	waitFor(t, "b loaded", func() bool { return b.Snapshot().Loaded })
	if a.Snapshot().Loaded {
		t.Fatalf("subscription a shares loaded state with b")
	}
	close(release)
	waitFor(t, "a loaded", func() bool { return a.Snapshot().Loaded })
	if a.Snapshot().Data != "slow" || b.Snapshot().Data != "fast" {
		t.Fatalf("data crossed: a=%q b=%q", a.Snapshot().Data, b.Snapshot().Data)
	}
}

func TestSubscription_KeyChangeDropsStaleResult(t *testing.T) {
	gates := map[string]chan struct{}{
		"old": make(chan struct{}),
		"new": make(chan struct{}),
	}
	var mu sync.Mutex
	var committed []string
	fetch := func(ctx context.Context, key string) (string, error) {
		<-gates[key] // ignores ctx so the stale result really arrives late
		return "data-for-" + key, nil
	}
	sub := New(fetch, blank, nil, WithInterval(time.Hour))
	t.Cleanup(sub.Stop)
	sub.OnUpdate(func(s state.Snapshot[string]) {
		mu.Lock()
		defer mu.Unlock()
		committed = append(committed, s.Data)
	})

	sub.Start("old")
	sub.Start("new")
	if snap := sub.Snapshot(); snap.Loaded || snap.Err != nil {
		t.Fatalf("after key change snapshot = %#v, want loading", snap)
	}

	close(gates["new"])
	waitFor(t, "new loaded", func() bool { return sub.Snapshot().Loaded })
	close(gates["old"])
	time.Sleep(50 * time.Millisecond)

	if got := sub.Snapshot().Data; got != "data-for-new" {
		t.Fatalf("Data = %q, want data-for-new", got)
	}
	mu.Lock()
	defer mu.Unlock()
	for _, c := range committed {
		if c == "data-for-old" {
			t.Fatalf("stale result committed: %v", committed)
		}
	}
}

func TestSubscription_StopDiscardsInFlight(t *testing.T) {
	gate := make(chan struct{})
	fetch := func(ctx context.Context, key string) (string, error) {
		<-gate
		return "late", nil
	}
	sub := New(fetch, blank, nil, WithInterval(time.Hour))
	sub.Start("ns")
	sub.Stop()
	close(gate)
	time.Sleep(50 * time.Millisecond)
	if snap := sub.Snapshot(); snap.Loaded || snap.Data != "" {
		t.Fatalf("snapshot after stop = %#v, want untouched", snap)
	}
}

func TestSubscription_LateRefreshDoesNotOverwriteNewer(t *testing.T) {
	var calls atomic.Int32
	hold := make(chan struct{})
	fetch := func(ctx context.Context, key string) (string, error) {
		switch calls.Add(1) {
		case 1:
			return "initial", nil
		case 2:
			<-hold // ignores ctx so the older result really lands last
			return "stale", nil
		default:
			return "fresh", nil
		}
	}
	sub := New(fetch, blank, nil, WithInterval(time.Hour))
	t.Cleanup(sub.Stop)

	sub.Start("ns")
	waitFor(t, "initial load", func() bool { return sub.Snapshot().Data == "initial" })

	sub.Refresh()
	waitFor(t, "second fetch started", func() bool { return calls.Load() == 2 })
	sub.Refresh()
	waitFor(t, "fresh data", func() bool { return sub.Snapshot().Data == "fresh" })

	close(hold)
	time.Sleep(50 * time.Millisecond)
	if got := sub.Snapshot().Data; got != "fresh" {
		t.Fatalf("Data = %q, want fresh", got)
	}
}

func TestSubscription_StopCancelsRefresh(t *testing.T) {
	var calls atomic.Int32
	canceled := make(chan struct{})
	fetch := func(ctx context.Context, key string) (string, error) {
		if calls.Add(1) == 1 {
			return "initial", nil
		}
		<-ctx.Done()
		close(canceled)
		return "", ctx.Err()
	}
	sub := New(fetch, blank, nil, WithInterval(time.Hour))
	sub.Start("ns")
	waitFor(t, "initial load", func() bool { return sub.Snapshot().Loaded })

	sub.Refresh()
	waitFor(t, "refresh started", func() bool { return calls.Load() == 2 })
	sub.Stop()

	select {
	case <-canceled:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not cancel the in-flight refresh")
	}
	if snap := sub.Snapshot(); snap.Err != nil || snap.Data != "initial" {
		t.Fatalf("snapshot after stop = %#v, want initial data and no error", snap)
	}
}

func TestSubscription_EmptyKeyResolvesWithoutFetch(t *testing.T) {
	var calls atomic.Int32
	fetch := func(ctx context.Context, key string) ([]string, error) {
		calls.Add(1)
		return []string{"x"}, nil
	}
	sub := New(fetch, blank, nil, WithInterval(5*time.Millisecond))
	t.Cleanup(sub.Stop)

	sub.Start("")
	snap := sub.Snapshot()
	if !snap.Loaded || snap.Err != nil || snap.Data != nil {
		t.Fatalf("empty key snapshot = %#v, want loaded zero", snap)
	}
	time.Sleep(30 * time.Millisecond)
	if calls.Load() != 0 {
		t.Fatalf("fetch called %d times for empty key", calls.Load())
	}
}

func TestSubscription_ErrorsKeepDataAndCoercePanics(t *testing.T) {
	var step atomic.Int32
	boom := errors.New("boom")
	fetch := func(ctx context.Context, key string) (int, error) {
		switch step.Add(1) {
		case 1:
			return 42, nil
		case 2:
			return 0, boom
		default:
			panic("not an error")
		}
	}
	sub := New(fetch, blank, nil, WithInterval(10*time.Millisecond))
	t.Cleanup(sub.Stop)

	var mu sync.Mutex
	var snaps []state.Snapshot[int]
	sub.OnUpdate(func(s state.Snapshot[int]) {
		mu.Lock()
		defer mu.Unlock()
		snaps = append(snaps, s)
	})
	sub.Start("ns")

	waitFor(t, "three updates", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(snaps) >= 3
	})
	mu.Lock()
	defer mu.Unlock()
	if !errors.Is(snaps[1].Err, boom) || snaps[1].Data != 42 || !snaps[1].Loaded {
		t.Fatalf("after error snapshot = %#v, want boom with previous data", snaps[1])
	}
	if !errors.Is(snaps[2].Err, ErrUnknown) || snaps[2].Err.Error() != "Unknown error" || snaps[2].Data != 42 {
		t.Fatalf("after panic snapshot = %#v, want Unknown error", snaps[2])
	}
}

type fakeFetcher struct {
	lmeval.Fetcher
	items []lmeval.Evaluation
}

func (f *fakeFetcher) ListEvaluations(ctx context.Context, namespace string) ([]lmeval.Evaluation, error) {
	return f.items, nil
}

func TestNewEvaluations_DefaultsAndEmptyNamespace(t *testing.T) {
	sub := NewEvaluations(&fakeFetcher{}, nil)
	t.Cleanup(sub.Stop)
	if sub.Interval() != CollectionInterval {
		t.Fatalf("Interval = %v, want %v", sub.Interval(), CollectionInterval)
	}
	sub.Start("  ")
	if snap := sub.Snapshot(); !snap.Loaded || snap.Data != nil {
		t.Fatalf("snapshot = %#v, want loaded empty", snap)
	}

	single := NewEvaluation(&fakeFetcher{}, nil)
	t.Cleanup(single.Stop)
	if single.Interval() != ItemInterval {
		t.Fatalf("Interval = %v, want %v", single.Interval(), ItemInterval)
	}
	single.Start(lmeval.Ref{Namespace: "ns"})
	if snap := single.Snapshot(); !snap.Loaded || snap.Data != nil {
		t.Fatalf("snapshot = %#v, want loaded nil", snap)
	}
}
