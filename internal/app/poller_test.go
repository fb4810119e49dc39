package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/five82/evalwatch/internal/config"
	"github.com/five82/evalwatch/internal/lmeval"
	"github.com/five82/evalwatch/internal/mockapi"
)

func newMockClient(t *testing.T) *lmeval.Client {
	t.Helper()
	srv, err := mockapi.NewDefault(mockapi.WithLogger(zap.NewNop()))
	if err != nil {
		t.Fatalf("mockapi.NewDefault: %v", err)
	}
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	client, err := lmeval.NewClient(lmeval.Options{
		BaseURL:  ts.URL + mockapi.BasePath,
		Identity: "tester@example.com",
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestResolveNamespace(t *testing.T) {
	client := newMockClient(t)
	want := []string{"ds-project-1", "ds-project-2", "ds-project-3"}

	tests := []struct {
		name       string
		configured string
		remembered string
		wantNS     string
	}{
		{"configured wins", "ds-project-3", "ds-project-2", "ds-project-3"},
		{"configured need not be listed", "elsewhere", "", "elsewhere"},
		{"remembered when listed", "", "ds-project-2", "ds-project-2"},
		{"stale remembered falls back to first", "", "gone", "ds-project-1"},
		{"first listed", "", "", "ds-project-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			names, ns := resolveNamespace(context.Background(), client, tt.configured, tt.remembered, zap.NewNop())
			if !slices.Equal(names, want) {
				t.Fatalf("names = %v, want %v", names, want)
			}
			if ns != tt.wantNS {
				t.Fatalf("namespace = %q, want %q", ns, tt.wantNS)
			}
		})
	}
}

func TestResolveNamespace_BackendDown(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	t.Cleanup(ts.Close)

	client, err := lmeval.NewClient(lmeval.Options{BaseURL: ts.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	names, ns := resolveNamespace(context.Background(), client, "", "ds-project-2", zap.NewNop())
	if len(names) != 0 {
		t.Fatalf("names = %v, want none", names)
	}
	if ns != "ds-project-2" {
		t.Fatalf("namespace = %q, want remembered ds-project-2", ns)
	}

	_, ns = resolveNamespace(context.Background(), client, "", "", zap.NewNop())
	if ns != "" {
		t.Fatalf("namespace = %q, want empty", ns)
	}
}

func TestNewPollers_UsesConfiguredIntervals(t *testing.T) {
	cfg := config.Default()
	cfg.CollectionPoll = 7 * time.Second
	cfg.ItemPoll = 2 * time.Second

	p := newPollers(newMockClient(t), cfg, zap.NewNop())
	defer p.stop()

	if got := p.list.Interval(); got != 7*time.Second {
		t.Fatalf("list interval = %v, want 7s", got)
	}
	if got := p.detail.Interval(); got != 2*time.Second {
		t.Fatalf("detail interval = %v, want 2s", got)
	}

	cfg.CollectionPoll = 0
	cfg.ItemPoll = 0
	defaults := newPollers(newMockClient(t), cfg, zap.NewNop())
	defer defaults.stop()
	if got := defaults.list.Interval(); got != 5*time.Second {
		t.Fatalf("default list interval = %v, want 5s", got)
	}
	if got := defaults.detail.Interval(); got != 3*time.Second {
		t.Fatalf("default detail interval = %v, want 3s", got)
	}
}

func TestPollers_LoadNamespace(t *testing.T) {
	p := newPollers(newMockClient(t), config.Default(), zap.NewNop())
	defer p.stop()

	p.list.Start("ds-project-1")
	deadline := time.Now().Add(3 * time.Second)
	for !p.list.Snapshot().Loaded {
		if time.Now().After(deadline) {
			t.Fatal("collection never loaded")
		}
		time.Sleep(10 * time.Millisecond)
	}
	snap := p.list.Snapshot()
	if snap.Err != nil {
		t.Fatalf("snapshot error: %v", snap.Err)
	}
	if len(snap.Data) != 2 {
		t.Fatalf("got %d evaluations, want 2", len(snap.Data))
	}
}
