package ui

import (
	"context"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/five82/evalwatch/internal/lmeval"
	"github.com/five82/evalwatch/internal/mockapi"
	"github.com/five82/evalwatch/internal/poll"
	"github.com/five82/evalwatch/internal/prefs"
	"github.com/five82/evalwatch/internal/state"
)

// fakeClient records mutations and serves canned reads.
type fakeClient struct {
	mu        sync.Mutex
	models    []lmeval.ModelOption
	created   []lmeval.CreateRequest
	deleted   []lmeval.Ref
	deleteErr error
}

func (f *fakeClient) ListEvaluations(context.Context, string) ([]lmeval.Evaluation, error) {
	return nil, nil
}

func (f *fakeClient) GetEvaluation(context.Context, lmeval.Ref) (*lmeval.Evaluation, error) {
	return nil, errors.New("not found")
}

func (f *fakeClient) CreateEvaluation(_ context.Context, namespace string, req lmeval.CreateRequest) (*lmeval.Evaluation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, req)
	e := evaluation(namespace, req.K8sName, "", req.Model.Name, nil)
	return &e, nil
}

func (f *fakeClient) UpdateEvaluation(_ context.Context, eval lmeval.Evaluation) (*lmeval.Evaluation, error) {
	return &eval, nil
}

func (f *fakeClient) DeleteEvaluation(_ context.Context, ref lmeval.Ref) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, ref)
	return f.deleteErr
}

func (f *fakeClient) ListNamespaces(context.Context) ([]lmeval.Namespace, error) {
	return []lmeval.Namespace{{Name: "ns-a"}, {Name: "ns-b"}}, nil
}

func (f *fakeClient) ListModels(context.Context, string) ([]lmeval.ModelOption, error) {
	return f.models, nil
}

func (f *fakeClient) CurrentUser(context.Context) (*lmeval.User, error) {
	return &lmeval.User{UserID: "tester"}, nil
}

func evaluation(namespace, name, display, model string, status *lmeval.Status) lmeval.Evaluation {
	e := lmeval.Evaluation{
		ObjectMeta: metav1.ObjectMeta{
			Name:              name,
			Namespace:         namespace,
			CreationTimestamp: metav1.NewTime(time.Now().Add(-10 * time.Minute)),
		},
		Spec:   lmeval.Spec{Model: model, TaskList: lmeval.TaskList{TaskNames: []string{"hellaswag"}}},
		Status: status,
	}
	if display != "" {
		e.Annotations = map[string]string{lmeval.DisplayNameAnnotation: display}
	}
	return e
}

func sampleEvaluations() []lmeval.Evaluation {
	return []lmeval.Evaluation{
		evaluation("ns-a", "llama-eval", "Llama nightly", "local-completions",
			&lmeval.Status{State: "Complete", Reason: "NoReason",
				Results: `{"results":{"hellaswag":{"acc,none":0.5,"acc_stderr,none":0.01}}}`}),
		evaluation("ns-a", "mistral-eval", "Mistral run", "local-chat-completions",
			&lmeval.Status{State: "Running", ProgressBars: []lmeval.ProgressBar{
				{Message: lmeval.RequestingAPIMarker, Percent: "47%"},
			}}),
		evaluation("ns-a", "granite-eval", "", "local-completions",
			&lmeval.Status{State: "Complete", Reason: "Failed", Message: "pod exited"}),
	}
}

func newTestModel(t *testing.T, client lmeval.Fetcher) Model {
	t.Helper()
	m := New(Options{
		Client:     client,
		Namespaces: []string{"ns-a", "ns-b"},
		Namespace:  "ns-a",
		PrefsPath:  filepath.Join(t.TempDir(), "prefs.toml"),
		Logger:     zap.NewNop(),
	})
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 140, Height: 30})
	return updated.(Model)
}

// withList installs a loaded collection snapshot, as a poll commit would.
func withList(m Model, items []lmeval.Evaluation) Model {
	m.listSnap = state.Snapshot[[]lmeval.Evaluation]{Data: items, Loaded: true, LastUpdated: time.Now()}
	m.refreshVisible()
	return m
}

func keyPress(s string) tea.KeyMsg {
	switch s {
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "space":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "ctrl+d":
		return tea.KeyMsg{Type: tea.KeyCtrlD}
	case "ctrl+u":
		return tea.KeyMsg{Type: tea.KeyCtrlU}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m Model, keys ...string) (Model, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, k := range keys {
		var updated tea.Model
		updated, cmd = m.Update(keyPress(k))
		m = updated.(Model)
	}
	return m, cmd
}

func typeText(t *testing.T, m Model, text string) Model {
	t.Helper()
	for _, r := range text {
		m, _ = press(t, m, string(r))
	}
	return m
}

func names(items []lmeval.Evaluation) []string {
	out := make([]string, 0, len(items))
	for _, e := range items {
		out = append(out, e.Name)
	}
	return out
}

func TestModel_NameFilterAppliesWhileTyping(t *testing.T) {
	m := withList(newTestModel(t, &fakeClient{}), sampleEvaluations())

	m, _ = press(t, m, "/")
	if !m.filtering {
		t.Fatal("expected filter prompt to open")
	}
	m = typeText(t, m, "MIST")
	if got := names(m.visible); len(got) != 1 || got[0] != "mistral-eval" {
		t.Fatalf("visible = %v, want [mistral-eval]", got)
	}

	m, _ = press(t, m, "enter")
	if m.filtering {
		t.Fatal("enter should close the prompt")
	}
	if got := m.filters.Get("name"); got != "MIST" {
		t.Fatalf("name filter = %q, want MIST", got)
	}

	// Reopening and cancelling clears only that key.
	m, _ = press(t, m, "/", "esc")
	if len(m.visible) != 3 {
		t.Fatalf("visible = %v, want all 3 after esc", names(m.visible))
	}
}

func TestModel_ModelAndNameFilters(t *testing.T) {
	m := withList(newTestModel(t, &fakeClient{}), sampleEvaluations())

	m, _ = press(t, m, "m")
	m = typeText(t, m, "chat")
	m, _ = press(t, m, "enter")
	if got := names(m.visible); len(got) != 1 || got[0] != "mistral-eval" {
		t.Fatalf("model filter visible = %v", got)
	}

	m, _ = press(t, m, "esc")
	m, _ = press(t, m, "/")
	m = typeText(t, m, "granite")
	if got := names(m.visible); len(got) != 1 || got[0] != "granite-eval" {
		t.Fatalf("name filter without annotation visible = %v", got)
	}
}

func TestModel_StateFilterCycles(t *testing.T) {
	m := withList(newTestModel(t, &fakeClient{}), sampleEvaluations())

	want := []struct {
		state lmeval.State
		names []string
	}{
		{lmeval.StatePending, nil},
		{lmeval.StateInProgress, []string{"mistral-eval"}},
		{lmeval.StateComplete, []string{"llama-eval"}},
		{lmeval.StateFailed, []string{"granite-eval"}},
		{"", []string{"llama-eval", "mistral-eval", "granite-eval"}},
	}
	for _, w := range want {
		m, _ = press(t, m, "f")
		if m.stateFilter != w.state {
			t.Fatalf("stateFilter = %q, want %q", m.stateFilter, w.state)
		}
		if got := names(m.visible); strings.Join(got, ",") != strings.Join(w.names, ",") {
			t.Fatalf("state %q visible = %v, want %v", w.state, got, w.names)
		}
	}
}

func TestModel_SelectionFollowsEvaluation(t *testing.T) {
	items := sampleEvaluations()
	m := withList(newTestModel(t, &fakeClient{}), items)

	m, _ = press(t, m, "j")
	if m.selected.Name != "mistral-eval" {
		t.Fatalf("selected = %v, want mistral-eval", m.selected)
	}

	// A refresh that reorders the collection keeps the same evaluation selected.
	reordered := []lmeval.Evaluation{items[1], items[2], items[0]}
	m = withList(m, reordered)
	if m.selected.Name != "mistral-eval" || m.selectedRow != 0 {
		t.Fatalf("selected = %v row %d, want mistral-eval row 0", m.selected, m.selectedRow)
	}

	// When it disappears the selection stays in range.
	m = withList(m, items[2:])
	if m.selected.Name != "granite-eval" || m.selectedRow != 0 {
		t.Fatalf("selected = %v row %d after removal", m.selected, m.selectedRow)
	}

	m, _ = press(t, m, "G")
	if m.selectedRow != 0 {
		t.Fatalf("G on a single row moved to %d", m.selectedRow)
	}
}

func TestModel_HalfPageMovesClamped(t *testing.T) {
	m := withList(newTestModel(t, &fakeClient{}), sampleEvaluations())
	m, _ = press(t, m, "ctrl+d")
	if m.selectedRow != 2 {
		t.Fatalf("ctrl+d row = %d, want 2", m.selectedRow)
	}
	m, _ = press(t, m, "ctrl+u")
	if m.selectedRow != 0 {
		t.Fatalf("ctrl+u row = %d, want 0", m.selectedRow)
	}
}

func TestModel_NamespaceCycleSavesPrefs(t *testing.T) {
	m := withList(newTestModel(t, &fakeClient{}), sampleEvaluations())

	m, _ = press(t, m, "]")
	if m.namespace != "ns-b" {
		t.Fatalf("namespace = %q, want ns-b", m.namespace)
	}
	if m.listSnap.Loaded || len(m.visible) != 0 || !m.selected.Empty() {
		t.Fatal("switching namespace should reset list state and selection")
	}
	p, err := prefs.Load(m.prefsPath)
	if err != nil {
		t.Fatalf("prefs.Load: %v", err)
	}
	if p.Namespace != "ns-b" {
		t.Fatalf("saved namespace = %q, want ns-b", p.Namespace)
	}

	m, _ = press(t, m, "]")
	if m.namespace != "ns-a" {
		t.Fatalf("namespace wrapped to %q, want ns-a", m.namespace)
	}
	m, _ = press(t, m, "[")
	if m.namespace != "ns-b" {
		t.Fatalf("namespace = %q, want ns-b", m.namespace)
	}
}

func TestModel_ThemeCycleSavesPrefs(t *testing.T) {
	m := newTestModel(t, &fakeClient{})
	m, _ = press(t, m, "T")
	if m.theme.Name != "Kanagawa" {
		t.Fatalf("theme = %q, want Kanagawa", m.theme.Name)
	}
	p, err := prefs.Load(m.prefsPath)
	if err != nil {
		t.Fatalf("prefs.Load: %v", err)
	}
	if p.Theme != "Kanagawa" || p.Namespace != "ns-a" {
		t.Fatalf("saved prefs = %+v", p)
	}
}

func TestModel_NamespacesLoadedPicksFirst(t *testing.T) {
	m := New(Options{PrefsPath: filepath.Join(t.TempDir(), "prefs.toml")})
	updated, _ := m.Update(namespacesMsg{names: []string{"ds-project-2", "ds-project-3"}})
	m = updated.(Model)
	if m.namespace != "ds-project-2" {
		t.Fatalf("namespace = %q, want ds-project-2", m.namespace)
	}
}

func TestModel_DeleteConfirmation(t *testing.T) {
	client := &fakeClient{}
	m := withList(newTestModel(t, client), sampleEvaluations())

	m, _ = press(t, m, "x")
	if _, ok := m.modal.(*confirmDelete); !ok {
		t.Fatalf("modal = %T, want *confirmDelete", m.modal)
	}
	if !strings.Contains(m.View(), "Llama nightly") {
		t.Fatal("confirmation should name the evaluation")
	}

	m, _ = press(t, m, "n")
	if m.modal != nil {
		t.Fatal("n should cancel")
	}
	if len(client.deleted) != 0 {
		t.Fatal("cancel must not delete")
	}

	m, _ = press(t, m, "x")
	m, cmd := press(t, m, "y")
	if m.modal != nil {
		t.Fatal("y should close the modal")
	}
	if cmd == nil {
		t.Fatal("expected delete command")
	}
	msg := cmd()
	deleted, ok := msg.(deletedMsg)
	if !ok {
		t.Fatalf("msg = %T, want deletedMsg", msg)
	}
	if deleted.ref != (lmeval.Ref{Namespace: "ns-a", Name: "llama-eval"}) {
		t.Fatalf("deleted ref = %v", deleted.ref)
	}

	updated, _ := m.Update(deleted)
	m = updated.(Model)
	if !strings.HasPrefix(m.flash, "Deleted ns-a/llama-eval") || m.flashErr {
		t.Fatalf("flash = %q (err %v)", m.flash, m.flashErr)
	}

	updated, _ = m.Update(deletedMsg{ref: deleted.ref, err: errors.New("boom")})
	m = updated.(Model)
	if !m.flashErr {
		t.Fatal("failed delete should flash an error")
	}

	apiErr := &lmeval.APIError{Method: "DELETE", Path: "/evaluations/llama-eval", StatusCode: 403, Message: "not allowed"}
	updated, _ = m.Update(deletedMsg{ref: deleted.ref, err: apiErr})
	m = updated.(Model)
	if m.flash != "Delete failed: not allowed" {
		t.Fatalf("flash = %q, want the server message only", m.flash)
	}
}

func TestModel_ViewRendersListAndDetail(t *testing.T) {
	m := withList(newTestModel(t, &fakeClient{}), sampleEvaluations())
	view := m.View()

	for _, want := range []string{"evalwatch", "ns-a", "Llama nightly", "Mistral run", "granite-eval", "Evaluations (3)"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q", want)
		}
	}
	// The first row is selected, so its results render in the detail pane.
	if !strings.Contains(view, "hellaswag") || !strings.Contains(view, "0.5000") {
		t.Fatal("detail pane should show parsed results")
	}
}

func TestModel_DetailShowsParseError(t *testing.T) {
	items := []lmeval.Evaluation{
		evaluation("ns-a", "broken", "", "m", &lmeval.Status{State: "Complete", Results: "{not json"}),
	}
	m := withList(newTestModel(t, &fakeClient{}), items)
	if !strings.Contains(m.renderDetailContent(80), resultsParseError) {
		t.Fatal("expected results parse error message")
	}
}

func TestModel_OfflineHeader(t *testing.T) {
	m := withList(newTestModel(t, &fakeClient{}), sampleEvaluations())
	m.listSnap.Err = errors.New("dial tcp: connection refused")
	m.listSnap.ConsecutiveFailures = 2
	if header := m.renderHeader(); !strings.Contains(header, "OFFLINE") {
		t.Fatalf("header = %q, want OFFLINE", header)
	}
}

func TestStatusNote(t *testing.T) {
	tests := []struct {
		name    string
		status  *lmeval.Status
		note    string
		showBar bool
	}{
		{"no status", nil, waitingMessage, false},
		{"scheduled with message", &lmeval.Status{State: "Scheduled", Message: "queued"}, "queued", false},
		{"running before requests", &lmeval.Status{State: "Running"}, waitingMessage, false},
		{"running with bar", &lmeval.Status{State: "Running", ProgressBars: []lmeval.ProgressBar{{Message: lmeval.RequestingAPIMarker, Percent: "5%"}}}, "", true},
		{"failed", &lmeval.Status{State: "Complete", Reason: "Failed", Message: "oom"}, "oom", false},
		{"complete", &lmeval.Status{State: "Complete"}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			note, bar := statusNote(evaluation("ns", "e", "", "m", tt.status))
			if note != tt.note || bar != tt.showBar {
				t.Fatalf("statusNote = (%q, %v), want (%q, %v)", note, bar, tt.note, tt.showBar)
			}
		})
	}
}

func TestNextStateFilter(t *testing.T) {
	var s lmeval.State
	seen := []lmeval.State{}
	for i := 0; i < len(lmeval.States)+1; i++ {
		s = nextStateFilter(s)
		seen = append(seen, s)
	}
	if seen[len(seen)-1] != "" {
		t.Fatalf("cycle should return to all, got %v", seen)
	}
}

// TestModel_FollowsSubscriptions drives the model with real subscriptions
// against the mock backend.
func TestModel_FollowsSubscriptions(t *testing.T) {
	srv, err := mockapi.NewDefault(mockapi.WithLogger(zap.NewNop()))
	if err != nil {
		t.Fatalf("mockapi.NewDefault: %v", err)
	}
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	client, err := lmeval.NewClient(lmeval.Options{BaseURL: ts.URL + mockapi.BasePath, Identity: "tester@example.com"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	list := poll.NewEvaluations(client, zap.NewNop(), poll.WithInterval(50*time.Millisecond))
	detail := poll.NewEvaluation(client, zap.NewNop(), poll.WithInterval(50*time.Millisecond))
	t.Cleanup(list.Stop)
	t.Cleanup(detail.Stop)

	m := New(Options{
		Client:      client,
		Evaluations: list,
		Detail:      detail,
		Namespace:   "ds-project-1",
		PrefsPath:   filepath.Join(t.TempDir(), "prefs.toml"),
	})
	m.watchNamespace("ds-project-1")()

	deadline := time.Now().Add(3 * time.Second)
	for {
		updated, cmd := m.Update(pollMsg{})
		m = updated.(Model)
		if cmd != nil {
			cmd()
		}
		if ref, ok := detail.Key(); ok && !ref.Empty() && m.detailSnap.Data != nil && len(m.visible) == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("model never caught up: visible=%v detail=%v", names(m.visible), m.detailSnap.Data)
		}
		time.Sleep(20 * time.Millisecond)
	}

	if m.detailSnap.Data.Ref() != m.selected {
		t.Fatalf("detail poller follows %v, selection is %v", m.detailSnap.Data.Ref(), m.selected)
	}

	// Deleting through the client drops the row on a later poll.
	if err := client.DeleteEvaluation(context.Background(), m.visible[0].Ref()); err != nil {
		t.Fatalf("DeleteEvaluation: %v", err)
	}
	for len(m.visible) != 1 {
		if time.Now().After(deadline.Add(3 * time.Second)) {
			t.Fatalf("deleted evaluation still visible: %v", names(m.visible))
		}
		time.Sleep(20 * time.Millisecond)
		updated, cmd := m.Update(pollMsg{})
		m = updated.(Model)
		if cmd != nil {
			cmd()
		}
	}
}
