package ui

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/five82/evalwatch/internal/filter"
	"github.com/five82/evalwatch/internal/lmeval"
	"github.com/five82/evalwatch/internal/poll"
	"github.com/five82/evalwatch/internal/prefs"
	"github.com/five82/evalwatch/internal/state"
)

// pane identifies which half of the split layout has focus.
type pane int

const (
	paneList pane = iota
	paneDetail
)

// Options configure the dashboard.
type Options struct {
	Context     context.Context
	Client      lmeval.Fetcher
	Evaluations *poll.Evaluations
	Detail      *poll.Evaluation
	Namespaces  []string
	Namespace   string
	ThemeName   string
	PrefsPath   string
	APIURL      string
	Logger      *zap.Logger
}

// Model is the Bubble Tea model for the dashboard.
type Model struct {
	ctx    context.Context
	client lmeval.Fetcher
	list   *poll.Evaluations
	detail *poll.Evaluation
	logger *zap.Logger
	apiURL string

	keys      keyMap
	theme     Theme
	prefsPath string

	namespaces []string
	namespace  string

	listSnap   state.Snapshot[[]lmeval.Evaluation]
	detailSnap state.Snapshot[*lmeval.Evaluation]
	visible    []lmeval.Evaluation

	// Filters
	filters     filter.State
	stateFilter lmeval.State // empty shows every state
	filterInput textinput.Model
	filterKey   filter.Key
	filtering   bool

	// Selection
	selectedRow int
	selected    lmeval.Ref
	focusedPane pane

	detailView viewport.Model
	bar        progress.Model

	modal    Modal
	showHelp bool

	flash    string
	flashErr bool
	flashAt  time.Time

	width  int
	height int
	ready  bool
}

// New creates a new dashboard model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	input := textinput.New()
	input.Prompt = ""
	input.CharLimit = 128
	input.Width = 30

	theme := GetTheme(opts.ThemeName)
	return Model{
		ctx:         ctx,
		client:      opts.Client,
		list:        opts.Evaluations,
		detail:      opts.Detail,
		logger:      logger,
		apiURL:      opts.APIURL,
		keys:        DefaultKeyMap(),
		theme:       theme,
		prefsPath:   opts.PrefsPath,
		namespaces:  slices.Clone(opts.Namespaces),
		namespace:   opts.Namespace,
		filterInput: input,
		detailView:  viewport.New(0, 0),
		bar:         newProgressBar(theme),
	}
}

// Init starts polling the current namespace and the UI refresh tick.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.watchNamespace(m.namespace),
		loadNamespacesCmd(m.ctx, m.client),
		tickCmd(),
	)
}

// Update handles messages and returns the updated model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.ready = true
		return m, nil

	case tickMsg:
		if m.flash != "" && time.Since(m.flashAt) > FlashDuration {
			m.flash = ""
		}
		cmd := m.readSnapshots()
		return m, tea.Batch(cmd, tickCmd())

	case pollMsg:
		cmd := m.readSnapshots()
		return m, cmd

	case namespacesMsg:
		if msg.err != nil {
			m.logger.Warn("list namespaces failed", zap.Error(msg.err))
			return m, nil
		}
		m.namespaces = msg.names
		if m.namespace == "" && len(msg.names) > 0 {
			cmd := m.setNamespace(msg.names[0])
			return m, cmd
		}
		return m, nil

	case createdMsg:
		if msg.err != nil {
			if m.modal != nil {
				return m.updateModal(msg)
			}
			m.setFlash("Create failed: "+errorText(msg.err), true)
			return m, nil
		}
		m.modal = nil
		m.logger.Info("created evaluation",
			zap.String("namespace", msg.eval.Namespace),
			zap.String("name", msg.eval.Name))
		m.setFlash("Created "+msg.eval.Ref().String(), false)
		m.selected = msg.eval.Ref()
		return m, m.refreshNow()

	case deletedMsg:
		if msg.err != nil {
			m.logger.Warn("delete evaluation failed", zap.String("evaluation", msg.ref.String()), zap.Error(msg.err))
			m.setFlash("Delete failed: "+errorText(msg.err), true)
			return m, nil
		}
		m.logger.Info("deleted evaluation",
			zap.String("namespace", msg.ref.Namespace),
			zap.String("name", msg.ref.Name))
		m.setFlash("Deleted "+msg.ref.String(), false)
		return m, m.refreshNow()
	}

	if m.modal != nil {
		return m.updateModal(msg)
	}
	return m, nil
}

func (m Model) updateModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	modal, cmd, done := m.modal.Update(msg, m.keys)
	if done {
		m.modal = nil
	} else {
		m.modal = modal
	}
	return m, cmd
}

// View renders the UI.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}
	if m.modal != nil {
		return m.modal.View(m.theme, m.width, m.height)
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.renderCommandBar(),
		m.renderMain(),
	)
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Help overlay closes on any key
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}

	if m.modal != nil {
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m.updateModal(msg)
	}

	if m.filtering {
		return m.handleFilterInput(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.bar = newProgressBar(m.theme)
		m.savePrefs()
		m.updateDetailContent()
		return m, nil

	case key.Matches(msg, m.keys.Tab):
		if m.focusedPane == paneList {
			m.focusedPane = paneDetail
		} else {
			m.focusedPane = paneList
		}
		return m, nil

	case key.Matches(msg, m.keys.Escape):
		if m.focusedPane == paneDetail {
			m.focusedPane = paneList
			return m, nil
		}
		m.filters.ClearAll()
		m.stateFilter = ""
		cmd := m.refreshVisible()
		return m, cmd

	case key.Matches(msg, m.keys.Refresh):
		m.setFlash("Refreshing...", false)
		return m, m.refreshNow()

	case key.Matches(msg, m.keys.PrevNamespace):
		cmd := m.cycleNamespace(-1)
		return m, cmd

	case key.Matches(msg, m.keys.NextNamespace):
		cmd := m.cycleNamespace(1)
		return m, cmd

	case key.Matches(msg, m.keys.FilterName):
		cmd := m.startFilter(filter.Name)
		return m, cmd

	case key.Matches(msg, m.keys.FilterModel):
		cmd := m.startFilter(filter.Model)
		return m, cmd

	case key.Matches(msg, m.keys.CycleState):
		m.stateFilter = nextStateFilter(m.stateFilter)
		cmd := m.refreshVisible()
		return m, cmd

	case key.Matches(msg, m.keys.Create):
		if m.namespace == "" {
			m.setFlash("No namespace selected", true)
			return m, nil
		}
		form := newCreateForm(m.ctx, m.client, m.namespace)
		m.modal = form
		return m, form.Init()

	case key.Matches(msg, m.keys.Delete):
		eval, ok := m.selectedEvaluation()
		if !ok {
			return m, nil
		}
		m.modal = newConfirmDelete(m.ctx, m.client, eval)
		return m, nil
	}

	if m.focusedPane == paneDetail {
		return m.handleDetailKey(msg)
	}
	return m.handleListKey(msg)
}

func (m Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		cmd := m.selectRow(m.selectedRow - 1)
		return m, cmd
	case key.Matches(msg, m.keys.Down):
		cmd := m.selectRow(m.selectedRow + 1)
		return m, cmd
	case key.Matches(msg, m.keys.Top):
		cmd := m.selectRow(0)
		return m, cmd
	case key.Matches(msg, m.keys.Bottom):
		cmd := m.selectRow(len(m.visible) - 1)
		return m, cmd
	case key.Matches(msg, m.keys.HalfPageUp):
		cmd := m.selectRow(m.selectedRow - m.halfPage())
		return m, cmd
	case key.Matches(msg, m.keys.HalfPageDown):
		cmd := m.selectRow(m.selectedRow + m.halfPage())
		return m, cmd
	case key.Matches(msg, m.keys.Confirm):
		if len(m.visible) > 0 {
			m.focusedPane = paneDetail
		}
	}
	return m, nil
}

func (m Model) handleDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Top):
		m.detailView.GotoTop()
		return m, nil
	case key.Matches(msg, m.keys.Bottom):
		m.detailView.GotoBottom()
		return m, nil
	}
	var cmd tea.Cmd
	m.detailView, cmd = m.detailView.Update(msg)
	return m, cmd
}

// handleFilterInput routes keys to the filter prompt. Filters apply while typing.
func (m Model) handleFilterInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Confirm):
		m.filtering = false
		m.filterInput.Blur()
		return m, nil

	case key.Matches(msg, m.keys.Escape):
		m.filters.Clear(m.filterKey)
		m.filtering = false
		m.filterInput.Blur()
		m.filterInput.SetValue("")
		cmd := m.refreshVisible()
		return m, cmd
	}

	var cmd tea.Cmd
	m.filterInput, cmd = m.filterInput.Update(msg)
	m.filters.Set(m.filterKey, m.filterInput.Value())
	refresh := m.refreshVisible()
	return m, tea.Batch(cmd, refresh)
}

func (m *Model) startFilter(k filter.Key) tea.Cmd {
	m.filterKey = k
	m.filtering = true
	m.filterInput.SetValue(m.filters.Get(k))
	m.filterInput.CursorEnd()
	return m.filterInput.Focus()
}

// readSnapshots copies the latest subscription state into the model.
func (m *Model) readSnapshots() tea.Cmd {
	if m.list != nil {
		m.listSnap = m.list.Snapshot()
	}
	if m.detail != nil {
		m.detailSnap = m.detail.Snapshot()
	}
	return m.refreshVisible()
}

// refreshVisible reapplies filters, keeps the selection on the same
// evaluation when it is still visible, and retargets the detail poller when
// the selection moves.
func (m *Model) refreshVisible() tea.Cmd {
	items := filter.Apply(m.listSnap.Data, m.filters)
	if m.stateFilter != "" {
		items = filter.ByState(items, m.stateFilter)
	}
	m.visible = items

	row := -1
	if !m.selected.Empty() {
		row = slices.IndexFunc(items, func(e lmeval.Evaluation) bool { return e.Ref() == m.selected })
	}
	if row < 0 {
		row = m.selectedRow
	}
	return m.selectRow(row)
}

// selectRow moves the selection, clamped to the visible rows.
func (m *Model) selectRow(row int) tea.Cmd {
	var ref lmeval.Ref
	if n := len(m.visible); n == 0 {
		row = 0
	} else {
		row = min(max(row, 0), n-1)
		ref = m.visible[row].Ref()
	}
	m.selectedRow = row

	var cmd tea.Cmd
	if ref != m.selected {
		m.selected = ref
		m.detailView.GotoTop()
		cmd = m.watchDetail(ref)
	}
	m.updateDetailContent()
	return cmd
}

// selectedEvaluation prefers the detail poller's copy, which refreshes faster
// than the list.
func (m Model) selectedEvaluation() (lmeval.Evaluation, bool) {
	if m.selected.Empty() {
		return lmeval.Evaluation{}, false
	}
	if d := m.detailSnap.Data; d != nil && d.Ref() == m.selected {
		return *d, true
	}
	for _, e := range m.visible {
		if e.Ref() == m.selected {
			return e, true
		}
	}
	return lmeval.Evaluation{}, false
}

func (m *Model) cycleNamespace(delta int) tea.Cmd {
	n := len(m.namespaces)
	if n == 0 {
		return nil
	}
	next := 0
	if idx := slices.Index(m.namespaces, m.namespace); idx >= 0 {
		next = ((idx+delta)%n + n) % n
	}
	return m.setNamespace(m.namespaces[next])
}

// setNamespace switches the dashboard to ns and remembers it.
func (m *Model) setNamespace(ns string) tea.Cmd {
	if ns == m.namespace {
		return nil
	}
	m.namespace = ns
	m.listSnap = state.Snapshot[[]lmeval.Evaluation]{}
	m.detailSnap = state.Snapshot[*lmeval.Evaluation]{}
	m.visible = nil
	m.selectedRow = 0
	m.selected = lmeval.Ref{}
	m.focusedPane = paneList
	m.updateDetailContent()
	m.savePrefs()
	return tea.Batch(m.watchNamespace(ns), m.watchDetail(lmeval.Ref{}))
}

func (m *Model) savePrefs() {
	p := prefs.Prefs{Theme: m.theme.Name, Namespace: m.namespace}
	if err := prefs.Save(m.prefsPath, p); err != nil {
		m.logger.Warn("save prefs failed", zap.Error(err))
	}
}

func (m *Model) setFlash(text string, isErr bool) {
	m.flash = text
	m.flashErr = isErr
	m.flashAt = time.Now()
}

// refreshNow asks both pollers for an out-of-band fetch.
func (m Model) refreshNow() tea.Cmd {
	list, detail := m.list, m.detail
	return func() tea.Msg {
		if list != nil {
			list.Refresh()
		}
		if detail != nil {
			detail.Refresh()
		}
		return nil
	}
}

func (m Model) watchNamespace(ns string) tea.Cmd {
	list := m.list
	if list == nil {
		return nil
	}
	return func() tea.Msg {
		list.Start(ns)
		return pollMsg{}
	}
}

func (m Model) watchDetail(ref lmeval.Ref) tea.Cmd {
	detail := m.detail
	if detail == nil {
		return nil
	}
	return func() tea.Msg {
		detail.Start(ref)
		return pollMsg{}
	}
}

// resize lays out the panes for the current terminal size.
func (m *Model) resize() {
	_, detailWidth := m.paneWidths()
	m.detailView.Width = max(detailWidth-4, 0)
	m.detailView.Height = max(m.contentHeight()-2, 0)
	m.updateDetailContent()
}

func (m Model) contentHeight() int {
	return max(m.height-2, 0) // header + command bar
}

// halfPage is half the list rows inside the pane border, at least one.
func (m Model) halfPage() int {
	return max((m.contentHeight()-2)/2, 1)
}

// paneWidths returns the list and detail widths. In compact layouts only the
// focused pane is drawn, at full width.
func (m Model) paneWidths() (int, int) {
	switch {
	case m.width < LayoutCompactWidth:
		return m.width, m.width
	case m.width >= LayoutExtraWideWidth:
		list := m.width * 45 / 100
		return list, m.width - list
	default:
		list := m.width * 55 / 100
		return list, m.width - list
	}
}

func (m *Model) updateDetailContent() {
	m.detailView.SetContent(m.renderDetailContent(m.detailView.Width))
}

// nextStateFilter cycles all -> each lifecycle state -> all.
func nextStateFilter(current lmeval.State) lmeval.State {
	if current == "" {
		return lmeval.States[0]
	}
	idx := slices.Index(lmeval.States, current)
	if idx < 0 || idx == len(lmeval.States)-1 {
		return ""
	}
	return lmeval.States[idx+1]
}

func stateFilterLabel(s lmeval.State) string {
	if s == "" {
		return "All"
	}
	return string(s)
}

// Run starts the dashboard and blocks until it exits or ctx is cancelled.
func Run(opts Options) error {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	opts.Context = ctx

	p := tea.NewProgram(New(opts), tea.WithAltScreen(), tea.WithContext(ctx))

	notify := forwardUpdates(ctx, p)
	if opts.Evaluations != nil {
		opts.Evaluations.OnUpdate(func(state.Snapshot[[]lmeval.Evaluation]) { notify() })
	}
	if opts.Detail != nil {
		opts.Detail.OnUpdate(func(state.Snapshot[*lmeval.Evaluation]) { notify() })
	}

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// forwardUpdates coalesces subscription callbacks into pollMsgs without
// blocking the polling goroutines.
func forwardUpdates(ctx context.Context, p *tea.Program) func() {
	pending := make(chan struct{}, 1)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-pending:
				p.Send(pollMsg{})
			}
		}
	}()
	return func() {
		select {
		case pending <- struct{}{}:
		default:
		}
	}
}
