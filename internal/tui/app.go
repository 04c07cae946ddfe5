// Package tui provides the interactive Bubble Tea dashboard for PlanHaus.
package tui

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/theirongolddev/planhaus/internal/apiclient"
	"github.com/theirongolddev/planhaus/internal/autosave"
	"github.com/theirongolddev/planhaus/internal/config"
	"github.com/theirongolddev/planhaus/internal/events"
	"github.com/theirongolddev/planhaus/internal/model"
	"github.com/theirongolddev/planhaus/internal/querycache"
	"github.com/theirongolddev/planhaus/internal/realtime"
	"github.com/theirongolddev/planhaus/internal/tui/components"
	"github.com/theirongolddev/planhaus/internal/tui/theme"
)

const (
	minTerminalWidth = 80
	compactWidth     = 120
	maxContentWidth  = 180
	minContentHeight = 5

	tabDashboard = 0
	tabTasks     = 1
	tabBudget    = 2
	tabGuests    = 3
	tabVendors   = 4
	tabActivity  = 5

	inboxSize = 64
)

// Options wires the dashboard to its data.
type Options struct {
	Queries *apiclient.Queries
	Config  config.Config
	// Project selects a project by id or name; empty falls back to the
	// configured default, then the first project.
	Project string
	// NeedSetup shows the first-run wizard before the dashboard.
	NeedSetup bool
	Log       *zap.Logger
	Now       func() time.Time
}

// runtime holds what outlives a single Update: background workers and the
// channel they report through.
type runtime struct {
	queries  *apiclient.Queries
	prefetch *querycache.Prefetcher
	inbox    chan tea.Msg
	log      *zap.Logger

	mu         sync.Mutex
	live       *realtime.Client
	cancelLive context.CancelFunc
	wg         sync.WaitGroup
	form       *taskForm
}

// send delivers a message from a background goroutine without blocking it.
func (r *runtime) send(msg tea.Msg) {
	select {
	case r.inbox <- msg:
	default:
		r.log.Debug("tui inbox full, dropping message", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (r *runtime) connected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.live != nil && r.live.Connected()
}

// Close stops background work. Unsaved form edits are not flushed; the
// quit path does that first.
func (r *runtime) Close() {
	r.prefetch.Stop()
	r.mu.Lock()
	if r.cancelLive != nil {
		r.cancelLive()
	}
	form := r.form
	r.mu.Unlock()
	if form != nil {
		form.close()
	}
	r.wg.Wait()
}

type inboxMsg struct{ msg tea.Msg }

func waitInbox(ch chan tea.Msg) tea.Cmd {
	return func() tea.Msg { return inboxMsg{msg: <-ch} }
}

type toastMsg struct{ toast autosave.Toast }

type toastExpiredMsg struct{ seq int }

type remoteMsg struct{ msg events.Message }

type liveStoppedMsg struct {
	projectID string
	err       error
}

type formSavedMsg struct{ projectID string }

type tickMsg struct{}

func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

// App is the root Bubble Tea model.
type App struct {
	rt  *runtime
	cfg config.Config
	now func() time.Time

	// Data
	projects  []model.WeddingProject
	projectID string
	want      string
	snap      snapshot
	charts    charts
	loaded    bool
	loading   bool
	err       error

	// UI state
	width     int
	height    int
	activeTab int
	showHelp  bool
	cursor    int

	// Quick-add form, nil when closed
	form        *taskForm
	confirmQuit bool

	toast      string
	toastError bool
	toastSeq   int

	// First-run setup (huh form)
	setupForm *huh.Form
	setupVals setupValues
	needSetup bool

	spinner spinner.Model
}

// NewApp creates a new TUI app model.
func NewApp(opts Options) App {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	q := opts.Queries
	rt := &runtime{
		queries: q,
		inbox:   make(chan tea.Msg, inboxSize),
		log:     log,
	}
	rt.prefetch = querycache.NewPrefetcher(q.Cache(), q.PrefetchPlan,
		opts.Config.Cache.PrefetchDelay.Duration, opts.Config.Cache.SecondaryDelay.Duration, log)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.Active.Accent).Background(theme.Active.Surface)

	want := opts.Project
	if want == "" {
		want = opts.Config.Client.DefaultProject
	}

	return App{
		rt:        rt,
		cfg:       opts.Config,
		now:       now,
		want:      want,
		needSetup: opts.NeedSetup,
		spinner:   sp,
		loading:   true,
	}
}

// Close stops prefetching, the live connection and any open form.
func (a App) Close() { a.rt.Close() }

// Init implements tea.Model.
func (a App) Init() tea.Cmd {
	cmds := []tea.Cmd{
		tea.EnableMouseCellMotion,
		loadProjectsCmd(a.rt.queries),
		waitInbox(a.rt.inbox),
		a.spinner.Tick,
		tickCmd(),
	}
	if a.needSetup {
		cmds = append(cmds, a.startSetup())
	}
	return tea.Batch(cmds...)
}

func (a *App) startSetup() tea.Cmd {
	a.setupVals = defaultSetupValues(a.cfg)
	a.setupForm = newSetupForm(&a.setupVals)
	if a.width > 0 {
		a.setupForm = a.setupForm.WithWidth(a.width).WithHeight(a.height)
	}
	return a.setupForm.Init()
}

// selectProject switches to the project at idx: placeholder data from the
// cache right away, a prefetch of the other lists, a fresh live
// connection and a load.
func (a *App) selectProject(idx int) tea.Cmd {
	if idx < 0 || idx >= len(a.projects) {
		return nil
	}
	id := a.projects[idx].ID.String()
	if id == a.projectID && a.loaded {
		return nil
	}
	a.closeForm()
	a.projectID = id
	a.cursor = 0
	a.err = nil

	if s, ok := peekSnapshot(a.rt.queries.Cache(), id); ok {
		a.setSnapshot(s)
	} else {
		a.loaded = false
	}

	a.rt.prefetch.Schedule(id)
	a.startLive(id)
	return a.reload()
}

func (a *App) reload() tea.Cmd {
	if a.projectID == "" {
		return nil
	}
	a.loading = true
	return loadSnapshotCmd(a.rt.queries, a.projectID, a.now)
}

func (a *App) setSnapshot(s snapshot) {
	a.snap = s
	a.charts = deriveCharts(s, a.now())
	a.loaded = true
	if n := a.listLen(); a.cursor >= n {
		a.cursor = max(n-1, 0)
	}
}

// startLive replaces the realtime connection with one for projectID.
func (a *App) startLive(projectID string) {
	rt := a.rt
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.cancelLive != nil {
		rt.cancelLive()
		rt.cancelLive = nil
		rt.live = nil
	}
	if !a.cfg.Realtime.Enabled {
		return
	}

	client := rt.queries.Client()
	live := realtime.New(realtime.Config{
		ServerURL:      client.BaseURL(),
		ProjectID:      projectID,
		ReconnectDelay: a.cfg.Realtime.ReconnectDelay.Duration,
		MaxAttempts:    a.cfg.Realtime.MaxAttempts,
	}, client.Tokens(),
		realtime.WithLogger(rt.log),
		realtime.WithCache(rt.queries.Cache()),
	)
	live.OnMessage(func(m events.Message) { rt.send(remoteMsg{msg: m}) })

	ctx, cancel := context.WithCancel(context.Background())
	rt.live = live
	rt.cancelLive = cancel
	rt.wg.Add(1)
	go func() {
		defer rt.wg.Done()
		err := live.Run(ctx)
		rt.send(liveStoppedMsg{projectID: projectID, err: err})
	}()
}

func (a *App) openForm() tea.Cmd {
	if a.projectID == "" || a.form != nil {
		return nil
	}
	rt := a.rt
	projectID := a.projectID
	a.form = newTaskForm(projectID, formDeps{
		saver:    rt.queries.Client(),
		cache:    rt.queries.Cache(),
		notify:   autosave.NotifierFunc(func(t autosave.Toast) { rt.send(toastMsg{toast: t}) }),
		onSaved:  func(autosave.Record) { rt.send(formSavedMsg{projectID: projectID}) },
		debounce: a.cfg.Autosave.Debounce.Duration,
		log:      rt.log,
	})
	rt.mu.Lock()
	rt.form = a.form
	rt.mu.Unlock()
	return a.form.title.Cursor.BlinkCmd()
}

func (a *App) closeForm() {
	if a.form == nil {
		return
	}
	a.form.close()
	a.form = nil
	a.confirmQuit = false
	a.rt.mu.Lock()
	a.rt.form = nil
	a.rt.mu.Unlock()
}

func (a *App) showToast(msg string, isErr bool, ttl time.Duration) tea.Cmd {
	a.toastSeq++
	a.toast = msg
	a.toastError = isErr
	if ttl <= 0 {
		return nil
	}
	seq := a.toastSeq
	return tea.Tick(ttl, func(time.Time) tea.Msg { return toastExpiredMsg{seq: seq} })
}

// quit leaves unless the open form has unsaved edits. Those are saved
// first; if that fails a second quit discards them.
func (a *App) quit() tea.Cmd {
	if a.form != nil && !a.confirmQuit {
		if warning, dirty := a.form.ctl.BeforeUnload(); dirty {
			a.confirmQuit = true
			a.showToast(warning, true, 0)
			return flushCmd(a.form, thenQuit)
		}
	}
	return tea.Quit
}

// Update implements tea.Model.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		if a.setupForm != nil {
			a.setupForm = a.setupForm.WithWidth(msg.Width).WithHeight(msg.Height)
		}
		return a, nil

	case tea.FocusMsg:
		// Coming back to the terminal refetches live feeds only; the
		// other tiers are still within their fresh windows or refetch on
		// their own schedule.
		if n := a.rt.queries.Cache().OnRefocus(); n > 0 {
			return a, a.reload()
		}
		return a, nil

	case tea.MouseMsg:
		if a.setupForm != nil || a.showHelp || !a.loaded {
			return a, nil
		}
		switch msg.Button {
		case tea.MouseButtonWheelUp:
			a.moveCursor(-1)
		case tea.MouseButtonWheelDown:
			a.moveCursor(1)
		case tea.MouseButtonLeft:
			if msg.Action == tea.MouseActionPress && msg.Y == 0 {
				if tab := a.tabAtX(msg.X); tab >= 0 {
					a.activeTab = tab
					a.cursor = 0
				}
			}
		}
		return a, nil

	case tea.KeyMsg:
		return a.updateKey(msg)

	case inboxMsg:
		next, cmd := a.Update(msg.msg)
		return next, tea.Batch(cmd, waitInbox(a.rt.inbox))

	case projectsLoadedMsg:
		a.loading = false
		if msg.err != nil {
			a.err = msg.err
			return a, nil
		}
		a.projects = msg.projects
		return a, a.selectProject(a.projectIndex(a.want))

	case snapshotMsg:
		if msg.projectID != a.projectID {
			return a, nil
		}
		a.loading = false
		if msg.err != nil {
			a.err = msg.err
			if !a.loaded {
				return a, nil
			}
			return a, a.showToast("Refresh failed: "+errorText(msg.err), true, 5*time.Second)
		}
		a.err = nil
		a.setSnapshot(msg.snap)
		return a, nil

	case remoteMsg:
		// The realtime client already invalidated the affected queries.
		if msg.msg.ProjectID != a.projectID {
			return a, nil
		}
		return a, a.reload()

	case liveStoppedMsg:
		if msg.projectID != a.projectID || errors.Is(msg.err, context.Canceled) {
			return a, nil
		}
		if errors.Is(msg.err, apiclient.ErrLoginRequired) {
			return a, a.showToast("Live updates stopped: sign in again", true, 0)
		}
		return a, a.showToast("Live updates unavailable", true, 5*time.Second)

	case toastMsg:
		return a, a.showToast(msg.toast.Message, msg.toast.Level == autosave.LevelError, msg.toast.TTL)

	case toastExpiredMsg:
		if msg.seq == a.toastSeq {
			a.toast = ""
			a.toastError = false
		}
		return a, nil

	case formSavedMsg:
		if msg.projectID != a.projectID {
			return a, nil
		}
		return a, a.reload()

	case flushedMsg:
		return a.handleFlushed(msg)

	case spinner.TickMsg:
		if !a.loaded || a.loading {
			var cmd tea.Cmd
			a.spinner, cmd = a.spinner.Update(msg)
			return a, cmd
		}
		return a, nil

	case tickMsg:
		// Re-render so autosave state and live status stay current.
		return a, tickCmd()
	}

	if a.setupForm != nil {
		return a.updateSetupForm(msg)
	}
	if a.form != nil {
		var cmd tea.Cmd
		a.form.title, cmd = a.form.title.Update(msg)
		return a, cmd
	}
	return a, nil
}

func (a App) handleFlushed(msg flushedMsg) (tea.Model, tea.Cmd) {
	if msg.form != a.form {
		return a, nil
	}
	quit := msg.then == thenQuit
	if msg.err == nil {
		switch msg.then {
		case thenQuit:
			return a, tea.Quit
		case thenClose:
			a.closeForm()
			return a, nil
		default:
			a.closeForm()
			return a, a.openForm()
		}
	}

	var text string
	if errors.Is(msg.err, autosave.ErrInvalid) {
		text = "Fix the form: " + strings.Join(fieldErrorList(a.form.ctl.FieldErrors()), ", ")
	} else {
		text = "Save failed: " + errorText(msg.err)
	}
	if quit {
		text += " (q again to discard)"
	}
	return a, a.showToast(text, true, 0)
}

func (a App) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if key == "ctrl+c" {
		return a, tea.Quit
	}

	if a.setupForm != nil {
		return a.updateSetupForm(msg)
	}

	if a.form != nil {
		switch key {
		case "esc":
			if !a.form.ctl.HasUnsavedChanges() {
				a.closeForm()
				return a, nil
			}
			return a, flushCmd(a.form, thenClose)
		case "enter":
			return a, flushCmd(a.form, thenNewTask)
		case "ctrl+q":
			if a.confirmQuit {
				return a, tea.Quit
			}
			return a, a.quit()
		}
		return a, a.form.update(msg)
	}

	if key == "?" {
		a.showHelp = !a.showHelp
		return a, nil
	}
	if a.showHelp {
		a.showHelp = false
		return a, nil
	}

	switch key {
	case "q":
		if a.confirmQuit {
			return a, tea.Quit
		}
		return a, a.quit()
	case "r":
		if a.projectID != "" {
			a.rt.queries.Cache().Invalidate(querycache.Keys.ProjectScope(a.projectID))
			a.rt.queries.Cache().Invalidate(querycache.Keys.DashboardScope(a.projectID))
			return a, a.reload()
		}
		return a, loadProjectsCmd(a.rt.queries)
	case "p":
		if len(a.projects) > 1 {
			return a, a.selectProject((a.projectIndex(a.projectID) + 1) % len(a.projects))
		}
		return a, nil
	case "n":
		if a.activeTab == tabTasks {
			return a, a.openForm()
		}
	case "j", "down":
		a.moveCursor(1)
		return a, nil
	case "k", "up":
		a.moveCursor(-1)
		return a, nil
	case "left":
		a.activeTab = (a.activeTab - 1 + len(components.Tabs)) % len(components.Tabs)
		a.cursor = 0
		return a, nil
	case "right":
		a.activeTab = (a.activeTab + 1) % len(components.Tabs)
		a.cursor = 0
		return a, nil
	}

	if len(msg.Runes) == 1 {
		if idx := components.TabIdxByKey(msg.Runes[0]); idx >= 0 {
			a.activeTab = idx
			a.cursor = 0
		}
	}
	return a, nil
}

func (a App) updateSetupForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	form, cmd := a.setupForm.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		a.setupForm = f
	}

	switch a.setupForm.State {
	case huh.StateCompleted:
		cfg := a.setupVals.apply(a.cfg)
		if err := config.Save(cfg); err != nil {
			a.rt.log.Warn("saving config", zap.Error(err))
		}
		a.cfg = cfg
		theme.SetActive(cfg.Appearance.Theme)
		a.needSetup = false
		a.setupForm = nil
		return a, nil
	case huh.StateAborted:
		a.needSetup = false
		a.setupForm = nil
		return a, nil
	}
	return a, cmd
}

// projectIndex finds a project by id or case-insensitive name, defaulting
// to the first.
func (a App) projectIndex(want string) int {
	if want == "" {
		return 0
	}
	for i, p := range a.projects {
		if p.ID.String() == want || strings.EqualFold(p.Name, want) {
			return i
		}
	}
	return 0
}

func (a App) listLen() int {
	switch a.activeTab {
	case tabTasks:
		return len(a.snap.Tasks)
	case tabBudget:
		return len(a.snap.Budget)
	case tabGuests:
		return len(a.snap.Guests)
	case tabVendors:
		return len(a.snap.Vendors)
	case tabActivity:
		return len(a.snap.Activities)
	}
	return 0
}

func (a *App) moveCursor(delta int) {
	n := a.listLen()
	a.cursor = max(0, min(a.cursor+delta, n-1))
}

func (a App) contentWidth() int {
	return min(a.width, maxContentWidth)
}

func (a App) isCompactLayout() bool {
	return a.contentWidth() < compactWidth
}

// tabAtX returns the tab index at the given X coordinate, or -1 if none.
// Hitboxes are derived from the same width rules used by RenderTabBar.
func (a App) tabAtX(x int) int {
	pos := 0
	for i, tab := range components.Tabs {
		tabW := components.TabVisualWidth(tab, i == a.activeTab)
		if x >= pos && x < pos+tabW {
			return i
		}
		pos += tabW
		// Separator is one column between tabs.
		if i < len(components.Tabs)-1 {
			pos++
		}
	}
	return -1
}

func errorText(err error) string {
	var apiErr *apiclient.APIError
	switch {
	case errors.Is(err, apiclient.ErrLoginRequired):
		return "not signed in, run `planhaus login`"
	case errors.As(err, &apiErr):
		return apiErr.Message
	case errors.Is(err, context.DeadlineExceeded):
		return "server did not respond"
	}
	return err.Error()
}

func fieldErrorList(errs map[string]string) []string {
	out := make([]string, 0, len(errs))
	for _, field := range slices.Sorted(maps.Keys(errs)) {
		out = append(out, errs[field])
	}
	return out
}
