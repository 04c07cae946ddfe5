package tui

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theirongolddev/planhaus/internal/apiclient"
	"github.com/theirongolddev/planhaus/internal/autosave"
	"github.com/theirongolddev/planhaus/internal/config"
	"github.com/theirongolddev/planhaus/internal/model"
	"github.com/theirongolddev/planhaus/internal/querycache"
	"github.com/theirongolddev/planhaus/internal/tui/components"
)

var (
	testProjectID = uuid.MustParse("2b1f7d3e-4c55-4a8e-9d61-0c7f8e1a2b3c")
	testNow       = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
)

// fakeAPI serves one project and records task writes.
type fakeAPI struct {
	mu    sync.Mutex
	tasks []model.Task
	posts []map[string]any
	hits  map[string]int
}

func (f *fakeAPI) hit(path string) {
	f.mu.Lock()
	f.hits[path]++
	f.mu.Unlock()
}

func (f *fakeAPI) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[path]
}

func (f *fakeAPI) handler() http.Handler {
	wedding := testNow.AddDate(0, 0, 100)
	project := model.WeddingProject{
		ID:          testProjectID,
		Name:        "Ava & Sam",
		WeddingDate: &wedding,
		BudgetTotal: "30000",
		CreatedAt:   testNow.AddDate(0, 0, -10),
	}
	pid := testProjectID.String()
	write := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}
	empty := func(w http.ResponseWriter, r *http.Request) {
		f.hit(r.URL.Path)
		_, _ = w.Write([]byte(`[]`))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/projects", func(w http.ResponseWriter, r *http.Request) {
		f.hit(r.URL.Path)
		write(w, []model.WeddingProject{project})
	})
	mux.HandleFunc("GET /api/projects/"+pid, func(w http.ResponseWriter, r *http.Request) {
		f.hit(r.URL.Path)
		write(w, project)
	})
	mux.HandleFunc("GET /api/dashboard/stats", func(w http.ResponseWriter, r *http.Request) {
		f.hit(r.URL.Path)
		f.mu.Lock()
		n := len(f.tasks)
		f.mu.Unlock()
		write(w, model.DashboardStats{
			ProjectID:        pid,
			Tasks:            model.TaskStats{Total: n},
			Budget:           model.BudgetTotals{Total: 30000, Spent: 12000},
			DaysUntilWedding: 100,
		})
	})
	mux.HandleFunc("GET /api/projects/"+pid+"/tasks", func(w http.ResponseWriter, r *http.Request) {
		f.hit(r.URL.Path)
		f.mu.Lock()
		defer f.mu.Unlock()
		write(w, f.tasks)
	})
	mux.HandleFunc("POST /api/projects/"+pid+"/tasks", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		defer f.mu.Unlock()
		f.posts = append(f.posts, body)
		title, _ := body["title"].(string)
		task := model.Task{ID: uuid.New(), ProjectID: testProjectID, Title: title, Status: model.TaskPending, Version: 1}
		f.tasks = append(f.tasks, task)
		w.WriteHeader(http.StatusCreated)
		write(w, task)
	})
	for _, p := range []string{"guests", "budget", "vendors", "activities", "collaborators"} {
		mux.HandleFunc("GET /api/projects/"+pid+"/"+p, empty)
	}
	return mux
}

func newTestApp(t *testing.T) (App, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{hits: map[string]int{}}
	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)

	cfg := config.DefaultConfig()
	cfg.Realtime.Enabled = false
	cfg.Cache.PrefetchDelay = config.Duration{Duration: time.Hour}
	cfg.Autosave.Debounce = config.Duration{Duration: time.Hour}

	client := apiclient.New(srv.URL, apiclient.NewMemoryTokenStore())
	q := apiclient.NewQueries(client, querycache.New())
	app := NewApp(Options{Queries: q, Config: cfg, Now: func() time.Time { return testNow }})
	t.Cleanup(app.Close)
	return app, api
}

// step feeds msg to the model and runs the returned command synchronously,
// feeding its result back, until no command is left. Batches are walked
// depth first; ticks and the inbox wait are skipped.
func step(t *testing.T, m tea.Model, msg tea.Msg) App {
	t.Helper()
	next, cmd := m.Update(msg)
	return drain(t, next.(App), cmd)
}

func drain(t *testing.T, a App, cmd tea.Cmd) App {
	t.Helper()
	if cmd == nil {
		return a
	}
	done := make(chan tea.Msg, 1)
	go func() { done <- cmd() }()
	var msg tea.Msg
	select {
	case msg = <-done:
	case <-time.After(200 * time.Millisecond):
		// A timer or a blocking wait; not part of the synchronous flow.
		return a
	}
	switch msg := msg.(type) {
	case nil:
		return a
	case tea.BatchMsg:
		for _, c := range msg {
			a = drain(t, a, c)
		}
		return a
	case tea.QuitMsg:
		a.toast = "quit"
		return a
	}
	return step(t, a, msg)
}

func loadedApp(t *testing.T) (App, *fakeAPI) {
	app, api := newTestApp(t)
	a := step(t, app, tea.WindowSizeMsg{Width: 140, Height: 45})
	a = drain(t, a, loadProjectsCmd(a.rt.queries))
	require.True(t, a.loaded, "snapshot should be loaded")
	return a, api
}

func TestLoadsFirstProjectAndRendersDashboard(t *testing.T) {
	a, api := loadedApp(t)

	assert.Equal(t, testProjectID.String(), a.projectID)
	assert.Equal(t, 100, a.snap.Stats.DaysUntilWedding)
	assert.Equal(t, "under", string(a.charts.progress.Status))
	assert.Equal(t, 1, api.count("/api/dashboard/stats"))

	view := a.View()
	assert.Contains(t, view, "Ava & Sam")
	assert.Contains(t, view, "100 days")
	assert.Contains(t, view, "Budget")
}

func TestReloadServesFreshEntriesFromCache(t *testing.T) {
	a, api := loadedApp(t)

	a = drain(t, a, a.reload())
	assert.Equal(t, 1, api.count("/api/projects/"+testProjectID.String()+"/tasks"),
		"fresh tasks should not be refetched")

	a = step(t, a, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	assert.Equal(t, 2, api.count("/api/projects/"+testProjectID.String()+"/tasks"),
		"manual refresh invalidates the project")
	assert.False(t, a.loading)
}

func TestFocusRefetchesRealtimeQueriesOnly(t *testing.T) {
	a, api := loadedApp(t)
	pid := testProjectID.String()

	a = step(t, a, tea.FocusMsg{})
	assert.Equal(t, 2, api.count("/api/projects/"+pid+"/activities"))
	assert.Equal(t, 2, api.count("/api/projects/"+pid+"/collaborators"))
	assert.Equal(t, 1, api.count("/api/projects/"+pid+"/tasks"))
	assert.Equal(t, 1, api.count("/api/dashboard/stats"))
	_ = a
}

func TestQuickAddTaskSavesOnEnter(t *testing.T) {
	a, api := loadedApp(t)

	a = step(t, a, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'t'}})
	require.Equal(t, tabTasks, a.activeTab)
	a = step(t, a, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'n'}})
	require.NotNil(t, a.form)
	first := a.form

	for _, r := range "Book florist" {
		a = step(t, a, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	a = step(t, a, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, autosave.Dirty, a.form.ctl.State())

	a = step(t, a, tea.KeyMsg{Type: tea.KeyEnter})

	api.mu.Lock()
	require.Len(t, api.posts, 1)
	assert.Equal(t, "Book florist", api.posts[0]["title"])
	assert.Equal(t, "high", api.posts[0]["priority"])
	assert.Equal(t, "pending", api.posts[0]["status"])
	api.mu.Unlock()

	require.NotNil(t, a.form)
	assert.NotSame(t, first, a.form, "a saved task opens a fresh form")
	assert.Empty(t, a.form.title.Value())
}

func TestQuickAddRejectsEmptyTitle(t *testing.T) {
	a, api := loadedApp(t)

	a = step(t, a, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'t'}})
	a = step(t, a, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'n'}})
	a = step(t, a, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{' '}})
	a = step(t, a, tea.KeyMsg{Type: tea.KeyEnter})

	assert.Contains(t, a.toast, "title is required")
	assert.True(t, a.toastError)
	api.mu.Lock()
	assert.Empty(t, api.posts)
	api.mu.Unlock()
}

func TestQuitFlushesUnsavedForm(t *testing.T) {
	a, api := loadedApp(t)

	a = step(t, a, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'t'}})
	a = step(t, a, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'n'}})
	for _, r := range "Cake tasting" {
		a = step(t, a, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}

	a = step(t, a, tea.KeyMsg{Type: tea.KeyCtrlQ})
	assert.Equal(t, "quit", a.toast, "quit after the pending edit is saved")

	api.mu.Lock()
	defer api.mu.Unlock()
	require.Len(t, api.posts, 1)
	assert.Equal(t, "Cake tasting", api.posts[0]["title"])
}

func TestToastExpiresOnlyForLatest(t *testing.T) {
	a, _ := newTestApp(t)
	a.showToast("first", false, time.Second)
	a.showToast("second", false, time.Second)

	next, _ := a.Update(toastExpiredMsg{seq: 1})
	a = next.(App)
	assert.Equal(t, "second", a.toast)

	next, _ = a.Update(toastExpiredMsg{seq: 2})
	assert.Empty(t, next.(App).toast)
}

func TestRemoteActivityForOtherProjectIsIgnored(t *testing.T) {
	a, _ := loadedApp(t)
	_, cmd := a.Update(remoteMsg{})
	assert.Nil(t, cmd)
}

func TestTabAtXMatchesTabWidths(t *testing.T) {
	for active := range components.Tabs {
		a := App{activeTab: active}
		pos := 0
		for i, tab := range components.Tabs {
			w := components.TabVisualWidth(tab, i == active)
			if got := a.tabAtX(pos + w/2); got != i {
				t.Fatalf("active=%d x=%d -> tab=%d, want %d", active, pos+w/2, got, i)
			}
			pos += w + 1 // separator
		}
	}
}

func TestListWindowKeepsCursorVisible(t *testing.T) {
	start, end := listWindow(100, 50, 10)
	assert.Equal(t, 10, end-start)
	assert.True(t, start <= 50 && 50 < end)

	start, end = listWindow(5, 4, 10)
	assert.Equal(t, 0, start)
	assert.Equal(t, 5, end)
}

func TestSetupValuesApply(t *testing.T) {
	cfg := config.DefaultConfig()
	vals := defaultSetupValues(cfg)
	vals.serverURL = " https://plan.example.com/ "
	vals.theme = "terminal"
	vals.realtime = false

	got := vals.apply(cfg)
	assert.Equal(t, "https://plan.example.com", got.Client.ServerURL)
	assert.Equal(t, "terminal", got.Appearance.Theme)
	assert.False(t, got.Realtime.Enabled)

	assert.NoError(t, validateServerURL("http://127.0.0.1:8686"))
	assert.Error(t, validateServerURL("127.0.0.1:8686"))
}
