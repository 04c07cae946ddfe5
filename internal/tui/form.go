package tui

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/theirongolddev/planhaus/internal/apiclient"
	"github.com/theirongolddev/planhaus/internal/autosave"
	"github.com/theirongolddev/planhaus/internal/model"
	"github.com/theirongolddev/planhaus/internal/querycache"
)

const (
	maxTitleLen  = 200
	flushTimeout = 10 * time.Second
)

var priorities = []model.Priority{model.PriorityMedium, model.PriorityHigh, model.PriorityLow}

// taskForm is the quick-add task form. Edits autosave after the debounce
// quiet period; the first save creates the task and later ones patch it.
type taskForm struct {
	projectID string
	title     textinput.Model
	priority  int
	ctl       *autosave.Controller
}

type formDeps struct {
	saver    autosave.Saver
	cache    *querycache.Cache
	notify   autosave.Notifier
	onSaved  func(autosave.Record)
	debounce time.Duration
	log      *zap.Logger
}

func newTaskForm(projectID string, deps formDeps) *taskForm {
	ti := textinput.New()
	ti.Placeholder = "New task title"
	ti.CharLimit = maxTitleLen
	ti.Width = 50
	ti.Focus()

	log := deps.log
	ctl := autosave.New(autosave.Config{
		Initial:    autosave.Record{"priority": string(priorities[0])},
		CreatePath: apiclient.CollectionPath(projectID, apiclient.EntityTasks),
		UpdatePath: apiclient.ItemPath(projectID, apiclient.EntityTasks, "{id}"),
		Debounce:   deps.debounce,
		Validate:   validateTask,
		Transform:  normalizeTask,
		InvalidateKeys: []querycache.Key{
			querycache.Keys.Tasks(projectID),
			querycache.Keys.DashboardScope(projectID),
			querycache.Keys.Activities(projectID),
		},
		SuccessMessage: "Task saved",
		OnSaved:        deps.onSaved,
		OnError: func(err error) {
			log.Warn("task autosave failed", zap.String("project", projectID), zap.Error(err))
		},
	}, deps.saver,
		autosave.WithInvalidator(deps.cache),
		autosave.WithNotifier(deps.notify),
		autosave.WithLogger(log),
	)

	return &taskForm{projectID: projectID, title: ti, ctl: ctl}
}

func validateTask(r autosave.Record) map[string]string {
	errs := map[string]string{}
	title, _ := r["title"].(string)
	switch title = strings.TrimSpace(title); {
	case title == "":
		errs["title"] = "title is required"
	case utf8.RuneCountInString(title) > maxTitleLen:
		errs["title"] = "title is too long"
	}
	if p, ok := r["priority"].(string); ok {
		if _, valid := model.ParsePriority(p); !valid {
			errs["priority"] = "unknown priority"
		}
	}
	return errs
}

func normalizeTask(r autosave.Record) autosave.Record {
	out := make(autosave.Record, len(r)+1)
	for k, v := range r {
		out[k] = v
	}
	if title, ok := out["title"].(string); ok {
		out["title"] = strings.TrimSpace(title)
	}
	if p, ok := out["priority"].(string); ok {
		if parsed, valid := model.ParsePriority(p); valid {
			out["priority"] = string(parsed)
		}
	}
	if _, ok := out["status"]; !ok {
		out["status"] = string(model.TaskPending)
	}
	return out
}

// update forwards a key to the title input and records the edit.
func (f *taskForm) update(msg tea.KeyMsg) tea.Cmd {
	if msg.String() == "tab" {
		f.priority = (f.priority + 1) % len(priorities)
		f.ctl.SetField("priority", string(priorities[f.priority]))
		return nil
	}
	before := f.title.Value()
	var cmd tea.Cmd
	f.title, cmd = f.title.Update(msg)
	if v := f.title.Value(); v != before {
		f.ctl.SetField("title", v)
	}
	return cmd
}

func (f *taskForm) close() { f.ctl.Close() }

// afterFlush is what happens once the form's edits are saved.
type afterFlush int

const (
	thenNewTask afterFlush = iota
	thenClose
	thenQuit
)

type flushedMsg struct {
	form *taskForm
	then afterFlush
	err  error
}

// flushCmd saves the form now and waits for the result.
func flushCmd(f *taskForm, then afterFlush) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		defer cancel()
		return flushedMsg{form: f, then: then, err: f.ctl.Flush(ctx)}
	}
}
