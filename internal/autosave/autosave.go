// Package autosave persists form edits in the background. A Controller
// debounces field changes into create or update calls, runs at most one
// save at a time and queues a follow-up when edits land mid-save.
package autosave

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/theirongolddev/planhaus/internal/querycache"
)

// State is the controller's save state.
type State int

const (
	Clean State = iota
	Dirty
	Saving
	Saved
	Error
)

func (s State) String() string {
	switch s {
	case Clean:
		return "clean"
	case Dirty:
		return "dirty"
	case Saving:
		return "saving"
	case Saved:
		return "saved"
	case Error:
		return "error"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

const (
	// DefaultDebounce is the quiet period after the last edit before saving.
	DefaultDebounce = 2000 * time.Millisecond
	// SuccessToastTTL is how long the saved toast stays up.
	SuccessToastTTL = 2 * time.Second
	// UnloadWarning is shown when leaving with unsaved changes.
	UnloadWarning = "You have unsaved changes. Leave anyway?"
)

// ErrInvalid is returned by Flush when the form does not validate.
var ErrInvalid = errors.New("autosave: form has validation errors")

// ErrClosed is returned by Flush after Close.
var ErrClosed = errors.New("autosave: controller closed")

// Record is a form payload or a server response body.
type Record = map[string]any

// Saver persists records. Create posts to path; Update patches path.
type Saver interface {
	Create(ctx context.Context, path string, body Record) (Record, error)
	Update(ctx context.Context, path string, body Record) (Record, error)
}

// Invalidator marks cached queries stale. *querycache.Cache satisfies it.
type Invalidator interface {
	Invalidate(prefix querycache.Key) int
}

// Level is a toast's severity.
type Level int

const (
	LevelSuccess Level = iota
	LevelError
)

// Toast is a user notification. A zero TTL stays until dismissed.
type Toast struct {
	Level   Level
	Message string
	TTL     time.Duration
}

// Notifier shows toasts.
type Notifier interface {
	Notify(Toast)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Toast)

func (f NotifierFunc) Notify(t Toast) { f(t) }

// Config describes one form.
type Config struct {
	// ID of an existing record; empty means the first save creates it.
	ID string
	// Version of the existing record, echoed back on update.
	Version int
	// Initial field values.
	Initial Record

	CreatePath string
	// UpdatePath contains an {id} placeholder.
	UpdatePath string

	Debounce time.Duration

	// Validate returns field errors; an empty result means valid.
	Validate func(Record) map[string]string
	// Transform rewrites the payload before it is sent. Returning nil sends
	// the form values unchanged.
	Transform func(Record) Record

	InvalidateKeys []querycache.Key
	SuccessMessage string

	OnSaved func(Record)
	OnError func(error)
}

// Controller is the autosave state machine for one form.
type Controller struct {
	cfg    Config
	saver  Saver
	cache  Invalidator
	notify Notifier
	log    *zap.Logger
	now    func() time.Time

	mu        sync.Mutex
	values    Record
	id        string
	version   int
	rev       uint64 // bumped on every edit
	savedRev  uint64
	failedRev uint64 // revision rejected permanently; 0 when none
	state     State
	inflight  bool
	idle      chan struct{} // closed when the in-flight save finishes
	queued    bool
	timer     *time.Timer
	lastErr   error
	fieldErrs map[string]string
	savedAt   time.Time
	closed    bool
	wg        sync.WaitGroup
}

// Option configures a Controller.
type Option func(*Controller)

// WithInvalidator sets the cache invalidated after each successful save.
func WithInvalidator(i Invalidator) Option {
	return func(c *Controller) { c.cache = i }
}

// WithNotifier sets the toast sink.
func WithNotifier(n Notifier) Option {
	return func(c *Controller) { c.notify = n }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.log = l
		}
	}
}

// WithClock overrides time.Now for save timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// New returns a Clean controller.
func New(cfg Config, saver Saver, opts ...Option) *Controller {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.SuccessMessage == "" {
		cfg.SuccessMessage = "Changes saved"
	}
	c := &Controller{
		cfg:     cfg,
		saver:   saver,
		notify:  NotifierFunc(func(Toast) {}),
		log:     zap.NewNop(),
		now:     time.Now,
		values:  maps.Clone(cfg.Initial),
		id:      cfg.ID,
		version: cfg.Version,
	}
	if c.values == nil {
		c.values = Record{}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetField records an edit and re-arms the debounce timer.
func (c *Controller) SetField(name string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.values[name] = value
	c.rev++
	c.fieldErrs = nil
	if !c.inflight {
		c.state = Dirty
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.cfg.Debounce, func() { c.trigger(false) })
}

// Blur saves immediately, as when a field loses focus.
func (c *Controller) Blur() { c.trigger(false) }

// Save saves immediately, including a revision the server rejected before.
func (c *Controller) Save() { c.trigger(true) }

func (c *Controller) trigger(manual bool) {
	c.mu.Lock()
	job, ok := c.startLocked(manual)
	if ok {
		c.wg.Add(1)
	}
	c.mu.Unlock()
	if !ok {
		return
	}
	go func() {
		defer c.wg.Done()
		c.run(context.Background(), job)
	}()
}

type saveJob struct {
	rev     uint64
	id      string
	version int
	body    Record
}

// startLocked decides whether a save may begin and marks it in flight.
func (c *Controller) startLocked(manual bool) (saveJob, bool) {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.closed || c.rev == c.savedRev {
		return saveJob{}, false
	}
	if c.inflight {
		c.queued = true
		return saveJob{}, false
	}
	if !manual && c.failedRev == c.rev {
		return saveJob{}, false
	}
	if errs := c.validateLocked(); len(errs) > 0 {
		c.fieldErrs = errs
		c.log.Debug("autosave skipped, form invalid", zap.Int("fields", len(errs)))
		return saveJob{}, false
	}
	c.fieldErrs = nil
	c.inflight = true
	c.idle = make(chan struct{})
	c.state = Saving
	return saveJob{
		rev:     c.rev,
		id:      c.id,
		version: c.version,
		body:    maps.Clone(c.values),
	}, true
}

func (c *Controller) validateLocked() map[string]string {
	if c.cfg.Validate == nil {
		return nil
	}
	return c.cfg.Validate(maps.Clone(c.values))
}

func (c *Controller) run(ctx context.Context, job saveJob) error {
	body := job.body
	if c.cfg.Transform != nil {
		// a nil result means nothing to rewrite
		if out := c.cfg.Transform(body); out != nil {
			body = out
		}
	}

	var (
		resp Record
		err  error
	)
	if job.id != "" {
		if job.version > 0 {
			body["version"] = job.version
		}
		path := strings.ReplaceAll(c.cfg.UpdatePath, "{id}", job.id)
		resp, err = c.saver.Update(ctx, path, body)
	} else {
		resp, err = c.saver.Create(ctx, c.cfg.CreatePath, body)
	}

	c.mu.Lock()
	c.inflight = false
	close(c.idle)
	if err == nil {
		c.savedRev = job.rev
		c.failedRev = 0
		c.lastErr = nil
		c.savedAt = c.now()
		c.adoptLocked(resp)
		if c.rev == c.savedRev {
			c.state = Saved
		} else {
			c.state = Dirty
		}
	} else {
		c.state = Error
		c.lastErr = err
		if Permanent(err) {
			c.failedRev = job.rev
		}
	}
	followUp := c.queued
	c.queued = false
	c.mu.Unlock()

	if err == nil {
		c.log.Debug("autosave succeeded", zap.String("id", c.ID()), zap.Uint64("rev", job.rev))
		if c.cache != nil {
			for _, k := range c.cfg.InvalidateKeys {
				c.cache.Invalidate(k)
			}
		}
		c.notify.Notify(Toast{Level: LevelSuccess, Message: c.cfg.SuccessMessage, TTL: SuccessToastTTL})
		if c.cfg.OnSaved != nil {
			c.cfg.OnSaved(resp)
		}
	} else {
		c.log.Warn("autosave failed", zap.Uint64("rev", job.rev), zap.Bool("permanent", Permanent(err)), zap.Error(err))
		c.notify.Notify(Toast{Level: LevelError, Message: "Save failed: " + err.Error()})
		if c.cfg.OnError != nil {
			c.cfg.OnError(err)
		}
	}

	if followUp {
		c.trigger(false)
	}
	return err
}

func (c *Controller) adoptLocked(resp Record) {
	if resp == nil {
		return
	}
	if id, ok := resp["id"].(string); ok && id != "" {
		c.id = id
	}
	switch v := resp["version"].(type) {
	case float64:
		c.version = int(v)
	case int:
		c.version = v
	}
}

// Flush waits for any in-flight save, then saves pending changes in the
// calling goroutine. It returns nil when nothing is left unsaved.
func (c *Controller) Flush(ctx context.Context) error {
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return ErrClosed
		}
		if c.inflight {
			idle := c.idle
			c.mu.Unlock()
			select {
			case <-idle:
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if c.rev == c.savedRev {
			c.mu.Unlock()
			return nil
		}
		job, ok := c.startLocked(true)
		c.queued = false
		fieldErrs := c.fieldErrs
		c.mu.Unlock()
		if !ok {
			if len(fieldErrs) > 0 {
				return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(slices.Sorted(maps.Keys(fieldErrs)), ", "))
			}
			return nil
		}
		if err := c.run(ctx, job); err != nil {
			return err
		}
	}
}

// BeforeUnload reports whether leaving should be blocked, with the warning
// to show.
func (c *Controller) BeforeUnload() (string, bool) {
	if c.HasUnsavedChanges() {
		return UnloadWarning, true
	}
	return "", false
}

// HasUnsavedChanges reports whether edits exist that no save has persisted.
func (c *Controller) HasUnsavedChanges() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rev != c.savedRev
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ID returns the record id, set once the first create succeeds.
func (c *Controller) ID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

// Version returns the last version the server reported.
func (c *Controller) Version() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

// Values returns a copy of the current form values.
func (c *Controller) Values() Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maps.Clone(c.values)
}

// Err returns the last save error, cleared by a successful save.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// FieldErrors returns the validation errors that blocked the last trigger.
func (c *Controller) FieldErrors() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maps.Clone(c.fieldErrs)
}

// SavedAt returns when the last successful save finished.
func (c *Controller) SavedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.savedAt
}

// Close stops the debounce timer and waits for background saves. Pending
// edits are dropped; call Flush first to keep them.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()
	c.wg.Wait()
}

// StatusCoder is implemented by errors that carry an HTTP status.
type StatusCoder interface {
	StatusCode() int
}

// Permanent reports whether resending the same payload cannot succeed:
// client errors other than timeouts and rate limiting.
func Permanent(err error) bool {
	var sc StatusCoder
	if !errors.As(err, &sc) {
		return false
	}
	code := sc.StatusCode()
	switch code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return false
	}
	return code >= 400 && code < 500
}
