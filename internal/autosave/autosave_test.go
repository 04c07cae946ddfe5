package autosave

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/theirongolddev/planhaus/internal/querycache"
)

type call struct {
	method string
	path   string
	body   Record
}

type fakeSaver struct {
	mu    sync.Mutex
	calls []call
	errs  []error         // consumed per call
	gate  chan struct{}   // when set, each call waits for a receive
	seen  chan struct{}   // signalled when a call starts
	resp  func(int) Record
}

func newFakeSaver() *fakeSaver {
	return &fakeSaver{seen: make(chan struct{}, 16)}
}

func (f *fakeSaver) do(ctx context.Context, method, path string, body Record) (Record, error) {
	f.mu.Lock()
	n := len(f.calls)
	f.calls = append(f.calls, call{method, path, body})
	var err error
	if len(f.errs) > 0 {
		err, f.errs = f.errs[0], f.errs[1:]
	}
	gate := f.gate
	f.mu.Unlock()
	f.seen <- struct{}{}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if f.resp != nil {
		return f.resp(n), nil
	}
	return Record{"id": "rec-1", "version": float64(n + 1)}, nil
}

func (f *fakeSaver) Create(ctx context.Context, path string, body Record) (Record, error) {
	return f.do(ctx, "POST", path, body)
}

func (f *fakeSaver) Update(ctx context.Context, path string, body Record) (Record, error) {
	return f.do(ctx, "PATCH", path, body)
}

func (f *fakeSaver) Calls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

type statusErr int

func (e statusErr) Error() string   { return fmt.Sprintf("status %d", int(e)) }
func (e statusErr) StatusCode() int { return int(e) }

type toasts struct {
	mu  sync.Mutex
	all []Toast
}

func (t *toasts) Notify(x Toast) {
	t.mu.Lock()
	t.all = append(t.all, x)
	t.mu.Unlock()
}

func (t *toasts) List() []Toast {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Toast(nil), t.all...)
}

type recordingInvalidator struct {
	mu   sync.Mutex
	keys []string
}

func (r *recordingInvalidator) Invalidate(k querycache.Key) int {
	r.mu.Lock()
	r.keys = append(r.keys, k.String())
	r.mu.Unlock()
	return 1
}

func taskConfig() Config {
	return Config{
		CreatePath:     "/api/projects/p1/tasks",
		UpdatePath:     "/api/projects/p1/tasks/{id}",
		Debounce:       20 * time.Millisecond,
		InvalidateKeys: []querycache.Key{querycache.Keys.Tasks("p1"), querycache.Keys.DashboardScope("p1")},
		Validate: func(r Record) map[string]string {
			if title, _ := r["title"].(string); title == "" {
				return map[string]string{"title": "required"}
			}
			return nil
		},
	}
}

func waitState(t *testing.T, c *Controller, want State) {
	t.Helper()
	assert.Eventually(t, func() bool { return c.State() == want }, time.Second, 2*time.Millisecond,
		"want state %s, have %s", want, c.State())
}

func TestDebounceCoalescesEdits(t *testing.T) {
	defer goleak.VerifyNone(t)

	saver := newFakeSaver()
	inv := &recordingInvalidator{}
	ts := &toasts{}
	c := New(taskConfig(), saver, WithInvalidator(inv), WithNotifier(ts))
	defer c.Close()

	assert.Equal(t, Clean, c.State())
	for _, s := range []string{"B", "Bo", "Boo", "Book DJ"} {
		c.SetField("title", s)
	}
	assert.Equal(t, Dirty, c.State())
	assert.Empty(t, saver.Calls(), "no call before the debounce elapses")

	waitState(t, c, Saved)
	calls := saver.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "POST", calls[0].method)
	assert.Equal(t, "/api/projects/p1/tasks", calls[0].path)
	assert.Equal(t, "Book DJ", calls[0].body["title"])

	assert.Equal(t, "rec-1", c.ID())
	assert.False(t, c.HasUnsavedChanges())
	assert.False(t, c.SavedAt().IsZero())
	assert.ElementsMatch(t, []string{"project/p1/tasks", "dashboard/p1"}, inv.keys)

	list := ts.List()
	require.Len(t, list, 1)
	assert.Equal(t, LevelSuccess, list[0].Level)
	assert.Equal(t, SuccessToastTTL, list[0].TTL)
}

func TestUpdateUsesIDAndVersion(t *testing.T) {
	defer goleak.VerifyNone(t)

	saver := newFakeSaver()
	cfg := taskConfig()
	cfg.ID = "t-9"
	cfg.Version = 3
	cfg.Initial = Record{"title": "Cake tasting"}
	cfg.Transform = func(r Record) Record {
		r["projectId"] = "p1"
		return r
	}
	c := New(cfg, saver)
	defer c.Close()

	c.SetField("priority", "high")
	c.Blur()
	waitState(t, c, Saved)

	calls := saver.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "PATCH", calls[0].method)
	assert.Equal(t, "/api/projects/p1/tasks/t-9", calls[0].path)
	assert.Equal(t, 3, calls[0].body["version"])
	assert.Equal(t, "p1", calls[0].body["projectId"])
	assert.Equal(t, 1, c.Version())
}

func TestNilTransformResultSendsFormValues(t *testing.T) {
	defer goleak.VerifyNone(t)

	saver := newFakeSaver()
	cfg := taskConfig()
	cfg.ID = "t-9"
	cfg.Version = 3
	cfg.Initial = Record{"title": "Cake tasting"}
	cfg.Debounce = time.Hour
	cfg.Transform = func(Record) Record { return nil }
	c := New(cfg, saver)
	defer c.Close()

	c.SetField("priority", "high")
	require.NoError(t, c.Flush(context.Background()))

	calls := saver.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "PATCH", calls[0].method)
	assert.Equal(t, "Cake tasting", calls[0].body["title"])
	assert.Equal(t, "high", calls[0].body["priority"])
	assert.Equal(t, 3, calls[0].body["version"])
	assert.Equal(t, Saved, c.State())
}

func TestCreatedIDIsAdopted(t *testing.T) {
	defer goleak.VerifyNone(t)

	saver := newFakeSaver()
	c := New(taskConfig(), saver)
	defer c.Close()

	c.SetField("title", "Venue")
	c.Blur()
	waitState(t, c, Saved)
	c.SetField("title", "Venue visit")
	c.Blur()
	assert.Eventually(t, func() bool { return len(saver.Calls()) == 2 }, time.Second, 2*time.Millisecond)
	waitState(t, c, Saved)

	calls := saver.Calls()
	assert.Equal(t, "PATCH", calls[1].method)
	assert.Equal(t, "/api/projects/p1/tasks/rec-1", calls[1].path)
}

func TestInvalidFormDoesNotSave(t *testing.T) {
	defer goleak.VerifyNone(t)

	saver := newFakeSaver()
	c := New(taskConfig(), saver)
	defer c.Close()

	c.SetField("title", "")
	c.Blur()
	time.Sleep(40 * time.Millisecond)
	assert.Empty(t, saver.Calls())
	assert.Equal(t, Dirty, c.State())
	assert.Equal(t, map[string]string{"title": "required"}, c.FieldErrors())

	err := c.Flush(context.Background())
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestEditDuringSaveQueuesFollowUp(t *testing.T) {
	defer goleak.VerifyNone(t)

	saver := newFakeSaver()
	saver.gate = make(chan struct{})
	c := New(taskConfig(), saver)
	defer c.Close()

	c.SetField("title", "first")
	c.Blur()
	<-saver.seen
	assert.Equal(t, Saving, c.State())

	c.SetField("title", "second")
	c.Blur()
	assert.Len(t, saver.Calls(), 1, "single flight")

	saver.gate <- struct{}{}
	<-saver.seen
	saver.gate <- struct{}{}
	waitState(t, c, Saved)

	calls := saver.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "second", calls[1].body["title"])
	assert.Equal(t, "PATCH", calls[1].method)
	assert.False(t, c.HasUnsavedChanges())
}

func TestFailureKeepsDirtyAndNotifies(t *testing.T) {
	defer goleak.VerifyNone(t)

	saver := newFakeSaver()
	saver.errs = []error{errors.New("connection reset")}
	ts := &toasts{}
	var cbErr error
	var cbMu sync.Mutex
	cfg := taskConfig()
	cfg.OnError = func(err error) {
		cbMu.Lock()
		cbErr = err
		cbMu.Unlock()
	}
	c := New(cfg, saver, WithNotifier(ts))
	defer c.Close()

	c.SetField("title", "Florist")
	c.Blur()
	waitState(t, c, Error)
	assert.True(t, c.HasUnsavedChanges())
	require.Error(t, c.Err())

	list := ts.List()
	require.Len(t, list, 1)
	assert.Equal(t, LevelError, list[0].Level)
	assert.Zero(t, list[0].TTL, "error toast persists")
	cbMu.Lock()
	assert.EqualError(t, cbErr, "connection reset")
	cbMu.Unlock()

	// transient failure: the next trigger retries the same revision
	c.Blur()
	waitState(t, c, Saved)
	assert.Len(t, saver.Calls(), 2)
	assert.NoError(t, c.Err())
}

func TestPermanentFailureNotResentAutomatically(t *testing.T) {
	defer goleak.VerifyNone(t)

	saver := newFakeSaver()
	saver.errs = []error{statusErr(422)}
	c := New(taskConfig(), saver)
	defer c.Close()

	c.SetField("title", "Rings")
	c.Blur()
	waitState(t, c, Error)

	c.Blur()
	time.Sleep(40 * time.Millisecond)
	assert.Len(t, saver.Calls(), 1)

	c.Save()
	waitState(t, c, Saved)
	assert.Len(t, saver.Calls(), 2)
}

func TestPermanent(t *testing.T) {
	assert.True(t, Permanent(statusErr(400)))
	assert.True(t, Permanent(fmt.Errorf("wrapped: %w", statusErr(409))))
	assert.False(t, Permanent(statusErr(408)))
	assert.False(t, Permanent(statusErr(429)))
	assert.False(t, Permanent(statusErr(503)))
	assert.False(t, Permanent(errors.New("dial tcp: refused")))
}

func TestFlushSavesSynchronously(t *testing.T) {
	defer goleak.VerifyNone(t)

	saver := newFakeSaver()
	cfg := taskConfig()
	cfg.Debounce = time.Hour
	c := New(cfg, saver)
	defer c.Close()

	c.SetField("title", "Photographer")
	msg, block := c.BeforeUnload()
	assert.True(t, block)
	assert.Equal(t, UnloadWarning, msg)

	require.NoError(t, c.Flush(context.Background()))
	assert.Len(t, saver.Calls(), 1)
	assert.Equal(t, Saved, c.State())

	_, block = c.BeforeUnload()
	assert.False(t, block)
}

func TestFlushWaitsForInFlightSave(t *testing.T) {
	defer goleak.VerifyNone(t)

	saver := newFakeSaver()
	saver.gate = make(chan struct{})
	c := New(taskConfig(), saver)
	defer c.Close()

	c.SetField("title", "a")
	c.Blur()
	<-saver.seen
	c.SetField("title", "b")

	done := make(chan error, 1)
	go func() { done <- c.Flush(context.Background()) }()
	saver.gate <- struct{}{}
	<-saver.seen
	saver.gate <- struct{}{}

	require.NoError(t, <-done)
	assert.False(t, c.HasUnsavedChanges())
	assert.Equal(t, "b", saver.Calls()[len(saver.Calls())-1].body["title"])
}

func TestCloseStopsPendingDebounce(t *testing.T) {
	defer goleak.VerifyNone(t)

	saver := newFakeSaver()
	c := New(taskConfig(), saver)
	c.SetField("title", "Band")
	c.Close()
	time.Sleep(40 * time.Millisecond)
	assert.Empty(t, saver.Calls())
	assert.ErrorIs(t, c.Flush(context.Background()), ErrClosed)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "saving", Saving.String())
	assert.Equal(t, "State(9)", State(9).String())
}
