package querycache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func counting(n *int32, v any) Fetcher {
	return func(context.Context) (any, error) {
		atomic.AddInt32(n, 1)
		return v, nil
	}
}

func TestKeyTier(t *testing.T) {
	tests := []struct {
		key  Key
		want Tier
	}{
		{Keys.Activities("p"), TierRealtime},
		{Keys.Collaborators("p"), TierRealtime},
		{Keys.Tasks("p"), TierDynamic},
		{Keys.Guests("p"), TierDynamic},
		{Keys.Budget("p"), TierDynamic},
		{Keys.Vendors("p"), TierStatic},
		{Keys.Project("p"), TierStatic},
		{Keys.Projects(), TierStatic},
		{Keys.Dashboard("p"), TierDashboard},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.key.Tier(), tt.key.String())
	}
}

func TestKeyHasPrefix(t *testing.T) {
	assert.True(t, Keys.Tasks("p1").HasPrefix(Keys.ProjectScope("p1")))
	assert.False(t, Keys.Tasks("p1").HasPrefix(Keys.ProjectScope("p2")))
	assert.False(t, Keys.Project("p1").HasPrefix(Keys.Tasks("p1")))
	assert.True(t, Keys.Dashboard("p1").HasPrefix(Keys.DashboardScope("p1")))
}

func TestForEntity(t *testing.T) {
	k, ok := Keys.ForEntity("p", "budget_item")
	require.True(t, ok)
	assert.Equal(t, Keys.Budget("p"), k)

	_, ok = Keys.ForEntity("p", "seating_chart")
	assert.False(t, ok)
}

func TestFetchServesFreshEntry(t *testing.T) {
	clock := newFakeClock()
	c := New(WithClock(clock.Now))
	var calls int32
	key := Keys.Tasks("p1")

	v, err := c.Fetch(context.Background(), key, counting(&calls, "a"))
	require.NoError(t, err)
	assert.Equal(t, "a", v)

	clock.Advance(time.Minute)
	v, err = c.Fetch(context.Background(), key, counting(&calls, "b"))
	require.NoError(t, err)
	assert.Equal(t, "a", v)
	assert.EqualValues(t, 1, calls)

	// dynamic tier is fresh for 2m
	clock.Advance(90 * time.Second)
	v, err = c.Fetch(context.Background(), key, counting(&calls, "b"))
	require.NoError(t, err)
	assert.Equal(t, "b", v)
	assert.EqualValues(t, 2, calls)
}

func TestFetchDeduplicatesConcurrentCallers(t *testing.T) {
	defer goleak.VerifyNone(t)

	c := New()
	var calls int32
	release := make(chan struct{})
	started := make(chan struct{})
	fetch := func(context.Context) (any, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(started)
		}
		<-release
		return 42, nil
	}

	const callers = 8
	var wg sync.WaitGroup
	results := make([]any, callers)
	errs := make([]error, callers)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = c.Fetch(context.Background(), Keys.Dashboard("p"), fetch)
	}()
	<-started
	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.Fetch(context.Background(), Keys.Dashboard("p"), fetch)
		}(i)
	}
	// Give the followers time to join the in-flight call.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, calls)
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, 42, results[i])
	}
}

func TestFetchErrorIsNotCached(t *testing.T) {
	c := New()
	boom := errors.New("boom")
	_, err := c.Fetch(context.Background(), Keys.Tasks("p"), func(context.Context) (any, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Len())

	var calls int32
	v, err := c.Fetch(context.Background(), Keys.Tasks("p"), counting(&calls, "ok"))
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestFetchEmptyKey(t *testing.T) {
	_, err := New().Fetch(context.Background(), nil, counting(new(int32), 1))
	assert.Error(t, err)
}

func TestFetchWaiterRetriesWhenLeaderCancels(t *testing.T) {
	defer goleak.VerifyNone(t)

	c := New()
	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	started := make(chan struct{})
	var calls int32
	fetch := func(ctx context.Context) (any, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return "second", nil
	}

	leaderDone := make(chan error, 1)
	go func() {
		_, err := c.Fetch(leaderCtx, Keys.Tasks("p"), fetch)
		leaderDone <- err
	}()
	<-started

	waiterDone := make(chan any, 1)
	go func() {
		v, _ := c.Fetch(context.Background(), Keys.Tasks("p"), fetch)
		waiterDone <- v
	}()
	time.Sleep(20 * time.Millisecond)
	cancelLeader()

	assert.ErrorIs(t, <-leaderDone, context.Canceled)
	assert.Equal(t, "second", <-waiterDone)
}

func TestPeekRespectsRetention(t *testing.T) {
	clock := newFakeClock()
	c := New(WithClock(clock.Now))
	key := Keys.Activities("p")
	c.Set(key, "feed")

	v, fresh, ok := c.Peek(key)
	require.True(t, ok)
	assert.True(t, fresh)
	assert.Equal(t, "feed", v)

	clock.Advance(time.Minute)
	v, fresh, ok = c.Peek(key)
	require.True(t, ok)
	assert.False(t, fresh)
	assert.Equal(t, "feed", v)

	clock.Advance(2 * time.Minute)
	_, _, ok = c.Peek(key)
	assert.False(t, ok)
}

func TestInvalidateByPrefix(t *testing.T) {
	c := New()
	c.Set(Keys.Tasks("p1"), 1)
	c.Set(Keys.Guests("p1"), 2)
	c.Set(Keys.Tasks("p2"), 3)

	n := c.Invalidate(Keys.ProjectScope("p1"))
	assert.Equal(t, 2, n)

	_, fresh, ok := c.Peek(Keys.Tasks("p1"))
	assert.True(t, ok, "invalidated data stays available as a placeholder")
	assert.False(t, fresh)

	_, fresh, _ = c.Peek(Keys.Tasks("p2"))
	assert.True(t, fresh)

	var calls int32
	v, err := c.Fetch(context.Background(), Keys.Tasks("p1"), counting(&calls, 10))
	require.NoError(t, err)
	assert.Equal(t, 10, v)
	assert.EqualValues(t, 1, calls)
}

func TestInvalidateDuringFetchLandsStale(t *testing.T) {
	c := New()
	key := Keys.Tasks("p")
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.Fetch(context.Background(), key, func(context.Context) (any, error) {
			close(started)
			<-release
			return "old", nil
		})
	}()
	<-started
	c.Invalidate(key)
	close(release)
	<-done

	_, fresh, ok := c.Peek(key)
	require.True(t, ok)
	assert.False(t, fresh)
}

func TestOnRefocusInvalidatesRealtimeOnly(t *testing.T) {
	c := New()
	c.Set(Keys.Activities("p"), "a")
	c.Set(Keys.Collaborators("p"), "c")
	c.Set(Keys.Tasks("p"), "t")
	c.Set(Keys.Dashboard("p"), "d")
	c.Set(Keys.Vendors("p"), "v")

	assert.Equal(t, 2, c.OnRefocus())

	for _, k := range []Key{Keys.Activities("p"), Keys.Collaborators("p")} {
		_, fresh, _ := c.Peek(k)
		assert.False(t, fresh, k.String())
	}
	for _, k := range []Key{Keys.Tasks("p"), Keys.Dashboard("p"), Keys.Vendors("p")} {
		_, fresh, _ := c.Peek(k)
		assert.True(t, fresh, k.String())
	}
}

func TestCleanupEvictsOldEntries(t *testing.T) {
	clock := newFakeClock()
	c := New(WithClock(clock.Now))
	c.Set(Keys.Project("old"), "x")
	clock.Advance(20 * time.Minute)
	c.Set(Keys.Project("recent"), "y")
	clock.Advance(11 * time.Minute)

	assert.Equal(t, 1, c.Cleanup(DefaultMaxAge))
	assert.Equal(t, 1, c.Len())
	_, _, ok := c.Peek(Keys.Project("recent"))
	assert.True(t, ok)
}

func TestRemove(t *testing.T) {
	c := New()
	c.Set(Keys.Tasks("p"), 1)
	c.Set(Keys.Dashboard("p"), 2)
	assert.Equal(t, 1, c.Remove(Keys.ProjectScope("p")))
	assert.Equal(t, 1, c.Len())
}

func TestStartCleanupStopsOnClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	clock := newFakeClock()
	c := New(WithClock(clock.Now))
	c.Set(Keys.Project("p"), 1)
	clock.Advance(time.Hour)

	c.StartCleanup(5*time.Millisecond, DefaultMaxAge)
	c.StartCleanup(5*time.Millisecond, DefaultMaxAge)
	assert.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, 5*time.Millisecond)
	c.Close()
}

func TestGetTyped(t *testing.T) {
	c := New()
	n, err := Get(context.Background(), c, Keys.Tasks("p"), func(context.Context) (int, error) {
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	_, err = Get(context.Background(), c, Keys.Tasks("p"), func(context.Context) (string, error) {
		return "unused", nil
	})
	assert.Error(t, err)
}
