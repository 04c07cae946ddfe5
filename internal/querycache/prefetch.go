package querycache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Request is one query to warm.
type Request struct {
	Key   Key
	Fetch Fetcher
}

// Plan is the prefetch set for a project: essential queries first, then
// the rest once the first wave has had a head start.
type Plan struct {
	Essential []Request
	Secondary []Request
}

// Planner builds the plan for a project.
type Planner func(projectID string) Plan

const (
	// DefaultPrefetchDelay debounces project selection.
	DefaultPrefetchDelay = time.Second
	// DefaultSecondaryDelay separates the essential and secondary waves.
	DefaultSecondaryDelay = 2500 * time.Millisecond
)

// Prefetcher warms the cache when a project is selected. Rapid
// re-selection restarts the debounce; only the latest selection runs.
type Prefetcher struct {
	cache     *Cache
	plan      Planner
	delay     time.Duration
	secondary time.Duration
	log       *zap.Logger

	mu      sync.Mutex
	gen     uint64
	timer   *time.Timer
	cancel  context.CancelFunc
	stopped bool
	wg      sync.WaitGroup
}

// NewPrefetcher returns a prefetcher. Non-positive delays use the defaults.
func NewPrefetcher(c *Cache, plan Planner, delay, secondary time.Duration, log *zap.Logger) *Prefetcher {
	if delay <= 0 {
		delay = DefaultPrefetchDelay
	}
	if secondary <= 0 {
		secondary = DefaultSecondaryDelay
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Prefetcher{cache: c, plan: plan, delay: delay, secondary: secondary, log: log}
}

// Schedule arms prefetching for projectID, replacing any pending or
// running work for an earlier selection.
func (p *Prefetcher) Schedule(projectID string) {
	if projectID == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	p.resetLocked()

	p.gen++
	gen := p.gen
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	p.wg.Add(1)
	p.timer = time.AfterFunc(p.delay, func() {
		defer p.wg.Done()
		p.run(ctx, gen, projectID)
	})
}

func (p *Prefetcher) resetLocked() {
	if p.timer != nil && p.timer.Stop() {
		p.wg.Done()
	}
	p.timer = nil
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

func (p *Prefetcher) current(gen uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gen == gen && !p.stopped
}

func (p *Prefetcher) run(ctx context.Context, gen uint64, projectID string) {
	if !p.current(gen) {
		return
	}
	plan := p.plan(projectID)
	p.log.Debug("prefetching project", zap.String("project", projectID),
		zap.Int("essential", len(plan.Essential)), zap.Int("secondary", len(plan.Secondary)))

	p.wave(ctx, plan.Essential)

	select {
	case <-ctx.Done():
		return
	case <-time.After(p.secondary):
	}
	if !p.current(gen) {
		return
	}
	p.wave(ctx, plan.Secondary)
}

func (p *Prefetcher) wave(ctx context.Context, reqs []Request) {
	var wg sync.WaitGroup
	for _, r := range reqs {
		wg.Add(1)
		go func(r Request) {
			defer wg.Done()
			if _, err := p.cache.Fetch(ctx, r.Key, r.Fetch); err != nil {
				p.log.Debug("prefetch failed", zap.Stringer("key", r.Key), zap.Error(err))
			}
		}(r)
	}
	wg.Wait()
}

// Stop cancels pending and running prefetches and waits for them to exit.
// Schedule is a no-op afterwards.
func (p *Prefetcher) Stop() {
	p.mu.Lock()
	p.stopped = true
	p.resetLocked()
	p.mu.Unlock()
	p.wg.Wait()
}
