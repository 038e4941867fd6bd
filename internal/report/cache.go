package report

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	logx "vtreporter/pkg/logx"
)

// DefaultCacheTTL is how long a snapshot is served before a rebuild.
const DefaultCacheTTL = 2 * time.Minute

// CacheMeta describes the cache entry alongside a served snapshot.
type CacheMeta struct {
	LastUpdated time.Time `json:"-"`
	// Seconds, as the dashboard displays them.
	LastUpdatedText string `json:"lastUpdated"`
	CacheAge        int64  `json:"cacheAge"`
	NextUpdate      int64  `json:"nextUpdate"`
}

// Cache holds the last built dashboard snapshot. Reads within the TTL return
// the held snapshot; a stale read rebuilds synchronously. A background ticker
// refreshes every TTL regardless of demand so steady-state reads never block.
//
// Demand-triggered and timer-triggered rebuilds go through one singleflight
// group: at most one rebuild is in flight at any time, and concurrent stale
// callers share its result.
type Cache struct {
	builder *Builder
	log     logx.Logger
	ttl     time.Duration
	now     func() time.Time

	sf singleflight.Group

	mu          sync.RWMutex
	snap        *Snapshot
	lastUpdated time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
}

func NewCache(b *Builder, ttl time.Duration, log logx.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Cache{
		builder: b,
		log:     log,
		ttl:     ttl,
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}
}

// Start primes the cache and launches the periodic refresh. Priming failure
// is logged, not fatal: the store may simply not be up yet.
func (c *Cache) Start(ctx context.Context) {
	if _, _, err := c.Get(ctx); err != nil {
		c.log.Warn("initial report cache build failed", logx.Err(err))
	}

	go func() {
		t := time.NewTicker(c.ttl)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.stopCh:
				return
			case <-t.C:
				if _, err := c.rebuild(ctx); err != nil {
					c.log.Warn("periodic report cache refresh failed", logx.Err(err))
				}
			}
		}
	}()
	c.log.Info("report cache refresh scheduled", logx.Duration("every", c.ttl))
}

func (c *Cache) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

// Get returns the cached snapshot, rebuilding first when the entry is absent
// or older than the TTL. On rebuild failure the stale snapshot (if any) is
// served; an error is returned only when no build has ever succeeded.
func (c *Cache) Get(ctx context.Context) (*Snapshot, CacheMeta, error) {
	c.mu.RLock()
	snap, last := c.snap, c.lastUpdated
	c.mu.RUnlock()

	if snap != nil && c.now().Sub(last) <= c.ttl {
		return snap, c.meta(last), nil
	}

	fresh, err := c.rebuild(ctx)
	if err != nil {
		// Keep serving the last good snapshot.
		if snap != nil {
			c.log.Warn("report rebuild failed, serving stale snapshot", logx.Err(err))
			return snap, c.meta(last), nil
		}
		return nil, CacheMeta{}, fmt.Errorf("report cache: %w", err)
	}

	c.mu.RLock()
	last = c.lastUpdated
	c.mu.RUnlock()
	return fresh, c.meta(last), nil
}

// Meta reports the current entry's age without touching the builder.
func (c *Cache) Meta() CacheMeta {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.meta(c.lastUpdated)
}

func (c *Cache) meta(last time.Time) CacheMeta {
	age := c.now().Sub(last)
	next := c.ttl - age
	if next < 0 {
		next = 0
	}
	return CacheMeta{
		LastUpdated:     last,
		LastUpdatedText: last.Local().Format("2006-01-02 15:04:05"),
		CacheAge:        int64(age.Seconds()),
		NextUpdate:      int64(next.Seconds()),
	}
}

// rebuild shares one in-flight build across all callers. The entry is
// replaced wholesale under the lock, never mutated in place.
func (c *Cache) rebuild(ctx context.Context) (*Snapshot, error) {
	v, err, _ := c.sf.Do("report", func() (any, error) {
		start := c.now()
		snap, err := c.builder.Build(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.snap = snap
		c.lastUpdated = c.now()
		c.mu.Unlock()

		c.log.Info("report cache updated",
			logx.Duration("took", c.now().Sub(start)),
			logx.Int("records", snap.TotalRecords),
		)
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}
