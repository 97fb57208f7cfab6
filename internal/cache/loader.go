package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/peerplay/consumption-dashboard/internal/economy"
	"github.com/peerplay/consumption-dashboard/internal/metrics"
	"github.com/peerplay/consumption-dashboard/internal/pkg/distlock"
	"github.com/peerplay/consumption-dashboard/internal/pkg/logger"
	"github.com/peerplay/consumption-dashboard/internal/warehouse"
)

// DefaultTTL is how long fetched rows are served from cache.
const DefaultTTL = 5 * time.Minute

// Defaults for a single shared fetch and the replica lock guarding it. The
// lock outlives the fetch timeout so it cannot expire mid-fetch.
const (
	DefaultFetchTimeout = 5 * time.Minute
	DefaultLockTTL      = 6 * time.Minute
)

// LockFunc creates the cross-replica lock guarding one cache key.
type LockFunc func(key string, ttl time.Duration) distlock.DistLock

// Loader memoizes a warehouse.Loader by query parameters. Concurrent
// identical fetches in one process share a single call; across replicas
// the optional lock makes the losers wait for the winner's cache entry.
// A shared fetch is detached from its callers' contexts: a caller that gives
// up returns its own ctx.Err() while the others keep waiting.
type Loader struct {
	next         warehouse.Loader
	store        Store
	ttl          time.Duration
	lock         LockFunc
	lockTTL      time.Duration
	lockWait     time.Duration
	fetchTimeout time.Duration
	poll         time.Duration
	metrics      *metrics.Metrics
	group        singleflight.Group
}

// Option configures a Loader.
type Option func(*Loader)

// WithLock enables cross-replica fetch locking.
func WithLock(fn LockFunc) Option {
	return func(l *Loader) { l.lock = fn }
}

// WithLockWait bounds how long a replica waits for a peer's fetch.
func WithLockWait(d time.Duration) Option {
	return func(l *Loader) { l.lockWait = d }
}

// WithLockTTL sets how long the replica lock is held before it expires.
func WithLockTTL(d time.Duration) Option {
	return func(l *Loader) {
		if d > 0 {
			l.lockTTL = d
		}
	}
}

// WithFetchTimeout bounds one shared warehouse fetch.
func WithFetchTimeout(d time.Duration) Option {
	return func(l *Loader) {
		if d > 0 {
			l.fetchTimeout = d
		}
	}
}

// WithMetrics records cache and fetch metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Loader) { l.metrics = m }
}

// NewLoader wraps next with store. A non-positive ttl uses DefaultTTL.
func NewLoader(next warehouse.Loader, store Store, ttl time.Duration, opts ...Option) *Loader {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	l := &Loader{
		next:         next,
		store:        store,
		ttl:          ttl,
		lockTTL:      DefaultLockTTL,
		lockWait:     30 * time.Second,
		fetchTimeout: DefaultFetchTimeout,
		poll:         200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func rowsKey(since *economy.Date) string {
	if since == nil {
		return "rows:all"
	}
	return "rows:" + since.String()
}

const boundsKey = "bounds"

// FetchRows serves rows from cache, fetching on a miss.
func (l *Loader) FetchRows(ctx context.Context, since *economy.Date) ([]economy.RawRow, error) {
	key := rowsKey(since)
	v, err := l.shared(ctx, key, func(fetchCtx context.Context) (interface{}, error) {
		return l.fetchRows(fetchCtx, key, since)
	})
	if err != nil {
		return nil, err
	}
	return v.([]economy.RawRow), nil
}

// shared runs fn once per key across concurrent callers, under a context
// that survives any single caller's cancellation.
func (l *Loader) shared(ctx context.Context, key string, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	ch := l.group.DoChan(key, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.fetchTimeout)
		defer cancel()
		return fn(fetchCtx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val, res.Err
	}
}

func (l *Loader) fetchRows(ctx context.Context, key string, since *economy.Date) ([]economy.RawRow, error) {
	var rows []economy.RawRow
	if l.lookup(ctx, key, &rows) {
		l.metrics.CacheHit()
		return rows, nil
	}
	l.metrics.CacheMiss()

	if l.lock != nil {
		if lock := l.lock(key, l.lockTTL); lock != nil {
			acquired, err := lock.Acquire(ctx)
			switch {
			case err != nil:
				logger.Warn("cache lock unavailable, fetching unlocked", "key", key, "error", err)
			case acquired:
				defer lock.Release(context.Background())
				// a peer may have filled the entry between our miss and the lock
				if l.lookup(ctx, key, &rows) {
					return rows, nil
				}
			default:
				if l.waitForPeer(ctx, key, &rows) {
					return rows, nil
				}
			}
		}
	}
	return l.load(ctx, key, since)
}

func (l *Loader) load(ctx context.Context, key string, since *economy.Date) ([]economy.RawRow, error) {
	start := time.Now()
	rows, err := l.next.FetchRows(ctx, since)
	l.metrics.ObserveFetch(time.Since(start), len(rows), err)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []economy.RawRow{}
	}
	l.save(ctx, key, rows)
	return rows, nil
}

// waitForPeer polls the store until another replica fills key.
func (l *Loader) waitForPeer(ctx context.Context, key string, dst interface{}) bool {
	deadline := time.NewTimer(l.lockWait)
	defer deadline.Stop()
	tick := time.NewTicker(l.poll)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			logger.Warn("timed out waiting for peer fetch", "key", key)
			return false
		case <-tick.C:
			if l.lookup(ctx, key, dst) {
				return true
			}
		}
	}
}

// DateBounds caches the MIN/MAX date query alongside the rows.
func (l *Loader) DateBounds(ctx context.Context) (economy.DateRange, error) {
	v, err := l.shared(ctx, boundsKey, func(ctx context.Context) (interface{}, error) {
		var r economy.DateRange
		if l.lookup(ctx, boundsKey, &r) {
			return r, nil
		}
		r, err := l.next.DateBounds(ctx)
		if err != nil {
			return economy.DateRange{}, err
		}
		if r.Valid() {
			l.save(ctx, boundsKey, r)
		}
		return r, nil
	})
	if err != nil {
		return economy.DateRange{}, err
	}
	return v.(economy.DateRange), nil
}

// Invalidate drops every cached entry.
func (l *Loader) Invalidate(ctx context.Context) error {
	if err := l.store.Flush(ctx); err != nil {
		return fmt.Errorf("failed to invalidate row cache: %w", err)
	}
	return nil
}

func (l *Loader) Ping(ctx context.Context) error { return l.next.Ping(ctx) }

func (l *Loader) Close() error { return l.next.Close() }

func (l *Loader) lookup(ctx context.Context, key string, dst interface{}) bool {
	b, ok, err := l.store.Get(ctx, key)
	if err != nil {
		logger.Warn("cache read failed", "key", key, "error", err)
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(b, dst); err != nil {
		logger.Warn("discarding unreadable cache entry", "key", key, "error", err)
		return false
	}
	return true
}

func (l *Loader) save(ctx context.Context, key string, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		logger.Warn("cache encode failed", "key", key, "error", err)
		return
	}
	if err := l.store.Set(ctx, key, b, l.ttl); err != nil {
		logger.Warn("cache write failed", "key", key, "error", err)
	}
}
