package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peerplay/consumption-dashboard/internal/economy"
	"github.com/peerplay/consumption-dashboard/internal/pkg/distlock"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type countingLoader struct {
	calls   int32
	rows    []economy.RawRow
	bounds  economy.DateRange
	err     error
	release chan struct{}
}

func (c *countingLoader) FetchRows(ctx context.Context, since *economy.Date) ([]economy.RawRow, error) {
	atomic.AddInt32(&c.calls, 1)
	if c.release != nil {
		select {
		case <-c.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return c.rows, c.err
}

func (c *countingLoader) DateBounds(ctx context.Context) (economy.DateRange, error) {
	atomic.AddInt32(&c.calls, 1)
	return c.bounds, c.err
}

func (c *countingLoader) Ping(context.Context) error { return nil }
func (c *countingLoader) Close() error               { return nil }

func (c *countingLoader) count() int { return int(atomic.LoadInt32(&c.calls)) }

func sampleRows() []economy.RawRow {
	d := civil.Date{Year: 2024, Month: time.January, Day: 1}
	return []economy.RawRow{{Wide: &economy.WideRow{
		Date:    d,
		Players: 10,
		Columns: map[string]float64{"rewards_race_inflow_sum_value": 50},
	}}}
}

func setupRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

// =============================================================================
// STORES
// =============================================================================

func TestMemoryStore_Expiry(t *testing.T) {
	s, err := NewMemoryStore(4)
	require.NoError(t, err)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))
	v, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), v)

	now = now.Add(time.Minute)
	_, ok, _ = s.Get(ctx, "k")
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "k", []byte("v"), 0))
	require.NoError(t, s.Flush(ctx))
	_, ok, _ = s.Get(ctx, "k")
	assert.False(t, ok)
}

func TestRedisStore_GetSetFlush(t *testing.T) {
	client, mr := setupRedis(t)
	s := NewRedisStore(client, "consumption:cache:")
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "rows:all")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "rows:all", []byte("[]"), time.Minute))
	require.NoError(t, mr.Set("unrelated", "keep"))

	v, ok, err := s.Get(ctx, "rows:all")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "[]", string(v))
	assert.Equal(t, time.Minute, mr.TTL("consumption:cache:rows:all"))

	require.NoError(t, s.Flush(ctx))
	assert.False(t, mr.Exists("consumption:cache:rows:all"))
	assert.True(t, mr.Exists("unrelated"))
}

// =============================================================================
// LOADER
// =============================================================================

func TestLoader_ServesSecondFetchFromCache(t *testing.T) {
	store, err := NewMemoryStore(8)
	require.NoError(t, err)
	next := &countingLoader{rows: sampleRows()}
	l := NewLoader(next, store, time.Minute)
	ctx := context.Background()

	first, err := l.FetchRows(ctx, nil)
	require.NoError(t, err)
	second, err := l.FetchRows(ctx, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, next.count())
	assert.Equal(t, first, second)
	assert.Equal(t, 50.0, second[0].Wide.Columns["rewards_race_inflow_sum_value"])

	since := civil.Date{Year: 2024, Month: time.February, Day: 1}
	_, err = l.FetchRows(ctx, &since)
	require.NoError(t, err)
	assert.Equal(t, 2, next.count(), "different parameters use a different entry")
}

func TestLoader_ErrorsAreNotCached(t *testing.T) {
	store, err := NewMemoryStore(8)
	require.NoError(t, err)
	next := &countingLoader{err: errors.New("quota exceeded")}
	l := NewLoader(next, store, time.Minute)

	_, err = l.FetchRows(context.Background(), nil)
	require.Error(t, err)

	next.err = nil
	next.rows = sampleRows()
	rows, err := l.FetchRows(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, 2, next.count())
}

func TestLoader_CollapsesConcurrentFetches(t *testing.T) {
	store, err := NewMemoryStore(8)
	require.NoError(t, err)
	next := &countingLoader{rows: sampleRows(), release: make(chan struct{})}
	l := NewLoader(next, store, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rows, err := l.FetchRows(context.Background(), nil)
			assert.NoError(t, err)
			assert.Len(t, rows, 1)
		}()
	}

	require.Eventually(t, func() bool { return next.count() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(next.release)
	wg.Wait()

	assert.Equal(t, 1, next.count())
}

func TestLoader_WaitsForPeerHoldingLock(t *testing.T) {
	client, mr := setupRedis(t)
	store := NewRedisStore(client, "consumption:cache:")
	next := &countingLoader{rows: sampleRows()}
	l := NewLoader(next, store, time.Minute,
		WithLock(func(key string, ttl time.Duration) distlock.DistLock {
			return distlock.NewRedisLock(client, key, ttl)
		}),
		WithLockWait(2*time.Second),
	)
	l.poll = 10 * time.Millisecond

	// another replica is mid-fetch
	require.NoError(t, mr.Set(distlock.KeyPrefix+"rows:all", "peer"))
	go func() {
		time.Sleep(50 * time.Millisecond)
		mr.Set("consumption:cache:rows:all", `[{"wide":{"date":"2024-01-01","attributes":{"is_us_player":0,"paid_ever_flag":0,"paid_today_flag":0},"players":3,"columns":{}}}]`)
	}()

	rows, err := l.FetchRows(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(3), rows[0].Wide.Players)
	assert.Equal(t, 0, next.count())
}

func TestLoader_CancelledCallerDoesNotFailOthers(t *testing.T) {
	store, err := NewMemoryStore(8)
	require.NoError(t, err)
	next := &countingLoader{rows: sampleRows(), release: make(chan struct{})}
	l := NewLoader(next, store, time.Minute)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := l.FetchRows(ctxA, nil)
		errA <- err
	}()
	require.Eventually(t, func() bool { return next.count() == 1 }, time.Second, 5*time.Millisecond)

	type result struct {
		rows []economy.RawRow
		err  error
	}
	resB := make(chan result, 1)
	go func() {
		rows, err := l.FetchRows(context.Background(), nil)
		resB <- result{rows, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelA()
	assert.ErrorIs(t, <-errA, context.Canceled)

	close(next.release)
	b := <-resB
	require.NoError(t, b.err)
	assert.Len(t, b.rows, 1)
	assert.Equal(t, 1, next.count())
}

// fillingLock simulates a peer that finished its fetch just before we got the lock.
type fillingLock struct {
	fill func()
}

func (f fillingLock) Acquire(context.Context) (bool, error) {
	f.fill()
	return true, nil
}

func (fillingLock) Release(context.Context) error { return nil }

func TestLoader_RechecksCacheAfterAcquiringLock(t *testing.T) {
	store, err := NewMemoryStore(8)
	require.NoError(t, err)
	next := &countingLoader{rows: sampleRows()}
	cached, err := json.Marshal(sampleRows())
	require.NoError(t, err)

	var lockTTL time.Duration
	l := NewLoader(next, store, time.Minute,
		WithLockTTL(10*time.Minute),
		WithLock(func(key string, ttl time.Duration) distlock.DistLock {
			lockTTL = ttl
			return fillingLock{fill: func() {
				assert.NoError(t, store.Set(context.Background(), key, cached, time.Minute))
			}}
		}),
	)

	rows, err := l.FetchRows(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, 0, next.count())
	assert.Equal(t, 10*time.Minute, lockTTL)
}

func TestLoader_LockOutlivesFetchByDefault(t *testing.T) {
	l := NewLoader(&countingLoader{}, nil, time.Minute, WithLockWait(30*time.Second))
	assert.Equal(t, DefaultLockTTL, l.lockTTL)
	assert.Greater(t, l.lockTTL, l.fetchTimeout)
	assert.Greater(t, l.lockTTL, l.lockWait)
}

func TestLoader_ReleasesLockAfterFetch(t *testing.T) {
	client, mr := setupRedis(t)
	store := NewRedisStore(client, "consumption:cache:")
	next := &countingLoader{rows: sampleRows()}
	l := NewLoader(next, store, time.Minute, WithLock(func(key string, ttl time.Duration) distlock.DistLock {
		return distlock.NewRedisLock(client, key, ttl)
	}))

	_, err := l.FetchRows(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, next.count())
	assert.False(t, mr.Exists(distlock.KeyPrefix+"rows:all"))
	assert.True(t, mr.Exists("consumption:cache:rows:all"))
}

func TestLoader_InvalidateForcesRefetch(t *testing.T) {
	store, err := NewMemoryStore(8)
	require.NoError(t, err)
	next := &countingLoader{rows: sampleRows()}
	l := NewLoader(next, store, time.Minute)
	ctx := context.Background()

	_, err = l.FetchRows(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, l.Invalidate(ctx))
	_, err = l.FetchRows(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, next.count())
}

func TestLoader_DateBoundsCached(t *testing.T) {
	store, err := NewMemoryStore(8)
	require.NoError(t, err)
	bounds := economy.DateRange{
		Start: civil.Date{Year: 2023, Month: time.June, Day: 1},
		End:   civil.Date{Year: 2024, Month: time.June, Day: 1},
	}
	next := &countingLoader{bounds: bounds}
	l := NewLoader(next, store, time.Minute)

	for i := 0; i < 3; i++ {
		got, err := l.DateBounds(context.Background())
		require.NoError(t, err)
		assert.Equal(t, bounds, got)
	}
	assert.Equal(t, 1, next.count())
}
