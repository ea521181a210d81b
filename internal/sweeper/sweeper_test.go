package sweeper

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rrens/bi-assistant/internal/cache"
	"github.com/Rrens/bi-assistant/internal/domain"
	"github.com/Rrens/bi-assistant/internal/session"
)

type fixture struct {
	clock    *clockwork.FakeClock
	cache    *cache.ResultCache[string]
	sessions *session.Registry
	tracker  *cache.StatsTracker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := clockwork.NewFakeClock()

	c, err := cache.New[string](10, time.Second, clock)
	require.NoError(t, err)
	sessions, err := session.NewRegistry(5, time.Second, clock)
	require.NoError(t, err)
	tracker, err := cache.NewStatsTracker(10, clock)
	require.NoError(t, err)

	return &fixture{clock: clock, cache: c, sessions: sessions, tracker: tracker}
}

func TestSweeper_Sweep(t *testing.T) {
	f := newFixture(t)
	f.cache.Set("a", "1")
	f.cache.SetWithTTL("b", "2", 0)
	_, err := f.sessions.CreateSession("s1", "", domain.PersonaWarehouseManager)
	require.NoError(t, err)

	s := New(f.cache, f.sessions, f.tracker, time.Minute, time.Minute, f.clock)

	entries, sessions := s.Sweep()
	assert.Zero(t, entries)
	assert.Zero(t, sessions)

	f.clock.Advance(2 * time.Second)
	entries, sessions = s.Sweep()
	assert.Equal(t, 1, entries)
	assert.Equal(t, 1, sessions)
	assert.Equal(t, 1, f.cache.Len())
}

func TestSweeper_Snapshot(t *testing.T) {
	f := newFixture(t)
	f.cache.Set("a", "1")
	f.cache.Get("a")

	s := New(f.cache, f.sessions, f.tracker, time.Minute, time.Minute, f.clock)
	snap := s.Snapshot()

	assert.Equal(t, 10.0, snap.Utilization)
	assert.Equal(t, 100.0, snap.HitRate)
	assert.Len(t, f.tracker.Snapshots(), 1)
}

func TestSweeper_Run(t *testing.T) {
	f := newFixture(t)
	f.cache.Set("a", "1")
	_, err := f.sessions.CreateSession("s1", "", domain.PersonaWarehouseManager)
	require.NoError(t, err)

	s := New(f.cache, f.sessions, f.tracker, time.Minute, 5*time.Minute, f.clock)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.NoError(t, f.clock.BlockUntilContext(ctx, 2))
	f.clock.Advance(time.Minute)

	assert.Eventually(t, func() bool {
		return f.cache.Len() == 0 && f.sessions.ActiveSessionCount() == 0
	}, time.Second, 10*time.Millisecond)

	f.clock.Advance(4 * time.Minute)
	assert.Eventually(t, func() bool {
		return len(f.tracker.Snapshots()) == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

type fakePurger struct {
	calls atomic.Int32
	err   error
}

func (p *fakePurger) PurgeArchivedBefore(ctx context.Context, retention time.Duration) (int64, error) {
	p.calls.Add(1)
	if p.err != nil {
		return 0, p.err
	}
	return 3, nil
}

func TestSweeper_Purge(t *testing.T) {
	f := newFixture(t)

	ok := &fakePurger{}
	s := New(f.cache, f.sessions, f.tracker, time.Minute, 0, f.clock).WithArchivePurge(ok, 24*time.Hour, time.Hour)
	assert.Equal(t, int64(3), s.Purge(context.Background()))

	failing := &fakePurger{err: errors.New("db down")}
	s = New(f.cache, f.sessions, f.tracker, time.Minute, 0, f.clock).WithArchivePurge(failing, 24*time.Hour, time.Hour)
	assert.Zero(t, s.Purge(context.Background()))
}

func TestSweeper_RunPurges(t *testing.T) {
	f := newFixture(t)
	purger := &fakePurger{}
	s := New(f.cache, f.sessions, f.tracker, time.Minute, 0, f.clock).WithArchivePurge(purger, 24*time.Hour, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	require.NoError(t, f.clock.BlockUntilContext(ctx, 2))
	f.clock.Advance(time.Hour)

	assert.Eventually(t, func() bool {
		return purger.calls.Load() == 1
	}, time.Second, 10*time.Millisecond)
}
