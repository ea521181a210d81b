// Package sweeper runs the periodic housekeeping for the result cache and the
// session registry.
package sweeper

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/Rrens/bi-assistant/internal/cache"
)

// CacheJanitor is the part of the result cache the sweeper drives
type CacheJanitor interface {
	CleanupExpired() int
	Stats() cache.Stats
}

// SessionJanitor is the part of the session registry the sweeper drives
type SessionJanitor interface {
	CleanupExpiredSessions() int
}

// SnapshotRecorder receives periodic copies of the cache counters
type SnapshotRecorder interface {
	RecordSnapshot(stats cache.Stats) cache.Snapshot
}

// ArchivePurger drops archived snapshots older than a retention window
type ArchivePurger interface {
	PurgeArchivedBefore(ctx context.Context, retention time.Duration) (int64, error)
}

// Sweeper removes expired cache entries and idle sessions on one interval
// and records cache statistics snapshots on another
type Sweeper struct {
	cache            CacheJanitor
	sessions         SessionJanitor
	tracker          SnapshotRecorder
	clock            clockwork.Clock
	sweepInterval    time.Duration
	snapshotInterval time.Duration

	purger        ArchivePurger
	retention     time.Duration
	purgeInterval time.Duration
}

// New creates a sweeper. A non-positive snapshotInterval disables snapshots.
func New(
	cacheJanitor CacheJanitor,
	sessions SessionJanitor,
	tracker SnapshotRecorder,
	sweepInterval time.Duration,
	snapshotInterval time.Duration,
	clock clockwork.Clock,
) *Sweeper {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Sweeper{
		cache:            cacheJanitor,
		sessions:         sessions,
		tracker:          tracker,
		clock:            clock,
		sweepInterval:    sweepInterval,
		snapshotInterval: snapshotInterval,
	}
}

// WithArchivePurge makes Run also purge archived snapshots older than
// retention every interval.
func (s *Sweeper) WithArchivePurge(purger ArchivePurger, retention, interval time.Duration) *Sweeper {
	s.purger = purger
	s.retention = retention
	s.purgeInterval = interval
	return s
}

// Sweep performs one cleanup pass
func (s *Sweeper) Sweep() (expiredEntries, expiredSessions int) {
	expiredEntries = s.cache.CleanupExpired()
	expiredSessions = s.sessions.CleanupExpiredSessions()

	if expiredEntries > 0 || expiredSessions > 0 {
		log.Debug().
			Int("expired_entries", expiredEntries).
			Int("expired_sessions", expiredSessions).
			Msg("sweep completed")
	}
	return expiredEntries, expiredSessions
}

// Snapshot records the current cache statistics
func (s *Sweeper) Snapshot() cache.Snapshot {
	snap := s.tracker.RecordSnapshot(s.cache.Stats())

	log.Info().
		Int("size", snap.Size).
		Float64("hit_rate", snap.HitRate).
		Float64("utilization", snap.Utilization).
		Uint64("evictions", snap.Evictions).
		Msg("cache snapshot recorded")
	return snap
}

// Purge removes archived snapshots past retention
func (s *Sweeper) Purge(ctx context.Context) int64 {
	n, err := s.purger.PurgeArchivedBefore(ctx, s.retention)
	if err != nil {
		log.Error().Err(err).Msg("archive purge failed")
		return 0
	}
	if n > 0 {
		log.Info().Int64("purged", n).Dur("retention", s.retention).Msg("archive purged")
	}
	return n
}

// Run blocks until ctx is cancelled
func (s *Sweeper) Run(ctx context.Context) {
	sweepTicker := s.clock.NewTicker(s.sweepInterval)
	defer sweepTicker.Stop()

	var snapshots <-chan time.Time
	if s.snapshotInterval > 0 && s.tracker != nil {
		snapshotTicker := s.clock.NewTicker(s.snapshotInterval)
		defer snapshotTicker.Stop()
		snapshots = snapshotTicker.Chan()
	}

	var purges <-chan time.Time
	if s.purger != nil && s.retention > 0 && s.purgeInterval > 0 {
		purgeTicker := s.clock.NewTicker(s.purgeInterval)
		defer purgeTicker.Stop()
		purges = purgeTicker.Chan()
	}

	log.Info().
		Dur("sweep_interval", s.sweepInterval).
		Dur("snapshot_interval", s.snapshotInterval).
		Msg("sweeper started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("sweeper stopped")
			return
		case <-sweepTicker.Chan():
			s.Sweep()
		case <-snapshots:
			s.Snapshot()
		case <-purges:
			s.Purge(ctx)
		}
	}
}
