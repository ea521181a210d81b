package cache

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// ErrInvalidMaxSnapshots is returned when a tracker is built with a
// non-positive snapshot limit
var ErrInvalidMaxSnapshots = errors.New("max snapshots must be positive")

// Stats is a point-in-time copy of the cache counters
type Stats struct {
	Size          int     `json:"size"`
	Capacity      int     `json:"capacity"`
	Hits          uint64  `json:"hits"`
	Misses        uint64  `json:"misses"`
	Evictions     uint64  `json:"evictions"`
	Expirations   uint64  `json:"expirations"`
	TotalRequests uint64  `json:"total_requests"`
	HitRate       float64 `json:"hit_rate"`
}

// Snapshot is an immutable Stats record taken by a StatsTracker
type Snapshot struct {
	Stats
	Timestamp   time.Time `json:"timestamp"`
	Utilization float64   `json:"utilization"`
}

// AggregatedStats summarises the snapshots a tracker retains.
// TotalEvictions and TotalExpirations come from the latest snapshot, since
// the cache counters are already cumulative.
type AggregatedStats struct {
	TotalSnapshots   int     `json:"total_snapshots"`
	AvgHitRate       float64 `json:"avg_hit_rate"`
	AvgUtilization   float64 `json:"avg_utilization"`
	TotalEvictions   uint64  `json:"total_evictions"`
	TotalExpirations uint64  `json:"total_expirations"`
	CurrentSize      int     `json:"current_size"`
	CurrentHitRate   float64 `json:"current_hit_rate"`
}

// StatsTracker keeps a FIFO window of cache snapshots. It only ever sees
// copied Stats values, never the cache itself.
type StatsTracker struct {
	mu           sync.Mutex
	snapshots    []Snapshot
	maxSnapshots int
	clock        clockwork.Clock
}

// NewStatsTracker creates a tracker retaining at most maxSnapshots entries
func NewStatsTracker(maxSnapshots int, clock clockwork.Clock) (*StatsTracker, error) {
	if maxSnapshots <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidMaxSnapshots, maxSnapshots)
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &StatsTracker{
		snapshots:    make([]Snapshot, 0, maxSnapshots),
		maxSnapshots: maxSnapshots,
		clock:        clock,
	}, nil
}

// RecordSnapshot stores a snapshot of stats, dropping the oldest one when the
// window is full
func (t *StatsTracker) RecordSnapshot(stats Stats) Snapshot {
	var utilization float64
	if stats.Capacity > 0 {
		utilization = float64(stats.Size) / float64(stats.Capacity) * 100
	}

	snap := Snapshot{
		Stats:       stats,
		Timestamp:   t.clock.Now(),
		Utilization: utilization,
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.snapshots) == t.maxSnapshots {
		copy(t.snapshots, t.snapshots[1:])
		t.snapshots = t.snapshots[:len(t.snapshots)-1]
	}
	t.snapshots = append(t.snapshots, snap)

	return snap
}

// Snapshots returns a copy of the retained snapshots, oldest first
func (t *StatsTracker) Snapshots() []Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Snapshot, len(t.snapshots))
	copy(out, t.snapshots)
	return out
}

// AggregatedStats averages hit rate and utilization over the window
func (t *StatsTracker) AggregatedStats() AggregatedStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := len(t.snapshots)
	if n == 0 {
		return AggregatedStats{}
	}

	var hitRateSum, utilizationSum float64
	for _, s := range t.snapshots {
		hitRateSum += s.HitRate
		utilizationSum += s.Utilization
	}
	latest := t.snapshots[n-1]

	return AggregatedStats{
		TotalSnapshots:   n,
		AvgHitRate:       hitRateSum / float64(n),
		AvgUtilization:   utilizationSum / float64(n),
		TotalEvictions:   latest.Evictions,
		TotalExpirations: latest.Expirations,
		CurrentSize:      latest.Size,
		CurrentHitRate:   latest.HitRate,
	}
}

// PerformanceSummary renders the aggregated statistics as a short report
func (t *StatsTracker) PerformanceSummary() string {
	agg := t.AggregatedStats()
	if agg.TotalSnapshots == 0 {
		return "No cache statistics recorded yet"
	}

	var b strings.Builder
	b.WriteString("Cache Performance Summary\n")
	fmt.Fprintf(&b, "  Rating:       %s\n", Rating(agg.CurrentHitRate))
	fmt.Fprintf(&b, "  Hit rate:     %.2f%% current, %.2f%% average\n", agg.CurrentHitRate, agg.AvgHitRate)
	fmt.Fprintf(&b, "  Utilization:  %.2f%% average\n", agg.AvgUtilization)
	fmt.Fprintf(&b, "  Size:         %d\n", agg.CurrentSize)
	fmt.Fprintf(&b, "  Evictions:    %d\n", agg.TotalEvictions)
	fmt.Fprintf(&b, "  Expirations:  %d\n", agg.TotalExpirations)
	fmt.Fprintf(&b, "  Snapshots:    %d", agg.TotalSnapshots)
	return b.String()
}

// Rating maps a hit rate percentage to a qualitative label
func Rating(hitRate float64) string {
	switch {
	case hitRate >= 80:
		return "Excellent"
	case hitRate >= 60:
		return "Good"
	case hitRate >= 40:
		return "Fair"
	case hitRate >= 20:
		return "Poor"
	default:
		return "Very Poor"
	}
}
