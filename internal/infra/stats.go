package infra

import (
	"sync/atomic"
	"time"
)

// Stats provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Stats struct {
	// Counters
	commandsHandled  atomic.Uint64
	commandErrors    atomic.Uint64
	ticksApplied     atomic.Uint64
	snapshotsFetched atomic.Uint64

	// Gauges
	streamConnected atomic.Int32 // 1 = connected, 0 = not

	startedAtUnix atomic.Int64
}

// GlobalStats is the singleton stats instance.
var GlobalStats = &Stats{}

// MarkStarted records the process start time for uptime reporting.
func (s *Stats) MarkStarted() {
	s.startedAtUnix.Store(time.Now().Unix())
}

// RecordCommand records a handled command, counting failures separately.
func (s *Stats) RecordCommand(failed bool) {
	s.commandsHandled.Add(1)
	if failed {
		s.commandErrors.Add(1)
	}
}

// RecordTicks records applied stream ticks.
func (s *Stats) RecordTicks(n int) {
	s.ticksApplied.Add(uint64(n))
}

// RecordSnapshot records a completed quote snapshot fetch.
func (s *Stats) RecordSnapshot() {
	s.snapshotsFetched.Add(1)
}

// SetStreamConnected sets the live stream connection state.
func (s *Stats) SetStreamConnected(connected bool) {
	if connected {
		s.streamConnected.Store(1)
	} else {
		s.streamConnected.Store(0)
	}
}

// StatsSnapshot is a point-in-time view of all stats.
type StatsSnapshot struct {
	CommandsHandled  uint64
	CommandErrors    uint64
	TicksApplied     uint64
	SnapshotsFetched uint64
	StreamConnected  bool
	Uptime           time.Duration
	Timestamp        time.Time
}

// Snapshot returns current stats as a snapshot.
func (s *Stats) Snapshot() StatsSnapshot {
	var uptime time.Duration
	if started := s.startedAtUnix.Load(); started > 0 {
		uptime = time.Since(time.Unix(started, 0))
	}

	return StatsSnapshot{
		CommandsHandled:  s.commandsHandled.Load(),
		CommandErrors:    s.commandErrors.Load(),
		TicksApplied:     s.ticksApplied.Load(),
		SnapshotsFetched: s.snapshotsFetched.Load(),
		StreamConnected:  s.streamConnected.Load() == 1,
		Uptime:           uptime,
		Timestamp:        time.Now(),
	}
}

// Reset clears all stats (for testing).
func (s *Stats) Reset() {
	s.commandsHandled.Store(0)
	s.commandErrors.Store(0)
	s.ticksApplied.Store(0)
	s.snapshotsFetched.Store(0)
	s.streamConnected.Store(0)
	s.startedAtUnix.Store(0)
}
