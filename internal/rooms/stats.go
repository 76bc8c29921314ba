package rooms

import (
	"sync"
	"time"

	"github.com/tempvox/tempvox/internal/platform"
)

// StatsSnapshot is a point-in-time copy of one room's lifetime counters.
type StatsSnapshot struct {
	TotalJoins     int       `json:"total_joins"`
	TotalLeaves    int       `json:"total_leaves"`
	TotalKicks     int       `json:"total_kicks"`
	TotalBans      int       `json:"total_bans"`
	UniqueVisitors int       `json:"unique_visitors"`
	PeakOccupancy  int       `json:"peak_occupancy"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

type statsEntry struct {
	totalJoins     int
	totalLeaves    int
	totalKicks     int
	totalBans      int
	uniqueVisitors map[platform.UserID]struct{}
	peakOccupancy  int
	lastActivityAt time.Time
}

// Stats accumulates per-room counters in memory. Explicitly non-durable: the
// collector starts empty on every process start and entries vanish when a
// room is reaped. Inject one per process; tests hand each case its own.
type Stats struct {
	mu    sync.Mutex
	rooms map[platform.ChannelID]*statsEntry
	now   func() time.Time
}

// NewStats returns an empty collector.
func NewStats() *Stats {
	return &Stats{
		rooms: make(map[platform.ChannelID]*statsEntry),
		now:   time.Now,
	}
}

func (s *Stats) entry(ch platform.ChannelID) *statsEntry {
	e, ok := s.rooms[ch]
	if !ok {
		e = &statsEntry{uniqueVisitors: make(map[platform.UserID]struct{})}
		s.rooms[ch] = e
	}
	return e
}

// RecordJoin counts a join and the visitor; occupancy is the channel
// population after the join, for peak tracking.
func (s *Stats) RecordJoin(ch platform.ChannelID, user platform.UserID, occupancy int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entry(ch)
	e.totalJoins++
	e.uniqueVisitors[user] = struct{}{}
	if occupancy > e.peakOccupancy {
		e.peakOccupancy = occupancy
	}
	e.lastActivityAt = s.now()
}

// RecordLeave counts a leave.
func (s *Stats) RecordLeave(ch platform.ChannelID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entry(ch)
	e.totalLeaves++
	e.lastActivityAt = s.now()
}

// RecordKick counts a forced disconnect.
func (s *Stats) RecordKick(ch platform.ChannelID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entry(ch)
	e.totalKicks++
	e.lastActivityAt = s.now()
}

// RecordBan counts a ban.
func (s *Stats) RecordBan(ch platform.ChannelID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entry(ch)
	e.totalBans++
	e.lastActivityAt = s.now()
}

// Snapshot returns a copy of the room's counters. A room the collector has
// never seen reads as all-zero, ok=false.
func (s *Stats) Snapshot(ch platform.ChannelID) (StatsSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.rooms[ch]
	if !ok {
		return StatsSnapshot{}, false
	}
	return StatsSnapshot{
		TotalJoins:     e.totalJoins,
		TotalLeaves:    e.totalLeaves,
		TotalKicks:     e.totalKicks,
		TotalBans:      e.totalBans,
		UniqueVisitors: len(e.uniqueVisitors),
		PeakOccupancy:  e.peakOccupancy,
		LastActivityAt: e.lastActivityAt,
	}, true
}

// Forget drops a room's counters after it is reaped.
func (s *Stats) Forget(ch platform.ChannelID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, ch)
}
