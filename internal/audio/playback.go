package audio

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Scheduler paces decoded model audio for gapless playback. Chunks are
// queued back to back on a monotonic cursor that never schedules into the
// past, and an interruption cancels everything still pending.
type Scheduler struct {
	clk        clock.Clock
	sampleRate int
	sink       func(samples []float32)

	mu      sync.Mutex
	cursor  time.Time
	pending map[*clock.Timer]struct{}
}

// NewScheduler builds a scheduler that delivers each chunk to sink at its
// scheduled start time.
func NewScheduler(clk clock.Clock, sampleRate int, sink func([]float32)) *Scheduler {
	return &Scheduler{
		clk:        clk,
		sampleRate: sampleRate,
		sink:       sink,
		pending:    map[*clock.Timer]struct{}{},
	}
}

// Schedule queues one chunk after any already-queued audio and returns its
// start time.
func (s *Scheduler) Schedule(samples []float32) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clk.Now()
	start := s.cursor
	if start.Before(now) {
		start = now
	}
	duration := time.Duration(len(samples)) * time.Second / time.Duration(s.sampleRate)
	s.cursor = start.Add(duration)

	var timer *clock.Timer
	timer = s.clk.AfterFunc(start.Sub(now), func() {
		s.mu.Lock()
		_, live := s.pending[timer]
		delete(s.pending, timer)
		s.mu.Unlock()
		if live {
			s.sink(samples)
		}
	})
	s.pending[timer] = struct{}{}
	return start
}

// StopAll cancels every pending chunk and rewinds the cursor so the next
// chunk plays immediately.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for t := range s.pending {
		t.Stop()
	}
	s.pending = map[*clock.Timer]struct{}{}
	s.cursor = time.Time{}
}

// Pending reports how many chunks are queued but not yet delivered.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
