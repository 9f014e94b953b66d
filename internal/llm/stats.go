package llm

import (
	"sort"
	"sync"
	"time"
)

// Stats aggregates completion latencies and failure kinds over a rolling
// window. Recorded around every Complete call by the session layer.
type Stats struct {
	mu       sync.Mutex
	window   time.Duration
	calls    []call
	failures map[string]int
}

type call struct {
	at      time.Time
	elapsed time.Duration
}

func NewStats(window time.Duration) *Stats {
	if window <= 0 {
		window = time.Hour
	}
	return &Stats{
		window:   window,
		failures: make(map[string]int),
	}
}

// Record adds one completion sample. A nil err counts as success; otherwise
// the failure kind is tallied.
func (s *Stats) Record(elapsed time.Duration, err error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.prune(now)
	s.calls = append(s.calls, call{at: now, elapsed: elapsed})
	if err != nil {
		s.failures[KindOf(err).String()]++
	}
}

// Snapshot is a point-in-time view of recent completion calls.
type Snapshot struct {
	Count    int            `json:"count"`
	AvgMs    float64        `json:"avg_ms"`
	P50Ms    int64          `json:"p50_ms"`
	P95Ms    int64          `json:"p95_ms"`
	Failures map[string]int `json:"failures"`
}

func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prune(time.Now())

	snap := Snapshot{Failures: make(map[string]int, len(s.failures))}
	for k, v := range s.failures {
		snap.Failures[k] = v
	}
	if len(s.calls) == 0 {
		return snap
	}

	millis := make([]int64, len(s.calls))
	var sum int64
	for i, c := range s.calls {
		millis[i] = c.elapsed.Milliseconds()
		sum += millis[i]
	}
	sort.Slice(millis, func(i, j int) bool { return millis[i] < millis[j] })

	snap.Count = len(millis)
	snap.AvgMs = float64(sum) / float64(len(millis))
	snap.P50Ms = millis[len(millis)/2]
	snap.P95Ms = millis[(len(millis)*95)/100]
	return snap
}

func (s *Stats) prune(now time.Time) {
	cutoff := now.Add(-s.window)
	keep := s.calls[:0]
	for _, c := range s.calls {
		if !c.at.Before(cutoff) {
			keep = append(keep, c)
		}
	}
	s.calls = keep
}
