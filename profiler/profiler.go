// Package profiler - Per-stage timing for the classification pipeline.
package profiler

import (
	"sort"
	"sync"
	"time"
)

// DefaultMaxSamples is the number of recent durations kept per operation.
const DefaultMaxSamples = 600

// Profiler tracks operation timing statistics. It is safe for concurrent use.
type Profiler struct {
	mu             sync.RWMutex
	maxSamples     int
	startTime      time.Time
	operationTimes map[string]*TimeTracker
}

// TimeTracker tracks operation timing statistics.
type TimeTracker struct {
	durations []time.Duration
	totalTime time.Duration
	minTime   time.Duration
	maxTime   time.Duration
	count     int64
}

// Stats summarizes one operation. Mean covers the retained window; Count, Min and Max
// cover every recorded run.
type Stats struct {
	Count  int64   `json:"count"`
	MeanMs float64 `json:"mean_ms"`
	MinMs  float64 `json:"min_ms"`
	MaxMs  float64 `json:"max_ms"`
	LastMs float64 `json:"last_ms"`
}

// New creates a profiler.
//
// Arguments:
//   - maxSamples: Recent durations kept per operation. Zero uses DefaultMaxSamples.
//
// Returns:
//   - *Profiler: The profiler.
func New(maxSamples int) *Profiler {
	if maxSamples <= 0 {
		maxSamples = DefaultMaxSamples
	}
	return &Profiler{
		maxSamples:     maxSamples,
		startTime:      time.Now(),
		operationTimes: make(map[string]*TimeTracker),
	}
}

// StartOperation begins timing an operation.
//
// Arguments:
// - name: The name of the operation to track
//
// Returns:
// - A function to call when the operation completes
func (p *Profiler) StartOperation(name string) func() {
	start := time.Now()
	return func() {
		p.Record(name, time.Since(start))
	}
}

// Record adds a completed operation duration.
func (p *Profiler) Record(name string, duration time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tracker, exists := p.operationTimes[name]
	if !exists {
		tracker = &TimeTracker{
			minTime: duration,
			maxTime: duration,
		}
		p.operationTimes[name] = tracker
	}

	tracker.durations = append(tracker.durations, duration)
	tracker.totalTime += duration
	if len(tracker.durations) > p.maxSamples {
		// Remove oldest sample
		tracker.totalTime -= tracker.durations[0]
		tracker.durations = tracker.durations[1:]
	}
	tracker.count++

	if duration < tracker.minTime {
		tracker.minTime = duration
	}
	if duration > tracker.maxTime {
		tracker.maxTime = duration
	}
}

// Stats returns a snapshot of every tracked operation.
func (p *Profiler) Stats() map[string]Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	stats := make(map[string]Stats, len(p.operationTimes))
	for name, tracker := range p.operationTimes {
		n := len(tracker.durations)
		stats[name] = Stats{
			Count:  tracker.count,
			MeanMs: millis(tracker.totalTime) / float64(n),
			MinMs:  millis(tracker.minTime),
			MaxMs:  millis(tracker.maxTime),
			LastMs: millis(tracker.durations[n-1]),
		}
	}
	return stats
}

// Operations returns the tracked operation names in sorted order.
func (p *Profiler) Operations() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := make([]string, 0, len(p.operationTimes))
	for name := range p.operationTimes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Uptime returns the time since the profiler was created.
func (p *Profiler) Uptime() time.Duration {
	return time.Since(p.startTime)
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
