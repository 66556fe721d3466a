// Package report accumulates the outcome of a run: lock-free counters for
// the hot path, mutex-guarded ordered lists for failures and skips.
package report

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const ringSize = 60

// SkipReason explains why an entry was not toggled.
type SkipReason int

const (
	ReasonNone SkipReason = iota
	ReasonSymlink
	ReasonSpecial
	ReasonMountBoundary
	ReasonExcluded
	ReasonVanished
	ReasonAccess
)

var reasonNames = [...]string{
	ReasonNone:          "none",
	ReasonSymlink:       "symlink",
	ReasonSpecial:       "special file",
	ReasonMountBoundary: "mount boundary crossed",
	ReasonExcluded:      "excluded by filter",
	ReasonVanished:      "vanished before toggle",
	ReasonAccess:        "metadata unreadable",
}

func (r SkipReason) String() string {
	if r >= 0 && int(r) < len(reasonNames) {
		return reasonNames[r]
	}
	return "unknown"
}

// Failure records one per-entry error, in discovery order.
type Failure struct {
	Path string
	Err  error
}

// Skip records one skipped entry, in discovery order.
type Skip struct {
	Path   string
	Reason SkipReason
}

// Collector tracks run progress. Counter methods are safe for concurrent
// use by toggle workers.
type Collector struct {
	toggled     atomic.Int64
	already     atomic.Int64
	failed      atomic.Int64
	skipped     atomic.Int64
	dirs        atomic.Int64
	dirsAlready atomic.Int64
	links       atomic.Int64
	examined    atomic.Int64

	startTime time.Time

	mu       sync.Mutex
	failures []Failure
	skips    []Skip
	byReason map[SkipReason]int64

	// Ring buffer of per-second toggle deltas. Written only by the
	// presenter's Tick, never by workers.
	perSec    [ringSize]int64
	ringIdx   int
	ringCount int
	lastCount int64
}

// NewCollector creates a Collector with startTime set to now.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		byReason:  make(map[SkipReason]int64),
	}
}

// AddToggled records a file whose attribute was changed.
func (c *Collector) AddToggled() { c.toggled.Add(1) }

// AddAlready records a file already in the target state. Counts as
// processed, which is what makes re-runs idempotent.
func (c *Collector) AddAlready() { c.already.Add(1) }

// AddDir records a directory whose attribute was changed (seal-dirs policy).
func (c *Collector) AddDir() { c.dirs.Add(1) }

// AddDirAlready records a directory already in the target state, keeping
// directory accounting separate from the file counters on re-runs.
func (c *Collector) AddDirAlready() { c.dirsAlready.Add(1) }

// AddExamined records one entry inspected by a read-only survey.
func (c *Collector) AddExamined() { c.examined.Add(1) }

// AddLink counts a symlink encountered during the walk.
func (c *Collector) AddLink() { c.links.Add(1) }

// AddSkip records a skipped entry with its reason.
func (c *Collector) AddSkip(path string, reason SkipReason) {
	c.skipped.Add(1)
	c.mu.Lock()
	c.skips = append(c.skips, Skip{Path: path, Reason: reason})
	c.byReason[reason]++
	c.mu.Unlock()
}

// AddFailure records a per-entry error. The run continues.
func (c *Collector) AddFailure(path string, err error) {
	c.failed.Add(1)
	c.mu.Lock()
	c.failures = append(c.failures, Failure{Path: path, Err: err})
	c.mu.Unlock()
}

// Snapshot is a point-in-time read of the collector.
type Snapshot struct {
	Toggled     int64
	Already     int64
	Failed      int64
	Skipped     int64
	Dirs        int64
	DirsAlready int64
	Links       int64
	Examined    int64
	Elapsed     time.Duration

	Failures      []Failure
	Skips         []Skip
	SkipsByReason map[SkipReason]int64
}

// Processed is every regular file accounted for as toggled or already in
// the target state.
func (s Snapshot) Processed() int64 { return s.Toggled + s.Already }

// Snapshot returns a consistent point-in-time copy of all counters and the
// ordered failure/skip lists.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	failures := make([]Failure, len(c.failures))
	copy(failures, c.failures)
	skips := make([]Skip, len(c.skips))
	copy(skips, c.skips)
	byReason := make(map[SkipReason]int64, len(c.byReason))
	for k, v := range c.byReason {
		byReason[k] = v
	}
	c.mu.Unlock()

	return Snapshot{
		Toggled:       c.toggled.Load(),
		Already:       c.already.Load(),
		Failed:        c.failed.Load(),
		Skipped:       c.skipped.Load(),
		Dirs:          c.dirs.Load(),
		DirsAlready:   c.dirsAlready.Load(),
		Links:         c.links.Load(),
		Examined:      c.examined.Load(),
		Elapsed:       time.Since(c.startTime),
		Failures:      failures,
		Skips:         skips,
		SkipsByReason: byReason,
	}
}

// Tick snapshots the processed-files delta into the ring buffer. Called
// once per second by the presenter.
func (c *Collector) Tick() {
	current := c.toggled.Load() + c.already.Load()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.perSec[c.ringIdx] = current - c.lastCount
	c.lastCount = current
	c.ringIdx = (c.ringIdx + 1) % ringSize
	if c.ringCount < ringSize {
		c.ringCount++
	}
}

// RollingRate returns average files/sec over the last n seconds of samples.
func (c *Collector) RollingRate(seconds int) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := seconds
	if count > c.ringCount {
		count = c.ringCount
	}
	if count == 0 {
		return 0
	}
	var sum int64
	for i := 0; i < count; i++ {
		idx := (c.ringIdx - 1 - i + ringSize) % ringSize
		sum += c.perSec[idx]
	}
	return float64(sum) / float64(count)
}

// RateSamples returns the last n files/sec samples, oldest first.
func (c *Collector) RateSamples(n int) []float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := n
	if count > c.ringCount {
		count = c.ringCount
	}
	if count == 0 {
		return nil
	}
	data := make([]float64, count)
	for i := 0; i < count; i++ {
		idx := (c.ringIdx - count + i + ringSize) % ringSize
		data[i] = float64(c.perSec[idx])
	}
	return data
}

func (s Snapshot) String() string {
	return fmt.Sprintf("toggled=%d already=%d skipped=%d failed=%d links=%d",
		s.Toggled, s.Already, s.Skipped, s.Failed, s.Links)
}
