// Package progress tracks bytes written during a streaming operation and
// decides when that progress is worth surfacing to a subscriber.
package progress

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

// Tracker accumulates the number of bytes written against a known (or
// estimated) total and exposes a formatted progress bar, mirroring the
// teacher's internal/progress.Progress but built around int64 byte counts
// and a slow-file gate instead of a bare Writer wrapper.
type Tracker struct {
	written int64
	total   int64

	start     time.Time
	slowShown bool
}

// New returns a tracker for an operation expected to move total bytes.
func New(total int64) *Tracker {
	return &Tracker{total: total, start: time.Now()}
}

// Add records n additional bytes written and returns the new total.
func (t *Tracker) Add(n int64) int64 {
	return atomic.AddInt64(&t.written, n)
}

// Written returns the number of bytes written so far.
func (t *Tracker) Written() int64 {
	return atomic.LoadInt64(&t.written)
}

// Total returns the expected total byte count.
func (t *Tracker) Total() int64 {
	return atomic.LoadInt64(&t.total)
}

// SetTotal updates the expected total, e.g. once the real file size is known.
func (t *Tracker) SetTotal(total int64) {
	atomic.StoreInt64(&t.total, total)
}

// Percent returns the completion percentage, clamped to [0, 100].
func (t *Tracker) Percent() int {
	total := t.Total()
	if total <= 0 {
		return 0
	}
	p := int(t.Written() * 100 / total)
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// ShouldEmit implements the busy-cursor throttling rule: a slow-file signal
// is raised only once a file has taken more than 3 seconds of wall-clock
// time and is still below 50% complete. It latches true at most once per
// tracker, matching kbackup's msgShown flag in Archiver::addLocalFile and
// Archiver::compressFile.
func (t *Tracker) ShouldEmit() bool {
	if t.slowShown {
		return false
	}
	if time.Since(t.start) > 3*time.Second && t.Percent() < 50 {
		t.slowShown = true
		return true
	}
	return false
}

// Bar renders a fixed-width textual progress bar such as
// "[==            ] 1.0 MiB / 10.0 MiB".
func (t *Tracker) Bar(width int) string {
	total := t.Total()
	current := t.Written()

	var ticks int
	if total > 0 {
		ticks = int(float64(current) / float64(total) * float64(width))
	}
	if ticks < 0 {
		ticks = 0
	} else if ticks > width {
		ticks = width
	}

	bar := strings.Repeat("=", ticks) + strings.Repeat(" ", width-ticks)
	return "[" + bar + "] " + FormatBytes(current) + " / " + FormatBytes(total)
}

// FormatBytes renders n as a human-readable IEC byte size, e.g. "1.5 MiB".
func FormatBytes(n int64) string {
	if n < 1024 {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(1024), 0
	for v := n / 1024; v >= 1024; v /= 1024 {
		div *= 1024
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
