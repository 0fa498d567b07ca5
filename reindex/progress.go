package reindex

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// ProgressTracker prints a self-overwriting status line for a run over a
// known number of records. It is safe for concurrent use.
type ProgressTracker struct {
	mu       sync.Mutex
	out      io.Writer
	total    int
	done     int
	every    int
	lastLine int
	began    time.Time
	running  bool
}

// NewProgressTracker prints to out each time at least every records have
// completed since the previous line.
func NewProgressTracker(out io.Writer, total, every int) *ProgressTracker {
	return &ProgressTracker{out: out, total: total, every: max(every, 1)}
}

// Start resets the counters and the clock.
func (p *ProgressTracker) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.began = time.Now()
	p.running = true
	p.done, p.lastLine = 0, 0
}

// Increment records delta completed records. Counts past total are clamped.
// Calls before Start are ignored.
func (p *ProgressTracker) Increment(delta int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	p.done = min(p.done+delta, p.total)
	if p.done-p.lastLine >= p.every {
		p.print()
		p.lastLine = p.done
	}
}

// Finish prints the final line at 100% and terminates it with a newline.
func (p *ProgressTracker) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	p.done = p.total
	p.print()
	fmt.Fprintln(p.out)
	p.running = false
}

// Done reports how many records have completed.
func (p *ProgressTracker) Done() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// Elapsed is zero until Start has been called.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.began.IsZero() {
		return 0
	}
	return time.Since(p.began)
}

func (p *ProgressTracker) print() {
	elapsed := time.Since(p.began)
	pct := 100.0
	if p.total > 0 {
		pct = float64(p.done) / float64(p.total) * 100
	}
	line := fmt.Sprintf("\rReindexed %d/%d records (%.1f%%)", p.done, p.total, pct)
	if p.done > 0 && p.done < p.total {
		perRecord := elapsed / time.Duration(p.done)
		eta := perRecord * time.Duration(p.total-p.done)
		line += fmt.Sprintf(", about %s left", eta.Round(time.Second))
	}
	fmt.Fprint(p.out, line)
}
