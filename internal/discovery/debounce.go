package discovery

import (
	"sync"
	"time"
)

// Debouncer coalesces rapid input into a single commit. Each Input stores
// the text and re-arms a single-shot timer; the last text is committed once
// the delay passes without further input.
type Debouncer struct {
	delay  time.Duration
	commit func(string)

	mu      sync.Mutex
	timer   *time.Timer
	buffer  string
	pending bool
	seq     uint64
}

// NewDebouncer creates a Debouncer that calls commit after delay
func NewDebouncer(delay time.Duration, commit func(string)) *Debouncer {
	return &Debouncer{delay: delay, commit: commit}
}

// Input records new text and restarts the delay
func (d *Debouncer) Input(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.buffer = text
	d.pending = true
	d.seq++
	seq := d.seq
	d.stopTimerLocked()
	d.timer = time.AfterFunc(d.delay, func() { d.fire(seq) })
}

// Buffer returns the text most recently typed, committed or not
func (d *Debouncer) Buffer() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buffer
}

// Pending reports whether a commit is scheduled
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Flush commits the buffered text now if a commit is pending
func (d *Debouncer) Flush() {
	d.mu.Lock()
	if !d.pending {
		d.mu.Unlock()
		return
	}
	d.commitLocked()
}

// Stop drops any pending commit
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopTimerLocked()
	d.pending = false
	d.seq++
}

func (d *Debouncer) fire(seq uint64) {
	d.mu.Lock()
	// a newer Input, Flush or Stop already took over
	if seq != d.seq || !d.pending {
		d.mu.Unlock()
		return
	}
	d.commitLocked()
}

// commitLocked hands the buffer to commit and releases d.mu. Pending stays
// set until commit returns, so Pending never reports false while the
// committed text has not been applied yet.
func (d *Debouncer) commitLocked() {
	d.stopTimerLocked()
	d.seq++
	seq, text := d.seq, d.buffer
	d.mu.Unlock()

	d.commit(text)

	d.mu.Lock()
	if d.seq == seq {
		d.pending = false
	}
	d.mu.Unlock()
}

func (d *Debouncer) stopTimerLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
