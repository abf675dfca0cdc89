// SPDX-License-Identifier: MPL-2.0

package trace

import "sync"

const (
	// StateReady means the cursor points at a record that can be served.
	StateReady CursorState = iota
	// StateExhausted means every record has been served; the next Serve fails.
	StateExhausted
)

type (
	// CursorState is the replay position state.
	CursorState int

	// Cursor walks a loaded trace during one replay session, applying the
	// repeat and advance rules of each record. It is safe for concurrent use:
	// every Serve runs under one lock, so calls are answered strictly in order.
	Cursor struct {
		mu              sync.Mutex
		trace           Trace
		recordIndex     int
		consumedRepeats int
		calls           int
	}

	// Served is the answer to one Serve call.
	Served struct {
		// Index is the position of the record in the trace.
		Index int
		// Record is the record that answered the call.
		Record CallRecord
		// RepeatsLeft is how many more calls this record answers, or
		// RepeatForever.
		RepeatsLeft int
	}
)

// String returns a human-readable representation of the state.
func (s CursorState) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// NewCursor returns a cursor at the first record. An empty trace starts exhausted.
func NewCursor(t Trace) *Cursor {
	return &Cursor{trace: t}
}

// Serve returns the record due for the next call and advances the position.
// Moving past the last record does not fail; only the following Serve does.
func (c *Cursor) Serve() (Served, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.recordIndex >= len(c.trace) {
		return Served{}, &ExhaustedTraceError{Calls: c.calls, Records: len(c.trace)}
	}

	r := c.trace[c.recordIndex]
	served := Served{Index: c.recordIndex, Record: r, RepeatsLeft: RepeatForever}
	c.calls++

	if r.RepeatNum == RepeatForever {
		return served, nil
	}

	c.consumedRepeats++
	served.RepeatsLeft = r.RepeatNum - c.consumedRepeats
	if c.consumedRepeats == r.RepeatNum {
		c.consumedRepeats = 0
		c.recordIndex++
	}
	return served, nil
}

// State returns the current cursor state.
func (c *Cursor) State() CursorState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// Position returns the index of the next record to serve and how many of its
// repeats were already consumed.
func (c *Cursor) Position() (recordIndex, consumedRepeats int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recordIndex, c.consumedRepeats
}

// Calls returns how many calls were served so far.
func (c *Cursor) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// Len returns the number of records in the trace.
func (c *Cursor) Len() int {
	return len(c.trace)
}

// Complete reports whether the recording has been fully replayed: the cursor is
// exhausted, or it rests on a RepeatForever record that is the last one. Records
// after a RepeatForever record are never served, so they leave it incomplete.
func (c *Cursor) Complete() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stateLocked() == StateExhausted {
		return true
	}
	return c.recordIndex == len(c.trace)-1 && c.trace[c.recordIndex].RepeatNum == RepeatForever
}

func (c *Cursor) stateLocked() CursorState {
	if c.recordIndex >= len(c.trace) {
		return StateExhausted
	}
	return StateReady
}
