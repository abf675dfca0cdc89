// SPDX-License-Identifier: MPL-2.0

package trace

import (
	"errors"
	"sync"
	"testing"
)

func rec(output string, repeat int) CallRecord {
	return CallRecord{Params: map[string]any{}, Output: TextOutput(output), RepeatNum: repeat}
}

func serveText(t *testing.T, c *Cursor) string {
	t.Helper()
	s, err := c.Serve()
	if err != nil {
		t.Fatalf("Serve() error: %v", err)
	}
	return s.Record.Output.Text
}

func TestCursor_RepeatThenForever(t *testing.T) {
	t.Parallel()

	c := NewCursor(Trace{rec("ok-1", 2), rec("ok-2", RepeatForever)})

	want := []string{"ok-1", "ok-1", "ok-2", "ok-2", "ok-2"}
	for i, w := range want {
		if got := serveText(t, c); got != w {
			t.Fatalf("call %d: Serve() = %q, want %q", i, got, w)
		}
	}
	for range 1000 {
		if got := serveText(t, c); got != "ok-2" {
			t.Fatalf("infinite record answered %q", got)
		}
	}
	if c.State() != StateReady {
		t.Errorf("State() = %s, want ready", c.State())
	}
	if !c.Complete() {
		t.Error("cursor parked on an infinite record should be complete")
	}
}

func TestCursor_LazyExhaustion(t *testing.T) {
	t.Parallel()

	c := NewCursor(Trace{rec("ok", 1)})

	if got := serveText(t, c); got != "ok" {
		t.Fatalf("Serve() = %q, want ok", got)
	}
	if c.State() != StateExhausted {
		t.Fatalf("State() = %s, want exhausted", c.State())
	}
	if !c.Complete() {
		t.Error("exhausted cursor should be complete")
	}

	_, err := c.Serve()
	if !errors.Is(err, ErrExhaustedTrace) {
		t.Fatalf("Serve() after last record error = %v, want ErrExhaustedTrace", err)
	}
	var exErr *ExhaustedTraceError
	if !errors.As(err, &exErr) {
		t.Fatalf("error should be *ExhaustedTraceError, got %T", err)
	}
	if exErr.Calls != 1 || exErr.Records != 1 {
		t.Errorf("ExhaustedTraceError = %+v", exErr)
	}

	// Exhaustion is sticky.
	if _, err := c.Serve(); !errors.Is(err, ErrExhaustedTrace) {
		t.Errorf("second Serve() after exhaustion error = %v", err)
	}
}

func TestCursor_EmptyTraceStartsExhausted(t *testing.T) {
	t.Parallel()

	c := NewCursor(Trace{})
	if c.State() != StateExhausted {
		t.Fatalf("State() = %s, want exhausted", c.State())
	}
	if _, err := c.Serve(); !errors.Is(err, ErrExhaustedTrace) {
		t.Fatalf("Serve() error = %v, want ErrExhaustedTrace", err)
	}
}

func TestCursor_FiniteRepeatIsExact(t *testing.T) {
	t.Parallel()

	for _, n := range []int{1, 2, 5, 17} {
		c := NewCursor(Trace{rec("a", n), rec("b", 1)})
		for i := range n {
			s, err := c.Serve()
			if err != nil {
				t.Fatalf("n=%d call %d: %v", n, i, err)
			}
			if s.Record.Output.Text != "a" {
				t.Fatalf("n=%d call %d: got %q", n, i, s.Record.Output.Text)
			}
			if s.RepeatsLeft != n-i-1 {
				t.Errorf("n=%d call %d: RepeatsLeft = %d", n, i, s.RepeatsLeft)
			}
		}
		if got := serveText(t, c); got != "b" {
			t.Fatalf("n=%d: call %d returned %q, want b", n, n+1, got)
		}
	}
}

func TestCursor_ForeverBeforeDeadRecordsIsIncomplete(t *testing.T) {
	t.Parallel()

	c := NewCursor(Trace{rec("a", RepeatForever), rec("b", 1)})
	for range 3 {
		if got := serveText(t, c); got != "a" {
			t.Fatalf("Serve() = %q, want a", got)
		}
	}
	if c.State() != StateReady {
		t.Errorf("State() = %s, want ready", c.State())
	}
	if c.Complete() {
		t.Error("records after the forever record were never served, cursor should not be complete")
	}
}

func TestCursor_CompleteOnlyWhenAllServed(t *testing.T) {
	t.Parallel()

	c := NewCursor(Trace{rec("a", 2), rec("b", 1)})
	if c.Complete() {
		t.Fatal("fresh cursor should not be complete")
	}
	serveText(t, c)
	if c.Complete() {
		t.Fatal("partially consumed record should not be complete")
	}
	idx, consumed := c.Position()
	if idx != 0 || consumed != 1 {
		t.Errorf("Position() = (%d, %d), want (0, 1)", idx, consumed)
	}
	serveText(t, c)
	serveText(t, c)
	if !c.Complete() {
		t.Error("cursor should be complete after all repeats")
	}
	if c.Calls() != 3 {
		t.Errorf("Calls() = %d, want 3", c.Calls())
	}
}

func TestCursor_ConcurrentServeIsOrdered(t *testing.T) {
	t.Parallel()

	const calls = 200
	c := NewCursor(Trace{rec("x", calls)})

	var wg sync.WaitGroup
	errs := make(chan error, calls)
	for range calls {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Serve(); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent Serve() error: %v", err)
	}
	if c.State() != StateExhausted {
		t.Errorf("State() = %s, want exhausted after %d calls", c.State(), calls)
	}
}
