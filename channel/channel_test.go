package channel

import (
	"testing"
	"time"
)

func TestNewRejectsNonPositiveSize(t *testing.T) {
	if _, err := New(0); err == nil {
		t.Error("New(0) returned nil error, want InvalidArgumentError")
	}
}

func TestNewAcceptsSizeAndTransform(t *testing.T) {
	c, err := New(2, func(v any) any { return v.(int) * 10 })
	if err != nil {
		t.Fatalf("New(2, transform) error = %v", err)
	}
	if c.Size() != 2 {
		t.Errorf("Size() = %d, want 2", c.Size())
	}
}

func TestNewNoArgsUnbuffered(t *testing.T) {
	c, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if c.Size() != -1 {
		t.Errorf("Size() = %d, want -1 (no buffer)", c.Size())
	}
}

func TestPutTakeUnbufferedRoundTrip(t *testing.T) {
	c, _ := New()
	go func() {
		c.Put(1)
	}()
	if got := c.Take().Wait(); got != 1 {
		t.Errorf("Take() = %v, want 1", got)
	}
}

func TestPutTakeBufferedImmediate(t *testing.T) {
	c, _ := New(1)
	pr := c.Put("x").Wait()
	if !pr.Accepted {
		t.Fatalf("Put() PutResult = %+v, want Accepted", pr)
	}
	if got := c.Take().Wait(); got != "x" {
		t.Errorf("Take() = %v, want x", got)
	}
}

func TestPutRefusedAfterClose(t *testing.T) {
	c, _ := New(1)
	c.Close(false)
	pr := c.Put(1).Wait()
	if pr.Accepted {
		t.Error("Put() after Close() was Accepted, want refused")
	}
	if pr.Err != nil {
		t.Errorf("Put() after Close() Err = %v, want nil", pr.Err)
	}
}

func TestTakeOnEndedResolvesDone(t *testing.T) {
	c, _ := New()
	c.Close(false)
	if got := c.Take().Wait(); !IsDone(got) {
		t.Errorf("Take() on ended channel = %v, want Done", got)
	}
}

func TestCloseThenDrainThenEnd(t *testing.T) {
	c, _ := New(1)
	c.Put(1).Wait()
	c.Close(false)
	if c.State() != StateClosed {
		t.Fatalf("State() = %v, want StateClosed", c.State())
	}
	if got := c.Take().Wait(); got != 1 {
		t.Errorf("Take() = %v, want 1", got)
	}
	c.Done().Wait()
	if c.State() != StateEnded {
		t.Errorf("State() = %v, want StateEnded", c.State())
	}
	if got := c.Take().Wait(); !IsDone(got) {
		t.Errorf("Take() after end = %v, want Done", got)
	}
}

func TestCloseEmptyChannelEndsImmediately(t *testing.T) {
	c, _ := New()
	c.Close(false)
	if c.State() != StateEnded {
		t.Errorf("State() = %v, want StateEnded for an idle empty channel", c.State())
	}
}

func TestBufferedBackpressureParksSecondPut(t *testing.T) {
	c, _ := New(1)
	c.Put(1).Wait()

	done := make(chan struct{})
	go func() {
		c.Put(2).Wait()
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2 (1 in buf, 1 parked)", c.Len())
	}
	if c.BufLen() != 1 {
		t.Errorf("BufLen() = %d, want 1", c.BufLen())
	}
	if c.PutsLen() != 1 {
		t.Errorf("PutsLen() = %d, want 1", c.PutsLen())
	}

	if got := c.Take().Wait(); got != 1 {
		t.Errorf("Take() = %v, want 1", got)
	}

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("parked put did not resolve after buffer freed")
	}

	if c.BufLen() != 1 {
		t.Errorf("BufLen() after drain = %d, want 1", c.BufLen())
	}
	if c.PutsLen() != 0 {
		t.Errorf("PutsLen() after drain = %d, want 0", c.PutsLen())
	}
}

func TestTailDeliveredAfterBufDrainsWhileClosed(t *testing.T) {
	c, _ := New(1)
	c.Put(1).Wait()
	c.Tail(2)
	c.Close(false)

	if got := c.Take().Wait(); got != 1 {
		t.Errorf("first Take() = %v, want 1 (buf before tail)", got)
	}
	if got := c.Take().Wait(); got != 2 {
		t.Errorf("second Take() = %v, want 2 (tail after buf)", got)
	}
	c.Done().Wait()
	if c.State() != StateEnded {
		t.Errorf("State() = %v, want StateEnded", c.State())
	}
}

func TestEmptyReflectsLength(t *testing.T) {
	c, _ := New(2)
	if !c.Empty() {
		t.Error("Empty() = false on a fresh channel, want true")
	}
	c.Put(1).Wait()
	if c.Empty() {
		t.Error("Empty() = true after a put, want false")
	}
}

func TestFromDefaultClosedDrainsThenEnds(t *testing.T) {
	c := From([]any{1, 2, 3}, false)
	if c.Size() != 3 {
		t.Errorf("Size() = %d, want 3", c.Size())
	}
	if got := c.State(); got != StateClosed {
		t.Errorf("State() = %v, want StateClosed (keepOpen defaults to false)", got)
	}

	var got []any
	for i := 0; i < 3; i++ {
		got = append(got, c.Take().Wait())
	}
	want := []any{1, 2, 3}
	if !equalAnySlices(got, want) {
		t.Errorf("drained %v, want %v", got, want)
	}

	c.Done().Wait()
	if c.State() != StateEnded {
		t.Errorf("State() after drain = %v, want StateEnded", c.State())
	}
}

func TestFromKeepOpenAcceptsFurtherPuts(t *testing.T) {
	c := From([]any{1}, true)
	if got := c.State(); got != StateOpen {
		t.Errorf("State() = %v, want StateOpen (keepOpen = true)", got)
	}

	c.Put(2)
	got := []any{c.Take().Wait(), c.Take().Wait()}
	want := []any{1, 2}
	if !equalAnySlices(got, want) {
		t.Errorf("drained %v, want %v", got, want)
	}
	if c.State() != StateOpen {
		t.Errorf("State() after drain = %v, want StateOpen (never closed)", c.State())
	}
}

func TestFromEmptyValuesDefaultClosedEndsImmediately(t *testing.T) {
	c := From(nil, false)
	if c.State() != StateEnded {
		t.Errorf("State() = %v, want StateEnded (no values, closed immediately)", c.State())
	}
	if got := c.Take().Wait(); !IsDone(got) {
		t.Errorf("Take() = %v, want Done", got)
	}
}

func TestFilterTransformProducesNoOutputForSkip(t *testing.T) {
	c, _ := New(2, func(v any) any {
		if v.(int) < 0 {
			return Skip
		}
		return v
	})
	c.Put(-1).Wait()
	c.Put(2).Wait()
	c.Close(false)
	if got := c.Take().Wait(); got != 2 {
		t.Errorf("Take() = %v, want 2 (negative value filtered)", got)
	}
	if got := c.Take().Wait(); !IsDone(got) {
		t.Errorf("Take() = %v, want Done", got)
	}
}
