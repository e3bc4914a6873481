package edit

import "testing"

func TestBufferScheduleAndFlush(t *testing.T) {
	b, err := New("f.rs", "fn main() { old() }")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	start := 12
	end := 17 // placeholder; both offsets are recomputed from the text below
	src := b.Text()
	start = indexOf(src, "old")
	end = start + len("old")
	if err := b.Schedule(start, end, "new"); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	got, err := b.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	want := "fn main() { new() }"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestBufferInsertionOrderingAtSamePoint(t *testing.T) {
	b, err := New("f.rs", "ab")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := b.Schedule(1, 1, "X"); err != nil {
		t.Fatalf("Schedule 1: %v", err)
	}
	if err := b.Schedule(1, 1, "Y"); err != nil {
		t.Fatalf("Schedule 2: %v", err)
	}
	got, err := b.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if got != "aXYb" {
		t.Fatalf("got %q want %q (insertion order by Seq)", got, "aXYb")
	}
}

func TestBufferRejectsOverlap(t *testing.T) {
	b, err := New("f.rs", "abcdef")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := b.Schedule(0, 3, "XXX"); err != nil {
		t.Fatalf("Schedule 1: %v", err)
	}
	if err := b.Schedule(2, 4, "YY"); err == nil {
		t.Fatalf("expected overlap error")
	}
}

func TestBufferBrokenEditFails(t *testing.T) {
	b, err := New("f.rs", "fn main() {}")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// Schedule an edit that introduces an unterminated string literal.
	if err := b.Schedule(0, 0, `"`); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if err := b.Flush(); err == nil {
		t.Fatalf("expected BrokenEditError")
	} else if _, ok := err.(*BrokenEditError); !ok {
		t.Fatalf("expected *BrokenEditError, got %T: %v", err, err)
	}
}

func TestBufferFlushNoopWhenNothingPending(t *testing.T) {
	b, err := New("f.rs", "fn main() {}")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	before := b.Text()
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if b.Text() != before {
		t.Fatalf("Flush with nothing pending changed the text")
	}
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
