package vterm

import (
	"strings"
	"testing"
)

func TestPlainWrite(t *testing.T) {
	e := New(5, 10)
	e.Write([]byte("hello"))
	lines := e.Lines()
	if lines[0] != "hello" {
		t.Fatalf("got %q", lines[0])
	}
}

func TestOneCellWideNoPanic(t *testing.T) {
	e := New(1, 1)
	e.Write([]byte("abc\r\n"))
	lines := e.Lines()
	if len(lines) != 1 {
		t.Fatalf("expected 1 row, got %d", len(lines))
	}
	row, col := e.CursorPosition()
	if row < 0 || col < 0 {
		t.Fatalf("cursor clamped incorrectly: %d,%d", row, col)
	}
	snap := e.SnapshotANSISegments()
	if snap.Data == nil {
		t.Fatal("expected non-nil data segment")
	}
}

func TestSGRDeltaEmitsOnlyChanges(t *testing.T) {
	e := New(3, 20)
	e.Write([]byte("\x1b[1mbold\x1b[0m plain"))
	snap := e.SnapshotANSISegments()
	s := string(snap.Data)
	if !strings.Contains(s, "\x1b[1m") {
		t.Fatalf("expected bold-on escape, got %q", s)
	}
	if !strings.Contains(s, "bold") || !strings.Contains(s, "plain") {
		t.Fatalf("missing text content: %q", s)
	}
}

func TestTrailingBlankLinesTrimmed(t *testing.T) {
	e := New(10, 10)
	e.Write([]byte("line1"))
	snap := e.SnapshotANSISegments()
	// Only one content line plus cursor position escape should appear;
	// no trailing \r\n for the nine blank rows below it.
	if strings.Count(string(snap.Data), "\r\n") != 0 {
		t.Fatalf("expected no blank-line separators, got %q", snap.Data)
	}
}

func TestScrollbackCapped(t *testing.T) {
	e := New(2, 5)
	for i := 0; i < 2100; i++ {
		e.Write([]byte("x\r\n"))
	}
	if got := e.ScrollbackLen(); got > maxScrollback {
		t.Fatalf("scrollback exceeded cap: %d", got)
	}
}

func TestResizeShrinkAndGrowNoPanic(t *testing.T) {
	e := New(24, 80)
	e.Write([]byte("hello world"))
	e.SetSize(1, 1)
	e.SetSize(24, 80)
	lines := e.Lines()
	if len(lines) != 24 {
		t.Fatalf("expected 24 rows after resize, got %d", len(lines))
	}
}

// TestReplayEquivalence is the grounding for R4: applying bytes in two
// chunks produces the same visible rows as applying them in one chunk.
func TestReplayEquivalence(t *testing.T) {
	b1 := []byte("hello ")
	b2 := []byte("world\r\n\x1b[1msecond\x1b[0m line")

	e1 := New(5, 40)
	e1.Write(b1)
	e1.Write(b2)

	e2 := New(5, 40)
	e2.Write(append(append([]byte{}, b1...), b2...))

	l1 := e1.Lines()
	l2 := e2.Lines()
	if len(l1) != len(l2) {
		t.Fatalf("line count mismatch: %d vs %d", len(l1), len(l2))
	}
	for i := range l1 {
		if l1[i] != l2[i] {
			t.Fatalf("line %d mismatch: %q vs %q", i, l1[i], l2[i])
		}
	}
}

func TestLogicalLinesMergeOnWrap(t *testing.T) {
	e := New(3, 5)
	// "helloworld" fills two full 5-col rows without a hard break, so it
	// should reconstruct as one logical line; the explicit \r\n starts
	// a fresh logical line afterward.
	e.Write([]byte("helloworld\r\nhi"))
	logical := e.LogicalLines()
	if len(logical) < 2 {
		t.Fatalf("expected at least 2 logical lines, got %v", logical)
	}
	if logical[0] != "helloworld" {
		t.Fatalf("expected merged wrap line, got %q", logical[0])
	}
}

func TestDSRResponseWriter(t *testing.T) {
	var got []byte
	e := New(5, 10)
	e.SetResponseWriter(writerFunc(func(p []byte) { got = append(got, p...) }))
	e.Write([]byte("\x1b[6n"))
	if len(got) == 0 {
		t.Fatal("expected a CPR response")
	}
	if !strings.HasPrefix(string(got), "\x1b[1;1R") {
		t.Fatalf("unexpected CPR response: %q", got)
	}
}

type writerFunc func(p []byte)

func (f writerFunc) WriteResponse(p []byte) { f(p) }
