// Package vterm implements the VT/ANSI emulator and scrollback snapshot
// described in spec §4.2: a grid of styled cells driven by a byte stream,
// replayable as ANSI segments, with logical (unwrapped) line reconstruction.
//
// It is a from-scratch state machine rather than a wrapper around a
// terminal-emulation library, because the snapshot protocol (per-cell SGR
// delta emission, a bounded 2000-row scrollback, and logical-line
// reconstruction from wrap flags) needs direct grid access that a
// higher-level renderer does not expose. It follows the teacher's style of
// a small mutex-guarded type fed by Write (internal/egg/vterm.go), and
// reuses ultraviolet-style cell semantics (SGR colon-extended underline,
// 256/truecolor) as that package documents them.
package vterm

import (
	"sync"

	"golang.org/x/text/width"
)

const maxScrollback = 2000

// ResponseWriter receives bytes the emulator wants written back to the
// PTY in answer to a query (DSR, CPR). The caller routes this into the
// session's input path.
type ResponseWriter interface {
	WriteResponse(p []byte)
}

// Emulator is a VT100/xterm-ish screen buffer. All exported methods are
// safe for concurrent use; callers typically serialize writes from a
// single processor goroutine but may read snapshots from others.
type Emulator struct {
	mu   sync.Mutex
	rows int
	cols int

	grid       []Row
	scrollback []Row // oldest-first, bounded to maxScrollback
	cursorRow  int
	cursorCol  int
	savedRow   int
	savedCol   int

	cur Style // current SGR state applied to subsequently-written cells

	altScreen    bool
	altGrid      []Row
	cursorHidden bool

	resp ResponseWriter

	parser parserState
}

// New creates an Emulator with the given viewport size. rows/cols are
// clamped to at least 1 so a 1-cell-wide terminal never panics.
func New(rows, cols int) *Emulator {
	if rows < 1 {
		rows = 1
	}
	if cols < 1 {
		cols = 1
	}
	e := &Emulator{rows: rows, cols: cols}
	e.grid = make([]Row, rows)
	for i := range e.grid {
		e.grid[i] = newRow(cols)
	}
	return e
}

// SetResponseWriter installs the sink for DSR/CPR query answers.
func (e *Emulator) SetResponseWriter(w ResponseWriter) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resp = w
}

// Size returns the current viewport dimensions.
func (e *Emulator) Size() (rows, cols int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rows, e.cols
}

// SetSize resizes the viewport, padding or trimming rows/cols as needed.
func (e *Emulator) SetSize(rows, cols int) {
	if rows < 1 {
		rows = 1
	}
	if cols < 1 {
		cols = 1
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resizeLocked(rows, cols)
}

func (e *Emulator) resizeLocked(rows, cols int) {
	for i := range e.grid {
		e.grid[i].resize(cols)
	}
	if rows > len(e.grid) {
		for len(e.grid) < rows {
			e.grid = append(e.grid, newRow(cols))
		}
	} else if rows < len(e.grid) {
		// Rows scrolled off the top go to scrollback, preserving history.
		overflow := len(e.grid) - rows
		e.pushScrollback(e.grid[:overflow]...)
		e.grid = append([]Row{}, e.grid[overflow:]...)
	}
	e.rows = rows
	e.cols = cols
	e.clampCursor()
}

func (e *Emulator) clampCursor() {
	if e.cursorRow >= e.rows {
		e.cursorRow = e.rows - 1
	}
	if e.cursorRow < 0 {
		e.cursorRow = 0
	}
	if e.cursorCol >= e.cols {
		e.cursorCol = e.cols - 1
	}
	if e.cursorCol < 0 {
		e.cursorCol = 0
	}
}

// Write applies a chunk of PTY output to the emulator. It always reports
// len(p), nil — there is no backpressure at this layer.
func (e *Emulator) Write(p []byte) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, b := range p {
		e.feed(b)
	}
	return len(p), nil
}

// pushScrollback appends rows to the bounded scrollback ring, evicting the
// oldest entries once maxScrollback is exceeded.
func (e *Emulator) pushScrollback(rows ...Row) {
	if e.altScreen {
		return
	}
	e.scrollback = append(e.scrollback, rows...)
	if over := len(e.scrollback) - maxScrollback; over > 0 {
		e.scrollback = e.scrollback[over:]
	}
}

// scrollUp moves the top grid row into scrollback and appends a fresh
// blank row at the bottom, marking the evicted row's wrap state correctly.
func (e *Emulator) scrollUp() {
	e.pushScrollback(e.grid[0])
	e.grid = append(e.grid[1:], newRow(e.cols))
}

func (e *Emulator) newline(hard bool) {
	if !hard {
		e.grid[e.cursorRow].Wrapped = true
	}
	if e.cursorRow == e.rows-1 {
		e.scrollUp()
	} else {
		e.cursorRow++
	}
}

// runeWidth reports the terminal column width of r: 2 for east-asian wide
// and fullwidth runes, 0 for NUL, 1 for everything else. putRune treats a
// width of 0 as 1, so every printed rune advances the cursor.
func runeWidth(r rune) int {
	switch width.LookupRune(r).Kind() {
	case width.EastAsianWide, width.EastAsianFullwidth:
		return 2
	case width.Neutral, width.EastAsianAmbiguous, width.EastAsianHalfwidth, width.EastAsianNarrow:
		if r == 0 {
			return 0
		}
		return 1
	default:
		return 1
	}
}

func (e *Emulator) putRune(r rune) {
	w := runeWidth(r)
	if w == 0 {
		w = 1
	}
	if e.cursorCol+w > e.cols {
		e.newline(false)
		e.cursorCol = 0
	}
	row := &e.grid[e.cursorRow]
	row.Cells[e.cursorCol] = Cell{Rune: r, Width: w, Style: e.cur}
	for i := 1; i < w && e.cursorCol+i < e.cols; i++ {
		row.Cells[e.cursorCol+i] = Cell{Width: 0, Style: e.cur}
	}
	e.cursorCol += w
	if e.cursorCol > e.cols {
		e.cursorCol = e.cols
	}
	// cursorCol == cols is the "pending wrap" state: the actual wrap is
	// deferred until the next printable rune arrives (the check at the top
	// of this function), matching xterm so a trailing hard newline isn't
	// double-counted as a wrap.
}

// CursorPosition returns the 0-based (row, col) of the cursor.
func (e *Emulator) CursorPosition() (row, col int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cursorRow, e.cursorCol
}

// CursorHidden reports whether the last DECTCEM sequence hid the cursor.
func (e *Emulator) CursorHidden() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cursorHidden
}

// ScrollbackLen returns the number of scrollback rows currently retained.
func (e *Emulator) ScrollbackLen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.scrollback)
}

// Close releases emulator resources. The in-memory emulator holds none,
// but the method exists to match the lifecycle of the sessions that own it.
func (e *Emulator) Close() error { return nil }
