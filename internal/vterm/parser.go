package vterm

// parserState tracks the small state machine that recognizes C0 controls,
// CSI sequences, and OSC strings. It intentionally implements only the
// subset of xterm behavior the core needs (cursor movement, erase, SGR,
// DEC private modes for cursor visibility and alt-screen, DSR/CPR query
// response) — it is not a full terminfo-grade emulator, matching spec
// §1's "correct enough to replay visually" non-goal.
type parserState struct {
	mode    parseMode
	params  []int
	cur     int
	hasCur  bool
	private byte // '?' when the sequence has a DEC private marker
	osc     []byte
}

type parseMode int

const (
	modeGround parseMode = iota
	modeEscape
	modeCSI
	modeOSC
	modeOSCEsc
)

func (e *Emulator) feed(b byte) {
	switch e.parser.mode {
	case modeGround:
		e.feedGround(b)
	case modeEscape:
		e.feedEscape(b)
	case modeCSI:
		e.feedCSI(b)
	case modeOSC:
		e.feedOSC(b)
	case modeOSCEsc:
		if b == '\\' {
			e.dispatchOSC()
			e.parser.mode = modeGround
		} else {
			e.parser.mode = modeOSC
			e.feedOSC(b)
		}
	}
}

func (e *Emulator) feedGround(b byte) {
	switch b {
	case 0x1b:
		e.parser.mode = modeEscape
	case '\r':
		e.cursorCol = 0
	case '\n':
		e.newline(true)
	case '\b':
		if e.cursorCol > 0 {
			e.cursorCol--
		}
	case '\t':
		next := (e.cursorCol/8 + 1) * 8
		if next >= e.cols {
			next = e.cols - 1
		}
		e.cursorCol = next
	case 0x07: // BEL outside OSC — ignore
	default:
		if b < 0x20 {
			return
		}
		e.putRune(rune(b))
	}
}

func (e *Emulator) feedEscape(b byte) {
	switch b {
	case '[':
		e.parser.mode = modeCSI
		e.parser.params = e.parser.params[:0]
		e.parser.cur = 0
		e.parser.hasCur = false
		e.parser.private = 0
	case ']':
		e.parser.mode = modeOSC
		e.parser.osc = e.parser.osc[:0]
	case '7': // DECSC save cursor
		e.savedRow, e.savedCol = e.cursorRow, e.cursorCol
		e.parser.mode = modeGround
	case '8': // DECRC restore cursor
		e.cursorRow, e.cursorCol = e.savedRow, e.savedCol
		e.clampCursor()
		e.parser.mode = modeGround
	case 'M': // reverse index
		if e.cursorRow == 0 {
			e.pushScrollbackAtTop()
		} else {
			e.cursorRow--
		}
		e.parser.mode = modeGround
	default:
		e.parser.mode = modeGround
	}
}

// pushScrollbackAtTop is the reverse-index complement to scrollUp: it
// shifts the viewport down, inserting a blank row at the top. Nothing is
// evicted into scrollback here since content is moving the other way.
func (e *Emulator) pushScrollbackAtTop() {
	e.grid = append([]Row{newRow(e.cols)}, e.grid[:len(e.grid)-1]...)
}

func (e *Emulator) feedOSC(b byte) {
	switch b {
	case 0x07:
		e.dispatchOSC()
		e.parser.mode = modeGround
	case 0x1b:
		e.parser.mode = modeOSCEsc
	default:
		e.parser.osc = append(e.parser.osc, b)
	}
}

// dispatchOSC exists only to keep the parser well-formed; the core never
// renders OSC content (including the shim's 633 markers, which the
// processor recognizes on the raw byte stream before it ever reaches the
// emulator — see spec §6.1).
func (e *Emulator) dispatchOSC() {}

func (e *Emulator) feedCSI(b byte) {
	switch {
	case b == '?' && len(e.parser.params) == 0 && !e.parser.hasCur:
		e.parser.private = '?'
	case b >= '0' && b <= '9':
		e.parser.cur = e.parser.cur*10 + int(b-'0')
		e.parser.hasCur = true
	case b == ';':
		e.parser.params = append(e.parser.params, e.parser.curOrDefault(0))
		e.parser.cur = 0
		e.parser.hasCur = false
	case b == ':':
		// colon sub-parameters (used by SGR 4:n underline style, 38:2:...);
		// encode as a synthetic negative marker so sgr() can detect it.
		e.parser.params = append(e.parser.params, e.parser.curOrDefault(0))
		e.parser.cur = 0
		e.parser.hasCur = false
	case b >= 0x40 && b <= 0x7e:
		e.parser.params = append(e.parser.params, e.parser.curOrDefault(-1))
		e.dispatchCSI(b)
		e.parser.mode = modeGround
	default:
		// Unknown intermediate byte — ignore, stay in CSI.
	}
}

func (p *parserState) curOrDefault(def int) int {
	if p.hasCur {
		return p.cur
	}
	return def
}

func (p parserState) param(i, def int) int {
	if i >= len(p.params) || p.params[i] < 0 {
		return def
	}
	return p.params[i]
}

func (e *Emulator) dispatchCSI(final byte) {
	p := e.parser
	switch final {
	case 'H', 'f': // CUP
		row := p.param(0, 1) - 1
		col := p.param(1, 1) - 1
		e.cursorRow, e.cursorCol = row, col
		e.clampCursor()
	case 'A': // CUU
		e.cursorRow -= max1(p.param(0, 1))
		e.clampCursor()
	case 'B': // CUD
		e.cursorRow += max1(p.param(0, 1))
		e.clampCursor()
	case 'C': // CUF
		e.cursorCol += max1(p.param(0, 1))
		e.clampCursor()
	case 'D': // CUB
		e.cursorCol -= max1(p.param(0, 1))
		e.clampCursor()
	case 'G': // CHA
		e.cursorCol = p.param(0, 1) - 1
		e.clampCursor()
	case 'd': // VPA
		e.cursorRow = p.param(0, 1) - 1
		e.clampCursor()
	case 'J': // ED
		e.eraseDisplay(p.param(0, 0))
	case 'K': // EL
		e.eraseLine(p.param(0, 0))
	case 'L': // IL insert line
		e.insertLines(max1(p.param(0, 1)))
	case 'M': // DL delete line
		e.deleteLines(max1(p.param(0, 1)))
	case 'P': // DCH delete char
		e.deleteChars(max1(p.param(0, 1)))
	case 'X': // ECH erase char
		e.eraseChars(max1(p.param(0, 1)))
	case '@': // ICH insert char
		e.insertChars(max1(p.param(0, 1)))
	case 'm':
		e.sgr(p.params)
	case 'h':
		e.setMode(p, true)
	case 'l':
		e.setMode(p, false)
	case 'n': // DSR
		if p.param(0, 0) == 6 && e.resp != nil {
			e.resp.WriteResponse(cprResponse(e.cursorRow+1, e.cursorCol+1))
		}
	case 's':
		e.savedRow, e.savedCol = e.cursorRow, e.cursorCol
	case 'u':
		e.cursorRow, e.cursorCol = e.savedRow, e.savedCol
		e.clampCursor()
	}
}

func max1(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

func cprResponse(row, col int) []byte {
	s := "\x1b[" + itoa(row) + ";" + itoa(col) + "R"
	return []byte(s)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [12]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func (e *Emulator) setMode(p parserState, on bool) {
	if p.private != '?' {
		return
	}
	for _, mode := range p.params {
		switch mode {
		case 25: // DECTCEM cursor visibility
			e.cursorHidden = !on
		case 1049, 47, 1047: // alt screen
			e.setAltScreen(on)
		}
	}
}

func (e *Emulator) setAltScreen(on bool) {
	if on == e.altScreen {
		return
	}
	if on {
		e.altGrid = e.grid
		e.grid = make([]Row, e.rows)
		for i := range e.grid {
			e.grid[i] = newRow(e.cols)
		}
	} else if e.altGrid != nil {
		e.grid = e.altGrid
		e.altGrid = nil
	}
	e.altScreen = on
}

func (e *Emulator) eraseDisplay(mode int) {
	switch mode {
	case 0:
		e.eraseLine(0)
		for r := e.cursorRow + 1; r < e.rows; r++ {
			e.grid[r] = newRow(e.cols)
		}
	case 1:
		e.eraseLine(1)
		for r := 0; r < e.cursorRow; r++ {
			e.grid[r] = newRow(e.cols)
		}
	case 2, 3:
		for r := range e.grid {
			e.grid[r] = newRow(e.cols)
		}
	}
}

func (e *Emulator) eraseLine(mode int) {
	row := &e.grid[e.cursorRow]
	switch mode {
	case 0:
		for i := e.cursorCol; i < len(row.Cells); i++ {
			row.Cells[i] = blankCell()
		}
	case 1:
		for i := 0; i <= e.cursorCol && i < len(row.Cells); i++ {
			row.Cells[i] = blankCell()
		}
	case 2:
		*row = newRow(e.cols)
	}
}

func (e *Emulator) insertLines(n int) {
	r := e.cursorRow
	tail := append([]Row{}, e.grid[r:]...)
	for i := 0; i < n && len(tail) > 0; i++ {
		tail = append([]Row{newRow(e.cols)}, tail[:len(tail)-1]...)
	}
	copy(e.grid[r:], tail)
}

func (e *Emulator) deleteLines(n int) {
	r := e.cursorRow
	tail := append([]Row{}, e.grid[r:]...)
	for i := 0; i < n && len(tail) > 0; i++ {
		tail = append(tail[1:], newRow(e.cols))
	}
	copy(e.grid[r:], tail)
}

func (e *Emulator) insertChars(n int) {
	row := &e.grid[e.cursorRow]
	c := e.cursorCol
	tail := append([]Cell{}, row.Cells[c:]...)
	for i := 0; i < n && len(tail) > 0; i++ {
		tail = append([]Cell{blankCell()}, tail[:len(tail)-1]...)
	}
	copy(row.Cells[c:], tail)
}

func (e *Emulator) deleteChars(n int) {
	row := &e.grid[e.cursorRow]
	c := e.cursorCol
	tail := append([]Cell{}, row.Cells[c:]...)
	for i := 0; i < n && len(tail) > 0; i++ {
		tail = append(tail[1:], blankCell())
	}
	copy(row.Cells[c:], tail)
}

func (e *Emulator) eraseChars(n int) {
	row := &e.grid[e.cursorRow]
	for i := e.cursorCol; i < e.cursorCol+n && i < len(row.Cells); i++ {
		row.Cells[i] = blankCell()
	}
}
