package vterm

import (
	"fmt"
	"strings"
)

// Snapshot is the replayable pair of ANSI byte segments spec §4.2 defines:
// History is the scrollback above the viewport (each line newline-terminated),
// Data is the trimmed viewport followed by a cursor-positioning sequence.
type Snapshot struct {
	History []byte
	Data    []byte
}

// SnapshotANSISegments renders the current scrollback and viewport as the
// two byte segments a reconnecting client replays to reconstruct the
// screen. SGR state is tracked continuously across both segments so each
// cell emits only the delta from its predecessor.
func (e *Emulator) SnapshotANSISegments() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	var sgrState Style
	var history strings.Builder
	for _, row := range e.scrollback {
		history.WriteString(renderRow(row, &sgrState))
		history.WriteString("\r\n")
	}

	var data strings.Builder
	lastContent := -1
	for i, row := range e.grid {
		if !row.isBlank() {
			lastContent = i
		}
	}
	for i := 0; i <= lastContent; i++ {
		data.WriteString(renderRow(e.grid[i], &sgrState))
		if i < lastContent {
			data.WriteString("\r\n")
		}
	}
	fmt.Fprintf(&data, "\x1b[%d;%dH", e.cursorRow+1, e.cursorCol+1)

	return Snapshot{History: []byte(history.String()), Data: []byte(data.String())}
}

// renderRow emits a row's visible cells (trailing blanks truncated),
// updating *cur in place so the caller can chain calls across rows/segments
// and only the SGR delta is ever written.
func renderRow(row Row, cur *Style) string {
	var b strings.Builder
	last := row.lastNonBlank()
	for i := 0; i < last; i++ {
		c := row.Cells[i]
		if c.Width == 0 {
			continue // filler half of a wide glyph, already emitted
		}
		if c.Style != *cur {
			b.WriteString(sgrDelta(*cur, c.Style))
			*cur = c.Style
		}
		r := c.Rune
		if r == 0 {
			r = ' '
		}
		b.WriteRune(r)
	}
	return b.String()
}

// sgrDelta emits the minimal SGR escape to move from `from` to `to`.
func sgrDelta(from, to Style) string {
	if from == to {
		return ""
	}
	var codes []string
	add := func(c string) { codes = append(codes, c) }

	// A full reset is cheapest when most flags are turning off at once.
	needsReset := from.Bold && !to.Bold ||
		from.Faint && !to.Faint ||
		from.Italic && !to.Italic ||
		from.Underline != UnderlineNone && to.Underline == UnderlineNone ||
		from.Blink && !to.Blink ||
		from.Reverse && !to.Reverse ||
		from.Invisible && !to.Invisible ||
		from.Strikethrough && !to.Strikethrough ||
		from.Overline && !to.Overline ||
		(from.FG != (Color{}) && to.FG == (Color{})) ||
		(from.BG != (Color{}) && to.BG == (Color{}))

	if needsReset {
		add("0")
		from = Style{}
	}
	if to.Bold && !from.Bold {
		add("1")
	}
	if to.Faint && !from.Faint {
		add("2")
	}
	if to.Italic && !from.Italic {
		add("3")
	}
	if to.Underline != UnderlineNone && to.Underline != from.Underline {
		add(underlineCode(to.Underline))
	}
	if to.Blink && !from.Blink {
		add("5")
	}
	if to.Reverse && !from.Reverse {
		add("7")
	}
	if to.Invisible && !from.Invisible {
		add("8")
	}
	if to.Strikethrough && !from.Strikethrough {
		add("9")
	}
	if to.Overline && !from.Overline {
		add("53")
	}
	if to.FG != from.FG {
		add(colorCode(to.FG, false))
	}
	if to.BG != from.BG {
		add(colorCode(to.BG, true))
	}
	if len(codes) == 0 {
		return ""
	}
	return "\x1b[" + strings.Join(codes, ";") + "m"
}

func underlineCode(u UnderlineStyle) string {
	switch u {
	case UnderlineDouble:
		return "4:2"
	case UnderlineCurly:
		return "4:3"
	case UnderlineDotted:
		return "4:4"
	case UnderlineDashed:
		return "4:5"
	default:
		return "4"
	}
}

func colorCode(c Color, bg bool) string {
	base := 38
	if bg {
		base = 48
	}
	switch c.Kind {
	case ColorPalette:
		if c.Index < 8 {
			if bg {
				return fmt.Sprintf("%d", 40+int(c.Index))
			}
			return fmt.Sprintf("%d", 30+int(c.Index))
		}
		if c.Index < 16 {
			if bg {
				return fmt.Sprintf("%d", 100+int(c.Index)-8)
			}
			return fmt.Sprintf("%d", 90+int(c.Index)-8)
		}
		return fmt.Sprintf("%d;5;%d", base, c.Index)
	case ColorTrueColor:
		return fmt.Sprintf("%d;2;%d;%d;%d", base, c.R, c.G, c.B)
	default:
		if bg {
			return "49"
		}
		return "39"
	}
}

// Lines returns the viewport's rows as right-trimmed UTF-8 strings,
// plain text with no escape sequences, one entry per physical row.
func (e *Emulator) Lines() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.grid))
	for i, row := range e.grid {
		out[i] = plainText(row)
	}
	return out
}

func plainText(row Row) string {
	last := row.lastNonBlank()
	var b strings.Builder
	for i := 0; i < last; i++ {
		c := row.Cells[i]
		if c.Width == 0 {
			continue
		}
		r := c.Rune
		if r == 0 {
			r = ' '
		}
		b.WriteRune(r)
	}
	return b.String()
}

// LogicalLines reconstructs unwrapped lines by concatenating consecutive
// physical rows where the predecessor filled the full column width and
// soft-wrapped (Row.Wrapped), rather than ending on a hard line feed.
func (e *Emulator) LogicalLines() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return logicalLines(e.grid)
}

// LogicalLinesWithScrollback is the same reconstruction but over the full
// scrollback + viewport, used by S3-style replay verification.
func (e *Emulator) LogicalLinesWithScrollback() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	all := make([]Row, 0, len(e.scrollback)+len(e.grid))
	all = append(all, e.scrollback...)
	all = append(all, e.grid...)
	return logicalLines(all)
}

func logicalLines(rows []Row) []string {
	var out []string
	var cur strings.Builder
	for _, row := range rows {
		cur.WriteString(plainText(row))
		if row.Wrapped {
			continue
		}
		out = append(out, cur.String())
		cur.Reset()
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}
