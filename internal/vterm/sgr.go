package vterm

// sgr applies a parsed SGR parameter list to the emulator's current style,
// which subsequently-written cells inherit. Handles 16/256/truecolor fg+bg
// and the colon-extended underline styles (SGR 4:n), per spec §4.2.
func (e *Emulator) sgr(params []int) {
	if len(params) == 0 {
		e.cur = Style{}
		return
	}
	for i := 0; i < len(params); i++ {
		p := params[i]
		switch {
		case p == 0:
			e.cur = Style{}
		case p == 1:
			e.cur.Bold = true
		case p == 2:
			e.cur.Faint = true
		case p == 3:
			e.cur.Italic = true
		case p == 4:
			e.cur.Underline = UnderlineSingle
		case p == 5 || p == 6:
			e.cur.Blink = true
		case p == 7:
			e.cur.Reverse = true
		case p == 8:
			e.cur.Invisible = true
		case p == 9:
			e.cur.Strikethrough = true
		case p == 21:
			e.cur.Underline = UnderlineDouble
		case p == 22:
			e.cur.Bold, e.cur.Faint = false, false
		case p == 23:
			e.cur.Italic = false
		case p == 24:
			e.cur.Underline = UnderlineNone
		case p == 25:
			e.cur.Blink = false
		case p == 27:
			e.cur.Reverse = false
		case p == 28:
			e.cur.Invisible = false
		case p == 29:
			e.cur.Strikethrough = false
		case p == 53:
			e.cur.Overline = true
		case p == 55:
			e.cur.Overline = false
		case p >= 30 && p <= 37:
			e.cur.FG = Color{Kind: ColorPalette, Index: uint8(p - 30)}
		case p == 38:
			consumed := e.sgrExtendedColor(params[i:], &e.cur.FG)
			i += consumed
		case p == 39:
			e.cur.FG = Color{}
		case p >= 40 && p <= 47:
			e.cur.BG = Color{Kind: ColorPalette, Index: uint8(p - 40)}
		case p == 48:
			consumed := e.sgrExtendedColor(params[i:], &e.cur.BG)
			i += consumed
		case p == 49:
			e.cur.BG = Color{}
		case p >= 90 && p <= 97:
			e.cur.FG = Color{Kind: ColorPalette, Index: uint8(p - 90 + 8)}
		case p >= 100 && p <= 107:
			e.cur.BG = Color{Kind: ColorPalette, Index: uint8(p - 100 + 8)}
		}
	}
}

// sgrExtendedColor parses the SGR 38/48 "extended color" sub-sequence
// starting at params[0] (which is 38 or 48). Returns the number of extra
// params consumed beyond params[0] itself.
func (e *Emulator) sgrExtendedColor(params []int, dst *Color) int {
	if len(params) < 2 {
		return 0
	}
	switch params[1] {
	case 5: // indexed
		if len(params) >= 3 {
			*dst = Color{Kind: ColorPalette, Index: uint8(params[2])}
			return 2
		}
	case 2: // truecolor
		if len(params) >= 5 {
			*dst = Color{Kind: ColorTrueColor, R: uint8(params[2]), G: uint8(params[3]), B: uint8(params[4])}
			return 4
		}
	}
	return 1
}
