// Package ansi recognizes and decodes ANSI escape sequences in captured
// terminal output.
//
// The package offers two views over the same byte stream: Strip removes
// every recognized sequence and returns plain text, while Parse tokenizes
// the stream into text and escape tokens, decoding SGR parameters into a
// Style record. Both are built on one shared sequence recognizer, so they
// can never disagree about where a sequence starts or ends.
package ansi

import (
	"strings"
)

// TokenKind identifies what a Token holds.
type TokenKind int

const (
	// TokenText is a run of plain text between escape sequences.
	TokenText TokenKind = iota
	// TokenEscape is a single recognized (or trailing incomplete) escape sequence.
	TokenEscape
)

func (k TokenKind) String() string {
	switch k {
	case TokenText:
		return "text"
	case TokenEscape:
		return "escape"
	default:
		return "unknown"
	}
}

// ColorMode identifies how a Color value is encoded.
type ColorMode int

const (
	// ColorNone means no color has been set.
	ColorNone ColorMode = iota
	// ColorBasic is one of the 16 classic terminal colors (index 0-15).
	ColorBasic
	// ColorIndexed is an 8-bit palette color (index 0-255).
	ColorIndexed
	// ColorRGB is a 24-bit truecolor value.
	ColorRGB
)

// Color is a decoded SGR color in any of the three encodings terminals use.
type Color struct {
	Mode    ColorMode
	Index   uint8 // ColorBasic (0-15) or ColorIndexed (0-255)
	R, G, B uint8 // ColorRGB
}

// Style is the accumulated text style after applying SGR parameters.
type Style struct {
	Bold          bool
	Italic        bool
	Underline     bool
	Blink         bool
	Inverse       bool
	Hidden        bool
	Strikethrough bool
	Foreground    Color
	Background    Color
}

// IsZero reports whether the style carries no attributes at all.
func (s Style) IsZero() bool {
	return s == Style{}
}

// Token is one unit of parser output.
type Token struct {
	Kind TokenKind

	// Text is the payload for text tokens.
	Text string

	// Raw is the raw byte sequence for escape tokens.
	Raw string

	// Style is the accumulated style after applying an SGR escape.
	// It is nil for text tokens and non-SGR escapes.
	Style *Style
}

const (
	escByte = 0x1b
	belByte = 0x07
)

// HasAnsi reports whether text contains at least one escape introducer.
func HasAnsi(text string) bool {
	return strings.IndexByte(text, escByte) >= 0
}

// Strip removes every recognized escape sequence and returns the plain text.
//
// A trailing incomplete sequence (a CSI or OSC cut off at the end of the
// input) is withheld entirely rather than leaked as garbled text, so callers
// matching against a growing capture buffer never match across a split
// sequence boundary.
func Strip(text string) string {
	if !HasAnsi(text) {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	scan(text, func(t string) {
		b.WriteString(t)
	}, nil)
	return b.String()
}

// Parse tokenizes text into ordered text and escape tokens. SGR escapes
// decode their parameters into a Style record; parameter 0 resets the
// accumulated style and unrecognized parameters are ignored.
func Parse(text string) []Token {
	var tokens []Token
	var cur Style
	scan(text, func(t string) {
		tokens = append(tokens, Token{Kind: TokenText, Text: t})
	}, func(raw string) {
		tok := Token{Kind: TokenEscape, Raw: raw}
		if params, ok := sgrParams(raw); ok {
			applySGR(params, &cur)
			st := cur
			tok.Style = &st
		}
		tokens = append(tokens, tok)
	})
	return tokens
}

// ExtractText is Strip plus normalization for contexts where byte fidelity
// is unnecessary: CRLF and bare CR become LF, and non-printable control
// bytes other than LF and TAB are dropped.
func ExtractText(text string) string {
	stripped := Strip(text)
	stripped = strings.ReplaceAll(stripped, "\r\n", "\n")
	stripped = strings.ReplaceAll(stripped, "\r", "\n")

	var b strings.Builder
	b.Grow(len(stripped))
	for _, r := range stripped {
		if r == '\n' || r == '\t' {
			b.WriteRune(r)
			continue
		}
		if r < 0x20 || r == 0x7f {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// scan is the shared sequence recognizer. It walks text once, invoking
// onText for plain runs and onEscape for each recognized sequence.
// Either callback may be nil. A trailing incomplete sequence is reported
// through onEscape with whatever bytes were present.
func scan(text string, onText func(string), onEscape func(string)) {
	emitText := func(s string) {
		if onText != nil && s != "" {
			onText(s)
		}
	}
	emitEscape := func(s string) {
		if onEscape != nil && s != "" {
			onEscape(s)
		}
	}

	start := 0
	i := 0
	for i < len(text) {
		if text[i] != escByte {
			i++
			continue
		}
		emitText(text[start:i])
		end, complete := sequenceEnd(text, i)
		if !complete {
			emitEscape(text[i:])
			return
		}
		emitEscape(text[i:end])
		i = end
		start = i
	}
	emitText(text[start:])
}

// sequenceEnd returns the exclusive end index of the escape sequence
// starting at text[i] (which must be ESC). complete is false when the
// sequence runs past the end of the input.
func sequenceEnd(text string, i int) (end int, complete bool) {
	if i+1 >= len(text) {
		return 0, false
	}
	switch text[i+1] {
	case '[': // CSI: ESC [ params/intermediates final
		j := i + 2
		for j < len(text) && text[j] >= 0x20 && text[j] <= 0x3f {
			j++
		}
		if j >= len(text) {
			return 0, false
		}
		return j + 1, true
	case ']': // OSC: ESC ] body (BEL | ESC \)
		j := i + 2
		for j < len(text) {
			switch text[j] {
			case belByte:
				return j + 1, true
			case escByte:
				if j+1 < len(text) {
					if text[j+1] == '\\' {
						return j + 2, true
					}
					// Not a string terminator: end the OSC here and let
					// the next pass handle the new ESC.
					return j, true
				}
				return 0, false
			}
			j++
		}
		return 0, false
	case '(', ')', '#', '%': // charset designators take one more byte
		if i+2 >= len(text) {
			return 0, false
		}
		return i + 3, true
	default: // single-character ESC forms (ESC 7, ESC M, ESC =, ...)
		return i + 2, true
	}
}

// sgrParams returns the parameter string of a CSI ... m sequence, or
// ok=false for anything else.
func sgrParams(raw string) (string, bool) {
	if len(raw) < 3 || raw[0] != escByte || raw[1] != '[' || raw[len(raw)-1] != 'm' {
		return "", false
	}
	params := raw[2 : len(raw)-1]
	for i := 0; i < len(params); i++ {
		if (params[i] < '0' || params[i] > '9') && params[i] != ';' {
			return "", false
		}
	}
	return params, true
}

// applySGR mutates st according to the semicolon-separated SGR parameters.
func applySGR(params string, st *Style) {
	if params == "" {
		*st = Style{}
		return
	}

	parts := strings.Split(params, ";")
	nums := make([]int, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			nums = append(nums, 0)
			continue
		}
		n := 0
		for i := 0; i < len(p); i++ {
			n = n*10 + int(p[i]-'0')
		}
		nums = append(nums, n)
	}

	for i := 0; i < len(nums); i++ {
		n := nums[i]
		switch {
		case n == 0:
			*st = Style{}
		case n == 1:
			st.Bold = true
		case n == 3:
			st.Italic = true
		case n == 4:
			st.Underline = true
		case n == 5:
			st.Blink = true
		case n == 7:
			st.Inverse = true
		case n == 8:
			st.Hidden = true
		case n == 9:
			st.Strikethrough = true
		case n == 22:
			st.Bold = false
		case n == 23:
			st.Italic = false
		case n == 24:
			st.Underline = false
		case n == 25:
			st.Blink = false
		case n == 27:
			st.Inverse = false
		case n == 28:
			st.Hidden = false
		case n == 29:
			st.Strikethrough = false
		case n >= 30 && n <= 37:
			st.Foreground = Color{Mode: ColorBasic, Index: uint8(n - 30)}
		case n == 38 || n == 48:
			color, consumed, ok := extendedColor(nums[i+1:])
			if !ok {
				return // malformed extended color: ignore the rest
			}
			if n == 38 {
				st.Foreground = color
			} else {
				st.Background = color
			}
			i += consumed
		case n == 39:
			st.Foreground = Color{}
		case n >= 40 && n <= 47:
			st.Background = Color{Mode: ColorBasic, Index: uint8(n - 40)}
		case n == 49:
			st.Background = Color{}
		case n >= 90 && n <= 97:
			st.Foreground = Color{Mode: ColorBasic, Index: uint8(n - 90 + 8)}
		case n >= 100 && n <= 107:
			st.Background = Color{Mode: ColorBasic, Index: uint8(n - 100 + 8)}
		}
		// Anything else is deliberately ignored, not fatal.
	}
}

// extendedColor decodes the tail of a 38/48 parameter: 5;n (indexed) or
// 2;r;g;b (truecolor). consumed is the number of parameters used.
func extendedColor(rest []int) (color Color, consumed int, ok bool) {
	if len(rest) == 0 {
		return Color{}, 0, false
	}
	switch rest[0] {
	case 5:
		if len(rest) < 2 {
			return Color{}, 0, false
		}
		return Color{Mode: ColorIndexed, Index: clampByte(rest[1])}, 2, true
	case 2:
		if len(rest) < 4 {
			return Color{}, 0, false
		}
		return Color{
			Mode: ColorRGB,
			R:    clampByte(rest[1]),
			G:    clampByte(rest[2]),
			B:    clampByte(rest[3]),
		}, 4, true
	}
	return Color{}, 0, false
}

func clampByte(n int) uint8 {
	if n < 0 {
		return 0
	}
	if n > 255 {
		return 255
	}
	return uint8(n)
}
