package session

import "strings"

// Key is a symbolic key name accepted by SendKey.
type Key string

// The stable key vocabulary. Each name maps to the exact byte sequence a
// real terminal driver emits, identical on every platform.
const (
	KeyEnter     Key = "Enter"
	KeyCtrlC     Key = "CtrlC"
	KeyCtrlD     Key = "CtrlD"
	KeyEscape    Key = "Escape"
	KeyTab       Key = "Tab"
	KeyBackspace Key = "Backspace"
	KeyUp        Key = "Up"
	KeyDown      Key = "Down"
	KeyLeft      Key = "Left"
	KeyRight     Key = "Right"
)

var keySequences = map[Key][]byte{
	KeyEnter:     {0x0d},
	KeyCtrlC:     {0x03},
	KeyCtrlD:     {0x04},
	KeyEscape:    {0x1b},
	KeyTab:       {0x09},
	KeyBackspace: {0x7f},
	KeyUp:        []byte("\x1b[A"),
	KeyDown:      []byte("\x1b[B"),
	KeyLeft:      []byte("\x1b[D"),
	KeyRight:     []byte("\x1b[C"),
}

// aliases admit the spellings script authors actually type.
var keyAliases = map[string]Key{
	"enter":     KeyEnter,
	"return":    KeyEnter,
	"ctrlc":     KeyCtrlC,
	"ctrl+c":    KeyCtrlC,
	"ctrl-c":    KeyCtrlC,
	"ctrld":     KeyCtrlD,
	"ctrl+d":    KeyCtrlD,
	"ctrl-d":    KeyCtrlD,
	"escape":    KeyEscape,
	"esc":       KeyEscape,
	"tab":       KeyTab,
	"backspace": KeyBackspace,
	"up":        KeyUp,
	"down":      KeyDown,
	"left":      KeyLeft,
	"right":     KeyRight,
}

// LookupKey resolves a symbolic key name (canonical or alias,
// case-insensitive) to its byte sequence.
func LookupKey(name string) ([]byte, bool) {
	key, ok := keyAliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, false
	}
	seq := keySequences[key]
	out := make([]byte, len(seq))
	copy(out, seq)
	return out, true
}

// KeyNames returns the canonical key names in a stable order.
func KeyNames() []Key {
	return []Key{
		KeyEnter, KeyCtrlC, KeyCtrlD, KeyEscape, KeyTab,
		KeyBackspace, KeyUp, KeyDown, KeyLeft, KeyRight,
	}
}
