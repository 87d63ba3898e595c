//go:build linux

package device

// US-layout rune to keycode map for the virtual keyboard. Runes without an
// entry are skipped when typing.

const keyLeftShift = 42

type keystroke struct {
	code  uint16
	shift bool
}

var plainKeys = map[rune]uint16{
	'1': 2, '2': 3, '3': 4, '4': 5, '5': 6,
	'6': 7, '7': 8, '8': 9, '9': 10, '0': 11,
	'-': 12, '=': 13,
	'q': 16, 'w': 17, 'e': 18, 'r': 19, 't': 20,
	'y': 21, 'u': 22, 'i': 23, 'o': 24, 'p': 25,
	'[': 26, ']': 27, '\n': 28,
	'a': 30, 's': 31, 'd': 32, 'f': 33, 'g': 34,
	'h': 35, 'j': 36, 'k': 37, 'l': 38, ';': 39,
	'\'': 40, '`': 41, '\\': 43,
	'z': 44, 'x': 45, 'c': 46, 'v': 47, 'b': 48,
	'n': 49, 'm': 50, ',': 51, '.': 52, '/': 53,
	' ': 57, '\t': 15,
}

var shiftKeys = map[rune]uint16{
	'!': 2, '@': 3, '#': 4, '$': 5, '%': 6,
	'^': 7, '&': 8, '*': 9, '(': 10, ')': 11,
	'_': 12, '+': 13,
	'{': 26, '}': 27,
	':': 39, '"': 40, '~': 41, '|': 43,
	'<': 51, '>': 52, '?': 53,
}

func keyFor(r rune) (keystroke, bool) {
	if code, ok := plainKeys[r]; ok {
		return keystroke{code: code}, true
	}
	if code, ok := shiftKeys[r]; ok {
		return keystroke{code: code, shift: true}, true
	}
	if r >= 'A' && r <= 'Z' {
		lower := r + ('a' - 'A')
		if code, ok := plainKeys[lower]; ok {
			return keystroke{code: code, shift: true}, true
		}
	}
	return keystroke{}, false
}

// keyboardKeyCodes lists every keycode the virtual keyboard can emit.
func keyboardKeyCodes() []uint16 {
	seen := map[uint16]bool{keyLeftShift: true}
	codes := []uint16{keyLeftShift}
	for _, c := range plainKeys {
		if !seen[c] {
			seen[c] = true
			codes = append(codes, c)
		}
	}
	for _, c := range shiftKeys {
		if !seen[c] {
			seen[c] = true
			codes = append(codes, c)
		}
	}
	return codes
}
