package preview

import (
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
)

// KeyName returns the browser key name a keyPressed condition compares
// against: " " for space, lowercase letters, digits, and the Arrow*/Enter
// names unchanged. Keys a program cannot test for report false.
func KeyName(k ebiten.Key) (string, bool) {
	s := k.String()
	switch {
	case k == ebiten.KeySpace:
		return " ", true
	case len(s) == 1 && s[0] >= 'A' && s[0] <= 'Z':
		return strings.ToLower(s), true
	case len(s) == 6 && strings.HasPrefix(s, "Digit"):
		return s[5:], true
	}
	switch s {
	case "ArrowUp", "ArrowDown", "ArrowLeft", "ArrowRight", "Enter", "Escape", "Tab", "Backspace":
		return s, true
	}
	return "", false
}
