package validators

import (
	"strings"
	"unicode"
)

// SanitizeString trims, folds runs of whitespace and control characters into
// single spaces, and caps the result at maxLen runes. Reward names are shown
// on scanner screens, so a stray newline or tab must not survive.
func SanitizeString(input string, maxLen int) string {
	var b strings.Builder
	b.Grow(len(input))
	pendingSpace := false
	runes := 0
	for _, r := range strings.TrimSpace(input) {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			pendingSpace = b.Len() > 0
			continue
		}
		if maxLen > 0 && runes >= maxLen {
			break
		}
		if pendingSpace {
			if maxLen > 0 && runes+1 >= maxLen {
				break
			}
			b.WriteByte(' ')
			runes++
			pendingSpace = false
		}
		b.WriteRune(r)
		runes++
	}
	return b.String()
}
