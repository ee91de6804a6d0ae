package identifier

import (
	"fmt"
	"strings"
)

// Escape serializes value as a CSS identifier following the CSSOM CSS.escape rules, so
// it can be embedded in an id selector or a quoted attribute selector.
func Escape(value string) string {
	runes := []rune(value)
	var b strings.Builder
	b.Grow(len(value))

	for i, r := range runes {
		switch {
		case r == 0:
			b.WriteRune('\uFFFD')
		case (r >= 0x01 && r <= 0x1f) || r == 0x7f,
			i == 0 && isDigit(r),
			i == 1 && isDigit(r) && runes[0] == '-':
			fmt.Fprintf(&b, "\\%x ", r)
		case i == 0 && len(runes) == 1 && r == '-':
			b.WriteString(`\-`)
		case r >= 0x80 || r == '-' || r == '_' || isDigit(r) ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			b.WriteRune(r)
		default:
			b.WriteByte('\\')
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}
