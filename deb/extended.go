package deb

import "strings"

// EncodeExtended renders multi-line text as the continuation lines of a
// control field: every line gets a leading space and blank lines become " .".
// The text is trimmed first and the result always ends with a newline.
//
// Reference: https://www.debian.org/doc/debian-policy/ch-controlfields.html#syntax-of-control-files
func EncodeExtended(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return " \n"
	}
	var b strings.Builder
	for _, line := range strings.Split(text, "\n") {
		b.WriteByte(' ')
		if line == "" {
			b.WriteByte('.')
		} else {
			b.WriteString(line)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
