package secret

import "strings"

// Mask returns a redacted representation of a credential suitable for logs
// and status output. Short secrets are fully masked so their length leaks
// nothing useful; longer ones keep a small prefix for identification.
func Mask(s string) string {
	n := len(s)
	switch {
	case n == 0:
		return ""
	case n <= 8:
		return strings.Repeat("*", n)
	default:
		return s[:4] + strings.Repeat("*", 8) + s[n-1:]
	}
}
