package progress

import (
	"strings"
)

// EvaluateFlag reports whether a submitted candidate satisfies a
// challenge's expected flag. Leading/trailing whitespace in the candidate
// is ignored and the comparison is case-insensitive. No other
// normalization: no partial matches, no regex, no alternate flags.
func EvaluateFlag(candidate, expected string) bool {
	return strings.EqualFold(strings.TrimSpace(candidate), expected)
}
