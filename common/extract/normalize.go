package extract

import (
	"strings"
)

// Normalizer rewrites a raw text value
type Normalizer func(string) string

// Trim removes surrounding whitespace
func Trim(s string) string {
	return strings.TrimSpace(s)
}

// CollapseLines replaces every run of line breaks, and the spaces around it, with one space
func CollapseLines(s string) string {
	lines := strings.FieldsFunc(s, func(r rune) bool {
		return r == '\n' || r == '\r'
	})
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, " ")
}

// StripLabel removes every occurrence of label, used when a value was read from a labelled container
func StripLabel(label string) Normalizer {
	return func(s string) string {
		return strings.ReplaceAll(s, label, "")
	}
}

// Compose applies normalizers left to right
func Compose(normalizers ...Normalizer) Normalizer {
	return func(s string) string {
		for _, n := range normalizers {
			s = n(s)
		}
		return s
	}
}

// DefaultNormalize trims and collapses embedded line breaks
var DefaultNormalize = Compose(Trim, CollapseLines)
