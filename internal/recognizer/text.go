package recognizer

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// CleanOptions controls post-processing of raw model output.
type CleanOptions struct {
	NormalizeForm      string // "NFC" (default), "NFKC", "NFD", "NFKD", "none"
	CollapseWhitespace bool
	RemoveControlChars bool
	// RemoveZeroWidth drops U+200B and U+FEFF. Joiners are kept because
	// Devanagari conjuncts depend on them.
	RemoveZeroWidth bool
}

// DefaultCleanOptions returns the cleanup applied to every recognized region.
func DefaultCleanOptions() CleanOptions {
	return CleanOptions{
		NormalizeForm:      "NFC",
		CollapseWhitespace: true,
		RemoveControlChars: true,
		RemoveZeroWidth:    true,
	}
}

var wsRe = regexp.MustCompile(`\s+`)

// PostProcessText normalizes s and trims surrounding whitespace. The result
// is empty when s held nothing but whitespace or control characters.
func PostProcessText(s string, opts CleanOptions) string {
	if s == "" {
		return s
	}
	switch strings.ToUpper(opts.NormalizeForm) {
	case "NFC", "":
		s = norm.NFC.String(s)
	case "NFKC":
		s = norm.NFKC.String(s)
	case "NFD":
		s = norm.NFD.String(s)
	case "NFKD":
		s = norm.NFKD.String(s)
	}
	if opts.RemoveZeroWidth || opts.RemoveControlChars {
		s = strings.Map(func(r rune) rune {
			if opts.RemoveZeroWidth && (r == '\u200B' || r == '\uFEFF') {
				return -1
			}
			if opts.RemoveControlChars && unicode.IsControl(r) && !unicode.IsSpace(r) {
				return -1
			}
			return r
		}, s)
	}
	if opts.CollapseWhitespace {
		s = wsRe.ReplaceAllString(s, " ")
	}
	return strings.TrimSpace(s)
}
