package recognizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPostProcessText(t *testing.T) {
	opts := DefaultCleanOptions()
	tests := map[string]string{
		"  hello  world \n":         "hello world",
		"\u200Bnamaste\uFEFF":       "namaste",
		"a\x00b":                    "ab",
		"\t\n ":                     "",
		"cafe\u0301":               "caf\u00e9",
		"\u0915\u094D\u200D\u0937": "\u0915\u094D\u200D\u0937",
	}
	for in, want := range tests {
		assert.Equal(t, want, PostProcessText(in, opts), "%q", in)
	}
}

func TestPostProcessText_NoCollapse(t *testing.T) {
	opts := DefaultCleanOptions()
	opts.CollapseWhitespace = false
	opts.NormalizeForm = "none"
	assert.Equal(t, "a  b", PostProcessText(" a  b ", opts))
	assert.Equal(t, "é", PostProcessText("é", opts))
}
