package pdf

import (
	"fmt"
	"strings"

	dpdf "github.com/dslipak/pdf"
)

// TextLayer returns the embedded (typed) text of the selected pages, keyed
// by page number. Pages without a text layer are absent from the map.
func TextLayer(filename, pageRange string) (map[int]string, error) {
	pageNumbers, err := parsePageRange(pageRange)
	if err != nil {
		return nil, fmt.Errorf("%w: page range %q: %w", ErrInvalid, pageRange, err)
	}
	r, err := dpdf.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("%w: open text layer: %w", ErrInvalid, err)
	}

	total := r.NumPage()
	if len(pageNumbers) == 0 {
		for n := 1; n <= total; n++ {
			pageNumbers = append(pageNumbers, n)
		}
	}
	out := make(map[int]string)
	for _, n := range pageNumbers {
		if n < 1 || n > total {
			continue
		}
		page := r.Page(n)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(make(map[string]*dpdf.Font))
		if err != nil {
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			out[n] = text
		}
	}
	return out, nil
}
