// Package script holds the per-language strategy table that selects the
// detector model, reading-order policy and joining rules for a script.
package script

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/MeKo-Tech/lipi/internal/region"
)

// ErrUnsupportedLanguage is returned for language tags missing from the table.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// Language identifies a script/language workflow.
type Language string

const (
	English Language = "english"
	Nepali  Language = "nepali"
)

var aliases = map[string]Language{
	"en":      English,
	"eng":     English,
	"english": English,
	"ne":      Nepali,
	"nep":     Nepali,
	"nepali":  Nepali,
}

// ParseLanguage normalizes a user supplied language name. Unknown names are
// returned as-is so tables with extra scripts can resolve them.
func ParseLanguage(name string) Language {
	key := strings.ToLower(strings.TrimSpace(name))
	if lang, ok := aliases[key]; ok {
		return lang
	}
	return Language(key)
}

// Sequencing selects the reading-order policy.
type Sequencing string

const (
	// Lines orders one region per line, top to bottom.
	Lines Sequencing = "lines"
	// Words clusters word regions into lines, then orders each line left to right.
	Words Sequencing = "words"
)

// DefaultLineThreshold is the vertical distance in pixels under which two
// consecutive words share a line.
const DefaultLineThreshold = 20.0

// Profile describes how one script flows through the pipeline.
type Profile struct {
	Language        Language
	DetectorModelID string
	Sequencing      Sequencing
	LineThreshold   float64
	ShapeOrder      []region.Shape
	// Mask blacks out pixels outside polygon regions before cropping.
	Mask          bool
	LineSeparator string
	WordSeparator string
}

// Validate checks that a profile is usable.
func (p Profile) Validate() error {
	if p.Language == "" {
		return errors.New("profile language is empty")
	}
	if p.DetectorModelID == "" {
		return fmt.Errorf("%s: detector model id is empty", p.Language)
	}
	switch p.Sequencing {
	case Lines, Words:
	default:
		return fmt.Errorf("%s: unknown sequencing %q", p.Language, p.Sequencing)
	}
	if p.LineThreshold < 0 {
		return fmt.Errorf("%s: line threshold must be non-negative, got %v", p.Language, p.LineThreshold)
	}
	return nil
}

// Join assembles recognized text: words inside a line with WordSeparator,
// lines with LineSeparator. Empty lines are dropped.
func (p Profile) Join(lines [][]string) string {
	out := make([]string, 0, len(lines))
	for _, words := range lines {
		if len(words) == 0 {
			continue
		}
		out = append(out, strings.Join(words, p.WordSeparator))
	}
	return strings.Join(out, p.LineSeparator)
}

// Table maps languages to their profiles.
type Table map[Language]Profile

// DefaultTable returns the built-in English and Nepali profiles.
func DefaultTable() Table {
	return Table{
		English: {
			Language:        English,
			DetectorModelID: "handwritten-text-line-segment/3",
			Sequencing:      Lines,
			LineThreshold:   DefaultLineThreshold,
			ShapeOrder:      []region.Shape{region.Polygon},
			Mask:            true,
			LineSeparator:   "\n",
			WordSeparator:   " ",
		},
		Nepali: {
			Language:        Nepali,
			DetectorModelID: "devanagari-word-detection/1",
			Sequencing:      Words,
			LineThreshold:   DefaultLineThreshold,
			ShapeOrder:      []region.Shape{region.Box, region.CenterBox, region.Polygon},
			Mask:            true,
			LineSeparator:   "\n",
			WordSeparator:   " ",
		},
	}
}

// Lookup returns the profile registered for lang.
func (t Table) Lookup(lang Language) (Profile, error) {
	p, ok := t[ParseLanguage(string(lang))]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, lang)
	}
	return p, nil
}

// Languages returns the registered languages in sorted order.
func (t Table) Languages() []Language {
	out := make([]Language, 0, len(t))
	for l := range t {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Validate checks every profile in the table.
func (t Table) Validate() error {
	if len(t) == 0 {
		return errors.New("script table is empty")
	}
	for lang, p := range t {
		if p.Language != lang {
			return fmt.Errorf("profile for %q is registered as %q", p.Language, lang)
		}
		if err := p.Validate(); err != nil {
			return err
		}
	}
	return nil
}
