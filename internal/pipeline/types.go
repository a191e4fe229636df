package pipeline

import (
	"github.com/MeKo-Tech/lipi/internal/script"
	"github.com/MeKo-Tech/lipi/internal/utils"
)

// Status is the outcome of a completed run.
type Status string

const (
	// StatusComplete means at least one region produced text.
	StatusComplete Status = "complete"
	// StatusNoText means the run finished without legible text.
	StatusNoText Status = "no_text"
)

// Box is an axis-aligned crop rectangle in image pixels.
type Box struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
	W int `json:"w" yaml:"w"`
	H int `json:"h" yaml:"h"`
}

// RegionResult describes what happened to one detector prediction.
type RegionResult struct {
	// Index is the prediction's position in the detector response.
	Index int `json:"index" yaml:"index"`
	// Line is the reading-order line, or -1 for records that never got one.
	Line    int           `json:"line" yaml:"line"`
	Shape   string        `json:"shape,omitempty" yaml:"shape,omitempty"`
	Box     Box           `json:"box" yaml:"box"`
	Polygon []utils.Point `json:"polygon,omitempty" yaml:"polygon,omitempty"`
	Text    string        `json:"text" yaml:"text"`
	Skipped bool          `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Reason  string        `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// Processing holds stage timings in nanoseconds.
type Processing struct {
	DetectionNs   int64 `json:"detection_ns" yaml:"detection_ns"`
	RecognitionNs int64 `json:"recognition_ns" yaml:"recognition_ns"`
	TotalNs       int64 `json:"total_ns" yaml:"total_ns"`
}

// Result is the per-image OCR output.
type Result struct {
	Language script.Language `json:"language" yaml:"language"`
	Status   Status          `json:"status" yaml:"status"`
	Text     string          `json:"text" yaml:"text"`
	Lines    []string        `json:"lines" yaml:"lines"`
	Regions  []RegionResult  `json:"regions" yaml:"regions"`
	Width    int             `json:"width" yaml:"width"`
	Height   int             `json:"height" yaml:"height"`
	// DetectorOrder is set when reading order fell back to detector order.
	DetectorOrder bool       `json:"detector_order,omitempty" yaml:"detector_order,omitempty"`
	Processing    Processing `json:"processing" yaml:"processing"`
}

// HasText reports whether any region produced text.
func (r *Result) HasText() bool { return r != nil && r.Status == StatusComplete }

// PDFPageResult holds the results for the images of one page.
type PDFPageResult struct {
	PageNumber int       `json:"page_number" yaml:"page_number"`
	Source     string    `json:"source" yaml:"source"`
	Images     []*Result `json:"images" yaml:"images"`
	Text       string    `json:"text" yaml:"text"`
}

// Page sources.
const (
	SourceOCR       = "ocr"
	SourceTextLayer = "text_layer"
)

// PDFResult is the OCR output for a whole document.
type PDFResult struct {
	Filename   string          `json:"filename" yaml:"filename"`
	Language   script.Language `json:"language" yaml:"language"`
	Status     Status          `json:"status" yaml:"status"`
	Text       string          `json:"text" yaml:"text"`
	Pages      []PDFPageResult `json:"pages" yaml:"pages"`
	Processing struct {
		ExtractionNs int64 `json:"extraction_ns" yaml:"extraction_ns"`
		TotalNs      int64 `json:"total_ns" yaml:"total_ns"`
	} `json:"processing" yaml:"processing"`
}

// HasText reports whether any page produced text.
func (r *PDFResult) HasText() bool { return r != nil && r.Status == StatusComplete }
