package pipeline

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Output formats understood by Format.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatCSV  = "csv"
)

// ToJSON serializes a result to pretty JSON.
func ToJSON(v any) (string, error) {
	if v == nil {
		return "", errors.New("nil result")
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ToYAML serializes a result to YAML.
func ToYAML(v any) (string, error) {
	if v == nil {
		return "", errors.New("nil result")
	}
	b, err := yaml.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ToCSV exports the regions of res in reading order, one row per region.
func ToCSV(res *Result) (string, error) {
	if res == nil {
		return "", errors.New("nil result")
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"index", "line", "shape", "x", "y", "w", "h", "text", "skipped", "reason"})
	for _, r := range res.Regions {
		_ = w.Write([]string{
			strconv.Itoa(r.Index),
			strconv.Itoa(r.Line),
			r.Shape,
			strconv.Itoa(r.Box.X),
			strconv.Itoa(r.Box.Y),
			strconv.Itoa(r.Box.W),
			strconv.Itoa(r.Box.H),
			r.Text,
			strconv.FormatBool(r.Skipped),
			r.Reason,
		})
	}
	w.Flush()
	return buf.String(), w.Error()
}

// Format renders res (a *Result or *PDFResult) in the named format.
func Format(res any, format string) (string, error) {
	switch format {
	case FormatText, "":
		switch r := res.(type) {
		case *Result:
			return r.Text, nil
		case *PDFResult:
			return r.Text, nil
		}
		return "", fmt.Errorf("cannot render %T as text", res)
	case FormatJSON:
		return ToJSON(res)
	case FormatYAML:
		return ToYAML(res)
	case FormatCSV:
		r, ok := res.(*Result)
		if !ok {
			return "", fmt.Errorf("cannot render %T as csv", res)
		}
		return ToCSV(r)
	}
	return "", fmt.Errorf("unsupported output format %q", format)
}
