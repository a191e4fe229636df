package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/MeKo-Tech/lipi/internal/pdf"
	"github.com/MeKo-Tech/lipi/internal/script"
)

// pageSeparator joins the transcripts of consecutive pages.
const pageSeparator = "\n\n"

// RunPDF extracts the embedded page images of a scanned PDF and runs the
// pipeline on each of them. Images that fail to decode are recorded as
// empty results; detector failures abort the document. Selected pages that
// carry no image but a typed text layer contribute that text instead.
func (p *Pipeline) RunPDF(ctx context.Context, filename, pageRange string, lang script.Language, creds *pdf.Credentials) (*PDFResult, error) {
	start := time.Now()
	if _, err := p.cfg.Scripts.Lookup(lang); err != nil {
		return nil, err
	}

	pages, err := pdf.ExtractPages(filename, pageRange, creds)
	if err != nil {
		return nil, err
	}
	res := &PDFResult{
		Filename: filepath.Base(filename),
		Language: script.ParseLanguage(string(lang)),
		Status:   StatusNoText,
		Pages:    make([]PDFPageResult, 0, len(pages)),
	}
	res.Processing.ExtractionNs = time.Since(start).Nanoseconds()
	slog.Debug("Extracted PDF images", "file", res.Filename, "pages", len(pages))

	typed := typedPages(filename, pageRange, pages, creds)
	for n := range typed {
		pages = append(pages, pdf.Page{Number: n})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].Number < pages[j].Number })

	texts := make([]string, 0, len(pages))
	for _, page := range pages {
		if text, ok := typed[page.Number]; ok {
			res.Pages = append(res.Pages, PDFPageResult{PageNumber: page.Number, Source: SourceTextLayer, Images: []*Result{}, Text: text})
			texts = append(texts, text)
			continue
		}
		pr := PDFPageResult{PageNumber: page.Number, Source: SourceOCR}
		var pageTexts []string
		for _, img := range page.Images {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			r, err := p.Run(ctx, img.Data, lang)
			if err != nil {
				if !isDecodeError(err) {
					return nil, fmt.Errorf("page %d: %w", page.Number, err)
				}
				slog.Warn("Skipping undecodable PDF image", "page", page.Number, "image", img.Name, "error", err)
				r = &Result{Language: res.Language, Status: StatusNoText, Lines: []string{}, Regions: []RegionResult{}}
			}
			pr.Images = append(pr.Images, r)
			if r.Text != "" {
				pageTexts = append(pageTexts, r.Text)
			}
		}
		pr.Text = strings.Join(pageTexts, "\n")
		if pr.Text != "" {
			texts = append(texts, pr.Text)
		}
		res.Pages = append(res.Pages, pr)
	}

	res.Text = strings.Join(texts, pageSeparator)
	if res.Text != "" {
		res.Status = StatusComplete
	}
	res.Processing.TotalNs = time.Since(start).Nanoseconds()
	return res, nil
}

// typedPages reads the text layer of the selected pages that had no images.
// Password protected documents are skipped since the text reader cannot
// decrypt them.
func typedPages(filename, pageRange string, scanned []pdf.Page, creds *pdf.Credentials) map[int]string {
	if creds != nil && (creds.UserPassword != "" || creds.OwnerPassword != "") {
		return nil
	}
	layer, err := pdf.TextLayer(filename, pageRange)
	if err != nil {
		slog.Debug("No text layer", "file", filepath.Base(filename), "error", err)
		return nil
	}
	for _, p := range scanned {
		delete(layer, p.Number)
	}
	return layer
}
