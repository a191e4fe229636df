package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/MeKo-Tech/lipi/internal/pdf"
	"github.com/MeKo-Tech/lipi/internal/pipeline"
)

// ocrPdfHandler runs the pipeline over the page images of an uploaded PDF.
func (s *Server) ocrPdfHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	up, ok := s.parseUpload(w, r, "pdf")
	if !ok {
		ocrRequestsTotal.WithLabelValues("pdf", "error").Inc()
		return
	}

	// pdfcpu reads from disk.
	tmpDir, err := os.MkdirTemp("", "lipi-pdf-*")
	if err != nil {
		s.writeErrorResponse(w, "Failed to create temp directory", http.StatusInternalServerError)
		return
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()
	path := filepath.Join(tmpDir, "upload.pdf")
	if err := os.WriteFile(path, up.data, 0o600); err != nil {
		s.writeErrorResponse(w, "Failed to store upload", http.StatusInternalServerError)
		return
	}

	var creds *pdf.Credentials
	if pw := r.FormValue("password"); pw != "" {
		creds = &pdf.Credentials{UserPassword: pw}
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	start := time.Now()
	res, err := s.pipeline.RunPDF(ctx, path, r.FormValue("pages"), up.language, creds)
	if err != nil {
		ocrRequestsTotal.WithLabelValues("pdf", "error").Inc()
		s.writeError(w, err)
		return
	}
	res.Filename = filepath.Base(up.filename)

	ocrRequestsTotal.WithLabelValues("pdf", string(res.Status)).Inc()
	ocrProcessingDuration.WithLabelValues("pdf").Observe(time.Since(start).Seconds())
	var regions int
	for _, page := range res.Pages {
		for _, img := range page.Images {
			regions += len(img.Regions)
		}
	}
	ocrTextLength.WithLabelValues("pdf").Observe(float64(len([]rune(res.Text))))
	ocrRegionsDetected.WithLabelValues("pdf").Observe(float64(regions))

	if r.FormValue("format") == pipeline.FormatText {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = fmt.Fprint(w, res.Text)
		return
	}
	s.writeJSON(w, http.StatusOK, PDFResponse{Success: true, Result: res})
}
