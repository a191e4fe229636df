package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/MeKo-Tech/lipi/internal/pdf"
	"github.com/MeKo-Tech/lipi/internal/pipeline"
	"github.com/MeKo-Tech/lipi/internal/script"
	"github.com/MeKo-Tech/lipi/internal/store"
	"github.com/MeKo-Tech/lipi/internal/utils"
	"github.com/MeKo-Tech/lipi/internal/version"
)

// formatOverlay returns the input image with the crop rectangles drawn.
const formatOverlay = "overlay"

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ver, _, _ := version.Info()
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: ver,
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}

// languagesHandler lists the scripts the pipeline can read.
func (s *Server) languagesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, LanguagesResponse{
		Languages: s.pipeline.Languages(),
		Default:   s.defaultLanguage,
	})
}

// ocrHandler runs the pipeline on an uploaded image without persisting it.
func (s *Server) ocrHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	up, ok := s.parseUpload(w, r, "image")
	if !ok {
		ocrRequestsTotal.WithLabelValues("image", "error").Inc()
		return
	}
	format := strings.ToLower(r.FormValue("format"))
	if format == "" {
		format = pipeline.FormatJSON
	}
	if !slices.Contains([]string{pipeline.FormatJSON, pipeline.FormatText, pipeline.FormatYAML, pipeline.FormatCSV, formatOverlay}, format) {
		s.writeErrorResponse(w, fmt.Sprintf("unsupported format %q", format), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	start := time.Now()
	res, err := s.pipeline.Run(ctx, up.data, up.language)
	if err != nil {
		ocrRequestsTotal.WithLabelValues("image", "error").Inc()
		s.writeError(w, err)
		return
	}
	observeResult("image", res, time.Since(start))

	switch format {
	case formatOverlay:
		s.writeOverlay(w, up.data, res)
	case pipeline.FormatJSON:
		s.writeJSON(w, http.StatusOK, OCRResponse{Success: true, Result: res})
	default:
		out, err := pipeline.Format(res, format)
		if err != nil {
			s.writeErrorResponse(w, fmt.Sprintf("formatting failed: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", contentType(format))
		_, _ = io.WriteString(w, out)
	}
}

func contentType(format string) string {
	switch format {
	case pipeline.FormatCSV:
		return "text/csv; charset=utf-8"
	case pipeline.FormatYAML:
		return "application/yaml"
	default:
		return "text/plain; charset=utf-8"
	}
}

func (s *Server) writeOverlay(w http.ResponseWriter, data []byte, res *pipeline.Result) {
	img, _, err := utils.DecodeImage(data)
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: %w", pipeline.ErrImageDecode, err))
		return
	}
	ov := pipeline.DrawOverlay(img, res, s.overlay)
	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, ov); err != nil {
		slog.Error("Failed to encode overlay", "error", err)
	}
}

// upload is a parsed multipart image or pdf upload.
type upload struct {
	filename string
	data     []byte
	language script.Language
}

// parseUpload reads the multipart file field and the language. It writes
// the error response itself and reports false on failure.
func (s *Server) parseUpload(w http.ResponseWriter, r *http.Request, field string) (upload, bool) {
	limit := s.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		s.handleFormParseError(w, err)
		return upload{}, false
	}
	file, header, err := r.FormFile(field)
	if err != nil {
		s.writeErrorResponse(w, fmt.Sprintf("No %s file provided", field), http.StatusBadRequest)
		return upload{}, false
	}
	defer func() { _ = file.Close() }()
	uploadSizeBytes.Observe(float64(header.Size))

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeErrorResponse(w, "Failed to read upload", http.StatusInternalServerError)
		return upload{}, false
	}
	if len(data) == 0 {
		s.writeErrorResponse(w, "Uploaded file is empty", http.StatusBadRequest)
		return upload{}, false
	}

	lang, err := s.resolveLanguage(r.FormValue("language"))
	if err != nil {
		s.writeError(w, err)
		return upload{}, false
	}
	return upload{filename: header.Filename, data: data, language: lang}, true
}

// resolveLanguage maps a request value to a supported language; empty
// means the server default.
func (s *Server) resolveLanguage(value string) (script.Language, error) {
	if strings.TrimSpace(value) == "" {
		return s.defaultLanguage, nil
	}
	lang := script.ParseLanguage(value)
	if !slices.Contains(s.pipeline.Languages(), lang) {
		return "", fmt.Errorf("%w: %q", script.ErrUnsupportedLanguage, value)
	}
	return lang, nil
}

func (s *Server) handleFormParseError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
		s.writeErrorResponse(w, "File too large", http.StatusRequestEntityTooLarge)
		return
	}
	s.writeErrorResponse(w, "Failed to parse form data", http.StatusBadRequest)
}

// statusFor maps pipeline and store errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, script.ErrUnsupportedLanguage), errors.Is(err, pipeline.ErrImageDecode),
		errors.Is(err, pdf.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, pdf.ErrEncrypted):
		return http.StatusUnauthorized
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, pipeline.ErrDetection):
		return http.StatusBadGateway
	case errors.Is(err, pipeline.ErrRecognizerUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		slog.Error("Request failed", "status", code, "error", err)
	}
	s.writeErrorResponse(w, err.Error(), code)
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	s.writeJSON(w, statusCode, OCRResponse{Success: false, Error: message})
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
