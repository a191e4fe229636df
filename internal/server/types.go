package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/MeKo-Tech/lipi/internal/pdf"
	"github.com/MeKo-Tech/lipi/internal/pipeline"
	"github.com/MeKo-Tech/lipi/internal/queue"
	"github.com/MeKo-Tech/lipi/internal/script"
	"github.com/MeKo-Tech/lipi/internal/store"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ocrPipeline is the part of *pipeline.Pipeline the server uses.
type ocrPipeline interface {
	Run(ctx context.Context, data []byte, lang script.Language) (*pipeline.Result, error)
	RunWithProgress(ctx context.Context, data []byte, lang script.Language, cb pipeline.ProgressCallback) (*pipeline.Result, error)
	RunPDF(ctx context.Context, filename, pageRange string, lang script.Language, creds *pdf.Credentials) (*pipeline.PDFResult, error)
	Languages() []script.Language
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	pipeline        ocrPipeline
	docs            store.Repository
	blobs           store.BlobStore
	jobs            queue.Enqueuer
	limiter         Limiter
	corsOrigin      string
	maxUploadMB     int64
	timeout         time.Duration
	defaultLanguage script.Language
	overlay         pipeline.OverlayOptions
}

// Config holds server configuration.
type Config struct {
	Host            string
	Port            int
	CORSOrigin      string
	MaxUploadMB     int64
	TimeoutSec      int
	DefaultLanguage script.Language
	Overlay         pipeline.OverlayOptions
}

// Deps are the collaborators a server is built from. Documents and Blobs
// enable the /documents routes. Without Jobs uploads are processed inline.
type Deps struct {
	Pipeline  ocrPipeline
	Documents store.Repository
	Blobs     store.BlobStore
	Jobs      queue.Enqueuer
	Limiter   Limiter
}

// Response types for API endpoints.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

type LanguagesResponse struct {
	Languages []script.Language `json:"languages"`
	Default   script.Language   `json:"default"`
}

type OCRResponse struct {
	Success bool             `json:"success"`
	Result  *pipeline.Result `json:"result,omitempty"`
	Error   string           `json:"error,omitempty"`
}

type PDFResponse struct {
	Success bool                `json:"success"`
	Result  *pipeline.PDFResult `json:"result,omitempty"`
	Error   string              `json:"error,omitempty"`
}

type DocumentListResponse struct {
	Documents []*store.Document `json:"documents"`
	Count     int               `json:"count"`
}

// New creates a server instance.
func New(cfg Config, deps Deps) (*Server, error) {
	if deps.Pipeline == nil {
		return nil, errors.New("pipeline is required")
	}
	if (deps.Documents == nil) != (deps.Blobs == nil) {
		return nil, errors.New("documents and blobs must be configured together")
	}
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = 50
	}
	if cfg.TimeoutSec <= 0 {
		cfg.TimeoutSec = 60
	}
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = script.English
	}
	if cfg.Overlay.SkippedColor == "" {
		cfg.Overlay = pipeline.DefaultOverlayOptions()
	}
	if cfg.CORSOrigin == "" {
		cfg.CORSOrigin = "*"
	}

	s := &Server{
		pipeline:        deps.Pipeline,
		docs:            deps.Documents,
		blobs:           deps.Blobs,
		jobs:            deps.Jobs,
		limiter:         deps.Limiter,
		corsOrigin:      cfg.CORSOrigin,
		maxUploadMB:     cfg.MaxUploadMB,
		timeout:         time.Duration(cfg.TimeoutSec) * time.Second,
		defaultLanguage: cfg.DefaultLanguage,
		overlay:         cfg.Overlay,
	}
	if s.docs != nil && s.jobs == nil {
		s.jobs = queue.Inline{Processor: queue.NewProcessor(s.docs, s.blobs, deps.Pipeline, s.timeout)}
	}
	return s, nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/languages", s.corsMiddleware(s.languagesHandler))
	mux.HandleFunc("/ocr", s.corsMiddleware(s.rateLimitMiddleware(s.ocrHandler)))
	mux.HandleFunc("/ocr/pdf", s.corsMiddleware(s.rateLimitMiddleware(s.ocrPdfHandler)))
	mux.HandleFunc("/documents", s.corsMiddleware(s.rateLimitMiddleware(s.documentsHandler)))
	mux.HandleFunc("/documents/{id}", s.corsMiddleware(s.documentHandler))
	mux.HandleFunc("/ws/ocr", s.ocrWebSocketHandler)
	mux.Handle("/metrics", promhttp.Handler())
}

// Handler returns a mux with every route registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux
}
