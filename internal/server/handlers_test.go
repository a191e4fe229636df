package server

import (
	"context"
	"fmt"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MeKo-Tech/lipi/internal/detector"
	"github.com/MeKo-Tech/lipi/internal/pdf"
	"github.com/MeKo-Tech/lipi/internal/pipeline"
	"github.com/MeKo-Tech/lipi/internal/script"
	"github.com/MeKo-Tech/lipi/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{}, Deps{})
	require.Error(t, err)

	f := newFixture(t, "A")
	_, err = New(Config{}, Deps{Pipeline: f.p, Documents: store.NewMemoryStore()})
	require.ErrorContains(t, err, "together")

	s, err := New(Config{}, Deps{Pipeline: f.p})
	require.NoError(t, err)
	assert.Equal(t, "*", s.corsOrigin)
	assert.Equal(t, script.English, s.defaultLanguage)
	assert.Nil(t, s.jobs, "no inline processor without storage")
}

func TestServer_HealthHandler(t *testing.T) {
	s, _ := newFixture(t, "A").server(t, nil)

	tests := []struct {
		name           string
		method         string
		expectedStatus int
	}{
		{name: "GET request success", method: http.MethodGet, expectedStatus: http.StatusOK},
		{name: "POST request not allowed", method: http.MethodPost, expectedStatus: http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			s.Handler().ServeHTTP(w, httptest.NewRequest(tt.method, "/health", nil))
			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus == http.StatusOK {
				resp := decodeJSON[HealthResponse](t, w)
				assert.Equal(t, "healthy", resp.Status)
				assert.NotEmpty(t, resp.Time)
			}
		})
	}
}

func TestServer_LanguagesHandler(t *testing.T) {
	s, _ := newFixture(t, "A").server(t, nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/languages", nil))
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeJSON[LanguagesResponse](t, w)
	assert.Equal(t, []script.Language{script.English, script.Nepali}, resp.Languages)
	assert.Equal(t, script.English, resp.Default)
}

func TestServer_OCRHandler(t *testing.T) {
	f := newFixture(t, "FIRST", "SECOND")
	s, docs := f.server(t, nil)

	t.Run("json", func(t *testing.T) {
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, multipartRequest(t, "/ocr", "image", "page.png", f.page, map[string]string{"language": "en"}))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		resp := decodeJSON[OCRResponse](t, w)
		assert.True(t, resp.Success)
		require.NotNil(t, resp.Result)
		assert.Equal(t, "FIRST\nSECOND", resp.Result.Text)
		assert.Equal(t, pipeline.StatusComplete, resp.Result.Status)
	})

	t.Run("text", func(t *testing.T) {
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, multipartRequest(t, "/ocr", "image", "page.png", f.page, map[string]string{"format": "text"}))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "FIRST\nSECOND", w.Body.String())
		assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
	})

	t.Run("csv", func(t *testing.T) {
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, multipartRequest(t, "/ocr", "image", "page.png", f.page, map[string]string{"format": "csv"}))
		require.Equal(t, http.StatusOK, w.Code)
		assert.True(t, strings.HasPrefix(w.Body.String(), "index,line,shape"))
	})

	t.Run("overlay", func(t *testing.T) {
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, multipartRequest(t, "/ocr", "image", "page.png", f.page, map[string]string{"format": "overlay"}))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
		img, err := png.Decode(w.Body)
		require.NoError(t, err)
		assert.Equal(t, 200, img.Bounds().Dx())
	})

	t.Run("does not persist", func(t *testing.T) {
		list, err := docs.List(context.Background(), store.ListOptions{})
		require.NoError(t, err)
		assert.Empty(t, list)
	})
}

func TestServer_OCRHandler_Errors(t *testing.T) {
	f := newFixture(t, "A")
	s, _ := f.server(t, nil)

	tests := []struct {
		name   string
		req    func() *http.Request
		status int
	}{
		{
			name:   "method not allowed",
			req:    func() *http.Request { return httptest.NewRequest(http.MethodGet, "/ocr", nil) },
			status: http.StatusMethodNotAllowed,
		},
		{
			name:   "missing file",
			req:    func() *http.Request { return multipartRequest(t, "/ocr", "other", "x.png", f.page, nil) },
			status: http.StatusBadRequest,
		},
		{
			name:   "not an image",
			req:    func() *http.Request { return multipartRequest(t, "/ocr", "image", "x.png", []byte("not an image"), nil) },
			status: http.StatusBadRequest,
		},
		{
			name: "unsupported language",
			req: func() *http.Request {
				return multipartRequest(t, "/ocr", "image", "x.png", f.page, map[string]string{"language": "klingon"})
			},
			status: http.StatusBadRequest,
		},
		{
			name: "unknown format",
			req: func() *http.Request {
				return multipartRequest(t, "/ocr", "image", "x.png", f.page, map[string]string{"format": "xml"})
			},
			status: http.StatusBadRequest,
		},
		{
			name: "too large",
			req: func() *http.Request {
				return multipartRequest(t, "/ocr", "image", "x.png", make([]byte, 2<<20), nil)
			},
			status: http.StatusRequestEntityTooLarge,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			s.Handler().ServeHTTP(w, tt.req())
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestServer_OCRHandler_DetectorDown(t *testing.T) {
	f := newFixture(t, "A")
	f.det.Err = fmt.Errorf("%w: connection refused", detector.ErrCritical)
	s, _ := f.server(t, nil)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, multipartRequest(t, "/ocr", "image", "x.png", f.page, nil))
	assert.Equal(t, http.StatusBadGateway, w.Code)
	resp := decodeJSON[OCRResponse](t, w)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "connection refused")
}

func TestServer_OCRPdfHandler_InvalidPDF(t *testing.T) {
	f := newFixture(t, "A")
	s, _ := f.server(t, nil)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, multipartRequest(t, "/ocr/pdf", "pdf", "scan.pdf", []byte("%PDF-garbage"), nil))
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, multipartRequest(t, "/ocr/pdf", "image", "scan.pdf", []byte("x"), nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{script.ErrUnsupportedLanguage, http.StatusBadRequest},
		{fmt.Errorf("x: %w", pipeline.ErrImageDecode), http.StatusBadRequest},
		{fmt.Errorf("x: %w", pdf.ErrInvalid), http.StatusBadRequest},
		{pdf.ErrEncrypted, http.StatusUnauthorized},
		{store.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("%w: down", pipeline.ErrDetection), http.StatusBadGateway},
		{fmt.Errorf("%w: no weights", pipeline.ErrRecognizerUnavailable), http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
