package server

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MeKo-Tech/lipi/internal/pipeline"
	"github.com/MeKo-Tech/lipi/internal/recognizer"
	"github.com/MeKo-Tech/lipi/internal/region"
	"github.com/MeKo-Tech/lipi/internal/script"
	"github.com/MeKo-Tech/lipi/internal/store"
	"github.com/MeKo-Tech/lipi/internal/testutil"
	"github.com/stretchr/testify/require"
)

// fixture wires a real pipeline to a canned detector and a color keyed
// recognizer. lines are drawn top to bottom on an english page.
type fixture struct {
	det   *testutil.Detector
	model *testutil.ColorModel
	page  []byte
	p     *pipeline.Pipeline
}

func newFixture(t *testing.T, lines ...string) *fixture {
	t.Helper()
	f := &fixture{
		det: &testutil.Detector{
			Predictions: map[script.Language][]region.Prediction{},
			Failures:    map[script.Language][]region.Failure{},
		},
		model: &testutil.ColorModel{Texts: map[color.RGBA]string{}},
	}
	blocks := make([]testutil.Block, len(lines))
	preds := make([]region.Prediction, len(lines))
	for i, text := range lines {
		r := image.Rect(10, 20+40*i, 190, 40+40*i)
		blocks[i] = testutil.Block{Rect: r, Color: testutil.Shade(i)}
		preds[i] = testutil.PolygonPrediction(i, r)
		f.model.Texts[testutil.Shade(i)] = text
	}
	f.page = testutil.PNG(t, testutil.Page(200, 40*len(lines)+40, blocks...))
	f.det.Predictions[script.English] = preds

	p, err := pipeline.NewBuilder().
		WithDetector(f.det).
		WithRecognizer(recognizer.NewRegistry(f.model.Loader())).
		Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	f.p = p
	return f
}

// server builds a server with in-memory storage and inline processing.
func (f *fixture) server(t *testing.T, limiter Limiter) (*Server, *store.MemoryStore) {
	t.Helper()
	docs := store.NewMemoryStore()
	blobs, err := store.NewFileBlobStore(t.TempDir())
	require.NoError(t, err)
	s, err := New(Config{MaxUploadMB: 1}, Deps{Pipeline: f.p, Documents: docs, Blobs: blobs, Limiter: limiter})
	require.NoError(t, err)
	return s, docs
}

// multipartRequest builds a multipart upload with the file under field.
func multipartRequest(t *testing.T, target, field, filename string, data []byte, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}
