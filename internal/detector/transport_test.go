package detector

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoboflowClient_Infer(t *testing.T) {
	var gotPath, gotKey, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("api_key")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		_, _ = w.Write([]byte(`{"predictions":[]}`))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "in.jpg")
	require.NoError(t, os.WriteFile(path, []byte("pixels"), 0o600))

	c, err := NewRoboflowClient(RoboflowConfig{APIURL: srv.URL + "/", APIKey: "secret"})
	require.NoError(t, err)
	body, err := c.Infer(context.Background(), path, "handwritten-text-line-segment/3")
	require.NoError(t, err)

	assert.JSONEq(t, `{"predictions":[]}`, string(body))
	assert.Equal(t, "/handwritten-text-line-segment/3", gotPath)
	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("pixels")), gotBody)
}

func TestRoboflowClient_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unauthorized", http.StatusForbidden)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "in.jpg")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
	c, err := NewRoboflowClient(RoboflowConfig{APIURL: srv.URL})
	require.NoError(t, err)
	_, err = c.Infer(context.Background(), path, "m/1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestRoboflowClient_MissingFile(t *testing.T) {
	c, err := NewRoboflowClient(RoboflowConfig{APIURL: "http://127.0.0.1:1"})
	require.NoError(t, err)
	_, err = c.Infer(context.Background(), "/nonexistent.jpg", "m/1")
	assert.Error(t, err)
}

func TestNewRoboflowClient_Validation(t *testing.T) {
	_, err := NewRoboflowClient(RoboflowConfig{})
	assert.Error(t, err)
}
