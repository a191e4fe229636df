package detector

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// Transport sends one image file to the detection service and returns the
// raw JSON response body.
type Transport interface {
	Infer(ctx context.Context, imagePath, modelID string) ([]byte, error)
}

// RoboflowConfig configures the hosted inference client.
type RoboflowConfig struct {
	APIURL  string
	APIKey  string
	Timeout time.Duration
}

// RoboflowClient talks to a Roboflow-compatible hosted inference endpoint:
// the base64 image is POSTed to {api_url}/{model_id}?api_key=...
type RoboflowClient struct {
	cfg  RoboflowConfig
	http *http.Client
}

// NewRoboflowClient creates a client. A zero timeout means 30 seconds.
func NewRoboflowClient(cfg RoboflowConfig) (*RoboflowClient, error) {
	if strings.TrimSpace(cfg.APIURL) == "" {
		return nil, errors.New("detector api url is empty")
	}
	if _, err := url.Parse(cfg.APIURL); err != nil {
		return nil, fmt.Errorf("invalid detector api url: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &RoboflowClient{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}, nil
}

// Infer implements Transport.
func (c *RoboflowClient) Infer(ctx context.Context, imagePath, modelID string) ([]byte, error) {
	data, err := os.ReadFile(imagePath) //nolint:gosec // G304: path is our own temp file
	if err != nil {
		return nil, fmt.Errorf("read detection image: %w", err)
	}
	endpoint := strings.TrimRight(c.cfg.APIURL, "/") + "/" + strings.TrimLeft(modelID, "/")
	q := url.Values{}
	if c.cfg.APIKey != "" {
		q.Set("api_key", c.cfg.APIKey)
	}
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	body := base64.StdEncoding.EncodeToString(data)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBufferString(body))
	if err != nil {
		return nil, fmt.Errorf("build detection request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("detection request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("read detection response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(payload))
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return nil, fmt.Errorf("detection service returned %d: %s", resp.StatusCode, msg)
	}
	return payload, nil
}
