package server

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MeKo-Tech/lipi/internal/pipeline"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockWebSocketConn records the messages written to it.
type mockWebSocketConn struct {
	sent []WebSocketOCRResponse
}

func (m *mockWebSocketConn) WriteMessage(_ int, data []byte) error {
	var resp WebSocketOCRResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return err
	}
	m.sent = append(m.sent, resp)
	return nil
}

func TestHandleWebSocketMessage_StreamsProgress(t *testing.T) {
	f := newFixture(t, "ONE", "TWO", "THREE")
	s, _ := f.server(t, nil)
	conn := &mockWebSocketConn{}

	msg, err := json.Marshal(WebSocketOCRRequest{Language: "english", Image: f.page})
	require.NoError(t, err)
	s.handleWebSocketMessage(context.Background(), conn, msg)

	require.Len(t, conn.sent, 5, "start, three regions, result")
	for i, m := range conn.sent[:4] {
		assert.Equal(t, "progress", m.Type)
		assert.Equal(t, i, m.Done)
		assert.Equal(t, 3, m.Total)
	}
	last := conn.sent[4]
	assert.Equal(t, "result", last.Type)
	assert.Equal(t, "completed", last.Status)
	require.NotNil(t, last.Result)
	assert.Equal(t, "ONE\nTWO\nTHREE", last.Result.Text)
	assert.Equal(t, last.RequestID, conn.sent[0].RequestID)
}

func TestHandleWebSocketMessage_Errors(t *testing.T) {
	f := newFixture(t, "A")
	s, _ := f.server(t, nil)

	tests := []struct {
		name    string
		message string
		want    string
	}{
		{name: "invalid json", message: "{", want: "invalid_request"},
		{name: "no image", message: `{"language":"english"}`, want: "invalid_request"},
		{name: "unsupported language", message: `{"language":"klingon","image":"aGVsbG8="}`, want: "invalid_request"},
		{name: "undecodable image", message: `{"image":"aGVsbG8="}`, want: "processing_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := &mockWebSocketConn{}
			s.handleWebSocketMessage(context.Background(), conn, []byte(tt.message))
			require.NotEmpty(t, conn.sent)
			last := conn.sent[len(conn.sent)-1]
			assert.Equal(t, "error", last.Type)
			assert.Equal(t, tt.want, last.ErrorType)
		})
	}
}

func TestOCRWebSocket_EndToEnd(t *testing.T) {
	f := newFixture(t, "HELLO")
	s, _ := f.server(t, nil)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/ocr"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	defer func() { _ = conn.Close() }()

	require.NoError(t, conn.WriteJSON(WebSocketOCRRequest{Image: f.page}))
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	var result *pipeline.Result
	for result == nil {
		var msg WebSocketOCRResponse
		require.NoError(t, conn.ReadJSON(&msg))
		require.NotEqual(t, "error", msg.Type, msg.Error)
		result = msg.Result
	}
	assert.Equal(t, "HELLO", result.Text)
}
