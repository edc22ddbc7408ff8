package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hft/internal/schema"
)

func dial(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v))
}

func TestHealth(t *testing.T) {
	s := NewServer()
	s.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set(headerRequestID, "req-1")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "req-1", resp.Header.Get(headerRequestID))

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, map[string]string{"status": "healthy", "timestamp": "2024-05-01T12:00:00Z"}, body)
}

func TestRequestIDGenerated(t *testing.T) {
	srv := httptest.NewServer(NewServer().Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.NotEmpty(t, resp.Header.Get(headerRequestID))
}

func TestLatestSentOnConnect(t *testing.T) {
	s := NewServer()
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	s.PublishRisk(schema.RiskSnapshot{NumPositions: 3, KillSwitchActive: true})
	s.PublishMetrics(schema.PerformanceMetrics{IngestP50Us: 12})

	var risk schema.RiskSnapshot
	read(t, dial(t, srv, "/risk"), &risk)
	assert.Equal(t, 3, risk.NumPositions)
	assert.True(t, risk.KillSwitchActive)

	var metrics schema.PerformanceMetrics
	read(t, dial(t, srv, "/metrics"), &metrics)
	assert.Equal(t, 12.0, metrics.IngestP50Us)
}

func TestAlertsBroadcast(t *testing.T) {
	s := NewServer()
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	s.PublishAlert(schema.Alert{Level: schema.AlertLevelInfo, Message: "before connect"})
	first := dial(t, srv, "/alerts")
	second := dial(t, srv, "/alerts")
	require.Eventually(t, func() bool { return s.alerts.Count() == 2 }, time.Second, 5*time.Millisecond)

	s.PublishAlert(schema.Alert{Level: schema.AlertLevelCritical, Source: "risk", Message: "Kill switch activated"})

	for _, conn := range []*websocket.Conn{first, second} {
		var alert schema.Alert
		read(t, conn, &alert)
		assert.Equal(t, schema.AlertLevelCritical, alert.Level)
		assert.Equal(t, "Kill switch activated", alert.Message)
	}
}

func TestClientDisconnectUnregisters(t *testing.T) {
	s := NewServer()
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn := dial(t, srv, "/metrics")
	require.Eventually(t, func() bool { return s.metrics.Count() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return s.metrics.Count() == 0 }, time.Second, 5*time.Millisecond)
}

func TestServeShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, "127.0.0.1:0", http.NotFoundHandler()) }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not return")
	}
}
