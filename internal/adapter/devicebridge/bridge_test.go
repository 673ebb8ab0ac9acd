package devicebridge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ScribePilot/internal/app/actions"
	"ScribePilot/internal/config"
)

type collectingSink struct {
	mu       sync.Mutex
	requests []actions.Request
	reject   bool
}

func (s *collectingSink) Enqueue(req actions.Request) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reject {
		return false
	}
	s.requests = append(s.requests, req)
	return true
}

func (s *collectingSink) snapshot() []actions.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]actions.Request, len(s.requests))
	copy(out, s.requests)
	return out
}

func newTestBridge(t *testing.T, cfg config.DeviceBridgeConfig) (*collectingSink, string, *Bridge) {
	t.Helper()
	sink := &collectingSink{}
	b := NewBridge(cfg, sink, zap.NewNop().Sugar())
	srv := httptest.NewServer(http.HandlerFunc(b.handleButtons))
	t.Cleanup(srv.Close)
	return sink, "ws" + strings.TrimPrefix(srv.URL, "http"), b
}

func dial(t *testing.T, url string, header http.Header) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func awaitRequests(t *testing.T, sink *collectingSink, n int) []actions.Request {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(sink.snapshot()) >= n
	}, 2*time.Second, 5*time.Millisecond)
	return sink.snapshot()
}

func TestBridgeMapsButtonsToActions(t *testing.T) {
	sink, url, _ := newTestBridge(t, config.DeviceBridgeConfig{})
	conn := dial(t, url, nil)

	for _, msg := range []string{
		`{"button":"record"}`,
		`{"button":"Sign","state":"down"}`,
		`{"button":"process"}`,
	} {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(msg)))
	}

	got := awaitRequests(t, sink, 3)
	require.Len(t, got, 3)
	assert.Equal(t, actions.KindToggleRecord, got[0].Kind)
	assert.Equal(t, actions.KindSign, got[1].Kind)
	assert.Equal(t, actions.KindProcess, got[2].Kind)
	for _, req := range got {
		assert.Equal(t, actions.SourceDevice, req.Source, "события устройства помечаются источником device")
	}
}

func TestBridgeIgnoresReleasesAndUnknownButtons(t *testing.T) {
	sink, url, _ := newTestBridge(t, config.DeviceBridgeConfig{})
	conn := dial(t, url, nil)

	for _, msg := range []string{
		`{"button":"record","state":"up"}`,
		`{"button":"volume-up"}`,
		`not json`,
		`{"button":"discard"}`,
	} {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(msg)))
	}

	got := awaitRequests(t, sink, 1)
	require.Len(t, got, 1)
	assert.Equal(t, actions.KindDiscard, got[0].Kind)
}

func TestBridgeRejectsBadToken(t *testing.T) {
	_, url, _ := newTestBridge(t, config.DeviceBridgeConfig{AuthToken: "secret"})

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestBridgeAcceptsTokenInHeaderOrQuery(t *testing.T) {
	sink, url, _ := newTestBridge(t, config.DeviceBridgeConfig{AuthToken: "secret"})

	header := http.Header{}
	header.Set("Authorization", "Bearer secret")
	conn := dial(t, url, header)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"button":"record"}`)))
	awaitRequests(t, sink, 1)
	_ = conn.Close()

	conn2 := dial(t, url+"?token=secret", nil)
	require.NoError(t, conn2.WriteMessage(websocket.TextMessage, []byte(`{"button":"sign"}`)))
	got := awaitRequests(t, sink, 2)
	assert.Equal(t, actions.KindSign, got[1].Kind)
}

func TestBridgeStopClosesActiveConnections(t *testing.T) {
	sink, url, b := newTestBridge(t, config.DeviceBridgeConfig{BindAddr: "127.0.0.1:0"})
	require.NoError(t, b.Start(context.Background()))

	conn := dial(t, url, nil)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"button":"record"}`)))
	awaitRequests(t, sink, 1) // соединение уже обслуживается и учтено мостом

	require.NoError(t, b.Stop(context.Background()))

	// Остановленный мост рвёт соединение со своей стороны: клиент получает
	// ошибку чтения, а не висит до собственного таймаута
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
}
