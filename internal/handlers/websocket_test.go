package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arvetta/berkas/internal/common"
	"github.com/arvetta/berkas/internal/models"
	"github.com/arvetta/berkas/internal/services/events"
)

type allowVerifier struct{}

func (allowVerifier) VerifyToken(_ context.Context, token string) (string, error) {
	if token == "valid-token" {
		return "user-1", nil
	}
	return "", &models.ProcessError{Kind: models.ErrKindValidation, Op: "auth.verify"}
}

func newWSEnv(t *testing.T) (*events.Service, *httptest.Server) {
	t.Helper()
	svc := events.NewService(common.GetLogger())
	t.Cleanup(func() { svc.Close() })

	config := &common.WebSocketConfig{
		PingIntervalSeconds: 30,
		IdleTimeoutSeconds:  30,
		AuthDeadline:        "500ms",
		SendQueueSize:       8,
		SendTimeout:         "2s",
	}
	h := NewWebSocketHandler(svc, allowVerifier{}, config, common.GetLogger())
	srv := httptest.NewServer(http.HandlerFunc(h.HandleWebSocket))
	t.Cleanup(srv.Close)
	return svc, srv
}

func dialWS(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func authenticate(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "auth", "token": "valid-token"}))
}

func readEvent(t *testing.T, conn *websocket.Conn) models.ProgressEvent {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event models.ProgressEvent
	require.NoError(t, conn.ReadJSON(&event))
	return event
}

func TestSessionReceivesSnapshotThenLiveEvents(t *testing.T) {
	svc, srv := newWSEnv(t)
	ctx := context.Background()

	// An event published before the session connects becomes its snapshot
	svc.Publish(ctx, models.ProgressEvent{
		Topic: models.BatchTopic("b1"), Phase: models.PhaseBatchCreated, BatchID: "b1",
	})

	conn := dialWS(t, srv, "?topic=batch:b1")
	authenticate(t, conn)

	first := readEvent(t, conn)
	assert.Equal(t, models.PhaseBatchCreated, first.Phase)
	assert.Equal(t, uint64(1), first.Seq)

	svc.Publish(ctx, models.ProgressEvent{
		Topic: models.BatchTopic("b1"), Phase: models.PhaseFileDone, BatchID: "b1",
	})
	second := readEvent(t, conn)
	assert.Equal(t, models.PhaseFileDone, second.Phase)
	assert.Equal(t, uint64(2), second.Seq)
}

func TestInvalidTokenClosesUnauthorized(t *testing.T) {
	_, srv := newWSEnv(t)

	conn := dialWS(t, srv, "")
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "auth", "token": "wrong"}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, CloseUnauthorized, closeErr.Code)
	assert.Equal(t, "UNAUTHORIZED", closeErr.Text)
}

func TestNonAuthFirstMessageClosesUnauthorized(t *testing.T) {
	_, srv := newWSEnv(t)

	conn := dialWS(t, srv, "")
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "subscribe", "topic": "batch:b1"}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, CloseUnauthorized, closeErr.Code)
}

func TestAuthDeadlineEnforced(t *testing.T) {
	_, srv := newWSEnv(t)

	// Say nothing and wait for the 500ms auth deadline to pass
	conn := dialWS(t, srv, "")
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, _, err := conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, CloseUnauthorized, closeErr.Code)
}

func TestSubscribeMessageJoinsTopic(t *testing.T) {
	svc, srv := newWSEnv(t)
	ctx := context.Background()

	conn := dialWS(t, srv, "")
	authenticate(t, conn)
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "subscribe", "topic": "file:f9"}))

	// Joining is asynchronous to the publish below, so retry briefly
	deadline := time.Now().Add(2 * time.Second)
	for {
		svc.Publish(ctx, models.ProgressEvent{
			Topic: models.FileTopic("f9"), Phase: models.PhaseOCRRunning, FileID: "f9",
		})
		conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		var event models.ProgressEvent
		if err := conn.ReadJSON(&event); err == nil {
			assert.Equal(t, models.PhaseOCRRunning, event.Phase)
			assert.Equal(t, "f9", event.FileID)
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("subscribed session never received the event")
		}
	}
}

func TestSlowConsumerIsDropped(t *testing.T) {
	svc, srv := newWSEnv(t)
	ctx := context.Background()

	conn := dialWS(t, srv, "?topic=batch:slow")
	authenticate(t, conn)

	// Never read; overflow the 8-slot queue plus whatever the write pump
	// drained into the kernel buffer.
	for i := 0; i < 5000; i++ {
		svc.Publish(ctx, models.ProgressEvent{Topic: models.BatchTopic("slow"), Phase: models.PhaseChunkDone})
	}

	// Drain until the server closes the connection
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var err error
	for err == nil {
		_, _, err = conn.ReadMessage()
	}
	require.Error(t, err)
	// The close frame can race the TCP teardown; when it arrives, it must
	// carry the slow-consumer code.
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		assert.Equal(t, CloseSlowConsumer, closeErr.Code)
	}
}
