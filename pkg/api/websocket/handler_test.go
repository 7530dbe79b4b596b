package websocket

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	eventsmemory "github.com/aescanero/sparkcopilot/pkg/adapters/events/memory"
	"github.com/aescanero/sparkcopilot/pkg/domain"
	"github.com/aescanero/sparkcopilot/pkg/ports"
)

type lookupStub map[string]*domain.Analysis

func (l lookupStub) Get(_ context.Context, id string) (*domain.Analysis, error) {
	if a, ok := l[id]; ok {
		return a, nil
	}
	return nil, fmt.Errorf("analysis %s: %w", id, ports.ErrNotFound)
}

func newStreamServer(t *testing.T, bus ports.EventBus, lookup AnalysisLookup) string {
	t.Helper()

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/api/v1/analyses/:id/ws", NewHandler(bus, lookup, zap.NewNop()).HandleAnalysisStream)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/analyses/"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	return conn
}

func TestHandleAnalysisStream_UnknownAnalysis(t *testing.T) {
	base := newStreamServer(t, eventsmemory.NewInMemoryEventBus(), lookupStub{})

	_, resp, err := websocket.DefaultDialer.Dial(base+"missing/ws", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleAnalysisStream_StreamsUntilTerminal(t *testing.T) {
	bus := eventsmemory.NewInMemoryEventBus()
	lookup := lookupStub{"a-1": {ID: "a-1", JobID: "job-1", Status: domain.AnalysisStatusRunning}}
	base := newStreamServer(t, bus, lookup)

	conn := dial(t, base+"a-1/ws")

	ctx := context.Background()
	publish := func(e domain.Event) {
		require.NoError(t, bus.Publish(ctx, ports.TopicAnalysisEvents, e))
	}
	publish(domain.Event{ID: "e0", Type: domain.EventTypeStepStarted, AnalysisID: "other", Step: "metadata_agent"})
	publish(domain.Event{ID: "e1", Type: domain.EventTypeStepCompleted, AnalysisID: "a-1", Step: "metadata_agent"})
	publish(domain.Event{ID: "e2", Type: domain.EventTypeAnalysisCompleted, AnalysisID: "a-1", JobID: "job-1"})

	var got domain.Event
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "e1", got.ID)
	assert.Equal(t, "metadata_agent", got.Step)

	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "e2", got.ID)
	assert.Equal(t, domain.EventTypeAnalysisCompleted, got.Type)

	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error: %v", err)
}

func TestHandleAnalysisStream_FinishedAnalysisIsReplayed(t *testing.T) {
	completed := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	lookup := lookupStub{"a-2": {
		ID:          "a-2",
		JobID:       "job-2",
		Status:      domain.AnalysisStatusFailed,
		Error:       "analysis timeout",
		CompletedAt: &completed,
	}}
	base := newStreamServer(t, eventsmemory.NewInMemoryEventBus(), lookup)

	conn := dial(t, base+"a-2/ws")

	var got domain.Event
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, domain.EventTypeAnalysisFailed, got.Type)
	assert.Equal(t, "job-2", got.JobID)
	assert.Equal(t, "analysis timeout", got.Data["error"])
	assert.True(t, completed.Equal(got.Timestamp))

	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
}

func TestHandleAnalysisStream_ClientDisconnectUnsubscribes(t *testing.T) {
	bus := eventsmemory.NewInMemoryEventBus()
	lookup := lookupStub{"a-3": {ID: "a-3", Status: domain.AnalysisStatusSubmitted}}
	base := newStreamServer(t, bus, lookup)

	conn := dial(t, base+"a-3/ws")
	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	_ = conn.Close()

	// the handler returns and its subscription context is cancelled; the
	// bus must keep accepting publishes
	assert.Eventually(t, func() bool {
		return bus.Publish(context.Background(), ports.TopicAnalysisEvents, domain.Event{AnalysisID: "a-3"}) == nil
	}, time.Second, 10*time.Millisecond)
}

func TestFinalEvent(t *testing.T) {
	assert.True(t, finalEvent(domain.EventTypeAnalysisCancelled))
	assert.False(t, finalEvent(domain.EventTypeStepFailed))
	assert.False(t, finalEvent(domain.EventTypeAnalysisStarted))
}
