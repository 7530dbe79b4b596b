package websocket

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/aescanero/sparkcopilot/pkg/domain"
	"github.com/aescanero/sparkcopilot/pkg/ports"
)

const (
	// eventBuffer bounds the events queued for a slow client
	eventBuffer = 64
	writeWait   = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// AnalysisLookup resolves an analysis by ID
type AnalysisLookup interface {
	Get(ctx context.Context, analysisID string) (*domain.Analysis, error)
}

// Handler handles WebSocket connections
type Handler struct {
	eventBus ports.EventBus
	lookup   AnalysisLookup
	logger   *zap.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(eventBus ports.EventBus, lookup AnalysisLookup, logger *zap.Logger) *Handler {
	return &Handler{
		eventBus: eventBus,
		lookup:   lookup,
		logger:   logger,
	}
}

// HandleAnalysisStream streams the events of one analysis
func (h *Handler) HandleAnalysisStream(c *gin.Context) {
	analysisID := c.Param("id")

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// Subscribe before looking the analysis up so a run finishing in
	// between is still seen
	events := make(chan domain.Event, eventBuffer)
	if err := h.eventBus.Subscribe(ctx, ports.TopicAnalysisEvents, h.forward(analysisID, events)); err != nil {
		h.logger.Error("failed to subscribe to events",
			zap.String("analysis_id", analysisID),
			zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": gin.H{"code": "EVENTS_UNAVAILABLE", "message": err.Error()}})
		return
	}

	analysis, err := h.lookup.Get(ctx, analysisID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "NOT_FOUND", "message": "Analysis not found"}})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"code": "STORAGE_ERROR", "message": err.Error()}})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("failed to upgrade connection", zap.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	h.logger.Info("WebSocket connection established",
		zap.String("analysis_id", analysisID),
		zap.String("client", c.ClientIP()))

	if analysis.Status.Terminal() {
		h.write(conn, terminalEvent(analysis))
		h.close(conn)
		return
	}

	go h.readPump(conn, cancel)

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-events:
			if !h.write(conn, event) {
				return
			}
			if finalEvent(event.Type) {
				h.close(conn)
				return
			}
		}
	}
}

// forward returns a bus handler queueing the events of one analysis.
// Events for a client whose queue is full are dropped.
func (h *Handler) forward(analysisID string, ch chan<- domain.Event) ports.EventHandler {
	return func(ctx context.Context, event domain.Event) error {
		if event.AnalysisID != analysisID {
			return nil
		}

		select {
		case ch <- event:
		case <-ctx.Done():
			return ctx.Err()
		default:
			h.logger.Warn("event channel full, dropping event",
				zap.String("event_id", event.ID),
				zap.String("event_type", string(event.Type)))
		}
		return nil
	}
}

// readPump drains client messages so close frames are processed, and
// cancels the stream once the client goes away
func (h *Handler) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Handler) write(conn *websocket.Conn, event domain.Event) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(event); err != nil {
		h.logger.Error("failed to write message", zap.Error(err))
		return false
	}
	return true
}

func (h *Handler) close(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "analysis finished")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}

func finalEvent(t domain.EventType) bool {
	switch t {
	case domain.EventTypeAnalysisCompleted, domain.EventTypeAnalysisFailed, domain.EventTypeAnalysisCancelled:
		return true
	}
	return false
}

// terminalEvent replays the final event of an analysis that finished
// before the client connected
func terminalEvent(analysis *domain.Analysis) domain.Event {
	event := domain.Event{
		ID:         "replay-" + analysis.ID,
		AnalysisID: analysis.ID,
		JobID:      analysis.JobID,
		Timestamp:  analysis.SubmittedAt,
	}
	if analysis.CompletedAt != nil {
		event.Timestamp = *analysis.CompletedAt
	}

	switch analysis.Status {
	case domain.AnalysisStatusCompleted:
		event.Type = domain.EventTypeAnalysisCompleted
		if analysis.Result != nil {
			event.Data = map[string]interface{}{
				"recommendations":    len(analysis.Result.Recommendations),
				"optimization_score": analysis.Result.OptimizationScore(),
			}
		}
	case domain.AnalysisStatusCancelled:
		event.Type = domain.EventTypeAnalysisCancelled
	default:
		event.Type = domain.EventTypeAnalysisFailed
		event.Data = map[string]interface{}{"error": analysis.Error}
	}
	return event
}
