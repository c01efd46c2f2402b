package websocket

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/pkg/domain"
	"github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/pkg/ports"
)

// EventTypeJobSnapshot is the first message on every stream and carries the job's current state
const EventTypeJobSnapshot domain.EventType = "job.snapshot"

const writeTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// JobReader loads publish jobs
type JobReader interface {
	GetJob(ctx context.Context, jobID string) (*domain.PublishJob, error)
}

// Handler handles WebSocket connections
type Handler struct {
	eventBus ports.EventBus
	jobs     JobReader
	logger   *zap.Logger
	buffer   int
}

// NewHandler creates a new WebSocket handler
func NewHandler(eventBus ports.EventBus, jobs JobReader, logger *zap.Logger) *Handler {
	return &Handler{
		eventBus: eventBus,
		jobs:     jobs,
		logger:   logger,
		buffer:   16,
	}
}

// HandleJobStream streams the events of one publish job until it finishes or the client leaves
func (h *Handler) HandleJobStream(c *gin.Context) {
	jobID := c.Param("id")

	if _, err := h.jobs.GetJob(c.Request.Context(), jobID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrJobNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"success": false, "error": err.Error()})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("failed to upgrade connection", zap.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	h.logger.Info("WebSocket connection established",
		zap.String("job_id", jobID),
		zap.String("client", c.ClientIP()))

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// Reading is required to process close frames from the client
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// A job finishes once, so the terminal slot never fills up.
	// A dropped step event schedules a re-read of the job instead.
	eventChan := make(chan domain.Event, h.buffer)
	terminalChan := make(chan domain.Event, 1)
	resyncChan := make(chan struct{}, 1)
	handler := func(ctx context.Context, event domain.Event) error {
		if event.JobID != jobID {
			return nil
		}
		if isTerminal(event.Type) {
			select {
			case terminalChan <- event:
			default:
			}
			return nil
		}
		select {
		case eventChan <- event:
		default:
			h.logger.Warn("event channel full, resyncing job state",
				zap.String("job_id", jobID),
				zap.String("event_type", string(event.Type)))
			select {
			case resyncChan <- struct{}{}:
			default:
			}
		}
		return nil
	}

	// Subscribe before the snapshot so no transition falls between the two
	if err := h.eventBus.Subscribe(ctx, domain.TopicPublishJobs, handler); err != nil {
		h.logger.Error("failed to subscribe to events",
			zap.String("job_id", jobID),
			zap.Error(err))
		h.close(conn, websocket.CloseInternalServerErr, "subscription failed")
		return
	}

	job, err := h.jobs.GetJob(ctx, jobID)
	if err != nil {
		h.close(conn, websocket.CloseInternalServerErr, "failed to load job")
		return
	}
	if err := h.write(conn, snapshot(job)); err != nil {
		return
	}
	if job.Status.IsTerminal() {
		h.close(conn, websocket.CloseNormalClosure, string(job.Status))
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-eventChan:
			if err := h.write(conn, event); err != nil {
				return
			}
		case <-resyncChan:
			job, err := h.jobs.GetJob(ctx, jobID)
			if err != nil {
				h.logger.Warn("failed to resync job state",
					zap.String("job_id", jobID),
					zap.Error(err))
				continue
			}
			if err := h.write(conn, snapshot(job)); err != nil {
				return
			}
			if job.Status.IsTerminal() {
				h.close(conn, websocket.CloseNormalClosure, string(job.Status))
				return
			}
		case event := <-terminalChan:
			// flush step events that arrived first
			for pending := len(eventChan); pending > 0; pending-- {
				if err := h.write(conn, <-eventChan); err != nil {
					return
				}
			}
			if err := h.write(conn, event); err != nil {
				return
			}
			h.close(conn, websocket.CloseNormalClosure, string(event.Type))
			return
		}
	}
}

func isTerminal(t domain.EventType) bool {
	return t == domain.EventTypeJobCompleted || t == domain.EventTypeJobFailed
}

func (h *Handler) write(conn *websocket.Conn, event domain.Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(event); err != nil {
		h.logger.Error("failed to write message",
			zap.String("job_id", event.JobID),
			zap.Error(err))
		return err
	}
	return nil
}

func (h *Handler) close(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
}

func snapshot(job *domain.PublishJob) domain.Event {
	data := map[string]interface{}{
		"status": string(job.Status),
		"step":   string(job.Step),
	}
	if job.Error != nil {
		data["error"] = *job.Error
	}
	if job.EmergentSyncID != nil {
		data["emergent_sync_id"] = *job.EmergentSyncID
	}
	return domain.Event{
		ID:        uuid.New().String(),
		Type:      EventTypeJobSnapshot,
		JobID:     job.ID,
		ProjectID: job.ProjectID,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}
