package ingestion

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	v1 "github.com/harshkumar1663/PulseBoard/internal/api/v1"
	httperr "github.com/harshkumar1663/PulseBoard/internal/core/errors"
	"github.com/harshkumar1663/PulseBoard/internal/core/storage"
)

const (
	msgReadBodyFailed = "Failed to read request body"
	msgInvalidJSON    = "Invalid JSON body"
	msgPersistFailed  = "Failed to store event"
	msgMissingOwner   = "X-User-ID header is required"

	// ownerHeader carries the authenticated principal id. Authentication
	// itself happens upstream of this service.
	ownerHeader = "X-User-ID"
)

// submitEventRequest is the submission body for one event.
type submitEventRequest struct {
	EventName      string         `json:"event_name" binding:"required"`
	EventType      string         `json:"event_type" binding:"required"`
	Source         string         `json:"source"`
	SessionID      string         `json:"session_id"`
	Payload        map[string]any `json:"payload"`
	EventTimestamp *time.Time     `json:"event_timestamp"`
}

// submitBatchRequest is the submission body for a batch of events.
type submitBatchRequest struct {
	Events []submitEventRequest `json:"events" binding:"required,min=1"`
}

// submissionError carries the structured HTTP error shape from a helper back
// to the orchestrator. Helpers return this instead of writing to gin.Context
// directly, keeping them decoupled from HTTP.
type submissionError struct {
	statusCode int
	errorType  string
	message    string
	details    interface{}
}

func (e *submissionError) Error() string {
	return e.message
}

// SubmitHandler accepts one event, stores it and enqueues async processing.
// The request returns before processing completes; a broken queue degrades
// to "stored" rather than failing the submission.
func (s *Service) SubmitHandler(c *gin.Context) {
	ownerID, err := ownerFromRequest(c)
	if err != nil {
		writeError(c, err)
		return
	}

	var req submitEventRequest
	bodySize, err := s.bindJSONBody(c, &req)
	if err != nil {
		writeError(c, err)
		return
	}

	evt := s.buildEvent(c, ownerID, req)

	slog.Info("Received event",
		"event_id", evt.ID,
		"owner_id", evt.OwnerID,
		"event_name", evt.Name,
		"event_type", evt.Type,
		"payload_size", bodySize)

	if err := s.persistEvent(c.Request.Context(), evt); err != nil {
		writeError(c, err)
		return
	}

	enqueued := s.queue.EnqueueSingle(evt.ID)
	c.JSON(http.StatusAccepted, submissionResponse(evt.ID, enqueued))
}

// SubmitBatchHandler accepts up to batchMaxEvents events, stores them and
// enqueues one batch processing task covering all of them.
func (s *Service) SubmitBatchHandler(c *gin.Context) {
	ownerID, err := ownerFromRequest(c)
	if err != nil {
		writeError(c, err)
		return
	}

	var req submitBatchRequest
	if _, err := s.bindJSONBody(c, &req); err != nil {
		writeError(c, err)
		return
	}

	if len(req.Events) > s.batchMaxEvents {
		writeError(c, &submissionError{
			statusCode: http.StatusRequestEntityTooLarge,
			errorType:  httperr.HttpBatchTooLarge,
			message:    "Batch exceeds maximum event count",
			details:    map[string]interface{}{"max_events": s.batchMaxEvents},
		})
		return
	}

	eventIDs := make([]string, 0, len(req.Events))
	for _, item := range req.Events {
		evt := s.buildEvent(c, ownerID, item)
		if err := s.persistEvent(c.Request.Context(), evt); err != nil {
			writeError(c, err)
			return
		}
		eventIDs = append(eventIDs, evt.ID)
	}

	slog.Info("Received event batch", "owner_id", ownerID, "count", len(eventIDs))

	enqueued := s.queue.EnqueueBatch(eventIDs)
	status := "enqueued"
	if !enqueued {
		status = "stored"
	}

	c.JSON(http.StatusAccepted, gin.H{
		"event_ids": eventIDs,
		"count":     len(eventIDs),
		"status":    status,
	})
}

// GetEventHandler returns the stored state of one event, including its
// processed flag and any recorded processing_error.
func (s *Service) GetEventHandler(c *gin.Context) {
	eventID := c.Param("id")

	evt, _, err := s.store.FetchEvent(c.Request.Context(), eventID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(c, &submissionError{
				statusCode: http.StatusNotFound,
				errorType:  httperr.HttpEventNotFound,
				message:    "Event not found",
			})
			return
		}

		slog.Error("Failed to fetch event", "event_id", eventID, "error", err)
		writeError(c, &submissionError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpInternalError,
			message:    "Failed to fetch event",
		})
		return
	}

	c.JSON(http.StatusOK, evt)
}

// bindJSONBody reads a size-limited request body and binds it into dst.
// Returns the raw payload size for structured logging upstream.
func (s *Service) bindJSONBody(c *gin.Context, dst interface{}) (int, *submissionError) {
	// Enforce maximum body size to prevent OOM attacks
	maxBytes := int64(s.maxBodySizeBytes)
	limitedBody := io.LimitReader(c.Request.Body, maxBytes+1) // +1 to detect oversized requests

	bodyBytes, err := io.ReadAll(limitedBody)
	if err != nil {
		slog.Error("Failed to read request body", "error", err)
		return 0, &submissionError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpInternalError,
			message:    msgReadBodyFailed,
		}
	}

	if int64(len(bodyBytes)) > maxBytes {
		slog.Warn("Request body exceeds maximum size", "size", len(bodyBytes), "max", maxBytes)
		return len(bodyBytes), &submissionError{
			statusCode: http.StatusRequestEntityTooLarge,
			errorType:  httperr.HttpInvalidJsonError,
			message:    "Request body exceeds maximum allowed size",
			details: map[string]interface{}{
				"max_size_mb": maxBytes / (1024 * 1024),
			},
		}
	}

	c.Request.Body = io.NopCloser(bytes.NewReader(bodyBytes))

	if err := c.ShouldBindJSON(dst); err != nil {
		slog.Warn("Invalid JSON body received", "error", err, "payload_size", len(bodyBytes))
		return len(bodyBytes), &submissionError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpInvalidJsonError,
			message:    msgInvalidJSON,
		}
	}

	return len(bodyBytes), nil
}

// buildEvent assembles a stored Event from a submission item, assigning
// the id and the server-side timestamps.
func (s *Service) buildEvent(c *gin.Context, ownerID string, req submitEventRequest) *v1.Event {
	now := time.Now().UTC()

	occurredAt := now
	if req.EventTimestamp != nil {
		occurredAt = req.EventTimestamp.UTC()
	}

	// The raw payload column is generic JSON; submission always provides a
	// mapping, but the pipeline re-validates shape regardless.
	var rawPayload any
	if req.Payload != nil {
		rawPayload = req.Payload
	}

	return &v1.Event{
		ID:         uuid.New().String(),
		OwnerID:    ownerID,
		Name:       req.EventName,
		Type:       req.EventType,
		Source:     req.Source,
		SessionID:  req.SessionID,
		IPAddress:  c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
		RawPayload: rawPayload,
		OccurredAt: occurredAt,
		CreatedAt:  now,
	}
}

// persistEvent saves the event to the backing store.
func (s *Service) persistEvent(ctx context.Context, evt *v1.Event) *submissionError {
	if err := s.store.SaveEvent(ctx, evt); err != nil {
		slog.Error("Failed to store event", "error", err, "event_id", evt.ID)
		return &submissionError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpInternalError,
			message:    msgPersistFailed,
		}
	}

	return nil
}

// ownerFromRequest resolves the submitting principal from the request.
func ownerFromRequest(c *gin.Context) (string, *submissionError) {
	ownerID := c.GetHeader(ownerHeader)
	if ownerID == "" {
		return "", &submissionError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpMissingOwnerError,
			message:    msgMissingOwner,
		}
	}
	return ownerID, nil
}

// writeError serializes a submissionError as the JSON HTTP response.
func writeError(c *gin.Context, err *submissionError) {
	c.JSON(err.statusCode, httperr.ErrorResponse{
		ErrorType: err.errorType,
		Message:   err.message,
		Details:   err.details,
	})
}

func submissionResponse(eventID string, enqueued bool) gin.H {
	if enqueued {
		return gin.H{
			"event_id": eventID,
			"status":   "enqueued",
			"message":  "Event enqueued for processing",
		}
	}
	return gin.H{
		"event_id": eventID,
		"status":   "stored",
		"message":  "Event stored; queue unavailable",
	}
}
