package ingestion

import (
	"github.com/gin-gonic/gin"

	"github.com/harshkumar1663/PulseBoard/internal/core/storage"
)

// TaskQueue is the slice of the dispatcher the submission layer needs:
// enqueue processing work without blocking the request. A false return
// means the queue is unavailable; the event stays stored and unprocessed.
type TaskQueue interface {
	EnqueueSingle(eventID string) bool
	EnqueueBatch(eventIDs []string) bool
}

type Service struct {
	store            storage.EventStore
	queue            TaskQueue
	maxBodySizeBytes int
	batchMaxEvents   int
}

func NewService(store storage.EventStore, queue TaskQueue, maxBodySizeMB, batchMaxEvents int) *Service {
	if store == nil {
		panic("ingestion: store must not be nil")
	}
	if queue == nil {
		panic("ingestion: queue must not be nil")
	}
	if maxBodySizeMB <= 0 {
		maxBodySizeMB = 1 // default to 1MB
	}
	if batchMaxEvents <= 0 {
		batchMaxEvents = 100
	}
	return &Service{
		store:            store,
		queue:            queue,
		maxBodySizeBytes: maxBodySizeMB * 1024 * 1024,
		batchMaxEvents:   batchMaxEvents,
	}
}

// RegisterRoutes registers the submission service routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.POST("/v1/events", s.SubmitHandler)
	r.POST("/v1/events/batch", s.SubmitBatchHandler)

	// Processing failures are only visible by querying event state.
	r.GET("/v1/events/:id", s.GetEventHandler)
}
