package processing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	v1 "github.com/harshkumar1663/PulseBoard/internal/api/v1"
	"github.com/harshkumar1663/PulseBoard/internal/core/storage"
)

const msgMissingRequiredFields = "Missing required fields: event_name and/or event_type"

// Processor orchestrates validator, normalizer and store for one event:
// the full unprocessed -> processed (or unprocessed -> validation-failed)
// transition. It never panics and never returns a raw error across the
// dispatcher boundary; every pathway terminates in a SingleResult.
type Processor struct {
	store      storage.EventStore
	shapes     *ShapeValidator
	normalizer *Normalizer
	now        func() time.Time
}

// NewProcessor creates a processor over the given store and validators.
func NewProcessor(store storage.EventStore, shapes *ShapeValidator, normalizer *Normalizer) *Processor {
	if store == nil {
		panic("processing: store must not be nil")
	}
	if shapes == nil {
		shapes = NewShapeValidator(0, 0)
	}
	if normalizer == nil {
		normalizer = NewNormalizer()
	}
	return &Processor{
		store:      store,
		shapes:     shapes,
		normalizer: normalizer,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// ProcessSingle runs one complete processing pass for an event id:
// fetch, shape-validate, check required fields, normalize, persist.
//
// A missing event terminates silently as a skip. An already-processed
// event short-circuits to success without re-normalizing, so at-least-once
// task redelivery is harmless. Validation failures are recorded on the
// event and are terminal; only persistence failures come back retryable.
func (p *Processor) ProcessSingle(ctx context.Context, eventID string) v1.SingleResult {
	slog.Info("[Processor] Starting processing", "event_id", eventID)

	evt, owner, err := p.store.FetchEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			slog.Warn("[Processor] Event not found, skipping", "event_id", eventID)
			return v1.SingleResult{
				Status:  v1.StatusSkipped,
				EventID: eventID,
				Error:   "event not found",
			}
		}

		slog.Error("[Processor] Failed to fetch event", "event_id", eventID, "error", err)
		return v1.SingleResult{
			Status:  v1.StatusFailed,
			EventID: eventID,
			Error:   fmt.Sprintf("fetch failed: %v", err),
		}
	}

	if evt.Processed {
		slog.Info("[Processor] Already processed, short-circuiting", "event_id", eventID)
		return successResult(evt)
	}

	slog.Debug("[Processor] Fetched event", "event_id", eventID, "owner", owner.Username)

	if validationErr := p.evaluate(evt); validationErr != "" {
		if err := p.store.CommitEvent(ctx, evt); err != nil {
			slog.Error("[Processor] Failed to persist validation error",
				"event_id", eventID, "error", err)
			return v1.SingleResult{
				Status:  v1.StatusFailed,
				EventID: eventID,
				Error:   fmt.Sprintf("persist validation error failed: %v", err),
			}
		}

		slog.Error("[Processor] Validation failed", "event_id", eventID, "error", validationErr)
		return v1.SingleResult{
			Status:  v1.StatusValidationError,
			EventID: eventID,
			Error:   validationErr,
		}
	}

	if err := p.store.CommitEvent(ctx, evt); err != nil {
		slog.Error("[Processor] Failed to persist event", "event_id", eventID, "error", err)
		return v1.SingleResult{
			Status:  v1.StatusFailed,
			EventID: eventID,
			Error:   fmt.Sprintf("persist failed: %v", err),
		}
	}

	slog.Info("[Processor] Processing completed", "event_id", eventID, "processed_at", evt.ProcessedAt)
	return successResult(evt)
}

// evaluate runs shape validation, the required-field check and
// normalization entirely in memory, mutating the event to its final state.
// It returns the validation error message, or "" when the event was marked
// processed. The store is never touched.
func (p *Processor) evaluate(evt *v1.Event) string {
	payload, shapeErr := p.shapes.Validate(evt.RawPayload)
	if shapeErr != nil {
		msg := "Payload validation failed: " + shapeErr.Message
		recordFailure(evt, msg)
		return msg
	}

	if evt.Name == "" || evt.Type == "" {
		recordFailure(evt, msgMissingRequiredFields)
		return msgMissingRequiredFields
	}

	now := p.now()
	evt.NormalizedProperties = p.normalizer.Normalize(payload)
	evt.Processed = true
	evt.ProcessedAt = &now
	evt.ProcessingError = nil

	return ""
}

// RecordFailure persists a terminal failure message on an unprocessed
// event. Used by the retry controller once attempts are exhausted; best
// effort, the returned error is informational.
func (p *Processor) RecordFailure(ctx context.Context, eventID, message string) error {
	evt, _, err := p.store.FetchEvent(ctx, eventID)
	if err != nil {
		return fmt.Errorf("fetch for failure recording: %w", err)
	}
	if evt.Processed {
		// A concurrent pass won the race; processed state is never reset.
		return nil
	}

	recordFailure(evt, message)
	if err := p.store.CommitEvent(ctx, evt); err != nil {
		return fmt.Errorf("persist failure record: %w", err)
	}
	return nil
}

// recordFailure stamps a truncated failure message on the event without
// touching its processed state.
func recordFailure(evt *v1.Event, message string) {
	truncated := truncateError(message)
	evt.ProcessingError = &truncated
}

// truncateError bounds a failure message to the processing_error column width.
func truncateError(message string) string {
	if len(message) > v1.ProcessingErrorMaxLen {
		return message[:v1.ProcessingErrorMaxLen]
	}
	return message
}

func successResult(evt *v1.Event) v1.SingleResult {
	return v1.SingleResult{
		Status:      v1.StatusSuccess,
		EventID:     evt.ID,
		EventName:   evt.Name,
		EventType:   evt.Type,
		OwnerID:     evt.OwnerID,
		ProcessedAt: evt.ProcessedAt,
	}
}
