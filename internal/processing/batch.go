package processing

import (
	"context"
	"log/slog"

	v1 "github.com/harshkumar1663/PulseBoard/internal/api/v1"
)

// ProcessBatch runs the pipeline over an ordered list of event ids sharing
// one transaction. Every event is evaluated entirely in memory first, then
// all final states are persisted in a single scope=batch commit: either the
// whole pass becomes durable or none of it does.
//
// Outcomes are produced in input id order. Missing ids and already-processed
// events are skips, not failures.
func (p *Processor) ProcessBatch(ctx context.Context, eventIDs []string) v1.BatchResult {
	slog.Info("[Batch] Processing events", "count", len(eventIDs))

	fetched, err := p.store.FetchEvents(ctx, eventIDs)
	if err != nil {
		slog.Error("[Batch] Failed to fetch events", "error", err)
		return fetchFailedResult(eventIDs, err)
	}

	var (
		outcomes  = make([]v1.EventOutcome, 0, len(eventIDs))
		toCommit  = make([]*v1.Event, 0, len(eventIDs))
		processed = 0
		failed    = 0
	)

	for _, eventID := range eventIDs {
		pair, ok := fetched[eventID]
		if !ok {
			slog.Warn("[Batch] Event not found", "event_id", eventID)
			outcomes = append(outcomes, v1.EventOutcome{
				EventID: eventID,
				Status:  v1.OutcomeSkipped,
				Error:   "event not found",
			})
			continue
		}

		evt := pair.Event
		if evt.Processed {
			slog.Debug("[Batch] Already processed, skipping", "event_id", eventID)
			outcomes = append(outcomes, v1.EventOutcome{
				EventID:     eventID,
				Status:      v1.OutcomeSkipped,
				EventName:   evt.Name,
				OwnerID:     evt.OwnerID,
				ProcessedAt: evt.ProcessedAt,
			})
			continue
		}

		if validationErr := p.evaluate(evt); validationErr != "" {
			slog.Error("[Batch] Validation failed", "event_id", eventID, "error", validationErr)
			failed++
			toCommit = append(toCommit, evt)
			outcomes = append(outcomes, v1.EventOutcome{
				EventID: eventID,
				Status:  v1.OutcomeValidationError,
				Error:   validationErr,
			})
			continue
		}

		processed++
		toCommit = append(toCommit, evt)
		outcomes = append(outcomes, v1.EventOutcome{
			EventID:     eventID,
			Status:      v1.OutcomeProcessed,
			EventName:   evt.Name,
			OwnerID:     evt.OwnerID,
			ProcessedAt: evt.ProcessedAt,
		})
	}

	// Single commit for the whole pass. Evaluation never suspends, so no
	// transaction is held open before this point.
	if err := p.store.CommitBatch(ctx, toCommit); err != nil {
		slog.Error("[Batch] Failed to persist batch", "error", err, "event_count", len(toCommit))
		return downgradeBatch(outcomes, err)
	}

	status := v1.BatchSuccess
	if failed > 0 {
		status = v1.BatchPartial
	}

	slog.Info("[Batch] Completed",
		"total", len(eventIDs),
		"processed", processed,
		"failed", failed,
	)

	return v1.BatchResult{
		Status:    status,
		Total:     len(eventIDs),
		Processed: processed,
		Failed:    failed,
		Results:   outcomes,
	}
}

// downgradeBatch rewrites a batch report after a failed commit: nothing in
// the pass is durable, so every event headed for processed is reported as
// failed-to-persist instead.
func downgradeBatch(outcomes []v1.EventOutcome, commitErr error) v1.BatchResult {
	failed := 0
	for i := range outcomes {
		switch outcomes[i].Status {
		case v1.OutcomeProcessed:
			outcomes[i].Status = v1.OutcomeFailed
			outcomes[i].ProcessedAt = nil
			outcomes[i].Error = "failed to persist batch"
			failed++
		case v1.OutcomeValidationError:
			failed++
		}
	}

	return v1.BatchResult{
		Status:    v1.BatchPartial,
		Total:     len(outcomes),
		Processed: 0,
		Failed:    failed,
		Error:     "failed to persist batch: " + commitErr.Error(),
		Results:   outcomes,
	}
}

// fetchFailedResult reports a batch whose snapshot fetch failed before any
// evaluation happened. Retryable at the dispatcher's discretion.
func fetchFailedResult(eventIDs []string, fetchErr error) v1.BatchResult {
	outcomes := make([]v1.EventOutcome, 0, len(eventIDs))
	for _, eventID := range eventIDs {
		outcomes = append(outcomes, v1.EventOutcome{
			EventID: eventID,
			Status:  v1.OutcomeFailed,
			Error:   "failed to fetch batch",
		})
	}

	return v1.BatchResult{
		Status:  v1.BatchPartial,
		Total:   len(eventIDs),
		Failed:  len(eventIDs),
		Error:   "failed to fetch batch: " + fetchErr.Error(),
		Results: outcomes,
	}
}
