package v1

import "time"

// ResultStatus is the terminal state of one single-event processing pass.
type ResultStatus string

const (
	// StatusSuccess - the event is processed and durably persisted.
	StatusSuccess ResultStatus = "success"

	// StatusValidationError - the payload or required fields failed
	// validation. Terminal; never retried.
	StatusValidationError ResultStatus = "validation_error"

	// StatusFailed - persistence or another transient step failed.
	// Retryable until attempts or the time budget run out.
	StatusFailed ResultStatus = "failed"

	// StatusSkipped - the event does not exist. Not an error; the
	// dispatcher treats it as a no-op.
	StatusSkipped ResultStatus = "skipped"
)

// SingleResult is returned to the dispatcher for every single-event
// invocation. Errors never cross this boundary as panics or raw errors.
type SingleResult struct {
	Status           ResultStatus `json:"status"`
	EventID          string       `json:"event_id"`
	EventName        string       `json:"event_name,omitempty"`
	EventType        string       `json:"event_type,omitempty"`
	OwnerID          string       `json:"owner_id,omitempty"`
	ProcessedAt      *time.Time   `json:"processed_at,omitempty"`
	Error            string       `json:"error,omitempty"`
	RetriesExhausted bool         `json:"retries_exhausted,omitempty"`
}

// OutcomeStatus is the per-event verdict inside a batch pass.
type OutcomeStatus string

const (
	OutcomeProcessed       OutcomeStatus = "processed"
	OutcomeValidationError OutcomeStatus = "validation_error"
	OutcomeSkipped         OutcomeStatus = "skipped"

	// OutcomeFailed marks an event that evaluated cleanly but whose batch
	// commit did not go through. Nothing in a failed commit is durable.
	OutcomeFailed OutcomeStatus = "failed"
)

// EventOutcome is one entry of BatchResult.Results, in input id order.
type EventOutcome struct {
	EventID     string        `json:"event_id"`
	Status      OutcomeStatus `json:"status"`
	EventName   string        `json:"event_name,omitempty"`
	OwnerID     string        `json:"owner_id,omitempty"`
	ProcessedAt *time.Time    `json:"processed_at,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// BatchStatus summarizes a batch pass.
type BatchStatus string

const (
	BatchSuccess BatchStatus = "success"
	BatchPartial BatchStatus = "partial"
)

// BatchResult aggregates one batch invocation. Status is BatchSuccess only
// when Failed == 0. A non-empty Error means the batch commit itself failed
// and zero events from this pass are durable.
type BatchResult struct {
	Status    BatchStatus    `json:"status"`
	Total     int            `json:"total"`
	Processed int            `json:"processed"`
	Failed    int            `json:"failed"`
	Error     string         `json:"error,omitempty"`
	Results   []EventOutcome `json:"results"`
}
