package v1

import (
	"fmt"
	"time"
)

// ProcessingErrorMaxLen is the column width of events.processing_error.
// Failure messages recorded on an event are truncated to this length.
const ProcessingErrorMaxLen = 255

// Event is the unit of work: one submitted record to be validated,
// normalized and marked processed.
type Event struct {
	// ID is the unique immutable identifier assigned at submission time.
	ID string `json:"id"`

	// OwnerID references the principal that submitted the event; immutable.
	OwnerID string `json:"owner_id"`

	// Name is the domain-specific event name (e.g. "page_view").
	Name string `json:"event_name"`

	// Type is the event category (e.g. "engagement", "conversion").
	Type string `json:"event_type"`

	// Source and SessionID are optional submission context.
	Source    string `json:"source,omitempty"`
	SessionID string `json:"session_id,omitempty"`

	// IPAddress and UserAgent are captured from the submitting request.
	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`

	// RawPayload is the arbitrary JSON value supplied at creation.
	// The pipeline never mutates it; shape validation requires it to
	// decode to a JSON object, but the column itself can hold anything.
	RawPayload any `json:"payload,omitempty"`

	// NormalizedProperties is produced by the normalizer on a successful
	// pass. Nil until the event is processed.
	NormalizedProperties map[string]any `json:"properties,omitempty"`

	// Processed flips to true after one complete successful pass and is
	// never reset.
	Processed bool `json:"processed"`

	// ProcessedAt is the timestamp of the last successful pass.
	ProcessedAt *time.Time `json:"processed_at,omitempty"`

	// ProcessingError holds the last failure description, truncated to
	// ProcessingErrorMaxLen. Cleared on success.
	ProcessingError *string `json:"processing_error,omitempty"`

	// OccurredAt is when the event happened on the client's clock.
	OccurredAt time.Time `json:"event_timestamp"`

	// CreatedAt is when the submission layer stored the event.
	CreatedAt time.Time `json:"created_at"`
}

// Validate ensures the event carries the attributes the submission layer
// requires before it is stored. The processing pipeline re-checks Name and
// Type independently because stored events may predate this validation.
func (e *Event) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("id is required")
	}

	if e.OwnerID == "" {
		return fmt.Errorf("owner_id is required")
	}

	if e.Name == "" {
		return fmt.Errorf("event_name is required")
	}

	if e.Type == "" {
		return fmt.Errorf("event_type is required")
	}

	return nil
}

// Owner is the principal that submitted an event.
type Owner struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Active   bool   `json:"is_active"`
}
