package storage

import (
	"context"
	"errors"

	v1 "github.com/harshkumar1663/PulseBoard/internal/api/v1"
)

// ErrNotFound is returned when an event id has no row. Processors treat it
// as "skip", never as a failure to surface upward.
var ErrNotFound = errors.New("event not found")

// EventWithOwner pairs an event with its submitting principal, as fetched
// in one consistent snapshot.
type EventWithOwner struct {
	Event *v1.Event
	Owner *v1.Owner
}

// EventStore is the narrow persistence contract the pipeline consumes.
// The store exclusively owns read/write access to persisted event state;
// the pipeline holds only a transient in-memory copy during one pass.
type EventStore interface {
	// SaveEvent inserts a newly submitted event. Used by the submission
	// layer only; the pipeline never creates events.
	SaveEvent(ctx context.Context, event *v1.Event) error

	// FetchEvent returns one event and its owner, or ErrNotFound.
	FetchEvent(ctx context.Context, id string) (*v1.Event, *v1.Owner, error)

	// FetchEvents returns a snapshot of many events keyed by id.
	// Missing ids are simply absent from the map.
	FetchEvents(ctx context.Context, ids []string) (map[string]EventWithOwner, error)

	// CommitEvent persists one event's mutated processing state in its
	// own transaction (scope=single).
	CommitEvent(ctx context.Context, event *v1.Event) error

	// CommitBatch persists many events' mutated processing state in one
	// transaction (scope=batch): either every mutation becomes durable
	// or none does.
	CommitBatch(ctx context.Context, events []*v1.Event) error
}
