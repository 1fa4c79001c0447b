package processing

import (
	"context"
	"sync"

	v1 "github.com/harshkumar1663/PulseBoard/internal/api/v1"
	"github.com/harshkumar1663/PulseBoard/internal/core/storage"
)

// mockStore is an in-memory EventStore. Fetches hand out copies so that
// in-memory mutation during a pass only becomes visible through a commit,
// matching the real adapter's snapshot semantics.
type mockStore struct {
	mu     sync.Mutex
	events map[string]*v1.Event
	owners map[string]*v1.Owner

	// failCommits makes the next N commit calls fail.
	failCommits int
	// failBatch makes every CommitBatch call fail.
	failBatch bool
	// fetchErr fails every fetch.
	fetchErr error

	commitCalls      int
	batchCommitCalls int
}

var errSimulatedOutage = &outageError{}

type outageError struct{}

func (e *outageError) Error() string { return "simulated store outage" }

func newMockStore() *mockStore {
	return &mockStore{
		events: make(map[string]*v1.Event),
		owners: make(map[string]*v1.Owner),
	}
}

func (m *mockStore) add(evt *v1.Event, owner *v1.Owner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[evt.ID] = evt
	m.owners[evt.ID] = owner
}

func (m *mockStore) get(id string) *v1.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events[id]
}

func (m *mockStore) SaveEvent(ctx context.Context, event *v1.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.events[event.ID]; exists {
		return nil
	}
	stored := *event
	m.events[event.ID] = &stored
	return nil
}

func (m *mockStore) FetchEvent(ctx context.Context, id string) (*v1.Event, *v1.Owner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.fetchErr != nil {
		return nil, nil, m.fetchErr
	}

	evt, ok := m.events[id]
	if !ok {
		return nil, nil, storage.ErrNotFound
	}

	snapshot := *evt
	owner := m.owners[id]
	if owner == nil {
		owner = &v1.Owner{ID: evt.OwnerID, Username: "unknown"}
	}
	return &snapshot, owner, nil
}

func (m *mockStore) FetchEvents(ctx context.Context, ids []string) (map[string]storage.EventWithOwner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.fetchErr != nil {
		return nil, m.fetchErr
	}

	fetched := make(map[string]storage.EventWithOwner, len(ids))
	for _, id := range ids {
		evt, ok := m.events[id]
		if !ok {
			continue
		}
		snapshot := *evt
		owner := m.owners[id]
		if owner == nil {
			owner = &v1.Owner{ID: evt.OwnerID, Username: "unknown"}
		}
		fetched[id] = storage.EventWithOwner{Event: &snapshot, Owner: owner}
	}
	return fetched, nil
}

func (m *mockStore) CommitEvent(ctx context.Context, event *v1.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.commitCalls++
	if m.failCommits > 0 {
		m.failCommits--
		return errSimulatedOutage
	}

	stored := *event
	m.events[event.ID] = &stored
	return nil
}

func (m *mockStore) CommitBatch(ctx context.Context, events []*v1.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.batchCommitCalls++
	if m.failBatch {
		return errSimulatedOutage
	}

	for _, event := range events {
		stored := *event
		m.events[event.ID] = &stored
	}
	return nil
}
