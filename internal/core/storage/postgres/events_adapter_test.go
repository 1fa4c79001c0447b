package postgres

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	v1 "github.com/harshkumar1663/PulseBoard/internal/api/v1"
	"github.com/harshkumar1663/PulseBoard/internal/core/storage"
)

func TestAdapter_SaveEvent(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		event      *v1.Event
		mockResult func(mock sqlmock.Sqlmock, event *v1.Event)
		assertions func(t *testing.T, err error)
	}{
		{
			name: "success",
			event: &v1.Event{
				ID:         "evt-1",
				OwnerID:    "owner-1",
				Name:       "page_view",
				Type:       "engagement",
				Source:     "web",
				RawPayload: map[string]any{"page": "/home"},
				OccurredAt: now,
				CreatedAt:  now,
			},
			mockResult: func(mock sqlmock.Sqlmock, event *v1.Event) {
				mock.ExpectQuery(regexp.QuoteMeta(queryInsertEvent)).
					WithArgs(
						event.ID,
						event.OwnerID,
						event.Name,
						event.Type,
						nullString(event.Source),
						sql.NullString{},
						sql.NullString{},
						sql.NullString{},
						[]byte(`{"page":"/home"}`),
						event.OccurredAt,
						event.CreatedAt,
					).
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("evt-1"))
			},
			assertions: func(t *testing.T, err error) {
				require.NoError(t, err)
			},
		},
		{
			name: "duplicate id is a no-op",
			event: &v1.Event{
				ID:         "evt-dup",
				OwnerID:    "owner-1",
				Name:       "page_view",
				Type:       "engagement",
				OccurredAt: now,
				CreatedAt:  now,
			},
			mockResult: func(mock sqlmock.Sqlmock, event *v1.Event) {
				mock.ExpectQuery(regexp.QuoteMeta(queryInsertEvent)).
					WithArgs(
						event.ID,
						event.OwnerID,
						event.Name,
						event.Type,
						sql.NullString{},
						sql.NullString{},
						sql.NullString{},
						sql.NullString{},
						nil,
						event.OccurredAt,
						event.CreatedAt,
					).
					WillReturnRows(sqlmock.NewRows([]string{"id"}))
			},
			assertions: func(t *testing.T, err error) {
				require.NoError(t, err)
			},
		},
		{
			name: "marshal error short-circuits",
			event: &v1.Event{
				ID:         "evt-bad",
				OwnerID:    "owner-1",
				Name:       "page_view",
				Type:       "engagement",
				RawPayload: map[string]any{"value": math.NaN()},
				OccurredAt: now,
				CreatedAt:  now,
			},
			assertions: func(t *testing.T, err error) {
				require.Error(t, err)
				require.ErrorContains(t, err, "failed to marshal payload")
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			adapter, mock, db := newMockAdapter(t)
			defer db.Close()

			if tc.mockResult != nil {
				tc.mockResult(mock, tc.event)
			}

			err := adapter.SaveEvent(context.Background(), tc.event)
			tc.assertions(t, err)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAdapter_FetchEvent(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	occurredAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	createdAt := occurredAt.Add(time.Second)

	mock.ExpectQuery(regexp.QuoteMeta(queryFetchEvent)).
		WithArgs("evt-1").
		WillReturnRows(sqlmock.NewRows(eventOwnerColumns()).
			AddRow(
				"evt-1", "owner-1", "page_view", "engagement",
				"web", "sess-1", "10.0.0.1", "Mozilla/5.0",
				[]byte(`{"page":"/home","duration":"45"}`), nil, false, nil,
				nil, occurredAt, createdAt,
				"owner-1", "dev@example.com", "dev", true,
			),
		)

	event, owner, err := adapter.FetchEvent(context.Background(), "evt-1")
	require.NoError(t, err)
	require.Equal(t, "evt-1", event.ID)
	require.Equal(t, "owner-1", event.OwnerID)
	require.Equal(t, "page_view", event.Name)
	require.Equal(t, "web", event.Source)
	require.False(t, event.Processed)
	require.Nil(t, event.ProcessedAt)

	payload, ok := event.RawPayload.(map[string]any)
	require.True(t, ok)
	require.Equal(t, "/home", payload["page"])

	require.Equal(t, "owner-1", owner.ID)
	require.Equal(t, "dev", owner.Username)
	require.True(t, owner.Active)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_FetchEvent_NotFound(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(queryFetchEvent)).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	event, owner, err := adapter.FetchEvent(context.Background(), "ghost")
	require.ErrorIs(t, err, storage.ErrNotFound)
	require.Nil(t, event)
	require.Nil(t, owner)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_FetchEvent_NonMappingPayload(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	occurredAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(queryFetchEvent)).
		WithArgs("evt-list").
		WillReturnRows(sqlmock.NewRows(eventOwnerColumns()).
			AddRow(
				"evt-list", "owner-1", "page_view", "engagement",
				nil, nil, nil, nil,
				[]byte(`[1,2,3]`), nil, false, nil,
				nil, occurredAt, occurredAt,
				"owner-1", "dev@example.com", "dev", true,
			),
		)

	event, _, err := adapter.FetchEvent(context.Background(), "evt-list")
	require.NoError(t, err, "a non-mapping payload is the validator's problem, not the adapter's")
	_, isMapping := event.RawPayload.(map[string]any)
	require.False(t, isMapping)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_FetchEvents(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	occurredAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	processedAt := occurredAt.Add(time.Minute)
	ids := []string{"evt-1", "evt-2", "ghost"}

	mock.ExpectQuery(regexp.QuoteMeta(queryFetchEvents)).
		WithArgs(pq.Array(ids)).
		WillReturnRows(sqlmock.NewRows(eventOwnerColumns()).
			AddRow(
				"evt-1", "owner-1", "page_view", "engagement",
				nil, nil, nil, nil,
				[]byte(`{"page":"/a"}`), nil, false, nil,
				nil, occurredAt, occurredAt,
				"owner-1", "dev@example.com", "dev", true,
			).
			AddRow(
				"evt-2", "owner-1", "click", "engagement",
				nil, nil, nil, nil,
				[]byte(`{"page":"/b"}`), []byte(`{"duration":45}`), true, processedAt,
				nil, occurredAt, occurredAt,
				"owner-1", "dev@example.com", "dev", true,
			),
		).RowsWillBeClosed()

	fetched, err := adapter.FetchEvents(context.Background(), ids)
	require.NoError(t, err)
	require.Len(t, fetched, 2)
	require.NotContains(t, fetched, "ghost", "missing ids are absent, not errors")

	require.False(t, fetched["evt-1"].Event.Processed)
	require.True(t, fetched["evt-2"].Event.Processed)
	require.NotNil(t, fetched["evt-2"].Event.ProcessedAt)
	require.Equal(t, float64(45), fetched["evt-2"].Event.NormalizedProperties["duration"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_FetchEvents_EmptyInput(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	fetched, err := adapter.FetchEvents(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, fetched, "no ids means no query at all")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_CommitEvent(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	processedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	event := &v1.Event{
		ID:                   "evt-1",
		Processed:            true,
		ProcessedAt:          &processedAt,
		NormalizedProperties: map[string]any{"duration": 45.0},
	}

	mock.ExpectExec(regexp.QuoteMeta(queryUpdateEventState)).
		WithArgs(
			event.ID,
			[]byte(`{"duration":45}`),
			true,
			nullTime(&processedAt),
			sql.NullString{},
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, adapter.CommitEvent(context.Background(), event))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_CommitEvent_FailureState(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	message := "Payload validation failed: payload must be a mapping, got []interface {}"
	event := &v1.Event{
		ID:              "evt-bad",
		Processed:       false,
		ProcessingError: &message,
	}

	mock.ExpectExec(regexp.QuoteMeta(queryUpdateEventState)).
		WithArgs(
			event.ID,
			nil,
			false,
			sql.NullTime{},
			sql.NullString{String: message, Valid: true},
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, adapter.CommitEvent(context.Background(), event))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_CommitBatch(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	processedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	events := []*v1.Event{
		{ID: "evt-1", Processed: true, ProcessedAt: &processedAt, NormalizedProperties: map[string]any{"page": "/a"}},
		{ID: "evt-2", Processed: true, ProcessedAt: &processedAt, NormalizedProperties: map[string]any{"page": "/b"}},
	}

	mock.ExpectBegin()
	stmt := mock.ExpectPrepare(regexp.QuoteMeta(queryUpdateEventState))
	for _, event := range events {
		stmt.ExpectExec().
			WithArgs(
				event.ID,
				sqlmock.AnyArg(),
				true,
				nullTime(&processedAt),
				sql.NullString{},
			).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	require.NoError(t, adapter.CommitBatch(context.Background(), events))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_CommitBatch_RollsBackOnFailure(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	execErr := errors.New("deadlock detected")
	events := []*v1.Event{
		{ID: "evt-1", Processed: true},
		{ID: "evt-2", Processed: true},
	}

	mock.ExpectBegin()
	stmt := mock.ExpectPrepare(regexp.QuoteMeta(queryUpdateEventState))
	stmt.ExpectExec().
		WithArgs("evt-1", nil, true, sql.NullTime{}, sql.NullString{}).
		WillReturnResult(sqlmock.NewResult(0, 1))
	stmt.ExpectExec().
		WithArgs("evt-2", nil, true, sql.NullTime{}, sql.NullString{}).
		WillReturnError(execErr)
	mock.ExpectRollback()

	err := adapter.CommitBatch(context.Background(), events)
	require.Error(t, err)
	require.ErrorContains(t, err, "failed to commit event evt-2 in batch")
	require.ErrorIs(t, err, execErr)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_CommitBatch_EmptyInput(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	require.NoError(t, adapter.CommitBatch(context.Background(), nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_CloseReturnsDBCloseError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	dbCloseErr := errors.New("db close failed")

	mock.ExpectPrepare(regexp.QuoteMeta(queryInsertEvent)).WillBeClosed()
	stmtInsert, err := db.Prepare(queryInsertEvent)
	require.NoError(t, err)

	mock.ExpectPrepare(regexp.QuoteMeta(queryFetchEvent)).WillBeClosed()
	stmtFetch, err := db.Prepare(queryFetchEvent)
	require.NoError(t, err)

	mock.ExpectPrepare(regexp.QuoteMeta(queryFetchEvents)).WillBeClosed()
	stmtFetchMany, err := db.Prepare(queryFetchEvents)
	require.NoError(t, err)

	mock.ExpectPrepare(regexp.QuoteMeta(queryUpdateEventState)).WillBeClosed()
	stmtUpdate, err := db.Prepare(queryUpdateEventState)
	require.NoError(t, err)

	mock.ExpectClose().WillReturnError(dbCloseErr)

	adapter := &Adapter{
		db:              db,
		stmtInsertEvent: stmtInsert,
		stmtFetchEvent:  stmtFetch,
		stmtFetchEvents: stmtFetchMany,
		stmtUpdateState: stmtUpdate,
	}

	err = adapter.Close()
	require.Error(t, err)
	require.ErrorContains(t, err, "failed to close database")
	require.ErrorIs(t, err, dbCloseErr)
	require.NoError(t, mock.ExpectationsWereMet())
}

func newMockAdapter(t *testing.T) (*Adapter, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	adapter := &Adapter{
		db:              db,
		stmtInsertEvent: mustPrepareStmt(t, db, mock, queryInsertEvent),
		stmtFetchEvent:  mustPrepareStmt(t, db, mock, queryFetchEvent),
		stmtFetchEvents: mustPrepareStmt(t, db, mock, queryFetchEvents),
		stmtUpdateState: mustPrepareStmt(t, db, mock, queryUpdateEventState),
	}

	return adapter, mock, db
}

func mustPrepareStmt(t *testing.T, db *sql.DB, mock sqlmock.Sqlmock, query string) *sql.Stmt {
	t.Helper()

	mock.ExpectPrepare(regexp.QuoteMeta(query))
	stmt, err := db.Prepare(query)
	require.NoError(t, err)

	return stmt
}

func eventOwnerColumns() []string {
	return []string{
		"id", "owner_id", "event_name", "event_type",
		"source", "session_id", "ip_address", "user_agent",
		"payload", "properties", "processed", "processed_at",
		"processing_error", "event_timestamp", "created_at",
		"u_id", "email", "username", "is_active",
	}
}
