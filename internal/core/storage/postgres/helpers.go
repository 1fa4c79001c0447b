package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	v1 "github.com/harshkumar1663/PulseBoard/internal/api/v1"
)

// marshalPayloadJSON marshals the raw payload for insertion.
// A nil payload produces nil (SQL NULL) rather than the JSON "null" string.
func marshalPayloadJSON(event *v1.Event) ([]byte, error) {
	if event.RawPayload == nil {
		return nil, nil
	}
	payloadJSON, err := json.Marshal(event.RawPayload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return payloadJSON, nil
}

// marshalPropertiesJSON marshals the normalized properties for a state
// update. Unprocessed events keep a NULL properties column.
func marshalPropertiesJSON(event *v1.Event) ([]byte, error) {
	if event.NormalizedProperties == nil {
		return nil, nil
	}
	propertiesJSON, err := json.Marshal(event.NormalizedProperties)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal properties: %w", err)
	}
	return propertiesJSON, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

// scanEventOwnerRow scans one joined event+owner row.
// Compatible with both sql.Row (single) and sql.Rows (multiple).
func scanEventOwnerRow(row scanner) (*v1.Event, *v1.Owner, error) {
	var (
		evt             v1.Event
		owner           v1.Owner
		source          sql.NullString
		sessionID       sql.NullString
		ipAddress       sql.NullString
		userAgent       sql.NullString
		payloadJSON     []byte
		propertiesJSON  []byte
		processedAt     sql.NullTime
		processingError sql.NullString
	)

	err := row.Scan(
		&evt.ID,
		&evt.OwnerID,
		&evt.Name,
		&evt.Type,
		&source,
		&sessionID,
		&ipAddress,
		&userAgent,
		&payloadJSON,
		&propertiesJSON,
		&evt.Processed,
		&processedAt,
		&processingError,
		&evt.OccurredAt,
		&evt.CreatedAt,
		&owner.ID,
		&owner.Email,
		&owner.Username,
		&owner.Active,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to scan event row: %w", err)
	}

	evt.Source = source.String
	evt.SessionID = sessionID.String
	evt.IPAddress = ipAddress.String
	evt.UserAgent = userAgent.String

	if processedAt.Valid {
		t := processedAt.Time
		evt.ProcessedAt = &t
	}
	if processingError.Valid {
		s := processingError.String
		evt.ProcessingError = &s
	}

	if len(payloadJSON) > 0 {
		if err := json.Unmarshal(payloadJSON, &evt.RawPayload); err != nil {
			return nil, nil, fmt.Errorf("failed to unmarshal payload: %w", err)
		}
	}

	if len(propertiesJSON) > 0 {
		if err := json.Unmarshal(propertiesJSON, &evt.NormalizedProperties); err != nil {
			return nil, nil, fmt.Errorf("failed to unmarshal properties: %w", err)
		}
	}

	return &evt, &owner, nil
}

// nullString maps empty strings to SQL NULL for optional columns.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// nullTime maps a nil *time.Time to SQL NULL.
func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
