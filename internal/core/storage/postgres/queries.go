package postgres

// SQL queries for event storage with owner tracking

const (
	// queryInsertEvent stores a freshly submitted event. Processing state
	// columns keep their defaults (processed=false, everything else NULL).
	// ON CONFLICT DO NOTHING returns no rows (sql.ErrNoRows) for duplicate ids.
	queryInsertEvent = `
		INSERT INTO events (
			id, owner_id, event_name, event_type,
			source, session_id, ip_address, user_agent,
			payload, event_timestamp, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING
		RETURNING id
	`

	// queryFetchEvent loads one event together with its owner so a
	// processing pass sees a single consistent snapshot.
	queryFetchEvent = `
		SELECT
			e.id, e.owner_id, e.event_name, e.event_type,
			e.source, e.session_id, e.ip_address, e.user_agent,
			e.payload, e.properties, e.processed, e.processed_at,
			e.processing_error, e.event_timestamp, e.created_at,
			u.id, u.email, u.username, u.is_active
		FROM events e
		JOIN users u ON u.id = e.owner_id
		WHERE e.id = $1
	`

	// queryFetchEvents is the batch form of queryFetchEvent. Ids with no
	// row are silently absent from the result set.
	queryFetchEvents = `
		SELECT
			e.id, e.owner_id, e.event_name, e.event_type,
			e.source, e.session_id, e.ip_address, e.user_agent,
			e.payload, e.properties, e.processed, e.processed_at,
			e.processing_error, e.event_timestamp, e.created_at,
			u.id, u.email, u.username, u.is_active
		FROM events e
		JOIN users u ON u.id = e.owner_id
		WHERE e.id = ANY($1)
	`

	// queryUpdateEventState persists the mutable processing columns.
	// All other event columns are immutable after insertion.
	queryUpdateEventState = `
		UPDATE events
		SET properties = $2,
		    processed = $3,
		    processed_at = $4,
		    processing_error = $5
		WHERE id = $1
	`
)
