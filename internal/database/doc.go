// Package database opens the PostgreSQL pool used by the event recorder.
//
// The recorder writes to a single table:
//
//	CREATE TABLE realtime_events (
//	    received_at TIMESTAMPTZ NOT NULL,
//	    event       TEXT        NOT NULL,
//	    role        TEXT        NOT NULL,
//	    user_id     TEXT        NOT NULL,
//	    payload     JSONB
//	);
package database
