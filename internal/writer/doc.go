// Package writer batches inbound realtime events into PostgreSQL.
//
// The session pushes each handled event onto a Queue; an EventWriter drains
// it and inserts rows into realtime_events with pgx.Batch, flushing when a
// batch fills or the flush interval elapses. Writes are append-only.
//
// The recorder is a diagnostics tap. A full queue drops events rather than
// blocking dispatch.
package writer
