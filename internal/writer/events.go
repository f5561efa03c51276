package writer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
)

// Batcher sends a batch of queued statements. *pgxpool.Pool satisfies it.
type Batcher interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// EventRow is one recorded inbound event.
type EventRow struct {
	ReceivedAt time.Time
	Event      string
	Role       string
	UserID     string
	Payload    json.RawMessage
}

// WriterConfig configures an EventWriter.
type WriterConfig struct {
	BatchSize     int
	FlushInterval time.Duration
}

// DefaultWriterConfig returns sensible defaults.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize:     100,
		FlushInterval: time.Second,
	}
}

// WriterMetrics tracks writer activity.
type WriterMetrics struct {
	Inserts int64
	Errors  int64
	Flushes int64
	Dropped int64 // Events refused by a full or closed queue
}

const insertEvent = `
	INSERT INTO realtime_events (received_at, event, role, user_id, payload)
	VALUES ($1, $2, $3, $4, $5)
`

// EventWriter drains a Queue of EventRow and writes to realtime_events.
type EventWriter struct {
	cfg    WriterConfig
	logger *slog.Logger

	// Input
	input *Queue[EventRow]

	// Database
	db Batcher

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Serializes flushes
	flushMu sync.Mutex

	metricsMu sync.Mutex
	metrics   WriterMetrics
}

// NewEventWriter creates a new EventWriter.
func NewEventWriter(cfg WriterConfig, input *Queue[EventRow], db Batcher, logger *slog.Logger) *EventWriter {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = DefaultWriterConfig().BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultWriterConfig().FlushInterval
	}
	return &EventWriter{
		cfg:    cfg,
		input:  input,
		db:     db,
		logger: logger.With("component", "event_writer"),
	}
}

// Record queues row for insertion. It never blocks; a full queue drops
// the row and reports false.
func (w *EventWriter) Record(row EventRow) bool {
	if row.ReceivedAt.IsZero() {
		row.ReceivedAt = time.Now()
	}
	if w.input.Push(row) {
		return true
	}

	w.metricsMu.Lock()
	w.metrics.Dropped++
	w.metricsMu.Unlock()
	w.logger.Debug("event dropped, queue full", "event", row.Event)
	return false
}

// Start begins flushing in the background.
func (w *EventWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("event writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop gracefully shuts down the writer, flushing what is queued.
func (w *EventWriter) Stop(ctx context.Context) error {
	w.logger.Info("stopping event writer")

	if w.cancel != nil {
		w.cancel()
	}
	w.input.Close()

	// Wait for goroutines
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("event writer stopped")
	case <-ctx.Done():
		w.logger.Warn("event writer stop timed out")
	}

	// Final flush
	for w.input.Len() > 0 {
		if err := w.flush(ctx); err != nil {
			return err
		}
	}

	return nil
}

// Stats returns current metrics.
func (w *EventWriter) Stats() WriterMetrics {
	w.metricsMu.Lock()
	defer w.metricsMu.Unlock()
	return w.metrics
}

// flushLoop flushes on the interval, or sooner when a batch fills.
func (w *EventWriter) flushLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	poll := time.NewTicker(10 * time.Millisecond)
	defer poll.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.flush(w.ctx)
		case <-poll.C:
			if w.input.Len() >= w.cfg.BatchSize {
				w.flush(w.ctx)
			}
		}
	}
}

// flush writes up to one batch from the queue.
func (w *EventWriter) flush(ctx context.Context) error {
	w.flushMu.Lock()
	defer w.flushMu.Unlock()

	rows := w.input.Drain(w.cfg.BatchSize)
	if len(rows) == 0 {
		return nil
	}

	start := time.Now()

	if err := w.batchInsert(ctx, rows); err != nil {
		w.logger.Error("batch insert failed", "error", err, "count", len(rows))
		w.metricsMu.Lock()
		w.metrics.Errors++
		w.metricsMu.Unlock()
		return err
	}

	w.metricsMu.Lock()
	w.metrics.Inserts += int64(len(rows))
	w.metrics.Flushes++
	w.metricsMu.Unlock()

	w.logger.Debug("flushed events",
		"count", len(rows),
		"duration", time.Since(start),
	)
	return nil
}

// batchInsert inserts rows using pgx.Batch.
func (w *EventWriter) batchInsert(ctx context.Context, rows []EventRow) error {
	batch := &pgx.Batch{}
	for _, r := range rows {
		payload := r.Payload
		if len(payload) == 0 {
			payload = json.RawMessage("null")
		}
		batch.Queue(insertEvent, r.ReceivedAt, r.Event, r.Role, r.UserID, string(payload))
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for i := range rows {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert event %d (%s): %w", i, rows[i].Event, err)
		}
	}

	return nil
}
