package poller

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/unihub/realtime/internal/model"
)

// ConnectionSource reports whether the realtime channel is up.
type ConnectionSource interface {
	IsConnected() bool
}

// Refresher pulls fresh dashboards for roles.
type Refresher interface {
	RefreshAll(ctx context.Context, roles ...model.Role) error
}

// Config holds poller configuration.
type Config struct {
	Interval time.Duration // Poll interval
	Timeout  time.Duration // Per-cycle timeout (default: 15s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval: 30 * time.Second,
		Timeout:  15 * time.Second,
	}
}

// Stats counts poll cycles.
type Stats struct {
	Polls   int64 // Cycles that refreshed
	Skipped int64 // Cycles skipped because the channel was connected
	Errors  int64
}

// Poller refreshes dashboards over REST while the channel is down.
type Poller struct {
	cfg       Config
	conn      ConnectionSource
	refresher Refresher
	roles     []model.Role
	logger    *slog.Logger

	polls   atomic.Int64
	skipped atomic.Int64
	errors  atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Poller for roles.
func New(cfg Config, conn ConnectionSource, refresher Refresher, roles []model.Role, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &Poller{
		cfg:       cfg,
		conn:      conn,
		refresher: refresher,
		roles:     roles,
		logger:    logger.With("component", "poller"),
	}
}

// Start begins the polling loop.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("fallback poller started",
		"interval", p.cfg.Interval,
		"roles", p.roles,
	)

	return nil
}

// Stop gracefully shuts down the poller.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("fallback poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns poll counters.
func (p *Poller) Stats() Stats {
	return Stats{
		Polls:   p.polls.Load(),
		Skipped: p.skipped.Load(),
		Errors:  p.errors.Load(),
	}
}

// run is the main polling loop.
func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.poll()
		}
	}
}

// poll refreshes once unless the channel is connected.
func (p *Poller) poll() {
	if p.conn.IsConnected() {
		p.skipped.Add(1)
		return
	}

	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.Timeout)
	defer cancel()

	start := time.Now()
	p.polls.Add(1)

	if err := p.refresher.RefreshAll(ctx, p.roles...); err != nil {
		p.errors.Add(1)
		p.logger.Warn("fallback refresh failed", "error", err)
		return
	}

	p.logger.Debug("fallback refresh complete",
		"roles", p.roles,
		"duration", time.Since(start),
	)
}
