package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/unihub/realtime/internal/model"
)

// Errors
var (
	ErrUnknownRole      = errors.New("unknown role")
	ErrNoFetcher        = errors.New("no fetcher configured")
	ErrRefreshDiscarded = errors.New("refresh discarded after clear")
)

// Fetcher pulls a full dashboard snapshot for a role.
type Fetcher interface {
	FetchDashboard(ctx context.Context, role model.Role) (map[string]any, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, role model.Role) (map[string]any, error)

// FetchDashboard calls f.
func (f FetcherFunc) FetchDashboard(ctx context.Context, role model.Role) (map[string]any, error) {
	return f(ctx, role)
}

// Slice is the cached dashboard for one role.
type Slice struct {
	Loading     bool           `json:"loading"`
	Error       string         `json:"error,omitempty"`
	Data        map[string]any `json:"data"`
	LastUpdated time.Time      `json:"lastUpdated,omitzero"`
}

// entry is a Slice plus the bookkeeping that guards it.
type entry struct {
	Slice
	generation uint64 // bumped by Clear; in-flight refreshes compare against it
	inflight   int
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithClock overrides the LastUpdated source.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		a.now = now
	}
}

// WithRefreshTimeout bounds each pull. Zero means no bound beyond the
// caller's context.
func WithRefreshTimeout(d time.Duration) Option {
	return func(a *Aggregator) {
		a.timeout = d
	}
}

// Aggregator holds one Slice per role.
type Aggregator struct {
	fetcher Fetcher
	logger  *slog.Logger
	now     func() time.Time
	timeout time.Duration

	mu     sync.RWMutex
	slices map[model.Role]*entry
}

// New creates an aggregator with an empty slice for every role.
func New(fetcher Fetcher, logger *slog.Logger, opts ...Option) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}

	a := &Aggregator{
		fetcher: fetcher,
		logger:  logger.With("component", "dashboard"),
		now:     time.Now,
		slices:  make(map[model.Role]*entry, len(model.Roles)),
	}
	for _, opt := range opts {
		opt(a)
	}
	for _, role := range model.Roles {
		a.slices[role] = &entry{}
	}

	return a
}

// Get returns a copy of the slice for role. Data is copied all the way
// down, so callers may mutate it freely.
func (a *Aggregator) Get(role model.Role) (Slice, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	e, ok := a.slices[role]
	if !ok {
		return Slice{}, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	return e.snapshot(), nil
}

// Snapshot returns a deep copy of every slice.
func (a *Aggregator) Snapshot() map[model.Role]Slice {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make(map[model.Role]Slice, len(a.slices))
	for role, e := range a.slices {
		out[role] = e.snapshot()
	}
	return out
}

func (e *entry) snapshot() Slice {
	s := e.Slice
	s.Data = cloneMap(e.Data)
	return s
}

// Refresh pulls a full snapshot for role. On success Data is replaced and
// Error cleared; on failure Error is set and Data is left as it was.
func (a *Aggregator) Refresh(ctx context.Context, role model.Role) error {
	if a.fetcher == nil {
		return ErrNoFetcher
	}

	a.mu.Lock()
	e, ok := a.slices[role]
	if !ok {
		a.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	generation := e.generation
	e.inflight++
	e.Loading = true
	e.Error = ""
	a.mu.Unlock()

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	start := time.Now()
	data, err := a.fetcher.FetchDashboard(ctx, role)

	a.mu.Lock()
	defer a.mu.Unlock()

	if e.generation != generation {
		a.logger.Debug("discarding refresh for cleared slice", "role", role)
		return ErrRefreshDiscarded
	}

	e.inflight--
	e.Loading = e.inflight > 0

	if err != nil {
		e.Error = err.Error()
		a.logger.Warn("dashboard refresh failed",
			"role", role,
			"error", err,
		)
		return fmt.Errorf("refresh %s: %w", role, err)
	}

	if data == nil {
		data = map[string]any{}
	}
	e.Data = data
	e.LastUpdated = a.now()

	a.logger.Debug("dashboard refreshed",
		"role", role,
		"keys", len(data),
		"duration", time.Since(start),
	)
	return nil
}

// RefreshAll refreshes roles concurrently, or every role when none are
// given. It returns the first error after all refreshes finish.
func (a *Aggregator) RefreshAll(ctx context.Context, roles ...model.Role) error {
	if len(roles) == 0 {
		roles = model.Roles
	}

	var g errgroup.Group
	for _, role := range roles {
		role := role
		g.Go(func() error {
			return a.Refresh(ctx, role)
		})
	}
	return g.Wait()
}

// ApplyUpdate shallow-merges patch into the slice's Data, creating Data
// when absent. Loading and Error are left alone.
func (a *Aggregator) ApplyUpdate(role model.Role, patch map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	e, ok := a.slices[role]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}

	// Published maps are never mutated in place.
	merged := make(map[string]any, len(e.Data)+len(patch))
	maps.Copy(merged, e.Data)
	maps.Copy(merged, patch)
	e.Data = merged
	e.LastUpdated = a.now()

	a.logger.Debug("dashboard updated", "role", role, "keys", len(patch))
	return nil
}

// Clear resets the slice for role. In-flight refreshes for it are
// discarded when they complete.
func (a *Aggregator) Clear(role model.Role) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	e, ok := a.slices[role]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	e.reset()
	return nil
}

// ClearAll resets every slice.
func (a *Aggregator) ClearAll() {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, e := range a.slices {
		e.reset()
	}
}

func (e *entry) reset() {
	e.Slice = Slice{}
	e.generation++
	e.inflight = 0
}
