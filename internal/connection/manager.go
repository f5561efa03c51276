package connection

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/unihub/realtime/internal/auth"
	"github.com/unihub/realtime/internal/model"
	"github.com/unihub/realtime/internal/router"
)

// Manager owns the session's single realtime channel.
type Manager interface {
	// Connect opens the channel authenticated with cred, tearing down any
	// channel that is still open.
	Connect(ctx context.Context, cred *auth.Credential) error

	// Disconnect closes the channel, cancels pending reconnection and drops
	// every listener. Safe to call when already disconnected.
	Disconnect()

	// On registers a handler for an inbound or lifecycle event.
	On(event string, handler router.Handler) *router.Registration

	// Off removes reg, or every handler for event when reg is nil.
	Off(event string, reg *router.Registration)

	// Send transmits an outbound command if and only if the channel is
	// connected. It reports whether the frame was written.
	Send(event string, payload any) bool

	// State returns the current lifecycle state.
	State() State

	// IsConnected reports whether State() is StateConnected.
	IsConnected() bool

	// Stats returns current connection statistics.
	Stats() ManagerStats
}

// ManagerOption configures a Manager.
type ManagerOption func(*manager)

// WithClientFactory replaces the WebSocket client constructor.
func WithClientFactory(f ClientFactory) ManagerOption {
	return func(m *manager) {
		m.newClient = f
	}
}

// WithRouter makes the manager dispatch into an existing router.
func WithRouter(r *router.Router) ManagerOption {
	return func(m *manager) {
		m.router = r
	}
}

// manager implements the Manager interface.
type manager struct {
	cfg       ManagerConfig
	logger    *slog.Logger
	router    *router.Router
	newClient ClientFactory

	mu            sync.Mutex
	state         State
	cred          *auth.Credential
	client        Client
	epoch         uint64 // Bumped by Connect and Disconnect; stale goroutines compare against it
	stopConn      context.CancelFunc
	stopReconnect context.CancelFunc

	// Handlers never run concurrently.
	dispatchMu sync.Mutex

	connects          atomic.Int64
	reconnectAttempts atomic.Int64
	framesReceived    atomic.Int64
	parseErrors       atomic.Int64
	framesSent        atomic.Int64
	sendsDropped      atomic.Int64
	retiredDrops      atomic.Int64 // Buffer-full drops of clients already torn down
}

// NewManager creates a new Connection Manager.
func NewManager(cfg ManagerConfig, logger *slog.Logger, opts ...ManagerOption) Manager {
	if logger == nil {
		logger = slog.Default()
	}

	m := &manager{
		cfg:       cfg,
		logger:    logger,
		newClient: NewClient,
		state:     StateDisconnected,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.router == nil {
		m.router = router.New(logger)
	}

	return m
}

// Connect opens the channel.
func (m *manager) Connect(ctx context.Context, cred *auth.Credential) error {
	if cred == nil {
		return ErrNoCredential
	}

	m.mu.Lock()
	var stale Client
	if m.client != nil || m.stopReconnect != nil {
		m.logger.Warn("connect called with an active channel, tearing it down",
			"state", m.state,
		)
		stale = m.teardownLocked()
	}
	m.epoch++
	epoch := m.epoch
	m.cred = cred
	m.state = StateConnecting
	m.mu.Unlock()

	if stale != nil {
		stale.Close()
	}

	m.logger.Info("connecting", "url", m.cfg.Client.URL, "role", cred.Role)

	c := m.newClient(m.cfg.Client, m.logger)
	err := c.Connect(ctx, cred)

	m.mu.Lock()
	if epoch != m.epoch {
		m.mu.Unlock()
		if err == nil {
			c.Close()
		}
		return fmt.Errorf("connect superseded: %w", ErrAlreadyClosed)
	}
	if err != nil {
		m.state = StateFailed
		m.mu.Unlock()

		m.logger.Warn("connect failed", "error", err)
		m.emit(epoch, model.EventConnectionError, ErrorPayload{Message: err.Error()})
		m.emitStatus(epoch, StateFailed, err.Error())
		return err
	}
	connCtx := m.installLocked(c)
	m.mu.Unlock()

	m.connects.Add(1)
	m.logger.Info("connected", "role", cred.Role)

	m.emitStatus(epoch, StateConnected, "")
	go m.pump(connCtx, c, epoch)

	return nil
}

// Disconnect tears the channel down.
func (m *manager) Disconnect() {
	m.mu.Lock()
	wasActive := m.state != StateDisconnected
	m.epoch++
	stale := m.teardownLocked()
	m.state = StateDisconnected
	m.mu.Unlock()

	if stale != nil {
		stale.Close()
	}
	m.router.Reset()

	if wasActive {
		m.logger.Info("disconnected")
	}
}

// On delegates to the router.
func (m *manager) On(event string, handler router.Handler) *router.Registration {
	return m.router.On(event, handler)
}

// Off delegates to the router.
func (m *manager) Off(event string, reg *router.Registration) {
	m.router.Off(event, reg)
}

// Send writes an outbound frame when connected.
func (m *manager) Send(event string, payload any) bool {
	m.mu.Lock()
	state := m.state
	c := m.client
	m.mu.Unlock()

	if state != StateConnected || c == nil {
		m.sendsDropped.Add(1)
		m.logger.Warn("dropping send, not connected",
			"event", event,
			"state", state,
		)
		return false
	}

	data, err := encodeFrame(event, payload)
	if err != nil {
		m.sendsDropped.Add(1)
		m.logger.Warn("dropping send, encode failed", "event", event, "error", err)
		return false
	}

	if err := c.Send(data); err != nil {
		m.sendsDropped.Add(1)
		m.logger.Warn("send failed", "event", event, "error", err)
		return false
	}

	m.framesSent.Add(1)
	m.logger.Debug("frame sent", "event", event)
	return true
}

// State returns the current state.
func (m *manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsConnected reports whether the channel is usable.
func (m *manager) IsConnected() bool {
	return m.State() == StateConnected
}

// Stats returns current statistics.
func (m *manager) Stats() ManagerStats {
	m.mu.Lock()
	state := m.state
	dropped := m.retiredDrops.Load()
	if m.client != nil {
		dropped += m.client.Dropped()
	}
	m.mu.Unlock()

	return ManagerStats{
		State:             state,
		Connects:          m.connects.Load(),
		ReconnectAttempts: m.reconnectAttempts.Load(),
		FramesReceived:    m.framesReceived.Load(),
		FramesDropped:     dropped,
		ParseErrors:       m.parseErrors.Load(),
		FramesSent:        m.framesSent.Load(),
		SendsDropped:      m.sendsDropped.Load(),
	}
}

// installLocked makes c the live client and returns the context that
// bounds its pump. Must be called with m.mu held.
func (m *manager) installLocked(c Client) context.Context {
	connCtx, cancel := context.WithCancel(context.Background())
	m.client = c
	m.stopConn = cancel
	m.stopReconnect = nil
	m.state = StateConnected
	return connCtx
}

// teardownLocked cancels background work and detaches the live client,
// which the caller closes after releasing m.mu.
func (m *manager) teardownLocked() Client {
	if m.stopReconnect != nil {
		m.stopReconnect()
		m.stopReconnect = nil
	}
	if m.stopConn != nil {
		m.stopConn()
		m.stopConn = nil
	}
	c := m.client
	m.client = nil
	if c != nil {
		m.retiredDrops.Add(c.Dropped())
	}
	return c
}

// pump delivers frames from one client until it fails or is torn down.
func (m *manager) pump(ctx context.Context, c Client, epoch uint64) {
	for {
		select {
		case <-ctx.Done():
			return

		case err := <-c.Errors():
			// The client queues every frame it read before reporting the
			// error, so whatever is buffered still goes out first.
			m.drainPending(epoch, c)
			m.handleDrop(epoch, c, err)
			return

		case msg := <-c.Messages():
			m.deliver(epoch, msg)
		}
	}
}

// drainPending delivers the frames already buffered on c without waiting
// for more.
func (m *manager) drainPending(epoch uint64, c Client) {
	for {
		select {
		case msg := <-c.Messages():
			m.deliver(epoch, msg)
		default:
			return
		}
	}
}

// deliver decodes one frame envelope and dispatches it.
func (m *manager) deliver(epoch uint64, msg TimestampedMessage) {
	m.framesReceived.Add(1)

	var frame Frame
	if err := json.Unmarshal(msg.Data, &frame); err != nil || frame.Event == "" {
		m.parseErrors.Add(1)
		m.logger.Debug("dropping malformed frame",
			"bytes", len(msg.Data),
			"error", err,
		)
		return
	}

	m.dispatch(epoch, frame.Event, frame.Data)
}

// handleDrop starts the reconnection loop after an unexpected disconnect.
func (m *manager) handleDrop(epoch uint64, c Client, cause error) {
	m.mu.Lock()
	if epoch != m.epoch || m.client != c || m.state != StateConnected {
		m.mu.Unlock()
		return
	}
	m.teardownLocked()
	m.state = StateReconnecting
	ctx, cancel := context.WithCancel(context.Background())
	m.stopReconnect = cancel
	m.mu.Unlock()

	c.Close()

	m.logger.Warn("connection lost, reconnecting",
		"error", cause,
		"interval", m.cfg.ReconnectInterval,
		"max_attempts", m.cfg.MaxReconnectAttempts,
	)
	m.emitStatus(epoch, StateReconnecting, cause.Error())

	go m.reconnect(ctx, epoch)
}

// reconnect retries at a fixed interval, up to MaxReconnectAttempts times.
func (m *manager) reconnect(ctx context.Context, epoch uint64) {
	for attempt := 1; attempt <= m.cfg.MaxReconnectAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-time.After(m.cfg.ReconnectInterval):
		}

		m.mu.Lock()
		cred := m.cred
		m.mu.Unlock()

		m.reconnectAttempts.Add(1)
		m.logger.Info("attempting reconnection", "attempt", attempt)

		c := m.newClient(m.cfg.Client, m.logger)
		err := c.Connect(ctx, cred)
		if ctx.Err() != nil {
			if err == nil {
				c.Close()
			}
			return
		}
		if err != nil {
			m.logger.Warn("reconnection failed",
				"attempt", attempt,
				"error", err,
			)
			continue
		}

		m.mu.Lock()
		if epoch != m.epoch || ctx.Err() != nil {
			m.mu.Unlock()
			c.Close()
			return
		}
		connCtx := m.installLocked(c)
		m.mu.Unlock()

		m.connects.Add(1)
		m.logger.Info("reconnected", "attempt", attempt)

		m.emitStatus(epoch, StateConnected, "")
		m.emit(epoch, model.EventReconnected, ReconnectedPayload{Attempt: attempt})
		go m.pump(connCtx, c, epoch)
		return
	}

	m.mu.Lock()
	if epoch != m.epoch || ctx.Err() != nil {
		m.mu.Unlock()
		return
	}
	m.stopReconnect = nil
	m.state = StateFailed
	m.mu.Unlock()

	m.logger.Error("reconnection attempts exhausted",
		"attempts", m.cfg.MaxReconnectAttempts,
	)
	m.emit(epoch, model.EventConnectionError, ErrorPayload{Message: "reconnection attempts exhausted"})
	m.emitStatus(epoch, StateFailed, "reconnection attempts exhausted")
}

// dispatch hands one event to the router unless the epoch has moved on.
func (m *manager) dispatch(epoch uint64, event string, payload json.RawMessage) {
	m.dispatchMu.Lock()
	defer m.dispatchMu.Unlock()

	m.mu.Lock()
	current := epoch == m.epoch
	m.mu.Unlock()
	if !current {
		return
	}

	m.router.Dispatch(event, payload)
}

// emit dispatches a locally generated lifecycle event.
func (m *manager) emit(epoch uint64, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		m.logger.Error("encode lifecycle event", "event", event, "error", err)
		return
	}
	m.dispatch(epoch, event, data)
}

func (m *manager) emitStatus(epoch uint64, state State, reason string) {
	m.emit(epoch, model.EventConnectionStatus, StatusPayload{
		Connected: state == StateConnected,
		State:     state.String(),
		Reason:    reason,
	})
}

// encodeFrame wraps payload in the wire envelope.
func encodeFrame(event string, payload any) ([]byte, error) {
	var data json.RawMessage
	switch p := payload.(type) {
	case nil:
	case json.RawMessage:
		data = p
	case []byte:
		data = p
	default:
		b, err := json.Marshal(p)
		if err != nil {
			return nil, err
		}
		data = b
	}
	return json.Marshal(Frame{Event: event, Data: data})
}
