package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/unihub/realtime/internal/auth"
	"github.com/unihub/realtime/internal/config"
	"github.com/unihub/realtime/internal/connection"
	"github.com/unihub/realtime/internal/dashboard"
	"github.com/unihub/realtime/internal/model"
	"github.com/unihub/realtime/internal/notify"
	"github.com/unihub/realtime/internal/poller"
	"github.com/unihub/realtime/internal/rooms"
	"github.com/unihub/realtime/internal/router"
	"github.com/unihub/realtime/internal/writer"
)

// Errors
var (
	ErrSessionEnded   = errors.New("session ended")
	ErrAlreadyStarted = errors.New("session already started")
	ErrNotStarted     = errors.New("session not started")
	ErrInvalidCommand = errors.New("invalid command")
)

// stopTimeout bounds background shutdown in End.
const stopTimeout = 5 * time.Second

// Option configures a Session.
type Option func(*Session)

// WithManager replaces the connection manager built from config.
func WithManager(m connection.Manager) Option {
	return func(s *Session) {
		s.conn = m
	}
}

// WithRecorder records every handled inbound event.
func WithRecorder(w *writer.EventWriter) Option {
	return func(s *Session) {
		s.recorder = w
	}
}

// WithNotificationHook is called with each notification added.
func WithNotificationHook(fn func(notify.Notification)) Option {
	return func(s *Session) {
		s.onNotification = fn
	}
}

// WithDashboardHook is called after each pushed dashboard merge.
func WithDashboardHook(fn func(model.Role, dashboard.Slice)) Option {
	return func(s *Session) {
		s.onDashboard = fn
	}
}

// Stats summarizes a session for health reporting.
type Stats struct {
	Role          model.Role              `json:"role"`
	State         string                  `json:"state"`
	Connected     bool                    `json:"connected"`
	Unread        int                     `json:"unread"`
	Notifications int                     `json:"notifications"`
	Rooms         []string                `json:"rooms"`
	Connection    connection.ManagerStats `json:"connection"`
	Recorder      *writer.WriterMetrics   `json:"recorder,omitempty"`
}

// Session is the realtime core for one authenticated user.
type Session struct {
	cfg    *config.SyncConfig
	cred   *auth.Credential
	logger *slog.Logger

	conn      connection.Manager
	rooms     *rooms.Manager
	notes     *notify.Store
	dashboard *dashboard.Aggregator
	poller    *poller.Poller
	recorder  *writer.EventWriter

	onNotification func(notify.Notification)
	onDashboard    func(model.Role, dashboard.Slice)

	mu      sync.Mutex
	started bool
	ended   bool
	regs    []*router.Registration
}

// New builds a session for cred. fetcher serves dashboard refreshes.
func New(cfg *config.SyncConfig, cred *auth.Credential, fetcher dashboard.Fetcher, logger *slog.Logger, opts ...Option) (*Session, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if cred == nil {
		return nil, connection.ErrNoCredential
	}
	if err := cred.Validate(); err != nil {
		return nil, fmt.Errorf("session credential: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("role", cred.Role, "user_id", cred.UserID)

	s := &Session{
		cfg:    cfg,
		cred:   cred,
		logger: logger,
		notes:  notify.New(cfg.Notifications.Capacity),
		dashboard: dashboard.New(fetcher, logger,
			dashboard.WithRefreshTimeout(cfg.Dashboard.RefreshTimeout),
		),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.conn == nil {
		s.conn = connection.NewManager(managerConfig(cfg), logger)
	}
	s.rooms = rooms.New(s.conn, logger)

	if cfg.Dashboard.FallbackPollInterval > 0 {
		s.poller = poller.New(poller.Config{
			Interval: cfg.Dashboard.FallbackPollInterval,
			Timeout:  cfg.Dashboard.RefreshTimeout,
		}, s.conn, s.dashboard, []model.Role{cred.Role}, logger)
	}

	return s, nil
}

// managerConfig maps configuration onto the connection manager.
func managerConfig(cfg *config.SyncConfig) connection.ManagerConfig {
	return connection.ManagerConfig{
		Client: connection.ClientConfig{
			URL:              cfg.API.WSURL,
			PingInterval:     cfg.Connection.PingInterval,
			PingTimeout:      cfg.Connection.PingTimeout,
			WriteTimeout:     cfg.Connection.WriteTimeout,
			HandshakeTimeout: cfg.Connection.HandshakeTimeout,
			BufferSize:       cfg.Connection.BufferSize,
		},
		ReconnectInterval:    cfg.Connection.ReconnectInterval,
		MaxReconnectAttempts: cfg.Connection.MaxReconnectAttempts,
	}
}

// Start registers the role's handlers, opens the channel and loads the
// initial dashboard. A failed connect is returned and also reflected in
// ConnectionState; the dashboard is still loaded over REST.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return ErrSessionEnded
	}
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true

	s.regs = append(s.regs, s.conn.On(model.EventConnectionStatus, s.handleStatus))
	for _, event := range roleEvents[s.cred.Role] {
		s.regs = append(s.regs, s.conn.On(event, s.handler(event)))
	}
	s.mu.Unlock()

	if s.recorder != nil {
		if err := s.recorder.Start(ctx); err != nil {
			return fmt.Errorf("start recorder: %w", err)
		}
	}
	if s.poller != nil {
		if err := s.poller.Start(ctx); err != nil {
			return fmt.Errorf("start poller: %w", err)
		}
	}

	s.logger.Info("session starting")

	connErr := s.conn.Connect(ctx, s.cred)
	if connErr != nil {
		s.logger.Warn("realtime channel unavailable", "error", connErr)
	}

	if err := s.RefreshDashboard(ctx); err != nil {
		s.logger.Warn("initial dashboard refresh failed", "error", err)
	}

	return connErr
}

// Reconnect opens a fresh channel after the manager has given up (Failed)
// or the handshake was rejected. Handlers stay registered, and rooms are
// rejoined once the channel reports connected. It is a no-op while the
// channel is already up.
func (s *Session) Reconnect(ctx context.Context) error {
	// Held across the dial so End cannot interleave and leave a channel open.
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended {
		return ErrSessionEnded
	}
	if !s.started {
		return ErrNotStarted
	}
	if s.conn.IsConnected() {
		return nil
	}

	s.logger.Info("reconnecting session", "state", s.conn.State())
	return s.conn.Connect(ctx, s.cred)
}

// End tears the session down: leaves rooms, closes the channel, stops
// background work and clears every store. Safe to call more than once.
func (s *Session) End() {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	regs := s.regs
	s.regs = nil
	s.mu.Unlock()

	s.rooms.LeaveAll()
	for _, reg := range regs {
		reg.Unsubscribe()
	}
	s.conn.Disconnect()

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	if s.poller != nil {
		if err := s.poller.Stop(ctx); err != nil {
			s.logger.Warn("stop poller", "error", err)
		}
	}
	if s.recorder != nil {
		if err := s.recorder.Stop(ctx); err != nil {
			s.logger.Warn("stop recorder", "error", err)
		}
	}

	s.notes.ClearAll()
	s.dashboard.ClearAll()

	s.logger.Info("session ended")
}

// handleStatus restores room membership whenever the channel comes up and
// forgets it when the channel goes down.
func (s *Session) handleStatus(payload json.RawMessage) error {
	var status connection.StatusPayload
	if err := json.Unmarshal(payload, &status); err != nil {
		return fmt.Errorf("decode connection status: %w", err)
	}

	if !status.Connected {
		s.rooms.Forget()
		return nil
	}

	if _, err := s.rooms.SubscribeAs(s.cred.Role, s.cred.UserID); err != nil {
		return fmt.Errorf("subscribe rooms: %w", err)
	}
	return nil
}

// handler returns the router handler for one inbound event.
func (s *Session) handler(event string) router.Handler {
	return func(payload json.RawMessage) error {
		ev, err := model.Decode(event, payload)
		if err != nil {
			return err
		}

		if s.recorder != nil {
			s.recorder.Record(writer.EventRow{
				ReceivedAt: time.Now(),
				Event:      event,
				Role:       string(s.cred.Role),
				UserID:     s.cred.UserID,
				Payload:    payload,
			})
		}

		if raw, ok := notify.FromEvent(ev); ok {
			n := s.notes.Add(raw)
			s.logger.Debug("notification added",
				"event", event,
				"id", n.ID,
				"unread", s.notes.UnreadCount(),
			)
			if s.onNotification != nil {
				s.onNotification(n)
			}
		}

		if patch, ok := dashboard.PatchFor(ev); ok {
			role := s.cred.Role
			if du, isUpdate := ev.(model.DashboardUpdate); isUpdate && du.Role != "" && du.Role != role {
				s.logger.Debug("ignoring dashboard update for another role", "target", du.Role)
				return nil
			}
			if err := s.dashboard.ApplyUpdate(role, patch); err != nil {
				return err
			}
			if s.onDashboard != nil {
				if slice, err := s.dashboard.Get(role); err == nil {
					s.onDashboard(role, slice)
				}
			}
		}

		return nil
	}
}

// Role returns the session's role.
func (s *Session) Role() model.Role {
	return s.cred.Role
}

// ConnectionState returns the channel state.
func (s *Session) ConnectionState() connection.State {
	return s.conn.State()
}

// IsConnected reports whether the channel is up.
func (s *Session) IsConnected() bool {
	return s.conn.IsConnected()
}

// Notifications returns the retained notifications, most recent first.
func (s *Session) Notifications() []notify.Notification {
	return s.notes.List()
}

// UnreadCount returns the number of unread notifications.
func (s *Session) UnreadCount() int {
	return s.notes.UnreadCount()
}

// Dashboard returns the cached dashboard for role.
func (s *Session) Dashboard(role model.Role) (dashboard.Slice, error) {
	return s.dashboard.Get(role)
}

// Rooms returns the rooms the session believes it has joined.
func (s *Session) Rooms() []string {
	return s.rooms.Joined()
}

// MarkNotificationRead marks one notification read.
func (s *Session) MarkNotificationRead(id string) bool {
	return s.notes.MarkRead(id)
}

// ClearAllNotifications empties the notification list.
func (s *Session) ClearAllNotifications() {
	s.notes.ClearAll()
}

// RefreshDashboard pulls fresh dashboards for roles, or for the session's
// own role when none are given. Failures are also recorded on the slice.
func (s *Session) RefreshDashboard(ctx context.Context, roles ...model.Role) error {
	if len(roles) == 0 {
		roles = []model.Role{s.cred.Role}
	}
	if len(roles) == 1 {
		return s.dashboard.Refresh(ctx, roles[0])
	}
	return s.dashboard.RefreshAll(ctx, roles...)
}

// statusUpdate is the payload of the status-update commands.
type statusUpdate struct {
	BookingID string `json:"bookingId,omitempty"`
	OrderID   string `json:"orderId,omitempty"`
	Status    string `json:"status"`
}

// UpdateBookingStatus asks the server to move a booking to status.
func (s *Session) UpdateBookingStatus(bookingID, status string) error {
	if bookingID == "" || status == "" {
		return fmt.Errorf("%w: booking id and status are required", ErrInvalidCommand)
	}
	return s.send(model.CommandUpdateBookingStatus, statusUpdate{BookingID: bookingID, Status: status})
}

// UpdateOrderStatus asks the server to move an order to status.
func (s *Session) UpdateOrderStatus(orderID, status string) error {
	if orderID == "" || status == "" {
		return fmt.Errorf("%w: order id and status are required", ErrInvalidCommand)
	}
	return s.send(model.CommandUpdateOrderStatus, statusUpdate{OrderID: orderID, Status: status})
}

func (s *Session) send(event string, payload any) error {
	if !s.conn.Send(event, payload) {
		return fmt.Errorf("%s: %w", event, connection.ErrNotConnected)
	}
	return nil
}

// Stats returns a health summary.
func (s *Session) Stats() Stats {
	st := Stats{
		Role:          s.cred.Role,
		State:         s.conn.State().String(),
		Connected:     s.conn.IsConnected(),
		Unread:        s.notes.UnreadCount(),
		Notifications: s.notes.Len(),
		Rooms:         s.rooms.Joined(),
		Connection:    s.conn.Stats(),
	}
	if s.recorder != nil {
		m := s.recorder.Stats()
		st.Recorder = &m
	}
	return st
}
