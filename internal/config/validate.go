package config

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/unihub/realtime/internal/model"
)

// Validate checks that all required fields are set and values are valid.
func (c *SyncConfig) Validate() error {
	if c.Session.Role == "" {
		return errors.New("session.role is required")
	}
	role, err := model.ParseRole(c.Session.Role)
	if err != nil {
		return fmt.Errorf("session.role: %w", err)
	}
	if c.Session.UserID == "" && role != model.RoleAdmin {
		return errors.New("session.user_id is required")
	}
	if c.Session.Token == "" && c.Session.TokenFile == "" {
		return errors.New("session.token or session.token_file is required")
	}

	if err := validateURL("api.ws_url", c.API.WSURL, "ws", "wss"); err != nil {
		return err
	}
	if err := validateURL("api.rest_url", c.API.RestURL, "http", "https"); err != nil {
		return err
	}
	if c.API.MaxRetries < 0 {
		return errors.New("api.max_retries must be >= 0")
	}

	if c.Connection.ReconnectInterval <= 0 {
		return errors.New("connection.reconnect_interval must be > 0")
	}
	if c.Connection.MaxReconnectAttempts < 1 {
		return errors.New("connection.max_reconnect_attempts must be >= 1")
	}
	if c.Connection.PingTimeout > 0 && c.Connection.PingTimeout < c.Connection.PingInterval {
		return fmt.Errorf("connection.ping_timeout (%s) cannot be shorter than ping_interval (%s)",
			c.Connection.PingTimeout, c.Connection.PingInterval)
	}
	if c.Connection.BufferSize < 1 {
		return errors.New("connection.buffer_size must be >= 1")
	}

	if c.Notifications.Capacity < 1 {
		return errors.New("notifications.capacity must be >= 1")
	}
	if c.Dashboard.FallbackPollInterval < 0 {
		return errors.New("dashboard.fallback_poll_interval must be >= 0")
	}

	if c.Recorder.Enabled {
		if err := c.Recorder.Database.validate("recorder.database"); err != nil {
			return err
		}
		if c.Recorder.BatchSize < 1 {
			return errors.New("recorder.batch_size must be >= 1")
		}
		if c.Recorder.BufferSize < c.Recorder.BatchSize {
			return fmt.Errorf("recorder.buffer_size (%d) cannot be smaller than batch_size (%d)",
				c.Recorder.BufferSize, c.Recorder.BatchSize)
		}
	}

	if c.Health.Port < 1 || c.Health.Port > 65535 {
		return fmt.Errorf("health.port must be between 1 and 65535, got %d", c.Health.Port)
	}

	return nil
}

func validateURL(field, raw string, schemes ...string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", field)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("%s must use scheme %v, got %q", field, schemes, u.Scheme)
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
