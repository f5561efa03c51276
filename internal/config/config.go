package config

import "time"

// SyncConfig is the root configuration for a realtime sync session.
type SyncConfig struct {
	Session       SessionConfig       `yaml:"session"`
	API           APIConfig           `yaml:"api"`
	Connection    ConnectionConfig    `yaml:"connection"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Dashboard     DashboardConfig     `yaml:"dashboard"`
	Recorder      RecorderConfig      `yaml:"recorder"`
	Health        HealthConfig        `yaml:"health"`
}

// SessionConfig identifies the authenticated user.
type SessionConfig struct {
	Role      string `yaml:"role"`
	UserID    string `yaml:"user_id"`
	Token     string `yaml:"token"`      // Bearer token; takes precedence over token_file
	TokenFile string `yaml:"token_file"` // Path to a file holding the token
}

// APIConfig holds UniHub endpoint settings.
type APIConfig struct {
	RestURL    string        `yaml:"rest_url"`
	WSURL      string        `yaml:"ws_url"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// ConnectionConfig holds realtime channel settings.
type ConnectionConfig struct {
	ReconnectInterval    time.Duration `yaml:"reconnect_interval"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`
	PingInterval         time.Duration `yaml:"ping_interval"`
	PingTimeout          time.Duration `yaml:"ping_timeout"`
	WriteTimeout         time.Duration `yaml:"write_timeout"`
	HandshakeTimeout     time.Duration `yaml:"handshake_timeout"`
	BufferSize           int           `yaml:"buffer_size"`
}

// NotificationsConfig holds notification store settings.
type NotificationsConfig struct {
	Capacity int `yaml:"capacity"`
}

// DashboardConfig holds dashboard aggregator settings.
type DashboardConfig struct {
	RefreshTimeout       time.Duration `yaml:"refresh_timeout"`
	FallbackPollInterval time.Duration `yaml:"fallback_poll_interval"` // 0 disables polling
}

// RecorderConfig holds the optional inbound event recorder settings.
type RecorderConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Database      DBConfig      `yaml:"database"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// HealthConfig holds the health endpoint settings.
type HealthConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}
