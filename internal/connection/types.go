package connection

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no ping)")
	ErrAlreadyClosed   = errors.New("already closed")
	ErrNoCredential    = errors.New("no credential")
)

// HandshakeError reports a WebSocket upgrade the server refused.
type HandshakeError struct {
	StatusCode int
	Err        error
}

func (e *HandshakeError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("handshake failed: %v", e.Err)
	}
	return fmt.Sprintf("handshake rejected (status %d): %v", e.StatusCode, e.Err)
}

func (e *HandshakeError) Unwrap() error {
	return e.Err
}

// State is the lifecycle state of the managed channel.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// TimestampedMessage wraps raw frame bytes with the local receive time.
type TimestampedMessage struct {
	Data       []byte    // Raw frame bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// Frame is the envelope every message uses in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// StatusPayload is the data of a local connection_status event.
type StatusPayload struct {
	Connected bool   `json:"connected"`
	State     string `json:"state"`
	Reason    string `json:"reason,omitempty"`
}

// ErrorPayload is the data of a local connection_error event.
type ErrorPayload struct {
	Message string `json:"message"`
}

// ReconnectedPayload is the data of a local reconnected event.
type ReconnectedPayload struct {
	Attempt int `json:"attempt"`
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL              string        // WebSocket URL (e.g., wss://api.unihub.app/realtime)
	PingInterval     time.Duration // How often to send keepalive pings
	PingTimeout      time.Duration // Max time without ping/pong before considering connection stale
	WriteTimeout     time.Duration // Write deadline for sends
	HandshakeTimeout time.Duration // Upgrade deadline
	BufferSize       int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		PingInterval:     25 * time.Second,
		PingTimeout:      60 * time.Second,
		WriteTimeout:     5 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		BufferSize:       256,
	}
}

// ManagerConfig configures the Connection Manager.
type ManagerConfig struct {
	Client               ClientConfig
	ReconnectInterval    time.Duration // Fixed wait before each reconnection attempt
	MaxReconnectAttempts int           // Attempts before settling in StateFailed
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Client:               DefaultClientConfig(),
		ReconnectInterval:    5 * time.Second,
		MaxReconnectAttempts: 5,
	}
}

// ManagerStats provides statistics about the connection manager.
type ManagerStats struct {
	State             State
	Connects          int64 // Successful handshakes, including reconnects
	ReconnectAttempts int64 // Reconnection dials, successful or not
	FramesReceived    int64
	FramesDropped     int64 // Frames discarded because the client buffer was full
	ParseErrors       int64 // Frames dropped at the transport boundary
	FramesSent        int64
	SendsDropped      int64 // Sends refused because the channel was not connected
}
