package notify

import (
	"encoding/json"
	"time"
)

// Type classifies a notification for display.
type Type string

const (
	TypeBooking Type = "booking"
	TypeOrder   Type = "order"
	TypeSystem  Type = "system"
	TypeMessage Type = "message"
)

// ParseType maps a server-supplied type onto a known Type, defaulting to
// TypeMessage.
func ParseType(s string) Type {
	switch t := Type(s); t {
	case TypeBooking, TypeOrder, TypeSystem, TypeMessage:
		return t
	}
	return TypeMessage
}

// Priority is an optional urgency hint.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ParsePriority maps a server-supplied priority onto a known Priority.
// Unknown values yield the empty priority.
func ParsePriority(s string) Priority {
	switch p := Priority(s); p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return p
	}
	return ""
}

// Raw is the input to Store.Add, before an ID and timestamp are assigned.
type Raw struct {
	Type     Type
	Title    string
	Message  string
	Data     json.RawMessage
	Priority Priority
}

// Notification is one retained entry.
type Notification struct {
	ID        string          `json:"id"`
	Type      Type            `json:"type"`
	Title     string          `json:"title"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Read      bool            `json:"read"`
	Priority  Priority        `json:"priority,omitempty"`
}
