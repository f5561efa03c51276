package rooms

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/unihub/realtime/internal/model"
)

// Well-known room names.
const (
	RoomStudents      = "students"
	RoomLandlords     = "landlords"
	RoomFoodProviders = "food_providers"
	RoomAdmins        = "admins"
	RoomAdminAlerts   = "admin_alerts"
)

// Sender transmits an outbound command. It reports false when the frame
// was dropped, which happens whenever the channel is not connected.
type Sender interface {
	Send(event string, payload any) bool
}

// roomRequest is the payload of join_room and leave_room.
type roomRequest struct {
	Room string `json:"room"`
}

// Manager issues join and leave requests and remembers what it joined.
type Manager struct {
	sender Sender
	logger *slog.Logger

	mu     sync.Mutex
	joined map[string]struct{}
}

// New creates a room manager that sends through sender.
func New(sender Sender, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		sender: sender,
		logger: logger.With("component", "rooms"),
		joined: make(map[string]struct{}),
	}
}

// RoomsFor returns the rooms a user of role with identity belongs to.
func RoomsFor(role model.Role, identity string) ([]string, error) {
	switch role {
	case model.RoleStudent:
		return []string{personal(role, identity), RoomStudents}, nil
	case model.RoleLandlord:
		return []string{personal(role, identity), RoomLandlords}, nil
	case model.RoleFoodProvider:
		return []string{personal(role, identity), RoomFoodProviders}, nil
	case model.RoleAdmin:
		return []string{RoomAdmins, RoomAdminAlerts}, nil
	default:
		return nil, fmt.Errorf("rooms: %w: %q", model.ErrInvalidRole, role)
	}
}

func personal(role model.Role, identity string) string {
	return string(role) + "_" + identity
}

// SubscribeAs joins every room for role and identity. It returns the number
// of join requests actually written.
func (m *Manager) SubscribeAs(role model.Role, identity string) (int, error) {
	rooms, err := RoomsFor(role, identity)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, room := range rooms {
		if m.JoinRoom(room) {
			sent++
		}
	}

	m.logger.Info("subscribed",
		"role", role,
		"rooms", rooms,
		"sent", sent,
	)
	return sent, nil
}

// JoinRoom sends a join request. The room is recorded as joined only when
// the request was written.
func (m *Manager) JoinRoom(room string) bool {
	if !m.sender.Send(model.CommandJoinRoom, roomRequest{Room: room}) {
		m.logger.Debug("join dropped", "room", room)
		return false
	}

	m.mu.Lock()
	m.joined[room] = struct{}{}
	m.mu.Unlock()
	return true
}

// LeaveRoom sends a leave request and forgets the room either way.
func (m *Manager) LeaveRoom(room string) bool {
	m.mu.Lock()
	delete(m.joined, room)
	m.mu.Unlock()

	if !m.sender.Send(model.CommandLeaveRoom, roomRequest{Room: room}) {
		m.logger.Debug("leave dropped", "room", room)
		return false
	}
	return true
}

// LeaveAll sends a leave request for every joined room.
func (m *Manager) LeaveAll() {
	for _, room := range m.Joined() {
		m.LeaveRoom(room)
	}
}

// Forget drops the joined set without sending anything. Used when the
// connection is gone and the server has already discarded membership.
func (m *Manager) Forget() {
	m.mu.Lock()
	m.joined = make(map[string]struct{})
	m.mu.Unlock()
}

// Joined returns the joined rooms, sorted.
func (m *Manager) Joined() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	rooms := make([]string, 0, len(m.joined))
	for room := range m.joined {
		rooms = append(rooms, room)
	}
	sort.Strings(rooms)
	return rooms
}

// IsJoined reports whether room is in the joined set.
func (m *Manager) IsJoined(room string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.joined[room]
	return ok
}
