package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unihub/realtime/internal/auth"
	"github.com/unihub/realtime/internal/config"
	"github.com/unihub/realtime/internal/connection"
	"github.com/unihub/realtime/internal/dashboard"
	"github.com/unihub/realtime/internal/model"
	"github.com/unihub/realtime/internal/notify"
	"github.com/unihub/realtime/internal/rooms"
)

const waitFor = 2 * time.Second

// backend is a mock realtime server that records every inbound frame and
// can push frames to, or drop, the most recent connection.
type backend struct {
	server   *httptest.Server
	connects atomic.Int32
	reject   atomic.Bool

	mu      sync.Mutex
	current *websocket.Conn
	frames  []connection.Frame
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	b := &backend{}
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	b.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if b.reject.Load() {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()

		b.connects.Add(1)
		b.mu.Lock()
		b.current = conn
		b.mu.Unlock()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var frame connection.Frame
			if err := json.Unmarshal(data, &frame); err != nil {
				continue
			}
			b.mu.Lock()
			b.frames = append(b.frames, frame)
			b.mu.Unlock()
		}
	}))
	t.Cleanup(b.server.Close)
	return b
}

func (b *backend) url() string {
	return "ws" + strings.TrimPrefix(b.server.URL, "http")
}

func (b *backend) push(t *testing.T, event string, data any) {
	t.Helper()
	payload, err := json.Marshal(data)
	require.NoError(t, err)
	frame, err := json.Marshal(connection.Frame{Event: event, Data: payload})
	require.NoError(t, err)

	b.mu.Lock()
	defer b.mu.Unlock()
	require.NotNil(t, b.current, "no live connection")
	require.NoError(t, b.current.WriteMessage(websocket.TextMessage, frame))
}

// drop closes the live connection from the server side.
func (b *backend) drop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current != nil {
		b.current.Close()
		b.current = nil
	}
}

// rooms returns the rooms named by every received frame of event, in order.
func (b *backend) rooms(event string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, f := range b.frames {
		if f.Event != event {
			continue
		}
		var req struct {
			Room string `json:"room"`
		}
		if json.Unmarshal(f.Data, &req) == nil {
			out = append(out, req.Room)
		}
	}
	return out
}

func (b *backend) framesFor(event string) []connection.Frame {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []connection.Frame
	for _, f := range b.frames {
		if f.Event == event {
			out = append(out, f)
		}
	}
	return out
}

// waitForPatch blocks until the role's slice carries a merged patch of the
// given type. Handlers merge into the dashboard after adding the
// notification, so this also waits for the notification.
func waitForPatch(t *testing.T, s *Session, role model.Role, patchType string) {
	t.Helper()
	require.Eventually(t, func() bool {
		slice, err := s.Dashboard(role)
		return err == nil && slice.Data["type"] == patchType
	}, waitFor, 5*time.Millisecond)
}

func testConfig(b *backend) *config.SyncConfig {
	cfg := config.Default()
	cfg.API.WSURL = b.url()
	cfg.Connection.ReconnectInterval = 10 * time.Millisecond
	cfg.Connection.MaxReconnectAttempts = 5
	cfg.Dashboard.RefreshTimeout = time.Second
	return cfg
}

// staticFetcher serves a fixed dashboard per role and counts calls.
type staticFetcher struct {
	calls atomic.Int32
	data  map[model.Role]map[string]any
}

func (f *staticFetcher) FetchDashboard(_ context.Context, role model.Role) (map[string]any, error) {
	f.calls.Add(1)
	return f.data[role], nil
}

func newSession(t *testing.T, b *backend, role model.Role, userID string, fetcher dashboard.Fetcher, opts ...Option) *Session {
	t.Helper()
	cred, err := auth.NewCredential("tok-abcdef123456", role, userID)
	require.NoError(t, err)

	s, err := New(testConfig(b), cred, fetcher, nil, opts...)
	require.NoError(t, err)
	t.Cleanup(s.End)
	return s
}

func TestNew_RequiresCredential(t *testing.T) {
	_, err := New(config.Default(), nil, nil, nil)
	assert.ErrorIs(t, err, connection.ErrNoCredential)

	_, err = New(config.Default(), &auth.Credential{Role: model.RoleStudent, UserID: "S1"}, nil, nil)
	assert.ErrorIs(t, err, auth.ErrMissingToken)
}

func TestSession_LandlordBookingRequest(t *testing.T) {
	b := newBackend(t)
	fetcher := &staticFetcher{data: map[model.Role]map[string]any{
		model.RoleLandlord: {"pending": float64(0)},
	}}

	var hooked atomic.Int32
	s := newSession(t, b, model.RoleLandlord, "L1", fetcher,
		WithNotificationHook(func(notify.Notification) { hooked.Add(1) }),
	)

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsConnected())
	assert.Equal(t, connection.StateConnected, s.ConnectionState())

	assert.Eventually(t, func() bool {
		return len(b.rooms(model.CommandJoinRoom)) == 2
	}, waitFor, 5*time.Millisecond)
	assert.ElementsMatch(t, []string{"landlord_L1", rooms.RoomLandlords}, b.rooms(model.CommandJoinRoom))
	assert.Equal(t, []string{"landlord_L1", rooms.RoomLandlords}, s.Rooms())

	slice, err := s.Dashboard(model.RoleLandlord)
	require.NoError(t, err)
	assert.Equal(t, float64(0), slice.Data["pending"])

	b.push(t, model.EventNewBookingRequest, map[string]any{
		"booking": map[string]any{"id": "b1", "studentId": "s9"},
	})

	waitForPatch(t, s, model.RoleLandlord, dashboard.PatchNewBooking)
	assert.Equal(t, 1, s.UnreadCount())

	notes := s.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, notify.TypeBooking, notes[0].Type)
	assert.Equal(t, "New Booking Request", notes[0].Title)
	assert.Equal(t, "You have a new booking request", notes[0].Message)
	assert.False(t, notes[0].Read)
	assert.Equal(t, int32(1), hooked.Load())

	slice, err = s.Dashboard(model.RoleLandlord)
	require.NoError(t, err)
	assert.Equal(t, dashboard.PatchNewBooking, slice.Data["type"])
	assert.Equal(t, map[string]any{"id": "b1", "studentId": "s9"}, slice.Data["booking"])
	assert.Equal(t, float64(0), slice.Data["pending"], "merge keeps existing keys")

	assert.True(t, s.MarkNotificationRead(notes[0].ID))
	assert.Equal(t, 0, s.UnreadCount())
}

func TestSession_IgnoresOtherRolesEvents(t *testing.T) {
	b := newBackend(t)
	s := newSession(t, b, model.RoleStudent, "S1", &staticFetcher{})
	require.NoError(t, s.Start(context.Background()))

	b.push(t, model.EventNewOrder, map[string]any{"order": map[string]any{"id": "o1"}})
	b.push(t, model.EventBookingStatusUpdated, map[string]any{"bookingId": "b1", "status": "confirmed"})

	require.Eventually(t, func() bool { return s.UnreadCount() == 1 }, waitFor, 5*time.Millisecond)
	notes := s.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, "Your booking is now confirmed", notes[0].Message)
}

func TestSession_MalformedPayloadDropped(t *testing.T) {
	b := newBackend(t)
	s := newSession(t, b, model.RoleLandlord, "L1", &staticFetcher{})
	require.NoError(t, s.Start(context.Background()))

	b.push(t, model.EventNewBookingRequest, map[string]any{"booking": "not-an-object"})
	b.push(t, model.EventBookingCancelled, map[string]any{"bookingId": "b2", "reason": "plans changed"})

	waitForPatch(t, s, model.RoleLandlord, dashboard.PatchBookingCancelled)
	assert.Equal(t, 1, s.UnreadCount())
	assert.Equal(t, "Booking Cancelled", s.Notifications()[0].Title)

	slice, err := s.Dashboard(model.RoleLandlord)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": "b2", "reason": "plans changed"}, slice.Data["booking"])
}

func TestSession_AdminDashboard(t *testing.T) {
	b := newBackend(t)
	fetcher := &staticFetcher{data: map[model.Role]map[string]any{
		model.RoleAdmin: {"counts": map[string]any{"users": float64(10)}},
	}}

	var pushed atomic.Int32
	s := newSession(t, b, model.RoleAdmin, "", fetcher,
		WithDashboardHook(func(model.Role, dashboard.Slice) { pushed.Add(1) }),
	)
	require.NoError(t, s.Start(context.Background()))

	assert.Eventually(t, func() bool {
		return len(b.rooms(model.CommandJoinRoom)) == 2
	}, waitFor, 5*time.Millisecond)
	assert.ElementsMatch(t, []string{rooms.RoomAdmins, rooms.RoomAdminAlerts}, b.rooms(model.CommandJoinRoom))

	slice, err := s.Dashboard(model.RoleAdmin)
	require.NoError(t, err)
	assert.False(t, slice.Loading)
	assert.Empty(t, slice.Error)
	assert.Equal(t, map[string]any{"users": float64(10)}, slice.Data["counts"])

	b.push(t, model.EventDashboardUpdate, map[string]any{
		"data": map[string]any{"pendingListings": float64(3)},
	})
	require.Eventually(t, func() bool { return pushed.Load() == 1 }, waitFor, 5*time.Millisecond)

	slice, err = s.Dashboard(model.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, float64(3), slice.Data["pendingListings"])
	assert.Equal(t, map[string]any{"users": float64(10)}, slice.Data["counts"])
	assert.Equal(t, 0, s.UnreadCount(), "dashboard updates are not notifications")

	require.NoError(t, s.RefreshDashboard(context.Background()))
	assert.Equal(t, int32(2), fetcher.calls.Load())
}

func TestSession_RestoresRoomsAfterReconnect(t *testing.T) {
	b := newBackend(t)
	s := newSession(t, b, model.RoleFoodProvider, "F7", &staticFetcher{})
	require.NoError(t, s.Start(context.Background()))

	require.Eventually(t, func() bool {
		return len(b.rooms(model.CommandJoinRoom)) == 2
	}, waitFor, 5*time.Millisecond)

	b.drop()

	require.Eventually(t, func() bool {
		return b.connects.Load() == 2 && len(b.rooms(model.CommandJoinRoom)) == 4
	}, waitFor, 5*time.Millisecond)

	joins := b.rooms(model.CommandJoinRoom)
	assert.ElementsMatch(t, joins[:2], joins[2:])
	assert.Eventually(t, func() bool { return len(s.Rooms()) == 2 }, waitFor, 5*time.Millisecond)
	assert.Equal(t, []string{"food_provider_F7", rooms.RoomFoodProviders}, s.Rooms())
	assert.True(t, s.IsConnected())
	assert.Equal(t, int64(2), s.Stats().Connection.Connects)
}

func TestSession_UpdateStatusCommands(t *testing.T) {
	b := newBackend(t)
	s := newSession(t, b, model.RoleFoodProvider, "F7", &staticFetcher{})
	require.NoError(t, s.Start(context.Background()))

	require.NoError(t, s.UpdateOrderStatus("o1", "ready"))
	require.NoError(t, s.UpdateBookingStatus("b1", "confirmed"))
	assert.ErrorIs(t, s.UpdateOrderStatus("", "ready"), ErrInvalidCommand)

	require.Eventually(t, func() bool {
		return len(b.framesFor(model.CommandUpdateOrderStatus)) == 1 &&
			len(b.framesFor(model.CommandUpdateBookingStatus)) == 1
	}, waitFor, 5*time.Millisecond)

	assert.JSONEq(t, `{"orderId":"o1","status":"ready"}`,
		string(b.framesFor(model.CommandUpdateOrderStatus)[0].Data))
	assert.JSONEq(t, `{"bookingId":"b1","status":"confirmed"}`,
		string(b.framesFor(model.CommandUpdateBookingStatus)[0].Data))
}

func TestSession_HandshakeRejected(t *testing.T) {
	b := newBackend(t)
	b.reject.Store(true)
	fetcher := &staticFetcher{data: map[model.Role]map[string]any{
		model.RoleStudent: {"bookings": float64(2)},
	}}
	s := newSession(t, b, model.RoleStudent, "S1", fetcher)

	err := s.Start(context.Background())
	var hsErr *connection.HandshakeError
	require.ErrorAs(t, err, &hsErr)
	assert.Equal(t, connection.StateFailed, s.ConnectionState())
	assert.Empty(t, s.Rooms())

	slice, err := s.Dashboard(model.RoleStudent)
	require.NoError(t, err)
	assert.Equal(t, float64(2), slice.Data["bookings"], "dashboard still loads over REST")

	assert.ErrorIs(t, s.UpdateBookingStatus("b1", "cancelled"), connection.ErrNotConnected)
}

func TestSession_End(t *testing.T) {
	b := newBackend(t)
	fetcher := &staticFetcher{data: map[model.Role]map[string]any{
		model.RoleLandlord: {"pending": float64(1)},
	}}
	s := newSession(t, b, model.RoleLandlord, "L1", fetcher)
	require.NoError(t, s.Start(context.Background()))

	b.push(t, model.EventNewBookingRequest, map[string]any{"booking": map[string]any{"id": "b1"}})
	waitForPatch(t, s, model.RoleLandlord, dashboard.PatchNewBooking)
	require.Equal(t, 1, s.UnreadCount())

	s.End()

	assert.Eventually(t, func() bool {
		return len(b.rooms(model.CommandLeaveRoom)) == 2
	}, waitFor, 5*time.Millisecond)
	assert.ElementsMatch(t, []string{"landlord_L1", rooms.RoomLandlords}, b.rooms(model.CommandLeaveRoom))

	assert.Equal(t, connection.StateDisconnected, s.ConnectionState())
	assert.Empty(t, s.Notifications())
	assert.Equal(t, 0, s.UnreadCount())
	assert.Empty(t, s.Rooms())
	for _, role := range model.Roles {
		slice, err := s.Dashboard(role)
		require.NoError(t, err)
		assert.Nil(t, slice.Data, "role %s", role)
	}

	s.End()
	assert.True(t, errors.Is(s.Start(context.Background()), ErrSessionEnded))
	assert.ErrorIs(t, s.UpdateOrderStatus("o1", "ready"), connection.ErrNotConnected)
}

func TestSession_StartTwice(t *testing.T) {
	b := newBackend(t)
	s := newSession(t, b, model.RoleStudent, "S1", &staticFetcher{})
	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrAlreadyStarted)
}

func TestEventsFor(t *testing.T) {
	for _, role := range model.Roles {
		events := EventsFor(role)
		assert.Contains(t, events, model.EventNotification, "role %s", role)
		assert.Contains(t, events, model.EventDashboardUpdate, "role %s", role)
	}
	assert.Contains(t, EventsFor(model.RoleLandlord), model.EventNewBookingRequest)
	assert.NotContains(t, EventsFor(model.RoleStudent), model.EventNewOrder)
	assert.Empty(t, EventsFor(model.Role("guest")))

	events := EventsFor(model.RoleAdmin)
	events[0] = "mutated"
	assert.Equal(t, model.EventNewUserRegistration, EventsFor(model.RoleAdmin)[0])
}

func TestManagerConfig(t *testing.T) {
	cfg := config.Default()
	cfg.API.WSURL = "wss://example.test/realtime"
	cfg.Connection.ReconnectInterval = 3 * time.Second

	mc := managerConfig(cfg)
	assert.Equal(t, "wss://example.test/realtime", mc.Client.URL)
	assert.Equal(t, 3*time.Second, mc.ReconnectInterval)
	assert.Equal(t, config.DefaultMaxReconnectAttempts, mc.MaxReconnectAttempts)
	assert.Equal(t, config.DefaultPingInterval, mc.Client.PingInterval)
	assert.Equal(t, config.DefaultChannelBufferSize, mc.Client.BufferSize)
}

func TestSession_ReconnectAfterFailed(t *testing.T) {
	b := newBackend(t)
	b.reject.Store(true)
	s := newSession(t, b, model.RoleLandlord, "L1", &staticFetcher{})

	assert.ErrorIs(t, s.Reconnect(context.Background()), ErrNotStarted)

	require.Error(t, s.Start(context.Background()))
	require.Equal(t, connection.StateFailed, s.ConnectionState())

	// Still rejected: stays failed, handlers intact.
	require.Error(t, s.Reconnect(context.Background()))
	assert.Equal(t, connection.StateFailed, s.ConnectionState())

	b.reject.Store(false)
	require.NoError(t, s.Reconnect(context.Background()))
	assert.Equal(t, connection.StateConnected, s.ConnectionState())

	require.Eventually(t, func() bool {
		return len(b.rooms(model.CommandJoinRoom)) == 2
	}, waitFor, 5*time.Millisecond)
	assert.Equal(t, []string{"landlord_L1", rooms.RoomLandlords}, s.Rooms())

	b.push(t, model.EventNewBookingRequest, map[string]any{"booking": map[string]any{"id": "b1"}})
	waitForPatch(t, s, model.RoleLandlord, dashboard.PatchNewBooking)
	assert.Equal(t, 1, s.UnreadCount())

	// Already connected: nothing to do.
	require.NoError(t, s.Reconnect(context.Background()))
	assert.Equal(t, int32(1), b.connects.Load())

	s.End()
	assert.ErrorIs(t, s.Reconnect(context.Background()), ErrSessionEnded)
	assert.Equal(t, connection.StateDisconnected, s.ConnectionState())
}

func TestSession_IgnoresDashboardUpdateForOtherRole(t *testing.T) {
	b := newBackend(t)
	fetcher := &staticFetcher{data: map[model.Role]map[string]any{
		model.RoleStudent: {"bookings": float64(1)},
	}}
	s := newSession(t, b, model.RoleStudent, "S1", fetcher)
	require.NoError(t, s.Start(context.Background()))

	b.push(t, model.EventDashboardUpdate, map[string]any{
		"role": "admin",
		"data": map[string]any{"type": "foreign", "users": float64(99)},
	})
	b.push(t, model.EventDashboardUpdate, map[string]any{
		"role": "student",
		"data": map[string]any{"type": "own"},
	})
	waitForPatch(t, s, model.RoleStudent, "own")

	slice, err := s.Dashboard(model.RoleStudent)
	require.NoError(t, err)
	assert.NotContains(t, slice.Data, "users")
	assert.Equal(t, float64(1), slice.Data["bookings"])

	admin, err := s.Dashboard(model.RoleAdmin)
	require.NoError(t, err)
	assert.Nil(t, admin.Data)
}
