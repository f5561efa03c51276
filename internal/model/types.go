package model

import "errors"

// Inbound event names pushed by the backend.
const (
	EventBookingStatusUpdated    = "booking_status_updated"
	EventOrderStatusUpdated      = "order_status_updated"
	EventNewBookingRequest       = "new_booking_request"
	EventBookingCancelled        = "booking_cancelled"
	EventNewOrder                = "new_order"
	EventOrderCancelled          = "order_cancelled"
	EventNewUserRegistration     = "new_user_registration"
	EventNewAccommodationListing = "new_accommodation_listing"
	EventSystemAlert             = "system_alert"
	EventNotification            = "notification"
	EventDashboardUpdate         = "dashboard_update"
)

// Local lifecycle events dispatched by the connection manager. These never
// appear on the wire.
const (
	EventConnectionStatus = "connection_status"
	EventConnectionError  = "connection_error"
	EventReconnected      = "reconnected"
)

// Outbound command names.
const (
	CommandJoinRoom            = "join_room"
	CommandLeaveRoom           = "leave_room"
	CommandUpdateBookingStatus = "update_booking_status"
	CommandUpdateOrderStatus   = "update_order_status"
)

// InboundEvents lists every server-pushed event name this core decodes.
var InboundEvents = []string{
	EventBookingStatusUpdated,
	EventOrderStatusUpdated,
	EventNewBookingRequest,
	EventBookingCancelled,
	EventNewOrder,
	EventOrderCancelled,
	EventNewUserRegistration,
	EventNewAccommodationListing,
	EventSystemAlert,
	EventNotification,
	EventDashboardUpdate,
}

// Errors
var (
	ErrUnknownEvent = errors.New("unknown event")
	ErrEmptyPayload = errors.New("empty payload")
	ErrInvalidRole  = errors.New("invalid role")
)

// Record is an opaque JSON object (booking, order, user, listing).
type Record map[string]any

// Event is implemented by every inbound payload variant.
type Event interface {
	EventName() string
}

// -----------------------------------------------------------------------------
// Booking events
// -----------------------------------------------------------------------------

// BookingStatusUpdated is pushed to a student when a landlord changes a booking.
type BookingStatusUpdated struct {
	BookingID string `json:"bookingId"`
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	Booking   Record `json:"booking,omitempty"`
}

// NewBookingRequest is pushed to a landlord when a student requests a booking.
type NewBookingRequest struct {
	Booking Record `json:"booking"`
	Message string `json:"message,omitempty"`
}

// BookingCancelled is pushed to a landlord when a student cancels.
type BookingCancelled struct {
	BookingID string `json:"bookingId"`
	Reason    string `json:"reason,omitempty"`
	Message   string `json:"message,omitempty"`
	Booking   Record `json:"booking,omitempty"`
}

// -----------------------------------------------------------------------------
// Order events
// -----------------------------------------------------------------------------

// OrderStatusUpdated is pushed when an order moves through its lifecycle.
type OrderStatusUpdated struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Order   Record `json:"order,omitempty"`
}

// NewOrder is pushed to a food provider when a student places an order.
type NewOrder struct {
	Order   Record `json:"order"`
	Message string `json:"message,omitempty"`
}

// OrderCancelled is pushed to a food provider when an order is cancelled.
type OrderCancelled struct {
	OrderID string `json:"orderId"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
	Order   Record `json:"order,omitempty"`
}

// -----------------------------------------------------------------------------
// Admin events
// -----------------------------------------------------------------------------

// NewUserRegistration is pushed to admins when an account is created.
type NewUserRegistration struct {
	User    Record `json:"user"`
	Message string `json:"message,omitempty"`
}

// NewAccommodationListing is pushed to admins when a landlord lists a property.
type NewAccommodationListing struct {
	Accommodation Record `json:"accommodation"`
	Message       string `json:"message,omitempty"`
}

// SystemAlert is broadcast on the admin alerts channel.
type SystemAlert struct {
	Title    string `json:"title"`
	Message  string `json:"message"`
	Priority string `json:"priority,omitempty"`
	Data     Record `json:"data,omitempty"`
}

// -----------------------------------------------------------------------------
// Generic events
// -----------------------------------------------------------------------------

// ServerNotification is a pre-classified notification from the backend.
type ServerNotification struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Message  string `json:"message"`
	Priority string `json:"priority,omitempty"`
	Data     Record `json:"data,omitempty"`
}

// DashboardUpdate carries a partial dashboard for one role.
type DashboardUpdate struct {
	Role Role   `json:"role,omitempty"`
	Data Record `json:"data"`
}

func (BookingStatusUpdated) EventName() string    { return EventBookingStatusUpdated }
func (NewBookingRequest) EventName() string       { return EventNewBookingRequest }
func (BookingCancelled) EventName() string        { return EventBookingCancelled }
func (OrderStatusUpdated) EventName() string      { return EventOrderStatusUpdated }
func (NewOrder) EventName() string                { return EventNewOrder }
func (OrderCancelled) EventName() string          { return EventOrderCancelled }
func (NewUserRegistration) EventName() string     { return EventNewUserRegistration }
func (NewAccommodationListing) EventName() string { return EventNewAccommodationListing }
func (SystemAlert) EventName() string             { return EventSystemAlert }
func (ServerNotification) EventName() string      { return EventNotification }
func (DashboardUpdate) EventName() string         { return EventDashboardUpdate }
