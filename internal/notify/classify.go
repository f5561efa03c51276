package notify

import (
	"encoding/json"

	"github.com/unihub/realtime/internal/model"
)

// FromEvent classifies an inbound event as a notification. It returns
// false for events that never produce one.
func FromEvent(ev model.Event) (Raw, bool) {
	switch e := ev.(type) {
	case model.BookingStatusUpdated:
		return Raw{
			Type:    TypeBooking,
			Title:   "Booking Update",
			Message: orDefault(e.Message, "Your booking is now "+e.Status),
			Data:    marshal(e),
		}, true

	case model.NewBookingRequest:
		return Raw{
			Type:    TypeBooking,
			Title:   "New Booking Request",
			Message: orDefault(e.Message, "You have a new booking request"),
			Data:    marshal(e.Booking),
		}, true

	case model.BookingCancelled:
		return Raw{
			Type:    TypeBooking,
			Title:   "Booking Cancelled",
			Message: orDefault(e.Message, "A booking has been cancelled"),
			Data:    marshal(e),
		}, true

	case model.OrderStatusUpdated:
		return Raw{
			Type:    TypeOrder,
			Title:   "Order Update",
			Message: orDefault(e.Message, "Your order is now "+e.Status),
			Data:    marshal(e),
		}, true

	case model.NewOrder:
		return Raw{
			Type:    TypeOrder,
			Title:   "New Order",
			Message: orDefault(e.Message, "You have received a new order"),
			Data:    marshal(e.Order),
		}, true

	case model.OrderCancelled:
		return Raw{
			Type:    TypeOrder,
			Title:   "Order Cancelled",
			Message: orDefault(e.Message, "An order has been cancelled"),
			Data:    marshal(e),
		}, true

	case model.NewUserRegistration:
		return Raw{
			Type:    TypeSystem,
			Title:   "New User Registration",
			Message: orDefault(e.Message, "A new user has registered"),
			Data:    marshal(e.User),
		}, true

	case model.NewAccommodationListing:
		return Raw{
			Type:    TypeSystem,
			Title:   "New Accommodation Listing",
			Message: orDefault(e.Message, "A new accommodation has been listed"),
			Data:    marshal(e.Accommodation),
		}, true

	case model.SystemAlert:
		return Raw{
			Type:     TypeSystem,
			Title:    orDefault(e.Title, "System Alert"),
			Message:  e.Message,
			Data:     marshal(e.Data),
			Priority: ParsePriority(e.Priority),
		}, true

	case model.ServerNotification:
		return Raw{
			Type:     ParseType(e.Type),
			Title:    e.Title,
			Message:  e.Message,
			Data:     marshal(e.Data),
			Priority: ParsePriority(e.Priority),
		}, true
	}

	return Raw{}, false
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// marshal re-encodes an already-decoded payload. Nil maps yield no data.
func marshal(v any) json.RawMessage {
	if r, ok := v.(model.Record); ok && r == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}
