package dashboard

import (
	"maps"

	"github.com/unihub/realtime/internal/model"
)

// Patch types recorded under the "type" key of a merged update.
const (
	PatchNewBooking       = "new_booking"
	PatchBookingStatus    = "booking_status"
	PatchBookingCancelled = "booking_cancelled"
	PatchNewOrder         = "new_order"
	PatchOrderStatus      = "order_status"
	PatchOrderCancelled   = "order_cancelled"
	PatchNewUser          = "new_user"
	PatchNewListing       = "new_listing"
	PatchSystemAlert      = "system_alert"
)

// PatchFor converts an inbound event into the partial update merged into a
// dashboard slice. It returns false for events that carry no dashboard
// change. For a DashboardUpdate the patch is its Data; choosing the target
// role is left to the caller.
func PatchFor(ev model.Event) (map[string]any, bool) {
	switch e := ev.(type) {
	case model.NewBookingRequest:
		return map[string]any{"type": PatchNewBooking, "booking": record(e.Booking)}, true

	case model.BookingStatusUpdated:
		booking := withFields(e.Booking, "id", e.BookingID, "status", e.Status)
		return map[string]any{"type": PatchBookingStatus, "booking": booking}, true

	case model.BookingCancelled:
		booking := withFields(e.Booking, "id", e.BookingID, "reason", e.Reason)
		return map[string]any{"type": PatchBookingCancelled, "booking": booking}, true

	case model.NewOrder:
		return map[string]any{"type": PatchNewOrder, "order": record(e.Order)}, true

	case model.OrderStatusUpdated:
		order := withFields(e.Order, "id", e.OrderID, "status", e.Status)
		return map[string]any{"type": PatchOrderStatus, "order": order}, true

	case model.OrderCancelled:
		order := withFields(e.Order, "id", e.OrderID, "reason", e.Reason)
		return map[string]any{"type": PatchOrderCancelled, "order": order}, true

	case model.NewUserRegistration:
		return map[string]any{"type": PatchNewUser, "user": record(e.User)}, true

	case model.NewAccommodationListing:
		return map[string]any{"type": PatchNewListing, "accommodation": record(e.Accommodation)}, true

	case model.SystemAlert:
		alert := map[string]any{
			"title":    e.Title,
			"message":  e.Message,
			"priority": e.Priority,
		}
		return map[string]any{"type": PatchSystemAlert, "alert": alert}, true

	case model.DashboardUpdate:
		return record(e.Data), true
	}

	return nil, false
}

// record strips the named type so merged values are plain maps.
func record(r model.Record) map[string]any {
	if r == nil {
		return map[string]any{}
	}
	return map[string]any(r)
}

// withFields copies r and sets each non-empty key/value pair on the copy.
func withFields(r model.Record, kv ...string) map[string]any {
	out := make(map[string]any, len(r)+len(kv)/2)
	maps.Copy(out, r)
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] != "" {
			out[kv[i]] = kv[i+1]
		}
	}
	return out
}
