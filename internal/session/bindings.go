package session

import "github.com/unihub/realtime/internal/model"

// roleEvents lists the inbound events each role's session handles.
var roleEvents = map[model.Role][]string{
	model.RoleStudent: {
		model.EventBookingStatusUpdated,
		model.EventOrderStatusUpdated,
		model.EventNotification,
		model.EventDashboardUpdate,
	},
	model.RoleLandlord: {
		model.EventNewBookingRequest,
		model.EventBookingCancelled,
		model.EventBookingStatusUpdated,
		model.EventNotification,
		model.EventDashboardUpdate,
	},
	model.RoleFoodProvider: {
		model.EventNewOrder,
		model.EventOrderCancelled,
		model.EventOrderStatusUpdated,
		model.EventNotification,
		model.EventDashboardUpdate,
	},
	model.RoleAdmin: {
		model.EventNewUserRegistration,
		model.EventNewAccommodationListing,
		model.EventSystemAlert,
		model.EventNotification,
		model.EventDashboardUpdate,
	},
}

// EventsFor returns the inbound events a role's session handles.
func EventsFor(role model.Role) []string {
	return append([]string(nil), roleEvents[role]...)
}
