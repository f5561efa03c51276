package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Decode narrows a raw payload into the variant registered for name.
// Object-valued fields that are not JSON objects fail the decode, so a
// malformed frame never reaches a merge.
func Decode(name string, payload json.RawMessage) (Event, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, fmt.Errorf("%s: %w", name, ErrEmptyPayload)
	}

	var ev Event
	switch name {
	case EventBookingStatusUpdated:
		ev = decodeInto[BookingStatusUpdated](trimmed)
	case EventOrderStatusUpdated:
		ev = decodeInto[OrderStatusUpdated](trimmed)
	case EventNewBookingRequest:
		ev = decodeInto[NewBookingRequest](trimmed)
	case EventBookingCancelled:
		ev = decodeInto[BookingCancelled](trimmed)
	case EventNewOrder:
		ev = decodeInto[NewOrder](trimmed)
	case EventOrderCancelled:
		ev = decodeInto[OrderCancelled](trimmed)
	case EventNewUserRegistration:
		ev = decodeInto[NewUserRegistration](trimmed)
	case EventNewAccommodationListing:
		ev = decodeInto[NewAccommodationListing](trimmed)
	case EventSystemAlert:
		ev = decodeInto[SystemAlert](trimmed)
	case EventNotification:
		ev = decodeInto[ServerNotification](trimmed)
	case EventDashboardUpdate:
		ev = decodeInto[DashboardUpdate](trimmed)
	default:
		return nil, fmt.Errorf("%s: %w", name, ErrUnknownEvent)
	}

	if de, ok := ev.(decodeError); ok {
		return nil, fmt.Errorf("decode %s: %w", name, de.err)
	}
	if err := validate(ev); err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return ev, nil
}

// decodeError carries an unmarshal failure through the Event-typed switch.
type decodeError struct{ err error }

func (decodeError) EventName() string { return "" }

func decodeInto[T Event](data []byte) Event {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return decodeError{err: err}
	}
	return v
}

// validate enforces the fields a variant cannot be merged without.
func validate(ev Event) error {
	switch e := ev.(type) {
	case NewBookingRequest:
		if e.Booking == nil {
			return fmt.Errorf("booking is required")
		}
	case NewOrder:
		if e.Order == nil {
			return fmt.Errorf("order is required")
		}
	case NewUserRegistration:
		if e.User == nil {
			return fmt.Errorf("user is required")
		}
	case NewAccommodationListing:
		if e.Accommodation == nil {
			return fmt.Errorf("accommodation is required")
		}
	case DashboardUpdate:
		if e.Data == nil {
			return fmt.Errorf("data is required")
		}
		if e.Role != "" && !e.Role.Valid() {
			return fmt.Errorf("unknown role %q", e.Role)
		}
	}
	return nil
}
