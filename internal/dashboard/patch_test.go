package dashboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unihub/realtime/internal/model"
)

func TestPatchFor(t *testing.T) {
	tests := []struct {
		name string
		ev   model.Event
		want map[string]any
	}{
		{
			name: "new booking request",
			ev:   model.NewBookingRequest{Booking: model.Record{"id": "B1"}},
			want: map[string]any{"type": "new_booking", "booking": map[string]any{"id": "B1"}},
		},
		{
			name: "booking status folds id and status into booking",
			ev: model.BookingStatusUpdated{
				BookingID: "B1",
				Status:    "confirmed",
				Booking:   model.Record{"room": "12A"},
			},
			want: map[string]any{
				"type":    "booking_status",
				"booking": map[string]any{"id": "B1", "status": "confirmed", "room": "12A"},
			},
		},
		{
			name: "order status without order object",
			ev:   model.OrderStatusUpdated{OrderID: "O1", Status: "ready"},
			want: map[string]any{
				"type":  "order_status",
				"order": map[string]any{"id": "O1", "status": "ready"},
			},
		},
		{
			name: "order cancelled",
			ev:   model.OrderCancelled{OrderID: "O1", Reason: "out of stock"},
			want: map[string]any{
				"type":  "order_cancelled",
				"order": map[string]any{"id": "O1", "reason": "out of stock"},
			},
		},
		{
			name: "new listing",
			ev:   model.NewAccommodationListing{Accommodation: model.Record{"id": "A1"}},
			want: map[string]any{"type": "new_listing", "accommodation": map[string]any{"id": "A1"}},
		},
		{
			name: "system alert",
			ev:   model.SystemAlert{Title: "Down", Message: "Maintenance", Priority: "high"},
			want: map[string]any{
				"type":  "system_alert",
				"alert": map[string]any{"title": "Down", "message": "Maintenance", "priority": "high"},
			},
		},
		{
			name: "dashboard update passes data through",
			ev:   model.DashboardUpdate{Data: model.Record{"stats": map[string]any{"n": 1.0}}},
			want: map[string]any{"stats": map[string]any{"n": 1.0}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := PatchFor(tt.ev)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPatchFor_NoChange(t *testing.T) {
	_, ok := PatchFor(model.ServerNotification{Title: "hi"})
	assert.False(t, ok)
}

func TestPatchFor_DoesNotAliasPayload(t *testing.T) {
	booking := model.Record{"room": "12A"}
	_, ok := PatchFor(model.BookingStatusUpdated{BookingID: "B1", Status: "confirmed", Booking: booking})
	require.True(t, ok)

	assert.Equal(t, model.Record{"room": "12A"}, booking)
}
