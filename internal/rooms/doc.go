// Package rooms tracks which broadcast rooms the session has asked to join.
//
// Each role maps to a fixed pair of rooms:
//
//	student        student_<id>, students
//	landlord       landlord_<id>, landlords
//	food_provider  food_provider_<id>, food_providers
//	admin          admins, admin_alerts
//
// Join and leave requests are fire-and-forget. The joined set is advisory;
// authoritative membership lives on the server and does not survive a
// dropped connection, so callers re-issue SubscribeAs after reconnecting.
package rooms
