// Package connection implements the Connection Manager component.
//
// The Connection Manager:
//   - Owns exactly one WebSocket channel per session
//   - Authenticates the handshake with the session credential
//   - Recovers from unexpected drops with a bounded, fixed-interval retry loop
//   - Delivers inbound frames to the Event Router one at a time
//   - Drops outbound sends while not connected (no queuing)
package connection
