// Package session owns the realtime core for one logged-in user.
//
// A Session is built at login and discarded at logout. It holds one
// connection manager, room manager, notification store and dashboard
// aggregator, wires the role's inbound events into the two stores, and
// exposes read accessors and actions for the UI layer. Nothing is shared
// between sessions.
package session
