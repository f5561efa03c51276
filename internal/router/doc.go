// Package router implements the Event Router component.
//
// The Event Router:
//   - Keeps an ordered list of handlers per event name
//   - Fans each inbound event out to every handler, in registration order
//   - Isolates handler failures (returned errors and panics) from one another
//   - Hands out disposable registrations so listeners can always be removed
package router
