package router

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// Handler receives the payload of one inbound event.
// A returned error is logged and does not affect other handlers.
type Handler func(payload json.RawMessage) error

// Registration is the disposable handle returned by On.
type Registration struct {
	router  *Router
	event   string
	handler Handler
}

// Event returns the event name this registration listens to.
func (reg *Registration) Event() string {
	return reg.event
}

// Unsubscribe removes this registration. Safe to call more than once.
func (reg *Registration) Unsubscribe() {
	if reg == nil {
		return
	}
	reg.router.remove(reg)
}

// Stats contains runtime statistics.
type Stats struct {
	Dispatched    int64 // Events with at least one handler
	Unhandled     int64 // Events with no handler registered
	Invocations   int64 // Handler calls
	HandlerErrors int64 // Handler calls that returned an error or panicked
}

// Router fans inbound events out to registered handlers.
type Router struct {
	logger *slog.Logger

	mu       sync.RWMutex
	handlers map[string][]*Registration

	statsMu sync.Mutex
	stats   Stats
}

// New creates an empty Router.
func New(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		logger:   logger,
		handlers: make(map[string][]*Registration),
	}
}

// On appends handler to the list for event. Registering the same function
// twice yields two registrations and two invocations per dispatch.
func (r *Router) On(event string, handler Handler) *Registration {
	reg := &Registration{router: r, event: event, handler: handler}

	r.mu.Lock()
	r.handlers[event] = append(r.handlers[event], reg)
	r.mu.Unlock()

	return reg
}

// Off removes reg from event. A nil reg clears every handler for event.
func (r *Router) Off(event string, reg *Registration) {
	if reg == nil {
		r.mu.Lock()
		delete(r.handlers, event)
		r.mu.Unlock()
		return
	}
	if reg.event != event || reg.router != r {
		return
	}
	r.remove(reg)
}

// Reset drops every registration for every event.
func (r *Router) Reset() {
	r.mu.Lock()
	r.handlers = make(map[string][]*Registration)
	r.mu.Unlock()
}

// HandlerCount returns the number of registrations for event.
func (r *Router) HandlerCount(event string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers[event])
}

// Dispatch invokes every handler registered for event, in registration
// order, and returns how many were invoked. Handlers registered or removed
// during a dispatch take effect from the next dispatch.
func (r *Router) Dispatch(event string, payload json.RawMessage) int {
	r.mu.RLock()
	regs := make([]*Registration, len(r.handlers[event]))
	copy(regs, r.handlers[event])
	r.mu.RUnlock()

	if len(regs) == 0 {
		r.statsMu.Lock()
		r.stats.Unhandled++
		r.statsMu.Unlock()
		r.logger.Debug("no handlers for event", "event", event)
		return 0
	}

	var failed int64
	for _, reg := range regs {
		if err := r.invoke(reg, payload); err != nil {
			failed++
			r.logger.Warn("event handler failed",
				"event", event,
				"error", err,
			)
		}
	}

	r.statsMu.Lock()
	r.stats.Dispatched++
	r.stats.Invocations += int64(len(regs))
	r.stats.HandlerErrors += failed
	r.statsMu.Unlock()

	return len(regs)
}

// Stats returns current statistics.
func (r *Router) Stats() Stats {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	return r.stats
}

// invoke runs one handler, converting a panic into an error.
func (r *Router) invoke(reg *Registration, payload json.RawMessage) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()
	return reg.handler(payload)
}

func (r *Router) remove(reg *Registration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	regs := r.handlers[reg.event]
	for i, h := range regs {
		if h != reg {
			continue
		}
		// Copy so an in-flight Dispatch snapshot is never mutated.
		next := make([]*Registration, 0, len(regs)-1)
		next = append(next, regs[:i]...)
		next = append(next, regs[i+1:]...)
		if len(next) == 0 {
			delete(r.handlers, reg.event)
		} else {
			r.handlers[reg.event] = next
		}
		return
	}
}
