// Package notify holds the bounded, most-recent-first list of user-facing
// notifications and its unread counter.
package notify
