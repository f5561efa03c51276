// Package model defines the roles and inbound event variants shared across the
// real-time synchronization core.
//
// Conventions:
//   - Event names are the wire names pushed by the backend (snake_case).
//   - Payload field names follow the backend's JSON (camelCase).
//   - Object-valued payload fields decode into Record and must be JSON objects.
package model
