// Package api is the REST client for the UniHub read API.
//
// Only the per-role dashboard endpoints are used by the realtime core:
//
//	GET /student/dashboard
//	GET /landlord/dashboard
//	GET /food-provider/dashboard
//	GET /admin/dashboard
//
// Responses share the envelope {"success": bool, "data": ..., "message": string}.
// Requests are authenticated with the session's bearer token and retried with
// jittered exponential backoff on 5xx and 429 responses.
package api
