// Package http exposes the scheduling API over JSON.
//
// All /v1 routes require an HS256 bearer token whose subject is the user ID:
//   - GET /v1/me/availability, PUT /v1/me/availability: read or replace the
//     principal's weekly availability (the availability.Model JSON form).
//   - PUT /v1/me/availability/days/{day}: {"active","start","end"} for one weekday.
//   - POST /v1/me/availability/overrides: {"date","start","end"} for one date.
//   - POST /v1/me/availability/parse: {"text","apply"} interprets free text.
//   - POST /v1/me/availability/import: {"busy":[{"start","end"}]}, or an empty
//     body to pull busy time from the connected Google calendar.
//   - GET /v1/users/{userID}/suggestions?preference=: ranked mutual slots.
//   - POST /v1/meetings, GET /v1/meetings?view=upcoming|awaiting|history.
//   - POST /v1/meetings/{id}/confirm|decline|cancel|complete and
//     /v1/meetings/{id}/reschedule {"scheduled_at"}.
//   - GET /v1/calendar/connect, DELETE /v1/calendar.
//   - GET /v1/ws: websocket stream of meeting events.
//
// GET /healthz, /readyz, /metrics and the OAuth callback
// /oauth/google/callback are unauthenticated.
//
// Errors are rendered as {"error_code","message","errors"}.
package http
