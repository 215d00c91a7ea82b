// Package http exposes the booking manager over JSON under /api.
//
// Sessions:
//   - POST /sessions: body {"email","password"}. Response {"token","expires_at","actor"};
//     the token is also returned in the X-Session-Token header and the
//     session_token cookie.
//   - GET /sessions/current, DELETE /sessions/current.
//   - POST /sessions/shared: issues a shared direct access token. Body
//     {"display_name","role","tier"}.
//   - GET /sessions/shared/card: the same token printed on a PDF card with a QR code.
//
// Bookings:
//   - GET /bookings, POST /bookings, GET /bookings/mine.
//   - GET, PATCH, DELETE /bookings/{id}. GET accepts ?view=calendar.
//   - POST /bookings/{id}/status: body {"status","rejection_reason"}.
//   - POST /bookings/{id}/attachments, DELETE /bookings/{id}/attachments/{filename}.
//   - GET /calendar: the shared view.
//
// Listings accept status (comma separated), kind, room, date_from, date_to,
// search, creator_id, page and limit.
//
// Sync:
//   - GET /sync returns every booking with an ETag; If-None-Match yields 304.
//   - POST /sync reconciles a batch of client snapshots.
//
// Notifications (registered accounts only):
//   - GET /notifications, GET /notifications/unread-count.
//   - POST /notifications/read-all, POST /notifications/{id}/read, DELETE /notifications/{id}.
//   - GET /ws streams new notifications over a websocket.
//
// Administration:
//   - GET, POST /admin/users; PUT /admin/users/{id}/tier; PUT /admin/users/{id}/active.
//   - GET /admin/audit.
//   - GET /reports/bookings.csv, GET /reports/bookings.pdf.
//
// GET /healthz is unauthenticated. Errors share the body
// {"error_code","message","errors"}.
package http
