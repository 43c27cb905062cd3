// Package api implements the read-only HTTP status server of the edge node.
//
// Routes (all GET, JSON responses):
//   - /api/v1/health: component health checks, 503 when any fails
//   - /api/v1/metrics: runtime, session and database metrics
//   - /api/v1/session: snapshot of the Sparkplug session
//   - /api/v1/journal: recent published messages (session_id, type, limit)
//   - /api/v1/journal/death/{sessionID}: the NDEATH a session published
//
// The server only observes; it never drives the session.
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
