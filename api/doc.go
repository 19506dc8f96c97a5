// Package api exposes the tour service over HTTP.
//
// Routes live under /api and use gorilla/mux:
//
// Sessions:
//   - POST /api/sessions {config_name?, player_name?}
//   - GET /api/sessions?sort=created|accessed&order=asc|desc&limit=N
//   - GET /api/sessions/unified?sessionIds=a,b or ?configName=classic
//   - GET|DELETE /api/sessions/{id}
//
// Driving:
//   - GET /api/sessions/{id}/snapshot
//   - POST /api/sessions/{id}/drive {frames, dt, accelerate, brake}
//   - POST /api/sessions/{id}/pause {paused?} (toggles when omitted)
//   - POST /api/sessions/{id}/reset
//   - POST /api/sessions/{id}/resize {width, height}
//   - GET /api/sessions/{id}/history?page&limit&order
//
// Stops:
//   - GET /api/sessions/{id}/stop
//   - POST /api/sessions/{id}/stop/select {stage_id}
//   - POST /api/sessions/{id}/stop/action {stage_id, action, args}
//   - POST /api/sessions/{id}/stop/close
//
// Track authoring:
//   - POST /api/sessions/{id}/recording {action, x, y}
//   - GET /api/sessions/{id}/track
//
// Tours:
//   - GET /api/configs
//   - GET|POST /api/configs/{name}
//   - GET /api/leaderboard/{config}
//
// GET /ws?session=ID upgrades to the snapshot stream of package websocket,
// and /mcp serves the MCP handler when one is mounted.
//
// Drive runs at most engine.MaxDriveFrames frames and reports why it
// stopped:
//
//	{
//	  "frames_executed": 41,
//	  "requested_frames": 120,
//	  "stop_reason_code": "stop_opened",
//	  "stopped_reason": "stop opened: Mirante",
//	  "snapshot": {...},
//	  "events": [...]
//	}
//
// Errors are JSON with the mapped status code:
//
//	{"error": "session not found", "code": 404}
//
// Unknown sessions, tours, stops and stages are 404. Malformed requests
// and invalid tours are 400. Actions the current state refuses (no open
// stop, locked stage, solved game) are 409. Anything else is 500 and is
// reported to Sentry.
package api
