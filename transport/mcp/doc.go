// Package mcp exposes the driving tour to AI agents over the Model Context
// Protocol.
//
// The Client is a thin proxy: every tool calls the REST API of a running
// server and renders the JSON answer as plain text for the agent.
//
// MCP Tools:
//   - create_session, get_session, list_sessions: session management
//   - tour_state: progress, speed, lap time and stop markers
//   - drive: run frames with the accelerator or brake held
//   - pause, reset_tour: run control
//   - stop_view, select_stage, stage_action, close_stop: the open stop
//   - event_history: paginated run events
//   - list_configs, leaderboard: tours and best laps
//   - tour_instructions: rules and mini-game actions
//
// Transport Modes:
//
//	// Stdio, for local MCP clients
//	client := mcp.NewClient("http://localhost:8080")
//	server.ServeStdio(client.GetMCPServer())
//
//	// HTTP, one JSON-RPC message per POST
//	router.Handle("/mcp", client.HTTPHandler())
package mcp
