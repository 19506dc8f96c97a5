package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/driving-tour/game/engine"
	"github.com/wricardo/driving-tour/game/minigame"
	"github.com/wricardo/driving-tour/game/service"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Driving Tour",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Driving Tour - MCP Interface

This is a thin client that proxies all requests to the REST API server.

OBJECTIVE:
Drive the car along the route. Every stop on the way opens a panel of stages:
first the content stage, then the mini-games, in order. Complete every stage,
close the stop, and keep driving. The tour is complete when every stop is done
and the car reaches the finish.

AVAILABLE TOOLS:
- create_session / get_session / list_sessions: manage tours in progress
- tour_state: position, speed, lap time and stop markers
- drive: run frames with the accelerator or brake held - requires intent
- pause / reset_tour: control the run
- stop_view: the open stop with its stages and the running mini-game
- select_stage / stage_action / close_stop: work through an open stop
- event_history: past events
- list_configs / leaderboard: available tours and best laps
- tour_instructions: full rules and mini-game actions`),
	)

	c.registerTools()
}

func sessionProperty() map[string]any {
	return map[string]any{
		"type":        "string",
		"description": "Session ID",
	}
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	// Session management
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_session",
		Description: "Create a new tour session with optional tour and player name",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"config_name": map[string]any{
					"type":        "string",
					"description": "Tour to drive (optional, defaults to the server default)",
				},
				"player_name": map[string]any{
					"type":        "string",
					"description": "Name shown on the leaderboard (optional)",
				},
			},
		},
	}, c.handleCreateSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List all active tour sessions",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{},
		},
	}, c.handleListSessions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_session",
		Description: "Get details of a specific session",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{"session_id": sessionProperty()},
			Required:   []string{"session_id"},
		},
	}, c.handleGetSession)

	// Driving
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "tour_state",
		Description: "Get the current frame: progress, speed, lap time, message and stop markers",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{"session_id": sessionProperty()},
			Required:   []string{"session_id"},
		},
	}, c.handleTourState)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "drive",
		Description: fmt.Sprintf("Run up to %d frames holding the accelerator (or the brake). Stops early when a stop opens, the car reaches the finish, or the run is paused.", engine.MaxDriveFrames),
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"session_id": sessionProperty(),
				"frames": map[string]any{
					"type":        "number",
					"description": fmt.Sprintf("Frames to run (1-%d, default 60)", engine.MaxDriveFrames),
				},
				"dt": map[string]any{
					"type":        "number",
					"description": "Seconds per frame (default 1/60)",
				},
				"brake": map[string]any{
					"type":        "boolean",
					"description": "Hold the brake instead of the accelerator",
				},
				"intent": map[string]any{
					"type":        "string",
					"description": "Why you are driving now and what you expect to reach",
				},
			},
			Required: []string{"session_id", "intent"},
		},
	}, c.handleDrive)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "pause",
		Description: "Pause or resume the run. Toggles when paused is omitted.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"session_id": sessionProperty(),
				"paused": map[string]any{
					"type":        "boolean",
					"description": "true to pause, false to resume",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handlePause)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "reset_tour",
		Description: "Reset the run to the start of the route",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{"session_id": sessionProperty()},
			Required:   []string{"session_id"},
		},
	}, c.handleReset)

	// Stops
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "stop_view",
		Description: "Show the open stop: its stages with status and the running mini-game",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{"session_id": sessionProperty()},
			Required:   []string{"session_id"},
		},
	}, c.handleStopView)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "select_stage",
		Description: "Switch the open stop to an unlocked stage",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"session_id": sessionProperty(),
				"stage_id": map[string]any{
					"type":        "string",
					"description": `Stage ID ("content" or "game:<id>")`,
				},
			},
			Required: []string{"session_id", "stage_id"},
		},
	}, c.handleSelectStage)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "stage_action",
		Description: "Act on a stage: complete the content, or play the mini-game (start, flip, answer, pick, place, move, remove)",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"session_id": sessionProperty(),
				"stage_id": map[string]any{
					"type":        "string",
					"description": "Stage ID (defaults to the active stage)",
				},
				"action": map[string]any{
					"type":        "string",
					"description": "complete | start | restart | flip | answer | pick | reset | place | move | remove",
				},
				"index": map[string]any{
					"type":        "number",
					"description": "Card, option, choice or piece index",
				},
				"target": map[string]any{
					"type":        "number",
					"description": "Board slot for puzzle place/move",
				},
				"intent": map[string]any{
					"type":        "string",
					"description": "What you expect this action to do",
				},
			},
			Required: []string{"session_id", "action"},
		},
	}, c.handleStageAction)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "close_stop",
		Description: "Close the open stop. Refused until every stage is completed.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{"session_id": sessionProperty()},
			Required:   []string{"session_id"},
		},
	}, c.handleCloseStop)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "event_history",
		Description: "Get the event history of a session with pagination",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"session_id": sessionProperty(),
				"page": map[string]any{
					"type":        "number",
					"description": "Page number (default 1)",
				},
				"limit": map[string]any{
					"type":        "number",
					"description": "Events per page (default 20)",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleEventHistory)

	// Tours
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_configs",
		Description: "List available tours",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{},
		},
	}, c.handleListConfigs)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "leaderboard",
		Description: "Best finished laps of a tour",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"config_name": map[string]any{
					"type":        "string",
					"description": "Tour name",
				},
			},
			Required: []string{"config_name"},
		},
	}, c.handleLeaderboard)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "tour_instructions",
		Description: "Get the rules of the tour and the actions of every mini-game",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{},
		},
	}, c.handleTourInstructions)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// HTTPHandler answers single JSON-RPC messages posted to it.
func (c *Client) HTTPHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := c.mcpServer.HandleMessage(r.Context(), body)
		if response == nil {
			// Notifications have no response
			w.WriteHeader(http.StatusAccepted)
			return
		}

		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(responseData)
	})
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body any, result any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error != "" {
			return fmt.Errorf("%s", errResp.Error)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}
	return nil
}

func arguments(request mcp.CallToolRequest) map[string]any {
	args, _ := request.Params.Arguments.(map[string]any)
	if args == nil {
		return map[string]any{}
	}
	return args
}

func sessionPath(args map[string]any, suffix string) string {
	sessionID, _ := args["session_id"].(string)
	return "/api/sessions/" + url.PathEscape(sessionID) + suffix
}

// Tool handlers

func (c *Client) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)

	body := map[string]string{}
	if configName, _ := args["config_name"].(string); configName != "" {
		body["config_name"] = configName
	}
	if playerName, _ := args["player_name"].(string); playerName != "" {
		body["player_name"] = playerName
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "POST", "/api/sessions", body, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Created session: %s\nTour: %s\n", session.ID, session.ConfigName)
	if session.PlayerName != "" {
		result += fmt.Sprintf("Player: %s\n", session.PlayerName)
	}
	result += "\n" + formatSnapshot(&session.Snapshot)
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count    int                   `json:"count"`
		Sessions []service.SessionInfo `json:"sessions"`
	}
	if err := c.apiCall(ctx, "GET", "/api/sessions", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Active Sessions (%d):\n\n", response.Count)
	for _, s := range response.Sessions {
		fmt.Fprintf(&b, "- %s (Tour: %s, Progress: %.0f/%.0f, Created: %s)\n",
			s.ID, s.ConfigName, s.Snapshot.Progress, s.Snapshot.TotalLength, s.CreatedAt.Format("15:04:05"))
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var session service.SessionInfo
	if err := c.apiCall(ctx, "GET", sessionPath(arguments(request), ""), nil, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatSessionInfo(&session)), nil
}

func (c *Client) handleTourState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var snap engine.Snapshot
	if err := c.apiCall(ctx, "GET", sessionPath(arguments(request), "/snapshot"), nil, &snap); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatSnapshot(&snap)), nil
}

func (c *Client) handleDrive(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)

	req := service.DriveRequest{Frames: 60, Accelerate: true}
	if frames, ok := args["frames"].(float64); ok {
		req.Frames = int(frames)
	}
	if dt, ok := args["dt"].(float64); ok {
		req.DT = dt
	}
	if brake, _ := args["brake"].(bool); brake {
		req.Accelerate = false
		req.Brake = true
	}

	var result service.DriveResult
	if err := c.apiCall(ctx, "POST", sessionPath(args, "/drive"), req, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatDriveResult(&result)), nil
}

func (c *Client) handlePause(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)

	body := map[string]any{}
	if paused, ok := args["paused"].(bool); ok {
		body["paused"] = paused
	}

	var snap engine.Snapshot
	if err := c.apiCall(ctx, "POST", sessionPath(args, "/pause"), body, &snap); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	state := "Resumed"
	if snap.Paused {
		state = "Paused"
	}
	return mcp.NewToolResultText(state + "\n\n" + formatSnapshot(&snap)), nil
}

func (c *Client) handleReset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Message  string          `json:"message"`
		Snapshot engine.Snapshot `json:"snapshot"`
	}
	if err := c.apiCall(ctx, "POST", sessionPath(arguments(request), "/reset"), nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s\n\n%s", response.Message, formatSnapshot(&response.Snapshot))), nil
}

// stopResponse keeps the game view raw until its kind is known.
type stopResponse struct {
	Stop   engine.StopView `json:"stop"`
	Game   json.RawMessage `json:"game,omitempty"`
	Events []engine.Event  `json:"events,omitempty"`
}

func (c *Client) handleStopView(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var result stopResponse
	if err := c.apiCall(ctx, "GET", sessionPath(arguments(request), "/stop"), nil, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatStop(&result)), nil
}

func (c *Client) handleSelectStage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	stageID, _ := args["stage_id"].(string)

	var result stopResponse
	if err := c.apiCall(ctx, "POST", sessionPath(args, "/stop/select"), map[string]string{"stage_id": stageID}, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatStop(&result)), nil
}

func (c *Client) handleStageAction(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)

	req := service.StageActionRequest{}
	req.StageID, _ = args["stage_id"].(string)
	req.Action, _ = args["action"].(string)
	if index, ok := args["index"].(float64); ok {
		req.Args.Index = int(index)
	}
	if target, ok := args["target"].(float64); ok {
		req.Args.Target = int(target)
	}

	var result stopResponse
	if err := c.apiCall(ctx, "POST", sessionPath(args, "/stop/action"), req, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatStop(&result)), nil
}

func (c *Client) handleCloseStop(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var result service.CloseResult
	if err := c.apiCall(ctx, "POST", sessionPath(arguments(request), "/stop/close"), nil, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatCloseResult(&result)), nil
}

func (c *Client) handleEventHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)

	params := url.Values{}
	if page, ok := args["page"].(float64); ok {
		params.Set("page", fmt.Sprintf("%d", int(page)))
	}
	if limit, ok := args["limit"].(float64); ok {
		params.Set("limit", fmt.Sprintf("%d", int(limit)))
	}
	path := sessionPath(args, "/history")
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var history service.HistoryResponse
	if err := c.apiCall(ctx, "GET", path, nil, &history); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatHistory(&history)), nil
}

func (c *Client) handleListConfigs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var configs []service.ConfigInfo
	if err := c.apiCall(ctx, "GET", "/api/configs", nil, &configs); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	b.WriteString("Available Tours:\n\n")
	for _, config := range configs {
		fmt.Fprintf(&b, "• %s (%s)\n  %s\n  Stops: %d, Control points: %d\n\n",
			config.Name, config.ConfigID, config.Description, config.Stops, config.ControlPoints)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleLeaderboard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	configName, _ := arguments(request)["config_name"].(string)

	var response struct {
		ConfigName string `json:"config_name"`
		Entries    []struct {
			Rank    int    `json:"rank"`
			Name    string `json:"name"`
			LapTime string `json:"lap_time"`
		} `json:"entries"`
	}
	if err := c.apiCall(ctx, "GET", "/api/leaderboard/"+url.PathEscape(configName), nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if len(response.Entries) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No finished laps on %s yet.", response.ConfigName)), nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Leaderboard: %s\n\n", response.ConfigName)
	for _, e := range response.Entries {
		fmt.Fprintf(&b, "%2d. %-20s %s\n", e.Rank, e.Name, e.LapTime)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleTourInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	instructions := `Driving Tour - Complete Instructions

OBJECTIVE:
Drive the whole route, complete every stop, and reach the finish. The lap
timer runs from the first frame; finished laps go to the leaderboard.

DRIVING:
• drive holds the accelerator for the requested frames (max ` + fmt.Sprint(engine.MaxDriveFrames) + ` per call)
• brake=true holds the brake instead; releasing both lets the car coast
• A drive stops early with a reason code:
  - stop_opened: you reached a stop and its panel opened
  - stop_open: a stop is already open, nothing moved
  - finished: the car is at the end of the route
  - tour_completed: every stop is done and the finish was reached
  - paused: the run is paused
• Driving is frozen while a stop is open

STOPS AND STAGES:
• Stops are visited in route order; the next one opens when the car reaches it
• Each stop lists its stages: first "content", then "game:<id>" for each mini-game
• A stage is unlocked only when every stage before it is completed
• close_stop is refused until every stage is completed

STAGE ACTIONS:
• content: action "complete"
• Any mini-game: "start" begins a round, "restart" begins a fresh one
• memory: "flip" with index (card); two unmatched cards stay visible briefly
• quiz: "answer" with index (option)
• sequence: "pick" with index (choice) in the right order; "reset" clears picks
• puzzle: "place" with index (piece) and target (slot), "move" between slots,
  "remove" with index (slot) back to the tray

STRATEGY:
1. drive until stop_opened
2. stop_view to see the stages
3. complete the content, then play each mini-game in order
4. close_stop and drive on
5. After the last stop, drive to the finish for tour_completed

Have a good trip!`

	return mcp.NewToolResultText(instructions), nil
}

// Formatting helpers

func formatSessionInfo(session *service.SessionInfo) string {
	return fmt.Sprintf("Session: %s\nTour: %s\nPlayer: %s\nCreated: %s\n\n%s",
		session.ID, session.ConfigName, session.PlayerName,
		session.CreatedAt.Format("2006-01-02 15:04:05"),
		formatSnapshot(&session.Snapshot))
}

func formatSnapshot(snap *engine.Snapshot) string {
	if snap == nil {
		return "No tour state available"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Progress: %.1f/%.1f | Speed: %.1f | Lap: %s\n",
		snap.Progress, snap.TotalLength, snap.Speed, snap.LapTime)

	var flags []string
	if snap.Paused {
		flags = append(flags, "PAUSED")
	}
	if snap.ModalOpen {
		flags = append(flags, "STOP OPEN: "+snap.ActiveStopID)
	}
	if snap.Finished {
		flags = append(flags, "AT FINISH")
	}
	if snap.TourCompleted {
		flags = append(flags, "TOUR COMPLETED")
	}
	if len(flags) > 0 {
		fmt.Fprintf(&b, "Status: %s\n", strings.Join(flags, ", "))
	}

	if len(snap.Stops) > 0 {
		fmt.Fprintf(&b, "Stops done: %d/%d", snap.StopsDone, len(snap.Stops))
		if snap.NextStopIn != nil {
			fmt.Fprintf(&b, " | Next stop %s in %.0f", snap.NextStopID, *snap.NextStopIn)
		}
		b.WriteString("\n")
		b.WriteString("\nStops:\n")
		for _, stop := range snap.Stops {
			mark := " "
			switch {
			case stop.Completed:
				mark = "✓"
			case stop.Active:
				mark = "▶"
			case stop.Locked:
				mark = "·"
			}
			fmt.Fprintf(&b, " %s %d. %s at %.0f (%s)\n", mark, stop.Index+1, stop.Name, stop.Distance, stop.Status)
		}
	}

	if snap.Message != "" {
		fmt.Fprintf(&b, "\nMessage: %s", snap.Message)
	}
	return b.String()
}

func formatDriveResult(result *service.DriveResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Executed %d/%d frames (%.1f → %.1f)\n",
		result.FramesExecuted, result.RequestedFrames, result.StartProgress, result.EndProgress)
	if result.Truncated {
		fmt.Fprintf(&b, "Request truncated to %d frames\n", result.Limit)
	}
	if result.StopReasonCode != "" {
		fmt.Fprintf(&b, "Stopped: %s (%s)\n", result.StopReasonCode, result.StoppedReason)
	}
	if result.Lap != nil {
		fmt.Fprintf(&b, "Lap: %s, placement %d\n", result.Lap.LapTime, result.Lap.Placement)
	}
	writeEvents(&b, result.Events)

	switch result.StopReasonCode {
	case service.StopReasonStopOpened, service.StopReasonStopOpen:
		b.WriteString("\nNext: call stop_view to see the stages.\n")
	}

	b.WriteString("\n")
	b.WriteString(formatSnapshot(&result.Snapshot))
	return b.String()
}

func formatCloseResult(result *service.CloseResult) string {
	var b strings.Builder
	if result.Closed {
		b.WriteString("✓ Stop closed\n")
	} else {
		fmt.Fprintf(&b, "✗ Stop not closed: %s\n", result.Message)
	}
	if result.Lap != nil {
		fmt.Fprintf(&b, "Lap: %s, placement %d\n", result.Lap.LapTime, result.Lap.Placement)
	}
	writeEvents(&b, result.Events)
	b.WriteString("\n")
	b.WriteString(formatSnapshot(&result.Snapshot))
	return b.String()
}

func formatStop(result *stopResponse) string {
	stop := result.Stop

	var b strings.Builder
	fmt.Fprintf(&b, "Stop %d: %s (%s)\n", stop.Index+1, stop.Name, stop.Progress)
	if stop.Content.Title != "" {
		fmt.Fprintf(&b, "%s\n", stop.Content.Title)
	}
	b.WriteString("\nStages:\n")
	for _, stage := range stop.Stages {
		mark := " "
		if stage.Active {
			mark = "▶"
		}
		fmt.Fprintf(&b, " %s %s [%s] %s\n", mark, stage.ID, stage.Status, stage.Title)
	}
	if stop.CanClose {
		fmt.Fprintf(&b, "\nAll stages done: close_stop (%s)\n", stop.CloseLabel)
	}

	if game := formatGame(result.Game); game != "" {
		b.WriteString("\n")
		b.WriteString(game)
	}
	writeEvents(&b, result.Events)
	return b.String()
}

// formatGame renders a mini-game view by its kind.
func formatGame(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var head struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return ""
	}

	var b strings.Builder
	switch head.Kind {
	case engine.KindQuiz:
		var v minigame.QuizView
		json.Unmarshal(raw, &v)
		fmt.Fprintf(&b, "Quiz: %s\n", v.Question)
		wrong := make(map[int]bool, len(v.Wrong))
		for _, i := range v.Wrong {
			wrong[i] = true
		}
		for i, option := range v.Options {
			mark := " "
			if wrong[i] {
				mark = "✗"
			}
			fmt.Fprintf(&b, " %s %d) %s\n", mark, i, option)
		}
		writeSolved(&b, v.Solved)
	case engine.KindMemory:
		var v minigame.MemoryView
		json.Unmarshal(raw, &v)
		b.WriteString("Memory:")
		for i, face := range v.Faces {
			switch {
			case v.Matched[i]:
				fmt.Fprintf(&b, " [%d:%s✓]", i, face)
			case face != "":
				fmt.Fprintf(&b, " [%d:%s]", i, face)
			default:
				fmt.Fprintf(&b, " [%d:?]", i)
			}
		}
		b.WriteString("\n")
		if v.Locked {
			b.WriteString("Board locked, wait a moment\n")
		}
		writeSolved(&b, v.Solved)
	case engine.KindSequence:
		var v minigame.SequenceView
		json.Unmarshal(raw, &v)
		b.WriteString("Sequence choices:\n")
		for i, choice := range v.Choices {
			mark := " "
			if v.Picked[i] {
				mark = "✓"
			}
			fmt.Fprintf(&b, " %s %d) %s\n", mark, i, choice)
		}
		fmt.Fprintf(&b, "Picked so far: %s\n", strings.Join(v.Selected, " → "))
		if v.Incorrect {
			b.WriteString("Incorrect order, use reset and try again\n")
		}
		writeSolved(&b, v.Solved)
	case engine.KindPuzzle:
		var v minigame.PuzzleView
		json.Unmarshal(raw, &v)
		fmt.Fprintf(&b, "Puzzle %dx%d\nTray: %v\nBoard:\n", v.Size, v.Size, v.Tray)
		for row := 0; row < v.Size; row++ {
			for col := 0; col < v.Size; col++ {
				slot := row*v.Size + col
				if slot < len(v.Board) && v.Board[slot] >= 0 {
					fmt.Fprintf(&b, " %2d", v.Board[slot])
				} else {
					b.WriteString("  .")
				}
			}
			b.WriteString("\n")
		}
		writeSolved(&b, v.Solved)
	default:
		fmt.Fprintf(&b, "Game (%s): %s\n", head.Kind, string(raw))
	}
	return b.String()
}

func writeSolved(b *strings.Builder, solved bool) {
	if solved {
		b.WriteString("✓ Solved\n")
	}
}

func writeEvents(b *strings.Builder, events []engine.Event) {
	if len(events) == 0 {
		return
	}
	b.WriteString("\nEvents:\n")
	for _, event := range events {
		line := string(event.Type)
		if event.StopID != "" {
			line += " " + event.StopID
		}
		if event.StageID != "" {
			line += "/" + event.StageID
		}
		if event.Message != "" {
			line += ": " + event.Message
		}
		fmt.Fprintf(b, "- %s\n", line)
	}
}

func formatHistory(history *service.HistoryResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Event History (Page %d/%d, Total: %d events)\n\n",
		history.Page, history.TotalPages, history.TotalEvents)
	for _, event := range history.Events {
		fmt.Fprintf(&b, "#%d [%s] %s", event.Number, engine.FormatLapTime(event.LapMS), event.Type)
		if event.StopID != "" {
			fmt.Fprintf(&b, " %s", event.StopID)
		}
		if event.StageID != "" {
			fmt.Fprintf(&b, "/%s", event.StageID)
		}
		fmt.Fprintf(&b, " at %.1f\n", event.Progress)
	}
	if history.HasNext {
		b.WriteString("\nMore events on the next page.\n")
	}
	return b.String()
}
