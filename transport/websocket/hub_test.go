package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wricardo/driving-tour/game/engine"
	"github.com/wricardo/driving-tour/game/service"
)

type mockLiveService struct {
	SetInputFunc  func(ctx context.Context, sessionID string, in engine.Input) error
	SetPausedFunc func(ctx context.Context, sessionID string, paused *bool) (*engine.Snapshot, error)
	StepFunc      func(ctx context.Context, sessionID string, dt float64) (*service.StepResult, error)
}

func (m *mockLiveService) SetInput(ctx context.Context, sessionID string, in engine.Input) error {
	if m.SetInputFunc != nil {
		return m.SetInputFunc(ctx, sessionID, in)
	}
	return nil
}

func (m *mockLiveService) SetPaused(ctx context.Context, sessionID string, paused *bool) (*engine.Snapshot, error) {
	if m.SetPausedFunc != nil {
		return m.SetPausedFunc(ctx, sessionID, paused)
	}
	return &engine.Snapshot{}, nil
}

func (m *mockLiveService) Step(ctx context.Context, sessionID string, dt float64) (*service.StepResult, error) {
	if m.StepFunc != nil {
		return m.StepFunc(ctx, sessionID, dt)
	}
	return &service.StepResult{}, nil
}

// movingService advances progress by one on every step.
func movingService() *mockLiveService {
	var mu sync.Mutex
	progress := 0.0
	return &mockLiveService{
		StepFunc: func(ctx context.Context, sessionID string, dt float64) (*service.StepResult, error) {
			mu.Lock()
			defer mu.Unlock()
			progress++
			return &service.StepResult{Snapshot: engine.Snapshot{Progress: progress}}, nil
		},
	}
}

func newTestClient(hub *Hub, sessionID string) *Client {
	return &Client{
		hub:       hub,
		sessionID: sessionID,
		send:      make(chan []byte, 256),
	}
}

func TestNewHub(t *testing.T) {
	hub := NewHub(nil)

	if hub == nil {
		t.Fatal("NewHub() returned nil")
	}
	if hub.log == nil {
		t.Error("Hub logger is nil")
	}
	if hub.sessions == nil || hub.runners == nil {
		t.Error("Hub maps are nil")
	}
	if hub.broadcast == nil || hub.register == nil || hub.unregister == nil {
		t.Error("Hub channels are nil")
	}
	if hub.live != nil {
		t.Error("Expected no live service by default")
	}

	hub = NewHub(nil, WithFrameInterval(5*time.Millisecond), WithFrameInterval(0))
	if hub.interval != 5*time.Millisecond {
		t.Errorf("Expected interval 5ms, got %v", hub.interval)
	}
}

func TestHubRegisterClient(t *testing.T) {
	hub := NewHub(nil)
	client := newTestClient(hub, "test-session")

	hub.registerClient(context.Background(), client)

	if !hub.sessions["test-session"][client] {
		t.Error("Client was not registered in session")
	}
	if hub.clientCount("test-session") != 1 {
		t.Errorf("Expected 1 client in session, got %d", hub.clientCount("test-session"))
	}
	if len(hub.runners) != 0 {
		t.Error("Expected no live loop without a live service")
	}
}

func TestHubUnregisterClient(t *testing.T) {
	hub := NewHub(nil)
	client := newTestClient(hub, "test-session")

	hub.registerClient(context.Background(), client)
	hub.unregisterClient(client)

	if _, exists := hub.sessions["test-session"]; exists {
		t.Error("Session should have been cleaned up after last client unregistered")
	}
	if _, ok := <-client.send; ok {
		t.Error("Expected send channel to be closed")
	}

	// A second unregister is a no-op
	hub.unregisterClient(client)
}

func TestHubMultipleClientsInSession(t *testing.T) {
	hub := NewHub(nil)
	sessionID := "multi-client-session"
	client1 := newTestClient(hub, sessionID)
	client2 := newTestClient(hub, sessionID)

	hub.registerClient(context.Background(), client1)
	hub.registerClient(context.Background(), client2)
	if hub.clientCount(sessionID) != 2 {
		t.Errorf("Expected 2 clients in session, got %d", hub.clientCount(sessionID))
	}

	hub.unregisterClient(client1)
	if hub.clientCount(sessionID) != 1 {
		t.Errorf("Expected 1 client remaining in session, got %d", hub.clientCount(sessionID))
	}
	if !hub.sessions[sessionID][client2] {
		t.Error("client2 should still be registered")
	}
}

func TestHubBroadcastMessage(t *testing.T) {
	hub := NewHub(nil)
	sessionID := "broadcast-test"
	client := newTestClient(hub, sessionID)
	other := newTestClient(hub, "other")
	hub.registerClient(context.Background(), client)
	hub.registerClient(context.Background(), other)

	hub.broadcastMessage(&Message{
		SessionID: sessionID,
		Event:     EventStateUpdate,
		Snapshot:  &engine.Snapshot{Progress: 42, ActiveStopID: "harbor"},
		Events:    []engine.Event{{Type: engine.EventStopOpened, StopID: "harbor"}},
	})

	select {
	case data := <-client.send:
		var message Message
		if err := json.Unmarshal(data, &message); err != nil {
			t.Fatalf("Failed to unmarshal message: %v", err)
		}
		if message.SessionID != sessionID {
			t.Errorf("Expected sessionID %s, got %s", sessionID, message.SessionID)
		}
		if message.Event != EventStateUpdate {
			t.Errorf("Expected event %q, got %q", EventStateUpdate, message.Event)
		}
		if message.Snapshot == nil || message.Snapshot.Progress != 42 || message.Snapshot.ActiveStopID != "harbor" {
			t.Errorf("Snapshot not correctly transmitted: %+v", message.Snapshot)
		}
		if len(message.Events) != 1 || message.Events[0].Type != engine.EventStopOpened {
			t.Errorf("Expected one stop_opened event, got %+v", message.Events)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("No message received within timeout")
	}

	select {
	case <-other.send:
		t.Error("Clients of other sessions should not receive the message")
	default:
	}
}

func TestHubBroadcastDropsSlowClient(t *testing.T) {
	hub := NewHub(nil)
	slow := &Client{hub: hub, sessionID: "slow", send: make(chan []byte)}
	hub.registerClient(context.Background(), slow)

	hub.broadcastMessage(&Message{SessionID: "slow", Event: EventStateUpdate})

	if hub.clientCount("slow") != 0 {
		t.Error("Expected a client with a full buffer to be unregistered")
	}
}

func TestHubBroadcastEvent(t *testing.T) {
	hub := NewHub(nil)

	hub.BroadcastEvent("event-test", "custom-event", "test-data")

	select {
	case message := <-hub.broadcast:
		if message.SessionID != "event-test" {
			t.Errorf("Expected sessionID 'event-test', got %s", message.SessionID)
		}
		if message.Event != "custom-event" {
			t.Errorf("Expected event 'custom-event', got %s", message.Event)
		}
		if message.Data != "test-data" {
			t.Errorf("Expected data 'test-data', got %v", message.Data)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("No broadcast message received within timeout")
	}
}

func TestHubPublishNeverBlocks(t *testing.T) {
	hub := NewHub(nil)
	done := make(chan struct{})

	go func() {
		for i := 0; i < cap(hub.broadcast)+10; i++ {
			hub.BroadcastToSession("full", &engine.Snapshot{})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Broadcasting to a full queue blocked")
	}
	if len(hub.broadcast) != cap(hub.broadcast) {
		t.Errorf("Expected a full queue, got %d of %d", len(hub.broadcast), cap(hub.broadcast))
	}
}

func TestHubLiveLoop(t *testing.T) {
	hub := NewHub(nil, WithLiveService(movingService()), WithFrameInterval(time.Millisecond))
	client := newTestClient(hub, "live")

	hub.registerClient(context.Background(), client)
	if _, ok := hub.runners["live"]; !ok {
		t.Fatal("Expected a live loop for the watched session")
	}

	var last float64
	for i := 0; i < 3; i++ {
		select {
		case message := <-hub.broadcast:
			if message.SessionID != "live" || message.Snapshot == nil {
				t.Fatalf("Expected a snapshot for session live, got %+v", message)
			}
			if message.Snapshot.Progress <= last {
				t.Errorf("Expected progress to grow past %v, got %v", last, message.Snapshot.Progress)
			}
			last = message.Snapshot.Progress
		case <-time.After(time.Second):
			t.Fatal("No frame broadcast within timeout")
		}
	}

	hub.unregisterClient(client)
	if len(hub.runners) != 0 {
		t.Error("Expected the live loop to stop with the last client")
	}
}

func TestHubLiveLoopSessionError(t *testing.T) {
	live := &mockLiveService{
		StepFunc: func(ctx context.Context, sessionID string, dt float64) (*service.StepResult, error) {
			return nil, service.ErrSessionNotFound
		},
	}
	hub := NewHub(nil, WithLiveService(live), WithFrameInterval(time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub.registerClient(ctx, newTestClient(hub, "gone"))

	select {
	case message := <-hub.broadcast:
		if message.Event != EventSessionError {
			t.Errorf("Expected event %q, got %q", EventSessionError, message.Event)
		}
	case <-time.After(time.Second):
		t.Fatal("No error broadcast within timeout")
	}

	select {
	case id := <-hub.stopped:
		if id != "gone" {
			t.Errorf("Expected stop request for 'gone', got %q", id)
		}
	case <-time.After(time.Second):
		t.Fatal("Expected the live loop to ask the hub to stop it")
	}
}

func TestHubHandleClientMessage(t *testing.T) {
	var gotInput engine.Input
	var gotPaused *bool
	pausedCalls := 0
	live := &mockLiveService{
		SetInputFunc: func(ctx context.Context, sessionID string, in engine.Input) error {
			gotInput = in
			return nil
		},
		SetPausedFunc: func(ctx context.Context, sessionID string, paused *bool) (*engine.Snapshot, error) {
			pausedCalls++
			gotPaused = paused
			return &engine.Snapshot{Paused: true}, nil
		},
	}
	hub := NewHub(nil, WithLiveService(live))

	hub.handleClientMessage("s1", []byte(`{"type":"input","accelerate":true}`))
	if !gotInput.Accelerate || gotInput.Brake {
		t.Errorf("Expected accelerate only, got %+v", gotInput)
	}

	hub.handleClientMessage("s1", []byte(`{"type":"pause"}`))
	if pausedCalls != 1 || gotPaused != nil {
		t.Errorf("Expected one toggle, got %d calls with %v", pausedCalls, gotPaused)
	}
	select {
	case message := <-hub.broadcast:
		if message.Snapshot == nil || !message.Snapshot.Paused {
			t.Error("Expected the paused snapshot to be broadcast")
		}
	default:
		t.Error("Expected a broadcast after pausing")
	}

	hub.handleClientMessage("s1", []byte(`{"type":"pause","paused":false}`))
	if gotPaused == nil || *gotPaused {
		t.Errorf("Expected explicit resume, got %v", gotPaused)
	}

	hub.handleClientMessage("s1", []byte(`not json`))
	hub.handleClientMessage("s1", []byte(`{"type":"honk"}`))
	if pausedCalls != 2 {
		t.Errorf("Expected ignored messages to do nothing, got %d pause calls", pausedCalls)
	}
}

func TestSnapshotChanged(t *testing.T) {
	base := engine.Snapshot{Progress: 10, LapTime: "0:01.2"}

	tests := []struct {
		name   string
		modify func(s *engine.Snapshot)
		want   bool
	}{
		{"identical", func(s *engine.Snapshot) {}, false},
		{"moved", func(s *engine.Snapshot) { s.Progress = 11 }, true},
		{"paused", func(s *engine.Snapshot) { s.Paused = true }, true},
		{"modal", func(s *engine.Snapshot) { s.ModalOpen = true }, true},
		{"lap time", func(s *engine.Snapshot) { s.LapTime = "0:01.3" }, true},
		{"recording", func(s *engine.Snapshot) { s.Recording.Enabled = true }, true},
		{"lap ms only", func(s *engine.Snapshot) { s.LapMS = 1234 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := base
			tt.modify(&next)
			if got := snapshotChanged(base, next); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestWebSocketRoundTrip(t *testing.T) {
	inputs := make(chan engine.Input, 1)
	live := movingService()
	live.SetInputFunc = func(ctx context.Context, sessionID string, in engine.Input) error {
		if sessionID != "ws-test" {
			return errors.New("wrong session")
		}
		inputs <- in
		return nil
	}

	hub := NewHub(nil, WithLiveService(live), WithFrameInterval(time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, r.URL.Query().Get("sessionId"))
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "?sessionId=ws-test"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(ClientMessage{Type: "input", Brake: true}); err != nil {
		t.Fatalf("Failed to send input: %v", err)
	}
	select {
	case in := <-inputs:
		if !in.Brake || in.Accelerate {
			t.Errorf("Expected brake only, got %+v", in)
		}
	case <-time.After(time.Second):
		t.Fatal("Input was not forwarded to the service")
	}

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var message Message
	if err := conn.ReadJSON(&message); err != nil {
		t.Fatalf("Failed to read WebSocket message: %v", err)
	}
	if message.SessionID != "ws-test" || message.Snapshot == nil {
		t.Errorf("Expected a snapshot for ws-test, got %+v", message)
	}
}
