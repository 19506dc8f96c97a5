package engine

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/wricardo/driving-tour/game/geometry"
)

type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func hint(v float64) *float64 { return &v }

// createTestTour is a 1000 unit straight line with three stops at 250, 500
// and the finish.
func createTestTour() *TourConfig {
	return &TourConfig{
		Name:        "Test Tour",
		Description: "Straight line with three stops",
		Physics:     PhysicsConfig{MaxFrameDelta: 0.1},
		Track: TrackConfig{
			ViewportWidth:  1000,
			ViewportHeight: 1000,
			ControlPoints:  []geometry.ControlPoint{{X: 0, Y: 0.5}, {X: 1, Y: 0.5}},
		},
		Stops: []StopConfig{
			{
				ID: "s1", Name: "First", Distance: hint(250),
				Content: ContentConfig{Title: "Intro"},
				Games:   []GameConfig{{ID: "quiz", Kind: KindQuiz, Title: "Quiz"}},
			},
			{
				ID: "s2", Name: "Second", Distance: hint(500),
				Games: []GameConfig{{ID: "memory", Kind: KindMemory}, {ID: "sequence", Kind: KindSequence}},
			},
			{ID: "s3", Name: "Last", Distance: hint(1000)},
		},
		Messages: Messages{Welcome: "Go!", Victory: "All done"},
	}
}

func newTestEngine(t *testing.T, config *TourConfig, clock *fakeClock) *TourEngine {
	t.Helper()
	e, err := NewEngine(config, WithClock(clock.now))
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	return e
}

// driveUntil holds the accelerator until cond holds.
func driveUntil(t *testing.T, e *TourEngine, clock *fakeClock, cond func() bool) {
	t.Helper()
	for i := 0; i < 20000; i++ {
		if cond() {
			return
		}
		clock.advance(50 * time.Millisecond)
		e.Tick(0.05, Input{Accelerate: true})
	}
	t.Fatal("Condition not reached while driving")
}

func completeStop(t *testing.T, e *TourEngine, stopID string) {
	t.Helper()
	stop, ok := e.FindStop(stopID)
	if !ok {
		t.Fatalf("Stop %s not found", stopID)
	}
	for _, st := range BuildStages(stop, nil) {
		if !e.CompleteStage(stopID, st.ID) {
			t.Fatalf("Expected to complete stage %s of %s", st.ID, stopID)
		}
	}
}

func countEvents(e *TourEngine, typ EventType, stopID string) int {
	n := 0
	for _, ev := range e.GetHistory() {
		if ev.Type == typ && (stopID == "" || ev.StopID == stopID) {
			n++
		}
	}
	return n
}

func TestNewEngine(t *testing.T) {
	e := newTestEngine(t, createTestTour(), newFakeClock())

	if e.Path().TotalLength != 1000 {
		t.Errorf("Expected path length 1000, got %v", e.Path().TotalLength)
	}
	if e.GetState().Message != "Go!" {
		t.Errorf("Expected welcome message, got %q", e.GetState().Message)
	}
	if e.GetConfig().Physics.MaxSpeed != DefaultMaxSpeed {
		t.Errorf("Expected default max speed, got %v", e.GetConfig().Physics.MaxSpeed)
	}

	want := map[string]float64{"s1": 250, "s2": 500, "s3": 1000}
	for id, d := range want {
		got, ok := e.StopDistance(id)
		if !ok || got != d {
			t.Errorf("Expected stop %s at %v, got %v (placed=%v)", id, d, got, ok)
		}
	}
}

func TestNewEngineRejectsInvalidConfig(t *testing.T) {
	config := createTestTour()
	config.Name = ""
	if _, err := NewEngine(config); err == nil {
		t.Error("Expected error for missing name")
	}
	if _, err := NewEngine(nil); err == nil {
		t.Error("Expected error for nil config")
	}
}

func TestNewEngineDoesNotMutateConfig(t *testing.T) {
	config := createTestTour()
	newTestEngine(t, config, newFakeClock())
	if config.Physics.MaxSpeed != 0 {
		t.Errorf("Expected caller config untouched, got max speed %v", config.Physics.MaxSpeed)
	}
}

func TestFullTourCompletes(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(t, createTestTour(), clock)

	for _, id := range []string{"s1", "s2", "s3"} {
		driveUntil(t, e, clock, func() bool { return e.GetState().ModalOpen })
		if got := e.GetState().ActiveStopID; got != id {
			t.Fatalf("Expected stop %s to open, got %s", id, got)
		}
		completeStop(t, e, id)
		if !e.CloseStop() {
			t.Fatalf("Expected stop %s to close", id)
		}
	}

	driveUntil(t, e, clock, e.IsTourCompleted)

	s := e.GetState()
	if !s.Finished || s.Progress != e.FinishDistance() || s.Speed != 0 {
		t.Errorf("Expected finished at %v with zero speed, got progress=%v speed=%v", e.FinishDistance(), s.Progress, s.Speed)
	}
	if countEvents(e, EventTourCompleted, "") != 1 {
		t.Errorf("Expected exactly one tour_completed event, got %d", countEvents(e, EventTourCompleted, ""))
	}
	if len(s.StopTimes) != 3 {
		t.Errorf("Expected visit times for all stops, got %v", s.StopTimes)
	}
	if s.StopTimes["s1"] <= 0 || s.StopTimes["s2"] <= s.StopTimes["s1"] {
		t.Errorf("Expected increasing visit times, got %v", s.StopTimes)
	}
}

func TestResetClearsRun(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(t, createTestTour(), clock)
	before := append([]geometry.Point{}, e.Path().Points...)

	driveUntil(t, e, clock, func() bool { return e.GetState().ModalOpen })
	e.CompleteStage("s1", ContentStageID)
	historyLen := len(e.GetHistory())

	s := e.Reset()

	if s.Progress != 0 || s.Speed != 0 || s.Throttle != 0 || s.Finished || s.Paused || s.ModalOpen {
		t.Errorf("Expected cleared run, got %+v", s)
	}
	if len(s.Visited) != 0 || len(s.StopProgress) != 0 || len(s.InRange) != 0 || len(s.StopTimes) != 0 {
		t.Error("Expected visited, progress, in-range and times to be cleared")
	}
	if s.ActiveStopID != "" || s.ActiveStageID != "" || s.LapStarted {
		t.Error("Expected active ids and lap timer cleared")
	}
	if len(e.GetHistory()) != historyLen+1 {
		t.Errorf("Expected history to survive reset plus one entry, got %d want %d", len(e.GetHistory()), historyLen+1)
	}
	if s.Resets != 1 {
		t.Errorf("Expected reset count 1, got %d", s.Resets)
	}
	if s.CurrentEventsCount != 1 {
		t.Errorf("Expected current events to restart, got %d", s.CurrentEventsCount)
	}

	after := e.Path().Points
	if len(after) != len(before) {
		t.Fatalf("Expected identical rebuild, got %d points want %d", len(after), len(before))
	}
	for i := range after {
		if after[i] != before[i] {
			t.Errorf("Point %d differs after reset: %+v vs %+v", i, after[i], before[i])
		}
	}
}

func TestPauseToggle(t *testing.T) {
	e := newTestEngine(t, createTestTour(), newFakeClock())

	if !e.TogglePause() {
		t.Fatal("Expected paused after toggle")
	}
	e.Tick(0.05, Input{Accelerate: true})
	if e.GetState().Progress != 0 {
		t.Error("Expected no progress while paused")
	}
	if e.TogglePause() {
		t.Fatal("Expected resumed after second toggle")
	}
	if countEvents(e, EventPaused, "") != 1 || countEvents(e, EventResumed, "") != 1 {
		t.Error("Expected one paused and one resumed event")
	}
}

func TestResizeRebuildsPath(t *testing.T) {
	e := newTestEngine(t, createTestTour(), newFakeClock())

	if e.Resize(0, 100) {
		t.Error("Expected non-positive size to be ignored")
	}
	if !e.Resize(500, 500) {
		t.Fatal("Expected resize to succeed")
	}
	if e.Path().TotalLength != 500 {
		t.Errorf("Expected length 500 after resize, got %v", e.Path().TotalLength)
	}
	if d, _ := e.StopDistance("s3"); d != 500 {
		t.Errorf("Expected last stop at new finish, got %v", d)
	}
}

func TestSetStateRoundTrip(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(t, createTestTour(), clock)
	driveUntil(t, e, clock, func() bool { return e.GetState().ModalOpen })
	e.CompleteStage("s1", ContentStageID)

	data, err := json.Marshal(e.GetState())
	if err != nil {
		t.Fatalf("Failed to marshal state: %v", err)
	}
	var restored RunState
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("Failed to unmarshal state: %v", err)
	}

	other := newTestEngine(t, createTestTour(), clock)
	if err := other.SetState(&restored); err != nil {
		t.Fatalf("SetState failed: %v", err)
	}
	if other.GetState().ActiveStopID != "s1" {
		t.Errorf("Expected open stop s1, got %q", other.GetState().ActiveStopID)
	}
	if !other.IsStageUnlocked("s1", BuildStages(&other.GetConfig().Stops[0], nil), 1) {
		t.Error("Expected quiz stage unlocked after restore")
	}
	if math.Abs(other.Path().TotalLength-1000) > 1e-9 {
		t.Errorf("Expected rebuilt path, got length %v", other.Path().TotalLength)
	}
	if err := other.SetState(nil); err == nil {
		t.Error("Expected error for nil state")
	}
}

func TestFormatLapTime(t *testing.T) {
	tests := []struct {
		ms   int64
		want string
	}{
		{0, "00:00.0"},
		{-500, "00:00.0"},
		{1234, "00:01.2"},
		{59999, "00:59.9"},
		{61500, "01:01.5"},
		{3600000, "60:00.0"},
	}
	for _, tt := range tests {
		if got := FormatLapTime(tt.ms); got != tt.want {
			t.Errorf("FormatLapTime(%d) = %q, want %q", tt.ms, got, tt.want)
		}
	}
}

func TestFinishedEventCarriesFinalLap(t *testing.T) {
	clock := newFakeClock()
	config := createTestTour()
	config.Stops = nil
	e := newTestEngine(t, config, clock)

	driveUntil(t, e, clock, func() bool { return e.GetState().Finished })

	var finished *Event
	for _, ev := range e.GetHistory() {
		if ev.Type == EventFinished {
			finished = &ev
		}
	}
	if finished == nil {
		t.Fatal("Expected a finished event")
	}
	if finished.LapMS != e.GetState().LapElapsedMS {
		t.Errorf("Expected finished event lap %d, got %d", e.GetState().LapElapsedMS, finished.LapMS)
	}
}

func TestSnapshotNextStop(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(t, createTestTour(), clock)

	snap := e.Snapshot()
	if snap.StopsDone != 0 || snap.NextStopID != "s1" {
		t.Fatalf("Expected s1 next with none done, got %d done, next %q", snap.StopsDone, snap.NextStopID)
	}
	if snap.NextStopIn == nil || math.Abs(*snap.NextStopIn-250) > 1e-9 {
		t.Fatalf("Expected s1 250 ahead, got %v", snap.NextStopIn)
	}

	driveUntil(t, e, clock, func() bool { return e.GetState().ModalOpen })
	completeStop(t, e, "s1")

	snap = e.Snapshot()
	if snap.StopsDone != 1 || snap.NextStopID != "s2" {
		t.Errorf("Expected s2 next with one done, got %d done, next %q", snap.StopsDone, snap.NextStopID)
	}
	if d, ok := e.DistanceToNextStop(); !ok || snap.NextStopIn == nil || *snap.NextStopIn != d {
		t.Errorf("Expected next stop distance %v, got %v", d, snap.NextStopIn)
	}
	if want := 500 - e.GetState().Progress; math.Abs(*snap.NextStopIn-want) > 1e-9 {
		t.Errorf("Expected s2 %v ahead, got %v", want, *snap.NextStopIn)
	}
}

func TestSnapshotAllStopsDone(t *testing.T) {
	clock := newFakeClock()
	config := createTestTour()
	config.Stops = config.Stops[2:]
	config.Stops[0].Games = nil
	e := newTestEngine(t, config, clock)
	e.GetState().StopProgress["s3"] = &StopProgress{ContentDone: true}

	snap := e.Snapshot()
	if e.CountCompletedStops() != 1 || snap.StopsDone != 1 {
		t.Errorf("Expected one stop done, got %d", snap.StopsDone)
	}
	if _, ok := e.NextStop(); ok || snap.NextStopID != "" || snap.NextStopIn != nil {
		t.Errorf("Expected no next stop, got %q", snap.NextStopID)
	}
}

func TestReadsDoNotCreateProgress(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(t, createTestTour(), clock)
	if err := e.SetState(InitRunState(e.GetConfig())); err != nil {
		t.Fatalf("SetState failed: %v", err)
	}

	_ = e.Snapshot()
	for _, stop := range e.GetConfig().Stops {
		if _, err := e.StopView(stop.ID); err != nil {
			t.Fatalf("StopView(%s) failed: %v", stop.ID, err)
		}
	}
	e.AllStopsCompleted()

	if n := len(e.GetState().StopProgress); n != 0 {
		t.Errorf("Expected reads to leave progress untouched, got %d entries", n)
	}
}
