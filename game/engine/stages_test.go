package engine

import (
	"errors"
	"testing"
	"time"
)

// openFirstStop drives to s1 and returns with its view open.
func openFirstStop(t *testing.T) (*TourEngine, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	e := newTestEngine(t, createTestTour(), clock)
	driveUntil(t, e, clock, func() bool { return e.GetState().ModalOpen })
	if e.GetState().ActiveStopID != "s1" {
		t.Fatalf("Expected s1 open, got %q", e.GetState().ActiveStopID)
	}
	return e, clock
}

func TestComputeStopDistances(t *testing.T) {
	three := []StopConfig{{ID: "a"}, {ID: "b"}, {ID: "c"}}

	t.Run("even spacing without hints", func(t *testing.T) {
		got := ComputeStopDistances(three, 1000, 1000, 40)
		want := map[string]float64{"a": 250, "b": 500, "c": 1000}
		for id, d := range want {
			if got[id] != d {
				t.Errorf("Expected %s at %v, got %v", id, d, got[id])
			}
		}
	})

	t.Run("clamped to edge margin", func(t *testing.T) {
		got := ComputeStopDistances(three, 100, 100, 40)
		if got["a"] != 40 {
			t.Errorf("Expected first stop clamped to 40, got %v", got["a"])
		}
		if got["b"] != 50 {
			t.Errorf("Expected second stop at 50, got %v", got["b"])
		}
		if got["c"] != 100 {
			t.Errorf("Expected last stop at finish, got %v", got["c"])
		}
	})

	t.Run("hints are ratios of the largest", func(t *testing.T) {
		stops := []StopConfig{{ID: "a", Distance: hint(10)}, {ID: "b", Distance: hint(40)}, {ID: "c"}}
		got := ComputeStopDistances(stops, 2000, 2000, 40)
		if got["a"] != 500 {
			t.Errorf("Expected a at 500, got %v", got["a"])
		}
		if got["b"] != 1960 {
			t.Errorf("Expected b clamped to 1960, got %v", got["b"])
		}
		if got["c"] != 2000 {
			t.Errorf("Expected c at finish, got %v", got["c"])
		}
	})

	t.Run("mixed hints fall back to index spacing", func(t *testing.T) {
		stops := []StopConfig{{ID: "a"}, {ID: "b", Distance: hint(100)}, {ID: "c"}}
		got := ComputeStopDistances(stops, 1000, 1000, 40)
		if got["a"] != 250 {
			t.Errorf("Expected a at 250, got %v", got["a"])
		}
		if got["b"] != 960 {
			t.Errorf("Expected b clamped to 960, got %v", got["b"])
		}
	})

	t.Run("zero length places nothing", func(t *testing.T) {
		if got := ComputeStopDistances(three, 0, 0, 40); len(got) != 0 {
			t.Errorf("Expected no placements, got %v", got)
		}
	})
}

func TestBuildStages(t *testing.T) {
	stop := &createTestTour().Stops[1]
	stages := BuildStages(stop, nil)

	wantIDs := []string{"content", "game:memory", "game:sequence"}
	if len(stages) != len(wantIDs) {
		t.Fatalf("Expected %d stages, got %d", len(wantIDs), len(stages))
	}
	for i, id := range wantIDs {
		if stages[i].ID != id {
			t.Errorf("Expected stage %d to be %s, got %s", i, id, stages[i].ID)
		}
	}
	if stages[0].Type != StageContent || stages[1].Type != StageGame {
		t.Error("Expected content stage first, then games")
	}
	if GameIDFromStage("game:memory") != "memory" || GameIDFromStage("content") != "" {
		t.Error("Unexpected GameIDFromStage result")
	}
}

func TestStopViewOpensWithContentActive(t *testing.T) {
	e, _ := openFirstStop(t)

	v, err := e.ActiveStopView()
	if err != nil {
		t.Fatalf("ActiveStopView failed: %v", err)
	}
	if v.ActiveStage != ContentStageID {
		t.Errorf("Expected content active, got %s", v.ActiveStage)
	}
	if !v.Stages[0].Unlocked || v.Stages[1].Unlocked {
		t.Error("Expected only the content stage unlocked")
	}
	if v.Stages[1].Status != "Bloqueado" {
		t.Errorf("Expected locked label, got %q", v.Stages[1].Status)
	}
	if v.CanClose {
		t.Error("Expected close to be unavailable")
	}
	if v.Progress != "Etapas concluidas 0/2" {
		t.Errorf("Expected progress label, got %q", v.Progress)
	}
}

func TestStageUnlockOrder(t *testing.T) {
	e, _ := openFirstStop(t)

	if e.CompleteStage("s1", "game:quiz") {
		t.Fatal("Expected locked game stage to be refused")
	}
	if e.IsStageCompleted("s1", BuildStages(&e.GetConfig().Stops[0], nil)[1]) {
		t.Fatal("Refused completion must not mark the game done")
	}
	if err := e.SelectStage("game:quiz"); !errors.Is(err, ErrStageLocked) {
		t.Errorf("Expected ErrStageLocked, got %v", err)
	}

	if !e.CompleteStage("s1", ContentStageID) {
		t.Fatal("Expected content stage to complete")
	}
	if e.GetState().ActiveStageID != "game:quiz" {
		t.Errorf("Expected active pointer to advance, got %s", e.GetState().ActiveStageID)
	}
	if e.CompleteStage("s1", ContentStageID) {
		t.Error("Expected second completion of the same stage to be refused")
	}
	if e.CompleteStage("s2", ContentStageID) {
		t.Error("Expected completion on a stop that is not open to be refused")
	}
}

func TestCloseRefusedUntilComplete(t *testing.T) {
	e, clock := openFirstStop(t)

	if e.CloseStop() {
		t.Fatal("Expected close to be refused")
	}
	if !e.GetState().ModalOpen {
		t.Fatal("Expected view to stay open after refused close")
	}

	e.CompleteStage("s1", ContentStageID)
	if e.CloseStop() {
		t.Fatal("Expected close refused with a game pending")
	}

	e.CompleteStage("s1", "game:quiz")
	if !e.CloseStop() {
		t.Fatal("Expected close once the stop is complete")
	}
	s := e.GetState()
	if s.ModalOpen || s.ActiveStopID != "" || s.ActiveStageID != "" {
		t.Errorf("Expected view cleared, got %+v", s)
	}
	if e.CloseStop() {
		t.Error("Expected close with nothing open to report false")
	}

	before := s.Progress
	clock.advance(50 * time.Millisecond)
	e.Tick(0.05, Input{Accelerate: true})
	if s.Progress <= before {
		t.Error("Expected driving to resume after close")
	}
}

func TestStopCompletedFiresOnce(t *testing.T) {
	e, _ := openFirstStop(t)
	completeStop(t, e, "s1")

	if got := countEvents(e, EventStopCompleted, "s1"); got != 1 {
		t.Fatalf("Expected one stop_completed event, got %d", got)
	}

	// Revisit the finished stop's content stage: still only one notification.
	if err := e.SelectStage(ContentStageID); err != nil {
		t.Fatalf("SelectStage failed: %v", err)
	}
	e.CompleteStage("s1", ContentStageID)
	if got := countEvents(e, EventStopCompleted, "s1"); got != 1 {
		t.Errorf("Expected still one stop_completed event, got %d", got)
	}
	if !e.GetState().CompletionShown["s1"] {
		t.Error("Expected completion recorded as shown")
	}
}

func TestResolveActiveStagePrefersUnlockedStored(t *testing.T) {
	e, _ := openFirstStop(t)
	completeStop(t, e, "s1")
	stop, _ := e.FindStop("s1")
	stages := BuildStages(stop, nil)

	// All done and nothing stored: the last stage.
	e.GetState().ActiveStageID = ""
	if got := e.ResolveActiveStage(stop, stages); got.ID != "game:quiz" {
		t.Errorf("Expected last stage when all done, got %s", got.ID)
	}

	if err := e.SelectStage(ContentStageID); err != nil {
		t.Fatalf("SelectStage failed: %v", err)
	}
	for i := 0; i < 2; i++ {
		if got := e.ResolveActiveStage(stop, stages); got.ID != ContentStageID {
			t.Errorf("Resolution %d: expected stored content stage, got %s", i, got.ID)
		}
	}

	e.GetState().ActiveStageID = "game:unknown"
	if got := e.ResolveActiveStage(stop, stages); got.ID != "game:quiz" {
		t.Errorf("Expected unknown stored id to be ignored, got %s", got.ID)
	}
	if e.GetState().ActiveStageID != "game:quiz" {
		t.Error("Expected resolution written back to the stored slot")
	}
}

func TestResolveActiveStageIgnoresLockedStored(t *testing.T) {
	e, _ := openFirstStop(t)
	stop, _ := e.FindStop("s1")
	stages := BuildStages(stop, nil)

	e.GetState().ActiveStageID = "game:quiz"
	if got := e.ResolveActiveStage(stop, stages); got.ID != ContentStageID {
		t.Errorf("Expected locked stored stage ignored, got %s", got.ID)
	}
}

func TestLockedStopIsSkipped(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(t, createTestTour(), clock)
	s := e.GetState()
	s.Progress = 480

	e.Tick(0.05, Input{})

	if s.ModalOpen {
		t.Fatalf("Expected locked stop not to open, got %s", s.ActiveStopID)
	}
	if s.Visited["s2"] || s.InRange["s2"] {
		t.Error("Expected locked stop not to be marked")
	}
	if e.IsStopUnlocked("s2") {
		t.Error("Expected s2 locked while s1 is incomplete")
	}
	if !e.IsStopUnlocked("s1") {
		t.Error("Expected the first stop to be unlocked")
	}
}

func TestAtMostOneStopPerTick(t *testing.T) {
	config := createTestTour()
	config.Stops[0].Distance = hint(500)
	config.Stops[1].Distance = hint(505)
	e := newTestEngine(t, config, newFakeClock())

	s := e.GetState()
	s.StopProgress["s1"] = &StopProgress{ContentDone: true, GamesDone: map[string]bool{"quiz": true}}
	s.Progress = 502

	e.Tick(0.05, Input{})

	if s.ActiveStopID != "s1" {
		t.Fatalf("Expected first stop in order to win, got %q", s.ActiveStopID)
	}
	if s.InRange["s2"] || s.Visited["s2"] {
		t.Error("Expected second stop untouched this tick")
	}

	if !e.CloseStop() {
		t.Fatal("Expected completed stop to close")
	}
	e.Tick(0.05, Input{})
	if s.ActiveStopID != "s2" {
		t.Errorf("Expected s2 to open on the next tick, got %q", s.ActiveStopID)
	}
}

func TestLeavingRadiusClearsInRange(t *testing.T) {
	e, clock := openFirstStop(t)
	completeStop(t, e, "s1")
	e.CloseStop()

	driveUntil(t, e, clock, func() bool { return e.GetState().Progress > 300 })
	if e.GetState().InRange["s1"] {
		t.Error("Expected in-range flag cleared after leaving the radius")
	}
	if !e.GetState().Visited["s1"] {
		t.Error("Expected visited flag to persist")
	}
}

func TestStopVisitOrderingNeverSkips(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(t, createTestTour(), clock)

	// Jump around the track without completing anything: only s1 may be visited.
	for _, p := range []float64{980, 500, 260, 700, 505, 990} {
		s := e.GetState()
		s.Progress = p
		s.ModalOpen = false
		s.ActiveStopID = ""
		clock.advance(10 * time.Millisecond)
		e.Tick(0.01, Input{})
		if s.Visited["s2"] || s.Visited["s3"] {
			t.Fatalf("Visited a locked stop at progress %v: %v", p, s.Visited)
		}
	}
	if !e.GetState().Visited["s1"] {
		t.Error("Expected s1 visited")
	}
}
