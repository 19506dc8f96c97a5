package main

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wricardo/driving-tour/game/engine"
	"github.com/wricardo/driving-tour/game/geometry"
)

func straightTour(stops ...engine.StopConfig) *engine.TourConfig {
	return &engine.TourConfig{
		Name: "Straight",
		Track: engine.TrackConfig{
			ControlPoints: []geometry.ControlPoint{{X: 0, Y: 0.5}, {X: 1, Y: 0.5}},
		},
		Stops: stops,
	}
}

func hint(v float64) *float64 { return &v }

func TestAnalyzeTour_EvenStops(t *testing.T) {
	a, err := analyzeTour(straightTour(
		engine.StopConfig{ID: "a", Games: []engine.GameConfig{{ID: "q", Kind: engine.KindQuiz}}},
		engine.StopConfig{ID: "b"},
	))
	if err != nil {
		t.Fatalf("analyzeTour failed: %v", err)
	}

	if a.TotalLength <= 0 {
		t.Fatalf("Expected positive track length, got %v", a.TotalLength)
	}
	if len(a.Stops) != 2 {
		t.Fatalf("Expected 2 placed stops, got %d", len(a.Stops))
	}
	if a.Games != 1 {
		t.Errorf("Expected 1 game, got %d", a.Games)
	}
	if a.Stops[0].Distance >= a.Stops[1].Distance {
		t.Errorf("Expected stops in track order, got %v then %v", a.Stops[0].Distance, a.Stops[1].Distance)
	}
	if len(a.Warnings) != 0 {
		t.Errorf("Expected no warnings, got %v", a.Warnings)
	}
	if a.MaxSpeed != engine.DefaultMaxSpeed {
		t.Errorf("Expected default max speed, got %v", a.MaxSpeed)
	}
	if want := a.TotalLength / engine.DefaultMaxSpeed; math.Abs(a.MinLapSeconds()-want) > 1e-9 {
		t.Errorf("Expected min lap %v, got %v", want, a.MinLapSeconds())
	}
}

func TestAnalyzeTour_OverlappingStops(t *testing.T) {
	a, err := analyzeTour(straightTour(
		engine.StopConfig{ID: "a", Distance: hint(50)},
		engine.StopConfig{ID: "b", Distance: hint(51)},
		engine.StopConfig{ID: "c", Distance: hint(100)},
	))
	if err != nil {
		t.Fatalf("analyzeTour failed: %v", err)
	}

	if !strings.Contains(strings.Join(a.Warnings, "\n"), "'a' and 'b'") {
		t.Errorf("Expected overlap warning for a and b, got %v", a.Warnings)
	}
}

func TestAnalyzeTour_Invalid(t *testing.T) {
	if _, err := analyzeTour(&engine.TourConfig{}); err == nil {
		t.Error("Expected error for a tour without a name")
	}
}

func TestShippedTours(t *testing.T) {
	dir := filepath.Join("..", "..", "configs")
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		t.Skip("Skipping test - configs directory not found")
	}

	files, _ := filepath.Glob(filepath.Join(dir, "*.json"))
	for _, file := range files {
		config, err := engine.LoadTourConfig(file)
		if err != nil {
			t.Errorf("Failed to load %s: %v", file, err)
			continue
		}
		a, err := analyzeTour(config)
		if err != nil {
			t.Errorf("Failed to analyze %s: %v", file, err)
			continue
		}
		if len(a.Stops) != len(config.Stops) {
			t.Errorf("%s: expected every stop placed, got %d of %d", file, len(a.Stops), len(config.Stops))
		}
	}
}

func TestOrDefault(t *testing.T) {
	tests := []struct {
		v, fallback, expected float64
	}{
		{0, 5, 5},
		{3, 5, 3},
		{-1, 5, -1},
	}

	for _, test := range tests {
		if got := orDefault(test.v, test.fallback); got != test.expected {
			t.Errorf("orDefault(%v, %v) = %v, expected %v", test.v, test.fallback, got, test.expected)
		}
	}
}
