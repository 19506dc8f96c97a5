package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wricardo/driving-tour/game/geometry"
)

// ValidateTourConfig checks ids, ordering data and value ranges. It does not
// validate kind-specific mini-game parameters; unknown kinds are the
// adapter layer's concern.
func ValidateTourConfig(config *TourConfig) error {
	if config == nil {
		return fmt.Errorf("config validation: config is nil")
	}
	if config.Name == "" {
		return fmt.Errorf("config validation: name is required")
	}

	p := config.Physics
	for name, v := range map[string]float64{
		"max_speed":        p.MaxSpeed,
		"accel":            p.Accel,
		"throttle_rise":    p.ThrottleRise,
		"throttle_fall":    p.ThrottleFall,
		"friction":         p.Friction,
		"stop_radius":      p.StopRadius,
		"stop_edge_margin": p.StopEdgeMargin,
		"max_frame_delta":  p.MaxFrameDelta,
	} {
		if v < 0 {
			return fmt.Errorf("config validation: physics.%s must not be negative, got %v", name, v)
		}
	}
	if p.Friction > 1 {
		return fmt.Errorf("config validation: physics.friction must be at most 1, got %v", p.Friction)
	}

	t := config.Track
	if t.Margin < 0 {
		return fmt.Errorf("config validation: track.margin must not be negative, got %v", t.Margin)
	}
	if t.RecordSpacing < 0 {
		return fmt.Errorf("config validation: track.record_spacing must not be negative, got %v", t.RecordSpacing)
	}
	switch t.Background.Fit {
	case "", geometry.FitContain, geometry.FitCover:
	default:
		return fmt.Errorf("config validation: track.background.fit must be %q or %q, got %q",
			geometry.FitContain, geometry.FitCover, t.Background.Fit)
	}
	for i, cp := range t.ControlPoints {
		if !cp.Valid() {
			return fmt.Errorf("config validation: control point %d (%v, %v) is outside [0,1]", i+1, cp.X, cp.Y)
		}
	}

	seenStops := make(map[string]bool, len(config.Stops))
	for i, stop := range config.Stops {
		if stop.ID == "" {
			return fmt.Errorf("config validation: stop %d has no id", i+1)
		}
		if seenStops[stop.ID] {
			return fmt.Errorf("config validation: duplicate stop id '%s'", stop.ID)
		}
		seenStops[stop.ID] = true

		if stop.Distance != nil && *stop.Distance <= 0 {
			return fmt.Errorf("config validation: stop '%s' distance must be positive, got %v", stop.ID, *stop.Distance)
		}

		seenGames := make(map[string]bool, len(stop.Games))
		for j, game := range stop.Games {
			if game.ID == "" {
				return fmt.Errorf("config validation: game %d of stop '%s' has no id", j+1, stop.ID)
			}
			if seenGames[game.ID] {
				return fmt.Errorf("config validation: duplicate game id '%s' in stop '%s'", game.ID, stop.ID)
			}
			seenGames[game.ID] = true
		}
	}

	return nil
}

// withDefaults returns a copy of config with zero tuning values replaced.
func withDefaults(config *TourConfig) *TourConfig {
	c := *config
	p := &c.Physics
	if p.MaxSpeed == 0 {
		p.MaxSpeed = DefaultMaxSpeed
	}
	if p.Accel == 0 {
		p.Accel = DefaultAccel
	}
	if p.ThrottleRise == 0 {
		p.ThrottleRise = DefaultThrottleRise
	}
	if p.ThrottleFall == 0 {
		p.ThrottleFall = DefaultThrottleFall
	}
	if p.Friction == 0 {
		p.Friction = DefaultFriction
	}
	if p.StopRadius == 0 {
		p.StopRadius = DefaultStopRadius
	}
	if p.StopEdgeMargin == 0 {
		p.StopEdgeMargin = DefaultStopEdgeMargin
	}
	if p.MaxFrameDelta == 0 {
		p.MaxFrameDelta = DefaultMaxFrameDelta
	}

	t := &c.Track
	if t.RecordSpacing == 0 {
		t.RecordSpacing = DefaultRecordSpacing
	}
	if t.ViewportWidth <= 0 {
		t.ViewportWidth = DefaultViewportWidth
	}
	if t.ViewportHeight <= 0 {
		t.ViewportHeight = DefaultViewportHeight
	}
	if t.Background.Fit == "" {
		t.Background.Fit = geometry.FitContain
	}
	return &c
}

// LoadTourConfig loads and validates a tour from a JSON file.
func LoadTourConfig(filename string) (*TourConfig, error) {
	configPath := filename
	if configDir := os.Getenv("CONFIG_DIR"); configDir != "" {
		if strings.HasPrefix(filename, "configs/") {
			configPath = filepath.Join(configDir, strings.TrimPrefix(filename, "configs/"))
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	var config TourConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse tour '%s': %w", filename, err)
	}

	if err := ValidateTourConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// InitRunState creates a fresh run for config. A nil config yields a run
// with no stops and no path.
func InitRunState(config *TourConfig) *RunState {
	s := &RunState{
		Visited:         make(map[string]bool),
		InRange:         make(map[string]bool),
		StopTimes:       make(map[string]int64),
		StopProgress:    make(map[string]*StopProgress),
		CompletionShown: make(map[string]bool),
		ControlPoints:   []geometry.ControlPoint{},
		ViewportWidth:   DefaultViewportWidth,
		ViewportHeight:  DefaultViewportHeight,
		Recording:       RecordingState{Points: []geometry.ControlPoint{}},
		History:         []Event{},
	}
	if config == nil {
		return s
	}

	s.ConfigName = config.Name
	s.Message = config.Messages.Welcome
	s.ControlPoints = append(s.ControlPoints, config.Track.ControlPoints...)
	if config.Track.ViewportWidth > 0 {
		s.ViewportWidth = config.Track.ViewportWidth
	}
	if config.Track.ViewportHeight > 0 {
		s.ViewportHeight = config.Track.ViewportHeight
	}
	return s
}
