package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/samber/lo"

	"github.com/wricardo/driving-tour/game/engine"
	"github.com/wricardo/driving-tour/game/minigame"
)

// ValidationResult captures the outcome of validating a single file.
// Errors make a tour invalid; Info describes a valid one.
type ValidationResult struct {
	File   string
	Valid  bool
	Errors []string
	Info   []string
}

func (r *ValidationResult) fail(format string, args ...any) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// tourFiles lists the JSON tours in dir.
func tourFiles(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no tour files in %s", dir)
	}
	sort.Strings(files)
	return files, nil
}

// ValidateFiles validates every file.
func ValidateFiles(files []string) []ValidationResult {
	return lo.Map(files, func(f string, _ int) ValidationResult { return validateTour(f) })
}

// validateTour checks that a tour file parses strictly, passes the engine's
// validation, builds a drivable path and deals every mini-game.
func validateTour(path string) ValidationResult {
	result := ValidationResult{File: filepath.Base(path), Valid: true}

	data, err := os.ReadFile(path)
	if err != nil {
		result.fail("Failed to read file: %v", err)
		return result
	}

	var config engine.TourConfig
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&config); err != nil {
		result.fail("Invalid JSON: %v", err)
		return result
	}

	if err := engine.ValidateTourConfig(&config); err != nil {
		result.fail("%v", err)
		return result
	}

	if len(config.Track.ControlPoints) < 2 {
		result.fail("Track needs at least 2 control points, got %d", len(config.Track.ControlPoints))
	}

	games := 0
	for _, stop := range config.Stops {
		for _, game := range stop.Games {
			games++
			if _, err := minigame.New(game, minigame.Options{}); err != nil {
				result.fail("Stop '%s' game '%s': %v", stop.ID, game.ID, err)
				continue
			}
			switch game.Kind {
			case engine.KindQuiz:
				if game.CorrectIndex < 0 || game.CorrectIndex >= len(game.Options) {
					result.fail("Stop '%s' quiz '%s': correct_index %d out of %d options", stop.ID, game.ID, game.CorrectIndex, len(game.Options))
				}
			case engine.KindSequence:
				if len(game.Steps) < 2 {
					result.fail("Stop '%s' sequence '%s' needs at least 2 steps", stop.ID, game.ID)
				}
			}
		}
	}
	if !result.Valid {
		return result
	}

	e, err := engine.NewEngine(&config)
	if err != nil {
		result.fail("Failed to build tour: %v", err)
		return result
	}
	snap := e.Snapshot()
	if snap.TotalLength <= 0 {
		result.fail("Track has zero length")
	}
	for _, stop := range snap.Stops {
		if !stop.Placed {
			result.fail("Stop '%s' could not be placed on the track", stop.ID)
		}
	}

	if result.Valid {
		result.Info = append(result.Info,
			fmt.Sprintf("✓ Name: %s", config.Name),
			fmt.Sprintf("✓ Track: %d control points, length %.0f", len(config.Track.ControlPoints), snap.TotalLength),
			fmt.Sprintf("✓ Stops: %d", len(config.Stops)),
			fmt.Sprintf("✓ Mini-games: %d", games),
		)
	}
	return result
}

// PrintResults writes one block per file.
func PrintResults(w io.Writer, results []ValidationResult) {
	for _, r := range results {
		if r.Valid {
			fmt.Fprintf(w, "✅ %s\n", r.File)
			for _, line := range r.Info {
				fmt.Fprintf(w, "   %s\n", line)
			}
			continue
		}
		fmt.Fprintf(w, "❌ %s\n", r.File)
		for _, line := range r.Errors {
			fmt.Fprintf(w, "   - %s\n", line)
		}
	}
}

func countInvalid(results []ValidationResult) int {
	return lo.CountBy(results, func(r ValidationResult) bool { return !r.Valid })
}
