// Command analyze prints quick, human-readable heuristics about the tours in
// the project's configs directory: track length, where each stop lands,
// stops whose trigger zones overlap and a lower bound on the lap time. The
// last stop always sits on the finish line.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/wricardo/driving-tour/game/engine"
)

// Analysis summarizes one tour.
type Analysis struct {
	Name        string
	TotalLength float64
	MaxSpeed    float64
	StopRadius  float64
	Stops       []StopSpot
	Games       int
	Warnings    []string
}

// StopSpot is where a stop lands on the track.
type StopSpot struct {
	ID       string
	Distance float64
	Games    int
}

// MinLapSeconds is the lap time at constant top speed, ignoring stops.
func (a Analysis) MinLapSeconds() float64 {
	if a.MaxSpeed <= 0 {
		return 0
	}
	return a.TotalLength / a.MaxSpeed
}

func main() {
	dir := "configs"
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil || len(files) == 0 {
		fmt.Printf("No tours found in %s\n", dir)
		os.Exit(1)
	}
	sort.Strings(files)

	for _, file := range files {
		fmt.Printf("\n=== Analyzing %s ===\n", filepath.Base(file))
		config, err := engine.LoadTourConfig(file)
		if err != nil {
			fmt.Printf("Error loading tour: %v\n", err)
			continue
		}
		a, err := analyzeTour(config)
		if err != nil {
			fmt.Printf("Error building tour: %v\n", err)
			continue
		}
		printAnalysis(a)
	}
}

// analyzeTour builds the tour and measures it.
func analyzeTour(config *engine.TourConfig) (Analysis, error) {
	e, err := engine.NewEngine(config)
	if err != nil {
		return Analysis{}, err
	}
	snap := e.Snapshot()

	a := Analysis{
		Name:        config.Name,
		TotalLength: snap.TotalLength,
		MaxSpeed:    orDefault(config.Physics.MaxSpeed, engine.DefaultMaxSpeed),
		StopRadius:  orDefault(config.Physics.StopRadius, engine.DefaultStopRadius),
	}

	for i, marker := range snap.Stops {
		games := len(config.Stops[i].Games)
		a.Games += games
		if !marker.Placed {
			a.Warnings = append(a.Warnings, fmt.Sprintf("stop '%s' is not on the track", marker.ID))
			continue
		}
		a.Stops = append(a.Stops, StopSpot{ID: marker.ID, Distance: marker.Distance, Games: games})
	}

	for i := 1; i < len(a.Stops); i++ {
		prev, cur := a.Stops[i-1], a.Stops[i]
		if gap := cur.Distance - prev.Distance; gap < 2*a.StopRadius {
			a.Warnings = append(a.Warnings, fmt.Sprintf("stops '%s' and '%s' are %.0f apart, their zones overlap (radius %.0f)",
				prev.ID, cur.ID, gap, a.StopRadius))
		}
	}
	if len(a.Stops) > 0 && a.Stops[0].Distance <= a.StopRadius {
		a.Warnings = append(a.Warnings, fmt.Sprintf("stop '%s' opens as soon as the car moves", a.Stops[0].ID))
	}
	if a.TotalLength == 0 {
		a.Warnings = append(a.Warnings, "track has zero length")
	}

	return a, nil
}

func printAnalysis(a Analysis) {
	fmt.Printf("Name: %s\n", a.Name)
	fmt.Printf("Track Length: %.0f\n", a.TotalLength)
	fmt.Printf("Max Speed: %.0f (fastest lap %.1fs without stops)\n", a.MaxSpeed, a.MinLapSeconds())
	fmt.Printf("Stops: %d, Mini-games: %d\n", len(a.Stops), a.Games)
	for _, s := range a.Stops {
		pct := 0.0
		if a.TotalLength > 0 {
			pct = 100 * s.Distance / a.TotalLength
		}
		fmt.Printf("   %-16s at %6.0f (%3.0f%%), %d games\n", s.ID, s.Distance, pct, s.Games)
	}

	if len(a.Warnings) == 0 {
		fmt.Printf("✅ Every stop has its own trigger zone\n")
		return
	}
	for _, w := range a.Warnings {
		fmt.Printf("⚠️  WARNING: %s\n", w)
	}
}

func orDefault(v, fallback float64) float64 {
	if v == 0 {
		return fallback
	}
	return v
}
