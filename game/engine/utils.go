package engine

import "fmt"

// FormatLapTime renders milliseconds as mm:ss.t. Negative values print as zero.
func FormatLapTime(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	minutes := ms / 60000
	seconds := (ms / 1000) % 60
	tenths := (ms / 100) % 10
	return fmt.Sprintf("%02d:%02d.%d", minutes, seconds, tenths)
}

// CountCompletedStops returns how many stops are fully completed.
func (e *TourEngine) CountCompletedStops() int {
	n := 0
	for i := range e.config.Stops {
		if e.IsStopCompleted(e.config.Stops[i].ID) {
			n++
		}
	}
	return n
}

// NextStop returns the first stop that is not completed yet.
func (e *TourEngine) NextStop() (*StopConfig, bool) {
	for i := range e.config.Stops {
		if !e.IsStopCompleted(e.config.Stops[i].ID) {
			return &e.config.Stops[i], true
		}
	}
	return nil, false
}

// DistanceToNextStop is the signed arc length from the car to the next
// incomplete stop, if that stop is placed.
func (e *TourEngine) DistanceToNextStop() (float64, bool) {
	stop, ok := e.NextStop()
	if !ok {
		return 0, false
	}
	d, ok := e.stopDistances[stop.ID]
	if !ok {
		return 0, false
	}
	return d - e.state.Progress, true
}
