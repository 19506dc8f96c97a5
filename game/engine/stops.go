package engine

// ComputeStopDistances places stops along a path of length total. Authored
// distances are used as ratios of the largest one; stops without a distance
// are spread evenly by index. Positions are kept edge away from both ends,
// except the last stop which always sits at finish. A zero-length path
// places nothing.
func ComputeStopDistances(stops []StopConfig, total, finish, edge float64) map[string]float64 {
	out := make(map[string]float64, len(stops))
	if total <= 0 || len(stops) == 0 {
		return out
	}

	maxHint := float64(len(stops))
	defined := false
	for _, stop := range stops {
		if stop.Distance == nil {
			continue
		}
		if !defined || *stop.Distance > maxHint {
			maxHint = *stop.Distance
		}
		defined = true
	}

	last := len(stops) - 1
	for i, stop := range stops {
		var ratio float64
		if stop.Distance != nil && maxHint > 0 {
			ratio = *stop.Distance / maxHint
		} else {
			ratio = float64(i+1) / float64(len(stops)+1)
		}

		d := max(edge, min(total-edge, ratio*total))
		if i == last {
			d = finish
		}
		out[stop.ID] = d
	}
	return out
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
