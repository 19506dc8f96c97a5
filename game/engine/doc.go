// Package engine implements the driving tour core: the progress state
// machine that integrates throttle and speed into distance travelled, and
// the stop/stage unlock graph that gates advancement.
//
// A TourEngine owns one play-through. Tick advances the car along the path
// built by the geometry package; when the car enters the radius of an
// unlocked stop, the stop's view opens and integration halts until the stop
// is completed and closed. Each stop is a content stage followed by one
// stage per mini-game, completed strictly in order.
//
// Usage:
//
//	eng, err := engine.NewEngine(tour)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	for _, ev := range eng.Tick(1.0/60, engine.Input{Accelerate: true}) {
//		fmt.Println(ev.Type, ev.StopID)
//	}
//	snap := eng.Snapshot()
//
// Rejected transitions (closing an incomplete stop, completing a locked
// stage) are reported as false or a sentinel error and leave state
// untouched; nothing in the per-frame path panics on a degenerate tour.
package engine
