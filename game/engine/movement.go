package engine

// Tick advances the run by dt seconds. It is a no-op while paused, while a
// stop view is open and after the finish; dt is capped at MaxFrameDelta.
// The returned events are also queued for DrainEvents.
func (e *TourEngine) Tick(dt float64, in Input) []Event {
	s := e.state
	if s.Paused || s.ModalOpen || s.Finished {
		return nil
	}

	p := e.config.Physics
	dt = max(0, min(dt, p.MaxFrameDelta))

	if in.Accelerate {
		s.Throttle = min(1, s.Throttle+p.ThrottleRise*dt)
	} else {
		s.Throttle = max(0, s.Throttle-p.ThrottleFall*dt)
	}

	if in.Brake {
		s.Speed -= p.Accel * dt
	}

	s.Speed += p.Accel * s.Throttle * dt
	s.Speed = max(-p.MaxSpeed*ReverseSpeedFactor, min(p.MaxSpeed, s.Speed))

	s.Progress += s.Speed * dt

	// Friction is a per-tick factor, not scaled by dt.
	if !in.Accelerate && !in.Brake {
		s.Speed *= p.Friction
	}

	nowMS := e.now().UnixMilli()
	if !s.LapStarted && s.Speed > 0 {
		s.LapStarted = true
		s.LapStartMS = nowMS
		e.emit(EventLapStarted, "", "", "")
	}
	if s.LapStarted {
		s.LapElapsedMS = nowMS - s.LapStartMS
	}

	if !e.path.Empty() && s.Progress >= e.finishDistance {
		s.Progress = e.finishDistance
		s.Speed = 0
		s.Throttle = 0
		s.Finished = true
		s.Paused = true
		e.emit(EventFinished, "", "", e.config.Messages.Finished)
	}

	if s.Progress <= 0 {
		s.Progress = 0
		s.Speed = max(0, s.Speed)
	}

	e.scanStops(nowMS)
	e.checkTourCompleted()

	return e.DrainEvents()
}

// scanStops opens at most one stop per tick: the first unlocked stop, in
// authoring order, that the car just entered.
func (e *TourEngine) scanStops(nowMS int64) {
	s := e.state
	radius := e.config.Physics.StopRadius

	for i := range e.config.Stops {
		stop := &e.config.Stops[i]
		d, ok := e.stopDistances[stop.ID]
		if !ok {
			continue
		}

		inRange := abs(s.Progress-d) <= radius
		if inRange && !s.InRange[stop.ID] {
			if !e.isStopUnlockedAt(i) {
				continue
			}
			s.InRange[stop.ID] = true
			if !s.Visited[stop.ID] {
				s.Visited[stop.ID] = true
				if s.LapStarted {
					s.StopTimes[stop.ID] = nowMS - s.LapStartMS
				}
			}
			e.openStop(stop)
			break
		}
		if !inRange && s.InRange[stop.ID] {
			delete(s.InRange, stop.ID)
		}
	}
}

// checkTourCompleted signals the terminal state once: finished, no open
// view and every stop completed.
func (e *TourEngine) checkTourCompleted() {
	s := e.state
	if s.TourCompleted || !s.Finished || s.ModalOpen {
		return
	}
	if !e.AllStopsCompleted() {
		return
	}
	s.TourCompleted = true
	e.emit(EventTourCompleted, "", "", e.config.Messages.Victory)
}
