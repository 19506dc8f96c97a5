// Package loop drives a step/render pair at a fixed interval with a capped
// frame delta.
package loop

import (
	"context"
	"time"

	"github.com/df-mc/atomic"
)

const (
	// DefaultInterval is roughly one animation frame.
	DefaultInterval = time.Second / 60
	// MaxDelta bounds integration error after a stall.
	MaxDelta = 33 * time.Millisecond
)

// Runner calls Step with the elapsed seconds and then Render, once per
// frame, strictly in that order. Render runs even when Step has nothing to
// integrate, so a paused run still produces frames.
type Runner struct {
	Step   func(dt float64)
	Render func()

	interval time.Duration
	now      func() time.Time
	last     time.Time

	running atomic.Bool
	frames  atomic.Int64
}

type Option func(*Runner)

// WithInterval sets the frame interval.
func WithInterval(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithClock replaces the wall clock used for frame deltas.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

func New(step func(dt float64), render func(), opts ...Option) *Runner {
	r := &Runner{
		Step:     step,
		Render:   render,
		interval: DefaultInterval,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run blocks until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	if !r.running.CAS(false, true) {
		return ErrAlreadyRunning
	}
	defer r.running.Store(false)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.last = r.now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.Frame()
		}
	}
}

// Frame runs one step and one render using the time since the previous
// frame, capped at MaxDelta.
func (r *Runner) Frame() {
	now := r.now()
	if r.last.IsZero() {
		r.last = now
	}
	delta := min(max(now.Sub(r.last), 0), MaxDelta)
	r.last = now

	if r.Step != nil {
		r.Step(delta.Seconds())
	}
	if r.Render != nil {
		r.Render()
	}
	r.frames.Inc()
}

func (r *Runner) Running() bool { return r.running.Load() }

// Frames is the number of frames run so far.
func (r *Runner) Frames() int64 { return r.frames.Load() }
