package websocket

import (
	"context"
	"errors"

	"github.com/wricardo/driving-tour/game/engine"
	"github.com/wricardo/driving-tour/game/loop"
)

// liveSession is the per-session state of a frame loop. Step and render
// both run on the loop goroutine.
type liveSession struct {
	hub       *Hub
	ctx       context.Context
	sessionID string

	last    *engine.Snapshot
	pending *engine.Snapshot
	events  []engine.Event
	err     error
	sent    bool
}

// runSession ticks a session until ctx is done or the session goes away.
func (h *Hub) runSession(ctx context.Context, sessionID string) {
	ls := &liveSession{hub: h, ctx: ctx, sessionID: sessionID}
	runner := loop.New(ls.step, ls.render, loop.WithInterval(h.interval))

	h.log.Debug("live loop started", "session", sessionID)
	if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		h.log.Warn("live loop stopped", "session", sessionID, "err", err)
	}
	h.log.Debug("live loop finished", "session", sessionID, "frames", runner.Frames())
}

func (ls *liveSession) step(dt float64) {
	if ls.err != nil {
		return
	}
	res, err := ls.hub.live.Step(ls.ctx, ls.sessionID, dt)
	if err != nil {
		ls.err = err
		return
	}
	ls.pending = &res.Snapshot
	ls.events = append(ls.events, res.Events...)
}

func (ls *liveSession) render() {
	if ls.err != nil {
		if !ls.sent && ls.ctx.Err() == nil {
			ls.sent = true
			ls.hub.log.Warn("live session failed", "session", ls.sessionID, "err", ls.err)
			ls.hub.BroadcastEvent(ls.sessionID, EventSessionError, map[string]string{"error": ls.err.Error()})
			select {
			case ls.hub.stopped <- ls.sessionID:
			default:
			}
		}
		return
	}
	if ls.pending == nil {
		return
	}
	if len(ls.events) == 0 && ls.last != nil && !snapshotChanged(*ls.last, *ls.pending) {
		return
	}

	ls.hub.BroadcastToSession(ls.sessionID, ls.pending, ls.events...)
	ls.last = ls.pending
	ls.pending = nil
	ls.events = nil
}

// snapshotChanged reports whether a client would draw something different.
func snapshotChanged(prev, next engine.Snapshot) bool {
	return prev.Progress != next.Progress ||
		prev.Speed != next.Speed ||
		prev.Paused != next.Paused ||
		prev.ModalOpen != next.ModalOpen ||
		prev.Finished != next.Finished ||
		prev.Message != next.Message ||
		prev.LapTime != next.LapTime ||
		prev.Recording.Enabled != next.Recording.Enabled ||
		len(prev.Recording.Points) != len(next.Recording.Points)
}
