package engine

import (
	"log/slog"

	"golang.org/x/exp/constraints"

	"github.com/talgya/retribution/internal/state"
)

func clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// AddOfflineTime queues seconds spent away to be caught up by later steps.
func (g *Game) AddOfflineTime(seconds float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if seconds <= 0 || !g.opts.OfflineProd {
		return
	}
	if g.Player.OffTime == nil {
		g.Player.OffTime = &state.OfflineTime{}
	}
	g.Player.OffTime.Remain += seconds
	slog.Info("offline time queued", "seconds", seconds, "remain", g.Player.OffTime.Remain)
}

// offlineDiff returns diff plus the share of queued offline time to spend
// this step: at least a tenth of what remains, never less than diff. The
// queue is capped at the offline limit and dropped once empty.
func (g *Game) offlineDiff(diff float64) float64 {
	off := g.Player.OffTime
	if off == nil {
		return diff
	}
	limit := g.opts.OfflineLimit * 3600
	off.Remain = clamp(off.Remain, 0, limit)
	if off.Remain > 0 {
		extra := min(max(off.Remain/10, diff), off.Remain)
		off.Remain -= extra
		diff += extra
	}
	if !g.opts.OfflineProd || off.Remain <= 0 {
		g.Player.OffTime = nil
		slog.Debug("offline catch-up finished")
	}
	return diff
}
