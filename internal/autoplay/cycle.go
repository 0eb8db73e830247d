package autoplay

import (
	"fmt"
	"log/slog"
)

// Player runs observe → decide → act cycles against one server.
type Player struct {
	Observer *Observer
	Actor    *Actor
	Policy   Policy
	Memory   *CycleMemory // optional
}

// NewPlayer wires an observer and actor for baseURL with the default policy.
func NewPlayer(baseURL string) *Player {
	return &Player{
		Observer: NewObserver(baseURL),
		Actor:    NewActor(baseURL),
		Policy:   DefaultPolicy(),
	}
}

// Cycle executes one observe → decide → act cycle. Refused actions are
// counted, not treated as failures; the cycle stops at the first transport
// error.
func (p *Player) Cycle() (CycleRecord, error) {
	snap, err := p.Observer.Observe()
	if err != nil {
		return CycleRecord{}, fmt.Errorf("observe: %w", err)
	}
	rec := CycleRecord{Tick: snap.Status.Game.Tick, Points: snap.Status.Game.Points}

	actions := Decide(snap, p.Policy)
	slog.Info("autoplay decided",
		"tick", rec.Tick,
		"points", rec.Points,
		"actions", len(actions),
	)

	for _, a := range actions {
		ok, err := p.Actor.Act(a)
		if err != nil {
			p.remember(rec)
			return rec, fmt.Errorf("act: %w", err)
		}
		if !ok {
			rec.Refused++
			slog.Debug("action refused", "kind", a.Kind, "layer", a.Layer, "id", a.ID)
			continue
		}
		rec.Taken = append(rec.Taken, a)
		slog.Info("action taken", "kind", a.Kind, "layer", a.Layer, "id", a.ID, "reason", a.Reason)
	}
	p.remember(rec)
	return rec, nil
}

func (p *Player) remember(rec CycleRecord) {
	if p.Memory == nil {
		return
	}
	p.Memory.Record(rec)
	p.Memory.Save()
}
