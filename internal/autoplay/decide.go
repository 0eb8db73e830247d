package autoplay

import (
	"fmt"
	"sort"

	"github.com/talgya/retribution/internal/bignum"
	"github.com/talgya/retribution/internal/engine"
)

// Action kinds, one per player endpoint.
const (
	ActUpgrade  = "upgrade"
	ActReset    = "reset"
	ActComplete = "complete"
)

// Action is one player request.
type Action struct {
	Kind   string `json:"kind"`
	Layer  string `json:"layer"`
	ID     int    `json:"id,omitempty"`
	Reason string `json:"reason"`
}

// Policy tunes Decide.
type Policy struct {
	// ResetRatio is the gain, as a multiple of the layer's points, that
	// makes a reset worth taking. Layers at zero points reset at any gain.
	ResetRatio float64
	// MaxActions caps the actions of one cycle; 0 means no cap.
	MaxActions int
}

// DefaultPolicy resets once the reset doubles the layer's points.
func DefaultPolicy() Policy {
	return Policy{ResetRatio: 1, MaxActions: 20}
}

// Decide picks the actions for one cycle: completable challenges first, then
// affordable upgrades, then resets, highest row first.
func Decide(snap *Snapshot, pol Policy) []Action {
	if snap.Status.Game.GameEnded && !snap.Status.Game.KeepGoing {
		return nil
	}

	layers := append([]engine.LayerView(nil), snap.Layers...)
	sort.SliceStable(layers, func(i, j int) bool { return layers[i].Row > layers[j].Row })

	var out []Action
	for _, l := range layers {
		if !l.Unlocked {
			continue
		}
		for _, c := range l.Challenges {
			if c.Active && c.CanComplete {
				out = append(out, Action{Kind: ActComplete, Layer: l.ID, ID: c.ID,
					Reason: fmt.Sprintf("%s goal %s reached", c.Name, c.Goal)})
			}
		}
	}
	for _, l := range layers {
		if !l.Unlocked {
			continue
		}
		for _, u := range l.Upgrades {
			if u.Unlocked && !u.Bought && u.CanAfford {
				out = append(out, Action{Kind: ActUpgrade, Layer: l.ID, ID: u.ID,
					Reason: fmt.Sprintf("%s affordable at %s", u.Title, u.Cost)})
			}
		}
	}
	for _, l := range layers {
		if l.Unlocked && l.CanReset && worthResetting(l, pol.ResetRatio) {
			out = append(out, Action{Kind: ActReset, Layer: l.ID,
				Reason: fmt.Sprintf("gain %s on %s", l.ResetGain, l.Points)})
		}
	}

	if pol.MaxActions > 0 && len(out) > pol.MaxActions {
		out = out[:pol.MaxActions]
	}
	return out
}

func worthResetting(l engine.LayerView, ratio float64) bool {
	gain, err := bignum.Parse(l.ResetGain)
	if err != nil || gain.IsPoisoned() || gain.Lte(bignum.Zero) {
		return false
	}
	points, err := bignum.Parse(l.PointsExact)
	if err != nil || points.IsZero() {
		return true
	}
	return gain.Gte(points.Mul(bignum.FromFloat(ratio)))
}
