// Package state holds the mutable player store: global points, time and the
// per-layer records the engine operates on.
package state

import (
	"encoding/json"
	"slices"

	"github.com/google/uuid"

	"github.com/talgya/retribution/internal/bignum"
)

// NoChallenge marks a layer with no active challenge.
const NoChallenge = 0

// LayerData is the persistent record of one layer.
type LayerData struct {
	Points      bignum.Decimal `json:"points"`
	Best        bignum.Decimal `json:"best"`
	Total       bignum.Decimal `json:"total"`
	Unlocked    bool           `json:"unlocked"`
	UnlockOrder int            `json:"unlock_order"`
	ResetTime   float64        `json:"reset_time"` // seconds since the last reset

	ActiveChallenge int         `json:"active_challenge"`
	Challenges      map[int]int `json:"challenges"` // challenge ID → completions

	Upgrades     []int                     `json:"upgrades"`
	Milestones   []int                     `json:"milestones"`
	Achievements []int                     `json:"achievements"`
	Buyables     map[int]bignum.Decimal    `json:"buyables"`
	Clickables   map[int]string            `json:"clickables"`
	Grid         map[int]bignum.Decimal    `json:"grid"`
	Fields       map[string]bignum.Decimal `json:"fields,omitempty"` // mod-defined currencies

	ForceTooltip    bool   `json:"force_tooltip"`
	NoRespecConfirm bool   `json:"no_respec_confirm"`
	PrevTab         string `json:"prev_tab,omitempty"`
}

// OfflineTime tracks accumulated time still to be simulated after a load.
type OfflineTime struct {
	Remain float64 `json:"remain"` // seconds
}

// Player is the whole game store.
type Player struct {
	ID           string                `json:"id"`
	Points       bignum.Decimal        `json:"points"`
	TotalTime    float64               `json:"total_time"`
	Retributions int                   `json:"retributions"` // prestige tier of the display
	GameEnded    bool                  `json:"game_ended"`
	KeepGoing    bool                  `json:"keep_going"`
	DevSpeed     float64               `json:"dev_speed"`
	OffTime      *OfflineTime          `json:"off_time,omitempty"`
	LastSaved    int64                 `json:"last_saved"` // unix millis
	Layers       map[string]*LayerData `json:"layers"`
}

// NewPlayer returns an empty store with a fresh save ID.
func NewPlayer() *Player {
	return &Player{
		ID:       uuid.NewString(),
		DevSpeed: 1,
		Layers:   make(map[string]*LayerData),
	}
}

// Layer returns the record for id, or nil.
func (p *Player) Layer(id string) *LayerData {
	return p.Layers[id]
}

// Clone deep-copies the store.
func (p *Player) Clone() *Player {
	b, err := json.Marshal(p)
	if err != nil {
		panic(err)
	}
	var c Player
	if err := json.Unmarshal(b, &c); err != nil {
		panic(err)
	}
	return &c
}

// HasUpgrade reports whether upgrade id has been bought.
func (d *LayerData) HasUpgrade(id int) bool { return slices.Contains(d.Upgrades, id) }

// HasMilestone reports whether milestone id has been earned.
func (d *LayerData) HasMilestone(id int) bool { return slices.Contains(d.Milestones, id) }

// HasAchievement reports whether achievement id has been earned.
func (d *LayerData) HasAchievement(id int) bool { return slices.Contains(d.Achievements, id) }

// Completions returns how often challenge id was completed.
func (d *LayerData) Completions(id int) int { return d.Challenges[id] }

// Buyable returns the amount bought of buyable id.
func (d *LayerData) Buyable(id int) bignum.Decimal { return d.Buyables[id] }

// Field reads a currency by name: the built-in trackers or a mod field.
func (d *LayerData) Field(name string) (bignum.Decimal, bool) {
	switch name {
	case "points", "":
		return d.Points, true
	case "best":
		return d.Best, true
	case "total":
		return d.Total, true
	}
	v, ok := d.Fields[name]
	return v, ok
}

// SetField writes a currency by name.
func (d *LayerData) SetField(name string, v bignum.Decimal) {
	switch name {
	case "points", "":
		d.Points = v
	case "best":
		d.Best = v
	case "total":
		d.Total = v
	default:
		if d.Fields == nil {
			d.Fields = make(map[string]bignum.Decimal)
		}
		d.Fields[name] = v
	}
}

// AddPoints credits gain, keeping points non-negative and updating the
// best and total trackers.
func (d *LayerData) AddPoints(gain bignum.Decimal) {
	d.Points = d.Points.Add(gain).Max(bignum.Zero)
	d.Best = d.Best.Max(d.Points)
	if gain.Gt(bignum.Zero) {
		d.Total = d.Total.Add(gain)
	}
}
