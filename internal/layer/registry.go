package layer

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/talgya/retribution/internal/bignum"
	"github.com/talgya/retribution/internal/state"
)

// ErrInvalidDefinition is returned when a set of layers cannot be indexed.
var ErrInvalidDefinition = errors.New("invalid layer definition")

// Registry indexes layer definitions by ID and by row. It is built once and
// read-only afterwards.
type Registry struct {
	defs  map[string]*Definition
	order []string
	rows  map[int][]string
	rowNs []int // ascending
	sides map[string][]string
	sideN []string // sorted
}

// NewRegistry validates defs and builds the row index. Layers within a row
// keep their registration order.
func NewRegistry(defs ...*Definition) (*Registry, error) {
	r := &Registry{
		defs:  make(map[string]*Definition, len(defs)),
		rows:  make(map[int][]string),
		sides: make(map[string][]string),
	}
	for _, d := range defs {
		if err := validate(d); err != nil {
			return nil, err
		}
		if _, dup := r.defs[d.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate layer %q", ErrInvalidDefinition, d.ID)
		}
		if d.Formula == nil {
			d.Formula = None{}
		}
		r.defs[d.ID] = d
		r.order = append(r.order, d.ID)
		if d.Side != "" {
			if _, ok := r.sides[d.Side]; !ok {
				r.sideN = append(r.sideN, d.Side)
			}
			r.sides[d.Side] = append(r.sides[d.Side], d.ID)
			continue
		}
		if _, ok := r.rows[d.Row]; !ok {
			r.rowNs = append(r.rowNs, d.Row)
		}
		r.rows[d.Row] = append(r.rows[d.Row], d.ID)
	}
	sort.Ints(r.rowNs)
	sort.Strings(r.sideN)

	for _, d := range defs {
		for _, dep := range d.IncreaseUnlockOrder {
			if _, ok := r.defs[dep]; !ok {
				return nil, fmt.Errorf("%w: layer %q unlocks unknown layer %q", ErrInvalidDefinition, d.ID, dep)
			}
		}
		if c, ok := d.Formula.(Custom); ok && c.Gain == nil {
			return nil, fmt.Errorf("%w: custom layer %q has no gain function", ErrInvalidDefinition, d.ID)
		}
	}
	return r, nil
}

func validate(d *Definition) error {
	if d == nil || d.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidDefinition)
	}
	if d.Row < 0 {
		return fmt.Errorf("%w: layer %q has negative row %d", ErrInvalidDefinition, d.ID, d.Row)
	}
	seen := func(kind string, ids []int) error {
		set := make(map[int]bool, len(ids))
		for _, id := range ids {
			if set[id] {
				return fmt.Errorf("%w: layer %q repeats %s %d", ErrInvalidDefinition, d.ID, kind, id)
			}
			set[id] = true
		}
		return nil
	}
	ids := func(n int, at func(int) int) []int {
		out := make([]int, n)
		for i := range out {
			out[i] = at(i)
		}
		return out
	}
	for _, check := range []error{
		seen("upgrade", ids(len(d.Upgrades), func(i int) int { return d.Upgrades[i].ID })),
		seen("buyable", ids(len(d.Buyables), func(i int) int { return d.Buyables[i].ID })),
		seen("clickable", ids(len(d.Clickables), func(i int) int { return d.Clickables[i].ID })),
		seen("challenge", ids(len(d.Challenges), func(i int) int { return d.Challenges[i].ID })),
		seen("milestone", ids(len(d.Milestones), func(i int) int { return d.Milestones[i].ID })),
		seen("achievement", ids(len(d.Achievements), func(i int) int { return d.Achievements[i].ID })),
	} {
		if check != nil {
			return check
		}
	}
	for _, c := range d.Challenges {
		if c.ID == state.NoChallenge {
			return fmt.Errorf("%w: layer %q uses reserved challenge id 0", ErrInvalidDefinition, d.ID)
		}
	}
	return nil
}

// Get returns the definition for id.
func (r *Registry) Get(id string) (*Definition, bool) {
	d, ok := r.defs[id]
	return d, ok
}

// IDs returns every layer in registration order.
func (r *Registry) IDs() []string { return slices.Clone(r.order) }

// Rows returns the row numbers in ascending order.
func (r *Registry) Rows() []int { return slices.Clone(r.rowNs) }

// Row returns the layers of one row.
func (r *Registry) Row(n int) []string { return r.rows[n] }

// Sides returns the side group names.
func (r *Registry) Sides() []string { return slices.Clone(r.sideN) }

// Side returns the layers of one side group.
func (r *Registry) Side(name string) []string { return r.sides[name] }

// Ascending lists layers row by row from the lowest row, then side groups.
func (r *Registry) Ascending() []string {
	out := make([]string, 0, len(r.order))
	for _, n := range r.rowNs {
		out = append(out, r.rows[n]...)
	}
	for _, s := range r.sideN {
		out = append(out, r.sides[s]...)
	}
	return out
}

// Descending lists layers row by row from the highest row, then side groups.
func (r *Registry) Descending() []string {
	out := make([]string, 0, len(r.order))
	for i := len(r.rowNs) - 1; i >= 0; i-- {
		out = append(out, r.rows[r.rowNs[i]]...)
	}
	for _, s := range r.sideN {
		out = append(out, r.sides[s]...)
	}
	return out
}

// NewPlayer returns a store holding the start record of every layer.
func (r *Registry) NewPlayer(startPoints bignum.Decimal) *state.Player {
	p := state.NewPlayer()
	p.Points = startPoints
	for _, id := range r.order {
		p.Layers[id] = r.defs[id].StartLayerData()
	}
	return p
}

// Fill adds start records for layers missing from a loaded store and fills
// in empty maps, so saves from older content keep working.
func (r *Registry) Fill(p *state.Player) {
	if p.Layers == nil {
		p.Layers = make(map[string]*state.LayerData)
	}
	for _, id := range r.order {
		def := r.defs[id]
		data, ok := p.Layers[id]
		if !ok || data == nil {
			p.Layers[id] = def.StartLayerData()
			continue
		}
		start := def.StartLayerData()
		if data.Challenges == nil {
			data.Challenges = start.Challenges
		}
		if data.Buyables == nil {
			data.Buyables = start.Buyables
		}
		if data.Clickables == nil {
			data.Clickables = start.Clickables
		}
		if data.Grid == nil {
			data.Grid = start.Grid
		}
		for k, v := range start.Fields {
			if _, ok := data.Fields[k]; !ok {
				data.SetField(k, v)
			}
		}
	}
}
