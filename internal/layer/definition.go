// Package layer describes prestige layers: their formula type and
// parameters, purchasable features, hooks and the row index that orders
// them.
package layer

import (
	"github.com/talgya/retribution/internal/bignum"
	"github.com/talgya/retribution/internal/state"
)

// Type names the reset formula of a layer.
type Type int

const (
	TypeNone Type = iota
	TypeStatic
	TypeNormal
	TypeCustom
)

func (t Type) String() string {
	switch t {
	case TypeStatic:
		return "static"
	case TypeNormal:
		return "normal"
	case TypeCustom:
		return "custom"
	}
	return "none"
}

// ParseType maps a type name to its Type.
func ParseType(s string) (Type, bool) {
	switch s {
	case "none", "":
		return TypeNone, true
	case "static":
		return TypeStatic, true
	case "normal":
		return TypeNormal, true
	case "custom":
		return TypeCustom, true
	}
	return TypeNone, false
}

// Formula is one of None, Static, Normal or Custom.
type Formula interface {
	Type() Type
}

// None layers never award points by resetting.
type None struct{}

// Static layers sell points at an exponentially rising cost.
type Static struct {
	Requirement Value[bignum.Decimal]
	Base        Value[bignum.Decimal] // default 2
	Exponent    Value[bignum.Decimal] // default 1
	GainMult    Value[bignum.Decimal] // default 1
	GainExp     Value[bignum.Decimal] // default 1
	DirectMult  Value[bignum.Decimal] // default 1
	CanBuyMax   Value[bool]
	RoundUpCost bool
}

// Normal layers award points growing as a power of the base amount.
type Normal struct {
	Requirement  Value[bignum.Decimal]
	Exponent     Value[bignum.Decimal] // default 1
	GainMult     Value[bignum.Decimal] // default 1
	GainExp      Value[bignum.Decimal] // default 1
	DirectMult   Value[bignum.Decimal] // default 1
	Softcap      Value[bignum.Decimal] // default e1e7
	SoftcapPower Value[bignum.Decimal] // default 0.5
	RoundUpCost  bool
}

// Custom layers delegate gain, threshold and resettability to the mod.
type Custom struct {
	Gain        func(Context) (bignum.Decimal, error)
	Next        func(c Context, canMax bool) (bignum.Decimal, error)
	Requirement Value[bignum.Decimal]
}

func (None) Type() Type   { return TypeNone }
func (Static) Type() Type { return TypeStatic }
func (Normal) Type() Type { return TypeNormal }
func (Custom) Type() Type { return TypeCustom }

// DefaultSoftcap is the normal-layer softcap when none is given.
var DefaultSoftcap = bignum.MustParse("e1e7")

// Hooks are optional mod callbacks around the reset cycle and the clock.
type Hooks struct {
	BeforePrestige func(c Context, gain bignum.Decimal) error
	// Reset replaces the default data reset when a cascade reaches the layer.
	Reset    func(c Context, trigger string) error
	Update   func(c Context, diff float64) error
	Automate func(c Context) error
}

// Upgrade is a one-time purchase.
type Upgrade struct {
	ID            int
	Title         string
	Description   string
	Cost          Value[bignum.Decimal]
	CurrencyLayer string // default: the owning layer
	Currency      string // field of the currency layer, default points
	Unlocked      Value[bool]
	Effect        Value[bignum.Decimal]
	OnPurchase    func(Context) error
}

// Buyable is a repeatable purchase whose amount is tracked.
type Buyable struct {
	ID        int
	Title     string
	Cost      Value[bignum.Decimal]
	Unlocked  Value[bool]
	CanAfford Value[bool]         // default: points ≥ cost
	Buy       func(Context) error // default: spend cost, amount+1
	Effect    Value[bignum.Decimal]
}

// Clickable is a stateful button.
type Clickable struct {
	ID       int
	Title    string
	Initial  string
	Unlocked Value[bool]
	CanClick Value[bool]
	OnClick  func(Context) error
}

// Challenge is an alternate ruleset entered through a forced reset.
type Challenge struct {
	ID              int
	Name            string
	Goal            Value[bignum.Decimal]
	CompletionLimit int // 0 means unbounded
	Unlocked        Value[bool]
	Reward          Value[bignum.Decimal]

	// Completion is tested by the first of these that is set: CanComplete,
	// CurrencyLocation, CurrencyLayer, CurrencyInternalName, then global
	// points against Goal.
	CanComplete          Value[bool]
	CurrencyLocation     func(Context) (map[string]bignum.Decimal, error)
	CurrencyLayer        string
	CurrencyInternalName string

	OnEnter    func(Context) error
	OnComplete func(Context) error
	OnExit     func(Context) error
}

// Milestone is earned once Done holds and kept for the session.
type Milestone struct {
	ID          int
	Requirement string
	Done        Value[bool]
}

// Achievement is earned once Done holds.
type Achievement struct {
	ID         int
	Name       string
	Done       Value[bool]
	OnComplete func(Context) error
}

// Definition is everything a mod declares about one layer.
type Definition struct {
	ID       string
	Name     string
	Symbol   string
	Resource string
	Row      int
	Side     string // non-empty places the layer in a named side group

	Formula    Formula
	BaseAmount Value[bignum.Decimal] // default: global points

	StartUnlocked bool
	StartPoints   bignum.Decimal
	StartFields   map[string]bignum.Decimal
	StartGrid     map[int]bignum.Decimal

	Unlocked            Value[bool] // becomes unlocked once true
	CanReset            Value[bool]
	ResetsNothing       Value[bool]
	PassiveGeneration   Value[bignum.Decimal]
	AutoPrestige        Value[bool]
	AutoUpgrade         Value[bool]
	ShouldNotify        Value[bool]
	IncreaseUnlockOrder []string

	Upgrades     []Upgrade
	Buyables     []Buyable
	Clickables   []Clickable
	Challenges   []Challenge
	Milestones   []Milestone
	Achievements []Achievement

	Hooks Hooks
}

// Type returns the formula type.
func (d *Definition) Type() Type {
	if d.Formula == nil {
		return TypeNone
	}
	return d.Formula.Type()
}

// Upgrade looks up an upgrade by ID.
func (d *Definition) Upgrade(id int) *Upgrade {
	for i := range d.Upgrades {
		if d.Upgrades[i].ID == id {
			return &d.Upgrades[i]
		}
	}
	return nil
}

// Buyable looks up a buyable by ID.
func (d *Definition) Buyable(id int) *Buyable {
	for i := range d.Buyables {
		if d.Buyables[i].ID == id {
			return &d.Buyables[i]
		}
	}
	return nil
}

// Clickable looks up a clickable by ID.
func (d *Definition) Clickable(id int) *Clickable {
	for i := range d.Clickables {
		if d.Clickables[i].ID == id {
			return &d.Clickables[i]
		}
	}
	return nil
}

// Challenge looks up a challenge by ID.
func (d *Definition) Challenge(id int) *Challenge {
	for i := range d.Challenges {
		if d.Challenges[i].ID == id {
			return &d.Challenges[i]
		}
	}
	return nil
}

// StartBuyables returns every buyable at zero.
func (d *Definition) StartBuyables() map[int]bignum.Decimal {
	m := make(map[int]bignum.Decimal, len(d.Buyables))
	for _, b := range d.Buyables {
		m[b.ID] = bignum.Zero
	}
	return m
}

// StartClickables returns every clickable in its initial state.
func (d *Definition) StartClickables() map[int]string {
	m := make(map[int]string, len(d.Clickables))
	for _, c := range d.Clickables {
		m[c.ID] = c.Initial
	}
	return m
}

// StartChallenges returns every challenge at zero completions.
func (d *Definition) StartChallenges() map[int]int {
	m := make(map[int]int, len(d.Challenges))
	for _, c := range d.Challenges {
		m[c.ID] = 0
	}
	return m
}

// StartGridData returns a copy of the initial grid.
func (d *Definition) StartGridData() map[int]bignum.Decimal {
	m := make(map[int]bignum.Decimal, len(d.StartGrid))
	for k, v := range d.StartGrid {
		m[k] = v
	}
	return m
}

// StartLayerData returns the record a new save begins with.
func (d *Definition) StartLayerData() *state.LayerData {
	fields := make(map[string]bignum.Decimal, len(d.StartFields))
	for k, v := range d.StartFields {
		fields[k] = v
	}
	return &state.LayerData{
		Points:       d.StartPoints,
		Best:         d.StartPoints,
		Unlocked:     d.StartUnlocked,
		Challenges:   d.StartChallenges(),
		Upgrades:     []int{},
		Milestones:   []int{},
		Achievements: []int{},
		Buyables:     d.StartBuyables(),
		Clickables:   d.StartClickables(),
		Grid:         d.StartGridData(),
		Fields:       fields,
	}
}
