// Package modpack loads data-driven mods. A mod is a CUE document checked
// against an embedded schema; its computed values and hooks are functions of
// a Starlark script, referenced from the document as "@name".
package modpack

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"go.starlark.net/starlark"

	"github.com/talgya/retribution/internal/bignum"
	"github.com/talgya/retribution/internal/engine"
	"github.com/talgya/retribution/internal/layer"
	"github.com/talgya/retribution/internal/mods"
)

//go:embed schema.cue
var schemaSrc string

// Load reads and builds the mod at path.
func Load(path string) (mods.Content, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return mods.Content{}, fmt.Errorf("read mod: %w", err)
	}
	return Parse(path, src)
}

// Parse builds a mod from CUE source. A script_file is resolved relative to
// the directory of filename.
func Parse(filename string, src []byte) (mods.Content, error) {
	doc, err := decode(filename, src)
	if err != nil {
		return mods.Content{}, err
	}

	code := doc.Script
	scriptName := filename + ".star"
	if doc.ScriptFile != "" {
		scriptName = filepath.Join(filepath.Dir(filename), doc.ScriptFile)
		b, err := os.ReadFile(scriptName)
		if err != nil {
			return mods.Content{}, fmt.Errorf("read script: %w", err)
		}
		code = string(b)
	}
	var script *Script
	if code != "" {
		if script, err = compileScript(scriptName, code); err != nil {
			return mods.Content{}, err
		}
	}

	b := &builder{script: script}
	content := b.content(doc)
	if err := errors.Join(b.errs...); err != nil {
		return mods.Content{}, fmt.Errorf("mod %q: %w", doc.Name, err)
	}
	slog.Info("mod loaded", "name", content.Name, "layers", len(content.Layers), "script", script != nil)
	return content, nil
}

func decode(filename string, src []byte) (modDoc, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSrc, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return modDoc{}, fmt.Errorf("compile schema: %w", err)
	}

	value := ctx.CompileBytes(src, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return modDoc{}, fmt.Errorf("compile %s: %w", filename, err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Mod")).Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return modDoc{}, fmt.Errorf("validate %s: %w", filename, err)
	}

	var doc modDoc
	if err := unified.Decode(&doc); err != nil {
		return modDoc{}, fmt.Errorf("decode %s: %w", filename, err)
	}
	return doc, nil
}

type modDoc struct {
	Name           string     `json:"name"`
	Script         string     `json:"script"`
	ScriptFile     string     `json:"script_file"`
	StartPoints    any        `json:"start_points"`
	MaxTickLength  float64    `json:"max_tick_length"`
	OfflineLimit   *float64   `json:"offline_limit"`
	PointGen       any        `json:"point_gen"`
	CanGenPoints   any        `json:"can_gen_points"`
	EndGame        any        `json:"end_game"`
	OmegaThreshold string     `json:"omega_threshold"`
	Layers         []layerDoc `json:"layers"`
}

type layerDoc struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Resource string `json:"resource"`
	Row      int    `json:"row"`
	Side     string `json:"side"`
	Type     string `json:"type"`

	BaseAmount   any    `json:"base_amount"`
	Requirement  any    `json:"requirement"`
	Base         any    `json:"base"`
	Exponent     any    `json:"exponent"`
	GainMult     any    `json:"gain_mult"`
	GainExp      any    `json:"gain_exp"`
	DirectMult   any    `json:"direct_mult"`
	Softcap      any    `json:"softcap"`
	SoftcapPower any    `json:"softcap_power"`
	CanBuyMax    any    `json:"can_buy_max"`
	RoundUpCost  bool   `json:"round_up_cost"`
	Gain         string `json:"gain"`
	Next         string `json:"next"`

	StartUnlocked bool           `json:"start_unlocked"`
	StartPoints   any            `json:"start_points"`
	Fields        map[string]any `json:"fields"`
	Grid          map[string]any `json:"grid"`

	Unlocked            any      `json:"unlocked"`
	CanReset            any      `json:"can_reset"`
	ResetsNothing       any      `json:"resets_nothing"`
	PassiveGeneration   any      `json:"passive_generation"`
	AutoPrestige        any      `json:"auto_prestige"`
	AutoUpgrade         any      `json:"auto_upgrade"`
	ShouldNotify        any      `json:"should_notify"`
	IncreaseUnlockOrder []string `json:"increase_unlock_order"`

	Upgrades     []upgradeDoc     `json:"upgrades"`
	Buyables     []buyableDoc     `json:"buyables"`
	Clickables   []clickableDoc   `json:"clickables"`
	Challenges   []challengeDoc   `json:"challenges"`
	Milestones   []milestoneDoc   `json:"milestones"`
	Achievements []achievementDoc `json:"achievements"`
	Hooks        hooksDoc         `json:"hooks"`
}

type upgradeDoc struct {
	ID            int    `json:"id"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	Cost          any    `json:"cost"`
	CurrencyLayer string `json:"currency_layer"`
	Currency      string `json:"currency"`
	Unlocked      any    `json:"unlocked"`
	Effect        any    `json:"effect"`
	OnPurchase    string `json:"on_purchase"`
}

type buyableDoc struct {
	ID        int    `json:"id"`
	Title     string `json:"title"`
	Cost      any    `json:"cost"`
	Unlocked  any    `json:"unlocked"`
	CanAfford any    `json:"can_afford"`
	Buy       string `json:"buy"`
	Effect    any    `json:"effect"`
}

type clickableDoc struct {
	ID       int    `json:"id"`
	Title    string `json:"title"`
	Initial  string `json:"initial"`
	Unlocked any    `json:"unlocked"`
	CanClick any    `json:"can_click"`
	OnClick  string `json:"on_click"`
}

type challengeDoc struct {
	ID               int    `json:"id"`
	Name             string `json:"name"`
	Goal             any    `json:"goal"`
	CompletionLimit  int    `json:"completion_limit"`
	Unlocked         any    `json:"unlocked"`
	Reward           any    `json:"reward"`
	CanComplete      any    `json:"can_complete"`
	CurrencyLocation string `json:"currency_location"`
	CurrencyLayer    string `json:"currency_layer"`
	Currency         string `json:"currency"`
	OnEnter          string `json:"on_enter"`
	OnComplete       string `json:"on_complete"`
	OnExit           string `json:"on_exit"`
}

type milestoneDoc struct {
	ID          int    `json:"id"`
	Requirement string `json:"requirement"`
	Done        any    `json:"done"`
}

type achievementDoc struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Done       any    `json:"done"`
	OnComplete string `json:"on_complete"`
}

type hooksDoc struct {
	BeforePrestige string `json:"before_prestige"`
	Reset          string `json:"reset"`
	Update         string `json:"update"`
	Automate       string `json:"automate"`
}

// builder turns a decoded document into definitions, collecting every error.
type builder struct {
	script *Script
	errs   []error
}

func (b *builder) fail(path string, err error) {
	b.errs = append(b.errs, fmt.Errorf("%s: %w", path, err))
}

func (b *builder) content(doc modDoc) mods.Content {
	opts := engine.DefaultOptions()
	if doc.StartPoints != nil {
		if d, err := literal(doc.StartPoints); err != nil {
			b.fail("start_points", err)
		} else {
			opts.StartPoints = d
		}
	}
	if doc.MaxTickLength > 0 {
		opts.MaxTickLength = doc.MaxTickLength
	}
	if doc.OfflineLimit != nil {
		opts.OfflineLimit = *doc.OfflineLimit
	}
	if doc.OmegaThreshold != "" {
		if d, err := bignum.Parse(doc.OmegaThreshold); err != nil {
			b.fail("omega_threshold", err)
		} else {
			opts.OmegaThreshold = d
		}
	}
	opts.PointGen = b.decimal("point_gen", doc.PointGen)
	opts.CanGenPoints = b.flag("can_gen_points", doc.CanGenPoints)
	opts.EndGame = b.flag("end_game", doc.EndGame)

	content := mods.Content{Name: doc.Name, Options: opts}
	for i, l := range doc.Layers {
		content.Layers = append(content.Layers, b.layer(fmt.Sprintf("layers[%d]", i), l))
	}
	return content
}

func (b *builder) layer(path string, l layerDoc) *layer.Definition {
	path += "(" + l.ID + ")"
	def := &layer.Definition{
		ID:       l.ID,
		Name:     l.Name,
		Symbol:   l.Symbol,
		Resource: l.Resource,
		Row:      l.Row,
		Side:     l.Side,

		BaseAmount: b.decimal(path+".base_amount", l.BaseAmount),

		StartUnlocked: l.StartUnlocked,
		StartPoints:   bignum.Zero,

		Unlocked:            b.flag(path+".unlocked", l.Unlocked),
		CanReset:            b.flag(path+".can_reset", l.CanReset),
		ResetsNothing:       b.flag(path+".resets_nothing", l.ResetsNothing),
		PassiveGeneration:   b.decimal(path+".passive_generation", l.PassiveGeneration),
		AutoPrestige:        b.flag(path+".auto_prestige", l.AutoPrestige),
		AutoUpgrade:         b.flag(path+".auto_upgrade", l.AutoUpgrade),
		ShouldNotify:        b.flag(path+".should_notify", l.ShouldNotify),
		IncreaseUnlockOrder: l.IncreaseUnlockOrder,

		Hooks: layer.Hooks{
			BeforePrestige: b.beforePrestige(path+".hooks.before_prestige", l.Hooks.BeforePrestige),
			Reset:          b.resetHook(path+".hooks.reset", l.Hooks.Reset),
			Update:         b.updateHook(path+".hooks.update", l.Hooks.Update),
			Automate:       b.hook(path+".hooks.automate", l.Hooks.Automate),
		},
	}
	if def.Name == "" {
		def.Name = l.ID
	}
	if l.StartPoints != nil {
		if d, err := literal(l.StartPoints); err != nil {
			b.fail(path+".start_points", err)
		} else {
			def.StartPoints = d
		}
	}
	if len(l.Fields) > 0 {
		def.StartFields = make(map[string]bignum.Decimal, len(l.Fields))
		for name, v := range l.Fields {
			d, err := literal(v)
			if err != nil {
				b.fail(path+".fields."+name, err)
				continue
			}
			def.StartFields[name] = d
		}
	}
	if len(l.Grid) > 0 {
		def.StartGrid = make(map[int]bignum.Decimal, len(l.Grid))
		for key, v := range l.Grid {
			id, err := strconv.Atoi(key)
			if err != nil {
				b.fail(path+".grid."+key, err)
				continue
			}
			d, err := literal(v)
			if err != nil {
				b.fail(path+".grid."+key, err)
				continue
			}
			def.StartGrid[id] = d
		}
	}

	def.Formula = b.formula(path, l)

	for _, u := range l.Upgrades {
		p := fmt.Sprintf("%s.upgrades[%d]", path, u.ID)
		def.Upgrades = append(def.Upgrades, layer.Upgrade{
			ID:            u.ID,
			Title:         u.Title,
			Description:   u.Description,
			Cost:          b.decimal(p+".cost", u.Cost),
			CurrencyLayer: u.CurrencyLayer,
			Currency:      u.Currency,
			Unlocked:      b.flag(p+".unlocked", u.Unlocked),
			Effect:        b.decimal(p+".effect", u.Effect),
			OnPurchase:    b.hook(p+".on_purchase", u.OnPurchase),
		})
	}
	for _, u := range l.Buyables {
		p := fmt.Sprintf("%s.buyables[%d]", path, u.ID)
		def.Buyables = append(def.Buyables, layer.Buyable{
			ID:        u.ID,
			Title:     u.Title,
			Cost:      b.decimal(p+".cost", u.Cost),
			Unlocked:  b.flag(p+".unlocked", u.Unlocked),
			CanAfford: b.flag(p+".can_afford", u.CanAfford),
			Buy:       b.hook(p+".buy", u.Buy),
			Effect:    b.decimal(p+".effect", u.Effect),
		})
	}
	for _, u := range l.Clickables {
		p := fmt.Sprintf("%s.clickables[%d]", path, u.ID)
		def.Clickables = append(def.Clickables, layer.Clickable{
			ID:       u.ID,
			Title:    u.Title,
			Initial:  u.Initial,
			Unlocked: b.flag(p+".unlocked", u.Unlocked),
			CanClick: b.flag(p+".can_click", u.CanClick),
			OnClick:  b.hook(p+".on_click", u.OnClick),
		})
	}
	for _, u := range l.Challenges {
		p := fmt.Sprintf("%s.challenges[%d]", path, u.ID)
		def.Challenges = append(def.Challenges, layer.Challenge{
			ID:                   u.ID,
			Name:                 u.Name,
			Goal:                 b.decimal(p+".goal", u.Goal),
			CompletionLimit:      u.CompletionLimit,
			Unlocked:             b.flag(p+".unlocked", u.Unlocked),
			Reward:               b.decimal(p+".reward", u.Reward),
			CanComplete:          b.flag(p+".can_complete", u.CanComplete),
			CurrencyLocation:     b.currencyLocation(p+".currency_location", u.CurrencyLocation),
			CurrencyLayer:        u.CurrencyLayer,
			CurrencyInternalName: u.Currency,
			OnEnter:              b.hook(p+".on_enter", u.OnEnter),
			OnComplete:           b.hook(p+".on_complete", u.OnComplete),
			OnExit:               b.hook(p+".on_exit", u.OnExit),
		})
	}
	for _, u := range l.Milestones {
		def.Milestones = append(def.Milestones, layer.Milestone{
			ID:          u.ID,
			Requirement: u.Requirement,
			Done:        b.flag(fmt.Sprintf("%s.milestones[%d].done", path, u.ID), u.Done),
		})
	}
	for _, u := range l.Achievements {
		p := fmt.Sprintf("%s.achievements[%d]", path, u.ID)
		def.Achievements = append(def.Achievements, layer.Achievement{
			ID:         u.ID,
			Name:       u.Name,
			Done:       b.flag(p+".done", u.Done),
			OnComplete: b.hook(p+".on_complete", u.OnComplete),
		})
	}
	return def
}

func (b *builder) formula(path string, l layerDoc) layer.Formula {
	typ, ok := layer.ParseType(l.Type)
	if !ok {
		b.fail(path+".type", fmt.Errorf("unknown layer type %q", l.Type))
		return layer.None{}
	}
	switch typ {
	case layer.TypeNormal:
		return layer.Normal{
			Requirement:  b.decimal(path+".requirement", l.Requirement),
			Exponent:     b.decimal(path+".exponent", l.Exponent),
			GainMult:     b.decimal(path+".gain_mult", l.GainMult),
			GainExp:      b.decimal(path+".gain_exp", l.GainExp),
			DirectMult:   b.decimal(path+".direct_mult", l.DirectMult),
			Softcap:      b.decimal(path+".softcap", l.Softcap),
			SoftcapPower: b.decimal(path+".softcap_power", l.SoftcapPower),
			RoundUpCost:  l.RoundUpCost,
		}
	case layer.TypeStatic:
		return layer.Static{
			Requirement: b.decimal(path+".requirement", l.Requirement),
			Base:        b.decimal(path+".base", l.Base),
			Exponent:    b.decimal(path+".exponent", l.Exponent),
			GainMult:    b.decimal(path+".gain_mult", l.GainMult),
			GainExp:     b.decimal(path+".gain_exp", l.GainExp),
			DirectMult:  b.decimal(path+".direct_mult", l.DirectMult),
			CanBuyMax:   b.flag(path+".can_buy_max", l.CanBuyMax),
			RoundUpCost: l.RoundUpCost,
		}
	case layer.TypeCustom:
		if l.Gain == "" {
			b.fail(path+".gain", errors.New("custom layers need a gain function"))
		}
		return layer.Custom{
			Gain:        b.gainFunc(path+".gain", l.Gain),
			Next:        b.nextFunc(path+".next", l.Next),
			Requirement: b.decimal(path+".requirement", l.Requirement),
		}
	}
	return layer.None{}
}

// literal converts a decoded CUE number or decimal string.
func literal(v any) (bignum.Decimal, error) {
	switch x := v.(type) {
	case string:
		return bignum.Parse(x)
	case float64:
		return bignum.FromFloat(x), nil
	case int:
		return bignum.FromInt(int64(x)), nil
	case int64:
		return bignum.FromInt(x), nil
	case *big.Int:
		f, _ := new(big.Float).SetInt(x).Float64()
		return bignum.FromFloat(f), nil
	case *big.Float:
		f, _ := x.Float64()
		return bignum.FromFloat(f), nil
	}
	return bignum.NaN(), fmt.Errorf("not a number: %v (%T)", v, v)
}

func (b *builder) fn(path, ref string) starlark.Callable {
	name, ok := isRef(ref)
	if !ok {
		b.fail(path, fmt.Errorf("%q is not a function reference", ref))
		return nil
	}
	fn, err := b.script.Func(name)
	if err != nil {
		b.fail(path, err)
		return nil
	}
	return fn
}

func (b *builder) decimal(path string, v any) layer.Value[bignum.Decimal] {
	if v == nil {
		return layer.Value[bignum.Decimal]{}
	}
	if s, ok := v.(string); ok {
		if _, ok := isRef(s); ok {
			fn := b.fn(path, s)
			script := b.script
			return layer.Fallible(func(c layer.Context) (bignum.Decimal, error) {
				out, err := script.Call(c, fn)
				if err != nil {
					return bignum.NaN(), err
				}
				return ToDecimal(out)
			})
		}
	}
	d, err := literal(v)
	if err != nil {
		b.fail(path, err)
	}
	return layer.Lit(d)
}

func (b *builder) flag(path string, v any) layer.Value[bool] {
	switch x := v.(type) {
	case nil:
		return layer.Value[bool]{}
	case bool:
		return layer.Lit(x)
	case string:
		fn := b.fn(path, x)
		script := b.script
		return layer.Fallible(func(c layer.Context) (bool, error) {
			out, err := script.Call(c, fn)
			if err != nil {
				return false, err
			}
			return bool(out.Truth()), nil
		})
	}
	b.fail(path, fmt.Errorf("not a flag: %v (%T)", v, v))
	return layer.Value[bool]{}
}

func (b *builder) hook(path, ref string) func(layer.Context) error {
	if ref == "" {
		return nil
	}
	fn := b.fn(path, ref)
	script := b.script
	return func(c layer.Context) error {
		_, err := script.Call(c, fn)
		return err
	}
}

func (b *builder) updateHook(path, ref string) func(layer.Context, float64) error {
	if ref == "" {
		return nil
	}
	fn := b.fn(path, ref)
	script := b.script
	return func(c layer.Context, diff float64) error {
		_, err := script.Call(c, fn, starlark.Float(diff))
		return err
	}
}

func (b *builder) beforePrestige(path, ref string) func(layer.Context, bignum.Decimal) error {
	if ref == "" {
		return nil
	}
	fn := b.fn(path, ref)
	script := b.script
	return func(c layer.Context, gain bignum.Decimal) error {
		_, err := script.Call(c, fn, Decimal{gain})
		return err
	}
}

func (b *builder) resetHook(path, ref string) func(layer.Context, string) error {
	if ref == "" {
		return nil
	}
	fn := b.fn(path, ref)
	script := b.script
	return func(c layer.Context, trigger string) error {
		_, err := script.Call(c, fn, starlark.String(trigger))
		return err
	}
}

func (b *builder) gainFunc(path, ref string) func(layer.Context) (bignum.Decimal, error) {
	if ref == "" {
		return nil
	}
	fn := b.fn(path, ref)
	script := b.script
	return func(c layer.Context) (bignum.Decimal, error) {
		out, err := script.Call(c, fn)
		if err != nil {
			return bignum.NaN(), err
		}
		return ToDecimal(out)
	}
}

func (b *builder) nextFunc(path, ref string) func(layer.Context, bool) (bignum.Decimal, error) {
	if ref == "" {
		return nil
	}
	fn := b.fn(path, ref)
	script := b.script
	return func(c layer.Context, canMax bool) (bignum.Decimal, error) {
		out, err := script.Call(c, fn, starlark.Bool(canMax))
		if err != nil {
			return bignum.NaN(), err
		}
		return ToDecimal(out)
	}
}

// currencyLocation adapts a script function returning a dict of named
// amounts.
func (b *builder) currencyLocation(path, ref string) func(layer.Context) (map[string]bignum.Decimal, error) {
	if ref == "" {
		return nil
	}
	fn := b.fn(path, ref)
	script := b.script
	return func(c layer.Context) (map[string]bignum.Decimal, error) {
		out, err := script.Call(c, fn)
		if err != nil {
			return nil, err
		}
		dict, ok := out.(*starlark.Dict)
		if !ok {
			return nil, fmt.Errorf("currency location must return a dict, got %s", out.Type())
		}
		m := make(map[string]bignum.Decimal, dict.Len())
		for _, item := range dict.Items() {
			k, ok := starlark.AsString(item[0])
			if !ok {
				return nil, fmt.Errorf("currency location key %s is not a string", item[0])
			}
			if m[k], err = ToDecimal(item[1]); err != nil {
				return nil, fmt.Errorf("currency location %q: %w", k, err)
			}
		}
		return m, nil
	}
}

// Functions lists the script's top-level functions, for diagnostics.
func (s *Script) Functions() []string {
	if s == nil {
		return nil
	}
	var names []string
	for name, v := range s.globals {
		if _, ok := v.(starlark.Callable); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
