package modpack

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/talgya/retribution/internal/bignum"
	"github.com/talgya/retribution/internal/layer"
	"github.com/talgya/retribution/internal/state"
)

// maxSteps bounds a single callback so a runaway loop cannot stall a tick.
const maxSteps = 1_000_000

const ctxKey = "retribution.ctx"

// Script is a compiled Starlark module whose top-level functions back the
// computed values and hooks of a mod.
type Script struct {
	file    string
	globals starlark.StringDict
}

func compileScript(file, src string) (*Script, error) {
	thread := &starlark.Thread{Name: "load " + file, Print: printer}
	thread.SetMaxExecutionSteps(maxSteps)
	globals, err := starlark.ExecFileOptions(&syntax.FileOptions{}, thread, file, src, predeclared())
	if err != nil {
		return nil, fmt.Errorf("script %s: %w", file, err)
	}
	globals.Freeze()
	return &Script{file: file, globals: globals}, nil
}

func printer(t *starlark.Thread, msg string) {
	slog.Info("mod script", "thread", t.Name, "msg", msg)
}

// Func looks up a top-level function.
func (s *Script) Func(name string) (starlark.Callable, error) {
	if s == nil {
		return nil, fmt.Errorf("function %q: mod has no script", name)
	}
	v, ok := s.globals[name]
	if !ok {
		return nil, fmt.Errorf("function %q not defined in %s", name, s.file)
	}
	fn, ok := v.(starlark.Callable)
	if !ok {
		return nil, fmt.Errorf("%q in %s is a %s, not a function", name, s.file, v.Type())
	}
	return fn, nil
}

// Call runs fn with c available to the builtins.
func (s *Script) Call(c layer.Context, fn starlark.Callable, args ...starlark.Value) (starlark.Value, error) {
	thread := &starlark.Thread{Name: fn.Name(), Print: printer}
	thread.SetLocal(ctxKey, c)
	thread.SetMaxExecutionSteps(maxSteps)
	return starlark.Call(thread, fn, starlark.Tuple(args), nil)
}

// Decimal wraps bignum.Decimal as a Starlark value.
type Decimal struct{ V bignum.Decimal }

var (
	_ starlark.HasBinary  = Decimal{}
	_ starlark.HasUnary   = Decimal{}
	_ starlark.HasAttrs   = Decimal{}
	_ starlark.Comparable = Decimal{}
)

func (d Decimal) String() string        { return d.V.String() }
func (Decimal) Type() string            { return "decimal" }
func (Decimal) Freeze()                 {}
func (d Decimal) Truth() starlark.Bool  { return starlark.Bool(!d.V.IsZero()) }
func (Decimal) Hash() (uint32, error)   { return 0, errors.New("unhashable type: decimal") }
func (d Decimal) AttrNames() []string   { return methodNames }

func (d Decimal) Binary(op syntax.Token, y starlark.Value, side starlark.Side) (starlark.Value, error) {
	o, err := ToDecimal(y)
	if err != nil {
		return nil, nil
	}
	a, b := d.V, o
	if side == starlark.Right {
		a, b = b, a
	}
	switch op {
	case syntax.PLUS:
		return Decimal{a.Add(b)}, nil
	case syntax.MINUS:
		return Decimal{a.Sub(b)}, nil
	case syntax.STAR:
		return Decimal{a.Mul(b)}, nil
	case syntax.SLASH:
		return Decimal{a.Div(b)}, nil
	}
	return nil, nil
}

func (d Decimal) Unary(op syntax.Token) (starlark.Value, error) {
	switch op {
	case syntax.MINUS:
		return Decimal{d.V.Neg()}, nil
	case syntax.PLUS:
		return d, nil
	}
	return nil, nil
}

func (d Decimal) CompareSameType(op syntax.Token, y starlark.Value, _ int) (bool, error) {
	c := d.V.Cmp(y.(Decimal).V)
	switch op {
	case syntax.EQL:
		return c == 0, nil
	case syntax.NEQ:
		return c != 0, nil
	case syntax.LT:
		return c < 0, nil
	case syntax.LE:
		return c <= 0, nil
	case syntax.GT:
		return c > 0, nil
	case syntax.GE:
		return c >= 0, nil
	}
	return false, fmt.Errorf("decimal: unsupported comparison %s", op)
}

type method func(d bignum.Decimal, args starlark.Tuple) (starlark.Value, error)

func unary(f func(bignum.Decimal) bignum.Decimal) method {
	return func(d bignum.Decimal, args starlark.Tuple) (starlark.Value, error) {
		if len(args) != 0 {
			return nil, fmt.Errorf("takes no arguments (%d given)", len(args))
		}
		return Decimal{f(d)}, nil
	}
}

func binary(f func(a, b bignum.Decimal) bignum.Decimal) method {
	return func(d bignum.Decimal, args starlark.Tuple) (starlark.Value, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("takes exactly one argument (%d given)", len(args))
		}
		o, err := ToDecimal(args[0])
		if err != nil {
			return nil, err
		}
		return Decimal{f(d, o)}, nil
	}
}

func predicate(f func(a, b bignum.Decimal) bool) method {
	return func(d bignum.Decimal, args starlark.Tuple) (starlark.Value, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("takes exactly one argument (%d given)", len(args))
		}
		o, err := ToDecimal(args[0])
		if err != nil {
			return nil, err
		}
		return starlark.Bool(f(d, o)), nil
	}
}

var methods = map[string]method{
	"add":     binary(bignum.Decimal.Add),
	"sub":     binary(bignum.Decimal.Sub),
	"mul":     binary(bignum.Decimal.Mul),
	"div":     binary(bignum.Decimal.Div),
	"pow":     binary(bignum.Decimal.Pow),
	"log":     binary(bignum.Decimal.Log),
	"root":    binary(bignum.Decimal.Root),
	"tetrate": binary(bignum.Decimal.Tetrate),
	"max":     binary(bignum.Decimal.Max),
	"min":     binary(bignum.Decimal.Min),
	"log10":   unary(bignum.Decimal.Log10),
	"sqrt":    unary(bignum.Decimal.Sqrt),
	"floor":   unary(bignum.Decimal.Floor),
	"ceil":    unary(bignum.Decimal.Ceil),
	"round":   unary(bignum.Decimal.Round),
	"abs":     unary(bignum.Decimal.Abs),
	"neg":     unary(bignum.Decimal.Neg),
	"gt":      predicate(bignum.Decimal.Gt),
	"gte":     predicate(bignum.Decimal.Gte),
	"lt":      predicate(bignum.Decimal.Lt),
	"lte":     predicate(bignum.Decimal.Lte),
	"eq":      predicate(bignum.Decimal.Eq),
	"float": func(d bignum.Decimal, _ starlark.Tuple) (starlark.Value, error) {
		return starlark.Float(d.Float64()), nil
	},
	"slog": func(d bignum.Decimal, _ starlark.Tuple) (starlark.Value, error) {
		return starlark.Float(d.Slog()), nil
	},
}

var methodNames = func() []string {
	names := make([]string, 0, len(methods))
	for k := range methods {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}()

func (d Decimal) Attr(name string) (starlark.Value, error) {
	m, ok := methods[name]
	if !ok {
		return nil, nil
	}
	return starlark.NewBuiltin(name, func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if len(kwargs) > 0 {
			return nil, fmt.Errorf("decimal.%s: unexpected keyword arguments", b.Name())
		}
		v, err := m(d.V, args)
		if err != nil {
			return nil, fmt.Errorf("decimal.%s: %w", b.Name(), err)
		}
		return v, nil
	}), nil
}

// ToDecimal converts numbers, numeric strings and decimals.
func ToDecimal(v starlark.Value) (bignum.Decimal, error) {
	switch x := v.(type) {
	case Decimal:
		return x.V, nil
	case starlark.String:
		return bignum.Parse(string(x))
	case starlark.Int, starlark.Float:
		f, _ := starlark.AsFloat(x)
		return bignum.FromFloat(f), nil
	}
	return bignum.NaN(), fmt.Errorf("cannot convert %s to decimal", v.Type())
}

func contextOf(thread *starlark.Thread) (layer.Context, error) {
	c, ok := thread.Local(ctxKey).(layer.Context)
	if !ok || c.Player == nil {
		return layer.Context{}, errors.New("game state is only available inside mod callbacks")
	}
	return c, nil
}

func layerData(c layer.Context, id string) (*state.LayerData, string, error) {
	if id == "" {
		id = c.Layer
	}
	d := c.Player.Layer(id)
	if d == nil {
		return nil, id, fmt.Errorf("unknown layer %q", id)
	}
	return d, id, nil
}

type builtinFunc func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error)

// withContext wraps a builtin that needs the game state.
func withContext(f func(c layer.Context, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error)) builtinFunc {
	return func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		c, err := contextOf(thread)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		return f(c, b, args, kwargs)
	}
}

// layerID reads the usual (layer, id) pair.
func layerID(b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (string, int, error) {
	var l string
	var id int
	err := starlark.UnpackArgs(b.Name(), args, kwargs, "layer", &l, "id", &id)
	return l, id, err
}

func effectBuiltin(get func(g layer.Game, l string, id int) bignum.Decimal) builtinFunc {
	return withContext(func(c layer.Context, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		l, id, err := layerID(b, args, kwargs)
		if err != nil {
			return nil, err
		}
		if c.Game == nil {
			return Decimal{bignum.One}, nil
		}
		return Decimal{get(c.Game, l, id)}, nil
	})
}

func predeclared() starlark.StringDict {
	fns := map[string]builtinFunc{
		"D": func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var x starlark.Value
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &x); err != nil {
				return nil, err
			}
			d, err := ToDecimal(x)
			if err != nil {
				return nil, fmt.Errorf("D: %w", err)
			}
			return Decimal{d}, nil
		},
		"tetrate10": func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var h starlark.Value
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &h); err != nil {
				return nil, err
			}
			f, ok := starlark.AsFloat(h)
			if !ok {
				return nil, fmt.Errorf("tetrate10: height must be a number, got %s", h.Type())
			}
			return Decimal{bignum.Tetrate10(f)}, nil
		},
		"layer": withContext(func(c layer.Context, _ *starlark.Builtin, _ starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
			return starlark.String(c.Layer), nil
		}),
		"points": withContext(func(c layer.Context, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
				return nil, err
			}
			return Decimal{c.Player.Points}, nil
		}),
		"retributions": withContext(func(c layer.Context, _ *starlark.Builtin, _ starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
			return starlark.MakeInt(c.Player.Retributions), nil
		}),
		"layer_points": withContext(func(c layer.Context, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var l string
			if err := starlark.UnpackArgs(b.Name(), args, kwargs, "layer?", &l); err != nil {
				return nil, err
			}
			d, _, err := layerData(c, l)
			if err != nil {
				return nil, err
			}
			return Decimal{d.Points}, nil
		}),
		"field": withContext(func(c layer.Context, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var l, name string
			if err := starlark.UnpackArgs(b.Name(), args, kwargs, "layer", &l, "name", &name); err != nil {
				return nil, err
			}
			d, id, err := layerData(c, l)
			if err != nil {
				return nil, err
			}
			v, ok := d.Field(name)
			if !ok {
				return nil, fmt.Errorf("layer %q has no field %q", id, name)
			}
			return Decimal{v}, nil
		}),
		"set_field": withContext(func(c layer.Context, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var l, name string
			var x starlark.Value
			if err := starlark.UnpackArgs(b.Name(), args, kwargs, "layer", &l, "name", &name, "value", &x); err != nil {
				return nil, err
			}
			d, _, err := layerData(c, l)
			if err != nil {
				return nil, err
			}
			v, err := ToDecimal(x)
			if err != nil {
				return nil, err
			}
			d.SetField(name, v)
			return starlark.None, nil
		}),
		"add_points": withContext(func(c layer.Context, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var l string
			var x starlark.Value
			if err := starlark.UnpackArgs(b.Name(), args, kwargs, "layer", &l, "value", &x); err != nil {
				return nil, err
			}
			d, _, err := layerData(c, l)
			if err != nil {
				return nil, err
			}
			v, err := ToDecimal(x)
			if err != nil {
				return nil, err
			}
			d.AddPoints(v)
			return starlark.None, nil
		}),
		"reset_time": withContext(func(c layer.Context, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var l string
			if err := starlark.UnpackArgs(b.Name(), args, kwargs, "layer?", &l); err != nil {
				return nil, err
			}
			d, _, err := layerData(c, l)
			if err != nil {
				return nil, err
			}
			return starlark.Float(d.ResetTime), nil
		}),
		"has_upgrade": withContext(func(c layer.Context, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			l, id, err := layerID(b, args, kwargs)
			if err != nil {
				return nil, err
			}
			return starlark.Bool(c.HasUpgrade(l, id)), nil
		}),
		"has_milestone": withContext(func(c layer.Context, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			l, id, err := layerID(b, args, kwargs)
			if err != nil {
				return nil, err
			}
			d, _, err := layerData(c, l)
			if err != nil {
				return nil, err
			}
			return starlark.Bool(d.HasMilestone(id)), nil
		}),
		"in_challenge": withContext(func(c layer.Context, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			l, id, err := layerID(b, args, kwargs)
			if err != nil {
				return nil, err
			}
			d, _, err := layerData(c, l)
			if err != nil {
				return nil, err
			}
			return starlark.Bool(id != state.NoChallenge && d.ActiveChallenge == id), nil
		}),
		"completions": withContext(func(c layer.Context, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			l, id, err := layerID(b, args, kwargs)
			if err != nil {
				return nil, err
			}
			d, _, err := layerData(c, l)
			if err != nil {
				return nil, err
			}
			return starlark.MakeInt(d.Completions(id)), nil
		}),
		"buyable": withContext(func(c layer.Context, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			l, id, err := layerID(b, args, kwargs)
			if err != nil {
				return nil, err
			}
			d, _, err := layerData(c, l)
			if err != nil {
				return nil, err
			}
			return Decimal{d.Buyable(id)}, nil
		}),
		"set_buyable": withContext(func(c layer.Context, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var l string
			var id int
			var x starlark.Value
			if err := starlark.UnpackArgs(b.Name(), args, kwargs, "layer", &l, "id", &id, "value", &x); err != nil {
				return nil, err
			}
			d, _, err := layerData(c, l)
			if err != nil {
				return nil, err
			}
			v, err := ToDecimal(x)
			if err != nil {
				return nil, err
			}
			if d.Buyables == nil {
				d.Buyables = make(map[int]bignum.Decimal)
			}
			d.Buyables[id] = v
			return starlark.None, nil
		}),
		"reset_gain": withContext(func(c layer.Context, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var l string
			if err := starlark.UnpackArgs(b.Name(), args, kwargs, "layer?", &l); err != nil {
				return nil, err
			}
			if l == "" {
				l = c.Layer
			}
			if c.Game == nil {
				return Decimal{bignum.Zero}, nil
			}
			return Decimal{c.Game.ResetGain(l)}, nil
		}),
		"upgrade_effect":   effectBuiltin(layer.Game.UpgradeEffect),
		"buyable_effect":   effectBuiltin(layer.Game.BuyableEffect),
		"challenge_effect": effectBuiltin(layer.Game.ChallengeEffect),
	}

	out := starlark.StringDict{
		"ZERO": Decimal{bignum.Zero},
		"ONE":  Decimal{bignum.One},
		"INF":  Decimal{bignum.Inf()},
	}
	for name, fn := range fns {
		out[name] = starlark.NewBuiltin(name, fn)
	}
	return out
}

// isRef reports whether s names a script function ("@name").
func isRef(s string) (string, bool) {
	name, ok := strings.CutPrefix(s, "@")
	return name, ok && name != ""
}
