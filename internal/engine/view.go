package engine

import (
	"github.com/talgya/retribution/internal/bignum"
	"github.com/talgya/retribution/internal/layer"
	"github.com/talgya/retribution/internal/notation"
)

// Status is the read-only summary handed to the display boundary.
type Status struct {
	ID            string          `json:"id"`
	Tick          uint64          `json:"tick"`
	Points        string          `json:"points"`
	PointsExact   string          `json:"points_exact"`
	Display       notation.Result `json:"display"`
	PointGen      string          `json:"point_gen"`
	TotalTime     float64         `json:"total_time"`
	PlayTime      string          `json:"play_time"`
	Retributions  int             `json:"retributions"`
	GameEnded     bool            `json:"game_ended"`
	KeepGoing     bool            `json:"keep_going"`
	DevSpeed      float64         `json:"dev_speed"`
	OfflineRemain float64         `json:"offline_remain"`
	Layers        []LayerSummary  `json:"layers"`
}

// LayerSummary is the short form of a layer in Status.
type LayerSummary struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Row      int    `json:"row"`
	Side     string `json:"side,omitempty"`
	Unlocked bool   `json:"unlocked"`
	Points   string `json:"points"`
	CanReset bool   `json:"can_reset"`
	Notify   bool   `json:"notify"`
}

// LayerView is the full read-only view of one layer.
type LayerView struct {
	LayerSummary
	Symbol          string            `json:"symbol"`
	Resource        string            `json:"resource"`
	Type            string            `json:"type"`
	PointsExact     string            `json:"points_exact"`
	Best            string            `json:"best"`
	Total           string            `json:"total"`
	BaseAmount      string            `json:"base_amount"`
	ResetGain       string            `json:"reset_gain"`
	NextAt          string            `json:"next_at"`
	NextAtMax       string            `json:"next_at_max"`
	ResetTime       float64           `json:"reset_time"`
	UnlockOrder     int               `json:"unlock_order"`
	ActiveChallenge int               `json:"active_challenge"`
	Upgrades        []UpgradeView     `json:"upgrades"`
	Buyables        []BuyableView     `json:"buyables"`
	Challenges      []ChallengeView   `json:"challenges"`
	Milestones      []int             `json:"milestones"`
	Achievements    []int             `json:"achievements"`
	Fields          map[string]string `json:"fields,omitempty"`
}

// UpgradeView describes one upgrade.
type UpgradeView struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Cost        string `json:"cost"`
	Effect      string `json:"effect"`
	Unlocked    bool   `json:"unlocked"`
	Bought      bool   `json:"bought"`
	CanAfford   bool   `json:"can_afford"`
}

// BuyableView describes one buyable.
type BuyableView struct {
	ID     int    `json:"id"`
	Title  string `json:"title"`
	Amount string `json:"amount"`
	Cost   string `json:"cost"`
	Effect string `json:"effect"`
}

// ChallengeView describes one challenge.
type ChallengeView struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Goal        string `json:"goal"`
	Completions int    `json:"completions"`
	Limit       int    `json:"limit"`
	Active      bool   `json:"active"`
	CanComplete bool   `json:"can_complete"`
}

// Status summarises the whole game.
func (g *Game) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	p := g.Player
	f := g.opts.Formatter

	st := Status{
		ID:           p.ID,
		Tick:         g.LastTick,
		Points:       f.Format(p.Points),
		PointsExact:  p.Points.String(),
		Display:      g.display.Deduce(p.Points, p.Retributions),
		PointGen:     f.Format(g.pointGen()),
		TotalTime:    p.TotalTime,
		PlayTime:     PlayTime(p.TotalTime),
		Retributions: p.Retributions,
		GameEnded:    p.GameEnded,
		KeepGoing:    p.KeepGoing,
		DevSpeed:     p.DevSpeed,
	}
	if p.OffTime != nil {
		st.OfflineRemain = p.OffTime.Remain
	}
	for _, id := range g.Registry.Ascending() {
		def, _ := g.Registry.Get(id)
		st.Layers = append(st.Layers, g.summary(def))
	}
	return st
}

func (g *Game) pointGen() bignum.Decimal {
	if !g.canGenPoints() {
		return bignum.Zero
	}
	return g.dec(g.ctx(""), "pointGen", g.opts.PointGen, bignum.Zero)
}

func (g *Game) summary(def *layer.Definition) LayerSummary {
	data := g.Player.Layer(def.ID)
	d := g.derivedOf(def.ID)
	return LayerSummary{
		ID:       def.ID,
		Name:     def.Name,
		Row:      def.Row,
		Side:     def.Side,
		Unlocked: data.Unlocked,
		Points:   g.opts.Formatter.Format(data.Points),
		CanReset: d.CanReset,
		Notify:   d.Notify,
	}
}

// Layers returns the view of every layer in ascending row order.
func (g *Game) Layers() []LayerView {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []LayerView
	for _, id := range g.Registry.Ascending() {
		def, _ := g.Registry.Get(id)
		out = append(out, g.layerView(def))
	}
	return out
}

// Layer returns the view of one layer.
func (g *Game) Layer(id string) (LayerView, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	def, ok := g.Registry.Get(id)
	if !ok {
		return LayerView{}, false
	}
	return g.layerView(def), true
}

func (g *Game) layerView(def *layer.Definition) LayerView {
	f := g.opts.Formatter
	data := g.Player.Layer(def.ID)
	d := g.derivedOf(def.ID)
	c := g.ctx(def.ID)

	v := LayerView{
		LayerSummary:    g.summary(def),
		Symbol:          def.Symbol,
		Resource:        def.Resource,
		Type:            def.Type().String(),
		PointsExact:     data.Points.String(),
		Best:            f.Format(data.Best),
		Total:           f.Format(data.Total),
		BaseAmount:      f.Format(d.Amount),
		ResetGain:       f.Format(d.ResetGain),
		NextAt:          f.Format(d.NextAt),
		NextAtMax:       f.Format(d.NextAtMax),
		ResetTime:       data.ResetTime,
		UnlockOrder:     data.UnlockOrder,
		ActiveChallenge: data.ActiveChallenge,
		Milestones:      append([]int{}, data.Milestones...),
		Achievements:    append([]int{}, data.Achievements...),
	}
	for i := range def.Upgrades {
		u := &def.Upgrades[i]
		v.Upgrades = append(v.Upgrades, UpgradeView{
			ID:          u.ID,
			Title:       u.Title,
			Description: u.Description,
			Cost:        f.Format(g.dec(c, "cost", u.Cost, bignum.Inf())),
			Effect:      f.Format(g.upgradeEffect(def.ID, u.ID)),
			Unlocked:    g.flag(c, "upgradeUnlocked", u.Unlocked, true),
			Bought:      data.HasUpgrade(u.ID),
			CanAfford:   g.canAffordUpgrade(def.ID, u),
		})
	}
	for _, b := range def.Buyables {
		v.Buyables = append(v.Buyables, BuyableView{
			ID:     b.ID,
			Title:  b.Title,
			Amount: f.Format(data.Buyable(b.ID)),
			Cost:   f.Format(g.dec(c, "cost", b.Cost, bignum.Inf())),
			Effect: f.Format(g.buyableEffect(def.ID, b.ID)),
		})
	}
	for _, ch := range def.Challenges {
		v.Challenges = append(v.Challenges, ChallengeView{
			ID:          ch.ID,
			Name:        ch.Name,
			Goal:        f.Format(g.dec(c, "goal", ch.Goal, bignum.Inf())),
			Completions: data.Completions(ch.ID),
			Limit:       ch.CompletionLimit,
			Active:      data.ActiveChallenge == ch.ID,
			CanComplete: g.canComplete(def.ID, ch.ID),
		})
	}
	if len(data.Fields) > 0 {
		v.Fields = make(map[string]string, len(data.Fields))
		for k, x := range data.Fields {
			v.Fields[k] = f.Format(x)
		}
	}
	return v
}
