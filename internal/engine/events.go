package engine

import "fmt"

// Event is a notable occurrence in a run: a reset, an unlock, a challenge
// completion and so on.
type Event struct {
	Tick        uint64         `json:"tick"`
	Description string         `json:"description"`
	Category    string         `json:"category"` // "reset", "unlock", "challenge", "purchase", "system"
	Meta        map[string]any `json:"meta,omitempty"`
}

// EmitEvent records an event and forwards it to OnEvent.
func (g *Game) EmitEvent(e Event) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.record(e)
}

func (g *Game) emit(category, desc string, meta map[string]any) {
	g.record(Event{Tick: g.LastTick, Description: desc, Category: category, Meta: meta})
}

func (g *Game) emitf(category string, meta map[string]any, format string, args ...any) {
	g.emit(category, fmt.Sprintf(format, args...), meta)
}

func (g *Game) record(e Event) {
	g.Events = append(g.Events, e)
	if n := len(g.Events); n > maxEvents {
		g.Events = g.Events[n-maxEvents:]
	}
	if g.OnEvent != nil {
		g.OnEvent(e)
	}
}

// RecentEvents returns up to n of the latest events, newest last.
func (g *Game) RecentEvents(n int) []Event {
	g.mu.Lock()
	defer g.mu.Unlock()
	if n <= 0 || n > len(g.Events) {
		n = len(g.Events)
	}
	out := make([]Event, n)
	copy(out, g.Events[len(g.Events)-n:])
	return out
}
