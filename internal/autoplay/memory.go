package autoplay

import (
	"encoding/json"
	"log/slog"
	"os"
)

const maxRecords = 50

// CycleRecord captures what happened in a single autoplay cycle.
type CycleRecord struct {
	Tick    uint64   `json:"tick"`
	Points  string   `json:"points"`
	Taken   []Action `json:"taken"`
	Refused int      `json:"refused"`
}

// CycleMemory manages a ring of recent cycle records, kept on disk between
// runs.
type CycleMemory struct {
	Path    string        `json:"-"`
	Records []CycleRecord `json:"records"`
}

// LoadMemory reads the memory file. Returns empty memory if not found.
func LoadMemory(path string) *CycleMemory {
	data, err := os.ReadFile(path)
	if err != nil {
		return &CycleMemory{Path: path}
	}
	var mem CycleMemory
	if err := json.Unmarshal(data, &mem); err != nil {
		slog.Warn("autoplay memory corrupted, starting fresh", "error", err)
		return &CycleMemory{Path: path}
	}
	mem.Path = path
	return &mem
}

// Save writes the memory to disk.
func (m *CycleMemory) Save() {
	if m.Path == "" {
		return
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		slog.Error("failed to marshal autoplay memory", "error", err)
		return
	}
	if err := os.WriteFile(m.Path, data, 0644); err != nil {
		slog.Error("failed to write autoplay memory", "error", err)
	}
}

// Record adds a cycle record, trimming to maxRecords.
func (m *CycleMemory) Record(r CycleRecord) {
	m.Records = append(m.Records, r)
	if len(m.Records) > maxRecords {
		m.Records = m.Records[len(m.Records)-maxRecords:]
	}
}

// Resets counts the resets taken on a layer across the remembered cycles.
func (m *CycleMemory) Resets(layer string) int {
	n := 0
	for _, r := range m.Records {
		for _, a := range r.Taken {
			if a.Kind == ActReset && a.Layer == layer {
				n++
			}
		}
	}
	return n
}
