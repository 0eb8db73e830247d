// Package persistence provides SQLite-based save storage: one row per layer
// record, the event log and a key-value table for the global store.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/retribution/internal/bignum"
	"github.com/talgya/retribution/internal/engine"
	"github.com/talgya/retribution/internal/state"
)

// ErrNoSave is returned by LoadState when nothing has been saved yet.
var ErrNoSave = errors.New("no saved game")

// Meta keys.
const (
	MetaSaveID       = "save_id"
	MetaPoints       = "points"
	MetaTotalTime    = "total_time"
	MetaRetributions = "retributions"
	MetaDevSpeed     = "dev_speed"
	MetaGameEnded    = "game_ended"
	MetaKeepGoing    = "keep_going"
	MetaOfflineTime  = "offline_remain"
	MetaLastTick     = "last_tick"
	MetaLastSaved    = "last_saved"
)

// DB wraps a SQLite connection for save storage.
type DB struct {
	conn *sqlx.DB
	now  func() time.Time
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn, now: time.Now}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS layers (
		id TEXT PRIMARY KEY,
		data_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tick INTEGER NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL,
		meta_json TEXT NOT NULL DEFAULT '{}'
	);

	CREATE TABLE IF NOT EXISTS save_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_tick ON events(tick);
	`
	_, err := db.conn.Exec(schema)
	return err
}

type layerRow struct {
	ID       string `db:"id"`
	DataJSON string `db:"data_json"`
}

type eventRow struct {
	Tick        uint64 `db:"tick"`
	Description string `db:"description"`
	Category    string `db:"category"`
	MetaJSON    string `db:"meta_json"`
}

// SaveLayers writes every layer record (full replace).
func (db *DB) SaveLayers(tx *sqlx.Tx, layers map[string]*state.LayerData) error {
	if _, err := tx.Exec("DELETE FROM layers"); err != nil {
		return err
	}

	stmt, err := tx.Preparex("INSERT INTO layers (id, data_json) VALUES (?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for id, data := range layers {
		b, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("layer %s: %w", id, err)
		}
		if _, err := stmt.Exec(id, string(b)); err != nil {
			return err
		}
	}
	return nil
}

// SaveEvents appends events not yet stored. Events at the newest stored tick
// are rewritten, since more may have been emitted at that tick since.
func (db *DB) SaveEvents(tx *sqlx.Tx, events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}

	var newest sql.NullInt64
	if err := tx.Get(&newest, "SELECT MAX(tick) FROM events"); err != nil {
		return err
	}
	from := uint64(0)
	if newest.Valid {
		from = uint64(newest.Int64)
		if _, err := tx.Exec("DELETE FROM events WHERE tick = ?", from); err != nil {
			return err
		}
	}

	for _, e := range events {
		if newest.Valid && e.Tick < from {
			continue
		}
		meta, err := json.Marshal(e.Meta)
		if err != nil || e.Meta == nil {
			meta = []byte("{}")
		}
		_, err = tx.Exec(
			"INSERT INTO events (tick, description, category, meta_json) VALUES (?, ?, ?, ?)",
			e.Tick, e.Description, e.Category, string(meta),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// SaveMeta stores a key-value pair in save metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO save_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

func saveMetaTx(tx *sqlx.Tx, key, value string) error {
	_, err := tx.Exec("INSERT OR REPLACE INTO save_meta (key, value) VALUES (?, ?)", key, value)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM save_meta WHERE key = ?", key)
	return value, err
}

// SaveState performs a full save of the store, the new events and the tick.
func (db *DB) SaveState(p *state.Player, events []engine.Event, tick uint64) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := db.SaveLayers(tx, p.Layers); err != nil {
		return fmt.Errorf("save layers: %w", err)
	}
	if err := db.SaveEvents(tx, events); err != nil {
		return fmt.Errorf("save events: %w", err)
	}

	saved := db.now().UnixMilli()
	offline := 0.0
	if p.OffTime != nil {
		offline = p.OffTime.Remain
	}
	meta := map[string]string{
		MetaSaveID:       p.ID,
		MetaPoints:       p.Points.String(),
		MetaTotalTime:    strconv.FormatFloat(p.TotalTime, 'g', -1, 64),
		MetaRetributions: strconv.Itoa(p.Retributions),
		MetaDevSpeed:     strconv.FormatFloat(p.DevSpeed, 'g', -1, 64),
		MetaGameEnded:    strconv.FormatBool(p.GameEnded),
		MetaKeepGoing:    strconv.FormatBool(p.KeepGoing),
		MetaOfflineTime:  strconv.FormatFloat(offline, 'g', -1, 64),
		MetaLastTick:     strconv.FormatUint(tick, 10),
		MetaLastSaved:    strconv.FormatInt(saved, 10),
	}
	for k, v := range meta {
		if err := saveMetaTx(tx, k, v); err != nil {
			return fmt.Errorf("save meta %s: %w", k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	p.LastSaved = saved

	slog.Info("game saved", "id", p.ID, "layers", len(p.Layers), "tick", tick)
	return nil
}

// SaveGame checkpoints g and saves it.
func (db *DB) SaveGame(g *engine.Game) error {
	p, events, tick := g.Checkpoint()
	return db.SaveState(p, events, tick)
}

// HasSave reports whether a game has been saved.
func (db *DB) HasSave() bool {
	var count int
	if err := db.conn.Get(&count, "SELECT COUNT(*) FROM save_meta WHERE key = ?", MetaSaveID); err != nil {
		return false
	}
	return count > 0
}

// LoadState reads the saved store and the tick it was saved at.
func (db *DB) LoadState() (*state.Player, uint64, error) {
	if !db.HasSave() {
		return nil, 0, ErrNoSave
	}

	var rows []struct {
		Key   string `db:"key"`
		Value string `db:"value"`
	}
	if err := db.conn.Select(&rows, "SELECT key, value FROM save_meta"); err != nil {
		return nil, 0, fmt.Errorf("load meta: %w", err)
	}
	meta := make(map[string]string, len(rows))
	for _, r := range rows {
		meta[r.Key] = r.Value
	}

	p := state.NewPlayer()
	p.ID = meta[MetaSaveID]
	var err error
	if p.Points, err = bignum.Parse(meta[MetaPoints]); err != nil {
		return nil, 0, fmt.Errorf("load points: %w", err)
	}
	p.TotalTime, _ = strconv.ParseFloat(meta[MetaTotalTime], 64)
	p.Retributions, _ = strconv.Atoi(meta[MetaRetributions])
	if v, err := strconv.ParseFloat(meta[MetaDevSpeed], 64); err == nil {
		p.DevSpeed = v
	}
	p.GameEnded, _ = strconv.ParseBool(meta[MetaGameEnded])
	p.KeepGoing, _ = strconv.ParseBool(meta[MetaKeepGoing])
	if v, _ := strconv.ParseFloat(meta[MetaOfflineTime], 64); v > 0 {
		p.OffTime = &state.OfflineTime{Remain: v}
	}
	p.LastSaved, _ = strconv.ParseInt(meta[MetaLastSaved], 10, 64)
	tick, _ := strconv.ParseUint(meta[MetaLastTick], 10, 64)

	var layers []layerRow
	if err := db.conn.Select(&layers, "SELECT id, data_json FROM layers"); err != nil {
		return nil, 0, fmt.Errorf("load layers: %w", err)
	}
	for _, l := range layers {
		var data state.LayerData
		if err := json.Unmarshal([]byte(l.DataJSON), &data); err != nil {
			return nil, 0, fmt.Errorf("layer %s: %w", l.ID, err)
		}
		p.Layers[l.ID] = &data
	}

	slog.Info("game state loaded", "id", p.ID, "layers", len(p.Layers), "tick", tick)
	return p, tick, nil
}

// OfflineSeconds is the time passed since the last save.
func (db *DB) OfflineSeconds() float64 {
	v, err := db.GetMeta(MetaLastSaved)
	if err != nil {
		return 0
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return max(db.now().Sub(time.UnixMilli(ms)).Seconds(), 0)
}

// Clear removes the save, for a hard reset.
func (db *DB) Clear() error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, table := range []string{"layers", "events", "save_meta"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return tx.Commit()
}

// RecentEvents returns the most recent events, newest first.
func (db *DB) RecentEvents(limit int) ([]engine.Event, error) {
	var rows []eventRow
	err := db.conn.Select(&rows,
		"SELECT tick, description, category, meta_json FROM events ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}
	events := make([]engine.Event, 0, len(rows))
	for _, r := range rows {
		e := engine.Event{Tick: r.Tick, Description: r.Description, Category: r.Category}
		if r.MetaJSON != "" && r.MetaJSON != "{}" {
			_ = json.Unmarshal([]byte(r.MetaJSON), &e.Meta)
		}
		events = append(events, e)
	}
	return events, nil
}
