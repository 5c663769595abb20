package results

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// History keeps a local index of completed sweeps so past runs can be
// listed without scanning artifact files.
type History struct {
	db *sql.DB
}

const historySchema = `
CREATE TABLE IF NOT EXISTS sweeps (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	tag         TEXT NOT NULL,
	preset      TEXT NOT NULL,
	nclients    INTEGER NOT NULL,
	created_at  TEXT NOT NULL,
	sha         TEXT NOT NULL,
	series_json TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS sweeps_tag ON sweeps (tag);
`

func OpenHistory(path string) (*History, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open history db")
	}
	if _, err := db.Exec(historySchema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "init history schema")
	}
	return &History{db: db}, nil
}

func (h *History) Close() error { return h.db.Close() }

type SweepEntry struct {
	ID        int64
	Tag       string
	Preset    string
	NClients  int
	CreatedAt time.Time
	SHA       string
	Series    []string
}

func (h *History) Record(tag, preset string, nclients int, sha string, series []string) error {
	names, err := json.Marshal(series)
	if err != nil {
		return errors.Wrap(err, "encode series names")
	}
	_, err = h.db.Exec(
		`INSERT INTO sweeps (tag, preset, nclients, created_at, sha, series_json) VALUES (?, ?, ?, ?, ?, ?)`,
		tag, preset, nclients, time.Now().Format(time.RFC3339), sha, string(names))
	return errors.Wrap(err, "record sweep")
}

func (h *History) List(limit int) ([]SweepEntry, error) {
	rows, err := h.db.Query(
		`SELECT id, tag, preset, nclients, created_at, sha, series_json
		 FROM sweeps ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list sweeps")
	}
	defer rows.Close()

	var out []SweepEntry
	for rows.Next() {
		var e SweepEntry
		var created, names string
		if err := rows.Scan(&e.ID, &e.Tag, &e.Preset, &e.NClients, &created, &e.SHA, &names); err != nil {
			return nil, errors.Wrap(err, "scan sweep row")
		}
		if t, err := time.Parse(time.RFC3339, created); err == nil {
			e.CreatedAt = t
		}
		if err := json.Unmarshal([]byte(names), &e.Series); err != nil {
			return nil, errors.Wrap(err, "decode series names")
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
