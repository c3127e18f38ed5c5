//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"

	"github.com/starford/presetcat/internal/models"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; search uses LIKE on the presets table.
	return nil
}

func ftsUpsert(_ *sql.Tx, _ models.Preset) error { return nil }

func ftsDelete(_ *sql.Tx, _ string) {}

func ftsClear(_ *sql.Tx) {}

// Search performs a LIKE-based search over display name, cluster and group
// (fallback when FTS5 is not compiled in).
func (db *DB) Search(query string, limit int) ([]models.Preset, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + query + "%"
	rows, err := db.conn.Query(`
		SELECT `+presetColumns+`
		FROM presets
		WHERE display_name LIKE ? OR cluster LIKE ? OR grp LIKE ?
		ORDER BY display_name
		LIMIT ?
	`, like, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	out := []models.Preset{}
	for rows.Next() {
		p, err := scanPreset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
