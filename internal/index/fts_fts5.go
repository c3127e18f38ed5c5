//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/starford/presetcat/internal/models"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS presets_fts USING fts5(
			path UNINDEXED,
			display_name,
			cluster,
			grp,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, p models.Preset) error {
	_, _ = tx.Exec(`DELETE FROM presets_fts WHERE path = ?`, p.Path)
	_, err := tx.Exec(`INSERT INTO presets_fts (path, display_name, cluster, grp) VALUES (?, ?, ?, ?)`,
		p.Path, p.DisplayName, p.Cluster, p.Group)
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, path string) {
	_, _ = tx.Exec(`DELETE FROM presets_fts WHERE path = ?`, path)
}

func ftsClear(tx *sql.Tx) {
	_, _ = tx.Exec(`DELETE FROM presets_fts`)
}

// phrase quotes query as a single FTS5 phrase so user input never parses as
// query syntax.
func phrase(query string) string {
	return `"` + strings.ReplaceAll(query, `"`, `""`) + `"`
}

// Search performs an FTS5 search over display name, cluster and group.
func (db *DB) Search(query string, limit int) ([]models.Preset, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT p.path, p.display_name, p.filename, p.cluster, p.grp, p.checksum, p.updated_at
		FROM presets_fts f
		JOIN presets p ON p.path = f.path
		WHERE presets_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, phrase(query), limit)
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
