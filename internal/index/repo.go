package index

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/starford/presetcat/internal/apperr"
	"github.com/starford/presetcat/internal/models"
)

// ListFilter narrows a catalog listing. Empty fields do not filter.
type ListFilter struct {
	Cluster string
	Group   string
	Limit   int
	Offset  int
}

const presetColumns = `path, display_name, filename, cluster, grp, checksum, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanPreset(s scanner) (models.Preset, error) {
	var p models.Preset
	err := s.Scan(&p.Path, &p.DisplayName, &p.Filename, &p.Cluster, &p.Group, &p.Checksum, &p.UpdatedAt)
	return p, err
}

func upsertTx(tx *sql.Tx, p models.Preset) error {
	_, err := tx.Exec(`
		INSERT INTO presets (`+presetColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			display_name = excluded.display_name,
			filename     = excluded.filename,
			cluster      = excluded.cluster,
			grp          = excluded.grp,
			checksum     = excluded.checksum,
			updated_at   = excluded.updated_at
	`, p.Path, p.DisplayName, p.Filename, p.Cluster, p.Group, p.Checksum, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert preset: %w", err)
	}
	return ftsUpsert(tx, p)
}

// Upsert inserts or replaces one preset and its search entry.
func (db *DB) Upsert(p models.Preset) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if err := upsertTx(tx, p); err != nil {
		return err
	}
	return tx.Commit()
}

// Replace swaps the whole catalog for presets in one transaction.
func (db *DB) Replace(presets []models.Preset) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`DELETE FROM presets`); err != nil {
		return fmt.Errorf("index: clear presets: %w", err)
	}
	ftsClear(tx)
	for _, p := range presets {
		if err := upsertTx(tx, p); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Delete removes a preset and its search entry.
func (db *DB) Delete(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, path)
	if _, err := tx.Exec(`DELETE FROM presets WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete preset: %w", err)
	}
	return tx.Commit()
}

// Get returns one preset by absolute path.
func (db *DB) Get(path string) (*models.Preset, error) {
	row := db.conn.QueryRow(`SELECT `+presetColumns+` FROM presets WHERE path = ?`, path)
	p, err := scanPreset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("index: get preset: %w", err)
	}
	return &p, nil
}

// List returns one page of presets ordered by display name, with the total
// number of matches.
func (db *DB) List(f ListFilter) ([]models.Preset, int, error) {
	var where []string
	var args []any
	if f.Cluster != "" {
		where = append(where, "cluster = ?")
		args = append(args, f.Cluster)
	}
	if f.Group != "" {
		where = append(where, "grp = ?")
		args = append(args, f.Group)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM presets`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count presets: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.conn.Query(`SELECT `+presetColumns+` FROM presets`+clause+
		` ORDER BY display_name LIMIT ? OFFSET ?`, append(args, limit, max(f.Offset, 0))...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list presets: %w", err)
	}
	defer rows.Close()

	out := []models.Preset{}
	for rows.Next() {
		p, err := scanPreset(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

// Facets returns the distinct clusters and groups with their preset counts.
func (db *DB) Facets() (clusters, groups []models.Facet, err error) {
	if clusters, err = db.facet("cluster"); err != nil {
		return nil, nil, err
	}
	if groups, err = db.facet("grp"); err != nil {
		return nil, nil, err
	}
	return clusters, groups, nil
}

func (db *DB) facet(column string) ([]models.Facet, error) {
	rows, err := db.conn.Query(`SELECT ` + column + `, count(*) FROM presets GROUP BY ` + column + ` ORDER BY ` + column)
	if err != nil {
		return nil, fmt.Errorf("index: facet %s: %w", column, err)
	}
	defer rows.Close()

	out := []models.Facet{}
	for rows.Next() {
		var f models.Facet
		if err := rows.Scan(&f.Value, &f.Count); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// AllChecksums returns the stored checksum of every indexed preset.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM presets`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}
