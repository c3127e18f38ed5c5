// Package backup writes ZIP archives of preset files.
package backup

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

const (
	namePrefix = "PresetCatalog_Backup_"
	nameLayout = "20060102_150405"
)

// FileName returns the archive name for a backup taken at t.
func FileName(t time.Time) string {
	return namePrefix + t.Format(nameLayout) + ".zip"
}

// Summary describes a finished archive.
type Summary struct {
	Path  string `json:"path"`
	Files int    `json:"files"`
	Bytes int64  `json:"bytes"`
}

// Create archives files into a new ZIP under dir. Entry names are relative to
// the parent of root, so the archive starts with the presets folder itself.
// A canceled or failed backup leaves no partial archive behind.
func Create(ctx context.Context, root string, files []string, dir string, now time.Time) (Summary, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Summary{}, fmt.Errorf("backup: mkdir: %w", err)
	}
	out := filepath.Join(dir, FileName(now))
	f, err := os.OpenFile(out, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return Summary{}, fmt.Errorf("backup: create archive: %w", err)
	}

	success := false
	zw := zip.NewWriter(f)
	defer func() {
		if !success {
			_ = zw.Close()
			_ = f.Close()
			_ = os.Remove(out)
		}
	}()

	base := filepath.Dir(root)
	sum := Summary{Path: out}
	for _, p := range files {
		if err := ctx.Err(); err != nil {
			return Summary{}, err
		}
		n, err := addFile(zw, base, p)
		if err != nil {
			return Summary{}, err
		}
		sum.Files++
		sum.Bytes += n
	}

	if err := zw.Close(); err != nil {
		return Summary{}, fmt.Errorf("backup: finish archive: %w", err)
	}
	if err := f.Sync(); err != nil {
		return Summary{}, fmt.Errorf("backup: fsync: %w", err)
	}
	if err := f.Close(); err != nil {
		return Summary{}, fmt.Errorf("backup: close archive: %w", err)
	}
	success = true
	return sum, nil
}

func addFile(zw *zip.Writer, base, path string) (int64, error) {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return 0, fmt.Errorf("backup: entry name for %s: %w", path, err)
	}
	src, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("backup: open %s: %w", path, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return 0, fmt.Errorf("backup: stat %s: %w", path, err)
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return 0, fmt.Errorf("backup: header %s: %w", path, err)
	}
	hdr.Name = filepath.ToSlash(rel)
	hdr.Method = zip.Deflate

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return 0, fmt.Errorf("backup: add %s: %w", path, err)
	}
	n, err := io.Copy(w, src)
	if err != nil {
		return 0, fmt.Errorf("backup: copy %s: %w", path, err)
	}
	return n, nil
}
