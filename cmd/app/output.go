package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/starford/presetcat/internal/engine"
	"github.com/starford/presetcat/internal/models"
)

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// newCLILogger logs to stderr: text for a person at a terminal, JSON when
// the output is captured.
func newCLILogger(level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if isTerminal(os.Stderr) {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

// progressPrinter redraws a done/total counter on a terminal and stays quiet
// otherwise.
func progressPrinter(w io.Writer) engine.ProgressFunc {
	if !isTerminal(w) {
		return nil
	}
	return func(done, total int) {
		fmt.Fprintf(w, "\rprocessed %d/%d", done, total)
		if done == total {
			fmt.Fprintln(w)
		}
	}
}

func presetRows(presets []models.Preset) [][]string {
	rows := make([][]string, 0, len(presets))
	for _, p := range presets {
		rows = append(rows, []string{p.DisplayName, p.Cluster, p.Group})
	}
	return rows
}

func renderPresets(presets []models.Preset) string {
	return renderTable([]string{"Preset", "Cluster", "Group"}, presetRows(presets), nil)
}

func renderSuggestions(root string, suggestions []models.Suggestion) string {
	rows := make([][]string, 0, len(suggestions))
	for _, s := range suggestions {
		rows = append(rows, []string{
			displayPath(root, s.Path),
			change(s.CurrentCluster, s.SuggestedCluster, s.NeedsClusterUpdate),
			change(s.CurrentGroup, s.SuggestedGroup, s.NeedsGroupUpdate),
		})
	}
	return renderTable([]string{"Preset", "Cluster", "Group"}, rows, nil)
}

func change(current, suggested string, needed bool) string {
	if !needed {
		return current
	}
	if current == "" {
		current = "(none)"
	}
	return current + " -> " + suggested
}

func displayPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return filepath.ToSlash(rel)
}

// renderResult prints one row per file, the totals, and for dry runs the
// diff of every file that would change.
func renderResult(w io.Writer, root, op string, res engine.Result) {
	rows := make([][]string, 0, len(res.Outcomes))
	for _, o := range res.Outcomes {
		rows = append(rows, []string{displayPath(root, o.Path), string(o.Status), o.Error})
	}
	if len(rows) > 0 {
		fmt.Fprintln(w, renderTable([]string{"Preset", "Status", "Error"}, rows, nil))
	}

	summary := renderTable(
		[]string{"Operation", "Attempted", "Succeeded", "Changed", "Skipped", "Failed"},
		[][]string{{
			op,
			strconv.Itoa(res.Attempted),
			strconv.Itoa(res.Succeeded),
			strconv.Itoa(res.Changed),
			strconv.Itoa(res.Skipped),
			strconv.Itoa(res.Failed),
		}},
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight},
	)
	fmt.Fprintln(w, summary)

	if res.DryRun {
		for _, o := range res.Outcomes {
			if o.Diff != "" {
				fmt.Fprint(w, o.Diff)
			}
		}
		fmt.Fprintln(w, "dry run: no files were written")
	}
	if res.Canceled {
		fmt.Fprintln(w, "canceled before every file was processed")
	}
}
