package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/starford/presetcat/internal/engine"
	"github.com/starford/presetcat/internal/models"
)

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable([]string{"A", "B"}, [][]string{{"only"}}, []columnAlignment{alignLeft, alignRight})
	if !strings.Contains(out, "only") {
		t.Errorf("table = %q", out)
	}
	if renderTable(nil, nil, nil) != "" {
		t.Error("empty headers should render nothing")
	}
}

func TestRenderPresets(t *testing.T) {
	out := renderPresets([]models.Preset{{DisplayName: "Looks/a.xmp", Cluster: "Looks", Group: "Warm"}})
	for _, want := range []string{"Preset", "Looks/a.xmp", "Warm"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}

func TestRenderSuggestionsShowsChanges(t *testing.T) {
	out := renderSuggestions("/lib", []models.Suggestion{{
		Path:               "/lib/Portraits/Soft/a.xmp",
		CurrentCluster:     "Old",
		SuggestedCluster:   "Portraits",
		SuggestedGroup:     "Soft",
		NeedsClusterUpdate: true,
		NeedsGroupUpdate:   true,
	}})
	for _, want := range []string{"Portraits/Soft/a.xmp", "Old -> Portraits", "(none) -> Soft"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}

func TestRenderResultDryRunPrintsDiffs(t *testing.T) {
	res := engine.Result{
		Attempted: 1,
		Succeeded: 1,
		Changed:   1,
		DryRun:    true,
		Outcomes: []engine.Outcome{{
			Path:   "/lib/a.xmp",
			Status: engine.StatusUpdated,
			Diff:   "--- a/a.xmp\n+++ b/a.xmp\n",
		}},
	}
	var buf bytes.Buffer
	renderResult(&buf, "/lib", "set-group", res)
	out := buf.String()
	for _, want := range []string{"a.xmp", "updated", "set-group", "+++ b/a.xmp", "dry run"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestDisplayPathOutsideRoot(t *testing.T) {
	if got := displayPath("/lib", "/other/a.xmp"); got != "/other/a.xmp" {
		t.Errorf("displayPath = %q", got)
	}
	if got := displayPath("/lib", "/lib/x/a.xmp"); got != "x/a.xmp" {
		t.Errorf("displayPath = %q", got)
	}
}

func TestProgressPrinterQuietOffTerminal(t *testing.T) {
	if progressPrinter(&bytes.Buffer{}) != nil {
		t.Error("progress printer should be nil for a non-terminal writer")
	}
}

func TestFailed(t *testing.T) {
	if failed(0) != nil {
		t.Error("no failures should be nil")
	}
	if err := failed(2); err == nil || !strings.Contains(err.Error(), "2 presets failed") {
		t.Errorf("failed(2) = %v", err)
	}
}
