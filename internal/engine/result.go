package engine

import "errors"

// ErrIO marks read and write failures on a preset file.
var ErrIO = errors.New("engine: io failure")

// Status tags the outcome of one file in a batch.
type Status string

const (
	StatusUpdated   Status = "updated"
	StatusUnchanged Status = "unchanged"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// Outcome is the per-file result of a batch operation.
type Outcome struct {
	Path   string `json:"path"`
	Status Status `json:"status"`
	Err    error  `json:"-"`
	Error  string `json:"error,omitempty"`
	Diff   string `json:"diff,omitempty"`
}

// Result folds the outcomes of one batch.
type Result struct {
	Attempted int       `json:"attempted"`
	Succeeded int       `json:"succeeded"`
	Changed   int       `json:"changed"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
	Canceled  bool      `json:"canceled"`
	DryRun    bool      `json:"dry_run"`
	Outcomes  []Outcome `json:"outcomes"`
}

// Count is the number of files whose write succeeded, unchanged files included.
func (r Result) Count() int {
	return r.Succeeded
}

func (r *Result) add(o Outcome) {
	if o.Err != nil {
		o.Error = o.Err.Error()
	}
	r.Attempted++
	switch o.Status {
	case StatusUpdated:
		r.Succeeded++
		r.Changed++
	case StatusUnchanged:
		r.Succeeded++
	case StatusSkipped:
		r.Skipped++
	case StatusFailed:
		r.Failed++
	}
	r.Outcomes = append(r.Outcomes, o)
}

// Merge adds the counts and outcomes of other into r.
func (r *Result) Merge(other Result) {
	for _, o := range other.Outcomes {
		r.add(o)
	}
	r.Canceled = r.Canceled || other.Canceled
	r.DryRun = r.DryRun || other.DryRun
}

// ChangedPaths returns the paths whose content changed, in batch order.
func (r Result) ChangedPaths() []string {
	var out []string
	for _, o := range r.Outcomes {
		if o.Status == StatusUpdated {
			out = append(out, o.Path)
		}
	}
	return out
}
