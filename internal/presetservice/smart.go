package presetservice

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/presetcat/internal/apperr"
	"github.com/starford/presetcat/internal/engine"
	"github.com/starford/presetcat/internal/models"
	"github.com/starford/presetcat/internal/sse"
)

// smartSession holds the suggestions of one smart detection run. It lives
// until the suggestions are applied, the session is reset or the presets
// are rescanned.
type smartSession struct {
	base        string
	startedAt   time.Time
	order       []string
	suggestions map[string]models.Suggestion
}

// SmartState is the externally visible smart detection state.
type SmartState struct {
	Active      bool                `json:"active"`
	Base        string              `json:"base,omitempty"`
	StartedAt   time.Time           `json:"started_at,omitzero"`
	Suggestions []models.Suggestion `json:"suggestions"`
}

// ApplyResult holds the cluster and group batches of one apply.
type ApplyResult struct {
	Cluster engine.Result `json:"cluster"`
	Group   engine.Result `json:"group"`
}

func (ss *smartSession) state() SmartState {
	st := SmartState{Active: true, Base: ss.base, StartedAt: ss.startedAt, Suggestions: make([]models.Suggestion, 0, len(ss.order))}
	for _, p := range ss.order {
		st.Suggestions = append(st.Suggestions, ss.suggestions[p])
	}
	return st
}

// StartSmartDetection infers cluster and group for every scanned preset from
// its folder position under the presets root. While the session is active,
// free-text cluster and group edits are refused.
func (s *Service) StartSmartDetection(ctx context.Context) (SmartState, error) {
	recs, err := s.snapshot(ctx)
	if err != nil {
		return SmartState{}, err
	}
	base := s.store.Root()
	found := engine.Suggest(recs, base)

	ss := &smartSession{
		base:        base,
		startedAt:   s.now(),
		order:       make([]string, 0, len(found)),
		suggestions: make(map[string]models.Suggestion, len(found)),
	}
	for _, sg := range found {
		ss.order = append(ss.order, sg.Path)
		ss.suggestions[sg.Path] = sg
	}

	s.mu.Lock()
	s.smart = ss
	st := ss.state()
	s.mu.Unlock()

	s.logger.Info("smart detection started", slog.Int("presets", len(recs)), slog.Int("suggestions", len(found)))
	s.publish(sse.Event{Type: sse.TypeSmartDetection, Data: map[string]any{"active": true, "suggestions": len(found)}})
	return st, nil
}

// SmartDetection returns the current smart detection state.
func (s *Service) SmartDetection() SmartState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.smart == nil {
		return SmartState{Suggestions: []models.Suggestion{}}
	}
	return s.smart.state()
}

// ResetSmartDetection discards the suggestions and re-enables free-text
// edits. It reports whether a session was active.
func (s *Service) ResetSmartDetection() bool {
	s.mu.Lock()
	active := s.smart != nil
	s.smart = nil
	s.mu.Unlock()
	if active {
		s.publish(sse.Event{Type: sse.TypeSmartDetection, Data: map[string]any{"active": false}})
	}
	return active
}

// ApplySmartDetection writes the suggestions for paths (all suggestions when
// paths is empty). A real apply ends the session and rescans; a dry run keeps
// it.
func (s *Service) ApplySmartDetection(ctx context.Context, paths []string, dryRun bool) (ApplyResult, error) {
	s.mu.Lock()
	ss := s.smart
	s.mu.Unlock()
	if ss == nil {
		return ApplyResult{}, fmt.Errorf("%w: smart detection is not active", apperr.ErrConflict)
	}

	var selected []models.Suggestion
	if len(paths) == 0 {
		for _, p := range ss.order {
			selected = append(selected, ss.suggestions[p])
		}
	} else {
		files, err := s.expand(paths)
		if err != nil {
			return ApplyResult{}, err
		}
		for _, p := range files {
			if sg, ok := ss.suggestions[p]; ok {
				selected = append(selected, sg)
			}
		}
	}
	if len(selected) == 0 {
		return ApplyResult{}, fmt.Errorf("%w: no smart detection suggestions for the selected presets", apperr.ErrInvalidInput)
	}

	s.edit.Lock()
	cluster, group := s.engine(dryRun).ApplySuggestions(ctx, selected)
	s.afterEdit("apply-smart-clusters", cluster)
	s.afterEdit("apply-smart-groups", group)
	s.edit.Unlock()

	res := ApplyResult{Cluster: cluster, Group: group}
	if dryRun {
		return res, nil
	}
	if _, err := s.Scan(ctx); err != nil {
		return res, err
	}
	return res, nil
}
