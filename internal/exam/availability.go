package exam

import (
	"context"
)

// AvailabilityStore is the read surface availability resolution needs.
type AvailabilityStore interface {
	GetStudentProfile(ctx context.Context, userID string) (StudentProfile, error)
	ListActiveAssignments(ctx context.Context, userID string) ([]Assignment, error)
	ListActiveSchoolWindows(ctx context.Context, schoolID, grade string) ([]SchoolWindow, error)
	ListPublishedExams(ctx context.Context) ([]Exam, error)
	GetExamsByIDs(ctx context.Context, ids []string) (map[string]Exam, error)
	ListResultsDesc(ctx context.Context, userID string, examIDs []string) (map[string][]Result, error)
}

// Resolver merges the three assignment sources (direct, school, global)
// into the list of exams a student may currently see. It is advisory and
// read-only: the open/close window is reported, not enforced.
type Resolver struct {
	store AvailabilityStore
}

func NewResolver(store AvailabilityStore) *Resolver {
	return &Resolver{store: store}
}

// window is the per-exam merge of assignment-source dates. Direct
// assignment dates beat school dates when both carry any.
type window struct {
	openAt, closeAt *int64
	hasDates        bool
}

func (r *Resolver) Resolve(ctx context.Context, userID string) ([]Availability, error) {
	profile, err := r.store.GetStudentProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	assignments, err := r.store.ListActiveAssignments(ctx, userID)
	if err != nil {
		return nil, err
	}
	schoolWindows, err := r.store.ListActiveSchoolWindows(ctx, profile.SchoolID, profile.AcademicGrade)
	if err != nil {
		return nil, err
	}
	published, err := r.store.ListPublishedExams(ctx)
	if err != nil {
		return nil, err
	}

	// Union candidates by exam id, keeping first-seen order:
	// direct assignments, then school windows, then the global set.
	var orderedIDs []string
	seen := map[string]bool{}
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			orderedIDs = append(orderedIDs, id)
		}
	}
	overrides := map[string]window{}
	for _, a := range assignments {
		add(a.ExamID)
		if a.OpenAt != nil || a.CloseAt != nil {
			overrides[a.ExamID] = window{openAt: a.OpenAt, closeAt: a.CloseAt, hasDates: true}
		}
	}
	for _, w := range schoolWindows {
		add(w.ExamID)
		if _, direct := overrides[w.ExamID]; direct {
			continue // direct assignment dates take precedence
		}
		if w.OpenAt != nil || w.CloseAt != nil {
			overrides[w.ExamID] = window{openAt: w.OpenAt, closeAt: w.CloseAt, hasDates: true}
		}
	}
	globalSet := map[string]bool{}
	for _, e := range published {
		add(e.ID)
		globalSet[e.ID] = true
	}

	exams, err := r.store.GetExamsByIDs(ctx, orderedIDs)
	if err != nil {
		return nil, err
	}
	results, err := r.store.ListResultsDesc(ctx, userID, orderedIDs)
	if err != nil {
		return nil, err
	}

	out := make([]Availability, 0, len(orderedIDs))
	for _, id := range orderedIDs {
		e, ok := exams[id]
		if !ok {
			continue // assignment pointing at a deleted exam
		}
		if e.QuestionCount == 0 {
			continue // never offer an empty exam
		}
		av := Availability{
			ExamID:   e.ID,
			Title:    e.Title,
			ExamType: e.ExamType,
		}
		av.OpenAt, av.CloseAt = effectiveWindow(e, overrides[id])
		av.Status, av.CanRetake, av.LastAttempt = deriveStatus(results[id])
		out = append(out, av)
	}
	return out, nil
}

// effectiveWindow: manual simulacros honor assignment-resolved dates when
// present, ordinary exams always use their own dates.
func effectiveWindow(e Exam, w window) (*int64, *int64) {
	if e.IsManualSimulacro && w.hasDates {
		return w.openAt, w.closeAt
	}
	return e.OpenAt, e.CloseAt
}

// deriveStatus walks the newest-first result history. An in-progress
// attempt (completed_at null) wins over any completed one.
func deriveStatus(history []Result) (string, bool, *Result) {
	if len(history) == 0 {
		return StatusNotAttempted, false, nil
	}
	for i := range history {
		if history[i].CompletedAt == nil {
			return StatusInProgress, true, &history[i] // resume semantics
		}
	}
	latest := &history[0]
	if latest.IsPassed {
		// Retake after a pass only on administrative reactivation. The
		// legacy score-zero sentinel is still honored for old rows.
		return StatusPassed, latest.Reactivated || latest.Score == 0, latest
	}
	return StatusFailed, true, latest
}
