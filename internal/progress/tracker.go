package progress

import (
	"context"
	"math"
	"time"

	"github.com/preicfes/preicfes-lms/internal/apperr"
	"github.com/preicfes/preicfes-lms/internal/enrollment"
	"github.com/preicfes/preicfes-lms/internal/logging"
)

// AchievementChecker is the external best-effort collaborator. It returns
// the codes of achievements newly unlocked by this activity.
type AchievementChecker interface {
	CheckAndUnlock(ctx context.Context, userID string) ([]string, error)
}

// Tracker records per-lesson activity signals and drives the completion
// cascade. Only the primary lesson-progress write can fail the call; the
// cascade (module aggregation, quiz generation, achievements) is
// best-effort and confined to logs.
type Tracker struct {
	store      Store
	gate       enrollment.Gate
	aggregator *Aggregator
	achiever   AchievementChecker
	log        *logging.Logger
}

func NewTracker(store Store, gate enrollment.Gate, agg *Aggregator, achiever AchievementChecker, log *logging.Logger) *Tracker {
	return &Tracker{store: store, gate: gate, aggregator: agg, achiever: achiever, log: log}
}

// RecordProgress merges one activity write into the stored row. Booleans
// merge by OR, the percentage never decreases, and completed_at is set
// exactly once at the first transition into completed.
func (t *Tracker) RecordProgress(ctx context.Context, userID, lessonID string, sig Signals) (Result, error) {
	ok, err := t.store.LessonExists(ctx, lessonID)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Result{}, apperr.NotFoundf("lesson %s", lessonID)
	}

	courses, err := t.store.CoursesForLesson(ctx, lessonID)
	if err != nil {
		return Result{}, err
	}
	enrolled := false
	for _, courseID := range courses {
		active, err := t.gate.IsActivelyEnrolled(ctx, userID, courseID)
		if err != nil {
			return Result{}, err
		}
		if active {
			enrolled = true
			break
		}
	}
	if !enrolled {
		return Result{}, apperr.AccessDeniedf("user %s has no active enrollment covering lesson %s", userID, lessonID)
	}

	prev, err := t.store.GetLessonProgress(ctx, userID, lessonID)
	if err != nil {
		return Result{}, err
	}

	now := time.Now().Unix()
	lp := LessonProgress{UserID: userID, LessonID: lessonID, UpdatedAt: now}
	if prev != nil {
		lp = *prev
		lp.UpdatedAt = now
	}

	// A later partial update can never un-complete a dimension.
	lp.VideoCompleted = lp.VideoCompleted || sig.VideoViewed
	lp.TheoryCompleted = lp.TheoryCompleted || sig.TheoryViewed
	lp.ExercisesCompleted = lp.ExercisesCompleted || sig.ExercisesCompleted

	pct := ComputePercentage(lp.VideoCompleted, lp.TheoryCompleted,
		sig.ExercisesCompleted, sig.CorrectAnswers, sig.TotalQuestions)
	if pct > lp.ProgressPct {
		lp.ProgressPct = pct
	}
	lp.Status = statusFor(lp.ProgressPct)

	wasCompleted := prev != nil && prev.Status == StatusCompleted
	completedNow := lp.Status == StatusCompleted && !wasCompleted
	if completedNow {
		lp.CompletedAt = &now
	}

	if err := t.store.UpsertLessonProgress(ctx, lp); err != nil {
		return Result{}, err
	}

	res := Result{
		ProgressPct:          lp.ProgressPct,
		Status:               lp.Status,
		UnlockedAchievements: []string{},
	}

	if completedNow {
		moduleCompleted, quizGenerated, err := t.aggregator.OnLessonCompleted(ctx, userID, lessonID)
		if err != nil {
			t.log.Error("module aggregation failed", "user_id", userID, "lesson_id", lessonID, "err", err)
		}
		res.ModuleCompleted = moduleCompleted
		res.QuizGenerated = quizGenerated

		unlocked, err := t.achiever.CheckAndUnlock(ctx, userID)
		if err != nil {
			t.log.Error("achievement check failed", "user_id", userID, "err", err)
		} else if len(unlocked) > 0 {
			res.UnlockedAchievements = unlocked
		}
	}
	return res, nil
}

// ComputePercentage weights the three activity dimensions 33/33/34. The
// exercise share scales with the correct-answer fraction and only counts
// once the exercises are marked completed.
func ComputePercentage(video, theory, exercisesDone bool, correct, total int) int {
	p := 0.0
	if video {
		p += 33
	}
	if theory {
		p += 33
	}
	if exercisesDone && total > 0 {
		frac := float64(correct) / float64(total)
		if frac < 0 {
			frac = 0
		}
		if frac > 1 {
			frac = 1
		}
		p += 34 * frac
	}
	pct := int(math.Round(p))
	if pct > 100 {
		pct = 100
	}
	return pct
}

func statusFor(pct int) string {
	switch {
	case pct >= 100:
		return StatusCompleted
	case pct > 0:
		return StatusInProgress
	default:
		return StatusNotStarted
	}
}
