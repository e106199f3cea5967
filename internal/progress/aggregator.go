package progress

import (
	"context"
	"math"
	"time"

	"github.com/preicfes/preicfes-lms/internal/logging"
)

// QuizTrigger is how the cascade reaches quiz generation without caring
// about its internals. Implemented by quiz.Generator.
type QuizTrigger interface {
	GenerateOnCompletion(ctx context.Context, userID, courseID, moduleID string) (created bool, err error)
}

// Aggregator recomputes module completion whenever a lesson transitions to
// completed. Counts are always recounted from lesson_progress rows. A
// lesson belonging to several modules updates every owning module.
type Aggregator struct {
	store Store
	quiz  QuizTrigger
	log   *logging.Logger
}

func NewAggregator(store Store, quiz QuizTrigger, log *logging.Logger) *Aggregator {
	return &Aggregator{store: store, quiz: quiz, log: log}
}

// OnLessonCompleted refreshes module progress for each owning module and
// fires quiz generation on a module's own 0->100 transition. The
// completion signal is reconstructed from stored percentages, not a flag.
func (a *Aggregator) OnLessonCompleted(ctx context.Context, userID, lessonID string) (moduleCompleted, quizGenerated bool, err error) {
	moduleIDs, err := a.store.ModulesForLesson(ctx, lessonID)
	if err != nil {
		return false, false, err
	}
	now := time.Now().Unix()
	for _, moduleID := range moduleIDs {
		total, err := a.store.CountModuleLessons(ctx, moduleID)
		if err != nil {
			return moduleCompleted, quizGenerated, err
		}
		if total == 0 {
			continue
		}
		completed, err := a.store.CountCompletedLessons(ctx, userID, moduleID)
		if err != nil {
			return moduleCompleted, quizGenerated, err
		}
		pct := int(math.Round(float64(completed) / float64(total) * 100))

		prev, err := a.store.GetModuleProgress(ctx, userID, moduleID)
		if err != nil {
			return moduleCompleted, quizGenerated, err
		}
		mp := ModuleProgress{
			UserID:           userID,
			ModuleID:         moduleID,
			CompletedLessons: completed,
			TotalLessons:     total,
			ProgressPct:      pct,
			UpdatedAt:        now,
		}
		if prev != nil {
			mp.CompletedAt = prev.CompletedAt
		}
		completedNow := pct >= 100 && (prev == nil || prev.ProgressPct < 100)
		if completedNow && mp.CompletedAt == nil {
			mp.CompletedAt = &now
		}
		if err := a.store.UpsertModuleProgress(ctx, mp); err != nil {
			return moduleCompleted, quizGenerated, err
		}
		if !completedNow {
			continue
		}
		moduleCompleted = true

		courseID, err := a.store.CourseForModule(ctx, moduleID)
		if err != nil {
			a.log.Error("course lookup failed, skipping quiz generation",
				"module_id", moduleID, "err", err)
			continue
		}
		created, err := a.quiz.GenerateOnCompletion(ctx, userID, courseID, moduleID)
		if err != nil {
			a.log.Error("quiz generation failed", "user_id", userID,
				"module_id", moduleID, "err", err)
			continue
		}
		quizGenerated = quizGenerated || created
	}
	return moduleCompleted, quizGenerated, nil
}
