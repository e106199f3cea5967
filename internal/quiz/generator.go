package quiz

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/preicfes/preicfes-lms/internal/exam"
	"github.com/preicfes/preicfes-lms/internal/logging"
	"github.com/preicfes/preicfes-lms/internal/notify"
)

// Auto-quiz defaults.
const (
	MaxQuestions = 10
	TimeLimitMin = 15
	PassingScore = 70
	Difficulty   = "intermedio"
)

// ReasonNoQuestions marks the valid terminal state where a module has no
// exam-usable bank questions. It is not an error.
const ReasonNoQuestions = "no_questions"

// Store is the persistence surface generation needs. Implemented by
// exam.SQLStore.
type Store interface {
	GetModuleQuiz(ctx context.Context, courseID, moduleID string) (*exam.Exam, error)
	UsableExamQuestions(ctx context.Context, moduleID string) ([]exam.Question, error)
	ModuleTitle(ctx context.Context, moduleID string) (string, error)
	CreateModuleQuiz(ctx context.Context, e exam.Exam, questionIDs []string) (created bool, err error)
}

type Result struct {
	Quiz    *exam.Exam `json:"quiz"`
	Created bool       `json:"created"`
	Reason  string     `json:"reason,omitempty"`
}

// Generator materializes at most one formative quiz per (course, module).
type Generator struct {
	store  Store
	outbox notify.Outbox
	log    *logging.Logger
}

func NewGenerator(store Store, outbox notify.Outbox, log *logging.Logger) *Generator {
	return &Generator{store: store, outbox: outbox, log: log}
}

// Generate is idempotent: an existing quiz for the (course, module) pair
// is returned unchanged, never duplicated.
func (g *Generator) Generate(ctx context.Context, courseID, moduleID string) (Result, error) {
	existing, err := g.store.GetModuleQuiz(ctx, courseID, moduleID)
	if err != nil {
		return Result{}, err
	}
	if existing != nil {
		return Result{Quiz: existing}, nil
	}

	questions, err := g.store.UsableExamQuestions(ctx, moduleID)
	if err != nil {
		return Result{}, err
	}
	if len(questions) == 0 {
		return Result{Reason: ReasonNoQuestions}, nil
	}

	title, err := g.store.ModuleTitle(ctx, moduleID)
	if err != nil {
		return Result{}, err
	}

	sample := sampleQuestions(questions, MaxQuestions)
	ids := make([]string, len(sample))
	for i, q := range sample {
		ids[i] = q.ID
	}

	e := exam.Exam{
		ID:              uuid.NewString(),
		Title:           fmt.Sprintf("Quiz: %s", title),
		ExamType:        exam.TypePorModulo,
		CourseID:        courseID,
		ModuleID:        moduleID,
		IsPublished:     true,
		TimeLimitMin:    TimeLimitMin,
		PassingScore:    PassingScore,
		Difficulty:      Difficulty,
		IncludedModules: []string{moduleID},
		QuestionCount:   len(sample),
		CreatedAt:       time.Now().Unix(),
	}
	created, err := g.store.CreateModuleQuiz(ctx, e, ids)
	if err != nil {
		return Result{}, err
	}
	if !created {
		// Lost the insert race: fetch whichever quiz won.
		winner, err := g.store.GetModuleQuiz(ctx, courseID, moduleID)
		if err != nil {
			return Result{}, err
		}
		return Result{Quiz: winner}, nil
	}
	return Result{Quiz: &e, Created: true}, nil
}

// GenerateOnCompletion is the cascade entry point. It additionally tells
// the triggering student the quiz is ready; the on-demand endpoint goes
// through Generate directly and emits nothing.
func (g *Generator) GenerateOnCompletion(ctx context.Context, userID, courseID, moduleID string) (bool, error) {
	res, err := g.Generate(ctx, courseID, moduleID)
	if err != nil {
		return false, err
	}
	if !res.Created {
		return false, nil
	}
	n := notify.Notification{
		UserID:    userID,
		Type:      notify.TypeQuizAvailable,
		Title:     "Nuevo quiz disponible",
		Message:   fmt.Sprintf("Completaste el módulo y ya puedes presentar %q.", res.Quiz.Title),
		ActionURL: fmt.Sprintf("/exams/%s", res.Quiz.ID),
		Metadata:  map[string]string{"exam_id": res.Quiz.ID, "module_id": moduleID},
	}
	if err := g.outbox.Emit(ctx, n); err != nil {
		g.log.Error("quiz notification emit failed", "user_id", userID, "exam_id", res.Quiz.ID, "err", err)
	}
	return true, nil
}

func sampleQuestions(pool []exam.Question, n int) []exam.Question {
	shuffled := make([]exam.Question, len(pool))
	copy(shuffled, pool)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	if n > len(shuffled) {
		n = len(shuffled)
	}
	return shuffled[:n]
}
