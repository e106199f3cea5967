package progress

import "context"

const (
	StatusNotStarted = "not_started"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

// Signals is one activity write from the lesson player.
type Signals struct {
	VideoViewed        bool `json:"video_viewed"`
	TheoryViewed       bool `json:"theory_viewed"`
	ExercisesCompleted bool `json:"exercises_completed"`
	CorrectAnswers     int  `json:"correct_answers" validate:"gte=0"`
	TotalQuestions     int  `json:"total_questions" validate:"gte=0"`
}

type LessonProgress struct {
	UserID             string `json:"user_id"`
	LessonID           string `json:"lesson_id"`
	ProgressPct        int    `json:"progress_pct"`
	VideoCompleted     bool   `json:"video_completed"`
	TheoryCompleted    bool   `json:"theory_completed"`
	ExercisesCompleted bool   `json:"exercises_completed"`
	Status             string `json:"status"`
	CompletedAt        *int64 `json:"completed_at,omitempty"`
	UpdatedAt          int64  `json:"updated_at"`
}

// ModuleProgress is always a fresh derivation from lesson_progress rows,
// never an incrementally patched value.
type ModuleProgress struct {
	UserID           string `json:"user_id"`
	ModuleID         string `json:"module_id"`
	CompletedLessons int    `json:"completed_lessons"`
	TotalLessons     int    `json:"total_lessons"`
	ProgressPct      int    `json:"progress_pct"`
	CompletedAt      *int64 `json:"completed_at,omitempty"`
	UpdatedAt        int64  `json:"updated_at"`
}

// Result is what a progress write reports back up the call chain,
// including what the completion cascade did.
type Result struct {
	ProgressPct          int      `json:"progress_pct"`
	Status               string   `json:"status"`
	ModuleCompleted      bool     `json:"module_completed"`
	QuizGenerated        bool     `json:"quiz_generated"`
	UnlockedAchievements []string `json:"unlocked_achievements"`
}

// Store is the persistence surface for lesson/module progress plus the
// content lookups the cascade needs.
type Store interface {
	LessonExists(ctx context.Context, lessonID string) (bool, error)
	CoursesForLesson(ctx context.Context, lessonID string) ([]string, error)
	ModulesForLesson(ctx context.Context, lessonID string) ([]string, error)
	CourseForModule(ctx context.Context, moduleID string) (string, error)

	GetLessonProgress(ctx context.Context, userID, lessonID string) (*LessonProgress, error)
	UpsertLessonProgress(ctx context.Context, lp LessonProgress) error

	CountModuleLessons(ctx context.Context, moduleID string) (int, error)
	CountCompletedLessons(ctx context.Context, userID, moduleID string) (int, error)
	GetModuleProgress(ctx context.Context, userID, moduleID string) (*ModuleProgress, error)
	ListModuleProgress(ctx context.Context, userID string) ([]ModuleProgress, error)
	UpsertModuleProgress(ctx context.Context, mp ModuleProgress) error
}
