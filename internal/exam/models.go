package exam

// Exam types. Auto-generated module quizzes use TypePorModulo; everything
// else is authored by hand.
const (
	TypePorModulo   = "por_modulo"
	TypeSimulacro   = "simulacro"
	TypeDiagnostico = "diagnostico"
)

// Availability statuses derived from a student's result history.
const (
	StatusNotAttempted = "not_attempted"
	StatusInProgress   = "in_progress"
	StatusPassed       = "passed"
	StatusFailed       = "failed"
)

type Choice struct {
	ID    string `json:"id,omitempty"`
	Label string `json:"label,omitempty"`
}

type Question struct {
	ID        string   `json:"id"`
	LessonID  string   `json:"lesson_id"`
	Usage     string   `json:"usage"` // lesson|exam|both
	Prompt    string   `json:"prompt"`
	Choices   []Choice `json:"choices,omitempty"`
	AnswerKey []string `json:"answer_key,omitempty"`
	Points    float64  `json:"points"`
}

// Exam rows keep IncludedModules as a first-class slice; the JSON encoding
// lives only in the SQL store.
type Exam struct {
	ID                string   `json:"id"`
	Title             string   `json:"title"`
	ExamType          string   `json:"exam_type"`
	CourseID          string   `json:"course_id,omitempty"`
	ModuleID          string   `json:"module_id,omitempty"`
	IsManualSimulacro bool     `json:"is_manual_simulacro"`
	IsPublished       bool     `json:"is_published"`
	OpenAt            *int64   `json:"open_at,omitempty"`
	CloseAt           *int64   `json:"close_at,omitempty"`
	TimeLimitMin      int      `json:"time_limit_min"`
	PassingScore      int      `json:"passing_score"`
	Difficulty        string   `json:"difficulty,omitempty"`
	IncludedModules   []string `json:"included_modules,omitempty"`
	QuestionCount     int      `json:"question_count"`
	CreatedAt         int64    `json:"created_at,omitempty"`
}

// Assignment is a per-student override of an exam's open/close window.
type Assignment struct {
	ID       string `json:"id"`
	ExamID   string `json:"exam_id"`
	UserID   string `json:"user_id"`
	OpenAt   *int64 `json:"open_at,omitempty"`
	CloseAt  *int64 `json:"close_at,omitempty"`
	IsActive bool   `json:"is_active"`
}

// SchoolWindow is a per-school, per-grade override of an exam's window.
type SchoolWindow struct {
	ID            string `json:"id"`
	ExamID        string `json:"exam_id"`
	SchoolID      string `json:"school_id"`
	AcademicGrade string `json:"academic_grade"`
	OpenAt        *int64 `json:"open_at,omitempty"`
	CloseAt       *int64 `json:"close_at,omitempty"`
	IsActive      bool   `json:"is_active"`
}

// Result is one attempt row. completed_at null means the attempt is still
// in progress. This core only reads results; the attempt-taking flow owns
// the writes. Reactivated marks an administrative reset that re-opens a
// passed exam for retake.
type Result struct {
	ID          string  `json:"id"`
	ExamID      string  `json:"exam_id"`
	UserID      string  `json:"user_id"`
	Score       float64 `json:"score"`
	IsPassed    bool    `json:"is_passed"`
	Reactivated bool    `json:"reactivated"`
	CompletedAt *int64  `json:"completed_at,omitempty"`
	CreatedAt   int64   `json:"created_at"`
}

// Availability is the advisory view served to a student. Open/close are
// the effective window after merging assignment sources; enforcement
// against "now" belongs to the attempt-start endpoint.
type Availability struct {
	ExamID      string  `json:"id"`
	Title       string  `json:"title"`
	ExamType    string  `json:"exam_type"`
	Status      string  `json:"status"`
	CanRetake   bool    `json:"can_retake"`
	OpenAt      *int64  `json:"open_date,omitempty"`
	CloseAt     *int64  `json:"close_date,omitempty"`
	LastAttempt *Result `json:"last_attempt,omitempty"`
}

// StudentProfile carries the fields availability resolution needs.
type StudentProfile struct {
	UserID        string
	SchoolID      string
	AcademicGrade string
}
