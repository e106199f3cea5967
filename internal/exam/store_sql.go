package exam

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/preicfes/preicfes-lms/internal/apperr"
)

type SQLStore struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
}

func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

const examColumns = `e.id, e.title, e.exam_type, e.course_id, e.module_id,
	e.is_manual_simulacro, e.is_published, e.open_at, e.close_at,
	e.time_limit_min, e.passing_score, e.difficulty, e.included_modules_json,
	(SELECT COUNT(*) FROM exam_questions eq WHERE eq.exam_id = e.id),
	e.created_at`

func scanExam(row interface{ Scan(...interface{}) error }) (Exam, error) {
	var (
		e                  Exam
		courseID, moduleID sql.NullString
		manual, published  int
		openAt, closeAt    sql.NullInt64
		includedJSON       string
	)
	err := row.Scan(&e.ID, &e.Title, &e.ExamType, &courseID, &moduleID,
		&manual, &published, &openAt, &closeAt,
		&e.TimeLimitMin, &e.PassingScore, &e.Difficulty, &includedJSON,
		&e.QuestionCount, &e.CreatedAt)
	if err != nil {
		return Exam{}, err
	}
	e.CourseID = courseID.String
	e.ModuleID = moduleID.String
	e.IsManualSimulacro = manual != 0
	e.IsPublished = published != 0
	e.OpenAt = nullableInt(openAt)
	e.CloseAt = nullableInt(closeAt)
	if err := json.Unmarshal([]byte(includedJSON), &e.IncludedModules); err != nil {
		return Exam{}, fmt.Errorf("decode included_modules for exam %s: %w", e.ID, err)
	}
	return e, nil
}

func nullableInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func nullInt(p *int64) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func nullStr(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// GetStudentProfile loads the school/grade scoping fields for a student.
func (s *SQLStore) GetStudentProfile(ctx context.Context, userID string) (StudentProfile, error) {
	var schoolID, grade sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT school_id, academic_grade FROM users WHERE id=$1`, userID).
		Scan(&schoolID, &grade)
	if errors.Is(err, sql.ErrNoRows) {
		return StudentProfile{}, apperr.NotFoundf("student %s", userID)
	}
	if err != nil {
		return StudentProfile{}, err
	}
	return StudentProfile{UserID: userID, SchoolID: schoolID.String, AcademicGrade: grade.String}, nil
}

func (s *SQLStore) ListActiveAssignments(ctx context.Context, userID string) ([]Assignment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, exam_id, user_id, open_at, close_at, is_active
		 FROM exam_assignments WHERE user_id=$1 AND is_active=1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Assignment
	for rows.Next() {
		var (
			a               Assignment
			openAt, closeAt sql.NullInt64
			active          int
		)
		if err := rows.Scan(&a.ID, &a.ExamID, &a.UserID, &openAt, &closeAt, &active); err != nil {
			return nil, err
		}
		a.OpenAt, a.CloseAt, a.IsActive = nullableInt(openAt), nullableInt(closeAt), active != 0
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStore) ListActiveSchoolWindows(ctx context.Context, schoolID, grade string) ([]SchoolWindow, error) {
	if schoolID == "" {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, exam_id, school_id, academic_grade, open_at, close_at, is_active
		 FROM exam_schools WHERE school_id=$1 AND academic_grade=$2 AND is_active=1`,
		schoolID, grade)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SchoolWindow
	for rows.Next() {
		var (
			w               SchoolWindow
			openAt, closeAt sql.NullInt64
			active          int
		)
		if err := rows.Scan(&w.ID, &w.ExamID, &w.SchoolID, &w.AcademicGrade, &openAt, &closeAt, &active); err != nil {
			return nil, err
		}
		w.OpenAt, w.CloseAt, w.IsActive = nullableInt(openAt), nullableInt(closeAt), active != 0
		out = append(out, w)
	}
	return out, rows.Err()
}

// ListPublishedExams returns every globally published, non-manual exam.
func (s *SQLStore) ListPublishedExams(ctx context.Context) ([]Exam, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+examColumns+` FROM exams e
		 WHERE e.is_published=1 AND e.is_manual_simulacro=0
		 ORDER BY e.created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectExams(rows)
}

func (s *SQLStore) GetExamsByIDs(ctx context.Context, ids []string) (map[string]Exam, error) {
	out := make(map[string]Exam, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	ph := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		ph[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+examColumns+` FROM exams e WHERE e.id IN (`+strings.Join(ph, ",")+`)`,
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list, err := collectExams(rows)
	if err != nil {
		return nil, err
	}
	for _, e := range list {
		out[e.ID] = e
	}
	return out, nil
}

func collectExams(rows *sql.Rows) ([]Exam, error) {
	var out []Exam
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListResultsDesc returns the student's result history per exam, newest
// first, for the given exam ids.
func (s *SQLStore) ListResultsDesc(ctx context.Context, userID string, examIDs []string) (map[string][]Result, error) {
	out := make(map[string][]Result)
	if len(examIDs) == 0 {
		return out, nil
	}
	ph := make([]string, len(examIDs))
	args := make([]interface{}, 0, len(examIDs)+1)
	args = append(args, userID)
	for i, id := range examIDs {
		ph[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, id)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, exam_id, user_id, score, is_passed, reactivated, completed_at, created_at
		 FROM exam_results
		 WHERE user_id=$1 AND exam_id IN (`+strings.Join(ph, ",")+`)
		 ORDER BY created_at DESC, id DESC`,
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			r                   Result
			passed, reactivated int
			completedAt         sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.ExamID, &r.UserID, &r.Score, &passed, &reactivated, &completedAt, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.IsPassed = passed != 0
		r.Reactivated = reactivated != 0
		r.CompletedAt = nullableInt(completedAt)
		out[r.ExamID] = append(out[r.ExamID], r)
	}
	return out, rows.Err()
}

// GetModuleQuiz returns the auto-generated quiz for (course, module), or
// nil when none exists yet.
func (s *SQLStore) GetModuleQuiz(ctx context.Context, courseID, moduleID string) (*Exam, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+examColumns+` FROM exams e
		 WHERE e.exam_type=$1 AND e.course_id=$2 AND e.module_id=$3`,
		TypePorModulo, courseID, moduleID)
	e, err := scanExam(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ListModuleQuizzes returns every por_modulo exam scoped to the module.
func (s *SQLStore) ListModuleQuizzes(ctx context.Context, moduleID string) ([]Exam, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+examColumns+` FROM exams e
		 WHERE e.exam_type=$1 AND e.module_id=$2
		 ORDER BY e.created_at`, TypePorModulo, moduleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectExams(rows)
}

// UsableExamQuestions collects the bank questions attached to the module's
// lessons that are tagged for exam use.
func (s *SQLStore) UsableExamQuestions(ctx context.Context, moduleID string) ([]Question, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT q.id, q.lesson_id, q.usage, q.prompt, q.choices_json, q.answer_key_json, q.points
		 FROM questions q
		 JOIN module_lessons ml ON ml.lesson_id = q.lesson_id
		 WHERE ml.module_id=$1 AND q.usage IN ('exam','both')
		 ORDER BY ml.position, q.id`, moduleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Question
	for rows.Next() {
		var (
			q                      Question
			choicesJSON, answerKey string
		)
		if err := rows.Scan(&q.ID, &q.LessonID, &q.Usage, &q.Prompt, &choicesJSON, &answerKey, &q.Points); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(choicesJSON), &q.Choices); err != nil {
			return nil, fmt.Errorf("decode choices for question %s: %w", q.ID, err)
		}
		if err := json.Unmarshal([]byte(answerKey), &q.AnswerKey); err != nil {
			return nil, fmt.Errorf("decode answer key for question %s: %w", q.ID, err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// ModuleTitle returns the module's title, NotFound when absent.
func (s *SQLStore) ModuleTitle(ctx context.Context, moduleID string) (string, error) {
	var title string
	err := s.db.QueryRowContext(ctx, `SELECT title FROM modules WHERE id=$1`, moduleID).Scan(&title)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperr.NotFoundf("module %s", moduleID)
	}
	return title, err
}

// CreateModuleQuiz inserts the quiz exam and its sampled questions. The
// partial unique index on (exam_type, course_id, module_id) makes the
// insert race-safe: a concurrent insert loses the conflict and reports
// created=false without touching exam_questions.
func (s *SQLStore) CreateModuleQuiz(ctx context.Context, e Exam, questionIDs []string) (bool, error) {
	includedJSON, err := json.Marshal(e.IncludedModules)
	if err != nil {
		return false, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO exams (id, title, exam_type, course_id, module_id,
			is_manual_simulacro, is_published, open_at, close_at,
			time_limit_min, passing_score, difficulty, included_modules_json, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		 ON CONFLICT (exam_type, course_id, module_id) WHERE module_id IS NOT NULL DO NOTHING`,
		e.ID, e.Title, e.ExamType, nullStr(e.CourseID), nullStr(e.ModuleID),
		boolInt(e.IsManualSimulacro), boolInt(e.IsPublished), nullInt(e.OpenAt), nullInt(e.CloseAt),
		e.TimeLimitMin, e.PassingScore, e.Difficulty, string(includedJSON), time.Now().Unix())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	for i, qid := range questionIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO exam_questions (exam_id, question_id, position) VALUES ($1,$2,$3)`,
			e.ID, qid, i); err != nil {
			return false, err
		}
	}
	return true, tx.Commit()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
