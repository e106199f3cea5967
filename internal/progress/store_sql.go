package progress

import (
	"context"
	"database/sql"
	"errors"

	"github.com/preicfes/preicfes-lms/internal/apperr"
)

type SQLStore struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
}

func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

func (s *SQLStore) LessonExists(ctx context.Context, lessonID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM lessons WHERE id=$1`, lessonID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// CoursesForLesson walks lesson -> modules -> course.
func (s *SQLStore) CoursesForLesson(ctx context.Context, lessonID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT cm.course_id
		 FROM module_lessons ml
		 JOIN course_modules cm ON cm.module_id = ml.module_id
		 WHERE ml.lesson_id=$1`, lessonID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectStrings(rows)
}

func (s *SQLStore) ModulesForLesson(ctx context.Context, lessonID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT module_id FROM module_lessons WHERE lesson_id=$1 ORDER BY position, module_id`,
		lessonID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectStrings(rows)
}

func (s *SQLStore) CourseForModule(ctx context.Context, moduleID string) (string, error) {
	var courseID string
	err := s.db.QueryRowContext(ctx,
		`SELECT course_id FROM course_modules WHERE module_id=$1`, moduleID).Scan(&courseID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperr.NotFoundf("course for module %s", moduleID)
	}
	return courseID, err
}

func collectStrings(rows *sql.Rows) ([]string, error) {
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *SQLStore) GetLessonProgress(ctx context.Context, userID, lessonID string) (*LessonProgress, error) {
	var (
		lp                  LessonProgress
		video, theory, exer int
		completedAt         sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, lesson_id, progress_pct, video_completed, theory_completed,
		        exercises_completed, status, completed_at, updated_at
		 FROM lesson_progress WHERE user_id=$1 AND lesson_id=$2`,
		userID, lessonID).
		Scan(&lp.UserID, &lp.LessonID, &lp.ProgressPct, &video, &theory, &exer,
			&lp.Status, &completedAt, &lp.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	lp.VideoCompleted = video != 0
	lp.TheoryCompleted = theory != 0
	lp.ExercisesCompleted = exer != 0
	if completedAt.Valid {
		v := completedAt.Int64
		lp.CompletedAt = &v
	}
	return &lp, nil
}

func (s *SQLStore) UpsertLessonProgress(ctx context.Context, lp LessonProgress) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO lesson_progress (user_id, lesson_id, progress_pct, video_completed,
			theory_completed, exercises_completed, status, completed_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		 ON CONFLICT (user_id, lesson_id) DO UPDATE SET
			progress_pct=EXCLUDED.progress_pct,
			video_completed=EXCLUDED.video_completed,
			theory_completed=EXCLUDED.theory_completed,
			exercises_completed=EXCLUDED.exercises_completed,
			status=EXCLUDED.status,
			completed_at=EXCLUDED.completed_at,
			updated_at=EXCLUDED.updated_at`,
		lp.UserID, lp.LessonID, lp.ProgressPct,
		boolInt(lp.VideoCompleted), boolInt(lp.TheoryCompleted), boolInt(lp.ExercisesCompleted),
		lp.Status, nullInt(lp.CompletedAt), lp.UpdatedAt)
	return err
}

func (s *SQLStore) CountModuleLessons(ctx context.Context, moduleID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM module_lessons WHERE module_id=$1`, moduleID).Scan(&n)
	return n, err
}

func (s *SQLStore) CountCompletedLessons(ctx context.Context, userID, moduleID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*)
		 FROM lesson_progress lp
		 JOIN module_lessons ml ON ml.lesson_id = lp.lesson_id
		 WHERE ml.module_id=$1 AND lp.user_id=$2 AND lp.status=$3`,
		moduleID, userID, StatusCompleted).Scan(&n)
	return n, err
}

func (s *SQLStore) GetModuleProgress(ctx context.Context, userID, moduleID string) (*ModuleProgress, error) {
	var (
		mp          ModuleProgress
		completedAt sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, module_id, completed_lessons, total_lessons, progress_pct,
		        completed_at, updated_at
		 FROM module_progress WHERE user_id=$1 AND module_id=$2`,
		userID, moduleID).
		Scan(&mp.UserID, &mp.ModuleID, &mp.CompletedLessons, &mp.TotalLessons,
			&mp.ProgressPct, &completedAt, &mp.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if completedAt.Valid {
		v := completedAt.Int64
		mp.CompletedAt = &v
	}
	return &mp, nil
}

// ListModuleProgress returns every module progress row for the user,
// ordered by module id for stable output.
func (s *SQLStore) ListModuleProgress(ctx context.Context, userID string) ([]ModuleProgress, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, module_id, completed_lessons, total_lessons, progress_pct,
		        completed_at, updated_at
		 FROM module_progress WHERE user_id=$1 ORDER BY module_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ModuleProgress
	for rows.Next() {
		var (
			mp          ModuleProgress
			completedAt sql.NullInt64
		)
		if err := rows.Scan(&mp.UserID, &mp.ModuleID, &mp.CompletedLessons, &mp.TotalLessons,
			&mp.ProgressPct, &completedAt, &mp.UpdatedAt); err != nil {
			return nil, err
		}
		if completedAt.Valid {
			v := completedAt.Int64
			mp.CompletedAt = &v
		}
		out = append(out, mp)
	}
	return out, rows.Err()
}

func (s *SQLStore) UpsertModuleProgress(ctx context.Context, mp ModuleProgress) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO module_progress (user_id, module_id, completed_lessons, total_lessons,
			progress_pct, completed_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)
		 ON CONFLICT (user_id, module_id) DO UPDATE SET
			completed_lessons=EXCLUDED.completed_lessons,
			total_lessons=EXCLUDED.total_lessons,
			progress_pct=EXCLUDED.progress_pct,
			completed_at=EXCLUDED.completed_at,
			updated_at=EXCLUDED.updated_at`,
		mp.UserID, mp.ModuleID, mp.CompletedLessons, mp.TotalLessons,
		mp.ProgressPct, nullInt(mp.CompletedAt), mp.UpdatedAt)
	return err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullInt(p *int64) interface{} {
	if p == nil {
		return nil
	}
	return *p
}
