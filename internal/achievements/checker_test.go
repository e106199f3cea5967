package achievements_test

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/preicfes/preicfes-lms/internal/achievements"
	"github.com/preicfes/preicfes-lms/internal/db"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dbh, err := db.Open(context.Background(), db.DriverSQLite,
		"file:"+filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { dbh.Close() })
	return dbh
}

func seedMilestones(t *testing.T, dbh *sql.DB, completedLessons int) {
	t.Helper()
	mustExec := func(q string, args ...interface{}) {
		t.Helper()
		if _, err := dbh.Exec(q, args...); err != nil {
			t.Fatalf("exec %q: %v", q, err)
		}
	}
	mustExec(`INSERT INTO achievements (id, code, title, lessons_required) VALUES
		('a1','primera_leccion','Primera lección',1),
		('a2','cinco_lecciones','Cinco lecciones',5),
		('a3','diez_lecciones','Diez lecciones',10)`)
	for i := 0; i < completedLessons; i++ {
		id := fmt.Sprintf("l%d", i)
		mustExec(`INSERT INTO lessons (id, title) VALUES ($1, $1)`, id)
		mustExec(`INSERT INTO lesson_progress
			(user_id, lesson_id, progress_pct, video_completed, theory_completed, exercises_completed, status, completed_at, updated_at)
			VALUES ('u1', $1, 100, 1, 1, 1, 'completed', 1000, 1000)`, id)
	}
}

func TestCheckAndUnlock(t *testing.T) {
	dbh := newTestDB(t)
	seedMilestones(t, dbh, 5)
	checker := achievements.NewSQLChecker(dbh)
	ctx := context.Background()

	unlocked, err := checker.CheckAndUnlock(ctx, "u1")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	want := []string{"primera_leccion", "cinco_lecciones"}
	if !reflect.DeepEqual(unlocked, want) {
		t.Fatalf("unlocked = %v, want %v", unlocked, want)
	}

	// Second pass reports nothing new.
	unlocked, err = checker.CheckAndUnlock(ctx, "u1")
	if err != nil {
		t.Fatalf("repeat check: %v", err)
	}
	if len(unlocked) != 0 {
		t.Fatalf("re-reported %v", unlocked)
	}
}

func TestCheckAndUnlockBelowThreshold(t *testing.T) {
	dbh := newTestDB(t)
	seedMilestones(t, dbh, 0)
	unlocked, err := achievements.NewSQLChecker(dbh).CheckAndUnlock(context.Background(), "u1")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if len(unlocked) != 0 {
		t.Fatalf("unlocked = %v", unlocked)
	}
}
