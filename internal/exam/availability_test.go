package exam_test

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/preicfes/preicfes-lms/internal/db"
	"github.com/preicfes/preicfes-lms/internal/exam"
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

func mustExec(t *testing.T, dbh *sql.DB, q string, args ...interface{}) {
	t.Helper()
	if _, err := dbh.Exec(q, args...); err != nil {
		t.Fatalf("exec %q: %v", q, err)
	}
}

func epoch(t *testing.T, date string) int64 {
	t.Helper()
	ts, err := time.Parse("2006-01-02", date)
	if err != nil {
		t.Fatalf("parse %q: %v", date, err)
	}
	return ts.Unix()
}

// seedExam inserts a published simulacro with questionCount linked
// questions. Dates are nullable "YYYY-MM-DD" strings.
func seedExam(t *testing.T, dbh *sql.DB, id string, manual bool, openDate, closeDate string, questionCount int) {
	t.Helper()
	var openAt, closeAt interface{}
	if openDate != "" {
		openAt = epoch(t, openDate)
	}
	if closeDate != "" {
		closeAt = epoch(t, closeDate)
	}
	manualFlag := 0
	if manual {
		manualFlag = 1
	}
	mustExec(t, dbh, `INSERT INTO exams
		(id, title, exam_type, is_manual_simulacro, is_published, open_at, close_at, time_limit_min, passing_score, created_at)
		VALUES ($1, $2, 'simulacro', $3, 1, $4, $5, 90, 70, 0)`,
		id, "Simulacro "+id, manualFlag, openAt, closeAt)
	for i := 0; i < questionCount; i++ {
		qid := fmt.Sprintf("%s-q%d", id, i)
		mustExec(t, dbh, `INSERT INTO questions (id, lesson_id, usage, prompt) VALUES ($1,'l1','exam','p')`, qid)
		mustExec(t, dbh, `INSERT INTO exam_questions (exam_id, question_id, position) VALUES ($1,$2,$3)`, id, qid, i)
	}
}

func seedStudent(t *testing.T, dbh *sql.DB) {
	t.Helper()
	mustExec(t, dbh, `INSERT INTO lessons (id, title) VALUES ('l1','x')`)
	mustExec(t, dbh, `INSERT INTO users (id, username, password_hash, role, school_id, academic_grade)
		VALUES ('u1','ana','x','student','s1','11')`)
}

func resolve(t *testing.T, dbh *sql.DB) []exam.Availability {
	t.Helper()
	r := exam.NewResolver(exam.NewSQLStore(dbh, "sqlite"))
	out, err := r.Resolve(context.Background(), "u1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	return out
}

func byID(t *testing.T, list []exam.Availability, id string) exam.Availability {
	t.Helper()
	for _, a := range list {
		if a.ExamID == id {
			return a
		}
	}
	t.Fatalf("exam %s not in %v", id, list)
	return exam.Availability{}
}

func TestResolveUnionsThreeSources(t *testing.T) {
	dbh := newTestDB(t)
	seedStudent(t, dbh)
	seedExam(t, dbh, "e-direct", true, "", "", 2)
	seedExam(t, dbh, "e-school", true, "", "", 2)
	seedExam(t, dbh, "e-global", false, "", "", 2)
	// Direct and school exams are manual simulacros: visible only through
	// their assignment, never through the published pool.
	mustExec(t, dbh, `INSERT INTO exam_assignments (id, exam_id, user_id, is_active) VALUES ('a1','e-direct','u1',1)`)
	mustExec(t, dbh, `INSERT INTO exam_schools (id, exam_id, school_id, academic_grade, is_active) VALUES ('s1w','e-school','s1','11',1)`)

	out := resolve(t, dbh)
	if len(out) != 3 {
		t.Fatalf("got %d exams: %+v", len(out), out)
	}
	for _, id := range []string{"e-direct", "e-school", "e-global"} {
		a := byID(t, out, id)
		if a.Status != exam.StatusNotAttempted || a.CanRetake {
			t.Fatalf("%s = %+v", id, a)
		}
	}
}

func TestResolveSkipsInactiveAndForeignWindows(t *testing.T) {
	dbh := newTestDB(t)
	seedStudent(t, dbh)
	seedExam(t, dbh, "e-inactive", true, "", "", 2)
	seedExam(t, dbh, "e-other-grade", true, "", "", 2)
	mustExec(t, dbh, `INSERT INTO exam_assignments (id, exam_id, user_id, is_active) VALUES ('a1','e-inactive','u1',0)`)
	mustExec(t, dbh, `INSERT INTO exam_schools (id, exam_id, school_id, academic_grade, is_active) VALUES ('w1','e-other-grade','s1','10',1)`)

	if out := resolve(t, dbh); len(out) != 0 {
		t.Fatalf("got %+v, want none", out)
	}
}

func TestResolveDropsExamsWithoutQuestions(t *testing.T) {
	dbh := newTestDB(t)
	seedStudent(t, dbh)
	seedExam(t, dbh, "e-empty", false, "", "", 0)
	seedExam(t, dbh, "e-full", false, "", "", 3)

	out := resolve(t, dbh)
	if len(out) != 1 || out[0].ExamID != "e-full" {
		t.Fatalf("got %+v", out)
	}
}

func TestResolveDirectDatesBeatSchoolDates(t *testing.T) {
	dbh := newTestDB(t)
	seedStudent(t, dbh)
	seedExam(t, dbh, "e1", true, "", "", 2)
	mustExec(t, dbh, `INSERT INTO exam_assignments (id, exam_id, user_id, open_at, close_at, is_active)
		VALUES ('a1','e1','u1',$1,$2,1)`, epoch(t, "2024-01-01"), epoch(t, "2024-01-31"))
	mustExec(t, dbh, `INSERT INTO exam_schools (id, exam_id, school_id, academic_grade, open_at, close_at, is_active)
		VALUES ('w1','e1','s1','11',$1,$2,1)`, epoch(t, "2024-02-01"), epoch(t, "2024-02-28"))

	a := byID(t, resolve(t, dbh), "e1")
	if a.OpenAt == nil || *a.OpenAt != epoch(t, "2024-01-01") {
		t.Fatalf("open = %v, want 2024-01-01", a.OpenAt)
	}
	if a.CloseAt == nil || *a.CloseAt != epoch(t, "2024-01-31") {
		t.Fatalf("close = %v, want 2024-01-31", a.CloseAt)
	}
}

func TestResolveWindowByExamKind(t *testing.T) {
	dbh := newTestDB(t)
	seedStudent(t, dbh)
	// A manual simulacro without own dates picks up the assignment window;
	// an ordinary exam keeps its own dates even when assigned with dates.
	seedExam(t, dbh, "e-manual", true, "", "", 2)
	seedExam(t, dbh, "e-ordinary", false, "2024-03-01", "2024-03-31", 2)
	mustExec(t, dbh, `INSERT INTO exam_assignments (id, exam_id, user_id, open_at, close_at, is_active)
		VALUES ('a1','e-manual','u1',$1,$2,1)`, epoch(t, "2024-01-10"), epoch(t, "2024-01-20"))
	mustExec(t, dbh, `INSERT INTO exam_assignments (id, exam_id, user_id, open_at, close_at, is_active)
		VALUES ('a2','e-ordinary','u1',$1,$2,1)`, epoch(t, "2024-01-10"), epoch(t, "2024-01-20"))

	out := resolve(t, dbh)
	m := byID(t, out, "e-manual")
	if m.OpenAt == nil || *m.OpenAt != epoch(t, "2024-01-10") {
		t.Fatalf("manual open = %v", m.OpenAt)
	}
	o := byID(t, out, "e-ordinary")
	if o.OpenAt == nil || *o.OpenAt != epoch(t, "2024-03-01") {
		t.Fatalf("ordinary open = %v", o.OpenAt)
	}
}

func seedResult(t *testing.T, dbh *sql.DB, id, examID string, score float64, passed, reactivated bool, completedAt interface{}, createdAt int64) {
	t.Helper()
	p, r := 0, 0
	if passed {
		p = 1
	}
	if reactivated {
		r = 1
	}
	mustExec(t, dbh, `INSERT INTO exam_results
		(id, exam_id, user_id, score, is_passed, reactivated, completed_at, created_at)
		VALUES ($1,$2,'u1',$3,$4,$5,$6,$7)`, id, examID, score, p, r, completedAt, createdAt)
}

func TestResolveStatusFromHistory(t *testing.T) {
	dbh := newTestDB(t)
	seedStudent(t, dbh)
	seedExam(t, dbh, "e-pass", false, "", "", 2)
	seedExam(t, dbh, "e-fail", false, "", "", 2)
	seedExam(t, dbh, "e-open", false, "", "", 2)
	seedExam(t, dbh, "e-react", false, "", "", 2)
	seedExam(t, dbh, "e-zero", false, "", "", 2)

	seedResult(t, dbh, "r1", "e-pass", 85, true, false, int64(2000), 2000)
	seedResult(t, dbh, "r2", "e-fail", 40, false, false, int64(2000), 2000)
	// Newest attempt has no completed_at: the exam is resumable.
	seedResult(t, dbh, "r3", "e-open", 85, true, false, int64(1000), 1000)
	seedResult(t, dbh, "r4", "e-open", 0, false, false, nil, 2000)
	// Administrator re-opened a passed exam.
	seedResult(t, dbh, "r5", "e-react", 90, true, true, int64(2000), 2000)
	// Legacy reset rows zeroed the score instead.
	seedResult(t, dbh, "r6", "e-zero", 0, true, false, int64(2000), 2000)

	out := resolve(t, dbh)

	cases := []struct {
		examID    string
		status    string
		canRetake bool
	}{
		{"e-pass", exam.StatusPassed, false},
		{"e-fail", exam.StatusFailed, true},
		{"e-open", exam.StatusInProgress, true},
		{"e-react", exam.StatusPassed, true},
		{"e-zero", exam.StatusPassed, true},
	}
	for _, c := range cases {
		a := byID(t, out, c.examID)
		if a.Status != c.status || a.CanRetake != c.canRetake {
			t.Errorf("%s: got status=%s canRetake=%v, want %s %v", c.examID, a.Status, a.CanRetake, c.status, c.canRetake)
		}
		if a.LastAttempt == nil {
			t.Errorf("%s: missing last attempt", c.examID)
		}
	}

	if lastOpen := byID(t, out, "e-open").LastAttempt; lastOpen.ID != "r4" {
		t.Errorf("e-open last attempt = %s, want the unfinished r4", lastOpen.ID)
	}
}
