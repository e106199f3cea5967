package http_test

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apihttp "github.com/preicfes/preicfes-lms/internal/api/http"
)

func TestBulkUpsertStudentsJSON(t *testing.T) {
	env := newTestEnv(t)
	h := apihttp.BulkUpsertStudentsHandler(env.db)

	body := `[
		{"id":"u1","username":"ana","role":"student","password":"clave1","school_id":"s1","academic_grade":"11"},
		{"id":"u2","username":"beto","role":"student","password":"clave2"}
	]`
	req := httptest.NewRequest("POST", "/users/bulk", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var res struct {
		Inserted int `json:"inserted"`
		Updated  int `json:"updated"`
	}
	decode(t, rec, &res)
	if res.Inserted != 2 || res.Updated != 0 {
		t.Fatalf("counts = %+v", res)
	}

	// Re-sending an existing row without a password keeps the hash and
	// counts as an update.
	req = httptest.NewRequest("POST", "/users/bulk",
		strings.NewReader(`[{"id":"u1","username":"ana","role":"student","school_id":"s2","academic_grade":"10"}]`))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	decode(t, rec, &res)
	if res.Inserted != 0 || res.Updated != 1 {
		t.Fatalf("counts = %+v", res)
	}

	var school string
	if err := env.db.QueryRow(`SELECT school_id FROM users WHERE id='u1'`).Scan(&school); err != nil {
		t.Fatalf("read user: %v", err)
	}
	if school != "s2" {
		t.Fatalf("school = %q", school)
	}
}

func TestBulkUpsertStudentsCSV(t *testing.T) {
	env := newTestEnv(t)
	h := apihttp.BulkUpsertStudentsHandler(env.db)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "students.csv")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	fw.Write([]byte("id,username,role,password,school_id,academic_grade\n"))
	fw.Write([]byte("u1,ana,student,clave1,s1,11\n"))
	fw.Write([]byte("u2,beto,student,clave2,s1,11\n"))
	mw.Close()

	req := httptest.NewRequest("POST", "/users/bulk", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var res struct {
		Inserted int `json:"inserted"`
	}
	decode(t, rec, &res)
	if res.Inserted != 2 {
		t.Fatalf("inserted = %d", res.Inserted)
	}
}

func TestBulkUpsertStudentsRejectsNewUserWithoutPassword(t *testing.T) {
	env := newTestEnv(t)
	h := apihttp.BulkUpsertStudentsHandler(env.db)

	req := httptest.NewRequest("POST", "/users/bulk",
		strings.NewReader(`[{"id":"u9","username":"caro","role":"student"}]`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
}

func TestListUsersByRole(t *testing.T) {
	env := newTestEnv(t)
	env.exec(t, `INSERT INTO users (id, username, password_hash, role) VALUES
		('u1','ana','x','student'), ('u2','beto','x','teacher')`)

	h := apihttp.ListUsersHandler(env.db)
	req := httptest.NewRequest("GET", "/users?role=teacher", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var users []struct {
		Username string `json:"username"`
		Role     string `json:"role"`
	}
	decode(t, rec, &users)
	if len(users) != 1 || users[0].Username != "beto" {
		t.Fatalf("users = %+v", users)
	}
}
