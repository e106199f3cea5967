package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/preicfes/preicfes-lms/internal/db"
	"github.com/preicfes/preicfes-lms/internal/rbac"
)

func TestIssueAndParse(t *testing.T) {
	a := NewAuthService("test-secret")
	tok, err := a.IssueJWT("u1", "student")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := a.Parse(tok)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Sub != "u1" || claims.Role != "student" {
		t.Fatalf("claims = %+v", claims)
	}

	other := NewAuthService("different-secret")
	if _, err := other.Parse(tok); err == nil {
		t.Fatal("token verified under the wrong secret")
	}
}

func TestJWTMiddlewareAttachesSubjectAndRole(t *testing.T) {
	a := NewAuthService("test-secret")
	tok, err := a.IssueJWT("u7", "teacher")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	var gotSub, gotRole string
	h := JWTMiddleware(a)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSub = SubjectFromContext(r.Context())
		gotRole = rbac.RoleFromContext(r.Context())
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if gotSub != "u7" || gotRole != "teacher" {
		t.Fatalf("context carried sub=%q role=%q", gotSub, gotRole)
	}

	for name, header := range map[string]string{
		"missing": "",
		"garbage": "Bearer not-a-token",
		"scheme":  "Basic abc",
	} {
		req := httptest.NewRequest("GET", "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: status %d, want 401", name, rec.Code)
		}
	}
}

func TestLoginHandler(t *testing.T) {
	dbh, err := db.Open(context.Background(), db.DriverSQLite,
		"file:"+filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer dbh.Close()

	hash, err := bcrypt.GenerateFromPassword([]byte("secreto123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if _, err := dbh.Exec(`INSERT INTO users (id, username, password_hash, role) VALUES ('u1','ana',$1,'student')`, string(hash)); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	a := NewAuthService("test-secret")
	h := LoginHandler(a, dbh)

	do := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/auth/login", strings.NewReader(body))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	rec := do(`{"username":"ana","password":"secreto123"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "access_token") {
		t.Fatalf("no token in %s", rec.Body.String())
	}

	if rec := do(`{"username":"ana","password":"wrong"}`); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad password status %d", rec.Code)
	}
	if rec := do(`{"username":"nadie","password":"x"}`); rec.Code != http.StatusUnauthorized {
		t.Fatalf("unknown user status %d", rec.Code)
	}
}
