package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCheckerHas(t *testing.T) {
	c := NewChecker(nil)
	cases := []struct {
		role, perm string
		want       bool
	}{
		{"student", "progress:write", true},
		{"student", "users:list", false},
		{"teacher", "users:list", true},
		{"teacher", "progress:view-all", true},
		{"teacher", "quiz:generate", false},
		{"admin", "anything:at-all", true},
		{"unknown", "progress:write", false},
	}
	for _, c2 := range cases {
		if got := c.Has(c2.role, c2.perm); got != c2.want {
			t.Errorf("Has(%s, %s) = %v, want %v", c2.role, c2.perm, got, c2.want)
		}
	}
}

func TestCheckerPrefixWildcard(t *testing.T) {
	c := NewChecker(map[string][]string{"grader": {"quiz:*"}})
	if !c.Has("grader", "quiz:view") || !c.Has("grader", "quiz:generate") {
		t.Error("prefix wildcard should match quiz permissions")
	}
	if c.Has("grader", "users:list") {
		t.Error("prefix wildcard leaked outside its prefix")
	}
}

func TestCheckerAny(t *testing.T) {
	c := NewChecker(nil)
	if !c.Any("teacher", "quiz:generate", "users:list") {
		t.Error("Any should pass when one permission matches")
	}
	if c.Any("student", "users:list", "users:bulk_upsert") {
		t.Error("Any should fail when none match")
	}
}

func middlewareStatus(t *testing.T, mw func(http.Handler) http.Handler, role string) int {
	t.Helper()
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest("GET", "/", nil)
	if role != "" {
		req = req.WithContext(WithRole(req.Context(), role))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestRequire(t *testing.T) {
	mw := Require("progress:write")
	if got := middlewareStatus(t, mw, "student"); got != http.StatusNoContent {
		t.Errorf("student blocked: %d", got)
	}
	if got := middlewareStatus(t, mw, "teacher"); got != http.StatusForbidden {
		t.Errorf("teacher allowed: %d", got)
	}
	if got := middlewareStatus(t, mw, ""); got != http.StatusForbidden {
		t.Errorf("missing role allowed: %d", got)
	}
}

func TestRequireAny(t *testing.T) {
	mw := RequireAny("quiz:view", "users:list")
	if got := middlewareStatus(t, mw, "student"); got != http.StatusNoContent {
		t.Errorf("student blocked: %d", got)
	}
	if got := middlewareStatus(t, mw, "unknown"); got != http.StatusForbidden {
		t.Errorf("unknown role allowed: %d", got)
	}
}
