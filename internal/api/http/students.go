package http

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

type studentRow struct {
	ID            string `json:"id"`
	Username      string `json:"username" validate:"required"`
	Role          string `json:"role"` // usually "student"
	Password      string `json:"password,omitempty"`
	SchoolID      string `json:"school_id,omitempty"`
	AcademicGrade string `json:"academic_grade,omitempty"`
}

// BulkUpsertStudentsHandler accepts either a multipart file= (CSV/JSON)
// or a raw JSON array in the body. School and grade feed the school-level
// exam-window scoping.
func BulkUpsertStudentsHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var rows []studentRow
		ct := r.Header.Get("Content-Type")
		if strings.HasPrefix(ct, "multipart/form-data") {
			f, _, err := r.FormFile("file")
			if err != nil {
				http.Error(w, "file required", 400)
				return
			}
			defer f.Close()
			// sniff simple CSV vs JSON by first non-space byte
			buf := make([]byte, 1)
			if _, err := f.Read(buf); err != nil {
				http.Error(w, "empty file", 400)
				return
			}
			if s, ok := f.(io.Seeker); ok {
				_, _ = s.Seek(0, io.SeekStart)
			}
			if buf[0] == '[' || buf[0] == '{' {
				if err := json.NewDecoder(f).Decode(&rows); err != nil {
					http.Error(w, "bad json", 400)
					return
				}
			} else {
				rs, err := parseStudentCSV(f)
				if err != nil {
					http.Error(w, "bad csv: "+err.Error(), 400)
					return
				}
				rows = rs
			}
		} else {
			if err := json.NewDecoder(r.Body).Decode(&rows); err != nil {
				http.Error(w, "expected JSON array or multipart file", 400)
				return
			}
		}
		if len(rows) == 0 {
			_ = json.NewEncoder(w).Encode(map[string]any{"inserted": 0, "updated": 0})
			return
		}
		for _, row := range rows {
			if err := validate.Struct(row); err != nil {
				http.Error(w, "invalid row: "+err.Error(), 400)
				return
			}
		}

		ins, upd, err := upsertStudents(r.Context(), db, rows)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"inserted": ins, "updated": upd})
	}
}

func ListUsersHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := r.URL.Query().Get("role")
		var rows *sql.Rows
		var err error
		if role == "" {
			rows, err = db.QueryContext(r.Context(),
				`SELECT id, username, role, school_id, academic_grade FROM users ORDER BY username`)
		} else {
			rows, err = db.QueryContext(r.Context(),
				`SELECT id, username, role, school_id, academic_grade FROM users WHERE role=$1 ORDER BY username`, role)
		}
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		defer rows.Close()
		out := []studentRow{}
		for rows.Next() {
			var row studentRow
			var school, grade sql.NullString
			if err := rows.Scan(&row.ID, &row.Username, &row.Role, &school, &grade); err != nil {
				http.Error(w, err.Error(), 500)
				return
			}
			row.SchoolID, row.AcademicGrade = school.String, grade.String
			out = append(out, row)
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}

func parseStudentCSV(r io.Reader) ([]studentRow, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	hdr, err := cr.Read()
	if err != nil {
		return nil, err
	}
	idx := map[string]int{}
	for i, h := range hdr {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, k := range []string{"id", "username", "role"} {
		if _, ok := idx[k]; !ok {
			return nil, errors.New("missing column: " + k)
		}
	}
	var rows []studentRow
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		row := studentRow{
			ID:       rec[idx["id"]],
			Username: rec[idx["username"]],
			Role:     strings.ToLower(rec[idx["role"]]),
		}
		if i, ok := idx["password"]; ok {
			row.Password = rec[i]
		}
		if i, ok := idx["school_id"]; ok {
			row.SchoolID = rec[i]
		}
		if i, ok := idx["academic_grade"]; ok {
			row.AcademicGrade = rec[i]
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func upsertStudents(ctx context.Context, db *sql.DB, rows []studentRow) (inserted, updated int, err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	for _, r := range rows {
		if r.Role == "" {
			r.Role = "student"
		}
		if r.Role != "student" && r.Role != "teacher" && r.Role != "admin" {
			return inserted, updated, errors.New("invalid role: " + r.Role)
		}
		var phash string
		if r.Password != "" {
			b, e := bcrypt.GenerateFromPassword([]byte(r.Password), 12)
			if e != nil {
				return inserted, updated, e
			}
			phash = string(b)
		}

		var exists bool
		if err = tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id=$1 OR username=$2`, r.ID, r.Username).Scan(new(int)); err == nil {
			exists = true
		} else if !errors.Is(err, sql.ErrNoRows) {
			return inserted, updated, err
		}
		err = nil
		if exists {
			if phash != "" {
				_, err = tx.ExecContext(ctx,
					`UPDATE users SET username=$1, role=$2, school_id=$3, academic_grade=$4, password_hash=$5 WHERE id=$6`,
					r.Username, r.Role, nullEmpty(r.SchoolID), nullEmpty(r.AcademicGrade), phash, r.ID)
			} else {
				_, err = tx.ExecContext(ctx,
					`UPDATE users SET username=$1, role=$2, school_id=$3, academic_grade=$4 WHERE id=$5`,
					r.Username, r.Role, nullEmpty(r.SchoolID), nullEmpty(r.AcademicGrade), r.ID)
			}
			if err != nil {
				return inserted, updated, err
			}
			updated++
		} else {
			if phash == "" {
				return inserted, updated, errors.New("password required for new user: " + r.Username)
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO users (id, username, password_hash, role, school_id, academic_grade)
				 VALUES ($1,$2,$3,$4,$5,$6)`,
				r.ID, r.Username, phash, r.Role, nullEmpty(r.SchoolID), nullEmpty(r.AcademicGrade))
			if err != nil {
				return inserted, updated, err
			}
			inserted++
		}
	}
	return
}

func nullEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
