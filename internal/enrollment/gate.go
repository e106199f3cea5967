package enrollment

import (
	"context"
	"database/sql"
	"errors"
)

// Gate is the authorization check for progress writes: does the student
// hold an active enrollment in the course?
type Gate interface {
	IsActivelyEnrolled(ctx context.Context, userID, courseID string) (bool, error)
}

type SQLGate struct{ db *sql.DB }

func NewSQLGate(db *sql.DB) *SQLGate { return &SQLGate{db: db} }

func (g *SQLGate) IsActivelyEnrolled(ctx context.Context, userID, courseID string) (bool, error) {
	var one int
	err := g.db.QueryRowContext(ctx,
		`SELECT 1 FROM enrollments WHERE user_id=$1 AND course_id=$2 AND status='active'`,
		userID, courseID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}
