package achievements

import (
	"context"
	"database/sql"
	"time"
)

// Checker is the best-effort collaborator invoked after a lesson
// completes. Implementations must be idempotent: an achievement already
// held is never reported again.
type Checker interface {
	CheckAndUnlock(ctx context.Context, userID string) ([]string, error)
}

// SQLChecker unlocks milestone achievements keyed on the student's total
// completed lesson count.
type SQLChecker struct{ db *sql.DB }

func NewSQLChecker(db *sql.DB) *SQLChecker { return &SQLChecker{db: db} }

func (c *SQLChecker) CheckAndUnlock(ctx context.Context, userID string) ([]string, error) {
	var completed int
	err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM lesson_progress WHERE user_id=$1 AND status='completed'`,
		userID).Scan(&completed)
	if err != nil {
		return nil, err
	}

	rows, err := c.db.QueryContext(ctx,
		`SELECT a.id, a.code
		 FROM achievements a
		 WHERE a.lessons_required <= $1
		   AND NOT EXISTS (
			SELECT 1 FROM user_achievements ua
			WHERE ua.user_id=$2 AND ua.achievement_id=a.id)
		 ORDER BY a.lessons_required`, completed, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type candidate struct{ id, code string }
	var pending []candidate
	for rows.Next() {
		var c candidate
		if err := rows.Scan(&c.id, &c.code); err != nil {
			return nil, err
		}
		pending = append(pending, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	now := time.Now().Unix()
	var unlocked []string
	for _, cand := range pending {
		// ON CONFLICT guards a concurrent unlock of the same milestone.
		res, err := c.db.ExecContext(ctx,
			`INSERT INTO user_achievements (user_id, achievement_id, unlocked_at)
			 VALUES ($1,$2,$3)
			 ON CONFLICT (user_id, achievement_id) DO NOTHING`,
			userID, cand.id, now)
		if err != nil {
			return unlocked, err
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			unlocked = append(unlocked, cand.code)
		}
	}
	return unlocked, nil
}
