package notify

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// Notification types produced by the progress cascade.
const (
	TypeQuizAvailable   = "quiz_available"
	TypeModuleCompleted = "module_completed"
)

type Notification struct {
	ID        int64             `json:"id"`
	UserID    string            `json:"user_id"`
	Type      string            `json:"type"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	ActionURL string            `json:"action_url,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt int64             `json:"created_at"`
}

// Outbox produces notifications. Delivery is someone else's job: rows are
// appended here and a separate worker drains the table.
type Outbox interface {
	Emit(ctx context.Context, n Notification) error
}

type SQLOutbox struct{ db *sql.DB }

func NewSQLOutbox(db *sql.DB) *SQLOutbox { return &SQLOutbox{db: db} }

func (o *SQLOutbox) Emit(ctx context.Context, n Notification) error {
	meta := n.Metadata
	if meta == nil {
		meta = map[string]string{}
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	_, err = o.db.ExecContext(ctx,
		`INSERT INTO notifications (user_id, typ, title, message, action_url, data, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		n.UserID, n.Type, n.Title, n.Message, n.ActionURL, string(data), time.Now().Unix())
	return err
}

// ListForUser is mainly a test/debug read over the outbox.
func (o *SQLOutbox) ListForUser(ctx context.Context, userID string) ([]Notification, error) {
	rows, err := o.db.QueryContext(ctx,
		`SELECT id, user_id, typ, title, message, action_url, data, created_at
		 FROM notifications WHERE user_id=$1 ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Notification
	for rows.Next() {
		var (
			n    Notification
			data string
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.ActionURL, &data, &n.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(data), &n.Metadata); err != nil {
			n.Metadata = nil
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
