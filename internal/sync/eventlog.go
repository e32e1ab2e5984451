package syncx

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// Attempt lifecycle event types recorded in the audit log.
const (
	TypeAttemptStarted   = "attempt.started"
	TypeAttemptSubmitted = "attempt.submitted"
	TypeAttemptGraded    = "attempt.graded"
)

type Event struct {
	Offset    int64
	SiteID    string
	Type      string
	Key       string // natural key: attemptID
	DataJSON  string
	CreatedAt int64
}

// Execer lets Append run on either the pool or an open transaction, so
// lifecycle events commit atomically with the state change they record.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func AppendTx(ctx context.Context, ex Execer, e Event) error {
	if e.SiteID == "" {
		e.SiteID = "local"
	}
	_, err := ex.ExecContext(ctx,
		`INSERT INTO event_log (site_id, typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		e.SiteID, e.Type, e.Key, e.DataJSON, time.Now().Unix())
	return err
}

// Payload marshals an event body, swallowing the impossible marshal error.
func Payload(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
