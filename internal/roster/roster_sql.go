package roster

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var ErrSubjectNotFound = errors.New("subject not found")

type SQLRoster struct {
	db *sql.DB
}

func NewSQLRoster(db *sql.DB) *SQLRoster { return &SQLRoster{db: db} }

func (r *SQLRoster) IsEnrolled(ctx context.Context, userID, subjectID string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM enrollments WHERE user_id=$1 AND subject_id=$2`,
		userID, subjectID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("enrollment lookup: %w", err)
	}
	return true, nil
}

func (r *SQLRoster) CreateSubject(ctx context.Context, s Subject) error {
	if s.CreatedAt == 0 {
		s.CreatedAt = time.Now().Unix()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO subjects (id, name, created_by, created_at) VALUES ($1,$2,$3,$4)`,
		s.ID, s.Name, s.CreatedBy, s.CreatedAt)
	return err
}

func (r *SQLRoster) ListSubjects(ctx context.Context, limit, offset int) ([]Subject, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, created_by, created_at FROM subjects ORDER BY name LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Subject{}
	for rows.Next() {
		var s Subject
		if err := rows.Scan(&s.ID, &s.Name, &s.CreatedBy, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func enroll(ctx context.Context, q dbtx, userID, subjectID string) error {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM subjects WHERE id=$1`, subjectID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrSubjectNotFound
	}
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx,
		`INSERT INTO enrollments (subject_id, user_id, created_at) VALUES ($1,$2,$3) ON CONFLICT DO NOTHING`,
		subjectID, userID, time.Now().Unix())
	return err
}

// Enroll is idempotent: re-enrolling an already enrolled learner is a no-op.
func (r *SQLRoster) Enroll(ctx context.Context, userID, subjectID string) error {
	return enroll(ctx, r.db, userID, subjectID)
}

// EnrollTx joins a caller-owned transaction, so a roster import commits or
// rolls back as one unit.
func EnrollTx(ctx context.Context, tx *sql.Tx, userID, subjectID string) error {
	return enroll(ctx, tx, userID, subjectID)
}

func (r *SQLRoster) Unenroll(ctx context.Context, userID, subjectID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM enrollments WHERE subject_id=$1 AND user_id=$2`, subjectID, userID)
	return err
}

func (r *SQLRoster) ListEnrolled(ctx context.Context, subjectID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id FROM enrollments WHERE subject_id=$1 ORDER BY user_id`, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
