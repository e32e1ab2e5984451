package quiz

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"
)

type SQLCatalog struct {
	db *sql.DB
}

func NewSQLCatalog(db *sql.DB) *SQLCatalog { return &SQLCatalog{db: db} }

func (c *SQLCatalog) Get(ctx context.Context, id string) (Quiz, error) {
	z, err := c.load(ctx, id)
	if err != nil {
		return Quiz{}, err
	}
	// Strip answer keys when serving to learners.
	for i := range z.Questions {
		for j := range z.Questions[i].Answers {
			z.Questions[i].Answers[j].IsCorrect = false
		}
	}
	return z, nil
}

func (c *SQLCatalog) GetAuthoring(ctx context.Context, id string) (Quiz, error) {
	return c.load(ctx, id)
}

func (c *SQLCatalog) load(ctx context.Context, id string) (Quiz, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT id, subject_id, author_id, title, description,
		       time_limit_min, max_attempts,
		       shuffle_questions, shuffle_answers, show_correct_answers,
		       is_published, is_active, available_from, available_until, created_at
		FROM quizzes WHERE id=$1`, id)

	var (
		z          Quiz
		limit      sql.NullInt64
		from, till sql.NullInt64
	)
	if err := row.Scan(&z.ID, &z.SubjectID, &z.AuthorID, &z.Title, &z.Description,
		&limit, &z.MaxAttempts,
		&z.ShuffleQuestions, &z.ShuffleAnswers, &z.ShowCorrectAnswers,
		&z.IsPublished, &z.IsActive, &from, &till, &z.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Quiz{}, ErrNotFound
		}
		return Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	if limit.Valid {
		v := int(limit.Int64)
		z.TimeLimitMin = &v
	}
	if from.Valid {
		t := time.Unix(from.Int64, 0).UTC()
		z.AvailableFrom = &t
	}
	if till.Valid {
		t := time.Unix(till.Int64, 0).UTC()
		z.AvailableUntil = &t
	}

	qs, err := c.loadQuestions(ctx, id)
	if err != nil {
		return Quiz{}, err
	}
	z.Questions = qs
	return z, nil
}

func (c *SQLCatalog) loadQuestions(ctx context.Context, quizID string) ([]Question, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, qtype, prompt, points, position
		FROM questions WHERE quiz_id=$1 ORDER BY position, id`, quizID)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	var qs []Question
	for rows.Next() {
		var q Question
		if err := rows.Scan(&q.ID, &q.Type, &q.Prompt, &q.Points, &q.Position); err != nil {
			return nil, err
		}
		qs = append(qs, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	arows, err := c.db.QueryContext(ctx, `
		SELECT a.id, a.question_id, a.body, a.is_correct, a.position
		FROM answers a JOIN questions q ON q.id=a.question_id
		WHERE q.quiz_id=$1 ORDER BY a.position, a.id`, quizID)
	if err != nil {
		return nil, fmt.Errorf("load answers: %w", err)
	}
	defer arows.Close()

	byQuestion := map[string][]Answer{}
	for arows.Next() {
		var (
			a   Answer
			qid string
		)
		if err := arows.Scan(&a.ID, &qid, &a.Body, &a.IsCorrect, &a.Position); err != nil {
			return nil, err
		}
		byQuestion[qid] = append(byQuestion[qid], a)
	}
	if err := arows.Err(); err != nil {
		return nil, err
	}
	for i := range qs {
		qs[i].Answers = byQuestion[qs[i].ID]
	}
	return qs, nil
}

// Put upserts a full definition: the quiz row plus all questions and answers.
// Replacing an existing quiz rewrites its question set in the same
// transaction.
func (c *SQLCatalog) Put(ctx context.Context, z Quiz) error {
	if err := Validate(z); err != nil {
		return err
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var limit any
	if z.TimeLimitMin != nil {
		limit = *z.TimeLimitMin
	}
	var from, till any
	if z.AvailableFrom != nil {
		from = z.AvailableFrom.Unix()
	}
	if z.AvailableUntil != nil {
		till = z.AvailableUntil.Unix()
	}
	created := z.CreatedAt
	if created == 0 {
		created = time.Now().Unix()
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO quizzes (id, subject_id, author_id, title, description,
		                     time_limit_min, max_attempts,
		                     shuffle_questions, shuffle_answers, show_correct_answers,
		                     is_published, is_active, available_from, available_until, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (id) DO UPDATE SET
		  subject_id=EXCLUDED.subject_id,
		  title=EXCLUDED.title,
		  description=EXCLUDED.description,
		  time_limit_min=EXCLUDED.time_limit_min,
		  max_attempts=EXCLUDED.max_attempts,
		  shuffle_questions=EXCLUDED.shuffle_questions,
		  shuffle_answers=EXCLUDED.shuffle_answers,
		  show_correct_answers=EXCLUDED.show_correct_answers,
		  is_published=EXCLUDED.is_published,
		  is_active=EXCLUDED.is_active,
		  available_from=EXCLUDED.available_from,
		  available_until=EXCLUDED.available_until`,
		z.ID, z.SubjectID, z.AuthorID, z.Title, z.Description,
		limit, z.MaxAttempts,
		z.ShuffleQuestions, z.ShuffleAnswers, z.ShowCorrectAnswers,
		z.IsPublished, z.IsActive, from, till, created); err != nil {
		return fmt.Errorf("upsert quiz: %w", err)
	}

	if _, err = tx.ExecContext(ctx,
		`DELETE FROM answers WHERE question_id IN (SELECT id FROM questions WHERE quiz_id=$1)`, z.ID); err != nil {
		return fmt.Errorf("clear answers: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM questions WHERE quiz_id=$1`, z.ID); err != nil {
		return fmt.Errorf("clear questions: %w", err)
	}

	for i, q := range z.Questions {
		pos := q.Position
		if pos == 0 {
			pos = i + 1
		}
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO questions (id, quiz_id, qtype, prompt, points, position)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			q.ID, z.ID, string(q.Type), q.Prompt, q.Points, pos); err != nil {
			return fmt.Errorf("insert question %s: %w", q.ID, err)
		}
		for j, a := range q.Answers {
			apos := a.Position
			if apos == 0 {
				apos = j + 1
			}
			if _, err = tx.ExecContext(ctx, `
				INSERT INTO answers (id, question_id, body, is_correct, position)
				VALUES ($1,$2,$3,$4,$5)`,
				a.ID, q.ID, a.Body, a.IsCorrect, apos); err != nil {
				return fmt.Errorf("insert answer %s: %w", a.ID, err)
			}
		}
	}
	return tx.Commit()
}

func (c *SQLCatalog) List(ctx context.Context, opts ListOpts) ([]Summary, error) {
	limit := opts.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	sqlStr := `
		SELECT z.id, z.subject_id, z.title, z.time_limit_min, z.max_attempts, z.is_published, z.created_at
		FROM quizzes z WHERE 1=1`
	args := []any{}
	n := 0
	next := func() string { n++; return "$" + strconv.Itoa(n) }

	// Learners only see published+active quizzes for subjects they are
	// enrolled in; teachers see their own authored set; admins see all.
	switch opts.ViewerRole {
	case "teacher":
		sqlStr += ` AND z.author_id=` + next()
		args = append(args, opts.ViewerID)
	case "admin":
	default:
		sqlStr += ` AND z.is_published AND z.is_active
			AND z.subject_id IN (SELECT subject_id FROM enrollments WHERE user_id=` + next() + `)`
		args = append(args, opts.ViewerID)
	}
	if opts.SubjectID != "" {
		sqlStr += ` AND z.subject_id=` + next()
		args = append(args, opts.SubjectID)
	}
	if opts.Q != "" {
		sqlStr += ` AND lower(z.title) LIKE '%' || lower(` + next() + `) || '%'`
		args = append(args, opts.Q)
	}
	sqlStr += ` ORDER BY z.created_at DESC LIMIT ` + next()
	args = append(args, limit)
	sqlStr += ` OFFSET ` + next()
	args = append(args, offset)

	rows, err := c.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		var (
			s     Summary
			tl    sql.NullInt64
		)
		if err := rows.Scan(&s.ID, &s.SubjectID, &s.Title, &tl, &s.MaxAttempts, &s.IsPublished, &s.CreatedAt); err != nil {
			return nil, err
		}
		if tl.Valid {
			v := int(tl.Int64)
			s.TimeLimitMin = &v
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
