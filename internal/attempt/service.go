package attempt

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/study-hall/studyhall-school/internal/grading"
	"github.com/study-hall/studyhall-school/internal/quiz"
	"github.com/study-hall/studyhall-school/internal/roster"
	syncx "github.com/study-hall/studyhall-school/internal/sync"
)

// Principal is the already-authenticated caller, threaded explicitly into
// every operation.
type Principal struct {
	ID   string
	Role string // "student" | "teacher" | "admin"
}

func (p Principal) admin() bool { return p.Role == "admin" }

// Service owns the attempt lifecycle: creation rules, response capture,
// grading on submit, and the manual grading pass.
type Service struct {
	db       *sql.DB
	catalog  quiz.Catalog
	roster   roster.Roster
	grader   grading.Grader
	shuffler *Shuffler
	now      func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }
func WithShuffler(sh *Shuffler) Option      { return func(s *Service) { s.shuffler = sh } }

func NewService(db *sql.DB, catalog quiz.Catalog, r roster.Roster, g grading.Grader, opts ...Option) *Service {
	s := &Service{
		db:       db,
		catalog:  catalog,
		roster:   r,
		grader:   g,
		shuffler: NewShuffler(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start creates a new attempt, or transparently resumes the learner's
// in-progress one. The attempt number is the count of prior attempts plus
// one, assigned here and never reused.
func (s *Service) Start(ctx context.Context, p Principal, quizID string) (Attempt, error) {
	z, err := s.catalog.Get(ctx, quizID)
	if err != nil {
		return Attempt{}, err
	}
	enrolled, err := s.roster.IsEnrolled(ctx, p.ID, z.SubjectID)
	if err != nil {
		return Attempt{}, fmt.Errorf("eligibility check: %w", err)
	}
	if !enrolled {
		return Attempt{}, fmt.Errorf("%w: not enrolled in subject %s", ErrAccessDenied, z.SubjectID)
	}
	now := s.now().UTC()
	if !z.AvailableAt(now) {
		return Attempt{}, ErrNotAvailable
	}

	// Idempotent resume: at most one in_progress attempt exists per
	// (learner, quiz), return it unchanged rather than erroring.
	existing, err := s.findOpen(ctx, quizID, p.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Attempt{}, err
	}

	var count int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM attempts WHERE quiz_id=$1 AND user_id=$2`,
		quizID, p.ID).Scan(&count); err != nil {
		return Attempt{}, fmt.Errorf("count attempts: %w", err)
	}
	if count >= z.MaxAttempts {
		return Attempt{}, fmt.Errorf("%w: %d of %d attempts used", ErrAttemptLimitReached, count, z.MaxAttempts)
	}

	a := Attempt{
		ID:            uuid.NewString(),
		QuizID:        quizID,
		UserID:        p.ID,
		AttemptNumber: count + 1,
		Status:        StatusInProgress,
		StartedAt:     now.Unix(),
	}
	err = withTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO attempts (id, quiz_id, user_id, attempt_number, status, started_at)
			 VALUES ($1,$2,$3,$4,$5,$6)`,
			a.ID, a.QuizID, a.UserID, a.AttemptNumber, a.Status, a.StartedAt); err != nil {
			return err
		}
		return syncx.AppendTx(ctx, tx, syncx.Event{
			Type: syncx.TypeAttemptStarted,
			Key:  a.ID,
			DataJSON: syncx.Payload(map[string]any{
				"quiz_id": a.QuizID, "user_id": a.UserID, "attempt_number": a.AttemptNumber,
			}),
		})
	})
	if err != nil {
		return Attempt{}, classifyTxErr(err)
	}
	return a, nil
}

// View routes by attempt state: in-progress attempts render the working view,
// completed ones the result view. Exactly one of the returns is non-nil on
// success. Submission and resumption are mutually exclusive paths, so
// requesting the "wrong" view redirects instead of erroring.
func (s *Service) View(ctx context.Context, p Principal, attemptID string) (*WorkingView, *ResultView, error) {
	a, err := s.getAttempt(ctx, attemptID)
	if err != nil {
		return nil, nil, err
	}
	if a.UserID != p.ID && !p.admin() {
		return nil, nil, ErrAccessDenied
	}

	if a.Status == StatusInProgress {
		z, err := s.catalog.Get(ctx, a.QuizID)
		if err != nil {
			return nil, nil, err
		}
		responses, err := s.loadResponses(ctx, attemptID)
		if err != nil {
			return nil, nil, err
		}
		wv := &WorkingView{
			Attempt:          a,
			Questions:        s.shuffler.Order(z),
			Responses:        responses,
			RemainingSeconds: RemainingSeconds(z, a, s.now().UTC()),
		}
		return wv, nil, nil
	}

	rv, err := s.result(ctx, a)
	if err != nil {
		return nil, nil, err
	}
	return nil, rv, nil
}

func (s *Service) result(ctx context.Context, a Attempt) (*ResultView, error) {
	z, err := s.catalog.GetAuthoring(ctx, a.QuizID)
	if err != nil {
		return nil, err
	}
	responses, err := s.loadResponses(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	rv := &ResultView{Attempt: a}
	for _, q := range z.Questions {
		rq := ResultQuestion{
			QuestionID: q.ID,
			Type:       q.Type,
			Prompt:     q.Prompt,
			Points:     q.Points,
		}
		if r, ok := responses[q.ID]; ok {
			r := r
			rq.Response = &r
		}
		// Correct answers are exposed only when the quiz says so.
		if z.ShowCorrectAnswers {
			rq.Answers = q.Answers
			rq.CorrectAnswerID = q.CorrectAnswerID()
		}
		rv.Questions = append(rv.Questions, rq)
	}
	return rv, nil
}

// SaveResponse upserts the learner's answer for one question: at most one
// response per (attempt, question), last write wins, stale grading fields
// cleared. Grading is deferred entirely to Submit.
func (s *Service) SaveResponse(ctx context.Context, p Principal, attemptID string, in ResponseInput) (Response, error) {
	a, err := s.getAttempt(ctx, attemptID)
	if err != nil {
		return Response{}, err
	}
	if a.UserID != p.ID {
		return Response{}, ErrAccessDenied
	}
	if a.Status != StatusInProgress {
		return Response{}, fmt.Errorf("%w (status=%s)", ErrAttemptClosed, a.Status)
	}
	z, err := s.catalog.GetAuthoring(ctx, a.QuizID)
	if err != nil {
		return Response{}, err
	}
	if err := upsertResponse(ctx, s.db, z, a, in, s.now().Unix()); err != nil {
		return Response{}, err
	}
	var r Response
	err = scanResponse(s.db.QueryRowContext(ctx,
		responseCols+` FROM responses WHERE attempt_id=$1 AND question_id=$2`,
		attemptID, in.QuestionID), &r)
	return r, err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertResponse(ctx context.Context, ex execer, z quiz.Quiz, a Attempt, in ResponseInput, now int64) error {
	q := z.QuestionByID(in.QuestionID)
	if q == nil {
		return &FieldError{Field: "question_id", Message: "question does not belong to this quiz"}
	}
	var answerID, text, attachment any
	if q.Type.Objective() {
		if in.TextAnswer != "" {
			return &FieldError{Field: "text_answer", Message: "objective questions take an answer choice, not text"}
		}
		if in.AnswerID != "" {
			found := false
			for _, opt := range q.Answers {
				if opt.ID == in.AnswerID {
					found = true
					break
				}
			}
			if !found {
				return &FieldError{Field: "answer_id", Message: "answer does not belong to this question"}
			}
			answerID = in.AnswerID
		}
	} else {
		if in.AnswerID != "" {
			return &FieldError{Field: "answer_id", Message: fmt.Sprintf("%s questions take free text", q.Type)}
		}
		if in.TextAnswer != "" {
			text = in.TextAnswer
		}
		if in.AttachmentKey != "" {
			attachment = in.AttachmentKey
		}
	}

	_, err := ex.ExecContext(ctx, `
		INSERT INTO responses (id, attempt_id, question_id, answer_id, text_answer, attachment_key, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (attempt_id, question_id) DO UPDATE SET
		  answer_id=EXCLUDED.answer_id,
		  text_answer=EXCLUDED.text_answer,
		  attachment_key=EXCLUDED.attachment_key,
		  is_correct=NULL,
		  points_earned=NULL,
		  feedback=NULL,
		  updated_at=EXCLUDED.updated_at`,
		uuid.NewString(), a.ID, in.QuestionID, answerID, text, attachment, now)
	if err != nil {
		return fmt.Errorf("save response: %w", err)
	}
	return nil
}

// Submit grades the attempt inside one transaction: trailing responses are
// persisted, unanswered questions synthesize zero-point responses, objective
// types auto-grade, subjective ones stay ungraded for a human pass. A repeat
// call on a completed attempt is a no-op returning the graded attempt.
func (s *Service) Submit(ctx context.Context, p Principal, attemptID string, trailing []ResponseInput) (Attempt, error) {
	a, err := s.getAttempt(ctx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if a.UserID != p.ID {
		return Attempt{}, ErrAccessDenied
	}
	if a.Status == StatusCompleted {
		return a, nil
	}
	z, err := s.catalog.GetAuthoring(ctx, a.QuizID)
	if err != nil {
		return Attempt{}, err
	}

	now := s.now().UTC()
	err = withTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, in := range trailing {
			if err := upsertResponse(ctx, tx, z, a, in, now.Unix()); err != nil {
				return err
			}
		}

		responses, err := loadResponsesTx(ctx, tx, a.ID)
		if err != nil {
			return err
		}

		hasManual := false
		var score float64
		for _, q := range z.Questions {
			if !q.Type.Objective() {
				hasManual = true
			}
			r, answered := responses[q.ID]
			if !answered {
				// An omitted question scores zero, whatever its type.
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO responses (id, attempt_id, question_id, is_correct, points_earned, updated_at)
					VALUES ($1,$2,$3,$4,0,$5)`,
					uuid.NewString(), a.ID, q.ID, false, now.Unix()); err != nil {
					return fmt.Errorf("synthesize response for %s: %w", q.ID, err)
				}
				continue
			}

			gq := grading.Q{Type: q.Type, Points: q.Points, CorrectAnswerID: q.CorrectAnswerID()}
			gr := grading.Response{}
			if r.AnswerID != nil {
				gr.AnswerID = *r.AnswerID
			}
			if r.TextAnswer != nil {
				gr.Text = *r.TextAnswer
			}
			res, err := s.grader.Grade(ctx, gq, gr)
			if err != nil {
				return fmt.Errorf("grade question %s: %w", q.ID, err)
			}
			if res.NeedsManual {
				continue // points stay null until ManualGrade
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE responses SET is_correct=$1, points_earned=$2 WHERE id=$3`,
				res.IsCorrect, res.PointsEarned, r.ID); err != nil {
				return fmt.Errorf("store grade for %s: %w", q.ID, err)
			}
			score += res.PointsEarned
		}

		total := z.TotalPoints()
		var pct any
		if !hasManual {
			pct = grading.Percentage(score, total)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE attempts SET status=$1, completed_at=$2, score=$3, total_points=$4, percentage=$5
			WHERE id=$6`,
			StatusCompleted, now.Unix(), score, total, pct, a.ID); err != nil {
			return fmt.Errorf("complete attempt: %w", err)
		}

		return syncx.AppendTx(ctx, tx, syncx.Event{
			Type: syncx.TypeAttemptSubmitted,
			Key:  a.ID,
			DataJSON: syncx.Payload(map[string]any{
				"quiz_id": a.QuizID, "user_id": a.UserID,
				"score": score, "total_points": total, "pending_manual": hasManual,
			}),
		})
	})
	if err != nil {
		return Attempt{}, classifyTxErr(err)
	}
	return s.getAttempt(ctx, attemptID)
}

// ManualGrade lets the quiz author score subjective (and revise any)
// responses after Submit closed the attempt, then re-totals. Re-runnable:
// grading the same response twice simply re-totals.
func (s *Service) ManualGrade(ctx context.Context, p Principal, attemptID string, items []ManualGradeInput) (Attempt, error) {
	a, z, err := s.gradable(ctx, p, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	for _, it := range items {
		if it.ResponseID == "" {
			return Attempt{}, &FieldError{Field: "response_id", Message: "required"}
		}
		if it.PointsEarned < 0 {
			return Attempt{}, &FieldError{Field: "points_earned", Message: "must be >= 0"}
		}
	}

	now := s.now().Unix()
	err = withTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, it := range items {
			res, err := tx.ExecContext(ctx, `
				UPDATE responses SET points_earned=$1, feedback=$2, is_correct=$3, updated_at=$4
				WHERE id=$5 AND attempt_id=$6`,
				it.PointsEarned, it.Feedback, it.PointsEarned > 0, now, it.ResponseID, a.ID)
			if err != nil {
				return fmt.Errorf("apply grade %s: %w", it.ResponseID, err)
			}
			if n, err := res.RowsAffected(); err == nil && n == 0 {
				return &FieldError{Field: "response_id", Message: "response " + it.ResponseID + " does not belong to this attempt"}
			}
		}

		// Re-total across all responses, auto- and manually-graded alike.
		var score float64
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(SUM(points_earned),0) FROM responses WHERE attempt_id=$1`,
			a.ID).Scan(&score); err != nil {
			return fmt.Errorf("recompute score: %w", err)
		}
		total := z.TotalPoints()
		pct := grading.Percentage(score, total)
		if _, err := tx.ExecContext(ctx,
			`UPDATE attempts SET score=$1, total_points=$2, percentage=$3 WHERE id=$4`,
			score, total, pct, a.ID); err != nil {
			return fmt.Errorf("store totals: %w", err)
		}

		return syncx.AppendTx(ctx, tx, syncx.Event{
			Type: syncx.TypeAttemptGraded,
			Key:  a.ID,
			DataJSON: syncx.Payload(map[string]any{
				"graded_by": p.ID, "items": len(items), "score": score, "percentage": pct,
			}),
		})
	})
	if err != nil {
		return Attempt{}, classifyTxErr(err)
	}
	return s.getAttempt(ctx, attemptID)
}

// GradingView lists per-response grading items of a completed attempt for
// the grader UI.
func (s *Service) GradingView(ctx context.Context, p Principal, attemptID string) ([]GradingItem, error) {
	a, z, err := s.gradable(ctx, p, attemptID)
	if err != nil {
		return nil, err
	}
	responses, err := s.loadResponses(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	items := make([]GradingItem, 0, len(z.Questions))
	for _, q := range z.Questions {
		r, ok := responses[q.ID]
		if !ok {
			continue
		}
		// A subjective row stays flagged while its points are null, and also
		// while the attempt's percentage is withheld: a synthesized zero for
		// an omitted essay carries points already, but the grader's pass is
		// what releases the percentage, so it must still surface here.
		needsManual := !q.Type.Objective() && (r.PointsEarned == nil || a.Percentage == nil)
		items = append(items, GradingItem{
			ResponseID:   r.ID,
			QuestionID:   q.ID,
			Type:         q.Type,
			Prompt:       q.Prompt,
			Points:       q.Points,
			AnswerID:     r.AnswerID,
			TextAnswer:   r.TextAnswer,
			IsCorrect:    r.IsCorrect,
			PointsEarned: r.PointsEarned,
			Feedback:     r.Feedback,
			NeedsManual:  needsManual,
		})
	}
	return items, nil
}

// gradable loads the attempt and quiz for a grader action: the attempt must
// be completed (the learner's mutation window has closed) and the caller
// must be the quiz's author or an admin.
func (s *Service) gradable(ctx context.Context, p Principal, attemptID string) (Attempt, quiz.Quiz, error) {
	a, err := s.getAttempt(ctx, attemptID)
	if err != nil {
		return Attempt{}, quiz.Quiz{}, err
	}
	if a.Status != StatusCompleted {
		return Attempt{}, quiz.Quiz{}, ErrAttemptInProgress
	}
	z, err := s.catalog.GetAuthoring(ctx, a.QuizID)
	if err != nil {
		return Attempt{}, quiz.Quiz{}, err
	}
	if z.AuthorID != p.ID && !p.admin() {
		return Attempt{}, quiz.Quiz{}, fmt.Errorf("%w: only the quiz author may grade", ErrAccessDenied)
	}
	return a, z, nil
}

// List filters attempts for dashboards; callers are responsible for scoping
// UserID to the subject when the viewer may only see their own.
func (s *Service) List(ctx context.Context, opts ListOpts) ([]Attempt, error) {
	limit := opts.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	sqlStr := attemptCols + ` FROM attempts WHERE 1=1`
	args := []any{}
	n := 0
	next := func() string { n++; return "$" + strconv.Itoa(n) }

	if opts.QuizID != "" {
		sqlStr += ` AND quiz_id=` + next()
		args = append(args, opts.QuizID)
	}
	if opts.UserID != "" {
		sqlStr += ` AND user_id=` + next()
		args = append(args, opts.UserID)
	}
	if opts.Status != "" {
		sqlStr += ` AND status=` + next()
		args = append(args, opts.Status)
	}
	switch opts.Sort {
	case "completed_at":
		sqlStr += ` ORDER BY completed_at DESC`
	default:
		sqlStr += ` ORDER BY started_at DESC`
	}
	sqlStr += ` LIMIT ` + next()
	args = append(args, limit)
	sqlStr += ` OFFSET ` + next()
	args = append(args, offset)

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	out := []Attempt{}
	for rows.Next() {
		a, err := scanAttemptRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

/* ---------------- row plumbing ---------------- */

const attemptCols = `SELECT id, quiz_id, user_id, attempt_number, status, started_at, completed_at, score, total_points, percentage`

const responseCols = `SELECT id, attempt_id, question_id, answer_id, text_answer, attachment_key, is_correct, points_earned, feedback, updated_at`

func (s *Service) getAttempt(ctx context.Context, id string) (Attempt, error) {
	row := s.db.QueryRowContext(ctx, attemptCols+` FROM attempts WHERE id=$1`, id)
	return scanAttempt(row)
}

func (s *Service) findOpen(ctx context.Context, quizID, userID string) (Attempt, error) {
	row := s.db.QueryRowContext(ctx,
		attemptCols+` FROM attempts WHERE quiz_id=$1 AND user_id=$2 AND status=$3`,
		quizID, userID, StatusInProgress)
	return scanAttempt(row)
}

type rowScanner interface{ Scan(dest ...any) error }

func scanAttempt(row rowScanner) (Attempt, error) {
	var (
		a         Attempt
		completed sql.NullInt64
		score     sql.NullFloat64
		total     sql.NullFloat64
		pct       sql.NullFloat64
	)
	err := row.Scan(&a.ID, &a.QuizID, &a.UserID, &a.AttemptNumber, &a.Status,
		&a.StartedAt, &completed, &score, &total, &pct)
	if errors.Is(err, sql.ErrNoRows) {
		return Attempt{}, ErrNotFound
	}
	if err != nil {
		return Attempt{}, fmt.Errorf("load attempt: %w", err)
	}
	if completed.Valid {
		a.CompletedAt = &completed.Int64
	}
	if score.Valid {
		a.Score = &score.Float64
	}
	if total.Valid {
		a.TotalPoints = &total.Float64
	}
	if pct.Valid {
		a.Percentage = &pct.Float64
	}
	return a, nil
}

func scanAttemptRows(rows *sql.Rows) (Attempt, error) { return scanAttempt(rows) }

func scanResponse(row rowScanner, r *Response) error {
	var (
		answerID, text, attachment, feedback sql.NullString
		correct                              sql.NullBool
		points                               sql.NullFloat64
	)
	err := row.Scan(&r.ID, &r.AttemptID, &r.QuestionID, &answerID, &text, &attachment,
		&correct, &points, &feedback, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load response: %w", err)
	}
	if answerID.Valid {
		r.AnswerID = &answerID.String
	}
	if text.Valid {
		r.TextAnswer = &text.String
	}
	if attachment.Valid {
		r.AttachmentKey = &attachment.String
	}
	if correct.Valid {
		r.IsCorrect = &correct.Bool
	}
	if points.Valid {
		r.PointsEarned = &points.Float64
	}
	if feedback.Valid {
		r.Feedback = &feedback.String
	}
	return nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Service) loadResponses(ctx context.Context, attemptID string) (map[string]Response, error) {
	return loadResponsesTx(ctx, s.db, attemptID)
}

func loadResponsesTx(ctx context.Context, q queryer, attemptID string) (map[string]Response, error) {
	rows, err := q.QueryContext(ctx, responseCols+` FROM responses WHERE attempt_id=$1`, attemptID)
	if err != nil {
		return nil, fmt.Errorf("load responses: %w", err)
	}
	defer rows.Close()
	out := map[string]Response{}
	for rows.Next() {
		var r Response
		if err := scanResponse(rows, &r); err != nil {
			return nil, err
		}
		out[r.QuestionID] = r
	}
	return out, rows.Err()
}
