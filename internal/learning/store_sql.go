package learning

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// SQLStore serves both sqlite and postgres; every query uses $N placeholders.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

const activityCols = `id,course_id,type,status,order_index,title,description,content_json,created_at,updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanActivity(row rowScanner) (Activity, error) {
	var (
		a                Activity
		content          string
		created, updated int64
	)
	if err := row.Scan(&a.ID, &a.CourseID, &a.Type, &a.Status, &a.OrderIndex, &a.Title, &a.Description, &content, &created, &updated); err != nil {
		return Activity{}, err
	}
	if content != "" {
		a.Content = json.RawMessage(content)
	}
	a.CreatedAt = fromUnix(created)
	a.UpdatedAt = fromUnix(updated)
	return a, nil
}

func (s *SQLStore) GetActivity(ctx context.Context, id string) (Activity, error) {
	a, err := scanActivity(s.db.QueryRowContext(ctx, `SELECT `+activityCols+` FROM activities WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Activity{}, fmt.Errorf("activity %q: %w", id, ErrNotFound)
		}
		return Activity{}, err
	}
	return a, nil
}

func (s *SQLStore) PutActivity(ctx context.Context, a Activity) error {
	content := string(a.Content)
	if content == "" {
		content = "{}"
	}
	now := time.Now().Unix()
	_, err := s.db.ExecContext(ctx, `INSERT INTO activities (`+activityCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (id) DO UPDATE SET course_id=EXCLUDED.course_id, type=EXCLUDED.type, status=EXCLUDED.status,
		  order_index=EXCLUDED.order_index, title=EXCLUDED.title, description=EXCLUDED.description,
		  content_json=EXCLUDED.content_json, updated_at=EXCLUDED.updated_at`,
		a.ID, a.CourseID, string(a.Type), string(a.Status), a.OrderIndex, a.Title, a.Description, content, now, now)
	return err
}

func (s *SQLStore) ListPublishedActivities(ctx context.Context, courseID string) ([]Activity, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+activityCols+` FROM activities
		WHERE course_id=$1 AND status=$2 ORDER BY order_index, id`, courseID, string(StatusPublished))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ---- courses ----

func (s *SQLStore) PutCourse(ctx context.Context, c Course) error {
	now := time.Now().Unix()
	_, err := s.db.ExecContext(ctx, `INSERT INTO courses (id,title,description,total_enrollments,created_at,updated_at)
		VALUES ($1,$2,$3,0,$4,$5)
		ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, description=EXCLUDED.description, updated_at=EXCLUDED.updated_at`,
		c.ID, c.Title, c.Description, now, now)
	return err
}

func scanCourse(row rowScanner) (Course, error) {
	var (
		c                Course
		created, updated int64
	)
	if err := row.Scan(&c.ID, &c.Title, &c.Description, &c.TotalEnrollments, &created, &updated); err != nil {
		return Course{}, err
	}
	c.CreatedAt = fromUnix(created)
	c.UpdatedAt = fromUnix(updated)
	return c, nil
}

func (s *SQLStore) GetCourse(ctx context.Context, id string) (Course, error) {
	c, err := scanCourse(s.db.QueryRowContext(ctx,
		`SELECT id,title,description,total_enrollments,created_at,updated_at FROM courses WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Course{}, fmt.Errorf("course %q: %w", id, ErrNotFound)
		}
		return Course{}, err
	}
	return c, nil
}

func (s *SQLStore) ListCourses(ctx context.Context) ([]Course, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id,title,description,total_enrollments,created_at,updated_at FROM courses ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Course
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// IncrementCourseEnrollments bumps the counter in one statement.
func (s *SQLStore) IncrementCourseEnrollments(ctx context.Context, courseID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE courses SET total_enrollments = total_enrollments + 1, updated_at=$1 WHERE id=$2`,
		time.Now().Unix(), courseID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("course %q: %w", courseID, ErrNotFound)
	}
	return nil
}

// ---- enrollments ----

const enrollmentCols = `id,user_id,course_id,progress,score,created_at,updated_at`

func scanEnrollment(row rowScanner) (Enrollment, error) {
	var (
		e                Enrollment
		created, updated int64
	)
	if err := row.Scan(&e.ID, &e.UserID, &e.CourseID, &e.Progress, &e.Score, &created, &updated); err != nil {
		return Enrollment{}, err
	}
	e.CreatedAt = fromUnix(created)
	e.UpdatedAt = fromUnix(updated)
	return e, nil
}

func (s *SQLStore) FindEnrollment(ctx context.Context, userID, courseID string) (*Enrollment, error) {
	e, err := scanEnrollment(s.db.QueryRowContext(ctx,
		`SELECT `+enrollmentCols+` FROM user_courses WHERE user_id=$1 AND course_id=$2`, userID, courseID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

func (s *SQLStore) InsertEnrollment(ctx context.Context, e Enrollment) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO user_courses (`+enrollmentCols+`) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		e.ID, e.UserID, e.CourseID, e.Progress, e.Score, e.CreatedAt.Unix(), e.UpdatedAt.Unix())
	return err
}

func (s *SQLStore) UpdateEnrollmentScores(ctx context.Context, id, userID string, progress, score int, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE user_courses SET progress=$1, score=$2, updated_at=$3 WHERE id=$4 AND user_id=$5`,
		progress, score, at.Unix(), id, userID)
	return err
}

func (s *SQLStore) ListUserEnrollments(ctx context.Context, userID string) ([]DashboardEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT e.id,e.user_id,e.course_id,e.progress,e.score,e.created_at,e.updated_at,c.title
		FROM user_courses e JOIN courses c ON c.id=e.course_id
		WHERE e.user_id=$1 ORDER BY e.updated_at DESC, e.id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DashboardEntry
	for rows.Next() {
		var (
			d                DashboardEntry
			created, updated int64
		)
		if err := rows.Scan(&d.ID, &d.UserID, &d.CourseID, &d.Progress, &d.Score, &created, &updated, &d.CourseTitle); err != nil {
			return nil, err
		}
		d.CreatedAt = fromUnix(created)
		d.UpdatedAt = fromUnix(updated)
		out = append(out, d)
	}
	return out, rows.Err()
}

// ---- progress ----

const progressCols = `id,user_id,activity_id,course_id,score,completed,answers_json,time_spent,created_at,updated_at`

func scanProgress(row rowScanner) (Progress, error) {
	var (
		p                Progress
		answers          sql.NullString
		created, updated int64
	)
	if err := row.Scan(&p.ID, &p.UserID, &p.ActivityID, &p.CourseID, &p.Score, &p.Completed, &answers, &p.TimeSpent, &created, &updated); err != nil {
		return Progress{}, err
	}
	if answers.Valid && answers.String != "" {
		p.Answers = json.RawMessage(answers.String)
	}
	p.CreatedAt = fromUnix(created)
	p.UpdatedAt = fromUnix(updated)
	return p, nil
}

func (s *SQLStore) FindProgress(ctx context.Context, userID, activityID string) (*Progress, error) {
	p, err := scanProgress(s.db.QueryRowContext(ctx,
		`SELECT `+progressCols+` FROM user_progress WHERE user_id=$1 AND activity_id=$2`, userID, activityID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (s *SQLStore) InsertProgress(ctx context.Context, p Progress) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO user_progress (`+progressCols+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		p.ID, p.UserID, p.ActivityID, p.CourseID, p.Score, p.Completed, nullJSON(p.Answers), p.TimeSpent,
		p.CreatedAt.Unix(), p.UpdatedAt.Unix())
	return err
}

func (s *SQLStore) UpdateProgress(ctx context.Context, p Progress) error {
	_, err := s.db.ExecContext(ctx, `UPDATE user_progress
		SET score=$1, completed=$2, answers_json=$3, time_spent=$4, course_id=$5, updated_at=$6
		WHERE id=$7 AND user_id=$8`,
		p.Score, p.Completed, nullJSON(p.Answers), p.TimeSpent, p.CourseID, p.UpdatedAt.Unix(), p.ID, p.UserID)
	return err
}

func (s *SQLStore) ListCompletedProgress(ctx context.Context, userID, courseID string) ([]Progress, error) {
	return s.queryProgress(ctx, `SELECT `+progressCols+` FROM user_progress
		WHERE user_id=$1 AND course_id=$2 AND completed=$3 ORDER BY updated_at, id`, userID, courseID, true)
}

func (s *SQLStore) ListUserProgress(ctx context.Context, userID, courseID string) ([]Progress, error) {
	if courseID == "" {
		return s.queryProgress(ctx, `SELECT `+progressCols+` FROM user_progress
			WHERE user_id=$1 ORDER BY updated_at DESC, id`, userID)
	}
	return s.queryProgress(ctx, `SELECT `+progressCols+` FROM user_progress
		WHERE user_id=$1 AND course_id=$2 ORDER BY updated_at DESC, id`, userID, courseID)
}

func (s *SQLStore) queryProgress(ctx context.Context, q string, args ...any) ([]Progress, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Progress
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func nullJSON(b json.RawMessage) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}

func fromUnix(v int64) time.Time { return time.Unix(v, 0).UTC() }
