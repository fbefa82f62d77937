package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reathuta/lms/internal/models"
	"github.com/reathuta/lms/pkg/apperr"
)

// Repository handles enrollment persistence in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an enrollment repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const enrollmentColumns = `user_id, course_id, completed_lessons, quiz_scores, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEnrollment(row rowScanner) (*models.Enrollment, error) {
	var e models.Enrollment
	var scores []byte
	if err := row.Scan(&e.UserID, &e.CourseID, &e.CompletedLessons, &scores, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.QuizScores = map[string]int{}
	if len(scores) > 0 {
		if err := json.Unmarshal(scores, &e.QuizScores); err != nil {
			return nil, fmt.Errorf("decode quiz_scores: %w", err)
		}
	}
	if e.CompletedLessons == nil {
		e.CompletedLessons = []string{}
	}
	return &e, nil
}

// Create inserts an enrollment; an existing (user, course) row is left untouched.
func (r *Repository) Create(ctx context.Context, e *models.Enrollment) (bool, error) {
	scores, err := json.Marshal(e.QuizScores)
	if err != nil {
		return false, fmt.Errorf("encode quiz_scores: %w", err)
	}
	const q = `INSERT INTO enrollments (user_id, course_id, completed_lessons, quiz_scores)
		VALUES ($1, $2, $3, $4::jsonb)
		ON CONFLICT (user_id, course_id) DO NOTHING
		RETURNING created_at, updated_at`
	err = r.pool.QueryRow(ctx, q, e.UserID, e.CourseID, e.CompletedLessons, string(scores)).Scan(&e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert enrollment: %w", err)
	}
	return true, nil
}

// Get returns the enrollment for a (user, course) pair.
func (r *Repository) Get(ctx context.Context, userID, courseID uuid.UUID) (*models.Enrollment, error) {
	q := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE user_id = $1 AND course_id = $2`
	e, err := scanEnrollment(r.pool.QueryRow(ctx, q, userID, courseID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("not enrolled in course %s", courseID)
	}
	return e, err
}

// ListByUser returns all enrollments of a user, oldest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Enrollment, error) {
	q := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE user_id = $1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Enrollment
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *e)
	}
	return list, rows.Err()
}

// Update locks the row, applies fn and writes the result in one transaction.
func (r *Repository) Update(ctx context.Context, userID, courseID uuid.UUID, fn func(e *models.Enrollment) error) (*models.Enrollment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	q := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE user_id = $1 AND course_id = $2 FOR UPDATE`
	e, err := scanEnrollment(tx.QueryRow(ctx, q, userID, courseID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("not enrolled in course %s", courseID)
	}
	if err != nil {
		return nil, err
	}
	if err := fn(e); err != nil {
		return nil, err
	}
	scores, err := json.Marshal(e.QuizScores)
	if err != nil {
		return nil, fmt.Errorf("encode quiz_scores: %w", err)
	}
	const upd = `UPDATE enrollments SET completed_lessons = $3, quiz_scores = $4::jsonb, updated_at = NOW()
		WHERE user_id = $1 AND course_id = $2 RETURNING updated_at`
	if err := tx.QueryRow(ctx, upd, userID, courseID, e.CompletedLessons, string(scores)).Scan(&e.UpdatedAt); err != nil {
		return nil, fmt.Errorf("update enrollment: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return e, nil
}
