package courses

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

// Repository handles course persistence in PostgreSQL. Lessons live in a JSONB
// column so a course and its lessons change in one row update.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a course repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const courseColumns = `id, title, description, instructor, category, thumbnail, enrolled_count, lessons, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCourse(row rowScanner) (*models.Course, error) {
	var c models.Course
	var lessons []byte
	if err := row.Scan(&c.ID, &c.Title, &c.Description, &c.Instructor, &c.Category, &c.Thumbnail,
		&c.EnrolledCount, &lessons, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Lessons = []models.Lesson{}
	if len(lessons) > 0 {
		if err := json.Unmarshal(lessons, &c.Lessons); err != nil {
			return nil, fmt.Errorf("decode lessons: %w", err)
		}
	}
	return &c, nil
}

func encodeLessons(ls []models.Lesson) (string, error) {
	if ls == nil {
		ls = []models.Lesson{}
	}
	b, err := json.Marshal(ls)
	if err != nil {
		return "", fmt.Errorf("encode lessons: %w", err)
	}
	return string(b), nil
}

// List returns all courses, oldest first.
func (r *Repository) List(ctx context.Context) ([]models.Course, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+courseColumns+` FROM courses ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []models.Course{}
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *c)
	}
	return list, rows.Err()
}

// Get returns a course by ID.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.Course, error) {
	c, err := scanCourse(r.pool.QueryRow(ctx, `SELECT `+courseColumns+` FROM courses WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("course %s not found", id)
	}
	return c, err
}

// Create inserts a new course.
func (r *Repository) Create(ctx context.Context, c *models.Course) error {
	lessons, err := encodeLessons(c.Lessons)
	if err != nil {
		return err
	}
	const q = `INSERT INTO courses (id, title, description, instructor, category, thumbnail, enrolled_count, lessons)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb)
		RETURNING created_at, updated_at`
	err = r.pool.QueryRow(ctx, q, c.ID, c.Title, c.Description, c.Instructor, c.Category, c.Thumbnail, c.EnrolledCount, lessons).
		Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert course: %w", err)
	}
	return nil
}

// Mutate locks the row, applies fn and writes every mutable column back in one transaction.
func (r *Repository) Mutate(ctx context.Context, id uuid.UUID, fn func(c *models.Course) error) (*models.Course, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	c, err := scanCourse(tx.QueryRow(ctx, `SELECT `+courseColumns+` FROM courses WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("course %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	if err := fn(c); err != nil {
		return nil, err
	}
	lessons, err := encodeLessons(c.Lessons)
	if err != nil {
		return nil, err
	}
	const upd = `UPDATE courses SET title = $2, description = $3, instructor = $4, category = $5, thumbnail = $6,
		enrolled_count = $7, lessons = $8::jsonb, updated_at = NOW()
		WHERE id = $1 RETURNING updated_at`
	if err := tx.QueryRow(ctx, upd, id, c.Title, c.Description, c.Instructor, c.Category, c.Thumbnail, c.EnrolledCount, lessons).
		Scan(&c.UpdatedAt); err != nil {
		return nil, fmt.Errorf("update course: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	c.ID = id
	return c, nil
}

// Delete removes a course; its enrollments go with it (ON DELETE CASCADE).
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM courses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("course %s not found", id)
	}
	return nil
}

// Count returns the number of courses.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM courses`).Scan(&n)
	return n, err
}
