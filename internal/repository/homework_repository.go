package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/classdesk/classdesk-api/internal/models"
)

// HomeworkRepository handles persistence for homework assignments.
type HomeworkRepository struct {
	db *sqlx.DB
}

// NewHomeworkRepository creates a new repository instance.
func NewHomeworkRepository(db *sqlx.DB) *HomeworkRepository {
	return &HomeworkRepository{db: db}
}

// Create persists a new homework.
func (r *HomeworkRepository) Create(ctx context.Context, homework *models.Homework) error {
	if homework.ID == "" {
		homework.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if homework.CreatedAt.IsZero() {
		homework.CreatedAt = now
	}
	homework.UpdatedAt = now

	const query = `INSERT INTO homeworks (id, subject_id, name, instructions, due_date, max_score, created_at, updated_at)
		VALUES (:id, :subject_id, :name, :instructions, :due_date, :max_score, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, homework); err != nil {
		return fmt.Errorf("create homework: %w", err)
	}
	return nil
}

// Update modifies homework fields.
func (r *HomeworkRepository) Update(ctx context.Context, homework *models.Homework) error {
	homework.UpdatedAt = time.Now().UTC()
	const query = `UPDATE homeworks SET name = :name, instructions = :instructions, due_date = :due_date, max_score = :max_score, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, homework); err != nil {
		return fmt.Errorf("update homework: %w", err)
	}
	return nil
}

// Delete removes a homework record.
func (r *HomeworkRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM homeworks WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete homework: %w", err)
	}
	return nil
}

// FindByID returns a homework by id.
func (r *HomeworkRepository) FindByID(ctx context.Context, id string) (*models.Homework, error) {
	const query = `SELECT id, subject_id, name, instructions, due_date, max_score, created_at, updated_at FROM homeworks WHERE id = $1`
	var homework models.Homework
	if err := r.db.GetContext(ctx, &homework, query, id); err != nil {
		return nil, err
	}
	return &homework, nil
}

// ListBySubject returns all homeworks for a subject ordered by due date.
func (r *HomeworkRepository) ListBySubject(ctx context.Context, subjectID string) ([]models.Homework, error) {
	const query = `SELECT id, subject_id, name, instructions, due_date, max_score, created_at, updated_at
		FROM homeworks WHERE subject_id = $1 ORDER BY due_date`
	var homeworks []models.Homework
	if err := r.db.SelectContext(ctx, &homeworks, query, subjectID); err != nil {
		return nil, fmt.Errorf("list homeworks by subject: %w", err)
	}
	return homeworks, nil
}

// ListByTeacher returns homeworks across every subject owned by the teacher.
func (r *HomeworkRepository) ListByTeacher(ctx context.Context, teacherID string, limit, offset int) ([]models.Homework, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	const query = `SELECT h.id, h.subject_id, h.name, h.instructions, h.due_date, h.max_score, h.created_at, h.updated_at
		FROM homeworks h
		JOIN subjects s ON s.id = h.subject_id
		WHERE s.teacher_id = $1
		ORDER BY h.due_date
		LIMIT $2 OFFSET $3`
	var homeworks []models.Homework
	if err := r.db.SelectContext(ctx, &homeworks, query, teacherID, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("list homeworks by teacher: %w", err)
	}

	const countQuery = `SELECT COUNT(*) FROM homeworks h JOIN subjects s ON s.id = h.subject_id WHERE s.teacher_id = $1`
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, teacherID); err != nil {
		return nil, 0, fmt.Errorf("count homeworks by teacher: %w", err)
	}

	return homeworks, total, nil
}

// ListForStudent returns homeworks across the student's enrolled subjects.
func (r *HomeworkRepository) ListForStudent(ctx context.Context, studentID string) ([]models.Homework, error) {
	const query = `SELECT h.id, h.subject_id, h.name, h.instructions, h.due_date, h.max_score, h.created_at, h.updated_at
		FROM homeworks h
		JOIN subject_students ss ON ss.subject_id = h.subject_id
		WHERE ss.student_id = $1
		ORDER BY h.due_date`
	var homeworks []models.Homework
	if err := r.db.SelectContext(ctx, &homeworks, query, studentID); err != nil {
		return nil, fmt.Errorf("list homeworks for student: %w", err)
	}
	return homeworks, nil
}
