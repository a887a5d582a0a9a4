package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/classdesk/classdesk-api/internal/models"
)

// SubjectRepository handles persistence for subjects and their rosters.
type SubjectRepository struct {
	db *sqlx.DB
}

// NewSubjectRepository creates a new repository instance.
func NewSubjectRepository(db *sqlx.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

// Create persists a new subject.
func (r *SubjectRepository) Create(ctx context.Context, subject *models.Subject) error {
	if subject.ID == "" {
		subject.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if subject.CreatedAt.IsZero() {
		subject.CreatedAt = now
	}
	subject.UpdatedAt = now

	const query = `INSERT INTO subjects (id, name, detail, teacher_id, created_at, updated_at)
		VALUES (:id, :name, :detail, :teacher_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, subject); err != nil {
		return fmt.Errorf("create subject: %w", err)
	}
	return nil
}

// Update modifies a subject's name and detail.
func (r *SubjectRepository) Update(ctx context.Context, subject *models.Subject) error {
	subject.UpdatedAt = time.Now().UTC()
	const query = `UPDATE subjects SET name = :name, detail = :detail, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, subject); err != nil {
		return fmt.Errorf("update subject: %w", err)
	}
	return nil
}

// FindByID returns a subject by id.
func (r *SubjectRepository) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	const query = `SELECT id, name, detail, teacher_id, created_at, updated_at FROM subjects WHERE id = $1`
	var subject models.Subject
	if err := r.db.GetContext(ctx, &subject, query, id); err != nil {
		return nil, err
	}
	return &subject, nil
}

// ListByTeacher returns subjects owned by the given teacher.
func (r *SubjectRepository) ListByTeacher(ctx context.Context, teacherID string) ([]models.Subject, error) {
	const query = `SELECT id, name, detail, teacher_id, created_at, updated_at FROM subjects WHERE teacher_id = $1 ORDER BY created_at`
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query, teacherID); err != nil {
		return nil, fmt.Errorf("list subjects by teacher: %w", err)
	}
	return subjects, nil
}

// ListByStudent returns subjects the given student is enrolled in.
func (r *SubjectRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Subject, error) {
	const query = `SELECT s.id, s.name, s.detail, s.teacher_id, s.created_at, s.updated_at
		FROM subjects s
		JOIN subject_students ss ON ss.subject_id = s.id
		WHERE ss.student_id = $1
		ORDER BY s.created_at`
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query, studentID); err != nil {
		return nil, fmt.Errorf("list subjects by student: %w", err)
	}
	return subjects, nil
}

// ListStudents returns the users enrolled in the subject's roster.
func (r *SubjectRepository) ListStudents(ctx context.Context, subjectID string) ([]models.User, error) {
	const query = `SELECT u.id, u.email, u.password_hash, u.first_name, u.last_name, u.role, u.created_at, u.updated_at
		FROM users u
		JOIN subject_students ss ON ss.student_id = u.id
		WHERE ss.subject_id = $1
		ORDER BY u.last_name, u.first_name`
	var students []models.User
	if err := r.db.SelectContext(ctx, &students, query, subjectID); err != nil {
		return nil, fmt.Errorf("list subject students: %w", err)
	}
	return students, nil
}

// IsEnrolled checks roster membership for the (subject, student) pair.
func (r *SubjectRepository) IsEnrolled(ctx context.Context, subjectID, studentID string) (bool, error) {
	const query = `SELECT 1 FROM subject_students WHERE subject_id = $1 AND student_id = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, subjectID, studentID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return true, nil
}

// AddStudent appends a student to the subject roster. The table carries a
// unique constraint on (subject_id, student_id) as a backstop against
// concurrent duplicate enrollments.
func (r *SubjectRepository) AddStudent(ctx context.Context, subjectID, studentID string) error {
	const query = `INSERT INTO subject_students (subject_id, student_id) VALUES ($1, $2)`
	if _, err := r.db.ExecContext(ctx, query, subjectID, studentID); err != nil {
		return fmt.Errorf("enroll student: %w", err)
	}
	return nil
}

// RemoveStudent removes a student from the subject roster.
func (r *SubjectRepository) RemoveStudent(ctx context.Context, subjectID, studentID string) error {
	const query = `DELETE FROM subject_students WHERE subject_id = $1 AND student_id = $2`
	if _, err := r.db.ExecContext(ctx, query, subjectID, studentID); err != nil {
		return fmt.Errorf("unenroll student: %w", err)
	}
	return nil
}

// CountStudents returns the roster size for a subject.
func (r *SubjectRepository) CountStudents(ctx context.Context, subjectID string) (int, error) {
	const query = `SELECT COUNT(*) FROM subject_students WHERE subject_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, subjectID); err != nil {
		return 0, fmt.Errorf("count subject students: %w", err)
	}
	return count, nil
}
