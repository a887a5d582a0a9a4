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

// SubmissionRepository handles persistence for homework submissions.
type SubmissionRepository struct {
	db *sqlx.DB
}

// NewSubmissionRepository creates a new repository instance.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// Create persists a new submission. The table carries a unique constraint
// on (homework_id, student_id) as a backstop against concurrent duplicates.
func (r *SubmissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if submission.CreatedAt.IsZero() {
		submission.CreatedAt = now
	}
	submission.UpdatedAt = now

	const query = `INSERT INTO submissions (id, homework_id, student_id, submitted_at, file_path, status, grade, feedback, created_at, updated_at)
		VALUES (:id, :homework_id, :student_id, :submitted_at, :file_path, :status, :grade, :feedback, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, submission); err != nil {
		return fmt.Errorf("create submission: %w", err)
	}
	return nil
}

// FindByID returns a submission by id.
func (r *SubmissionRepository) FindByID(ctx context.Context, id string) (*models.Submission, error) {
	const query = `SELECT id, homework_id, student_id, submitted_at, file_path, status, grade, feedback, created_at, updated_at
		FROM submissions WHERE id = $1`
	var submission models.Submission
	if err := r.db.GetContext(ctx, &submission, query, id); err != nil {
		return nil, err
	}
	return &submission, nil
}

// FindByHomeworkAndStudent returns the at-most-one submission for the pair,
// or sql.ErrNoRows when none exists.
func (r *SubmissionRepository) FindByHomeworkAndStudent(ctx context.Context, homeworkID, studentID string) (*models.Submission, error) {
	const query = `SELECT id, homework_id, student_id, submitted_at, file_path, status, grade, feedback, created_at, updated_at
		FROM submissions WHERE homework_id = $1 AND student_id = $2`
	var submission models.Submission
	if err := r.db.GetContext(ctx, &submission, query, homeworkID, studentID); err != nil {
		return nil, err
	}
	return &submission, nil
}

// ListByHomework returns every submission against one homework.
func (r *SubmissionRepository) ListByHomework(ctx context.Context, homeworkID string) ([]models.Submission, error) {
	const query = `SELECT id, homework_id, student_id, submitted_at, file_path, status, grade, feedback, created_at, updated_at
		FROM submissions WHERE homework_id = $1 ORDER BY submitted_at`
	var submissions []models.Submission
	if err := r.db.SelectContext(ctx, &submissions, query, homeworkID); err != nil {
		return nil, fmt.Errorf("list submissions by homework: %w", err)
	}
	return submissions, nil
}

// ListByStudent returns every submission made by one student.
func (r *SubmissionRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Submission, error) {
	const query = `SELECT id, homework_id, student_id, submitted_at, file_path, status, grade, feedback, created_at, updated_at
		FROM submissions WHERE student_id = $1 ORDER BY submitted_at`
	var submissions []models.Submission
	if err := r.db.SelectContext(ctx, &submissions, query, studentID); err != nil {
		return nil, fmt.Errorf("list submissions by student: %w", err)
	}
	return submissions, nil
}

// ListDetailsByStudent returns a student's submissions joined with homework
// and subject context, used by the student analytics rollup.
func (r *SubmissionRepository) ListDetailsByStudent(ctx context.Context, studentID string) ([]models.SubmissionDetail, error) {
	const query = `SELECT sub.id, sub.homework_id, sub.student_id, sub.submitted_at, sub.file_path, sub.status, sub.grade, sub.feedback, sub.created_at, sub.updated_at,
		h.name AS homework_name, s.id AS subject_id, s.name AS subject_name
		FROM submissions sub
		JOIN homeworks h ON h.id = sub.homework_id
		JOIN subjects s ON s.id = h.subject_id
		WHERE sub.student_id = $1
		ORDER BY sub.submitted_at`
	var details []models.SubmissionDetail
	if err := r.db.SelectContext(ctx, &details, query, studentID); err != nil {
		return nil, fmt.Errorf("list submission details by student: %w", err)
	}
	return details, nil
}

// UpdateGrade sets grade, feedback and status for a submission.
func (r *SubmissionRepository) UpdateGrade(ctx context.Context, id string, grade int, feedback string, status models.SubmissionStatus) error {
	const query = `UPDATE submissions SET grade = $2, feedback = $3, status = $4, updated_at = $5 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, grade, feedback, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("grade submission: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
