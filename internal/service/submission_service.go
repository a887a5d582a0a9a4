package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/classdesk/classdesk-api/internal/models"
	appErrors "github.com/classdesk/classdesk-api/pkg/errors"
)

type submissionRepository interface {
	Create(ctx context.Context, submission *models.Submission) error
	FindByID(ctx context.Context, id string) (*models.Submission, error)
	FindByHomeworkAndStudent(ctx context.Context, homeworkID, studentID string) (*models.Submission, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.Submission, error)
	UpdateGrade(ctx context.Context, id string, grade int, feedback string, status models.SubmissionStatus) error
}

type homeworkReader interface {
	FindByID(ctx context.Context, id string) (*models.Homework, error)
}

type enrollmentChecker interface {
	IsEnrolled(ctx context.Context, subjectID, studentID string) (bool, error)
}

type submissionFileStore interface {
	SaveStream(originalName string, r io.Reader) (string, error)
	Open(filename string) (io.ReadCloser, error)
	Delete(filename string) error
}

// SubmitRequest carries the upload for one homework submission.
type SubmitRequest struct {
	HomeworkID string
	StudentID  string
	Filename   string
	Content    io.Reader
}

// GradeSubmissionRequest carries the proposed grade and feedback.
type GradeSubmissionRequest struct {
	Grade    *int   `json:"grade" validate:"required"`
	Feedback string `json:"feedback" validate:"required"`
}

// SubmissionService handles the submit and grade workflows.
type SubmissionService struct {
	repo        submissionRepository
	homeworks   homeworkReader
	users       userReader
	enrollments enrollmentChecker
	storage     submissionFileStore
	cache       *CacheService
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewSubmissionService creates a new submission service.
func NewSubmissionService(repo submissionRepository, homeworks homeworkReader, users userReader, enrollments enrollmentChecker, storage submissionFileStore, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *SubmissionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubmissionService{
		repo:        repo,
		homeworks:   homeworks,
		users:       users,
		enrollments: enrollments,
		storage:     storage,
		cache:       cache,
		validator:   validate,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Submit stores the uploaded file, stamps the submission time and classifies
// it against the homework due date. A second submission for the same
// (homework, student) pair is a conflict.
func (s *SubmissionService) Submit(ctx context.Context, req SubmitRequest) (*models.Submission, error) {
	if req.Content == nil || req.Filename == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "submission file is required")
	}

	homework, err := s.homeworks.FindByID(ctx, req.HomeworkID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "homework not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load homework")
	}

	student, err := s.users.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrValidation, "only students can submit homework")
	}

	enrolled, err := s.enrollments.IsEnrolled(ctx, homework.SubjectID, student.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if !enrolled {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student not enrolled in the homework's subject")
	}

	if _, err := s.repo.FindByHomeworkAndStudent(ctx, homework.ID, student.ID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "submission already exists for this homework")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing submission")
	}

	submittedAt := s.now()
	status, err := ClassifySubmission(homework.DueDate, submittedAt)
	if err != nil {
		return nil, err
	}

	filePath, err := s.storage.SaveStream(req.Filename, req.Content)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store submission file")
	}

	submission := &models.Submission{
		HomeworkID:  homework.ID,
		StudentID:   student.ID,
		SubmittedAt: submittedAt,
		FilePath:    filePath,
		Status:      status,
	}

	if err := s.repo.Create(ctx, submission); err != nil {
		// best-effort cleanup of the stored file, the record is the source
		// of truth
		if delErr := s.storage.Delete(filePath); delErr != nil {
			s.logger.Warn("orphaned submission file", zap.String("file", filePath), zap.Error(delErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create submission")
	}

	s.invalidateReports(ctx, homework.SubjectID, student.ID)
	return submission, nil
}

// Grade validates the proposed grade against the homework's max score, then
// sets grade and feedback and stamps the submission complete. Nothing is
// mutated on a failed bound check.
func (s *SubmissionService) Grade(ctx context.Context, submissionID string, req GradeSubmissionRequest) (*models.Submission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}

	submission, err := s.repo.FindByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}

	homework, err := s.homeworks.FindByID(ctx, submission.HomeworkID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "homework not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load homework")
	}

	grade := *req.Grade
	if grade < 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "grade cannot be negative")
	}
	if grade > homework.MaxScore {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("grade cannot exceed maximum score of %d", homework.MaxScore))
	}

	if err := s.repo.UpdateGrade(ctx, submission.ID, grade, req.Feedback, models.SubmissionComplete); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to grade submission")
	}

	submission.Grade = &grade
	submission.Feedback = &req.Feedback
	submission.Status = models.SubmissionComplete

	s.invalidateReports(ctx, homework.SubjectID, submission.StudentID)
	return submission, nil
}

// DownloadFile opens the stored file for a submission. The caller owns the
// returned reader and must close it.
func (s *SubmissionService) DownloadFile(ctx context.Context, submissionID string) (*models.Submission, io.ReadCloser, error) {
	submission, err := s.repo.FindByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}

	file, err := s.storage.Open(submission.FilePath)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open submission file")
	}
	return submission, file, nil
}

// ListByStudent returns every submission an existing student has made.
func (s *SubmissionService) ListByStudent(ctx context.Context, studentID string) ([]models.Submission, error) {
	if _, err := s.users.FindByID(ctx, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	submissions, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}
	return submissions, nil
}

func (s *SubmissionService) invalidateReports(ctx context.Context, subjectID, studentID string) {
	if !s.cache.Enabled() {
		return
	}
	patterns := []string{
		fmt.Sprintf("report:subject:%s:*", subjectID),
		fmt.Sprintf("report:homework:%s:*", subjectID),
		fmt.Sprintf("report:student:%s", studentID),
	}
	for _, pattern := range patterns {
		if err := s.cache.Invalidate(ctx, pattern); err != nil {
			s.logger.Warn("report cache invalidation failed", zap.String("pattern", pattern), zap.Error(err))
		}
	}
}
