package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/classdesk/classdesk-api/internal/models"
	appErrors "github.com/classdesk/classdesk-api/pkg/errors"
)

type homeworkRepository interface {
	Create(ctx context.Context, homework *models.Homework) error
	Update(ctx context.Context, homework *models.Homework) error
	Delete(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*models.Homework, error)
	ListBySubject(ctx context.Context, subjectID string) ([]models.Homework, error)
	ListByTeacher(ctx context.Context, teacherID string, limit, offset int) ([]models.Homework, int, error)
	ListForStudent(ctx context.Context, studentID string) ([]models.Homework, error)
}

type subjectReader interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

type submissionLookup interface {
	FindByHomeworkAndStudent(ctx context.Context, homeworkID, studentID string) (*models.Submission, error)
}

// CreateHomeworkRequest captures fields for creating a homework.
type CreateHomeworkRequest struct {
	SubjectID    string `json:"subject_id" validate:"required"`
	Name         string `json:"name" validate:"required"`
	Instructions string `json:"instructions" validate:"required"`
	DueDate      string `json:"due_date" validate:"required"`
	MaxScore     int    `json:"max_score" validate:"required,gt=0"`
}

// UpdateHomeworkRequest modifies homework fields.
type UpdateHomeworkRequest struct {
	Name         string `json:"name" validate:"required"`
	Instructions string `json:"instructions" validate:"required"`
	DueDate      string `json:"due_date" validate:"required"`
	MaxScore     int    `json:"max_score" validate:"required,gt=0"`
}

// HomeworkService handles homework assignment workflows.
type HomeworkService struct {
	repo        homeworkRepository
	subjects    subjectReader
	users       userReader
	submissions submissionLookup
	cache       *CacheService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewHomeworkService creates a new homework service.
func NewHomeworkService(repo homeworkRepository, subjects subjectReader, users userReader, submissions submissionLookup, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *HomeworkService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HomeworkService{repo: repo, subjects: subjects, users: users, submissions: submissions, cache: cache, validator: validate, logger: logger}
}

// Create adds a homework to an existing subject. The due date must parse as
// ISO-8601 up front so classification can never fail on stored data.
func (s *HomeworkService) Create(ctx context.Context, req CreateHomeworkRequest) (*models.Homework, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid homework payload")
	}
	if _, err := ParseDueDate(req.DueDate); err != nil {
		return nil, err
	}

	if _, err := s.subjects.FindByID(ctx, req.SubjectID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}

	homework := &models.Homework{
		SubjectID:    req.SubjectID,
		Name:         req.Name,
		Instructions: req.Instructions,
		DueDate:      req.DueDate,
		MaxScore:     req.MaxScore,
	}

	if err := s.repo.Create(ctx, homework); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create homework")
	}
	s.invalidateReports(ctx, homework.SubjectID)
	return homework, nil
}

// Update modifies an existing homework. Due date and max score stay mutable
// even once submissions exist, matching the grading workflow's re-check of
// the bound at grading time.
func (s *HomeworkService) Update(ctx context.Context, id string, req UpdateHomeworkRequest) (*models.Homework, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid homework payload")
	}
	if _, err := ParseDueDate(req.DueDate); err != nil {
		return nil, err
	}

	homework, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "homework not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load homework")
	}

	homework.Name = req.Name
	homework.Instructions = req.Instructions
	homework.DueDate = req.DueDate
	homework.MaxScore = req.MaxScore

	if err := s.repo.Update(ctx, homework); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update homework")
	}
	s.invalidateReports(ctx, homework.SubjectID)
	return homework, nil
}

// Delete removes a homework assignment.
func (s *HomeworkService) Delete(ctx context.Context, id string) error {
	homework, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "homework not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load homework")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete homework")
	}
	s.invalidateReports(ctx, homework.SubjectID)
	return nil
}

func (s *HomeworkService) invalidateReports(ctx context.Context, subjectID string) {
	if !s.cache.Enabled() {
		return
	}
	patterns := []string{
		fmt.Sprintf("report:subject:%s:*", subjectID),
		fmt.Sprintf("report:homework:%s:*", subjectID),
	}
	for _, pattern := range patterns {
		if err := s.cache.Invalidate(ctx, pattern); err != nil {
			s.logger.Warn("report cache invalidation failed", zap.String("pattern", pattern), zap.Error(err))
		}
	}
}

// ListBySubject returns homeworks belonging to an existing subject.
func (s *HomeworkService) ListBySubject(ctx context.Context, subjectID string) ([]models.Homework, error) {
	if _, err := s.subjects.FindByID(ctx, subjectID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	homeworks, err := s.repo.ListBySubject(ctx, subjectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list homeworks")
	}
	return homeworks, nil
}

// ListByTeacher returns homeworks across all subjects owned by a teacher.
func (s *HomeworkService) ListByTeacher(ctx context.Context, teacherID string, page, pageSize int) ([]models.Homework, *models.Pagination, error) {
	if _, err := s.users.FindByID(ctx, teacherID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 10
	}

	homeworks, total, err := s.repo.ListByTeacher(ctx, teacherID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list homeworks")
	}

	return homeworks, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// ListForStudent returns homeworks across the student's subjects, optionally
// narrowed to pending (no submission) or submitted ones.
func (s *HomeworkService) ListForStudent(ctx context.Context, studentID string, filter models.HomeworkStatusFilter) ([]models.Homework, error) {
	if _, err := s.users.FindByID(ctx, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if filter != "" && filter != models.HomeworkFilterPending && filter != models.HomeworkFilterSubmitted {
		return nil, appErrors.Clone(appErrors.ErrValidation, "status filter must be pending or submitted")
	}

	homeworks, err := s.repo.ListForStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list homeworks")
	}
	if filter == "" {
		return homeworks, nil
	}

	filtered := make([]models.Homework, 0, len(homeworks))
	for _, hw := range homeworks {
		_, err := s.submissions.FindByHomeworkAndStudent(ctx, hw.ID, studentID)
		submitted := true
		if err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check submission")
			}
			submitted = false
		}
		if (filter == models.HomeworkFilterSubmitted && submitted) || (filter == models.HomeworkFilterPending && !submitted) {
			filtered = append(filtered, hw)
		}
	}
	return filtered, nil
}
