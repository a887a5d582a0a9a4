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

type subjectRepository interface {
	Create(ctx context.Context, subject *models.Subject) error
	Update(ctx context.Context, subject *models.Subject) error
	FindByID(ctx context.Context, id string) (*models.Subject, error)
	ListByTeacher(ctx context.Context, teacherID string) ([]models.Subject, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.Subject, error)
	ListStudents(ctx context.Context, subjectID string) ([]models.User, error)
	IsEnrolled(ctx context.Context, subjectID, studentID string) (bool, error)
	AddStudent(ctx context.Context, subjectID, studentID string) error
	RemoveStudent(ctx context.Context, subjectID, studentID string) error
}

type userReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type subjectHomeworkLister interface {
	ListBySubject(ctx context.Context, subjectID string) ([]models.Homework, error)
}

// CreateSubjectRequest captures fields for creating subjects.
type CreateSubjectRequest struct {
	Name      string `json:"name" validate:"required"`
	Detail    string `json:"detail" validate:"required"`
	TeacherID string `json:"teacher_id" validate:"required"`
}

// UpdateSubjectRequest modifies subject fields.
type UpdateSubjectRequest struct {
	Name   string `json:"name" validate:"required"`
	Detail string `json:"detail" validate:"required"`
}

// SubjectService handles subject and roster workflows.
type SubjectService struct {
	repo      subjectRepository
	users     userReader
	homeworks subjectHomeworkLister
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSubjectService creates a new subject service.
func NewSubjectService(repo subjectRepository, users userReader, homeworks subjectHomeworkLister, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *SubjectService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubjectService{repo: repo, users: users, homeworks: homeworks, cache: cache, validator: validate, logger: logger}
}

// Create adds a new subject owned by an existing teacher.
func (s *SubjectService) Create(ctx context.Context, req CreateSubjectRequest) (*models.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject payload")
	}

	teacher, err := s.users.FindByID(ctx, req.TeacherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	if teacher.Role != models.RoleTeacher {
		return nil, appErrors.Clone(appErrors.ErrValidation, "subject owner must be a teacher")
	}

	subject := &models.Subject{
		Name:      req.Name,
		Detail:    req.Detail,
		TeacherID: teacher.ID,
	}

	if err := s.repo.Create(ctx, subject); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create subject")
	}
	return subject, nil
}

// Update modifies an existing subject's name and detail.
func (s *SubjectService) Update(ctx context.Context, id string, req UpdateSubjectRequest) (*models.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject payload")
	}

	subject, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}

	subject.Name = req.Name
	subject.Detail = req.Detail

	if err := s.repo.Update(ctx, subject); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update subject")
	}
	return subject, nil
}

// Details returns the subject with teacher, roster and homework context.
func (s *SubjectService) Details(ctx context.Context, id string) (*models.SubjectDetail, error) {
	subject, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}

	teacher, err := s.users.FindByID(ctx, subject.TeacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}

	students, err := s.repo.ListStudents(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}

	homeworks, err := s.homeworks.ListBySubject(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load homeworks")
	}

	detail := &models.SubjectDetail{
		Subject: *subject,
		Teacher: models.UserInfo{
			ID:        teacher.ID,
			Email:     teacher.Email,
			FirstName: teacher.FirstName,
			LastName:  teacher.LastName,
			Role:      teacher.Role,
		},
		Students:       make([]models.UserInfo, 0, len(students)),
		TotalStudents:  len(students),
		TotalHomeworks: len(homeworks),
	}

	for _, student := range students {
		detail.Students = append(detail.Students, models.UserInfo{
			ID:        student.ID,
			Email:     student.Email,
			FirstName: student.FirstName,
			LastName:  student.LastName,
			Role:      student.Role,
		})
	}

	// Latest homework by due date; due dates are ISO-8601 text so the
	// lexicographic maximum is also the chronological one.
	for i := range homeworks {
		if detail.LatestHomework == nil || homeworks[i].DueDate > detail.LatestHomework.DueDate {
			hw := homeworks[i]
			detail.LatestHomework = &hw
		}
	}

	return detail, nil
}

// ListByTeacher returns subjects owned by an existing teacher.
func (s *SubjectService) ListByTeacher(ctx context.Context, teacherID string) ([]models.Subject, error) {
	if _, err := s.users.FindByID(ctx, teacherID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	subjects, err := s.repo.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subjects")
	}
	return subjects, nil
}

// ListByStudent returns the subjects an existing student is enrolled in.
func (s *SubjectService) ListByStudent(ctx context.Context, studentID string) ([]models.Subject, error) {
	if _, err := s.users.FindByID(ctx, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	subjects, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subjects")
	}
	return subjects, nil
}

// Enroll adds a student to the subject roster. Duplicate enrollment is a
// conflict and never produces duplicate roster entries.
func (s *SubjectService) Enroll(ctx context.Context, subjectID, studentID string) error {
	subject, err := s.repo.FindByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}

	student, err := s.users.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.Role != models.RoleStudent {
		return appErrors.Clone(appErrors.ErrValidation, "only students can be enrolled")
	}

	enrolled, err := s.repo.IsEnrolled(ctx, subjectID, studentID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if enrolled {
		return appErrors.Clone(appErrors.ErrConflict, "student already enrolled in subject")
	}

	if err := s.repo.AddStudent(ctx, subjectID, studentID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enroll student")
	}

	s.invalidateReports(ctx, subject.ID, studentID)
	return nil
}

// Unenroll removes a student from the subject roster. Existing submissions
// are unaffected.
func (s *SubjectService) Unenroll(ctx context.Context, subjectID, studentID string) error {
	subject, err := s.repo.FindByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}

	if _, err := s.users.FindByID(ctx, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	enrolled, err := s.repo.IsEnrolled(ctx, subjectID, studentID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if !enrolled {
		return appErrors.Clone(appErrors.ErrValidation, "student not enrolled in this subject")
	}

	if err := s.repo.RemoveStudent(ctx, subjectID, studentID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unenroll student")
	}

	s.invalidateReports(ctx, subject.ID, studentID)
	return nil
}

func (s *SubjectService) invalidateReports(ctx context.Context, subjectID, studentID string) {
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
