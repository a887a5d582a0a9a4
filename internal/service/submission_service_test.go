package service

import (
	"context"
	"database/sql"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/classdesk/classdesk-api/internal/models"
)

type mockSubmissionRepo struct {
	submissions map[string]models.Submission
	created     *models.Submission
	graded      bool
}

func (m *mockSubmissionRepo) Create(ctx context.Context, submission *models.Submission) error {
	if m.submissions == nil {
		m.submissions = make(map[string]models.Submission)
	}
	if submission.ID == "" {
		submission.ID = "new-submission"
	}
	m.submissions[submission.ID] = *submission
	m.created = submission
	return nil
}

func (m *mockSubmissionRepo) FindByID(ctx context.Context, id string) (*models.Submission, error) {
	if s, ok := m.submissions[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSubmissionRepo) FindByHomeworkAndStudent(ctx context.Context, homeworkID, studentID string) (*models.Submission, error) {
	for _, s := range m.submissions {
		if s.HomeworkID == homeworkID && s.StudentID == studentID {
			return &s, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockSubmissionRepo) ListByStudent(ctx context.Context, studentID string) ([]models.Submission, error) {
	var list []models.Submission
	for _, s := range m.submissions {
		if s.StudentID == studentID {
			list = append(list, s)
		}
	}
	return list, nil
}

func (m *mockSubmissionRepo) UpdateGrade(ctx context.Context, id string, grade int, feedback string, status models.SubmissionStatus) error {
	s, ok := m.submissions[id]
	if !ok {
		return sql.ErrNoRows
	}
	s.Grade = &grade
	s.Feedback = &feedback
	s.Status = status
	m.submissions[id] = s
	m.graded = true
	return nil
}

type mockHomeworkReader struct {
	homeworks map[string]models.Homework
}

func (m *mockHomeworkReader) FindByID(ctx context.Context, id string) (*models.Homework, error) {
	if h, ok := m.homeworks[id]; ok {
		return &h, nil
	}
	return nil, sql.ErrNoRows
}

type mockEnrollment struct {
	enrolled map[string]bool
}

func (m *mockEnrollment) IsEnrolled(ctx context.Context, subjectID, studentID string) (bool, error) {
	return m.enrolled[subjectID+":"+studentID], nil
}

type mockFileStore struct {
	saved   []string
	deleted []string
	files   map[string]string
	failAll bool
}

func (m *mockFileStore) SaveStream(originalName string, r io.Reader) (string, error) {
	if m.failAll {
		return "", io.ErrClosedPipe
	}
	name := "stored-" + originalName
	m.saved = append(m.saved, name)
	return name, nil
}

func (m *mockFileStore) Open(filename string) (io.ReadCloser, error) {
	content, ok := m.files[filename]
	if !ok {
		return nil, os.ErrNotExist
	}
	return io.NopCloser(strings.NewReader(content)), nil
}

func (m *mockFileStore) Delete(filename string) error {
	m.deleted = append(m.deleted, filename)
	return nil
}

func newSubmissionFixture(t *testing.T) (*SubmissionService, *mockSubmissionRepo, *mockFileStore) {
	t.Helper()
	repo := &mockSubmissionRepo{}
	homeworks := &mockHomeworkReader{homeworks: map[string]models.Homework{
		"hw1": {ID: "hw1", SubjectID: "sub1", Name: "Algebra Set", DueDate: "2024-01-10T23:59", MaxScore: 50},
	}}
	users := &mockUserReader{users: map[string]models.User{
		"s1": {ID: "s1", FirstName: "Ana", LastName: "Lopez", Role: models.RoleStudent},
		"s2": {ID: "s2", FirstName: "Ben", LastName: "Kim", Role: models.RoleStudent},
		"t1": {ID: "t1", FirstName: "Tess", LastName: "Ngo", Role: models.RoleTeacher},
	}}
	enrollments := &mockEnrollment{enrolled: map[string]bool{"sub1:s1": true}}
	store := &mockFileStore{}
	svc := NewSubmissionService(repo, homeworks, users, enrollments, store, disabledCache(), validator.New(), zap.NewNop())
	return svc, repo, store
}

func TestSubmissionSubmitOnTime(t *testing.T) {
	svc, repo, store := newSubmissionFixture(t)
	svc.now = func() time.Time { return time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC) }

	submission, err := svc.Submit(context.Background(), SubmitRequest{
		HomeworkID: "hw1",
		StudentID:  "s1",
		Filename:   "essay.pdf",
		Content:    strings.NewReader("content"),
	})
	require.NoError(t, err)

	assert.Equal(t, models.SubmissionComplete, submission.Status)
	assert.Equal(t, "stored-essay.pdf", submission.FilePath)
	assert.NotNil(t, repo.created)
	assert.Len(t, store.saved, 1)
}

func TestSubmissionSubmitLate(t *testing.T) {
	svc, _, _ := newSubmissionFixture(t)
	svc.now = func() time.Time { return time.Date(2024, 1, 11, 8, 0, 0, 0, time.UTC) }

	submission, err := svc.Submit(context.Background(), SubmitRequest{
		HomeworkID: "hw1",
		StudentID:  "s1",
		Filename:   "essay.pdf",
		Content:    strings.NewReader("content"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionLate, submission.Status)
}

func TestSubmissionSubmitDuplicateConflict(t *testing.T) {
	svc, repo, store := newSubmissionFixture(t)
	repo.submissions = map[string]models.Submission{
		"existing": {ID: "existing", HomeworkID: "hw1", StudentID: "s1", Status: models.SubmissionComplete},
	}

	_, err := svc.Submit(context.Background(), SubmitRequest{
		HomeworkID: "hw1",
		StudentID:  "s1",
		Filename:   "essay.pdf",
		Content:    strings.NewReader("content"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
	// nothing was written before the conflict was detected
	assert.Empty(t, store.saved)
}

func TestSubmissionSubmitNotEnrolled(t *testing.T) {
	svc, _, store := newSubmissionFixture(t)

	_, err := svc.Submit(context.Background(), SubmitRequest{
		HomeworkID: "hw1",
		StudentID:  "s2",
		Filename:   "essay.pdf",
		Content:    strings.NewReader("content"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not enrolled")
	assert.Empty(t, store.saved)
}

func TestSubmissionSubmitTeacherRejected(t *testing.T) {
	svc, _, _ := newSubmissionFixture(t)

	_, err := svc.Submit(context.Background(), SubmitRequest{
		HomeworkID: "hw1",
		StudentID:  "t1",
		Filename:   "essay.pdf",
		Content:    strings.NewReader("content"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only students")
}

func TestSubmissionSubmitHomeworkNotFound(t *testing.T) {
	svc, _, _ := newSubmissionFixture(t)

	_, err := svc.Submit(context.Background(), SubmitRequest{
		HomeworkID: "missing",
		StudentID:  "s1",
		Filename:   "essay.pdf",
		Content:    strings.NewReader("content"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "homework not found")
}

func TestSubmissionGrade(t *testing.T) {
	svc, repo, _ := newSubmissionFixture(t)
	repo.submissions = map[string]models.Submission{
		"su1": {ID: "su1", HomeworkID: "hw1", StudentID: "s1", Status: models.SubmissionLate},
	}

	graded, err := svc.Grade(context.Background(), "su1", GradeSubmissionRequest{Grade: intPtr(45), Feedback: "solid work"})
	require.NoError(t, err)

	require.NotNil(t, graded.Grade)
	assert.Equal(t, 45, *graded.Grade)
	assert.Equal(t, models.SubmissionComplete, graded.Status)
	assert.True(t, repo.graded)
}

func TestSubmissionGradeExceedsMaxScore(t *testing.T) {
	svc, repo, _ := newSubmissionFixture(t)
	repo.submissions = map[string]models.Submission{
		"su1": {ID: "su1", HomeworkID: "hw1", StudentID: "s1", Status: models.SubmissionLate},
	}

	_, err := svc.Grade(context.Background(), "su1", GradeSubmissionRequest{Grade: intPtr(60), Feedback: "n/a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maximum score of 50")

	// the stored submission is untouched
	assert.False(t, repo.graded)
	assert.Nil(t, repo.submissions["su1"].Grade)
	assert.Equal(t, models.SubmissionLate, repo.submissions["su1"].Status)
}

func TestSubmissionGradeNegative(t *testing.T) {
	svc, repo, _ := newSubmissionFixture(t)
	repo.submissions = map[string]models.Submission{
		"su1": {ID: "su1", HomeworkID: "hw1", StudentID: "s1", Status: models.SubmissionComplete},
	}

	_, err := svc.Grade(context.Background(), "su1", GradeSubmissionRequest{Grade: intPtr(-1), Feedback: "n/a"})
	require.Error(t, err)
	assert.False(t, repo.graded)
}

func TestSubmissionGradeZeroIsValid(t *testing.T) {
	svc, repo, _ := newSubmissionFixture(t)
	repo.submissions = map[string]models.Submission{
		"su1": {ID: "su1", HomeworkID: "hw1", StudentID: "s1", Status: models.SubmissionComplete},
	}

	graded, err := svc.Grade(context.Background(), "su1", GradeSubmissionRequest{Grade: intPtr(0), Feedback: "missing sections"})
	require.NoError(t, err)
	require.NotNil(t, graded.Grade)
	assert.Equal(t, 0, *graded.Grade)
}

func TestSubmissionGradeNotFound(t *testing.T) {
	svc, _, _ := newSubmissionFixture(t)

	_, err := svc.Grade(context.Background(), "missing", GradeSubmissionRequest{Grade: intPtr(10), Feedback: "n/a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "submission not found")
}

func TestSubmissionDownloadFile(t *testing.T) {
	svc, repo, store := newSubmissionFixture(t)
	repo.submissions = map[string]models.Submission{
		"su1": {ID: "su1", HomeworkID: "hw1", StudentID: "s1", FilePath: "stored-essay.pdf"},
	}
	store.files = map[string]string{"stored-essay.pdf": "submission body"}

	submission, file, err := svc.DownloadFile(context.Background(), "su1")
	require.NoError(t, err)
	defer file.Close() //nolint:errcheck

	assert.Equal(t, "s1", submission.StudentID)
	content, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Equal(t, "submission body", string(content))
}

func TestSubmissionDownloadFileNotFound(t *testing.T) {
	svc, _, _ := newSubmissionFixture(t)

	_, _, err := svc.DownloadFile(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "submission not found")
}
