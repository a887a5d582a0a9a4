package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/classdesk/classdesk-api/internal/models"
)

type mockHomeworkRepo struct {
	homeworks map[string]models.Homework
	created   *models.Homework
	deleted   []string
}

func (m *mockHomeworkRepo) Create(ctx context.Context, homework *models.Homework) error {
	if m.homeworks == nil {
		m.homeworks = make(map[string]models.Homework)
	}
	if homework.ID == "" {
		homework.ID = "new-homework"
	}
	m.homeworks[homework.ID] = *homework
	m.created = homework
	return nil
}

func (m *mockHomeworkRepo) Update(ctx context.Context, homework *models.Homework) error {
	m.homeworks[homework.ID] = *homework
	return nil
}

func (m *mockHomeworkRepo) Delete(ctx context.Context, id string) error {
	delete(m.homeworks, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockHomeworkRepo) FindByID(ctx context.Context, id string) (*models.Homework, error) {
	if h, ok := m.homeworks[id]; ok {
		return &h, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockHomeworkRepo) ListBySubject(ctx context.Context, subjectID string) ([]models.Homework, error) {
	var list []models.Homework
	for _, h := range m.homeworks {
		if h.SubjectID == subjectID {
			list = append(list, h)
		}
	}
	return list, nil
}

func (m *mockHomeworkRepo) ListByTeacher(ctx context.Context, teacherID string, limit, offset int) ([]models.Homework, int, error) {
	var list []models.Homework
	for _, h := range m.homeworks {
		list = append(list, h)
	}
	return list, len(list), nil
}

func (m *mockHomeworkRepo) ListForStudent(ctx context.Context, studentID string) ([]models.Homework, error) {
	var list []models.Homework
	for _, h := range m.homeworks {
		list = append(list, h)
	}
	return list, nil
}

type mockSubjectReader struct{}

func (m *mockSubjectReader) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	if id == "missing" {
		return nil, sql.ErrNoRows
	}
	return &models.Subject{ID: id, Name: "Math", TeacherID: "t1"}, nil
}

type mockSubmissionLookup struct {
	submitted map[string]bool
}

func (m *mockSubmissionLookup) FindByHomeworkAndStudent(ctx context.Context, homeworkID, studentID string) (*models.Submission, error) {
	if m.submitted[homeworkID+":"+studentID] {
		return &models.Submission{ID: "su", HomeworkID: homeworkID, StudentID: studentID}, nil
	}
	return nil, sql.ErrNoRows
}

func newHomeworkFixture() (*HomeworkService, *mockHomeworkRepo, *mockSubmissionLookup) {
	repo := &mockHomeworkRepo{}
	users := &mockUserReader{users: map[string]models.User{
		"t1": {ID: "t1", Role: models.RoleTeacher},
		"s1": {ID: "s1", Role: models.RoleStudent},
	}}
	lookup := &mockSubmissionLookup{submitted: map[string]bool{}}
	svc := NewHomeworkService(repo, &mockSubjectReader{}, users, lookup, disabledCache(), validator.New(), zap.NewNop())
	return svc, repo, lookup
}

func TestHomeworkCreate(t *testing.T) {
	svc, repo, _ := newHomeworkFixture()

	homework, err := svc.Create(context.Background(), CreateHomeworkRequest{
		SubjectID:    "sub1",
		Name:         "Algebra Set",
		Instructions: "Solve all problems",
		DueDate:      "2024-01-10T23:59",
		MaxScore:     100,
	})
	require.NoError(t, err)
	assert.Equal(t, "sub1", homework.SubjectID)
	assert.NotNil(t, repo.created)
}

func TestHomeworkCreateMalformedDueDate(t *testing.T) {
	svc, repo, _ := newHomeworkFixture()

	_, err := svc.Create(context.Background(), CreateHomeworkRequest{
		SubjectID:    "sub1",
		Name:         "Algebra Set",
		Instructions: "Solve all problems",
		DueDate:      "10/01/2024",
		MaxScore:     100,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid due date")
	assert.Nil(t, repo.created)
}

func TestHomeworkCreateSubjectNotFound(t *testing.T) {
	svc, _, _ := newHomeworkFixture()

	_, err := svc.Create(context.Background(), CreateHomeworkRequest{
		SubjectID:    "missing",
		Name:         "Algebra Set",
		Instructions: "Solve all problems",
		DueDate:      "2024-01-10T23:59",
		MaxScore:     100,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "subject not found")
}

func TestHomeworkUpdateNotFound(t *testing.T) {
	svc, _, _ := newHomeworkFixture()

	_, err := svc.Update(context.Background(), "missing", UpdateHomeworkRequest{
		Name:         "Algebra Set",
		Instructions: "Solve all problems",
		DueDate:      "2024-01-10T23:59",
		MaxScore:     100,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "homework not found")
}

func TestHomeworkDelete(t *testing.T) {
	svc, repo, _ := newHomeworkFixture()
	repo.homeworks = map[string]models.Homework{"hw1": {ID: "hw1", SubjectID: "sub1"}}

	err := svc.Delete(context.Background(), "hw1")
	require.NoError(t, err)
	assert.Contains(t, repo.deleted, "hw1")
}

func TestHomeworkListForStudentFilter(t *testing.T) {
	svc, repo, lookup := newHomeworkFixture()
	repo.homeworks = map[string]models.Homework{
		"hw1": {ID: "hw1", SubjectID: "sub1", DueDate: "2024-01-10"},
		"hw2": {ID: "hw2", SubjectID: "sub1", DueDate: "2024-01-20"},
	}
	lookup.submitted["hw1:s1"] = true

	submitted, err := svc.ListForStudent(context.Background(), "s1", models.HomeworkFilterSubmitted)
	require.NoError(t, err)
	require.Len(t, submitted, 1)
	assert.Equal(t, "hw1", submitted[0].ID)

	pending, err := svc.ListForStudent(context.Background(), "s1", models.HomeworkFilterPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "hw2", pending[0].ID)

	all, err := svc.ListForStudent(context.Background(), "s1", "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestHomeworkListForStudentBadFilter(t *testing.T) {
	svc, _, _ := newHomeworkFixture()

	_, err := svc.ListForStudent(context.Background(), "s1", models.HomeworkStatusFilter("overdue"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pending or submitted")
}

func TestHomeworkListByTeacherPagination(t *testing.T) {
	svc, repo, _ := newHomeworkFixture()
	repo.homeworks = map[string]models.Homework{
		"hw1": {ID: "hw1", SubjectID: "sub1"},
	}

	homeworks, pagination, err := svc.ListByTeacher(context.Background(), "t1", 0, 0)
	require.NoError(t, err)
	assert.Len(t, homeworks, 1)
	require.NotNil(t, pagination)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 10, pagination.PageSize)
	assert.Equal(t, 1, pagination.TotalCount)
}
