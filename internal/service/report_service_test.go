package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/classdesk/classdesk-api/internal/models"
)

type mockReportSubjectRepo struct {
	subjects map[string]models.Subject
	rosters  map[string][]models.User
	enrolled map[string][]models.Subject
}

func (m *mockReportSubjectRepo) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	if s, ok := m.subjects[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockReportSubjectRepo) ListStudents(ctx context.Context, subjectID string) ([]models.User, error) {
	return m.rosters[subjectID], nil
}

func (m *mockReportSubjectRepo) CountStudents(ctx context.Context, subjectID string) (int, error) {
	return len(m.rosters[subjectID]), nil
}

func (m *mockReportSubjectRepo) ListByStudent(ctx context.Context, studentID string) ([]models.Subject, error) {
	return m.enrolled[studentID], nil
}

type mockReportHomeworkRepo struct {
	homeworks map[string]models.Homework
}

func (m *mockReportHomeworkRepo) FindByID(ctx context.Context, id string) (*models.Homework, error) {
	if h, ok := m.homeworks[id]; ok {
		return &h, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockReportHomeworkRepo) ListBySubject(ctx context.Context, subjectID string) ([]models.Homework, error) {
	var list []models.Homework
	for _, h := range m.homeworks {
		if h.SubjectID == subjectID {
			list = append(list, h)
		}
	}
	return list, nil
}

type mockReportSubmissionRepo struct {
	byHomework map[string][]models.Submission
	details    map[string][]models.SubmissionDetail
}

func (m *mockReportSubmissionRepo) ListByHomework(ctx context.Context, homeworkID string) ([]models.Submission, error) {
	return m.byHomework[homeworkID], nil
}

func (m *mockReportSubmissionRepo) ListDetailsByStudent(ctx context.Context, studentID string) ([]models.SubmissionDetail, error) {
	return m.details[studentID], nil
}

type mockUserReader struct {
	users map[string]models.User
}

func (m *mockUserReader) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return &u, nil
	}
	return nil, sql.ErrNoRows
}

func disabledCache() *CacheService {
	return NewCacheService(nil, nil, 0, zap.NewNop(), false)
}

func intPtr(v int) *int { return &v }

func newReportFixture() (*mockReportSubjectRepo, *mockReportHomeworkRepo, *mockReportSubmissionRepo, *mockUserReader) {
	subjects := &mockReportSubjectRepo{
		subjects: map[string]models.Subject{"sub1": {ID: "sub1", Name: "Math"}},
		rosters: map[string][]models.User{"sub1": {
			{ID: "s1", FirstName: "Ana", LastName: "Lopez", Role: models.RoleStudent},
			{ID: "s2", FirstName: "Ben", LastName: "Kim", Role: models.RoleStudent},
			{ID: "s3", FirstName: "Cara", LastName: "Wu", Role: models.RoleStudent},
		}},
	}
	homeworks := &mockReportHomeworkRepo{homeworks: map[string]models.Homework{
		"hw1": {ID: "hw1", SubjectID: "sub1", Name: "Algebra Set", DueDate: "2024-01-10T23:59", MaxScore: 100},
	}}
	submissions := &mockReportSubmissionRepo{byHomework: map[string][]models.Submission{}}
	users := &mockUserReader{users: map[string]models.User{
		"s1": {ID: "s1", FirstName: "Ana", LastName: "Lopez", Role: models.RoleStudent},
	}}
	return subjects, homeworks, submissions, users
}

func TestReportHomeworkStatusCountsAndRate(t *testing.T) {
	subjects, homeworks, submissions, users := newReportFixture()
	submittedAt := time.Date(2024, 1, 9, 10, 0, 0, 0, time.UTC)
	submissions.byHomework["hw1"] = []models.Submission{
		{ID: "su1", HomeworkID: "hw1", StudentID: "s1", SubmittedAt: submittedAt, Status: models.SubmissionComplete, Grade: intPtr(90)},
	}
	svc := NewReportService(subjects, homeworks, submissions, users, disabledCache(), nil, zap.NewNop())

	report, err := svc.HomeworkStatus(context.Background(), "hw1")
	require.NoError(t, err)

	assert.Equal(t, "Algebra Set", report.HomeworkName)
	assert.Equal(t, "Math", report.SubjectName)
	assert.Equal(t, 3, report.TotalStudents)
	assert.Equal(t, 1, report.SubmittedCount)
	assert.Equal(t, 2, report.PendingCount)
	assert.Equal(t, 1, report.GradedCount)
	assert.Equal(t, 1, report.OnTimeSubmissions)
	assert.Equal(t, 0, report.LateSubmissions)
	assert.Equal(t, "33.3%", report.SubmissionRate)
	require.Len(t, report.StudentStatuses, 3)

	byStudent := make(map[string]models.StudentSubmissionStatus)
	for _, row := range report.StudentStatuses {
		byStudent[row.StudentID] = row
	}
	assert.Equal(t, "complete", byStudent["s1"].Status)
	assert.Equal(t, "Ana Lopez", byStudent["s1"].StudentName)
	assert.Equal(t, models.ReportStatusNotSubmitted, byStudent["s2"].Status)
	assert.False(t, byStudent["s2"].Submitted)
}

func TestReportHomeworkStatusLateDaysOverdue(t *testing.T) {
	subjects, homeworks, submissions, users := newReportFixture()
	submittedAt := time.Date(2024, 1, 11, 8, 0, 0, 0, time.UTC)
	submissions.byHomework["hw1"] = []models.Submission{
		{ID: "su1", HomeworkID: "hw1", StudentID: "s1", SubmittedAt: submittedAt, Status: models.SubmissionLate},
	}
	svc := NewReportService(subjects, homeworks, submissions, users, disabledCache(), nil, zap.NewNop())

	report, err := svc.HomeworkStatus(context.Background(), "hw1")
	require.NoError(t, err)

	assert.Equal(t, 1, report.LateSubmissions)
	for _, row := range report.StudentStatuses {
		if row.StudentID != "s1" {
			continue
		}
		require.NotNil(t, row.DaysOverdue)
		assert.Equal(t, 1, *row.DaysOverdue)
	}
}

func TestReportHomeworkStatusEmptyRosterRate(t *testing.T) {
	subjects, homeworks, submissions, users := newReportFixture()
	subjects.rosters["sub1"] = nil
	svc := NewReportService(subjects, homeworks, submissions, users, disabledCache(), nil, zap.NewNop())

	report, err := svc.HomeworkStatus(context.Background(), "hw1")
	require.NoError(t, err)

	assert.Equal(t, 0, report.TotalStudents)
	assert.Equal(t, "0.0%", report.SubmissionRate)
	assert.Empty(t, report.StudentStatuses)
}

func TestReportHomeworkStatusNotFound(t *testing.T) {
	subjects, homeworks, submissions, users := newReportFixture()
	svc := NewReportService(subjects, homeworks, submissions, users, disabledCache(), nil, zap.NewNop())

	_, err := svc.HomeworkStatus(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "homework not found")
}

func TestReportSubjectHomeworkStatusAverageGrade(t *testing.T) {
	subjects, homeworks, submissions, users := newReportFixture()
	submissions.byHomework["hw1"] = []models.Submission{
		{ID: "su1", HomeworkID: "hw1", StudentID: "s1", SubmittedAt: time.Now(), Status: models.SubmissionComplete, Grade: intPtr(80)},
		{ID: "su2", HomeworkID: "hw1", StudentID: "s2", SubmittedAt: time.Now(), Status: models.SubmissionLate, Grade: intPtr(85)},
		{ID: "su3", HomeworkID: "hw1", StudentID: "s3", SubmittedAt: time.Now(), Status: models.SubmissionComplete},
	}
	svc := NewReportService(subjects, homeworks, submissions, users, disabledCache(), nil, zap.NewNop())

	report, err := svc.SubjectHomeworkStatus(context.Background(), "sub1")
	require.NoError(t, err)

	assert.Equal(t, "Math", report.SubjectName)
	assert.Equal(t, 3, report.TotalStudents)
	assert.Equal(t, 1, report.TotalHomeworks)
	require.Len(t, report.Homeworks, 1)

	rollup := report.Homeworks[0]
	assert.Equal(t, 3, rollup.Summary.TotalSubmissions)
	assert.Equal(t, 0, rollup.Summary.PendingSubmissions)
	assert.Equal(t, 1, rollup.Summary.LateSubmissions)
	assert.Equal(t, 2, rollup.Summary.OnTimeSubmissions)
	// ungraded submission stays out of the average
	assert.InDelta(t, 82.5, rollup.Summary.AverageGrade, 0.001)
	require.Contains(t, rollup.StudentStatus, "s3")
	assert.Nil(t, rollup.StudentStatus["s3"].Grade)
}

func TestReportSubjectAnalyticsBuckets(t *testing.T) {
	subjects, homeworks, submissions, users := newReportFixture()
	submissions.byHomework["hw1"] = []models.Submission{
		{ID: "su1", HomeworkID: "hw1", StudentID: "s1", Status: models.SubmissionComplete},
		{ID: "su2", HomeworkID: "hw1", StudentID: "s2", Status: models.SubmissionLate},
		{ID: "su3", HomeworkID: "hw1", StudentID: "s3", Status: models.SubmissionIncomplete},
	}
	svc := NewReportService(subjects, homeworks, submissions, users, disabledCache(), nil, zap.NewNop())

	analytics, err := svc.SubjectAnalytics(context.Background(), "sub1")
	require.NoError(t, err)

	assert.Equal(t, 3, analytics.TotalStudents)
	assert.Equal(t, 1, analytics.TotalHomeworks)
	assert.Equal(t, 3, analytics.SubmissionsStats.TotalSubmissions)
	assert.Equal(t, 1, analytics.SubmissionsStats.OnTimeSubmissions)
	assert.Equal(t, 1, analytics.SubmissionsStats.LateSubmissions)
	assert.Equal(t, 1, analytics.SubmissionsStats.PendingSubmissions)
}

func TestReportStudentAnalytics(t *testing.T) {
	subjects, homeworks, submissions, users := newReportFixture()
	subjects.enrolled = map[string][]models.Subject{"s1": {
		{ID: "sub1", Name: "Math"},
		{ID: "sub2", Name: "Physics"},
	}}
	submissions.details = map[string][]models.SubmissionDetail{"s1": {
		{Submission: models.Submission{ID: "su1", Status: models.SubmissionComplete, Grade: intPtr(90)}, SubjectName: "Math"},
		{Submission: models.Submission{ID: "su2", Status: models.SubmissionLate, Grade: intPtr(70)}, SubjectName: "Math"},
		{Submission: models.Submission{ID: "su3", Status: models.SubmissionComplete}, SubjectName: "Physics"},
	}}
	svc := NewReportService(subjects, homeworks, submissions, users, disabledCache(), nil, zap.NewNop())

	analytics, err := svc.StudentAnalytics(context.Background(), "s1")
	require.NoError(t, err)

	assert.Equal(t, 2, analytics.TotalSubjects)
	assert.Equal(t, 3, analytics.TotalSubmissions)
	assert.Equal(t, 2, analytics.SubmissionStatus[models.SubmissionComplete])
	assert.Equal(t, 1, analytics.SubmissionStatus[models.SubmissionLate])
	assert.Equal(t, 0, analytics.SubmissionStatus[models.SubmissionIncomplete])
	assert.InDelta(t, 80.0, analytics.AverageGrade, 0.001)

	math := analytics.GradesBySubject["Math"]
	assert.Equal(t, 160, math.TotalGrade)
	assert.Equal(t, 2, math.Count)
	assert.InDelta(t, 80.0, math.Average, 0.001)
	// ungraded physics submission contributes no grade entry
	assert.NotContains(t, analytics.GradesBySubject, "Physics")
}

func TestReportStudentAnalyticsRejectsTeacher(t *testing.T) {
	subjects, homeworks, submissions, users := newReportFixture()
	users.users["t1"] = models.User{ID: "t1", Role: models.RoleTeacher}
	svc := NewReportService(subjects, homeworks, submissions, users, disabledCache(), nil, zap.NewNop())

	_, err := svc.StudentAnalytics(context.Background(), "t1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a student")
}

func TestReportExportHomeworkStatusCSV(t *testing.T) {
	subjects, homeworks, submissions, users := newReportFixture()
	submissions.byHomework["hw1"] = []models.Submission{
		{ID: "su1", HomeworkID: "hw1", StudentID: "s1", SubmittedAt: time.Date(2024, 1, 9, 10, 0, 0, 0, time.UTC), Status: models.SubmissionComplete, Grade: intPtr(90)},
	}
	svc := NewReportService(subjects, homeworks, submissions, users, disabledCache(), nil, zap.NewNop())

	payload, filename, err := svc.ExportHomeworkStatus(context.Background(), "hw1", ExportCSV)
	require.NoError(t, err)
	assert.Equal(t, "hw1-submission-status.csv", filename)
	assert.Contains(t, string(payload), "Ana Lopez")
	assert.Contains(t, string(payload), "complete")
}

func TestReportExportHomeworkStatusUnsupportedFormat(t *testing.T) {
	subjects, homeworks, submissions, users := newReportFixture()
	svc := NewReportService(subjects, homeworks, submissions, users, disabledCache(), nil, zap.NewNop())

	_, _, err := svc.ExportHomeworkStatus(context.Background(), "hw1", ExportFormat("xlsx"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported export format")
}
