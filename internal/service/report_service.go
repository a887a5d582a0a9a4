package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/classdesk/classdesk-api/internal/models"
	appErrors "github.com/classdesk/classdesk-api/pkg/errors"
	"github.com/classdesk/classdesk-api/pkg/export"
)

// ExportFormat selects the rendering for a downloaded report.
type ExportFormat string

const (
	ExportCSV ExportFormat = "csv"
	ExportPDF ExportFormat = "pdf"
)

type reportSubjectRepository interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
	ListStudents(ctx context.Context, subjectID string) ([]models.User, error)
	CountStudents(ctx context.Context, subjectID string) (int, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.Subject, error)
}

type reportHomeworkRepository interface {
	FindByID(ctx context.Context, id string) (*models.Homework, error)
	ListBySubject(ctx context.Context, subjectID string) ([]models.Homework, error)
}

type reportSubmissionRepository interface {
	ListByHomework(ctx context.Context, homeworkID string) ([]models.Submission, error)
	ListDetailsByStudent(ctx context.Context, studentID string) ([]models.SubmissionDetail, error)
}

// ReportService builds the submission status and analytics rollups. Results
// are cached in Redis when caching is enabled and invalidated by the write
// paths.
type ReportService struct {
	subjects    reportSubjectRepository
	homeworks   reportHomeworkRepository
	submissions reportSubmissionRepository
	users       userReader
	cache       *CacheService
	metrics     *MetricsService
	csv         *export.CSVExporter
	pdf         *export.PDFExporter
	logger      *zap.Logger
	now         func() time.Time
}

// NewReportService creates a new report service.
func NewReportService(subjects reportSubjectRepository, homeworks reportHomeworkRepository, submissions reportSubmissionRepository, users userReader, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		subjects:    subjects,
		homeworks:   homeworks,
		submissions: submissions,
		users:       users,
		cache:       cache,
		metrics:     metrics,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// HomeworkStatus reports per-student submission state for one homework
// across the subject roster. Students without a submission appear as
// not_submitted so the report always covers the full roster.
func (s *ReportService) HomeworkStatus(ctx context.Context, homeworkID string) (*models.HomeworkStatusReport, error) {
	homework, err := s.homeworks.FindByID(ctx, homeworkID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "homework not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load homework")
	}

	cacheKey := fmt.Sprintf("report:homework:%s:%s", homework.SubjectID, homework.ID)
	var cached models.HomeworkStatusReport
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
		return &cached, nil
	}

	start := time.Now()
	report, err := s.buildHomeworkStatus(ctx, homework)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("report_homework_status", time.Since(start))
	}

	if err := s.cache.Set(ctx, cacheKey, report, 0); err != nil {
		s.logger.Warn("failed to cache homework status report", zap.String("homework_id", homework.ID), zap.Error(err))
	}
	return report, nil
}

func (s *ReportService) buildHomeworkStatus(ctx context.Context, homework *models.Homework) (*models.HomeworkStatusReport, error) {
	subject, err := s.subjects.FindByID(ctx, homework.SubjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}

	dueDate, err := ParseDueDate(homework.DueDate)
	if err != nil {
		return nil, err
	}

	roster, err := s.subjects.ListStudents(ctx, subject.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrolled students")
	}

	submissions, err := s.submissions.ListByHomework(ctx, homework.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}
	byStudent := make(map[string]models.Submission, len(submissions))
	for _, sub := range submissions {
		byStudent[sub.StudentID] = sub
	}

	report := &models.HomeworkStatusReport{
		HomeworkID:      homework.ID,
		HomeworkName:    homework.Name,
		DueDate:         homework.DueDate,
		SubjectName:     subject.Name,
		TotalStudents:   len(roster),
		StudentStatuses: make([]models.StudentSubmissionStatus, 0, len(roster)),
	}

	now := s.now()
	for _, student := range roster {
		row := models.StudentSubmissionStatus{
			StudentID:   student.ID,
			StudentName: student.FullName(),
			Status:      models.ReportStatusNotSubmitted,
		}

		if sub, ok := byStudent[student.ID]; ok {
			report.SubmittedCount++
			submittedAt := sub.SubmittedAt
			row.Submitted = true
			row.SubmittedAt = &submittedAt
			row.Status = string(sub.Status)
			row.Grade = sub.Grade
			row.Feedback = sub.Feedback
			if sub.Grade != nil {
				report.GradedCount++
			}
			switch sub.Status {
			case models.SubmissionLate:
				report.LateSubmissions++
				row.DaysOverdue = DaysOverdue(dueDate, submittedAt)
			case models.SubmissionComplete:
				report.OnTimeSubmissions++
			}
		} else {
			report.PendingCount++
			// a missing submission is overdue against the clock, not
			// against a submission time
			row.DaysOverdue = DaysOverdue(dueDate, now)
		}

		report.StudentStatuses = append(report.StudentStatuses, row)
	}

	report.SubmissionRate = formatRate(report.SubmittedCount, len(roster))
	return report, nil
}

// SubjectHomeworkStatus rolls up submission state for every homework in a
// subject.
func (s *ReportService) SubjectHomeworkStatus(ctx context.Context, subjectID string) (*models.SubjectHomeworkStatus, error) {
	subject, err := s.subjects.FindByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}

	cacheKey := fmt.Sprintf("report:subject:%s:status", subject.ID)
	var cached models.SubjectHomeworkStatus
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
		return &cached, nil
	}

	roster, err := s.subjects.ListStudents(ctx, subject.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrolled students")
	}
	homeworks, err := s.homeworks.ListBySubject(ctx, subject.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list homeworks")
	}

	start := time.Now()
	report := &models.SubjectHomeworkStatus{
		SubjectName:    subject.Name,
		TotalStudents:  len(roster),
		TotalHomeworks: len(homeworks),
		Homeworks:      make([]models.HomeworkRollup, 0, len(homeworks)),
	}

	for _, homework := range homeworks {
		submissions, err := s.submissions.ListByHomework(ctx, homework.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
		}
		byStudent := make(map[string]models.Submission, len(submissions))
		for _, sub := range submissions {
			byStudent[sub.StudentID] = sub
		}

		rollup := models.HomeworkRollup{
			HomeworkID:   homework.ID,
			HomeworkName: homework.Name,
			DueDate:      homework.DueDate,
			MaxScore:     homework.MaxScore,
			Summary: models.SubmissionSummary{
				PendingSubmissions: len(roster),
			},
			StudentStatus: make(map[string]models.RollupStudentCell, len(roster)),
		}

		totalGrade := 0
		gradedCount := 0
		for _, student := range roster {
			cell := models.RollupStudentCell{Status: models.ReportStatusNotSubmitted}
			if sub, ok := byStudent[student.ID]; ok {
				submittedAt := sub.SubmittedAt
				cell.Submitted = true
				cell.Status = string(sub.Status)
				cell.Grade = sub.Grade
				cell.SubmittedAt = &submittedAt

				rollup.Summary.TotalSubmissions++
				rollup.Summary.PendingSubmissions--
				switch sub.Status {
				case models.SubmissionLate:
					rollup.Summary.LateSubmissions++
				case models.SubmissionComplete:
					rollup.Summary.OnTimeSubmissions++
				}
				if sub.Grade != nil {
					totalGrade += *sub.Grade
					gradedCount++
				}
			}
			rollup.StudentStatus[student.ID] = cell
		}

		if gradedCount > 0 {
			rollup.Summary.AverageGrade = round2(float64(totalGrade) / float64(gradedCount))
		}
		report.Homeworks = append(report.Homeworks, rollup)
	}
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("report_subject_status", time.Since(start))
	}

	if err := s.cache.Set(ctx, cacheKey, report, 0); err != nil {
		s.logger.Warn("failed to cache subject status report", zap.String("subject_id", subject.ID), zap.Error(err))
	}
	return report, nil
}

// SubjectAnalytics buckets every submission in a subject by status.
func (s *ReportService) SubjectAnalytics(ctx context.Context, subjectID string) (*models.SubjectAnalytics, error) {
	subject, err := s.subjects.FindByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}

	cacheKey := fmt.Sprintf("report:subject:%s:analytics", subject.ID)
	var cached models.SubjectAnalytics
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
		return &cached, nil
	}

	// Analytics only needs the roster size, not the roster itself.
	totalStudents, err := s.subjects.CountStudents(ctx, subject.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrolled students")
	}
	homeworks, err := s.homeworks.ListBySubject(ctx, subject.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list homeworks")
	}

	analytics := &models.SubjectAnalytics{
		SubjectName:    subject.Name,
		TotalStudents:  totalStudents,
		TotalHomeworks: len(homeworks),
	}

	for _, homework := range homeworks {
		submissions, err := s.submissions.ListByHomework(ctx, homework.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
		}
		for _, sub := range submissions {
			analytics.SubmissionsStats.TotalSubmissions++
			switch sub.Status {
			case models.SubmissionComplete:
				analytics.SubmissionsStats.OnTimeSubmissions++
			case models.SubmissionLate:
				analytics.SubmissionsStats.LateSubmissions++
			default:
				analytics.SubmissionsStats.PendingSubmissions++
			}
		}
	}

	if err := s.cache.Set(ctx, cacheKey, analytics, 0); err != nil {
		s.logger.Warn("failed to cache subject analytics", zap.String("subject_id", subject.ID), zap.Error(err))
	}
	return analytics, nil
}

// StudentAnalytics summarises a student's submissions, status buckets and
// per-subject grade averages. Averages only count graded submissions.
func (s *ReportService) StudentAnalytics(ctx context.Context, studentID string) (*models.StudentAnalytics, error) {
	student, err := s.users.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrValidation, "user is not a student")
	}

	cacheKey := fmt.Sprintf("report:student:%s", student.ID)
	var cached models.StudentAnalytics
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
		return &cached, nil
	}

	subjects, err := s.subjects.ListByStudent(ctx, student.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subjects")
	}
	details, err := s.submissions.ListDetailsByStudent(ctx, student.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}

	analytics := &models.StudentAnalytics{
		TotalSubjects:    len(subjects),
		TotalSubmissions: len(details),
		SubmissionStatus: map[models.SubmissionStatus]int{
			models.SubmissionComplete:   0,
			models.SubmissionLate:       0,
			models.SubmissionIncomplete: 0,
		},
		GradesBySubject: make(map[string]models.SubjectGradeBreakdown),
	}

	totalGrade := 0
	gradedCount := 0
	for _, detail := range details {
		analytics.SubmissionStatus[detail.Status]++
		if detail.Grade == nil {
			continue
		}
		totalGrade += *detail.Grade
		gradedCount++

		breakdown := analytics.GradesBySubject[detail.SubjectName]
		breakdown.TotalGrade += *detail.Grade
		breakdown.Count++
		analytics.GradesBySubject[detail.SubjectName] = breakdown
	}

	if gradedCount > 0 {
		analytics.AverageGrade = round2(float64(totalGrade) / float64(gradedCount))
		for name, breakdown := range analytics.GradesBySubject {
			breakdown.Average = round2(float64(breakdown.TotalGrade) / float64(breakdown.Count))
			analytics.GradesBySubject[name] = breakdown
		}
	}

	if err := s.cache.Set(ctx, cacheKey, analytics, 0); err != nil {
		s.logger.Warn("failed to cache student analytics", zap.String("student_id", student.ID), zap.Error(err))
	}
	return analytics, nil
}

// ExportHomeworkStatus renders the homework status report as a CSV or PDF
// download.
func (s *ReportService) ExportHomeworkStatus(ctx context.Context, homeworkID string, format ExportFormat) ([]byte, string, error) {
	report, err := s.HomeworkStatus(ctx, homeworkID)
	if err != nil {
		return nil, "", err
	}

	dataset := export.Dataset{
		Headers: []string{"Student", "Status", "Submitted At", "Grade", "Days Overdue"},
		Rows:    make([]map[string]string, 0, len(report.StudentStatuses)),
	}
	for _, row := range report.StudentStatuses {
		record := map[string]string{
			"Student":      row.StudentName,
			"Status":       row.Status,
			"Submitted At": "",
			"Grade":        "",
			"Days Overdue": "",
		}
		if row.SubmittedAt != nil {
			record["Submitted At"] = row.SubmittedAt.Format(time.RFC3339)
		}
		if row.Grade != nil {
			record["Grade"] = strconv.Itoa(*row.Grade)
		}
		if row.DaysOverdue != nil {
			record["Days Overdue"] = strconv.Itoa(*row.DaysOverdue)
		}
		dataset.Rows = append(dataset.Rows, record)
	}

	switch format {
	case ExportCSV:
		payload, err := s.csv.Render(dataset)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv export")
		}
		return payload, fmt.Sprintf("%s-submission-status.csv", report.HomeworkID), nil
	case ExportPDF:
		title := fmt.Sprintf("%s - %s", report.SubjectName, report.HomeworkName)
		payload, err := s.pdf.Render(dataset, title)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf export")
		}
		return payload, fmt.Sprintf("%s-submission-status.pdf", report.HomeworkID), nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
}

func formatRate(submitted, total int) string {
	if total == 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", float64(submitted)/float64(total)*100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
