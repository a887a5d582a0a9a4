package models

import "time"

// ReportStatusNotSubmitted labels students with no submission in reports.
// It is a report-level value, distinct from the persisted statuses.
const ReportStatusNotSubmitted = "not_submitted"

// StudentSubmissionStatus is one roster row of a homework status report.
type StudentSubmissionStatus struct {
	StudentID   string     `json:"student_id"`
	StudentName string     `json:"student_name"`
	Submitted   bool       `json:"submitted"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	Status      string     `json:"status"`
	Grade       *int       `json:"grade,omitempty"`
	Feedback    *string    `json:"feedback,omitempty"`
	DaysOverdue *int       `json:"days_overdue,omitempty"`
}

// HomeworkStatusReport rolls up submission state for one homework across
// every student enrolled in its subject.
type HomeworkStatusReport struct {
	HomeworkID        string                    `json:"homework_id"`
	HomeworkName      string                    `json:"homework_name"`
	DueDate           string                    `json:"due_date"`
	SubjectName       string                    `json:"subject_name"`
	TotalStudents     int                       `json:"total_students"`
	SubmittedCount    int                       `json:"submitted_count"`
	PendingCount      int                       `json:"pending_count"`
	GradedCount       int                       `json:"graded_count"`
	LateSubmissions   int                       `json:"late_submissions"`
	OnTimeSubmissions int                       `json:"on_time_submissions"`
	SubmissionRate    string                    `json:"submission_rate"`
	StudentStatuses   []StudentSubmissionStatus `json:"student_statuses"`
}

// SubmissionSummary accumulates per-homework counts and the average grade
// over graded submissions.
type SubmissionSummary struct {
	TotalSubmissions   int     `json:"total_submissions"`
	PendingSubmissions int     `json:"pending_submissions"`
	LateSubmissions    int     `json:"late_submissions"`
	OnTimeSubmissions  int     `json:"on_time_submissions"`
	AverageGrade       float64 `json:"average_grade"`
}

// HomeworkRollup is one homework entry of a subject-wide status report.
type HomeworkRollup struct {
	HomeworkID    string                       `json:"homework_id"`
	HomeworkName  string                       `json:"homework_name"`
	DueDate       string                       `json:"due_date"`
	MaxScore      int                          `json:"max_score"`
	Summary       SubmissionSummary            `json:"submission_summary"`
	StudentStatus map[string]RollupStudentCell `json:"student_status"`
}

// RollupStudentCell is the per-student cell inside a homework rollup.
type RollupStudentCell struct {
	Submitted   bool       `json:"submitted"`
	Status      string     `json:"status"`
	Grade       *int       `json:"grade,omitempty"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
}

// SubjectHomeworkStatus reports rollups for every homework in a subject.
type SubjectHomeworkStatus struct {
	SubjectName    string           `json:"subject_name"`
	TotalStudents  int              `json:"total_students"`
	TotalHomeworks int              `json:"total_homeworks"`
	Homeworks      []HomeworkRollup `json:"homeworks"`
}

// SubmissionStats buckets all submissions of a subject by status.
type SubmissionStats struct {
	TotalSubmissions   int `json:"total_submissions"`
	OnTimeSubmissions  int `json:"on_time_submissions"`
	LateSubmissions    int `json:"late_submissions"`
	PendingSubmissions int `json:"pending_submissions"`
}

// SubjectAnalytics is the subject-wide submission statistics view.
type SubjectAnalytics struct {
	SubjectName      string          `json:"subject_name"`
	TotalStudents    int             `json:"total_students"`
	TotalHomeworks   int             `json:"total_homeworks"`
	SubmissionsStats SubmissionStats `json:"submissions_stats"`
}

// SubjectGradeBreakdown accumulates a student's grades within one subject.
type SubjectGradeBreakdown struct {
	TotalGrade int     `json:"total_grade"`
	Count      int     `json:"count"`
	Average    float64 `json:"average"`
}

// StudentAnalytics summarises one student's submissions and grades.
type StudentAnalytics struct {
	TotalSubjects    int                              `json:"total_subjects"`
	TotalSubmissions int                              `json:"total_submissions"`
	SubmissionStatus map[SubmissionStatus]int         `json:"submission_status"`
	AverageGrade     float64                          `json:"average_grade"`
	GradesBySubject  map[string]SubjectGradeBreakdown `json:"grades_by_subject"`
}
