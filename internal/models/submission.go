package models

import "time"

// SubmissionStatus is the closed set of persisted submission states.
type SubmissionStatus string

const (
	SubmissionIncomplete SubmissionStatus = "incomplete"
	SubmissionComplete   SubmissionStatus = "complete"
	SubmissionLate       SubmissionStatus = "late"
)

// Valid reports whether the status is one of the closed set.
func (s SubmissionStatus) Valid() bool {
	switch s {
	case SubmissionIncomplete, SubmissionComplete, SubmissionLate:
		return true
	}
	return false
}

// Submission is a student's file deliverable against one homework. At most
// one exists per (homework, student) pair.
type Submission struct {
	ID          string           `db:"id" json:"id"`
	HomeworkID  string           `db:"homework_id" json:"homework_id"`
	StudentID   string           `db:"student_id" json:"student_id"`
	SubmittedAt time.Time        `db:"submitted_at" json:"submitted_at"`
	FilePath    string           `db:"file_path" json:"file_path"`
	Status      SubmissionStatus `db:"status" json:"status"`
	Grade       *int             `db:"grade" json:"grade,omitempty"`
	Feedback    *string          `db:"feedback" json:"feedback,omitempty"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time        `db:"updated_at" json:"updated_at"`
}

// SubmissionDetail joins a submission with its homework and subject context.
type SubmissionDetail struct {
	Submission
	HomeworkName string `db:"homework_name" json:"homework_name"`
	SubjectID    string `db:"subject_id" json:"subject_id"`
	SubjectName  string `db:"subject_name" json:"subject_name"`
}
