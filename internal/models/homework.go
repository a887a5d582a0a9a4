package models

import "time"

// Homework represents an assignment belonging to a subject. The due date is
// stored as ISO-8601 text and parsed at classification time.
type Homework struct {
	ID           string    `db:"id" json:"id"`
	SubjectID    string    `db:"subject_id" json:"subject_id"`
	Name         string    `db:"name" json:"name"`
	Instructions string    `db:"instructions" json:"instructions"`
	DueDate      string    `db:"due_date" json:"due_date"`
	MaxScore     int       `db:"max_score" json:"max_score"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// HomeworkStatusFilter narrows a student's homework listing.
type HomeworkStatusFilter string

const (
	HomeworkFilterPending   HomeworkStatusFilter = "pending"
	HomeworkFilterSubmitted HomeworkStatusFilter = "submitted"
)
