package models

import "time"

// Subject represents a class taught by one teacher with enrolled students.
type Subject struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Detail    string    `db:"detail" json:"detail"`
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// SubjectDetail aggregates subject information with roster and homework context.
type SubjectDetail struct {
	Subject
	Teacher        UserInfo   `json:"teacher"`
	Students       []UserInfo `json:"students"`
	TotalStudents  int        `json:"total_students"`
	TotalHomeworks int        `json:"total_homeworks"`
	LatestHomework *Homework  `json:"latest_homework,omitempty"`
}
