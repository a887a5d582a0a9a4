package service

import (
	"time"

	"github.com/classdesk/classdesk-api/internal/models"
	appErrors "github.com/classdesk/classdesk-api/pkg/errors"
)

// dueDateLayouts are the accepted ISO-8601 shapes for homework due dates.
var dueDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseDueDate parses an ISO-8601 due date. Malformed text is a validation
// error, never a silent default.
func ParseDueDate(raw string) (time.Time, error) {
	for _, layout := range dueDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, appErrors.Clone(appErrors.ErrValidation, "invalid due date: "+raw)
}

// ClassifySubmission maps a due date and a submission timestamp onto the
// persisted status: strictly after due is late, otherwise complete. Equal
// timestamps count as on time.
func ClassifySubmission(dueDate string, submittedAt time.Time) (models.SubmissionStatus, error) {
	due, err := ParseDueDate(dueDate)
	if err != nil {
		return "", err
	}
	if submittedAt.After(due) {
		return models.SubmissionLate, nil
	}
	return models.SubmissionComplete, nil
}

// DaysOverdue returns the whole calendar days between the due date and the
// reference time, or nil when the reference is not past due.
func DaysOverdue(due, ref time.Time) *int {
	if !ref.After(due) {
		return nil
	}
	ref = ref.In(due.Location())
	dueDay := time.Date(due.Year(), due.Month(), due.Day(), 0, 0, 0, 0, due.Location())
	refDay := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, ref.Location())
	days := int(refDay.Sub(dueDay) / (24 * time.Hour))
	if days <= 0 {
		return nil
	}
	return &days
}
