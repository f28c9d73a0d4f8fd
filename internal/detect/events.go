// Package detect is the change-detection core: it compares freshly fetched
// LMS records against the persisted seen-state and produces the changes that
// warrant a notification.
//
// Detection is pure. Each change carries the snapshot record that should
// replace the stored one; committing that record is the caller's decision
// (it is gated on delivery success, so a failed push is re-detected on the
// next run).
package detect

import (
	"strconv"
	"time"
)

type Kind string

const (
	KindNewGrade       Kind = "new_grade"
	KindNewComments    Kind = "new_comments"
	KindNewAssignment  Kind = "new_assignment"
	KindDueDateChanged Kind = "due_date_changed"
)

// Event is one detected transition, carrying everything needed to render a
// notification.
type Event struct {
	Kind       Kind
	Course     string
	Assignment string

	// Grade stream payload.
	ScoreText string   // "9.5/10 (A)" or the literal grade string
	Overall   string   // course-level grade context, e.g. "92.3% (A-)"
	Comments  []string // full current "author: text" list

	// Assignment stream payload.
	DueAt      *time.Time
	OldDueAt   *time.Time
	PointsText string
}

// GradeRecord is the last-notified state of one submission.
// CommentCount is monotonically non-decreasing for a given key.
type GradeRecord struct {
	Assignment   string    `json:"assignment"`
	Course       string    `json:"course"`
	Grade        string    `json:"grade"`
	CommentCount int       `json:"comment_count"`
	NotifiedAt   time.Time `json:"notified_at"`
}

// AssignmentRecord is the last-known due date for an assignment.
type AssignmentRecord struct {
	Name         string     `json:"name"`
	Course       string     `json:"course"`
	DueAt        *time.Time `json:"due_at"`
	FirstSeenAt  time.Time  `json:"first_seen"`
	DueChangedAt *time.Time `json:"due_changed_at,omitempty"`
}

// GradeChange pairs an event with the snapshot mutation it proposes.
type GradeChange struct {
	Key    string
	Record GradeRecord
	Event  Event
}

// AssignmentChange pairs an event with the snapshot mutation it proposes.
type AssignmentChange struct {
	Key    string
	Record AssignmentRecord
	Event  Event
}

// SeenKey builds the snapshot key for an entity within a course.
func SeenKey(courseID, entityID int64) string {
	return strconv.FormatInt(courseID, 10) + "_" + strconv.FormatInt(entityID, 10)
}
