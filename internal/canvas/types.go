package canvas

import "time"

// Course is one active enrollment scope.
type Course struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	EnrollmentState string `json:"enrollment_state,omitempty"`
}

// Submission is a graded work product, fetched with the assignment and
// comment thread included.
type Submission struct {
	ID                 int64               `json:"id"`
	UserID             int64               `json:"user_id"`
	Score              *float64            `json:"score"`
	Grade              string              `json:"grade"`
	Assignment         Assignment          `json:"assignment"`
	SubmissionComments []SubmissionComment `json:"submission_comments"`
}

type SubmissionComment struct {
	Comment string        `json:"comment"`
	Author  CommentAuthor `json:"author"`
}

type CommentAuthor struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
}

type Assignment struct {
	ID             int64      `json:"id"`
	Name           string     `json:"name"`
	DueAt          *time.Time `json:"due_at"`
	PointsPossible *float64   `json:"points_possible"`
}

// OverallGrade is the course-level current score/grade pair. Display-only
// context; it never participates in change detection.
type OverallGrade struct {
	Score *float64
	Grade string
}

type enrollment struct {
	Grades struct {
		CurrentScore *float64 `json:"current_score"`
		CurrentGrade string   `json:"current_grade"`
	} `json:"grades"`
}
