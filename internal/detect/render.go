package detect

import (
	"strings"
	"time"
)

// Render turns an event into notification title, body, and a high-priority
// flag. New assignments go out at default priority; everything else is high.
func Render(ev Event) (title, body string, high bool) {
	switch ev.Kind {
	case KindNewAssignment:
		title = "New Assignment: " + ev.Course
		body = ev.Assignment + "\nDue: " + FormatDue(ev.DueAt) + "\nWorth: " + ev.PointsText
		return title, body, false

	case KindDueDateChanged:
		title = "Deadline Changed: " + ev.Course
		body = ev.Assignment + "\nOld due: " + FormatDue(ev.OldDueAt) + "\nNew due: " + FormatDue(ev.DueAt)
		return title, body, true

	default: // KindNewGrade, KindNewComments
		title = "Grade Posted: " + ev.Course
		var b strings.Builder
		b.WriteString(ev.Assignment)
		b.WriteString("\nAssignment: ")
		b.WriteString(ev.ScoreText)
		b.WriteString("\nCourse grade: ")
		b.WriteString(ev.Overall)
		if len(ev.Comments) > 0 {
			b.WriteString("\n\nInstructor comments:")
			for _, line := range ev.Comments {
				b.WriteString("\n  ")
				b.WriteString(line)
			}
		}
		return title, b.String(), true
	}
}

// FormatDue renders a due date for humans; absence reads as "No due date".
func FormatDue(t *time.Time) string {
	if t == nil {
		return "No due date"
	}
	return t.UTC().Format("Mon Jan 2 at 3:04 PM") + " UTC"
}
