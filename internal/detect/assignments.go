package detect

import (
	"strconv"
	"time"

	"gradewatch/internal/canvas"
)

// AssignmentChanges evaluates one course's assignments against the seen
// mapping: an unseen key is a new assignment; a seen key whose due date
// differs (absence compares equal only to absence) is a deadline change.
//
// The seen mapping is not mutated.
func AssignmentChanges(course canvas.Course, assignments []canvas.Assignment, seen map[string]AssignmentRecord, now time.Time) []AssignmentChange {
	var out []AssignmentChange
	for _, a := range assignments {
		key := SeenKey(course.ID, a.ID)
		name := a.Name
		if name == "" {
			name = "Unknown Assignment"
		}

		stored, ok := seen[key]
		if !ok {
			out = append(out, AssignmentChange{
				Key: key,
				Record: AssignmentRecord{
					Name:        name,
					Course:      course.Name,
					DueAt:       a.DueAt,
					FirstSeenAt: now,
				},
				Event: Event{
					Kind:       KindNewAssignment,
					Course:     course.Name,
					Assignment: name,
					DueAt:      a.DueAt,
					PointsText: formatPoints(a.PointsPossible),
				},
			})
			continue
		}

		if dueEqual(a.DueAt, stored.DueAt) {
			continue
		}

		rec := stored
		rec.DueAt = a.DueAt
		changed := now
		rec.DueChangedAt = &changed
		out = append(out, AssignmentChange{
			Key:    key,
			Record: rec,
			Event: Event{
				Kind:       KindDueDateChanged,
				Course:     course.Name,
				Assignment: name,
				DueAt:      a.DueAt,
				OldDueAt:   stored.DueAt,
				PointsText: formatPoints(a.PointsPossible),
			},
		})
	}
	return out
}

// dueEqual treats two absent due dates as equal; absence never equals a
// concrete timestamp, so gaining or losing a due date is itself a change.
func dueEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func formatPoints(p *float64) string {
	if p == nil || *p == 0 {
		return "ungraded"
	}
	return strconv.Itoa(int(*p)) + " pts"
}
