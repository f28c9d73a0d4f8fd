package detect

import (
	"strconv"
	"strings"
	"time"

	"gradewatch/internal/canvas"
)

// GradeChanges evaluates one course's graded submissions against the seen
// mapping. A submission yields exactly one change iff its key is unseen or
// its instructor comment count grew. The event re-sends the full current
// comment list rather than a delta; the reader infers which are new.
//
// The seen mapping is not mutated.
func GradeChanges(course canvas.Course, subs []canvas.Submission, overall canvas.OverallGrade, haveOverall bool, seen map[string]GradeRecord, now time.Time) []GradeChange {
	overallText := formatOverall(overall, haveOverall)

	var out []GradeChange
	for _, sub := range subs {
		key := SeenKey(course.ID, sub.ID)
		lines := instructorComments(sub)

		stored, ok := seen[key]
		storedCount := 0
		if ok {
			storedCount = stored.CommentCount
		}

		isNew := !ok
		hasNewComments := len(lines) > storedCount
		if !isNew && !hasNewComments {
			continue
		}

		kind := KindNewComments
		if isNew {
			kind = KindNewGrade
		}

		name := sub.Assignment.Name
		if name == "" {
			name = "Unknown Assignment"
		}
		grade := sub.Grade
		if grade == "" {
			grade = "N/A"
		}

		out = append(out, GradeChange{
			Key: key,
			Record: GradeRecord{
				Assignment:   name,
				Course:       course.Name,
				Grade:        grade,
				CommentCount: len(lines),
				NotifiedAt:   now,
			},
			Event: Event{
				Kind:       kind,
				Course:     course.Name,
				Assignment: name,
				ScoreText:  formatScore(sub, grade),
				Overall:    overallText,
				Comments:   lines,
			},
		})
	}
	return out
}

// instructorComments keeps non-empty comments written by someone other than
// the submission's own user, as "author: text" lines in thread order.
func instructorComments(sub canvas.Submission) []string {
	var lines []string
	for _, c := range sub.SubmissionComments {
		text := strings.TrimSpace(c.Comment)
		if text == "" {
			continue
		}
		if c.Author.ID == sub.UserID {
			continue
		}
		lines = append(lines, c.Author.DisplayName+": "+text)
	}
	return lines
}

// formatScore renders "score/points (grade)" when both numbers are present,
// otherwise falls back to the literal grade string.
func formatScore(sub canvas.Submission, grade string) string {
	if sub.Score != nil && sub.Assignment.PointsPossible != nil && *sub.Assignment.PointsPossible != 0 {
		return formatFloat(*sub.Score) + "/" + formatFloat(*sub.Assignment.PointsPossible) + " (" + grade + ")"
	}
	return grade
}

func formatOverall(g canvas.OverallGrade, have bool) string {
	switch {
	case !have:
		return "N/A"
	case g.Score != nil && g.Grade != "":
		return formatFloat(*g.Score) + "% (" + g.Grade + ")"
	case g.Score != nil:
		return formatFloat(*g.Score) + "%"
	case g.Grade != "":
		return g.Grade
	default:
		return "N/A"
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
