package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gradewatch/internal/canvas"
	"gradewatch/internal/detect"
	"gradewatch/internal/notify"
	"gradewatch/internal/storage"
	logx "gradewatch/pkg/logx"
)

// RunOnce performs a single poll cycle. The returned error is non-nil only
// when the course listing itself fails; per-course fetch errors are logged
// and the course is skipped for this cycle.
func (a *App) RunOnce(ctx context.Context) error {
	a.mu.Lock()
	fetcher := a.fetcher
	sender := a.sender
	journal := a.journal
	grades := a.grades
	assigns := a.assigns
	a.mu.Unlock()

	started := time.Now()
	courses, err := fetcher.ListActiveCourses(ctx)
	if err != nil {
		return fmt.Errorf("list active courses: %w", err)
	}
	a.log.Info("run started", logx.Int("courses", len(courses)))

	sent := 0
	sent += a.gradePass(ctx, fetcher, sender, journal, grades, courses)
	sent += a.assignmentPass(ctx, fetcher, sender, journal, assigns, courses)

	a.log.Info("run finished",
		logx.Int("notified", sent),
		logx.Duration("took", time.Since(started)))
	return nil
}

func (a *App) gradePass(ctx context.Context, fetcher Fetcher, sender Sender, journal storage.Store, file gradeFile, courses []canvas.Course) int {
	seen, err := file.Load()
	if err != nil {
		// Treating unreadable state as empty would re-notify everything,
		// so the whole stream sits out this cycle.
		a.log.Error("load grade snapshot", logx.Err(err))
		return 0
	}

	sent := 0
	dirty := false
	for _, course := range courses {
		subs, err := fetcher.GradedSubmissions(ctx, course.ID)
		if err != nil {
			a.logCourseError("fetch submissions", course, err)
			continue
		}
		overall, have, err := fetcher.OverallGrade(ctx, course.ID)
		if err != nil {
			// Overall grade is display context only; carry on without it.
			a.log.Debug("fetch overall grade", logx.Int64("course", course.ID), logx.Err(err))
			have = false
		}

		for _, ch := range detect.GradeChanges(course, subs, overall, have, seen, time.Now()) {
			if a.deliver(ctx, sender, journal, "grades", ch.Key, ch.Event) {
				seen[ch.Key] = ch.Record
				dirty = true
				sent++
			}
		}
	}

	if dirty {
		if err := file.Save(seen); err != nil {
			a.log.Error("save grade snapshot", logx.Err(err))
		}
	}
	return sent
}

func (a *App) assignmentPass(ctx context.Context, fetcher Fetcher, sender Sender, journal storage.Store, file assignmentFile, courses []canvas.Course) int {
	seen, err := file.Load()
	if err != nil {
		a.log.Error("load assignment snapshot", logx.Err(err))
		return 0
	}

	sent := 0
	dirty := false
	for _, course := range courses {
		assignments, err := fetcher.Assignments(ctx, course.ID)
		if err != nil {
			a.logCourseError("fetch assignments", course, err)
			continue
		}

		for _, ch := range detect.AssignmentChanges(course, assignments, seen, time.Now()) {
			if a.deliver(ctx, sender, journal, "assignments", ch.Key, ch.Event) {
				seen[ch.Key] = ch.Record
				dirty = true
				sent++
			}
		}
	}

	if dirty {
		if err := file.Save(seen); err != nil {
			a.log.Error("save assignment snapshot", logx.Err(err))
		}
	}
	return sent
}

// deliver renders and sends one event, journals the attempt, and reports
// whether the snapshot entry may be committed. A failed delivery leaves the
// entry uncommitted so the next cycle re-detects and retries it.
func (a *App) deliver(ctx context.Context, sender Sender, journal storage.Store, stream, key string, ev detect.Event) bool {
	title, body, high := detect.Render(ev)
	prio := notify.PriorityDefault
	if high {
		prio = notify.PriorityHigh
	}

	started := time.Now()
	err := sender.Send(ctx, notify.Notification{Title: title, Body: body, Priority: prio})

	if journal != nil {
		entry := storage.DeliveryEntry{
			At:       started,
			Stream:   stream,
			Key:      key,
			Kind:     string(ev.Kind),
			Title:    title,
			Priority: string(prio),
			OK:       err == nil,
			TookMS:   time.Since(started).Milliseconds(),
		}
		if err != nil {
			entry.Error = err.Error()
		}
		if jerr := journal.AppendDelivery(ctx, entry); jerr != nil {
			a.log.Warn("journal append", logx.Err(jerr))
		}
	}

	if err != nil {
		a.log.Warn("delivery failed",
			logx.String("stream", stream),
			logx.String("key", key),
			logx.Err(err))
		return false
	}
	a.log.Info("notified",
		logx.String("stream", stream),
		logx.String("key", key),
		logx.String("kind", string(ev.Kind)),
		logx.String("title", title))
	return true
}

func (a *App) logCourseError(op string, course canvas.Course, err error) {
	fields := []logx.Field{
		logx.Int64("course", course.ID),
		logx.String("name", course.Name),
		logx.Err(err),
	}
	switch {
	case errors.Is(err, canvas.ErrAuth):
		a.log.Warn(op+": unauthorized, skipping course", fields...)
	default:
		var fe *canvas.FetchError
		if errors.As(err, &fe) {
			fields = append(fields, logx.Int("status", fe.Status))
		}
		a.log.Warn(op+": skipping course", fields...)
	}
}

// gradeFile and assignmentFile narrow snapshot.File so tests can swap in
// in-memory state.
type gradeFile interface {
	Load() (map[string]detect.GradeRecord, error)
	Save(map[string]detect.GradeRecord) error
}

type assignmentFile interface {
	Load() (map[string]detect.AssignmentRecord, error)
	Save(map[string]detect.AssignmentRecord) error
}
