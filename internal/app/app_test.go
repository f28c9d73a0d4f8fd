package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"gradewatch/internal/canvas"
	"gradewatch/internal/detect"
	"gradewatch/internal/notify"
	"gradewatch/internal/snapshot"
	"gradewatch/internal/storage"
	logx "gradewatch/pkg/logx"
)

func fp(v float64) *float64 { return &v }

type stubFetcher struct {
	courses     []canvas.Course
	coursesErr  error
	subs        map[int64][]canvas.Submission
	subsErr     map[int64]error
	overall     map[int64]canvas.OverallGrade
	assignments map[int64][]canvas.Assignment
	assignErr   map[int64]error
}

func (s *stubFetcher) ListActiveCourses(ctx context.Context) ([]canvas.Course, error) {
	return s.courses, s.coursesErr
}

func (s *stubFetcher) OverallGrade(ctx context.Context, courseID int64) (canvas.OverallGrade, bool, error) {
	g, ok := s.overall[courseID]
	return g, ok, nil
}

func (s *stubFetcher) GradedSubmissions(ctx context.Context, courseID int64) ([]canvas.Submission, error) {
	if err := s.subsErr[courseID]; err != nil {
		return nil, err
	}
	return s.subs[courseID], nil
}

func (s *stubFetcher) Assignments(ctx context.Context, courseID int64) ([]canvas.Assignment, error) {
	if err := s.assignErr[courseID]; err != nil {
		return nil, err
	}
	return s.assignments[courseID], nil
}

type stubSender struct {
	failures int // first N sends fail
	sent     []notify.Notification
}

func (s *stubSender) Send(ctx context.Context, n notify.Notification) error {
	if s.failures > 0 {
		s.failures--
		return errors.New("channel down")
	}
	s.sent = append(s.sent, n)
	return nil
}

type memJournal struct {
	entries []storage.DeliveryEntry
}

func (j *memJournal) AppendDelivery(ctx context.Context, e storage.DeliveryEntry) error {
	j.entries = append(j.entries, e)
	return nil
}

func (j *memJournal) Close() error { return nil }

// memGradeFile keeps snapshot state in memory; Save replaces it wholesale
// the way the real file does.
type memGradeFile struct {
	entries map[string]detect.GradeRecord
	saves   int
}

func (m *memGradeFile) Load() (map[string]detect.GradeRecord, error) {
	out := make(map[string]detect.GradeRecord, len(m.entries))
	for k, v := range m.entries {
		out[k] = v
	}
	return out, nil
}

func (m *memGradeFile) Save(entries map[string]detect.GradeRecord) error {
	m.entries = entries
	m.saves++
	return nil
}

type memAssignmentFile struct {
	entries map[string]detect.AssignmentRecord
}

func (m *memAssignmentFile) Load() (map[string]detect.AssignmentRecord, error) {
	out := make(map[string]detect.AssignmentRecord, len(m.entries))
	for k, v := range m.entries {
		out[k] = v
	}
	return out, nil
}

func (m *memAssignmentFile) Save(entries map[string]detect.AssignmentRecord) error {
	m.entries = entries
	return nil
}

func testApp() *App {
	return &App{log: logx.Nop()}
}

func gradedCourse() *stubFetcher {
	return &stubFetcher{
		courses: []canvas.Course{{ID: 7, Name: "Biology 101"}},
		subs: map[int64][]canvas.Submission{
			7: {{
				ID:     11,
				UserID: 5,
				Score:  fp(9.5),
				Grade:  "A",
				Assignment: canvas.Assignment{
					ID:             111,
					Name:           "Lab Report",
					PointsPossible: fp(10),
				},
			}},
		},
	}
}

func TestGradePassCommitGatedOnDelivery(t *testing.T) {
	a := testApp()
	fetcher := gradedCourse()
	sender := &stubSender{failures: 1}
	file := &memGradeFile{}

	sent := a.gradePass(context.Background(), fetcher, sender, nil, file, fetcher.courses)
	if sent != 0 {
		t.Fatalf("expected 0 deliveries while channel is down, got %d", sent)
	}
	if len(file.entries) != 0 || file.saves != 0 {
		t.Fatalf("snapshot must stay uncommitted after failed delivery: %+v", file.entries)
	}

	// Channel recovers; the same change is re-detected and delivered once.
	sent = a.gradePass(context.Background(), fetcher, sender, nil, file, fetcher.courses)
	if sent != 1 {
		t.Fatalf("expected 1 delivery after recovery, got %d", sent)
	}
	if _, ok := file.entries["7_11"]; !ok {
		t.Fatalf("expected committed record for key 7_11, have %v", file.entries)
	}

	// Nothing new on the next cycle.
	if sent = a.gradePass(context.Background(), fetcher, sender, nil, file, fetcher.courses); sent != 0 {
		t.Fatalf("expected quiet cycle, got %d deliveries", sent)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected exactly 1 notification overall, got %d", len(sender.sent))
	}
}

func TestGradePassSkipsCourseOnFetchError(t *testing.T) {
	a := testApp()
	fetcher := gradedCourse()
	fetcher.courses = append(fetcher.courses, canvas.Course{ID: 8, Name: "Chemistry"})
	fetcher.subsErr = map[int64]error{8: canvas.ErrAuth}
	sender := &stubSender{}
	file := &memGradeFile{}

	sent := a.gradePass(context.Background(), fetcher, sender, nil, file, fetcher.courses)
	if sent != 1 {
		t.Fatalf("expected the healthy course to deliver, got %d", sent)
	}
	if _, ok := file.entries["7_11"]; !ok {
		t.Fatalf("expected commit for course 7, have %v", file.entries)
	}
	if _, ok := file.entries["8_0"]; ok {
		t.Fatalf("failed course must not leave snapshot entries")
	}
}

func TestAssignmentPassNotifiesOnceThenQuiet(t *testing.T) {
	a := testApp()
	due := time.Date(2024, 5, 1, 23, 59, 0, 0, time.UTC)
	fetcher := &stubFetcher{
		courses: []canvas.Course{{ID: 7, Name: "Biology 101"}},
		assignments: map[int64][]canvas.Assignment{
			7: {{ID: 3, Name: "Essay", DueAt: &due, PointsPossible: fp(20)}},
		},
	}
	sender := &stubSender{}
	file := &memAssignmentFile{}

	if sent := a.assignmentPass(context.Background(), fetcher, sender, nil, file, fetcher.courses); sent != 1 {
		t.Fatalf("expected 1 new-assignment delivery, got %d", sent)
	}
	if sent := a.assignmentPass(context.Background(), fetcher, sender, nil, file, fetcher.courses); sent != 0 {
		t.Fatalf("expected quiet second cycle, got %d", sent)
	}

	// Due date moves; exactly one more notification.
	moved := due.AddDate(0, 0, 7)
	fetcher.assignments[7][0].DueAt = &moved
	if sent := a.assignmentPass(context.Background(), fetcher, sender, nil, file, fetcher.courses); sent != 1 {
		t.Fatalf("expected due-date change delivery, got %d", sent)
	}
	if len(sender.sent) != 2 {
		t.Fatalf("expected 2 notifications overall, got %d", len(sender.sent))
	}
}

func TestDeliverJournalsAttempts(t *testing.T) {
	a := testApp()
	journal := &memJournal{}
	ev := detect.Event{
		Kind:       detect.KindNewGrade,
		Course:     "Biology 101",
		Assignment: "Lab Report",
		ScoreText:  "9.5/10 (A)",
	}

	if ok := a.deliver(context.Background(), &stubSender{failures: 1}, journal, "grades", "7_11", ev); ok {
		t.Fatalf("expected failed delivery")
	}
	if ok := a.deliver(context.Background(), &stubSender{}, journal, "grades", "7_11", ev); !ok {
		t.Fatalf("expected successful delivery")
	}

	if len(journal.entries) != 2 {
		t.Fatalf("expected 2 journal entries, got %d", len(journal.entries))
	}
	if journal.entries[0].OK || journal.entries[0].Error == "" {
		t.Fatalf("first entry should record the failure: %+v", journal.entries[0])
	}
	if !journal.entries[1].OK || journal.entries[1].Error != "" {
		t.Fatalf("second entry should record success: %+v", journal.entries[1])
	}
	if journal.entries[1].Stream != "grades" || journal.entries[1].Key != "7_11" {
		t.Fatalf("unexpected journal coordinates: %+v", journal.entries[1])
	}
}

func TestRunOnceFatalOnCourseListing(t *testing.T) {
	a := testApp()
	a.fetcher = &stubFetcher{coursesErr: errors.New("http 500")}
	a.sender = &stubSender{}

	if err := a.RunOnce(context.Background()); err == nil {
		t.Fatalf("expected error when course listing fails")
	}
}

func TestRunOncePersistsSnapshots(t *testing.T) {
	a := testApp()
	fetcher := gradedCourse()
	due := time.Date(2024, 5, 1, 23, 59, 0, 0, time.UTC)
	fetcher.assignments = map[int64][]canvas.Assignment{
		7: {{ID: 3, Name: "Essay", DueAt: &due}},
	}
	sender := &stubSender{}

	dir := t.TempDir()
	a.fetcher = fetcher
	a.sender = sender
	a.grades = snapshot.NewFile[detect.GradeRecord](filepath.Join(dir, gradeSnapshotFile))
	a.assigns = snapshot.NewFile[detect.AssignmentRecord](filepath.Join(dir, assignmentSnapshotFile))

	if err := a.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(sender.sent) != 2 {
		t.Fatalf("expected grade + assignment notifications, got %d", len(sender.sent))
	}

	seen, err := a.grades.Load()
	if err != nil {
		t.Fatalf("load grade snapshot: %v", err)
	}
	if _, ok := seen["7_11"]; !ok {
		t.Fatalf("grade snapshot not persisted: %v", seen)
	}

	// Second run against the persisted state is quiet.
	if err := a.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(sender.sent) != 2 {
		t.Fatalf("expected no further notifications, got %d", len(sender.sent))
	}
}
