// Package app wires the components together and sequences each run:
// fetch, detect, notify, commit, persist — per stream.
package app

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"

	"gradewatch/internal/canvas"
	"gradewatch/internal/config"
	"gradewatch/internal/detect"
	"gradewatch/internal/notify"
	"gradewatch/internal/snapshot"
	"gradewatch/internal/storage"
	logx "gradewatch/pkg/logx"
)

const (
	gradeSnapshotFile      = "seen_grades.json"
	assignmentSnapshotFile = "seen_assignments.json"

	defaultSchedule = "@every 15m"
)

// Fetcher is the read-only LMS boundary consumed by the orchestrator.
type Fetcher interface {
	ListActiveCourses(ctx context.Context) ([]canvas.Course, error)
	OverallGrade(ctx context.Context, courseID int64) (canvas.OverallGrade, bool, error)
	GradedSubmissions(ctx context.Context, courseID int64) ([]canvas.Submission, error)
	Assignments(ctx context.Context, courseID int64) ([]canvas.Assignment, error)
}

// Sender delivers one rendered notification across the configured channels.
type Sender interface {
	Send(ctx context.Context, n notify.Notification) error
}

type App struct {
	cfgMgr *config.Manager
	logSvc *logx.Service
	log    logx.Logger

	// mu guards the rebuildable components across config reloads.
	mu       sync.Mutex
	fetcher  Fetcher
	sender   Sender
	journal  storage.Store
	grades   *snapshot.File[detect.GradeRecord]
	assigns  *snapshot.File[detect.AssignmentRecord]
	schedule string
	timezone string

	// running blocks overlapping scheduled runs; the snapshot files are
	// read-modify-write and must never race.
	running atomic.Bool
}

func New(cfgPath string) (*App, error) {
	mgr := config.NewManager(cfgPath)
	cfg, err := mgr.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logSvc, log := logx.New(logConfig(cfg))
	mgr.SetLogger(log.With(logx.String("comp", "config")))
	mgr.SetValidator(func(ctx context.Context, c *config.Config) error {
		return c.Validate()
	})

	a := &App{
		cfgMgr: mgr,
		logSvc: logSvc,
		log:    log,
	}
	if err := a.applyConfig(cfg); err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	return a, nil
}

// applyConfig (re)builds everything that derives from cfg. Called once at
// startup and again on each accepted config reload.
func (a *App) applyConfig(cfg *config.Config) error {
	timeout, err := config.ParseDurationOrDefault("canvas.request_timeout", cfg.Canvas.RequestTimeout, 0)
	if err != nil {
		return err
	}
	client, err := canvas.New(canvas.Config{
		BaseURL:    cfg.Canvas.BaseURL,
		Token:      cfg.Canvas.Token,
		Timeout:    timeout,
		RatePerSec: cfg.Canvas.RatePerSec,
		PerPage:    cfg.Canvas.PerPage,
	}, a.log.With(logx.String("comp", "canvas")))
	if err != nil {
		return err
	}

	channels, err := a.buildChannels(cfg)
	if err != nil {
		return err
	}
	sender := notify.NewService(channels, cfg.Notify.RatePerSec, a.log.With(logx.String("comp", "notify")))

	journal, err := a.buildJournal(cfg)
	if err != nil {
		return err
	}

	dir := cfg.Snapshots.Dir
	if dir == "" {
		dir = "."
	}
	schedule := cfg.Poll.Schedule
	if schedule == "" {
		schedule = defaultSchedule
	}

	a.mu.Lock()
	old := a.journal
	a.fetcher = client
	a.sender = sender
	a.journal = journal
	a.grades = snapshot.NewFile[detect.GradeRecord](filepath.Join(dir, gradeSnapshotFile))
	a.assigns = snapshot.NewFile[detect.AssignmentRecord](filepath.Join(dir, assignmentSnapshotFile))
	a.schedule = schedule
	a.timezone = cfg.Poll.Timezone
	a.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	return nil
}

func (a *App) buildChannels(cfg *config.Config) ([]notify.Notifier, error) {
	var channels []notify.Notifier
	if n := cfg.Notify.Ntfy; n != nil && n.Topic != "" {
		ch, err := notify.NewNtfy(n.Server, n.Topic, a.log.With(logx.String("comp", "ntfy")))
		if err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}
	if tg := cfg.Notify.Telegram; tg != nil && tg.Token != "" {
		ch, err := notify.NewTelegram(tg.Token, tg.ChatID, a.log.With(logx.String("comp", "telegram")))
		if err != nil {
			// Telegram setup needs a network round-trip; a broken bot token
			// should not take down ntfy-only operation.
			a.log.Warn("telegram channel unavailable", logx.Err(err))
		} else {
			channels = append(channels, ch)
		}
	}
	if len(channels) == 0 {
		return nil, fmt.Errorf("no usable notification channel")
	}
	return channels, nil
}

func (a *App) buildJournal(cfg *config.Config) (storage.Store, error) {
	if cfg.Journal == nil {
		return nil, nil
	}
	busy, err := config.ParseDurationField("journal.busy_timeout", cfg.Journal.BusyTimeout)
	if err != nil {
		return nil, err
	}
	return storage.Open(storage.Config{
		Driver:      cfg.Journal.Driver,
		Path:        cfg.Journal.Path,
		BusyTimeout: busy,
	}, a.log.With(logx.String("comp", "journal")))
}

func logConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console || !cfg.Logging.File.Enabled,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func (a *App) Close() error {
	a.mu.Lock()
	j := a.journal
	a.journal = nil
	a.mu.Unlock()
	if j != nil {
		_ = j.Close()
	}
	if a.logSvc != nil {
		return a.logSvc.Close()
	}
	return nil
}
