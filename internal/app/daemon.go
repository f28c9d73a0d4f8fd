package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	sdaemon "github.com/coreos/go-systemd/v22/daemon"
	"github.com/robfig/cron/v3"

	logx "gradewatch/pkg/logx"
)

// RunDaemon polls on the configured schedule until ctx is cancelled. The
// config file is watched; accepted changes rebuild the client, channels,
// journal and poll schedule in place. Timezone changes need a restart.
func (a *App) RunDaemon(ctx context.Context) error {
	a.mu.Lock()
	schedule := a.schedule
	tzName := a.timezone
	a.mu.Unlock()

	loc := time.Local
	if tzName != "" {
		l, err := time.LoadLocation(tzName)
		if err != nil {
			return fmt.Errorf("poll.timezone: %w", err)
		}
		loc = l
	}

	c := cron.New(cron.WithLocation(loc))
	job := func() { a.scheduledRun(ctx) }
	entry, err := c.AddFunc(schedule, job)
	if err != nil {
		return fmt.Errorf("poll.schedule %q: %w", schedule, err)
	}

	var cronMu sync.Mutex
	reschedule := func(next string) {
		cronMu.Lock()
		defer cronMu.Unlock()
		if next == schedule {
			return
		}
		id, err := c.AddFunc(next, job)
		if err != nil {
			a.log.Warn("poll.schedule rejected, keeping current",
				logx.String("schedule", next), logx.Err(err))
			return
		}
		c.Remove(entry)
		entry = id
		a.log.Info("poll schedule changed",
			logx.String("from", schedule), logx.String("to", next))
		schedule = next
	}

	go a.watchConfig(ctx, reschedule)
	go a.notifyWatchdog(ctx)

	if ok, err := sdaemon.SdNotify(false, sdaemon.SdNotifyReady); err != nil {
		a.log.Debug("sd_notify ready", logx.Err(err))
	} else if ok {
		a.log.Debug("sd_notify ready sent")
	}

	a.log.Info("daemon started", logx.String("schedule", schedule), logx.String("tz", loc.String()))

	// First pass immediately; the schedule covers the rest.
	a.scheduledRun(ctx)

	c.Start()
	<-ctx.Done()

	_, _ = sdaemon.SdNotify(false, sdaemon.SdNotifyStopping)
	stop := c.Stop()
	select {
	case <-stop.Done():
	case <-time.After(30 * time.Second):
		a.log.Warn("timed out waiting for in-flight run")
	}
	a.log.Info("daemon stopped")
	return nil
}

func (a *App) scheduledRun(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if !a.running.CompareAndSwap(false, true) {
		a.log.Warn("previous run still in progress, skipping")
		return
	}
	defer a.running.Store(false)

	if err := a.RunOnce(ctx); err != nil {
		// Fatal for a single run, but the daemon keeps the schedule and
		// retries next tick.
		a.log.Error("run failed", logx.Err(err))
	}
}

func (a *App) watchConfig(ctx context.Context, reschedule func(schedule string)) {
	sub := a.cfgMgr.Subscribe(1)
	defer a.cfgMgr.Unsubscribe(sub)

	go func() {
		if err := a.cfgMgr.Watch(ctx); err != nil && ctx.Err() == nil {
			a.log.Error("config watch", logx.Err(err))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok {
				return
			}
			a.logSvc.Apply(logConfig(cfg))
			if err := a.applyConfig(cfg); err != nil {
				a.log.Error("config reload rejected", logx.Err(err))
				continue
			}
			a.mu.Lock()
			next := a.schedule
			a.mu.Unlock()
			reschedule(next)
			a.log.Info("config reloaded")
		}
	}
}

// notifyWatchdog pings the systemd watchdog at half the configured interval
// when WatchdogSec is set on the unit. No-op outside systemd.
func (a *App) notifyWatchdog(ctx context.Context) {
	interval, err := sdaemon.SdWatchdogEnabled(false)
	if err != nil || interval == 0 {
		return
	}
	t := time.NewTicker(interval / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			_, _ = sdaemon.SdNotify(false, sdaemon.SdNotifyWatchdog)
		}
	}
}
