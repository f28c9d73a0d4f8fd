// Package notify delivers rendered change notifications. Delivery is
// best-effort and synchronous: one attempt per channel per event, no retry
// within a run. The orchestrator treats a failed send as "not delivered" and
// leaves the corresponding snapshot entry uncommitted, so the change is
// re-detected (and re-sent) on the next run.
package notify

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"

	logx "gradewatch/pkg/logx"
)

type Priority string

const (
	PriorityDefault Priority = "default"
	PriorityHigh    Priority = "high"
)

type Notification struct {
	Title    string
	Body     string
	Priority Priority
}

// Notifier is a single delivery channel.
type Notifier interface {
	Name() string
	Send(ctx context.Context, n Notification) error
}

// Service fans a notification out to all configured channels behind a shared
// send rate limit. A send counts as delivered if at least one channel
// accepted it.
type Service struct {
	channels []Notifier
	limiter  *rate.Limiter
	log      logx.Logger
}

func NewService(channels []Notifier, ratePerSec int, log logx.Logger) *Service {
	if ratePerSec <= 0 {
		ratePerSec = 3
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		channels: channels,
		limiter:  rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec),
		log:      log,
	}
}

func (s *Service) Send(ctx context.Context, n Notification) error {
	if len(s.channels) == 0 {
		return errors.New("notify: no channels configured")
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	var delivered bool
	var lastErr error
	for _, ch := range s.channels {
		start := time.Now()
		err := ch.Send(ctx, n)
		if err != nil {
			lastErr = err
			s.log.Warn("notification send failed",
				logx.String("channel", ch.Name()),
				logx.String("title", n.Title),
				logx.Err(err))
			continue
		}
		delivered = true
		s.log.Debug("notification sent",
			logx.String("channel", ch.Name()),
			logx.String("title", n.Title),
			logx.Duration("took", time.Since(start)))
	}
	if !delivered {
		return lastErr
	}
	return nil
}
