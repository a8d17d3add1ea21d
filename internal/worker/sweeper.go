package worker

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const sweepTimeout = time.Minute

// Counter records how many sessions a sweep closed.
type Counter interface {
	AutoCompleted(n int)
}

// Sweeper completes active sessions left open past their scheduled end.
type Sweeper struct {
	att     Attendance
	after   time.Duration
	counter Counter
	log     logrus.FieldLogger
}

func NewSweeper(att Attendance, after time.Duration, counter Counter, log logrus.FieldLogger) *Sweeper {
	return &Sweeper{att: att, after: after, counter: counter, log: log}
}

// Sweep runs one pass and returns the number of sessions closed.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	n, err := s.att.CompleteExpired(ctx, s.after)
	if err != nil {
		return 0, err
	}
	if s.counter != nil {
		s.counter.AutoCompleted(n)
	}
	if n > 0 {
		s.log.WithField("sessions", n).Info("auto-completed overdue sessions")
	}
	return n, nil
}

// Schedule starts a cron runner calling Sweep on schedule. Overlapping runs
// are skipped. Stop the returned runner on shutdown.
func (s *Sweeper) Schedule(ctx context.Context, schedule string) (*cron.Cron, error) {
	logger := cron.VerbosePrintfLogger(s.log)
	c := cron.New(cron.WithLogger(logger), cron.WithChain(cron.SkipIfStillRunning(logger)))
	_, err := c.AddFunc(schedule, func() {
		runCtx, cancel := context.WithTimeout(ctx, sweepTimeout)
		defer cancel()
		if _, err := s.Sweep(runCtx); err != nil {
			s.log.WithError(err).Error("session sweep failed")
		}
	})
	if err != nil {
		return nil, errors.Wrapf(err, "scheduling sweep %q", schedule)
	}
	s.log.WithFields(logrus.Fields{"schedule": schedule, "after": s.after.String()}).Info("session sweeper started")
	c.Start()
	return c, nil
}
