package service

import (
	"context"
	"log"
	"time"

	"github.com/dmcewen/quarterdeck/server/internal/quarterdeck/clock"
	"github.com/dmcewen/quarterdeck/server/internal/quarterdeck/opcal"
)

// Scheduler drives the time-based jobs: the daily reset at the rollover hour,
// the duty watch check at its evening fire time, and a periodic catch-up scan
// for a reset that was missed (server down at 3am).  It runs as a background
// goroutine and is safe to stop via its context or the Stop method.
type Scheduler struct {
	reset  *DailyReset
	watch  *DutyWatchMonitor
	cal    *opcal.Calendar
	clock  clock.Clock
	logger *log.Logger

	watchHour       int
	watchMinute     int
	catchupInterval time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// SchedulerConfig holds the parameters for NewScheduler.
type SchedulerConfig struct {
	// WatchHour/WatchMinute is the local time of the nightly duty watch
	// check.  Defaults to 19:00.
	WatchHour   int
	WatchMinute int

	// CatchupInterval is how often to scan for a missed daily reset.
	// Defaults to 1 hour.
	CatchupInterval time.Duration
}

// NewScheduler creates a scheduler but does not start it.
// Call Start to begin the background loop.
func NewScheduler(reset *DailyReset, watch *DutyWatchMonitor, cal *opcal.Calendar, clk clock.Clock, cfg SchedulerConfig, logger *log.Logger) *Scheduler {
	if clk == nil {
		clk = clock.System()
	}
	if logger == nil {
		logger = log.Default()
	}
	if cfg.WatchHour == 0 && cfg.WatchMinute == 0 {
		cfg.WatchHour = 19
	}
	if cfg.CatchupInterval <= 0 {
		cfg.CatchupInterval = time.Hour
	}
	return &Scheduler{
		reset:           reset,
		watch:           watch,
		cal:             cal,
		clock:           clk,
		logger:          logger,
		watchHour:       cfg.WatchHour,
		watchMinute:     cfg.WatchMinute,
		catchupInterval: cfg.CatchupInterval,
		done:            make(chan struct{}),
	}
}

// Start begins the background loop.  It runs a missed-reset check immediately
// so a server that was down through the rollover hour catches up on boot.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	go s.loop(ctx)

	s.logger.Printf("scheduler started (rollover=%02d:00, watch check=%02d:%02d, catchup=%s)",
		s.cal.RolloverHour(), s.watchHour, s.watchMinute, s.catchupInterval)
}

// Stop signals the scheduler to exit and waits for it to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	<-s.done
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	if err := s.reset.CheckMissed(ctx); err != nil {
		s.logger.Printf("scheduler: startup reset check: %v", err)
	}

	resetTimer := time.NewTimer(s.cal.UntilRollover(s.clock.Now()))
	defer resetTimer.Stop()

	watchTimer := time.NewTimer(s.untilWatchCheck())
	defer watchTimer.Stop()

	catchup := time.NewTicker(s.catchupInterval)
	defer catchup.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-resetTimer.C:
			if _, err := s.reset.Run(ctx); err != nil {
				s.logger.Printf("scheduler: daily reset: %v", err)
			}
			resetTimer.Reset(s.cal.UntilRollover(s.clock.Now()))

		case <-watchTimer.C:
			if err := s.watch.Run(ctx); err != nil {
				s.logger.Printf("scheduler: duty watch check: %v", err)
			}
			watchTimer.Reset(s.untilWatchCheck())

		case <-catchup.C:
			if err := s.reset.CheckMissed(ctx); err != nil {
				s.logger.Printf("scheduler: reset catch-up: %v", err)
			}
		}
	}
}

func (s *Scheduler) untilWatchCheck() time.Duration {
	now := s.clock.Now()
	return s.cal.NextLocalTime(now, s.watchHour, s.watchMinute).Sub(now)
}
