// Package scheduler fires the report-and-email job on a fixed interval or on
// one or more cron expressions.
//
// Interval mode deliberately drifts: the next run is armed only after the job
// returns, so intervals are measured from completion, not from a fixed epoch,
// and runs never overlap. Cron mode registers each valid expression as an
// independent trigger; two expressions firing at the same minute both run the
// job (known limitation, kept from the original system).
package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"vtreporter/internal/config"
	"vtreporter/internal/storage"
	logx "vtreporter/pkg/logx"
)

const historySize = 50

// ErrNoValidExpressions means cron mode was configured but every expression
// failed to parse. The service stays up and idle; the caller decides how loud
// to be about it.
var ErrNoValidExpressions = errors.New("no valid cron expressions")

// RunInfo is what a successful job reports back for the run record.
type RunInfo struct {
	RowsShown  int
	Matched    int
	Recipients int
}

// Job builds and sends one report. Failures are logged and recorded; they
// never stop the schedule.
type Job func(ctx context.Context) (RunInfo, error)

type Service struct {
	mu sync.Mutex

	log   logx.Logger
	cfg   config.ScheduleConfig
	job   Job
	runs  storage.Store // may be nil
	clock func() time.Time

	parser cron.Parser
	c      *cron.Cron
	exprs  []string // valid, registered expressions

	timer  *time.Timer
	stopCh chan struct{}

	hmu     sync.Mutex
	history []storage.RunEntry
}

func New(cfg config.ScheduleConfig, job Job, runs storage.Store, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		log:    log,
		cfg:    cfg,
		job:    job,
		runs:   runs,
		clock:  time.Now,
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
	}
}

// Mode returns the configured dispatch mode.
func (s *Service) Mode() string { return s.cfg.Mode }

// Schedule returns the configuration the service was started with.
func (s *Service) Schedule() config.ScheduleConfig { return s.cfg }

// Upcoming returns the approximate same-day preview for cron mode.
func (s *Service) Upcoming(max int) []time.Time {
	return UpcomingToday(s.Expressions(), s.clock(), max)
}

// Expressions returns the cron expressions that validated and registered.
func (s *Service) Expressions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.exprs...)
}

func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh != nil {
		return nil
	}
	s.stopCh = make(chan struct{})

	if s.cfg.Mode == config.ModeCron {
		return s.startCronLocked(ctx)
	}
	s.armIntervalLocked(ctx)
	return nil
}

func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh == nil {
		return
	}
	close(s.stopCh)
	s.stopCh = nil

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.c != nil {
		<-s.c.Stop().Done()
		s.c = nil
	}
	s.log.Info("scheduler stopped")
}

// ---- interval mode ----

func (s *Service) intervalDelay() time.Duration {
	value := time.Duration(s.cfg.Value)
	switch s.cfg.Unit {
	case config.UnitMinutes:
		return value * time.Minute
	case config.UnitHours:
		return value * time.Hour
	case config.UnitDaily:
		return value * 24 * time.Hour
	default:
		s.log.Warn("unknown interval unit, using 5 minutes", logx.String("unit", s.cfg.Unit))
		return 5 * time.Minute
	}
}

// armIntervalLocked schedules the next run relative to now. It is called at
// start and again after every job completion, which is what makes the
// schedule drift with job duration.
func (s *Service) armIntervalLocked(ctx context.Context) {
	delay := s.intervalDelay()
	next := s.clock().Add(delay)
	s.log.Info("next run scheduled",
		logx.Int("value", s.cfg.Value),
		logx.String("unit", s.cfg.Unit),
		logx.Time("at", next),
	)

	stopCh := s.stopCh
	s.timer = time.AfterFunc(delay, func() {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		s.runJob(ctx, "interval")

		s.mu.Lock()
		if s.stopCh == stopCh { // not stopped/restarted meanwhile
			s.armIntervalLocked(ctx)
		}
		s.mu.Unlock()
	})
}

// ---- cron mode ----

func (s *Service) startCronLocked(ctx context.Context) error {
	s.c = cron.New(cron.WithParser(s.parser))
	s.exprs = nil

	for _, raw := range strings.Split(s.cfg.CronExpression, ";") {
		expr := strings.TrimSpace(raw)
		if expr == "" {
			continue
		}
		if _, err := s.parser.Parse(expr); err != nil {
			s.log.Warn("invalid cron expression skipped",
				logx.String("expr", expr),
				logx.Err(err),
			)
			continue
		}
		_, err := s.c.AddFunc(expr, func() { s.runJob(ctx, "cron") })
		if err != nil {
			s.log.Warn("cron registration failed", logx.String("expr", expr), logx.Err(err))
			continue
		}
		s.exprs = append(s.exprs, expr)
		s.log.Info("cron expression scheduled", logx.String("expr", expr))
	}

	s.c.Start()
	if len(s.exprs) == 0 {
		return ErrNoValidExpressions
	}
	s.logUpcoming()
	return nil
}

// logUpcoming logs the approximate same-day preview. Diagnostic only: the
// literal parser behind it ignores day/month/step constraints the real cron
// engine honors, so it must never drive scheduling decisions.
func (s *Service) logUpcoming() {
	runs := UpcomingToday(s.exprs, s.clock(), 10)
	if len(runs) == 0 {
		s.log.Info("no more runs scheduled for today",
			logx.Int("expressions", len(s.exprs)),
		)
		return
	}
	formatted := make([]string, len(runs))
	for i, r := range runs {
		formatted[i] = r.Format("15:04")
	}
	s.log.Info("upcoming runs today (approximate)",
		logx.String("times", strings.Join(formatted, " | ")),
		logx.Int("expressions", len(s.exprs)),
	)
}

// ---- job execution ----

func (s *Service) runJob(ctx context.Context, trigger string) {
	start := s.clock()
	info, err := s.job(ctx)

	entry := storage.RunEntry{
		At:         start,
		Trigger:    trigger,
		OK:         err == nil,
		TookMS:     s.clock().Sub(start).Milliseconds(),
		RowsShown:  info.RowsShown,
		Matched:    info.Matched,
		Recipients: info.Recipients,
	}
	if err != nil {
		entry.Error = err.Error()
		s.log.Error("report job failed", logx.String("trigger", trigger), logx.Err(err))
	} else {
		s.log.Info("report sent",
			logx.String("trigger", trigger),
			logx.Int("rows", info.RowsShown),
			logx.Int64("took_ms", entry.TookMS),
		)
	}

	s.recordRun(ctx, entry)

	if s.cfg.Mode == config.ModeCron {
		s.logUpcoming()
	}
}

func (s *Service) recordRun(ctx context.Context, e storage.RunEntry) {
	s.hmu.Lock()
	s.history = append(s.history, e)
	if len(s.history) > historySize {
		s.history = s.history[len(s.history)-historySize:]
	}
	s.hmu.Unlock()

	if s.runs == nil {
		return
	}
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.runs.AppendRun(wctx, e); err != nil {
		s.log.Warn("run history append failed", logx.Err(err))
	}
}

// RecentRuns returns run outcomes, newest first. It prefers the persistent
// store and falls back to the in-memory ring.
func (s *Service) RecentRuns(ctx context.Context, n int) []storage.RunEntry {
	if n <= 0 {
		n = historySize
	}
	if s.runs != nil {
		if runs, err := s.runs.RecentRuns(ctx, n); err == nil {
			return runs
		}
	}

	s.hmu.Lock()
	defer s.hmu.Unlock()
	out := make([]storage.RunEntry, 0, min(n, len(s.history)))
	for i := len(s.history) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.history[i])
	}
	return out
}
