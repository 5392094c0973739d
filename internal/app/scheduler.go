package app

import (
	"context"
	"errors"
	"io"
	"time"

	charmLog "github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

// SchedulerConfig sets the periodic task intervals.
type SchedulerConfig struct {
	WeatherRefresh       time.Duration
	EvaluationInterval   time.Duration
	FirstEvaluationDelay time.Duration
}

// DefaultSchedulerConfig returns the stock intervals.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		WeatherRefresh:       5 * time.Minute,
		EvaluationInterval:   3 * time.Minute,
		FirstEvaluationDelay: time.Minute,
	}
}

// Scheduler drives weather refresh and context evaluation for one session.
type Scheduler struct {
	session *Session
	cfg     SchedulerConfig
	logger  Logger
}

// NewScheduler constructs a scheduler; zero intervals take the defaults.
func NewScheduler(session *Session, cfg SchedulerConfig, logger Logger) *Scheduler {
	def := DefaultSchedulerConfig()
	if cfg.WeatherRefresh <= 0 {
		cfg.WeatherRefresh = def.WeatherRefresh
	}
	if cfg.EvaluationInterval <= 0 {
		cfg.EvaluationInterval = def.EvaluationInterval
	}
	if cfg.FirstEvaluationDelay <= 0 {
		cfg.FirstEvaluationDelay = def.FirstEvaluationDelay
	}
	if logger == nil {
		logger = charmLog.New(io.Discard)
	}
	return &Scheduler{session: session, cfg: cfg, logger: logger}
}

// Run blocks until ctx is canceled. Tick failures are logged and never stop a
// loop.
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.weatherLoop(ctx)
	})
	g.Go(func() error {
		return s.evaluationLoop(ctx)
	})
	return g.Wait()
}

func (s *Scheduler) weatherLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.WeatherRefresh)
	defer ticker.Stop()
	for {
		if _, err := s.session.RefreshWeather(ctx); err != nil && ctx.Err() == nil {
			s.logger.Warn("scheduled weather refresh failed", "err", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// evaluationLoop is armed by itinerary construction or structural changes and
// disarmed when the trip leaves the active phase or resets.
func (s *Scheduler) evaluationLoop(ctx context.Context) error {
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	arm := func(d time.Duration) {
		if timer == nil {
			timer = time.NewTimer(d)
		} else {
			timer.Reset(d)
		}
		fire = timer.C
	}
	disarm := func() {
		if timer != nil {
			timer.Stop()
		}
		fire = nil
	}
	defer disarm()

	if s.session.Snapshot().Phase == PhaseActive {
		arm(s.cfg.FirstEvaluationDelay)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case change := <-s.session.Changes():
			switch {
			case change.Kind == ChangeReset || change.Phase != PhaseActive:
				disarm()
			case change.Kind == ChangeBuilt || change.Kind == ChangeStructural:
				arm(s.cfg.FirstEvaluationDelay)
			}
		case <-fire:
			_, err := s.session.Evaluate(ctx)
			switch {
			case err == nil:
			case errors.Is(err, ErrEvaluationInProgress), errors.Is(err, ErrReplanInProgress),
				errors.Is(err, ErrTripNotActive), ctx.Err() != nil:
				s.logger.Debug("scheduled evaluation skipped", "err", err)
			default:
				s.logger.Warn("scheduled evaluation failed", "err", err)
			}
			arm(s.cfg.EvaluationInterval)
		}
	}
}
