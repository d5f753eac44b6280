package scheduler

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/i474232898/openweather-collector/internal/common"
	"github.com/i474232898/openweather-collector/internal/common/logger"
	"github.com/i474232898/openweather-collector/internal/metrics"
	"github.com/i474232898/openweather-collector/internal/weather"
)

var errInvalidInterval = errors.New("scheduler: activity interval must be positive")

// ActivityRunner performs one activity run.
type ActivityRunner interface {
	RunActivity(ctx context.Context) (weather.Snapshot, error)
}

// BackoffConfig controls exponential backoff between retries of a failed run.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Delay returns the wait before retry number attempt (zero-based).
func (b BackoffConfig) Delay(attempt int) time.Duration {
	delay := b.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
	if delay > b.MaxInterval && b.MaxInterval > 0 {
		delay = b.MaxInterval
	}
	return delay
}

// Options configure a Scheduler.
type Options struct {
	Provider string
	Activity weather.Activity
	Backoff  BackoffConfig
	// RunTimeout bounds one run including its retries.
	RunTimeout time.Duration
	// Location is the time zone of the activity window. Defaults to time.Local.
	Location *time.Location
}

// Scheduler triggers activity runs at a fixed interval inside the daily
// activity window and retries runs that failed with a transport error.
type Scheduler struct {
	scheduler *gocron.Scheduler
	runner    ActivityRunner
	opts      Options
	log       *zap.Logger
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Scheduler.
func New(runner ActivityRunner, opts Options, log *zap.Logger) *Scheduler {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = 2 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())

	s := gocron.NewScheduler(opts.Location)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		runner:    runner,
		opts:      opts,
		log:       logger.OrNop(log).With(zap.String("provider", opts.Provider)),
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
// The first run is attempted immediately.
func (s *Scheduler) Start() error {
	if s.opts.Activity.Interval <= 0 {
		return errInvalidInterval
	}

	_, err := s.scheduler.Every(s.opts.Activity.Interval).Do(s.tick)
	if err != nil {
		return err
	}

	s.log.Info("scheduler started", zap.String("activity", s.opts.Activity.String()))
	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler, cancels a run in progress and waits for it to return.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) tick() {
	s.wg.Add(1)
	defer s.wg.Done()

	now := s.now().In(s.opts.Location)
	if !s.opts.Activity.Active(now) {
		s.log.Debug("outside activity window, skipping run", zap.Time("now", now))
		metrics.ActivityRuns.WithLabelValues(s.opts.Provider, "skipped").Inc()
		return
	}

	ctx, cancel := context.WithTimeout(s.ctx, s.opts.RunTimeout)
	defer cancel()

	if _, err := s.Run(ctx); err != nil {
		metrics.ActivityRuns.WithLabelValues(s.opts.Provider, "failure").Inc()
		return
	}
	metrics.ActivityRuns.WithLabelValues(s.opts.Provider, "success").Inc()
}

// Run performs one activity run, retrying transport failures with
// exponential backoff. Other errors are returned at once.
func (s *Scheduler) Run(ctx context.Context) (weather.Snapshot, error) {
	log := s.log.With(zap.String("run", uuid.NewString()))

	for attempt := 0; ; attempt++ {
		snap, err := s.runner.RunActivity(ctx)
		if err == nil {
			log.Debug("run succeeded", zap.Int("attempt", attempt+1), zap.String("snapshot", snap.ID))
			return snap, nil
		}

		if !common.Retryable(err) || attempt >= s.opts.Backoff.MaxRetries {
			log.Error("run failed", zap.Int("attempt", attempt+1), zap.Error(err))
			return weather.Snapshot{}, err
		}

		delay := s.opts.Backoff.Delay(attempt)
		log.Warn("run failed, retrying", zap.Int("attempt", attempt+1), zap.Duration("delay", delay), zap.Error(err))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return weather.Snapshot{}, errors.Join(common.ErrInterrupted, ctx.Err())
		case <-timer.C:
		}
	}
}
