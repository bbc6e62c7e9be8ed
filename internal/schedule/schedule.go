// Package schedule wraps robfig/cron with timezone-aware daily triggers.
// Jobs run on a single worker so two triggers never interleave inside the
// process; idempotence across reruns stays with the broadcast log.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"adventbot/internal/config"
	logx "adventbot/pkg/logx"
)

type job struct {
	name string
	run  func(ctx context.Context) error
}

type Service struct {
	mu sync.Mutex

	log logx.Logger
	loc *time.Location

	parser cron.Parser
	c      *cron.Cron

	queue  chan job
	stopCh chan struct{}
}

func New(loc *time.Location, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		log:    log,
		loc:    loc,
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh != nil {
		return
	}
	s.stopCh = make(chan struct{})
	s.queue = make(chan job, 16)
	s.c = cron.New(cron.WithParser(s.parser), cron.WithLocation(s.loc))

	go s.worker(ctx)
	s.c.Start()
	s.log.Info("scheduler started", logx.String("tz", s.loc.String()))
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh == nil {
		return
	}
	close(s.stopCh)
	s.stopCh = nil
	if s.c != nil {
		stopCtx := s.c.Stop()
		select {
		case <-stopCtx.Done():
		case <-ctx.Done():
		}
		s.c = nil
	}
	s.log.Info("scheduler stopped")
}

// AddDaily registers a job firing every day at the given local HH:MM.
func (s *Service) AddDaily(name, atHHMM string, run func(ctx context.Context) error) error {
	spec, err := DailySpec(atHHMM)
	if err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c == nil {
		return errors.New("scheduler not started")
	}
	_, err = s.c.AddFunc(spec, func() {
		select {
		case s.queue <- job{name: name, run: run}:
		default:
			s.log.Warn("scheduler queue full, dropping trigger", logx.String("job", name))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	s.log.Info("daily job registered", logx.String("job", name), logx.String("at", atHHMM))
	return nil
}

// DailySpec converts a local HH:MM time into a cron spec.
func DailySpec(atHHMM string) (string, error) {
	h, m, err := config.ParseHHMM(atHHMM)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d %d * * *", m, h), nil
}

func (s *Service) worker(ctx context.Context) {
	s.mu.Lock()
	stopCh := s.stopCh
	queue := s.queue
	s.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case j := <-queue:
			start := time.Now()
			err := j.run(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				s.log.Warn("job failed", logx.String("job", j.name), logx.Duration("took", time.Since(start)), logx.Err(err))
			} else {
				s.log.Info("job done", logx.String("job", j.name), logx.Duration("took", time.Since(start)))
			}
		}
	}
}
