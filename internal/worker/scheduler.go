package worker

// scheduler.go
// Periodic jobs on robfig/cron: the change-bus refresh tick and the
// notification e-mail retry sweep.

import (
	"context"
	"time"

	"github.com/ali090-acme/TOVE-Leads-sub001/internal/changebus"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/repository"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

const retryBatchSize = 20

// Scheduler wraps a cron instance with the service's periodic jobs.
type Scheduler struct {
	cron *cron.Cron
}

func NewScheduler() *Scheduler {
	return &Scheduler{cron: cron.New(cron.WithChain(cron.Recover(cronLogger{})))}
}

// AddRefresh publishes the generic refresh topic on spec (e.g. "@every 3s").
func (s *Scheduler) AddRefresh(spec string, bus changebus.Publisher) error {
	_, err := s.cron.AddFunc(spec, func() {
		bus.Publish(changebus.TopicRefresh, "", "tick")
	})
	return err
}

// AddEmailRetry re-attempts failed notification e-mails whose next_retry_at
// has passed. Skips the sweep while the mailer breaker is open.
func (s *Scheduler) AddEmailRetry(ctx context.Context, spec string, repo repository.NotificationRepository, w *EmailWorker, breakerOpen func() bool) error {
	_, err := s.cron.AddFunc(spec, func() {
		if breakerOpen != nil && breakerOpen() {
			log.Debug().Msg("scheduler: mail circuit breaker is open, skipping retry sweep")
			return
		}
		due, err := repo.ListDueForRetry(ctx, time.Now(), retryBatchSize)
		if err != nil {
			log.Error().Err(err).Msg("scheduler: failed to query pending e-mail retries")
			return
		}
		for i := range due {
			if breakerOpen != nil && breakerOpen() {
				return
			}
			_ = w.Deliver(ctx, &due[i])
		}
		if len(due) > 0 {
			log.Info().Int("count", len(due)).Msg("scheduler: e-mail retry sweep done")
		}
	})
	return err
}

func (s *Scheduler) Start() {
	s.cron.Start()
	log.Info().Int("jobs", len(s.cron.Entries())).Msg("scheduler: started")
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Info().Msg("scheduler: stopped")
}

// cronLogger adapts zerolog to cron.Logger for the Recover wrapper.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
