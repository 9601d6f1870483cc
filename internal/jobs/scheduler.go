package jobs

import (
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/Proton-105/trx-referral-bot/pkg/config"
)

// Scheduler enqueues periodic tasks.
type Scheduler interface {
	RegisterTasks() error
	Start() error
	Shutdown()
}

type scheduler struct {
	asynqScheduler *asynq.Scheduler
	gaugesCron     string
	log            *slog.Logger
}

// NewScheduler builds the periodic enqueuer; cfg.GaugesCron accepts cron specs and "@every" intervals.
func NewScheduler(redisOpt asynq.RedisConnOpt, cfg config.JobsConfig, log *slog.Logger) Scheduler {
	if log == nil {
		log = slog.Default()
	}
	gaugesCron := cfg.GaugesCron
	if gaugesCron == "" {
		gaugesCron = "@every 1m"
	}

	opts := &asynq.SchedulerOpts{
		Logger:   newAsynqLogger(log),
		Location: time.UTC,
		PostEnqueueFunc: func(info *asynq.TaskInfo, err error) {
			if err != nil {
				log.Warn("scheduler: enqueue failed", slog.Any("error", err))
			}
		},
	}

	return &scheduler{
		asynqScheduler: asynq.NewScheduler(redisOpt, opts),
		gaugesCron:     gaugesCron,
		log:            log,
	}
}

// RegisterTasks schedules the ledger gauge refresh. Only one refresh is kept queued at a time.
func (s *scheduler) RegisterTasks() error {
	entryID, err := s.asynqScheduler.Register(s.gaugesCron, NewLedgerGaugesTask(), asynq.Unique(time.Minute))
	if err != nil {
		return err
	}

	s.log.Info("scheduler: ledger gauges registered", slog.String("cron", s.gaugesCron), slog.String("entry_id", entryID))
	return nil
}

func (s *scheduler) Start() error {
	s.log.Info("scheduler: starting")
	return s.asynqScheduler.Start()
}

func (s *scheduler) Shutdown() {
	s.log.Info("scheduler: shutting down")
	s.asynqScheduler.Shutdown()
}
