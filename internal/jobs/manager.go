package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/Proton-105/trx-referral-bot/internal/notify"
	"github.com/Proton-105/trx-referral-bot/pkg/config"
)

// Manager describes the minimal queue operations needed by the application.
type Manager interface {
	Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	// Deliver queues a notification so that Telegram hiccups are retried off the update path.
	Deliver(ctx context.Context, msg notify.Message) error
	Close() error
}

type manager struct {
	client   *asynq.Client
	maxRetry int
	log      *slog.Logger
}

var _ notify.Sender = (*manager)(nil)

// RedisOpt converts the shared Redis settings into asynq connection options.
func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

// NewManager builds a Manager backed by an asynq client.
func NewManager(redisOpt asynq.RedisConnOpt, maxRetry int, log *slog.Logger) Manager {
	client := asynq.NewClient(redisOpt)

	return &manager{
		client:   client,
		maxRetry: maxRetry,
		log:      log,
	}
}

func (m *manager) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	return m.client.EnqueueContext(ctx, task, opts...)
}

func (m *manager) Deliver(ctx context.Context, msg notify.Message) error {
	task, err := NewNotifyTask(msg, m.maxRetry)
	if err != nil {
		return fmt.Errorf("build notify task: %w", err)
	}

	info, err := m.Enqueue(ctx, task)
	if err != nil {
		return fmt.Errorf("enqueue notify task: %w", err)
	}

	if m.log != nil {
		m.log.DebugContext(ctx, "notification queued", slog.String("task_id", info.ID), slog.String("key", msg.Key))
	}
	return nil
}

func (m *manager) Close() error {
	return m.client.Close()
}
