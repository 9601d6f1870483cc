package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	telebot "gopkg.in/telebot.v3"

	apperrors "github.com/Proton-105/trx-referral-bot/internal/errors"
	"github.com/Proton-105/trx-referral-bot/pkg/metrics"
)

// Worker provides APIs to register handlers and control the background worker lifecycle.
type Worker interface {
	RegisterHandler(taskType string, handler asynq.Handler)
	Start() error
	Shutdown()
}

type worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	log    *slog.Logger
}

var _ Worker = (*worker)(nil)

// NewWorker constructs a Worker backed by an asynq.Server instance.
func NewWorker(redisOpt asynq.RedisConnOpt, queues map[string]int, concurrency int, log *slog.Logger) Worker {
	if concurrency <= 0 {
		concurrency = 5
	}
	if log == nil {
		log = slog.Default()
	}

	server := asynq.NewServer(redisOpt, asynq.Config{
		Queues:          queues,
		Concurrency:     concurrency,
		RetryDelayFunc:  RetryDelay,
		ShutdownTimeout: 8 * time.Second,
		Logger:          newAsynqLogger(log),
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			log.WarnContext(ctx, "jobs worker: task failed",
				slog.String("task_type", task.Type()),
				slog.Int("retried", retried),
				slog.Int("max_retry", maxRetry),
				slog.Any("error", err),
			)
			metrics.RecordError("job:"+task.Type(), "medium")
		}),
	})

	return &worker{
		server: server,
		mux:    asynq.NewServeMux(),
		log:    log,
	}
}

// RetryDelay waits as long as Telegram asks on flood errors and for the breaker cooldown while
// the Bot API circuit is open. Other failures use asynq's exponential backoff.
func RetryDelay(n int, err error, task *asynq.Task) time.Duration {
	if wait := floodWait(err); wait > 0 {
		return wait
	}
	if errors.Is(err, apperrors.ErrCircuitOpen) {
		return apperrors.DefaultBreakerSettings.Cooldown
	}
	return asynq.DefaultRetryDelayFunc(n, err, task)
}

func floodWait(err error) time.Duration {
	var flood telebot.FloodError
	if errors.As(err, &flood) {
		return time.Duration(flood.RetryAfter) * time.Second
	}
	var floodPtr *telebot.FloodError
	if errors.As(err, &floodPtr) && floodPtr != nil {
		return time.Duration(floodPtr.RetryAfter) * time.Second
	}
	return 0
}

// RegisterHandler wires a task type to the provided handler.
func (w *worker) RegisterHandler(taskType string, handler asynq.Handler) {
	w.mux.Handle(taskType, handler)
}

// Start begins processing in background goroutines; it returns once the server is running.
func (w *worker) Start() error {
	w.log.Info("jobs worker: starting")
	return w.server.Start(w.mux)
}

// Shutdown waits for in-flight tasks and stops the worker.
func (w *worker) Shutdown() {
	w.log.Info("jobs worker: shutting down")
	w.server.Shutdown()
}
