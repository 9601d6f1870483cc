package handlers

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
)

// Collector refreshes metric gauges.
type Collector interface {
	Collect(ctx context.Context) error
}

type LedgerGaugesHandler struct {
	collector Collector
	log       *slog.Logger
}

func NewLedgerGaugesHandler(collector Collector, log *slog.Logger) *LedgerGaugesHandler {
	return &LedgerGaugesHandler{collector: collector, log: log}
}

func (h *LedgerGaugesHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	if err := h.collector.Collect(ctx); err != nil {
		if h.log != nil {
			h.log.WarnContext(ctx, "ledger gauges: refresh failed", slog.String("task_type", t.Type()), slog.String("error", err.Error()))
		}
		return err
	}

	return nil
}
