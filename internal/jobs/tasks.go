// Package jobs runs background work on asynq: queued notification delivery and
// the scheduled refresh of ledger gauges.
package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/Proton-105/trx-referral-bot/internal/notify"
)

const (
	TaskTypeNotify       = "notify:send"
	TaskTypeLedgerGauges = "ledger:gauges"
)

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// Queues is the weighted queue set the worker consumes.
var Queues = map[string]int{
	QueueCritical: 6,
	QueueDefault:  3,
	QueueLow:      1,
}

func NewNotifyTask(msg notify.Message, maxRetry int) (*asynq.Task, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(TaskTypeNotify, payload, asynq.Queue(QueueDefault), asynq.MaxRetry(maxRetry)), nil
}

// DecodeNotifyTask restores the message carried by a notify task.
func DecodeNotifyTask(t *asynq.Task) (notify.Message, error) {
	var msg notify.Message
	if err := json.Unmarshal(t.Payload(), &msg); err != nil {
		return notify.Message{}, fmt.Errorf("decode %s payload: %w", t.Type(), err)
	}
	return msg, nil
}

func NewLedgerGaugesTask() *asynq.Task {
	return asynq.NewTask(TaskTypeLedgerGauges, nil, asynq.Queue(QueueLow), asynq.MaxRetry(0))
}
