// Package metrics exposes the bot's Prometheus instruments.
package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Proton-105/trx-referral-bot/internal/domain"
	apperrors "github.com/Proton-105/trx-referral-bot/internal/errors"
	"github.com/Proton-105/trx-referral-bot/internal/state"
)

// namespace prefixes every metric exported by the bot.
const namespace = "referral_bot"

var (
	botCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Handled updates by action and outcome",
		},
		[]string{"action", "status"},
	)
	commandDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Handler latency by action",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"action"},
	)
	stateTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Total number of withdrawal state transitions",
		},
		[]string{"from", "to"},
	)
	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Handled errors by code and severity",
		},
		[]string{"code", "severity"},
	)
	registrationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_registrations_total",
			Help:      "Registered users, labeled by whether an inviter was credited",
		},
		[]string{"invited"},
	)
	giftsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_gifts_total",
			Help:      "Manual credits performed by administrators",
		},
	)
	withdrawalRequestsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_withdrawal_requests_total",
			Help:      "Submitted withdrawal requests",
		},
	)
	withdrawalResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_withdrawal_resolutions_total",
			Help:      "Reviewed withdrawal requests by outcome",
		},
		[]string{"status"},
	)
	notificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Best-effort notifications by delivery outcome",
		},
		[]string{"status"},
	)
	ledgerUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ledger_users",
			Help:      "Current number of registered users",
		},
	)
	ledgerPendingWithdrawals = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ledger_pending_withdrawals",
			Help:      "Withdrawal requests awaiting review",
		},
	)
	ledgerPendingAmount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ledger_pending_amount",
			Help:      "Sum of pending withdrawal amounts",
		},
	)
	rateLimitChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ratelimit_checks_total",
			Help:      "Rate limit checks by backend and result",
		},
		[]string{"backend", "result"},
	)
	circuitState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state per dependency: 0 closed, 1 open, 2 half-open",
		},
		[]string{"dependency"},
	)
	usersByState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "users_by_state",
			Help:      "Number of users per withdrawal state",
		},
		[]string{"state"},
	)
)

func init() {
	state.RegisterTransitionRecorder(RecordStateTransition)
	apperrors.RegisterErrorCounter(RecordError)
}

func orUnknown(label string) string {
	if label == "" {
		return "unknown"
	}
	return label
}

// RecordCommand counts one handled update and observes its latency.
func RecordCommand(command, status string, duration time.Duration) {
	command = orUnknown(command)
	botCommandsTotal.WithLabelValues(command, orUnknown(status)).Inc()
	commandDurationSeconds.WithLabelValues(command).Observe(duration.Seconds())
}

func RecordStateTransition(from, to string) {
	stateTransitionsTotal.WithLabelValues(orUnknown(from), orUnknown(to)).Inc()
}

// RecordError counts an error by its code and severity.
func RecordError(code, severity string) {
	errorsTotal.WithLabelValues(orUnknown(code), orUnknown(severity)).Inc()
}

func RecordRegistration(invited bool) {
	label := "false"
	if invited {
		label = "true"
	}
	registrationsTotal.WithLabelValues(label).Inc()
}

func RecordGift() {
	giftsTotal.Inc()
}

func RecordWithdrawalRequest() {
	withdrawalRequestsTotal.Inc()
}

func RecordWithdrawalResolution(status domain.WithdrawalStatus) {
	withdrawalResolutionsTotal.WithLabelValues(string(status)).Inc()
}

// RecordNotification counts notification outcomes: sent, queued or failed.
func RecordNotification(status string) {
	notificationsTotal.WithLabelValues(status).Inc()
}

// RecordRateLimitCheck counts a limiter decision; backend is redis or memory.
func RecordRateLimitCheck(backend string, allowed bool) {
	result := "rejected"
	if allowed {
		result = "allowed"
	}
	rateLimitChecksTotal.WithLabelValues(backend, result).Inc()
}

// SetCircuitState publishes the state of the breaker guarding dependency.
func SetCircuitState(dependency string, state apperrors.State) {
	circuitState.WithLabelValues(dependency).Set(float64(state))
}

func SetUsersByState(state string, count int) {
	usersByState.WithLabelValues(orUnknown(state)).Set(float64(count))
}

// LedgerSource provides the figures behind the ledger gauges.
type LedgerSource interface {
	AggregateStats(ctx context.Context) (*domain.Stats, error)
	CountByState(ctx context.Context) (map[state.State]int, error)
}

// LedgerCollector gathers ledger totals and FSM state counts and emits gauge metrics.
type LedgerCollector struct {
	source LedgerSource
	log    *slog.Logger
}

// NewLedgerCollector builds a metrics collector bound to the provided source.
func NewLedgerCollector(source LedgerSource, log *slog.Logger) *LedgerCollector {
	if log == nil {
		log = slog.Default()
	}
	return &LedgerCollector{source: source, log: log}
}

// Run refreshes the gauges every interval until ctx is cancelled.
// Used when the background job queue is disabled.
func (c *LedgerCollector) Run(ctx context.Context, interval time.Duration) {
	if c == nil || c.source == nil {
		return
	}

	for {
		if err := c.Collect(ctx); err != nil {
			c.log.Warn("ledger gauges refresh failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

// Collect refreshes every ledger gauge once.
func (c *LedgerCollector) Collect(ctx context.Context) error {
	stats, err := c.source.AggregateStats(ctx)
	if err != nil {
		return err
	}

	ledgerUsers.Set(float64(stats.Users))
	ledgerPendingWithdrawals.Set(float64(stats.PendingCount))
	ledgerPendingAmount.Set(stats.PendingAmount.InexactFloat64())

	counts, err := c.source.CountByState(ctx)
	if err != nil {
		return err
	}

	usersByState.Reset()
	for _, tracked := range state.Known {
		SetUsersByState(string(tracked), counts[tracked])
		delete(counts, tracked)
	}
	for st, count := range counts {
		SetUsersByState(string(st), count)
	}

	return nil
}
