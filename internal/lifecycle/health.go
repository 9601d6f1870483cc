package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Proton-105/trx-referral-bot/internal/health"
)

// HealthChecker exposes liveness and readiness probes.
type HealthChecker interface {
	Liveness(ctx context.Context) error
	Readiness(ctx context.Context) error
}

// Probes answers liveness from the process itself and readiness from the component checks.
type Probes struct {
	checker *health.Checker
	log     *slog.Logger
}

var _ HealthChecker = (*Probes)(nil)

// NewProbes creates a new Probes instance.
func NewProbes(checker *health.Checker, log *slog.Logger) *Probes {
	if log == nil {
		log = slog.Default()
	}
	return &Probes{checker: checker, log: log}
}

// Liveness reports success while the process can serve requests.
func (p *Probes) Liveness(context.Context) error {
	return nil
}

// Readiness fails when any backing service is unreachable.
func (p *Probes) Readiness(ctx context.Context) error {
	_, err := p.readiness(ctx)
	return err
}

func (p *Probes) readiness(ctx context.Context) (map[string]string, error) {
	if p.checker == nil {
		return map[string]string{}, nil
	}

	results := p.checker.Check(ctx)
	if health.Healthy(results) {
		return results, nil
	}

	failed := make([]string, 0, len(results))
	for _, name := range p.checker.Names() {
		if status, ok := results[name]; ok && status != health.StatusOK {
			failed = append(failed, fmt.Sprintf("%s: %s", name, status))
		}
	}
	return results, errors.New(strings.Join(failed, "; "))
}

// LivenessHandler serves /healthz.
func (p *Probes) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// ReadinessHandler serves /readyz with per-component statuses.
func (p *Probes) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		results, err := p.readiness(r.Context())

		status := http.StatusOK
		body := map[string]interface{}{"status": "ready", "checks": results}
		if err != nil {
			p.log.Warn("readiness probe failed", slog.Any("error", err))
			status = http.StatusServiceUnavailable
			body["status"] = "not ready"
		}
		writeJSON(w, status, body)
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
