package errors

import (
	"context"
	"errors"
	"log/slog"

	"github.com/getsentry/sentry-go"

	"github.com/Proton-105/trx-referral-bot/pkg/logger"
)

// GenericMessage is the catalog key used when an error carries no user message.
const GenericMessage = "error.generic"

const unknownCode = "unknown"

// Handler logs errors, reports severe ones to Sentry and picks the message shown to the user.
type Handler struct {
	log           *slog.Logger
	sentryEnabled bool
}

func NewHandler(log *slog.Logger, sentryEnabled bool) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{log: log, sentryEnabled: sentryEnabled}
}

// Handle returns the i18n key of the user-facing message and whether the operation may be retried.
func (h *Handler) Handle(ctx context.Context, err error) (string, bool) {
	if err == nil {
		return "", false
	}
	if ctx == nil {
		ctx = context.Background()
	}

	appErr := classify(err)

	attrs := []any{
		slog.String("code", appErr.Code),
		slog.String("severity", string(appErr.Severity)),
		slog.Bool("retryable", appErr.Retryable),
		slog.String("error", err.Error()),
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		attrs = append(attrs, slog.String("correlation_id", id))
	}
	h.log.Log(ctx, levelFor(appErr.Severity), "request failed", attrs...)
	errorCounter(appErr.Code, string(appErr.Severity))

	if h.sentryEnabled && severe(appErr.Severity) {
		report(err, appErr)
	}

	if appErr.UserMessage == "" {
		return GenericMessage, appErr.Retryable
	}
	return appErr.UserMessage, appErr.Retryable
}

// classify returns the AppError in err's chain, or an unknown high-severity one.
func classify(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr != nil {
		return appErr
	}
	return &AppError{Code: unknownCode, Message: err.Error(), Severity: SeverityHigh, cause: err}
}

func severe(s Severity) bool {
	return s == SeverityHigh || s == SeverityCritical
}

func levelFor(s Severity) slog.Level {
	switch s {
	case SeverityLow:
		return slog.LevelInfo
	case SeverityMedium:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

var errorCounter = func(code, severity string) {}

// RegisterErrorCounter lets the metrics package count handled errors.
func RegisterErrorCounter(fn func(code, severity string)) {
	if fn == nil {
		errorCounter = func(string, string) {}
		return
	}
	errorCounter = fn
}

func report(err error, appErr *AppError) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("code", appErr.Code)
		scope.SetTag("severity", string(appErr.Severity))
		scope.SetLevel(sentryLevel(appErr.Severity))
		sentry.CaptureException(err)
	})
}

func sentryLevel(s Severity) sentry.Level {
	if s == SeverityCritical {
		return sentry.LevelFatal
	}
	return sentry.LevelError
}
