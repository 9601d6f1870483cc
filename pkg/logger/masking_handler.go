package logger

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
)

const maskedValue = "***"

// secretKeys are masked entirely.
var secretKeys = []string{
	"password",
	"token",
	"secret",
	"dsn",
	"database_url",
	"authorization",
}

// walletKeys keep their first and last characters so that operators can still match a request.
var walletKeys = []string{"wallet", "address"}

// botTokenPattern finds Bot API tokens embedded in other values, such as request URLs in errors.
var botTokenPattern = regexp.MustCompile(`\d{5,}:[A-Za-z0-9_-]{30,}`)

// MaskingHandler wraps a slog.Handler and masks credentials and wallet addresses,
// including ones nested in groups.
type MaskingHandler struct {
	next slog.Handler
}

// NewMaskingHandler creates a handler that masks sensitive fields before passing records downstream.
func NewMaskingHandler(next slog.Handler) *MaskingHandler {
	return &MaskingHandler{next: next}
}

func (h *MaskingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *MaskingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	masked := make([]slog.Attr, len(attrs))
	for i, attr := range attrs {
		masked[i] = maskAttr(attr)
	}
	return &MaskingHandler{next: h.next.WithAttrs(masked)}
}

func (h *MaskingHandler) WithGroup(name string) slog.Handler {
	return &MaskingHandler{next: h.next.WithGroup(name)}
}

func (h *MaskingHandler) Handle(ctx context.Context, record slog.Record) error {
	masked := slog.NewRecord(record.Time, record.Level, botTokenPattern.ReplaceAllString(record.Message, maskedValue), record.PC)

	record.Attrs(func(attr slog.Attr) bool {
		masked.AddAttrs(maskAttr(attr))
		return true
	})

	return h.next.Handle(ctx, masked)
}

func maskAttr(attr slog.Attr) slog.Attr {
	attr.Value = attr.Value.Resolve()

	switch {
	case keyMatches(attr.Key, secretKeys):
		return slog.String(attr.Key, maskedValue)
	case keyMatches(attr.Key, walletKeys) && attr.Value.Kind() == slog.KindString:
		return slog.String(attr.Key, maskWallet(attr.Value.String()))
	}

	switch attr.Value.Kind() {
	case slog.KindGroup:
		group := attr.Value.Group()
		masked := make([]any, 0, len(group))
		for _, child := range group {
			masked = append(masked, maskAttr(child))
		}
		return slog.Group(attr.Key, masked...)
	case slog.KindString:
		return slog.String(attr.Key, botTokenPattern.ReplaceAllString(attr.Value.String(), maskedValue))
	case slog.KindAny:
		if err, ok := attr.Value.Any().(error); ok && err != nil {
			return slog.String(attr.Key, botTokenPattern.ReplaceAllString(err.Error(), maskedValue))
		}
	}

	return attr
}

func maskWallet(wallet string) string {
	if len(wallet) <= 10 {
		return maskedValue
	}
	return wallet[:4] + "..." + wallet[len(wallet)-4:]
}

func keyMatches(key string, candidates []string) bool {
	lower := strings.ToLower(key)
	for _, candidate := range candidates {
		if strings.Contains(lower, candidate) {
			return true
		}
	}
	return false
}
