// Package logger provides structured logging infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// Context key types for storing values in context
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"
	// TenantIDKey is the context key for the tenant (company) ID
	TenantIDKey contextKey = "tenant_id"
)

// Logger wraps slog.Logger for structured logging
type Logger struct {
	*slog.Logger
}

// New creates a new logger based on environment
func New(env string) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithContext returns a logger with context values extracted.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	newLogger := l

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		newLogger = &Logger{Logger: newLogger.With(slog.String("request_id", requestID))}
	}

	if tenantID, ok := ctx.Value(TenantIDKey).(string); ok && tenantID != "" {
		newLogger = &Logger{Logger: newLogger.With(slog.String("tenant_id", tenantID))}
	}

	return newLogger
}

// WithTenant returns a logger bound to a tenant (company) ID.
func (l *Logger) WithTenant(companyID string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("company_id", companyID)),
	}
}

// HTTPRequest logs an HTTP request
func (l *Logger) HTTPRequest(method, path string, status int, latencyMs float64, clientIP string) {
	l.Info("http_request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("latency_ms", latencyMs),
		slog.String("client_ip", clientIP),
	)
}

// ExecutionOutcome logs the result of one automation rule execution.
func (l *Logger) ExecutionOutcome(ruleID, leadID string, success bool, durationMs int64, errMsg string) {
	if success {
		l.Info("automation_execution",
			slog.String("rule_id", ruleID),
			slog.String("lead_id", leadID),
			slog.Bool("success", true),
			slog.Int64("duration_ms", durationMs),
		)
	} else {
		l.Warn("automation_execution",
			slog.String("rule_id", ruleID),
			slog.String("lead_id", leadID),
			slog.Bool("success", false),
			slog.Int64("duration_ms", durationMs),
			slog.String("error", errMsg),
		)
	}
}

// EvaluationError logs a single rule's trigger check failure. Evaluation of
// sibling rules continues; the failure is visible only here.
func (l *Logger) EvaluationError(ruleID, leadID string, err error) {
	l.Error("trigger_evaluation_error",
		slog.String("rule_id", ruleID),
		slog.String("lead_id", leadID),
		slog.String("error", err.Error()),
	)
}

// ProviderError logs a downstream messaging/notification provider failure.
func (l *Logger) ProviderError(provider, target string, err error) {
	l.Warn("provider_error",
		slog.String("provider", provider),
		slog.String("target", target),
		slog.String("error", err.Error()),
	)
}

// DatabaseError logs database errors
func (l *Logger) DatabaseError(operation string, err error) {
	l.Error("database_error",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

// RateLimitExceeded logs rate limit events
func (l *Logger) RateLimitExceeded(clientIP, path string) {
	l.Warn("rate_limit_exceeded",
		slog.String("client_ip", clientIP),
		slog.String("path", path),
	)
}
