package logger

import (
	"context"
	"log/slog"
)

type contextKey string

const (
	requestIDKey   contextKey = "request_id"
	userIDKey      contextKey = "user_id"
	paymentIDKey   contextKey = "payment_id"
	transactionKey contextKey = "gateway_transaction_id"
)

// WithRequestID добавляет request ID в context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// WithUserID добавляет user ID в context
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// WithPayment помечает context платежом, чтобы все логи пайплайна
// колбэка и расчётов можно было связать между собой.
func WithPayment(ctx context.Context, paymentID uint, transactionID string) context.Context {
	ctx = context.WithValue(ctx, paymentIDKey, paymentID)
	if transactionID != "" {
		ctx = context.WithValue(ctx, transactionKey, transactionID)
	}
	return ctx
}

func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		return requestID
	}
	return ""
}

func GetUserID(ctx context.Context) string {
	if userID, ok := ctx.Value(userIDKey).(string); ok {
		return userID
	}
	return ""
}

// FromContext создает логгер с полями из context
func FromContext(ctx context.Context) *slog.Logger {
	logger := GetLogger()

	var fields []any

	if requestID := GetRequestID(ctx); requestID != "" {
		fields = append(fields, "request_id", requestID)
	}
	if userID := GetUserID(ctx); userID != "" {
		fields = append(fields, "user_id", userID)
	}
	if paymentID, ok := ctx.Value(paymentIDKey).(uint); ok {
		fields = append(fields, "payment_id", paymentID)
	}
	if txnID, ok := ctx.Value(transactionKey).(string); ok {
		fields = append(fields, "gateway_transaction_id", txnID)
	}

	if len(fields) > 0 {
		logger = logger.With(fields...)
	}

	return logger
}

func CtxDebug(ctx context.Context, msg string, args ...any) {
	FromContext(ctx).Debug(msg, args...)
}

func CtxInfo(ctx context.Context, msg string, args ...any) {
	FromContext(ctx).Info(msg, args...)
}

func CtxWarn(ctx context.Context, msg string, args ...any) {
	FromContext(ctx).Warn(msg, args...)
}

func CtxError(ctx context.Context, msg string, args ...any) {
	FromContext(ctx).Error(msg, args...)
}

// CtxWithError логирует error с error объектом
func CtxWithError(ctx context.Context, msg string, err error, args ...any) {
	fields := append([]any{"error", err.Error()}, args...)
	FromContext(ctx).Error(msg, fields...)
}
