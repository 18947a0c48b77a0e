package apperrors

import (
	"net/http"
)

// =========================================================================
// Фабричные функции
// =========================================================================

// ErrNotFound - фабрика для ошибки "не найдено" (404)
func ErrNotFound(err error, domain, message string) *AppError {
	return Wrap(err, CodeNotFound, domain, message, http.StatusNotFound)
}

// ErrConflict - общая фабрика для конфликтов (409)
func ErrConflict(err error, domain, message string) *AppError {
	return Wrap(err, CodeConflict, domain, message, http.StatusConflict)
}

// ErrInvalidOperation - фабрика для невалидных операций (400)
func ErrInvalidOperation(domain, message string) *AppError {
	return New(CodeInvalidOperation, domain, message, http.StatusBadRequest)
}

// GatewayUnavailable - внешний шлюз не ответил, ответил ошибкой или по таймауту.
// Платёж остаётся в pending, повтор возможен с новым идентификатором транзакции.
func GatewayUnavailable(err error, gateway string) *AppError {
	return Wrap(err, CodeGatewayUnavailable, "payment", "Payment gateway is unavailable", http.StatusBadGateway).
		WithDetails(map[string]string{"gateway": gateway})
}

// SettlementSideEffectFailure - счёт или начисление баллов не выполнились
// после того, как платёж уже переведён в completed. Платёж не откатывается.
func SettlementSideEffectFailure(err error) *AppError {
	return Wrap(err, CodeSettlementSideEffect, "settlement", "Settlement side effect failed", http.StatusInternalServerError)
}

// MalformedCallback - тело или параметры колбэка не разбираются.
func MalformedCallback(err error) *AppError {
	return Wrap(err, CodeMalformedCallback, "payment", "Malformed gateway callback", http.StatusBadRequest)
}

// =========================================================================
// Предопределённые переменные
// =========================================================================

// --- Payments ---

var ErrInvalidSignature = New(
	CodeInvalidSignature,
	"payment",
	"Gateway signature verification failed",
	http.StatusBadRequest,
)

var ErrUnknownTransaction = New(
	CodeUnknownTransaction,
	"payment",
	"Gateway transaction is not on file",
	http.StatusNotFound,
)

// ErrInvalidPaymentAmount - сумма в колбэке не совпадает с суммой платежа.
var ErrInvalidPaymentAmount = New(
	CodeInvalidPaymentAmount,
	"payment",
	"Invalid payment amount",
	http.StatusConflict,
)

var ErrUnsupportedGateway = New(
	CodeUnsupportedGateway,
	"payment",
	"Unsupported payment method",
	http.StatusBadRequest,
)

var ErrPaymentNotFound = New(
	CodeNotFound,
	"payment",
	"Payment not found",
	http.StatusNotFound,
)

// ErrPaymentAlreadyClosed - платёж уже completed или failed, повторная инициация запрещена.
var ErrPaymentAlreadyClosed = New(
	CodePaymentAlreadyClosed,
	"payment",
	"Payment is already completed or failed",
	http.StatusConflict,
)

var ErrPaymentNotSettled = New(
	CodePaymentNotSettled,
	"payment",
	"Payment is not completed yet",
	http.StatusConflict,
)

// --- Invoices ---

var ErrInvoiceNotFound = New(
	CodeNotFound,
	"invoice",
	"Invoice not found",
	http.StatusNotFound,
)

// --- Loyalty ---

// ErrInsufficientPoints - баланса не хватает для списания, леджер не тронут.
var ErrInsufficientPoints = New(
	CodeInsufficientPoints,
	"loyalty",
	"Insufficient loyalty points",
	http.StatusUnprocessableEntity,
)

var ErrInvalidPointsAmount = New(
	CodeValidationFailed,
	"loyalty",
	"Points must be a positive number",
	http.StatusBadRequest,
)

var ErrUserNotFound = New(
	CodeNotFound,
	"user",
	"User not found",
	http.StatusNotFound,
)

// --- Auth ---

var ErrInsufficientPermissions = New(
	CodeForbidden,
	"auth",
	"Insufficient permissions",
	http.StatusForbidden,
)

var ErrInvalidToken = New(
	CodeInvalidToken,
	"auth",
	"Invalid or expired token",
	http.StatusUnauthorized,
)
