package apperrors

// ErrorCode - тип для кодов ошибок
type ErrorCode string

// Общие, не-доменные коды ошибок
const (
	// Системные и неизвестные ошибки
	CodeInternalError        ErrorCode = "INTERNAL_ERROR"
	CodeDatabaseError        ErrorCode = "DATABASE_ERROR"
	CodeExternalServiceError ErrorCode = "EXTERNAL_SERVICE_ERROR"

	// Общие ошибки бизнес-логики
	CodeNotFound         ErrorCode = "NOT_FOUND"
	CodeAlreadyExists    ErrorCode = "ALREADY_EXISTS"
	CodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	CodeConflict         ErrorCode = "CONFLICT"
	CodeInvalidStatus    ErrorCode = "INVALID_STATUS"
	CodeInvalidOperation ErrorCode = "INVALID_OPERATION"

	// Аутентификация и авторизация
	CodeUnauthorized ErrorCode = "UNAUTHORIZED"
	CodeForbidden    ErrorCode = "FORBIDDEN"
	CodeInvalidToken ErrorCode = "INVALID_TOKEN"
)

// Платежи, расчёты и бонусные баллы
const (
	CodeInvalidSignature     ErrorCode = "INVALID_SIGNATURE"
	CodeUnknownTransaction   ErrorCode = "UNKNOWN_TRANSACTION"
	CodeInvalidPaymentAmount ErrorCode = "INVALID_PAYMENT_AMOUNT"
	CodeGatewayUnavailable   ErrorCode = "GATEWAY_UNAVAILABLE"
	CodeUnsupportedGateway   ErrorCode = "UNSUPPORTED_GATEWAY"
	CodeMalformedCallback    ErrorCode = "MALFORMED_CALLBACK"
	CodeInsufficientPoints   ErrorCode = "INSUFFICIENT_POINTS"
	CodeSettlementSideEffect ErrorCode = "SETTLEMENT_SIDE_EFFECT_FAILURE"
	CodePaymentNotSettled    ErrorCode = "PAYMENT_NOT_SETTLED"
	CodePaymentAlreadyClosed ErrorCode = "PAYMENT_ALREADY_CLOSED"
)
