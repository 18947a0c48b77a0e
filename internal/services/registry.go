package services

// ServiceContainer содержит все сервисы приложения.
type ServiceContainer struct {
	PaymentService    PaymentService
	CallbackService   CallbackService
	SettlementService SettlementService
	InvoiceService    InvoiceService
	LoyaltyService    LoyaltyService
}
