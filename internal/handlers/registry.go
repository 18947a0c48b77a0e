package handlers

// AppHandlers содержит все хэндлеры приложения.
type AppHandlers struct {
	PaymentHandler  *PaymentHandler
	CallbackHandler *CallbackHandler
	LoyaltyHandler  *LoyaltyHandler
	InvoiceHandler  *InvoiceHandler
	AdminHandler    *AdminHandler
}
