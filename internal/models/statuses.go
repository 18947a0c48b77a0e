package models

type UserRole string
type PaymentStatus string
type PaymentKind string
type PaymentMethod string
type SubjectType string
type InvoiceStatus string
type LedgerEntryType string

const (
	UserRoleGuest UserRole = "guest"
	UserRoleHost  UserRole = "host"
	UserRoleAdmin UserRole = "admin"

	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"

	PaymentKindDeposit PaymentKind = "deposit"
	PaymentKindRent    PaymentKind = "rent"

	PaymentMethodVNPay   PaymentMethod = "vnpay"
	PaymentMethodMoMo    PaymentMethod = "momo"
	PaymentMethodZaloPay PaymentMethod = "zalopay"

	SubjectTypeAccommodation SubjectType = "accommodation"
	SubjectTypeContract      SubjectType = "contract"

	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusIssued    InvoiceStatus = "issued"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"

	LedgerEntryEarn   LedgerEntryType = "earn"
	LedgerEntryRedeem LedgerEntryType = "redeem"
	LedgerEntryAdjust LedgerEntryType = "adjust"
)

// IsTerminal - из completed и failed переходов нет.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusFailed
}
