package models

type UserStatus string
type UserRole string
type TransactionStatus string
type TransactionKind string
type InstallmentStatus string
type PaymentPlan string
type OrderStatus string

const (
	UserStatusPending   UserStatus = "pending"
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"

	UserRoleStudent  UserRole = "student"
	UserRoleCustomer UserRole = "customer"
	UserRoleAdmin    UserRole = "admin"

	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusSucceeded TransactionStatus = "succeeded"
	TransactionStatusFailed    TransactionStatus = "failed"

	TransactionKindOneTime      TransactionKind = "one_time"
	TransactionKindInstallment  TransactionKind = "installment"
	TransactionKindSubscription TransactionKind = "subscription"
	TransactionKindItemPurchase TransactionKind = "item_purchase"

	InstallmentStatusPending InstallmentStatus = "pending"
	InstallmentStatusPaid    InstallmentStatus = "paid"

	PaymentPlanOneTime     PaymentPlan = "one_time"
	PaymentPlanInstallment PaymentPlan = "installment"

	OrderStatusPendingPayment OrderStatus = "pending_payment"
	OrderStatusInProduction   OrderStatus = "in_production"
	OrderStatusCompleted      OrderStatus = "completed"
)

// ValidTransactionKind проверяет значение kind, пришедшее извне.
func ValidTransactionKind(k TransactionKind) bool {
	switch k {
	case TransactionKindOneTime, TransactionKindInstallment,
		TransactionKindSubscription, TransactionKindItemPurchase:
		return true
	}
	return false
}
