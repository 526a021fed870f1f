package models

import (
	"time"

	"gorm.io/datatypes"
)

// Transaction — одна попытка платежа. Статус меняет только settlement,
// строки никогда не удаляются.
type Transaction struct {
	BaseModel
	UserID   string            `gorm:"index" json:"user_id"`
	Amount   float64           `gorm:"not null" json:"amount"`
	Currency string            `gorm:"default:'NGN'" json:"currency"`
	Status   TransactionStatus `gorm:"default:'pending';index" json:"status"`
	Kind     TransactionKind   `gorm:"not null" json:"kind"`
	Gateway  string            `gorm:"not null" json:"gateway"`
	// Внешний reference уникален среди успешных транзакций (partial index).
	GatewayReference string         `gorm:"index:idx_tx_succeeded_ref,unique,where:status = 'succeeded'" json:"gateway_reference"`
	Description      string         `json:"description"`
	Metadata         datatypes.JSON `json:"metadata,omitempty"`

	// Relations
	Installments []Installment `gorm:"foreignKey:TransactionID" json:"installments,omitempty"`
}

// Installment — один запланированный кусок рассрочки.
// Все N строк создаются вместе при создании плана.
type Installment struct {
	BaseModel
	TransactionID     string            `gorm:"not null;index;uniqueIndex:idx_installment_slot,priority:1" json:"transaction_id"`
	InstallmentNumber int               `gorm:"not null;uniqueIndex:idx_installment_slot,priority:2" json:"installment_number"`
	TotalInstallments int               `gorm:"not null" json:"total_installments"`
	Amount            float64           `gorm:"not null" json:"amount"`
	DueDate           time.Time         `gorm:"not null" json:"due_date"`
	Status            InstallmentStatus `gorm:"default:'pending'" json:"status"`
	GatewayReference  string            `json:"gateway_reference"`
	PaidAt            *time.Time        `json:"paid_at,omitempty"`
}
