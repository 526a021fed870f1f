package models

// Order — заказ на пошив (production task). Ссылается на транзакцию-план
// по TransactionID; по мере оплаты рассрочки AmountPaid накапливается.
type Order struct {
	BaseModel
	UserID        string      `gorm:"not null;index" json:"user_id"`
	TransactionID string      `gorm:"index" json:"transaction_id"`
	Description   string      `json:"description"`
	TotalPrice    float64     `gorm:"not null" json:"total_price"`
	AmountPaid    float64     `gorm:"default:0" json:"amount_paid"`
	Status        OrderStatus `gorm:"default:'pending_payment'" json:"status"`
}
