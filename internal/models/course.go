package models

type Course struct {
	BaseModel
	Title       string  `gorm:"not null" json:"title"`
	Description string  `json:"description"`
	Price       float64 `gorm:"not null" json:"price"`
	Currency    string  `gorm:"default:'NGN'" json:"currency"`
	// Курсы с allow_installments=false продаются только единым платежом.
	AllowInstallments bool `gorm:"default:true" json:"allow_installments"`
	IsActive          bool `gorm:"default:true" json:"is_active"`
}
