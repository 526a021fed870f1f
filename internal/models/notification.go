package models

import (
	"time"

	"gorm.io/datatypes"
)

type Notification struct {
	BaseModel
	UserID  string         `gorm:"not null;index" json:"user_id"`
	Type    string         `gorm:"not null" json:"type"`
	Title   string         `gorm:"not null" json:"title"`
	Message string         `json:"message"`
	Data    datatypes.JSON `json:"data,omitempty"`
	IsRead  bool           `gorm:"default:false;index" json:"is_read"`
	ReadAt  *time.Time     `json:"read_at,omitempty"`
}

// Типы уведомлений, которые шлёт платежная подсистема.
const (
	NotificationTypeWelcome         = "welcome"
	NotificationTypePaymentReceived = "payment_received"
	NotificationTypePlanCreated     = "installment_plan_created"
)
