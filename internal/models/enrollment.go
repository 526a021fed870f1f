package models

import "time"

// Enrollment — зачисление студента на курс и состояние его задолженности.
// Уникальный ключ (user_id, course_id) делает апсерт при settlement идемпотентным.
type Enrollment struct {
	BaseModel
	UserID   string `gorm:"not null;uniqueIndex:idx_enrollment_user_course,priority:1" json:"user_id"`
	CourseID string `gorm:"not null;uniqueIndex:idx_enrollment_user_course,priority:2" json:"course_id"`

	PaymentPlan       PaymentPlan `gorm:"default:'one_time'" json:"payment_plan"`
	TotalPaid         float64     `gorm:"default:0" json:"total_paid"`
	InstallmentsTotal int         `gorm:"default:0" json:"installments_total"`
	InstallmentsPaid  int         `gorm:"default:0" json:"installments_paid"`
	NextPaymentDue    *time.Time  `gorm:"index" json:"next_payment_due,omitempty"`
	PortalLocked      bool        `gorm:"default:false;index" json:"portal_locked"`

	// Relations
	Course Course `gorm:"foreignKey:CourseID" json:"course,omitempty"`
}
