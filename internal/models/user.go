package models

type User struct {
	BaseModel
	Name         string     `gorm:"not null" json:"name"`
	Email        string     `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string     `gorm:"not null" json:"-"`
	Phone        string     `json:"phone"`
	Role         UserRole   `gorm:"default:'student'" json:"role"`
	Status       UserStatus `gorm:"default:'active'" json:"status"`
	IsVerified   bool       `gorm:"default:false" json:"is_verified"`

	// Relations
	Enrollments []Enrollment `gorm:"foreignKey:UserID" json:"-"`
}
