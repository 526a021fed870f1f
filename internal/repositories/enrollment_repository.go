package repositories

import (
	"errors"
	"time"

	"stitchhub_backend/internal/models"

	"gorm.io/gorm"
)

var ErrEnrollmentNotFound = errors.New("enrollment not found")

type EnrollmentRepository interface {
	WithTx(tx *gorm.DB) EnrollmentRepository
	FindByUserAndCourse(userID, courseID string) (*models.Enrollment, error)
	FindByUser(userID string) ([]models.Enrollment, error)
	Create(enrollment *models.Enrollment) error
	Save(enrollment *models.Enrollment) error
	// LockOverdue — одна идемпотентная UPDATE для overdue sweep:
	// повторный прогон не находит ни одной подходящей строки.
	LockOverdue(cutoff time.Time) (int64, error)
}

type EnrollmentRepositoryImpl struct {
	db *gorm.DB
}

func NewEnrollmentRepository(db *gorm.DB) EnrollmentRepository {
	return &EnrollmentRepositoryImpl{db: db}
}

func (r *EnrollmentRepositoryImpl) WithTx(tx *gorm.DB) EnrollmentRepository {
	return &EnrollmentRepositoryImpl{db: tx}
}

func (r *EnrollmentRepositoryImpl) FindByUserAndCourse(userID, courseID string) (*models.Enrollment, error) {
	var enrollment models.Enrollment
	err := r.db.
		Where("user_id = ? AND course_id = ?", userID, courseID).
		First(&enrollment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEnrollmentNotFound
		}
		return nil, err
	}
	return &enrollment, nil
}

func (r *EnrollmentRepositoryImpl) FindByUser(userID string) ([]models.Enrollment, error) {
	var enrollments []models.Enrollment
	err := r.db.Preload("Course").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&enrollments).Error
	return enrollments, err
}

func (r *EnrollmentRepositoryImpl) Create(enrollment *models.Enrollment) error {
	return r.db.Create(enrollment).Error
}

func (r *EnrollmentRepositoryImpl) Save(enrollment *models.Enrollment) error {
	return r.db.Save(enrollment).Error
}

func (r *EnrollmentRepositoryImpl) LockOverdue(cutoff time.Time) (int64, error) {
	result := r.db.Model(&models.Enrollment{}).
		Where("payment_plan = ?", models.PaymentPlanInstallment).
		Where("portal_locked = ?", false).
		Where("next_payment_due IS NOT NULL AND next_payment_due < ?", cutoff).
		Update("portal_locked", true)
	return result.RowsAffected, result.Error
}
