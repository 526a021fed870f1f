package services

import (
	"time"

	"stitchhub_backend/internal/models"
	"stitchhub_backend/internal/repositories"

	"stitchhub_backend/internal/appErrors"
)

// ApplyPaymentInput — то, что settlement передает в enrollment-хук.
type ApplyPaymentInput struct {
	UserID            string
	CourseID          string
	Plan              models.PaymentPlan
	Amount            float64
	InstallmentsTotal int
	NextPaymentDue    *time.Time
}

type EnrollmentService interface {
	// ApplyPayment — идемпотентный апсерт по уникальному ключу
	// (user_id, course_id). Повторный вызов для ДРУГОГО reference того же
	// плана корректно накапливает счетчики; повторный вызов для того же
	// reference сюда не доходит (отсекается guard'ом settlement).
	ApplyPayment(input ApplyPaymentInput) error
	// LockOverdue ставит portal_locked всем просроченным рассрочкам.
	LockOverdue(now time.Time, gracePeriod time.Duration) (int64, error)
	GetUserEnrollments(userID string) ([]models.Enrollment, error)
}

type enrollmentService struct {
	enrollmentRepo repositories.EnrollmentRepository
	courseRepo     repositories.CourseRepository
}

func NewEnrollmentService(
	enrollmentRepo repositories.EnrollmentRepository,
	courseRepo repositories.CourseRepository,
) EnrollmentService {
	return &enrollmentService{
		enrollmentRepo: enrollmentRepo,
		courseRepo:     courseRepo,
	}
}

func (s *enrollmentService) ApplyPayment(input ApplyPaymentInput) error {
	if _, err := s.courseRepo.FindByID(input.CourseID); err != nil {
		return appErrors.ErrCourseNotFound.WithError(err)
	}

	enrollment, err := s.enrollmentRepo.FindByUserAndCourse(input.UserID, input.CourseID)
	if err != nil {
		if err != repositories.ErrEnrollmentNotFound {
			return err
		}
		enrollment = &models.Enrollment{
			UserID:      input.UserID,
			CourseID:    input.CourseID,
			PaymentPlan: input.Plan,
		}
		s.accumulate(enrollment, input)
		return s.enrollmentRepo.Create(enrollment)
	}

	s.accumulate(enrollment, input)
	return s.enrollmentRepo.Save(enrollment)
}

// accumulate применяет один платеж к состоянию зачисления.
// Новый платеж всегда разблокирует портал.
func (s *enrollmentService) accumulate(enrollment *models.Enrollment, input ApplyPaymentInput) {
	enrollment.TotalPaid += input.Amount
	enrollment.PortalLocked = false
	enrollment.NextPaymentDue = input.NextPaymentDue

	if input.Plan == models.PaymentPlanInstallment {
		enrollment.PaymentPlan = models.PaymentPlanInstallment
		if input.InstallmentsTotal > 0 {
			enrollment.InstallmentsTotal = input.InstallmentsTotal
		}
		enrollment.InstallmentsPaid++
	}
}

func (s *enrollmentService) LockOverdue(now time.Time, gracePeriod time.Duration) (int64, error) {
	cutoff := now.Add(-gracePeriod)
	return s.enrollmentRepo.LockOverdue(cutoff)
}

func (s *enrollmentService) GetUserEnrollments(userID string) ([]models.Enrollment, error) {
	return s.enrollmentRepo.FindByUser(userID)
}
