package services

import (
	"encoding/json"
	"fmt"

	"stitchhub_backend/internal/logger"
	"stitchhub_backend/internal/models"
	"stitchhub_backend/internal/pkg/email"
	"stitchhub_backend/internal/repositories"

	"gorm.io/datatypes"
)

type NotificationService interface {
	// Factory methods: платежная подсистема дергает их как best-effort
	// хуки. Ошибка создания DB-уведомления возвращается вызывающему,
	// отправка письма всегда fire-and-forget.
	NotifyWelcome(user *models.User, tempPassword string) error
	NotifyPaymentReceived(user *models.User, amount float64, currency, installmentInfo string) error
	NotifyPlanCreated(user *models.User, amount float64, currency string, periods int) error

	GetUserNotifications(userID string, limit, offset int) ([]models.Notification, int64, error)
	MarkAsRead(userID, notificationID string) error
}

type notificationService struct {
	notificationRepo repositories.NotificationRepository
	sender           email.Sender
}

func NewNotificationService(notificationRepo repositories.NotificationRepository, sender email.Sender) NotificationService {
	return &notificationService{
		notificationRepo: notificationRepo,
		sender:           sender,
	}
}

func (s *notificationService) NotifyWelcome(user *models.User, tempPassword string) error {
	if err := s.create(user.ID, models.NotificationTypeWelcome,
		"Добро пожаловать в StitchHub",
		"Аккаунт создан после вашей оплаты. Временный пароль отправлен на почту.",
		nil,
	); err != nil {
		return err
	}

	s.sendAsync(user.Email, "Добро пожаловать в StitchHub", "welcome", email.TemplateData{
		Name:         user.Name,
		TempPassword: tempPassword,
	})
	return nil
}

func (s *notificationService) NotifyPaymentReceived(user *models.User, amount float64, currency, installmentInfo string) error {
	if err := s.create(user.ID, models.NotificationTypePaymentReceived,
		"Платеж получен",
		fmt.Sprintf("Мы получили ваш платеж на %.2f %s", amount, currency),
		map[string]interface{}{"amount": amount, "currency": currency},
	); err != nil {
		return err
	}

	s.sendAsync(user.Email, "Платеж получен", "payment_received", email.TemplateData{
		Name:            user.Name,
		Amount:          amount,
		Currency:        currency,
		InstallmentInfo: installmentInfo,
	})
	return nil
}

func (s *notificationService) NotifyPlanCreated(user *models.User, amount float64, currency string, periods int) error {
	if err := s.create(user.ID, models.NotificationTypePlanCreated,
		"План рассрочки создан",
		fmt.Sprintf("План на %d платежей оформлен", periods),
		map[string]interface{}{"amount": amount, "currency": currency, "periods": periods},
	); err != nil {
		return err
	}

	s.sendAsync(user.Email, "План рассрочки создан", "installment_plan_created", email.TemplateData{
		Name:     user.Name,
		Amount:   amount,
		Currency: currency,
		Periods:  periods,
	})
	return nil
}

func (s *notificationService) GetUserNotifications(userID string, limit, offset int) ([]models.Notification, int64, error) {
	return s.notificationRepo.ListByUser(userID, limit, offset)
}

func (s *notificationService) MarkAsRead(userID, notificationID string) error {
	return s.notificationRepo.MarkAsRead(userID, notificationID)
}

func (s *notificationService) create(userID, ntype, title, message string, data map[string]interface{}) error {
	notification := &models.Notification{
		UserID:  userID,
		Type:    ntype,
		Title:   title,
		Message: message,
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return err
		}
		notification.Data = datatypes.JSON(raw)
	}
	return s.notificationRepo.Create(notification)
}

// sendAsync шлет письмо в горутине: падение SMTP никогда не блокирует
// и не откатывает settlement.
func (s *notificationService) sendAsync(to, subject, templateName string, data email.TemplateData) {
	go func() {
		if err := s.sender.SendTemplate(to, subject, templateName, data); err != nil {
			logger.Warn("email delivery failed", "to", to, "template", templateName, "error", err.Error())
		}
	}()
}
