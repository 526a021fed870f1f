package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"stitchhub_backend/internal/appErrors"
	"stitchhub_backend/internal/config"
	"stitchhub_backend/internal/gateways"
	"stitchhub_backend/internal/logger"
	"stitchhub_backend/internal/models"
	"stitchhub_backend/internal/repositories"
	"stitchhub_backend/internal/services/dto"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// CheckoutService — stateless-диспетчер: для каждого запроса ровно один
// из четырех сценариев и не больше одного обращения к шлюзу.
//
//  1. Разовый платеж / покупка изделия — сумма как есть.
//  2. Новый план рассрочки — сумма это ПОЛНАЯ цена; планировщик делит ее,
//     pending-транзакция и N строк рассрочки создаются атомарно после
//     успешного ответа шлюза (упавший шлюз не оставляет полуплана).
//  3. Очередной платеж по (transaction_id, installment_number) — сумма
//     берется из строки рассрочки, оплаченная строка отклоняется.
//  4. Очередной платеж с флагом "сумма уже поделена" — планировщик
//     пропускается полностью: повторное деление уже поделенной суммы
//     молча занижало бы платеж в N раз.
type CheckoutService interface {
	InitiateCheckout(ctx context.Context, userID string, req *dto.CheckoutRequest) (*dto.CheckoutResponse, error)
}

type checkoutService struct {
	registry            *gateways.Registry
	txRepo              repositories.TransactionRepository
	userRepo            repositories.UserRepository
	courseRepo          repositories.CourseRepository
	notificationService NotificationService
	cfg                 *config.Config
}

func NewCheckoutService(
	registry *gateways.Registry,
	txRepo repositories.TransactionRepository,
	userRepo repositories.UserRepository,
	courseRepo repositories.CourseRepository,
	notificationService NotificationService,
	cfg *config.Config,
) CheckoutService {
	return &checkoutService{
		registry:            registry,
		txRepo:              txRepo,
		userRepo:            userRepo,
		courseRepo:          courseRepo,
		notificationService: notificationService,
		cfg:                 cfg,
	}
}

func (s *checkoutService) InitiateCheckout(ctx context.Context, userID string, req *dto.CheckoutRequest) (*dto.CheckoutResponse, error) {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return nil, appErrors.ErrUserNotFound.WithError(err)
	}

	gw, err := s.registry.Get(req.Gateway)
	if err != nil {
		return nil, appErrors.ErrUnknownGateway.WithDetails(map[string]interface{}{"known": s.registry.Names()})
	}

	currency := req.Currency
	if currency == "" {
		currency = s.cfg.Payments.DefaultCurrency
	}

	switch {
	case req.TransactionID != "" && req.InstallmentNumber > 0:
		return s.continueInstallment(ctx, gw, user, req, currency)
	case req.TransactionID != "" && req.IsExactSubsequentAmount:
		return s.subsequentExactAmount(ctx, gw, user, req, currency)
	case models.TransactionKind(req.Kind) == models.TransactionKindInstallment:
		return s.newInstallmentPlan(ctx, gw, user, req, currency)
	default:
		return s.oneTime(ctx, gw, user, req, currency)
	}
}

// Сценарий 1: разовый платеж. Транзакция появится неявно при settlement.
func (s *checkoutService) oneTime(ctx context.Context, gw gateways.Gateway, user *models.User, req *dto.CheckoutRequest, currency string) (*dto.CheckoutResponse, error) {
	md := gateways.Metadata{
		Kind:     models.TransactionKind(req.Kind),
		Email:    user.Email,
		CourseID: req.CourseID,
		OrderID:  req.OrderID,
	}

	session, err := s.createSession(ctx, gw, user.Email, req.Amount, currency, md, req)
	if err != nil {
		return nil, err
	}

	return &dto.CheckoutResponse{
		RedirectURL: session.RedirectURL,
		Reference:   session.Reference,
	}, nil
}

// Сценарий 2: новый план. Pending-строки пишутся ТОЛЬКО после успешного
// ответа шлюза, одной транзакцией БД — план существует, даже если
// пользователь бросит оплату на странице шлюза.
func (s *checkoutService) newInstallmentPlan(ctx context.Context, gw gateways.Gateway, user *models.User, req *dto.CheckoutRequest, currency string) (*dto.CheckoutResponse, error) {
	if req.CourseID != "" {
		course, err := s.courseRepo.FindByID(req.CourseID)
		if err != nil {
			return nil, appErrors.ErrCourseNotFound.WithError(err)
		}
		if !course.AllowInstallments {
			return nil, appErrors.NewBadRequestError("Course does not allow installment payments")
		}
	}

	schedule := ScheduleInstallments(req.Amount, req.Periods, s.cfg.Payments.MinInstallmentPeriods, time.Now())

	// ID плана генерируем заранее: шлюз должен вернуть его в metadata.
	planID := uuid.NewString()
	md := gateways.Metadata{
		Kind:              models.TransactionKindInstallment,
		Email:             user.Email,
		CourseID:          req.CourseID,
		OrderID:           req.OrderID,
		TransactionID:     planID,
		InstallmentNumber: 1,
		TotalInstallments: len(schedule),
	}

	// Первый платеж — первый кусок, не полная сумма.
	session, err := s.createSession(ctx, gw, user.Email, schedule[0].Amount, currency, md, req)
	if err != nil {
		// Ничего не записано: упавший шлюз не оставляет полусозданный план.
		return nil, err
	}

	rawMD, _ := json.Marshal(md)
	tx := &models.Transaction{
		BaseModel:        models.BaseModel{ID: planID},
		UserID:           user.ID,
		Amount:           req.Amount,
		Currency:         currency,
		Status:           models.TransactionStatusPending,
		Kind:             models.TransactionKindInstallment,
		Gateway:          gw.Name(),
		GatewayReference: session.Reference,
		Description:      fmt.Sprintf("Installment plan, %d payments", len(schedule)),
		Metadata:         datatypes.JSON(rawMD),
	}

	installments := make([]models.Installment, len(schedule))
	for i, slot := range schedule {
		installments[i] = models.Installment{
			InstallmentNumber: slot.Number,
			TotalInstallments: len(schedule),
			Amount:            slot.Amount,
			DueDate:           slot.DueDate,
			Status:            models.InstallmentStatusPending,
		}
	}

	if err := s.txRepo.CreateWithInstallments(tx, installments); err != nil {
		return nil, appErrors.InternalError(err)
	}

	if err := s.notificationService.NotifyPlanCreated(user, req.Amount, currency, len(schedule)); err != nil {
		logger.Warn("plan created notification failed", "plan_id", tx.ID, "error", err.Error())
	}

	resp := &dto.CheckoutResponse{
		RedirectURL:   session.RedirectURL,
		Reference:     session.Reference,
		TransactionID: tx.ID,
	}
	for _, inst := range installments {
		resp.Installments = append(resp.Installments, dto.InstallmentResponse{
			Number:  inst.InstallmentNumber,
			Amount:  inst.Amount,
			DueDate: inst.DueDate,
			Status:  string(inst.Status),
		})
	}
	return resp, nil
}

// Сценарий 3: точная строка рассрочки известна — сумма берется из нее.
func (s *checkoutService) continueInstallment(ctx context.Context, gw gateways.Gateway, user *models.User, req *dto.CheckoutRequest, currency string) (*dto.CheckoutResponse, error) {
	plan, err := s.txRepo.FindByID(req.TransactionID)
	if err != nil {
		return nil, appErrors.ErrPlanNotFound.WithError(err)
	}

	inst, err := s.txRepo.FindInstallment(plan.ID, req.InstallmentNumber)
	if err != nil {
		return nil, appErrors.ErrPlanNotFound.WithError(err)
	}
	if inst.Status == models.InstallmentStatusPaid {
		return nil, appErrors.ErrAlreadyPaid
	}

	md := s.planMetadata(plan, user.Email, inst.InstallmentNumber, inst.TotalInstallments)

	session, err := s.createSession(ctx, gw, user.Email, inst.Amount, currency, md, req)
	if err != nil {
		return nil, err
	}

	return &dto.CheckoutResponse{
		RedirectURL:   session.RedirectURL,
		Reference:     session.Reference,
		TransactionID: plan.ID,
	}, nil
}

// Сценарий 4: вызывающий утверждает, что сумма уже per-slice.
// Флагу верим и планировщик НЕ запускаем — иначе уже поделенная сумма
// была бы поделена второй раз.
func (s *checkoutService) subsequentExactAmount(ctx context.Context, gw gateways.Gateway, user *models.User, req *dto.CheckoutRequest, currency string) (*dto.CheckoutResponse, error) {
	plan, err := s.txRepo.FindByID(req.TransactionID)
	if err != nil {
		return nil, appErrors.ErrPlanNotFound.WithError(err)
	}

	next, err := s.txRepo.NextPendingInstallment(plan.ID)
	if err != nil {
		// Все куски оплачены — платить нечего.
		return nil, appErrors.ErrAlreadyPaid
	}

	md := s.planMetadata(plan, user.Email, next.InstallmentNumber, next.TotalInstallments)

	// Сумма запроса уходит в шлюз как есть.
	session, err := s.createSession(ctx, gw, user.Email, req.Amount, currency, md, req)
	if err != nil {
		return nil, err
	}

	return &dto.CheckoutResponse{
		RedirectURL:   session.RedirectURL,
		Reference:     session.Reference,
		TransactionID: plan.ID,
	}, nil
}

// planMetadata восстанавливает course/order привязку из metadata плана.
func (s *checkoutService) planMetadata(plan *models.Transaction, email string, number, total int) gateways.Metadata {
	var stored gateways.Metadata
	if len(plan.Metadata) > 0 {
		_ = json.Unmarshal(plan.Metadata, &stored)
	}

	return gateways.Metadata{
		Kind:              models.TransactionKindInstallment,
		Email:             email,
		CourseID:          stored.CourseID,
		OrderID:           stored.OrderID,
		TransactionID:     plan.ID,
		InstallmentNumber: number,
		TotalInstallments: total,
	}
}

func (s *checkoutService) createSession(ctx context.Context, gw gateways.Gateway, payerEmail string, amount float64, currency string, md gateways.Metadata, req *dto.CheckoutRequest) (*gateways.CheckoutSession, error) {
	session, err := gw.CreateCheckoutSession(ctx, gateways.CheckoutOptions{
		Email:      payerEmail,
		Amount:     amount,
		Currency:   currency,
		Kind:       models.TransactionKind(req.Kind),
		Reference:  newReference(),
		SuccessURL: s.cfg.Payments.SuccessURL,
		CancelURL:  s.cfg.Payments.CancelURL,
		Metadata:   md,
	})
	if err != nil {
		return nil, mapGatewayError(err)
	}
	return session, nil
}

func mapGatewayError(err error) error {
	switch {
	case appErrors.Is(err, gateways.ErrGatewayUnavailable):
		return appErrors.ErrGatewayUnavailable.WithError(err)
	case appErrors.Is(err, gateways.ErrInvalidRequest):
		return appErrors.ErrInvalidRequest.WithError(err)
	default:
		return appErrors.InternalError(err)
	}
}

func newReference() string {
	return "STH-" + uuid.NewString()
}
