package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"stitchhub_backend/internal/appErrors"
	"stitchhub_backend/internal/auth"
	"stitchhub_backend/internal/gateways"
	"stitchhub_backend/internal/logger"
	"stitchhub_backend/internal/models"
	"stitchhub_backend/internal/repositories"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SettlementService сводит обе точки входа (push-вебхук и
// pull-верификацию) в один идемпотентный Apply. Порядок и количество
// доставок не гарантируются: push, push, pull, push для одного reference —
// штатная ситуация, итог всегда ровно одна успешная транзакция.
type SettlementService interface {
	// HandlePush: подпись проверяется по сырым байтам ДО любых мутаций.
	HandlePush(ctx context.Context, gatewayName string, payload []byte, signature string) error
	// HandlePullVerify: клиент сообщил "я оплатил" — переспрашиваем шлюз.
	HandlePullVerify(ctx context.Context, gatewayName, reference string) (bool, error)
	Apply(ctx context.Context, ev *gateways.Event) error
}

type settlementService struct {
	db                  *gorm.DB
	registry            *gateways.Registry
	txRepo              repositories.TransactionRepository
	userRepo            repositories.UserRepository
	orderRepo           repositories.OrderRepository
	enrollmentService   EnrollmentService
	notificationService NotificationService

	// Сериализация применений одного reference внутри процесса.
	// Вместе с partial unique index по gateway_reference это и есть
	// атомарный idempotency guard.
	mu       sync.Mutex
	refLocks map[string]*refLock
}

type refLock struct {
	mu      sync.Mutex
	waiters int
}

func NewSettlementService(
	db *gorm.DB,
	registry *gateways.Registry,
	txRepo repositories.TransactionRepository,
	userRepo repositories.UserRepository,
	orderRepo repositories.OrderRepository,
	enrollmentService EnrollmentService,
	notificationService NotificationService,
) SettlementService {
	return &settlementService{
		db:                  db,
		registry:            registry,
		txRepo:              txRepo,
		userRepo:            userRepo,
		orderRepo:           orderRepo,
		enrollmentService:   enrollmentService,
		notificationService: notificationService,
		refLocks:            make(map[string]*refLock),
	}
}

func (s *settlementService) HandlePush(ctx context.Context, gatewayName string, payload []byte, signature string) error {
	gw, err := s.registry.Get(gatewayName)
	if err != nil {
		return appErrors.ErrUnknownGateway
	}

	ev, err := gw.VerifySignature(payload, signature)
	if err != nil {
		if appErrors.Is(err, gateways.ErrSignatureInvalid) {
			// Жесткий отказ: состояние не трогаем, ретраи — забота шлюза.
			return appErrors.ErrSignatureInvalid
		}
		return appErrors.ErrInvalidRequest.WithError(err)
	}

	return s.Apply(ctx, ev)
}

func (s *settlementService) HandlePullVerify(ctx context.Context, gatewayName, reference string) (bool, error) {
	gw, err := s.registry.Get(gatewayName)
	if err != nil {
		return false, appErrors.ErrUnknownGateway
	}

	puller, ok := gw.(gateways.PullVerifier)
	if !ok {
		return false, appErrors.NewBadRequestError(
			fmt.Sprintf("Gateway %q does not support pull verification", gatewayName)).
			WithError(gateways.ErrPullNotSupported)
	}

	outcome, err := puller.PullVerify(ctx, reference)
	if err != nil {
		return false, mapGatewayError(err)
	}
	if !outcome.Succeeded {
		// Не подтверждено шлюзом — никаких мутаций, клиент может
		// опросить еще раз.
		return false, nil
	}

	ev := &gateways.Event{
		Gateway:   gatewayName,
		Reference: outcome.Reference,
		Amount:    outcome.Amount,
		Currency:  outcome.Currency,
		Succeeded: true,
		Metadata:  outcome.Metadata,
	}
	if err := s.Apply(ctx, ev); err != nil {
		return false, err
	}
	return true, nil
}

// applyOutcome — что случилось внутри атомарной части Apply.
type applyOutcome struct {
	duplicate    bool
	user         *models.User
	userCreated  bool
	tempPassword string
	// Заполняется для платежей рассрочки.
	installmentInfo string
	nextDue         *time.Time
}

func (s *settlementService) Apply(ctx context.Context, ev *gateways.Event) error {
	md := ev.Metadata
	if err := md.Validate(); err != nil {
		// Невалидная metadata отбрасывается на границе и до
		// apply-мутаций не доходит.
		return appErrors.ErrInvalidRequest.WithError(err)
	}

	if !ev.Succeeded {
		return s.recordFailure(ev)
	}

	unlock := s.lockReference(ev.Reference)
	defer unlock()

	var out applyOutcome
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.applyLocked(tx, ev, &out)
	})
	if err != nil {
		return err
	}

	logger.SettlementLog(ev.Gateway, ev.Reference, ev.Amount, out.duplicate)
	if out.duplicate {
		// Идемпотентный no-op: для вызывающего это успех.
		return nil
	}

	s.runSideEffects(ev, &out)
	return nil
}

// applyLocked — шаги 1–4 §settlement под per-reference локом внутри
// одной транзакции БД: guard и запись успеха атомарны.
func (s *settlementService) applyLocked(tx *gorm.DB, ev *gateways.Event, out *applyOutcome) error {
	txRepo := s.txRepo.WithTx(tx)
	md := ev.Metadata

	// Шаг 1: guard. Уже есть успешная транзакция с этим reference —
	// больше ни одной записи и ни одного сайд-эффекта.
	if _, err := txRepo.FindSucceededByReference(ev.Reference); err == nil {
		out.duplicate = true
		return nil
	} else if err != repositories.ErrTransactionNotFound {
		return err
	}

	// Шаги 2–4: плательщик и запись успеха. Для рассрочки guard по
	// оплаченному куску идет ДО создания пользователя, чтобы дубль
	// с незнакомым email не оставлял осиротевший аккаунт.
	if md.IsInstallment() {
		return s.applyInstallment(tx, txRepo, ev, out)
	}

	user, err := s.resolvePayer(tx, md, out)
	if err != nil {
		return err
	}

	return txRepo.Create(&models.Transaction{
		UserID:           user.ID,
		Amount:           ev.Amount,
		Currency:         ev.Currency,
		Status:           models.TransactionStatusSucceeded,
		Kind:             md.Kind,
		Gateway:          ev.Gateway,
		GatewayReference: ev.Reference,
		Description:      describeKind(md.Kind),
		Metadata:         marshalMetadata(md),
	})
}

func (s *settlementService) applyInstallment(tx *gorm.DB, txRepo repositories.TransactionRepository, ev *gateways.Event, out *applyOutcome) error {
	md := ev.Metadata

	plan, err := txRepo.FindByID(md.TransactionID)
	if err != nil {
		return appErrors.ErrPlanNotFound.WithError(err)
	}

	inst, err := txRepo.FindInstallment(plan.ID, md.InstallmentNumber)
	if err != nil {
		return appErrors.ErrPlanNotFound.WithError(err)
	}
	if inst.Status == models.InstallmentStatusPaid {
		// Кусок уже оплачен (другим reference) — no-op, не ошибка.
		out.duplicate = true
		return nil
	}

	user, err := s.resolvePayer(tx, md, out)
	if err != nil {
		return err
	}

	flipped, err := txRepo.MarkInstallmentPaid(inst.ID, ev.Reference, time.Now())
	if err != nil {
		return err
	}
	if !flipped {
		// Кусок увели из-под нас между SELECT и UPDATE: два разных
		// reference на один кусок. Проигравший — такой же no-op, как
		// дубль, обнаруженный по статусу выше.
		out.duplicate = true
		return nil
	}

	if plan.Status == models.TransactionStatusPending && md.InstallmentNumber == 1 {
		// Первый платеж закрывает pending-транзакцию плана.
		if err := txRepo.MarkSucceeded(plan.ID, ev.Reference); err != nil {
			return err
		}
	} else {
		// Очередной кусок фиксируется отдельной успешной транзакцией.
		if err := txRepo.Create(&models.Transaction{
			UserID:           user.ID,
			Amount:           ev.Amount,
			Currency:         ev.Currency,
			Status:           models.TransactionStatusSucceeded,
			Kind:             models.TransactionKindInstallment,
			Gateway:          ev.Gateway,
			GatewayReference: ev.Reference,
			Description:      fmt.Sprintf("Installment %d of %d", md.InstallmentNumber, inst.TotalInstallments),
			Metadata:         marshalMetadata(md),
		}); err != nil {
			return err
		}
	}

	out.installmentInfo = fmt.Sprintf("Платеж %d из %d по плану рассрочки", md.InstallmentNumber, inst.TotalInstallments)

	if next, err := txRepo.NextPendingInstallment(plan.ID); err == nil {
		due := next.DueDate
		out.nextDue = &due
	}
	return nil
}

// runSideEffects — шаги 5–6: хук зачисления, форвард оплаты заказа,
// уведомления. Падение любого из них логируется как PARTIAL_SIDE_EFFECT
// и НЕ откатывает записанный платеж: факт получения денег не может быть
// отменен downstream-багом. Компенсации намеренно нет.
func (s *settlementService) runSideEffects(ev *gateways.Event, out *applyOutcome) {
	md := ev.Metadata

	if out.userCreated {
		if err := s.notificationService.NotifyWelcome(out.user, out.tempPassword); err != nil {
			s.logPartialFailure(ev.Reference, "welcome notification", err)
		}
	}

	if md.CourseID != "" {
		plan := models.PaymentPlanOneTime
		if md.IsInstallment() {
			plan = models.PaymentPlanInstallment
		}
		err := s.enrollmentService.ApplyPayment(ApplyPaymentInput{
			UserID:            out.user.ID,
			CourseID:          md.CourseID,
			Plan:              plan,
			Amount:            ev.Amount,
			InstallmentsTotal: md.TotalInstallments,
			NextPaymentDue:    out.nextDue,
		})
		if err != nil {
			s.logPartialFailure(ev.Reference, "enrollment", err)
		}
	}

	if md.OrderID != "" {
		if err := s.forwardToOrder(md, ev.Amount); err != nil {
			s.logPartialFailure(ev.Reference, "order payment", err)
		}
	}

	if err := s.notificationService.NotifyPaymentReceived(out.user, ev.Amount, ev.Currency, out.installmentInfo); err != nil {
		s.logPartialFailure(ev.Reference, "payment notification", err)
	}
}

// forwardToOrder применяет платеж к заказу на пошив. Первый платеж
// рассрочки только привязывает заказ к плану по correlation id, в
// amount_paid не попадает; накопление начинается со второго куска.
// Разовый платеж применяется целиком.
func (s *settlementService) forwardToOrder(md gateways.Metadata, amount float64) error {
	order, err := s.orderRepo.FindByID(md.OrderID)
	if err != nil {
		return err
	}
	if md.IsInstallment() {
		if order.TransactionID == "" {
			order.TransactionID = md.TransactionID
			if err := s.orderRepo.Save(order); err != nil {
				return err
			}
		}
		if md.InstallmentNumber == 1 {
			return nil
		}
	}
	return s.orderRepo.ApplyPayment(order.ID, amount)
}

// recordFailure: явное failure-событие шлюза переводит pending-план в
// failed. Таймауты сюда не попадают — failed достижим только из события.
func (s *settlementService) recordFailure(ev *gateways.Event) error {
	md := ev.Metadata
	if md.TransactionID == "" {
		logger.Warn("settlement failure event without transaction correlation",
			"gateway", ev.Gateway, "reference", ev.Reference)
		return nil
	}
	return s.txRepo.MarkFailed(md.TransactionID)
}

// resolvePayer находит или создает плательщика внутри транзакции БД и
// фиксирует результат в outcome для пост-коммитных уведомлений.
func (s *settlementService) resolvePayer(tx *gorm.DB, md gateways.Metadata, out *applyOutcome) (*models.User, error) {
	user, created, tempPassword, err := s.getOrCreateUser(s.userRepo.WithTx(tx), md)
	if err != nil {
		return nil, err
	}
	out.user = user
	out.userCreated = created
	out.tempPassword = tempPassword
	return user, nil
}

func (s *settlementService) getOrCreateUser(userRepo repositories.UserRepository, md gateways.Metadata) (*models.User, bool, string, error) {
	user, err := userRepo.FindByEmail(md.Email)
	if err == nil {
		return user, false, "", nil
	}
	if err != repositories.ErrUserNotFound {
		return nil, false, "", err
	}

	tempPassword, err := auth.GenerateTempPassword()
	if err != nil {
		return nil, false, "", err
	}
	hash, err := auth.HashPassword(tempPassword)
	if err != nil {
		return nil, false, "", err
	}

	role := models.UserRoleCustomer
	if md.CourseID != "" {
		role = models.UserRoleStudent
	}

	user = &models.User{
		Name:         nameFromEmail(md.Email),
		Email:        md.Email,
		PasswordHash: hash,
		Role:         role,
		Status:       models.UserStatusActive,
	}
	if err := userRepo.Create(user); err != nil {
		return nil, false, "", err
	}
	return user, true, tempPassword, nil
}

func (s *settlementService) logPartialFailure(reference, effect string, err error) {
	appErr := appErrors.PartialSideEffectError(err, reference)
	logger.Error("settlement side effect failed",
		"reference", reference,
		"effect", effect,
		"code", appErr.Code,
		"error", err.Error(),
	)
}

// lockReference выдает per-reference мьютекс; запись в карте живет,
// пока у reference есть ожидающие.
func (s *settlementService) lockReference(ref string) func() {
	s.mu.Lock()
	l, ok := s.refLocks[ref]
	if !ok {
		l = &refLock{}
		s.refLocks[ref] = l
	}
	l.waiters++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.waiters--
		if l.waiters == 0 {
			delete(s.refLocks, ref)
		}
		s.mu.Unlock()
	}
}

func describeKind(kind models.TransactionKind) string {
	switch kind {
	case models.TransactionKindItemPurchase:
		return "Item purchase"
	case models.TransactionKindSubscription:
		return "Subscription payment"
	default:
		return "One-time payment"
	}
}

func marshalMetadata(md gateways.Metadata) datatypes.JSON {
	raw, _ := json.Marshal(md)
	return datatypes.JSON(raw)
}

func nameFromEmail(email string) string {
	if i := strings.Index(email, "@"); i > 0 {
		return email[:i]
	}
	return email
}
