package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"sync"
	"testing"
	"time"

	"stitchhub_backend/internal/appErrors"
	"stitchhub_backend/internal/config"
	"stitchhub_backend/internal/gateways"
	"stitchhub_backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func successEvent(reference, email string) *gateways.Event {
	return &gateways.Event{
		Gateway:   "paystack",
		Reference: reference,
		Amount:    50000,
		Currency:  "NGN",
		Succeeded: true,
		Metadata: gateways.Metadata{
			Kind:  models.TransactionKindOneTime,
			Email: email,
		},
	}
}

// seedPlan создает pending-план рассрочки с N кусками.
func seedPlan(t *testing.T, env *testEnv, user *models.User, courseID string, total float64, periods int) *models.Transaction {
	t.Helper()

	schedule := ScheduleInstallments(total, periods, 3, time.Now())

	plan := &models.Transaction{
		UserID:           user.ID,
		Amount:           total,
		Currency:         "NGN",
		Status:           models.TransactionStatusPending,
		Kind:             models.TransactionKindInstallment,
		Gateway:          "paystack",
		GatewayReference: "PLAN-" + user.ID,
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
	require.NoError(t, env.txRepo.CreateWithInstallments(plan, installments))
	return plan
}

func installmentEvent(plan *models.Transaction, number, total int, amount float64, reference, email, courseID string) *gateways.Event {
	return &gateways.Event{
		Gateway:   "paystack",
		Reference: reference,
		Amount:    amount,
		Currency:  "NGN",
		Succeeded: true,
		Metadata: gateways.Metadata{
			Kind:              models.TransactionKindInstallment,
			Email:             email,
			CourseID:          courseID,
			TransactionID:     plan.ID,
			InstallmentNumber: number,
			TotalInstallments: total,
		},
	}
}

// TestSettlement_OneTimeCreatesUserAndTransaction - незнакомый email
// получает аккаунт, платеж записывается как succeeded
func TestSettlement_OneTimeCreatesUserAndTransaction(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, gateways.NewRegistryWith())
	ev := successEvent("REF-1", "new.payer@example.com")

	require.NoError(t, env.settlement.Apply(context.Background(), ev))

	user, err := env.userRepo.FindByEmail("new.payer@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, user.PasswordHash)

	tx, err := env.txRepo.FindSucceededByReference("REF-1")
	require.NoError(t, err)
	assert.Equal(t, user.ID, tx.UserID)
	assert.Equal(t, 50000.0, tx.Amount)
	assert.Equal(t, models.TransactionKindOneTime, tx.Kind)

	// Welcome + payment_received уведомления созданы
	notifications, total, err := env.notificationRepo.ListByUser(user.ID, 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	types := []string{notifications[0].Type, notifications[1].Type}
	assert.Contains(t, types, models.NotificationTypeWelcome)
	assert.Contains(t, types, models.NotificationTypePaymentReceived)
}

// TestSettlement_DuplicateReferenceIsNoop - повторная доставка того же
// события не создает вторую транзакцию и не трогает счетчики
func TestSettlement_DuplicateReferenceIsNoop(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, gateways.NewRegistryWith())
	course := env.createCourse(t, 50000, false)

	ev := successEvent("REF-DUP", "payer@example.com")
	ev.Metadata.CourseID = course.ID

	require.NoError(t, env.settlement.Apply(context.Background(), ev))
	require.NoError(t, env.settlement.Apply(context.Background(), ev))
	require.NoError(t, env.settlement.Apply(context.Background(), ev))

	assert.EqualValues(t, 1, env.countSucceededByReference(t, "REF-DUP"))
	assert.EqualValues(t, 1, env.countTransactions(t))

	// TotalPaid накоплен ровно один раз
	user, err := env.userRepo.FindByEmail("payer@example.com")
	require.NoError(t, err)
	enrollment, err := env.enrollmentRepo.FindByUserAndCourse(user.ID, course.ID)
	require.NoError(t, err)
	assert.Equal(t, 50000.0, enrollment.TotalPaid)
}

// TestSettlement_ConcurrentDeliveriesConverge - push и pull приходят
// одновременно; применяется ровно одна
func TestSettlement_ConcurrentDeliveriesConverge(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, gateways.NewRegistryWith())

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = env.settlement.Apply(context.Background(), successEvent("REF-RACE", "race@example.com"))
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "доставка %d должна быть успехом (apply или no-op)", i)
	}
	assert.EqualValues(t, 1, env.countSucceededByReference(t, "REF-RACE"))
}

// TestSettlement_FirstInstallmentCompletesPlanTransaction - платеж #1
// переводит pending-план в succeeded и помечает кусок оплаченным
func TestSettlement_FirstInstallmentCompletesPlanTransaction(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, gateways.NewRegistryWith())
	course := env.createCourse(t, 150000, true)
	user := env.createUser(t, "student@example.com")
	plan := seedPlan(t, env, user, course.ID, 150000, 3)

	ev := installmentEvent(plan, 1, 3, 50000, "REF-I1", user.Email, course.ID)
	require.NoError(t, env.settlement.Apply(context.Background(), ev))

	updated, err := env.txRepo.FindByID(plan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusSucceeded, updated.Status)
	assert.Equal(t, "REF-I1", updated.GatewayReference)

	inst, err := env.txRepo.FindInstallment(plan.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, models.InstallmentStatusPaid, inst.Status)
	require.NotNil(t, inst.PaidAt)

	// Новая транзакция не создана: первый кусок закрывает план
	assert.EqualValues(t, 1, env.countTransactions(t))

	// Зачисление создано, дедлайн следующего платежа взят из куска #2
	enrollment, err := env.enrollmentRepo.FindByUserAndCourse(user.ID, course.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPlanInstallment, enrollment.PaymentPlan)
	assert.Equal(t, 50000.0, enrollment.TotalPaid)
	assert.Equal(t, 1, enrollment.InstallmentsPaid)
	require.NotNil(t, enrollment.NextPaymentDue)

	second, err := env.txRepo.FindInstallment(plan.ID, 2)
	require.NoError(t, err)
	assert.WithinDuration(t, second.DueDate, *enrollment.NextPaymentDue, time.Second)
}

// TestSettlement_SubsequentInstallmentCreatesNewTransaction - платеж #2
// фиксируется отдельной succeeded транзакцией
func TestSettlement_SubsequentInstallmentCreatesNewTransaction(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, gateways.NewRegistryWith())
	course := env.createCourse(t, 150000, true)
	user := env.createUser(t, "student2@example.com")
	plan := seedPlan(t, env, user, course.ID, 150000, 3)

	require.NoError(t, env.settlement.Apply(context.Background(),
		installmentEvent(plan, 1, 3, 50000, "REF-S1", user.Email, course.ID)))
	require.NoError(t, env.settlement.Apply(context.Background(),
		installmentEvent(plan, 2, 3, 50000, "REF-S2", user.Email, course.ID)))

	assert.EqualValues(t, 2, env.countTransactions(t))
	assert.EqualValues(t, 1, env.countSucceededByReference(t, "REF-S2"))

	inst, err := env.txRepo.FindInstallment(plan.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, models.InstallmentStatusPaid, inst.Status)

	enrollment, err := env.enrollmentRepo.FindByUserAndCourse(user.ID, course.ID)
	require.NoError(t, err)
	assert.Equal(t, 100000.0, enrollment.TotalPaid)
	assert.Equal(t, 2, enrollment.InstallmentsPaid)
}

// TestSettlement_PaidInstallmentWithNewReferenceIsNoop - кусок уже
// оплачен другим reference; вторая доставка — no-op, не ошибка
func TestSettlement_PaidInstallmentWithNewReferenceIsNoop(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, gateways.NewRegistryWith())
	course := env.createCourse(t, 150000, true)
	user := env.createUser(t, "student3@example.com")
	plan := seedPlan(t, env, user, course.ID, 150000, 3)

	require.NoError(t, env.settlement.Apply(context.Background(),
		installmentEvent(plan, 1, 3, 50000, "REF-A", user.Email, course.ID)))
	require.NoError(t, env.settlement.Apply(context.Background(),
		installmentEvent(plan, 1, 3, 50000, "REF-B", user.Email, course.ID)))

	// Второй reference ничего не записал
	assert.EqualValues(t, 0, env.countSucceededByReference(t, "REF-B"))
	assert.EqualValues(t, 1, env.countTransactions(t))
}

// TestSettlement_FailureEventMarksPlanFailed - явное failure-событие
// шлюза переводит pending-план в failed
func TestSettlement_FailureEventMarksPlanFailed(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, gateways.NewRegistryWith())
	course := env.createCourse(t, 150000, true)
	user := env.createUser(t, "student4@example.com")
	plan := seedPlan(t, env, user, course.ID, 150000, 3)

	ev := installmentEvent(plan, 1, 3, 50000, "REF-FAIL", user.Email, course.ID)
	ev.Succeeded = false
	require.NoError(t, env.settlement.Apply(context.Background(), ev))

	updated, err := env.txRepo.FindByID(plan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusFailed, updated.Status)
}

// TestSettlement_InvalidMetadataRejectedAtBoundary - событие без email
// отбрасывается до любых мутаций
func TestSettlement_InvalidMetadataRejectedAtBoundary(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, gateways.NewRegistryWith())
	ev := successEvent("REF-BAD", "")
	ev.Metadata.Email = ""

	err := env.settlement.Apply(context.Background(), ev)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidRequest))
	assert.EqualValues(t, 0, env.countTransactions(t))
}

// TestSettlement_OrderPaymentForwarded - платеж с order_id двигает заказ
// на пошив: сумма накапливается, полный платеж запускает производство
func TestSettlement_OrderPaymentForwarded(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, gateways.NewRegistryWith())
	user := env.createUser(t, "client@example.com")
	order := &models.Order{
		UserID:      user.ID,
		Description: "Bespoke agbada",
		TotalPrice:  50000,
		Status:      models.OrderStatusPendingPayment,
	}
	require.NoError(t, env.orderRepo.Create(order))

	ev := successEvent("REF-ORD", user.Email)
	ev.Metadata.OrderID = order.ID
	require.NoError(t, env.settlement.Apply(context.Background(), ev))

	updated, err := env.orderRepo.FindByID(order.ID)
	require.NoError(t, err)
	assert.Equal(t, 50000.0, updated.AmountPaid)
	assert.Equal(t, models.OrderStatusInProduction, updated.Status)
}

// TestSettlement_FirstInstallmentBindsOrderWithoutApplying - первый кусок
// рассрочки только привязывает заказ к плану, amount_paid не двигает;
// накопление начинается со второго куска
func TestSettlement_FirstInstallmentBindsOrderWithoutApplying(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, gateways.NewRegistryWith())
	user := env.createUser(t, "kaftan.client@example.com")
	plan := seedPlan(t, env, user, "", 150000, 3)

	order := &models.Order{
		UserID:      user.ID,
		Description: "Bespoke kaftan",
		TotalPrice:  150000,
		Status:      models.OrderStatusPendingPayment,
	}
	require.NoError(t, env.orderRepo.Create(order))

	ev1 := installmentEvent(plan, 1, 3, 50000, "REF-KFT-1", user.Email, "")
	ev1.Metadata.OrderID = order.ID
	require.NoError(t, env.settlement.Apply(context.Background(), ev1))

	bound, err := env.orderRepo.FindByID(order.ID)
	require.NoError(t, err)
	assert.Equal(t, plan.ID, bound.TransactionID)
	assert.Zero(t, bound.AmountPaid)

	ev2 := installmentEvent(plan, 2, 3, 50000, "REF-KFT-2", user.Email, "")
	ev2.Metadata.OrderID = order.ID
	require.NoError(t, env.settlement.Apply(context.Background(), ev2))

	updated, err := env.orderRepo.FindByID(order.ID)
	require.NoError(t, err)
	assert.Equal(t, 50000.0, updated.AmountPaid)
}

// TestSettlement_InstallmentGuardRejectsSecondReference - guard по
// статусу в UPDATE двигает кусок ровно один раз: конкурент с другим
// reference получает false, а не молчаливый успех
func TestSettlement_InstallmentGuardRejectsSecondReference(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, gateways.NewRegistryWith())
	user := env.createUser(t, "race.payer@example.com")
	plan := seedPlan(t, env, user, "", 150000, 3)

	inst, err := env.txRepo.FindInstallment(plan.ID, 2)
	require.NoError(t, err)

	flipped, err := env.txRepo.MarkInstallmentPaid(inst.ID, "REF-WIN", time.Now())
	require.NoError(t, err)
	require.True(t, flipped)

	flipped, err = env.txRepo.MarkInstallmentPaid(inst.ID, "REF-LOSE", time.Now())
	require.NoError(t, err)
	assert.False(t, flipped)

	// Проигравший reference на куске не записан
	updated, err := env.txRepo.FindInstallment(plan.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, "REF-WIN", updated.GatewayReference)
	assert.Equal(t, models.InstallmentStatusPaid, updated.Status)
}

// TestSettlement_HandlePush_PaystackSignature - подпись считается от
// сырых байт; подмененное тело отвергается без мутаций
func TestSettlement_HandlePush_PaystackSignature(t *testing.T) {
	t.Parallel()

	const secret = "sk_test_signing"
	cfg := testConfig()
	cfg.Payments.Paystack = config.GatewayConfig{
		SecretKey:     secret,
		SigningSecret: secret,
		BaseURL:       "http://paystack.invalid",
	}
	registry := gateways.NewRegistry(cfg)
	env := newTestEnv(t, registry)

	body := []byte(`{
		"event": "charge.success",
		"data": {
			"reference": "REF-PUSH",
			"amount": 5000000,
			"currency": "NGN",
			"status": "success",
			"customer": {"email": "push@example.com"},
			"metadata": {"kind": "one_time", "email": "push@example.com"}
		}
	}`)
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	signature := hex.EncodeToString(mac.Sum(nil))

	require.NoError(t, env.settlement.HandlePush(context.Background(), "paystack", body, signature))

	// Кобо сконвертированы в основные единицы
	tx, err := env.txRepo.FindSucceededByReference("REF-PUSH")
	require.NoError(t, err)
	assert.Equal(t, 50000.0, tx.Amount)

	// Та же подпись с подмененным телом — отказ без записи
	tampered := append([]byte{}, body...)
	tampered[len(tampered)-2] = ' '
	err = env.settlement.HandlePush(context.Background(), "paystack", tampered, signature)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrSignatureInvalid))
	assert.EqualValues(t, 1, env.countTransactions(t))
}

// TestSettlement_HandlePush_UnknownGateway
func TestSettlement_HandlePush_UnknownGateway(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, gateways.NewRegistryWith())
	err := env.settlement.HandlePush(context.Background(), "stripe", []byte("{}"), "sig")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnknownGateway))
}

// TestSettlement_PullVerify_AppliesConfirmedPayment - pull-верификация
// применяет платеж только после подтверждения шлюзом
func TestSettlement_PullVerify_AppliesConfirmedPayment(t *testing.T) {
	t.Parallel()

	gw := &fakePullGateway{
		fakeGateway: fakeGateway{name: "paystack"},
		outcome: &gateways.SettlementOutcome{
			Reference: "REF-PULL",
			Succeeded: true,
			Amount:    50000,
			Currency:  "NGN",
			Metadata: gateways.Metadata{
				Kind:  models.TransactionKindOneTime,
				Email: "pull@example.com",
			},
		},
	}
	env := newTestEnv(t, gateways.NewRegistryWith(gw))

	confirmed, err := env.settlement.HandlePullVerify(context.Background(), "paystack", "REF-PULL")
	require.NoError(t, err)
	assert.True(t, confirmed)
	assert.EqualValues(t, 1, env.countSucceededByReference(t, "REF-PULL"))

	// Повторный pull по тому же reference — тоже успех, без второй записи
	confirmed, err = env.settlement.HandlePullVerify(context.Background(), "paystack", "REF-PULL")
	require.NoError(t, err)
	assert.True(t, confirmed)
	assert.EqualValues(t, 1, env.countSucceededByReference(t, "REF-PULL"))
}

// TestSettlement_PullVerify_PendingPaymentIsNotApplied - шлюз еще не
// подтвердил платеж; никаких мутаций
func TestSettlement_PullVerify_PendingPaymentIsNotApplied(t *testing.T) {
	t.Parallel()

	gw := &fakePullGateway{
		fakeGateway: fakeGateway{name: "paystack"},
		outcome:     &gateways.SettlementOutcome{Reference: "REF-WAIT", Succeeded: false},
	}
	env := newTestEnv(t, gateways.NewRegistryWith(gw))

	confirmed, err := env.settlement.HandlePullVerify(context.Background(), "paystack", "REF-WAIT")
	require.NoError(t, err)
	assert.False(t, confirmed)
	assert.EqualValues(t, 0, env.countTransactions(t))
}

// TestSettlement_PullVerify_UnsupportedGateway - шлюз без pull-верификации
// отвечает понятной ошибкой
func TestSettlement_PullVerify_UnsupportedGateway(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{name: "flutterwave"}
	env := newTestEnv(t, gateways.NewRegistryWith(gw))

	_, err := env.settlement.HandlePullVerify(context.Background(), "flutterwave", "REF-X")
	require.Error(t, err)
	var appErr *appErrors.AppError
	require.True(t, appErrors.As(err, &appErr))
	assert.Contains(t, appErr.Message, "does not support pull verification")
}

// TestSettlement_EnrollmentHookFailureDoesNotRevertPayment - падение
// downstream-хука (несуществующий курс) не откатывает платеж
func TestSettlement_EnrollmentHookFailureDoesNotRevertPayment(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, gateways.NewRegistryWith())

	ev := successEvent("REF-SIDE", "side@example.com")
	ev.Metadata.CourseID = "missing-course-id"

	// Apply успешен: платеж записан, падение хука только залогировано
	require.NoError(t, env.settlement.Apply(context.Background(), ev))
	assert.EqualValues(t, 1, env.countSucceededByReference(t, "REF-SIDE"))

	user, err := env.userRepo.FindByEmail("side@example.com")
	require.NoError(t, err)
	_, err = env.enrollmentRepo.FindByUserAndCourse(user.ID, "missing-course-id")
	assert.Error(t, err, "зачисление не создано, но платеж остался")
}

func TestSettlement_UnknownInstallmentPlan(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, gateways.NewRegistryWith())
	ev := &gateways.Event{
		Gateway:   "paystack",
		Reference: "REF-NOPLAN",
		Amount:    50000,
		Currency:  "NGN",
		Succeeded: true,
		Metadata: gateways.Metadata{
			Kind:              models.TransactionKindInstallment,
			Email:             "ghost@example.com",
			TransactionID:     fmt.Sprintf("%d", time.Now().UnixNano()),
			InstallmentNumber: 1,
			TotalInstallments: 3,
		},
	}

	err := env.settlement.Apply(context.Background(), ev)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrPlanNotFound))
	assert.EqualValues(t, 0, env.countTransactions(t))
}
