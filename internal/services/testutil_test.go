package services

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"stitchhub_backend/database"
	"stitchhub_backend/internal/config"
	"stitchhub_backend/internal/gateways"
	"stitchhub_backend/internal/models"
	"stitchhub_backend/internal/pkg/email"
	"stitchhub_backend/internal/repositories"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var testDBSeq atomic.Int64

// newTestDB поднимает изолированную in-memory sqlite БД с полной схемой.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, testDBSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Payments.DefaultCurrency = "NGN"
	cfg.Payments.GracePeriodDays = 3
	cfg.Payments.MinInstallmentPeriods = 3
	cfg.Payments.GatewayTimeoutSeconds = 5
	cfg.Payments.SuccessURL = "https://stitchhub.test/success"
	cfg.Payments.CancelURL = "https://stitchhub.test/cancel"
	return cfg
}

// fakeGateway записывает последний запрос к шлюзу и отдает
// сконфигурированный ответ.
type fakeGateway struct {
	name     string
	failWith error
	calls    int
	lastOpts gateways.CheckoutOptions
}

func (f *fakeGateway) Name() string { return f.name }

func (f *fakeGateway) CreateCheckoutSession(_ context.Context, opts gateways.CheckoutOptions) (*gateways.CheckoutSession, error) {
	f.calls++
	f.lastOpts = opts
	if f.failWith != nil {
		return nil, f.failWith
	}
	return &gateways.CheckoutSession{
		SessionID:   "sess-" + opts.Reference,
		Reference:   opts.Reference,
		RedirectURL: "https://pay.test/" + opts.Reference,
	}, nil
}

func (f *fakeGateway) VerifySignature(payload []byte, signature string) (*gateways.Event, error) {
	return nil, gateways.ErrSignatureInvalid
}

func (f *fakeGateway) CancelRecurring(context.Context, string) error { return nil }

func (f *fakeGateway) GetRecurringStatus(context.Context, string) (string, error) {
	return "active", nil
}

// fakePullGateway дополнительно умеет pull-верификацию.
type fakePullGateway struct {
	fakeGateway
	outcome *gateways.SettlementOutcome
	pullErr error
}

func (f *fakePullGateway) PullVerify(context.Context, string) (*gateways.SettlementOutcome, error) {
	if f.pullErr != nil {
		return nil, f.pullErr
	}
	return f.outcome, nil
}

// testEnv — собранный на sqlite граф сервисов платежной подсистемы.
type testEnv struct {
	db                *gorm.DB
	cfg               *config.Config
	txRepo            repositories.TransactionRepository
	userRepo          repositories.UserRepository
	courseRepo        repositories.CourseRepository
	orderRepo         repositories.OrderRepository
	enrollmentRepo    repositories.EnrollmentRepository
	notificationRepo  repositories.NotificationRepository
	enrollmentService   EnrollmentService
	notificationService NotificationService
	settlement          SettlementService
}

func newTestEnv(t *testing.T, registry *gateways.Registry) *testEnv {
	t.Helper()

	db := newTestDB(t)
	env := &testEnv{
		db:               db,
		cfg:              testConfig(),
		txRepo:           repositories.NewTransactionRepository(db),
		userRepo:         repositories.NewUserRepository(db),
		courseRepo:       repositories.NewCourseRepository(db),
		orderRepo:        repositories.NewOrderRepository(db),
		enrollmentRepo:   repositories.NewEnrollmentRepository(db),
		notificationRepo: repositories.NewNotificationRepository(db),
	}
	env.enrollmentService = NewEnrollmentService(env.enrollmentRepo, env.courseRepo)
	env.notificationService = NewNotificationService(env.notificationRepo, &email.NoopSender{})
	env.settlement = NewSettlementService(
		db, registry, env.txRepo, env.userRepo, env.orderRepo,
		env.enrollmentService, env.notificationService,
	)
	return env
}

func (env *testEnv) createUser(t *testing.T, email string) *models.User {
	t.Helper()
	user := &models.User{
		Name:         "Test User",
		Email:        email,
		PasswordHash: "x",
		Role:         models.UserRoleStudent,
		Status:       models.UserStatusActive,
	}
	require.NoError(t, env.userRepo.Create(user))
	return user
}

func (env *testEnv) createCourse(t *testing.T, price float64, allowInstallments bool) *models.Course {
	t.Helper()
	course := &models.Course{
		Title:             "Pattern Drafting Basics",
		Price:             price,
		AllowInstallments: allowInstallments,
		IsActive:          true,
	}
	require.NoError(t, env.courseRepo.Create(course))
	return course
}

func (env *testEnv) countTransactions(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, env.db.Model(&models.Transaction{}).Count(&n).Error)
	return n
}

func mustMarkInstallmentPaid(t *testing.T, env *testEnv, installmentID, reference string) {
	t.Helper()
	flipped, err := env.txRepo.MarkInstallmentPaid(installmentID, reference, time.Now())
	require.NoError(t, err)
	require.True(t, flipped)
}

func (env *testEnv) countSucceededByReference(t *testing.T, reference string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, env.db.Model(&models.Transaction{}).
		Where("gateway_reference = ? AND status = ?", reference, models.TransactionStatusSucceeded).
		Count(&n).Error)
	return n
}
