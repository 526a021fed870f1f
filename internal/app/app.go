package app

import (
	"context"
	"fmt"

	"stitchhub_backend/database"
	"stitchhub_backend/internal/config"
	"stitchhub_backend/internal/gateways"
	"stitchhub_backend/internal/handlers"
	"stitchhub_backend/internal/logger"
	"stitchhub_backend/internal/pkg/email"
	"stitchhub_backend/internal/repositories"
	"stitchhub_backend/internal/routes"
	"stitchhub_backend/internal/services"
	"stitchhub_backend/internal/validator"
	"stitchhub_backend/internal/workers"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func Run() {
	config.LoadConfig()
	cfg := config.AppConfig
	logger.Init(cfg.Server.Env)
	logger.Info("Logger initialized", "env", cfg.Server.Env)

	gormDB, err := database.Connect(cfg.Database.DSN)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	logger.Info("Database connected")

	if err := database.Migrate(gormDB); err != nil {
		logger.Fatal("Failed to run migrations", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ginRouter := SetupRouter(ctx, cfg, gormDB)

	address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Info(fmt.Sprintf("Server starting on %s", address))
	if err := ginRouter.Run(address); err != nil {
		logger.Fatal("Server startup error", "error", err)
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, gormDB *gorm.DB) *gin.Engine {
	// --- Инициализация репозиториев ---
	userRepo := repositories.NewUserRepository(gormDB)
	courseRepo := repositories.NewCourseRepository(gormDB)
	txRepo := repositories.NewTransactionRepository(gormDB)
	enrollmentRepo := repositories.NewEnrollmentRepository(gormDB)
	orderRepo := repositories.NewOrderRepository(gormDB)
	notificationRepo := repositories.NewNotificationRepository(gormDB)

	// --- Платежные шлюзы ---
	registry := gateways.NewRegistry(cfg)
	logger.Info("Payment gateways registered", "gateways", registry.Names())

	// --- Email ---
	emailSender := buildEmailSender(cfg)

	// --- Сервисы ---
	userService := services.NewUserService(userRepo)
	notificationService := services.NewNotificationService(notificationRepo, emailSender)
	enrollmentService := services.NewEnrollmentService(enrollmentRepo, courseRepo)
	checkoutService := services.NewCheckoutService(registry, txRepo, userRepo, courseRepo, notificationService, cfg)
	settlementService := services.NewSettlementService(
		gormDB, registry, txRepo, userRepo, orderRepo,
		enrollmentService, notificationService,
	)

	// --- Фоновые воркеры ---
	overdueWorker := workers.NewOverdueWorker(enrollmentService, cfg.Payments.GracePeriodDays)
	overdueWorker.Start(ctx)

	// --- Хэндлеры ---
	base := handlers.NewBaseHandler(validator.New())
	appHandlers := &handlers.AppHandlers{
		AuthHandler:         handlers.NewAuthHandler(base, userService),
		CourseHandler:       handlers.NewCourseHandler(base, courseRepo),
		PaymentHandler:      handlers.NewPaymentHandler(base, checkoutService, settlementService, txRepo),
		EnrollmentHandler:   handlers.NewEnrollmentHandler(base, enrollmentRepo),
		OrderHandler:        handlers.NewOrderHandler(base, orderRepo),
		NotificationHandler: handlers.NewNotificationHandler(base, notificationRepo),
	}

	ginRouter := gin.New()
	ginRouter.Use(gin.Recovery())

	routes.RegisterRoutes(ginRouter, appHandlers)
	return ginRouter
}

// buildEmailSender: без SMTP-хоста работаем на noop-отправителе,
// платежный контур от почты не зависит.
func buildEmailSender(cfg *config.Config) email.Sender {
	emailCfg := email.Config{
		SMTPHost:  cfg.Email.SMTPHost,
		SMTPPort:  cfg.Email.SMTPPort,
		Username:  cfg.Email.SMTPUsername,
		Password:  cfg.Email.SMTPPassword,
		FromEmail: cfg.Email.FromEmail,
		FromName:  cfg.Email.FromName,
	}
	sender, err := email.NewGomailSender(emailCfg)
	if err != nil {
		logger.Warn("SMTP not configured, emails disabled", "error", err.Error())
		return &email.NoopSender{}
	}
	return sender
}
