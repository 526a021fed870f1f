package handlers

// AppHandlers содержит все хэндлеры приложения.
type AppHandlers struct {
	AuthHandler         *AuthHandler
	CourseHandler       *CourseHandler
	PaymentHandler      *PaymentHandler
	EnrollmentHandler   *EnrollmentHandler
	OrderHandler        *OrderHandler
	NotificationHandler *NotificationHandler
}
