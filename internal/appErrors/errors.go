package appErrors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode - тип для кодов ошибок
type ErrorCode string

// AppError - основная структура ошибки приложения
type AppError struct {
	Code     ErrorCode   `json:"code"`
	Message  string      `json:"message"`
	Details  interface{} `json:"details,omitempty"`
	Err      error       `json:"-"`
	HTTPCode int         `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is сравнивает AppError по коду: копии из WithDetails/WithError
// остаются "той же" ошибкой для errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Конструктор
func New(code ErrorCode, message string, httpCode int) *AppError {
	return &AppError{
		Code:     code,
		Message:  message,
		HTTPCode: httpCode,
	}
}

// С цепочкой ошибок
func Wrap(err error, code ErrorCode, message string, httpCode int) *AppError {
	return &AppError{
		Code:     code,
		Message:  message,
		Err:      err,
		HTTPCode: httpCode,
	}
}

func (e *AppError) WithDetails(details interface{}) *AppError {
	copied := *e
	copied.Details = details
	return &copied
}

func (e *AppError) WithError(err error) *AppError {
	copied := *e
	copied.Err = err
	return &copied
}

// Для маршалинга в JSON
func (e *AppError) MarshalJSON() ([]byte, error) {
	type alias struct {
		Code    ErrorCode   `json:"code"`
		Message string      `json:"message"`
		Details interface{} `json:"details,omitempty"`
	}
	return json.Marshal(&alias{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	})
}

// Is - обертка над стандартной функцией errors.Is
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As - обертка над стандартной функцией errors.As
func As(err error, target interface{}) bool {
	return stderrors.As(err, target)
}

// Предопределенные ошибки
var (
	// Аутентификация
	ErrInvalidCredentials = New(CodeInvalidCredentials, "Invalid email or password", http.StatusUnauthorized)
	ErrUnauthorized       = New(CodeUnauthorized, "Authentication required", http.StatusUnauthorized)
	ErrForbidden          = New(CodeForbidden, "Access denied", http.StatusForbidden)
	ErrInvalidToken       = New(CodeInvalidToken, "Invalid or expired token", http.StatusUnauthorized)

	// Ресурсы
	ErrUserNotFound   = New(CodeUserNotFound, "User not found", http.StatusNotFound)
	ErrCourseNotFound = New(CodeCourseNotFound, "Course not found", http.StatusNotFound)
	ErrPlanNotFound   = New(CodePlanNotFound, "Installment plan not found", http.StatusNotFound)

	// Валидация
	ErrValidationFailed = New(CodeValidationFailed, "Validation failed", http.StatusBadRequest)
	ErrInvalidRequest   = New(CodeInvalidRequest, "Invalid request", http.StatusBadRequest)

	// Платежи
	ErrGatewayUnavailable = New(CodeGatewayUnavailable, "Payment gateway is unavailable, try again later", http.StatusBadGateway)
	ErrSignatureInvalid   = New(CodeSignatureInvalid, "Webhook signature verification failed", http.StatusUnauthorized)
	// AlreadyPaid/DuplicateSettlement для вызывающего — не ошибка, а no-op успех.
	// Хендлеры сами решают, какой ответ отдать.
	ErrAlreadyPaid         = New(CodeAlreadyPaid, "Installment is already paid", http.StatusConflict)
	ErrDuplicateSettlement = New(CodeDuplicateSettlement, "Settlement already applied for this reference", http.StatusOK)
	ErrUnknownGateway      = New(CodeUnknownGateway, "Unknown payment gateway", http.StatusBadRequest)
)

// Функции-помощники для создания ошибок с деталями
func ValidationError(details interface{}) *AppError {
	return ErrValidationFailed.WithDetails(details)
}

func InternalError(err error) *AppError {
	return Wrap(err, CodeInternalError, "Internal server error", http.StatusInternalServerError)
}

// PartialSideEffectError сигнализирует операторам, что платеж записан,
// но downstream-хук упал. Платеж при этом никогда не откатывается.
func PartialSideEffectError(err error, reference string) *AppError {
	return Wrap(err, CodePartialSideEffect,
		fmt.Sprintf("Settlement %s recorded but a side effect failed", reference),
		http.StatusInternalServerError)
}

func NewBadRequestError(message string) *AppError {
	return New(CodeValidationFailed, message, http.StatusBadRequest)
}

func NewNotFoundError(message string) *AppError {
	return New(CodeUserNotFound, message, http.StatusNotFound)
}

func NewUnauthorizedError(message string) *AppError {
	return New(CodeUnauthorized, message, http.StatusUnauthorized)
}
