package dto

import "time"

// CheckoutRequest — запрос на создание платежной сессии.
// Ровно один из четырех сценариев (см. CheckoutService) определяется
// комбинацией kind / transaction_id / is_exact_subsequent_amount.
type CheckoutRequest struct {
	Gateway  string  `json:"gateway" validate:"required,is-gateway"`
	Amount   float64 `json:"amount" validate:"required,gt=0"`
	Currency string  `json:"currency,omitempty"`
	Kind     string  `json:"kind" validate:"required,is-transaction-kind"`

	CourseID string `json:"course_id,omitempty"`
	OrderID  string `json:"order_id,omitempty"`

	// Продолжение существующего плана.
	TransactionID     string `json:"transaction_id,omitempty"`
	InstallmentNumber int    `json:"installment_number,omitempty" validate:"omitempty,min=1"`

	// Новый план рассрочки. Потолок держит шаг расписания >= 1 дня
	// внутри 90-дневного окна.
	Periods int `json:"periods,omitempty" validate:"omitempty,min=1,max=90"`

	// Флаг "сумма уже поделена на кусок": оркестратор верит ему
	// и не трогает планировщик.
	IsExactSubsequentAmount bool `json:"is_exact_subsequent_amount,omitempty"`
}

type CheckoutResponse struct {
	RedirectURL   string                `json:"redirect_url"`
	Reference     string                `json:"reference"`
	TransactionID string                `json:"transaction_id,omitempty"`
	Installments  []InstallmentResponse `json:"installments,omitempty"`
}

type InstallmentResponse struct {
	Number  int       `json:"number"`
	Amount  float64   `json:"amount"`
	DueDate time.Time `json:"due_date"`
	Status  string    `json:"status"`
}

// PullVerifyRequest — клиент сообщает "я оплатил", подсистема сама
// переспрашивает шлюз.
type PullVerifyRequest struct {
	Gateway   string `json:"gateway" validate:"required,is-gateway"`
	Reference string `json:"reference" validate:"required"`
}

type PullVerifyResponse struct {
	Success bool `json:"success"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Token string `json:"token"`
}
