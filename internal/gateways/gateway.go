package gateways

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"stitchhub_backend/internal/config"
	"stitchhub_backend/internal/models"
)

// Ошибки адаптеров. Сервисный слой мапит их в appErrors.
var (
	// ErrGatewayUnavailable: сеть/таймаут/5xx — вызывающий может повторить.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	// ErrInvalidRequest: шлюз отверг запрос как невалидный.
	ErrInvalidRequest = errors.New("gateway rejected request")
	// ErrSignatureInvalid: подпись вебхука не сошлась. Жесткий отказ.
	ErrSignatureInvalid = errors.New("webhook signature invalid")
	ErrUnknownGateway   = errors.New("unknown gateway")
	// ErrPullNotSupported: шлюз не умеет синхронную проверку по reference.
	ErrPullNotSupported = errors.New("gateway does not support pull verification")
)

// CheckoutOptions — параметры создания платежной сессии.
// Amount всегда в основных единицах валюты; адаптер сам конвертирует,
// если провайдер ждет минорные единицы.
type CheckoutOptions struct {
	Email      string
	Amount     float64
	Currency   string
	Kind       models.TransactionKind
	Reference  string // наш reference; пустой — шлюз сгенерирует свой
	SuccessURL string
	CancelURL  string
	Metadata   Metadata
}

// CheckoutSession — результат создания сессии у шлюза.
type CheckoutSession struct {
	SessionID   string
	Reference   string
	RedirectURL string
}

// Event — нормализованное settlement-уведомление после проверки подписи.
type Event struct {
	Gateway   string
	Reference string
	Amount    float64 // основные единицы
	Currency  string
	Succeeded bool
	Metadata  Metadata
}

// SettlementOutcome — ответ шлюза на pull-верификацию reference.
type SettlementOutcome struct {
	Reference string
	Succeeded bool
	Amount    float64
	Currency  string
	Metadata  Metadata
}

// Gateway — общий контракт для обоих платежных провайдеров.
// Реализации stateless: всё состояние это креды из конфига.
type Gateway interface {
	Name() string
	CreateCheckoutSession(ctx context.Context, opts CheckoutOptions) (*CheckoutSession, error)
	// VerifySignature пересчитывает подпись по сырым байтам тела.
	// Любое расхождение — ErrSignatureInvalid, событие не парсится.
	VerifySignature(payload []byte, signature string) (*Event, error)
	CancelRecurring(ctx context.Context, id string) error
	GetRecurringStatus(ctx context.Context, id string) (string, error)
}

// PullVerifier — опциональная способность шлюза: синхронно спросить
// "прошел ли этот reference". Paystack умеет, Flutterwave нет.
type PullVerifier interface {
	PullVerify(ctx context.Context, reference string) (*SettlementOutcome, error)
}

// Registry отдает адаптер по имени. Оба создаются на старте из конфига.
type Registry struct {
	gateways map[string]Gateway
}

func NewRegistry(cfg *config.Config) *Registry {
	timeout := time.Duration(cfg.Payments.GatewayTimeoutSeconds) * time.Second
	client := &http.Client{Timeout: timeout}

	return &Registry{
		gateways: map[string]Gateway{
			GatewayPaystack:    NewPaystack(cfg.Payments.Paystack, client),
			GatewayFlutterwave: NewFlutterwave(cfg.Payments.Flutterwave, client),
		},
	}
}

// NewRegistryWith собирает реестр из готовых адаптеров.
func NewRegistryWith(gws ...Gateway) *Registry {
	m := make(map[string]Gateway, len(gws))
	for _, gw := range gws {
		m[gw.Name()] = gw
	}
	return &Registry{gateways: m}
}

func (r *Registry) Get(name string) (Gateway, error) {
	gw, ok := r.gateways[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGateway, name)
	}
	return gw, nil
}

// Names перечисляет зарегистрированные шлюзы (для ответов об ошибках).
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.gateways))
	for name := range r.gateways {
		names = append(names, name)
	}
	return names
}
