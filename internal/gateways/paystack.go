package gateways

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"

	"stitchhub_backend/internal/config"
)

const GatewayPaystack = "paystack"

// Paystack шлет суммы в кобо (минорные единицы, x100) и подписывает
// вебхуки HMAC-SHA512 от сырого тела под заголовком x-paystack-signature.
// Поддерживает pull-верификацию: GET /transaction/verify/:reference.
type Paystack struct {
	cfg    config.GatewayConfig
	client *http.Client
}

func NewPaystack(cfg config.GatewayConfig, client *http.Client) *Paystack {
	return &Paystack{cfg: cfg, client: client}
}

func (p *Paystack) Name() string { return GatewayPaystack }

type paystackInitRequest struct {
	Email       string   `json:"email"`
	Amount      int64    `json:"amount"` // kobo
	Currency    string   `json:"currency"`
	Reference   string   `json:"reference,omitempty"`
	CallbackURL string   `json:"callback_url,omitempty"`
	Metadata    Metadata `json:"metadata"`
}

type paystackEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (p *Paystack) CreateCheckoutSession(ctx context.Context, opts CheckoutOptions) (*CheckoutSession, error) {
	body := paystackInitRequest{
		Email:       opts.Email,
		Amount:      toKobo(opts.Amount),
		Currency:    opts.Currency,
		Reference:   opts.Reference,
		CallbackURL: opts.SuccessURL,
		Metadata:    opts.Metadata,
	}

	env, err := p.post(ctx, "/transaction/initialize", body)
	if err != nil {
		return nil, err
	}

	var data struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: bad initialize response: %v", ErrGatewayUnavailable, err)
	}

	return &CheckoutSession{
		SessionID:   data.AccessCode,
		Reference:   data.Reference,
		RedirectURL: data.AuthorizationURL,
	}, nil
}

type paystackWebhook struct {
	Event string `json:"event"`
	Data  struct {
		Reference string          `json:"reference"`
		Amount    int64           `json:"amount"` // kobo
		Currency  string          `json:"currency"`
		Status    string          `json:"status"`
		Customer  struct {
			Email string `json:"email"`
		} `json:"customer"`
		Metadata json.RawMessage `json:"metadata"`
	} `json:"data"`
}

// VerifySignature сверяет HMAC-SHA512 от сырых байт тела. Сравнение
// константное по времени; тело не пересериализуется до проверки.
func (p *Paystack) VerifySignature(payload []byte, signature string) (*Event, error) {
	mac := hmac.New(sha512.New, []byte(p.cfg.SigningSecret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return nil, ErrSignatureInvalid
	}

	var hook paystackWebhook
	if err := json.Unmarshal(payload, &hook); err != nil {
		return nil, fmt.Errorf("%w: malformed webhook body: %v", ErrInvalidRequest, err)
	}

	md, err := ParseMetadata(hook.Data.Metadata)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if md.Email == "" {
		md.Email = hook.Data.Customer.Email
	}

	return &Event{
		Gateway:   GatewayPaystack,
		Reference: hook.Data.Reference,
		Amount:    fromKobo(hook.Data.Amount),
		Currency:  hook.Data.Currency,
		Succeeded: hook.Event == "charge.success" && hook.Data.Status == "success",
		Metadata:  md,
	}, nil
}

// PullVerify синхронно спрашивает Paystack о судьбе reference.
func (p *Paystack) PullVerify(ctx context.Context, reference string) (*SettlementOutcome, error) {
	env, err := p.get(ctx, "/transaction/verify/"+reference)
	if err != nil {
		return nil, err
	}

	var data struct {
		Reference string          `json:"reference"`
		Amount    int64           `json:"amount"`
		Currency  string          `json:"currency"`
		Status    string          `json:"status"`
		Customer  struct {
			Email string `json:"email"`
		} `json:"customer"`
		Metadata json.RawMessage `json:"metadata"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: bad verify response: %v", ErrGatewayUnavailable, err)
	}

	md, err := ParseMetadata(data.Metadata)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if md.Email == "" {
		md.Email = data.Customer.Email
	}

	return &SettlementOutcome{
		Reference: data.Reference,
		Succeeded: data.Status == "success",
		Amount:    fromKobo(data.Amount),
		Currency:  data.Currency,
		Metadata:  md,
	}, nil
}

func (p *Paystack) CancelRecurring(ctx context.Context, id string) error {
	_, err := p.post(ctx, "/subscription/disable", map[string]string{"code": id})
	return err
}

func (p *Paystack) GetRecurringStatus(ctx context.Context, id string) (string, error) {
	env, err := p.get(ctx, "/subscription/"+id)
	if err != nil {
		return "", err
	}
	var data struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return "", fmt.Errorf("%w: bad subscription response: %v", ErrGatewayUnavailable, err)
	}
	return data.Status, nil
}

// --- HTTP plumbing ---

func (p *Paystack) post(ctx context.Context, path string, body interface{}) (*paystackEnvelope, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return p.do(req)
}

func (p *Paystack) get(ctx context.Context, path string) (*paystackEnvelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+path, nil)
	if err != nil {
		return nil, err
	}
	return p.do(req)
}

func (p *Paystack) do(req *http.Request) (*paystackEnvelope, error) {
	req.Header.Set("Authorization", "Bearer "+p.cfg.SecretKey)

	resp, err := p.client.Do(req)
	if err != nil {
		// Таймаут и сетевые ошибки — повторяемо для вызывающего.
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: paystack returned %d", ErrGatewayUnavailable, resp.StatusCode)
	}

	var env paystackEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: non-json response (%d)", ErrGatewayUnavailable, resp.StatusCode)
	}

	if resp.StatusCode >= 400 || !env.Status {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, env.Message)
	}
	return &env, nil
}

func toKobo(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func fromKobo(amount int64) float64 {
	return float64(amount) / 100
}
