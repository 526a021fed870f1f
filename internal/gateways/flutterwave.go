package gateways

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"stitchhub_backend/internal/config"
)

const GatewayFlutterwave = "flutterwave"

// Flutterwave шлет суммы в основных единицах и вместо HMAC кладет в
// заголовок verif-hash заранее сконфигурированный секрет. Pull-верификации
// по голому tx_ref нет — только push.
type Flutterwave struct {
	cfg    config.GatewayConfig
	client *http.Client
}

func NewFlutterwave(cfg config.GatewayConfig, client *http.Client) *Flutterwave {
	return &Flutterwave{cfg: cfg, client: client}
}

func (f *Flutterwave) Name() string { return GatewayFlutterwave }

type flutterwavePaymentRequest struct {
	TxRef       string   `json:"tx_ref"`
	Amount      float64  `json:"amount"` // major units
	Currency    string   `json:"currency"`
	RedirectURL string   `json:"redirect_url,omitempty"`
	Customer    struct {
		Email string `json:"email"`
	} `json:"customer"`
	Meta Metadata `json:"meta"`
}

type flutterwaveEnvelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (f *Flutterwave) CreateCheckoutSession(ctx context.Context, opts CheckoutOptions) (*CheckoutSession, error) {
	body := flutterwavePaymentRequest{
		TxRef:       opts.Reference,
		Amount:      opts.Amount,
		Currency:    opts.Currency,
		RedirectURL: opts.SuccessURL,
		Meta:        opts.Metadata,
	}
	body.Customer.Email = opts.Email

	env, err := f.request(ctx, http.MethodPost, "/v3/payments", body)
	if err != nil {
		return nil, err
	}

	var data struct {
		Link string `json:"link"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: bad payments response: %v", ErrGatewayUnavailable, err)
	}

	return &CheckoutSession{
		SessionID:   opts.Reference,
		Reference:   opts.Reference,
		RedirectURL: data.Link,
	}, nil
}

type flutterwaveWebhook struct {
	Event string `json:"event"`
	Data  struct {
		TxRef    string  `json:"tx_ref"`
		FlwRef   string  `json:"flw_ref"`
		Amount   float64 `json:"amount"`
		Currency string  `json:"currency"`
		Status   string  `json:"status"`
		Customer struct {
			Email string `json:"email"`
		} `json:"customer"`
	} `json:"data"`
	Meta json.RawMessage `json:"meta_data"`
}

// VerifySignature сравнивает verif-hash с секретом констант-тайм.
// Никакой "похожий, но не равный" заголовок не проходит.
func (f *Flutterwave) VerifySignature(payload []byte, signature string) (*Event, error) {
	secret := []byte(f.cfg.SigningSecret)
	if len(secret) == 0 ||
		subtle.ConstantTimeCompare(secret, []byte(signature)) != 1 {
		return nil, ErrSignatureInvalid
	}

	var hook flutterwaveWebhook
	if err := json.Unmarshal(payload, &hook); err != nil {
		return nil, fmt.Errorf("%w: malformed webhook body: %v", ErrInvalidRequest, err)
	}

	md, err := ParseMetadata(hook.Meta)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if md.Email == "" {
		md.Email = hook.Data.Customer.Email
	}

	return &Event{
		Gateway:   GatewayFlutterwave,
		Reference: hook.Data.TxRef,
		Amount:    hook.Data.Amount,
		Currency:  hook.Data.Currency,
		Succeeded: hook.Event == "charge.completed" && hook.Data.Status == "successful",
		Metadata:  md,
	}, nil
}

func (f *Flutterwave) CancelRecurring(ctx context.Context, id string) error {
	_, err := f.request(ctx, http.MethodPut, "/v3/subscriptions/"+id+"/cancel", nil)
	return err
}

func (f *Flutterwave) GetRecurringStatus(ctx context.Context, id string) (string, error) {
	env, err := f.request(ctx, http.MethodGet, "/v3/subscriptions/"+id, nil)
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

func (f *Flutterwave) request(ctx context.Context, method, path string, body interface{}) (*flutterwaveEnvelope, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, f.cfg.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+f.cfg.SecretKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: flutterwave returned %d", ErrGatewayUnavailable, resp.StatusCode)
	}

	var env flutterwaveEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: non-json response (%d)", ErrGatewayUnavailable, resp.StatusCode)
	}

	if resp.StatusCode >= 400 || env.Status != "success" {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, env.Message)
	}
	return &env, nil
}
