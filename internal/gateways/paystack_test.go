package gateways

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"stitchhub_backend/internal/config"
	"stitchhub_backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paystackSign(secret string, payload []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func newPaystack(baseURL string) *Paystack {
	return NewPaystack(config.GatewayConfig{
		SecretKey:     "sk_test_key",
		SigningSecret: "sk_test_key",
		BaseURL:       baseURL,
	}, &http.Client{})
}

// TestPaystack_VerifySignature - валидная подпись от сырых байт проходит,
// суммы конвертируются из кобо
func TestPaystack_VerifySignature(t *testing.T) {
	t.Parallel()

	p := newPaystack("")
	body := []byte(`{
		"event": "charge.success",
		"data": {
			"reference": "REF-42",
			"amount": 1500000,
			"currency": "NGN",
			"status": "success",
			"customer": {"email": "fallback@example.com"},
			"metadata": {"kind": "one_time"}
		}
	}`)

	ev, err := p.VerifySignature(body, paystackSign("sk_test_key", body))
	require.NoError(t, err)

	assert.Equal(t, GatewayPaystack, ev.Gateway)
	assert.Equal(t, "REF-42", ev.Reference)
	assert.Equal(t, 15000.0, ev.Amount, "кобо -> основные единицы")
	assert.True(t, ev.Succeeded)
	// Email подставлен из customer, раз metadata его не несет
	assert.Equal(t, "fallback@example.com", ev.Metadata.Email)
}

// TestPaystack_VerifySignature_Tampered - та же подпись над измененным
// телом отвергается
func TestPaystack_VerifySignature_Tampered(t *testing.T) {
	t.Parallel()

	p := newPaystack("")
	body := []byte(`{"event":"charge.success","data":{"reference":"REF-1","amount":100,"status":"success"}}`)
	signature := paystackSign("sk_test_key", body)

	tampered := []byte(`{"event":"charge.success","data":{"reference":"REF-1","amount":999900,"status":"success"}}`)
	_, err := p.VerifySignature(tampered, signature)
	assert.ErrorIs(t, err, ErrSignatureInvalid)

	_, err = p.VerifySignature(body, "")
	assert.ErrorIs(t, err, ErrSignatureInvalid)

	// Подпись другим секретом
	_, err = p.VerifySignature(body, paystackSign("wrong-secret", body))
	assert.ErrorIs(t, err, ErrSignatureInvalid)
}

// TestPaystack_VerifySignature_FailedCharge - валидная подпись, но
// событие не charge.success
func TestPaystack_VerifySignature_FailedCharge(t *testing.T) {
	t.Parallel()

	p := newPaystack("")
	body := []byte(`{
		"event": "charge.failed",
		"data": {
			"reference": "REF-F",
			"amount": 100000,
			"status": "failed",
			"customer": {"email": "x@example.com"},
			"metadata": {"kind": "one_time"}
		}
	}`)

	ev, err := p.VerifySignature(body, paystackSign("sk_test_key", body))
	require.NoError(t, err)
	assert.False(t, ev.Succeeded)
}

// TestPaystack_CreateCheckoutSession - сумма уходит в кобо, metadata
// передается вербатим
func TestPaystack_CreateCheckoutSession(t *testing.T) {
	t.Parallel()

	var got paystackInitRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transaction/initialize", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":true,"message":"Authorization URL created","data":{
			"authorization_url":"https://checkout.paystack.com/abc",
			"access_code":"abc","reference":"STH-1"}}`))
	}))
	defer srv.Close()

	p := newPaystack(srv.URL)
	session, err := p.CreateCheckoutSession(context.Background(), CheckoutOptions{
		Email:     "payer@example.com",
		Amount:    1234.56,
		Currency:  "NGN",
		Reference: "STH-1",
		Metadata: Metadata{
			Kind:          models.TransactionKindInstallment,
			TransactionID: "plan-1",
		},
	})
	require.NoError(t, err)

	assert.EqualValues(t, 123456, got.Amount, "основные единицы -> кобо")
	assert.Equal(t, "plan-1", got.Metadata.TransactionID)
	assert.Equal(t, "https://checkout.paystack.com/abc", session.RedirectURL)
	assert.Equal(t, "STH-1", session.Reference)
}

// TestPaystack_PullVerify
func TestPaystack_PullVerify(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transaction/verify/STH-9", r.URL.Path)
		w.Write([]byte(`{"status":true,"message":"Verification successful","data":{
			"reference":"STH-9","amount":5000000,"currency":"NGN","status":"success",
			"customer":{"email":"payer@example.com"},
			"metadata":{"kind":"one_time","email":"payer@example.com"}}}`))
	}))
	defer srv.Close()

	p := newPaystack(srv.URL)
	outcome, err := p.PullVerify(context.Background(), "STH-9")
	require.NoError(t, err)

	assert.True(t, outcome.Succeeded)
	assert.Equal(t, "STH-9", outcome.Reference)
	assert.Equal(t, 50000.0, outcome.Amount)
}

// TestPaystack_ErrorMapping - 5xx и сетевые ошибки ретраябельны,
// 4xx и status:false — нет
func TestPaystack_ErrorMapping(t *testing.T) {
	t.Parallel()

	t.Run("5xx is unavailable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		_, err := newPaystack(srv.URL).PullVerify(context.Background(), "REF")
		assert.ErrorIs(t, err, ErrGatewayUnavailable)
	})

	t.Run("network error is unavailable", func(t *testing.T) {
		_, err := newPaystack("http://127.0.0.1:1").PullVerify(context.Background(), "REF")
		assert.ErrorIs(t, err, ErrGatewayUnavailable)
	})

	t.Run("declined envelope is invalid request", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"status":false,"message":"Invalid key"}`))
		}))
		defer srv.Close()

		_, err := newPaystack(srv.URL).PullVerify(context.Background(), "REF")
		assert.ErrorIs(t, err, ErrInvalidRequest)
	})
}

func TestKoboConversion(t *testing.T) {
	t.Parallel()

	assert.EqualValues(t, 100, toKobo(1))
	assert.EqualValues(t, 123456, toKobo(1234.56))
	assert.EqualValues(t, 1, toKobo(0.01))
	assert.Equal(t, 1234.56, fromKobo(123456))
	assert.Equal(t, 0.01, fromKobo(1))
}
