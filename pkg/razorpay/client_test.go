package razorpay

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/sipwell/storefront-backend/pkg/config"
	"github.com/sipwell/storefront-backend/pkg/enums"
	"github.com/sipwell/storefront-backend/pkg/logger"
)

func newTestLogger() *logger.Logger {
	return logger.New(logger.Options{
		ServiceName: "razorpay-test",
		Level:       logger.ParseLevel("error"),
	})
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	client, err := NewClient(context.Background(), config.RazorpayConfig{
		KeyID:     "rzp_test_key",
		KeySecret: "test-secret",
	}, newTestLogger())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func sign(secret, message string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestNewClientValidatesCredentials(t *testing.T) {
	logg := newTestLogger()
	ctx := context.Background()

	if _, err := NewClient(ctx, config.RazorpayConfig{KeySecret: "s"}, logg); err == nil {
		t.Fatal("expected missing key id error")
	}
	if _, err := NewClient(ctx, config.RazorpayConfig{KeyID: "k"}, logg); err == nil {
		t.Fatal("expected missing key secret error")
	}
	if _, err := NewClient(ctx, config.RazorpayConfig{KeyID: "k", KeySecret: "s"}, nil); err == nil {
		t.Fatal("expected missing logger error")
	}
}

func TestVerifyPaymentSignature(t *testing.T) {
	client := newTestClient(t)

	good := sign("test-secret", "order_123|pay_456")
	if !client.VerifyPaymentSignature("order_123", "pay_456", good) {
		t.Fatal("expected valid signature to verify")
	}
	if client.VerifyPaymentSignature("order_123", "pay_456", good+"0") {
		t.Fatal("tampered signature must not verify")
	}
	if client.VerifyPaymentSignature("order_999", "pay_456", good) {
		t.Fatal("signature for a different order must not verify")
	}
	if client.VerifyPaymentSignature("", "pay_456", good) {
		t.Fatal("blank order id must not verify")
	}
}

func TestVerifyWebhookSignatureFallsBackToKeySecret(t *testing.T) {
	client := newTestClient(t)
	body := []byte(`{"event":"payment.captured"}`)

	if !client.VerifyWebhookSignature(body, sign("test-secret", string(body))) {
		t.Fatal("expected key-secret fallback to verify")
	}
	if client.VerifyWebhookSignature(body, sign("other", string(body))) {
		t.Fatal("wrong secret must not verify")
	}
}

func TestIntentCreateParams(t *testing.T) {
	params := IntentCreateParams{
		AmountMinorUnits: 87000,
		Currency:         enums.CurrencyINR,
		Receipt:          "ord-42",
		Notes:            map[string]string{"checkout_session": "cs-1"},
	}
	if err := params.validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}

	req := params.toOrderRequest()
	if req["amount"] != int64(87000) {
		t.Fatalf("unexpected amount %v", req["amount"])
	}
	if req["currency"] != "INR" {
		t.Fatalf("unexpected currency %v", req["currency"])
	}
	if req["receipt"] != "ord-42" {
		t.Fatalf("unexpected receipt %v", req["receipt"])
	}

	if err := (IntentCreateParams{AmountMinorUnits: 0, Currency: enums.CurrencyINR}).validate(); err == nil {
		t.Fatal("expected zero amount to be rejected")
	}
	if err := (IntentCreateParams{AmountMinorUnits: 100, Currency: "XYZ"}).validate(); err == nil {
		t.Fatal("expected invalid currency to be rejected")
	}
}
