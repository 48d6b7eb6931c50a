package razorpay

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	rzp "github.com/razorpay/razorpay-go"

	"github.com/sipwell/storefront-backend/pkg/config"
	pkgerrors "github.com/sipwell/storefront-backend/pkg/errors"
	"github.com/sipwell/storefront-backend/pkg/logger"
)

var (
	errKeyIDRequired     = errors.New("razorpay key id is required")
	errKeySecretRequired = errors.New("razorpay key secret is required")
	errLoggerRequired    = errors.New("razorpay logger is required")
)

// Client wraps the Razorpay SDK with centralized logging, error mapping, and
// signature verification. It does not retry: a failed call is reported once
// and the caller decides whether a retry is safe.
type Client struct {
	sdk           *rzp.Client
	keyID         string
	keySecret     string
	webhookSecret string
	logger        *logger.Logger
}

// NewClient initializes the Razorpay wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.RazorpayConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	keyID := strings.TrimSpace(cfg.KeyID)
	if keyID == "" {
		return nil, errKeyIDRequired
	}
	keySecret := strings.TrimSpace(cfg.KeySecret)
	if keySecret == "" {
		return nil, errKeySecretRequired
	}

	c := &Client{
		sdk:           rzp.NewClient(keyID, keySecret),
		keyID:         keyID,
		keySecret:     keySecret,
		webhookSecret: strings.TrimSpace(cfg.WebhookSecret),
		logger:        logg,
	}

	logg.Info(ctx, "razorpay client initialized")
	return c, nil
}

// KeyID returns the public key id handed to browser checkout widgets.
func (c *Client) KeyID() string {
	if c == nil {
		return ""
	}
	return c.keyID
}

// CreateIntent registers a gateway order for the given amount. Any failure
// here happens before money moves, so it maps to GATEWAY_UNAVAILABLE
// regardless of the underlying cause.
func (c *Client) CreateIntent(ctx context.Context, params IntentCreateParams) (*PaymentIntent, error) {
	if err := params.validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGatewayUnavailable, err, "gateway intent rejected")
	}

	c.log(ctx, "request", "create_intent", map[string]any{
		"amount":   params.AmountMinorUnits,
		"currency": params.Currency,
		"receipt":  params.Receipt,
	})

	order, err := c.sdk.Order.Create(params.toOrderRequest(), nil)
	if err != nil {
		c.log(ctx, "error", "create_intent", map[string]any{"error": err.Error()})
		return nil, pkgerrors.Wrap(pkgerrors.CodeGatewayUnavailable, err, "razorpay create intent failed")
	}

	orderID, _ := order["id"].(string)
	if orderID == "" {
		err := fmt.Errorf("razorpay order response missing id")
		c.log(ctx, "error", "create_intent", map[string]any{"error": err.Error()})
		return nil, pkgerrors.Wrap(pkgerrors.CodeGatewayUnavailable, err, "razorpay create intent failed")
	}

	c.log(ctx, "response", "create_intent", map[string]any{"gateway_order_id": orderID})
	return &PaymentIntent{
		GatewayOrderID:   orderID,
		AmountMinorUnits: params.AmountMinorUnits,
		Currency:         string(params.Currency),
		KeyID:            c.keyID,
	}, nil
}

// VerifyPaymentSignature checks the client-reported completion triple against
// an HMAC-SHA256 of "<gateway order id>|<payment id>" under the key secret.
// A mismatch is a rejection, not an error; errors are reserved for misuse.
func (c *Client) VerifyPaymentSignature(gatewayOrderID, paymentID, signature string) bool {
	if gatewayOrderID == "" || paymentID == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(c.keySecret))
	mac.Write([]byte(gatewayOrderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// VerifyWebhookSignature checks a webhook body signature. Razorpay signs the
// raw body with the webhook secret; the key secret is the documented fallback
// when no webhook secret is configured.
func (c *Client) VerifyWebhookSignature(payload []byte, signature string) bool {
	secret := c.webhookSecret
	if secret == "" {
		secret = c.keySecret
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("razorpay %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("razorpay %s", phase))
	}
}

func redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"secret", "signature", "token", "email", "phone"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}
