package razorpay

import (
	"fmt"
	"strings"

	"github.com/sipwell/storefront-backend/pkg/enums"
)

// IntentCreateParams contains the fields required to register a gateway order.
type IntentCreateParams struct {
	AmountMinorUnits int64
	Currency         enums.Currency
	Receipt          string
	Notes            map[string]string
}

func (p IntentCreateParams) validate() error {
	if p.AmountMinorUnits <= 0 {
		return fmt.Errorf("amount must be positive, got %d", p.AmountMinorUnits)
	}
	if !p.Currency.IsValid() {
		return fmt.Errorf("invalid currency %q", p.Currency)
	}
	return nil
}

func (p IntentCreateParams) toOrderRequest() map[string]interface{} {
	req := map[string]interface{}{
		"amount":   p.AmountMinorUnits,
		"currency": string(p.Currency),
	}
	if trimmed := strings.TrimSpace(p.Receipt); trimmed != "" {
		req["receipt"] = trimmed
	}
	if len(p.Notes) > 0 {
		notes := make(map[string]interface{}, len(p.Notes))
		for k, v := range p.Notes {
			notes[k] = v
		}
		req["notes"] = notes
	}
	return req
}

// PaymentIntent is the gateway-side record awaiting payment. KeyID rides
// along so browser checkout widgets can open against the right account.
type PaymentIntent struct {
	GatewayOrderID   string `json:"gateway_order_id"`
	AmountMinorUnits int64  `json:"amount_minor_units"`
	Currency         string `json:"currency"`
	KeyID            string `json:"key_id"`
}
