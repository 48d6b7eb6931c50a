package outbox

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderCreatedPayload is the v1 data body of an order.created event.
type OrderCreatedPayload struct {
	OrderID       uuid.UUID       `json:"orderId"`
	OrderNumber   string          `json:"orderNumber"`
	Total         decimal.Decimal `json:"total"`
	Currency      string          `json:"currency"`
	PaymentMethod string          `json:"paymentMethod"`
	ItemCount     int             `json:"itemCount"`
}

// CartMergedPayload is the v1 data body of a cart.merged event.
type CartMergedPayload struct {
	CartID       uuid.UUID `json:"cartId"`
	GuestKey     string    `json:"guestKey"`
	LinesMerged  int       `json:"linesMerged"`
	LinesSkipped int       `json:"linesSkipped"`
}
