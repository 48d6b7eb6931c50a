package enums

import "fmt"

// CheckoutState tracks a checkout attempt through the orchestration pipeline.
type CheckoutState string

const (
	CheckoutStateAwaitingAddress       CheckoutState = "awaiting_address"
	CheckoutStateAwaitingPaymentMethod CheckoutState = "awaiting_payment_method"
	CheckoutStateOnlinePaymentPending  CheckoutState = "online_payment_pending"
	CheckoutStateCashConfirmed         CheckoutState = "cash_confirmed"
	CheckoutStateVerifying             CheckoutState = "verifying"
	CheckoutStateCompleted             CheckoutState = "completed"
	CheckoutStateFailed                CheckoutState = "failed"
)

var validCheckoutStates = []CheckoutState{
	CheckoutStateAwaitingAddress,
	CheckoutStateAwaitingPaymentMethod,
	CheckoutStateOnlinePaymentPending,
	CheckoutStateCashConfirmed,
	CheckoutStateVerifying,
	CheckoutStateCompleted,
	CheckoutStateFailed,
}

func (c CheckoutState) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CheckoutState.
func (c CheckoutState) IsValid() bool {
	for _, candidate := range validCheckoutStates {
		if candidate == c {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are allowed from the state.
func (c CheckoutState) Terminal() bool {
	return c == CheckoutStateCompleted || c == CheckoutStateFailed
}

// ParseCheckoutState converts raw input into a CheckoutState.
func ParseCheckoutState(value string) (CheckoutState, error) {
	for _, candidate := range validCheckoutStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid checkout state %q", value)
}
