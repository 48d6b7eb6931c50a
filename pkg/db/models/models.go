package models

// All returns every persisted model, in dependency order, for auto-migration.
func All() []any {
	return []any{
		&User{},
		&Address{},
		&SubscriptionPlan{},
		&PlanRequirement{},
		&Coupon{},
		&CoinBalance{},
		&CoinLedgerEvent{},
		&CartRecord{},
		&CartLine{},
		&CheckoutSession{},
		&Order{},
		&OrderLineItem{},
		&OutboxEvent{},
	}
}
