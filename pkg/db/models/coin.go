package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CoinBalance is the loyalty-point balance for a user. Read-only to pricing;
// only the order finalizer debits it, through an appended ledger event.
type CoinBalance struct {
	UserID         uuid.UUID       `gorm:"column:user_id;type:uuid;primaryKey"`
	Balance        decimal.Decimal `gorm:"column:balance;type:numeric(12,2);not null;default:0"`
	ConversionRate decimal.Decimal `gorm:"column:conversion_rate;type:numeric(12,4);not null;default:1"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// CoinLedgerEvent is an append-only record of a balance change. Debits carry
// a negative delta.
type CoinLedgerEvent struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID       `gorm:"column:user_id;type:uuid;not null;index"`
	OrderID   *uuid.UUID      `gorm:"column:order_id;type:uuid"`
	Delta     decimal.Decimal `gorm:"column:delta;type:numeric(12,2);not null"`
	Reason    string          `gorm:"column:reason;type:text;not null"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}
