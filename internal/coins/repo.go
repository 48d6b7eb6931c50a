package coins

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sipwell/storefront-backend/pkg/db/models"
	pkgerrors "github.com/sipwell/storefront-backend/pkg/errors"
)

// DebitReasonOrder marks ledger events written when an order consumes coins.
const DebitReasonOrder = "order_redemption"

// Repository encapsulates coin balances and their append-only ledger.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a coin repository bound to the provided gorm DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// BalanceForUser returns the user's balance, or a zero balance with the
// default conversion rate when no row exists yet.
func (r *Repository) BalanceForUser(ctx context.Context, userID uuid.UUID) (models.CoinBalance, error) {
	var balance models.CoinBalance
	err := r.db.WithContext(ctx).First(&balance, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.CoinBalance{
			UserID:         userID,
			Balance:        decimal.Zero,
			ConversionRate: decimal.NewFromInt(1),
		}, nil
	}
	if err != nil {
		return models.CoinBalance{}, err
	}
	return balance, nil
}

// DebitTx deducts coins inside the caller's transaction and appends the
// matching ledger event. The guarded UPDATE keeps balances non-negative even
// under concurrent checkouts.
func (r *Repository) DebitTx(tx *gorm.DB, userID uuid.UUID, coins decimal.Decimal, orderID uuid.UUID, reason string) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "debit requires a transaction")
	}
	if coins.LessThanOrEqual(decimal.Zero) {
		return pkgerrors.New(pkgerrors.CodeValidation, "debit amount must be positive")
	}

	result := tx.Model(&models.CoinBalance{}).
		Where("user_id = ? AND balance >= ?", userID, coins).
		Update("balance", gorm.Expr("balance - ?", coins))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "coin balance is insufficient")
	}

	event := models.CoinLedgerEvent{
		ID:      uuid.New(),
		UserID:  userID,
		OrderID: &orderID,
		Delta:   coins.Neg(),
		Reason:  reason,
	}
	return tx.Create(&event).Error
}

// LedgerForUser lists the user's ledger newest first, for account history.
func (r *Repository) LedgerForUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.CoinLedgerEvent, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var events []models.CoinLedgerEvent
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&events).
		Error; err != nil {
		return nil, err
	}
	return events, nil
}
