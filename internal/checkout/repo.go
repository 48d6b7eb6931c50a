package checkout

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sipwell/storefront-backend/pkg/db/models"
	"github.com/sipwell/storefront-backend/pkg/enums"
)

// Repository encapsulates checkout session persistence. Sessions are the
// durable form of the state machine; every transition is a row update.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a checkout session repository bound to the
// provided gorm DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new session row.
func (r *Repository) Create(ctx context.Context, session *models.CheckoutSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

// FindForOwner loads a session scoped to its owner.
func (r *Repository) FindForOwner(ctx context.Context, sessionID uuid.UUID, ownerKey string) (*models.CheckoutSession, error) {
	var session models.CheckoutSession
	if err := r.db.WithContext(ctx).
		First(&session, "id = ? AND owner_key = ?", sessionID, ownerKey).
		Error; err != nil {
		return nil, err
	}
	return &session, nil
}

// FindByGatewayOrderID resolves the session a gateway callback belongs to.
func (r *Repository) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.CheckoutSession, error) {
	var session models.CheckoutSession
	if err := r.db.WithContext(ctx).
		First(&session, "gateway_order_id = ?", gatewayOrderID).
		Error; err != nil {
		return nil, err
	}
	return &session, nil
}

// Save persists the full session row.
func (r *Repository) Save(ctx context.Context, session *models.CheckoutSession) error {
	return r.db.WithContext(ctx).Save(session).Error
}

// TransitionState moves a session between states with a guard on the
// expected current state. Zero rows affected means another writer got there
// first and the caller must re-read.
func (r *Repository) TransitionState(ctx context.Context, sessionID uuid.UUID, from, to enums.CheckoutState) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.CheckoutSession{}).
		Where("id = ? AND state = ?", sessionID, from).
		Update("state", to)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
