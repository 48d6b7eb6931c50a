package addresses

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sipwell/storefront-backend/pkg/db/models"
	pkgerrors "github.com/sipwell/storefront-backend/pkg/errors"
	"github.com/sipwell/storefront-backend/pkg/types"
)

// CreateAddressInput carries the fields accepted when saving an address.
type CreateAddressInput struct {
	Name       string  `json:"name" validate:"required"`
	Line1      string  `json:"line1" validate:"required"`
	Line2      *string `json:"line2"`
	City       string  `json:"city" validate:"required"`
	State      string  `json:"state" validate:"required"`
	PostalCode string  `json:"postalCode" validate:"required"`
	Country    string  `json:"country"`
	Phone      string  `json:"phone" validate:"required"`
	IsDefault  bool    `json:"isDefault"`
}

// Service exposes address book operations scoped to the owning user.
type Service interface {
	List(ctx context.Context, userID uuid.UUID) ([]models.Address, error)
	Get(ctx context.Context, addressID, userID uuid.UUID) (*models.Address, error)
	Create(ctx context.Context, userID uuid.UUID, input CreateAddressInput) (*models.Address, error)
	Delete(ctx context.Context, addressID, userID uuid.UUID) error
}

type service struct {
	repo *Repository
}

// NewService builds an address service over the repository.
func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "address repo is required")
	}
	return &service{repo: repo}, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]models.Address, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	return s.repo.ListForUser(ctx, userID)
}

func (s *service) Get(ctx context.Context, addressID, userID uuid.UUID) (*models.Address, error) {
	address, err := s.repo.FindForUser(ctx, addressID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "address not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load address")
	}
	return address, nil
}

func (s *service) Create(ctx context.Context, userID uuid.UUID, input CreateAddressInput) (*models.Address, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	country := input.Country
	if country == "" {
		country = "IN"
	}
	address := models.Address{
		ID:         uuid.New(),
		UserID:     userID,
		Name:       input.Name,
		Line1:      input.Line1,
		Line2:      input.Line2,
		City:       input.City,
		State:      input.State,
		PostalCode: input.PostalCode,
		Country:    country,
		Phone:      input.Phone,
		IsDefault:  input.IsDefault,
	}
	if err := s.repo.Create(ctx, &address); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save address")
	}
	return &address, nil
}

func (s *service) Delete(ctx context.Context, addressID, userID uuid.UUID) error {
	return s.repo.Delete(ctx, addressID, userID)
}

// Snapshot freezes an address into the immutable form stored on orders.
func Snapshot(address *models.Address) types.AddressSnapshot {
	return types.AddressSnapshot{
		Name:       address.Name,
		Line1:      address.Line1,
		Line2:      address.Line2,
		City:       address.City,
		State:      address.State,
		PostalCode: address.PostalCode,
		Country:    address.Country,
		Phone:      address.Phone,
	}
}
