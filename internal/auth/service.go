package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sipwell/storefront-backend/internal/cart"
	"github.com/sipwell/storefront-backend/internal/users"
	pkgauth "github.com/sipwell/storefront-backend/pkg/auth"
	"github.com/sipwell/storefront-backend/pkg/auth/session"
	"github.com/sipwell/storefront-backend/pkg/config"
	"github.com/sipwell/storefront-backend/pkg/db"
	"github.com/sipwell/storefront-backend/pkg/db/models"
	pkgerrors "github.com/sipwell/storefront-backend/pkg/errors"
	"github.com/sipwell/storefront-backend/pkg/logger"
	"github.com/sipwell/storefront-backend/pkg/security"
	"github.com/sipwell/storefront-backend/pkg/types"
)

// refreshSessions is the slice of the session manager the service needs.
type refreshSessions interface {
	Generate(ctx context.Context, accessID string) (string, error)
	Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error)
	Revoke(ctx context.Context, accessID string) error
}

// guestSessions issues and retires anonymous browsing sessions.
type guestSessions interface {
	Issue(ctx context.Context) (string, error)
	Validate(ctx context.Context, token string) (bool, error)
	Discard(ctx context.Context, token string) error
}

// guestMerger migrates a guest cart after the session becomes authenticated.
type guestMerger interface {
	Merge(ctx context.Context, user types.Identity, guestToken string) (cart.MergeReport, error)
}

// RegisterInput carries the fields accepted at signup.
type RegisterInput struct {
	Email     string  `json:"email" validate:"required,email"`
	Password  string  `json:"password" validate:"required,min=8"`
	FirstName string  `json:"firstName" validate:"required"`
	LastName  string  `json:"lastName" validate:"required"`
	Phone     *string `json:"phone"`
}

// LoginInput carries credentials plus the optional guest token whose cart
// should follow the shopper into the account.
type LoginInput struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required"`
	GuestToken string `json:"guestToken"`
}

// RefreshInput carries the expired access token and its refresh pair.
type RefreshInput struct {
	AccessToken  string `json:"accessToken" validate:"required"`
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// AuthResult is the response to a successful credential exchange.
type AuthResult struct {
	AccessToken  string            `json:"accessToken"`
	RefreshToken string            `json:"refreshToken"`
	User         *models.User      `json:"user"`
	MergeReport  *cart.MergeReport `json:"mergeReport,omitempty"`
}

// ServiceParams groups dependencies for the auth service.
type ServiceParams struct {
	UserRepo    *users.Repository
	Sessions    refreshSessions
	Guests      guestSessions
	Merger      guestMerger
	Logger      *logger.Logger
	JWT         config.JWTConfig
	Password    config.PasswordConfig
	Clock       func() time.Time
}

// Service handles registration, login, token refresh, and the guest session
// boundary. Login is the "session became authenticated" transition: it is
// where the guest cart merge runs, exactly once.
type Service interface {
	Register(ctx context.Context, input RegisterInput) (AuthResult, error)
	Login(ctx context.Context, input LoginInput) (AuthResult, error)
	Refresh(ctx context.Context, input RefreshInput) (AuthResult, error)
	Logout(ctx context.Context, accessID string) error
	IssueGuestSession(ctx context.Context) (string, error)
}

type service struct {
	userRepo *users.Repository
	sessions refreshSessions
	guests   guestSessions
	merger   guestMerger
	logger   *logger.Logger
	jwt      config.JWTConfig
	password config.PasswordConfig
	clock    func() time.Time
}

// NewService builds an auth service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.UserRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user repo is required")
	}
	if params.Sessions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session manager is required")
	}
	if params.Guests == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "guest session manager is required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logger is required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{
		userRepo: params.UserRepo,
		sessions: params.Sessions,
		guests:   params.Guests,
		merger:   params.Merger,
		logger:   params.Logger,
		jwt:      params.JWT,
		password: params.Password,
		clock:    clock,
	}, nil
}

// Register creates the account and signs the new user straight in.
func (s *service) Register(ctx context.Context, input RegisterInput) (AuthResult, error) {
	hash, err := security.HashPassword(input.Password, s.password)
	if err != nil {
		return AuthResult{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	user := &models.User{
		ID:           uuid.New(),
		Email:        input.Email,
		PasswordHash: hash,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Phone:        input.Phone,
		IsActive:     true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if db.IsUniqueViolation(err, "idx_users_email") {
			return AuthResult{}, pkgerrors.New(pkgerrors.CodeConflict, "email is already registered")
		}
		return AuthResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create user")
	}
	return s.issueTokens(ctx, user)
}

// Login exchanges credentials for a token pair and, when a guest token rides
// along, merges the guest cart into the account.
func (s *service) Login(ctx context.Context, input LoginInput) (AuthResult, error) {
	user, err := s.userRepo.FindByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return AuthResult{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
		}
		return AuthResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	if !user.IsActive {
		return AuthResult{}, pkgerrors.New(pkgerrors.CodeForbidden, "account is disabled")
	}

	ok, err := security.VerifyPassword(input.Password, user.PasswordHash)
	if err != nil || !ok {
		return AuthResult{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}

	result, err := s.issueTokens(ctx, user)
	if err != nil {
		return AuthResult{}, err
	}

	if err := s.userRepo.TouchLastLogin(ctx, user.ID, s.clock().UTC()); err != nil {
		s.logger.Error(ctx, "record last login", err)
	}

	if input.GuestToken != "" && s.merger != nil {
		report, err := s.merger.Merge(ctx, types.UserIdentity(user.ID), input.GuestToken)
		if err != nil {
			// Login still succeeds; an unmerged guest cart is recoverable.
			s.logger.Error(ctx, "guest cart merge", err)
		} else {
			result.MergeReport = &report
		}
		if err := s.guests.Discard(ctx, input.GuestToken); err != nil {
			s.logger.Error(ctx, "discard guest session", err)
		}
	}

	return result, nil
}

// Refresh rotates the refresh token and mints a fresh access token. The old
// access token may be expired; only its signature and session must hold.
func (s *service) Refresh(ctx context.Context, input RefreshInput) (AuthResult, error) {
	claims, err := pkgauth.ParseAccessTokenAllowExpired(s.jwt, input.AccessToken)
	if err != nil {
		return AuthResult{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid access token")
	}

	newAccessID, newRefresh, err := s.sessions.Rotate(ctx, claims.ID, input.RefreshToken)
	if err != nil {
		if errors.Is(err, session.ErrInvalidRefreshToken) {
			return AuthResult{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
		}
		return AuthResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rotate session")
	}

	user, err := s.userRepo.FindByID(ctx, claims.UserID)
	if err != nil {
		return AuthResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}

	accessToken, err := pkgauth.MintAccessToken(s.jwt, s.clock(), pkgauth.AccessTokenPayload{
		UserID: user.ID,
		Email:  user.Email,
		JTI:    newAccessID,
	})
	if err != nil {
		return AuthResult{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint access token")
	}

	return AuthResult{AccessToken: accessToken, RefreshToken: newRefresh, User: user}, nil
}

// Logout revokes the refresh session tied to the access token's id.
func (s *service) Logout(ctx context.Context, accessID string) error {
	return s.sessions.Revoke(ctx, accessID)
}

// IssueGuestSession mints an anonymous browsing token.
func (s *service) IssueGuestSession(ctx context.Context) (string, error) {
	token, err := s.guests.Issue(ctx)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "issue guest session")
	}
	return token, nil
}

func (s *service) issueTokens(ctx context.Context, user *models.User) (AuthResult, error) {
	accessID := session.NewAccessID()
	accessToken, err := pkgauth.MintAccessToken(s.jwt, s.clock(), pkgauth.AccessTokenPayload{
		UserID: user.ID,
		Email:  user.Email,
		JTI:    accessID,
	})
	if err != nil {
		return AuthResult{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint access token")
	}
	refreshToken, err := s.sessions.Generate(ctx, accessID)
	if err != nil {
		return AuthResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create refresh session")
	}
	return AuthResult{AccessToken: accessToken, RefreshToken: refreshToken, User: user}, nil
}
