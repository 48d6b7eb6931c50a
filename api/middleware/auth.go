package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/sipwell/storefront-backend/api/responses"
	pkgAuth "github.com/sipwell/storefront-backend/pkg/auth"
	"github.com/sipwell/storefront-backend/pkg/auth/session"
	"github.com/sipwell/storefront-backend/pkg/config"
	pkgerrors "github.com/sipwell/storefront-backend/pkg/errors"
	"github.com/sipwell/storefront-backend/pkg/logger"
	"github.com/sipwell/storefront-backend/pkg/types"
)

const guestTokenHeader = "X-Guest-Token"

// guestChecker validates anonymous session tokens.
type guestChecker interface {
	Validate(ctx context.Context, token string) (bool, error)
}

// Identity resolves the caller to a cart owner and seeds the request context.
// A bearer JWT wins; otherwise a guest token header is accepted. Requests
// carrying neither are rejected, so every handler behind this middleware can
// rely on a non-zero identity.
func Identity(cfg config.JWTConfig, verifier session.AccessSessionChecker, guests guestChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if raw := strings.TrimSpace(r.Header.Get("Authorization")); raw != "" {
				resolveUser(cfg, verifier, logg, next, w, r, raw)
				return
			}

			if token := strings.TrimSpace(r.Header.Get(guestTokenHeader)); token != "" {
				resolveGuest(guests, logg, next, w, r, token)
				return
			}

			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
		})
	}
}

// RequireUser rejects guest identities. Checkout, addresses, and orders are
// account-scoped surfaces.
func RequireUser(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := IdentityFromContext(r.Context())
			if !identity.IsUser() {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func resolveUser(cfg config.JWTConfig, verifier session.AccessSessionChecker, logg *logger.Logger, next http.Handler, w http.ResponseWriter, r *http.Request, raw string) {
	token := raw
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	if token == "" {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
		return
	}

	claims, err := pkgAuth.ParseAccessToken(cfg, token)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
		return
	}
	if claims.ID == "" {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id"))
		return
	}

	if verifier != nil {
		ok, err := verifier.HasSession(r.Context(), claims.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate session"))
			return
		}
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "session unavailable"))
			return
		}
	}

	identity := types.UserIdentity(claims.UserID)
	ctx := WithIdentity(r.Context(), identity)
	ctx = WithAccessID(ctx, claims.ID)

	if logg != nil {
		ctx = logg.WithFields(ctx, map[string]any{
			"user_id":   claims.UserID.String(),
			"owner_key": identity.Key(),
		})
	}

	next.ServeHTTP(w, r.WithContext(ctx))
}

func resolveGuest(guests guestChecker, logg *logger.Logger, next http.Handler, w http.ResponseWriter, r *http.Request, token string) {
	if guests == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "guest sessions unavailable"))
		return
	}

	ok, err := guests.Validate(r.Context(), token)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate guest session"))
		return
	}
	if !ok {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "guest session expired"))
		return
	}

	identity := types.GuestIdentity(token)
	ctx := WithIdentity(r.Context(), identity)

	if logg != nil {
		ctx = logg.WithFields(ctx, map[string]any{"owner_key": identity.Key()})
	}

	next.ServeHTTP(w, r.WithContext(ctx))
}
