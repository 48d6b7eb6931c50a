package types

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sipwell/storefront-backend/pkg/enums"
)

// Identity is the owner of a cart: either an authenticated user or an
// anonymous guest session. Carts and checkout sessions are keyed by the
// stable string form so the two kinds share one storage path.
type Identity struct {
	Kind enums.IdentityKind
	ID   string
}

// UserIdentity builds the identity for an authenticated user.
func UserIdentity(userID uuid.UUID) Identity {
	return Identity{Kind: enums.IdentityKindUser, ID: userID.String()}
}

// GuestIdentity builds the identity for an anonymous session token.
func GuestIdentity(sessionID string) Identity {
	return Identity{Kind: enums.IdentityKindGuest, ID: sessionID}
}

// Key returns the storage key, e.g. "user:<uuid>" or "guest:<token>".
func (i Identity) Key() string {
	return fmt.Sprintf("%s:%s", i.Kind, i.ID)
}

// IsZero reports whether the identity is unset.
func (i Identity) IsZero() bool {
	return i.Kind == "" || strings.TrimSpace(i.ID) == ""
}

// IsUser reports whether the identity belongs to an authenticated user.
func (i Identity) IsUser() bool {
	return i.Kind == enums.IdentityKindUser
}

// UserID parses the identity as a user id. Fails for guest identities.
func (i Identity) UserID() (uuid.UUID, error) {
	if i.Kind != enums.IdentityKindUser {
		return uuid.Nil, fmt.Errorf("identity %q is not a user", i.Key())
	}
	return uuid.Parse(i.ID)
}

// ParseIdentityKey reverses Identity.Key.
func ParseIdentityKey(key string) (Identity, error) {
	kindPart, idPart, found := strings.Cut(key, ":")
	if !found || strings.TrimSpace(idPart) == "" {
		return Identity{}, fmt.Errorf("malformed identity key %q", key)
	}
	kind, err := enums.ParseIdentityKind(kindPart)
	if err != nil {
		return Identity{}, err
	}
	return Identity{Kind: kind, ID: idPart}, nil
}
