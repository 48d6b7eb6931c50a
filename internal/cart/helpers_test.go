package cart

import (
	"io"
	"testing"

	"github.com/google/uuid"

	"github.com/sipwell/storefront-backend/pkg/logger"
	"github.com/sipwell/storefront-backend/pkg/types"
)

func userIdentity(t *testing.T) types.Identity {
	t.Helper()
	return types.UserIdentity(uuid.New())
}

func userIdentityWithID(userID uuid.UUID) types.Identity {
	return types.UserIdentity(userID)
}

func guestIdentity(token string) types.Identity {
	return types.GuestIdentity(token)
}

func newTestLogger() *logger.Logger {
	return logger.New(logger.Options{
		ServiceName: "cart-test",
		Level:       logger.ParseLevel("error"),
		Output:      io.Discard,
	})
}
