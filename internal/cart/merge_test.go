package cart

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sipwell/storefront-backend/pkg/types"
)

type stubPlanStash struct {
	planID string
	err    error
}

func (s *stubPlanStash) PendingPlan(_ context.Context, _ string) (string, error) {
	return s.planID, s.err
}

func newMergeService(t *testing.T, conn *gorm.DB, stash pendingPlanSource) (*MergeService, Service) {
	t.Helper()
	svc := newCartService(t, conn)
	merge, err := NewMergeService(MergeServiceParams{
		CartRepo:    NewRepository(conn),
		CartService: svc,
		PendingPlan: stash,
		Logger:      newTestLogger(),
	})
	require.NoError(t, err)
	return merge, svc
}

func seedGuestCart(t *testing.T, svc Service, token string, productIDs ...uuid.UUID) {
	t.Helper()
	guest := guestIdentity(token)
	for _, productID := range productIDs {
		_, err := svc.AddLine(context.Background(), guest, AddLineInput{
			ProductID:      productID,
			Name:           "Copper Bottle 1L",
			UnitBasePrice:  decimal.NewFromInt(400),
			UnitFinalPrice: decimal.NewFromInt(400),
			Quantity:       1,
		})
		require.NoError(t, err)
	}
}

func TestMergeMovesGuestLines(t *testing.T) {
	conn := newCartTestDB(t)
	merge, svc := newMergeService(t, conn, nil)
	user := userIdentity(t)
	token := "guest-merge-1"
	seedGuestCart(t, svc, token, uuid.New(), uuid.New())

	report, err := merge.Merge(context.Background(), user, token)
	require.NoError(t, err)
	require.Equal(t, 2, report.LinesMerged)
	require.Equal(t, 0, report.LinesSkipped)
	require.NoError(t, report.LineErrors)

	view, err := svc.Get(context.Background(), user)
	require.NoError(t, err)
	require.Len(t, view.Cart.Lines, 2)

	// Guest cart is gone.
	_, err = NewRepository(conn).FindActiveByOwner(context.Background(), types.GuestIdentity(token).Key())
	require.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestMergeTwiceDoesNotDoubleAdd(t *testing.T) {
	conn := newCartTestDB(t)
	merge, svc := newMergeService(t, conn, nil)
	user := userIdentity(t)
	token := "guest-merge-2"
	seedGuestCart(t, svc, token, uuid.New())

	first, err := merge.Merge(context.Background(), user, token)
	require.NoError(t, err)
	require.Equal(t, 1, first.LinesMerged)

	second, err := merge.Merge(context.Background(), user, token)
	require.NoError(t, err)
	require.Equal(t, 0, second.LinesMerged)

	view, err := svc.Get(context.Background(), user)
	require.NoError(t, err)
	require.Len(t, view.Cart.Lines, 1)
	require.Equal(t, 1, view.Cart.Lines[0].Quantity)
}

func TestMergeCombinesQuantitiesForSharedProduct(t *testing.T) {
	conn := newCartTestDB(t)
	merge, svc := newMergeService(t, conn, nil)
	user := userIdentity(t)
	token := "guest-merge-3"
	productID := uuid.New()

	_, err := svc.AddLine(context.Background(), user, AddLineInput{
		ProductID:      productID,
		Name:           "Copper Bottle 1L",
		UnitFinalPrice: decimal.NewFromInt(400),
		Quantity:       2,
	})
	require.NoError(t, err)
	seedGuestCart(t, svc, token, productID)

	_, err = merge.Merge(context.Background(), user, token)
	require.NoError(t, err)

	view, err := svc.Get(context.Background(), user)
	require.NoError(t, err)
	require.Len(t, view.Cart.Lines, 1)
	require.Equal(t, 3, view.Cart.Lines[0].Quantity)
}

func TestMergeReplaysPendingPlan(t *testing.T) {
	conn := newCartTestDB(t)
	productID := uuid.New()
	plan := seedPlan(t, conn, productID, 1)
	merge, svc := newMergeService(t, conn, &stubPlanStash{planID: plan.ID.String()})
	user := userIdentity(t)
	token := "guest-merge-4"
	seedGuestCart(t, svc, token, productID)

	report, err := merge.Merge(context.Background(), user, token)
	require.NoError(t, err)
	require.True(t, report.PlanReplayed)

	view, err := svc.Get(context.Background(), user)
	require.NoError(t, err)
	require.NotNil(t, view.Cart.PlanID)
	require.Equal(t, plan.ID, *view.Cart.PlanID)
	require.True(t, view.Breakdown.PlanDiscount.Equal(decimal.NewFromInt(40)))
}

func TestMergeIneligiblePendingPlanIsDropped(t *testing.T) {
	conn := newCartTestDB(t)
	requiredProduct := uuid.New()
	plan := seedPlan(t, conn, requiredProduct, 5)
	merge, svc := newMergeService(t, conn, &stubPlanStash{planID: plan.ID.String()})
	user := userIdentity(t)
	token := "guest-merge-5"
	seedGuestCart(t, svc, token, requiredProduct)

	report, err := merge.Merge(context.Background(), user, token)
	require.NoError(t, err)
	require.False(t, report.PlanReplayed)

	view, err := svc.Get(context.Background(), user)
	require.NoError(t, err)
	require.Nil(t, view.Cart.PlanID)
}

func TestMergeWithNoGuestCartIsANoop(t *testing.T) {
	conn := newCartTestDB(t)
	merge, _ := newMergeService(t, conn, nil)
	user := userIdentity(t)

	report, err := merge.Merge(context.Background(), user, "never-used-token")
	require.NoError(t, err)
	require.Equal(t, 0, report.LinesMerged)
	require.Equal(t, uuid.Nil, report.CartID)
}
