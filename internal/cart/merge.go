package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/sipwell/storefront-backend/pkg/enums"
	pkgerrors "github.com/sipwell/storefront-backend/pkg/errors"
	"github.com/sipwell/storefront-backend/pkg/logger"
	"github.com/sipwell/storefront-backend/pkg/outbox"
	"github.com/sipwell/storefront-backend/pkg/types"
)

// MergeReport summarizes one guest-cart merge. Per-line failures are
// aggregated rather than aborting the merge; the guest cart is discarded no
// matter how many lines made it across.
type MergeReport struct {
	CartID       uuid.UUID `json:"cartId"`
	LinesMerged  int       `json:"linesMerged"`
	LinesSkipped int       `json:"linesSkipped"`
	PlanReplayed bool      `json:"planReplayed"`
	LineErrors   error     `json:"-"`
}

// pendingPlanSource yields the plan id a guest picked before signing in.
type pendingPlanSource interface {
	PendingPlan(ctx context.Context, guestToken string) (string, error)
}

// MergeServiceParams groups dependencies for the merge service.
type MergeServiceParams struct {
	CartRepo    *Repository
	CartService Service
	PendingPlan pendingPlanSource
	Outbox      *outbox.Service
	Logger      *logger.Logger
}

// MergeService migrates a guest cart into the authenticated identity's cart.
// It runs exactly once per login transition; the guest cart row is deleted as
// the final step, so a retry finds nothing to merge.
type MergeService struct {
	cartRepo    *Repository
	cartService Service
	pendingPlan pendingPlanSource
	outbox      *outbox.Service
	logger      *logger.Logger
}

// NewMergeService builds a merge service with the required dependencies.
func NewMergeService(params MergeServiceParams) (*MergeService, error) {
	if params.CartRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart repo is required")
	}
	if params.CartService == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart service is required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logger is required")
	}
	return &MergeService{
		cartRepo:    params.CartRepo,
		cartService: params.CartService,
		pendingPlan: params.PendingPlan,
		outbox:      params.Outbox,
		logger:      params.Logger,
	}, nil
}

// Merge copies each guest line into the user's cart best-effort, replays any
// pending plan selection through the normal SelectPlan path, and discards the
// guest cart unconditionally.
func (m *MergeService) Merge(ctx context.Context, user types.Identity, guestToken string) (MergeReport, error) {
	if !user.IsUser() {
		return MergeReport{}, pkgerrors.New(pkgerrors.CodeValidation, "merge target must be a user identity")
	}
	if guestToken == "" {
		return MergeReport{}, pkgerrors.New(pkgerrors.CodeValidation, "guest token is required")
	}

	guest := types.GuestIdentity(guestToken)
	report := MergeReport{}

	guestCart, err := m.cartRepo.FindActiveByOwner(ctx, guest.Key())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			report.PlanReplayed = m.replayPendingPlan(ctx, user, guestToken)
			return report, nil
		}
		return MergeReport{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load guest cart")
	}

	var lineErrs error
	for _, line := range guestCart.Lines {
		_, err := m.cartService.AddLine(ctx, user, AddLineInput{
			ProductID:          line.ProductID,
			Name:               line.Name,
			UnitBasePrice:      line.UnitBasePrice,
			UnitFinalPrice:     line.UnitFinalPrice,
			Quantity:           line.Quantity,
			SubscriptionMonths: line.SubscriptionMonths,
		})
		if err != nil {
			report.LinesSkipped++
			lineErrs = multierr.Append(lineErrs, err)
			continue
		}
		report.LinesMerged++
	}
	report.LineErrors = lineErrs

	// Discard regardless of partial failure; the merge is one-shot.
	if err := m.cartRepo.DeleteCart(ctx, guestCart.ID); err != nil {
		return report, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "discard guest cart")
	}

	report.PlanReplayed = m.replayPendingPlan(ctx, user, guestToken)

	view, err := m.cartService.Get(ctx, user)
	if err != nil {
		return report, err
	}
	report.CartID = view.Cart.ID

	m.emitMerged(ctx, user, guest, report)

	logCtx := m.logger.WithFields(ctx, map[string]any{
		"cart_id":       report.CartID.String(),
		"lines_merged":  report.LinesMerged,
		"lines_skipped": report.LinesSkipped,
		"plan_replayed": report.PlanReplayed,
	})
	m.logger.Info(logCtx, "guest cart merged")

	return report, nil
}

// replayPendingPlan applies a stashed plan selection through SelectPlan so
// it faces the same eligibility rules as a direct selection.
func (m *MergeService) replayPendingPlan(ctx context.Context, user types.Identity, guestToken string) bool {
	if m.pendingPlan == nil {
		return false
	}
	raw, err := m.pendingPlan.PendingPlan(ctx, guestToken)
	if err != nil || raw == "" {
		return false
	}
	planID, err := uuid.Parse(raw)
	if err != nil {
		return false
	}
	if _, err := m.cartService.SelectPlan(ctx, user, &planID); err != nil {
		m.logger.Warn(ctx, "pending plan replay rejected")
		return false
	}
	return true
}

func (m *MergeService) emitMerged(ctx context.Context, user, guest types.Identity, report MergeReport) {
	if m.outbox == nil || report.CartID == uuid.Nil {
		return
	}
	err := m.cartRepo.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return m.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCartMerged,
			AggregateType: enums.AggregateCart,
			AggregateID:   report.CartID,
			IdentityKey:   user.Key(),
			OccurredAt:    time.Now().UTC(),
			Data: outbox.CartMergedPayload{
				CartID:       report.CartID,
				GuestKey:     guest.Key(),
				LinesMerged:  report.LinesMerged,
				LinesSkipped: report.LinesSkipped,
			},
		})
	})
	if err != nil {
		m.logger.Error(ctx, "emit cart merged event", err)
	}
}
