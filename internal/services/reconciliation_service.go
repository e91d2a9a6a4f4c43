package services

import (
	"context"
	"log/slog"

	"coordination-service/internal/models"
	"coordination-service/internal/repository"
)

// ReconciliationService surfaces payout writes that failed after their
// claim was created, for operator follow-up. It never resubmits ledger
// writes itself.
type ReconciliationService struct {
	reconRepo *repository.ReconciliationRepository
}

func NewReconciliationService(reconRepo *repository.ReconciliationRepository) *ReconciliationService {
	return &ReconciliationService{reconRepo: reconRepo}
}

// ListOpen returns payouts still awaiting manual reconciliation.
func (s *ReconciliationService) ListOpen(ctx context.Context) ([]models.UnreconciledPayout, error) {
	return s.reconRepo.ListOpen(ctx)
}

// Resolve marks one payout as manually settled.
func (s *ReconciliationService) Resolve(ctx context.Context, id string) error {
	return s.reconRepo.MarkResolved(ctx, id)
}

// Sweep logs every open payout. Scheduled periodically so stuck payouts
// stay visible in the operational logs until someone settles them.
func (s *ReconciliationService) Sweep(ctx context.Context) {
	open, err := s.reconRepo.ListOpen(ctx)
	if err != nil {
		slog.Error("Reconciliation sweep failed", "error", err)
		return
	}

	if len(open) == 0 {
		slog.Debug("Reconciliation sweep found no open payouts")
		return
	}

	for _, payout := range open {
		slog.Warn("Payout awaiting manual reconciliation",
			"id", payout.ID,
			"claim_id", payout.ClaimID,
			"policy_id", payout.PolicyID,
			"farmer_id", payout.FarmerID,
			"amount", payout.PayoutAmount,
			"age", payout.CreatedAt)
	}

	slog.Warn("Reconciliation sweep complete", "open_payouts", len(open))
}
