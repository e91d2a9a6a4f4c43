package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"coordination-service/internal/ledger"
	"coordination-service/internal/models"
	"coordination-service/internal/repository"
)

// Metadata keys a POLICY_CREATION request must carry for the automatic
// premium deposit.
const (
	MetadataFarmerID      = "farmerID"
	MetadataPolicyID      = "policyID"
	MetadataPremiumAmount = "premiumAmount"
)

// NewPremiumDepositHook returns the post-execution hook for POLICY_CREATION
// requests: once the policy exists on the ledger, deposit its premium into
// the shared pool. Best effort only; the policy creation itself is never
// rolled back when the deposit fails, and incomplete metadata skips the
// deposit silently.
func NewPremiumDepositHook(poolRepo *repository.PoolRepository) ExecutionHook {
	return func(ctx context.Context, id ledger.Identity, request *models.ApprovalRequest) error {
		farmerID := request.Metadata[MetadataFarmerID]
		policyID := request.Metadata[MetadataPolicyID]
		premiumStr := request.Metadata[MetadataPremiumAmount]

		if farmerID == "" || policyID == "" || premiumStr == "" {
			slog.Debug("Policy creation request carries no premium metadata, skipping deposit",
				"request_id", request.RequestID)
			return nil
		}

		premium, err := strconv.ParseFloat(premiumStr, 64)
		if err != nil {
			return fmt.Errorf("invalid premiumAmount %q in metadata: %w", premiumStr, err)
		}

		txID := fmt.Sprintf("PREMIUM_%s_%d", policyID, time.Now().UnixMilli())
		if err := poolRepo.DepositPremium(ctx, id, txID, farmerID, policyID, premium); err != nil {
			return err
		}

		slog.Info("Auto-deposited premium after policy creation",
			"request_id", request.RequestID,
			"policy_id", policyID,
			"amount", premium)

		return nil
	}
}
