package repository

import (
	"context"
	"fmt"
	"strconv"

	"coordination-service/internal/config"
	"coordination-service/internal/ledger"
)

// ClaimRepository submits claim writes to the claim processor contract.
type ClaimRepository struct {
	client   ledger.Client
	contract string
}

func NewClaimRepository(client ledger.Client, cfg config.LedgerConfig) *ClaimRepository {
	return &ClaimRepository{
		client:   client,
		contract: cfg.ClaimContract,
	}
}

// TriggerPayout creates an automatically triggered claim. The contract
// derives the payout amount from coverage and percent; weatherRef ties the
// claim back to the consensus observation that caused it.
func (r *ClaimRepository) TriggerPayout(ctx context.Context, id ledger.Identity,
	claimID, policyID, farmerID, weatherRef string, coverageAmount, payoutPercent float64) error {

	_, err := r.client.Submit(ctx, id, r.contract, "TriggerPayout",
		claimID,
		policyID,
		farmerID,
		weatherRef,
		strconv.FormatFloat(coverageAmount, 'f', -1, 64),
		strconv.FormatFloat(payoutPercent, 'f', -1, 64),
	)
	if err != nil {
		return fmt.Errorf("failed to trigger claim %s for policy %s: %w", claimID, policyID, err)
	}

	return nil
}
