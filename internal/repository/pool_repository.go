package repository

import (
	"context"
	"fmt"
	"strconv"

	"coordination-service/internal/config"
	"coordination-service/internal/ledger"
)

// PoolRepository submits premium pool writes. All balance arithmetic
// happens inside the contract; this service never reads then writes the
// balance locally.
type PoolRepository struct {
	client   ledger.Client
	contract string
}

func NewPoolRepository(client ledger.Client, cfg config.LedgerConfig) *PoolRepository {
	return &PoolRepository{
		client:   client,
		contract: cfg.PoolContract,
	}
}

// DepositPremium records a farmer's premium payment into the shared pool.
func (r *PoolRepository) DepositPremium(ctx context.Context, id ledger.Identity,
	txID, farmerID, policyID string, amount float64) error {

	_, err := r.client.Submit(ctx, id, r.contract, "DepositPremium",
		txID, farmerID, policyID, strconv.FormatFloat(amount, 'f', -1, 64))
	if err != nil {
		return fmt.Errorf("failed to deposit premium for policy %s: %w", policyID, err)
	}

	return nil
}

// ExecutePayout moves a claim's payout amount from the pool to the farmer.
func (r *PoolRepository) ExecutePayout(ctx context.Context, id ledger.Identity,
	txID, farmerID, policyID, claimID string, amount float64) error {

	_, err := r.client.Submit(ctx, id, r.contract, "ExecutePayout",
		txID, farmerID, policyID, claimID, strconv.FormatFloat(amount, 'f', -1, 64))
	if err != nil {
		return fmt.Errorf("failed to execute payout for claim %s: %w", claimID, err)
	}

	return nil
}
