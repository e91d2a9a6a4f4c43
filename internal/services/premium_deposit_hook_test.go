package services

import (
	"context"
	"strings"
	"testing"

	"coordination-service/internal/config"
	"coordination-service/internal/ledger"
	"coordination-service/internal/models"
	"coordination-service/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func policyCreationRequest(metadata map[string]string) *models.ApprovalRequest {
	return &models.ApprovalRequest{
		RequestID:   "REQ_POLICY",
		RequestType: models.RequestPolicyCreation,
		Metadata:    metadata,
	}
}

func TestPremiumDepositHookDeposits(t *testing.T) {
	client := &fakeLedger{}
	hook := NewPremiumDepositHook(repository.NewPoolRepository(client, config.LedgerConfig{PoolContract: "premium-pool-cc"}))

	err := hook(context.Background(), ledger.Identity{MSPID: "Org1MSP"}, policyCreationRequest(map[string]string{
		MetadataFarmerID:      "FARMER_001",
		MetadataPolicyID:      "POL_001",
		MetadataPremiumAmount: "1500.5",
	}))
	require.NoError(t, err)

	require.Len(t, client.submits, 1)
	call := client.submits[0]
	assert.Equal(t, "premium-pool-cc", call.contract)
	assert.Equal(t, "DepositPremium", call.operation)
	assert.True(t, strings.HasPrefix(call.args[0], "PREMIUM_POL_001_"))
	assert.Equal(t, "FARMER_001", call.args[1])
	assert.Equal(t, "POL_001", call.args[2])
	assert.Equal(t, "1500.5", call.args[3])
}

func TestPremiumDepositHookSkipsWithoutMetadata(t *testing.T) {
	client := &fakeLedger{}
	hook := NewPremiumDepositHook(repository.NewPoolRepository(client, config.LedgerConfig{PoolContract: "premium-pool-cc"}))

	err := hook(context.Background(), ledger.Identity{MSPID: "Org1MSP"}, policyCreationRequest(map[string]string{
		MetadataFarmerID: "FARMER_001",
	}))
	require.NoError(t, err)
	assert.Empty(t, client.submits)
}

func TestPremiumDepositHookRejectsBadAmount(t *testing.T) {
	client := &fakeLedger{}
	hook := NewPremiumDepositHook(repository.NewPoolRepository(client, config.LedgerConfig{PoolContract: "premium-pool-cc"}))

	err := hook(context.Background(), ledger.Identity{MSPID: "Org1MSP"}, policyCreationRequest(map[string]string{
		MetadataFarmerID:      "FARMER_001",
		MetadataPolicyID:      "POL_001",
		MetadataPremiumAmount: "not-a-number",
	}))
	assert.Error(t, err)
	assert.Empty(t, client.submits)
}
