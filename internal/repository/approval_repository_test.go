package repository

import (
	"context"
	"encoding/json"
	"testing"

	"coordination-service/internal/apperrors"
	"coordination-service/internal/config"
	"coordination-service/internal/ledger"
	"coordination-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubClient returns a fixed payload for evaluates and records submits.
type stubClient struct {
	payload   []byte
	evalErr   error
	submitted [][]string
}

func (s *stubClient) Evaluate(_ context.Context, _ ledger.Identity, _, _ string, _ ...string) ([]byte, error) {
	return s.payload, s.evalErr
}

func (s *stubClient) Submit(_ context.Context, _ ledger.Identity, contract, operation string, args ...string) ([]byte, error) {
	s.submitted = append(s.submitted, append([]string{contract, operation}, args...))
	return nil, nil
}

func approvalRepoConfig() config.LedgerConfig {
	return config.LedgerConfig{ApprovalContract: "approval-manager"}
}

func TestApprovalRepositoryGetUnknownID(t *testing.T) {
	identity := ledger.Identity{MSPID: "Org1MSP"}

	t.Run("empty payload", func(t *testing.T) {
		repo := NewApprovalRepository(&stubClient{payload: nil}, approvalRepoConfig())
		_, err := repo.Get(context.Background(), identity, "MISSING")
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("null payload", func(t *testing.T) {
		repo := NewApprovalRepository(&stubClient{payload: []byte("null")}, approvalRepoConfig())
		_, err := repo.Get(context.Background(), identity, "MISSING")
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestApprovalRepositoryGetDecodesRequest(t *testing.T) {
	stored := models.ApprovalRequest{
		RequestID: "REQ_001",
		Status:    models.ApprovalPending,
		Approvals: map[string]bool{"Org1MSP": true},
	}
	payload, err := json.Marshal(stored)
	require.NoError(t, err)

	repo := NewApprovalRepository(&stubClient{payload: payload}, approvalRepoConfig())
	request, err := repo.Get(context.Background(), ledger.Identity{MSPID: "Org1MSP"}, "REQ_001")
	require.NoError(t, err)
	assert.Equal(t, "REQ_001", request.RequestID)
	assert.True(t, request.Approvals["Org1MSP"])
}

func TestApprovalRepositorySaveWritesFullState(t *testing.T) {
	client := &stubClient{}
	repo := NewApprovalRepository(client, approvalRepoConfig())

	request := &models.ApprovalRequest{RequestID: "REQ_001", Status: models.ApprovalPending}
	require.NoError(t, repo.Save(context.Background(), ledger.Identity{MSPID: "Org1MSP"}, request))

	require.Len(t, client.submitted, 1)
	call := client.submitted[0]
	assert.Equal(t, "approval-manager", call[0])
	assert.Equal(t, "PutApprovalRequest", call[1])
	assert.Equal(t, "REQ_001", call[2])

	var roundTripped models.ApprovalRequest
	require.NoError(t, json.Unmarshal([]byte(call[3]), &roundTripped))
	assert.Equal(t, request.RequestID, roundTripped.RequestID)
	assert.Equal(t, request.Status, roundTripped.Status)
}

func TestApprovalRepositoryListEmptyStatuses(t *testing.T) {
	repo := NewApprovalRepository(&stubClient{payload: []byte("null")}, approvalRepoConfig())

	requests, err := repo.ListByStatus(context.Background(), ledger.Identity{MSPID: "Org1MSP"}, models.ApprovalPending)
	require.NoError(t, err)
	assert.Empty(t, requests)

	history, err := repo.History(context.Background(), ledger.Identity{MSPID: "Org1MSP"}, "REQ_001")
	require.NoError(t, err)
	assert.Empty(t, history)
}
