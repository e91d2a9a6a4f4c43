package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"coordination-service/internal/apperrors"
	"coordination-service/internal/config"
	"coordination-service/internal/ledger"
	"coordination-service/internal/models"
)

// ApprovalRepository persists approval requests through the ledger approval
// contract. The contract owns durability and conflict resolution; this
// repository only translates between the Go model and the contract's
// string-argument operations.
type ApprovalRepository struct {
	client   ledger.Client
	contract string
}

func NewApprovalRepository(client ledger.Client, cfg config.LedgerConfig) *ApprovalRepository {
	return &ApprovalRepository{
		client:   client,
		contract: cfg.ApprovalContract,
	}
}

// Save writes the full request state under its request id. The contract
// applies the write atomically, so callers never observe a half-updated
// request.
func (r *ApprovalRepository) Save(ctx context.Context, id ledger.Identity, request *models.ApprovalRequest) error {
	payload, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal approval request: %w", err)
	}

	_, err = r.client.Submit(ctx, id, r.contract, "PutApprovalRequest", request.RequestID, string(payload))
	if err != nil {
		return fmt.Errorf("failed to save approval request %s: %w", request.RequestID, err)
	}

	return nil
}

// Get fetches one request. An empty payload from the contract means the id
// is unknown.
func (r *ApprovalRepository) Get(ctx context.Context, id ledger.Identity, requestID string) (*models.ApprovalRequest, error) {
	payload, err := r.client.Evaluate(ctx, id, r.contract, "GetApprovalRequest", requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to get approval request %s: %w", requestID, err)
	}

	if len(payload) == 0 || string(payload) == "null" {
		return nil, fmt.Errorf("%w: approval request %s", apperrors.ErrNotFound, requestID)
	}

	var request models.ApprovalRequest
	if err := json.Unmarshal(payload, &request); err != nil {
		return nil, fmt.Errorf("failed to unmarshal approval request %s: %w", requestID, err)
	}

	return &request, nil
}

// ListByStatus fetches every request currently in the given status.
func (r *ApprovalRepository) ListByStatus(ctx context.Context, id ledger.Identity, status models.ApprovalStatus) ([]models.ApprovalRequest, error) {
	payload, err := r.client.Evaluate(ctx, id, r.contract, "GetApprovalsByStatus", string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to list approvals by status %s: %w", status, err)
	}

	if len(payload) == 0 || string(payload) == "null" {
		return []models.ApprovalRequest{}, nil
	}

	var requests []models.ApprovalRequest
	if err := json.Unmarshal(payload, &requests); err != nil {
		return nil, fmt.Errorf("failed to unmarshal approvals list: %w", err)
	}

	return requests, nil
}

// AppendHistory records one audit entry for the request.
func (r *ApprovalRepository) AppendHistory(ctx context.Context, id ledger.Identity, entry *models.ApprovalHistoryEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal history entry: %w", err)
	}

	_, err = r.client.Submit(ctx, id, r.contract, "RecordApprovalAction", entry.RequestID, string(payload))
	if err != nil {
		return fmt.Errorf("failed to record history for %s: %w", entry.RequestID, err)
	}

	return nil
}

// History fetches the audit trail for one request, oldest first.
func (r *ApprovalRepository) History(ctx context.Context, id ledger.Identity, requestID string) ([]models.ApprovalHistoryEntry, error) {
	payload, err := r.client.Evaluate(ctx, id, r.contract, "GetApprovalHistory", requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to get approval history for %s: %w", requestID, err)
	}

	if len(payload) == 0 || string(payload) == "null" {
		return []models.ApprovalHistoryEntry{}, nil
	}

	var history []models.ApprovalHistoryEntry
	if err := json.Unmarshal(payload, &history); err != nil {
		return nil, fmt.Errorf("failed to unmarshal approval history: %w", err)
	}

	return history, nil
}
