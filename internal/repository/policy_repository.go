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

// PolicyRepository reads policies and templates from their ledger contracts.
type PolicyRepository struct {
	client           ledger.Client
	policyContract   string
	templateContract string
}

func NewPolicyRepository(client ledger.Client, cfg config.LedgerConfig) *PolicyRepository {
	return &PolicyRepository{
		client:           client,
		policyContract:   cfg.PolicyContract,
		templateContract: cfg.TemplateContract,
	}
}

// GetActivePolicies fetches every policy and keeps the active ones. The
// policy contract has no status-filtered query, so filtering happens here.
func (r *PolicyRepository) GetActivePolicies(ctx context.Context, id ledger.Identity) ([]models.Policy, error) {
	payload, err := r.client.Evaluate(ctx, id, r.policyContract, "GetAllPolicies")
	if err != nil {
		return nil, fmt.Errorf("failed to get policies: %w", err)
	}

	var policies []models.Policy
	if len(payload) > 0 && string(payload) != "null" {
		if err := json.Unmarshal(payload, &policies); err != nil {
			return nil, fmt.Errorf("failed to unmarshal policies: %w", err)
		}
	}

	active := make([]models.Policy, 0, len(policies))
	for _, policy := range policies {
		if policy.Status == models.PolicyActive {
			active = append(active, policy)
		}
	}

	return active, nil
}

// GetTemplate fetches one policy template with its trigger thresholds.
func (r *PolicyRepository) GetTemplate(ctx context.Context, id ledger.Identity, templateID string) (*models.PolicyTemplate, error) {
	payload, err := r.client.Evaluate(ctx, id, r.templateContract, "GetTemplate", templateID)
	if err != nil {
		return nil, fmt.Errorf("failed to get template %s: %w", templateID, err)
	}

	if len(payload) == 0 || string(payload) == "null" {
		return nil, fmt.Errorf("%w: template %s", apperrors.ErrNotFound, templateID)
	}

	var template models.PolicyTemplate
	if err := json.Unmarshal(payload, &template); err != nil {
		return nil, fmt.Errorf("failed to unmarshal template %s: %w", templateID, err)
	}

	return &template, nil
}
