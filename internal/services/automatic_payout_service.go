package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"coordination-service/internal/ledger"
	"coordination-service/internal/models"
	"coordination-service/internal/repository"
	"coordination-service/internal/worker"
)

// RunNotifier publishes the outcome of a completed orchestration run.
// Implemented by the RabbitMQ payout publisher; nil disables notification.
type RunNotifier interface {
	NotifyRunCompleted(ctx context.Context, obs models.WeatherConsensus, outcome *models.PayoutOutcome) error
}

// AutomaticPayoutService consumes consensus-validated weather observations
// and drives the claim-trigger + payout-execution sequence for every active
// policy whose thresholds are breached. Per-policy failures are collected
// into the run outcome and never abort the batch; only a failure to fetch
// the initial active-policy list is fatal. The orchestrator never retries
// failed writes.
type AutomaticPayoutService struct {
	policyRepo *repository.PolicyRepository
	claimRepo  *repository.ClaimRepository
	poolRepo   *repository.PoolRepository
	reconRepo  *repository.ReconciliationRepository
	notifier   RunNotifier
	matcher    LocationMatcher
	identity   ledger.Identity
	workers    int
}

func NewAutomaticPayoutService(
	policyRepo *repository.PolicyRepository,
	claimRepo *repository.ClaimRepository,
	poolRepo *repository.PoolRepository,
	identity ledger.Identity,
	workers int,
) *AutomaticPayoutService {
	if workers < 1 {
		workers = 1
	}
	return &AutomaticPayoutService{
		policyRepo: policyRepo,
		claimRepo:  claimRepo,
		poolRepo:   poolRepo,
		matcher:    NormalizedSubstringMatcher{},
		identity:   identity,
		workers:    workers,
	}
}

// WithLocationMatcher swaps the fuzzy default for another matching strategy.
func (s *AutomaticPayoutService) WithLocationMatcher(matcher LocationMatcher) *AutomaticPayoutService {
	s.matcher = matcher
	return s
}

// WithReconciliationTrail enables the local Postgres trail of runs and
// failed payout writes.
func (s *AutomaticPayoutService) WithReconciliationTrail(repo *repository.ReconciliationRepository) *AutomaticPayoutService {
	s.reconRepo = repo
	return s
}

// WithRunNotifier enables run-completed notifications.
func (s *AutomaticPayoutService) WithRunNotifier(notifier RunNotifier) *AutomaticPayoutService {
	s.notifier = notifier
	return s
}

// ProcessConsensus runs one orchestration batch for the observation.
func (s *AutomaticPayoutService) ProcessConsensus(ctx context.Context, obs models.WeatherConsensus) (*models.PayoutOutcome, error) {
	slog.Info("Checking policies for automatic payout triggers", "location", obs.Location)

	activePolicies, err := s.policyRepo.GetActivePolicies(ctx, s.identity)
	if err != nil {
		// Nothing meaningful happened yet; fail the whole run.
		return nil, fmt.Errorf("failed to fetch active policies: %w", err)
	}

	matched := make([]models.Policy, 0, len(activePolicies))
	for _, policy := range activePolicies {
		if s.matcher.Matches(policy.FarmLocation, obs.Location) {
			matched = append(matched, policy)
		}
	}

	outcome := &models.PayoutOutcome{
		PoliciesChecked: len(matched),
		ClaimsTriggered: []string{},
		Errors:          []string{},
	}

	slog.Info("Active policies matched against observation location",
		"active", len(activePolicies),
		"matched", len(matched),
		"location", obs.Location)

	runID := s.beginRun(ctx, obs)

	if len(matched) == 0 {
		s.finishRun(ctx, obs, outcome, runID)
		return outcome, nil
	}

	var mu sync.Mutex
	jobs := make([]worker.Job, 0, len(matched))
	for _, policy := range matched {
		jobs = append(jobs, func(jobCtx context.Context) error {
			s.processPolicy(jobCtx, policy, obs, outcome, &mu, runID)
			return nil
		})
	}
	worker.RunBatch(ctx, s.workers, jobs)

	slog.Info("Automatic payout processing complete",
		"location", obs.Location,
		"policies_checked", outcome.PoliciesChecked,
		"thresholds_breached", outcome.ThresholdsBreached,
		"claims_triggered", len(outcome.ClaimsTriggered),
		"errors", len(outcome.Errors))

	s.finishRun(ctx, obs, outcome, runID)
	return outcome, nil
}

// processPolicy evaluates one policy's thresholds and submits the claim and
// payout writes for each breach. All failures are recorded into the shared
// outcome under mu.
func (s *AutomaticPayoutService) processPolicy(ctx context.Context, policy models.Policy, obs models.WeatherConsensus, outcome *models.PayoutOutcome, mu *sync.Mutex, runID string) {
	appendError := func(msg string) {
		mu.Lock()
		outcome.Errors = append(outcome.Errors, msg)
		mu.Unlock()
	}

	template, err := s.policyRepo.GetTemplate(ctx, s.identity, policy.TemplateID)
	if err != nil {
		slog.Error("Failed to fetch template for policy", "policy_id", policy.PolicyID, "template_id", policy.TemplateID, "error", err)
		appendError(fmt.Sprintf("error processing policy %s: %v", policy.PolicyID, err))
		return
	}

	if len(template.IndexThresholds) == 0 {
		slog.Warn("Policy has no thresholds defined", "policy_id", policy.PolicyID, "template_id", policy.TemplateID)
		appendError(fmt.Sprintf("policy %s has no thresholds defined", policy.PolicyID))
		return
	}

	for _, rule := range template.IndexThresholds {
		if !EvaluateThreshold(rule, obs) {
			continue
		}

		mu.Lock()
		outcome.ThresholdsBreached++
		mu.Unlock()

		slog.Warn("Threshold breached",
			"policy_id", policy.PolicyID,
			"index_type", rule.IndexType,
			"operator", rule.Operator,
			"threshold", rule.ThresholdValue)

		claimID := fmt.Sprintf("CLAIM_AUTO_%s_%d", policy.PolicyID, time.Now().UnixNano())
		weatherRef := fmt.Sprintf("WEATHER_CONSENSUS_%s_%d", obs.Location, time.Now().UnixMilli())

		err := s.claimRepo.TriggerPayout(ctx, s.identity,
			claimID, policy.PolicyID, policy.FarmerID, weatherRef,
			policy.CoverageAmount, rule.PayoutPercent)
		if err != nil {
			slog.Error("Failed to trigger automatic claim", "policy_id", policy.PolicyID, "claim_id", claimID, "error", err)
			appendError(fmt.Sprintf("error processing policy %s: %v", policy.PolicyID, err))
			continue
		}

		mu.Lock()
		outcome.ClaimsTriggered = append(outcome.ClaimsTriggered, claimID)
		mu.Unlock()
		slog.Info("Automatic claim triggered", "claim_id", claimID, "policy_id", policy.PolicyID)

		payoutAmount := policy.CoverageAmount * rule.PayoutPercent / 100
		txID := fmt.Sprintf("TX_PAYOUT_%s_%d", claimID, time.Now().UnixMilli())

		err = s.poolRepo.ExecutePayout(ctx, s.identity, txID, policy.FarmerID, policy.PolicyID, claimID, payoutAmount)
		if err != nil {
			// The claim exists without its payout; keep enough identifying
			// detail for manual reconciliation.
			slog.Error("Payout execution failed after claim was created",
				"claim_id", claimID,
				"policy_id", policy.PolicyID,
				"amount", payoutAmount,
				"error", err)
			appendError(fmt.Sprintf("payout failed for claim %s (policy %s): %v", claimID, policy.PolicyID, err))
			s.recordUnreconciled(ctx, runID, claimID, policy, payoutAmount, err)
			continue
		}

		slog.Info("Payout executed", "claim_id", claimID, "policy_id", policy.PolicyID, "amount", payoutAmount)
	}
}

// beginRun opens the reconciliation trail entry for this run so failed
// payout records created mid-batch can reference it. Returns an empty id
// when the trail is disabled or the insert fails.
func (s *AutomaticPayoutService) beginRun(ctx context.Context, obs models.WeatherConsensus) string {
	if s.reconRepo == nil {
		return ""
	}

	run := &models.PayoutRunRecord{
		Location:   obs.Location,
		ObservedAt: obs.Timestamp,
	}
	if err := s.reconRepo.CreateRun(ctx, run); err != nil {
		slog.Error("Failed to open payout run record", "location", obs.Location, "error", err)
		return ""
	}
	return run.ID
}

// finishRun stamps the trail entry with final counters and publishes the
// run notification. Both are best effort and never change the outcome.
func (s *AutomaticPayoutService) finishRun(ctx context.Context, obs models.WeatherConsensus, outcome *models.PayoutOutcome, runID string) {
	if s.reconRepo != nil && runID != "" {
		run := &models.PayoutRunRecord{
			ID:                 runID,
			PoliciesChecked:    outcome.PoliciesChecked,
			ThresholdsBreached: outcome.ThresholdsBreached,
			ClaimsTriggered:    len(outcome.ClaimsTriggered),
			ErrorCount:         len(outcome.Errors),
		}
		if err := s.reconRepo.UpdateRunCounters(ctx, run); err != nil {
			slog.Error("Failed to record payout run counters", "location", obs.Location, "error", err)
		}
	}

	if s.notifier != nil {
		if err := s.notifier.NotifyRunCompleted(ctx, obs, outcome); err != nil {
			slog.Error("Failed to publish payout run notification", "location", obs.Location, "error", err)
		}
	}
}

func (s *AutomaticPayoutService) recordUnreconciled(ctx context.Context, runID, claimID string, policy models.Policy, amount float64, cause error) {
	if s.reconRepo == nil || runID == "" {
		return
	}

	record := &models.UnreconciledPayout{
		RunID:        runID,
		ClaimID:      claimID,
		PolicyID:     policy.PolicyID,
		FarmerID:     policy.FarmerID,
		PayoutAmount: amount,
		FailureCause: cause.Error(),
	}
	if err := s.reconRepo.CreateUnreconciledPayout(ctx, record); err != nil {
		slog.Error("Failed to record unreconciled payout",
			"claim_id", claimID,
			"policy_id", policy.PolicyID,
			"error", err)
	}
}
