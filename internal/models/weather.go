package models

import "time"

// WeatherConsensus is a consensus-validated weather observation for one
// location, produced by the oracle boundary. It is not persisted here.
type WeatherConsensus struct {
	Location    string    `json:"location"`
	Timestamp   time.Time `json:"timestamp"`
	Rainfall    float64   `json:"rainfall"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
}

// PayoutOutcome aggregates one orchestration run. A claim id appears in
// ClaimsTriggered as soon as its claim write succeeds, even when the
// follow-up payout write fails; that failure is recorded in Errors with the
// claim and policy ids so it can be reconciled manually.
type PayoutOutcome struct {
	PoliciesChecked    int      `json:"policiesChecked"`
	ThresholdsBreached int      `json:"thresholdsBreached"`
	ClaimsTriggered    []string `json:"claimsTriggered"`
	Errors             []string `json:"errors"`
}

// PayoutRunRecord is the reconciliation trail entry for one orchestration
// run, persisted locally (not on the ledger) for operator review.
type PayoutRunRecord struct {
	ID                 string    `db:"id" json:"id"`
	Location           string    `db:"location" json:"location"`
	ObservedAt         time.Time `db:"observed_at" json:"observedAt"`
	PoliciesChecked    int       `db:"policies_checked" json:"policiesChecked"`
	ThresholdsBreached int       `db:"thresholds_breached" json:"thresholdsBreached"`
	ClaimsTriggered    int       `db:"claims_triggered" json:"claimsTriggered"`
	ErrorCount         int       `db:"error_count" json:"errorCount"`
	CreatedAt          time.Time `db:"created_at" json:"createdAt"`
}

// UnreconciledPayout records a claim whose payout submission failed and
// needs manual follow-up.
type UnreconciledPayout struct {
	ID           string     `db:"id" json:"id"`
	RunID        string     `db:"run_id" json:"runId"`
	ClaimID      string     `db:"claim_id" json:"claimId"`
	PolicyID     string     `db:"policy_id" json:"policyId"`
	FarmerID     string     `db:"farmer_id" json:"farmerId"`
	PayoutAmount float64    `db:"payout_amount" json:"payoutAmount"`
	FailureCause string     `db:"failure_cause" json:"failureCause"`
	ResolvedAt   *time.Time `db:"resolved_at" json:"resolvedAt,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
}
