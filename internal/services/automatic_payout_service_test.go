package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"coordination-service/internal/config"
	"coordination-service/internal/ledger"
	"coordination-service/internal/models"
	"coordination-service/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedLedger serves canned policy and template reads and records every
// write, with per-operation error injection.
type scriptedLedger struct {
	mu          sync.Mutex
	policies    []models.Policy
	templates   map[string]models.PolicyTemplate
	policiesErr error
	claimErr    error
	payoutErr   error
	submits     []submitCall
}

func (f *scriptedLedger) Evaluate(_ context.Context, _ ledger.Identity, _, operation string, args ...string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch operation {
	case "GetAllPolicies":
		if f.policiesErr != nil {
			return nil, f.policiesErr
		}
		return json.Marshal(f.policies)
	case "GetTemplate":
		template, ok := f.templates[args[0]]
		if !ok {
			return []byte("null"), nil
		}
		return json.Marshal(template)
	default:
		return nil, fmt.Errorf("unexpected evaluate operation %s", operation)
	}
}

func (f *scriptedLedger) Submit(_ context.Context, id ledger.Identity, contract, operation string, args ...string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch operation {
	case "TriggerPayout":
		if f.claimErr != nil {
			return nil, f.claimErr
		}
	case "ExecutePayout":
		if f.payoutErr != nil {
			return nil, f.payoutErr
		}
	}

	f.submits = append(f.submits, submitCall{identity: id, contract: contract, operation: operation, args: args})
	return nil, nil
}

func (f *scriptedLedger) submitsFor(operation string) []submitCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []submitCall
	for _, call := range f.submits {
		if call.operation == operation {
			out = append(out, call)
		}
	}
	return out
}

func payoutLedgerConfig() config.LedgerConfig {
	return config.LedgerConfig{
		PolicyContract:   "policy-cc",
		TemplateContract: "policy-template-cc",
		ClaimContract:    "claim-processor-cc",
		PoolContract:     "premium-pool-cc",
	}
}

func newPayoutService(client *scriptedLedger) *AutomaticPayoutService {
	cfg := payoutLedgerConfig()
	return NewAutomaticPayoutService(
		repository.NewPolicyRepository(client, cfg),
		repository.NewClaimRepository(client, cfg),
		repository.NewPoolRepository(client, cfg),
		ledger.Identity{MSPID: "Org1MSP"},
		2,
	)
}

func droughtTemplate(payoutPercent float64) models.PolicyTemplate {
	return models.PolicyTemplate{
		TemplateID: "TMPL_DROUGHT",
		IndexThresholds: []models.IndexThreshold{
			{
				IndexType:      models.IndexRainfall,
				Operator:       models.ThresholdLT,
				ThresholdValue: 50,
				PayoutPercent:  payoutPercent,
			},
		},
	}
}

func activePolicy(policyID, templateID, location string, coverage float64) models.Policy {
	return models.Policy{
		PolicyID:       policyID,
		FarmerID:       "FARMER_" + policyID,
		TemplateID:     templateID,
		CoverageAmount: coverage,
		FarmLocation:   location,
		Status:         models.PolicyActive,
	}
}

func TestProcessConsensusTriggersClaimAndPayout(t *testing.T) {
	client := &scriptedLedger{
		policies:  []models.Policy{activePolicy("POL_001", "TMPL_DROUGHT", "Central Bangkok", 80000)},
		templates: map[string]models.PolicyTemplate{"TMPL_DROUGHT": droughtTemplate(60)},
	}
	svc := newPayoutService(client)

	outcome, err := svc.ProcessConsensus(context.Background(), models.WeatherConsensus{
		Location: "Central Bangkok",
		Rainfall: 30,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, outcome.PoliciesChecked)
	assert.Equal(t, 1, outcome.ThresholdsBreached)
	require.Len(t, outcome.ClaimsTriggered, 1)
	assert.Empty(t, outcome.Errors)

	claimID := outcome.ClaimsTriggered[0]
	assert.True(t, strings.HasPrefix(claimID, "CLAIM_AUTO_POL_001_"))

	claims := client.submitsFor("TriggerPayout")
	require.Len(t, claims, 1)
	assert.Equal(t, "claim-processor-cc", claims[0].contract)
	assert.Equal(t, claimID, claims[0].args[0])
	assert.Equal(t, "POL_001", claims[0].args[1])
	assert.Equal(t, "FARMER_POL_001", claims[0].args[2])
	assert.True(t, strings.HasPrefix(claims[0].args[3], "WEATHER_CONSENSUS_"))
	assert.Equal(t, "80000", claims[0].args[4])
	assert.Equal(t, "60", claims[0].args[5])

	// 60% of 80000 coverage.
	payouts := client.submitsFor("ExecutePayout")
	require.Len(t, payouts, 1)
	assert.Equal(t, "premium-pool-cc", payouts[0].contract)
	assert.Equal(t, claimID, payouts[0].args[3])
	assert.Equal(t, "48000", payouts[0].args[4])
}

func TestProcessConsensusNoMatchingPolicies(t *testing.T) {
	client := &scriptedLedger{
		policies:  []models.Policy{activePolicy("POL_001", "TMPL_DROUGHT", "Phuket", 80000)},
		templates: map[string]models.PolicyTemplate{"TMPL_DROUGHT": droughtTemplate(60)},
	}
	svc := newPayoutService(client)

	outcome, err := svc.ProcessConsensus(context.Background(), models.WeatherConsensus{
		Location: "Chiang Mai",
		Rainfall: 0,
	})
	require.NoError(t, err)

	assert.Equal(t, 0, outcome.PoliciesChecked)
	assert.Empty(t, outcome.ClaimsTriggered)
	assert.Empty(t, outcome.Errors)
	assert.Empty(t, client.submits)
}

func TestProcessConsensusSkipsInactivePolicies(t *testing.T) {
	expired := activePolicy("POL_OLD", "TMPL_DROUGHT", "Central Bangkok", 80000)
	expired.Status = models.PolicyExpired

	client := &scriptedLedger{
		policies:  []models.Policy{expired},
		templates: map[string]models.PolicyTemplate{"TMPL_DROUGHT": droughtTemplate(60)},
	}
	svc := newPayoutService(client)

	outcome, err := svc.ProcessConsensus(context.Background(), models.WeatherConsensus{
		Location: "Central Bangkok",
		Rainfall: 0,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, outcome.PoliciesChecked)
	assert.Empty(t, client.submits)
}

func TestProcessConsensusFuzzyLocationMatch(t *testing.T) {
	client := &scriptedLedger{
		policies:  []models.Policy{activePolicy("POL_001", "TMPL_DROUGHT", "Central_Bangkok", 80000)},
		templates: map[string]models.PolicyTemplate{"TMPL_DROUGHT": droughtTemplate(60)},
	}
	svc := newPayoutService(client)

	outcome, err := svc.ProcessConsensus(context.Background(), models.WeatherConsensus{
		Location: "Central, Bangkok",
		Rainfall: 30,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.PoliciesChecked)
	assert.Len(t, outcome.ClaimsTriggered, 1)
}

func TestProcessConsensusPolicyFetchFailureIsFatal(t *testing.T) {
	client := &scriptedLedger{policiesErr: fmt.Errorf("gateway unavailable")}
	svc := newPayoutService(client)

	outcome, err := svc.ProcessConsensus(context.Background(), models.WeatherConsensus{Location: "Bangkok"})
	assert.Error(t, err)
	assert.Nil(t, outcome)
}

func TestProcessConsensusIsolatesPolicyFailures(t *testing.T) {
	client := &scriptedLedger{
		policies: []models.Policy{
			activePolicy("POL_BAD", "TMPL_MISSING", "Bangkok", 50000),
			activePolicy("POL_GOOD", "TMPL_DROUGHT", "Bangkok", 80000),
		},
		templates: map[string]models.PolicyTemplate{"TMPL_DROUGHT": droughtTemplate(60)},
	}
	svc := newPayoutService(client)

	outcome, err := svc.ProcessConsensus(context.Background(), models.WeatherConsensus{
		Location: "Bangkok",
		Rainfall: 30,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, outcome.PoliciesChecked)
	assert.Len(t, outcome.ClaimsTriggered, 1)
	require.Len(t, outcome.Errors, 1)
	assert.Contains(t, outcome.Errors[0], "POL_BAD")
}

func TestProcessConsensusRecordsMissingThresholds(t *testing.T) {
	client := &scriptedLedger{
		policies: []models.Policy{activePolicy("POL_001", "TMPL_EMPTY", "Bangkok", 80000)},
		templates: map[string]models.PolicyTemplate{
			"TMPL_EMPTY": {TemplateID: "TMPL_EMPTY"},
		},
	}
	svc := newPayoutService(client)

	outcome, err := svc.ProcessConsensus(context.Background(), models.WeatherConsensus{
		Location: "Bangkok",
		Rainfall: 30,
	})
	require.NoError(t, err)

	require.Len(t, outcome.Errors, 1)
	assert.Contains(t, outcome.Errors[0], "no thresholds defined")
	assert.Empty(t, outcome.ClaimsTriggered)
	assert.Empty(t, client.submits)
}

func TestProcessConsensusClaimCountedWhenPayoutFails(t *testing.T) {
	client := &scriptedLedger{
		policies:  []models.Policy{activePolicy("POL_001", "TMPL_DROUGHT", "Bangkok", 80000)},
		templates: map[string]models.PolicyTemplate{"TMPL_DROUGHT": droughtTemplate(60)},
		payoutErr: fmt.Errorf("pool balance unavailable"),
	}
	svc := newPayoutService(client)

	outcome, err := svc.ProcessConsensus(context.Background(), models.WeatherConsensus{
		Location: "Bangkok",
		Rainfall: 30,
	})
	require.NoError(t, err)

	require.Len(t, outcome.ClaimsTriggered, 1)
	require.Len(t, outcome.Errors, 1)
	assert.Contains(t, outcome.Errors[0], outcome.ClaimsTriggered[0])
	assert.Contains(t, outcome.Errors[0], "POL_001")
}

func TestProcessConsensusClaimFailureSkipsPayout(t *testing.T) {
	client := &scriptedLedger{
		policies:  []models.Policy{activePolicy("POL_001", "TMPL_DROUGHT", "Bangkok", 80000)},
		templates: map[string]models.PolicyTemplate{"TMPL_DROUGHT": droughtTemplate(60)},
		claimErr:  fmt.Errorf("claim rejected by contract"),
	}
	svc := newPayoutService(client)

	outcome, err := svc.ProcessConsensus(context.Background(), models.WeatherConsensus{
		Location: "Bangkok",
		Rainfall: 30,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, outcome.ThresholdsBreached)
	assert.Empty(t, outcome.ClaimsTriggered)
	require.Len(t, outcome.Errors, 1)
	assert.Empty(t, client.submitsFor("ExecutePayout"))
}

func TestProcessConsensusMultipleBreachesPerPolicy(t *testing.T) {
	template := models.PolicyTemplate{
		TemplateID: "TMPL_MULTI",
		IndexThresholds: []models.IndexThreshold{
			{IndexType: models.IndexRainfall, Operator: models.ThresholdLT, ThresholdValue: 50, PayoutPercent: 30},
			{IndexType: models.IndexTemperature, Operator: models.ThresholdGT, ThresholdValue: 40, PayoutPercent: 20},
			{IndexType: models.IndexHumidity, Operator: models.ThresholdGT, ThresholdValue: 95, PayoutPercent: 10},
		},
	}
	client := &scriptedLedger{
		policies:  []models.Policy{activePolicy("POL_001", "TMPL_MULTI", "Bangkok", 100000)},
		templates: map[string]models.PolicyTemplate{"TMPL_MULTI": template},
	}
	svc := newPayoutService(client)

	outcome, err := svc.ProcessConsensus(context.Background(), models.WeatherConsensus{
		Location:    "Bangkok",
		Rainfall:    10,
		Temperature: 45,
		Humidity:    60,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, outcome.ThresholdsBreached)
	assert.Len(t, outcome.ClaimsTriggered, 2)
	assert.Len(t, client.submitsFor("ExecutePayout"), 2)
}

// recordingNotifier captures the run-completed notification.
type recordingNotifier struct {
	mu       sync.Mutex
	outcomes []*models.PayoutOutcome
}

func (n *recordingNotifier) NotifyRunCompleted(_ context.Context, _ models.WeatherConsensus, outcome *models.PayoutOutcome) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.outcomes = append(n.outcomes, outcome)
	return nil
}

func TestProcessConsensusNotifiesRunCompletion(t *testing.T) {
	client := &scriptedLedger{
		policies:  []models.Policy{activePolicy("POL_001", "TMPL_DROUGHT", "Bangkok", 80000)},
		templates: map[string]models.PolicyTemplate{"TMPL_DROUGHT": droughtTemplate(60)},
	}
	notifier := &recordingNotifier{}
	svc := newPayoutService(client).WithRunNotifier(notifier)

	outcome, err := svc.ProcessConsensus(context.Background(), models.WeatherConsensus{
		Location: "Bangkok",
		Rainfall: 30,
	})
	require.NoError(t, err)

	require.Len(t, notifier.outcomes, 1)
	assert.Equal(t, outcome, notifier.outcomes[0])
}
