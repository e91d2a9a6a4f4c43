package models

// Policy is the read model of an insurance policy as stored by the ledger
// policy contract. Only the fields the orchestrator needs are mapped; the
// contract owns the full record.
type Policy struct {
	PolicyID       string       `json:"policyID"`
	FarmerID       string       `json:"farmerID"`
	TemplateID     string       `json:"templateID"`
	CoverageAmount float64      `json:"coverageAmount"`
	PremiumAmount  float64      `json:"premiumAmount"`
	FarmLocation   string       `json:"farmLocation"`
	CropType       string       `json:"cropType"`
	Status         PolicyStatus `json:"status"`
}

// PolicyTemplate is the read model of a policy template and its payout
// trigger conditions.
type PolicyTemplate struct {
	TemplateID      string           `json:"templateID"`
	TemplateName    string           `json:"templateName"`
	IndexThresholds []IndexThreshold `json:"indexThresholds"`
}

// IndexThreshold is one weather-index trigger condition. Immutable once the
// owning template is active.
type IndexThreshold struct {
	IndexType       IndexType         `json:"indexType"`
	Metric          string            `json:"metric"`
	ThresholdValue  float64           `json:"thresholdValue"`
	Operator        ThresholdOperator `json:"operator"`
	MeasurementDays int               `json:"measurementDays"`
	PayoutPercent   float64           `json:"payoutPercent"`
	Severity        string            `json:"severity"`
}
