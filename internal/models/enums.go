package models

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalRejected ApprovalStatus = "REJECTED"
	ApprovalExecuted ApprovalStatus = "EXECUTED"
)

func (s ApprovalStatus) Valid() bool {
	switch s {
	case ApprovalPending, ApprovalApproved, ApprovalRejected, ApprovalExecuted:
		return true
	}
	return false
}

type RequestType string

const (
	RequestFarmerRegistration RequestType = "FARMER_REGISTRATION"
	RequestPolicyCreation     RequestType = "POLICY_CREATION"
	RequestClaimApproval      RequestType = "CLAIM_APPROVAL"
	RequestPoolWithdrawal     RequestType = "POOL_WITHDRAWAL"
)

type ApprovalAction string

const (
	ActionCreate  ApprovalAction = "CREATE"
	ActionApprove ApprovalAction = "APPROVE"
	ActionReject  ApprovalAction = "REJECT"
	ActionExecute ApprovalAction = "EXECUTE"
)

type IndexType string

const (
	IndexRainfall    IndexType = "Rainfall"
	IndexTemperature IndexType = "Temperature"
	IndexHumidity    IndexType = "Humidity"
	IndexDrought     IndexType = "Drought"
)

type ThresholdOperator string

const (
	ThresholdLT  ThresholdOperator = "<"
	ThresholdGT  ThresholdOperator = ">"
	ThresholdLTE ThresholdOperator = "<="
	ThresholdGTE ThresholdOperator = ">="
	ThresholdEQ  ThresholdOperator = "=="
)

type PolicyStatus string

const (
	PolicyActive    PolicyStatus = "Active"
	PolicyExpired   PolicyStatus = "Expired"
	PolicyClaimed   PolicyStatus = "Claimed"
	PolicyCancelled PolicyStatus = "Cancelled"
)
