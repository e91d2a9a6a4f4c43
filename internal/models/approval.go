package models

import "time"

// ApprovalRequest is a proposal to execute one named operation against one
// named ledger contract once every required organization has signed off.
// Vote maps only ever grow; the request itself is never deleted so it can
// serve as an audit record.
type ApprovalRequest struct {
	RequestID       string            `json:"requestId"`
	RequestType     RequestType       `json:"requestType"`
	TargetContract  string            `json:"targetContract"`
	TargetOperation string            `json:"targetOperation"`
	Arguments       []string          `json:"arguments"`
	RequiredOrgs    []string          `json:"requiredOrgs"`
	Approvals       map[string]bool   `json:"approvals"`
	Rejections      map[string]string `json:"rejections"`
	Status          ApprovalStatus    `json:"status"`
	Metadata        map[string]string `json:"metadata"`
	CreatedBy       string            `json:"createdBy"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
	ExecutedBy      string            `json:"executedBy,omitempty"`
	ExecutedAt      *time.Time        `json:"executedAt,omitempty"`
	ExecutedTxRef   string            `json:"executedTxRef,omitempty"`
}

// RequiresOrg reports whether org belongs to the request's required set.
func (r *ApprovalRequest) RequiresOrg(org string) bool {
	for _, required := range r.RequiredOrgs {
		if required == org {
			return true
		}
	}
	return false
}

// FullyApproved reports whether every required organization has an approval
// entry recorded.
func (r *ApprovalRequest) FullyApproved() bool {
	for _, org := range r.RequiredOrgs {
		if !r.Approvals[org] {
			return false
		}
	}
	return true
}

// ApprovalHistoryEntry records one action taken on an approval request.
type ApprovalHistoryEntry struct {
	RequestID    string         `json:"requestId"`
	Action       ApprovalAction `json:"action"`
	Organization string         `json:"organization"`
	Reason       string         `json:"reason"`
	Timestamp    time.Time      `json:"timestamp"`
}

// ExecutionResult is the outcome of executing an approved request. Warning
// carries a non-fatal post-execution hook failure (e.g. the premium deposit
// after a policy creation); the primary execution is already durable when a
// warning is reported.
type ExecutionResult struct {
	RequestID string `json:"requestId"`
	TxRef     string `json:"txRef"`
	Payload   []byte `json:"payload,omitempty"`
	Warning   string `json:"warning,omitempty"`
}
