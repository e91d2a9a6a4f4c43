package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"coordination-service/internal/apperrors"
	"coordination-service/internal/ledger"
	"coordination-service/internal/models"

	"github.com/google/uuid"
)

// ApprovalStore persists approval requests. The production implementation
// writes through the ledger approval contract; tests use an in-memory fake.
type ApprovalStore interface {
	Save(ctx context.Context, id ledger.Identity, request *models.ApprovalRequest) error
	Get(ctx context.Context, id ledger.Identity, requestID string) (*models.ApprovalRequest, error)
	ListByStatus(ctx context.Context, id ledger.Identity, status models.ApprovalStatus) ([]models.ApprovalRequest, error)
	AppendHistory(ctx context.Context, id ledger.Identity, entry *models.ApprovalHistoryEntry) error
	History(ctx context.Context, id ledger.Identity, requestID string) ([]models.ApprovalHistoryEntry, error)
}

// RejectionPolicy decides whether a just-recorded rejection terminates the
// request. The default is veto: any single required-org rejection is
// terminal. Kept behind an interface so an N-of-M rejection quorum can be
// swapped in without touching the engine.
type RejectionPolicy interface {
	Terminal(request *models.ApprovalRequest) bool
}

// VetoRejection terminates a request on the first rejection.
type VetoRejection struct{}

func (VetoRejection) Terminal(*models.ApprovalRequest) bool { return true }

// ExecutionHook runs after a successful Execute for its request type. Hook
// failures are non-fatal: the primary execution is already durable and is
// neither rolled back nor retried.
type ExecutionHook func(ctx context.Context, id ledger.Identity, request *models.ApprovalRequest) error

// RequestLocker is an optional cross-instance lock for Execute. The Redis
// client satisfies it.
type RequestLocker interface {
	AcquireLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, owner string) error
}

// CreateApprovalInput is the caller-supplied description of a new request.
type CreateApprovalInput struct {
	RequestID       string             `json:"requestId"`
	RequestType     models.RequestType `json:"requestType"`
	TargetContract  string             `json:"targetContract"`
	TargetOperation string             `json:"targetOperation"`
	Arguments       []string           `json:"arguments"`
	RequiredOrgs    []string           `json:"requiredOrgs"`
	Metadata        map[string]string  `json:"metadata"`
}

// ApprovalService implements the multi-organization approval quorum state
// machine: PENDING -> APPROVED | REJECTED, APPROVED -> EXECUTED. No
// transition re-enters PENDING and terminal states never change.
type ApprovalService struct {
	store     ApprovalStore
	client    ledger.Client
	rejection RejectionPolicy
	locker    RequestLocker
	lockTTL   time.Duration

	hooksMu sync.RWMutex
	hooks   map[models.RequestType]ExecutionHook

	executeLocks sync.Map // requestID -> *sync.Mutex
}

func NewApprovalService(store ApprovalStore, client ledger.Client) *ApprovalService {
	return &ApprovalService{
		store:     store,
		client:    client,
		rejection: VetoRejection{},
		hooks:     make(map[models.RequestType]ExecutionHook),
	}
}

// WithRejectionPolicy replaces the default veto rule.
func (s *ApprovalService) WithRejectionPolicy(policy RejectionPolicy) *ApprovalService {
	s.rejection = policy
	return s
}

// WithRequestLocker enables a distributed execute lock for multi-instance
// deployments.
func (s *ApprovalService) WithRequestLocker(locker RequestLocker, ttl time.Duration) *ApprovalService {
	s.locker = locker
	s.lockTTL = ttl
	return s
}

// RegisterHook attaches a post-execution hook for one request type. New
// request types add hooks here instead of branching inside Execute.
func (s *ApprovalService) RegisterHook(requestType models.RequestType, hook ExecutionHook) {
	s.hooksMu.Lock()
	defer s.hooksMu.Unlock()
	s.hooks[requestType] = hook
}

// Create persists a new request in PENDING with empty vote maps.
func (s *ApprovalService) Create(ctx context.Context, org string, input CreateApprovalInput) (*models.ApprovalRequest, error) {
	if input.RequestID == "" {
		return nil, fmt.Errorf("%w: requestId is required", apperrors.ErrInvalidArgument)
	}
	if input.TargetContract == "" || input.TargetOperation == "" {
		return nil, fmt.Errorf("%w: targetContract and targetOperation are required", apperrors.ErrInvalidArgument)
	}
	if len(input.Arguments) == 0 {
		return nil, fmt.Errorf("%w: arguments must not be empty", apperrors.ErrInvalidArgument)
	}
	requiredOrgs := dedupe(input.RequiredOrgs)
	if len(requiredOrgs) == 0 {
		return nil, fmt.Errorf("%w: requiredOrgs must not be empty", apperrors.ErrInvalidArgument)
	}

	identity := ledger.Identity{MSPID: org}

	existing, err := s.store.Get(ctx, identity, input.RequestID)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: approval request %s already exists", apperrors.ErrInvalidArgument, input.RequestID)
	}

	metadata := input.Metadata
	if metadata == nil {
		metadata = make(map[string]string)
	}

	now := time.Now()
	request := &models.ApprovalRequest{
		RequestID:       input.RequestID,
		RequestType:     input.RequestType,
		TargetContract:  input.TargetContract,
		TargetOperation: input.TargetOperation,
		Arguments:       input.Arguments,
		RequiredOrgs:    requiredOrgs,
		Approvals:       make(map[string]bool),
		Rejections:      make(map[string]string),
		Status:          models.ApprovalPending,
		Metadata:        metadata,
		CreatedBy:       org,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.store.Save(ctx, identity, request); err != nil {
		return nil, err
	}

	s.recordHistory(ctx, identity, request.RequestID, models.ActionCreate, org, "Request created")

	return request, nil
}

// Approve records one organization's approval. Re-approval by the same org
// is a successful no-op, matching at-least-once delivery from callers. The
// quorum decision is made from a fresh snapshot read back after the write.
func (s *ApprovalService) Approve(ctx context.Context, org, requestID, reason string) (*models.ApprovalRequest, error) {
	identity := ledger.Identity{MSPID: org}

	request, err := s.votePrecheck(ctx, identity, org, requestID)
	if err != nil {
		return nil, err
	}

	if _, rejected := request.Rejections[org]; rejected {
		return nil, fmt.Errorf("%w: organization %s has already rejected request %s", apperrors.ErrInvalidState, org, requestID)
	}
	if request.Approvals[org] {
		return request, nil
	}

	request.Approvals[org] = true
	request.UpdatedAt = time.Now()

	if err := s.store.Save(ctx, identity, request); err != nil {
		return nil, err
	}

	// Quorum check against the stored state, not the local copy, so
	// concurrent approvals cannot miss the transition.
	snapshot, err := s.store.Get(ctx, identity, requestID)
	if err != nil {
		return nil, err
	}
	if snapshot.Status == models.ApprovalPending && snapshot.FullyApproved() {
		snapshot.Status = models.ApprovalApproved
		snapshot.UpdatedAt = time.Now()
		if err := s.store.Save(ctx, identity, snapshot); err != nil {
			return nil, err
		}
		slog.Info("Approval quorum reached", "request_id", requestID, "required_orgs", len(snapshot.RequiredOrgs))
	}

	s.recordHistory(ctx, identity, requestID, models.ActionApprove, org, reason)

	return snapshot, nil
}

// Reject records one organization's rejection. Under the default veto
// policy a single rejection is terminal no matter how many approvals
// already exist.
func (s *ApprovalService) Reject(ctx context.Context, org, requestID, reason string) (*models.ApprovalRequest, error) {
	if reason == "" {
		return nil, fmt.Errorf("%w: rejection reason is required", apperrors.ErrInvalidArgument)
	}

	identity := ledger.Identity{MSPID: org}

	request, err := s.votePrecheck(ctx, identity, org, requestID)
	if err != nil {
		return nil, err
	}

	if request.Approvals[org] {
		return nil, fmt.Errorf("%w: organization %s has already approved request %s", apperrors.ErrInvalidState, org, requestID)
	}

	request.Rejections[org] = reason
	if s.rejection.Terminal(request) {
		request.Status = models.ApprovalRejected
	}
	request.UpdatedAt = time.Now()

	if err := s.store.Save(ctx, identity, request); err != nil {
		return nil, err
	}

	s.recordHistory(ctx, identity, requestID, models.ActionReject, org, reason)
	slog.Info("Approval request rejected", "request_id", requestID, "org", org)

	return request, nil
}

// Execute invokes the stored target operation exactly once for an APPROVED
// request. A ledger failure leaves the request APPROVED so a later retry is
// safe; a hook failure is reported as a warning, never rolled back.
func (s *ApprovalService) Execute(ctx context.Context, org, requestID string) (*models.ExecutionResult, error) {
	if requestID == "" {
		return nil, fmt.Errorf("%w: requestId is required", apperrors.ErrInvalidArgument)
	}

	// Serialize concurrent executes for the same request within this
	// instance.
	lockAny, _ := s.executeLocks.LoadOrStore(requestID, &sync.Mutex{})
	lock := lockAny.(*sync.Mutex)
	lock.Lock()
	defer lock.Unlock()

	identity := ledger.Identity{MSPID: org}

	if s.locker != nil {
		owner := uuid.NewString()
		key := "approval:execute:" + requestID
		acquired, err := s.locker.AcquireLock(ctx, key, owner, s.lockTTL)
		if err != nil {
			slog.Warn("Execute lock unavailable, relying on ledger conditional write", "request_id", requestID, "error", err)
		} else if !acquired {
			return nil, fmt.Errorf("%w: request %s is already being executed", apperrors.ErrInvalidState, requestID)
		} else {
			defer func() {
				if err := s.locker.ReleaseLock(ctx, key, owner); err != nil {
					slog.Warn("Failed to release execute lock", "request_id", requestID, "error", err)
				}
			}()
		}
	}

	request, err := s.store.Get(ctx, identity, requestID)
	if err != nil {
		return nil, err
	}
	if request.Status != models.ApprovalApproved {
		return nil, fmt.Errorf("%w: request %s must be APPROVED before execution (status: %s)",
			apperrors.ErrInvalidState, requestID, request.Status)
	}

	payload, err := s.client.Submit(ctx, identity, request.TargetContract, request.TargetOperation, request.Arguments...)
	if err != nil {
		// The request stays APPROVED; execution may be retried later.
		return nil, fmt.Errorf("execution of request %s failed: %w", requestID, err)
	}

	now := time.Now()
	request.Status = models.ApprovalExecuted
	request.ExecutedBy = org
	request.ExecutedAt = &now
	request.ExecutedTxRef = uuid.NewString()
	request.UpdatedAt = now

	result := &models.ExecutionResult{
		RequestID: requestID,
		TxRef:     request.ExecutedTxRef,
		Payload:   payload,
	}

	if err := s.store.Save(ctx, identity, request); err != nil {
		// The target operation is already committed; surface the state
		// update failure instead of pretending the execution failed.
		slog.Error("Executed request but failed to persist EXECUTED state", "request_id", requestID, "error", err)
		result.Warning = fmt.Sprintf("executed, but state update failed: %v", err)
		return result, nil
	}

	s.recordHistory(ctx, identity, requestID, models.ActionExecute, org, "Request executed")

	if hook := s.hookFor(request.RequestType); hook != nil {
		if err := hook(ctx, identity, request); err != nil {
			slog.Warn("Post-execution hook failed",
				"request_id", requestID,
				"request_type", request.RequestType,
				"error", err)
			result.Warning = fmt.Sprintf("post-execution hook failed: %v", err)
		}
	}

	return result, nil
}

// Get returns one request.
func (s *ApprovalService) Get(ctx context.Context, org, requestID string) (*models.ApprovalRequest, error) {
	return s.store.Get(ctx, ledger.Identity{MSPID: org}, requestID)
}

// ListByStatus returns every request in the given status.
func (s *ApprovalService) ListByStatus(ctx context.Context, org string, status models.ApprovalStatus) ([]models.ApprovalRequest, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: invalid status %q", apperrors.ErrInvalidArgument, status)
	}
	return s.store.ListByStatus(ctx, ledger.Identity{MSPID: org}, status)
}

// ListAll merges every status list, newest first. A failed status query is
// skipped so one bad query does not hide the rest of the dashboard.
func (s *ApprovalService) ListAll(ctx context.Context, org string) ([]models.ApprovalRequest, error) {
	identity := ledger.Identity{MSPID: org}
	statuses := []models.ApprovalStatus{
		models.ApprovalPending,
		models.ApprovalApproved,
		models.ApprovalRejected,
		models.ApprovalExecuted,
	}

	var all []models.ApprovalRequest
	for _, status := range statuses {
		requests, err := s.store.ListByStatus(ctx, identity, status)
		if err != nil {
			slog.Warn("Failed to list approvals for status", "status", status, "error", err)
			continue
		}
		all = append(all, requests...)
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	return all, nil
}

// History returns the audit trail for one request.
func (s *ApprovalService) History(ctx context.Context, org, requestID string) ([]models.ApprovalHistoryEntry, error) {
	if _, err := s.store.Get(ctx, ledger.Identity{MSPID: org}, requestID); err != nil {
		return nil, err
	}
	return s.store.History(ctx, ledger.Identity{MSPID: org}, requestID)
}

// votePrecheck runs the shared existence, state, and authorization checks
// for Approve and Reject.
func (s *ApprovalService) votePrecheck(ctx context.Context, identity ledger.Identity, org, requestID string) (*models.ApprovalRequest, error) {
	if requestID == "" {
		return nil, fmt.Errorf("%w: requestId is required", apperrors.ErrInvalidArgument)
	}
	if org == "" {
		return nil, fmt.Errorf("%w: organization is required", apperrors.ErrInvalidArgument)
	}

	request, err := s.store.Get(ctx, identity, requestID)
	if err != nil {
		return nil, err
	}

	if request.Status != models.ApprovalPending {
		return nil, fmt.Errorf("%w: request %s is not pending (status: %s)",
			apperrors.ErrInvalidState, requestID, request.Status)
	}
	if !request.RequiresOrg(org) {
		return nil, fmt.Errorf("%w: organization %s is not in the required set for request %s",
			apperrors.ErrUnauthorized, org, requestID)
	}

	return request, nil
}

func (s *ApprovalService) hookFor(requestType models.RequestType) ExecutionHook {
	s.hooksMu.RLock()
	defer s.hooksMu.RUnlock()
	return s.hooks[requestType]
}

// recordHistory appends an audit entry. History is secondary to the state
// transition itself, so a failed append is logged rather than failing the
// already-applied operation.
func (s *ApprovalService) recordHistory(ctx context.Context, identity ledger.Identity, requestID string, action models.ApprovalAction, org, reason string) {
	entry := &models.ApprovalHistoryEntry{
		RequestID:    requestID,
		Action:       action,
		Organization: org,
		Reason:       reason,
		Timestamp:    time.Now(),
	}
	if err := s.store.AppendHistory(ctx, identity, entry); err != nil {
		slog.Warn("Failed to record approval history", "request_id", requestID, "action", action, "error", err)
	}
}

func dedupe(orgs []string) []string {
	seen := make(map[string]bool, len(orgs))
	out := make([]string, 0, len(orgs))
	for _, org := range orgs {
		if org == "" || seen[org] {
			continue
		}
		seen[org] = true
		out = append(out, org)
	}
	return out
}
