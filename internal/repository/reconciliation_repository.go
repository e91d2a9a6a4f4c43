package repository

import (
	"context"
	"fmt"
	"time"

	"coordination-service/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ReconciliationRepository keeps the local trail of orchestration runs and
// payout writes that failed after their claim was already created.
type ReconciliationRepository struct {
	db *sqlx.DB
}

func NewReconciliationRepository(db *sqlx.DB) *ReconciliationRepository {
	return &ReconciliationRepository{db: db}
}

func (r *ReconciliationRepository) CreateRun(ctx context.Context, run *models.PayoutRunRecord) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO payout_run (
			id, location, observed_at, policies_checked, thresholds_breached,
			claims_triggered, error_count, created_at
		) VALUES (
			:id, :location, :observed_at, :policies_checked, :thresholds_breached,
			:claims_triggered, :error_count, :created_at
		)`

	_, err := r.db.NamedExecContext(ctx, query, run)
	if err != nil {
		return fmt.Errorf("failed to create payout run record: %w", err)
	}

	return nil
}

// UpdateRunCounters rewrites a run's aggregate counters once the batch has
// finished. The row is created at the start of the run so unreconciled
// payout records can reference it while the batch is still in flight.
func (r *ReconciliationRepository) UpdateRunCounters(ctx context.Context, run *models.PayoutRunRecord) error {
	query := `
		UPDATE payout_run SET
			policies_checked = :policies_checked,
			thresholds_breached = :thresholds_breached,
			claims_triggered = :claims_triggered,
			error_count = :error_count
		WHERE id = :id`

	_, err := r.db.NamedExecContext(ctx, query, run)
	if err != nil {
		return fmt.Errorf("failed to update payout run counters: %w", err)
	}

	return nil
}

func (r *ReconciliationRepository) CreateUnreconciledPayout(ctx context.Context, payout *models.UnreconciledPayout) error {
	if payout.ID == "" {
		payout.ID = uuid.NewString()
	}
	if payout.CreatedAt.IsZero() {
		payout.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO unreconciled_payout (
			id, run_id, claim_id, policy_id, farmer_id,
			payout_amount, failure_cause, resolved_at, created_at
		) VALUES (
			:id, :run_id, :claim_id, :policy_id, :farmer_id,
			:payout_amount, :failure_cause, :resolved_at, :created_at
		)`

	_, err := r.db.NamedExecContext(ctx, query, payout)
	if err != nil {
		return fmt.Errorf("failed to create unreconciled payout record: %w", err)
	}

	return nil
}

// ListOpen returns payouts still awaiting manual reconciliation, oldest
// first.
func (r *ReconciliationRepository) ListOpen(ctx context.Context) ([]models.UnreconciledPayout, error) {
	var payouts []models.UnreconciledPayout
	query := `
		SELECT id, run_id, claim_id, policy_id, farmer_id,
			payout_amount, failure_cause, resolved_at, created_at
		FROM unreconciled_payout
		WHERE resolved_at IS NULL
		ORDER BY created_at ASC`

	if err := r.db.SelectContext(ctx, &payouts, query); err != nil {
		return nil, fmt.Errorf("failed to list unreconciled payouts: %w", err)
	}

	return payouts, nil
}

// MarkResolved stamps a payout record once an operator has settled it.
func (r *ReconciliationRepository) MarkResolved(ctx context.Context, id string) error {
	query := `UPDATE unreconciled_payout SET resolved_at = $1 WHERE id = $2 AND resolved_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to mark payout %s resolved: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("unreconciled payout %s not found or already resolved", id)
	}

	return nil
}
