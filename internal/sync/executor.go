package sync

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Reviewer identifies the back-office user deciding a pending entry.
type Reviewer struct {
	ID   uint
	Name string
}

// ApprovalResult reports the entity materialized by an approval.
type ApprovalResult struct {
	PendingID uint   `json:"pendingId"`
	EntityID  uint   `json:"entityId"`
	EntityNo  string `json:"entityNo"`
}

// ExecutorConfig describes the dependencies for the approval executor.
type ExecutorConfig struct {
	Pending *PendingStore
	Ledger  *Ledger
	Deps    Deps
	Clock   func() time.Time
	Logger  *zap.Logger
}

// Executor drives the pending -> {approved, rejected} state machine. The
// status claim happens before any side effect, so concurrent decisions on the
// same entry resolve to exactly one winner; the loser gets a conflict error
// and changes nothing.
type Executor struct {
	pending *PendingStore
	ledger  *Ledger
	deps    Deps
	clock   func() time.Time
	logger  *zap.Logger
}

// NewExecutor constructs an Executor.
func NewExecutor(cfg ExecutorConfig) (*Executor, error) {
	if cfg.Pending == nil || cfg.Ledger == nil {
		return nil, newConflictError("executor requires pending store and ledger")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		pending: cfg.Pending,
		ledger:  cfg.Ledger,
		deps:    cfg.Deps,
		clock:   clock,
		logger:  logger,
	}, nil
}

// Approve materializes the pending entry into a real domain entity and marks
// the entry approved. Entity creation is atomic (all rows or none); the
// ledger update is a second write whose gap is closed by the bundle filter
// and the reconciliation sweep.
func (e *Executor) Approve(ctx context.Context, id uint, reviewer Reviewer) (*ApprovalResult, error) {
	entry, err := e.pending.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, newConflictError("pending entry %d not found", id)
	}

	v, err := variantFor(entry.EntryType)
	if err != nil {
		return nil, err
	}

	now := e.clock().UTC()
	claimed, err := e.pending.claim(ctx, id, map[string]interface{}{
		"status":        PendingStatusApproved,
		"reviewer_id":   reviewer.ID,
		"reviewer_name": reviewer.Name,
		"reviewed_at":   now,
	})
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, newConflictError("entry %d is not pending", id)
	}

	entityID, entityNo, err := v.materialize(ctx, e.deps, entry)
	if err != nil {
		// Roll the claim back so the reviewer can retry once the cause is
		// fixed; no entity rows exist because materialization is atomic.
		if releaseErr := e.pending.release(ctx, id); releaseErr != nil {
			e.logger.Error("failed to release claimed entry",
				zap.Uint("pending_id", id), zap.Error(releaseErr))
		}
		return nil, err
	}

	if err := e.pending.setEntity(ctx, id, entityID); err != nil {
		e.logger.Error("failed to record entity on pending entry",
			zap.Uint("pending_id", id), zap.Uint("entity_id", entityID), zap.Error(err))
	}

	if err := e.ledger.Upsert(ctx, entry.ClientReference, entry.EntryType, LogUpdate{
		SalesmanID:  entry.SalesmanID,
		EntityID:    &entityID,
		Status:      LogSuccess,
		PayloadHash: entry.PayloadHash,
	}); err != nil {
		// Recoverable: the reconciliation sweep re-derives success from the
		// entity's existence.
		e.logger.Error("ledger update failed after approval",
			zap.String("reference", entry.ClientReference), zap.Error(err))
	}

	e.logger.Info("pending entry approved",
		zap.Uint("pending_id", id),
		zap.String("entry_type", entry.EntryType.String()),
		zap.String("reference", entry.ClientReference),
		zap.String("entity_no", entityNo),
		zap.Uint("reviewer_id", reviewer.ID))

	return &ApprovalResult{PendingID: id, EntityID: entityID, EntityNo: entityNo}, nil
}

// Reject marks the pending entry rejected with the given reason and records
// the rejection in the ledger.
func (e *Executor) Reject(ctx context.Context, id uint, reason string, reviewer Reviewer) error {
	if reason == "" {
		return newValidationError("rejection reason is required")
	}

	entry, err := e.pending.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if entry == nil {
		return newConflictError("pending entry %d not found", id)
	}

	now := e.clock().UTC()
	claimed, err := e.pending.claim(ctx, id, map[string]interface{}{
		"status":           PendingStatusRejected,
		"reviewer_id":      reviewer.ID,
		"reviewer_name":    reviewer.Name,
		"reviewed_at":      now,
		"rejection_reason": reason,
	})
	if err != nil {
		return err
	}
	if !claimed {
		return newConflictError("entry %d is not pending", id)
	}

	if err := e.ledger.Upsert(ctx, entry.ClientReference, entry.EntryType, LogUpdate{
		SalesmanID:  entry.SalesmanID,
		Status:      LogRejected,
		PayloadHash: entry.PayloadHash,
		LastError:   reason,
	}); err != nil {
		e.logger.Error("ledger update failed after rejection",
			zap.String("reference", entry.ClientReference), zap.Error(err))
	}

	e.logger.Info("pending entry rejected",
		zap.Uint("pending_id", id),
		zap.String("reference", entry.ClientReference),
		zap.String("reason", reason),
		zap.Uint("reviewer_id", reviewer.ID))
	return nil
}
