package sync

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// ReconcilerConfig describes the dependencies for the reconciliation sweep.
type ReconcilerConfig struct {
	Ledger  *Ledger
	Pending *PendingStore
	Deps    Deps
	Clock   func() time.Time
	Logger  *zap.Logger
}

// Reconciler closes the gap left by the ledger and pending store being
// written separately: it re-derives ledger success from actual entity
// existence and realigns stale pending ledger rows with their resolved
// pending entries.
type Reconciler struct {
	ledger  *Ledger
	pending *PendingStore
	deps    Deps
	clock   func() time.Time
	logger  *zap.Logger
}

// NewReconciler constructs a Reconciler.
func NewReconciler(cfg ReconcilerConfig) (*Reconciler, error) {
	if cfg.Ledger == nil || cfg.Pending == nil {
		return nil, errors.New("sync: reconciler requires ledger and pending store")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		ledger:  cfg.Ledger,
		pending: cfg.Pending,
		deps:    cfg.Deps,
		clock:   clock,
		logger:  logger,
	}, nil
}

// Report summarizes one reconciliation sweep.
type Report struct {
	IntegrityGaps int
	RealignedRows int
	ExaminedRows  int
}

// Run executes one sweep over the ledger.
func (r *Reconciler) Run(ctx context.Context) (Report, error) {
	report := Report{}

	successRows, err := r.ledger.AllWithStatus(ctx, LogSuccess)
	if err != nil {
		return report, err
	}
	for _, row := range successRows {
		report.ExaminedRows++
		if err := r.checkSuccessRow(ctx, row, &report); err != nil {
			return report, err
		}
	}

	pendingRows, err := r.ledger.AllWithStatus(ctx, LogPending)
	if err != nil {
		return report, err
	}
	for _, row := range pendingRows {
		report.ExaminedRows++
		if err := r.realignPendingRow(ctx, row, &report); err != nil {
			return report, err
		}
	}

	if report.IntegrityGaps > 0 || report.RealignedRows > 0 {
		r.logger.Info("reconciliation sweep finished",
			zap.Int("examined", report.ExaminedRows),
			zap.Int("integrity_gaps", report.IntegrityGaps),
			zap.Int("realigned", report.RealignedRows))
	}
	return report, nil
}

// checkSuccessRow verifies the entity behind a success row still exists. A
// missing entity is an integrity gap: surfaced as an error row, never left
// masquerading as success.
func (r *Reconciler) checkSuccessRow(ctx context.Context, row SyncLog, report *Report) error {
	if row.EntityID == nil {
		gap := &IntegrityGapError{Reference: row.ClientReference, EntityType: row.EntityType}
		return r.flagGap(ctx, row, gap, report)
	}

	v, err := variantFor(row.EntityType)
	if err != nil {
		return err
	}
	exists, err := v.entityExists(ctx, r.deps, *row.EntityID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	gap := &IntegrityGapError{
		Reference:  row.ClientReference,
		EntityType: row.EntityType,
		EntityID:   *row.EntityID,
	}
	return r.flagGap(ctx, row, gap, report)
}

func (r *Reconciler) flagGap(ctx context.Context, row SyncLog, gap *IntegrityGapError, report *Report) error {
	r.logger.Error("integrity gap detected",
		zap.String("reference", row.ClientReference),
		zap.String("entity_type", row.EntityType.String()),
		zap.Error(gap))
	report.IntegrityGaps++
	return r.ledger.Upsert(ctx, row.ClientReference, row.EntityType, LogUpdate{
		SalesmanID:  row.SalesmanID,
		Status:      LogError,
		PayloadHash: row.PayloadHash,
		LastError:   gap.Error(),
	})
}

// realignPendingRow moves a pending ledger row forward when its pending entry
// has already been decided.
func (r *Reconciler) realignPendingRow(ctx context.Context, row SyncLog, report *Report) error {
	entry, err := r.pending.FindByReference(ctx, row.EntityType, row.ClientReference)
	if err != nil {
		return err
	}
	if entry == nil || entry.Status == PendingStatusPending {
		return nil
	}

	update := LogUpdate{SalesmanID: row.SalesmanID, PayloadHash: entry.PayloadHash}
	switch entry.Status {
	case PendingStatusApproved:
		update.Status = LogSuccess
		update.EntityID = entry.EntityID
	case PendingStatusRejected:
		update.Status = LogRejected
		update.LastError = entry.RejectionReason
	default:
		return nil
	}

	if err := r.ledger.Upsert(ctx, row.ClientReference, row.EntityType, update); err != nil {
		return err
	}
	report.RealignedRows++
	return nil
}

// RunEvery executes sweeps on the given interval until the context is
// cancelled.
func (r *Reconciler) RunEvery(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Run(ctx); err != nil {
				r.logger.Error("reconciliation sweep failed", zap.Error(err))
			}
		}
	}
}
