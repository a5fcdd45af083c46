package sync

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LogStatus is the last known processing outcome for a client reference.
// Transitions move forward only: (none) -> pending -> {success, error,
// rejected}; success is terminal unless the payload hash drifts.
type LogStatus string

const (
	LogPending  LogStatus = "pending"
	LogSuccess  LogStatus = "success"
	LogError    LogStatus = "error"
	LogRejected LogStatus = "rejected"
)

// SyncLog is the durable idempotency record for one client reference. Exactly
// one row exists per (client_reference, entity_type); updates happen in place.
type SyncLog struct {
	ID              uint      `gorm:"column:id;primaryKey;autoIncrement"`
	SalesmanID      *uint     `gorm:"column:salesman_id;index"`
	ClientReference string    `gorm:"column:client_reference;size:64;not null;uniqueIndex:idx_sync_log_ref_type,priority:1"`
	EntityType      EntryType `gorm:"column:entity_type;size:16;not null;uniqueIndex:idx_sync_log_ref_type,priority:2"`
	EntityID        *uint     `gorm:"column:entity_id"`
	Status          LogStatus `gorm:"column:status;size:16;not null"`
	PayloadHash     string    `gorm:"column:payload_hash;size:64"`
	LastError       string    `gorm:"column:last_error;size:512"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time `gorm:"column:updated_at"`
}

// TableName provides the explicit table binding for GORM.
func (SyncLog) TableName() string {
	return "mobile_sync_logs"
}

// LogUpdate carries the mutable fields of a ledger upsert.
type LogUpdate struct {
	SalesmanID  *uint
	EntityID    *uint
	Status      LogStatus
	PayloadHash string
	LastError   string
}

// Ledger is the durable map from client reference to processing outcome.
type Ledger struct {
	db    *gorm.DB
	clock func() time.Time
}

// NewLedger constructs a Ledger over the provided database handle.
func NewLedger(db *gorm.DB, clock func() time.Time) (*Ledger, error) {
	if db == nil {
		return nil, errors.New("sync: ledger requires a database handle")
	}
	if clock == nil {
		clock = time.Now
	}
	return &Ledger{db: db, clock: clock}, nil
}

// Lookup returns the ledger row for the key, or nil when the reference has
// never been seen. Salesman scoping is best-effort: if no row matches the
// salesman, the lookup falls back to reference+type alone so a reassigned
// device user still resolves its own history.
func (l *Ledger) Lookup(ctx context.Context, reference string, entityType EntryType, salesmanID *uint) (*SyncLog, error) {
	if salesmanID != nil {
		var scoped SyncLog
		err := l.db.WithContext(ctx).
			Where("client_reference = ? AND entity_type = ? AND salesman_id = ?", reference, entityType, *salesmanID).
			Take(&scoped).Error
		if err == nil {
			return &scoped, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	var row SyncLog
	err := l.db.WithContext(ctx).
		Where("client_reference = ? AND entity_type = ?", reference, entityType).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// Upsert records the outcome for the key, inserting on first sight and
// updating in place thereafter. The unique (reference, entity_type) identity
// never forks; concurrent writers resolve last-writer-wins on the mutable
// fields.
func (l *Ledger) Upsert(ctx context.Context, reference string, entityType EntryType, update LogUpdate) error {
	now := l.clock().UTC()
	row := SyncLog{
		SalesmanID:      update.SalesmanID,
		ClientReference: reference,
		EntityType:      entityType,
		EntityID:        update.EntityID,
		Status:          update.Status,
		PayloadHash:     update.PayloadHash,
		LastError:       update.LastError,
		UpdatedAt:       now,
	}
	return l.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "client_reference"}, {Name: "entity_type"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"salesman_id", "entity_id", "status", "payload_hash", "last_error", "updated_at",
			}),
		}).
		Create(&row).Error
}

// RecentForSalesman returns the most recent ledger rows for a salesman,
// newest first.
func (l *Ledger) RecentForSalesman(ctx context.Context, salesmanID uint, limit int) ([]SyncLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []SyncLog
	err := l.db.WithContext(ctx).
		Where("salesman_id = ?", salesmanID).
		Order("updated_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// AllWithStatus returns every ledger row currently in the given status.
// Used by the reconciliation sweep.
func (l *Ledger) AllWithStatus(ctx context.Context, status LogStatus) ([]SyncLog, error) {
	var rows []SyncLog
	err := l.db.WithContext(ctx).
		Where("status = ?", status).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
