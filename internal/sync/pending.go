package sync

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PendingStatus is the review state of a pending entry.
type PendingStatus string

const (
	PendingStatusPending  PendingStatus = "pending"
	PendingStatusApproved PendingStatus = "approved"
	PendingStatusRejected PendingStatus = "rejected"
)

// PendingEntry is a submission durably queued for human review. At most one
// row ever exists per (entry_type, client_reference); the unique index is the
// sole concurrency guard against racing uploads.
type PendingEntry struct {
	ID              uint          `gorm:"column:id;primaryKey;autoIncrement"`
	EntryType       EntryType     `gorm:"column:entry_type;size:16;not null;uniqueIndex:idx_pending_type_ref,priority:1"`
	ClientReference string        `gorm:"column:client_reference;size:64;not null;uniqueIndex:idx_pending_type_ref,priority:2"`
	Status          PendingStatus `gorm:"column:status;size:16;not null;default:pending"`
	Payload         string        `gorm:"column:payload;type:text;not null"`
	PayloadHash     string        `gorm:"column:payload_hash;size:64"`
	CustomerCode    string        `gorm:"column:customer_code;size:64;not null"`
	CustomerName    string        `gorm:"column:customer_name;size:190"`
	SalesmanCode    string        `gorm:"column:salesman_code;size:64"`
	SalesmanName    string        `gorm:"column:salesman_name;size:190"`
	SalesmanID      *uint         `gorm:"column:salesman_id;index"`
	GpsLatitude     *float64      `gorm:"column:gps_latitude"`
	GpsLongitude    *float64      `gorm:"column:gps_longitude"`
	GpsAccuracy     *float64      `gorm:"column:gps_accuracy"`
	GpsRecordedAt   string        `gorm:"column:gps_recorded_at;size:40"`
	SummaryAmount   float64       `gorm:"column:summary_amount"`
	SummaryCount    int           `gorm:"column:summary_count"`
	EntityID        *uint         `gorm:"column:entity_id"`
	ReviewerID      *uint         `gorm:"column:reviewer_id"`
	ReviewerName    string        `gorm:"column:reviewer_name;size:190"`
	ReviewedAt      *time.Time    `gorm:"column:reviewed_at"`
	RejectionReason string        `gorm:"column:rejection_reason;size:512"`
	CreatedAt       time.Time     `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time     `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (PendingEntry) TableName() string {
	return "salesman_pending_entries"
}

// Location returns the stored geo fix, or nil when none was captured.
func (e *PendingEntry) Location() *GeoPoint {
	if e.GpsLatitude == nil || e.GpsLongitude == nil {
		return nil
	}
	return &GeoPoint{
		Latitude:   *e.GpsLatitude,
		Longitude:  *e.GpsLongitude,
		Accuracy:   e.GpsAccuracy,
		RecordedAt: e.GpsRecordedAt,
	}
}

// SetLocation stores a geo fix on the entry.
func (e *PendingEntry) SetLocation(point *GeoPoint) {
	if point == nil {
		return
	}
	lat, lng := point.Latitude, point.Longitude
	e.GpsLatitude = &lat
	e.GpsLongitude = &lng
	e.GpsAccuracy = point.Accuracy
	e.GpsRecordedAt = point.RecordedAt
}

// PendingStore is the durable queue of submissions awaiting human review.
type PendingStore struct {
	db *gorm.DB
}

// NewPendingStore constructs a PendingStore over the provided database handle.
func NewPendingStore(db *gorm.DB) (*PendingStore, error) {
	if db == nil {
		return nil, errors.New("sync: pending store requires a database handle")
	}
	return &PendingStore{db: db}, nil
}

// Enqueue inserts the entry. A unique-constraint collision is treated as
// "already exists": the new geo fix (if any) is merged into the existing row,
// which is otherwise returned unchanged. Returns whether a new row was created.
func (s *PendingStore) Enqueue(ctx context.Context, entry *PendingEntry) (*PendingEntry, bool, error) {
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "entry_type"}, {Name: "client_reference"}},
			DoNothing: true,
		}).
		Create(entry)
	if result.Error != nil {
		return nil, false, result.Error
	}
	if result.RowsAffected > 0 {
		return entry, true, nil
	}

	existing, err := s.FindByReference(ctx, entry.EntryType, entry.ClientReference)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, errors.New("sync: pending entry vanished after conflict")
	}
	if point := entry.Location(); point != nil {
		if err := s.MergeLocation(ctx, existing.ID, point); err != nil {
			return nil, false, err
		}
		existing.SetLocation(point)
	}
	return existing, false, nil
}

// FindByReference loads the entry for the unique (entry type, reference) key.
func (s *PendingStore) FindByReference(ctx context.Context, entryType EntryType, reference string) (*PendingEntry, error) {
	var entry PendingEntry
	err := s.db.WithContext(ctx).
		Where("entry_type = ? AND client_reference = ?", entryType, reference).
		Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// FindByID loads the entry by primary key.
func (s *PendingStore) FindByID(ctx context.Context, id uint) (*PendingEntry, error) {
	var entry PendingEntry
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListByStatus returns entries in the given status for the review UI, newest
// first, optionally filtered by entry type.
func (s *PendingStore) ListByStatus(ctx context.Context, status PendingStatus, entryType EntryType, limit, offset int) ([]PendingEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	query := s.db.WithContext(ctx).Where("status = ?", status)
	if entryType != "" {
		query = query.Where("entry_type = ?", entryType)
	}
	var entries []PendingEntry
	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// MergeLocation updates only the geo columns of an existing entry.
func (s *PendingStore) MergeLocation(ctx context.Context, id uint, point *GeoPoint) error {
	if point == nil {
		return nil
	}
	return s.db.WithContext(ctx).Model(&PendingEntry{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"gps_latitude":    point.Latitude,
			"gps_longitude":   point.Longitude,
			"gps_accuracy":    point.Accuracy,
			"gps_recorded_at": point.RecordedAt,
		}).Error
}

// claim atomically moves a pending entry into a terminal review state. The
// WHERE status='pending' guard makes concurrent approve/reject races resolve
// to exactly one winner.
func (s *PendingStore) claim(ctx context.Context, id uint, updates map[string]interface{}) (bool, error) {
	result := s.db.WithContext(ctx).Model(&PendingEntry{}).
		Where("id = ? AND status = ?", id, PendingStatusPending).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// release reverts a claimed entry back to pending after a failed
// materialization so the reviewer can retry.
func (s *PendingStore) release(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Model(&PendingEntry{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":           PendingStatusPending,
			"reviewer_id":      nil,
			"reviewer_name":    "",
			"reviewed_at":      nil,
			"rejection_reason": "",
		}).Error
}

// setEntity records the materialized entity id on an approved entry.
func (s *PendingStore) setEntity(ctx context.Context, id uint, entityID uint) error {
	return s.db.WithContext(ctx).Model(&PendingEntry{}).
		Where("id = ?", id).
		Update("entity_id", entityID).Error
}
