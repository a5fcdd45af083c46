package device

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tradewire/fieldsync/internal/sync"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// QueueEntry is one not-yet-accepted submission held on the device. The
// reference is generated at enqueue time and never reused for a different
// payload; it correlates the entry across the whole pipeline.
type QueueEntry struct {
	Reference     string         `gorm:"column:reference;primaryKey;size:64"`
	EntryType     sync.EntryType `gorm:"column:entry_type;size:16;not null"`
	Payload       string         `gorm:"column:payload;type:text;not null"`
	GpsLatitude   float64        `gorm:"column:gps_latitude;not null"`
	GpsLongitude  float64        `gorm:"column:gps_longitude;not null"`
	GpsAccuracy   *float64       `gorm:"column:gps_accuracy"`
	GpsRecordedAt string         `gorm:"column:gps_recorded_at;size:40"`
	CreatedAt     time.Time      `gorm:"column:created_at;autoCreateTime"`
}

// TableName provides the explicit table binding for GORM.
func (QueueEntry) TableName() string {
	return "device_queue"
}

// Location returns the geo fix captured when this entry was queued.
func (e *QueueEntry) Location() *sync.GeoPoint {
	return &sync.GeoPoint{
		Latitude:   e.GpsLatitude,
		Longitude:  e.GpsLongitude,
		Accuracy:   e.GpsAccuracy,
		RecordedAt: e.GpsRecordedAt,
	}
}

// QueueConfig describes the dependencies for the local queue.
type QueueConfig struct {
	Database *gorm.DB
	Locator  Locator
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Queue is the durable device-local store of pending submissions. Enqueue
// blocks on location capture: a submission without a coordinate is never
// queued.
type Queue struct {
	db      *gorm.DB
	locator Locator
	clock   func() time.Time
	logger  *zap.Logger
}

// NewQueue constructs the queue and ensures its schema is present.
func NewQueue(cfg QueueConfig) (*Queue, error) {
	if cfg.Database == nil {
		return nil, errors.New("device: queue requires a database handle")
	}
	if cfg.Locator == nil {
		return nil, errors.New("device: queue requires a location strategy")
	}
	if err := cfg.Database.AutoMigrate(&QueueEntry{}, &bundleCache{}); err != nil {
		return nil, err
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{db: cfg.Database, locator: cfg.Locator, clock: clock, logger: logger}, nil
}

// EnqueueOrder validates the minimum client-side order shape and queues it.
func (q *Queue) EnqueueOrder(ctx context.Context, payload sync.OrderPayload) (*QueueEntry, error) {
	if payload.CustomerCode == "" {
		return nil, fmt.Errorf("device: customer is required")
	}
	if len(payload.Items) == 0 {
		return nil, fmt.Errorf("device: add at least one item")
	}
	if payload.Date == "" {
		payload.Date = q.clock().UTC().Format("2006-01-02")
	}
	return q.enqueue(ctx, sync.EntryTypeOrder, payload)
}

// EnqueueRecovery validates the minimum client-side recovery shape and
// queues it.
func (q *Queue) EnqueueRecovery(ctx context.Context, payload sync.RecoveryPayload) (*QueueEntry, error) {
	if payload.CustomerCode == "" {
		return nil, fmt.Errorf("device: customer is required")
	}
	if payload.Amount <= 0 {
		return nil, fmt.Errorf("device: amount must be greater than zero")
	}
	if payload.PaymentMode == "" {
		payload.PaymentMode = "cash"
	}
	if payload.ReceiptDate == "" {
		payload.ReceiptDate = q.clock().UTC().Format("2006-01-02")
	}
	return q.enqueue(ctx, sync.EntryTypeRecovery, payload)
}

func (q *Queue) enqueue(ctx context.Context, entryType sync.EntryType, payload interface{}) (*QueueEntry, error) {
	fix, err := q.locator.Capture(ctx)
	if err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	entry := QueueEntry{
		Reference:     uuid.NewString(),
		EntryType:     entryType,
		Payload:       string(encoded),
		GpsLatitude:   fix.Latitude,
		GpsLongitude:  fix.Longitude,
		GpsAccuracy:   fix.Accuracy,
		GpsRecordedAt: fix.RecordedAt,
		CreatedAt:     q.clock().UTC(),
	}
	if err := q.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return nil, err
	}

	q.logger.Debug("submission queued",
		zap.String("reference", entry.Reference),
		zap.String("entry_type", entryType.String()))
	return &entry, nil
}

// Entries returns all queued submissions in enqueue order.
func (q *Queue) Entries(ctx context.Context) ([]QueueEntry, error) {
	var entries []QueueEntry
	err := q.db.WithContext(ctx).Order("created_at ASC").Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Remove deletes an entry, either because the server acknowledged it or
// because the user cancelled it.
func (q *Queue) Remove(ctx context.Context, reference string) error {
	return q.db.WithContext(ctx).
		Where("reference = ?", reference).
		Delete(&QueueEntry{}).Error
}

// Len reports the number of queued submissions.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.WithContext(ctx).Model(&QueueEntry{}).Count(&count).Error
	return count, err
}
