package device

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	syncpkg "github.com/tradewire/fieldsync/internal/sync"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrFlushInProgress indicates a flush is already running; a second
// connectivity signal must never start a concurrent upload of the same batch.
var ErrFlushInProgress = errors.New("device: flush already in progress")

// bundleCache persists the last fetched bundle so reference data survives
// app restarts while offline.
type bundleCache struct {
	ID             uint      `gorm:"column:id;primaryKey"`
	Payload        string    `gorm:"column:payload;type:text;not null"`
	DatasetVersion string    `gorm:"column:dataset_version;size:40"`
	FetchedAt      time.Time `gorm:"column:fetched_at"`
}

// TableName provides the explicit table binding for GORM.
func (bundleCache) TableName() string {
	return "device_bundle_cache"
}

// SyncerConfig describes the dependencies for the device syncer.
type SyncerConfig struct {
	Queue  *Queue
	Client Client
	Clock  func() time.Time
	Logger *zap.Logger
}

// Syncer drives the device side of the pipeline: flushing the queue when
// connectivity returns, reconciling local entries against server outcomes,
// and caching the pulled bundle.
type Syncer struct {
	queue    *Queue
	client   Client
	clock    func() time.Time
	logger   *zap.Logger
	flushing atomic.Bool
}

// NewSyncer constructs a Syncer.
func NewSyncer(cfg SyncerConfig) (*Syncer, error) {
	if cfg.Queue == nil {
		return nil, errors.New("device: syncer requires a queue")
	}
	if cfg.Client == nil {
		return nil, errors.New("device: syncer requires a client")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Syncer{queue: cfg.Queue, client: cfg.Client, clock: clock, logger: logger}, nil
}

// Flush uploads the entire queue in one batch and removes entries the server
// durably recorded (success, duplicate, or pending); error entries stay
// queued for the next flush. Single-flight: a flush already in progress
// returns ErrFlushInProgress, and the guard is released unconditionally so a
// failed flush never wedges future syncs.
func (s *Syncer) Flush(ctx context.Context) (*syncpkg.UploadResponse, error) {
	if !s.flushing.CompareAndSwap(false, true) {
		return nil, ErrFlushInProgress
	}
	defer s.flushing.Store(false)

	entries, err := s.queue.Entries(ctx)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return &syncpkg.UploadResponse{}, nil
	}

	request := syncpkg.UploadRequest{}
	for _, entry := range entries {
		submission := syncpkg.Submission{
			ClientReference: entry.Reference,
			Payload:         json.RawMessage(entry.Payload),
			SubmittedAt:     entry.CreatedAt.UTC().Format(time.RFC3339),
			Location:        entry.Location(),
		}
		switch entry.EntryType {
		case syncpkg.EntryTypeOrder:
			request.Orders = append(request.Orders, submission)
		case syncpkg.EntryTypeRecovery:
			request.Recoveries = append(request.Recoveries, submission)
		}
	}

	response, err := s.client.Upload(ctx, request)
	if err != nil {
		return nil, err
	}

	removed := s.reconcile(ctx, response)
	s.logger.Info("queue flushed",
		zap.Int("uploaded", len(entries)),
		zap.Int("acknowledged", removed))

	if err := s.applyToCache(ctx, response); err != nil {
		s.logger.Warn("bundle cache update failed", zap.Error(err))
	}
	return response, nil
}

// reconcile removes queue entries whose outcome means the server holds a
// durable copy. Entries reporting error are left queued for retry.
func (s *Syncer) reconcile(ctx context.Context, response *syncpkg.UploadResponse) int {
	removed := 0
	outcomes := make([]syncpkg.Outcome, 0, len(response.Orders)+len(response.Recoveries))
	outcomes = append(outcomes, response.Orders...)
	outcomes = append(outcomes, response.Recoveries...)
	for _, outcome := range outcomes {
		if !outcome.Status.Acknowledged() {
			continue
		}
		if err := s.queue.Remove(ctx, outcome.Reference); err != nil {
			s.logger.Warn("queue entry removal failed",
				zap.String("reference", outcome.Reference), zap.Error(err))
			continue
		}
		removed++
	}
	return removed
}

// RefreshBundle pulls a fresh bundle and caches it.
func (s *Syncer) RefreshBundle(ctx context.Context) (*syncpkg.Bundle, error) {
	bundle, err := s.client.FetchBundle(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.storeBundle(ctx, bundle); err != nil {
		s.logger.Warn("bundle cache write failed", zap.Error(err))
	}
	return bundle, nil
}

// CachedBundle returns the last persisted bundle, or nil when none exists.
func (s *Syncer) CachedBundle(ctx context.Context) (*syncpkg.Bundle, error) {
	var cached bundleCache
	err := s.queue.db.WithContext(ctx).Where("id = 1").Take(&cached).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var bundle syncpkg.Bundle
	if err := json.Unmarshal([]byte(cached.Payload), &bundle); err != nil {
		return nil, err
	}
	return &bundle, nil
}

func (s *Syncer) storeBundle(ctx context.Context, bundle *syncpkg.Bundle) error {
	encoded, err := json.Marshal(bundle)
	if err != nil {
		return err
	}
	cached := bundleCache{
		ID:             1,
		Payload:        string(encoded),
		DatasetVersion: bundle.DatasetVersion,
		FetchedAt:      s.clock().UTC(),
	}
	return s.queue.db.WithContext(ctx).Save(&cached).Error
}

// applyToCache folds the upload response's sync status and refreshed
// balances into the cached bundle so the UI reflects the flush without a
// full re-pull.
func (s *Syncer) applyToCache(ctx context.Context, response *syncpkg.UploadResponse) error {
	bundle, err := s.CachedBundle(ctx)
	if err != nil || bundle == nil {
		return err
	}

	if response.SyncStatus != nil {
		bundle.SyncStatus = response.SyncStatus
	}
	if response.DatasetVersion != "" {
		bundle.DatasetVersion = response.DatasetVersion
	}
	if len(response.UpdatedBalances) > 0 {
		overrides := make(map[string]float64, len(response.UpdatedBalances))
		for _, update := range response.UpdatedBalances {
			overrides[update.CustomerCode] = update.Outstanding
		}
		for index, customer := range bundle.Customers {
			if balance, ok := overrides[customer.Code]; ok {
				bundle.Customers[index].Outstanding = balance
			}
		}
	}
	return s.storeBundle(ctx, bundle)
}
