package database

import (
	"errors"
	"time"

	"github.com/tradewire/fieldsync/internal/sync"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationBackfillPendingPayloadHash = "2026-06-12_backfill_pending_payload_hash"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationBackfillPendingPayloadHash, apply: backfillPendingPayloadHash},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// backfillPendingPayloadHash computes hashes for pending entries stored
// before the payload_hash column existed. Duplicate detection depends on the
// column being populated.
func backfillPendingPayloadHash(db *gorm.DB) error {
	var entries []sync.PendingEntry
	if err := db.Where("payload_hash IS NULL OR payload_hash = ''").Find(&entries).Error; err != nil {
		return err
	}
	for _, entry := range entries {
		hash := sync.CanonicalHash([]byte(entry.Payload))
		if err := db.Model(&sync.PendingEntry{}).
			Where("id = ?", entry.ID).
			Update("payload_hash", hash).Error; err != nil {
			return err
		}
	}
	return nil
}
