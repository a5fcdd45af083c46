package sync

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/tradewire/fieldsync/internal/masterdata"
	"github.com/tradewire/fieldsync/internal/orders"
	"github.com/tradewire/fieldsync/internal/receipts"
	"gorm.io/gorm"
)

var testClock = func() time.Time { return time.Unix(1750000000, 0).UTC() }

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(
		&masterdata.Customer{},
		&masterdata.Item{},
		&masterdata.Bank{},
		&masterdata.Salesman{},
		&masterdata.Area{},
		&orders.Order{},
		&orders.OrderLine{},
		&receipts.Receipt{},
		&receipts.BankTransaction{},
		&SyncLog{},
		&PendingEntry{},
	); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func seedMasterData(t *testing.T, db *gorm.DB) {
	t.Helper()
	records := []interface{}{
		&masterdata.Customer{Code: "C-001", Name: "Alpha Traders", OpeningBalance: 5000},
		&masterdata.Customer{Code: "C-002", Name: "Beta Stores"},
		&masterdata.Item{Code: "I-001", Name: "Carton Small", BaseUnit: "carton", TradeRate: 120},
		&masterdata.Item{Code: "I-002", Name: "Carton Large", BaseUnit: "carton", TradeRate: 260.5},
		&masterdata.Bank{Code: "B-001", Name: "First National", AccountNo: "0100200300"},
		&masterdata.Salesman{Code: "S-001", Name: "Field One"},
		&masterdata.Area{Code: "A-01", Name: "North Route"},
	}
	for _, record := range records {
		if err := db.Create(record).Error; err != nil {
			t.Fatalf("failed to seed master data: %v", err)
		}
	}
}

// pipeline bundles the sync components over one database for tests.
type pipeline struct {
	db         *gorm.DB
	directory  *masterdata.Directory
	ledger     *Ledger
	pending    *PendingStore
	normalizer *Normalizer
	processor  *Processor
	executor   *Executor
	builder    *Builder
	reconciler *Reconciler
	deps       Deps
	salesman   *masterdata.Salesman
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	db := newTestDB(t)
	seedMasterData(t, db)

	directory, err := masterdata.NewDirectory(db)
	if err != nil {
		t.Fatalf("failed to build directory: %v", err)
	}
	orderService, err := orders.NewService(orders.ServiceConfig{Database: db, Clock: testClock})
	if err != nil {
		t.Fatalf("failed to build order service: %v", err)
	}
	receiptService, err := receipts.NewService(receipts.ServiceConfig{Database: db, Clock: testClock})
	if err != nil {
		t.Fatalf("failed to build receipt service: %v", err)
	}
	deps := Deps{Directory: directory, Orders: orderService, Receipts: receiptService}

	ledger, err := NewLedger(db, testClock)
	if err != nil {
		t.Fatalf("failed to build ledger: %v", err)
	}
	pending, err := NewPendingStore(db)
	if err != nil {
		t.Fatalf("failed to build pending store: %v", err)
	}
	normalizer, err := NewNormalizer(directory)
	if err != nil {
		t.Fatalf("failed to build normalizer: %v", err)
	}
	processor, err := NewProcessor(ProcessorConfig{
		Ledger:     ledger,
		Pending:    pending,
		Normalizer: normalizer,
		Deps:       deps,
		Clock:      testClock,
	})
	if err != nil {
		t.Fatalf("failed to build processor: %v", err)
	}
	executor, err := NewExecutor(ExecutorConfig{
		Pending: pending,
		Ledger:  ledger,
		Deps:    deps,
		Clock:   testClock,
	})
	if err != nil {
		t.Fatalf("failed to build executor: %v", err)
	}
	builder, err := NewBuilder(BuilderConfig{
		Directory:   directory,
		Ledger:      ledger,
		Pending:     pending,
		Outstanding: masterdata.OutstandingBalance(db),
		Clock:       testClock,
	})
	if err != nil {
		t.Fatalf("failed to build bundle builder: %v", err)
	}
	reconciler, err := NewReconciler(ReconcilerConfig{
		Ledger:  ledger,
		Pending: pending,
		Deps:    deps,
		Clock:   testClock,
	})
	if err != nil {
		t.Fatalf("failed to build reconciler: %v", err)
	}

	var salesman masterdata.Salesman
	if err := db.Where("code = ?", "S-001").Take(&salesman).Error; err != nil {
		t.Fatalf("failed to load seeded salesman: %v", err)
	}

	return &pipeline{
		db:         db,
		directory:  directory,
		ledger:     ledger,
		pending:    pending,
		normalizer: normalizer,
		processor:  processor,
		executor:   executor,
		builder:    builder,
		reconciler: reconciler,
		deps:       deps,
		salesman:   &salesman,
	}
}

func mustPayload(t *testing.T, value interface{}) json.RawMessage {
	t.Helper()
	encoded, err := json.Marshal(value)
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}
	return encoded
}

func orderSubmission(t *testing.T, reference string) Submission {
	t.Helper()
	payload := OrderPayload{
		CustomerCode: "C-001",
		Date:         "2026-08-15",
		Items: []OrderItemPayload{
			{ItemCode: "I-001", Quantity: 3},
		},
	}
	return Submission{
		ClientReference: reference,
		Payload:         mustPayload(t, payload),
		Location:        &GeoPoint{Latitude: 31.52, Longitude: 74.35, RecordedAt: "2026-08-15T09:00:00Z"},
	}
}

func recoverySubmission(t *testing.T, reference string, amount float64) Submission {
	t.Helper()
	payload := RecoveryPayload{
		CustomerCode: "C-001",
		Amount:       amount,
		PaymentMode:  receipts.PaymentModeCash,
		ReceiptDate:  "2026-08-15",
	}
	return Submission{
		ClientReference: reference,
		Payload:         mustPayload(t, payload),
	}
}

func mustLedgerRow(t *testing.T, ledger *Ledger, reference string, entryType EntryType) *SyncLog {
	t.Helper()
	row, err := ledger.Lookup(context.Background(), reference, entryType, nil)
	if err != nil {
		t.Fatalf("ledger lookup failed: %v", err)
	}
	if row == nil {
		t.Fatalf("expected ledger row for %s/%s", entryType, reference)
	}
	return row
}
