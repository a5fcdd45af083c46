package sync

import (
	"context"
	"errors"
	"time"

	"github.com/tradewire/fieldsync/internal/masterdata"
	"go.uber.org/zap"
)

// CustomerSummary is the device-facing view of a customer, including the
// computed outstanding balance.
type CustomerSummary struct {
	Code        string  `json:"code"`
	Name        string  `json:"name"`
	Address     string  `json:"address,omitempty"`
	Phone       string  `json:"phone,omitempty"`
	Outstanding float64 `json:"outstanding"`
}

// ItemSummary is the device-facing view of an item.
type ItemSummary struct {
	Code      string   `json:"code"`
	Name      string   `json:"name"`
	BaseUnit  string   `json:"baseUnit"`
	PackSize  *float64 `json:"packSize,omitempty"`
	TradeRate float64  `json:"tradeRate"`
}

// BankSummary is the device-facing view of a bank.
type BankSummary struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	AccountNo string `json:"accountNo"`
}

// AreaSummary is the device-facing view of a sales route.
type AreaSummary struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// StatusRow is one ledger row in the device's sync status view.
type StatusRow struct {
	Reference  string    `json:"reference"`
	EntityType EntryType `json:"entityType"`
	Status     LogStatus `json:"status"`
	EntityID   *uint     `json:"entityId,omitempty"`
	LastError  string    `json:"lastError,omitempty"`
	UpdatedAt  string    `json:"updatedAt"`
}

// Bundle is the pull-side snapshot sent to a device: reference data plus the
// salesman's recent sync status, stamped with an assembly timestamp.
type Bundle struct {
	DatasetVersion string            `json:"datasetVersion"`
	Customers      []CustomerSummary `json:"customers"`
	Items          []ItemSummary     `json:"items"`
	Banks          []BankSummary     `json:"banks"`
	Areas          []AreaSummary     `json:"areas"`
	SyncStatus     []StatusRow       `json:"syncStatus"`
}

// BuilderConfig describes the dependencies for the bundle builder.
type BuilderConfig struct {
	Directory   *masterdata.Directory
	Ledger      *Ledger
	Pending     *PendingStore
	Outstanding masterdata.BalanceFunc
	StatusLimit int
	Clock       func() time.Time
	Logger      *zap.Logger
}

// Builder assembles sync bundles.
type Builder struct {
	directory   *masterdata.Directory
	ledger      *Ledger
	pending     *PendingStore
	outstanding masterdata.BalanceFunc
	statusLimit int
	clock       func() time.Time
	logger      *zap.Logger
}

// NewBuilder constructs a Builder.
func NewBuilder(cfg BuilderConfig) (*Builder, error) {
	if cfg.Directory == nil || cfg.Ledger == nil || cfg.Pending == nil {
		return nil, errors.New("sync: builder requires directory, ledger and pending store")
	}
	limit := cfg.StatusLimit
	if limit <= 0 {
		limit = 50
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		directory:   cfg.Directory,
		ledger:      cfg.Ledger,
		pending:     cfg.Pending,
		outstanding: cfg.Outstanding,
		statusLimit: limit,
		clock:       clock,
		logger:      logger,
	}, nil
}

// Build assembles the bundle for one salesman as of now.
func (b *Builder) Build(ctx context.Context, salesmanID uint) (*Bundle, error) {
	bundle := &Bundle{
		DatasetVersion: b.clock().UTC().Format(time.RFC3339),
	}

	customers, err := b.directory.Customers(ctx)
	if err != nil {
		return nil, err
	}
	bundle.Customers = make([]CustomerSummary, 0, len(customers))
	for _, customer := range customers {
		summary := CustomerSummary{
			Code:    customer.Code,
			Name:    customer.Name,
			Address: customer.Address,
			Phone:   customer.Phone1,
		}
		if b.outstanding != nil {
			balance, err := b.outstanding(ctx, customer.ID)
			if err != nil {
				b.logger.Warn("outstanding balance computation failed",
					zap.String("customer_code", customer.Code), zap.Error(err))
			} else {
				summary.Outstanding = balance
			}
		}
		bundle.Customers = append(bundle.Customers, summary)
	}

	items, err := b.directory.Items(ctx)
	if err != nil {
		return nil, err
	}
	bundle.Items = make([]ItemSummary, 0, len(items))
	for _, item := range items {
		bundle.Items = append(bundle.Items, ItemSummary{
			Code:      item.Code,
			Name:      item.Name,
			BaseUnit:  item.BaseUnit,
			PackSize:  item.PackSize,
			TradeRate: item.TradeRate,
		})
	}

	banks, err := b.directory.Banks(ctx)
	if err != nil {
		return nil, err
	}
	bundle.Banks = make([]BankSummary, 0, len(banks))
	for _, bank := range banks {
		bundle.Banks = append(bundle.Banks, BankSummary{
			Code:      bank.Code,
			Name:      bank.Name,
			AccountNo: bank.AccountNo,
		})
	}

	areas, err := b.directory.Areas(ctx)
	if err != nil {
		return nil, err
	}
	bundle.Areas = make([]AreaSummary, 0, len(areas))
	for _, area := range areas {
		bundle.Areas = append(bundle.Areas, AreaSummary{Code: area.Code, Name: area.Name})
	}

	status, err := b.SyncStatus(ctx, salesmanID)
	if err != nil {
		return nil, err
	}
	bundle.SyncStatus = status

	return bundle, nil
}

// SyncStatus returns the salesman's recent ledger rows. Rows still reporting
// pending are dropped when their pending entry has since been resolved: the
// ledger and pending store are written separately, so a stale pending row
// must not outlive its real-world decision once the device re-pulls.
func (b *Builder) SyncStatus(ctx context.Context, salesmanID uint) ([]StatusRow, error) {
	logs, err := b.ledger.RecentForSalesman(ctx, salesmanID, b.statusLimit)
	if err != nil {
		return nil, err
	}

	rows := make([]StatusRow, 0, len(logs))
	for _, logRow := range logs {
		if logRow.Status == LogPending {
			entry, err := b.pending.FindByReference(ctx, logRow.EntityType, logRow.ClientReference)
			if err != nil {
				return nil, err
			}
			if entry == nil || entry.Status != PendingStatusPending {
				continue
			}
		}
		rows = append(rows, StatusRow{
			Reference:  logRow.ClientReference,
			EntityType: logRow.EntityType,
			Status:     logRow.Status,
			EntityID:   logRow.EntityID,
			LastError:  logRow.LastError,
			UpdatedAt:  logRow.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	return rows, nil
}

// BalancesFor computes refreshed outstanding balances for the given customer
// codes. Unresolvable codes are skipped.
func (b *Builder) BalancesFor(ctx context.Context, codes []string) []BalanceUpdate {
	if b.outstanding == nil || len(codes) == 0 {
		return nil
	}
	updates := make([]BalanceUpdate, 0, len(codes))
	for _, code := range codes {
		customer, err := b.directory.CustomerByCode(ctx, code)
		if err != nil {
			continue
		}
		balance, err := b.outstanding(ctx, customer.ID)
		if err != nil {
			b.logger.Warn("balance refresh failed", zap.String("customer_code", code), zap.Error(err))
			continue
		}
		updates = append(updates, BalanceUpdate{CustomerCode: code, Outstanding: balance})
	}
	return updates
}
