package receipts

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultReceiptNoPrefix = "CR-"
	receiptNoWidth         = 6
)

var errMissingDatabase = errors.New("receipts: database handle is required")

// CreateInput describes a fully resolved customer receipt to materialize.
type CreateInput struct {
	CustomerID      uint
	SalesmanID      *uint
	ReceiptDate     string
	Amount          float64
	Details         string
	PaymentMode     string
	BankID          *uint
	SlipNo          string
	SlipDate        string
	AttachmentImage string
}

// ServiceConfig describes the dependencies for the receipt service.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
	Prefix   string
}

// Service materializes customer receipts. A non-cash receipt and its paired
// bank deposit commit in one transaction; readers never observe one without
// the other.
type Service struct {
	db     *gorm.DB
	clock  func() time.Time
	logger *zap.Logger
	prefix string
}

// NewService constructs the receipt service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = defaultReceiptNoPrefix
	}
	return &Service{db: cfg.Database, clock: clock, logger: logger, prefix: prefix}, nil
}

// Create inserts the receipt, plus a linked bank deposit for non-cash modes,
// in one transaction.
func (s *Service) Create(ctx context.Context, input CreateInput) (*Receipt, error) {
	if input.CustomerID == 0 {
		return nil, fmt.Errorf("receipts: customer id is required")
	}
	if input.Amount <= 0 {
		return nil, fmt.Errorf("receipts: amount must be greater than zero")
	}
	mode := input.PaymentMode
	if mode == "" {
		mode = PaymentModeCash
	}
	if mode != PaymentModeCash && input.BankID == nil {
		return nil, fmt.Errorf("receipts: bank is required for %s receipts", mode)
	}

	var created Receipt
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		receiptNo, err := nextReceiptNo(tx, s.prefix)
		if err != nil {
			return err
		}
		created = Receipt{
			ReceiptNo:       receiptNo,
			CustomerID:      input.CustomerID,
			SalesmanID:      input.SalesmanID,
			ReceiptDate:     input.ReceiptDate,
			Amount:          input.Amount,
			Details:         input.Details,
			PaymentMode:     mode,
			BankID:          input.BankID,
			SlipNo:          input.SlipNo,
			SlipDate:        input.SlipDate,
			AttachmentImage: input.AttachmentImage,
		}
		if err := tx.Create(&created).Error; err != nil {
			return err
		}
		if mode != PaymentModeCash {
			slipDate := input.SlipDate
			if slipDate == "" {
				slipDate = input.ReceiptDate
			}
			deposit := BankTransaction{
				TransactionType: TransactionTypeDeposit,
				BankID:          input.BankID,
				SlipNo:          input.SlipNo,
				SlipDate:        slipDate,
				CashAmount:      input.Amount,
			}
			if err := tx.Create(&deposit).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("customer receipt created",
		zap.String("receipt_no", created.ReceiptNo),
		zap.Uint("customer_id", created.CustomerID),
		zap.String("payment_mode", created.PaymentMode),
		zap.Float64("amount", created.Amount))
	return &created, nil
}

// FindByID loads a receipt by primary key.
func (s *Service) FindByID(ctx context.Context, id uint) (*Receipt, error) {
	var receipt Receipt
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&receipt).Error; err != nil {
		return nil, err
	}
	return &receipt, nil
}

func nextReceiptNo(tx *gorm.DB, prefix string) (string, error) {
	var last string
	err := tx.Model(&Receipt{}).
		Select("receipt_no").
		Order("id DESC").
		Limit(1).
		Scan(&last).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}

	current := 0
	if last != "" {
		if parsed, parseErr := strconv.Atoi(strings.TrimPrefix(last, prefix)); parseErr == nil {
			current = parsed
		}
	}
	return fmt.Sprintf("%s%0*d", prefix, receiptNoWidth, current+1), nil
}
