package orders

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
	defaultOrderNoPrefix = "ORD-"
	orderNoWidth         = 6
)

var errMissingDatabase = errors.New("orders: database handle is required")

// CreateLine is one item row on an order creation request.
type CreateLine struct {
	ItemID   uint
	Quantity float64
	Bonus    float64
	BaseUnit string
	Notes    string
}

// CreateInput describes a fully resolved order to materialize.
type CreateInput struct {
	CustomerID uint
	SalesmanID *uint
	OrderDate  string
	Remarks    string
	Lines      []CreateLine
}

// ServiceConfig describes the dependencies for the order service.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
	Prefix   string
}

// Service materializes orders. Creation is transactional: the order header and
// all lines commit together or not at all.
type Service struct {
	db     *gorm.DB
	clock  func() time.Time
	logger *zap.Logger
	prefix string
}

// NewService constructs the order service.
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
		prefix = defaultOrderNoPrefix
	}
	return &Service{db: cfg.Database, clock: clock, logger: logger, prefix: prefix}, nil
}

// Create inserts the order and its lines in one transaction and returns the
// persisted order with its issued number.
func (s *Service) Create(ctx context.Context, input CreateInput) (*Order, error) {
	if input.CustomerID == 0 {
		return nil, fmt.Errorf("orders: customer id is required")
	}
	if len(input.Lines) == 0 {
		return nil, fmt.Errorf("orders: at least one line is required")
	}

	var created Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orderNo, err := nextVoucherNo(tx, &Order{}, "order_no", s.prefix)
		if err != nil {
			return err
		}
		created = Order{
			OrderNo:    orderNo,
			CustomerID: input.CustomerID,
			SalesmanID: input.SalesmanID,
			OrderDate:  input.OrderDate,
			Status:     StatusPending,
			Remarks:    input.Remarks,
		}
		if err := tx.Create(&created).Error; err != nil {
			return err
		}
		for _, line := range input.Lines {
			row := OrderLine{
				OrderID:  created.ID,
				ItemID:   line.ItemID,
				Quantity: line.Quantity,
				Bonus:    line.Bonus,
				BaseUnit: line.BaseUnit,
				Notes:    line.Notes,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order created",
		zap.String("order_no", created.OrderNo),
		zap.Uint("customer_id", created.CustomerID),
		zap.Int("lines", len(input.Lines)))
	return &created, nil
}

// FindByID loads an order by primary key.
func (s *Service) FindByID(ctx context.Context, id uint) (*Order, error) {
	var order Order
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// nextVoucherNo issues the next padded voucher number for the given column,
// e.g. ORD-000001. Must run inside the caller's transaction so the read and the
// subsequent insert are serialized against concurrent creators.
func nextVoucherNo(tx *gorm.DB, model interface{}, column, prefix string) (string, error) {
	var last string
	err := tx.Model(model).
		Select(column).
		Order("id DESC").
		Limit(1).
		Scan(&last).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}

	current := 0
	if last != "" {
		numeric := strings.TrimPrefix(last, prefix)
		if parsed, parseErr := strconv.Atoi(numeric); parseErr == nil {
			current = parsed
		}
	}
	return fmt.Sprintf("%s%0*d", prefix, orderNoWidth, current+1), nil
}
