package masterdata

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// ErrNotFound indicates the requested master record does not exist.
var ErrNotFound = errors.New("masterdata: record not found")

// BalanceFunc computes the outstanding balance for a customer. The accounting
// formula behind it is external to this module and consumed opaquely.
type BalanceFunc func(ctx context.Context, customerID uint) (float64, error)

// Directory provides read-only lookups over master data for submission
// validation and bundle assembly.
type Directory struct {
	db *gorm.DB
}

// NewDirectory constructs a Directory over the provided database handle.
func NewDirectory(db *gorm.DB) (*Directory, error) {
	if db == nil {
		return nil, fmt.Errorf("masterdata: database connection required")
	}
	return &Directory{db: db}, nil
}

// CustomerByCode resolves a customer by its unique code.
func (d *Directory) CustomerByCode(ctx context.Context, code string) (*Customer, error) {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty customer code", ErrNotFound)
	}
	var customer Customer
	err := d.db.WithContext(ctx).Where("code = ?", trimmed).Take(&customer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: customer %q", ErrNotFound, trimmed)
	}
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

// ItemByCode resolves an item by its unique code.
func (d *Directory) ItemByCode(ctx context.Context, code string) (*Item, error) {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty item code", ErrNotFound)
	}
	var item Item
	err := d.db.WithContext(ctx).Where("code = ?", trimmed).Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: item %q", ErrNotFound, trimmed)
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// BankByCode resolves a bank by its unique code.
func (d *Directory) BankByCode(ctx context.Context, code string) (*Bank, error) {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty bank code", ErrNotFound)
	}
	var bank Bank
	err := d.db.WithContext(ctx).Where("code = ?", trimmed).Take(&bank).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: bank %q", ErrNotFound, trimmed)
	}
	if err != nil {
		return nil, err
	}
	return &bank, nil
}

// SalesmanByID resolves a salesman by primary key.
func (d *Directory) SalesmanByID(ctx context.Context, id uint) (*Salesman, error) {
	var salesman Salesman
	err := d.db.WithContext(ctx).Where("id = ?", id).Take(&salesman).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: salesman %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &salesman, nil
}

// Customers lists all customers ordered by code.
func (d *Directory) Customers(ctx context.Context) ([]Customer, error) {
	var customers []Customer
	if err := d.db.WithContext(ctx).Order("code ASC").Find(&customers).Error; err != nil {
		return nil, err
	}
	return customers, nil
}

// Items lists all items ordered by code.
func (d *Directory) Items(ctx context.Context) ([]Item, error) {
	var items []Item
	if err := d.db.WithContext(ctx).Order("code ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// Banks lists all banks ordered by code.
func (d *Directory) Banks(ctx context.Context) ([]Bank, error) {
	var banks []Bank
	if err := d.db.WithContext(ctx).Order("code ASC").Find(&banks).Error; err != nil {
		return nil, err
	}
	return banks, nil
}

// Areas lists all areas ordered by code.
func (d *Directory) Areas(ctx context.Context) ([]Area, error) {
	var areas []Area
	if err := d.db.WithContext(ctx).Order("code ASC").Find(&areas).Error; err != nil {
		return nil, err
	}
	return areas, nil
}
