package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/tradewire/fieldsync/internal/masterdata"
	"github.com/tradewire/fieldsync/internal/orders"
	"github.com/tradewire/fieldsync/internal/receipts"
	"gorm.io/gorm"
)

// Deps gathers the collaborators a variant needs to materialize and resolve
// domain entities.
type Deps struct {
	Directory *masterdata.Directory
	Orders    *orders.Service
	Receipts  *receipts.Service
}

// normalized is the outcome of validating one raw payload.
type normalized struct {
	canonical interface{}
	customer  *masterdata.Customer
	summary   Summary
}

// variant is the closed extension point for submission kinds: each entry type
// knows how to validate its raw payload and how to turn an approved pending
// entry into a real domain row.
type variant interface {
	normalize(ctx context.Context, dir *masterdata.Directory, raw json.RawMessage) (*normalized, error)
	materialize(ctx context.Context, deps Deps, entry *PendingEntry) (uint, string, error)
	entityNumber(ctx context.Context, deps Deps, entityID uint) (string, error)
	entityExists(ctx context.Context, deps Deps, entityID uint) (bool, error)
	applyNumber(out *Outcome, number string)
}

var variants = map[EntryType]variant{
	EntryTypeOrder:    orderVariant{},
	EntryTypeRecovery: recoveryVariant{},
}

func variantFor(entryType EntryType) (variant, error) {
	v, ok := variants[entryType]
	if !ok {
		return nil, fmt.Errorf("sync: no variant registered for entry type %q", entryType)
	}
	return v, nil
}

type orderVariant struct{}

func (orderVariant) normalize(ctx context.Context, dir *masterdata.Directory, raw json.RawMessage) (*normalized, error) {
	var payload OrderPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, newValidationError("malformed order payload: %v", err)
	}

	customer, err := dir.CustomerByCode(ctx, payload.CustomerCode)
	if errors.Is(err, masterdata.ErrNotFound) {
		return nil, newValidationError("unknown customer %q", payload.CustomerCode)
	}
	if err != nil {
		return nil, err
	}

	if len(payload.Items) == 0 {
		return nil, newValidationError("order must contain at least one item")
	}

	total := 0.0
	canonicalItems := make([]OrderItemPayload, 0, len(payload.Items))
	for index, line := range payload.Items {
		item, err := dir.ItemByCode(ctx, line.ItemCode)
		if errors.Is(err, masterdata.ErrNotFound) {
			return nil, newValidationError("unknown item %q", line.ItemCode)
		}
		if err != nil {
			return nil, err
		}
		if line.Quantity <= 0 {
			return nil, newValidationError("item %d: quantity must be greater than zero", index+1)
		}
		if line.Bonus < 0 {
			return nil, newValidationError("item %d: bonus must not be negative", index+1)
		}
		total += line.Quantity * item.TradeRate
		canonicalItems = append(canonicalItems, OrderItemPayload{
			ItemCode: item.Code,
			Quantity: line.Quantity,
			Bonus:    line.Bonus,
			Notes:    strings.TrimSpace(line.Notes),
		})
	}

	date, err := ToStorageDate(payload.Date)
	if err != nil {
		return nil, newValidationError("invalid order date: %v", err)
	}

	canonical := OrderPayload{
		CustomerCode: customer.Code,
		Date:         date,
		Remarks:      strings.TrimSpace(payload.Remarks),
		Items:        canonicalItems,
	}
	return &normalized{
		canonical: canonical,
		customer:  customer,
		summary:   Summary{Count: len(canonicalItems), Amount: roundAmount(total)},
	}, nil
}

func (orderVariant) materialize(ctx context.Context, deps Deps, entry *PendingEntry) (uint, string, error) {
	var payload OrderPayload
	if err := json.Unmarshal([]byte(entry.Payload), &payload); err != nil {
		return 0, "", fmt.Errorf("sync: stored order payload unreadable: %w", err)
	}

	customer, err := deps.Directory.CustomerByCode(ctx, payload.CustomerCode)
	if err != nil {
		return 0, "", err
	}

	lines := make([]orders.CreateLine, 0, len(payload.Items))
	for _, line := range payload.Items {
		item, err := deps.Directory.ItemByCode(ctx, line.ItemCode)
		if err != nil {
			return 0, "", err
		}
		lines = append(lines, orders.CreateLine{
			ItemID:   item.ID,
			Quantity: line.Quantity,
			Bonus:    line.Bonus,
			BaseUnit: item.BaseUnit,
			Notes:    line.Notes,
		})
	}

	created, err := deps.Orders.Create(ctx, orders.CreateInput{
		CustomerID: customer.ID,
		SalesmanID: entry.SalesmanID,
		OrderDate:  payload.Date,
		Remarks:    payload.Remarks,
		Lines:      lines,
	})
	if err != nil {
		return 0, "", err
	}
	return created.ID, created.OrderNo, nil
}

func (orderVariant) entityNumber(ctx context.Context, deps Deps, entityID uint) (string, error) {
	order, err := deps.Orders.FindByID(ctx, entityID)
	if err != nil {
		return "", err
	}
	return order.OrderNo, nil
}

func (orderVariant) entityExists(ctx context.Context, deps Deps, entityID uint) (bool, error) {
	_, err := deps.Orders.FindByID(ctx, entityID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (orderVariant) applyNumber(out *Outcome, number string) {
	out.OrderNo = number
}

type recoveryVariant struct{}

func (recoveryVariant) normalize(ctx context.Context, dir *masterdata.Directory, raw json.RawMessage) (*normalized, error) {
	var payload RecoveryPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, newValidationError("malformed recovery payload: %v", err)
	}

	customer, err := dir.CustomerByCode(ctx, payload.CustomerCode)
	if errors.Is(err, masterdata.ErrNotFound) {
		return nil, newValidationError("unknown customer %q", payload.CustomerCode)
	}
	if err != nil {
		return nil, err
	}

	if payload.Amount <= 0 {
		return nil, newValidationError("amount must be greater than zero")
	}

	mode := strings.TrimSpace(payload.PaymentMode)
	if mode == "" {
		mode = receipts.PaymentModeCash
	}
	switch mode {
	case receipts.PaymentModeCash, receipts.PaymentModeOnline, receipts.PaymentModeBank:
	default:
		return nil, newValidationError("unknown payment mode %q", payload.PaymentMode)
	}

	bankCode := ""
	if mode != receipts.PaymentModeCash {
		bank, err := dir.BankByCode(ctx, payload.BankCode)
		if errors.Is(err, masterdata.ErrNotFound) {
			return nil, newValidationError("unknown bank %q", payload.BankCode)
		}
		if err != nil {
			return nil, err
		}
		bankCode = bank.Code
	}

	details := strings.TrimSpace(payload.Details)
	if mode == receipts.PaymentModeOnline && details == "" {
		return nil, newValidationError("online recoveries require a transaction reference")
	}

	slipNo := strings.TrimSpace(payload.SlipNo)
	slipDate := ""
	if mode == receipts.PaymentModeBank {
		if slipNo == "" {
			return nil, newValidationError("bank recoveries require a slip number")
		}
		slipDate, err = ToStorageDate(payload.SlipDate)
		if err != nil {
			return nil, newValidationError("invalid slip date: %v", err)
		}
	}

	receiptDate, err := ToStorageDate(payload.ReceiptDate)
	if err != nil {
		return nil, newValidationError("invalid receipt date: %v", err)
	}

	canonical := RecoveryPayload{
		CustomerCode:    customer.Code,
		Amount:          payload.Amount,
		PaymentMode:     mode,
		ReceiptDate:     receiptDate,
		Details:         details,
		BankCode:        bankCode,
		SlipNo:          slipNo,
		SlipDate:        slipDate,
		AttachmentImage: payload.AttachmentImage,
	}
	return &normalized{
		canonical: canonical,
		customer:  customer,
		summary:   Summary{Count: 1, Amount: roundAmount(payload.Amount)},
	}, nil
}

func (recoveryVariant) materialize(ctx context.Context, deps Deps, entry *PendingEntry) (uint, string, error) {
	var payload RecoveryPayload
	if err := json.Unmarshal([]byte(entry.Payload), &payload); err != nil {
		return 0, "", fmt.Errorf("sync: stored recovery payload unreadable: %w", err)
	}

	customer, err := deps.Directory.CustomerByCode(ctx, payload.CustomerCode)
	if err != nil {
		return 0, "", err
	}

	var bankID *uint
	if payload.PaymentMode != receipts.PaymentModeCash {
		bank, err := deps.Directory.BankByCode(ctx, payload.BankCode)
		if err != nil {
			return 0, "", err
		}
		bankID = &bank.ID
	}

	created, err := deps.Receipts.Create(ctx, receipts.CreateInput{
		CustomerID:      customer.ID,
		SalesmanID:      entry.SalesmanID,
		ReceiptDate:     payload.ReceiptDate,
		Amount:          payload.Amount,
		Details:         payload.Details,
		PaymentMode:     payload.PaymentMode,
		BankID:          bankID,
		SlipNo:          payload.SlipNo,
		SlipDate:        payload.SlipDate,
		AttachmentImage: payload.AttachmentImage,
	})
	if err != nil {
		return 0, "", err
	}
	return created.ID, created.ReceiptNo, nil
}

func (recoveryVariant) entityNumber(ctx context.Context, deps Deps, entityID uint) (string, error) {
	receipt, err := deps.Receipts.FindByID(ctx, entityID)
	if err != nil {
		return "", err
	}
	return receipt.ReceiptNo, nil
}

func (recoveryVariant) entityExists(ctx context.Context, deps Deps, entityID uint) (bool, error) {
	_, err := deps.Receipts.FindByID(ctx, entityID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (recoveryVariant) applyNumber(out *Outcome, number string) {
	out.ReceiptNo = number
}

func roundAmount(value float64) float64 {
	return math.Round(value*100) / 100
}
