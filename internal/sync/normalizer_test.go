package sync

import (
	"context"
	"strings"
	"testing"

	"github.com/tradewire/fieldsync/internal/receipts"
)

func TestNormalizeOrderComputesSummaryAndCanonicalForm(t *testing.T) {
	p := newPipeline(t)

	payload := OrderPayload{
		CustomerCode: "C-001",
		Date:         "15-08-2026",
		Remarks:      "  urgent  ",
		Items: []OrderItemPayload{
			{ItemCode: "I-001", Quantity: 3},
			{ItemCode: "I-002", Quantity: 2, Bonus: 1},
		},
	}

	norm, err := p.normalizer.Normalize(context.Background(), EntryTypeOrder, mustPayload(t, payload))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if norm.Customer.Code != "C-001" {
		t.Fatalf("unexpected customer: %s", norm.Customer.Code)
	}
	if norm.Summary.Count != 2 {
		t.Fatalf("expected 2 items in summary, got %d", norm.Summary.Count)
	}
	// 3*120 + 2*260.5
	if norm.Summary.Amount != 881 {
		t.Fatalf("unexpected summary amount: %v", norm.Summary.Amount)
	}
	canonical := string(norm.Canonical)
	if !strings.Contains(canonical, `"date":"2026-08-15"`) {
		t.Fatalf("expected storage date in canonical payload, got %s", canonical)
	}
	if !strings.Contains(canonical, `"remarks":"urgent"`) {
		t.Fatalf("expected trimmed remarks in canonical payload, got %s", canonical)
	}
}

func TestNormalizeOrderHashIsStableAcrossEquivalentDates(t *testing.T) {
	p := newPipeline(t)

	display := OrderPayload{
		CustomerCode: "C-001",
		Date:         "15-08-2026",
		Items:        []OrderItemPayload{{ItemCode: "I-001", Quantity: 1}},
	}
	storage := OrderPayload{
		CustomerCode: "C-001",
		Date:         "2026-08-15",
		Items:        []OrderItemPayload{{ItemCode: "I-001", Quantity: 1}},
	}

	first, err := p.normalizer.Normalize(context.Background(), EntryTypeOrder, mustPayload(t, display))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := p.normalizer.Normalize(context.Background(), EntryTypeOrder, mustPayload(t, storage))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Hash != second.Hash {
		t.Fatalf("expected identical hashes, got %s and %s", first.Hash, second.Hash)
	}
}

func TestNormalizeOrderValidationRules(t *testing.T) {
	p := newPipeline(t)

	tests := []struct {
		name    string
		payload OrderPayload
		wantErr string
	}{
		{
			name:    "unknown customer",
			payload: OrderPayload{CustomerCode: "C-404", Date: "2026-08-15", Items: []OrderItemPayload{{ItemCode: "I-001", Quantity: 1}}},
			wantErr: "unknown customer",
		},
		{
			name:    "no items",
			payload: OrderPayload{CustomerCode: "C-001", Date: "2026-08-15"},
			wantErr: "at least one item",
		},
		{
			name:    "unknown item",
			payload: OrderPayload{CustomerCode: "C-001", Date: "2026-08-15", Items: []OrderItemPayload{{ItemCode: "I-404", Quantity: 1}}},
			wantErr: "unknown item",
		},
		{
			name:    "zero quantity",
			payload: OrderPayload{CustomerCode: "C-001", Date: "2026-08-15", Items: []OrderItemPayload{{ItemCode: "I-001", Quantity: 0}}},
			wantErr: "quantity must be greater than zero",
		},
		{
			name:    "negative bonus",
			payload: OrderPayload{CustomerCode: "C-001", Date: "2026-08-15", Items: []OrderItemPayload{{ItemCode: "I-001", Quantity: 1, Bonus: -1}}},
			wantErr: "bonus must not be negative",
		},
		{
			name:    "bad date",
			payload: OrderPayload{CustomerCode: "C-001", Date: "August 15", Items: []OrderItemPayload{{ItemCode: "I-001", Quantity: 1}}},
			wantErr: "invalid order date",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := p.normalizer.Normalize(context.Background(), EntryTypeOrder, mustPayload(t, tc.payload))
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !IsValidation(err) {
				t.Fatalf("expected ValidationError, got %T: %v", err, err)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %q", tc.wantErr, err.Error())
			}
		})
	}
}

func TestNormalizeRecoveryValidationRules(t *testing.T) {
	p := newPipeline(t)

	tests := []struct {
		name    string
		payload RecoveryPayload
		wantErr string
	}{
		{
			name:    "unknown customer",
			payload: RecoveryPayload{CustomerCode: "C-404", Amount: 100, ReceiptDate: "2026-08-15"},
			wantErr: "unknown customer",
		},
		{
			name:    "zero amount",
			payload: RecoveryPayload{CustomerCode: "C-001", Amount: 0, ReceiptDate: "2026-08-15"},
			wantErr: "amount must be greater than zero",
		},
		{
			name:    "unknown payment mode",
			payload: RecoveryPayload{CustomerCode: "C-001", Amount: 100, PaymentMode: "cheque", ReceiptDate: "2026-08-15"},
			wantErr: "unknown payment mode",
		},
		{
			name:    "online without bank",
			payload: RecoveryPayload{CustomerCode: "C-001", Amount: 100, PaymentMode: receipts.PaymentModeOnline, ReceiptDate: "2026-08-15"},
			wantErr: "unknown bank",
		},
		{
			name:    "online without transaction reference",
			payload: RecoveryPayload{CustomerCode: "C-001", Amount: 100, PaymentMode: receipts.PaymentModeOnline, BankCode: "B-001", ReceiptDate: "2026-08-15"},
			wantErr: "transaction reference",
		},
		{
			name:    "bank without slip number",
			payload: RecoveryPayload{CustomerCode: "C-001", Amount: 100, PaymentMode: receipts.PaymentModeBank, BankCode: "B-001", ReceiptDate: "2026-08-15"},
			wantErr: "slip number",
		},
		{
			name:    "bank with bad slip date",
			payload: RecoveryPayload{CustomerCode: "C-001", Amount: 100, PaymentMode: receipts.PaymentModeBank, BankCode: "B-001", SlipNo: "SL-9", SlipDate: "someday", ReceiptDate: "2026-08-15"},
			wantErr: "invalid slip date",
		},
		{
			name:    "bad receipt date",
			payload: RecoveryPayload{CustomerCode: "C-001", Amount: 100, ReceiptDate: "yesterday"},
			wantErr: "invalid receipt date",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := p.normalizer.Normalize(context.Background(), EntryTypeRecovery, mustPayload(t, tc.payload))
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !IsValidation(err) {
				t.Fatalf("expected ValidationError, got %T: %v", err, err)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %q", tc.wantErr, err.Error())
			}
		})
	}
}

func TestNormalizeRecoveryDefaultsToCash(t *testing.T) {
	p := newPipeline(t)

	payload := RecoveryPayload{CustomerCode: "C-001", Amount: 250.75, ReceiptDate: "15-08-2026"}
	norm, err := p.normalizer.Normalize(context.Background(), EntryTypeRecovery, mustPayload(t, payload))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if norm.Summary.Count != 1 {
		t.Fatalf("unexpected summary count: %d", norm.Summary.Count)
	}
	if norm.Summary.Amount != 250.75 {
		t.Fatalf("unexpected summary amount: %v", norm.Summary.Amount)
	}
	if !strings.Contains(string(norm.Canonical), `"paymentMode":"cash"`) {
		t.Fatalf("expected cash default in canonical payload, got %s", norm.Canonical)
	}
}

func TestNormalizeRejectsMalformedJSON(t *testing.T) {
	p := newPipeline(t)

	_, err := p.normalizer.Normalize(context.Background(), EntryTypeOrder, []byte(`{"customerCode":`))
	if err == nil || !IsValidation(err) {
		t.Fatalf("expected validation error for malformed payload, got %v", err)
	}
}

func TestNormalizeUnknownEntryType(t *testing.T) {
	p := newPipeline(t)

	_, err := p.normalizer.Normalize(context.Background(), EntryType("invoice"), []byte(`{}`))
	if err == nil {
		t.Fatalf("expected error for unknown entry type")
	}
}
