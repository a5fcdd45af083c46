package sync

import (
	"context"
	"strings"
	"testing"
)

func TestProcessNewSubmissionLandsPending(t *testing.T) {
	p := newPipeline(t)

	outcome := p.processor.Process(context.Background(), p.salesman, EntryTypeRecovery, recoverySubmission(t, "r1", 500))
	if outcome.Status != OutcomePending {
		t.Fatalf("expected pending, got %s (%s)", outcome.Status, outcome.Message)
	}
	if outcome.PendingID == 0 {
		t.Fatalf("expected pending id")
	}

	entry, err := p.pending.FindByReference(context.Background(), EntryTypeRecovery, "r1")
	if err != nil || entry == nil {
		t.Fatalf("expected pending entry, got %v, err %v", entry, err)
	}
	if entry.Status != PendingStatusPending {
		t.Fatalf("unexpected pending status: %s", entry.Status)
	}
	if entry.CustomerCode != "C-001" || entry.SalesmanCode != "S-001" {
		t.Fatalf("unexpected denormalized fields: %s / %s", entry.CustomerCode, entry.SalesmanCode)
	}
	if entry.SummaryAmount != 500 || entry.SummaryCount != 1 {
		t.Fatalf("unexpected summary: %v / %d", entry.SummaryAmount, entry.SummaryCount)
	}

	row := mustLedgerRow(t, p.ledger, "r1", EntryTypeRecovery)
	if row.Status != LogPending {
		t.Fatalf("expected pending ledger row, got %s", row.Status)
	}
	if row.PayloadHash == "" {
		t.Fatalf("expected payload hash on ledger row")
	}
}

func TestProcessRetryWhilePendingIsIdempotent(t *testing.T) {
	p := newPipeline(t)

	first := p.processor.Process(context.Background(), p.salesman, EntryTypeRecovery, recoverySubmission(t, "r1", 500))
	second := p.processor.Process(context.Background(), p.salesman, EntryTypeRecovery, recoverySubmission(t, "r1", 500))

	if second.Status != OutcomePending {
		t.Fatalf("expected pending on retry, got %s", second.Status)
	}
	if second.PendingID != first.PendingID {
		t.Fatalf("retry should land on the same pending entry: %d vs %d", first.PendingID, second.PendingID)
	}

	var count int64
	if err := p.db.Model(&PendingEntry{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one pending entry, got %d", count)
	}
}

func TestProcessRetryMergesNewLocation(t *testing.T) {
	p := newPipeline(t)

	first := recoverySubmission(t, "r1", 500)
	p.processor.Process(context.Background(), p.salesman, EntryTypeRecovery, first)

	retry := recoverySubmission(t, "r1", 500)
	retry.Location = &GeoPoint{Latitude: 31.6, Longitude: 74.4, RecordedAt: "2026-08-15T10:00:00Z"}
	outcome := p.processor.Process(context.Background(), p.salesman, EntryTypeRecovery, retry)
	if outcome.Status != OutcomePending {
		t.Fatalf("expected pending, got %s", outcome.Status)
	}

	entry, err := p.pending.FindByID(context.Background(), outcome.PendingID)
	if err != nil || entry == nil {
		t.Fatalf("pending entry lookup failed: %v", err)
	}
	point := entry.Location()
	if point == nil || point.Latitude != 31.6 {
		t.Fatalf("expected merged location, got %#v", point)
	}
}

func TestProcessValidationFailureRecordsErrorAndRecognizesRetry(t *testing.T) {
	p := newPipeline(t)

	bad := recoverySubmission(t, "r1", 0)
	outcome := p.processor.Process(context.Background(), p.salesman, EntryTypeRecovery, bad)
	if outcome.Status != OutcomeError {
		t.Fatalf("expected error outcome, got %s", outcome.Status)
	}
	if !strings.Contains(outcome.Message, "amount must be greater than zero") {
		t.Fatalf("unexpected message: %s", outcome.Message)
	}

	row := mustLedgerRow(t, p.ledger, "r1", EntryTypeRecovery)
	if row.Status != LogError {
		t.Fatalf("expected error ledger row, got %s", row.Status)
	}
	if row.LastError == "" || row.PayloadHash == "" {
		t.Fatalf("expected error details on ledger row: %#v", row)
	}

	entry, err := p.pending.FindByReference(context.Background(), EntryTypeRecovery, "r1")
	if err != nil {
		t.Fatalf("pending lookup failed: %v", err)
	}
	if entry != nil {
		t.Fatalf("validation failure must not create a pending entry")
	}

	// Byte-identical retry is answered from the stored hash.
	retry := p.processor.Process(context.Background(), p.salesman, EntryTypeRecovery, bad)
	if retry.Status != OutcomeError || retry.Message != row.LastError {
		t.Fatalf("expected stored error replay, got %s (%s)", retry.Status, retry.Message)
	}
}

func TestProcessCorrectedPayloadAfterValidationFailure(t *testing.T) {
	p := newPipeline(t)

	p.processor.Process(context.Background(), p.salesman, EntryTypeRecovery, recoverySubmission(t, "r1", 0))

	fixed := p.processor.Process(context.Background(), p.salesman, EntryTypeRecovery, recoverySubmission(t, "r1", 400))
	if fixed.Status != OutcomePending {
		t.Fatalf("expected corrected payload to be admitted, got %s (%s)", fixed.Status, fixed.Message)
	}
	row := mustLedgerRow(t, p.ledger, "r1", EntryTypeRecovery)
	if row.Status != LogPending {
		t.Fatalf("expected ledger row to move to pending, got %s", row.Status)
	}
}

func TestProcessRetryAfterApprovalReportsDuplicateWithNumber(t *testing.T) {
	p := newPipeline(t)

	outcome := p.processor.Process(context.Background(), p.salesman, EntryTypeRecovery, recoverySubmission(t, "r1", 500))
	if _, err := p.executor.Approve(context.Background(), outcome.PendingID, Reviewer{ID: 7, Name: "Back Office"}); err != nil {
		t.Fatalf("approval failed: %v", err)
	}

	retry := p.processor.Process(context.Background(), p.salesman, EntryTypeRecovery, recoverySubmission(t, "r1", 500))
	if retry.Status != OutcomeDuplicate {
		t.Fatalf("expected duplicate after approval, got %s (%s)", retry.Status, retry.Message)
	}
	if retry.ReceiptNo == "" {
		t.Fatalf("expected receipt number on duplicate outcome")
	}

	var count int64
	if err := p.db.Table("customer_receipts").Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("retry after approval must not create another receipt, got %d", count)
	}
}

func TestProcessRetryAfterRejectionCarriesReason(t *testing.T) {
	p := newPipeline(t)

	outcome := p.processor.Process(context.Background(), p.salesman, EntryTypeOrder, orderSubmission(t, "o1"))
	if err := p.executor.Reject(context.Background(), outcome.PendingID, "Out of stock", Reviewer{ID: 7}); err != nil {
		t.Fatalf("rejection failed: %v", err)
	}

	retry := p.processor.Process(context.Background(), p.salesman, EntryTypeOrder, orderSubmission(t, "o1"))
	if retry.Status != OutcomeRejected {
		t.Fatalf("expected rejected on retry, got %s", retry.Status)
	}
	if retry.Message != "Out of stock" {
		t.Fatalf("expected rejection reason, got %q", retry.Message)
	}
}

func TestProcessPayloadDriftAfterSuccessIsReadmitted(t *testing.T) {
	p := newPipeline(t)

	outcome := p.processor.Process(context.Background(), p.salesman, EntryTypeRecovery, recoverySubmission(t, "r1", 500))
	if _, err := p.executor.Approve(context.Background(), outcome.PendingID, Reviewer{ID: 7}); err != nil {
		t.Fatalf("approval failed: %v", err)
	}

	drifted := p.processor.Process(context.Background(), p.salesman, EntryTypeRecovery, recoverySubmission(t, "r1", 900))
	if drifted.Status != OutcomeDuplicate {
		// The unique (entry_type, reference) key still points at the resolved
		// entry, so the drift lands on the existing-pending path.
		t.Fatalf("expected duplicate for drifted payload on resolved reference, got %s (%s)", drifted.Status, drifted.Message)
	}
	if !strings.Contains(drifted.Message, "differs from the already processed submission") {
		t.Fatalf("expected drift notice in message, got %q", drifted.Message)
	}
}

func TestProcessEmptyReferenceFails(t *testing.T) {
	p := newPipeline(t)

	outcome := p.processor.Process(context.Background(), p.salesman, EntryTypeOrder, Submission{Payload: []byte(`{}`)})
	if outcome.Status != OutcomeError {
		t.Fatalf("expected error for empty reference, got %s", outcome.Status)
	}
	if !strings.Contains(outcome.Message, "client reference is required") {
		t.Fatalf("unexpected message: %s", outcome.Message)
	}
}

func TestProcessMalformedRetryDoesNotRegressSuccess(t *testing.T) {
	p := newPipeline(t)

	outcome := p.processor.Process(context.Background(), p.salesman, EntryTypeRecovery, recoverySubmission(t, "r1", 500))
	if _, err := p.executor.Approve(context.Background(), outcome.PendingID, Reviewer{ID: 7}); err != nil {
		t.Fatalf("approval failed: %v", err)
	}

	malformed := Submission{ClientReference: "r1", Payload: []byte(`{"customerCode":`)}
	retry := p.processor.Process(context.Background(), p.salesman, EntryTypeRecovery, malformed)
	if retry.Status != OutcomeError {
		t.Fatalf("expected error outcome, got %s", retry.Status)
	}

	row := mustLedgerRow(t, p.ledger, "r1", EntryTypeRecovery)
	if row.Status != LogSuccess {
		t.Fatalf("success ledger row must survive a malformed retry, got %s", row.Status)
	}
}

func TestProcessBatchCollectsRecoveryCustomers(t *testing.T) {
	p := newPipeline(t)

	request := UploadRequest{
		Orders:     []Submission{orderSubmission(t, "o1")},
		Recoveries: []Submission{recoverySubmission(t, "r1", 100), recoverySubmission(t, "r2", 200)},
	}
	result := p.processor.ProcessBatch(context.Background(), p.salesman, request)
	if len(result.Orders) != 1 || len(result.Recoveries) != 2 {
		t.Fatalf("unexpected outcome counts: %d orders, %d recoveries", len(result.Orders), len(result.Recoveries))
	}
	if len(result.RecoveryCustomers) != 1 || result.RecoveryCustomers[0] != "C-001" {
		t.Fatalf("expected deduplicated recovery customers, got %v", result.RecoveryCustomers)
	}
}
