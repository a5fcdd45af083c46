package sync

import (
	"context"
	"testing"
)

func TestBuildAssemblesReferenceData(t *testing.T) {
	p := newPipeline(t)

	bundle, err := p.builder.Build(context.Background(), p.salesman.ID)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if bundle.DatasetVersion == "" {
		t.Fatalf("expected dataset version stamp")
	}
	if len(bundle.Customers) != 2 || len(bundle.Items) != 2 || len(bundle.Banks) != 1 || len(bundle.Areas) != 1 {
		t.Fatalf("unexpected reference data counts: %d customers, %d items, %d banks, %d areas",
			len(bundle.Customers), len(bundle.Items), len(bundle.Banks), len(bundle.Areas))
	}
	if bundle.Customers[0].Code != "C-001" || bundle.Customers[0].Outstanding != 5000 {
		t.Fatalf("unexpected first customer: %#v", bundle.Customers[0])
	}
	if bundle.Items[0].TradeRate != 120 {
		t.Fatalf("unexpected item rate: %v", bundle.Items[0].TradeRate)
	}
}

func TestBuildOutstandingReflectsApprovedRecoveries(t *testing.T) {
	p := newPipeline(t)

	outcome := p.processor.Process(context.Background(), p.salesman, EntryTypeRecovery, recoverySubmission(t, "r1", 1500))
	if _, err := p.executor.Approve(context.Background(), outcome.PendingID, Reviewer{ID: 7}); err != nil {
		t.Fatalf("approval failed: %v", err)
	}

	bundle, err := p.builder.Build(context.Background(), p.salesman.ID)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if bundle.Customers[0].Outstanding != 3500 {
		t.Fatalf("expected outstanding 3500 after recovery, got %v", bundle.Customers[0].Outstanding)
	}
}

func TestSyncStatusDropsStalePendingRows(t *testing.T) {
	p := newPipeline(t)

	kept := p.processor.Process(context.Background(), p.salesman, EntryTypeRecovery, recoverySubmission(t, "r1", 100))
	if kept.Status != OutcomePending {
		t.Fatalf("expected pending, got %s", kept.Status)
	}

	resolved := p.processor.Process(context.Background(), p.salesman, EntryTypeRecovery, recoverySubmission(t, "r2", 200))
	if _, err := p.executor.Approve(context.Background(), resolved.PendingID, Reviewer{ID: 7}); err != nil {
		t.Fatalf("approval failed: %v", err)
	}
	// Force the ledger back to pending, simulating a crash between the claim
	// and the ledger write.
	if err := p.ledger.Upsert(context.Background(), "r2", EntryTypeRecovery, LogUpdate{
		SalesmanID:  &p.salesman.ID,
		Status:      LogPending,
		PayloadHash: "stale",
	}); err != nil {
		t.Fatalf("ledger override failed: %v", err)
	}

	rows, err := p.builder.SyncStatus(context.Background(), p.salesman.ID)
	if err != nil {
		t.Fatalf("sync status failed: %v", err)
	}
	for _, row := range rows {
		if row.Reference == "r2" {
			t.Fatalf("stale pending row for resolved entry must be dropped, got %#v", row)
		}
	}
	found := false
	for _, row := range rows {
		if row.Reference == "r1" && row.Status == LogPending {
			found = true
		}
	}
	if !found {
		t.Fatalf("genuinely pending row must survive the filter, got %#v", rows)
	}
}

func TestBalancesForSkipsUnknownCodes(t *testing.T) {
	p := newPipeline(t)

	updates := p.builder.BalancesFor(context.Background(), []string{"C-001", "C-404"})
	if len(updates) != 1 {
		t.Fatalf("expected one balance update, got %d", len(updates))
	}
	if updates[0].CustomerCode != "C-001" || updates[0].Outstanding != 5000 {
		t.Fatalf("unexpected update: %#v", updates[0])
	}
}
