package sync

import (
	"context"
	"strings"
	"time"

	"github.com/tradewire/fieldsync/internal/masterdata"
	"go.uber.org/zap"
)

// ProcessorConfig describes the dependencies for the upload processor.
type ProcessorConfig struct {
	Ledger     *Ledger
	Pending    *PendingStore
	Normalizer *Normalizer
	Deps       Deps
	Clock      func() time.Time
	Logger     *zap.Logger
}

// Processor applies the idempotency decision table to inbound submissions.
// Each submission in a batch is validated and committed independently; a
// failure in one entry never rolls back its siblings.
type Processor struct {
	ledger     *Ledger
	pending    *PendingStore
	normalizer *Normalizer
	deps       Deps
	clock      func() time.Time
	logger     *zap.Logger
}

// NewProcessor constructs a Processor.
func NewProcessor(cfg ProcessorConfig) (*Processor, error) {
	if cfg.Ledger == nil || cfg.Pending == nil || cfg.Normalizer == nil {
		return nil, newConflictError("processor requires ledger, pending store and normalizer")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		ledger:     cfg.Ledger,
		pending:    cfg.Pending,
		normalizer: cfg.Normalizer,
		deps:       cfg.Deps,
		clock:      clock,
		logger:     logger,
	}, nil
}

// BatchResult holds the per-entry outcomes of one upload batch plus the
// customer codes touched by acknowledged recoveries, for balance refresh.
type BatchResult struct {
	Orders            []Outcome
	Recoveries        []Outcome
	RecoveryCustomers []string
}

// ProcessBatch handles one device flush. Entries are processed sequentially
// and independently.
func (p *Processor) ProcessBatch(ctx context.Context, salesman *masterdata.Salesman, request UploadRequest) BatchResult {
	result := BatchResult{
		Orders:     make([]Outcome, 0, len(request.Orders)),
		Recoveries: make([]Outcome, 0, len(request.Recoveries)),
	}
	for _, submission := range request.Orders {
		result.Orders = append(result.Orders, p.Process(ctx, salesman, EntryTypeOrder, submission))
	}
	seen := map[string]bool{}
	for _, submission := range request.Recoveries {
		outcome := p.Process(ctx, salesman, EntryTypeRecovery, submission)
		result.Recoveries = append(result.Recoveries, outcome)
		if outcome.Status.Acknowledged() && outcome.customerCode != "" && !seen[outcome.customerCode] {
			seen[outcome.customerCode] = true
			result.RecoveryCustomers = append(result.RecoveryCustomers, outcome.customerCode)
		}
	}
	return result
}

// Process runs one submission through the decision table.
func (p *Processor) Process(ctx context.Context, salesman *masterdata.Salesman, entryType EntryType, submission Submission) Outcome {
	reference := strings.TrimSpace(submission.ClientReference)
	out := Outcome{Status: OutcomeError, Reference: reference}
	if reference == "" {
		out.Message = "client reference is required"
		return out
	}

	var salesmanID *uint
	if salesman != nil {
		salesmanID = &salesman.ID
	}

	logRow, err := p.ledger.Lookup(ctx, reference, entryType, salesmanID)
	if err != nil {
		p.logger.Error("ledger lookup failed", zap.String("reference", reference), zap.Error(err))
		out.Message = "sync store unavailable"
		return out
	}

	// A byte-identical retry of a payload that already failed validation is
	// recognized from the stored hash without re-validating.
	if logRow != nil && logRow.Status == LogError && logRow.PayloadHash != "" &&
		logRow.PayloadHash == rawHash(submission.Payload) && logRow.LastError != "" {
		out.Message = logRow.LastError
		return out
	}

	if logRow != nil && logRow.Status == LogSuccess {
		return p.processSeenSuccess(ctx, salesman, entryType, reference, submission, logRow)
	}

	existing, err := p.pending.FindByReference(ctx, entryType, reference)
	if err != nil {
		p.logger.Error("pending lookup failed", zap.String("reference", reference), zap.Error(err))
		out.Message = "sync store unavailable"
		return out
	}
	if existing != nil {
		return p.processExistingPending(ctx, salesmanID, entryType, reference, submission, existing, "")
	}

	norm, err := p.normalizer.Normalize(ctx, entryType, submission.Payload)
	if err != nil {
		return p.recordValidationFailure(ctx, salesmanID, entryType, reference, submission, err)
	}
	return p.admit(ctx, salesman, entryType, reference, submission, norm, "")
}

// processSeenSuccess handles references the ledger already reports as
// processed: identical hashes are duplicates, drifted hashes are flagged and
// re-admitted as new pending work.
func (p *Processor) processSeenSuccess(ctx context.Context, salesman *masterdata.Salesman, entryType EntryType, reference string, submission Submission, logRow *SyncLog) Outcome {
	out := Outcome{Status: OutcomeError, Reference: reference}

	norm, err := p.normalizer.Normalize(ctx, entryType, submission.Payload)
	if err != nil {
		// Do not regress a terminal success row because a retry arrived
		// malformed; report the error to the caller only.
		if IsValidation(err) {
			out.Message = err.Error()
		} else {
			p.logger.Error("normalize failed", zap.String("reference", reference), zap.Error(err))
			out.Message = "sync store unavailable"
		}
		return out
	}

	if norm.Hash == logRow.PayloadHash {
		out.Status = OutcomeDuplicate
		out.customerCode = norm.Customer.Code
		if number, err := p.resolveEntityNumber(ctx, entryType, reference, logRow.EntityID); err == nil && number != "" {
			if v, verr := variantFor(entryType); verr == nil {
				v.applyNumber(&out, number)
			}
		}
		return out
	}

	p.logger.Warn("payload drift on processed reference",
		zap.String("reference", reference),
		zap.String("entity_type", entryType.String()),
		zap.String("known_hash", logRow.PayloadHash),
		zap.String("new_hash", norm.Hash))

	var salesmanID *uint
	if salesman != nil {
		salesmanID = &salesman.ID
	}
	existing, err := p.pending.FindByReference(ctx, entryType, reference)
	if err != nil {
		out.Message = "sync store unavailable"
		return out
	}
	driftMessage := "payload differs from the already processed submission with this reference"
	if existing != nil {
		return p.processExistingPending(ctx, salesmanID, entryType, reference, submission, existing, driftMessage)
	}
	return p.admit(ctx, salesman, entryType, reference, submission, norm, driftMessage)
}

func (p *Processor) processExistingPending(ctx context.Context, salesmanID *uint, entryType EntryType, reference string, submission Submission, existing *PendingEntry, message string) Outcome {
	out := Outcome{Status: OutcomeError, Reference: reference, customerCode: existing.CustomerCode}

	switch existing.Status {
	case PendingStatusPending:
		if submission.Location != nil {
			if err := p.pending.MergeLocation(ctx, existing.ID, submission.Location); err != nil {
				p.logger.Warn("location merge failed", zap.String("reference", reference), zap.Error(err))
			}
		}
		if err := p.ledger.Upsert(ctx, reference, entryType, LogUpdate{
			SalesmanID:  salesmanID,
			Status:      LogPending,
			PayloadHash: existing.PayloadHash,
		}); err != nil {
			p.logger.Error("ledger upsert failed", zap.String("reference", reference), zap.Error(err))
		}
		out.Status = OutcomePending
		out.PendingID = existing.ID
		out.Message = message
		return out

	case PendingStatusApproved:
		out.Status = OutcomeDuplicate
		out.PendingID = existing.ID
		out.Message = message
		if existing.EntityID != nil {
			if err := p.ledger.Upsert(ctx, reference, entryType, LogUpdate{
				SalesmanID:  salesmanID,
				EntityID:    existing.EntityID,
				Status:      LogSuccess,
				PayloadHash: existing.PayloadHash,
			}); err != nil {
				p.logger.Error("ledger repair failed", zap.String("reference", reference), zap.Error(err))
			}
			if v, err := variantFor(entryType); err == nil {
				if number, err := v.entityNumber(ctx, p.deps, *existing.EntityID); err == nil {
					v.applyNumber(&out, number)
				}
			}
		}
		return out

	case PendingStatusRejected:
		if err := p.ledger.Upsert(ctx, reference, entryType, LogUpdate{
			SalesmanID:  salesmanID,
			Status:      LogRejected,
			PayloadHash: existing.PayloadHash,
			LastError:   existing.RejectionReason,
		}); err != nil {
			p.logger.Error("ledger upsert failed", zap.String("reference", reference), zap.Error(err))
		}
		out.Status = OutcomeRejected
		out.PendingID = existing.ID
		out.Message = existing.RejectionReason
		return out
	}

	out.Message = "pending entry in unknown state"
	return out
}

// admit creates the pending entry and ledger row for a newly accepted
// submission. Enqueue is idempotent, so a racing duplicate upload lands on the
// existing row and is routed through the existing-pending path.
func (p *Processor) admit(ctx context.Context, salesman *masterdata.Salesman, entryType EntryType, reference string, submission Submission, norm *Normalized, message string) Outcome {
	out := Outcome{Status: OutcomeError, Reference: reference, customerCode: norm.Customer.Code}

	entry := &PendingEntry{
		EntryType:       entryType,
		ClientReference: reference,
		Status:          PendingStatusPending,
		Payload:         string(norm.Canonical),
		PayloadHash:     norm.Hash,
		CustomerCode:    norm.Customer.Code,
		CustomerName:    norm.Customer.Name,
		SummaryAmount:   norm.Summary.Amount,
		SummaryCount:    norm.Summary.Count,
	}
	if salesman != nil {
		id := salesman.ID
		entry.SalesmanID = &id
		entry.SalesmanCode = salesman.Code
		entry.SalesmanName = salesman.Name
	}
	entry.SetLocation(submission.Location)

	stored, created, err := p.pending.Enqueue(ctx, entry)
	if err != nil {
		p.logger.Error("pending enqueue failed", zap.String("reference", reference), zap.Error(err))
		out.Message = "sync store unavailable"
		return out
	}
	if !created && stored.Status != PendingStatusPending {
		return p.processExistingPending(ctx, entry.SalesmanID, entryType, reference, submission, stored, message)
	}

	if err := p.ledger.Upsert(ctx, reference, entryType, LogUpdate{
		SalesmanID:  entry.SalesmanID,
		Status:      LogPending,
		PayloadHash: norm.Hash,
	}); err != nil {
		p.logger.Error("ledger upsert failed", zap.String("reference", reference), zap.Error(err))
	}

	out.Status = OutcomePending
	out.PendingID = stored.ID
	out.Message = message
	return out
}

// recordValidationFailure reports the error to the caller and records it in
// the ledger so a byte-identical retry is cheaply recognized. The normalizer
// itself never writes; this is the pipeline's processing-attempt record.
func (p *Processor) recordValidationFailure(ctx context.Context, salesmanID *uint, entryType EntryType, reference string, submission Submission, cause error) Outcome {
	out := Outcome{Status: OutcomeError, Reference: reference}
	if !IsValidation(cause) {
		p.logger.Error("submission processing failed", zap.String("reference", reference), zap.Error(cause))
		out.Message = "sync store unavailable"
		return out
	}

	message := cause.Error()
	if err := p.ledger.Upsert(ctx, reference, entryType, LogUpdate{
		SalesmanID:  salesmanID,
		Status:      LogError,
		PayloadHash: rawHash(submission.Payload),
		LastError:   message,
	}); err != nil {
		p.logger.Error("ledger upsert failed", zap.String("reference", reference), zap.Error(err))
	}
	out.Message = message
	return out
}

func (p *Processor) resolveEntityNumber(ctx context.Context, entryType EntryType, reference string, entityID *uint) (string, error) {
	id := entityID
	if id == nil {
		entry, err := p.pending.FindByReference(ctx, entryType, reference)
		if err != nil || entry == nil {
			return "", err
		}
		id = entry.EntityID
	}
	if id == nil {
		return "", nil
	}
	v, err := variantFor(entryType)
	if err != nil {
		return "", err
	}
	return v.entityNumber(ctx, p.deps, *id)
}
