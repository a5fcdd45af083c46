package sync

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/tradewire/fieldsync/internal/masterdata"
)

// Summary is the normalized display/audit total of a submission. It is not an
// accounting figure.
type Summary struct {
	Count  int     `json:"count"`
	Amount float64 `json:"amount"`
}

// Normalized is a validated and canonicalized submission ready for the
// approval queue.
type Normalized struct {
	EntryType EntryType
	Canonical []byte
	Hash      string
	Customer  *masterdata.Customer
	Summary   Summary
}

// Normalizer validates raw submission payloads against master data and
// produces canonical payloads. It performs no writes: a validation failure
// leaves no ledger or pending state behind.
type Normalizer struct {
	directory *masterdata.Directory
}

// NewNormalizer constructs a Normalizer.
func NewNormalizer(directory *masterdata.Directory) (*Normalizer, error) {
	if directory == nil {
		return nil, errors.New("sync: normalizer requires a master data directory")
	}
	return &Normalizer{directory: directory}, nil
}

// Normalize validates the raw payload for the entry type and returns its
// canonical form, deterministic hash, resolved customer, and display summary.
func (n *Normalizer) Normalize(ctx context.Context, entryType EntryType, raw json.RawMessage) (*Normalized, error) {
	v, err := variantFor(entryType)
	if err != nil {
		return nil, err
	}
	result, err := v.normalize(ctx, n.directory, raw)
	if err != nil {
		return nil, err
	}

	canonical, err := json.Marshal(result.canonical)
	if err != nil {
		return nil, err
	}
	hash, err := payloadHash(result.canonical)
	if err != nil {
		return nil, err
	}

	return &Normalized{
		EntryType: entryType,
		Canonical: canonical,
		Hash:      hash,
		Customer:  result.customer,
		Summary:   result.summary,
	}, nil
}
