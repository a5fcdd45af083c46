package sync

import (
	"encoding/json"
	"fmt"
	"strings"
)

// EntryType tags the kind of submission moving through the pipeline. Adding a
// new submission kind means adding a constant here plus a variant in
// variant.go; no shared conditionals need to change.
type EntryType string

const (
	// EntryTypeOrder is a field sales order awaiting approval.
	EntryTypeOrder EntryType = "order"
	// EntryTypeRecovery is a customer cash recovery awaiting approval.
	EntryTypeRecovery EntryType = "recovery"
)

// ParseEntryType validates a raw entry type string.
func ParseEntryType(raw string) (EntryType, error) {
	switch EntryType(strings.TrimSpace(raw)) {
	case EntryTypeOrder:
		return EntryTypeOrder, nil
	case EntryTypeRecovery:
		return EntryTypeRecovery, nil
	default:
		return "", fmt.Errorf("unknown entry type %q", raw)
	}
}

// String returns the wire form of the entry type.
func (t EntryType) String() string {
	return string(t)
}

// GeoPoint is the location fix captured once per submission at enqueue time.
// Immutable after capture; never required for re-validation.
type GeoPoint struct {
	Latitude   float64  `json:"latitude"`
	Longitude  float64  `json:"longitude"`
	Accuracy   *float64 `json:"accuracy,omitempty"`
	RecordedAt string   `json:"recordedAt"`
}

// OrderItemPayload is one line of an inbound order submission.
type OrderItemPayload struct {
	ItemCode string  `json:"itemCode"`
	Quantity float64 `json:"quantity"`
	Bonus    float64 `json:"bonus"`
	Notes    string  `json:"notes,omitempty"`
}

// OrderPayload is the raw body of an order submission.
type OrderPayload struct {
	CustomerCode string             `json:"customerCode"`
	Date         string             `json:"date"`
	Remarks      string             `json:"remarks,omitempty"`
	Items        []OrderItemPayload `json:"items"`
}

// RecoveryPayload is the raw body of a cash recovery submission.
type RecoveryPayload struct {
	CustomerCode    string  `json:"customerCode"`
	Amount          float64 `json:"amount"`
	PaymentMode     string  `json:"paymentMode"`
	ReceiptDate     string  `json:"receiptDate"`
	Details         string  `json:"details,omitempty"`
	BankCode        string  `json:"bankCode,omitempty"`
	SlipNo          string  `json:"slipNo,omitempty"`
	SlipDate        string  `json:"slipDate,omitempty"`
	AttachmentImage string  `json:"attachmentImage,omitempty"`
}

// Submission is one queued entry as uploaded by a device.
type Submission struct {
	ClientReference string          `json:"clientReference"`
	Payload         json.RawMessage `json:"payload"`
	SubmittedAt     string          `json:"submittedAt,omitempty"`
	Location        *GeoPoint       `json:"location,omitempty"`
}

// OutcomeStatus is the per-entry processing result reported back to a device.
type OutcomeStatus string

const (
	OutcomeSuccess   OutcomeStatus = "success"
	OutcomeDuplicate OutcomeStatus = "duplicate"
	OutcomePending   OutcomeStatus = "pending"
	OutcomeRejected  OutcomeStatus = "rejected"
	OutcomeError     OutcomeStatus = "error"
)

// Acknowledged reports whether the server has durably recorded the submission
// so the device may drop its local copy.
func (s OutcomeStatus) Acknowledged() bool {
	return s == OutcomeSuccess || s == OutcomeDuplicate || s == OutcomePending
}

// Outcome is the result of processing one uploaded submission.
type Outcome struct {
	Status    OutcomeStatus `json:"status"`
	Reference string        `json:"reference"`
	OrderNo   string        `json:"orderNo,omitempty"`
	ReceiptNo string        `json:"receiptNo,omitempty"`
	PendingID uint          `json:"pendingId,omitempty"`
	Message   string        `json:"message,omitempty"`

	// customerCode is kept server-side for balance refresh; not on the wire.
	customerCode string
}

// UploadRequest is one connectivity-triggered batch flush from a device.
type UploadRequest struct {
	Orders     []Submission `json:"orders"`
	Recoveries []Submission `json:"recoveries"`
}

// BalanceUpdate reports a recomputed outstanding balance to the device.
type BalanceUpdate struct {
	CustomerCode string  `json:"customerCode"`
	Outstanding  float64 `json:"outstanding"`
}

// UploadResponse mirrors an upload batch with per-entry outcomes plus a
// refreshed sync status view.
type UploadResponse struct {
	DatasetVersion  string          `json:"datasetVersion"`
	Orders          []Outcome       `json:"orders"`
	Recoveries      []Outcome       `json:"recoveries"`
	SyncStatus      []StatusRow     `json:"syncStatus"`
	UpdatedBalances []BalanceUpdate `json:"updatedBalances,omitempty"`
}
