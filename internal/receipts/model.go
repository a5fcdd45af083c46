package receipts

import "time"

// Payment modes accepted on a customer receipt.
const (
	PaymentModeCash   = "cash"
	PaymentModeOnline = "online"
	PaymentModeBank   = "bank"
)

// Bank transaction types.
const (
	TransactionTypeDeposit = "deposit"
	TransactionTypeDrawing = "drawing"
)

// Receipt is a materialized customer cash recovery.
type Receipt struct {
	ID              uint      `gorm:"column:id;primaryKey;autoIncrement"`
	ReceiptNo       string    `gorm:"column:receipt_no;size:32;uniqueIndex;not null"`
	CustomerID      uint      `gorm:"column:customer_id;not null"`
	SalesmanID      *uint     `gorm:"column:salesman_id"`
	ReceiptDate     string    `gorm:"column:receipt_date;size:10;not null"`
	Amount          float64   `gorm:"column:amount;not null"`
	Details         string    `gorm:"column:details;size:512"`
	PaymentMode     string    `gorm:"column:payment_mode;size:16;not null;default:cash"`
	BankID          *uint     `gorm:"column:bank_id"`
	SlipNo          string    `gorm:"column:slip_no;size:64"`
	SlipDate        string    `gorm:"column:slip_date;size:10"`
	AttachmentImage string    `gorm:"column:attachment_image;type:text"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Receipt) TableName() string {
	return "customer_receipts"
}

// BankTransaction is the bank ledger row paired with a non-cash receipt.
type BankTransaction struct {
	ID              uint      `gorm:"column:id;primaryKey;autoIncrement"`
	TransactionType string    `gorm:"column:transaction_type;size:16;not null"`
	BankID          *uint     `gorm:"column:bank_id"`
	SlipNo          string    `gorm:"column:slip_no;size:64"`
	SlipDate        string    `gorm:"column:slip_date;size:10;not null"`
	CashAmount      float64   `gorm:"column:cash_amount;not null"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (BankTransaction) TableName() string {
	return "bank_transactions"
}
