package orders

import "time"

// Status values an order moves through after it has been materialized.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusFulfilled = "fulfilled"
	StatusCancelled = "cancelled"
)

// Order is a materialized sales order created from an approved submission.
type Order struct {
	ID         uint      `gorm:"column:id;primaryKey;autoIncrement"`
	OrderNo    string    `gorm:"column:order_no;size:32;uniqueIndex;not null"`
	CustomerID uint      `gorm:"column:customer_id;not null"`
	SalesmanID *uint     `gorm:"column:salesman_id"`
	OrderDate  string    `gorm:"column:order_date;size:10;not null"`
	Status     string    `gorm:"column:status;size:16;not null;default:pending"`
	Remarks    string    `gorm:"column:remarks;size:512"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Order) TableName() string {
	return "orders"
}

// OrderLine is a single item row on an order.
type OrderLine struct {
	ID        uint      `gorm:"column:id;primaryKey;autoIncrement"`
	OrderID   uint      `gorm:"column:order_id;not null;index"`
	ItemID    uint      `gorm:"column:item_id;not null"`
	Quantity  float64   `gorm:"column:quantity;not null"`
	Bonus     float64   `gorm:"column:bonus;not null;default:0"`
	BaseUnit  string    `gorm:"column:base_unit;size:32;not null"`
	Notes     string    `gorm:"column:notes;size:512"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (OrderLine) TableName() string {
	return "order_lines"
}
