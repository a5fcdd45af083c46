package masterdata

import "time"

// Customer is a customer master record. Sync submissions reference customers
// by code; the back office owns the full CRUD lifecycle.
type Customer struct {
	ID             uint      `gorm:"column:id;primaryKey;autoIncrement"`
	Code           string    `gorm:"column:code;size:64;uniqueIndex;not null"`
	Name           string    `gorm:"column:name;size:190;not null"`
	Address        string    `gorm:"column:address;size:320"`
	AreaID         *uint     `gorm:"column:area_id"`
	Phone1         string    `gorm:"column:phone1;size:32"`
	Phone2         string    `gorm:"column:phone2;size:32"`
	OpeningBalance float64   `gorm:"column:opening_balance;not null;default:0"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Customer) TableName() string {
	return "customers"
}

// Item is a sellable item master record.
type Item struct {
	ID        uint      `gorm:"column:id;primaryKey;autoIncrement"`
	Code      string    `gorm:"column:code;size:64;uniqueIndex;not null"`
	Name      string    `gorm:"column:name;size:190;not null"`
	BaseUnit  string    `gorm:"column:base_unit;size:32;not null"`
	PackSize  *float64  `gorm:"column:pack_size"`
	TradeRate float64   `gorm:"column:trade_rate;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Item) TableName() string {
	return "items"
}

// Bank is a bank account master record used by non-cash recoveries.
type Bank struct {
	ID        uint      `gorm:"column:id;primaryKey;autoIncrement"`
	Code      string    `gorm:"column:code;size:64;uniqueIndex;not null"`
	AccountNo string    `gorm:"column:account_no;size:64;not null"`
	Name      string    `gorm:"column:name;size:190;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Bank) TableName() string {
	return "banks"
}

// Salesman is the field identity that owns device submissions.
type Salesman struct {
	ID        uint      `gorm:"column:id;primaryKey;autoIncrement"`
	Code      string    `gorm:"column:code;size:64;uniqueIndex;not null"`
	Name      string    `gorm:"column:name;size:190;not null"`
	Address   string    `gorm:"column:address;size:320"`
	Phone1    string    `gorm:"column:phone1;size:32"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Salesman) TableName() string {
	return "salesmen"
}

// Area is a sales route/territory.
type Area struct {
	ID        uint      `gorm:"column:id;primaryKey;autoIncrement"`
	Code      string    `gorm:"column:code;size:64;uniqueIndex;not null"`
	Name      string    `gorm:"column:name;size:190;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Area) TableName() string {
	return "areas"
}
