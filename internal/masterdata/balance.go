package masterdata

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// OutstandingBalance returns a BalanceFunc that derives a customer's
// receivable from the opening balance less every receipt posted against the
// customer. Deployments with a full accounting backend substitute their own
// implementation.
func OutstandingBalance(db *gorm.DB) BalanceFunc {
	return func(ctx context.Context, customerID uint) (float64, error) {
		var customer Customer
		err := db.WithContext(ctx).Where("id = ?", customerID).Take(&customer).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, fmt.Errorf("%w: customer %d", ErrNotFound, customerID)
		}
		if err != nil {
			return 0, err
		}
		var received float64
		row := db.WithContext(ctx).
			Table("customer_receipts").
			Where("customer_id = ?", customerID).
			Select("COALESCE(SUM(amount), 0)").
			Row()
		if err := row.Scan(&received); err != nil {
			return 0, err
		}
		return customer.OpeningBalance - received, nil
	}
}
