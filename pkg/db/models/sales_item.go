package models

import (
	"time"

	"github.com/google/uuid"
)

// SalesItem is an immutable order line. PriceAtSale snapshots the catalog
// price at creation; DiscountAmount is the store credit allocated to the
// line and may exceed the line subtotal (credit is balance-bound, not
// price-bound).
type SalesItem struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	SaleID         uuid.UUID  `gorm:"column:sale_id;type:uuid;not null;index"`
	ProductID      uuid.UUID  `gorm:"column:product_id;type:uuid;not null"`
	VariantID      uuid.UUID  `gorm:"column:variant_id;type:uuid;not null"`
	SizeID         *uuid.UUID `gorm:"column:size_id;type:uuid"`
	ColorID        *uuid.UUID `gorm:"column:color_id;type:uuid"`
	ProductName    string     `gorm:"column:product_name;not null"`
	Quantity       int        `gorm:"column:quantity;not null"`
	PriceAtSale    int64      `gorm:"column:price_at_sale;not null"`
	DiscountAmount int64      `gorm:"column:discount_amount;not null;default:0"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
}
