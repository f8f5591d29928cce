package models

import (
	"time"

	"github.com/google/uuid"
)

// SalesTotals is the immutable one-to-one totals record of a sale.
// Invariant: TotalAmount == Subtotal - DiscountTotal + ShippingFee.
type SalesTotals struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	SaleID        uuid.UUID `gorm:"column:sale_id;type:uuid;not null;uniqueIndex:ux_sales_totals_sale"`
	Subtotal      int64     `gorm:"column:subtotal;not null"`
	DiscountTotal int64     `gorm:"column:discount_total;not null;default:0"`
	ShippingFee   int64     `gorm:"column:shipping_fee;not null;default:0"`
	TotalAmount   int64     `gorm:"column:total_amount;not null"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
}
