package models

import (
	"time"

	"github.com/google/uuid"
)

// InventoryVariant holds the stock counter for one product/size/color
// combination. Absence of a row means the combination is not stocked.
type InventoryVariant struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	ProductID uuid.UUID  `gorm:"column:product_id;type:uuid;not null;uniqueIndex:ux_inventory_variant_combo"`
	SizeID    *uuid.UUID `gorm:"column:size_id;type:uuid;uniqueIndex:ux_inventory_variant_combo"`
	ColorID   *uuid.UUID `gorm:"column:color_id;type:uuid;uniqueIndex:ux_inventory_variant_combo"`
	SKU       *string    `gorm:"column:sku"`
	Quantity  int        `gorm:"column:quantity;not null;default:0"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
