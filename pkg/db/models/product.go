package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is catalog-owned and read-only to the order engine; Price is the
// snapshot source for price_at_sale, in minor currency units.
type Product struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name      string    `gorm:"column:name;not null"`
	Price     int64     `gorm:"column:price;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// Size is a catalog dimension referenced by inventory variants.
type Size struct {
	ID    uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Label string    `gorm:"column:label;not null"`
}

// Color is a catalog dimension referenced by inventory variants.
type Color struct {
	ID    uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Label string    `gorm:"column:label;not null"`
}
