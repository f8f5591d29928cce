package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/storefront-labs/storefront-backend/pkg/enums"
)

// Sale is the order aggregate root. Status is mutated only by the status
// transition engine; everything else is written once at creation.
type Sale struct {
	ID         uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	CustomerID uuid.UUID        `gorm:"column:customer_id;type:uuid;not null;index"`
	Status     enums.SaleStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	Items      []SalesItem      `gorm:"foreignKey:SaleID;constraint:OnDelete:CASCADE"`
	Totals     *SalesTotals     `gorm:"foreignKey:SaleID;constraint:OnDelete:CASCADE"`
	History    []SalesHistory   `gorm:"foreignKey:SaleID;constraint:OnDelete:CASCADE"`
	CreatedAt  time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
