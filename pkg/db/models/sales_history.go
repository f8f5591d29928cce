package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/storefront-labs/storefront-backend/pkg/enums"
)

// SalesHistory is the append-only audit trail of a sale's status changes.
// Rows are never updated or deleted.
type SalesHistory struct {
	ID        uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	SaleID    uuid.UUID        `gorm:"column:sale_id;type:uuid;not null;index"`
	Status    enums.SaleStatus `gorm:"column:status;type:text;not null"`
	Notes     *string          `gorm:"column:notes"`
	CreatedAt time.Time        `gorm:"column:created_at;autoCreateTime"`
}

// TableName pins the table; gorm would otherwise pluralize to sales_histories.
func (SalesHistory) TableName() string { return "sales_history" }
