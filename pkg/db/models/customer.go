package models

import (
	"time"

	"github.com/google/uuid"
)

// Customer owns a store-credit balance consumed as per-order discounts.
// Balance is stored in minor currency units and never goes negative.
type Customer struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name         string    `gorm:"column:name;not null"`
	Email        string    `gorm:"column:email;not null;uniqueIndex"`
	PasswordHash string    `gorm:"column:password_hash;not null" json:"-"`
	Balance      int64     `gorm:"column:balance;not null;default:0"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
