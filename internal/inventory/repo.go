// Package inventory is the per-variant stock ledger. A variant is one
// product/size/color combination; no row means the combination is unstocked.
package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/storefront-labs/storefront-backend/pkg/db/models"
)

// VariantKey identifies one stocked combination.
type VariantKey struct {
	ProductID uuid.UUID
	SizeID    *uuid.UUID
	ColorID   *uuid.UUID
}

// String renders a stable form of the key, used for canonical lock ordering.
func (k VariantKey) String() string {
	out := k.ProductID.String()
	if k.SizeID != nil {
		out += "|" + k.SizeID.String()
	} else {
		out += "|-"
	}
	if k.ColorID != nil {
		out += "|" + k.ColorID.String()
	} else {
		out += "|-"
	}
	return out
}

// Repository defines the stock ledger operations used by the order engine.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, variant *models.InventoryVariant) (*models.InventoryVariant, error)
	LockAndGet(ctx context.Context, key VariantKey) (*models.InventoryVariant, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.InventoryVariant, error)
	Decrement(ctx context.Context, variantID uuid.UUID, qty int) error
	Increment(ctx context.Context, variantID uuid.UUID, qty int) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an inventory repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, variant *models.InventoryVariant) (*models.InventoryVariant, error) {
	if variant.ID == uuid.Nil {
		variant.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(variant).Error; err != nil {
		return nil, err
	}
	return variant, nil
}

// LockAndGet reads the variant row under FOR UPDATE so concurrent checkouts
// serialize per variant. Must run inside a transaction; sqlite (tests) has no
// row locks, so the clause is applied on Postgres only.
func (r *repository) LockAndGet(ctx context.Context, key VariantKey) (*models.InventoryVariant, error) {
	query := r.db.WithContext(ctx)
	if r.db.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	query = query.Where("product_id = ?", key.ProductID)
	if key.SizeID != nil {
		query = query.Where("size_id = ?", *key.SizeID)
	} else {
		query = query.Where("size_id IS NULL")
	}
	if key.ColorID != nil {
		query = query.Where("color_id = ?", *key.ColorID)
	} else {
		query = query.Where("color_id IS NULL")
	}

	var variant models.InventoryVariant
	if err := query.First(&variant).Error; err != nil {
		return nil, err
	}
	return &variant, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.InventoryVariant, error) {
	var variant models.InventoryVariant
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&variant).Error
	if err != nil {
		return nil, err
	}
	return &variant, nil
}

// Decrement subtracts qty from the variant. Callers must have verified
// availability under the same lock; the quantity guard here is a backstop
// that keeps the counter from going negative under misuse.
func (r *repository) Decrement(ctx context.Context, variantID uuid.UUID, qty int) error {
	result := r.db.WithContext(ctx).
		Model(&models.InventoryVariant{}).
		Where("id = ? AND quantity >= ?", variantID, qty).
		Update("quantity", gorm.Expr("quantity - ?", qty))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Increment restores qty to the variant, used by cancellation compensation.
func (r *repository) Increment(ctx context.Context, variantID uuid.UUID, qty int) error {
	result := r.db.WithContext(ctx).
		Model(&models.InventoryVariant{}).
		Where("id = ?", variantID).
		Update("quantity", gorm.Expr("quantity + ?", qty))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
