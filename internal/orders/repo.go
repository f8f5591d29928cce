package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/storefront-labs/storefront-backend/pkg/db/models"
	"github.com/storefront-labs/storefront-backend/pkg/enums"
	"github.com/storefront-labs/storefront-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateSale(ctx context.Context, sale *models.Sale) (*models.Sale, error) {
	if sale.ID == uuid.Nil {
		sale.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(sale).Error; err != nil {
		return nil, err
	}
	return sale, nil
}

func (r *repository) CreateSalesItems(ctx context.Context, items []models.SalesItem) error {
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		if items[i].ID == uuid.Nil {
			items[i].ID = uuid.New()
		}
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *repository) CreateSalesTotals(ctx context.Context, totals *models.SalesTotals) (*models.SalesTotals, error) {
	if totals.ID == uuid.Nil {
		totals.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(totals).Error; err != nil {
		return nil, err
	}
	return totals, nil
}

func (r *repository) AppendHistory(ctx context.Context, entry *models.SalesHistory) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

// LockAndGetSale reads the sale row under FOR UPDATE so concurrent status
// transitions serialize. Must run inside a transaction; sqlite (tests) has no
// row locks, so the clause is applied on Postgres only.
func (r *repository) LockAndGetSale(ctx context.Context, id uuid.UUID) (*models.Sale, error) {
	query := r.db.WithContext(ctx)
	if r.db.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var sale models.Sale
	err := query.
		Where("id = ?", id).
		First(&sale).Error
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

func (r *repository) FindSaleDetail(ctx context.Context, id uuid.UUID) (*models.Sale, error) {
	var sale models.Sale
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Preload("Totals").
		Preload("History", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Where("id = ?", id).
		First(&sale).Error
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

func (r *repository) FindItemsBySale(ctx context.Context, saleID uuid.UUID) ([]models.SalesItem, error) {
	var items []models.SalesItem
	err := r.db.WithContext(ctx).
		Where("sale_id = ?", saleID).
		Order("created_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) UpdateSaleStatus(ctx context.Context, id uuid.UUID, status enums.SaleStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Sale{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *repository) ListSales(ctx context.Context, params pagination.Params, filters ListFilters) (*OrderList, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}

	query := r.db.WithContext(ctx).
		Model(&models.Sale{}).
		Select(`sales.id, sales.customer_id, sales.status, sales.created_at,
			COALESCE(totals.total_amount, 0) AS total_amount,
			COALESCE(counts.item_count, 0) AS item_count`).
		Joins(`LEFT JOIN sales_totals totals ON totals.sale_id = sales.id`).
		Joins(`LEFT JOIN (SELECT sale_id, COUNT(*) AS item_count FROM sales_items GROUP BY sale_id) counts
			ON counts.sale_id = sales.id`)

	if filters.Status != nil {
		query = query.Where("sales.status = ?", *filters.Status)
	}
	if filters.CustomerID != nil {
		query = query.Where("sales.customer_id = ?", *filters.CustomerID)
	}
	if cursor != nil {
		query = query.Where(
			"(sales.created_at < ?) OR (sales.created_at = ? AND sales.id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var rows []OrderSummary
	err = query.
		Order("sales.created_at DESC").
		Order("sales.id DESC").
		Limit(limit + 1).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	list := &OrderList{Orders: rows}
	if len(rows) > limit {
		list.Orders = rows[:limit]
		last := list.Orders[limit-1]
		list.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	return list, nil
}
