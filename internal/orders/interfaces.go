package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storefront-labs/storefront-backend/pkg/db/models"
	"github.com/storefront-labs/storefront-backend/pkg/enums"
	"github.com/storefront-labs/storefront-backend/pkg/pagination"
)

// Repository defines persistence operations for the sale aggregate.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateSale(ctx context.Context, sale *models.Sale) (*models.Sale, error)
	CreateSalesItems(ctx context.Context, items []models.SalesItem) error
	CreateSalesTotals(ctx context.Context, totals *models.SalesTotals) (*models.SalesTotals, error)
	AppendHistory(ctx context.Context, entry *models.SalesHistory) error
	LockAndGetSale(ctx context.Context, id uuid.UUID) (*models.Sale, error)
	FindSaleDetail(ctx context.Context, id uuid.UUID) (*models.Sale, error)
	FindItemsBySale(ctx context.Context, saleID uuid.UUID) ([]models.SalesItem, error)
	UpdateSaleStatus(ctx context.Context, id uuid.UUID, status enums.SaleStatus) error
	ListSales(ctx context.Context, params pagination.Params, filters ListFilters) (*OrderList, error)
}
