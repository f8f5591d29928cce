package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/storefront-labs/storefront-backend/pkg/db/models"
	"github.com/storefront-labs/storefront-backend/pkg/enums"
	"github.com/storefront-labs/storefront-backend/pkg/pagination"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Customer{},
		&models.Product{},
		&models.InventoryVariant{},
		&models.Sale{},
		&models.SalesItem{},
		&models.SalesTotals{},
		&models.SalesHistory{},
		&models.OutboxEvent{},
	))
	return db
}

func seedSale(t *testing.T, db *gorm.DB, customerID uuid.UUID, status enums.SaleStatus, createdAt time.Time) *models.Sale {
	t.Helper()
	sale := &models.Sale{
		ID:         uuid.New(),
		CustomerID: customerID,
		Status:     status,
		CreatedAt:  createdAt,
	}
	require.NoError(t, db.Create(sale).Error)
	return sale
}

func TestFindSaleDetailLoadsAggregate(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	customerID := uuid.New()
	sale, err := repo.CreateSale(ctx, &models.Sale{CustomerID: customerID, Status: enums.SaleStatusPending})
	require.NoError(t, err)

	items := []models.SalesItem{
		{SaleID: sale.ID, ProductID: uuid.New(), VariantID: uuid.New(), ProductName: "Tee", Quantity: 2, PriceAtSale: 30000},
	}
	require.NoError(t, repo.CreateSalesItems(ctx, items))
	_, err = repo.CreateSalesTotals(ctx, &models.SalesTotals{
		SaleID:      sale.ID,
		Subtotal:    60000,
		TotalAmount: 60000,
	})
	require.NoError(t, err)
	note := "order created"
	require.NoError(t, repo.AppendHistory(ctx, &models.SalesHistory{
		SaleID: sale.ID,
		Status: enums.SaleStatusPending,
		Notes:  &note,
	}))

	detail, err := repo.FindSaleDetail(ctx, sale.ID)
	require.NoError(t, err)
	require.Len(t, detail.Items, 1)
	require.Equal(t, "Tee", detail.Items[0].ProductName)
	require.NotNil(t, detail.Totals)
	require.EqualValues(t, 60000, detail.Totals.TotalAmount)
	require.Len(t, detail.History, 1)
}

func TestListSalesPaginatesWithCursor(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	customerID := uuid.New()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		seedSale(t, db, customerID, enums.SaleStatusPending, base.Add(time.Duration(i)*time.Minute))
	}

	first, err := repo.ListSales(ctx, pagination.Params{Limit: 2}, ListFilters{})
	require.NoError(t, err)
	require.Len(t, first.Orders, 2)
	require.NotEmpty(t, first.NextCursor)
	if !first.Orders[0].CreatedAt.After(first.Orders[1].CreatedAt) {
		t.Fatal("orders must be newest first")
	}

	second, err := repo.ListSales(ctx, pagination.Params{Limit: 2, Cursor: first.NextCursor}, ListFilters{})
	require.NoError(t, err)
	require.Len(t, second.Orders, 2)
	for _, earlier := range second.Orders {
		for _, later := range first.Orders {
			if earlier.ID == later.ID {
				t.Fatal("pages overlap")
			}
		}
	}

	third, err := repo.ListSales(ctx, pagination.Params{Limit: 2, Cursor: second.NextCursor}, ListFilters{})
	require.NoError(t, err)
	require.Len(t, third.Orders, 1)
	require.Empty(t, third.NextCursor)
}

func TestListSalesFilters(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	customerA := uuid.New()
	customerB := uuid.New()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	seedSale(t, db, customerA, enums.SaleStatusPending, base)
	seedSale(t, db, customerA, enums.SaleStatusCancelled, base.Add(time.Minute))
	seedSale(t, db, customerB, enums.SaleStatusPending, base.Add(2*time.Minute))

	cancelled := enums.SaleStatusCancelled
	list, err := repo.ListSales(ctx, pagination.Params{}, ListFilters{Status: &cancelled})
	require.NoError(t, err)
	require.Len(t, list.Orders, 1)
	require.Equal(t, enums.SaleStatusCancelled, list.Orders[0].Status)

	list, err = repo.ListSales(ctx, pagination.Params{}, ListFilters{CustomerID: &customerA})
	require.NoError(t, err)
	require.Len(t, list.Orders, 2)
}

func TestUpdateSaleStatus(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	sale := seedSale(t, db, uuid.New(), enums.SaleStatusPending, time.Now())
	require.NoError(t, repo.UpdateSaleStatus(ctx, sale.ID, enums.SaleStatusProcessing))

	locked, err := repo.LockAndGetSale(ctx, sale.ID)
	require.NoError(t, err)
	require.Equal(t, enums.SaleStatusProcessing, locked.Status)
}
