package customers

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/storefront-labs/storefront-backend/pkg/db/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:customers_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Customer{}, &models.OutboxEvent{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestRepositoryBalanceLifecycle(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	created, err := repo.Create(ctx, &models.Customer{
		Name:         "Dana",
		Email:        "dana@example.com",
		PasswordHash: "hash",
		Balance:      150000,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == uuid.Nil {
		t.Fatal("expected generated id")
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		scoped := repo.WithTx(tx)
		locked, err := scoped.LockAndGet(ctx, created.ID)
		if err != nil {
			return err
		}
		if locked.Balance != 150000 {
			t.Fatalf("unexpected balance %d", locked.Balance)
		}
		return scoped.SetBalance(ctx, created.ID, 0)
	})
	if err != nil {
		t.Fatalf("balance tx: %v", err)
	}

	reloaded, err := repo.FindByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Balance != 0 {
		t.Fatalf("expected balance 0, got %d", reloaded.Balance)
	}
}

func TestLockAndGetMissingCustomer(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	repo := NewRepository(db)

	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := repo.WithTx(tx).LockAndGet(context.Background(), uuid.New())
		return err
	})
	if err != gorm.ErrRecordNotFound {
		t.Fatalf("expected record not found, got %v", err)
	}
}
