package orders

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storefront-labs/storefront-backend/internal/catalog"
	"github.com/storefront-labs/storefront-backend/internal/customers"
	"github.com/storefront-labs/storefront-backend/internal/inventory"
	"github.com/storefront-labs/storefront-backend/pkg/config"
	"github.com/storefront-labs/storefront-backend/pkg/db/models"
	"github.com/storefront-labs/storefront-backend/pkg/enums"
	pkgerrors "github.com/storefront-labs/storefront-backend/pkg/errors"
	"github.com/storefront-labs/storefront-backend/pkg/outbox"
)

type txRunnerFunc struct {
	db *gorm.DB
}

func (r txRunnerFunc) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(fn)
}

type fixture struct {
	db  *gorm.DB
	svc Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	outboxSvc := outbox.NewService(outbox.NewRepository(db), nil)
	svc, err := NewService(
		NewRepository(db),
		catalog.NewRepository(db),
		customers.NewRepository(db),
		inventory.NewRepository(db),
		txRunnerFunc{db: db},
		outboxSvc,
		nil,
		config.OrderConfig{DiscountLineCap: 100000, ShippingFee: 0},
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &fixture{db: db, svc: svc}
}

func (f *fixture) seedCustomer(t *testing.T, balance int64) *models.Customer {
	t.Helper()
	customer := &models.Customer{
		ID:           uuid.New(),
		Name:         "Dana",
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: "hash",
		Balance:      balance,
	}
	if err := f.db.Create(customer).Error; err != nil {
		t.Fatalf("seed customer: %v", err)
	}
	return customer
}

func (f *fixture) seedProduct(t *testing.T, name string, price int64) *models.Product {
	t.Helper()
	product := &models.Product{ID: uuid.New(), Name: name, Price: price}
	if err := f.db.Create(product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product
}

func (f *fixture) seedVariant(t *testing.T, productID uuid.UUID, qty int) *models.InventoryVariant {
	t.Helper()
	variant := &models.InventoryVariant{ID: uuid.New(), ProductID: productID, Quantity: qty}
	if err := f.db.Create(variant).Error; err != nil {
		t.Fatalf("seed variant: %v", err)
	}
	return variant
}

func (f *fixture) variantQty(t *testing.T, id uuid.UUID) int {
	t.Helper()
	var variant models.InventoryVariant
	if err := f.db.First(&variant, "id = ?", id).Error; err != nil {
		t.Fatalf("reload variant: %v", err)
	}
	return variant.Quantity
}

func (f *fixture) customerBalance(t *testing.T, id uuid.UUID) int64 {
	t.Helper()
	var customer models.Customer
	if err := f.db.First(&customer, "id = ?", id).Error; err != nil {
		t.Fatalf("reload customer: %v", err)
	}
	return customer.Balance
}

func TestCreateOrderDiscountScenario(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	customer := f.seedCustomer(t, 150000)
	expensive := f.seedProduct(t, "Coat", 100000)
	cheap := f.seedProduct(t, "Scarf", 50000)
	variantA := f.seedVariant(t, expensive.ID, 5)
	variantB := f.seedVariant(t, cheap.ID, 5)

	sale, err := f.svc.CreateOrder(ctx, CreateOrderInput{
		CustomerID: customer.ID,
		Lines: []LineInput{
			{ProductID: expensive.ID, Quantity: 1},
			{ProductID: cheap.ID, Quantity: 1},
		},
		Actor: Actor{CustomerID: customer.ID, Role: enums.RoleCustomer},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	if sale.Status != enums.SaleStatusPending {
		t.Fatalf("expected pending, got %s", sale.Status)
	}
	if len(sale.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(sale.Items))
	}
	if sale.Items[0].DiscountAmount != 100000 {
		t.Fatalf("line 1 discount should hit the cap, got %d", sale.Items[0].DiscountAmount)
	}
	if sale.Items[1].DiscountAmount != 50000 {
		t.Fatalf("line 2 discount should take the leftover, got %d", sale.Items[1].DiscountAmount)
	}

	totals := sale.Totals
	if totals.Subtotal != 150000 || totals.DiscountTotal != 150000 || totals.TotalAmount != 0 {
		t.Fatalf("unexpected totals: %+v", totals)
	}
	if totals.TotalAmount != totals.Subtotal-totals.DiscountTotal+totals.ShippingFee {
		t.Fatal("totals identity violated")
	}

	// Balance conservation: deducted exactly what the items carry.
	if got := f.customerBalance(t, customer.ID); got != 0 {
		t.Fatalf("expected balance 0, got %d", got)
	}
	if f.variantQty(t, variantA.ID) != 4 || f.variantQty(t, variantB.ID) != 4 {
		t.Fatal("inventory not decremented")
	}

	detail, err := f.svc.GetOrder(ctx, sale.ID, Actor{CustomerID: customer.ID, Role: enums.RoleCustomer})
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if len(detail.History) != 1 || detail.History[0].Status != enums.SaleStatusPending {
		t.Fatalf("expected one pending history row: %+v", detail.History)
	}

	var events int64
	if err := f.db.Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventOrderCreated).Count(&events).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	if events != 1 {
		t.Fatalf("expected 1 order_created event, got %d", events)
	}
}

func TestCreateOrderAtomicUnderMidFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	customer := f.seedCustomer(t, 50000)
	stocked := f.seedProduct(t, "Tee", 20000)
	scarce := f.seedProduct(t, "Limited", 90000)
	stockedVariant := f.seedVariant(t, stocked.ID, 10)
	scarceVariant := f.seedVariant(t, scarce.ID, 1)

	_, err := f.svc.CreateOrder(ctx, CreateOrderInput{
		CustomerID: customer.ID,
		Lines: []LineInput{
			{ProductID: stocked.ID, Quantity: 2},
			{ProductID: scarce.ID, Quantity: 3},
		},
		Actor: Actor{CustomerID: customer.ID, Role: enums.RoleCustomer},
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeOutOfStock {
		t.Fatalf("expected out of stock, got %v", err)
	}

	// Nothing from the attempt may be observable.
	var count int64
	for _, model := range []any{&models.Sale{}, &models.SalesItem{}, &models.SalesTotals{}, &models.SalesHistory{}, &models.OutboxEvent{}} {
		if err := f.db.Model(model).Count(&count).Error; err != nil {
			t.Fatalf("count: %v", err)
		}
		if count != 0 {
			t.Fatalf("expected no %T rows, got %d", model, count)
		}
	}
	if f.customerBalance(t, customer.ID) != 50000 {
		t.Fatal("balance must be untouched")
	}
	if f.variantQty(t, stockedVariant.ID) != 10 || f.variantQty(t, scarceVariant.ID) != 1 {
		t.Fatal("inventory must be untouched")
	}
}

func TestCreateOrderDuplicateLinesShareStock(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	customer := f.seedCustomer(t, 0)
	product := f.seedProduct(t, "Tee", 20000)
	f.seedVariant(t, product.ID, 5)

	// 3 + 3 over one variant with 5 in stock must fail even though each
	// line alone would fit.
	_, err := f.svc.CreateOrder(ctx, CreateOrderInput{
		CustomerID: customer.ID,
		Lines: []LineInput{
			{ProductID: product.ID, Quantity: 3},
			{ProductID: product.ID, Quantity: 3},
		},
		Actor: Actor{CustomerID: customer.ID, Role: enums.RoleCustomer},
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeOutOfStock {
		t.Fatalf("expected out of stock, got %v", err)
	}

	// 3 + 2 fits exactly.
	sale, err := f.svc.CreateOrder(ctx, CreateOrderInput{
		CustomerID: customer.ID,
		Lines: []LineInput{
			{ProductID: product.ID, Quantity: 3},
			{ProductID: product.ID, Quantity: 2},
		},
		Actor: Actor{CustomerID: customer.ID, Role: enums.RoleCustomer},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if len(sale.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(sale.Items))
	}
}

func TestCreateOrderValidation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	customer := f.seedCustomer(t, 0)
	product := f.seedProduct(t, "Tee", 20000)
	f.seedVariant(t, product.ID, 5)
	actor := Actor{CustomerID: customer.ID, Role: enums.RoleCustomer}

	_, err := f.svc.CreateOrder(ctx, CreateOrderInput{CustomerID: customer.ID, Actor: actor})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for empty cart, got %v", err)
	}

	_, err = f.svc.CreateOrder(ctx, CreateOrderInput{
		CustomerID: customer.ID,
		Lines:      []LineInput{{ProductID: product.ID, Quantity: 0}},
		Actor:      actor,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for zero qty, got %v", err)
	}

	_, err = f.svc.CreateOrder(ctx, CreateOrderInput{
		CustomerID: uuid.New(),
		Lines:      []LineInput{{ProductID: product.ID, Quantity: 1}},
		Actor:      actor,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for unknown customer, got %v", err)
	}

	_, err = f.svc.CreateOrder(ctx, CreateOrderInput{
		CustomerID: customer.ID,
		Lines:      []LineInput{{ProductID: uuid.New(), Quantity: 1}},
		Actor:      actor,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for unknown product, got %v", err)
	}
}

func TestUpdateStatusIdempotentNoOp(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	customer := f.seedCustomer(t, 0)
	product := f.seedProduct(t, "Tee", 20000)
	f.seedVariant(t, product.ID, 5)
	admin := Actor{CustomerID: uuid.New(), Role: enums.RoleAdmin}

	sale, err := f.svc.CreateOrder(ctx, CreateOrderInput{
		CustomerID: customer.ID,
		Lines:      []LineInput{{ProductID: product.ID, Quantity: 1}},
		Actor:      Actor{CustomerID: customer.ID, Role: enums.RoleCustomer},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	var before int64
	if err := f.db.Model(&models.SalesHistory{}).Where("sale_id = ?", sale.ID).Count(&before).Error; err != nil {
		t.Fatalf("count history: %v", err)
	}

	for i := 0; i < 2; i++ {
		result, err := f.svc.UpdateStatus(ctx, UpdateStatusInput{
			OrderID: sale.ID,
			Status:  enums.SaleStatusPending,
			Actor:   admin,
		})
		if err != nil {
			t.Fatalf("no-op update: %v", err)
		}
		if result.Status != enums.SaleStatusPending {
			t.Fatalf("status changed on no-op: %s", result.Status)
		}
	}

	var after int64
	if err := f.db.Model(&models.SalesHistory{}).Where("sale_id = ?", sale.ID).Count(&after).Error; err != nil {
		t.Fatalf("count history: %v", err)
	}
	if after != before {
		t.Fatalf("no-op must not append history: before=%d after=%d", before, after)
	}
}

func TestUpdateStatusCancelRestoresStock(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	customer := f.seedCustomer(t, 0)
	productA := f.seedProduct(t, "Coat", 90000)
	productB := f.seedProduct(t, "Scarf", 30000)
	variantA := f.seedVariant(t, productA.ID, 5)
	variantB := f.seedVariant(t, productB.ID, 3)
	admin := Actor{CustomerID: uuid.New(), Role: enums.RoleAdmin}

	sale, err := f.svc.CreateOrder(ctx, CreateOrderInput{
		CustomerID: customer.ID,
		Lines: []LineInput{
			{ProductID: productA.ID, Quantity: 2},
			{ProductID: productB.ID, Quantity: 1},
		},
		Actor: Actor{CustomerID: customer.ID, Role: enums.RoleCustomer},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if f.variantQty(t, variantA.ID) != 3 || f.variantQty(t, variantB.ID) != 2 {
		t.Fatal("inventory not decremented at creation")
	}

	if _, err := f.svc.UpdateStatus(ctx, UpdateStatusInput{
		OrderID: sale.ID,
		Status:  enums.SaleStatusProcessing,
		Actor:   admin,
	}); err != nil {
		t.Fatalf("move to processing: %v", err)
	}

	result, err := f.svc.UpdateStatus(ctx, UpdateStatusInput{
		OrderID: sale.ID,
		Status:  enums.SaleStatusCancelled,
		Actor:   admin,
	})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if result.Status != enums.SaleStatusCancelled {
		t.Fatalf("expected cancelled, got %s", result.Status)
	}

	if f.variantQty(t, variantA.ID) != 5 || f.variantQty(t, variantB.ID) != 3 {
		t.Fatal("cancellation must restore stock")
	}
}

func TestUpdateStatusCancelFromPendingDoesNotRestore(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	customer := f.seedCustomer(t, 0)
	product := f.seedProduct(t, "Tee", 20000)
	variant := f.seedVariant(t, product.ID, 5)
	admin := Actor{CustomerID: uuid.New(), Role: enums.RoleAdmin}

	sale, err := f.svc.CreateOrder(ctx, CreateOrderInput{
		CustomerID: customer.ID,
		Lines:      []LineInput{{ProductID: product.ID, Quantity: 2}},
		Actor:      Actor{CustomerID: customer.ID, Role: enums.RoleCustomer},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	if _, err := f.svc.UpdateStatus(ctx, UpdateStatusInput{
		OrderID: sale.ID,
		Status:  enums.SaleStatusCancelled,
		Actor:   admin,
	}); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	if got := f.variantQty(t, variant.ID); got != 3 {
		t.Fatalf("pending cancel must not restore stock, got %d", got)
	}
}

func TestUpdateStatusDefaultNote(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	customer := f.seedCustomer(t, 0)
	product := f.seedProduct(t, "Tee", 20000)
	f.seedVariant(t, product.ID, 5)
	admin := Actor{CustomerID: uuid.New(), Role: enums.RoleAdmin}

	sale, err := f.svc.CreateOrder(ctx, CreateOrderInput{
		CustomerID: customer.ID,
		Lines:      []LineInput{{ProductID: product.ID, Quantity: 1}},
		Actor:      Actor{CustomerID: customer.ID, Role: enums.RoleCustomer},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	if _, err := f.svc.UpdateStatus(ctx, UpdateStatusInput{
		OrderID: sale.ID,
		Status:  enums.SaleStatusShipped,
		Actor:   admin,
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	var entry models.SalesHistory
	err = f.db.Where("sale_id = ? AND status = ?", sale.ID, enums.SaleStatusShipped).First(&entry).Error
	if err != nil {
		t.Fatalf("load history: %v", err)
	}
	if entry.Notes == nil || *entry.Notes != "status changed from pending to shipped" {
		t.Fatalf("unexpected note: %v", entry.Notes)
	}
}

func TestUpdateStatusAuthorization(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.UpdateStatus(ctx, UpdateStatusInput{
		OrderID: uuid.New(),
		Status:  enums.SaleStatusShipped,
		Actor:   Actor{CustomerID: uuid.New(), Role: enums.RoleCustomer},
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}

	_, err = f.svc.UpdateStatus(ctx, UpdateStatusInput{
		OrderID: uuid.New(),
		Status:  "misplaced",
		Actor:   Actor{CustomerID: uuid.New(), Role: enums.RoleAdmin},
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	_, err = f.svc.UpdateStatus(ctx, UpdateStatusInput{
		OrderID: uuid.New(),
		Status:  enums.SaleStatusShipped,
		Actor:   Actor{CustomerID: uuid.New(), Role: enums.RoleAdmin},
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGetOrderOwnership(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	owner := f.seedCustomer(t, 0)
	stranger := f.seedCustomer(t, 0)
	product := f.seedProduct(t, "Tee", 20000)
	f.seedVariant(t, product.ID, 5)

	sale, err := f.svc.CreateOrder(ctx, CreateOrderInput{
		CustomerID: owner.ID,
		Lines:      []LineInput{{ProductID: product.ID, Quantity: 1}},
		Actor:      Actor{CustomerID: owner.ID, Role: enums.RoleCustomer},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	if _, err := f.svc.GetOrder(ctx, sale.ID, Actor{CustomerID: owner.ID, Role: enums.RoleCustomer}); err != nil {
		t.Fatalf("owner read: %v", err)
	}
	if _, err := f.svc.GetOrder(ctx, sale.ID, Actor{CustomerID: uuid.New(), Role: enums.RoleAdmin}); err != nil {
		t.Fatalf("admin read: %v", err)
	}

	_, err = f.svc.GetOrder(ctx, sale.ID, Actor{CustomerID: stranger.ID, Role: enums.RoleCustomer})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestCreateOrderDiscountCanExceedCheapCart(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	customer := f.seedCustomer(t, 100000)
	cheap := f.seedProduct(t, "Sticker", 500)
	variant := f.seedVariant(t, cheap.ID, 5)

	sale, err := f.svc.CreateOrder(ctx, CreateOrderInput{
		CustomerID: customer.ID,
		Lines: []LineInput{
			{ProductID: cheap.ID, Quantity: 1},
		},
		Actor: Actor{CustomerID: customer.ID, Role: enums.RoleCustomer},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	// Discounts are balance-bound, not price-bound, so a cheap cart with a
	// large balance commits with a negative total.
	totals := sale.Totals
	if totals.Subtotal != 500 || totals.DiscountTotal != 100000 {
		t.Fatalf("unexpected totals: %+v", totals)
	}
	if totals.TotalAmount != -99500 {
		t.Fatalf("expected total -99500, got %d", totals.TotalAmount)
	}
	if totals.TotalAmount != totals.Subtotal-totals.DiscountTotal+totals.ShippingFee {
		t.Fatal("totals identity violated")
	}
	if got := f.customerBalance(t, customer.ID); got != 0 {
		t.Fatalf("expected balance 0, got %d", got)
	}
	if f.variantQty(t, variant.ID) != 4 {
		t.Fatal("inventory not decremented")
	}
}
